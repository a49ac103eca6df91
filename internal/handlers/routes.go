package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leo-rullani/backend-video-flix/internal/auth"
	"github.com/leo-rullani/backend-video-flix/internal/hls"
	"github.com/leo-rullani/backend-video-flix/internal/jobs"
	"github.com/leo-rullani/backend-video-flix/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users          UserStore
	Tokens         TokenService
	Confirmations  ConfirmationService
	Gate           Authenticator
	Jobs           jobs.Submitter
	Cookies        auth.CookiePolicy
	Limiter        RateLimiter
	Videos         VideoStore
	VideoLookup    VideoLookup
	Lifecycle      VideoLifecycle
	Media          MediaFiles
	Layout         hls.Layout
	MediaURL       string
	MaxUploadBytes int64
	DB             Pinger
}

// NewRouter wires every endpoint into a gorilla/mux router.
func NewRouter(deps Dependencies) *mux.Router {
	health := HealthHandler{DB: deps.DB}
	account := AuthHandler{
		Users:         deps.Users,
		Tokens:        deps.Tokens,
		Confirmations: deps.Confirmations,
		Jobs:          deps.Jobs,
		Cookies:       deps.Cookies,
		Limiter:       deps.Limiter,
	}
	videos := VideoHandler{
		Gate:     deps.Gate,
		Videos:   deps.Videos,
		Lookup:   deps.VideoLookup,
		Layout:   deps.Layout,
		MediaURL: deps.MediaURL,
	}
	admin := AdminVideoHandler{
		Gate:           deps.Gate,
		Videos:         deps.Videos,
		Media:          deps.Media,
		Lifecycle:      deps.Lifecycle,
		MediaURL:       deps.MediaURL,
		MaxUploadBytes: deps.MaxUploadBytes,
	}
	thumbnails := ThumbnailHandler{Media: deps.Media}

	// Match paths as sent so ".." and "%2F" segment names reach the segment check.
	router := mux.NewRouter().SkipClean(true).UseEncodedPath()
	router.NotFoundHandler = http.HandlerFunc(notFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	router.HandleFunc("/healthz", health.Handle).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/media/thumbnails/{name}", thumbnails.Serve).Methods(http.MethodGet, http.MethodHead)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/register/", account.Register).Methods(http.MethodPost)
	api.HandleFunc("/activate/{uidb64}/{token}/", account.Activate).Methods(http.MethodGet)
	api.HandleFunc("/login/", account.Login).Methods(http.MethodPost)
	api.HandleFunc("/logout/", account.Logout).Methods(http.MethodPost)
	api.HandleFunc("/token/refresh/", account.Refresh).Methods(http.MethodPost)
	api.HandleFunc("/password_reset/", account.PasswordReset).Methods(http.MethodPost)
	api.HandleFunc("/password_confirm/{uidb64}/{token}/", account.PasswordConfirm).Methods(http.MethodPost)

	api.HandleFunc("/video/", videos.List).Methods(http.MethodGet)
	api.HandleFunc("/video/{id:[0-9]+}/{resolution}/index.m3u8", videos.Manifest).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/video/{id:[0-9]+}/{resolution}/{segment}", videos.Segment).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/video/{id:[0-9]+}/{resolution}/{segment}/", videos.Segment).Methods(http.MethodGet, http.MethodHead)

	api.HandleFunc("/admin/videos/", admin.Create).Methods(http.MethodPost)
	api.HandleFunc("/admin/videos/{id:[0-9]+}/", admin.Update).Methods(http.MethodPatch)
	api.HandleFunc("/admin/videos/{id:[0-9]+}/", admin.Delete).Methods(http.MethodDelete)

	return router
}
