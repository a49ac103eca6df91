package handlers

import (
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/leo-rullani/backend-video-flix/internal/hls"
	"github.com/leo-rullani/backend-video-flix/internal/logging"
	"github.com/leo-rullani/backend-video-flix/internal/models"
)

const (
	msgUnauthenticated = "Authentication credentials were not provided or are invalid."

	playlistContentType = "application/vnd.apple.mpegurl"
	segmentContentType  = "video/MP2T"
)

// VideoHandler serves the catalog and the HLS files of its renditions. Every endpoint
// requires an access token cookie.
type VideoHandler struct {
	Gate     Authenticator
	Videos   VideoStore
	Lookup   VideoLookup
	Layout   hls.Layout
	MediaURL string
}

// List handles GET /api/video/ and returns the catalog newest first.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if result := h.Gate.ResolveCookie(r); !result.OK() {
		logger.Info("video list rejected", "reason", result.Reason.String())
		respondJSON(ctx, w, http.StatusUnauthorized, detail(msgUnauthenticated))
		return
	}

	records, err := h.Videos.List(ctx)
	if err != nil {
		logger.Error("video list failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, detail("Unable to load videos."))
		return
	}

	out := make([]models.PublicVideo, 0, len(records))
	for _, video := range records {
		out = append(out, publicVideo(r, h.MediaURL, video))
	}
	respondJSON(ctx, w, http.StatusOK, out)
}

// Manifest handles GET /api/video/{id}/{resolution}/index.m3u8.
func (h VideoHandler) Manifest(w http.ResponseWriter, r *http.Request) {
	res, ok := h.rendition(w, r)
	if !ok {
		return
	}
	id, _ := pathID(r)
	h.serveFile(w, r, h.Layout.PlaylistPath(id, res), playlistContentType)
}

// Segment handles GET /api/video/{id}/{resolution}/{segment}, with or without a
// trailing slash.
func (h VideoHandler) Segment(w http.ResponseWriter, r *http.Request) {
	res, ok := h.rendition(w, r)
	if !ok {
		return
	}
	id, _ := pathID(r)
	name, err := url.PathUnescape(mux.Vars(r)["segment"])
	path, ok := h.Layout.SegmentPath(id, res, name)
	if err != nil || !ok {
		respondJSON(r.Context(), w, http.StatusNotFound, detail("Invalid segment name."))
		return
	}
	h.serveFile(w, r, path, segmentContentType)
}

// rendition runs the checks shared by playlist and segment requests in order:
// identity, video existence, then resolution.
func (h VideoHandler) rendition(w http.ResponseWriter, r *http.Request) (hls.Resolution, bool) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if result := h.Gate.ResolveCookie(r); !result.OK() {
		logger.Info("hls request rejected", "reason", result.Reason.String())
		respondJSON(ctx, w, http.StatusUnauthorized, detail(msgUnauthenticated))
		return hls.Resolution{}, false
	}

	id, ok := pathID(r)
	if ok {
		exists, err := h.Lookup.Exists(ctx, id)
		if err != nil {
			logger.Error("video lookup failed", "error", err, "videoId", id)
			respondJSON(ctx, w, http.StatusInternalServerError, detail("Unable to load video."))
			return hls.Resolution{}, false
		}
		ok = exists
	}
	if !ok {
		respondJSON(ctx, w, http.StatusNotFound, detail("Video not found."))
		return hls.Resolution{}, false
	}

	res, ok := hls.ParseResolution(mux.Vars(r)["resolution"])
	if !ok {
		respondJSON(ctx, w, http.StatusNotFound, detail("Invalid resolution."))
		return hls.Resolution{}, false
	}
	return res, true
}

func (h VideoHandler) serveFile(w http.ResponseWriter, r *http.Request, path, contentType string) {
	f, err := os.Open(path)
	if err != nil {
		respondJSON(r.Context(), w, http.StatusNotFound, detail("File not found."))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		respondJSON(r.Context(), w, http.StatusNotFound, detail("File not found."))
		return
	}

	w.Header().Set("Content-Type", contentType)
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func publicVideo(r *http.Request, mediaURL string, video models.Video) models.PublicVideo {
	out := models.PublicVideo{
		ID:          video.ID,
		CreatedAt:   formatTimestamp(video.CreatedAt),
		Title:       video.Title,
		Description: video.Description,
		Category:    video.Category,
	}
	if video.Thumbnail != "" {
		url := absoluteURL(r, joinURLPath(mediaURL, video.Thumbnail))
		out.ThumbnailURL = &url
	}
	return out
}

// formatTimestamp renders UTC ISO-8601 with a Z suffix and microseconds only when
// they are non-zero.
func formatTimestamp(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond()/int(time.Microsecond) == 0 {
		return t.Format("2006-01-02T15:04:05Z")
	}
	return t.Format("2006-01-02T15:04:05.000000Z")
}

func absoluteURL(r *http.Request, path string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "https" || proto == "http" {
		scheme = proto
	}
	return scheme + "://" + r.Host + path
}

func joinURLPath(base, name string) string {
	if base == "" {
		base = "/media/"
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(name, "/")
}
