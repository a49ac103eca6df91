package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/leo-rullani/backend-video-flix/internal/auth"
	"github.com/leo-rullani/backend-video-flix/internal/config"
	"github.com/leo-rullani/backend-video-flix/internal/db"
	"github.com/leo-rullani/backend-video-flix/internal/handlers"
	"github.com/leo-rullani/backend-video-flix/internal/hls"
	"github.com/leo-rullani/backend-video-flix/internal/ingest"
	"github.com/leo-rullani/backend-video-flix/internal/jobs"
	"github.com/leo-rullani/backend-video-flix/internal/logging"
	"github.com/leo-rullani/backend-video-flix/internal/mailer"
	"github.com/leo-rullani/backend-video-flix/internal/middleware"
	"github.com/leo-rullani/backend-video-flix/internal/repositories"
	"github.com/leo-rullani/backend-video-flix/internal/storage"
)

const (
	existenceCacheTTL = 30 * time.Second
	rateLimiterTTL    = 10 * time.Minute
)

// services holds the concrete collaborators shared by the CLI commands.
type services struct {
	cfg    config.Config
	logger *slog.Logger

	pool          db.Pool
	users         *repositories.PostgresUserRepository
	videos        *repositories.PostgresVideoRepository
	lookup        *repositories.CachingVideoLookup
	revocations   auth.RevocationStore
	tokens        *auth.TokenIssuer
	confirmations *auth.ConfirmationTokens

	redis      *redis.Client
	registry   *jobs.Registry
	layout     hls.Layout
	transcoder *hls.Transcoder
	mirror     *storage.S3Mirror
	media      *storage.MediaStore
	mailer     *mailer.Mailer
}

// buildServices wires together concrete implementations used by the commands. The
// returned cleanup function releases the Redis client; the pool is owned by the caller.
func buildServices(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (*services, func(), error) {
	s := &services{
		cfg:           cfg,
		logger:        logger,
		pool:          pool,
		users:         repositories.NewPostgresUserRepository(pool),
		videos:        repositories.NewPostgresVideoRepository(pool),
		confirmations: auth.NewConfirmationTokens(cfg.SecretKey, cfg.ConfirmTokenTTL),
		registry:      jobs.NewRegistry(),
		layout:        hls.Layout{Root: cfg.HLSRoot},
		media:         storage.NewMediaStore(cfg.MediaRoot, cfg.MaxUploadBytes),
	}
	s.lookup = repositories.NewCachingVideoLookup(s.videos, existenceCacheTTL)

	cleanup := func() {}
	if cfg.Queue.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Queue.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		s.redis = redis.NewClient(opts)
		cleanup = func() {
			if err := s.redis.Close(); err != nil {
				logger.Warn("close redis client", "error", err)
			}
		}
	}

	switch cfg.Revocation.Backend {
	case config.RevocationRedis:
		if s.redis == nil {
			cleanup()
			return nil, nil, fmt.Errorf("revocation backend %q requires a redis url", cfg.Revocation.Backend)
		}
		s.revocations = auth.NewRedisRevocationStore(s.redis, "")
	case config.RevocationMemory:
		s.revocations = auth.NewMemoryRevocationStore()
	default:
		s.revocations = repositories.NewPostgresRevocationStore(pool)
	}
	s.tokens = auth.NewTokenIssuer(cfg.SecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, s.revocations)

	s.transcoder = hls.NewTranscoder(s.layout, cfg.FFmpegPath, cfg.EncodeTimeout)
	if cfg.ObjectStore.Bucket != "" {
		mirror, err := storage.NewS3Mirror(ctx, cfg.ObjectStore)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		s.mirror = mirror
		s.transcoder.Mirror = mirror
	}

	sender, err := mailer.NewSender(cfg.Email, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	s.mailer = mailer.New(sender, cfg.Frontend, cfg.Debug, logger)

	registerJobHandlers(s.registry, s.transcoder, s.mailer)
	return s, cleanup, nil
}

type transcodeRunner interface {
	Transcode(ctx context.Context, req hls.Request) (hls.Report, error)
}

type confirmationMailer interface {
	SendActivation(ctx context.Context, email, uid, token string) error
	SendPasswordReset(ctx context.Context, email, uid, token string) error
}

// registerJobHandlers binds every job kind to the component that executes it.
func registerJobHandlers(registry *jobs.Registry, transcoder transcodeRunner, mail confirmationMailer) {
	registry.Register(jobs.KindTranscode, jobs.Handle(func(ctx context.Context, job jobs.TranscodeJob) error {
		report, err := transcoder.Transcode(ctx, hls.Request{
			VideoID:    job.VideoID,
			SourcePath: job.SourcePath,
			Overwrite:  job.Overwrite,
		})
		if err != nil {
			return err
		}
		logging.FromContext(ctx).Info("transcode finished", "video_id", job.VideoID, "generated", report.Generated, "skipped", report.Skipped)
		return nil
	}))
	registry.Register(jobs.KindActivationEmail, jobs.Handle(func(ctx context.Context, job jobs.ActivationEmailJob) error {
		return mail.SendActivation(ctx, job.Email, job.UID, job.Token)
	}))
	registry.Register(jobs.KindPasswordResetEmail, jobs.Handle(func(ctx context.Context, job jobs.PasswordResetEmailJob) error {
		return mail.SendPasswordReset(ctx, job.Email, job.UID, job.Token)
	}))
}

// streamClient returns the Redis client as a jobs.StreamClient, or a nil interface
// when no queue is configured.
func (s *services) streamClient() jobs.StreamClient {
	if s.redis == nil {
		return nil
	}
	return s.redis
}

// submitter picks queued or inline job execution.
func (s *services) submitter(ctx context.Context) jobs.Submitter {
	return jobs.Select(ctx, s.streamClient(), s.cfg.Queue.Stream, s.registry, s.logger)
}

// trigger builds the ingestion trigger used by the admin endpoints.
func (s *services) trigger(submitter jobs.Submitter) *ingest.Trigger {
	opts := []ingest.Option{
		ingest.WithThumbnails(s.media),
		ingest.WithCache(s.lookup),
	}
	if s.mirror != nil {
		opts = append(opts, ingest.WithMirror(s.mirror))
	}
	return ingest.NewTrigger(submitter, hls.Cleaner{Layout: s.layout}, s.logger, opts...)
}

// httpDependencies assembles the collaborators required by the HTTP handlers.
func (s *services) httpDependencies(submitter jobs.Submitter) handlers.Dependencies {
	cfg := s.cfg
	return handlers.Dependencies{
		Users:          s.users,
		Tokens:         s.tokens,
		Confirmations:  s.confirmations,
		Gate:           auth.NewGate(s.tokens, s.users),
		Jobs:           submitter,
		Cookies:        auth.CookiePolicy{Secure: cfg.CookieSecure, SameSite: cfg.CookieSameSite},
		Limiter:        middleware.NewIPRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst, rateLimiterTTL),
		Videos:         s.videos,
		VideoLookup:    s.lookup,
		Lifecycle:      s.trigger(submitter),
		Media:          s.media,
		Layout:         s.layout,
		MediaURL:       cfg.MediaURL,
		MaxUploadBytes: cfg.MaxUploadBytes,
		DB:             s.pool,
	}
}

// httpHandler wraps the router with the request logger.
func (s *services) httpHandler(submitter jobs.Submitter) http.Handler {
	router := handlers.NewRouter(s.httpDependencies(submitter))
	return middleware.RequestLogger(s.logger)(router)
}

// newLogger builds the JSON process logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true, Level: lvl}))
}
