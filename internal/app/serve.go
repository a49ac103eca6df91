package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leo-rullani/backend-video-flix/internal/auth"
	"github.com/leo-rullani/backend-video-flix/internal/config"
	"github.com/leo-rullani/backend-video-flix/internal/httpserver"
	"github.com/leo-rullani/backend-video-flix/internal/metrics"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), serve)
		},
	}
}

func serve(ctx context.Context, svc *services) error {
	cfg := svc.cfg
	logger := svc.logger

	// Redis expires revocations on its own.
	var scheduler *cron.Cron
	if cfg.Revocation.Backend != config.RevocationRedis {
		var err error
		scheduler, err = newPurgeScheduler(ctx, svc.revocations, cfg.Revocation.PurgeSchedule, logger)
		if err != nil {
			return err
		}
	}

	submitter := svc.submitter(ctx)
	srv := httpserver.New(cfg.AppPort, svc.httpHandler(submitter), httpserver.WithErrorLogger(logger))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "port", cfg.AppPort)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if scheduler != nil {
		scheduler.Start()
		g.Go(func() error {
			<-gctx.Done()
			<-scheduler.Stop().Done()
			return nil
		})
	}

	return g.Wait()
}

// newPurgeScheduler schedules removal of revocation entries whose tokens have expired.
func newPurgeScheduler(ctx context.Context, store auth.RevocationStore, spec string, logger *slog.Logger) (*cron.Cron, error) {
	scheduler := cron.New()
	_, err := scheduler.AddFunc(spec, func() {
		purgeCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		purged, err := store.PurgeExpired(purgeCtx, time.Now().UTC())
		if err != nil {
			logger.Error("purge expired revocations", "error", err)
			return
		}
		metrics.RevocationsPurgedTotal.Add(float64(purged))
		if purged > 0 {
			logger.Info("purged expired revocations", "count", purged)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule revocation purge %q: %w", spec, err)
	}
	return scheduler, nil
}
