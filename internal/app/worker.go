package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leo-rullani/backend-video-flix/internal/jobs"
)

// Jobs still running after the grace period are cancelled and replayed on restart.
const workerShutdownGrace = 30 * time.Second

func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume queued transcode and email jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), runWorker)
		},
	}
}

func runWorker(ctx context.Context, svc *services) error {
	client := svc.streamClient()
	if client == nil {
		return errors.New("worker requires VIDEOFLIX_REDIS_URL")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect job queue: %w", err)
	}

	worker := jobs.NewWorker(client, svc.registry, jobs.WorkerConfig{
		Stream:      svc.cfg.Queue.Stream,
		Group:       svc.cfg.Queue.Group,
		Consumer:    svc.cfg.Queue.WorkerName,
		Concurrency: svc.cfg.Queue.Concurrency,
		ClaimIdle:   svc.cfg.Queue.ClaimIdle,
	}, svc.logger)

	runErr := worker.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), workerShutdownGrace)
	defer cancel()
	if err := worker.Shutdown(shutdownCtx); err != nil {
		svc.logger.Warn("job worker did not drain in time", "error", err)
	}
	svc.logger.Info("job worker stopped")
	return runErr
}
