package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leo-rullani/backend-video-flix/internal/config"
	"github.com/leo-rullani/backend-video-flix/internal/db"
)

// Run bootstraps the Videoflix backend CLI.
func Run(ctx context.Context, args []string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCommand assembles the videoflix command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "videoflix",
		Short:         "Videoflix streaming backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.AddCommand(newServeCommand())
	root.AddCommand(newWorkerCommand())
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newGenerateHLSCommand())
	root.AddCommand(newCreateAdminCommand())

	return root
}

// runtime is the state every command that touches the database starts from.
type runtime struct {
	cfg    config.Config
	logger *slog.Logger
	pool   db.Pool
}

func (r *runtime) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

func startRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	pool, err := db.Connect(ctx, cfg.DatabaseURL, db.Options{
		MaxConns:    int32(cfg.DBMaxConns),
		StartupWait: cfg.DatabaseWait,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &runtime{cfg: cfg, logger: logger, pool: pool}, nil
}

// withServices loads configuration, connects to the database and builds the shared
// services before running fn.
func withServices(ctx context.Context, fn func(context.Context, *services) error) error {
	rt, err := startRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	svc, cleanup, err := buildServices(ctx, rt.pool, rt.cfg, rt.logger)
	if err != nil {
		return err
	}
	defer cleanup()

	return fn(ctx, svc)
}
