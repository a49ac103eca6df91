package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool abstracts the pgx connection pool to make testing easier.
type Pool interface {
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
	Ping(ctx context.Context) error
	Close()
}

// Options tunes the connection pool. Zero values keep the pgx defaults.
type Options struct {
	MaxConns int32
	// StartupWait bounds how long Connect keeps pinging a database that is not
	// accepting connections yet. Zero means a single attempt.
	StartupWait time.Duration
}

const pingInterval = time.Second

// Connect opens a PostgreSQL pool for databaseURL and waits until the server answers.
func Connect(ctx context.Context, databaseURL string, opts Options) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConnIdleTime = 5 * time.Minute
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := WaitReady(ctx, pool, opts.StartupWait, pingInterval); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

// WaitReady pings p every interval until it succeeds or wait has elapsed.
func WaitReady(ctx context.Context, p pinger, wait, interval time.Duration) error {
	deadline := time.Now().Add(wait)
	for attempt := 1; ; attempt++ {
		err := p.Ping(ctx)
		if err == nil {
			return nil
		}
		if time.Now().Add(interval).After(deadline) {
			return fmt.Errorf("database not reachable after %d attempts: %w", attempt, err)
		}
		slog.Default().Info("waiting for database", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
