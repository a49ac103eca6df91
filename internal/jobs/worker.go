package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/leo-rullani/backend-video-flix/internal/logging"
	"github.com/leo-rullani/backend-video-flix/internal/metrics"
)

const (
	DefaultStream = "videoflix:jobs"
	DefaultGroup  = "videoflix-workers"

	// DefaultClaimIdle must exceed the longest job a live consumer may still be
	// running, otherwise its entry is taken over and runs twice.
	DefaultClaimIdle = 2 * time.Hour

	failedSuffix  = ":failed"
	payloadField  = "payload"
	claimInterval = time.Minute
)

// WorkerConfig controls how the worker consumes the job stream.
type WorkerConfig struct {
	Stream      string
	Group       string
	Consumer    string
	Concurrency int
	Block       time.Duration
	// ClaimIdle is how long an entry must sit unacknowledged with another consumer
	// before this worker takes it over.
	ClaimIdle time.Duration
}

// Worker consumes envelopes from a Redis stream with a consumer group and runs them
// through a bounded pool of goroutines.
type Worker struct {
	client   StreamClient
	registry *Registry
	cfg      WorkerConfig
	logger   *slog.Logger

	deliveries chan delivery
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

type delivery struct {
	entryID string
	env     Envelope
}

// NewWorker constructs a worker and starts its handler pool.
func NewWorker(client StreamClient, registry *Registry, cfg WorkerConfig, logger *slog.Logger) *Worker {
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	if cfg.Group == "" {
		cfg.Group = DefaultGroup
	}
	if cfg.Consumer == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "worker"
		}
		cfg.Consumer = host
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.ClaimIdle <= 0 {
		cfg.ClaimIdle = DefaultClaimIdle
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		client:     client,
		registry:   registry,
		cfg:        cfg,
		logger:     logger.With("stream", cfg.Stream, "group", cfg.Group, "consumer", cfg.Consumer),
		deliveries: make(chan delivery, cfg.Concurrency),
		ctx:        ctx,
		cancel:     cancel,
	}

	w.wg.Add(cfg.Concurrency)
	for i := 0; i < cfg.Concurrency; i++ {
		go w.process()
	}

	return w
}

// FailedStream is where envelopes whose handler failed are parked.
func (w *Worker) FailedStream() string {
	return w.cfg.Stream + failedSuffix
}

// Run creates the consumer group if needed and reads the stream until ctx is
// cancelled. Entries left pending by stopped consumers, this one included, are
// claimed and replayed before new entries are read.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.ensureGroup(ctx); err != nil {
		return err
	}
	w.logger.Info("job worker started", "concurrency", w.cfg.Concurrency, "claim_idle", w.cfg.ClaimIdle)

	w.claimStale(ctx)
	lastClaim := time.Now()

	cursor := "0"
	for {
		if ctx.Err() != nil || w.ctx.Err() != nil {
			return nil
		}
		if cursor == ">" && time.Since(lastClaim) >= claimInterval {
			lastClaim = time.Now()
			if w.claimStale(ctx) > 0 {
				cursor = "0"
			}
		}

		streams, err := w.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    w.cfg.Group,
			Consumer: w.cfg.Consumer,
			Streams:  []string{w.cfg.Stream, cursor},
			Count:    int64(w.cfg.Concurrency),
			Block:    w.cfg.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				cursor = ">"
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("read job stream", "error", err)
			if !sleepContext(ctx, time.Second) {
				return nil
			}
			continue
		}

		received := 0
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				received++
				if !w.dispatch(ctx, msg) {
					return nil
				}
				if cursor != ">" {
					cursor = msg.ID
				}
			}
		}
		if received == 0 {
			cursor = ">"
		}
	}
}

// Shutdown stops accepting deliveries and waits for in-flight jobs to finish. Call it
// after Run has returned. Jobs still running when ctx expires are cancelled.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.once.Do(func() {
		close(w.deliveries)
	})

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		w.cancel()
		return ctx.Err()
	case <-done:
		w.cancel()
		return nil
	}
}

// claimStale moves entries idle for longer than ClaimIdle from other consumers to
// this one. They are then replayed through the pending cursor.
func (w *Worker) claimStale(ctx context.Context) int {
	claimed := 0
	start := "0-0"
	for {
		msgs, next, err := w.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   w.cfg.Stream,
			Group:    w.cfg.Group,
			Consumer: w.cfg.Consumer,
			MinIdle:  w.cfg.ClaimIdle,
			Start:    start,
			Count:    100,
		}).Result()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, redis.Nil) {
				w.logger.Error("claim stale job entries", "error", err)
			}
			break
		}
		claimed += len(msgs)
		if next == "" || next == "0-0" {
			break
		}
		start = next
	}
	if claimed > 0 {
		w.logger.Info("claimed stale job entries", "count", claimed)
	}
	return claimed
}

func (w *Worker) ensureGroup(ctx context.Context) error {
	err := w.client.XGroupCreateMkStream(ctx, w.cfg.Stream, w.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

func (w *Worker) dispatch(ctx context.Context, msg redis.XMessage) bool {
	raw, _ := msg.Values[payloadField].(string)
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		w.logger.Error("discarding malformed job entry", "entry_id", msg.ID, "error", err)
		w.park(msg.ID, raw, "", fmt.Errorf("decode envelope: %w", err))
		w.ack(msg.ID)
		return true
	}

	select {
	case <-ctx.Done():
		return false
	case <-w.ctx.Done():
		return false
	case w.deliveries <- delivery{entryID: msg.ID, env: env}:
		return true
	}
}

func (w *Worker) process() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case d, ok := <-w.deliveries:
			if !ok {
				return
			}
			w.handle(d)
		}
	}
}

func (w *Worker) handle(d delivery) {
	ctx := logging.WithLogger(w.ctx, w.logger.With("entry_id", d.entryID))
	ctx = logging.WithJob(ctx, d.env.ID, string(d.env.Kind))
	logger := logging.FromContext(ctx)

	start := time.Now()
	err := w.registry.Dispatch(ctx, d.env)
	switch {
	case err == nil:
		metrics.JobsProcessedTotal.WithLabelValues(string(d.env.Kind), "success").Inc()
		logger.Info("job completed", "duration", time.Since(start))
	case w.ctx.Err() != nil && errors.Is(err, context.Canceled):
		// left pending; replayed by the next run of this consumer or claimed by another
		// once it has been idle for ClaimIdle
		logger.Warn("job interrupted by shutdown", "error", err)
		return
	default:
		metrics.JobsProcessedTotal.WithLabelValues(string(d.env.Kind), "failed").Inc()
		logger.Error("job failed", "error", err, "duration", time.Since(start))
		raw, _ := json.Marshal(d.env)
		w.park(d.entryID, string(raw), d.env.Kind, err)
	}
	w.ack(d.entryID)
}

func (w *Worker) park(entryID, raw string, kind Kind, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := w.client.XAdd(ctx, &redis.XAddArgs{
		Stream: w.FailedStream(),
		Values: map[string]interface{}{
			payloadField: raw,
			"kind":       string(kind),
			"entry_id":   entryID,
			"error":      cause.Error(),
			"failed_at":  time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		w.logger.Error("record failed job", "entry_id", entryID, "error", err)
	}
}

func (w *Worker) ack(entryID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.client.XAck(ctx, w.cfg.Stream, w.cfg.Group, entryID).Err(); err != nil {
		w.logger.Error("acknowledge job entry", "entry_id", entryID, "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
