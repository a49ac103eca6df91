package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/leo-rullani/backend-video-flix/internal/logging"
	"github.com/leo-rullani/backend-video-flix/internal/metrics"
)

const probeTimeout = 2 * time.Second

// Submitter hands jobs to whatever executes them.
type Submitter interface {
	Submit(ctx context.Context, job Job) error
}

// StreamClient is the subset of the go-redis client used by the queue.
type StreamClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	XAutoClaim(ctx context.Context, a *redis.XAutoClaimArgs) *redis.XAutoClaimCmd
}

// InlineSubmitter runs jobs synchronously on the caller's goroutine.
type InlineSubmitter struct {
	Registry *Registry
}

// NewInlineSubmitter constructs an InlineSubmitter dispatching through registry.
func NewInlineSubmitter(registry *Registry) *InlineSubmitter {
	return &InlineSubmitter{Registry: registry}
}

// Submit executes the job before returning.
func (s *InlineSubmitter) Submit(ctx context.Context, job Job) error {
	env, err := NewEnvelope(job)
	if err != nil {
		return err
	}
	metrics.JobsSubmittedTotal.WithLabelValues(string(env.Kind), "inline").Inc()

	ctx = logging.WithJob(ctx, env.ID, string(env.Kind))
	logging.FromContext(ctx).Info("running job inline")

	if err := s.Registry.Dispatch(ctx, env); err != nil {
		metrics.JobsProcessedTotal.WithLabelValues(string(env.Kind), "failed").Inc()
		return fmt.Errorf("run %s job %s: %w", env.Kind, env.ID, err)
	}
	metrics.JobsProcessedTotal.WithLabelValues(string(env.Kind), "success").Inc()
	return nil
}

// QueueSubmitter appends jobs to a Redis stream consumed by `videoflix worker`.
type QueueSubmitter struct {
	client StreamClient
	stream string
}

// NewQueueSubmitter constructs a QueueSubmitter writing to stream.
func NewQueueSubmitter(client StreamClient, stream string) *QueueSubmitter {
	if strings.TrimSpace(stream) == "" {
		stream = DefaultStream
	}
	return &QueueSubmitter{client: client, stream: stream}
}

// Submit enqueues the job and returns once Redis has accepted it.
func (s *QueueSubmitter) Submit(ctx context.Context, job Job) error {
	if s.client == nil {
		return ErrSubmitterClosed
	}
	env, err := NewEnvelope(job)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	entryID, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{"payload": string(data)},
	}).Result()
	if err != nil {
		return fmt.Errorf("enqueue %s job: %w", env.Kind, err)
	}

	metrics.JobsSubmittedTotal.WithLabelValues(string(env.Kind), "queue").Inc()
	logging.FromContext(ctx).Info("job enqueued", "job_id", env.ID, "kind", env.Kind, "stream", s.stream, "entry_id", entryID)
	return nil
}

// Select probes Redis once at startup and returns a QueueSubmitter when it answers,
// otherwise an InlineSubmitter. A nil client always selects inline execution.
func Select(ctx context.Context, client StreamClient, stream string, registry *Registry, logger *slog.Logger) Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		logger.Info("no job queue configured, running jobs inline")
		return NewInlineSubmitter(registry)
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := client.Ping(probeCtx).Err(); err != nil {
		logger.Warn("job queue unreachable, running jobs inline", "error", err)
		return NewInlineSubmitter(registry)
	}

	logger.Info("job queue available", "stream", stream)
	return NewQueueSubmitter(client, stream)
}
