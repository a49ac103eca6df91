package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
	jobIDKey
	spanKey
)

// WithLogger stores the provided logger on the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the request or job scoped logger, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.Default()
	}
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// WithRequestID stores the id of the HTTP request being served.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the id set by WithRequestID, if any.
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// WithJob marks ctx as executing the background job id and tags the context logger
// with it, so handlers do not need to thread the id through by hand.
func WithJob(ctx context.Context, jobID, kind string) context.Context {
	if ctx == nil || jobID == "" {
		return ctx
	}
	logger := FromContext(ctx).With(slog.String("job_id", jobID))
	if kind != "" {
		logger = logger.With(slog.String("kind", kind))
	}
	ctx = context.WithValue(ctx, jobIDKey, jobID)
	return WithLogger(ctx, logger)
}

// JobIDFromContext returns the id set by WithJob, if any.
func JobIDFromContext(ctx context.Context) string {
	return stringValue(ctx, jobIDKey)
}

// CorrelationID identifies the unit of work behind ctx: the request id when serving
// HTTP, otherwise the job id.
func CorrelationID(ctx context.Context) string {
	if id := RequestIDFromContext(ctx); id != "" {
		return id
	}
	return JobIDFromContext(ctx)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
