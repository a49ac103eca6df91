package logging

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Span times one step of a request or job, such as a transcode or a single rendition.
// Spans nest: a span started from a context carrying another span records it as its
// parent and its name is prefixed with the parent's.
type Span struct {
	id     string
	name   string
	base   *slog.Logger
	logger *slog.Logger
	start  time.Time
	err    error
}

// StartSpan derives a child context whose logger carries the span attributes.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	span := &Span{
		id:    uuid.NewString(),
		name:  name,
		start: time.Now(),
	}

	var logger *slog.Logger
	if parent, ok := ctx.Value(spanKey).(*Span); ok && parent != nil {
		span.name = joinSpanName(parent.name, name)
		span.base = parent.base
		logger = span.base.With(slog.String("parent_span_id", parent.id))
	} else {
		span.base = FromContext(ctx)
		if id := CorrelationID(ctx); id != "" {
			span.base = span.base.With(slog.String("correlation_id", id))
		}
		logger = span.base
	}
	span.logger = logger.With(
		slog.String("span_id", span.id),
		slog.String("span", span.name),
	)

	ctx = context.WithValue(ctx, spanKey, span)
	return WithLogger(ctx, span.logger), span
}

// Name returns the fully qualified span name.
func (s *Span) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// Fail records err as the outcome of the span. The last non-nil error wins.
func (s *Span) Fail(err error) {
	if s == nil || err == nil {
		return
	}
	s.err = err
}

// End emits a single log entry with the span duration and outcome.
func (s *Span) End() {
	if s == nil {
		return
	}
	elapsed := slog.Duration("duration", time.Since(s.start))
	if s.err != nil {
		s.logger.Warn("span failed", elapsed, slog.Any("error", s.err))
		return
	}
	s.logger.Debug("span finished", elapsed)
}

func joinSpanName(parent, child string) string {
	if parent == "" || strings.HasPrefix(child, parent+".") {
		return child
	}
	return parent + " > " + child
}
