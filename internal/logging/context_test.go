package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func captureLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	return entry
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Fatal("expected default logger")
	}
	if WithLogger(context.Background(), nil) != context.Background() {
		t.Fatal("nil logger should leave the context untouched")
	}
}

func TestWithJobTagsLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), captureLogger(&buf))
	ctx = WithJob(ctx, "job-1", "transcode")

	if JobIDFromContext(ctx) != "job-1" {
		t.Fatalf("unexpected job id %q", JobIDFromContext(ctx))
	}
	FromContext(ctx).Info("hello")

	entry := lastEntry(t, &buf)
	if entry["job_id"] != "job-1" || entry["kind"] != "transcode" {
		t.Fatalf("expected job attributes, got %v", entry)
	}
}

func TestCorrelationIDPrefersRequest(t *testing.T) {
	ctx := WithJob(context.Background(), "job-1", "")
	if CorrelationID(ctx) != "job-1" {
		t.Fatalf("expected job id, got %q", CorrelationID(ctx))
	}
	ctx = WithRequestID(ctx, "req-1")
	if CorrelationID(ctx) != "req-1" {
		t.Fatalf("expected request id, got %q", CorrelationID(ctx))
	}
	if CorrelationID(context.Background()) != "" {
		t.Fatal("expected empty correlation id")
	}
}

func TestSpanNestingAndOutcome(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), captureLogger(&buf))
	ctx = WithRequestID(ctx, "req-9")

	ctx, outer := StartSpan(ctx, "hls.transcode")
	_, inner := StartSpan(ctx, "hls.rendition.720p")
	if inner.Name() != "hls.transcode > hls.rendition.720p" {
		t.Fatalf("unexpected span name %q", inner.Name())
	}

	inner.Fail(errors.New("boom"))
	inner.End()
	entry := lastEntry(t, &buf)
	if entry["msg"] != "span failed" || entry["error"] != "boom" {
		t.Fatalf("expected failed span entry, got %v", entry)
	}
	if entry["parent_span_id"] != outer.id || entry["correlation_id"] != "req-9" {
		t.Fatalf("expected parent and correlation ids, got %v", entry)
	}

	outer.Fail(nil)
	outer.End()
	entry = lastEntry(t, &buf)
	if entry["msg"] != "span finished" || entry["span"] != "hls.transcode" {
		t.Fatalf("expected finished span entry, got %v", entry)
	}
}

func TestNilSpanIsSafe(t *testing.T) {
	var span *Span
	span.Fail(errors.New("ignored"))
	span.End()
	if span.Name() != "" {
		t.Fatal("expected empty name")
	}
}
