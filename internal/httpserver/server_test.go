package httpserver

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"
)

func TestNewAppliesOptions(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(8000, http.NotFoundHandler(), WithWriteTimeout(time.Minute), WithErrorLogger(logger))

	if srv.Addr() != ":8000" {
		t.Fatalf("unexpected addr %q", srv.Addr())
	}
	if srv.inner.WriteTimeout != time.Minute {
		t.Fatalf("unexpected write timeout %v", srv.inner.WriteTimeout)
	}
	if srv.inner.ErrorLog == nil {
		t.Fatal("expected error logger to be installed")
	}
	if srv.inner.ReadHeaderTimeout == 0 {
		t.Fatal("expected a header read timeout")
	}
}

func TestNewDefaultsToUnboundedWrites(t *testing.T) {
	srv := New(0, http.NotFoundHandler())
	if srv.inner.WriteTimeout != 0 {
		t.Fatalf("expected no write timeout, got %v", srv.inner.WriteTimeout)
	}
}
