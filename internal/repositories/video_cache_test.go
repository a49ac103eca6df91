package repositories

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubExistence struct {
	known map[int64]bool
	err   error
	calls int
}

func (s *stubExistence) Exists(_ context.Context, id int64) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.known[id], nil
}

func TestCachingVideoLookupCachesHits(t *testing.T) {
	base := &stubExistence{known: map[int64]bool{7: true}}
	cache := NewCachingVideoLookup(base, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		exists, err := cache.Exists(ctx, 7)
		if err != nil || !exists {
			t.Fatalf("expected video 7 to exist, got %v %v", exists, err)
		}
	}
	if base.calls != 1 {
		t.Fatalf("expected base called once got %d", base.calls)
	}

	cache.Forget(7)
	if _, err := cache.Exists(ctx, 7); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if base.calls != 2 {
		t.Fatalf("expected lookup after forget, got %d calls", base.calls)
	}
}

func TestCachingVideoLookupDoesNotCacheMisses(t *testing.T) {
	base := &stubExistence{known: map[int64]bool{}}
	cache := NewCachingVideoLookup(base, time.Minute)
	ctx := context.Background()

	if exists, _ := cache.Exists(ctx, 8); exists {
		t.Fatal("expected miss")
	}
	base.known[8] = true
	if exists, _ := cache.Exists(ctx, 8); !exists {
		t.Fatal("expected new video to be visible immediately")
	}
}

func TestCachingVideoLookupExpiry(t *testing.T) {
	base := &stubExistence{known: map[int64]bool{1: true}}
	cache := NewCachingVideoLookup(base, time.Millisecond)

	if _, err := cache.Exists(context.Background(), 1); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := cache.Exists(context.Background(), 1); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if base.calls != 2 {
		t.Fatalf("expected cache miss after expiry got %d calls", base.calls)
	}
}

func TestCachingVideoLookupErrors(t *testing.T) {
	base := &stubExistence{err: errors.New("db down")}
	cache := NewCachingVideoLookup(base, 0)
	if cache.ttl <= 0 {
		t.Fatalf("expected ttl to default positive got %v", cache.ttl)
	}
	if _, err := cache.Exists(context.Background(), 1); err == nil {
		t.Fatal("expected error to propagate")
	}
}
