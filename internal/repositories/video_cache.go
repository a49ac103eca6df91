package repositories

import (
	"context"
	"sync"
	"time"
)

// VideoExistence is the lookup wrapped by CachingVideoLookup.
type VideoExistence interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type existenceEntry struct {
	exists  bool
	expires time.Time
}

// CachingVideoLookup caches positive existence checks for the delivery path, where a
// player requests many segments of the same video in a short time.
type CachingVideoLookup struct {
	base VideoExistence
	ttl  time.Duration

	mu    sync.RWMutex
	items map[int64]existenceEntry
}

// NewCachingVideoLookup returns a lookup that caches hits for the provided TTL.
func NewCachingVideoLookup(base VideoExistence, ttl time.Duration) *CachingVideoLookup {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachingVideoLookup{
		base:  base,
		ttl:   ttl,
		items: make(map[int64]existenceEntry),
	}
}

// Exists returns a cached answer when available, otherwise it delegates to the
// underlying lookup. Misses are not cached so new uploads are visible immediately.
func (c *CachingVideoLookup) Exists(ctx context.Context, id int64) (bool, error) {
	now := time.Now()

	c.mu.RLock()
	entry, ok := c.items[id]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.exists, nil
	}

	exists, err := c.base.Exists(ctx, id)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	if exists {
		c.items[id] = existenceEntry{exists: true, expires: now.Add(c.ttl)}
	} else {
		delete(c.items, id)
	}
	c.mu.Unlock()

	return exists, nil
}

// Forget drops the cached entry for a deleted video.
func (c *CachingVideoLookup) Forget(id int64) {
	c.mu.Lock()
	delete(c.items, id)
	c.mu.Unlock()
}
