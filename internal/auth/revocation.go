package auth

import (
	"context"
	"sync"
	"time"
)

// Revocation records a refresh token that must no longer be honoured.
type Revocation struct {
	TokenID   string
	UserID    int64
	ExpiresAt time.Time
}

// RevocationStore persists revoked refresh token identifiers. Entries are additive and
// become irrelevant once the token they describe has expired.
type RevocationStore interface {
	Revoke(ctx context.Context, revocation Revocation) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// NewMemoryRevocationStore returns a RevocationStore backed by an in-memory map.
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{entries: make(map[string]Revocation)}
}

// MemoryRevocationStore implements RevocationStore for tests and local development.
type MemoryRevocationStore struct {
	mu      sync.RWMutex
	entries map[string]Revocation
}

// Revoke records the revocation. Revoking the same token twice is not an error.
func (s *MemoryRevocationStore) Revoke(_ context.Context, revocation Revocation) error {
	s.mu.Lock()
	s.entries[revocation.TokenID] = revocation
	s.mu.Unlock()
	return nil
}

// IsRevoked reports whether the token identifier is on the list.
func (s *MemoryRevocationStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	_, ok := s.entries[tokenID]
	s.mu.RUnlock()
	return ok, nil
}

// PurgeExpired drops entries for tokens that have expired on their own.
func (s *MemoryRevocationStore) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for id, entry := range s.entries {
		if !entry.ExpiresAt.After(now) {
			delete(s.entries, id)
			purged++
		}
	}
	return purged, nil
}

// Len returns the number of recorded revocations.
func (s *MemoryRevocationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
