package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/leo-rullani/backend-video-flix/internal/auth"
	"github.com/leo-rullani/backend-video-flix/internal/db"
)

// PostgresRevocationStore persists revoked refresh tokens to PostgreSQL.
type PostgresRevocationStore struct {
	pool db.Pool
}

// NewPostgresRevocationStore constructs a revocation store backed by PostgreSQL.
func NewPostgresRevocationStore(pool db.Pool) *PostgresRevocationStore {
	return &PostgresRevocationStore{pool: pool}
}

// Revoke records the token id. Recording it twice is not an error.
func (s *PostgresRevocationStore) Revoke(ctx context.Context, revocation auth.Revocation) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO revoked_tokens (jti, user_id, expires_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (jti) DO NOTHING
    `, revocation.TokenID, revocation.UserID, revocation.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("insert revoked token: %w", err)
	}

	return nil
}

// IsRevoked reports whether the token id has been revoked.
func (s *PostgresRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var revoked bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1)`, tokenID).Scan(&revoked); err != nil {
		return false, fmt.Errorf("select revoked token: %w", err)
	}
	return revoked, nil
}

// PurgeExpired removes entries whose tokens have expired on their own.
func (s *PostgresRevocationStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge revoked tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ auth.RevocationStore = (*PostgresRevocationStore)(nil)
