package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const defaultRevocationPrefix = "videoflix:revoked:"

// redisKV is the subset of the go-redis client used by RedisRevocationStore.
type redisKV interface {
	SetArgs(ctx context.Context, key string, value interface{}, a redis.SetArgs) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisRevocationStore keeps revoked token ids as keys that expire together with the token.
type RedisRevocationStore struct {
	client redisKV
	prefix string
	now    func() time.Time
}

// NewRedisRevocationStore returns a RevocationStore backed by Redis.
func NewRedisRevocationStore(client redisKV, prefix string) *RedisRevocationStore {
	if prefix == "" {
		prefix = defaultRevocationPrefix
	}
	return &RedisRevocationStore{client: client, prefix: prefix, now: time.Now}
}

// Revoke stores the token id until the token would have expired anyway.
func (s *RedisRevocationStore) Revoke(ctx context.Context, revocation Revocation) error {
	expires := revocation.ExpiresAt
	if !expires.After(s.now()) {
		return nil
	}
	err := s.client.SetArgs(ctx, s.prefix+revocation.TokenID, strconv.FormatInt(revocation.UserID, 10), redis.SetArgs{
		ExpireAt: expires,
	}).Err()
	if err != nil {
		return fmt.Errorf("redis set revocation: %w", err)
	}
	return nil
}

// IsRevoked reports whether a key for the token id exists.
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists revocation: %w", err)
	}
	return n > 0, nil
}

// PurgeExpired is a no-op: Redis drops the keys on expiry.
func (s *RedisRevocationStore) PurgeExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
