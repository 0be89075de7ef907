package stores

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRedisUnavailable wraps every transport or server failure.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrNoExpiry is returned when a write is attempted without a positive TTL.
	ErrNoExpiry = errors.New("ephemeral entry requires a positive ttl")
)

// KV is the ephemeral key-value surface the flows build on. Absent keys are
// reported through ok=false, never as an error.
type KV struct {
	redis redis.UniversalClient
}

// NewKV wraps a Redis client.
func NewKV(redisClient redis.UniversalClient) *KV {
	return &KV{redis: redisClient}
}

// Get returns the value stored under key.
func (s *KV) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return value, true, nil
}

// Set writes value under key, replacing any previous value.
func (s *KV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := checkTTL(ttl); err != nil {
		return err
	}
	if err := s.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// SetNX writes value only when key is absent and reports whether it did.
func (s *KV) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := checkTTL(ttl); err != nil {
		return false, err
	}
	ok, err := s.redis.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ok, nil
}

// Delete removes keys. Missing keys are not an error.
func (s *KV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// TTL granularity is whole seconds.
func checkTTL(ttl time.Duration) error {
	if ttl < time.Second {
		return ErrNoExpiry
	}
	return nil
}

// NormalizeEmail is the canonical form used for every email-keyed record.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
