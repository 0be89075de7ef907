package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter budgets. A zero Max disables that limiter.
type Config struct {
	MaxLoginAttempts int
	LoginWindow      time.Duration
	MaxRefreshCalls  int
	RefreshWindow    time.Duration
}

// Limiter enforces the login and refresh budgets.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a Limiter backed by redisClient.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

func loginKey(email, ip string) string {
	return "rl:login:" + strings.ToLower(strings.TrimSpace(email)) + "|" + ip
}

func refreshKey(ip string) string {
	return "rl:refresh:" + ip
}

// CheckLogin fails with ErrRateLimited when the email and IP pair has used
// its failure budget for the current window. It does not count the attempt.
func (l *Limiter) CheckLogin(ctx context.Context, email, ip string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}

	count, err := l.redis.Get(ctx, loginKey(email, ip)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(l.config.MaxLoginAttempts) {
		return ErrRateLimited
	}
	return nil
}

// RecordLoginFailure counts one failed login.
func (l *Limiter) RecordLoginFailure(ctx context.Context, email, ip string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	_, err := l.incrementWithTTL(ctx, loginKey(email, ip), l.config.LoginWindow)
	return err
}

// ResetLogin clears the failure counter after a successful login.
func (l *Limiter) ResetLogin(ctx context.Context, email, ip string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	if err := l.redis.Del(ctx, loginKey(email, ip)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// CheckRefresh counts one refresh call from ip and fails once the window's
// budget is exceeded. Callers without an IP are not throttled.
func (l *Limiter) CheckRefresh(ctx context.Context, ip string) error {
	if l.config.MaxRefreshCalls <= 0 || ip == "" {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, refreshKey(ip), l.config.RefreshWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRefreshCalls) {
		return ErrRateLimited
	}
	return nil
}

// incrementWithTTL creates the window key with its TTL and increments it in
// one MULTI, so a counter never exists without an expiry.
func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, ttl)
		incr = pipe.Incr(ctx, key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return incr.Val(), nil
}
