package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func key(subject, action string) string {
	return fmt.Sprintf("rate_limit:%s:%s", action, subject)
}

// CheckAndSet claims the (subject, action) slot for window. It reports false
// while a previous claim is still live. A nil client always allows.
func CheckAndSet(ctx context.Context, rdb *redis.Client, subject, action string, window time.Duration) (bool, error) {
	if rdb == nil || window <= 0 {
		return true, nil
	}

	wasSet, err := rdb.SetNX(ctx, key(subject, action), "locked", window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit in redis: %w", err)
	}

	return wasSet, nil
}

func TTL(ctx context.Context, rdb *redis.Client, subject, action string) (time.Duration, error) {
	if rdb == nil {
		return 0, nil
	}
	return rdb.TTL(ctx, key(subject, action)).Result()
}

func Clear(ctx context.Context, rdb *redis.Client, subject, action string) error {
	if rdb == nil {
		return nil
	}
	_, err := rdb.Del(ctx, key(subject, action)).Result()
	return err
}

// Guard is a per-subject lock for one action, backed by CheckAndSet.
type Guard interface {
	Claim(ctx context.Context, subject string) (bool, error)
	// RetryAfter reports how long the subject stays locked; zero when unknown.
	RetryAfter(ctx context.Context, subject string) time.Duration
	Release(ctx context.Context, subject string) error
}

type redisGuard struct {
	rdb    *redis.Client
	action string
	window time.Duration
}

func NewGuard(rdb *redis.Client, action string, window time.Duration) Guard {
	return &redisGuard{rdb: rdb, action: action, window: window}
}

func (g *redisGuard) Claim(ctx context.Context, subject string) (bool, error) {
	return CheckAndSet(ctx, g.rdb, subject, g.action, g.window)
}

func (g *redisGuard) RetryAfter(ctx context.Context, subject string) time.Duration {
	ttl, err := TTL(ctx, g.rdb, subject, g.action)
	if err != nil || ttl < 0 {
		return 0
	}
	return ttl
}

func (g *redisGuard) Release(ctx context.Context, subject string) error {
	return Clear(ctx, g.rdb, subject, g.action)
}
