package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrRedisUnavailable = errors.New("rate limiter backend unavailable")

// Limiter counts hits per key in fixed windows backed by Redis, so the
// budget holds across API replicas.
type Limiter struct {
	redis  redis.UniversalClient
	limit  int
	window time.Duration
	prefix string
}

func New(redisClient redis.UniversalClient, limit int, window time.Duration) *Limiter {
	return &Limiter{
		redis:  redisClient,
		limit:  limit,
		window: window,
		prefix: "ratelimit:",
	}
}

// Allow records one hit for key and reports whether it is still within
// budget. When over budget, retryAfter says how long until the window
// resets.
func (l *Limiter) Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error) {
	redisKey := l.prefix + key

	count, err := l.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: the first hit in a window starts its TTL.
	if count == 1 {
		if err := l.redis.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return false, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if count > int64(l.limit) {
		ttl, err := l.redis.TTL(ctx, redisKey).Result()
		if err != nil || ttl < 0 {
			ttl = l.window
		}

		return false, ttl, nil
	}

	return true, 0, nil
}
