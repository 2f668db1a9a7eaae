// Package ratelimit implements middleware.RateLimiter on Redis and in memory.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/natours/pkg/middleware"
)

const keyPrefix = "ratelimit:"

// FixedWindow allows limit hits per key in each window-aligned interval.
// Counters live in Redis, so every API instance shares them.
type FixedWindow struct {
	client redis.Cmdable
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewFixedWindow creates a Redis-backed limiter.
func NewFixedWindow(client redis.Cmdable, limit int, window time.Duration) *FixedWindow {
	return &FixedWindow{
		client: client,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow counts one hit for key.
func (l *FixedWindow) Allow(ctx context.Context, key string) (middleware.RateDecision, error) {
	now := l.now()
	slot := now.UnixNano() / int64(l.window)
	resetIn := time.Duration((slot+1)*int64(l.window) - now.UnixNano())
	redisKey := keyPrefix + key + ":" + strconv.FormatInt(slot, 10)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.Expire(ctx, redisKey, l.window)
		return nil
	})
	if err != nil {
		return middleware.RateDecision{}, fmt.Errorf("redis incr rate limit: %w", err)
	}

	count := int(incr.Val())
	return middleware.RateDecision{
		Allowed:   count <= l.limit,
		Limit:     l.limit,
		Remaining: max(l.limit-count, 0),
		ResetIn:   resetIn,
	}, nil
}
