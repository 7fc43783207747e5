// Package ratelimit implements fixed-window request limits on Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps Redis failures. Callers fail open on it.
var ErrUnavailable = errors.New("rate limiter unavailable")

const keyPrefix = "prakriti:rl:"

// Decision is the result of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts hits per key in fixed windows.
type Limiter struct {
	redis  redis.Cmdable
	window time.Duration
	max    int
}

func New(client redis.Cmdable, window time.Duration, maxRequests int) *Limiter {
	return &Limiter{
		redis:  client,
		window: window,
		max:    maxRequests,
	}
}

// Allow records one hit for key and reports whether it fits in the current window.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	k := keyPrefix + key

	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// The first hit opens the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, k, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	if count <= int64(l.max) {
		return Decision{Allowed: true, Remaining: l.max - int(count)}, nil
	}

	ttl, err := l.redis.TTL(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ttl < 0 {
		// A key left without expiry would block forever.
		if err := l.redis.Expire(ctx, k, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		ttl = l.window
	}

	return Decision{Allowed: false, RetryAfter: ttl}, nil
}
