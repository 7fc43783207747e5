package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, window time.Duration, max int) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(rdb, window, max), mr
}

func TestLimiter_AllowsUpToMax(t *testing.T) {
	ctx := context.Background()
	l, _ := newLimiter(t, time.Minute, 3)

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "login:10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := l.Allow(ctx, "login:10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	l, _ := newLimiter(t, time.Minute, 1)

	d, err := l.Allow(ctx, "login:a")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.Allow(ctx, "login:b")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.Allow(ctx, "login:a")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestLimiter_WindowExpires(t *testing.T) {
	ctx := context.Background()
	l, mr := newLimiter(t, time.Minute, 1)

	_, err := l.Allow(ctx, "verify:ip")
	require.NoError(t, err)
	d, err := l.Allow(ctx, "verify:ip")
	require.NoError(t, err)
	require.False(t, d.Allowed)

	mr.FastForward(61 * time.Second)

	d, err = l.Allow(ctx, "verify:ip")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestLimiter_RepairsKeyWithoutTTL(t *testing.T) {
	ctx := context.Background()
	l, mr := newLimiter(t, time.Minute, 1)

	require.NoError(t, mr.Set(keyPrefix+"password:ip", "5"))

	d, err := l.Allow(ctx, "password:ip")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryAfter)
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"password:ip"))
}

func TestLimiter_RedisDown(t *testing.T) {
	ctx := context.Background()
	l, mr := newLimiter(t, time.Minute, 1)
	mr.Close()

	_, err := l.Allow(ctx, "login:ip")
	assert.ErrorIs(t, err, ErrUnavailable)
}
