package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/atelier/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLimiter(t *testing.T, cfg config.RateLimitConfig) (*ActionLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter, err := newActionLimiter(client, cfg, zap.NewNop())
	require.NoError(t, err)
	return limiter, mr
}

func TestAllowActionExhaustsBurst(t *testing.T) {
	limiter, _ := newTestLimiter(t, config.RateLimitConfig{ActionsPerMinute: 1, Burst: 2, SessionLockTTL: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := limiter.AllowAction(ctx, "42")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	res, err := limiter.AllowAction(ctx, "42")
	require.ErrorIs(t, err, ErrRateLimited)
	assert.False(t, res.Allowed)
	assert.Positive(t, res.RetryAfter)

	other, err := limiter.AllowAction(ctx, "43")
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestAllowActionFailsOpenWhenRedisDown(t *testing.T) {
	limiter, mr := newTestLimiter(t, config.RateLimitConfig{ActionsPerMinute: 1, Burst: 1, SessionLockTTL: time.Minute})
	mr.Close()

	res, err := limiter.AllowAction(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestDisabledLimiterAllowsEverything(t *testing.T) {
	limiter := &ActionLimiter{log: zap.NewNop()}
	require.False(t, limiter.Enabled())

	res, err := limiter.AllowAction(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	release, err := limiter.LockSession(context.Background(), "7")
	require.NoError(t, err)
	release()
}

func TestLockSessionIsExclusive(t *testing.T) {
	limiter, mr := newTestLimiter(t, config.RateLimitConfig{ActionsPerMinute: 60, Burst: 5, SessionLockTTL: 30 * time.Second})
	ctx := context.Background()

	release, err := limiter.LockSession(ctx, "7")
	require.NoError(t, err)
	assert.True(t, mr.Exists("atelier:chat:session:7"))

	_, err = limiter.LockSession(ctx, "7")
	require.ErrorIs(t, err, ErrSessionBusy)

	release()
	assert.False(t, mr.Exists("atelier:chat:session:7"))

	again, err := limiter.LockSession(ctx, "7")
	require.NoError(t, err)
	again()
}

func TestLockSessionExpires(t *testing.T) {
	limiter, mr := newTestLimiter(t, config.RateLimitConfig{ActionsPerMinute: 60, Burst: 5, SessionLockTTL: 30 * time.Second})
	ctx := context.Background()

	_, err := limiter.LockSession(ctx, "9")
	require.NoError(t, err)

	mr.FastForward(31 * time.Second)
	release, err := limiter.LockSession(ctx, "9")
	require.NoError(t, err)
	release()
}

func TestReleaseKeepsForeignLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	locks, err := newSessionLocks(client, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	lease, err := locks.acquire(ctx, "k")
	require.NoError(t, err)
	key := "atelier:chat:session:k"

	require.NoError(t, locks.release(ctx, &sessionLease{key: key, owner: "someone-else"}))
	assert.True(t, mr.Exists(key))

	require.NoError(t, locks.release(ctx, lease))
	assert.False(t, mr.Exists(key))
}

func TestActionBucketRejectsBadConfig(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	_, err := newActionBucket(client, 0, 2)
	assert.Error(t, err)
	_, err = newActionBucket(client, 60, 0)
	assert.Error(t, err)
	_, err = newSessionLocks(client, 0)
	assert.Error(t, err)
}

func TestActionBucketRefills(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	bucket, err := newActionBucket(client, 60, 1)
	require.NoError(t, err)
	ctx := context.Background()

	res, err := bucket.take(ctx, "42")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)

	res, err = bucket.take(ctx, "42")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Positive(t, res.RetryAfter)
	assert.LessOrEqual(t, res.RetryAfter, time.Second)
}
