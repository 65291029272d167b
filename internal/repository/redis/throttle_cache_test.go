package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-auth/internal/client"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *client.RedisClient) {
	t.Helper()

	mr := miniredis.RunT(t)
	rc := &client.RedisClient{
		Client: goredis.NewClient(&goredis.Options{Addr: mr.Addr()}),
	}
	t.Cleanup(func() { _ = rc.Client.Close() })

	return mr, rc
}

func TestThrottleCacheAllowsUpToMax(t *testing.T) {
	_, rc := newTestRedis(t)
	cache := NewThrottleCache(rc)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		allowed, count, err := cache.IncrementAndCheck(ctx, "otp_attempts:09123456789", 15*time.Minute, 3)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, i, count)
	}
}

func TestThrottleCacheCountsThenRejectsCrossingRequest(t *testing.T) {
	_, rc := newTestRedis(t)
	cache := NewThrottleCache(rc)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := cache.IncrementAndCheck(ctx, "k", time.Minute, 3)
		require.NoError(t, err)
	}

	// Request 4 crosses the cap: counted, then rejected.
	allowed, count, err := cache.IncrementAndCheck(ctx, "k", time.Minute, 3)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, int64(4), count)

	// Request 5 is rejected without another increment.
	allowed, count, err = cache.IncrementAndCheck(ctx, "k", time.Minute, 3)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, int64(4), count)
}

func TestThrottleCacheWindowExpiry(t *testing.T) {
	mr, rc := newTestRedis(t)
	cache := NewThrottleCache(rc)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, _, err := cache.IncrementAndCheck(ctx, "k", time.Minute, 3)
		require.NoError(t, err)
	}

	mr.FastForward(61 * time.Second)

	allowed, count, err := cache.IncrementAndCheck(ctx, "k", time.Minute, 3)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int64(1), count)
}

func TestThrottleCacheReset(t *testing.T) {
	_, rc := newTestRedis(t)
	cache := NewThrottleCache(rc)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, _, err := cache.IncrementAndCheck(ctx, "k", time.Minute, 3)
		require.NoError(t, err)
	}

	require.NoError(t, cache.Reset(ctx, "k"))

	allowed, count, err := cache.IncrementAndCheck(ctx, "k", time.Minute, 3)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int64(1), count)
}

func TestThrottleCacheConcurrentIncrements(t *testing.T) {
	_, rc := newTestRedis(t)
	cache := NewThrottleCache(rc)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	allowedCount := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, _, err := cache.IncrementAndCheck(ctx, "concurrent", time.Minute, 5)
			assert.NoError(t, err)
			allowedCount <- allowed
		}()
	}
	wg.Wait()
	close(allowedCount)

	passed := 0
	for allowed := range allowedCount {
		if allowed {
			passed++
		}
	}
	assert.Equal(t, 5, passed)
}

func TestThrottleCacheStoreUnreachable(t *testing.T) {
	mr, rc := newTestRedis(t)
	cache := NewThrottleCache(rc)
	mr.Close()

	allowed, _, err := cache.IncrementAndCheck(context.Background(), "k", time.Minute, 3)
	assert.Error(t, err)
	assert.False(t, allowed, "store failures must deny")
}
