package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-auth/internal/model"
)

func TestTokenDenylist(t *testing.T) {
	mr, rc := newTestRedis(t)
	cache := NewTokenDenylistCache(rc)
	ctx := context.Background()

	revoked, err := cache.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, cache.Revoke(ctx, "jti-1", time.Hour))

	revoked, err = cache.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// Entry falls out with the token's own lifetime.
	mr.FastForward(time.Hour + time.Second)
	revoked, err = cache.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestTokenDenylistExpiredTokenIsNoop(t *testing.T) {
	_, rc := newTestRedis(t)
	cache := NewTokenDenylistCache(rc)
	ctx := context.Background()

	require.NoError(t, cache.Revoke(ctx, "jti-old", -time.Minute))

	revoked, err := cache.IsRevoked(ctx, "jti-old")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestGeoCacheStore(t *testing.T) {
	mr, rc := newTestRedis(t)
	cache := NewGeoCacheStore(rc)
	ctx := context.Background()

	loc, ok, err := cache.Get(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, loc)

	require.NoError(t, cache.Set(ctx, "1.2.3.4", &model.Location{City: "Tehran", Country: "Iran"}, 24*time.Hour))

	loc, ok, err = cache.Get(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Tehran", loc.City)
	assert.Equal(t, "Iran", loc.Country)

	mr.FastForward(25 * time.Hour)
	_, ok, err = cache.Get(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok)
}
