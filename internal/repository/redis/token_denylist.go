package redis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storefront-auth/internal/client"
	"storefront-auth/internal/util"
)

const denylistPrefix = "denylist:"

// TokenDenylistCache stores revoked refresh-token IDs. Entries expire with
// the token itself, so the set never needs sweeping.
type TokenDenylistCache struct {
	client *client.RedisClient
}

func NewTokenDenylistCache(client *client.RedisClient) *TokenDenylistCache {
	return &TokenDenylistCache{client: client}
}

func (c *TokenDenylistCache) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if ttl <= 0 {
		// Token already expired; nothing to deny.
		return nil
	}

	key := denylistPrefix + jti
	if err := c.client.Set(ctx, key, "revoked", ttl); err != nil {
		util.Error("Failed to denylist token",
			zap.String("jti", jti),
			zap.Error(err))
		return fmt.Errorf("failed to denylist token: %w", err)
	}

	util.Debug("Token denylisted", zap.String("jti", jti), zap.Duration("ttl", ttl))
	return nil
}

func (c *TokenDenylistCache) IsRevoked(ctx context.Context, jti string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key := denylistPrefix + jti
	exists, err := c.client.Exists(ctx, key)
	if err != nil {
		util.Error("Failed to check token denylist",
			zap.String("jti", jti),
			zap.Error(err))
		return false, fmt.Errorf("failed to check token denylist: %w", err)
	}

	return exists, nil
}
