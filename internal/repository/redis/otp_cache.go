package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storefront-auth/internal/client"
	"storefront-auth/internal/util"
)

const otpPrefix = "otp:"

// OTPCache holds the live challenge secret per phone. A plain SET means a
// new request overwrites the previous challenge, so at most one is live.
type OTPCache struct {
	client *client.RedisClient
}

func NewOTPCache(client *client.RedisClient) *OTPCache {
	return &OTPCache{client: client}
}

func (c *OTPCache) SetSecret(ctx context.Context, phone, secret string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key := otpPrefix + phone
	if err := c.client.Set(ctx, key, secret, ttl); err != nil {
		util.Error("Failed to store OTP challenge",
			zap.String("phone", util.MaskPhone(phone)),
			zap.Duration("ttl", ttl),
			zap.Error(err))
		return fmt.Errorf("failed to store OTP challenge: %w", err)
	}

	util.Debug("OTP challenge stored",
		zap.String("phone", util.MaskPhone(phone)),
		zap.Duration("ttl", ttl))
	return nil
}

// GetSecret returns ("", nil) when there is no live challenge; an expired
// challenge is indistinguishable from one that never existed.
func (c *OTPCache) GetSecret(ctx context.Context, phone string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key := otpPrefix + phone
	secret, err := c.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, client.ErrKeyNotFound) {
			return "", nil
		}
		util.Error("Failed to read OTP challenge",
			zap.String("phone", util.MaskPhone(phone)),
			zap.Error(err))
		return "", fmt.Errorf("failed to read OTP challenge: %w", err)
	}

	return secret, nil
}

func (c *OTPCache) DeleteSecret(ctx context.Context, phone string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key := otpPrefix + phone
	if err := c.client.Del(ctx, key); err != nil {
		util.Error("Failed to delete OTP challenge",
			zap.String("phone", util.MaskPhone(phone)),
			zap.Error(err))
		return fmt.Errorf("failed to delete OTP challenge: %w", err)
	}

	util.Debug("OTP challenge deleted", zap.String("phone", util.MaskPhone(phone)))
	return nil
}
