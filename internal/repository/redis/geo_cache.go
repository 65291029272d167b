package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storefront-auth/internal/client"
	"storefront-auth/internal/model"
	"storefront-auth/internal/util"
)

const geoPrefix = "geoip:"

// GeoCacheStore caches resolved IP locations so the upstream geolocation
// service is asked at most once per IP per TTL.
type GeoCacheStore struct {
	client *client.RedisClient
}

func NewGeoCacheStore(client *client.RedisClient) *GeoCacheStore {
	return &GeoCacheStore{client: client}
}

func (c *GeoCacheStore) Get(ctx context.Context, ip string) (*model.Location, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	raw, err := c.client.Get(ctx, geoPrefix+ip)
	if err != nil {
		if errors.Is(err, client.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read geo cache: %w", err)
	}

	var loc model.Location
	if err := json.Unmarshal([]byte(raw), &loc); err != nil {
		util.Warn("Corrupt geo cache entry",
			zap.String("ip", ip),
			zap.Error(err))
		return nil, false, nil
	}

	return &loc, true, nil
}

func (c *GeoCacheStore) Set(ctx context.Context, ip string, loc *model.Location, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	raw, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("failed to encode location: %w", err)
	}

	if err := c.client.Set(ctx, geoPrefix+ip, raw, ttl); err != nil {
		return fmt.Errorf("failed to write geo cache: %w", err)
	}

	return nil
}
