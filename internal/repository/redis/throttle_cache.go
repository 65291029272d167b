package redis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storefront-auth/internal/client"
	"storefront-auth/internal/util"
)

// Window accounting:
//   - requests 1..max increment and pass
//   - the request that crosses the cap is counted, then rejected
//   - anything after that is rejected without another increment
// The EXPIRE is refreshed on every counted request, so a hammering client
// keeps its own window open.
const incrementAndCheckScript = `
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local max = tonumber(ARGV[2])
if current > max then
    return {0, current}
end
local count = redis.call('INCR', KEYS[1])
redis.call('EXPIRE', KEYS[1], ARGV[1])
if count > max then
    return {0, count}
end
return {1, count}
`

type ThrottleCache struct {
	client *client.RedisClient
}

func NewThrottleCache(client *client.RedisClient) *ThrottleCache {
	return &ThrottleCache{client: client}
}

// IncrementAndCheck atomically counts a request against the window for key
// and reports whether it is allowed. Errors mean the store is unreachable;
// callers must treat that as a denial.
func (c *ThrottleCache) IncrementAndCheck(ctx context.Context, key string, window time.Duration, max int64) (bool, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := c.client.Eval(ctx, incrementAndCheckScript, []string{key},
		int(window.Seconds()), max)
	if err != nil {
		util.Error("Failed to execute throttle check",
			zap.String("key", key),
			zap.Int64("max", max),
			zap.Duration("window", window),
			zap.Error(err))
		return false, 0, fmt.Errorf("failed to execute throttle check: %w", err)
	}

	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) != 2 {
		return false, 0, fmt.Errorf("unexpected result format from throttle script")
	}

	allowed := resultSlice[0].(int64) == 1
	count := resultSlice[1].(int64)

	util.Debug("Throttle check",
		zap.String("key", key),
		zap.Bool("allowed", allowed),
		zap.Int64("count", count),
		zap.Int64("max", max))

	return allowed, count, nil
}

// Reset clears the counter, reopening the window immediately.
func (c *ThrottleCache) Reset(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.client.Del(ctx, key); err != nil {
		util.Error("Failed to reset throttle counter",
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("failed to reset throttle counter: %w", err)
	}

	return nil
}
