// Package cache wraps redis for short-lived read-side caching. Losing the
// cache is always safe; callers fall through to storage on any miss/error.
package cache

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// RedisCache is a thin JSON cache on a shared redis client.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a cache over an existing client. A nil client
// yields a disabled cache (all gets miss, all sets succeed silently).
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// GetJSON loads a cached value into dest. Returns false on miss or any
// redis/unmarshal error.
func (c *RedisCache) GetJSON(ctx context.Context, key string, dest any) bool {
	if c.client == nil {
		return false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

// SetJSON stores value under key with a TTL, best-effort.
func (c *RedisCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	if c.client == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.client.Set(ctx, key, data, ttl)
}

// DeletePattern drops all keys matching a glob pattern, best-effort.
// Used to invalidate a user's availability cache after sync writes.
func (c *RedisCache) DeletePattern(ctx context.Context, pattern string) {
	if c.client == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
}
