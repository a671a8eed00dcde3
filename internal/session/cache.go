package session

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache is the key/value store a Mirror keeps session snapshots in.
// Missing keys surface as redis.Nil from Get.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, key string) error
}

// RedisCache stores mirrored snapshots in Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps client for use by a Mirror.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
