package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/tenantguard/internal/model"
	"github.com/redis/go-redis/v9"
)

// ErrCacheUnavailable wraps Redis transport failures.
var ErrCacheUnavailable = errors.New("cache unavailable")

// RedisCache implements model.Cache on go-redis.
type RedisCache struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisCache(redisClient redis.UniversalClient, prefix string) *RedisCache {
	return &RedisCache{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.redis.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.redis.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrCacheMiss
		}
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return data, nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.redis.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

var _ model.Cache = (*RedisCache)(nil)
