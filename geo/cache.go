package geo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "geo:ptr:"

// Cache stores reverse lookup results. An empty host is a valid cached answer.
type Cache interface {
	Get(ctx context.Context, ip string) (host string, found bool, err error)
	Set(ctx context.Context, ip, host string) error
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// NewRedisClient connects to addr and checks the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func cacheKey(ip string) string {
	return keyPrefix + ip
}

func (c *RedisCache) Get(ctx context.Context, ip string) (string, bool, error) {
	host, err := c.client.Get(ctx, cacheKey(ip)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return host, true, nil
}

func (c *RedisCache) Set(ctx context.Context, ip, host string) error {
	return c.client.Set(ctx, cacheKey(ip), host, c.ttl).Err()
}
