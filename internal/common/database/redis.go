// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"privacy-consent/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient wraps the Redis client backing the submission rate limiter.
type RedisClient struct {
	Client *redis.Client
}

// NewRedis creates a new Redis client. No connection is made until first use.
func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is empty")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	return &RedisClient{Client: rdb}, nil
}

// Ping tests the Redis connection
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// IncrWindow increments key and starts its expiry on the first hit of a
// window. It returns the count so far and the time left in the window.
func (c *RedisClient) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := c.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis incr: %w", err)
	}

	ttl, err := c.Client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis pttl: %w", err)
	}

	// A key without expiry is a fresh window, or one whose EXPIRE was lost.
	if count == 1 || ttl < 0 {
		if err := c.Client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("redis expire: %w", err)
		}
		ttl = window
	}
	return count, ttl, nil
}

// Del deletes one or more keys
func (c *RedisClient) Del(ctx context.Context, keys ...string) error {
	return c.Client.Del(ctx, keys...).Err()
}
