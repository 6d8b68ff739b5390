// Package cache wraps the shared Redis instance used by all Eludris
// services.
//
// Redis is the only shared mutable state outside Postgres: it holds rate
// limit windows, presence counters and sets, verification and password reset
// codes, memoized link-preview embeds, and carries the eludris-events
// pub/sub channel.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config selects the Redis instance.
type Config struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Cache is a thin wrapper over go-redis exposing the handful of atomic
// operations the services rely on.
type Cache struct {
	rdb *redis.Client
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, cfg Config) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return &Cache{rdb: rdb}, nil
}

// NewFromClient wraps an existing client. Used by tests with miniredis.
func NewFromClient(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Client exposes the underlying go-redis client for pub/sub.
func (c *Cache) Client() *redis.Client { return c.rdb }

// Ping checks connection health.
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *Cache) Close() error { return c.rdb.Close() }

// IncrWindow adds cost to the counter at key, arming the window TTL when
// this increment created the key. It returns the running count and the time
// remaining until the window resets.
func (c *Cache) IncrWindow(ctx context.Context, key string, cost uint64, window time.Duration) (uint64, time.Duration, error) {
	count, err := c.rdb.IncrBy(ctx, key, int64(cost)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to increment %s: %w", key, err)
	}
	if uint64(count) == cost {
		// First hit in this window.
		if err := c.rdb.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("failed to arm window for %s: %w", key, err)
		}
		return uint64(count), window, nil
	}
	remaining, err := c.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read window for %s: %w", key, err)
	}
	if remaining < 0 {
		// Key exists without a TTL (expiry raced); re-arm.
		if err := c.rdb.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("failed to re-arm window for %s: %w", key, err)
		}
		remaining = window
	}
	return uint64(count), remaining, nil
}

// Incr increments the integer at key and returns the new value.
func (c *Cache) Incr(ctx context.Context, key string) (int64, error) {
	return c.rdb.Incr(ctx, key).Result()
}

// Decr decrements the integer at key and returns the new value.
func (c *Cache) Decr(ctx context.Context, key string) (int64, error) {
	return c.rdb.Decr(ctx, key).Result()
}

// SetAdd adds a member to the set at key.
func (c *Cache) SetAdd(ctx context.Context, key, member string) error {
	return c.rdb.SAdd(ctx, key, member).Err()
}

// SetRemove removes a member from the set at key.
func (c *Cache) SetRemove(ctx context.Context, key, member string) error {
	return c.rdb.SRem(ctx, key, member).Err()
}

// SetContains reports membership in the set at key.
func (c *Cache) SetContains(ctx context.Context, key, member string) (bool, error) {
	return c.rdb.SIsMember(ctx, key, member).Result()
}

// SetString stores a string value with a TTL.
func (c *Cache) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// GetString fetches a string value. Missing keys return ("", false, nil).
func (c *Cache) GetString(ctx context.Context, key string) (string, bool, error) {
	value, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Delete removes keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}
