package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// succeededTTL bounds how long a succeeded identity stays in the fast
// path before redeliveries fall through to the database check.
const succeededTTL = 24 * time.Hour

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// MarkSucceeded caches an event identity whose processing succeeded so
// pure redeliveries short-circuit without a database read.
func (c *Client) MarkSucceeded(ctx context.Context, identity string) error {
	return c.rdb.Set(ctx, fmt.Sprintf("dedup:succeeded:%s", identity), "1", succeededTTL).Err()
}

// IsSucceeded checks the succeeded-identity cache.
func (c *Client) IsSucceeded(ctx context.Context, identity string) (bool, error) {
	result, err := c.rdb.Exists(ctx, fmt.Sprintf("dedup:succeeded:%s", identity)).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
