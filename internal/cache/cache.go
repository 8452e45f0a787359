// Package cache invalidates derived views of ordered groups.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/ordinal/internal/order"
)

const (
	// KeyPrefix prefixes the key holding a group's cached order.
	KeyPrefix = "ordinal:group:"

	// InvalidationChannel receives the ID of every invalidated group.
	InvalidationChannel = "ordinal:invalidate"
)

// Connect parses redisURL, opens a client and checks it responds.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// RedisCache keeps each group's order under KeyPrefix+groupID and announces
// invalidations on InvalidationChannel so other instances drop local copies.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache creates a cache on client. Cached orders expire after ttl.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func key(groupID string) string {
	return KeyPrefix + groupID
}

// Invalidate deletes the cached order and publishes groupID.
// Failures are logged; readers fall back to the store on a miss.
func (c *RedisCache) Invalidate(ctx context.Context, groupID string) {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key(groupID))
		pipe.Publish(ctx, InvalidationChannel, groupID)
		return nil
	})
	if err != nil {
		c.logger.Warn("cache invalidation failed", "group_id", groupID, "error", err)
		return
	}
	c.logger.Debug("cache invalidated", "group_id", groupID)
}

// Get returns the cached order of groupID. ok is false on a miss.
func (c *RedisCache) Get(ctx context.Context, groupID string) (items []order.Item, ok bool, err error) {
	data, err := c.client.Get(ctx, key(groupID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached group %s: %w", groupID, err)
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false, fmt.Errorf("decode cached group %s: %w", groupID, err)
	}
	return items, true, nil
}

// Set caches the order of groupID.
func (c *RedisCache) Set(ctx context.Context, groupID string, items []order.Item) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode group %s: %w", groupID, err)
	}
	if err := c.client.Set(ctx, key(groupID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache group %s: %w", groupID, err)
	}
	return nil
}

// Subscribe returns a confirmed subscription to InvalidationChannel. Callers
// own it and must Close it.
func (c *RedisCache) Subscribe(ctx context.Context) (*redis.PubSub, error) {
	sub := c.client.Subscribe(ctx, InvalidationChannel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", InvalidationChannel, err)
	}
	return sub, nil
}
