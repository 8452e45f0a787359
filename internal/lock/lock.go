// Package lock provides a Redis-backed single-flight guard, so coordinators
// in separate processes exclude each other per group.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix prefixes lock keys.
	KeyPrefix = "ordinal:lock:"

	// DefaultTTL bounds how long a crashed holder can block its group.
	DefaultTTL = 30 * time.Second
)

// releaseScript deletes the lock only if it still holds our token, so an
// expired holder never removes a lock someone else acquired since.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard implements engine.Guard with SET NX PX.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisGuard creates a guard on client. ttl <= 0 means DefaultTTL.
func NewRedisGuard(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisGuard{client: client, ttl: ttl, logger: logger}
}

// TryAcquire takes the lock for groupID if nobody holds it.
func (g *RedisGuard) TryAcquire(ctx context.Context, groupID string) (func(), bool, error) {
	key := KeyPrefix + groupID
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", groupID, err)
	}
	if !ok {
		return nil, false, nil
	}

	var once sync.Once
	release := func() {
		once.Do(func() { g.release(ctx, groupID, key, token) })
	}
	return release, true, nil
}

// release runs even if the caller's context is gone.
func (g *RedisGuard) release(ctx context.Context, groupID, key, token string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	n, err := releaseScript.Run(rctx, g.client, []string{key}, token).Int()
	if err != nil {
		g.logger.Warn("lock release failed", "group_id", groupID, "error", err)
		return
	}
	if n == 0 {
		g.logger.Warn("lock expired before release", "group_id", groupID, "ttl", g.ttl)
	}
}
