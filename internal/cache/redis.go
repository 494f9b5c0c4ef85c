package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opensource-finance/truerev/internal/domain"
)

// keyPrefix namespaces every key this service writes to a shared Redis.
const keyPrefix = "truerev:"

// incrWindow increments a counter and starts its expiry window on first use.
var incrWindow = redis.NewScript(`
	local current = redis.call('INCR', KEYS[1])
	if current == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return current
`)

// RedisCache stores signals and failure counters in Redis so every node
// of a pro deployment shares them. It is L2 of TwoPhaseCache.
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache connects to the configured Redis and verifies it answers.
func NewRedisCache(cfg domain.CacheConfig) (*RedisCache, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisCache{client: client}, nil
}

func redisKey(tenantID, key string) string {
	return keyPrefix + tenantKey(tenantID, key)
}

// Get returns the value for key, or nil on a miss.
func (c *RedisCache) Get(ctx context.Context, tenantID string, key string) ([]byte, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	val, err := c.client.Get(ctx, redisKey(tenantID, key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

// Set stores value under key with ttl. A non-positive ttl never expires.
func (c *RedisCache) Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error {
	if tenantID == "" {
		return ErrTenantRequired
	}
	if err := c.client.Set(ctx, redisKey(tenantID, key), value, max(ttl, 0)).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes key.
func (c *RedisCache) Delete(ctx context.Context, tenantID string, key string) error {
	if tenantID == "" {
		return ErrTenantRequired
	}
	return c.client.Del(ctx, redisKey(tenantID, key)).Err()
}

// GetSignal returns a cached collaborator signal, or nil on a miss.
func (c *RedisCache) GetSignal(ctx context.Context, tenantID string, kind domain.SignalKind, subjectID string) (*domain.SignalEnvelope, error) {
	return getSignal(ctx, c, tenantID, kind, subjectID)
}

// SetSignal caches a collaborator signal with the given TTL.
func (c *RedisCache) SetSignal(ctx context.Context, tenantID string, subjectID string, env *domain.SignalEnvelope, ttl time.Duration) error {
	return setSignal(ctx, c, tenantID, subjectID, env, ttl)
}

// IncrementCounter increments a windowed counter atomically on the server.
func (c *RedisCache) IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error) {
	if tenantID == "" {
		return 0, ErrTenantRequired
	}
	n, err := incrWindow.Run(ctx, c.client, []string{redisKey(tenantID, counterKey(key))}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}
	return n, nil
}

// Ping checks Redis connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
