package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/truerev/internal/domain"
)

// ErrTenantRequired is returned for operations without a tenant.
var ErrTenantRequired = errors.New("tenantID is required")

// New creates a cache for the configured backend.
// "memory" is the in-process LRU; "redis" is Redis alone or, with
// EnableTwoPhase, an LRU in front of Redis.
func New(cfg domain.CacheConfig) (domain.Cache, error) {
	switch cfg.Type {
	case "memory", "":
		return newLRU(cfg.LocalMaxSize, cfg.LocalTTL), nil
	case "redis":
		if cfg.EnableTwoPhase {
			return NewTwoPhaseCache(cfg)
		}
		return NewRedisCache(cfg)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

func tenantKey(tenantID, key string) string {
	return tenantID + ":" + key
}

func counterKey(key string) string {
	return "counter:" + key
}

// signalKey is the per-tenant key a collaborator signal is stored under.
func signalKey(kind domain.SignalKind, subjectID string) string {
	return "signal:" + string(kind) + ":" + subjectID
}

// byteStore is the raw layer the signal helpers are written against.
type byteStore interface {
	Get(ctx context.Context, tenantID, key string) ([]byte, error)
	Set(ctx context.Context, tenantID, key string, value []byte, ttl time.Duration) error
}

func getSignal(ctx context.Context, s byteStore, tenantID string, kind domain.SignalKind, subjectID string) (*domain.SignalEnvelope, error) {
	data, err := s.Get(ctx, tenantID, signalKey(kind, subjectID))
	if err != nil || data == nil {
		return nil, err
	}
	var env domain.SignalEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode cached %s signal: %w", kind, err)
	}
	return &env, nil
}

func setSignal(ctx context.Context, s byteStore, tenantID, subjectID string, env *domain.SignalEnvelope, ttl time.Duration) error {
	if env == nil || env.Kind == "" {
		return errors.New("signal kind is required")
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return s.Set(ctx, tenantID, signalKey(env.Kind, subjectID), data, ttl)
}

// TwoPhaseCache keeps a short-lived local LRU (L1) in front of Redis (L2).
// Reads hit L1 first and backfill it from L2. Counters go straight to L2
// so failure counts agree across nodes.
type TwoPhaseCache struct {
	local  *LRUCache
	remote *RedisCache
	l1TTL  time.Duration
}

// NewTwoPhaseCache creates a two-phase cache with LRU + Redis.
func NewTwoPhaseCache(cfg domain.CacheConfig) (*TwoPhaseCache, error) {
	remote, err := NewRedisCache(cfg)
	if err != nil {
		return nil, err
	}
	return newTwoPhase(newLRU(cfg.LocalMaxSize, cfg.LocalTTL), remote, cfg.LocalTTL), nil
}

func newTwoPhase(local *LRUCache, remote *RedisCache, l1TTL time.Duration) *TwoPhaseCache {
	if l1TTL <= 0 {
		l1TTL = defaultLocalTTL
	}
	return &TwoPhaseCache{local: local, remote: remote, l1TTL: l1TTL}
}

// localTTL caps ttl at the L1 lifetime.
func (c *TwoPhaseCache) localTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return c.l1TTL
	}
	return min(ttl, c.l1TTL)
}

func (c *TwoPhaseCache) Get(ctx context.Context, tenantID string, key string) ([]byte, error) {
	val, err := c.local.Get(ctx, tenantID, key)
	if err != nil || val != nil {
		return val, err
	}
	val, err = c.remote.Get(ctx, tenantID, key)
	if err != nil || val == nil {
		return nil, err
	}
	_ = c.local.Set(ctx, tenantID, key, val, c.l1TTL)
	return val, nil
}

func (c *TwoPhaseCache) Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error {
	if err := c.local.Set(ctx, tenantID, key, value, c.localTTL(ttl)); err != nil {
		return err
	}
	return c.remote.Set(ctx, tenantID, key, value, ttl)
}

func (c *TwoPhaseCache) Delete(ctx context.Context, tenantID string, key string) error {
	if err := c.local.Delete(ctx, tenantID, key); err != nil {
		return err
	}
	return c.remote.Delete(ctx, tenantID, key)
}

func (c *TwoPhaseCache) GetSignal(ctx context.Context, tenantID string, kind domain.SignalKind, subjectID string) (*domain.SignalEnvelope, error) {
	return getSignal(ctx, c, tenantID, kind, subjectID)
}

func (c *TwoPhaseCache) SetSignal(ctx context.Context, tenantID string, subjectID string, env *domain.SignalEnvelope, ttl time.Duration) error {
	return setSignal(ctx, c, tenantID, subjectID, env, ttl)
}

func (c *TwoPhaseCache) IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error) {
	return c.remote.IncrementCounter(ctx, tenantID, key, window)
}

// Ping reports L2 health; L1 cannot fail.
func (c *TwoPhaseCache) Ping(ctx context.Context) error {
	if err := c.remote.Ping(ctx); err != nil {
		return fmt.Errorf("L2 ping failed: %w", err)
	}
	return nil
}

func (c *TwoPhaseCache) Close() error {
	_ = c.local.Close()
	return c.remote.Close()
}

// Stats returns L1 statistics.
func (c *TwoPhaseCache) Stats() Stats {
	return c.local.Stats()
}
