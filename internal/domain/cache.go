package domain

import (
	"context"
	"encoding/json"
	"time"
)

// Cache holds collaborator signals and failure counters between
// assessments. Keys are always scoped by tenant; an empty tenant is an
// error. A miss is reported as nil data with a nil error.
type Cache interface {
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, tenantID string, key string) error

	// GetSignal and SetSignal store a collaborator response keyed by its
	// kind and the application it was fetched for.
	GetSignal(ctx context.Context, tenantID string, kind SignalKind, subjectID string) (*SignalEnvelope, error)
	SetSignal(ctx context.Context, tenantID string, subjectID string, env *SignalEnvelope, ttl time.Duration) error

	// IncrementCounter bumps a counter whose window opens on the first
	// increment and returns the count within that window.
	IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// SignalEnvelope is a cached collaborator response.
type SignalEnvelope struct {
	Kind      SignalKind      `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// CacheConfig selects and sizes the signal cache.
type CacheConfig struct {
	Type string // "memory" or "redis"

	// In-process LRU, used alone in the community tier and as L1 in pro.
	LocalMaxSize int
	LocalTTL     time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// EnableTwoPhase puts the LRU in front of Redis.
	EnableTwoPhase bool
}
