// Package cache holds the signal caches: an in-process LRU, Redis, and
// the two-phase combination of both.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/opensource-finance/truerev/internal/domain"
)

// defaultLocalTTL applies when a caller passes a non-positive TTL and the
// cache was built without one.
const defaultLocalTTL = 5 * time.Minute

// Stats describes an LRU cache's occupancy and hit rate.
type Stats struct {
	Entries   int   `json:"entries"`
	Capacity  int   `json:"capacity"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// LRUCache is a bounded, tenant-scoped cache for collaborator signals
// and failure counters. It backs the community tier and is L1 of
// TwoPhaseCache.
type LRUCache struct {
	mu         sync.Mutex
	maxSize    int
	defaultTTL time.Duration
	now        func() time.Time

	recency *list.List // front is most recently used
	entries map[string]*list.Element
	windows map[string]*counterWindow

	hits, misses, evictions int64
}

type lruEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

type counterWindow struct {
	count   int64
	resetAt time.Time
}

// NewLRUCache creates an LRU cache holding at most maxSize entries.
func NewLRUCache(maxSize int) *LRUCache {
	return newLRU(maxSize, 0)
}

func newLRU(maxSize int, ttl time.Duration) *LRUCache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	if ttl <= 0 {
		ttl = defaultLocalTTL
	}
	c := &LRUCache{maxSize: maxSize, defaultTTL: ttl, now: time.Now}
	c.reset()
	return c
}

func (c *LRUCache) reset() {
	c.recency = list.New()
	c.entries = make(map[string]*list.Element)
	c.windows = make(map[string]*counterWindow)
}

// Get returns the value for key, or nil when absent or expired.
func (c *LRUCache) Get(ctx context.Context, tenantID string, key string) ([]byte, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	k := tenantKey(tenantID, key)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[k]
	if ok && c.now().After(elem.Value.(*lruEntry).expiresAt) {
		c.drop(elem)
		ok = false
	}
	if !ok {
		c.misses++
		return nil, nil
	}
	c.hits++
	c.recency.MoveToFront(elem)
	return elem.Value.(*lruEntry).value, nil
}

// Set stores value under key. A non-positive ttl uses the cache default.
func (c *LRUCache) Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error {
	if tenantID == "" {
		return ErrTenantRequired
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	k := tenantKey(tenantID, key)

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)
	if elem, ok := c.entries[k]; ok {
		e := elem.Value.(*lruEntry)
		e.value, e.expiresAt = value, expiresAt
		c.recency.MoveToFront(elem)
		return nil
	}

	c.entries[k] = c.recency.PushFront(&lruEntry{key: k, value: value, expiresAt: expiresAt})
	for c.recency.Len() > c.maxSize {
		c.drop(c.recency.Back())
		c.evictions++
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (c *LRUCache) Delete(ctx context.Context, tenantID string, key string) error {
	if tenantID == "" {
		return ErrTenantRequired
	}
	k := tenantKey(tenantID, key)

	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[k]; ok {
		c.drop(elem)
	}
	return nil
}

// GetSignal returns a cached collaborator signal, or nil on a miss.
func (c *LRUCache) GetSignal(ctx context.Context, tenantID string, kind domain.SignalKind, subjectID string) (*domain.SignalEnvelope, error) {
	return getSignal(ctx, c, tenantID, kind, subjectID)
}

// SetSignal caches a collaborator signal under its kind and subject.
func (c *LRUCache) SetSignal(ctx context.Context, tenantID string, subjectID string, env *domain.SignalEnvelope, ttl time.Duration) error {
	return setSignal(ctx, c, tenantID, subjectID, env, ttl)
}

// IncrementCounter counts events in a fixed window that starts with the
// first increment. Counters live outside the LRU and are never evicted
// before their window closes.
func (c *LRUCache) IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error) {
	if tenantID == "" {
		return 0, ErrTenantRequired
	}
	k := tenantKey(tenantID, counterKey(key))

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	w, ok := c.windows[k]
	if ok && now.Before(w.resetAt) {
		w.count++
		return w.count, nil
	}

	for wk, old := range c.windows {
		if !now.Before(old.resetAt) {
			delete(c.windows, wk)
		}
	}
	c.windows[k] = &counterWindow{count: 1, resetAt: now.Add(window)}
	return 1, nil
}

// Ping always succeeds.
func (c *LRUCache) Ping(ctx context.Context) error {
	return nil
}

// Close drops every entry and counter.
func (c *LRUCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
	return nil
}

// Stats returns occupancy and hit counts.
func (c *LRUCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:   c.recency.Len(),
		Capacity:  c.maxSize,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

func (c *LRUCache) drop(elem *list.Element) {
	c.recency.Remove(elem)
	delete(c.entries, elem.Value.(*lruEntry).key)
}
