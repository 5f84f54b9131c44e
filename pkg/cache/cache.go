// Package cache memoizes whole responses for a short time.
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
)

const (
	defaultNumCounters = 1e5
	defaultMaxCost     = 1 << 24 // bytes, estimated
	defaultBufferItems = 64
	defaultTTL         = 30 * time.Second
)

// Cache is optional; a nil Cache means always compute.
type Cache[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V, ttl time.Duration)
	Clear()
	Close()
}

// Config sizes a Ristretto cache. Zero fields take defaults.
type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	TTL         time.Duration
}

func (c Config) withDefaults() Config {
	if c.NumCounters <= 0 {
		c.NumCounters = defaultNumCounters
	}
	if c.MaxCost <= 0 {
		c.MaxCost = defaultMaxCost
	}
	if c.BufferItems <= 0 {
		c.BufferItems = defaultBufferItems
	}
	if c.TTL <= 0 {
		c.TTL = defaultTTL
	}
	return c
}

// Ristretto is a Cache backed by ristretto. Sets are admitted asynchronously,
// so a Get right after Set may miss.
type Ristretto[V any] struct {
	cache *ristretto.Cache
	ttl   time.Duration
	cost  func(V) int64

	mu     sync.RWMutex
	closed bool
}

// NewRistretto builds a cache. cost estimates an entry's size; nil counts 1 per entry.
func NewRistretto[V any](cfg Config, cost func(V) int64) (*Ristretto[V], error) {
	cfg = cfg.withDefaults()
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("create response cache: %w", err)
	}
	if cost == nil {
		cost = func(V) int64 { return 1 }
	}
	return &Ristretto[V]{cache: c, ttl: cfg.TTL, cost: cost}, nil
}

func (r *Ristretto[V]) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

func (r *Ristretto[V]) Get(key string) (V, bool) {
	var zero V
	if r.isClosed() {
		return zero, false
	}
	v, ok := r.cache.Get(key)
	if !ok {
		return zero, false
	}
	out, ok := v.(V)
	if !ok {
		return zero, false
	}
	return out, true
}

// Set stores value; ttl <= 0 uses the configured TTL.
func (r *Ristretto[V]) Set(key string, value V, ttl time.Duration) {
	if r.isClosed() {
		return
	}
	if ttl <= 0 {
		ttl = r.ttl
	}
	r.cache.SetWithTTL(key, value, r.cost(value), ttl)
}

// Wait blocks until buffered sets are applied.
func (r *Ristretto[V]) Wait() {
	if r.isClosed() {
		return
	}
	r.cache.Wait()
}

func (r *Ristretto[V]) Clear() {
	if r.isClosed() {
		return
	}
	r.cache.Clear()
}

func (r *Ristretto[V]) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.cache.Close()
}
