// Package cache implements a generic read-through cache over a byte-valued
// backend.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Addy-9595/northeasternconnect-backend/internal/metrics"
)

// Backend stores encoded values with a per-entry time-to-live.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache serves values of type V from a Backend, computing them on a miss.
type Cache[V any] struct {
	name    string
	backend Backend
	group   singleflight.Group
}

// New creates a cache named name over backend. The name labels metrics.
func New[V any](name string, backend Backend) *Cache[V] {
	return &Cache[V]{name: name, backend: backend}
}

// GetOrCompute returns the cached value for key, or calls compute and stores
// its result for ttl. Errors from compute are returned and never cached.
// Concurrent misses for one key share a single compute call.
func (c *Cache[V]) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (V, error)) (V, error) {
	if v, ok := c.lookup(ctx, key); ok {
		metrics.CacheLookups.WithLabelValues(c.name, "hit").Inc()
		return v, nil
	}
	metrics.CacheLookups.WithLabelValues(c.name, "miss").Inc()

	// The shared call outlives any one caller; compute bounds its own time.
	shared := context.WithoutCancel(ctx)
	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		v, err := compute(shared)
		if err != nil {
			return v, err
		}
		if data, err := json.Marshal(v); err == nil {
			_ = c.backend.Set(shared, key, data, ttl)
		}
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// lookup reads and decodes key. Backend and decode errors count as a miss.
func (c *Cache[V]) lookup(ctx context.Context, key string) (V, bool) {
	var v V
	data, ok, err := c.backend.Get(ctx, key)
	if err != nil || !ok {
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false
	}
	return v, true
}
