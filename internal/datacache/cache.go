// Package datacache provides a TTL cache with per-key single-flight in
// front of upstream fetches. The upstream provider documents no concurrency
// guarantee, so duplicate fan-out for one key is both wasteful and a
// correctness risk; concurrent callers for the same key share one fetch.
package datacache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/davidbz/turnstile/internal/observability"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// Cache is a generic key→value cache with TTL and single-flight fetches.
// Entries are superseded, never merged, on refresh.
type Cache[T any] struct {
	now     func() time.Time
	metrics *observability.Metrics

	mu      sync.RWMutex
	entries map[string]entry[T]

	// One in-flight fetch per key; the flight entry is dropped when the
	// fetch resolves, win or lose.
	sf singleflight.Group
}

// New creates an empty cache.
func New[T any](metrics *observability.Metrics) *Cache[T] {
	return &Cache[T]{
		now:     time.Now,
		metrics: metrics,
		entries: make(map[string]entry[T]),
		sf:      singleflight.Group{},
	}
}

// WithClock overrides the clock, for tests.
func (c *Cache[T]) WithClock(now func() time.Time) *Cache[T] {
	c.now = now
	return c
}

// GetOrFetch returns the live entry for key, or invokes fetch and stores the
// result with a fresh expiry. A failed fetch stores nothing and the error is
// returned to every coalesced caller.
func (c *Cache[T]) GetOrFetch(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fetch func(ctx context.Context) (T, error),
) (T, error) {
	if value, ok := c.lookup(key); ok {
		c.count(true)
		return value, nil
	}

	result, err, _ := c.sf.Do(key, func() (any, error) {
		// A concurrent caller may have populated the entry while this
		// one waited on the flight.
		if value, ok := c.lookup(key); ok {
			c.count(true)
			return value, nil
		}

		// Counted here so coalesced callers sharing this fetch do not
		// each register a miss.
		c.count(false)

		value, fetchErr := fetch(ctx)
		if fetchErr != nil {
			return nil, fetchErr
		}

		c.mu.Lock()
		c.entries[key] = entry[T]{
			value:     value,
			expiresAt: c.now().Add(ttl),
		}
		c.mu.Unlock()

		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	value, ok := result.(T)
	if !ok {
		var zero T
		return zero, nil
	}
	return value, nil
}

// Invalidate drops the entry for key, if any.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *Cache[T]) lookup(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		var zero T
		return zero, false
	}

	return e.value, true
}

func (c *Cache[T]) count(hit bool) {
	if c.metrics == nil {
		return
	}

	if hit {
		c.metrics.DataCacheHits.Inc()
		return
	}
	c.metrics.DataCacheMisses.Inc()
}
