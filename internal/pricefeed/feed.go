// Package pricefeed maintains a cached USD price snapshot of the discount
// token. Readers never block on I/O that another caller already started, a
// refresh replaces the snapshot atomically, and the feed can always quote:
// last-known price on fetch failure, a configured floor when nothing was
// ever fetched.
package pricefeed

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/davidbz/turnstile/internal/config"
	"github.com/davidbz/turnstile/internal/domain"
	"github.com/davidbz/turnstile/internal/observability"
)

// FetchFunc retrieves the current USD price from the external feed.
type FetchFunc func(ctx context.Context) (decimal.Decimal, error)

// Feed implements domain.PriceFeed with a TTL cache and stale fallback.
type Feed struct {
	fetch   FetchFunc
	ttl     time.Duration
	floor   decimal.Decimal
	now     func() time.Time
	metrics *observability.Metrics

	mu       sync.RWMutex
	snapshot *domain.PriceSnapshot

	// Coalesces concurrent refreshes into one upstream call.
	sf singleflight.Group
}

// NewFeed creates a price feed from configuration (DI constructor).
func NewFeed(cfg *config.PriceFeedConfig, metrics *observability.Metrics) *Feed {
	floor, err := decimal.NewFromString(cfg.FloorUSD)
	if err != nil {
		// Config validation runs before construction; this is unreachable
		// in a correctly started process.
		floor = decimal.New(1, -7)
	}

	return New(
		NewHTTPFetcher(cfg),
		time.Duration(cfg.TTLSeconds)*time.Second,
		floor,
		metrics,
	)
}

// New creates a price feed with an explicit fetcher, for tests and wiring.
func New(fetch FetchFunc, ttl time.Duration, floor decimal.Decimal, metrics *observability.Metrics) *Feed {
	return &Feed{
		fetch:   fetch,
		ttl:     ttl,
		floor:   floor,
		now:     time.Now,
		metrics: metrics,
		sf:      singleflight.Group{},
	}
}

// WithClock overrides the clock, for tests.
func (f *Feed) WithClock(now func() time.Time) *Feed {
	f.now = now
	return f
}

// Snapshot returns the freshest available snapshot. Within the TTL the
// cached snapshot is returned without I/O; an expired or missing snapshot
// triggers a coalesced refresh. On refresh failure the previous snapshot is
// returned if one exists, the floor price otherwise. It never fails.
func (f *Feed) Snapshot(ctx context.Context) domain.PriceSnapshot {
	if snap, ok := f.fresh(); ok {
		return snap
	}

	result, _, _ := f.sf.Do("refresh", func() (any, error) {
		// Re-check under the flight: a concurrent caller may have
		// refreshed while this one waited.
		if snap, ok := f.fresh(); ok {
			return snap, nil
		}
		return f.refresh(ctx), nil
	})

	snap, ok := result.(domain.PriceSnapshot)
	if !ok {
		// singleflight fn above never errors; keep the degraded guarantee anyway.
		return f.fallback()
	}
	return snap
}

// Refresh forces a fetch attempt regardless of TTL, for the background
// warm-up job. Failures are logged and swallowed; the request path keeps
// serving the previous snapshot.
func (f *Feed) Refresh(ctx context.Context) {
	_, _, _ = f.sf.Do("refresh", func() (any, error) {
		return f.refresh(ctx), nil
	})
}

// fresh returns the cached snapshot when it is within the TTL.
func (f *Feed) fresh() (domain.PriceSnapshot, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.snapshot == nil {
		return domain.PriceSnapshot{}, false
	}

	if f.now().Sub(f.snapshot.FetchedAt) >= f.ttl {
		return domain.PriceSnapshot{}, false
	}

	return *f.snapshot, true
}

// refresh fetches the feed and atomically replaces the snapshot on success.
// On failure it returns the fallback without touching the cached snapshot.
func (f *Feed) refresh(ctx context.Context) domain.PriceSnapshot {
	logger := observability.FromContext(ctx)

	price, err := f.fetch(ctx)
	if err != nil || !price.IsPositive() {
		if err != nil {
			logger.Warn("price feed fetch failed, serving degraded price",
				observability.Error(err))
		} else {
			logger.Warn("price feed returned non-positive price, serving degraded price",
				observability.String("price", price.String()))
		}
		f.countRefresh("degraded")
		return f.fallback()
	}

	snap := domain.PriceSnapshot{
		PriceUSD:  price,
		FetchedAt: f.now(),
	}

	f.mu.Lock()
	f.snapshot = &snap
	f.mu.Unlock()

	f.countRefresh("ok")
	return snap
}

// fallback returns the last-known snapshot, or a floor-price snapshot when
// nothing was ever fetched. The floor snapshot is not cached, so the next
// caller retries the feed.
func (f *Feed) fallback() domain.PriceSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.snapshot != nil {
		return *f.snapshot
	}

	return domain.PriceSnapshot{
		PriceUSD:  f.floor,
		FetchedAt: f.now(),
	}
}

func (f *Feed) countRefresh(result string) {
	if f.metrics != nil {
		f.metrics.PriceFeedRefreshes.WithLabelValues(result).Inc()
	}
}
