package pricefeed_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/davidbz/turnstile/internal/observability"
	"github.com/davidbz/turnstile/internal/pricefeed"
)

// scriptedFetcher returns queued results and counts invocations.
type scriptedFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	calls   int
}

type fetchResult struct {
	price string
	err   error
}

func (s *scriptedFetcher) fetch(_ context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if len(s.results) == 0 {
		return decimal.Zero, errors.New("no scripted result")
	}

	result := s.results[0]
	if len(s.results) > 1 {
		s.results = s.results[1:]
	}

	if result.err != nil {
		return decimal.Zero, result.err
	}
	return decimal.RequireFromString(result.price), nil
}

func (s *scriptedFetcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

const feedTTL = 5 * time.Minute

func newTestFeed(fetcher *scriptedFetcher, clock *fakeClock) *pricefeed.Feed {
	floor := decimal.RequireFromString("0.0000001")
	return pricefeed.New(fetcher.fetch, feedTTL, floor, observability.NewMetricsForTest()).
		WithClock(clock.Now)
}

func TestFeed_SnapshotIsIdempotentWithinTTL(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{{price: "0.0000003"}}}
	clock := newFakeClock()
	feed := newTestFeed(fetcher, clock)

	ctx := context.Background()
	first := feed.Snapshot(ctx)
	second := feed.Snapshot(ctx)

	require.Equal(t, 1, fetcher.callCount(), "second call within TTL performs no I/O")
	require.True(t, first.PriceUSD.Equal(second.PriceUSD))
	require.Equal(t, first.FetchedAt, second.FetchedAt)
}

func TestFeed_RefetchesAfterTTL(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{{price: "0.0000003"}, {price: "0.0000004"}}}
	clock := newFakeClock()
	feed := newTestFeed(fetcher, clock)

	ctx := context.Background()
	first := feed.Snapshot(ctx)

	clock.Advance(feedTTL + time.Second)
	second := feed.Snapshot(ctx)

	require.Equal(t, 2, fetcher.callCount())
	require.False(t, first.PriceUSD.Equal(second.PriceUSD))
	require.True(t, second.PriceUSD.Equal(decimal.RequireFromString("0.0000004")))
}

func TestFeed_FailureWithoutSnapshotReturnsFloor(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{{err: errors.New("feed down")}}}
	clock := newFakeClock()
	feed := newTestFeed(fetcher, clock)

	snap := feed.Snapshot(context.Background())

	require.True(t, snap.PriceUSD.Equal(decimal.RequireFromString("0.0000001")),
		"no prior snapshot falls back to the floor price")
	require.True(t, snap.PriceUSD.IsPositive())
}

func TestFeed_FailureKeepsLastKnownSnapshot(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{
		{price: "0.0000003"},
		{err: errors.New("feed down")},
	}}
	clock := newFakeClock()
	feed := newTestFeed(fetcher, clock)

	ctx := context.Background()
	first := feed.Snapshot(ctx)

	clock.Advance(feedTTL + time.Second)
	second := feed.Snapshot(ctx)

	require.Equal(t, 2, fetcher.callCount())
	require.True(t, second.PriceUSD.Equal(first.PriceUSD), "stale snapshot beats a failed fetch")
}

func TestFeed_NonPositivePriceIsDegraded(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{
		{price: "0.0000003"},
		{price: "0"},
	}}
	clock := newFakeClock()
	feed := newTestFeed(fetcher, clock)

	ctx := context.Background()
	first := feed.Snapshot(ctx)

	clock.Advance(feedTTL + time.Second)
	second := feed.Snapshot(ctx)

	require.True(t, second.PriceUSD.Equal(first.PriceUSD),
		"a malformed feed price never replaces the snapshot")
}

func TestFeed_ConcurrentRefreshCollapses(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{{price: "0.0000003"}}}
	clock := newFakeClock()
	feed := newTestFeed(fetcher, clock)

	const callers = 16
	var wg sync.WaitGroup
	snapshots := make([]decimal.Decimal, callers)

	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snapshots[i] = feed.Snapshot(context.Background()).PriceUSD
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, fetcher.callCount(), "concurrent callers share one fetch")
	for _, price := range snapshots {
		require.True(t, price.Equal(snapshots[0]))
	}
}

func TestFeed_BackgroundRefreshWarmsSnapshot(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{{price: "0.0000003"}}}
	clock := newFakeClock()
	feed := newTestFeed(fetcher, clock)

	feed.Refresh(context.Background())

	snap := feed.Snapshot(context.Background())
	require.Equal(t, 1, fetcher.callCount(), "foreground call is served from the warmed snapshot")
	require.True(t, snap.PriceUSD.Equal(decimal.RequireFromString("0.0000003")))
}
