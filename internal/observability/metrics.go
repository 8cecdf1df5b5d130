package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gateway's prometheus collectors. A single instance is
// constructed at startup and shared through the DI container.
type Metrics struct {
	GateOutcomes       *prometheus.CounterVec
	PriceFeedRefreshes *prometheus.CounterVec
	DataCacheHits      prometheus.Counter
	DataCacheMisses    prometheus.Counter
	SessionsSwept      prometheus.Counter
	UpstreamFetches    *prometheus.CounterVec
}

// NewMetrics creates and registers the gateway collectors (DI constructor).
func NewMetrics() *Metrics {
	return newMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsForTest creates collectors on a private registry so tests do not
// collide on the default registerer.
func NewMetricsForTest() *Metrics {
	return newMetricsWith(prometheus.NewRegistry())
}

func newMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		GateOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "turnstile_gate_outcomes_total",
			Help: "Payment gate decisions by outcome.",
		}, []string{"outcome"}),
		PriceFeedRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "turnstile_price_feed_refreshes_total",
			Help: "Price feed refresh attempts by result.",
		}, []string{"result"}),
		DataCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "turnstile_data_cache_hits_total",
			Help: "Data cache lookups served from a live entry.",
		}),
		DataCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "turnstile_data_cache_misses_total",
			Help: "Data cache lookups that required an upstream fetch.",
		}),
		SessionsSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "turnstile_sessions_swept_total",
			Help: "Payment sessions expired by the sweeper.",
		}),
		UpstreamFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "turnstile_upstream_fetches_total",
			Help: "Upstream model data fetches by result.",
		}, []string{"result"}),
	}
}
