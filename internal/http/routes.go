package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/davidbz/turnstile/internal/domain"
)

// Route binds one HTTP pattern to its logical route key and price. The key
// set here is exactly what the requirement registry is validated against at
// startup: every exposed route appears, free ones included.
type Route struct {
	Key         string
	Pattern     string
	Tier        domain.Tier
	PriceUSD    decimal.Decimal
	Description string
	Handler     http.HandlerFunc
}

// Paid reports whether the route sits behind the payment gate.
func (r Route) Paid() bool {
	return !r.PriceUSD.IsZero()
}

// Routes returns the full route table.
func (h *Handler) Routes() []Route {
	free := decimal.Zero

	return []Route{
		{
			Key:         "health",
			Pattern:     "GET /health",
			Tier:        domain.TierFree,
			PriceUSD:    free,
			Description: "Service health check",
			Handler:     h.HandleHealth,
		},
		{
			Key:         "api.info",
			Pattern:     "GET /api",
			Tier:        domain.TierFree,
			PriceUSD:    free,
			Description: "API information and payment instructions",
			Handler:     h.HandleAPIInfo,
		},
		{
			Key:         "models.list",
			Pattern:     "GET /v1/models",
			Tier:        domain.TierFree,
			PriceUSD:    free,
			Description: "List of available quantitative models",
			Handler:     h.HandleModels,
		},
		{
			Key:         "discovery",
			Pattern:     "GET /.well-known/x402",
			Tier:        domain.TierFree,
			PriceUSD:    free,
			Description: "Payment discovery document",
			Handler:     h.HandleDiscovery,
		},
		{
			Key:         "metrics",
			Pattern:     "GET /metrics",
			Tier:        domain.TierFree,
			PriceUSD:    free,
			Description: "Prometheus metrics",
			Handler:     promhttp.Handler().ServeHTTP,
		},
		{
			Key:         "model.summary",
			Pattern:     "GET /v1/models/{id}/summary",
			Tier:        domain.TierLight,
			PriceUSD:    decimal.RequireFromString("0.01"),
			Description: "Model overview: equity, return, counts",
			Handler:     h.HandleSummary,
		},
		{
			Key:         "model.performance",
			Pattern:     "GET /v1/models/{id}/performance",
			Tier:        domain.TierStandard,
			PriceUSD:    decimal.RequireFromString("0.02"),
			Description: "Equity-curve statistics: return, drawdown, best and worst day",
			Handler:     h.HandlePerformance,
		},
		{
			Key:         "model.holdings",
			Pattern:     "GET /v1/models/{id}/holdings",
			Tier:        domain.TierStandard,
			PriceUSD:    decimal.RequireFromString("0.05"),
			Description: "Current holdings with weights and unrealized PnL",
			Handler:     h.HandleHoldings,
		},
		{
			Key:         "model.holding",
			Pattern:     "GET /v1/models/{id}/holdings/{ticker}",
			Tier:        domain.TierStandard,
			PriceUSD:    decimal.RequireFromString("0.05"),
			Description: "Single holding detail by ticker",
			Handler:     h.HandleHoldingDetail,
		},
		{
			Key:         "model.stats",
			Pattern:     "GET /v1/models/{id}/stats",
			Tier:        domain.TierStandard,
			PriceUSD:    decimal.RequireFromString("0.02"),
			Description: "Tradebook statistics: win rate, realized PnL, exposure",
			Handler:     h.HandleStats,
		},
		{
			Key:         "model.history.monthly",
			Pattern:     "GET /v1/models/{id}/history/monthly",
			Tier:        domain.TierDeep,
			PriceUSD:    decimal.RequireFromString("0.05"),
			Description: "Monthly return history",
			Handler:     h.HandleMonthlyHistory,
		},
		{
			Key:         "model.tradebook",
			Pattern:     "GET /v1/models/{id}/tradebook",
			Tier:        domain.TierDeep,
			PriceUSD:    decimal.RequireFromString("0.10"),
			Description: "Full tradebook, newest first",
			Handler:     h.HandleTradebook,
		},
		{
			Key:         "model.positions",
			Pattern:     "GET /v1/models/{id}/positions",
			Tier:        domain.TierStandard,
			PriceUSD:    decimal.RequireFromString("0.05"),
			Description: "Raw open positions",
			Handler:     h.HandlePositions,
		},
		{
			Key:         "model.trades.recent",
			Pattern:     "GET /v1/models/{id}/trades/recent",
			Tier:        domain.TierLight,
			PriceUSD:    decimal.RequireFromString("0.02"),
			Description: "Most recent trades",
			Handler:     h.HandleRecentTrades,
		},
		{
			Key:         "model.trades.filled",
			Pattern:     "GET /v1/models/{id}/trades/filled",
			Tier:        domain.TierStandard,
			PriceUSD:    decimal.RequireFromString("0.05"),
			Description: "Filled trades",
			Handler:     h.HandleFilledTrades,
		},
		{
			Key:         "model.trades.pending",
			Pattern:     "GET /v1/models/{id}/trades/pending",
			Tier:        domain.TierSignals,
			PriceUSD:    decimal.RequireFromString("0.05"),
			Description: "Pending trades awaiting execution",
			Handler:     h.HandlePendingTrades,
		},
		{
			Key:         "models.compare",
			Pattern:     "GET /v1/compare",
			Tier:        domain.TierDeep,
			PriceUSD:    decimal.RequireFromString("0.10"),
			Description: "Cross-model comparison ranked by return",
			Handler:     h.HandleCompare,
		},
		{
			Key:         "models.leaderboard",
			Pattern:     "GET /v1/leaderboard",
			Tier:        domain.TierLight,
			PriceUSD:    decimal.RequireFromString("0.02"),
			Description: "Model leaderboard",
			Handler:     h.HandleLeaderboard,
		},
	}
}

// RegisterPrices seeds the requirement registry from the route table.
func RegisterPrices(registry *domain.RequirementRegistry, routes []Route) error {
	for _, route := range routes {
		spec := domain.EndpointPriceSpec{
			RouteKey:     route.Key,
			BaseUSDPrice: route.PriceUSD,
			Tier:         route.Tier,
		}
		if err := registry.Register(spec); err != nil {
			return err
		}
	}

	return nil
}

// RouteKeys lists every key the route table exposes, for startup validation.
func RouteKeys(routes []Route) []string {
	keys := make([]string, 0, len(routes))
	for _, route := range routes {
		keys = append(keys, route.Key)
	}
	return keys
}
