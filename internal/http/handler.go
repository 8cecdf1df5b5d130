package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/davidbz/turnstile/internal/config"
	"github.com/davidbz/turnstile/internal/domain"
	"github.com/davidbz/turnstile/internal/observability"
	"github.com/davidbz/turnstile/internal/provider/quantmodel"
)

const defaultRecentTradesLimit = 20

// Handler handles HTTP requests.
type Handler struct {
	provider   *quantmodel.Provider
	registry   *domain.RequirementRegistry
	quotes     *domain.QuoteCalculator
	feed       domain.PriceFeed
	paymentCfg *config.PaymentConfig
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(
	provider *quantmodel.Provider,
	registry *domain.RequirementRegistry,
	quotes *domain.QuoteCalculator,
	feed domain.PriceFeed,
	paymentCfg *config.PaymentConfig,
) *Handler {
	return &Handler{
		provider:   provider,
		registry:   registry,
		quotes:     quotes,
		feed:       feed,
		paymentCfg: paymentCfg,
	}
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// HandleModels returns the model roster.
func (h *Handler) HandleModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.provider.ListModels(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

// HandleSummary returns the per-model overview.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	h.withModel(w, r, func(doc *quantmodel.ModelDocument) any {
		return quantmodel.Summary(doc)
	})
}

// HandlePerformance returns equity-curve statistics.
func (h *Handler) HandlePerformance(w http.ResponseWriter, r *http.Request) {
	h.withModel(w, r, func(doc *quantmodel.ModelDocument) any {
		return quantmodel.Performance(doc)
	})
}

// HandleHoldings returns the reshaped holdings view.
func (h *Handler) HandleHoldings(w http.ResponseWriter, r *http.Request) {
	h.withModel(w, r, func(doc *quantmodel.ModelDocument) any {
		return map[string]any{"holdings": quantmodel.Holdings(doc)}
	})
}

// HandleHoldingDetail returns one holding by ticker.
func (h *Handler) HandleHoldingDetail(w http.ResponseWriter, r *http.Request) {
	ctx := observability.WithModelID(r.Context(), r.PathValue("id"))

	doc, err := h.provider.GetModel(ctx, r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := quantmodel.HoldingDetail(doc, r.PathValue("ticker"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// HandleStats returns tradebook statistics.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	h.withModel(w, r, func(doc *quantmodel.ModelDocument) any {
		return quantmodel.Stats(doc)
	})
}

// HandleMonthlyHistory returns per-month returns.
func (h *Handler) HandleMonthlyHistory(w http.ResponseWriter, r *http.Request) {
	h.withModel(w, r, func(doc *quantmodel.ModelDocument) any {
		return map[string]any{"months": quantmodel.MonthlyHistory(doc)}
	})
}

// HandleTradebook returns the full tradebook.
func (h *Handler) HandleTradebook(w http.ResponseWriter, r *http.Request) {
	h.withModel(w, r, func(doc *quantmodel.ModelDocument) any {
		return map[string]any{"trades": quantmodel.Tradebook(doc)}
	})
}

// HandlePositions returns the raw positions.
func (h *Handler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	h.withModel(w, r, func(doc *quantmodel.ModelDocument) any {
		return map[string]any{"positions": doc.Positions}
	})
}

// HandleRecentTrades returns the newest trades, bounded by ?limit.
func (h *Handler) HandleRecentTrades(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentTradesLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	h.withModel(w, r, func(doc *quantmodel.ModelDocument) any {
		return map[string]any{"trades": quantmodel.RecentTrades(doc, limit)}
	})
}

// HandleFilledTrades returns filled trades only.
func (h *Handler) HandleFilledTrades(w http.ResponseWriter, r *http.Request) {
	h.withModel(w, r, func(doc *quantmodel.ModelDocument) any {
		return map[string]any{"trades": quantmodel.TradesByStatus(doc, quantmodel.TradeStatusFilled)}
	})
}

// HandlePendingTrades returns pending trades only.
func (h *Handler) HandlePendingTrades(w http.ResponseWriter, r *http.Request) {
	h.withModel(w, r, func(doc *quantmodel.ModelDocument) any {
		return map[string]any{"trades": quantmodel.TradesByStatus(doc, quantmodel.TradeStatusPending)}
	})
}

// HandleCompare returns the ranked cross-model comparison.
func (h *Handler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	docs, err := h.provider.GetAllModels(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"models": quantmodel.Compare(docs)})
}

// HandleLeaderboard returns the compare ranking as a leaderboard.
func (h *Handler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	docs, err := h.provider.GetAllModels(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": quantmodel.Compare(docs)})
}

// withModel fetches the request's model document and writes the derived view.
func (h *Handler) withModel(
	w http.ResponseWriter,
	r *http.Request,
	view func(doc *quantmodel.ModelDocument) any,
) {
	modelID := r.PathValue("id")
	ctx := observability.WithModelID(r.Context(), modelID)
	r = r.WithContext(ctx)

	doc, err := h.provider.GetModel(ctx, modelID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view(doc))
}

// writeError maps domain errors to HTTP statuses. Upstream detail is logged,
// the caller gets a generic category.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.FromContext(r.Context())

	switch {
	case errors.Is(err, domain.ErrModelNotFound), errors.Is(err, domain.ErrEntityNotFound):
		logger.Info("entity not found", observability.Error(err))
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})

	case errors.Is(err, domain.ErrUpstreamUnavailable):
		logger.Error("upstream fetch failed", observability.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream data provider unavailable"})

	default:
		logger.Error("request failed", observability.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
