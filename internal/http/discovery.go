package http

import (
	"net/http"
	"sort"

	"github.com/davidbz/turnstile/internal/domain"
)

// discoveryDocument advertises how to pay for this API: networks, accepted
// assets, the facilitator endpoint, the discount rate and the full
// route-price table. It is rebuilt per request from the registry and the
// current price feed snapshot, so advertised quotes match what the gate
// would charge.
type discoveryDocument struct {
	Version     int              `json:"x402Version"`
	Network     string           `json:"network"`
	PayTo       string           `json:"payTo"`
	Facilitator string           `json:"facilitator,omitempty"`
	Assets      []domain.Asset   `json:"assets"`
	DiscountPct string           `json:"discountRate"`
	Routes      []discoveryRoute `json:"routes"`
}

type discoveryRoute struct {
	Key      string                      `json:"key"`
	Tier     domain.Tier                 `json:"tier"`
	PriceUSD string                      `json:"priceUsd"`
	Accepts  []domain.PaymentRequirement `json:"accepts"`
}

// HandleAPIInfo describes the API and how payment works.
func (h *Handler) HandleAPIInfo(w http.ResponseWriter, r *http.Request) {
	usdAsset, discountAsset := h.quotes.Assets()

	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "turnstile",
		"description": "Pay-per-query gateway for quantitative model data",
		"payment": map[string]any{
			"header":   "X-Payment",
			"network":  h.quotes.Network(),
			"assets":   []domain.Asset{usdAsset, discountAsset},
			"document": "/.well-known/x402",
		},
	})
}

// HandleDiscovery serves the payment discovery document.
func (h *Handler) HandleDiscovery(w http.ResponseWriter, r *http.Request) {
	snapshot := h.feed.Snapshot(r.Context())
	usdAsset, discountAsset := h.quotes.Assets()

	specs := h.registry.Specs()
	sort.Slice(specs, func(i, j int) bool {
		return specs[i].RouteKey < specs[j].RouteKey
	})

	routes := make([]discoveryRoute, 0, len(specs))
	for _, spec := range specs {
		routes = append(routes, discoveryRoute{
			Key:      spec.RouteKey,
			Tier:     spec.Tier,
			PriceUSD: spec.BaseUSDPrice.String(),
			Accepts:  h.quotes.BuildRequirements(spec.BaseUSDPrice, snapshot, "", ""),
		})
	}

	writeJSON(w, http.StatusOK, discoveryDocument{
		Version:     1,
		Network:     h.quotes.Network(),
		PayTo:       h.quotes.PayTo(),
		Facilitator: h.paymentCfg.FacilitatorURL,
		Assets:      []domain.Asset{usdAsset, discountAsset},
		DiscountPct: h.quotes.DiscountRate().String(),
		Routes:      routes,
	})
}
