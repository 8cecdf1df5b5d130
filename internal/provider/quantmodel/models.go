package quantmodel

import "time"

// Trade statuses as reported by the upstream provider.
const (
	TradeStatusFilled  = "filled"
	TradeStatusPending = "pending"
)

// ModelInfo is one entry of the upstream model roster.
type ModelInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Strategy string `json:"strategy"`
}

// ModelDocument is the raw model payload fetched from the upstream provider.
// It is the unit of caching; views are derived from it per request.
type ModelDocument struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Strategy          string        `json:"strategy"`
	UpdatedAt         time.Time     `json:"updatedAt"`
	StartingEquityUSD float64       `json:"startingEquityUsd"`
	EquityUSD         float64       `json:"equityUsd"`
	CashUSD           float64       `json:"cashUsd"`
	EquityHistory     []EquityPoint `json:"equityHistory"`
	Positions         []Position    `json:"positions"`
	Trades            []Trade       `json:"trades"`
}

// EquityPoint is one day of the model's equity curve.
type EquityPoint struct {
	Date      string  `json:"date"` // YYYY-MM-DD
	EquityUSD float64 `json:"equityUsd"`
}

// Position is one open holding.
type Position struct {
	Ticker       string  `json:"ticker"`
	Quantity     float64 `json:"quantity"`
	AvgEntryUSD  float64 `json:"avgEntryUsd"`
	LastPriceUSD float64 `json:"lastPriceUsd"`
	Sector       string  `json:"sector"`
}

// MarketValue returns the position's current market value.
func (p Position) MarketValue() float64 {
	return p.Quantity * p.LastPriceUSD
}

// UnrealizedPnL returns the open profit or loss.
func (p Position) UnrealizedPnL() float64 {
	return p.Quantity * (p.LastPriceUSD - p.AvgEntryUSD)
}

// Trade is one order in the model's tradebook.
type Trade struct {
	ID         string    `json:"id"`
	Ticker     string    `json:"ticker"`
	Side       string    `json:"side"` // buy or sell
	Quantity   float64   `json:"quantity"`
	PriceUSD   float64   `json:"priceUsd"`
	Status     string    `json:"status"`
	PnLUSD     float64   `json:"pnlUsd"`
	ExecutedAt time.Time `json:"executedAt"`
}
