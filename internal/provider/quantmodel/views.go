package quantmodel

import (
	"fmt"
	"sort"
	"time"

	"github.com/davidbz/turnstile/internal/domain"
)

// View shapes for the per-endpoint responses. Each view is derived from a
// cached ModelDocument per request; views own their field names, the core
// does not.

// SummaryView is the per-model overview.
type SummaryView struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Strategy      string    `json:"strategy"`
	EquityUSD     float64   `json:"equityUsd"`
	CashUSD       float64   `json:"cashUsd"`
	ReturnPct     float64   `json:"returnPct"`
	PositionCount int       `json:"positionCount"`
	TradeCount    int       `json:"tradeCount"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// PerformanceView covers the equity-curve derived numbers.
type PerformanceView struct {
	ID             string  `json:"id"`
	ReturnPct      float64 `json:"returnPct"`
	MaxDrawdownPct float64 `json:"maxDrawdownPct"`
	BestDayPct     float64 `json:"bestDayPct"`
	WorstDayPct    float64 `json:"worstDayPct"`
	TradingDays    int     `json:"tradingDays"`
}

// HoldingView is one position with derived weights.
type HoldingView struct {
	Ticker           string  `json:"ticker"`
	Sector           string  `json:"sector"`
	Quantity         float64 `json:"quantity"`
	AvgEntryUSD      float64 `json:"avgEntryUsd"`
	LastPriceUSD     float64 `json:"lastPriceUsd"`
	MarketValueUSD   float64 `json:"marketValueUsd"`
	WeightPct        float64 `json:"weightPct"`
	UnrealizedPnLUSD float64 `json:"unrealizedPnlUsd"`
}

// StatsView aggregates tradebook statistics.
type StatsView struct {
	ID            string  `json:"id"`
	TradeCount    int     `json:"tradeCount"`
	FilledCount   int     `json:"filledCount"`
	PendingCount  int     `json:"pendingCount"`
	WinRatePct    float64 `json:"winRatePct"`
	RealizedPnL   float64 `json:"realizedPnlUsd"`
	GrossExposure float64 `json:"grossExposureUsd"`
}

// MonthlyReturn is one month of the history view.
type MonthlyReturn struct {
	Month          string  `json:"month"` // YYYY-MM
	StartEquityUSD float64 `json:"startEquityUsd"`
	EndEquityUSD   float64 `json:"endEquityUsd"`
	ReturnPct      float64 `json:"returnPct"`
}

// CompareEntry is one row of the cross-model compare and leaderboard views.
type CompareEntry struct {
	Rank      int     `json:"rank"`
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Strategy  string  `json:"strategy"`
	EquityUSD float64 `json:"equityUsd"`
	ReturnPct float64 `json:"returnPct"`
}

// Summary reshapes a document into the overview view.
func Summary(doc *ModelDocument) SummaryView {
	return SummaryView{
		ID:            doc.ID,
		Name:          doc.Name,
		Strategy:      doc.Strategy,
		EquityUSD:     doc.EquityUSD,
		CashUSD:       doc.CashUSD,
		ReturnPct:     returnPct(doc.StartingEquityUSD, doc.EquityUSD),
		PositionCount: len(doc.Positions),
		TradeCount:    len(doc.Trades),
		UpdatedAt:     doc.UpdatedAt,
	}
}

// Performance derives equity-curve statistics.
func Performance(doc *ModelDocument) PerformanceView {
	view := PerformanceView{
		ID:          doc.ID,
		ReturnPct:   returnPct(doc.StartingEquityUSD, doc.EquityUSD),
		TradingDays: len(doc.EquityHistory),
	}

	peak := doc.StartingEquityUSD
	prev := doc.StartingEquityUSD
	for _, point := range doc.EquityHistory {
		if point.EquityUSD > peak {
			peak = point.EquityUSD
		}
		if peak > 0 {
			drawdown := (peak - point.EquityUSD) / peak * 100
			if drawdown > view.MaxDrawdownPct {
				view.MaxDrawdownPct = drawdown
			}
		}

		if prev > 0 {
			daily := (point.EquityUSD - prev) / prev * 100
			if daily > view.BestDayPct {
				view.BestDayPct = daily
			}
			if daily < view.WorstDayPct {
				view.WorstDayPct = daily
			}
		}
		prev = point.EquityUSD
	}

	return view
}

// Holdings reshapes open positions with portfolio weights, largest first.
func Holdings(doc *ModelDocument) []HoldingView {
	var total float64
	for _, pos := range doc.Positions {
		total += pos.MarketValue()
	}

	views := make([]HoldingView, 0, len(doc.Positions))
	for _, pos := range doc.Positions {
		view := HoldingView{
			Ticker:           pos.Ticker,
			Sector:           pos.Sector,
			Quantity:         pos.Quantity,
			AvgEntryUSD:      pos.AvgEntryUSD,
			LastPriceUSD:     pos.LastPriceUSD,
			MarketValueUSD:   pos.MarketValue(),
			UnrealizedPnLUSD: pos.UnrealizedPnL(),
		}
		if total > 0 {
			view.WeightPct = view.MarketValueUSD / total * 100
		}
		views = append(views, view)
	}

	sort.Slice(views, func(i, j int) bool {
		return views[i].MarketValueUSD > views[j].MarketValueUSD
	})

	return views
}

// HoldingDetail returns the holding view for one ticker.
func HoldingDetail(doc *ModelDocument, ticker string) (HoldingView, error) {
	for _, view := range Holdings(doc) {
		if view.Ticker == ticker {
			return view, nil
		}
	}

	return HoldingView{}, fmt.Errorf("%w: %s", domain.ErrEntityNotFound, ticker)
}

// Stats aggregates tradebook statistics.
func Stats(doc *ModelDocument) StatsView {
	view := StatsView{
		ID:         doc.ID,
		TradeCount: len(doc.Trades),
	}

	wins := 0
	for _, trade := range doc.Trades {
		switch trade.Status {
		case TradeStatusFilled:
			view.FilledCount++
			view.RealizedPnL += trade.PnLUSD
			if trade.PnLUSD > 0 {
				wins++
			}
		case TradeStatusPending:
			view.PendingCount++
		}
	}

	if view.FilledCount > 0 {
		view.WinRatePct = float64(wins) / float64(view.FilledCount) * 100
	}

	for _, pos := range doc.Positions {
		view.GrossExposure += pos.MarketValue()
	}

	return view
}

// MonthlyHistory folds the equity curve into calendar months, oldest first.
// The equity history is assumed chronological, as delivered upstream.
func MonthlyHistory(doc *ModelDocument) []MonthlyReturn {
	var months []MonthlyReturn

	for _, point := range doc.EquityHistory {
		if len(point.Date) < 7 {
			continue
		}
		month := point.Date[:7]

		if len(months) == 0 || months[len(months)-1].Month != month {
			months = append(months, MonthlyReturn{
				Month:          month,
				StartEquityUSD: point.EquityUSD,
				EndEquityUSD:   point.EquityUSD,
			})
			continue
		}

		months[len(months)-1].EndEquityUSD = point.EquityUSD
	}

	for i := range months {
		months[i].ReturnPct = returnPct(months[i].StartEquityUSD, months[i].EndEquityUSD)
	}

	return months
}

// Tradebook returns all trades, newest first.
func Tradebook(doc *ModelDocument) []Trade {
	trades := make([]Trade, len(doc.Trades))
	copy(trades, doc.Trades)

	sort.Slice(trades, func(i, j int) bool {
		return trades[i].ExecutedAt.After(trades[j].ExecutedAt)
	})

	return trades
}

// RecentTrades returns the newest limit trades.
func RecentTrades(doc *ModelDocument, limit int) []Trade {
	trades := Tradebook(doc)
	if limit > 0 && len(trades) > limit {
		trades = trades[:limit]
	}
	return trades
}

// TradesByStatus filters the tradebook, newest first.
func TradesByStatus(doc *ModelDocument, status string) []Trade {
	var out []Trade
	for _, trade := range Tradebook(doc) {
		if trade.Status == status {
			out = append(out, trade)
		}
	}
	return out
}

// Compare ranks models by return for the compare and leaderboard views.
func Compare(docs []*ModelDocument) []CompareEntry {
	entries := make([]CompareEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, CompareEntry{
			ID:        doc.ID,
			Name:      doc.Name,
			Strategy:  doc.Strategy,
			EquityUSD: doc.EquityUSD,
			ReturnPct: returnPct(doc.StartingEquityUSD, doc.EquityUSD),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ReturnPct > entries[j].ReturnPct
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}

	return entries
}

func returnPct(start, end float64) float64 {
	if start <= 0 {
		return 0
	}
	return (end - start) / start * 100
}
