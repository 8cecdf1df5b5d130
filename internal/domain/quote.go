package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// QuoteCalculator turns a base USD price and a price feed snapshot into the
// set of equivalent payment requirements, one per accepted settlement option.
// It is a pure mapping: all state (assets, rate, payout address) is fixed at
// construction.
type QuoteCalculator struct {
	usdAsset      Asset
	discountAsset Asset
	discountRate  decimal.Decimal
	payTo         string
	network       string
}

// NewQuoteCalculator creates a quote calculator. The discount rate is a
// fixed fraction in [0, 1).
func NewQuoteCalculator(
	usdAsset Asset,
	discountAsset Asset,
	discountRate decimal.Decimal,
	payTo string,
	network string,
) (*QuoteCalculator, error) {
	if payTo == "" {
		return nil, fmt.Errorf("payout address cannot be empty")
	}

	if discountRate.IsNegative() || discountRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("discount rate %s outside [0, 1)", discountRate)
	}

	return &QuoteCalculator{
		usdAsset:      usdAsset,
		discountAsset: discountAsset,
		discountRate:  discountRate,
		payTo:         payTo,
		network:       network,
	}, nil
}

// BuildRequirements returns the requirement set for one logical charge.
// A zero base price yields an empty set (free route). A non-positive feed
// price omits the discounted option rather than emitting an unusable amount.
func (q *QuoteCalculator) BuildRequirements(
	baseUSDPrice decimal.Decimal,
	snapshot PriceSnapshot,
	description string,
	mimeType string,
) []PaymentRequirement {
	if baseUSDPrice.IsZero() {
		return []PaymentRequirement{}
	}

	requirements := make([]PaymentRequirement, 0, 2)

	// Exact option: round-half-up to USD-asset base units.
	exactUnits := baseUSDPrice.Shift(q.usdAsset.Decimals).Round(0)
	requirements = append(requirements, PaymentRequirement{
		Scheme:          SchemeExact,
		Network:         q.network,
		PayTo:           q.payTo,
		Asset:           q.usdAsset,
		AmountBaseUnits: exactUnits.String(),
		Description:     description,
		MimeType:        mimeType,
	})

	if !snapshot.PriceUSD.IsPositive() {
		return requirements
	}

	// Discounted option, quoted in the discount token. The ceiling on the
	// display-unit step guarantees the payer never under-pays the
	// discounted USD target; the floor to base units is a unit-precision
	// step and can only lose sub-base-unit value.
	discountedUSD := baseUSDPrice.Mul(decimal.NewFromInt(1).Sub(q.discountRate))

	// Divide past the default precision, then check the cap against the
	// target: a quotient rounded at division precision can land one display
	// unit below the true ceiling.
	tokenAmount := discountedUSD.DivRound(snapshot.PriceUSD, 28).Ceil()
	if tokenAmount.Mul(snapshot.PriceUSD).LessThan(discountedUSD) {
		tokenAmount = tokenAmount.Add(decimal.NewFromInt(1))
	}
	discountUnits := tokenAmount.Shift(q.discountAsset.Decimals).Floor()

	requirements = append(requirements, PaymentRequirement{
		Scheme:          SchemeUpto,
		Network:         q.network,
		PayTo:           q.payTo,
		Asset:           q.discountAsset,
		AmountBaseUnits: discountUnits.String(),
		Description:     description,
		MimeType:        mimeType,
	})

	return requirements
}

// DiscountRate returns the configured discount fraction.
func (q *QuoteCalculator) DiscountRate() decimal.Decimal {
	return q.discountRate
}

// Assets returns the accepted settlement assets.
func (q *QuoteCalculator) Assets() (usd Asset, discount Asset) {
	return q.usdAsset, q.discountAsset
}

// Network returns the settlement network identifier.
func (q *QuoteCalculator) Network() string {
	return q.network
}

// PayTo returns the treasury payout address.
func (q *QuoteCalculator) PayTo() string {
	return q.payTo
}
