package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/davidbz/turnstile/internal/domain"
)

func testAssets() (domain.Asset, domain.Asset) {
	usd := domain.Asset{
		ContractAddress: "0xUSDC",
		Decimals:        6,
		Symbol:          "USDC",
		DisplayName:     "USD Coin",
	}
	discount := domain.Asset{
		ContractAddress: "0xQMDL",
		Decimals:        18,
		Symbol:          "QMDL",
		DisplayName:     "QMDL",
	}
	return usd, discount
}

func newTestCalculator(t *testing.T, rate string) *domain.QuoteCalculator {
	t.Helper()

	usd, discount := testAssets()
	calc, err := domain.NewQuoteCalculator(
		usd,
		discount,
		decimal.RequireFromString(rate),
		"0xTreasury",
		"base",
	)
	require.NoError(t, err)
	return calc
}

func snapshotAt(price string) domain.PriceSnapshot {
	return domain.PriceSnapshot{
		PriceUSD:  decimal.RequireFromString(price),
		FetchedAt: time.Now(),
	}
}

func TestNewQuoteCalculator_RejectsBadInput(t *testing.T) {
	usd, discount := testAssets()

	t.Run("empty payout address", func(t *testing.T) {
		_, err := domain.NewQuoteCalculator(usd, discount, decimal.Zero, "", "base")
		require.Error(t, err)
	})

	t.Run("negative discount rate", func(t *testing.T) {
		_, err := domain.NewQuoteCalculator(usd, discount, decimal.RequireFromString("-0.1"), "0xT", "base")
		require.Error(t, err)
	})

	t.Run("discount rate of one", func(t *testing.T) {
		_, err := domain.NewQuoteCalculator(usd, discount, decimal.NewFromInt(1), "0xT", "base")
		require.Error(t, err)
	})
}

func TestBuildRequirements_FreeRoute(t *testing.T) {
	calc := newTestCalculator(t, "0.3")

	reqs := calc.BuildRequirements(decimal.Zero, snapshotAt("0.001"), "", "")
	require.Empty(t, reqs)
}

func TestBuildRequirements_ExactAmountRoundHalfUp(t *testing.T) {
	calc := newTestCalculator(t, "0.3")

	tests := []struct {
		name     string
		baseUSD  string
		expected string
	}{
		{name: "whole cent", baseUSD: "0.05", expected: "50000"},
		{name: "sub base unit rounds up", baseUSD: "0.0000005", expected: "1"},
		{name: "sub half base unit rounds down", baseUSD: "0.0000004", expected: "0"},
		{name: "ten cents", baseUSD: "0.10", expected: "100000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqs := calc.BuildRequirements(decimal.RequireFromString(tt.baseUSD), snapshotAt("0.001"), "", "")
			require.NotEmpty(t, reqs)

			exact := requireScheme(t, reqs, domain.SchemeExact)
			require.Equal(t, tt.expected, exact.AmountBaseUnits)
			require.Equal(t, "USDC", exact.Asset.Symbol)
		})
	}
}

func TestBuildRequirements_DiscountedScenario(t *testing.T) {
	// baseUsd 0.05, discount 0.3, feed price 0.0000003:
	// target 0.035 USD, ceil(0.035 / 0.0000003) = 116667 display units.
	calc := newTestCalculator(t, "0.3")

	reqs := calc.BuildRequirements(decimal.RequireFromString("0.05"), snapshotAt("0.0000003"), "", "")
	require.Len(t, reqs, 2)

	upto := requireScheme(t, reqs, domain.SchemeUpto)
	require.Equal(t, "116667"+"000000000000000000", upto.AmountBaseUnits)
	require.Equal(t, "QMDL", upto.Asset.Symbol)
	require.Equal(t, "base", upto.Network)
	require.Equal(t, "0xTreasury", upto.PayTo)
}

func TestBuildRequirements_DiscountedValueBounds(t *testing.T) {
	// The discounted target is exactly (1-rate)×base; the quoted cap is the
	// target rounded up to a whole display unit, so its implied USD value
	// stays within one token price of the target and above zero.
	calc := newTestCalculator(t, "0.3")

	price := decimal.RequireFromString("0.0000003")
	base := decimal.RequireFromString("0.05")
	target := base.Mul(decimal.RequireFromString("0.7"))

	reqs := calc.BuildRequirements(base, snapshotAt(price.String()), "", "")
	upto := requireScheme(t, reqs, domain.SchemeUpto)

	units := decimal.RequireFromString(upto.AmountBaseUnits).Shift(-18)
	implied := units.Mul(price)

	require.True(t, implied.IsPositive())
	require.True(t, implied.GreaterThanOrEqual(target), "cap must never under-pay the target")
	require.True(t, implied.LessThan(target.Add(price)), "cap overshoot is bounded by one display unit")
}

func TestBuildRequirements_CapCoversTargetAtDivisionPrecision(t *testing.T) {
	// The true quotient here is 2 + 3.3e-21: the default 16-place division
	// rounds it to exactly 2, whose cap under-pays the target. The quote
	// must land on the true ceiling of 3 display units.
	calc := newTestCalculator(t, "0")

	price := decimal.RequireFromString("0.0000003")
	target := decimal.RequireFromString("0.000000600000000000000000001")

	reqs := calc.BuildRequirements(target, snapshotAt(price.String()), "", "")
	upto := requireScheme(t, reqs, domain.SchemeUpto)
	require.Equal(t, "3"+"000000000000000000", upto.AmountBaseUnits)

	implied := decimal.RequireFromString(upto.AmountBaseUnits).Shift(-18).Mul(price)
	require.True(t, implied.GreaterThanOrEqual(target), "cap must never under-pay the target")
}

func TestBuildRequirements_ExactQuotientIsNotBumped(t *testing.T) {
	// 0.0000006 / 0.0000003 divides exactly; the cap stays at 2 units.
	calc := newTestCalculator(t, "0")

	reqs := calc.BuildRequirements(decimal.RequireFromString("0.0000006"), snapshotAt("0.0000003"), "", "")
	upto := requireScheme(t, reqs, domain.SchemeUpto)
	require.Equal(t, "2"+"000000000000000000", upto.AmountBaseUnits)
}

func TestBuildRequirements_NonPositiveFeedOmitsDiscount(t *testing.T) {
	calc := newTestCalculator(t, "0.3")

	tests := []struct {
		name  string
		price string
	}{
		{name: "zero price", price: "0"},
		{name: "negative price", price: "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqs := calc.BuildRequirements(decimal.RequireFromString("0.05"), snapshotAt(tt.price), "", "")
			require.Len(t, reqs, 1)
			require.Equal(t, domain.SchemeExact, reqs[0].Scheme)
		})
	}
}

func TestBuildRequirements_AtMostOnePerScheme(t *testing.T) {
	calc := newTestCalculator(t, "0.3")

	reqs := calc.BuildRequirements(decimal.RequireFromString("0.10"), snapshotAt("0.0000003"), "", "")
	require.Len(t, reqs, 2)

	seen := make(map[domain.Scheme]int)
	for _, req := range reqs {
		seen[req.Scheme]++
	}
	require.Equal(t, 1, seen[domain.SchemeExact])
	require.Equal(t, 1, seen[domain.SchemeUpto])
}

func TestDisplayToBaseUnitsRoundTrip(t *testing.T) {
	// Converting display units to base units and back moves the value by at
	// most one base unit.
	values := []string{"1", "116667", "0.000001", "123.456789"}

	for _, raw := range values {
		display := decimal.RequireFromString(raw)
		baseUnits := display.Shift(6).Floor()
		back := baseUnits.Shift(-6)

		diff := display.Sub(back).Abs()
		require.True(t, diff.LessThanOrEqual(decimal.New(1, -6)),
			"round trip of %s moved by %s", raw, diff)
	}
}

func requireScheme(t *testing.T, reqs []domain.PaymentRequirement, scheme domain.Scheme) domain.PaymentRequirement {
	t.Helper()

	for _, req := range reqs {
		if req.Scheme == scheme {
			return req
		}
	}

	t.Fatalf("no requirement with scheme %s", scheme)
	return domain.PaymentRequirement{}
}
