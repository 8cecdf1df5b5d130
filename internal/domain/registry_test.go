package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/davidbz/turnstile/internal/domain"
)

func TestRequirementRegistry_RegisterAndLookup(t *testing.T) {
	registry := domain.NewRequirementRegistry()

	t.Run("register and retrieve a spec", func(t *testing.T) {
		spec := domain.EndpointPriceSpec{
			RouteKey:     "model.summary",
			BaseUSDPrice: decimal.RequireFromString("0.01"),
			Tier:         domain.TierLight,
		}
		require.NoError(t, registry.Register(spec))

		got, err := registry.Lookup("model.summary")
		require.NoError(t, err)
		require.True(t, got.BaseUSDPrice.Equal(spec.BaseUSDPrice))
		require.Equal(t, domain.TierLight, got.Tier)
	})

	t.Run("free route reports free", func(t *testing.T) {
		spec := domain.EndpointPriceSpec{
			RouteKey:     "health",
			BaseUSDPrice: decimal.Zero,
			Tier:         domain.TierFree,
		}
		require.NoError(t, registry.Register(spec))

		got, err := registry.Lookup("health")
		require.NoError(t, err)
		require.True(t, got.Free())
	})

	t.Run("unknown route returns ErrRouteNotFound", func(t *testing.T) {
		_, err := registry.Lookup("does.not.exist")
		require.ErrorIs(t, err, domain.ErrRouteNotFound)
	})

	t.Run("empty route key is rejected", func(t *testing.T) {
		err := registry.Register(domain.EndpointPriceSpec{RouteKey: ""})
		require.Error(t, err)
	})

	t.Run("negative price is rejected", func(t *testing.T) {
		err := registry.Register(domain.EndpointPriceSpec{
			RouteKey:     "broken",
			BaseUSDPrice: decimal.RequireFromString("-0.01"),
		})
		require.Error(t, err)
	})
}

func TestRequirementRegistry_Validate(t *testing.T) {
	registry := domain.NewRequirementRegistry()
	require.NoError(t, registry.Register(domain.EndpointPriceSpec{
		RouteKey:     "model.summary",
		BaseUSDPrice: decimal.RequireFromString("0.01"),
		Tier:         domain.TierLight,
	}))

	t.Run("all routes covered", func(t *testing.T) {
		require.NoError(t, registry.Validate([]string{"model.summary"}))
	})

	t.Run("missing route fails", func(t *testing.T) {
		err := registry.Validate([]string{"model.summary", "model.tradebook"})
		require.Error(t, err)
		require.Contains(t, err.Error(), "model.tradebook")
	})
}
