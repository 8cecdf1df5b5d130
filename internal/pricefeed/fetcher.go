package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/davidbz/turnstile/internal/config"
)

// feedResponse is the expected shape of the external price feed.
type feedResponse struct {
	PriceUSD string `json:"priceUsd"`
}

// NewHTTPFetcher builds the default FetchFunc against the configured feed URL.
func NewHTTPFetcher(cfg *config.PriceFeedConfig) FetchFunc {
	client := &http.Client{
		Timeout: time.Duration(cfg.Timeout) * time.Second,
	}
	url := cfg.URL

	return func(ctx context.Context) (decimal.Decimal, error) {
		if url == "" {
			return decimal.Zero, errors.New("price feed URL not configured")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to build feed request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return decimal.Zero, fmt.Errorf("feed request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return decimal.Zero, fmt.Errorf("feed returned status %d", resp.StatusCode)
		}

		var body feedResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return decimal.Zero, fmt.Errorf("failed to decode feed response: %w", err)
		}

		price, err := decimal.NewFromString(body.PriceUSD)
		if err != nil {
			return decimal.Zero, fmt.Errorf("feed returned malformed price %q: %w", body.PriceUSD, err)
		}

		return price, nil
	}
}
