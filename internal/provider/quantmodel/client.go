package quantmodel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/davidbz/turnstile/internal/config"
	"github.com/davidbz/turnstile/internal/domain"
)

// Client wraps the HTTP client for the upstream model data provider.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an upstream client (DI constructor).
func NewClient(cfg *config.UpstreamConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

// ListModels fetches the model roster.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var roster struct {
		Models []ModelInfo `json:"models"`
	}

	if err := c.get(ctx, "/models", &roster); err != nil {
		return nil, err
	}

	return roster.Models, nil
}

// FetchModel fetches the raw document for one model.
func (c *Client) FetchModel(ctx context.Context, modelID string) (*ModelDocument, error) {
	var doc ModelDocument
	if err := c.get(ctx, "/models/"+url.PathEscape(modelID), &doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build upstream request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s", domain.ErrModelNotFound, path)
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode upstream response: %w", err)
	}

	return nil
}
