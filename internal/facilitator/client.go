// Package facilitator is the HTTP adapter to the external payment
// verifier/settler. The gate treats it as an opaque capability: it answers
// verify and settle, owns its own timeout, and its failure detail is logged
// but only a generic category ever reaches the caller.
package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/davidbz/turnstile/internal/config"
	"github.com/davidbz/turnstile/internal/domain"
)

// Client implements domain.Settlement against a facilitator endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a facilitator client (DI constructor).
func NewClient(cfg *config.PaymentConfig) *Client {
	return &Client{
		baseURL: cfg.FacilitatorURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.FacilitatorTimeout) * time.Second,
		},
	}
}

// request is the facilitator wire shape for both verify and settle.
type request struct {
	Proof        *domain.PaymentProof      `json:"paymentPayload"`
	Requirements domain.PaymentRequirement `json:"paymentRequirements"`
}

// response is the facilitator's verdict.
type response struct {
	IsValid bool   `json:"isValid"`
	Reason  string `json:"invalidReason,omitempty"`
	TxHash  string `json:"transaction,omitempty"`
}

// Verify checks the proof against the requirement without moving funds.
func (c *Client) Verify(
	ctx context.Context,
	proof *domain.PaymentProof,
	req domain.PaymentRequirement,
) (domain.SettlementOutcome, error) {
	return c.post(ctx, "/verify", proof, req)
}

// Settle executes the payment described by the proof.
func (c *Client) Settle(
	ctx context.Context,
	proof *domain.PaymentProof,
	req domain.PaymentRequirement,
) (domain.SettlementOutcome, error) {
	return c.post(ctx, "/settle", proof, req)
}

func (c *Client) post(
	ctx context.Context,
	path string,
	proof *domain.PaymentProof,
	requirement domain.PaymentRequirement,
) (domain.SettlementOutcome, error) {
	if c.baseURL == "" {
		return domain.SettlementOutcome{}, errors.New("facilitator URL not configured")
	}

	body, err := json.Marshal(request{
		Proof:        proof,
		Requirements: requirement,
	})
	if err != nil {
		return domain.SettlementOutcome{}, fmt.Errorf("failed to marshal facilitator request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return domain.SettlementOutcome{}, fmt.Errorf("failed to build facilitator request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.SettlementOutcome{}, fmt.Errorf("facilitator request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return domain.SettlementOutcome{}, fmt.Errorf("facilitator returned status %d", resp.StatusCode)
	}

	var verdict response
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return domain.SettlementOutcome{}, fmt.Errorf("failed to decode facilitator response: %w", err)
	}

	return domain.SettlementOutcome{
		OK:     verdict.IsValid,
		Reason: verdict.Reason,
		TxHash: verdict.TxHash,
	}, nil
}
