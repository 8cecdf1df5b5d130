package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Tier is a pricing category grouping routes of similar cost to serve.
type Tier string

const (
	TierFree     Tier = "free"
	TierLight    Tier = "light"
	TierStandard Tier = "standard"
	TierDeep     Tier = "deep"
	TierSignals  Tier = "signals"
)

// Scheme is a settlement method for a payment requirement.
type Scheme string

const (
	// SchemeExact requires the stated amount to be paid precisely.
	SchemeExact Scheme = "exact"

	// SchemeUpto treats the stated amount as a ceiling; used for the
	// discounted option where the quoted amount is a cap.
	SchemeUpto Scheme = "upto"
)

// Asset identifies a settlement token on a network.
type Asset struct {
	ContractAddress string `json:"address"`
	Decimals        int32  `json:"decimals"`
	Symbol          string `json:"symbol"`
	DisplayName     string `json:"displayName"`
}

// EndpointPriceSpec is the static price entry for one logical route.
// BaseUSDPrice of zero means the route is never gated.
type EndpointPriceSpec struct {
	RouteKey     string
	BaseUSDPrice decimal.Decimal
	Tier         Tier
}

// Free reports whether the route is served without payment.
func (s EndpointPriceSpec) Free() bool {
	return s.BaseUSDPrice.IsZero()
}

// PriceSnapshot is an immutable observation of the discount token's USD
// price. It is replaced atomically on refresh, never mutated in place.
type PriceSnapshot struct {
	PriceUSD  decimal.Decimal
	FetchedAt time.Time
}

// PaymentRequirement is one accepted way to satisfy a single logical charge.
// AmountBaseUnits is an arbitrary-precision integer rendered as a string in
// the asset's smallest unit.
type PaymentRequirement struct {
	Scheme          Scheme `json:"scheme"`
	Network         string `json:"network"`
	PayTo           string `json:"payTo"`
	Asset           Asset  `json:"asset"`
	AmountBaseUnits string `json:"maxAmountRequired"`
	Description     string `json:"description,omitempty"`
	MimeType        string `json:"mimeType,omitempty"`
}

// PaymentProof is the caller-supplied evidence of payment. It is opaque to
// the gate beyond the fields needed to match it against a requirement; the
// payload travels untouched to the facilitator.
type PaymentProof struct {
	Scheme  Scheme          `json:"scheme"`
	Network string          `json:"network"`
	Asset   string          `json:"asset"`
	Amount  string          `json:"amount"`
	Payload json.RawMessage `json:"payload"`
}

// SessionState is the lifecycle state of a payment session.
type SessionState string

const (
	SessionOpen     SessionState = "open"
	SessionSettling SessionState = "settling"
	SessionSettled  SessionState = "settled"
	SessionExpired  SessionState = "expired"
)

// Terminal reports whether the state admits no further transitions.
func (s SessionState) Terminal() bool {
	return s == SessionSettled || s == SessionExpired
}

// Session is the bookkeeping record for a payment flow that may span more
// than one request before settlement completes.
type Session struct {
	ID             string       `json:"id"`
	RouteKey       string       `json:"routeKey"`
	CreatedAt      time.Time    `json:"createdAt"`
	LastActivityAt time.Time    `json:"lastActivityAt"`
	State          SessionState `json:"state"`
}

// SettlementOutcome is the facilitator's verdict on a proof.
type SettlementOutcome struct {
	OK bool
	// Reason is a generic category safe to return to the caller
	// (e.g. "insufficient_funds", "invalid_signature", "expired").
	Reason string
	// TxHash is set on successful settlement.
	TxHash string
}

// GateOutcome is the terminal state of one payment gate evaluation.
type GateOutcome string

const (
	// OutcomeAllow forwards the request to the downstream handler.
	OutcomeAllow GateOutcome = "allow"

	// OutcomeDenyWithQuote responds with the requirement set and a
	// payment-required status. It is actionable data, not an error.
	OutcomeDenyWithQuote GateOutcome = "deny_with_quote"

	// OutcomeDenyInvalid rejects a present-but-unusable proof.
	OutcomeDenyInvalid GateOutcome = "deny_invalid"
)

// GateDecision is what the payment gate hands back to the HTTP layer.
type GateDecision struct {
	Outcome      GateOutcome
	Requirements []PaymentRequirement
	// Reason is the generic category for deny outcomes.
	Reason string
}
