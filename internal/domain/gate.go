package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/davidbz/turnstile/internal/observability"
)

// Generic deny categories returned to callers. The underlying facilitator
// reason is logged, never leaked.
const (
	ReasonPaymentRequired = "payment_required"
	ReasonNoMatch         = "no_matching_requirement"
	ReasonRejected        = "payment_rejected"
	ReasonUnavailable     = "settlement_unavailable"
)

// PaymentGate arbitrates access to paid routes. Each evaluation walks
// Resolve, Quote, Inspect, Verify, Settle in order and lands on exactly one
// terminal outcome; Allow is the only outcome that reaches the downstream
// handler. The gate keeps no per-request state and never retries a failed
// settlement.
type PaymentGate struct {
	registry   *RequirementRegistry
	quotes     *QuoteCalculator
	feed       PriceFeed
	settlement Settlement
	sessions   SessionStore
	metrics    *observability.Metrics
}

// NewPaymentGate creates a payment gate (DI constructor).
func NewPaymentGate(
	registry *RequirementRegistry,
	quotes *QuoteCalculator,
	feed PriceFeed,
	settlement Settlement,
	sessions SessionStore,
	metrics *observability.Metrics,
) *PaymentGate {
	return &PaymentGate{
		registry:   registry,
		quotes:     quotes,
		feed:       feed,
		settlement: settlement,
		sessions:   sessions,
		metrics:    metrics,
	}
}

// Evaluate decides whether a request to routeKey may proceed. A nil proof on
// a paid route yields a quote, not an error.
func (g *PaymentGate) Evaluate(
	ctx context.Context,
	routeKey string,
	description string,
	mimeType string,
	proof *PaymentProof,
) (GateDecision, error) {
	logger := observability.FromContext(ctx)

	// Resolve.
	spec, err := g.registry.Lookup(routeKey)
	if err != nil {
		return GateDecision{}, fmt.Errorf("resolve failed: %w", err)
	}

	// Free routes bypass quoting entirely; the price feed is not consulted.
	if spec.Free() {
		return g.decide(OutcomeAllow, nil, ""), nil
	}

	// Quote.
	snapshot := g.feed.Snapshot(ctx)
	requirements := g.quotes.BuildRequirements(spec.BaseUSDPrice, snapshot, description, mimeType)

	// Inspect.
	if proof == nil {
		return g.decide(OutcomeDenyWithQuote, requirements, ReasonPaymentRequired), nil
	}

	// Verify: match the proof to a requirement by scheme and asset.
	matched, ok := matchRequirement(proof, requirements)
	if !ok {
		logger.Info("payment proof matches no requirement",
			observability.String("scheme", string(proof.Scheme)),
			observability.String("asset", proof.Asset),
		)
		return g.decide(OutcomeDenyInvalid, requirements, ReasonNoMatch), nil
	}

	session, sessionErr := g.sessions.Create(ctx, routeKey)
	if sessionErr != nil {
		// Session bookkeeping must never block settlement.
		logger.Warn("failed to open payment session", observability.Error(sessionErr))
	}

	verdict, verifyErr := g.settlement.Verify(ctx, proof, matched)
	if verifyErr != nil {
		logger.Warn("facilitator verify failed", observability.Error(verifyErr))
		g.closeSession(ctx, session, SessionExpired)
		return g.decide(OutcomeDenyInvalid, requirements, ReasonUnavailable), nil
	}
	if !verdict.OK {
		logger.Info("payment proof rejected",
			observability.String("category", verdict.Reason))
		g.closeSession(ctx, session, SessionExpired)
		return g.decide(OutcomeDenyInvalid, requirements, ReasonRejected), nil
	}

	// Settle.
	if session != nil {
		if err := g.sessions.Transition(ctx, session.ID, SessionSettling); err != nil {
			logger.Warn("failed to mark session settling", observability.Error(err))
		}
	}

	settled, settleErr := g.settlement.Settle(ctx, proof, matched)
	if settleErr != nil {
		logger.Warn("facilitator settle failed", observability.Error(settleErr))
		g.closeSession(ctx, session, SessionExpired)
		return g.decide(OutcomeDenyInvalid, requirements, ReasonUnavailable), nil
	}
	if !settled.OK {
		logger.Info("settlement rejected",
			observability.String("category", settled.Reason))
		g.closeSession(ctx, session, SessionExpired)
		return g.decide(OutcomeDenyInvalid, requirements, ReasonRejected), nil
	}

	logger.Info("payment settled",
		observability.String("scheme", string(matched.Scheme)),
		observability.String("tx_hash", settled.TxHash),
	)
	g.closeSession(ctx, session, SessionSettled)

	return g.decide(OutcomeAllow, nil, ""), nil
}

func (g *PaymentGate) decide(
	outcome GateOutcome,
	requirements []PaymentRequirement,
	reason string,
) GateDecision {
	if g.metrics != nil {
		g.metrics.GateOutcomes.WithLabelValues(string(outcome)).Inc()
	}

	return GateDecision{
		Outcome:      outcome,
		Requirements: requirements,
		Reason:       reason,
	}
}

func (g *PaymentGate) closeSession(ctx context.Context, session *Session, state SessionState) {
	if session == nil {
		return
	}

	if err := g.sessions.Transition(ctx, session.ID, state); err != nil {
		observability.FromContext(ctx).Warn("failed to close payment session",
			observability.String("session_id", session.ID),
			observability.Error(err))
	}
}

// matchRequirement pairs a proof with a requirement by scheme and asset
// contract, case-insensitively on the address.
func matchRequirement(proof *PaymentProof, requirements []PaymentRequirement) (PaymentRequirement, bool) {
	for _, req := range requirements {
		if req.Scheme != proof.Scheme {
			continue
		}
		if !strings.EqualFold(req.Asset.ContractAddress, proof.Asset) {
			continue
		}
		return req, true
	}
	return PaymentRequirement{}, false
}
