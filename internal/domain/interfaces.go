package domain

import (
	"context"
	"time"
)

// PriceFeed supplies the current USD price snapshot of the discount token.
type PriceFeed interface {
	// Snapshot returns the freshest available snapshot. It must always
	// return a usable snapshot: last-known on fetch failure, the
	// configured floor price when nothing was ever fetched.
	Snapshot(ctx context.Context) PriceSnapshot
}

// Settlement is the external verifier/settler capability. Implementations
// own their timeouts; a timeout surfaces as a failed outcome, never a hang.
type Settlement interface {
	// Verify checks the proof against the requirement without moving funds.
	Verify(ctx context.Context, proof *PaymentProof, req PaymentRequirement) (SettlementOutcome, error)

	// Settle executes the payment described by the proof.
	Settle(ctx context.Context, proof *PaymentProof, req PaymentRequirement) (SettlementOutcome, error)
}

// SessionStore persists payment sessions for the sweeper and the gate.
type SessionStore interface {
	// Create opens a new session and returns it.
	Create(ctx context.Context, routeKey string) (*Session, error)

	// Get retrieves a session by id.
	Get(ctx context.Context, id string) (*Session, error)

	// Transition moves a session to the given state, updating its
	// activity timestamp. Transitions out of a terminal state fail.
	Transition(ctx context.Context, id string, state SessionState) error

	// ExpireIdle transitions every open or settling session whose last
	// activity is older than the threshold to expired, returning how
	// many were swept.
	ExpireIdle(ctx context.Context, idleThreshold time.Duration) (int, error)
}
