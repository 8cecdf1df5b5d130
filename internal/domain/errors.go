package domain

import "errors"

// Sentinel errors for the payment gating core. Per-request errors are
// isolated to their request; none may corrupt shared cache or session state.
var (
	// ErrRouteNotFound indicates a route key absent from the requirement
	// registry. Exposed routes are validated at startup, so hitting this
	// at request time is a configuration error.
	ErrRouteNotFound = errors.New("route not found in requirement registry")

	// ErrNoMatchingRequirement indicates a proof that matches none of the
	// route's requirements by scheme and asset.
	ErrNoMatchingRequirement = errors.New("payment proof matches no requirement")

	// ErrPaymentRejected indicates the facilitator refused to verify or
	// settle a proof.
	ErrPaymentRejected = errors.New("payment rejected by facilitator")

	// ErrModelNotFound indicates an unknown model identifier upstream.
	ErrModelNotFound = errors.New("model not found")

	// ErrEntityNotFound indicates an entity (e.g. a ticker) absent from a
	// model's data.
	ErrEntityNotFound = errors.New("entity not found in model data")

	// ErrUpstreamUnavailable indicates the data provider was unreachable
	// or returned a non-2xx status.
	ErrUpstreamUnavailable = errors.New("upstream data provider unavailable")

	// ErrSessionNotFound indicates an unknown session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionTerminal indicates a transition out of a settled or
	// expired session.
	ErrSessionTerminal = errors.New("session is in a terminal state")
)
