package domain_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/davidbz/turnstile/internal/domain"
	"github.com/davidbz/turnstile/internal/observability"
)

// fakeFeed records whether the gate consulted the price feed.
type fakeFeed struct {
	price string
	calls int
}

func (f *fakeFeed) Snapshot(_ context.Context) domain.PriceSnapshot {
	f.calls++
	return domain.PriceSnapshot{
		PriceUSD:  decimal.RequireFromString(f.price),
		FetchedAt: time.Now(),
	}
}

// fakeSettlement scripts facilitator verdicts.
type fakeSettlement struct {
	verifyOutcome domain.SettlementOutcome
	verifyErr     error
	settleOutcome domain.SettlementOutcome
	settleErr     error
	verifyCalls   int
	settleCalls   int
}

func (f *fakeSettlement) Verify(_ context.Context, _ *domain.PaymentProof, _ domain.PaymentRequirement) (domain.SettlementOutcome, error) {
	f.verifyCalls++
	return f.verifyOutcome, f.verifyErr
}

func (f *fakeSettlement) Settle(_ context.Context, _ *domain.PaymentProof, _ domain.PaymentRequirement) (domain.SettlementOutcome, error) {
	f.settleCalls++
	return f.settleOutcome, f.settleErr
}

// fakeSessions tracks session transitions.
type fakeSessions struct {
	created     int
	transitions map[string][]domain.SessionState
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{transitions: make(map[string][]domain.SessionState)}
}

func (f *fakeSessions) Create(_ context.Context, routeKey string) (*domain.Session, error) {
	f.created++
	return &domain.Session{
		ID:       "session-1",
		RouteKey: routeKey,
		State:    domain.SessionOpen,
	}, nil
}

func (f *fakeSessions) Get(_ context.Context, id string) (*domain.Session, error) {
	return nil, domain.ErrSessionNotFound
}

func (f *fakeSessions) Transition(_ context.Context, id string, state domain.SessionState) error {
	f.transitions[id] = append(f.transitions[id], state)
	return nil
}

func (f *fakeSessions) ExpireIdle(_ context.Context, _ time.Duration) (int, error) {
	return 0, nil
}

type gateFixture struct {
	gate       *domain.PaymentGate
	feed       *fakeFeed
	settlement *fakeSettlement
	sessions   *fakeSessions
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()

	registry := domain.NewRequirementRegistry()
	require.NoError(t, registry.Register(domain.EndpointPriceSpec{
		RouteKey:     "health",
		BaseUSDPrice: decimal.Zero,
		Tier:         domain.TierFree,
	}))
	require.NoError(t, registry.Register(domain.EndpointPriceSpec{
		RouteKey:     "model.summary",
		BaseUSDPrice: decimal.RequireFromString("0.05"),
		Tier:         domain.TierLight,
	}))

	calc := newTestCalculator(t, "0.3")
	feed := &fakeFeed{price: "0.0000003"}
	settlement := &fakeSettlement{
		verifyOutcome: domain.SettlementOutcome{OK: true},
		settleOutcome: domain.SettlementOutcome{OK: true, TxHash: "0xabc"},
	}
	sessions := newFakeSessions()

	gate := domain.NewPaymentGate(registry, calc, feed, settlement, sessions, observability.NewMetricsForTest())

	return &gateFixture{
		gate:       gate,
		feed:       feed,
		settlement: settlement,
		sessions:   sessions,
	}
}

func usdcProof() *domain.PaymentProof {
	return &domain.PaymentProof{
		Scheme:  domain.SchemeExact,
		Network: "base",
		Asset:   "0xUSDC",
		Amount:  "50000",
	}
}

func TestPaymentGate_FreeRouteAllowsWithoutFeed(t *testing.T) {
	f := newGateFixture(t)

	decision, err := f.gate.Evaluate(context.Background(), "health", "", "", nil)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeAllow, decision.Outcome)
	require.Zero(t, f.feed.calls, "free routes must not consult the price feed")
	require.Zero(t, f.settlement.verifyCalls)
}

func TestPaymentGate_UnknownRouteFails(t *testing.T) {
	f := newGateFixture(t)

	_, err := f.gate.Evaluate(context.Background(), "no.such.route", "", "", nil)
	require.ErrorIs(t, err, domain.ErrRouteNotFound)
}

func TestPaymentGate_NoProofDeniesWithQuote(t *testing.T) {
	f := newGateFixture(t)

	decision, err := f.gate.Evaluate(context.Background(), "model.summary", "summary", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeDenyWithQuote, decision.Outcome)
	require.Equal(t, domain.ReasonPaymentRequired, decision.Reason)
	require.Len(t, decision.Requirements, 2, "both schemes quoted when base and feed prices are positive")
	require.Zero(t, f.settlement.verifyCalls)
	require.Zero(t, f.sessions.created, "quoting opens no session")
}

func TestPaymentGate_MismatchedProofDeniesInvalid(t *testing.T) {
	f := newGateFixture(t)

	proof := &domain.PaymentProof{
		Scheme: domain.SchemeExact,
		Asset:  "0xWrongToken",
	}

	decision, err := f.gate.Evaluate(context.Background(), "model.summary", "", "", proof)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeDenyInvalid, decision.Outcome)
	require.Equal(t, domain.ReasonNoMatch, decision.Reason)
	require.NotEmpty(t, decision.Requirements, "deny still carries the quote")
	require.Zero(t, f.settlement.verifyCalls)
}

func TestPaymentGate_MatchedProofSettlesAndAllows(t *testing.T) {
	f := newGateFixture(t)

	decision, err := f.gate.Evaluate(context.Background(), "model.summary", "", "", usdcProof())
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeAllow, decision.Outcome)
	require.Equal(t, 1, f.settlement.verifyCalls)
	require.Equal(t, 1, f.settlement.settleCalls)
	require.Equal(t, 1, f.sessions.created)
	require.Equal(t,
		[]domain.SessionState{domain.SessionSettling, domain.SessionSettled},
		f.sessions.transitions["session-1"])
}

func TestPaymentGate_AssetMatchIsCaseInsensitive(t *testing.T) {
	f := newGateFixture(t)

	proof := usdcProof()
	proof.Asset = "0xusdc"

	decision, err := f.gate.Evaluate(context.Background(), "model.summary", "", "", proof)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeAllow, decision.Outcome)
}

func TestPaymentGate_VerifierRejectionDeniesGenerically(t *testing.T) {
	f := newGateFixture(t)
	f.settlement.verifyOutcome = domain.SettlementOutcome{OK: false, Reason: "insufficient_funds"}

	decision, err := f.gate.Evaluate(context.Background(), "model.summary", "", "", usdcProof())
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeDenyInvalid, decision.Outcome)
	require.Equal(t, domain.ReasonRejected, decision.Reason, "underlying reason is not leaked")
	require.Zero(t, f.settlement.settleCalls, "rejected verification never settles")
	require.Equal(t,
		[]domain.SessionState{domain.SessionExpired},
		f.sessions.transitions["session-1"])
}

func TestPaymentGate_FacilitatorErrorDeniesWithoutRetry(t *testing.T) {
	f := newGateFixture(t)
	f.settlement.settleErr = errors.New("connection reset")

	decision, err := f.gate.Evaluate(context.Background(), "model.summary", "", "", usdcProof())
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeDenyInvalid, decision.Outcome)
	require.Equal(t, domain.ReasonUnavailable, decision.Reason)
	require.Equal(t, 1, f.settlement.settleCalls, "the gate never retries settlement")
}

func TestPaymentGate_DegradedFeedStillQuotesExactOnly(t *testing.T) {
	f := newGateFixture(t)
	f.feed.price = "0"

	decision, err := f.gate.Evaluate(context.Background(), "model.summary", "", "", nil)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeDenyWithQuote, decision.Outcome)
	require.Len(t, decision.Requirements, 1)
	require.Equal(t, domain.SchemeExact, decision.Requirements[0].Scheme)
}
