// Package session persists payment-flow bookkeeping and sweeps abandoned
// flows. Multi-step settlement can leave a session half-completed when a
// client walks away; without sweeping those would accumulate unboundedly.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/davidbz/turnstile/internal/domain"
)

// MemoryStore is the default in-process session store.
type MemoryStore struct {
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*domain.Session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:      time.Now,
		sessions: make(map[string]*domain.Session),
	}
}

// WithClock overrides the clock, for tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

// Create opens a new session in the open state.
func (s *MemoryStore) Create(_ context.Context, routeKey string) (*domain.Session, error) {
	now := s.now()
	session := &domain.Session{
		ID:             uuid.New().String(),
		RouteKey:       routeKey,
		CreatedAt:      now,
		LastActivityAt: now,
		State:          domain.SessionOpen,
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return cloneSession(session), nil
}

// Get retrieves a session by id.
func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}

	return cloneSession(session), nil
}

// Transition moves a session to the given state and refreshes its activity
// timestamp. Settled and expired are terminal.
func (s *MemoryStore) Transition(_ context.Context, id string, state domain.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}

	if session.State.Terminal() {
		return fmt.Errorf("%w: %s is %s", domain.ErrSessionTerminal, id, session.State)
	}

	session.State = state
	session.LastActivityAt = s.now()
	return nil
}

// ExpireIdle sweeps open and settling sessions idle past the threshold.
// Terminal sessions linger for the retention window, then the sweep drops
// them so the map does not grow by one entry per settled payment.
func (s *MemoryStore) ExpireIdle(_ context.Context, idleThreshold time.Duration) (int, error) {
	now := s.now()
	cutoff := now.Add(-idleThreshold)
	retentionCutoff := now.Add(-terminalRetention)

	s.mu.Lock()
	defer s.mu.Unlock()

	swept := 0
	for id, session := range s.sessions {
		if session.State.Terminal() {
			if session.LastActivityAt.Before(retentionCutoff) {
				delete(s.sessions, id)
			}
			continue
		}
		if session.LastActivityAt.After(cutoff) {
			continue
		}

		session.State = domain.SessionExpired
		session.LastActivityAt = now
		swept++
	}

	return swept, nil
}

func cloneSession(session *domain.Session) *domain.Session {
	clone := *session
	return &clone
}
