package session

import (
	"context"
	"time"

	"github.com/davidbz/turnstile/internal/domain"
	"github.com/davidbz/turnstile/internal/observability"
)

// Sweeper expires payment sessions that sat idle past the threshold. It runs
// on the process scheduler; a sweep failure is logged and the next tick
// tries again.
type Sweeper struct {
	store         domain.SessionStore
	idleThreshold time.Duration
	metrics       *observability.Metrics
}

// NewSweeper creates a session sweeper.
func NewSweeper(store domain.SessionStore, idleThreshold time.Duration, metrics *observability.Metrics) *Sweeper {
	return &Sweeper{
		store:         store,
		idleThreshold: idleThreshold,
		metrics:       metrics,
	}
}

// Sweep runs one pass over the store.
func (s *Sweeper) Sweep(ctx context.Context) {
	logger := observability.FromContext(ctx)

	swept, err := s.store.ExpireIdle(ctx, s.idleThreshold)
	if err != nil {
		logger.Warn("session sweep failed", observability.Error(err))
		return
	}

	if swept > 0 {
		logger.Info("expired idle payment sessions", observability.Int("count", swept))
		if s.metrics != nil {
			s.metrics.SessionsSwept.Add(float64(swept))
		}
	}
}
