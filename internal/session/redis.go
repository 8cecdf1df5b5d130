package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/davidbz/turnstile/internal/domain"
	"github.com/davidbz/turnstile/internal/observability"
)

const (
	sessionKeyPrefix = "turnstile:session:"
	activeSetKey     = "turnstile:sessions:active"

	// Terminal sessions linger briefly for inspection, then fall out.
	terminalRetention = 24 * time.Hour
)

// RedisStore persists sessions in redis so a restart does not orphan
// in-flight settlement flows. Live sessions are tracked in a set for the
// sweeper's scan.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore creates a redis-backed session store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		now:    time.Now,
	}
}

// Create opens a new session in the open state.
func (s *RedisStore) Create(ctx context.Context, routeKey string) (*domain.Session, error) {
	now := s.now()
	session := &domain.Session{
		ID:             uuid.New().String(),
		RouteKey:       routeKey,
		CreatedAt:      now,
		LastActivityAt: now,
		State:          domain.SessionOpen,
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, sessionKey(session.ID),
		"route_key", session.RouteKey,
		"created_at", session.CreatedAt.UnixNano(),
		"last_activity_at", session.LastActivityAt.UnixNano(),
		"state", string(session.State),
	)
	pipe.SAdd(ctx, activeSetKey, session.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// Get retrieves a session by id.
func (s *RedisStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	fields, err := s.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}

	return parseSession(id, fields), nil
}

// Transition moves a session to the given state and refreshes its activity
// timestamp. Terminal sessions leave the active set and pick up a TTL.
func (s *RedisStore) Transition(ctx context.Context, id string, state domain.SessionState) error {
	session, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if session.State.Terminal() {
		return fmt.Errorf("%w: %s is %s", domain.ErrSessionTerminal, id, session.State)
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, sessionKey(id),
		"state", string(state),
		"last_activity_at", s.now().UnixNano(),
	)
	if state.Terminal() {
		pipe.SRem(ctx, activeSetKey, id)
		pipe.Expire(ctx, sessionKey(id), terminalRetention)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to transition session %s: %w", id, err)
	}

	return nil
}

// ExpireIdle sweeps open and settling sessions idle past the threshold.
func (s *RedisStore) ExpireIdle(ctx context.Context, idleThreshold time.Duration) (int, error) {
	ids, err := s.client.SMembers(ctx, activeSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list active sessions: %w", err)
	}

	cutoff := s.now().Add(-idleThreshold)
	logger := observability.FromContext(ctx)

	swept := 0
	for _, id := range ids {
		session, getErr := s.Get(ctx, id)
		if getErr != nil {
			// A session can settle or vanish between the scan and the
			// read; drop it from the active set and move on.
			s.client.SRem(ctx, activeSetKey, id)
			continue
		}

		if session.State.Terminal() || session.LastActivityAt.After(cutoff) {
			continue
		}

		if transErr := s.Transition(ctx, id, domain.SessionExpired); transErr != nil {
			logger.Warn("failed to expire idle session",
				observability.String("session_id", id),
				observability.Error(transErr))
			continue
		}
		swept++
	}

	return swept, nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func parseSession(id string, fields map[string]string) *domain.Session {
	return &domain.Session{
		ID:             id,
		RouteKey:       fields["route_key"],
		CreatedAt:      time.Unix(0, parseInt(fields["created_at"])),
		LastActivityAt: time.Unix(0, parseInt(fields["last_activity_at"])),
		State:          domain.SessionState(fields["state"]),
	}
}

func parseInt(value string) int64 {
	var n int64
	_, _ = fmt.Sscan(value, &n)
	return n
}
