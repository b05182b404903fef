package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	sessionKeyPrefix  = "chat_session:"
	defaultSessionTTL = 30 * time.Minute
)

// PendingCancellation is an appointment waiting on a "yes" from the user.
type PendingCancellation struct {
	AppointmentID string `json:"appointment_id"`
	Client        string `json:"client"`
	Date          string `json:"date"`
	Time          string `json:"time"`
}

// SessionState is what the dialogue remembers between messages.
type SessionState struct {
	Pending  *PendingCancellation `json:"pending,omitempty"`
	YearHint string               `json:"year_hint,omitempty"`
}

// SessionStore keeps dialogue state in Redis with a sliding TTL.
type SessionStore struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

// NewSessionStore creates a session store. A non-positive ttl uses 30 minutes.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if client == nil {
		panic("assistant: redis client required")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionStore{
		redis:  client,
		tracer: otel.Tracer("spadesk.internal.assistant.session"),
		ttl:    ttl,
	}
}

// Load returns the stored state, or a zero state when none exists.
func (s *SessionStore) Load(ctx context.Context, sessionID string) (SessionState, error) {
	if sessionID == "" {
		return SessionState{}, errors.New("assistant: session id required")
	}
	ctx, span := s.tracer.Start(ctx, "assistant.session.load")
	defer span.End()

	raw, err := s.redis.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return SessionState{}, nil
		}
		span.RecordError(err)
		return SessionState{}, fmt.Errorf("assistant: load session: %w", err)
	}

	var state SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		span.RecordError(err)
		return SessionState{}, fmt.Errorf("assistant: decode session: %w", err)
	}
	return state, nil
}

// Save writes state and refreshes its TTL.
func (s *SessionStore) Save(ctx context.Context, sessionID string, state SessionState) error {
	if sessionID == "" {
		return errors.New("assistant: session id required")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("assistant: marshal session: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "assistant.session.save")
	defer span.End()

	if err := s.redis.Set(ctx, sessionKey(sessionID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("assistant: save session: %w", err)
	}
	return nil
}

// Clear forgets the session.
func (s *SessionStore) Clear(ctx context.Context, sessionID string) error {
	ctx, span := s.tracer.Start(ctx, "assistant.session.clear")
	defer span.End()

	if err := s.redis.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("assistant: clear session: %w", err)
	}
	return nil
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}
