// Package redis provides a Redis-backed session store for deployments where
// the gate runs with more than one replica.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"authgate/internal/observability/logging"
	"authgate/internal/observability/metrics"
	"authgate/internal/session"
)

// Backend is the label reported for this store in metrics
const Backend = "redis"

const keyPrefix = "authgate:session:"

// Store is a Redis-backed session store. Each session is one JSON blob under
// authgate:session:<id> with the session TTL as the key TTL, so expiry needs
// no cleanup loop and create/invalidate are single atomic commands.
type Store struct {
	client  redis.UniversalClient
	ttl     time.Duration
	logger  *logging.Logger
	metrics *metrics.Collector
}

// New creates a Redis store with the given session TTL
func New(client redis.UniversalClient, ttl time.Duration, logger *logging.Logger, collector *metrics.Collector) *Store {
	return &Store{
		client:  client,
		ttl:     ttl,
		logger:  logger.WithModule("session.redis"),
		metrics: collector,
	}
}

// Create creates a new session bound to principal
func (s *Store) Create(ctx context.Context, principal string) (*session.Session, error) {
	id, err := session.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}
	token, err := session.NewToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := time.Now()
	sess := &session.Session{
		ID:        id,
		Principal: principal,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	blob, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.Set(ctx, keyPrefix+id, blob, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	s.metrics.SessionCreated(Backend)
	s.logger.Debug("Session created", "session_id", logging.SessionID(id), "principal", principal)

	return sess, nil
}

// Lookup returns the session for id, or session.ErrNotFound when the key is
// absent, expired, or holds an unreadable blob
func (s *Store) Lookup(ctx context.Context, id string) (*session.Session, error) {
	blob, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess session.Session
	if err := json.Unmarshal(blob, &sess); err != nil {
		// A corrupt blob is treated as no session, not surfaced to callers
		s.logger.Warn("Discarding corrupt session blob", "session_id", logging.SessionID(id))
		return nil, session.ErrNotFound
	}

	if sess.Expired(time.Now()) {
		return nil, session.ErrNotFound
	}

	return &sess, nil
}

// Invalidate destroys the session for id. Idempotent.
func (s *Store) Invalidate(ctx context.Context, id string) error {
	deleted, err := s.client.Del(ctx, keyPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if deleted > 0 {
		s.metrics.SessionEnded(Backend)
		s.logger.Debug("Session invalidated", "session_id", logging.SessionID(id))
	}
	return nil
}
