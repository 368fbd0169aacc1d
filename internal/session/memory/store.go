// Package memory provides an in-process session store with TTL-based cleanup.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"authgate/internal/observability/logging"
	"authgate/internal/observability/metrics"
	"authgate/internal/session"
)

// Backend is the label reported for this store in metrics
const Backend = "memory"

// Store is an in-memory session store. It is thread-safe and supports
// concurrent access; create and invalidate happen under a single lock so no
// partial session state is ever observable.
type Store struct {
	mu            sync.RWMutex
	sessions      map[string]*session.Session
	ttl           time.Duration
	logger        *logging.Logger
	metrics       *metrics.Collector
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
}

// New creates a memory store with the given session TTL. It starts a
// background cleanup goroutine that runs every minute; call Stop on shutdown.
func New(ttl time.Duration, logger *logging.Logger, collector *metrics.Collector) *Store {
	s := &Store{
		sessions:      make(map[string]*session.Session),
		ttl:           ttl,
		logger:        logger.WithModule("session.memory"),
		metrics:       collector,
		cleanupTicker: time.NewTicker(1 * time.Minute),
		stopCleanup:   make(chan struct{}),
	}

	go s.cleanupLoop()

	return s
}

// Stop stops the store's cleanup goroutine
func (s *Store) Stop() {
	s.cleanupTicker.Stop()
	close(s.stopCleanup)
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

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	s.metrics.SessionCreated(Backend)
	s.logger.Debug("Session created", "session_id", logging.SessionID(id), "principal", principal)

	return sess, nil
}

// Lookup returns the session for id, or session.ErrNotFound when absent or
// expired. Expired sessions found during lookup are left for the cleanup
// loop; they are never returned.
func (s *Store) Lookup(ctx context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok || sess.Expired(time.Now()) {
		return nil, session.ErrNotFound
	}

	// Copy so callers cannot mutate shared state
	out := *sess
	return &out, nil
}

// Invalidate destroys the session for id. Idempotent.
func (s *Store) Invalidate(ctx context.Context, id string) error {
	s.mu.Lock()
	_, existed := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if existed {
		s.metrics.SessionEnded(Backend)
		s.logger.Debug("Session invalidated", "session_id", logging.SessionID(id))
	}
	return nil
}

// Count returns the current number of stored sessions, expired included.
// Useful for monitoring and testing.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// cleanupLoop periodically removes expired sessions until Stop is called
func (s *Store) cleanupLoop() {
	for {
		select {
		case <-s.cleanupTicker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

// cleanup removes all expired sessions
func (s *Store) cleanup() {
	now := time.Now()
	expired := 0

	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			expired++
		}
	}
	s.mu.Unlock()

	for i := 0; i < expired; i++ {
		s.metrics.SessionEnded(Backend)
	}
	if expired > 0 {
		s.logger.Info("Cleaned up expired sessions", "count", expired)
	}
}
