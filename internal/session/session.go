// Package session defines the server-side session model shared by the gate
// and its store backends.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// ErrNotFound is returned when a session does not exist or has expired.
// Callers must not distinguish the two cases: an expired session is
// indistinguishable from an absent one.
var ErrNotFound = errors.New("session not found")

// Session represents an authenticated browser session
type Session struct {
	// ID is the opaque session identifier carried by the cookie (64 hex chars)
	ID string `json:"id"`

	// Principal is the authenticated identity bound to this session.
	// It is set only by a successful credential verification.
	Principal string `json:"principal"`

	// Token is the per-session anti-forgery token required on
	// state-changing submissions
	Token string `json:"token"`

	// CreatedAt is when this session was created
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is when this session expires
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session has passed its expiry
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Store is the keyed session store the gate talks to. Create and Invalidate
// are atomic: no partial session (principal set but not yet stored, or the
// reverse) is ever observable by a concurrent Lookup.
type Store interface {
	// Create creates and persists a new session bound to principal
	Create(ctx context.Context, principal string) (*Session, error)

	// Lookup returns the session for id, or ErrNotFound when the session
	// does not exist or has expired
	Lookup(ctx context.Context, id string) (*Session, error)

	// Invalidate destroys the session for id. Invalidating an unknown
	// session is not an error.
	Invalidate(ctx context.Context, id string) error
}

// NewID generates a cryptographically secure session identifier (32 random
// bytes, hex encoded)
func NewID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewToken generates a per-session anti-forgery token
func NewToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
