// internal/auth/types.go
package auth

import (
	"net/http"
)

// Identity represents an authenticated identity
type Identity struct {
	// Subject is the unique identifier for this identity
	Subject string

	// Provider is the authentication provider (e.g., "session", "bearer")
	Provider string

	// SessionID is the backing session identifier when Provider is "session"
	SessionID string

	// SessionToken is the session's anti-forgery token when Provider is
	// "session". It is disclosed to the upstream view so state-changing
	// forms can echo it; it is never sent to the browser directly.
	SessionToken string
}

// Authenticator defines the interface for authentication methods
type Authenticator interface {
	// Name returns the name of this authenticator
	Name() string

	// GetMiddleware returns an http.Handler middleware that performs authentication
	GetMiddleware(next http.Handler) http.Handler
}
