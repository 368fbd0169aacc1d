// internal/auth/manager/manager.go
package manager

import (
	"net/http"

	"authgate/internal/auth"
	"authgate/internal/observability/logging"
)

// Manager coordinates multiple authentication methods
type Manager struct {
	logger         *logging.Logger
	authenticators []auth.Authenticator
}

// NewManager creates a new authentication manager. Authenticators run in the
// given order; the first to attach an identity wins.
func NewManager(authenticators []auth.Authenticator, logger *logging.Logger) *Manager {
	return &Manager{
		authenticators: authenticators,
		logger:         logger.WithModule("auth.manager"),
	}
}

// Middleware creates a middleware chain from all authenticators
func (m *Manager) Middleware(next http.Handler) http.Handler {
	// Wrap in reverse so the first authenticator in the list runs first
	handler := next
	for i := len(m.authenticators) - 1; i >= 0; i-- {
		handler = m.authenticators[i].GetMiddleware(handler)
		m.logger.Debug("Added authenticator to middleware chain", "authenticator", m.authenticators[i].Name())
	}
	return handler
}

// GetAuthenticators returns the configured authenticators
func (m *Manager) GetAuthenticators() []auth.Authenticator {
	return m.authenticators
}
