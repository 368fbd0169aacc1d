// Package sessioncookie resolves the gate's session cookie into a request
// identity. The gate itself decides what an absent identity means; this
// middleware never redirects or rejects.
package sessioncookie

import (
	"errors"
	"net/http"

	"authgate/internal/auth"
	"authgate/internal/observability/logging"
	"authgate/internal/session"
)

// Authenticator implements session-cookie authentication
type Authenticator struct {
	logger     *logging.Logger
	sessions   session.Store
	cookieName string
}

// Config holds session-cookie authenticator configuration
type Config struct {
	// CookieName is the name of the session cookie
	CookieName string
}

// New creates a new session-cookie authenticator
func New(config Config, sessions session.Store, logger *logging.Logger) *Authenticator {
	cookieName := config.CookieName
	if cookieName == "" {
		cookieName = "authgate_session"
	}

	return &Authenticator{
		logger:     logger.WithModule("auth.sessioncookie"),
		sessions:   sessions,
		cookieName: cookieName,
	}
}

// Name returns the name of this authenticator
func (a *Authenticator) Name() string {
	return "session"
}

// CookieName returns the configured session cookie name
func (a *Authenticator) CookieName() string {
	return a.cookieName
}

// GetMiddleware returns an http.Handler middleware that resolves the session
// cookie into an identity
func (a *Authenticator) GetMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.LoggerFromContext(ctx)
		if logger == nil {
			logger = a.logger
		}

		// An identity set by an earlier authenticator wins
		if identity := auth.IdentityFromContext(ctx); identity != nil {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(a.cookieName)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := a.sessions.Lookup(ctx, cookie.Value)
		if err != nil {
			if !errors.Is(err, session.ErrNotFound) {
				logger.Error("Session lookup failed", logging.Err(err))
			}
			// Expired and unknown sessions both mean no principal
			next.ServeHTTP(w, r)
			return
		}

		identity := &auth.Identity{
			Subject:      sess.Principal,
			Provider:     a.Name(),
			SessionID:    sess.ID,
			SessionToken: sess.Token,
		}

		logger.Debug("Session authenticated",
			"subject", identity.Subject,
			"session_id", logging.SessionID(sess.ID),
		)

		next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(ctx, identity)))
	})
}
