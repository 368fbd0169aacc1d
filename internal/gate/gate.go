// Package gate implements the authentication gate: for every inbound request
// it determines the access policy, enforces it, and manages the login/logout
// redirect protocol. The gate holds no per-request state of its own; sessions
// live behind the session.Store and credential checks behind the
// credentials.Store.
package gate

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"authgate/internal/access"
	"authgate/internal/auth"
	"authgate/internal/credentials"
	"authgate/internal/observability/logging"
	"authgate/internal/observability/metrics"
	"authgate/internal/session"
)

// Form field names of the login and logout submissions
const (
	FieldUsername = "username"
	FieldPassword = "password"
	FieldToken    = "_csrf"
)

// Query parameters appended to the login path on redirect
const (
	QueryError  = "error"
	QueryLogout = "logout"
)

// TokenHeader carries the anti-forgery token to the upstream view so it can
// be rendered into the login and logout forms. The proxy owns this header:
// any value a client sends is stripped before forwarding.
const TokenHeader = "X-CSRF-Token"

// ActionType discriminates the gate's decisions
type ActionType int

const (
	// ActionForward lets the request proceed to the upstream
	ActionForward ActionType = iota

	// ActionRedirect sends the caller to Action.Location
	ActionRedirect
)

// Action is the gate's decision for a request
type Action struct {
	Type     ActionType
	Location string
}

// Forward returns a forward action
func Forward() Action {
	return Action{Type: ActionForward}
}

// Redirect returns a redirect action to location
func Redirect(location string) Action {
	return Action{Type: ActionRedirect, Location: location}
}

// Config holds gate configuration
type Config struct {
	// LoginPath is the path of the login form; it must be PUBLIC
	LoginPath string

	// LogoutPath is the path logout submissions are posted to
	LogoutPath string

	// DefaultTarget is where successful logins land when no original
	// target was saved
	DefaultTarget string

	// CookieName is the name of the session cookie
	CookieName string

	// SessionTTL bounds the session cookie lifetime
	SessionTTL time.Duration

	// SecureCookies marks all gate cookies Secure (set when serving TLS)
	SecureCookies bool
}

// Gate decides forward-vs-redirect per request
type Gate struct {
	rules    *access.Ruleset
	sessions session.Store
	creds    credentials.Store
	cfg      Config
	logger   *logging.Logger
	metrics  *metrics.Collector
}

// New creates a new gate
func New(cfg Config, rules *access.Ruleset, sessions session.Store, creds credentials.Store,
	logger *logging.Logger, collector *metrics.Collector) *Gate {
	return &Gate{
		rules:    rules,
		sessions: sessions,
		creds:    creds,
		cfg:      cfg,
		logger:   logger.WithModule("gate"),
		metrics:  collector,
	}
}

// LoginPath returns the configured login path
func (g *Gate) LoginPath() string { return g.cfg.LoginPath }

// LogoutPath returns the configured logout path
func (g *Gate) LogoutPath() string { return g.cfg.LogoutPath }

// Evaluate decides what to do with a request given the identity the
// authenticators resolved from it (nil when the request carries no valid
// session or token). It never mutates anything.
func (g *Gate) Evaluate(r *http.Request, identity *auth.Identity) Action {
	rule := g.rules.Match(r.URL.Path)
	g.metrics.RecordRuleMatch(rule.Name, string(rule.Policy))

	if rule.Policy == access.Public {
		return Forward()
	}

	if identity != nil && identity.Subject != "" {
		return Forward()
	}

	return Redirect(g.cfg.LoginPath)
}

// HandleLoginSubmit processes a POST to the login path. Every failure
// (missing fields, forged token, unknown user, wrong password, even a
// session store fault) produces the same redirect to loginPath?error so
// callers cannot enumerate valid usernames.
func (g *Gate) HandleLoginSubmit(w http.ResponseWriter, r *http.Request) Action {
	ctx := r.Context()
	logger := logging.LoggerFromContext(ctx)
	if logger == nil {
		logger = g.logger
	}

	failure := Redirect(g.cfg.LoginPath + "?" + QueryError)

	if err := r.ParseForm(); err != nil {
		logger.Info("Login rejected: malformed form")
		g.metrics.RecordLogin(metrics.OutcomeFailure)
		return failure
	}

	if !g.checkPreSessionToken(r) {
		// Logged distinctly for operators; the caller sees the generic failure
		logger.Warn("Login rejected: missing or mismatched anti-forgery token")
		g.metrics.RecordLogin(metrics.OutcomeForgery)
		return failure
	}

	username := r.PostFormValue(FieldUsername)
	password := r.PostFormValue(FieldPassword)
	if username == "" || password == "" {
		logger.Info("Login rejected: missing credentials")
		g.metrics.RecordLogin(metrics.OutcomeFailure)
		return failure
	}

	result := g.creds.Verify(ctx, username, password)
	if !result.OK {
		// Never disclose whether the username exists
		logger.Info("Login rejected: invalid credentials")
		g.metrics.RecordLogin(metrics.OutcomeFailure)
		return failure
	}

	sess, err := g.sessions.Create(ctx, result.Principal)
	if err != nil {
		logger.Error("Failed to create session", logging.Err(err))
		g.metrics.RecordLogin(metrics.OutcomeFailure)
		return failure
	}

	g.setSessionCookie(w, sess)
	g.clearPreSessionToken(w)

	target := g.consumeSavedTarget(w, r)

	logger.Info("Login successful",
		"subject", result.Principal,
		"session_id", logging.SessionID(sess.ID),
	)
	g.metrics.RecordLogin(metrics.OutcomeSuccess)

	return Redirect(target)
}

// HandleLogout processes a POST to the logout path. The session is
// invalidated before the redirect is returned; a request without a session
// just gets the logout confirmation.
func (g *Gate) HandleLogout(w http.ResponseWriter, r *http.Request) Action {
	ctx := r.Context()
	logger := logging.LoggerFromContext(ctx)
	if logger == nil {
		logger = g.logger
	}

	confirmation := Redirect(g.cfg.LoginPath + "?" + QueryLogout)

	cookie, err := r.Cookie(g.cfg.CookieName)
	if err != nil {
		return confirmation
	}

	sess, err := g.sessions.Lookup(ctx, cookie.Value)
	if err != nil {
		// Unknown or already-expired session: clear the cookie and confirm
		g.clearSessionCookie(w)
		return confirmation
	}

	if err := r.ParseForm(); err != nil || !tokensEqual(r.PostFormValue(FieldToken), sess.Token) {
		logger.Warn("Logout rejected: missing or mismatched anti-forgery token",
			"subject", sess.Principal,
		)
		g.metrics.RecordLogin(metrics.OutcomeForgery)
		return Redirect(g.cfg.LoginPath + "?" + QueryError)
	}

	if err := g.sessions.Invalidate(ctx, sess.ID); err != nil {
		logger.Error("Failed to invalidate session", logging.Err(err))
		// The cookie is cleared regardless; the server-side record expires
	}
	g.clearSessionCookie(w)

	logger.Info("Logout successful",
		"subject", sess.Principal,
		"session_id", logging.SessionID(sess.ID),
	)

	return confirmation
}

// setSessionCookie binds the browser to the freshly created session
func (g *Gate) setSessionCookie(w http.ResponseWriter, sess *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     g.cfg.CookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   g.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(g.cfg.SessionTTL.Seconds()),
	})
}

// clearSessionCookie removes the session cookie
func (g *Gate) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     g.cfg.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   g.cfg.SecureCookies,
		MaxAge:   -1,
	})
}

// consumeSavedTarget returns the saved original target when it is a safe
// local path, clearing its cookie either way
func (g *Gate) consumeSavedTarget(w http.ResponseWriter, r *http.Request) string {
	target := g.cfg.DefaultTarget

	if cookie, err := r.Cookie(targetCookieName); err == nil {
		if t, ok := sanitizeTarget(cookie.Value); ok {
			target = t
		}
	}
	clearTempCookie(w, targetCookieName, g.cfg.SecureCookies)

	return target
}

// sanitizeTarget accepts only same-origin absolute paths, rejecting anything
// a crafted login link could use as an open redirect
func sanitizeTarget(raw string) (string, bool) {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return "", false
	}
	if strings.ContainsAny(raw, "\\\r\n") {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "", false
	}
	return raw, true
}
