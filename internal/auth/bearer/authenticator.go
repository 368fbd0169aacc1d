// internal/auth/bearer/authenticator.go
package bearer

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/exp/slices"

	"authgate/internal/auth"
	"authgate/internal/observability/logging"
)

// Authenticator implements Bearer token authentication for non-browser
// clients. Tokens are HS256 JWTs signed with a shared secret; the login
// form and session cookie remain the browser path.
type Authenticator struct {
	logger   *logging.Logger
	enabled  bool
	secret   []byte
	issuer   string
	audience string
}

// Config holds Bearer authenticator configuration
type Config struct {
	// Enabled indicates whether Bearer authentication is enabled
	Enabled bool

	// Secret is the HMAC signing secret for token validation
	Secret string

	// Issuer is the expected token issuer
	Issuer string

	// Audience is the expected token audience
	Audience string
}

// claims is the validated token payload
type claims struct {
	jwt.RegisteredClaims
}

// New creates a new Bearer authenticator
func New(config Config, logger *logging.Logger) (*Authenticator, error) {
	logger = logger.WithModule("auth.bearer")

	if !config.Enabled {
		return &Authenticator{
			logger:  logger,
			enabled: false,
		}, nil
	}

	if config.Secret == "" {
		return nil, fmt.Errorf("bearer authentication enabled but no signing secret provided")
	}
	if len(config.Secret) < 32 {
		return nil, fmt.Errorf("bearer signing secret must be at least 32 bytes long")
	}

	return &Authenticator{
		logger:   logger,
		enabled:  true,
		secret:   []byte(config.Secret),
		issuer:   config.Issuer,
		audience: config.Audience,
	}, nil
}

// Name returns the name of this authenticator
func (a *Authenticator) Name() string {
	return "bearer"
}

// GetMiddleware returns an http.Handler middleware that performs Bearer
// token authentication. Requests without an Authorization header pass
// through untouched; invalid tokens also pass through without an identity,
// so the gate issues its usual redirect rather than a distinct error surface.
func (a *Authenticator) GetMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.enabled {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		logger := logging.LoggerFromContext(ctx)
		if logger == nil {
			logger = a.logger
		}

		if identity := auth.IdentityFromContext(ctx); identity != nil {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			next.ServeHTTP(w, r)
			return
		}

		subject, err := a.verify(tokenString)
		if err != nil {
			logger.Info("Bearer token rejected", logging.Err(err))
			next.ServeHTTP(w, r)
			return
		}

		identity := &auth.Identity{
			Subject:  subject,
			Provider: a.Name(),
		}

		logger.Debug("Bearer authentication successful", "subject", subject)

		next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(ctx, identity)))
	})
}

// verify validates the token signature and claims and returns the subject
func (a *Authenticator) verify(tokenString string) (string, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	if a.issuer != "" && c.Issuer != a.issuer {
		return "", fmt.Errorf("unexpected issuer %q", c.Issuer)
	}
	if a.audience != "" && !slices.Contains(c.Audience, a.audience) {
		return "", fmt.Errorf("token audience does not include %q", a.audience)
	}
	if c.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}

	return c.Subject, nil
}
