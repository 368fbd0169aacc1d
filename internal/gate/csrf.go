// internal/gate/csrf.go
package gate

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"time"
)

// Cookie names for the pre-session login flow. Before a session exists there
// is no server-side state to bind a token to, so the login form uses a
// double-submit cookie: the form field must echo the cookie value. After
// login the session's own token takes over.
const (
	tokenCookieName  = "authgate_csrf"
	targetCookieName = "authgate_target"
)

// tempCookieTTL bounds the login-flow cookies
const tempCookieTTL = 10 * time.Minute

// IssueLoginCookies prepares a forwarded GET of the login form: it issues a
// fresh anti-forgery cookie and returns the token so the caller can disclose
// it to the view rendering the form. The submission must echo the value in
// the _csrf form field.
func (g *Gate) IssueLoginCookies(w http.ResponseWriter, r *http.Request) string {
	token, err := newFormToken()
	if err != nil {
		g.logger.Error("Failed to generate anti-forgery token")
		return ""
	}
	setTempCookie(w, tokenCookieName, token, g.cfg.SecureCookies)
	return token
}

// SaveOriginalTarget records the request URI so a successful login can
// return the caller where they started
func (g *Gate) SaveOriginalTarget(w http.ResponseWriter, r *http.Request) {
	if target, ok := sanitizeTarget(r.URL.RequestURI()); ok {
		setTempCookie(w, targetCookieName, target, g.cfg.SecureCookies)
	}
}

// checkPreSessionToken verifies the double-submit pair on a login POST.
// The comparison is constant time.
func (g *Gate) checkPreSessionToken(r *http.Request) bool {
	cookie, err := r.Cookie(tokenCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	return tokensEqual(r.PostFormValue(FieldToken), cookie.Value)
}

// clearPreSessionToken removes the double-submit cookie after a successful login
func (g *Gate) clearPreSessionToken(w http.ResponseWriter) {
	clearTempCookie(w, tokenCookieName, g.cfg.SecureCookies)
}

// tokensEqual compares two tokens in constant time
func tokensEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// newFormToken generates a random anti-forgery token
func newFormToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// setTempCookie sets a short-lived cookie for the login flow
func setTempCookie(w http.ResponseWriter, name, value string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(tempCookieTTL.Seconds()),
	})
}

// clearTempCookie removes a login-flow cookie
func clearTempCookie(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		MaxAge:   -1,
	})
}
