package gate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"authgate/internal/access"
	"authgate/internal/auth"
	"authgate/internal/credentials"
	"authgate/internal/observability/logging"
	"authgate/internal/observability/metrics"
	"authgate/internal/session"
	"authgate/internal/session/memory"
)

// stubCreds accepts exactly bob/letmein and counts Verify calls
type stubCreds struct {
	calls int32
}

func (s *stubCreds) Verify(ctx context.Context, username, password string) credentials.Result {
	atomic.AddInt32(&s.calls, 1)
	if username == "bob" && password == "letmein" {
		return credentials.Result{OK: true, Principal: "bob"}
	}
	return credentials.Result{}
}

func (s *stubCreds) verifyCalls() int32 {
	return atomic.LoadInt32(&s.calls)
}

func newTestGate(t *testing.T) (*Gate, *memory.Store, *stubCreds) {
	t.Helper()

	logger, err := logging.NewLogger("error")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	collector := metrics.NewCollector()

	rules, err := access.NewRuleset([]access.Rule{
		{Name: "login", Pattern: "/login", Policy: access.Public},
		{Name: "static", Pattern: "/resources/", MatchPrefix: true, Policy: access.Public},
	})
	if err != nil {
		t.Fatalf("NewRuleset failed: %v", err)
	}

	sessions := memory.New(30*time.Minute, logger, collector)
	t.Cleanup(sessions.Stop)

	creds := &stubCreds{}

	g := New(Config{
		LoginPath:     "/login",
		LogoutPath:    "/logout",
		DefaultTarget: "/",
		CookieName:    "authgate_session",
		SessionTTL:    30 * time.Minute,
	}, rules, sessions, creds, logger, collector)

	return g, sessions, creds
}

// loginRequest builds a POST /login carrying the double-submit token pair
func loginRequest(username, password string) *http.Request {
	form := url.Values{
		FieldUsername: {username},
		FieldPassword: {password},
		FieldToken:    {"tok123"},
	}
	r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.AddCookie(&http.Cookie{Name: tokenCookieName, Value: "tok123"})
	return r
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name && c.Value != "" {
			return c
		}
	}
	return nil
}

func TestEvaluatePublic(t *testing.T) {
	g, _, _ := newTestGate(t)

	// Static resources forward regardless of identity
	for _, ident := range []*auth.Identity{nil, {Subject: "bob", Provider: "session"}} {
		r := httptest.NewRequest(http.MethodGet, "/resources/css/site.css", nil)
		if got := g.Evaluate(r, ident); got != Forward() {
			t.Errorf("Evaluate(static, %v) = %+v, want forward", ident, got)
		}
	}
}

func TestEvaluateProtected(t *testing.T) {
	g, _, _ := newTestGate(t)

	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)

	if got := g.Evaluate(r, nil); got != Redirect("/login") {
		t.Errorf("Evaluate(protected, anonymous) = %+v, want redirect to /login", got)
	}
	if got := g.Evaluate(r, &auth.Identity{Subject: "bob", Provider: "session"}); got != Forward() {
		t.Errorf("Evaluate(protected, authenticated) = %+v, want forward", got)
	}
	// An identity without a subject is no identity
	if got := g.Evaluate(r, &auth.Identity{Provider: "session"}); got != Redirect("/login") {
		t.Errorf("Evaluate(protected, empty subject) = %+v, want redirect", got)
	}
}

func TestIssueLoginCookiesDisclosesToken(t *testing.T) {
	g, _, _ := newTestGate(t)

	w := httptest.NewRecorder()
	token := g.IssueLoginCookies(w, httptest.NewRequest(http.MethodGet, "/login", nil))
	if token == "" {
		t.Fatal("no token returned for the view to render")
	}

	for _, c := range w.Result().Cookies() {
		if c.Name == "authgate_csrf" {
			if c.Value != token {
				t.Errorf("cookie value = %q, returned token = %q", c.Value, token)
			}
			return
		}
	}
	t.Fatal("no anti-forgery cookie was set")
}

func TestLoginSuccess(t *testing.T) {
	g, sessions, _ := newTestGate(t)
	w := httptest.NewRecorder()

	action := g.HandleLoginSubmit(w, loginRequest("bob", "letmein"))

	if action.Type != ActionRedirect || action.Location != "/" {
		t.Fatalf("action = %+v, want redirect to /", action)
	}
	if strings.Contains(action.Location, QueryError) {
		t.Fatalf("successful login redirected to error: %q", action.Location)
	}

	cookie := sessionCookie(t, w, "authgate_session")
	if cookie == nil {
		t.Fatal("no session cookie set")
	}
	if !cookie.HttpOnly {
		t.Error("session cookie is not HttpOnly")
	}

	sess, err := sessions.Lookup(context.Background(), cookie.Value)
	if err != nil {
		t.Fatalf("session Lookup failed: %v", err)
	}
	if sess.Principal != "bob" {
		t.Errorf("session principal = %q, want bob", sess.Principal)
	}
}

func TestLoginFailureIndistinguishable(t *testing.T) {
	g, _, _ := newTestGate(t)

	wWrong := httptest.NewRecorder()
	wUnknown := httptest.NewRecorder()

	wrongPassword := g.HandleLoginSubmit(wWrong, loginRequest("bob", "wrong"))
	unknownUser := g.HandleLoginSubmit(wUnknown, loginRequest("mallory", "wrong"))

	if wrongPassword != unknownUser {
		t.Errorf("failure actions differ: wrong password = %+v, unknown user = %+v",
			wrongPassword, unknownUser)
	}
	if wrongPassword != Redirect("/login?error") {
		t.Errorf("failure action = %+v, want redirect to /login?error", wrongPassword)
	}

	// Byte-identical responses: same body, same headers
	if wWrong.Body.String() != wUnknown.Body.String() {
		t.Error("failure response bodies differ")
	}
	if sessionCookie(t, wWrong, "authgate_session") != nil || sessionCookie(t, wUnknown, "authgate_session") != nil {
		t.Error("failed login set a session cookie")
	}
}

func TestLoginForgedToken(t *testing.T) {
	g, _, creds := newTestGate(t)

	tests := []struct {
		name   string
		mutate func(r *http.Request)
	}{
		{"missing cookie", func(r *http.Request) { r.Header.Del("Cookie") }},
		{"mismatched field", func(r *http.Request) {
			form := url.Values{
				FieldUsername: {"bob"},
				FieldPassword: {"letmein"},
				FieldToken:    {"other"},
			}
			r.Body = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode())).Body
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := loginRequest("bob", "letmein")
			tt.mutate(r)

			w := httptest.NewRecorder()
			action := g.HandleLoginSubmit(w, r)

			if action != Redirect("/login?error") {
				t.Errorf("action = %+v, want redirect to /login?error", action)
			}
		})
	}

	// Forged submissions must never reach the credential store
	if creds.verifyCalls() != 0 {
		t.Errorf("credential store invoked %d times for forged submissions", creds.verifyCalls())
	}
}

func TestLoginSavedTarget(t *testing.T) {
	g, _, _ := newTestGate(t)

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"saved path", "/dashboard", "/dashboard"},
		{"saved path with query", "/reports?year=2026", "/reports?year=2026"},
		{"absolute url rejected", "https://evil.example/phish", "/"},
		{"protocol-relative rejected", "//evil.example", "/"},
		{"backslash rejected", "/\\evil", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := loginRequest("bob", "letmein")
			// Append the cookie verbatim: AddCookie sanitizes the value,
			// which would strip the hostile bytes these cases rely on.
			r.Header.Set("Cookie", r.Header.Get("Cookie")+"; "+targetCookieName+"="+tt.target)

			w := httptest.NewRecorder()
			action := g.HandleLoginSubmit(w, r)

			if action.Type != ActionRedirect || action.Location != tt.want {
				t.Errorf("action = %+v, want redirect to %q", action, tt.want)
			}
		})
	}
}

func TestLogout(t *testing.T) {
	g, sessions, _ := newTestGate(t)

	// Log in first
	wLogin := httptest.NewRecorder()
	g.HandleLoginSubmit(wLogin, loginRequest("bob", "letmein"))
	cookie := sessionCookie(t, wLogin, "authgate_session")
	if cookie == nil {
		t.Fatal("no session cookie after login")
	}
	sess, err := sessions.Lookup(context.Background(), cookie.Value)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	form := url.Values{FieldToken: {sess.Token}}
	r := httptest.NewRequest(http.MethodPost, "/logout", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.AddCookie(&http.Cookie{Name: "authgate_session", Value: cookie.Value})

	w := httptest.NewRecorder()
	action := g.HandleLogout(w, r)

	if action != Redirect("/login?logout") {
		t.Errorf("action = %+v, want redirect to /login?logout", action)
	}

	// The session must be gone: a later Evaluate with it redirects
	if _, err := sessions.Lookup(context.Background(), cookie.Value); err != session.ErrNotFound {
		t.Errorf("session still resolvable after logout: %v", err)
	}
}

func TestLogoutForgedToken(t *testing.T) {
	g, sessions, _ := newTestGate(t)

	wLogin := httptest.NewRecorder()
	g.HandleLoginSubmit(wLogin, loginRequest("bob", "letmein"))
	cookie := sessionCookie(t, wLogin, "authgate_session")

	form := url.Values{FieldToken: {"forged"}}
	r := httptest.NewRequest(http.MethodPost, "/logout", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.AddCookie(&http.Cookie{Name: "authgate_session", Value: cookie.Value})

	w := httptest.NewRecorder()
	action := g.HandleLogout(w, r)

	if action != Redirect("/login?error") {
		t.Errorf("action = %+v, want redirect to /login?error", action)
	}
	// Session survives a forged logout
	if _, err := sessions.Lookup(context.Background(), cookie.Value); err != nil {
		t.Errorf("session destroyed by forged logout: %v", err)
	}
}

func TestLogoutWithoutSession(t *testing.T) {
	g, _, _ := newTestGate(t)

	r := httptest.NewRequest(http.MethodPost, "/logout", nil)
	w := httptest.NewRecorder()

	if action := g.HandleLogout(w, r); action != Redirect("/login?logout") {
		t.Errorf("action = %+v, want redirect to /login?logout", action)
	}
}

func TestConcurrentDuplicateLogin(t *testing.T) {
	g, sessions, _ := newTestGate(t)

	const submissions = 16

	var wg sync.WaitGroup
	cookies := make([]*http.Cookie, submissions)

	wg.Add(submissions)
	for i := 0; i < submissions; i++ {
		go func(i int) {
			defer wg.Done()
			w := httptest.NewRecorder()
			action := g.HandleLoginSubmit(w, loginRequest("bob", "letmein"))
			if action.Type != ActionRedirect || strings.Contains(action.Location, QueryError) {
				t.Errorf("duplicate submission %d failed: %+v", i, action)
				return
			}
			cookies[i] = sessionCookie(t, w, "authgate_session")
		}(i)
	}
	wg.Wait()

	// Every submission produced a complete session; no partial state is
	// observable. The browser keeps only the last Set-Cookie, so subsequent
	// requests observe exactly one session.
	for i, c := range cookies {
		if c == nil {
			t.Fatalf("submission %d set no session cookie", i)
		}
		sess, err := sessions.Lookup(context.Background(), c.Value)
		if err != nil {
			t.Fatalf("session %d not observable: %v", i, err)
		}
		if sess.Principal != "bob" || sess.Token == "" {
			t.Errorf("partial session observed: %+v", sess)
		}
	}
}
