package router

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"authgate/internal/access"
	"authgate/internal/auth"
	"authgate/internal/auth/manager"
	"authgate/internal/auth/sessioncookie"
	"authgate/internal/credentials"
	"authgate/internal/gate"
	"authgate/internal/observability/logging"
	"authgate/internal/observability/metrics"
	"authgate/internal/session/memory"
)

type stubCreds struct{}

func (stubCreds) Verify(ctx context.Context, username, password string) credentials.Result {
	if username == "bob" && password == "correct" {
		return credentials.Result{OK: true, Principal: "bob"}
	}
	return credentials.Result{}
}

// gateway is a fully wired gate + router + session middleware over a
// recording upstream. lastToken holds the anti-forgery header the upstream
// saw on the most recent forwarded request, the way a server-side view
// would read it to render a form.
type gateway struct {
	server    *httptest.Server
	sessions  *memory.Store
	upstream  *[]string
	lastToken *string
}

func newGateway(t *testing.T) *gateway {
	t.Helper()

	var seen []string
	var lastToken string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.RequestURI())
		lastToken = r.Header.Get("X-CSRF-Token")
		io.WriteString(w, "upstream: "+r.URL.Path)
	}))
	t.Cleanup(upstream.Close)

	upstreamURL, err := url.Parse(upstream.URL)
	if err != nil {
		t.Fatalf("failed to parse upstream URL: %v", err)
	}

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

	g := gate.New(gate.Config{
		LoginPath:     "/login",
		LogoutPath:    "/logout",
		DefaultTarget: "/home",
		CookieName:    "authgate_session",
		SessionTTL:    30 * time.Minute,
	}, rules, sessions, stubCreds{}, logger, collector)

	rt := New(Config{
		UpstreamURL:     upstreamURL,
		UpstreamTimeout: 5 * time.Second,
	}, g, logger, collector)

	sc := sessioncookie.New(sessioncookie.Config{CookieName: "authgate_session"}, sessions, logger)
	handler := manager.NewManager([]auth.Authenticator{sc}, logger).Middleware(rt)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &gateway{server: server, sessions: sessions, upstream: &seen, lastToken: &lastToken}
}

// newClient returns a client with a cookie jar that does not follow redirects
func newClient(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New failed: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (gw *gateway) cookieValue(t *testing.T, client *http.Client, name string) string {
	t.Helper()

	u, _ := url.Parse(gw.server.URL)
	for _, c := range client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func get(t *testing.T, client *http.Client, rawURL string) *http.Response {
	t.Helper()
	resp, err := client.Get(rawURL)
	if err != nil {
		t.Fatalf("GET %s failed: %v", rawURL, err)
	}
	resp.Body.Close()
	return resp
}

func postForm(t *testing.T, client *http.Client, rawURL string, form url.Values) *http.Response {
	t.Helper()
	resp, err := client.PostForm(rawURL, form)
	if err != nil {
		t.Fatalf("POST %s failed: %v", rawURL, err)
	}
	resp.Body.Close()
	return resp
}

func wantRedirect(t *testing.T, resp *http.Response, status int, location string) {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("status = %d, want %d", resp.StatusCode, status)
	}
	if got := resp.Header.Get("Location"); got != location {
		t.Fatalf("Location = %q, want %q", got, location)
	}
}

func TestLoginLogoutFlow(t *testing.T) {
	gw := newGateway(t)
	client := newClient(t)
	base := gw.server.URL

	// Unauthenticated GET /dashboard redirects to the login form
	resp := get(t, client, base+"/dashboard")
	wantRedirect(t, resp, http.StatusFound, "/login")

	// GET /login is forwarded upstream (the view renders the form) and
	// issues the anti-forgery cookie
	resp = get(t, client, base+"/login")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /login status = %d, want 200", resp.StatusCode)
	}
	csrf := gw.cookieValue(t, client, "authgate_csrf")
	if csrf == "" {
		t.Fatal("no anti-forgery cookie after GET /login")
	}
	if *gw.lastToken != csrf {
		t.Fatalf("view saw token %q, cookie is %q", *gw.lastToken, csrf)
	}

	// Wrong password redirects to the generic error variant
	resp = postForm(t, client, base+"/login", url.Values{
		"username": {"bob"},
		"password": {"wrong"},
		"_csrf":    {csrf},
	})
	wantRedirect(t, resp, http.StatusSeeOther, "/login?error")

	// Correct credentials create a session and land on the original target
	resp = postForm(t, client, base+"/login", url.Values{
		"username": {"bob"},
		"password": {"correct"},
		"_csrf":    {csrf},
	})
	wantRedirect(t, resp, http.StatusSeeOther, "/dashboard")

	sessionID := gw.cookieValue(t, client, "authgate_session")
	if sessionID == "" {
		t.Fatal("no session cookie after login")
	}
	sess, err := gw.sessions.Lookup(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("session Lookup failed: %v", err)
	}
	if sess.Principal != "bob" {
		t.Errorf("session principal = %q, want bob", sess.Principal)
	}

	// The authenticated request now reaches the upstream, which sees the
	// session's anti-forgery token and renders it into the logout form
	resp = get(t, client, base+"/dashboard")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticated GET /dashboard status = %d, want 200", resp.StatusCode)
	}
	logoutToken := *gw.lastToken
	if logoutToken == "" {
		t.Fatal("view never saw the session token; no logout form can be rendered")
	}
	if logoutToken != sess.Token {
		t.Fatalf("view saw token %q, session token is %q", logoutToken, sess.Token)
	}

	// Logout with the token the view rendered invalidates the session
	resp = postForm(t, client, base+"/logout", url.Values{"_csrf": {logoutToken}})
	wantRedirect(t, resp, http.StatusSeeOther, "/login?logout")

	// The invalidated session no longer opens the gate
	resp = get(t, client, base+"/dashboard")
	wantRedirect(t, resp, http.StatusFound, "/login")
}

func TestStaticResourcesAlwaysForwarded(t *testing.T) {
	gw := newGateway(t)
	client := newClient(t)

	resp := get(t, client, gw.server.URL+"/resources/css/site.css")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET static status = %d, want 200", resp.StatusCode)
	}

	found := false
	for _, line := range *gw.upstream {
		if strings.Contains(line, "/resources/css/site.css") {
			found = true
		}
	}
	if !found {
		t.Error("static request did not reach the upstream")
	}
}

func TestForgedLoginSubmission(t *testing.T) {
	gw := newGateway(t)
	client := newClient(t)

	// Submitting without ever fetching the form (no anti-forgery cookie)
	resp := postForm(t, client, gw.server.URL+"/login", url.Values{
		"username": {"bob"},
		"password": {"correct"},
		"_csrf":    {"guessed"},
	})
	wantRedirect(t, resp, http.StatusSeeOther, "/login?error")

	if gw.cookieValue(t, client, "authgate_session") != "" {
		t.Error("forged submission produced a session")
	}
}

func TestPostToProtectedPathRedirectsWithoutSavingTarget(t *testing.T) {
	gw := newGateway(t)
	client := newClient(t)
	base := gw.server.URL

	// A POST to a protected path redirects but must not be replayed later
	resp, err := client.PostForm(base+"/orders", url.Values{"qty": {"1"}})
	if err != nil {
		t.Fatalf("POST /orders failed: %v", err)
	}
	resp.Body.Close()
	wantRedirect(t, resp, http.StatusFound, "/login")

	if gw.cookieValue(t, client, "authgate_target") != "" {
		t.Error("POST request target was saved for replay")
	}

	// Log in; without a saved target the default home applies
	get(t, client, base+"/login")
	csrf := gw.cookieValue(t, client, "authgate_csrf")
	resp = postForm(t, client, base+"/login", url.Values{
		"username": {"bob"},
		"password": {"correct"},
		"_csrf":    {csrf},
	})
	wantRedirect(t, resp, http.StatusSeeOther, "/home")
}

func TestForgeryHeaderIsProxyOwned(t *testing.T) {
	gw := newGateway(t)
	client := newClient(t)
	base := gw.server.URL

	// A client-supplied token header on a public path is stripped
	req, err := http.NewRequest(http.MethodGet, base+"/resources/app.js", nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	req.Header.Set("X-CSRF-Token", "spoofed")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if *gw.lastToken != "" {
		t.Errorf("upstream saw client-supplied token %q", *gw.lastToken)
	}

	// Anonymous public requests carry no token either
	get(t, client, base+"/resources/site.css")
	if *gw.lastToken != "" {
		t.Errorf("upstream saw token %q on an anonymous request", *gw.lastToken)
	}
}

func TestLogoutDispatchPrecedesRuleMatch(t *testing.T) {
	gw := newGateway(t)
	client := newClient(t)

	// The logout path has no PUBLIC rule, but a session-less POST to it is
	// handled by the logout endpoint, not redirected by the catch-all
	resp := postForm(t, client, gw.server.URL+"/logout", url.Values{})
	wantRedirect(t, resp, http.StatusSeeOther, "/login?logout")
}

func TestLoginVariantsForwarded(t *testing.T) {
	gw := newGateway(t)
	client := newClient(t)

	for _, path := range []string{"/login?error", "/login?logout"} {
		resp := get(t, client, gw.server.URL+path)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
	}
}
