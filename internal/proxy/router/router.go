// internal/proxy/router/router.go
package router

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/gorilla/mux"

	"authgate/internal/auth"
	"authgate/internal/gate"
	"authgate/internal/httputils"
	"authgate/internal/observability/logging"
	"authgate/internal/observability/metrics"
)

// Router is the gate's HTTP surface: it owns the login and logout endpoints
// and runs every other request through the gate before proxying it upstream.
type Router struct {
	*mux.Router
	target      *httputil.ReverseProxy
	gate        *gate.Gate
	logger      *logging.Logger
	metrics     *metrics.Collector
	upstreamURL *url.URL
}

// Config holds router configuration
type Config struct {
	// UpstreamURL is the URL of the upstream application
	UpstreamURL *url.URL

	// UpstreamTimeout is the timeout for upstream requests
	UpstreamTimeout time.Duration
}

// New creates a new router
func New(config Config, g *gate.Gate, logger *logging.Logger, metricsCollector *metrics.Collector) *Router {
	target := httputil.NewSingleHostReverseProxy(config.UpstreamURL)
	target.Transport = &http.Transport{
		ResponseHeaderTimeout: config.UpstreamTimeout,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	r := &Router{
		Router:      mux.NewRouter(),
		target:      target,
		gate:        g,
		logger:      logger.WithModule("proxy.router"),
		metrics:     metricsCollector,
		upstreamURL: config.UpstreamURL,
	}

	r.setupRoutes()

	return r
}

// setupRoutes wires the login protocol endpoints and the catch-all gate
// handler. Route order matters: the catch-all must come last.
func (r *Router) setupRoutes() {
	login := r.gate.LoginPath()
	logout := r.gate.LogoutPath()

	r.Path(login).Methods(http.MethodGet).HandlerFunc(r.handleLoginForm)
	r.Path(login).Methods(http.MethodPost).HandlerFunc(r.handleLoginSubmit)
	r.Path(logout).Methods(http.MethodPost).HandlerFunc(r.handleLogout)
	r.PathPrefix("/").HandlerFunc(r.handleEvaluate)
}

// handleLoginForm forwards a GET of the login form upstream after issuing
// the anti-forgery cookie the subsequent submission must echo
func (r *Router) handleLoginForm(w http.ResponseWriter, req *http.Request) {
	// The login path must be PUBLIC by configuration, but it still goes
	// through Evaluate so rule metrics stay complete
	identity := auth.IdentityFromContext(req.Context())
	action := r.gate.Evaluate(req, identity)
	if action.Type == gate.ActionRedirect {
		// Only reachable when startup validation was bypassed
		r.redirect(w, req, action.Location, http.StatusFound)
		return
	}

	token := r.gate.IssueLoginCookies(w, req)
	r.proxyUpstream(w, req, token)
}

// handleLoginSubmit processes the login form submission
func (r *Router) handleLoginSubmit(w http.ResponseWriter, req *http.Request) {
	action := r.gate.HandleLoginSubmit(w, req)
	r.redirect(w, req, action.Location, http.StatusSeeOther)
}

// handleLogout processes the logout submission
func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	action := r.gate.HandleLogout(w, req)
	r.redirect(w, req, action.Location, http.StatusSeeOther)
}

// handleEvaluate runs the gate decision for every other request
func (r *Router) handleEvaluate(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	logger := logging.LoggerFromContext(ctx)
	if logger == nil {
		logger = r.logger
	}

	identity := auth.IdentityFromContext(ctx)
	action := r.gate.Evaluate(req, identity)

	switch action.Type {
	case gate.ActionForward:
		// Disclose the session's anti-forgery token to the view so it can
		// render the logout form
		var token string
		if identity != nil {
			token = identity.SessionToken
		}
		r.proxyUpstream(w, req, token)

	case gate.ActionRedirect:
		logger.Debug("Redirecting to login",
			"path", req.URL.Path,
			"method", req.Method,
		)
		// Remember where the caller was headed so the post-login redirect
		// can return there. Only idempotent requests are worth replaying.
		if req.Method == http.MethodGet {
			r.gate.SaveOriginalTarget(w, req)
		}
		r.redirect(w, req, action.Location, http.StatusFound)
	}
}

// proxyUpstream forwards the request to the upstream application. The
// anti-forgery header is owned by the proxy: inbound values are stripped and
// token, when non-empty, is set in their place.
func (r *Router) proxyUpstream(w http.ResponseWriter, req *http.Request, token string) {
	req.Header.Del(gate.TokenHeader)
	if token != "" {
		req.Header.Set(gate.TokenHeader, token)
	}

	startTime := time.Now()
	wrapper := httputils.NewResponseWriter(w)

	r.target.ServeHTTP(wrapper, req)

	r.metrics.RecordUpstreamRequest(req.Method, wrapper.StatusCode, time.Since(startTime))
}

// redirect issues the redirect for an action
func (r *Router) redirect(w http.ResponseWriter, req *http.Request, location string, status int) {
	http.Redirect(w, req, location, status)
}
