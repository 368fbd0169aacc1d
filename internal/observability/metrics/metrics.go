package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Common label names for consistent metrics
const (
	LabelRule    = "rule"
	LabelPolicy  = "policy"
	LabelStatus  = "status"
	LabelMethod  = "method"
	LabelPath    = "path"
	LabelOutcome = "outcome"
	LabelBackend = "backend"
)

var (
	// RequestsTotal counts all HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	// RequestDuration tracks the duration of HTTP requests
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authgate_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)

	// RuleMatchTotal counts access rule matches by rule name and policy
	RuleMatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_rule_match_total",
			Help: "Total number of access rule matches",
		},
		[]string{LabelRule, LabelPolicy},
	)

	// LoginAttemptsTotal counts login submissions by outcome
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_login_attempts_total",
			Help: "Total number of login form submissions",
		},
		[]string{LabelOutcome},
	)

	// ForgeryRejectionsTotal counts submissions rejected for a missing or
	// mismatched anti-forgery token
	ForgeryRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authgate_forgery_rejections_total",
			Help: "Total number of submissions rejected by anti-forgery checks",
		},
	)

	// SessionsActive tracks the number of live sessions by store backend
	SessionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "authgate_sessions_active",
			Help: "Number of currently active sessions",
		},
		[]string{LabelBackend},
	)

	// UpstreamRequestTotal counts requests forwarded to the upstream
	UpstreamRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_upstream_requests_total",
			Help: "Total number of requests forwarded to the upstream",
		},
		[]string{LabelMethod, LabelStatus},
	)

	// UpstreamRequestDuration tracks the duration of forwarded requests
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authgate_upstream_request_duration_seconds",
			Help:    "Duration of forwarded upstream requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{LabelMethod},
	)
)

// Login outcomes recorded by RecordLogin
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeForgery = "forgery"
)

// Collector provides methods for recording metrics
type Collector struct{}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{}
}

// RecordRequest records metrics for an HTTP request
func (c *Collector) RecordRequest(method, path string, status int, duration time.Duration) {
	RequestsTotal.WithLabelValues(method, path, http.StatusText(status)).Inc()
	RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRuleMatch records an access rule match
func (c *Collector) RecordRuleMatch(ruleName, policy string) {
	RuleMatchTotal.WithLabelValues(ruleName, policy).Inc()
}

// RecordLogin records a login submission outcome
func (c *Collector) RecordLogin(outcome string) {
	LoginAttemptsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeForgery {
		ForgeryRejectionsTotal.Inc()
	}
}

// SessionCreated records a new session in the active gauge
func (c *Collector) SessionCreated(backend string) {
	SessionsActive.WithLabelValues(backend).Inc()
}

// SessionEnded records a session invalidation or expiry in the active gauge
func (c *Collector) SessionEnded(backend string) {
	SessionsActive.WithLabelValues(backend).Dec()
}

// RecordUpstreamRequest records a request forwarded to the upstream
func (c *Collector) RecordUpstreamRequest(method string, status int, duration time.Duration) {
	UpstreamRequestTotal.WithLabelValues(method, http.StatusText(status)).Inc()
	UpstreamRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// Handler returns an HTTP handler for exposing metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
