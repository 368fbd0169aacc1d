// internal/config/types.go
package config

import (
	"net/url"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	// Server holds HTTP server configuration
	Server struct {
		// Address is the address to listen on
		Address string
		// ShutdownTimeout is the maximum time to wait for a graceful shutdown
		ShutdownTimeout time.Duration
	}

	// Metrics holds metrics server configuration
	Metrics struct {
		// Address is the address to listen on for the metrics server
		Address string
	}

	// TLS holds TLS configuration
	TLS struct {
		// Enabled indicates whether TLS is enabled
		Enabled bool
		// CertPath is the path to the TLS certificate
		CertPath string
		// KeyPath is the path to the TLS key
		KeyPath string
	}

	// Upstream holds configuration for the upstream application
	Upstream struct {
		// URL is the URL of the upstream application
		URL *url.URL
		// Timeout is the maximum time to wait for upstream responses
		Timeout time.Duration
	}

	// Gate holds the login/logout protocol configuration
	Gate struct {
		// LoginPath is the path of the login form; it must resolve PUBLIC
		LoginPath string
		// LogoutPath is the path logout submissions are posted to
		LogoutPath string
		// DefaultTarget is where successful logins land when no original
		// target was saved
		DefaultTarget string
		// StaticPrefix is the static-resource path prefix; when set it must
		// resolve PUBLIC
		StaticPrefix string
	}

	// Session holds session store configuration
	Session struct {
		// CookieName is the name of the session cookie
		CookieName string
		// TTL is the session lifetime
		TTL time.Duration
		// Backend selects the store implementation (memory, redis)
		Backend string
		// RedisAddr is the Redis address for the redis backend
		RedisAddr string
		// RedisPassword is the Redis password, if any
		RedisPassword string
	}

	// Credentials holds credential store configuration
	Credentials struct {
		// UsersFile is the path to the YAML users file
		UsersFile string
	}

	// Auth holds additional authentication configuration
	Auth struct {
		// Bearer holds Bearer token authentication configuration
		Bearer struct {
			// Enabled indicates whether Bearer token authentication is enabled
			Enabled bool
			// Secret is the HMAC signing secret for token validation
			Secret string
			// Issuer is the expected token issuer
			Issuer string
			// Audience is the expected token audience
			Audience string
		}
	}

	// Observability holds observability configuration
	Observability struct {
		// LogLevel is the minimum log level to emit
		LogLevel string
	}

	// Rules holds the ordered access rules
	Rules []Rule
}

// Rule is the configuration form of an access rule
type Rule struct {
	// Name is a unique identifier for the rule
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// Pattern is the URL path this rule applies to
	Pattern string `json:"pattern" yaml:"pattern" mapstructure:"pattern"`

	// MatchPrefix indicates whether to match the path prefix instead of exact match
	MatchPrefix bool `json:"match_prefix" yaml:"match_prefix" mapstructure:"match_prefix"`

	// Policy is the access policy: PUBLIC or AUTHENTICATED
	Policy string `json:"policy" yaml:"policy" mapstructure:"policy"`
}
