// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"authgate/internal/access"
)

// Load loads the configuration from all sources and returns the merged
// result. A configuration the gate cannot safely serve with, most
// importantly a rule list under which the login path is not PUBLIC, is
// rejected here, before any traffic is accepted.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	Settings.PopulateViperDefaults(v)

	// Set up environment variable handling
	v.SetEnvPrefix("AUTHGATE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	// Load from config file if specified
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// It's okay if the config file doesn't exist, but other errors should be reported
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	config := &Config{}

	// Populate server configuration
	config.Server.Address = v.GetString("SERVER_ADDR")
	shutdownTimeout, err := time.ParseDuration(v.GetString("SHUTDOWN_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}
	config.Server.ShutdownTimeout = shutdownTimeout

	// Populate metrics configuration
	config.Metrics.Address = v.GetString("METRICS_ADDR")

	// Populate TLS configuration
	config.TLS.Enabled = v.GetBool("TLS_ENABLED")
	config.TLS.CertPath = v.GetString("TLS_CERT_PATH")
	config.TLS.KeyPath = v.GetString("TLS_KEY_PATH")

	// Populate upstream configuration
	upstreamURL, err := url.Parse(v.GetString("UPSTREAM_URL"))
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	config.Upstream.URL = upstreamURL

	upstreamTimeout, err := time.ParseDuration(v.GetString("UPSTREAM_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("invalid upstream timeout: %w", err)
	}
	config.Upstream.Timeout = upstreamTimeout

	// Populate gate configuration
	config.Gate.LoginPath = v.GetString("LOGIN_PATH")
	config.Gate.LogoutPath = v.GetString("LOGOUT_PATH")
	config.Gate.DefaultTarget = v.GetString("DEFAULT_TARGET")
	config.Gate.StaticPrefix = v.GetString("STATIC_PREFIX")

	// Populate session configuration
	config.Session.CookieName = v.GetString("SESSION_COOKIE_NAME")
	sessionTTL, err := time.ParseDuration(v.GetString("SESSION_TTL"))
	if err != nil {
		return nil, fmt.Errorf("invalid session TTL: %w", err)
	}
	config.Session.TTL = sessionTTL
	config.Session.Backend = v.GetString("SESSION_BACKEND")
	config.Session.RedisAddr = v.GetString("SESSION_REDIS_ADDR")
	config.Session.RedisPassword = v.GetString("SESSION_REDIS_PASSWORD")

	// Populate credential configuration
	config.Credentials.UsersFile = v.GetString("USERS_FILE")

	// Populate authentication configuration
	config.Auth.Bearer.Enabled = v.GetBool("AUTH_BEARER_ENABLED")
	config.Auth.Bearer.Secret = v.GetString("AUTH_BEARER_SECRET")
	config.Auth.Bearer.Issuer = v.GetString("AUTH_BEARER_ISSUER")
	config.Auth.Bearer.Audience = v.GetString("AUTH_BEARER_AUDIENCE")

	// Populate observability configuration
	config.Observability.LogLevel = v.GetString("LOG_LEVEL")

	// Rules come from the config file only; there is no sensible env encoding
	if err := v.UnmarshalKey("rules", &config.Rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}

	// Validate the configuration
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// BuildRuleset converts the configured rules into an access.Ruleset,
// preserving declaration order
func (c *Config) BuildRuleset() (*access.Ruleset, error) {
	rules := make([]access.Rule, len(c.Rules))
	for i, r := range c.Rules {
		policy, err := access.ParsePolicy(r.Policy)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%q): %w", i, r.Name, err)
		}
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("rule-%d", i)
		}
		rules[i] = access.Rule{
			Name:        name,
			Pattern:     r.Pattern,
			MatchPrefix: r.MatchPrefix,
			Policy:      policy,
		}
	}
	return access.NewRuleset(rules)
}

// validateConfig performs validation on the loaded configuration
func validateConfig(cfg *Config) error {
	if cfg.Upstream.URL == nil || cfg.Upstream.URL.String() == "" {
		return fmt.Errorf("upstream URL is required")
	}
	if cfg.Upstream.URL.Scheme != "http" && cfg.Upstream.URL.Scheme != "https" {
		return fmt.Errorf("upstream URL must be http or https: %s", cfg.Upstream.URL)
	}

	// Validate TLS configuration
	if cfg.TLS.Enabled {
		if cfg.TLS.CertPath == "" {
			return fmt.Errorf("TLS certificate path is required when TLS is enabled")
		}
		if cfg.TLS.KeyPath == "" {
			return fmt.Errorf("TLS key path is required when TLS is enabled")
		}
		if _, err := os.Stat(cfg.TLS.CertPath); os.IsNotExist(err) {
			return fmt.Errorf("TLS certificate file not found: %s", cfg.TLS.CertPath)
		}
		if _, err := os.Stat(cfg.TLS.KeyPath); os.IsNotExist(err) {
			return fmt.Errorf("TLS key file not found: %s", cfg.TLS.KeyPath)
		}
	}

	if err := validateGateConfig(cfg); err != nil {
		return err
	}

	if err := validateSessionConfig(cfg); err != nil {
		return err
	}

	if cfg.Credentials.UsersFile == "" {
		return fmt.Errorf("users file is required")
	}

	if cfg.Auth.Bearer.Enabled && cfg.Auth.Bearer.Secret == "" {
		return fmt.Errorf("bearer signing secret is required when bearer authentication is enabled")
	}

	return nil
}

// validateGateConfig validates the login protocol paths against the rule
// list. The gate grants no implicit exemptions: if the operator has not
// explicitly marked the login path PUBLIC, every request to it would
// redirect back to it forever. That is a configuration error caught here,
// not a runtime condition the gate tries to detect.
func validateGateConfig(cfg *Config) error {
	if !strings.HasPrefix(cfg.Gate.LoginPath, "/") {
		return fmt.Errorf("login path must start with '/': %q", cfg.Gate.LoginPath)
	}
	if !strings.HasPrefix(cfg.Gate.LogoutPath, "/") {
		return fmt.Errorf("logout path must start with '/': %q", cfg.Gate.LogoutPath)
	}
	if cfg.Gate.LoginPath == cfg.Gate.LogoutPath {
		return fmt.Errorf("login path and logout path must differ")
	}
	if !strings.HasPrefix(cfg.Gate.DefaultTarget, "/") {
		return fmt.Errorf("default target must start with '/': %q", cfg.Gate.DefaultTarget)
	}

	ruleset, err := cfg.BuildRuleset()
	if err != nil {
		return err
	}

	if ruleset.PolicyFor(cfg.Gate.LoginPath) != access.Public {
		return fmt.Errorf("login path %s does not resolve to a PUBLIC rule; "+
			"requests to the login form would redirect to the login form forever",
			cfg.Gate.LoginPath)
	}

	if cfg.Gate.StaticPrefix != "" && ruleset.PolicyFor(cfg.Gate.StaticPrefix) != access.Public {
		return fmt.Errorf("static prefix %s does not resolve to a PUBLIC rule", cfg.Gate.StaticPrefix)
	}

	return nil
}

// validateSessionConfig validates session store configuration
func validateSessionConfig(cfg *Config) error {
	if cfg.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	switch cfg.Session.Backend {
	case "memory":
	case "redis":
		if cfg.Session.RedisAddr == "" {
			return fmt.Errorf("redis address is required for the redis session backend")
		}
	default:
		return fmt.Errorf("unknown session backend: %q", cfg.Session.Backend)
	}

	return nil
}
