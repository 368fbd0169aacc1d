// internal/server/factory.go
package server

import (
	"fmt"

	"authgate/internal/auth"
	"authgate/internal/auth/bearer"
	"authgate/internal/auth/manager"
	"authgate/internal/auth/sessioncookie"
	"authgate/internal/config"
	"authgate/internal/credentials"
	"authgate/internal/gate"
	"authgate/internal/observability"
	"authgate/internal/observability/logging"
	"authgate/internal/observability/metrics"
	"authgate/internal/proxy/router"
	"authgate/internal/session"
	"authgate/internal/session/memory"
	redisstore "authgate/internal/session/redis"
	tlsconfig "authgate/internal/tls"

	goredis "github.com/redis/go-redis/v9"
)

// NewFromConfig creates a new server from configuration
func NewFromConfig(cfg *config.Config) (*Server, error) {
	// Initialize observability
	obs, err := observability.NewProvider(cfg.Observability.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	logger := obs.Logger

	serverConfig := Config{
		Address:         cfg.Server.Address,
		MetricsAddress:  cfg.Metrics.Address,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}

	// Initialize TLS configuration
	if cfg.TLS.Enabled {
		tlsSetup := &tlsconfig.Config{
			Logger:   logger,
			CertPath: cfg.TLS.CertPath,
			KeyPath:  cfg.TLS.KeyPath,
		}
		serverConfig.TLSConfig, err = tlsSetup.GetTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS configuration: %w", err)
		}
	}

	// Initialize credential store
	creds, err := credentials.NewFileStore(cfg.Credentials.UsersFile, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load users file: %w", err)
	}

	// Initialize session store
	sessions, cleanup, err := createSessionStore(cfg, logger, obs.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}

	// Initialize access rules
	rules, err := cfg.BuildRuleset()
	if err != nil {
		return nil, fmt.Errorf("failed to build access rules: %w", err)
	}

	// Initialize the gate
	g := gate.New(gate.Config{
		LoginPath:     cfg.Gate.LoginPath,
		LogoutPath:    cfg.Gate.LogoutPath,
		DefaultTarget: cfg.Gate.DefaultTarget,
		CookieName:    cfg.Session.CookieName,
		SessionTTL:    cfg.Session.TTL,
		SecureCookies: cfg.TLS.Enabled,
	}, rules, sessions, creds, logger, obs.Metrics)

	// Initialize authenticators; Bearer runs first so API clients are
	// resolved before the session cookie is consulted
	var authenticators []auth.Authenticator
	if cfg.Auth.Bearer.Enabled {
		bearerAuth, err := bearer.New(bearer.Config{
			Enabled:  true,
			Secret:   cfg.Auth.Bearer.Secret,
			Issuer:   cfg.Auth.Bearer.Issuer,
			Audience: cfg.Auth.Bearer.Audience,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize bearer authentication: %w", err)
		}
		authenticators = append(authenticators, bearerAuth)
	}
	authenticators = append(authenticators,
		sessioncookie.New(sessioncookie.Config{CookieName: cfg.Session.CookieName}, sessions, logger))

	authManager := manager.NewManager(authenticators, logger)

	// Initialize router
	proxyRouter := router.New(router.Config{
		UpstreamURL:     cfg.Upstream.URL,
		UpstreamTimeout: cfg.Upstream.Timeout,
	}, g, logger, obs.Metrics)

	// Create complete middleware chain: observability -> auth -> router
	handler := obs.Middleware(authManager.Middleware(proxyRouter))

	srv := New(serverConfig, handler, obs.MetricsHandler(), logger)
	srv.cleanup = cleanup
	return srv, nil
}

// createSessionStore creates the configured session store and a cleanup
// function to release its resources
func createSessionStore(cfg *config.Config, logger *logging.Logger, collector *metrics.Collector) (session.Store, func(), error) {
	switch cfg.Session.Backend {
	case memory.Backend:
		store := memory.New(cfg.Session.TTL, logger, collector)
		return store, store.Stop, nil

	case redisstore.Backend:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
		})
		store := redisstore.New(client, cfg.Session.TTL, logger, collector)
		return store, func() {
			if err := client.Close(); err != nil {
				logger.Error("Failed to close Redis client", logging.Err(err))
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}
