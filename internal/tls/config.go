// internal/tls/config.go
package tls

import (
	"crypto/tls"
	"fmt"

	"authgate/internal/observability/logging"
)

// Config holds the TLS configuration
type Config struct {
	// Logger is the logger to use
	Logger *logging.Logger

	// CertPath is the path to the server certificate
	CertPath string

	// KeyPath is the path to the server key
	KeyPath string
}

// GetTLSConfig creates a TLS configuration for the server
func (c *Config) GetTLSConfig() (*tls.Config, error) {
	c.Logger.Debug("Initializing TLS configuration")

	cert, err := tls.LoadX509KeyPair(c.CertPath, c.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load server key pair: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12, // Enforce minimum TLS version
	}

	c.Logger.Info("TLS configuration successful")
	return tlsConfig, nil
}
