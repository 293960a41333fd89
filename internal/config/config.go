// Package config holds system-wide settings, loaded from PARLEY_* environment
// variables with sane defaults for local development.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Duplicate-connection policies for an identity that is already connected.
const (
	SessionPolicyReplace = "replace"
	SessionPolicyReject  = "reject"
)

// Config is the complete runtime configuration.
type Config struct {
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	Port int    `envconfig:"PORT" default:"8080"`

	DatabasePath string `envconfig:"DATABASE_PATH" default:"./parley.db"`
	BlobPath     string `envconfig:"BLOB_PATH" default:"./parley-blobs"`

	TokenSecret string        `envconfig:"TOKEN_SECRET" default:"parley-dev-secret-change-in-production"`
	TokenTTL    time.Duration `envconfig:"TOKEN_TTL" default:"24h"`

	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`

	WSReadTimeout  time.Duration `envconfig:"WS_READ_TIMEOUT" default:"60s"`
	WSWriteTimeout time.Duration `envconfig:"WS_WRITE_TIMEOUT" default:"10s"`
	PingInterval   time.Duration `envconfig:"PING_INTERVAL" default:"30s"`
	SendBuffer     int           `envconfig:"SEND_BUFFER" default:"100"`
	MaxMessageSize int64         `envconfig:"MAX_MESSAGE_SIZE" default:"10485760"`

	SessionPolicy string `envconfig:"SESSION_POLICY" default:"replace"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("parley", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that would fail at runtime.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.BlobPath == "" {
		return fmt.Errorf("blob path cannot be empty")
	}
	if len(c.TokenSecret) < 16 {
		return fmt.Errorf("token secret must be at least 16 characters")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}
	if c.WSReadTimeout <= 0 || c.WSWriteTimeout <= 0 {
		return fmt.Errorf("WebSocket timeouts must be positive")
	}
	if c.PingInterval <= 0 {
		return fmt.Errorf("ping interval must be positive")
	}
	if c.PingInterval >= c.WSReadTimeout {
		return fmt.Errorf("ping interval must be shorter than the WebSocket read timeout")
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("send buffer must be positive")
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("max message size must be positive")
	}
	if c.SessionPolicy != SessionPolicyReplace && c.SessionPolicy != SessionPolicyReject {
		return fmt.Errorf("session policy must be %q or %q", SessionPolicyReplace, SessionPolicyReject)
	}
	return nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
