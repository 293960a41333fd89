package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, SessionPolicyReplace, cfg.SessionPolicy)
	assert.Equal(t, 100, cfg.SendBuffer)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PARLEY_PORT", "9191")
	t.Setenv("PARLEY_SESSION_POLICY", "reject")
	t.Setenv("PARLEY_PING_INTERVAL", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Port)
	assert.Equal(t, SessionPolicyReject, cfg.SessionPolicy)
	assert.Equal(t, 5*time.Second, cfg.PingInterval)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Port = 0 }},
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"empty host", func(c *Config) { c.Host = "" }},
		{"empty database path", func(c *Config) { c.DatabasePath = "" }},
		{"empty blob path", func(c *Config) { c.BlobPath = "" }},
		{"short token secret", func(c *Config) { c.TokenSecret = "short" }},
		{"zero token ttl", func(c *Config) { c.TokenTTL = 0 }},
		{"zero send buffer", func(c *Config) { c.SendBuffer = 0 }},
		{"zero max message size", func(c *Config) { c.MaxMessageSize = 0 }},
		{"ping longer than read timeout", func(c *Config) { c.PingInterval = c.WSReadTimeout * 2 }},
		{"unknown session policy", func(c *Config) { c.SessionPolicy = "duplicate" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			require.NoError(t, cfg.Validate())
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
