package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 0, cfg.Server.Port)

	// Session config
	assert.Equal(t, 32, cfg.Session.MaxSessions)
	assert.Equal(t, 60*time.Minute, cfg.Session.InactivityTimeout)
	assert.Equal(t, time.Minute, cfg.Session.SweepInterval)
	assert.Equal(t, 50*time.Millisecond, cfg.Session.PollTimeout)
	assert.Equal(t, 24, cfg.Session.DefaultRows)
	assert.Equal(t, 80, cfg.Session.DefaultCols)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadOrDefault(t *testing.T) {
	// Should return default when no env vars set
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadClampsTerminalDimensions(t *testing.T) {
	t.Setenv("SHELLMUX_ROWS", "70000")
	t.Setenv("SHELLMUX_COLS", "-3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 24, cfg.Session.DefaultRows, "rows beyond uint16 fall back to the default")
	assert.Equal(t, 80, cfg.Session.DefaultCols, "non-positive cols fall back to the default")
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"SHELLMUX_HOST":               "0.0.0.0",
		"SHELLMUX_PORT":               "9000",
		"SHELLMUX_MAX_SESSIONS":       "4",
		"SHELLMUX_INACTIVITY_TIMEOUT": "5m",
		"SHELLMUX_SWEEP_INTERVAL":     "10s",
		"SHELLMUX_POLL_TIMEOUT":       "20ms",
		"SHELLMUX_SHELL":              "/bin/zsh",
		"SHELLMUX_LOG_LEVEL":          "debug",
		"SHELLMUX_LOG_DEV":            "true",
		"SHELLMUX_RATE_LIMIT_ENABLED": "false",
	}

	for key, value := range envVars {
		err := os.Setenv(key, value)
		require.NoError(t, err)
		defer os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Session.MaxSessions)
	assert.Equal(t, 5*time.Minute, cfg.Session.InactivityTimeout)
	assert.Equal(t, 10*time.Second, cfg.Session.SweepInterval)
	assert.Equal(t, 20*time.Millisecond, cfg.Session.PollTimeout)
	assert.Equal(t, "/bin/zsh", cfg.Session.DefaultShell)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.False(t, cfg.RateLimit.Enabled)
}
