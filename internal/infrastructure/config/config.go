package config

import (
	"fmt"
	"math"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all server configuration.
type Config struct {
	Server    ServerConfig
	Session   SessionConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration. Port 0 asks the OS for an
// ephemeral port; the bound address is discoverable after start.
type ServerConfig struct {
	Host string `envconfig:"SHELLMUX_HOST" default:"127.0.0.1"`
	Port int    `envconfig:"SHELLMUX_PORT" default:"0"`
}

// SessionConfig holds terminal session lifecycle configuration.
//
// PollTimeout bounds each backend output read; smaller values lower output
// latency at the cost of more wakeups per session.
type SessionConfig struct {
	MaxSessions       int           `envconfig:"SHELLMUX_MAX_SESSIONS" default:"32"`
	InactivityTimeout time.Duration `envconfig:"SHELLMUX_INACTIVITY_TIMEOUT" default:"60m"`
	SweepInterval     time.Duration `envconfig:"SHELLMUX_SWEEP_INTERVAL" default:"1m"`
	PollTimeout       time.Duration `envconfig:"SHELLMUX_POLL_TIMEOUT" default:"50ms"`
	DefaultShell      string        `envconfig:"SHELLMUX_SHELL" default:""`
	DefaultRows       int           `envconfig:"SHELLMUX_ROWS" default:"24"`
	DefaultCols       int           `envconfig:"SHELLMUX_COLS" default:"80"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"SHELLMUX_LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"SHELLMUX_LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"SHELLMUX_RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"SHELLMUX_RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"SHELLMUX_RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Session.DefaultRows = clampDimension(cfg.Session.DefaultRows, 24)
	cfg.Session.DefaultCols = clampDimension(cfg.Session.DefaultCols, 80)
	return &cfg, nil
}

// clampDimension keeps a configured terminal dimension inside the uint16
// range PTYs accept, falling back to the default otherwise.
func clampDimension(v, def int) int {
	if v < 1 || v > math.MaxUint16 {
		return def
	}
	return v
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 0,
		},
		Session: SessionConfig{
			MaxSessions:       32,
			InactivityTimeout: 60 * time.Minute,
			SweepInterval:     time.Minute,
			PollTimeout:       50 * time.Millisecond,
			DefaultRows:       24,
			DefaultCols:       80,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
