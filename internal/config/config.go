// Package config loads and validates the client configuration.
package config

import (
	"strings"
	"time"

	"github.com/resolving/chatsync/internal/chat"
)

// Config is the full client configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	User      UserConfig      `yaml:"user"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Actions   ActionsConfig   `yaml:"actions"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig locates the chat server.
type ServerConfig struct {
	// URL is the server's HTTP origin (required), e.g. https://chat.example.
	URL string `yaml:"url"`
	// Token is the session token used for both the push channel and the
	// request/response calls.
	Token string `yaml:"token"`
}

// UserConfig pins the local identity when no parsable token is available.
type UserConfig struct {
	ID       int64  `yaml:"id"`
	Username string `yaml:"username"`
	Role     string `yaml:"role"`
}

// HeartbeatConfig tunes the liveness signal.
type HeartbeatConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// ReconnectConfig tunes push-channel reconnection.
type ReconnectConfig struct {
	// MaxAttempts bounds consecutive failed reconnects; 0 means keep trying.
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Factor       float64       `yaml:"factor"`
	Jitter       float64       `yaml:"jitter"`
}

// ActionsConfig tunes the request/response gateway.
type ActionsConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig selects log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig exposes Prometheus metrics when Listen is set.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// Validate checks required fields and applies defaults.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.URL) == "" {
		return chat.ErrConfig("server.url is required", nil)
	}
	if c.Heartbeat.Interval <= 0 {
		c.Heartbeat.Interval = 30 * time.Second
	}
	if c.Reconnect.InitialDelay <= 0 {
		c.Reconnect.InitialDelay = 2 * time.Second
	}
	if c.Reconnect.MaxDelay <= 0 {
		c.Reconnect.MaxDelay = 30 * time.Second
	}
	if c.Reconnect.Factor <= 0 {
		c.Reconnect.Factor = 2
	}
	if c.Reconnect.Jitter < 0 || c.Reconnect.Jitter > 1 {
		return chat.ErrConfig("reconnect.jitter must be between 0 and 1", nil)
	}
	if c.Actions.Timeout <= 0 {
		c.Actions.Timeout = 10 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	return nil
}
