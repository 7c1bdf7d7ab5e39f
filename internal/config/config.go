// Package config loads the agentgovd configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/agentgov/internal/breaker"
	"github.com/fyrsmithlabs/agentgov/internal/logging"
	"github.com/fyrsmithlabs/agentgov/internal/static"
	"github.com/fyrsmithlabs/agentgov/internal/telemetry"
)

// Config is the complete daemon configuration.
type Config struct {
	Server    ServerConfig     `koanf:"server"`
	Logging   logging.Config   `koanf:"logging"`
	Telemetry telemetry.Config `koanf:"telemetry"`
	Breaker   breaker.Limits   `koanf:"breaker"`
	Escalator EscalatorConfig  `koanf:"escalator"`
	Static    static.Config    `koanf:"static"`
	Policy    PolicyConfig     `koanf:"policy"`
	Audit     AuditConfig      `koanf:"audit"`
}

// ServerConfig holds the admin HTTP server settings.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// RateLimit is the per-client request rate for the admin API,
	// in requests per second. Zero disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
}

// EscalatorConfig holds retry escalation settings.
type EscalatorConfig struct {
	// MaxSameSignature is the repeat threshold before a role switch.
	MaxSameSignature int `koanf:"max_same_signature"`
}

// PolicyConfig holds policy store settings.
type PolicyConfig struct {
	// Dir is the directory holding per-session policy files.
	Dir string `koanf:"dir"`
	// Watch enables fsnotify-based cache invalidation.
	Watch bool `koanf:"watch"`
}

// AuditConfig holds audit trail settings.
type AuditConfig struct {
	// Path is the JSONL audit log file.
	Path string     `koanf:"path"`
	NATS NATSConfig `koanf:"nats"`
}

// NATSConfig holds the optional NATS audit publisher settings.
type NATSConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// Default returns the daemon defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":9440",
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       20,
		},
		Logging:   *logging.DefaultConfig(),
		Telemetry: *telemetry.DefaultConfig(),
		Breaker:   breaker.DefaultLimits(),
		Escalator: EscalatorConfig{MaxSameSignature: 2},
		Static:    *static.DefaultConfig(),
		Policy: PolicyConfig{
			Dir:   "policies",
			Watch: true,
		},
		Audit: AuditConfig{
			Path: "audit/events.jsonl",
			NATS: NATSConfig{
				Enabled:       false,
				URL:           "nats://localhost:4222",
				SubjectPrefix: "agentgov.audit",
			},
		},
	}
}

// Validate checks the whole configuration, delegating to sections.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must be non-negative")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	if err := c.Breaker.Validate(); err != nil {
		return fmt.Errorf("breaker: %w", err)
	}
	if c.Escalator.MaxSameSignature < 1 {
		return fmt.Errorf("escalator.max_same_signature must be at least 1")
	}
	if err := c.Static.Validate(); err != nil {
		return fmt.Errorf("static: %w", err)
	}
	if c.Policy.Dir == "" {
		return fmt.Errorf("policy.dir is required")
	}
	if c.Audit.Path == "" {
		return fmt.Errorf("audit.path is required")
	}
	if c.Audit.NATS.Enabled && c.Audit.NATS.URL == "" {
		return fmt.Errorf("audit.nats.url is required when the NATS sink is enabled")
	}
	return nil
}
