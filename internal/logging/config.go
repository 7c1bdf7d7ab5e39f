package logging

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level: debug, info, warn, or error.
	Level string `koanf:"level"`
	// Format is "json" or "console".
	Format   string            `koanf:"format"`
	Sampling SamplingConfig    `koanf:"sampling"`
	Fields   map[string]string `koanf:"fields"`
}

// SamplingConfig caps log volume per second per message.
type SamplingConfig struct {
	Enabled    bool `koanf:"enabled"`
	Initial    int  `koanf:"initial"`
	Thereafter int  `koanf:"thereafter"`
}

// DefaultConfig returns production defaults: JSON at info with
// moderate sampling.
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: "json",
		Sampling: SamplingConfig{
			Enabled:    true,
			Initial:    100,
			Thereafter: 10,
		},
		Fields: map[string]string{
			"service": "agentgovd",
		},
	}
}

// Validate checks the config for errors.
func (c *Config) Validate() error {
	if _, err := c.zapLevel(); err != nil {
		return err
	}
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	if c.Sampling.Enabled && c.Sampling.Initial <= 0 {
		return fmt.Errorf("sampling initial must be > 0 when sampling is enabled")
	}
	return nil
}

func (c *Config) zapLevel() (zapcore.Level, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	return level, nil
}
