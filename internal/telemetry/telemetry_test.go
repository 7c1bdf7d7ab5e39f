package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate_DisabledIsAlwaysValid(t *testing.T) {
	cfg := &Config{Enabled: false}
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate_Errors(t *testing.T) {
	base := func() *Config {
		cfg := DefaultConfig()
		cfg.Enabled = true
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing endpoint", func(c *Config) { c.Endpoint = "" }},
		{"missing service name", func(c *Config) { c.ServiceName = "" }},
		{"insecure remote endpoint", func(c *Config) { c.Endpoint = "collector.example.com:4317" }},
		{"sampling rate above one", func(c *Config) { c.Sampling.Rate = 1.5 }},
		{"sampling rate negative", func(c *Config) { c.Sampling.Rate = -0.1 }},
		{"zero export interval", func(c *Config) { c.Metrics.ExportInterval = 0 }},
		{"zero shutdown timeout", func(c *Config) { c.Shutdown.Timeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigValidate_InsecureLocalEndpoints(t *testing.T) {
	for _, endpoint := range []string{"localhost:4317", "127.0.0.1:4317", "[::1]:4317"} {
		cfg := DefaultConfig()
		cfg.Enabled = true
		cfg.Endpoint = endpoint
		assert.NoError(t, cfg.Validate(), "endpoint %s", endpoint)
	}
}

func TestNew_DisabledIsNoop(t *testing.T) {
	tel, err := New(context.Background(), &Config{Enabled: false}, nil)
	require.NoError(t, err)

	assert.False(t, tel.Degraded())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_NilConfigUsesDefaults(t *testing.T) {
	tel, err := New(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestShutdown_NilReceiverIsSafe(t *testing.T) {
	var tel *Telemetry
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.False(t, tel.Degraded())
}

func TestShutdown_AppliesConfiguredTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Shutdown.Timeout = 10 * time.Millisecond
	tel, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, tel.Shutdown(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}
