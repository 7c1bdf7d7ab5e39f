package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentgov.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9440", cfg.Server.Addr)
	assert.Equal(t, 10, cfg.Breaker.MaxCallsPerTask)
	assert.Equal(t, 10.0, cfg.Breaker.DailyBudget)
	assert.Equal(t, 2, cfg.Escalator.MaxSameSignature)
	assert.True(t, cfg.Static.CheckSecrets)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":9440", cfg.Server.Addr)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":7000"
  shutdown_timeout: 3s
breaker:
  max_calls_per_task: 4
  daily_budget: 25.0
policy:
  dir: /var/lib/agentgov/policies
audit:
  nats:
    enabled: true
    url: nats://bus:4222
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 4, cfg.Breaker.MaxCallsPerTask)
	assert.Equal(t, 25.0, cfg.Breaker.DailyBudget)
	assert.Equal(t, "/var/lib/agentgov/policies", cfg.Policy.Dir)
	assert.True(t, cfg.Audit.NATS.Enabled)
	assert.Equal(t, "nats://bus:4222", cfg.Audit.NATS.URL)

	// Untouched sections keep defaults.
	assert.Equal(t, 0.50, cfg.Breaker.MaxCostPerTask)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":7000\"\n")
	t.Setenv("AGENTGOV_SERVER_ADDR", ":8000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Server.Addr)
}

func TestLoad_EnvCompoundFieldNames(t *testing.T) {
	t.Setenv("AGENTGOV_POLICY_DIR", "/etc/agentgov/policies")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/etc/agentgov/policies", cfg.Policy.Dir)
}

func TestLoad_RejectsWorldReadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentgov.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":7000\"\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permissions")
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	path := writeConfig(t, "breaker:\n  max_calls_per_task: -5\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
}

func TestValidate_NATSRequiresURL(t *testing.T) {
	cfg := Default()
	cfg.Audit.NATS.Enabled = true
	cfg.Audit.NATS.URL = ""
	assert.Error(t, cfg.Validate())
}
