package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

func TestNew_DefaultConfig(t *testing.T) {
	logger, err := New(nil)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Format: "json"})
	assert.Error(t, err)
}

func TestNew_InvalidFormat(t *testing.T) {
	_, err := New(&Config{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestValidate_SamplingRequiresInitial(t *testing.T) {
	cfg := &Config{
		Level:    "info",
		Format:   "json",
		Sampling: SamplingConfig{Enabled: true, Initial: 0},
	}
	assert.Error(t, cfg.Validate())
}

func TestContextFields_CarriesIdentifiers(t *testing.T) {
	ctx := context.Background()
	ctx = WithSessionID(ctx, "sess-1")
	ctx = WithTaskID(ctx, "task-9")
	ctx = WithAgent(ctx, "reviewer")

	fields := ContextFields(ctx)

	require.Len(t, fields, 3)
	assert.Equal(t, "session_id", fields[0].Key)
	assert.Equal(t, "sess-1", fields[0].String)
	assert.Equal(t, "task_id", fields[1].Key)
	assert.Equal(t, "task-9", fields[1].String)
	assert.Equal(t, "agent", fields[2].Key)
	assert.Equal(t, "reviewer", fields[2].String)
}

func TestContextFields_EmptyContext(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestFromContext_EnrichesWithCorrelation(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	ctx := WithLogger(WithTaskID(context.Background(), "task-1"), logger)
	FromContext(ctx).Info("admitted")

	entries := observed.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "task-1", entries[0].ContextMap()["task_id"])
}

func TestFromContext_FallsBackToNop(t *testing.T) {
	assert.NotPanics(t, func() {
		FromContext(context.Background()).Info("dropped")
	})
}
