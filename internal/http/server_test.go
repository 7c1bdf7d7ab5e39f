package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentgov/internal/breaker"
	"github.com/fyrsmithlabs/agentgov/internal/config"
	"github.com/fyrsmithlabs/agentgov/internal/services"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.Policy.Dir = t.TempDir()
	cfg.Policy.Watch = false
	cfg.Audit.Path = filepath.Join(t.TempDir(), "events.jsonl")

	registry, err := services.Build(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { registry.Close() })

	server, err := NewServer(registry, zap.NewNop(), &Config{Addr: ":0"})
	require.NoError(t, err)
	return server
}

func postJSON(t *testing.T, server *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)
	return rec
}

func TestNewServer(t *testing.T) {
	t.Run("creates server with valid config", func(t *testing.T) {
		server := setupTestServer(t)
		assert.NotNil(t, server.echo)
	})

	t.Run("returns error when registry is nil", func(t *testing.T) {
		_, err := NewServer(nil, zap.NewNop(), nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "registry cannot be nil")
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		server := setupTestServer(t)
		_, err := NewServer(server.registry, nil, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server := setupTestServer(t)
		defaulted, err := NewServer(server.registry, zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, ":9440", defaulted.config.Addr)
	})
}

func TestHandleHealth(t *testing.T) {
	server := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleAdmission(t *testing.T) {
	t.Run("allows a call under all ceilings", func(t *testing.T) {
		server := setupTestServer(t)

		rec := postJSON(t, server, "/api/v1/admission", AdmissionRequest{
			TaskID:        "t1",
			SessionID:     "s1",
			Agent:         "coder",
			EstimatedCost: 0.05,
		})

		assert.Equal(t, http.StatusOK, rec.Code)

		var decision breaker.Decision
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
		assert.True(t, decision.Allowed)
		assert.Equal(t, breaker.StateClosed, decision.State)
	})

	t.Run("denial is returned with 200", func(t *testing.T) {
		server := setupTestServer(t)

		// Exhaust the task call ceiling.
		for i := 0; i < server.registry.Breaker().Limits().MaxCallsPerTask; i++ {
			rec := postJSON(t, server, "/api/v1/record", RecordRequest{
				TaskID:    "t1",
				SessionID: "s1",
				Agent:     "coder",
				Response:  fmt.Sprintf("output %d", i),
				Cost:      0.01,
			})
			require.Equal(t, http.StatusOK, rec.Code)
		}

		rec := postJSON(t, server, "/api/v1/admission", AdmissionRequest{
			TaskID:    "t1",
			SessionID: "s1",
			Agent:     "coder",
		})

		assert.Equal(t, http.StatusOK, rec.Code)

		var decision breaker.Decision
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
		assert.False(t, decision.Allowed)
		assert.Contains(t, decision.Reason, "call limit")
	})

	t.Run("rejects missing identifiers", func(t *testing.T) {
		server := setupTestServer(t)

		rec := postJSON(t, server, "/api/v1/admission", AdmissionRequest{TaskID: "t1"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects negative estimated cost", func(t *testing.T) {
		server := setupTestServer(t)

		rec := postJSON(t, server, "/api/v1/admission", AdmissionRequest{
			TaskID:        "t1",
			SessionID:     "s1",
			EstimatedCost: -1,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleRecord(t *testing.T) {
	t.Run("books the call and reports anomalies", func(t *testing.T) {
		server := setupTestServer(t)

		rec := postJSON(t, server, "/api/v1/record", RecordRequest{
			TaskID:    "t1",
			SessionID: "s1",
			Agent:     "coder",
			Response:  "first answer",
			Cost:      0.02,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var outcome breaker.Outcome
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
		assert.False(t, outcome.RepetitionAlert)
		assert.False(t, outcome.PingPong)

		// An identical response triggers the repetition alert.
		rec = postJSON(t, server, "/api/v1/record", RecordRequest{
			TaskID:    "t1",
			SessionID: "s1",
			Agent:     "coder",
			Response:  "first answer",
			Cost:      0.02,
		})
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
		assert.True(t, outcome.RepetitionAlert)
	})

	t.Run("rejects missing identifiers", func(t *testing.T) {
		server := setupTestServer(t)

		rec := postJSON(t, server, "/api/v1/record", RecordRequest{SessionID: "s1"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleBreakerReset(t *testing.T) {
	server := setupTestServer(t)

	// A reset with the breaker CLOSED is a no-op.
	rec := postJSON(t, server, "/api/v1/breaker/reset", struct{}{})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ResetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, breaker.StateClosed, resp.State)
}

func TestHandleTaskStop(t *testing.T) {
	t.Run("stops a tracked task", func(t *testing.T) {
		server := setupTestServer(t)

		rec := postJSON(t, server, "/api/v1/record", RecordRequest{
			TaskID:    "t1",
			SessionID: "s1",
			Agent:     "coder",
			Response:  "partial work",
			Cost:      0.01,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = postJSON(t, server, "/api/v1/tasks/t1/stop", StopRequest{Reason: "runaway"})
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp StopResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "t1", resp.TaskID)
		assert.True(t, resp.Stopped)
	})

	t.Run("unknown task returns 404", func(t *testing.T) {
		server := setupTestServer(t)

		rec := postJSON(t, server, "/api/v1/tasks/nope/stop", StopRequest{})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleStatus(t *testing.T) {
	server := setupTestServer(t)

	rec := postJSON(t, server, "/api/v1/record", RecordRequest{
		TaskID:    "t1",
		SessionID: "s1",
		Agent:     "coder",
		Response:  "work",
		Cost:      0.10,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	statusRec := httptest.NewRecorder()
	server.echo.ServeHTTP(statusRec, req)

	assert.Equal(t, http.StatusOK, statusRec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(statusRec.Body.Bytes(), &resp))
	assert.Equal(t, breaker.StateClosed, resp.Breaker.State)
	require.Len(t, resp.Breaker.Tasks, 1)
	assert.Equal(t, "t1", resp.Breaker.Tasks[0].TaskID)
	assert.InDelta(t, 0.10, resp.Breaker.DailyCost, 1e-9)
}
