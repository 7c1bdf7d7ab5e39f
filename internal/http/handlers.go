package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentgov/internal/breaker"
	"github.com/fyrsmithlabs/agentgov/internal/escalator"
)

// admissionDecisions feeds the /metrics endpoint directly; the otel
// pipeline carries the richer per-reason series.
var admissionDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "agentgov_admission_decisions_total",
	Help: "Admission decisions by outcome.",
}, []string{"allowed"})

// AdmissionRequest is the request body for POST /api/v1/admission.
type AdmissionRequest struct {
	TaskID        string  `json:"task_id"`
	SessionID     string  `json:"session_id"`
	Agent         string  `json:"agent"`
	EstimatedCost float64 `json:"estimated_cost"`
}

// RecordRequest is the request body for POST /api/v1/record.
type RecordRequest struct {
	TaskID       string  `json:"task_id"`
	SessionID    string  `json:"session_id"`
	Agent        string  `json:"agent"`
	Response     string  `json:"response"`
	Cost         float64 `json:"cost"`
	IsEscalation bool    `json:"is_escalation"`
}

// ResetResponse is the response body for POST /api/v1/breaker/reset.
type ResetResponse struct {
	State breaker.State `json:"state"`
}

// StopRequest is the request body for POST /api/v1/tasks/:id/stop.
type StopRequest struct {
	Reason string `json:"reason"`
}

// StopResponse is the response body for POST /api/v1/tasks/:id/stop.
type StopResponse struct {
	TaskID  string `json:"task_id"`
	Stopped bool   `json:"stopped"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Breaker   breaker.Snapshot   `json:"breaker"`
	Escalator escalator.Snapshot `json:"escalator"`
}

// handleAdmission runs the pre-call admission check. The decision is
// returned with 200 whether or not the call is allowed; a denial is
// data, not a transport error.
func (s *Server) handleAdmission(c echo.Context) error {
	var req AdmissionRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid admission request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.TaskID == "" || req.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "task_id and session_id fields are required")
	}
	if req.EstimatedCost < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "estimated_cost must be non-negative")
	}

	decision := s.registry.Breaker().CheckBeforeCall(
		c.Request().Context(), req.TaskID, req.SessionID, req.Agent, req.EstimatedCost)
	admissionDecisions.WithLabelValues(strconv.FormatBool(decision.Allowed)).Inc()

	return c.JSON(http.StatusOK, decision)
}

// handleRecord books one completed call and returns the anomaly
// checks.
func (s *Server) handleRecord(c echo.Context) error {
	var req RecordRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid record request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.TaskID == "" || req.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "task_id and session_id fields are required")
	}
	if req.Cost < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "cost must be non-negative")
	}

	outcome := s.registry.Breaker().RecordCall(
		c.Request().Context(), req.TaskID, req.SessionID, req.Agent,
		req.Response, req.Cost, req.IsEscalation)

	return c.JSON(http.StatusOK, outcome)
}

// handleBreakerReset is the privileged recovery path.
func (s *Server) handleBreakerReset(c echo.Context) error {
	state := s.registry.Breaker().ResetBreaker()
	return c.JSON(http.StatusOK, ResetResponse{State: state})
}

// handleTaskStop purges a task's breaker bookkeeping.
func (s *Server) handleTaskStop(c echo.Context) error {
	taskID := c.Param("id")

	var req StopRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid stop request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Reason == "" {
		req.Reason = "operator request"
	}

	stopped := s.registry.Breaker().ForceStop(taskID, req.Reason)
	if !stopped {
		return echo.NewHTTPError(http.StatusNotFound, "unknown task")
	}
	return c.JSON(http.StatusOK, StopResponse{TaskID: taskID, Stopped: true})
}

// handleStatus reports breaker and escalator state.
func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{
		Breaker:   s.registry.Breaker().Status(),
		Escalator: s.registry.Escalator().Stats(),
	})
}
