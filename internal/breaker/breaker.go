package breaker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/agentgov/internal/breaker"

// State is the breaker state machine: CLOSED admits, OPEN blocks
// everything until a privileged reset, HALF_OPEN admits probes after
// a reset until a recorded call decides which way to settle.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// Decision is the admission verdict for one prospective call.
type Decision struct {
	Allowed  bool     `json:"allowed"`
	Reason   string   `json:"reason,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	State    State    `json:"state"`
}

// Outcome reports the anomaly checks run by RecordCall.
type Outcome struct {
	// RepetitionAlert fires when the response is at least
	// RepetitionThreshold similar to one of the last three.
	RepetitionAlert bool    `json:"repetition_alert"`
	Similarity      float64 `json:"similarity"`
	// PingPong fires when the updated agent sequence ends in an
	// A-B-A-B alternation.
	PingPong bool  `json:"ping_pong"`
	State    State `json:"state"`
}

// Warning thresholds, as fractions of the corresponding limit.
const (
	taskCallWarnFraction    = 0.7
	sessionCostWarnFraction = 0.5
	dailyBudgetWarnFraction = 0.8
)

// Breaker is the admission controller. One coarse mutex guards all
// state; call volume is bounded by LLM latency, not lock contention.
type Breaker struct {
	limits Limits
	logger *zap.Logger

	tracer          trace.Tracer
	meter           metric.Meter
	denialCounter   metric.Int64Counter
	callCounter     metric.Int64Counter
	anomalyCounter  metric.Int64Counter
	costHistogram   metric.Float64Histogram
	tripCounter     metric.Int64Counter

	mu        sync.Mutex
	state     State
	tasks     map[string]*TaskMetrics
	sessions  map[string]*SessionMetrics
	dailyCost float64
	dailyDate string // local calendar date the daily counter belongs to

	now func() time.Time // stubbed in tests
}

// New creates a Breaker with the given limits. Zero limits use
// DefaultLimits.
func New(limits Limits, logger *zap.Logger) (*Breaker, error) {
	if limits == (Limits{}) {
		limits = DefaultLimits()
	}
	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("invalid breaker limits: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Breaker{
		limits:   limits,
		logger:   logger,
		tracer:   otel.Tracer(instrumentationName),
		meter:    otel.Meter(instrumentationName),
		state:    StateClosed,
		tasks:    make(map[string]*TaskMetrics),
		sessions: make(map[string]*SessionMetrics),
		now:      time.Now,
	}
	b.dailyDate = b.localDate()
	b.initMetrics()
	return b, nil
}

// MustNew creates a Breaker, panicking on error.
func MustNew(limits Limits, logger *zap.Logger) *Breaker {
	b, err := New(limits, logger)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Breaker) initMetrics() {
	var err error

	b.denialCounter, err = b.meter.Int64Counter(
		"agentgov.breaker.denials_total",
		metric.WithDescription("Admission denials by reason"),
		metric.WithUnit("{denial}"),
	)
	if err != nil {
		b.logger.Warn("failed to create denial counter", zap.Error(err))
	}

	b.callCounter, err = b.meter.Int64Counter(
		"agentgov.breaker.calls_total",
		metric.WithDescription("Recorded agent calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		b.logger.Warn("failed to create call counter", zap.Error(err))
	}

	b.anomalyCounter, err = b.meter.Int64Counter(
		"agentgov.breaker.anomalies_total",
		metric.WithDescription("Repetition and ping-pong anomalies"),
		metric.WithUnit("{anomaly}"),
	)
	if err != nil {
		b.logger.Warn("failed to create anomaly counter", zap.Error(err))
	}

	b.costHistogram, err = b.meter.Float64Histogram(
		"agentgov.breaker.call_cost_usd",
		metric.WithDescription("Cost per recorded call"),
		metric.WithUnit("USD"),
	)
	if err != nil {
		b.logger.Warn("failed to create cost histogram", zap.Error(err))
	}

	b.tripCounter, err = b.meter.Int64Counter(
		"agentgov.breaker.trips_total",
		metric.WithDescription("Transitions to the OPEN state"),
		metric.WithUnit("{trip}"),
	)
	if err != nil {
		b.logger.Warn("failed to create trip counter", zap.Error(err))
	}
}

func (b *Breaker) localDate() string {
	return b.now().Format("2006-01-02")
}

// rollDayLocked resets the daily counter at local-date rollover.
// Caller holds the mutex.
func (b *Breaker) rollDayLocked() {
	today := b.localDate()
	if today != b.dailyDate {
		b.logger.Info("daily budget rolled over",
			zap.String("from", b.dailyDate),
			zap.String("to", today),
			zap.Float64("spent", b.dailyCost),
		)
		b.dailyDate = today
		b.dailyCost = 0
	}
}

// CheckBeforeCall decides whether one prospective call may proceed.
// Checks run in a strict order and the first hard violation wins:
// OPEN state, task call ceiling, task escalation ceiling, task cost,
// session cost, daily budget (crossing trips the breaker OPEN), then
// ping-pong. Soft warnings at 70% of task calls, 50% of session
// cost, and 80% of the daily budget never block.
func (b *Breaker) CheckBeforeCall(ctx context.Context, taskID, sessionID, agent string, estimatedCost float64) Decision {
	ctx, span := b.tracer.Start(ctx, "breaker.check_before_call")
	defer span.End()

	b.mu.Lock()
	decision := b.checkLocked(taskID, sessionID, estimatedCost)
	b.mu.Unlock()

	span.SetAttributes(
		attribute.String("task_id", taskID),
		attribute.String("session_id", sessionID),
		attribute.String("agent", agent),
		attribute.Bool("allowed", decision.Allowed),
		attribute.String("state", string(decision.State)),
	)

	if !decision.Allowed {
		span.SetAttributes(attribute.String("reason", decision.Reason))
		if b.denialCounter != nil {
			b.denialCounter.Add(ctx, 1, metric.WithAttributes(
				attribute.String("state", string(decision.State)),
			))
		}
		b.logger.Warn("call denied",
			zap.String("task_id", taskID),
			zap.String("session_id", sessionID),
			zap.String("agent", agent),
			zap.String("reason", decision.Reason),
			zap.String("state", string(decision.State)),
		)
	}
	return decision
}

func (b *Breaker) checkLocked(taskID, sessionID string, estimatedCost float64) Decision {
	b.rollDayLocked()

	if b.state == StateOpen {
		return Decision{
			Allowed: false,
			Reason:  "circuit breaker is OPEN: daily budget exhausted, awaiting privileged reset",
			State:   StateOpen,
		}
	}

	task := b.tasks[taskID]
	session := b.sessions[sessionID]

	if task != nil && task.CallCount >= b.limits.MaxCallsPerTask {
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("task %s reached the call limit (%d)", taskID, b.limits.MaxCallsPerTask),
			State:   b.state,
		}
	}

	if task != nil && task.EscalationCount >= b.limits.MaxEscalationsPerTask {
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("task %s reached the escalation limit (%d)", taskID, b.limits.MaxEscalationsPerTask),
			State:   b.state,
		}
	}

	taskCost := 0.0
	if task != nil {
		taskCost = task.TotalCost
	}
	if taskCost+estimatedCost > b.limits.MaxCostPerTask {
		return Decision{
			Allowed: false,
			Reason: fmt.Sprintf("task %s would exceed the cost limit ($%.2f spent + $%.2f estimated > $%.2f)",
				taskID, taskCost, estimatedCost, b.limits.MaxCostPerTask),
			State: b.state,
		}
	}

	sessionCost := 0.0
	if session != nil {
		sessionCost = session.TotalCost
	}
	if sessionCost+estimatedCost > b.limits.MaxCostPerSession {
		return Decision{
			Allowed: false,
			Reason: fmt.Sprintf("session %s would exceed the cost limit ($%.2f spent + $%.2f estimated > $%.2f)",
				sessionID, sessionCost, estimatedCost, b.limits.MaxCostPerSession),
			State: b.state,
		}
	}

	if b.dailyCost+estimatedCost > b.limits.DailyBudget {
		b.tripLocked("daily budget")
		return Decision{
			Allowed: false,
			Reason: fmt.Sprintf("daily budget exhausted ($%.2f spent + $%.2f estimated > $%.2f), breaker tripped OPEN",
				b.dailyCost, estimatedCost, b.limits.DailyBudget),
			State: StateOpen,
		}
	}

	if task != nil && isPingPong(task.agents) {
		seq := task.agents[len(task.agents)-4:]
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("agent ping-pong detected on task %s: %s and %s are alternating", taskID, seq[0], seq[1]),
			State:   b.state,
		}
	}

	var warnings []string
	if task != nil && float64(task.CallCount) >= taskCallWarnFraction*float64(b.limits.MaxCallsPerTask) {
		warnings = append(warnings, fmt.Sprintf("task %s at %d of %d calls", taskID, task.CallCount, b.limits.MaxCallsPerTask))
	}
	if sessionCost >= sessionCostWarnFraction*b.limits.MaxCostPerSession {
		warnings = append(warnings, fmt.Sprintf("session %s at $%.2f of $%.2f", sessionID, sessionCost, b.limits.MaxCostPerSession))
	}
	if b.dailyCost >= dailyBudgetWarnFraction*b.limits.DailyBudget {
		warnings = append(warnings, fmt.Sprintf("daily spend at $%.2f of $%.2f", b.dailyCost, b.limits.DailyBudget))
	}

	return Decision{Allowed: true, Warnings: warnings, State: b.state}
}

// tripLocked flips the breaker OPEN. Caller holds the mutex.
func (b *Breaker) tripLocked(cause string) {
	if b.state == StateOpen {
		return
	}
	prev := b.state
	b.state = StateOpen
	b.logger.Error("circuit breaker tripped OPEN",
		zap.String("cause", cause),
		zap.String("previous_state", string(prev)),
		zap.Float64("daily_cost", b.dailyCost),
		zap.Float64("daily_budget", b.limits.DailyBudget),
	)
	if b.tripCounter != nil {
		b.tripCounter.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("cause", cause),
		))
	}
}

// RecordCall books a completed call: counters, cost, response and
// agent history, then the repetition and ping-pong checks. A call
// recorded while HALF_OPEN settles the state: within budget closes
// the breaker, over budget re-trips it.
func (b *Breaker) RecordCall(ctx context.Context, taskID, sessionID, agent, response string, cost float64, isEscalation bool) Outcome {
	ctx, span := b.tracer.Start(ctx, "breaker.record_call")
	defer span.End()

	b.mu.Lock()
	b.rollDayLocked()

	task, ok := b.tasks[taskID]
	if !ok {
		task = &TaskMetrics{SessionID: sessionID}
		b.tasks[taskID] = task
		session, ok := b.sessions[sessionID]
		if !ok {
			session = &SessionMetrics{}
			b.sessions[sessionID] = session
		}
		session.TaskCount++
	}
	session := b.sessions[sessionID]
	if session == nil {
		session = &SessionMetrics{TaskCount: 1}
		b.sessions[sessionID] = session
	}

	task.CallCount++
	task.TotalCost += cost
	task.LastActivity = b.now()
	if isEscalation {
		task.EscalationCount++
	}
	session.TotalCost += cost
	b.dailyCost += cost

	prefix := responsePrefix(response)
	ratio := maxSimilarity(prefix, lastN(task.responses, 3))
	task.appendResponse(prefix)
	task.appendAgent(agent)

	outcome := Outcome{
		Similarity:      ratio,
		RepetitionAlert: len(task.responses) > 1 && ratio >= b.limits.RepetitionThreshold,
		PingPong:        isPingPong(task.agents),
	}

	if b.state == StateHalfOpen {
		if b.dailyCost > b.limits.DailyBudget {
			b.tripLocked("half-open probe exceeded daily budget")
		} else {
			b.state = StateClosed
			b.logger.Info("circuit breaker closed after half-open probe",
				zap.Float64("daily_cost", b.dailyCost),
			)
		}
	}
	outcome.State = b.state
	b.mu.Unlock()

	span.SetAttributes(
		attribute.String("task_id", taskID),
		attribute.String("session_id", sessionID),
		attribute.String("agent", agent),
		attribute.Float64("cost", cost),
		attribute.Bool("repetition_alert", outcome.RepetitionAlert),
		attribute.Bool("ping_pong", outcome.PingPong),
	)

	if b.callCounter != nil {
		b.callCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("agent", agent),
			attribute.Bool("escalation", isEscalation),
		))
	}
	if b.costHistogram != nil {
		b.costHistogram.Record(ctx, cost)
	}
	if outcome.RepetitionAlert && b.anomalyCounter != nil {
		b.anomalyCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "repetition")))
	}
	if outcome.PingPong && b.anomalyCounter != nil {
		b.anomalyCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "ping_pong")))
	}

	if outcome.RepetitionAlert {
		b.logger.Warn("repeated response detected",
			zap.String("task_id", taskID),
			zap.String("agent", agent),
			zap.Float64("similarity", ratio),
		)
	}
	if outcome.PingPong {
		b.logger.Warn("agent ping-pong detected",
			zap.String("task_id", taskID),
			zap.String("agent", agent),
		)
	}
	return outcome
}

// ForceStop purges a task's bookkeeping. Advisory only: an in-flight
// external call is not interrupted. Session and daily aggregates keep
// the spend already recorded.
func (b *Breaker) ForceStop(taskID, reason string) bool {
	b.mu.Lock()
	task, ok := b.tasks[taskID]
	if ok {
		delete(b.tasks, taskID)
	}
	b.mu.Unlock()

	if !ok {
		return false
	}
	b.logger.Info("task force-stopped",
		zap.String("task_id", taskID),
		zap.String("session_id", task.SessionID),
		zap.String("reason", reason),
		zap.Int("call_count", task.CallCount),
		zap.Float64("total_cost", task.TotalCost),
	)
	return true
}

// ResetBreaker is the privileged recovery path: OPEN moves to
// HALF_OPEN, where the next recorded call decides. Resetting a
// breaker that is not OPEN is a no-op.
func (b *Breaker) ResetBreaker() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		b.state = StateHalfOpen
		b.logger.Warn("circuit breaker reset to HALF_OPEN")
	}
	return b.state
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Limits returns the configured ceilings.
func (b *Breaker) Limits() Limits {
	return b.limits
}

// Status snapshots the breaker for reporting. Tasks idle longer than
// IdleTimeout are marked stale but not removed.
func (b *Breaker) Status() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollDayLocked()

	now := b.now()
	snapshot := Snapshot{
		State:     b.state,
		DailyCost: b.dailyCost,
		DailyDate: b.dailyDate,
		Tasks:     make([]TaskStatus, 0, len(b.tasks)),
		Sessions:  make([]SessionStatus, 0, len(b.sessions)),
	}

	for id, task := range b.tasks {
		snapshot.Tasks = append(snapshot.Tasks, TaskStatus{
			TaskID:          id,
			SessionID:       task.SessionID,
			CallCount:       task.CallCount,
			EscalationCount: task.EscalationCount,
			TotalCost:       task.TotalCost,
			LastActivity:    task.LastActivity,
			Stale:           now.Sub(task.LastActivity) > IdleTimeout,
		})
	}
	for id, session := range b.sessions {
		snapshot.Sessions = append(snapshot.Sessions, SessionStatus{
			SessionID: id,
			TotalCost: session.TotalCost,
			TaskCount: session.TaskCount,
		})
	}

	sort.Slice(snapshot.Tasks, func(i, j int) bool { return snapshot.Tasks[i].TaskID < snapshot.Tasks[j].TaskID })
	sort.Slice(snapshot.Sessions, func(i, j int) bool { return snapshot.Sessions[i].SessionID < snapshot.Sessions[j].SessionID })
	return snapshot
}

// responsePrefix keeps the first 500 characters of a response,
// counting runes so multi-byte text is not split mid-character.
func responsePrefix(response string) string {
	runes := []rune(response)
	if len(runes) > responsePrefixLen {
		runes = runes[:responsePrefixLen]
	}
	return string(runes)
}

func lastN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}
