package escalator

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/agentgov/internal/escalator"

// Level is the escalation ladder. Levels are totally ordered:
// LevelSelfRepair < LevelRoleSwitch < LevelHardFail.
type Level int

const (
	// LevelNone is the zero value; RecordFailure never returns it.
	LevelNone Level = iota

	// LevelSelfRepair retries with the same profile and an
	// error-annotated prompt.
	LevelSelfRepair

	// LevelRoleSwitch hands the task to a different profile, once.
	LevelRoleSwitch

	// LevelHardFail is terminal for the signature.
	LevelHardFail
)

func (l Level) String() string {
	switch l {
	case LevelSelfRepair:
		return "SELF_REPAIR"
	case LevelRoleSwitch:
		return "ROLE_SWITCH"
	case LevelHardFail:
		return "HARD_FAIL"
	default:
		return "NONE"
	}
}

// ActionType is the machine-readable decision kind.
type ActionType string

const (
	ActionRetry  ActionType = "retry"
	ActionSwitch ActionType = "switch"
	ActionAbort  ActionType = "abort"
)

// Abort error types surfaced to the caller.
const (
	ErrTypeHardFail        = "ESCALATION_HARD_FAIL"
	ErrTypeSwitchExhausted = "ROLE_SWITCH_EXHAUSTED"
)

// Action is the escalator's decision for one failure.
type Action struct {
	Type           ActionType `json:"action"`
	ErrorType      string     `json:"error_type,omitempty"`
	NewProfile     string     `json:"new_profile,omitempty"`
	ModifiedPrompt string     `json:"modified_prompt,omitempty"`
	Reason         string     `json:"reason,omitempty"`
}

// Config configures the escalator.
type Config struct {
	// MaxSameSignature is the threshold N: the Nth repeat of a
	// signature triggers a role switch, anything past it hard-fails.
	MaxSameSignature int
}

// DefaultConfig returns the standard threshold of 2.
func DefaultConfig() *Config {
	return &Config{MaxSameSignature: 2}
}

// failureRecord tracks one signature's history.
type failureRecord struct {
	sig   Signature
	count int
	level Level
}

// Escalator tracks failure signatures and chooses retry, role switch,
// or abort. Safe for concurrent use; all state sits behind one mutex
// because call volume is bounded by LLM latency, not lock contention.
type Escalator struct {
	config *Config
	logger *zap.Logger

	tracer          trace.Tracer
	meter           metric.Meter
	failureCounter  metric.Int64Counter
	hardFailCounter metric.Int64Counter

	mu         sync.Mutex
	failures   map[string]*failureRecord
	switchUsed map[string]bool // keyed by profile
}

// New creates an Escalator. A nil config uses DefaultConfig.
func New(cfg *Config, logger *zap.Logger) *Escalator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxSameSignature < 1 {
		cfg.MaxSameSignature = DefaultConfig().MaxSameSignature
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Escalator{
		config:     cfg,
		logger:     logger,
		tracer:     otel.Tracer(instrumentationName),
		meter:      otel.Meter(instrumentationName),
		failures:   make(map[string]*failureRecord),
		switchUsed: make(map[string]bool),
	}
	e.initMetrics()
	return e
}

func (e *Escalator) initMetrics() {
	var err error

	e.failureCounter, err = e.meter.Int64Counter(
		"agentgov.escalator.failures_total",
		metric.WithDescription("Recorded failures by escalation level"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		e.logger.Warn("failed to create failure counter", zap.Error(err))
	}

	e.hardFailCounter, err = e.meter.Int64Counter(
		"agentgov.escalator.hard_fails_total",
		metric.WithDescription("Signatures that reached the terminal HARD_FAIL level"),
		metric.WithUnit("{signature}"),
	)
	if err != nil {
		e.logger.Warn("failed to create hard fail counter", zap.Error(err))
	}
}

// RecordFailure counts one more occurrence of the signature and returns
// the escalation level for it. For a fixed signature the returned level
// never decreases, and LevelHardFail is terminal.
func (e *Escalator) RecordFailure(ctx context.Context, sig Signature) Level {
	ctx, span := e.tracer.Start(ctx, "escalator.record_failure")
	defer span.End()

	e.mu.Lock()
	key := sig.Key()
	rec, ok := e.failures[key]
	if !ok {
		rec = &failureRecord{sig: sig}
		e.failures[key] = rec
	}
	rec.count++

	level := levelForCount(rec.count, e.config.MaxSameSignature)
	// Monotonicity guard: never step below a level already returned.
	if level < rec.level {
		level = rec.level
	}
	rec.level = level
	count := rec.count
	e.mu.Unlock()

	span.SetAttributes(
		attribute.String("profile", sig.Profile),
		attribute.String("error_type", sig.ErrorType),
		attribute.Int("count", count),
		attribute.String("level", level.String()),
	)

	if e.failureCounter != nil {
		e.failureCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("level", level.String()),
			attribute.String("profile", sig.Profile),
		))
	}
	if level == LevelHardFail && count == e.config.MaxSameSignature+1 && e.hardFailCounter != nil {
		e.hardFailCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("profile", sig.Profile),
		))
	}

	e.logger.Debug("recorded failure",
		zap.String("profile", sig.Profile),
		zap.String("error_type", sig.ErrorType),
		zap.Int("count", count),
		zap.String("level", level.String()),
	)

	return level
}

// levelForCount maps a repeat count onto the ladder. With threshold N:
// count < N self-repairs, count == N switches roles, count > N fails.
func levelForCount(count, threshold int) Level {
	switch {
	case count < threshold:
		return LevelSelfRepair
	case count == threshold:
		return LevelRoleSwitch
	default:
		return LevelHardFail
	}
}

// GetEscalationAction turns a level into a concrete next step.
//
// A role switch is granted at most once per profile; a second request
// for the same profile aborts with ROLE_SWITCH_EXHAUSTED until
// ClearHistory releases it.
func (e *Escalator) GetEscalationAction(ctx context.Context, level Level, currentProfile, originalPrompt, errorMessage string) Action {
	_, span := e.tracer.Start(ctx, "escalator.get_escalation_action")
	defer span.End()
	span.SetAttributes(
		attribute.String("level", level.String()),
		attribute.String("profile", currentProfile),
	)

	switch level {
	case LevelHardFail:
		return Action{
			Type:      ActionAbort,
			ErrorType: ErrTypeHardFail,
			Reason:    fmt.Sprintf("signature failed more than %d times for profile %q", e.config.MaxSameSignature, currentProfile),
		}

	case LevelRoleSwitch:
		e.mu.Lock()
		if e.switchUsed[currentProfile] {
			e.mu.Unlock()
			e.logger.Warn("role switch exhausted", zap.String("profile", currentProfile))
			return Action{
				Type:      ActionAbort,
				ErrorType: ErrTypeSwitchExhausted,
				Reason:    fmt.Sprintf("profile %q already used its one role switch", currentProfile),
			}
		}
		e.switchUsed[currentProfile] = true
		e.mu.Unlock()

		target := switchTarget(currentProfile)
		e.logger.Info("switching role",
			zap.String("from", currentProfile),
			zap.String("to", target),
		)
		return Action{
			Type:           ActionSwitch,
			NewProfile:     target,
			ModifiedPrompt: taggedSwitchPrompt(currentProfile, target, originalPrompt, errorMessage),
		}

	default: // LevelSelfRepair and the zero value both retry in place.
		return Action{
			Type:           ActionRetry,
			ModifiedPrompt: annotatedRetryPrompt(originalPrompt, errorMessage),
		}
	}
}

// switchTarget maps a profile to its one-shot replacement. Unknown
// profiles fall through to the reviewer, the most conservative role.
func switchTarget(profile string) string {
	switch profile {
	case "coder":
		return "reviewer"
	case "reviewer":
		return "coder"
	case "qa":
		return "coder"
	case "council":
		return "reviewer"
	default:
		return "reviewer"
	}
}

func taggedSwitchPrompt(from, to, prompt, errorMessage string) string {
	return fmt.Sprintf("[role-switch %s→%s] %s\n\nThe %s profile failed repeatedly with: %s", from, to, prompt, from, errorMessage)
}

func annotatedRetryPrompt(prompt, errorMessage string) string {
	return fmt.Sprintf("%s\n\nPrevious attempt failed:\n%s\nFix the cause above and try again.", prompt, errorMessage)
}

// ClearHistory resets failure counters and the used-switch flag for one
// profile, or for everything when profile is empty. This is the only
// recovery path from HARD_FAIL and an exhausted role switch.
func (e *Escalator) ClearHistory(profile string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if profile == "" {
		e.failures = make(map[string]*failureRecord)
		e.switchUsed = make(map[string]bool)
		e.logger.Info("cleared all failure history")
		return
	}

	for key, rec := range e.failures {
		if rec.sig.Profile == profile {
			delete(e.failures, key)
		}
	}
	delete(e.switchUsed, profile)
	e.logger.Info("cleared failure history", zap.String("profile", profile))
}

// FailureCount reports how many times a signature has been recorded.
func (e *Escalator) FailureCount(sig Signature) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rec, ok := e.failures[sig.Key()]; ok {
		return rec.count
	}
	return 0
}

// SwitchUsed reports whether the profile has spent its role switch.
func (e *Escalator) SwitchUsed(profile string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.switchUsed[profile]
}

// Snapshot summarizes tracked state for status reporting.
type Snapshot struct {
	TrackedSignatures int      `json:"tracked_signatures"`
	HardFailed        int      `json:"hard_failed"`
	SwitchedProfiles  []string `json:"switched_profiles,omitempty"`
}

// Stats returns a point-in-time summary.
func (e *Escalator) Stats() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{TrackedSignatures: len(e.failures)}
	for _, rec := range e.failures {
		if rec.level == LevelHardFail {
			snap.HardFailed++
		}
	}
	for profile, used := range e.switchUsed {
		if used {
			snap.SwitchedProfiles = append(snap.SwitchedProfiles, profile)
		}
	}
	return snap
}
