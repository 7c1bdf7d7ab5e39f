package breaker

import (
	"fmt"
	"time"
)

// IdleTimeout marks a task as stale in status reports when no call
// has been recorded for this long. Advisory only: nothing reaps
// stale tasks, force-stop remains the sole cleanup path.
const IdleTimeout = 300 * time.Second

// responseHistorySize bounds the per-task response history kept for
// repetition detection (the last 3 are compared, one slot of slack).
const responseHistorySize = 4

// agentHistorySize bounds the per-task agent sequence kept for
// ping-pong detection.
const agentHistorySize = 8

// responsePrefixLen is how many characters of each response are
// retained for similarity comparison.
const responsePrefixLen = 500

// Limits holds the admission ceilings.
type Limits struct {
	// MaxCallsPerTask caps calls per task.
	MaxCallsPerTask int `koanf:"max_calls_per_task"`
	// MaxEscalationsPerTask caps escalated retries per task.
	MaxEscalationsPerTask int `koanf:"max_escalations_per_task"`
	// MaxCostPerTask caps spend per task, in dollars.
	MaxCostPerTask float64 `koanf:"max_cost_per_task"`
	// MaxCostPerSession caps spend per session, in dollars.
	MaxCostPerSession float64 `koanf:"max_cost_per_session"`
	// DailyBudget caps spend per local calendar day across all
	// sessions. Crossing it trips the breaker OPEN.
	DailyBudget float64 `koanf:"daily_budget"`
	// RepetitionThreshold is the similarity ratio at or above which
	// a recorded response counts as a repeat of a recent one.
	RepetitionThreshold float64 `koanf:"repetition_threshold"`
}

// DefaultLimits returns the production ceilings.
func DefaultLimits() Limits {
	return Limits{
		MaxCallsPerTask:       10,
		MaxEscalationsPerTask: 3,
		MaxCostPerTask:        0.50,
		MaxCostPerSession:     5.00,
		DailyBudget:           10.00,
		RepetitionThreshold:   0.85,
	}
}

// Validate checks the limits for sanity.
func (l Limits) Validate() error {
	if l.MaxCallsPerTask <= 0 {
		return fmt.Errorf("max_calls_per_task must be positive, got %d", l.MaxCallsPerTask)
	}
	if l.MaxEscalationsPerTask <= 0 {
		return fmt.Errorf("max_escalations_per_task must be positive, got %d", l.MaxEscalationsPerTask)
	}
	if l.MaxCostPerTask <= 0 {
		return fmt.Errorf("max_cost_per_task must be positive, got %f", l.MaxCostPerTask)
	}
	if l.MaxCostPerSession < l.MaxCostPerTask {
		return fmt.Errorf("max_cost_per_session (%f) must be at least max_cost_per_task (%f)", l.MaxCostPerSession, l.MaxCostPerTask)
	}
	if l.DailyBudget < l.MaxCostPerSession {
		return fmt.Errorf("daily_budget (%f) must be at least max_cost_per_session (%f)", l.DailyBudget, l.MaxCostPerSession)
	}
	if l.RepetitionThreshold <= 0 || l.RepetitionThreshold > 1 {
		return fmt.Errorf("repetition_threshold must be in (0, 1], got %f", l.RepetitionThreshold)
	}
	return nil
}
