package hookchain

import (
	"context"

	"github.com/fyrsmithlabs/agentgov/internal/policy"
	"github.com/fyrsmithlabs/agentgov/internal/static"
)

// Stage identifies one lifecycle phase.
type Stage string

const (
	StagePreRun     Stage = "PRE_RUN"
	StagePreReview  Stage = "PRE_REVIEW"
	StagePostReview Stage = "POST_REVIEW"
	StageStop       Stage = "STOP"
)

// Stages is the fixed total order.
var Stages = []Stage{StagePreRun, StagePreReview, StagePostReview, StageStop}

// Valid reports whether the stage is one of the four known phases.
func (s Stage) Valid() bool {
	switch s {
	case StagePreRun, StagePreReview, StagePostReview, StageStop:
		return true
	}
	return false
}

// Review verdicts carried on the context between stages.
const (
	VerdictPass         = "PASS"
	VerdictReject       = "REJECT"
	VerdictStaticReject = "STATIC_REJECT"
)

// HookContext is the mutable state threaded through a task's hooks.
// Hooks read and write it directly; the chain itself only reads.
type HookContext struct {
	SessionID    string
	TaskID       string
	Agent        string
	WorkerOutput string

	// Set by PRE_RUN.
	Policy    *policy.Document
	RulesHash string

	// Set by PRE_REVIEW.
	Violations []static.Violation

	// Set by the review (static gate or LLM reviewer).
	Verdict     string
	AbortReason string

	// Set by STOP.
	TerminationCode Code
	Recoverable     bool
}

// HookResult is what one hook execution produced. Failures and
// aborts are values, never panics across the hook boundary.
type HookResult struct {
	Success     bool
	ShouldAbort bool
	Reason      string
	Err         error
}

// Hook is one lifecycle participant.
type Hook interface {
	// Name identifies the hook in results and logs.
	Name() string
	// Stage is the phase the hook belongs to.
	Stage() Stage
	// Validate reports whether the hook applies to this context;
	// false skips it without running.
	Validate(hctx *HookContext) bool
	// Run executes the hook. Mutate hctx to pass state forward.
	Run(ctx context.Context, hctx *HookContext) HookResult
}

// StageResult summarizes one stage execution.
type StageResult struct {
	Stage Stage
	// Completed is true when every applicable hook ran without an
	// abort or a stage-halting failure.
	Completed bool
	Executed  []string
	Skipped   []string
	// AbortHook names the hook that requested the abort, if any.
	AbortHook   string
	AbortReason string
	// FailedHook names the hook whose failure halted the stage (or,
	// for STOP, the first failure observed while continuing).
	FailedHook string
	Err        error
}
