package hookchain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHook is a scriptable hook for chain mechanics tests.
type fakeHook struct {
	name     string
	stage    Stage
	applies  bool
	result   HookResult
	panicMsg string
	ran      bool
}

func (f *fakeHook) Name() string               { return f.name }
func (f *fakeHook) Stage() Stage               { return f.stage }
func (f *fakeHook) Validate(*HookContext) bool { return f.applies }

func (f *fakeHook) Run(context.Context, *HookContext) HookResult {
	f.ran = true
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.result
}

func okHook(name string, stage Stage) *fakeHook {
	return &fakeHook{name: name, stage: stage, applies: true, result: HookResult{Success: true}}
}

func TestRunStage_ExecutesInRegistrationOrder(t *testing.T) {
	chain := New(nil)
	first := okHook("first", StagePreRun)
	second := okHook("second", StagePreRun)
	require.NoError(t, chain.Register(first))
	require.NoError(t, chain.Register(second))

	result := chain.RunStage(context.Background(), StagePreRun, &HookContext{})

	assert.True(t, result.Completed)
	assert.Equal(t, []string{"first", "second"}, result.Executed)
}

func TestRunStage_AbortHaltsStage(t *testing.T) {
	chain := New(nil)
	aborting := &fakeHook{
		name: "gate", stage: StagePreReview, applies: true,
		result: HookResult{Success: true, ShouldAbort: true, Reason: "STATIC_REJECT: 2 violation(s) found"},
	}
	after := okHook("after", StagePreReview)
	require.NoError(t, chain.Register(okHook("before", StagePreReview)))
	require.NoError(t, chain.Register(aborting))
	require.NoError(t, chain.Register(after))

	result := chain.RunStage(context.Background(), StagePreReview, &HookContext{})

	assert.False(t, result.Completed)
	assert.Equal(t, "gate", result.AbortHook)
	assert.Equal(t, "STATIC_REJECT: 2 violation(s) found", result.AbortReason)
	assert.False(t, after.ran, "hooks after the abort must not execute")
	assert.Equal(t, []string{"before", "gate"}, result.Executed)
}

func TestRunStage_FailureHaltsDefaultStages(t *testing.T) {
	chain := New(nil)
	failing := &fakeHook{
		name: "broken", stage: StagePreRun, applies: true,
		result: HookResult{Success: false, Err: errors.New("boom")},
	}
	after := okHook("after", StagePreRun)
	require.NoError(t, chain.Register(failing))
	require.NoError(t, chain.Register(after))

	result := chain.RunStage(context.Background(), StagePreRun, &HookContext{})

	assert.False(t, result.Completed)
	assert.Equal(t, "broken", result.FailedHook)
	assert.EqualError(t, result.Err, "boom")
	assert.False(t, after.ran)
}

func TestRunStage_StopRunsEveryHookDespiteFailure(t *testing.T) {
	chain := New(nil)
	failing := &fakeHook{
		name: "broken-cleanup", stage: StageStop, applies: true,
		result: HookResult{Success: false, Err: errors.New("cleanup failed")},
	}
	after := okHook("final-audit", StageStop)
	require.NoError(t, chain.Register(failing))
	require.NoError(t, chain.Register(after))

	result := chain.RunStage(context.Background(), StageStop, &HookContext{})

	assert.True(t, result.Completed, "STOP completes even with failures")
	assert.True(t, after.ran, "later STOP hooks still run")
	assert.Equal(t, "broken-cleanup", result.FailedHook)
	assert.EqualError(t, result.Err, "cleanup failed")
}

func TestRunStage_PanicBecomesFailure(t *testing.T) {
	chain := New(nil)
	panicking := &fakeHook{name: "explosive", stage: StagePreRun, applies: true, panicMsg: "kaboom"}
	require.NoError(t, chain.Register(panicking))

	var result StageResult
	require.NotPanics(t, func() {
		result = chain.RunStage(context.Background(), StagePreRun, &HookContext{})
	})

	assert.False(t, result.Completed)
	assert.Equal(t, "explosive", result.FailedHook)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "kaboom")
}

func TestRunStage_ValidateSkipsHook(t *testing.T) {
	chain := New(nil)
	inapplicable := &fakeHook{name: "skipped", stage: StagePreReview, applies: false}
	applicable := okHook("ran", StagePreReview)
	require.NoError(t, chain.Register(inapplicable))
	require.NoError(t, chain.Register(applicable))

	result := chain.RunStage(context.Background(), StagePreReview, &HookContext{})

	assert.True(t, result.Completed)
	assert.False(t, inapplicable.ran)
	assert.Equal(t, []string{"skipped"}, result.Skipped)
	assert.Equal(t, []string{"ran"}, result.Executed)
}

func TestRunStage_ErrorHandlersObserveFailures(t *testing.T) {
	chain := New(nil)
	failing := &fakeHook{
		name: "broken", stage: StagePreRun, applies: true,
		result: HookResult{Success: false, Err: errors.New("boom")},
	}
	require.NoError(t, chain.Register(failing))

	var gotHook string
	var gotStage Stage
	var gotErr error
	chain.OnError(func(hookName string, stage Stage, err error) {
		gotHook, gotStage, gotErr = hookName, stage, err
	})

	chain.RunStage(context.Background(), StagePreRun, &HookContext{})

	assert.Equal(t, "broken", gotHook)
	assert.Equal(t, StagePreRun, gotStage)
	assert.EqualError(t, gotErr, "boom")
}

func TestRegister_RejectsUnknownStage(t *testing.T) {
	chain := New(nil)
	err := chain.Register(&fakeHook{name: "lost", stage: Stage("MID_FLIGHT")})
	assert.Error(t, err)
}

func TestSetAbortOnFailure_Override(t *testing.T) {
	chain := New(nil)
	chain.SetAbortOnFailure(StagePreReview, false)

	failing := &fakeHook{
		name: "soft-fail", stage: StagePreReview, applies: true,
		result: HookResult{Success: false, Err: errors.New("tolerated")},
	}
	after := okHook("after", StagePreReview)
	require.NoError(t, chain.Register(failing))
	require.NoError(t, chain.Register(after))

	result := chain.RunStage(context.Background(), StagePreReview, &HookContext{})

	assert.True(t, result.Completed)
	assert.True(t, after.ran)
	assert.Equal(t, "soft-fail", result.FailedHook)
}

func TestCodes_RecoverabilityAndEventNames(t *testing.T) {
	recoverable := []Code{
		CodeStaticReject, CodeLLMReject, CodeLLMError,
		CodeTokenLimit, CodeTimeLimit, CodeMaxRounds,
	}
	terminal := []Code{
		CodeCompleted, CodeConstitutionViolation, CodeCircuitBreaker,
		CodeCostLimit, CodeUserAbort, CodeUserCancel,
		CodeSystemError, CodeUnknownError,
	}

	for _, code := range recoverable {
		assert.True(t, code.Recoverable(), "%s should be recoverable", code)
		assert.True(t, code.Valid())
	}
	for _, code := range terminal {
		assert.False(t, code.Recoverable(), "%s should be terminal", code)
		assert.True(t, code.Valid())
	}

	assert.Equal(t, "task_completed", CodeCompleted.EventName())
	assert.Equal(t, "task_circuit_breaker", CodeCircuitBreaker.EventName())
	assert.False(t, Code("MADE_UP").Valid())
}
