package escalator

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSignature() Signature {
	return ComputeSignature("MISSING_FIELDS", []string{"symbol", "qty"}, "coder", "implement the order router")
}

func TestComputeSignature_FieldOrderIndependent(t *testing.T) {
	a := ComputeSignature("MISSING_FIELDS", []string{"qty", "symbol"}, "coder", "prompt")
	b := ComputeSignature("MISSING_FIELDS", []string{"symbol", "qty"}, "coder", "prompt")

	assert.Equal(t, a, b)
	assert.Equal(t, a.Key(), b.Key())
}

func TestComputeSignature_VaryingAnyFieldChangesKey(t *testing.T) {
	base := testSignature()

	variants := []Signature{
		ComputeSignature("PARSE_ERROR", []string{"symbol", "qty"}, "coder", "implement the order router"),
		ComputeSignature("MISSING_FIELDS", []string{"symbol"}, "coder", "implement the order router"),
		ComputeSignature("MISSING_FIELDS", []string{"symbol", "qty"}, "qa", "implement the order router"),
		ComputeSignature("MISSING_FIELDS", []string{"symbol", "qty"}, "coder", "a completely different prompt"),
	}

	for i, v := range variants {
		assert.NotEqual(t, base.Key(), v.Key(), "variant %d should differ", i)
	}
}

func TestComputeSignature_ToleratesTrailingPromptVariance(t *testing.T) {
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'x'
	}
	a := ComputeSignature("E", nil, "coder", string(long)+" run 1")
	b := ComputeSignature("E", nil, "coder", string(long)+" run 2")

	assert.Equal(t, a.Key(), b.Key(), "variance past 500 chars must not change the signature")
}

func TestRecordFailure_LadderSequence(t *testing.T) {
	e := New(DefaultConfig(), nil)
	sig := testSignature()
	ctx := context.Background()

	levels := []Level{
		e.RecordFailure(ctx, sig),
		e.RecordFailure(ctx, sig),
		e.RecordFailure(ctx, sig),
		e.RecordFailure(ctx, sig),
	}

	assert.Equal(t, []Level{LevelSelfRepair, LevelRoleSwitch, LevelHardFail, LevelHardFail}, levels)
}

func TestRecordFailure_Monotonic(t *testing.T) {
	e := New(&Config{MaxSameSignature: 3}, nil)
	sig := testSignature()
	ctx := context.Background()

	prev := LevelNone
	for i := 0; i < 10; i++ {
		level := e.RecordFailure(ctx, sig)
		assert.GreaterOrEqual(t, level, prev, "level must never decrease")
		prev = level
	}
	assert.Equal(t, LevelHardFail, prev)
}

func TestRecordFailure_DistinctSignaturesIndependent(t *testing.T) {
	e := New(DefaultConfig(), nil)
	ctx := context.Background()

	a := ComputeSignature("E1", nil, "coder", "p")
	b := ComputeSignature("E2", nil, "coder", "p")

	e.RecordFailure(ctx, a)
	e.RecordFailure(ctx, a)

	assert.Equal(t, LevelSelfRepair, e.RecordFailure(ctx, b), "a fresh signature starts at the bottom")
}

func TestGetEscalationAction_HardFailAlwaysAborts(t *testing.T) {
	e := New(DefaultConfig(), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		act := e.GetEscalationAction(ctx, LevelHardFail, "coder", "prompt", "boom")
		assert.Equal(t, ActionAbort, act.Type)
		assert.Equal(t, ErrTypeHardFail, act.ErrorType)
	}
}

func TestGetEscalationAction_SelfRepair(t *testing.T) {
	e := New(DefaultConfig(), nil)

	act := e.GetEscalationAction(context.Background(), LevelSelfRepair, "coder", "original prompt", "missing field qty")

	require.Equal(t, ActionRetry, act.Type)
	assert.Empty(t, act.NewProfile)
	assert.Contains(t, act.ModifiedPrompt, "original prompt")
	assert.Contains(t, act.ModifiedPrompt, "missing field qty")
}

func TestGetEscalationAction_RoleSwitchOnce(t *testing.T) {
	e := New(DefaultConfig(), nil)
	ctx := context.Background()

	first := e.GetEscalationAction(ctx, LevelRoleSwitch, "coder", "prompt", "err")
	require.Equal(t, ActionSwitch, first.Type)
	assert.Equal(t, "reviewer", first.NewProfile)
	assert.Contains(t, first.ModifiedPrompt, "prompt")
	assert.True(t, e.SwitchUsed("coder"))

	second := e.GetEscalationAction(ctx, LevelRoleSwitch, "coder", "prompt", "err")
	assert.Equal(t, ActionAbort, second.Type)
	assert.Equal(t, ErrTypeSwitchExhausted, second.ErrorType)
}

func TestGetEscalationAction_SwitchTable(t *testing.T) {
	tests := []struct {
		profile string
		want    string
	}{
		{"coder", "reviewer"},
		{"reviewer", "coder"},
		{"qa", "coder"},
		{"council", "reviewer"},
		{"strategist", "reviewer"},
	}

	for _, tt := range tests {
		t.Run(tt.profile, func(t *testing.T) {
			e := New(DefaultConfig(), nil)
			act := e.GetEscalationAction(context.Background(), LevelRoleSwitch, tt.profile, "p", "e")
			require.Equal(t, ActionSwitch, act.Type)
			assert.Equal(t, tt.want, act.NewProfile)
		})
	}
}

func TestClearHistory_ReleasesSwitchAndCounters(t *testing.T) {
	e := New(DefaultConfig(), nil)
	ctx := context.Background()
	sig := testSignature()

	e.RecordFailure(ctx, sig)
	e.RecordFailure(ctx, sig)
	e.GetEscalationAction(ctx, LevelRoleSwitch, "coder", "p", "e")
	require.True(t, e.SwitchUsed("coder"))

	e.ClearHistory("coder")

	assert.Zero(t, e.FailureCount(sig))
	assert.False(t, e.SwitchUsed("coder"))
	assert.Equal(t, LevelSelfRepair, e.RecordFailure(ctx, sig), "ladder restarts after clear")
}

func TestClearHistory_ScopedToProfile(t *testing.T) {
	e := New(DefaultConfig(), nil)
	ctx := context.Background()

	coderSig := ComputeSignature("E", nil, "coder", "p")
	qaSig := ComputeSignature("E", nil, "qa", "p")
	e.RecordFailure(ctx, coderSig)
	e.RecordFailure(ctx, qaSig)

	e.ClearHistory("coder")

	assert.Zero(t, e.FailureCount(coderSig))
	assert.Equal(t, 1, e.FailureCount(qaSig))
}

func TestEndToEnd_ThreeIdenticalFailures(t *testing.T) {
	e := New(&Config{MaxSameSignature: 2}, nil)
	ctx := context.Background()
	sig := ComputeSignature("SCHEMA_MISMATCH", []string{"price"}, "coder", "write the fills parser")

	got := []Level{
		e.RecordFailure(ctx, sig),
		e.RecordFailure(ctx, sig),
		e.RecordFailure(ctx, sig),
	}
	require.Equal(t, []Level{LevelSelfRepair, LevelRoleSwitch, LevelHardFail}, got)

	fourth := e.RecordFailure(ctx, sig)
	assert.Equal(t, LevelHardFail, fourth)

	act := e.GetEscalationAction(ctx, fourth, "coder", "write the fills parser", "schema mismatch")
	assert.Equal(t, ActionAbort, act.Type)
	assert.Equal(t, ErrTypeHardFail, act.ErrorType)
}

func TestEscalator_ConcurrentRecording(t *testing.T) {
	e := New(&Config{MaxSameSignature: 50}, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sig := ComputeSignature("E", nil, fmt.Sprintf("profile-%d", n%3), "p")
			for j := 0; j < 20; j++ {
				e.RecordFailure(ctx, sig)
			}
		}(i)
	}
	wg.Wait()

	total := 0
	for i := 0; i < 3; i++ {
		sig := ComputeSignature("E", nil, fmt.Sprintf("profile-%d", i), "p")
		total += e.FailureCount(sig)
	}
	assert.Equal(t, 200, total)
}
