package hookchain

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

const instrumentationName = "github.com/fyrsmithlabs/agentgov/internal/hookchain"

// ErrorHandler observes hook errors (failures and recovered panics).
// Handlers must not block; they run inline on the calling goroutine.
type ErrorHandler func(hookName string, stage Stage, err error)

// Chain holds the per-stage hook registries and runs them in
// registration order.
type Chain struct {
	logger *zap.Logger

	tracer      trace.Tracer
	meter       metric.Meter
	hookCounter metric.Int64Counter

	mu             sync.Mutex
	hooks          map[Stage][]Hook
	abortOnFailure map[Stage]bool
	errorHandlers  []ErrorHandler
}

// New creates an empty chain. A nil logger uses a no-op.
// Failures halt PRE_RUN, PRE_REVIEW, and POST_REVIEW by default;
// STOP always runs every hook so cleanup and audit complete.
func New(logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Chain{
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
		hooks:  make(map[Stage][]Hook),
		abortOnFailure: map[Stage]bool{
			StagePreRun:     true,
			StagePreReview:  true,
			StagePostReview: true,
			StageStop:       false,
		},
	}
	c.initMetrics()
	return c
}

func (c *Chain) initMetrics() {
	var err error
	c.hookCounter, err = c.meter.Int64Counter(
		"agentgov.hookchain.executions_total",
		metric.WithDescription("Hook executions by stage and outcome"),
		metric.WithUnit("{execution}"),
	)
	if err != nil {
		c.logger.Warn("failed to create hook counter", zap.Error(err))
	}
}

// Register adds a hook to its declared stage.
func (c *Chain) Register(hook Hook) error {
	stage := hook.Stage()
	if !stage.Valid() {
		return fmt.Errorf("hook %s declares unknown stage %q", hook.Name(), stage)
	}

	c.mu.Lock()
	c.hooks[stage] = append(c.hooks[stage], hook)
	c.mu.Unlock()

	c.logger.Debug("hook registered",
		zap.String("hook", hook.Name()),
		zap.String("stage", string(stage)),
	)
	return nil
}

// OnError registers a handler for hook failures and recovered panics.
func (c *Chain) OnError(handler ErrorHandler) {
	c.mu.Lock()
	c.errorHandlers = append(c.errorHandlers, handler)
	c.mu.Unlock()
}

// SetAbortOnFailure overrides the stage's default failure behavior.
func (c *Chain) SetAbortOnFailure(stage Stage, abort bool) {
	c.mu.Lock()
	c.abortOnFailure[stage] = abort
	c.mu.Unlock()
}

// RunStage executes one stage's hooks in registration order. An
// aborting hook halts the stage immediately; later stages are the
// caller's decision, they are never auto-run here.
func (c *Chain) RunStage(ctx context.Context, stage Stage, hctx *HookContext) StageResult {
	ctx, span := c.tracer.Start(ctx, "hookchain.run_stage",
		trace.WithAttributes(attribute.String("stage", string(stage))),
	)
	defer span.End()

	c.mu.Lock()
	hooks := make([]Hook, len(c.hooks[stage]))
	copy(hooks, c.hooks[stage])
	abortOnFailure := c.abortOnFailure[stage]
	handlers := make([]ErrorHandler, len(c.errorHandlers))
	copy(handlers, c.errorHandlers)
	c.mu.Unlock()

	result := StageResult{Stage: stage, Completed: true}

	for _, hook := range hooks {
		if !hook.Validate(hctx) {
			result.Skipped = append(result.Skipped, hook.Name())
			c.logger.Debug("hook skipped",
				zap.String("hook", hook.Name()),
				zap.String("stage", string(stage)),
				zap.String("task_id", hctx.TaskID),
			)
			continue
		}

		hookResult := c.runHook(ctx, hook, hctx)
		result.Executed = append(result.Executed, hook.Name())
		c.countExecution(ctx, stage, hook, hookResult)

		if hookResult.Err != nil {
			for _, handler := range handlers {
				handler(hook.Name(), stage, hookResult.Err)
			}
		}

		if hookResult.ShouldAbort {
			result.Completed = false
			result.AbortHook = hook.Name()
			result.AbortReason = hookResult.Reason
			c.logger.Warn("stage aborted by hook",
				zap.String("hook", hook.Name()),
				zap.String("stage", string(stage)),
				zap.String("task_id", hctx.TaskID),
				zap.String("reason", hookResult.Reason),
			)
			return result
		}

		if !hookResult.Success {
			if result.FailedHook == "" {
				result.FailedHook = hook.Name()
				result.Err = hookResult.Err
			}
			c.logger.Error("hook failed",
				zap.String("hook", hook.Name()),
				zap.String("stage", string(stage)),
				zap.String("task_id", hctx.TaskID),
				zap.Error(hookResult.Err),
			)
			if abortOnFailure {
				result.Completed = false
				return result
			}
		}
	}
	return result
}

// runHook executes one hook, converting a panic into a failure
// result so nothing escapes the hook boundary.
func (c *Chain) runHook(ctx context.Context, hook Hook, hctx *HookContext) (result HookResult) {
	defer func() {
		if r := recover(); r != nil {
			result = HookResult{
				Success: false,
				Err:     fmt.Errorf("hook %s panicked: %v", hook.Name(), r),
			}
		}
	}()

	ctx, span := c.tracer.Start(ctx, "hookchain.run_hook",
		trace.WithAttributes(attribute.String("hook", hook.Name())),
	)
	defer span.End()

	return hook.Run(ctx, hctx)
}

func (c *Chain) countExecution(ctx context.Context, stage Stage, hook Hook, result HookResult) {
	if c.hookCounter == nil {
		return
	}
	outcome := "success"
	switch {
	case result.ShouldAbort:
		outcome = "abort"
	case !result.Success:
		outcome = "failure"
	}
	c.hookCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", string(stage)),
		attribute.String("hook", hook.Name()),
		attribute.String("outcome", outcome),
	))
}
