package hookchain

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentgov/internal/audit"
	"github.com/fyrsmithlabs/agentgov/internal/policy"
	"github.com/fyrsmithlabs/agentgov/internal/static"
)

// PreRunHook resolves the session policy and stamps its rules hash
// onto the context. Missing policy files never fail the stage: the
// store falls back to dev-default and then the built-in document.
type PreRunHook struct {
	store  *policy.Store
	logger *zap.Logger
}

// NewPreRunHook creates the PRE_RUN policy loader.
func NewPreRunHook(store *policy.Store, logger *zap.Logger) *PreRunHook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreRunHook{store: store, logger: logger}
}

func (h *PreRunHook) Name() string { return "PreRunHook" }
func (h *PreRunHook) Stage() Stage { return StagePreRun }

// Validate always applies; even an empty session resolves a policy.
func (h *PreRunHook) Validate(*HookContext) bool { return true }

func (h *PreRunHook) Run(_ context.Context, hctx *HookContext) HookResult {
	doc, hash, err := h.store.Load(hctx.SessionID)
	if err != nil {
		// Only a present-but-invalid policy lands here; absent files
		// already fell through to a default inside the store.
		return HookResult{
			Success: false,
			Err:     fmt.Errorf("loading policy for session %s: %w", hctx.SessionID, err),
		}
	}

	hctx.Policy = doc
	hctx.RulesHash = hash
	h.logger.Debug("policy resolved",
		zap.String("session_id", hctx.SessionID),
		zap.String("policy_session", doc.SessionID),
		zap.String("rules_hash", hash),
	)
	return HookResult{Success: true}
}

// PreReviewHook runs the static gate against the worker output so a
// paid review is never spent on obviously violating code. The policy
// document decides which checks run and whether secret findings
// block or merely get recorded.
type PreReviewHook struct {
	checker *static.Checker
	logger  *zap.Logger
}

// NewPreReviewHook creates the PRE_REVIEW static gate.
func NewPreReviewHook(checker *static.Checker, logger *zap.Logger) *PreReviewHook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreReviewHook{checker: checker, logger: logger}
}

func (h *PreReviewHook) Name() string { return "PreReviewHook" }
func (h *PreReviewHook) Stage() Stage { return StagePreReview }

// Validate skips the gate when there is no output to check.
func (h *PreReviewHook) Validate(hctx *HookContext) bool {
	return hctx.WorkerOutput != ""
}

func (h *PreReviewHook) Run(_ context.Context, hctx *HookContext) HookResult {
	toggles := h.checker.DefaultToggles()
	secretsMode := policy.SecretsForbid
	if hctx.Policy != nil {
		code := hctx.Policy.Rules.Code
		secretsMode = code.SecretsHardcoding
		toggles = static.Toggles{
			Secrets:       code.SecretsHardcoding != policy.SecretsAllow,
			SleepInLoop:   code.ForbidSleepInAPILoop,
			UnboundedLoop: code.ForbidInfiniteLoop,
		}
	}

	violations := h.checker.CheckWith(hctx.WorkerOutput, toggles)
	hctx.Violations = violations

	blocking := 0
	for _, v := range violations {
		if v.Key == static.KeySecretsHardcoding && secretsMode == policy.SecretsWarn {
			h.logger.Warn("secret finding recorded but not blocking",
				zap.String("task_id", hctx.TaskID),
				zap.String("detail", v.Detail),
				zap.Int("line", v.Line),
			)
			continue
		}
		blocking++
	}

	if blocking > 0 {
		hctx.Verdict = VerdictStaticReject
		reason := fmt.Sprintf("STATIC_REJECT: %d violation(s) found", blocking)
		hctx.AbortReason = reason
		return HookResult{Success: true, ShouldAbort: true, Reason: reason}
	}
	return HookResult{Success: true}
}

// PostReviewHook writes the final verdict to the audit trail with a
// named event so the outcome survives independent of process logs.
type PostReviewHook struct {
	recorder *audit.Recorder
	logger   *zap.Logger
}

// NewPostReviewHook creates the POST_REVIEW audit writer.
func NewPostReviewHook(recorder *audit.Recorder, logger *zap.Logger) *PostReviewHook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostReviewHook{recorder: recorder, logger: logger}
}

func (h *PostReviewHook) Name() string { return "PostReviewHook" }
func (h *PostReviewHook) Stage() Stage { return StagePostReview }

// Validate skips when no review happened at all.
func (h *PostReviewHook) Validate(hctx *HookContext) bool {
	return hctx.Verdict != ""
}

func (h *PostReviewHook) Run(ctx context.Context, hctx *HookContext) HookResult {
	var kind string
	switch hctx.Verdict {
	case VerdictStaticReject:
		kind = "STATIC_REJECT"
	case VerdictPass:
		kind = "REVIEW_PASS"
	case VerdictReject:
		kind = "REVIEW_REJECT"
	default:
		return HookResult{
			Success: false,
			Err:     fmt.Errorf("unknown review verdict %q", hctx.Verdict),
		}
	}

	payload := map[string]interface{}{
		"verdict":    hctx.Verdict,
		"agent":      hctx.Agent,
		"rules_hash": hctx.RulesHash,
		"violations": len(hctx.Violations),
	}
	if hctx.AbortReason != "" {
		payload["reason"] = hctx.AbortReason
	}

	h.recorder.Record(ctx, kind, hctx.SessionID, hctx.TaskID, payload)
	return HookResult{Success: true}
}

// StopHook records the task's terminal code with its derived event
// name and recoverability. Runs in the STOP stage, which never
// aborts on failure: the terminal record must be attempted even
// after a broken run.
type StopHook struct {
	recorder *audit.Recorder
	logger   *zap.Logger
}

// NewStopHook creates the STOP terminal recorder.
func NewStopHook(recorder *audit.Recorder, logger *zap.Logger) *StopHook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StopHook{recorder: recorder, logger: logger}
}

func (h *StopHook) Name() string { return "StopHook" }
func (h *StopHook) Stage() Stage { return StageStop }

func (h *StopHook) Validate(*HookContext) bool { return true }

func (h *StopHook) Run(ctx context.Context, hctx *HookContext) HookResult {
	code := hctx.TerminationCode
	if !code.Valid() {
		h.logger.Warn("unrecognized termination code, recording UNKNOWN_ERROR",
			zap.String("task_id", hctx.TaskID),
			zap.String("code", string(code)),
		)
		code = CodeUnknownError
		hctx.TerminationCode = code
	}
	hctx.Recoverable = code.Recoverable()

	h.recorder.Record(ctx, code.EventName(), hctx.SessionID, hctx.TaskID, map[string]interface{}{
		"code":        string(code),
		"recoverable": hctx.Recoverable,
		"agent":       hctx.Agent,
		"reason":      hctx.AbortReason,
	})

	h.logger.Info("task terminated",
		zap.String("task_id", hctx.TaskID),
		zap.String("session_id", hctx.SessionID),
		zap.String("code", string(code)),
		zap.Bool("recoverable", hctx.Recoverable),
	)
	return HookResult{Success: true}
}
