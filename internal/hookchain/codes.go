package hookchain

import "strings"

// Code is a task termination code recorded by the STOP stage.
type Code string

const (
	CodeCompleted             Code = "COMPLETED"
	CodeStaticReject          Code = "STATIC_REJECT"
	CodeLLMReject             Code = "LLM_REJECT"
	CodeConstitutionViolation Code = "CONSTITUTION_VIOLATION"
	CodeCircuitBreaker        Code = "CIRCUIT_BREAKER"
	CodeTokenLimit            Code = "TOKEN_LIMIT"
	CodeCostLimit             Code = "COST_LIMIT"
	CodeTimeLimit             Code = "TIME_LIMIT"
	CodeMaxRounds             Code = "MAX_ROUNDS"
	CodeUserAbort             Code = "USER_ABORT"
	CodeUserCancel            Code = "USER_CANCEL"
	CodeLLMError              Code = "LLM_ERROR"
	CodeSystemError           Code = "SYSTEM_ERROR"
	CodeUnknownError          Code = "UNKNOWN_ERROR"
)

// Valid reports whether the code is one of the fixed set.
func (c Code) Valid() bool {
	switch c {
	case CodeCompleted, CodeStaticReject, CodeLLMReject,
		CodeConstitutionViolation, CodeCircuitBreaker, CodeTokenLimit,
		CodeCostLimit, CodeTimeLimit, CodeMaxRounds, CodeUserAbort,
		CodeUserCancel, CodeLLMError, CodeSystemError, CodeUnknownError:
		return true
	}
	return false
}

// Recoverable reports whether the same task may be resubmitted after
// this termination. Budget, policy, and user terminations are final;
// transient rejections and limits are not.
func (c Code) Recoverable() bool {
	switch c {
	case CodeStaticReject, CodeLLMReject, CodeLLMError,
		CodeTokenLimit, CodeTimeLimit, CodeMaxRounds:
		return true
	}
	return false
}

// EventName derives the audit event name for the code, e.g.
// COMPLETED becomes "task_completed".
func (c Code) EventName() string {
	return "task_" + strings.ToLower(string(c))
}
