package static

// Violation keys. Stable identifiers: they appear in audit events and
// policy documents.
const (
	KeySecretsHardcoding = "secrets_hardcoding"
	KeySleepInLoop       = "sleep_in_loop"
	KeyUnboundedLoop     = "unbounded_loop"
)

// Violation is one detected policy violation.
type Violation struct {
	// Key identifies the check that fired.
	Key string `json:"key"`

	// Detail explains what was found, human-readable.
	Detail string `json:"detail"`

	// Evidence is a short excerpt around the finding. Secret values
	// are windowed, never reproduced in full.
	Evidence string `json:"evidence"`

	// Line is the 1-indexed line of the finding.
	Line int `json:"line"`
}
