// Package audit records governance decisions as structured events.
//
// Events are appended as JSON Lines to a local file and optionally
// published to NATS for downstream consumers. Audit writes are
// best-effort: a failed sink logs a warning and never blocks the
// decision that produced the event.
package audit
