// Package hookchain runs the governed task lifecycle as ordered hook
// stages: PRE_RUN loads policy, PRE_REVIEW runs the static gate,
// POST_REVIEW audits the verdict, STOP records the terminal code.
//
// Abort semantics are deliberate: an aborting hook halts its own
// stage and nothing more — the caller decides which later stages
// still run (POST_REVIEW usually should, so the abort is audited).
// Hook panics are caught at the boundary and converted to failure
// results; nothing propagates out of the chain as a raw panic.
package hookchain
