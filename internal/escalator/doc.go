// Package escalator deduplicates repeated agent failures and decides the
// next recovery action.
//
// Failures are fingerprinted into signatures (error type, missing fields,
// profile, prompt prefix hash). Repeats of the same signature climb a
// monotonic ladder: self-repair, then a single role switch, then hard
// fail. ClearHistory is the only way back down.
package escalator
