// Package policy provides typed session policy documents for the
// governance plane.
//
// Policies are JSON (JSONC tolerated) documents loaded per session with
// a three-tier fallback: named policy, then "dev-default", then a
// built-in default. The canonical sorted-key JSON of a document is
// SHA-256 hashed into a rules hash used for audit correlation.
package policy
