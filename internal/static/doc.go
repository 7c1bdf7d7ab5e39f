// Package static provides the zero-LLM-cost policy gate over agent
// output.
//
// Three independently toggleable checks: hardcoded secrets (regex rule
// set), sleep calls inside loops, and unbounded loops. A paid review is
// never spent on output that trips this gate. The loop checks are token
// heuristics and fail open on input they cannot follow; the secret scan
// always runs on the raw text.
package static
