// Package logging builds the process logger and carries correlation
// identifiers (session, task, agent) through context so every log
// line from a governed call can be tied back to its task.
package logging
