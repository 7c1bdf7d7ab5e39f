// Package breaker provides admission control for agent invocations.
//
// Every paid call passes CheckBeforeCall first: per-task call and
// escalation ceilings, per-task/session cost ceilings, the shared
// daily budget, and agent ping-pong detection, evaluated in a strict
// order where the first hard violation wins. Crossing the daily
// budget trips the breaker OPEN; only a privileged reset (through
// HALF_OPEN) recovers it. RecordCall feeds completed calls back in
// for repetition and ping-pong anomaly detection.
package breaker
