// Package telemetry wires OpenTelemetry tracing and metrics for the
// governance plane, exporting over OTLP gRPC.
//
// Telemetry is optional and degrades gracefully: when disabled or
// when an exporter cannot be built, the process keeps running with
// no-op providers instead of failing admission control.
package telemetry
