// Package observe provides observability primitives for health monitoring.
//
// It wires OpenTelemetry tracing and metrics, selects an exporter by name,
// and exposes a small structured Logger backed by zap. Consumers pass the
// resulting Instruments to the health monitor and recovery dispatcher.
package observe
