package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records health-monitoring metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordProbe records one probe outcome for a dependency.
	RecordProbe(ctx context.Context, dependency, status string, latency time.Duration, err error)

	// RecordUnhealthyCycle records a cycle whose overall status was not healthy.
	RecordUnhealthyCycle(ctx context.Context, status string)

	// RecordRecovery records one recovery attempt for a dependency.
	RecordRecovery(ctx context.Context, dependency, strategy string, err error)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	probeTotal       metric.Int64Counter
	probeFailures    metric.Int64Counter
	probeDuration    metric.Float64Histogram
	unhealthyCycles  metric.Int64Counter
	recoveryAttempts metric.Int64Counter
	recoveryFailures metric.Int64Counter
}

// NewMetrics creates health instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	probeTotal, err := meter.Int64Counter(
		"health.probe.total",
		metric.WithDescription("Total number of dependency probes"),
		metric.WithUnit("{probe}"),
	)
	if err != nil {
		return nil, err
	}

	probeFailures, err := meter.Int64Counter(
		"health.probe.failures",
		metric.WithDescription("Probes that ended degraded or down"),
		metric.WithUnit("{probe}"),
	)
	if err != nil {
		return nil, err
	}

	probeDuration, err := meter.Float64Histogram(
		"health.probe.duration_ms",
		metric.WithDescription("Probe latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	unhealthyCycles, err := meter.Int64Counter(
		"health.cycle.unhealthy",
		metric.WithDescription("Probe cycles whose overall status was degraded or down"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return nil, err
	}

	recoveryAttempts, err := meter.Int64Counter(
		"health.recovery.attempts",
		metric.WithDescription("Recovery attempts for down dependencies"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	recoveryFailures, err := meter.Int64Counter(
		"health.recovery.failures",
		metric.WithDescription("Recovery attempts that returned an error"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		probeTotal:       probeTotal,
		probeFailures:    probeFailures,
		probeDuration:    probeDuration,
		unhealthyCycles:  unhealthyCycles,
		recoveryAttempts: recoveryAttempts,
		recoveryFailures: recoveryFailures,
	}, nil
}

func (m *metricsImpl) RecordProbe(ctx context.Context, dependency, status string, latency time.Duration, err error) {
	opt := metric.WithAttributes(
		attribute.String("dependency", dependency),
		attribute.String("status", status),
	)

	m.probeTotal.Add(ctx, 1, opt)
	if status != "healthy" {
		m.probeFailures.Add(ctx, 1, opt)
	}
	m.probeDuration.Record(ctx, float64(latency.Milliseconds()),
		metric.WithAttributes(attribute.String("dependency", dependency)))
}

func (m *metricsImpl) RecordUnhealthyCycle(ctx context.Context, status string) {
	m.unhealthyCycles.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (m *metricsImpl) RecordRecovery(ctx context.Context, dependency, strategy string, err error) {
	opt := metric.WithAttributes(
		attribute.String("dependency", dependency),
		attribute.String("strategy", strategy),
	)

	m.recoveryAttempts.Add(ctx, 1, opt)
	if err != nil {
		m.recoveryFailures.Add(ctx, 1, opt)
	}
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordProbe(context.Context, string, string, time.Duration, error) {}
func (noopMetrics) RecordUnhealthyCycle(context.Context, string)                     {}
func (noopMetrics) RecordRecovery(context.Context, string, string, error)            {}
