package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Span names.
const (
	SpanCycle       = "health.cycle"
	SpanProbePrefix = "health.probe."
	SpanRecovery    = "health.recovery"
)

// Tracer wraps OpenTelemetry tracing for probe cycles.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartCycle starts the span covering a whole probe cycle.
	StartCycle(ctx context.Context) (context.Context, trace.Span)

	// StartProbe starts a span for probing one dependency.
	StartProbe(ctx context.Context, dependency string) (context.Context, trace.Span)

	// StartRecovery starts a span for a recovery attempt.
	StartRecovery(ctx context.Context, dependency, strategy string) (context.Context, trace.Span)

	// EndSpan ends the span, recording the status and any error.
	EndSpan(span trace.Span, status string, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartCycle(ctx context.Context) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanCycle, trace.WithSpanKind(trace.SpanKindInternal))
}

func (t *tracerImpl) StartProbe(ctx context.Context, dependency string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanProbePrefix+dependency,
		trace.WithAttributes(attribute.String("dependency", dependency)),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

func (t *tracerImpl) StartRecovery(ctx context.Context, dependency, strategy string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanRecovery,
		trace.WithAttributes(
			attribute.String("dependency", dependency),
			attribute.String("strategy", strategy),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan ends the span. Errors set an error status; an unhealthy status
// without an error is recorded only as an attribute.
func (t *tracerImpl) EndSpan(span trace.Span, status string, err error) {
	if status != "" {
		span.SetAttributes(attribute.String("health.status", status))
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// NopTracer returns a Tracer whose spans are discarded.
func NopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartCycle(ctx context.Context) (context.Context, trace.Span) {
	return t.noop.Start(ctx, SpanCycle)
}

func (t *noopTracer) StartProbe(ctx context.Context, dependency string) (context.Context, trace.Span) {
	return t.noop.Start(ctx, SpanProbePrefix+dependency)
}

func (t *noopTracer) StartRecovery(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return t.noop.Start(ctx, SpanRecovery)
}

func (t *noopTracer) EndSpan(span trace.Span, _ string, _ error) {
	span.End()
}
