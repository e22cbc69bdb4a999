package observe

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestObserverContract_Noops(t *testing.T) {
	cfg := Config{
		ServiceName: "observe-test",
		Tracing:     TracingConfig{Enabled: false, Exporter: "none"},
		Metrics:     MetricsConfig{Enabled: false, Exporter: "none"},
		Logging:     LoggingConfig{Enabled: false, Level: "info"},
	}

	obs, err := NewObserver(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewObserver failed: %v", err)
	}

	if obs.Tracer() == nil {
		t.Fatalf("expected non-nil tracer")
	}
	if obs.Meter() == nil {
		t.Fatalf("expected non-nil meter")
	}
	if obs.Logger() == nil {
		t.Fatalf("expected non-nil logger")
	}
	if err := obs.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown of no-op observer failed: %v", err)
	}
}

func TestLoggerContract_NopWith(t *testing.T) {
	logger := NopLogger()
	if logger.With(Field{Key: "k", Value: "v"}) == nil {
		t.Fatalf("With should return non-nil logger")
	}
	logger.Error(context.Background(), "ignored", Field{Key: "error", Value: errors.New("x")})
}

func TestMetricsContract_NoPanic(t *testing.T) {
	m := NopMetrics()
	ctx := context.Background()
	m.RecordProbe(ctx, "db", "down", time.Second, errors.New("x"))
	m.RecordUnhealthyCycle(ctx, "down")
	m.RecordRecovery(ctx, "db", "none", nil)
}

func TestInstrumentsContract_Nop(t *testing.T) {
	inst := NopInstruments()
	if inst.Tracer == nil || inst.Metrics == nil || inst.Logger == nil {
		t.Fatalf("NopInstruments has nil members: %+v", inst)
	}
}
