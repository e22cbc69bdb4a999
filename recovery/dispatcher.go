package recovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/healthmon/health"
	"github.com/jonwraymond/healthmon/observe"
)

// DispatcherConfig configures the dispatcher.
type DispatcherConfig struct {
	// Timeout bounds a single recovery attempt.
	// Default: 10 seconds
	Timeout time.Duration

	// MaxConcurrent is the maximum number of attempts running at once.
	// Attempts beyond the limit wait for a free slot until their context
	// is done. A slot is freed when Dispatch returns, so a strategy that
	// ignores cancellation may keep running after its slot is reused.
	// Default: 4
	MaxConcurrent int
}

// Dispatcher routes down results to the strategy registered for the
// dependency. It is the boundary where every recovery failure is swallowed.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: Recover never panics and never propagates a failure.
type Dispatcher struct {
	registry *Registry
	config   DispatcherConfig
	inst     observe.Instruments
	sem      chan struct{}

	mu       sync.Mutex
	active   int
	rejected int64
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry, config DispatcherConfig, inst observe.Instruments) *Dispatcher {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}
	nop := observe.NopInstruments()
	if inst.Logger == nil {
		inst.Logger = nop.Logger
	}
	if inst.Metrics == nil {
		inst.Metrics = nop.Metrics
	}
	if inst.Tracer == nil {
		inst.Tracer = nop.Tracer
	}
	if registry == nil {
		registry = NewRegistry()
	}

	return &Dispatcher{
		registry: registry,
		config:   config,
		inst:     inst,
		sem:      make(chan struct{}, config.MaxConcurrent),
	}
}

// Recover implements health.Recoverer.
func (d *Dispatcher) Recover(ctx context.Context, result health.Result) {
	_ = d.Dispatch(ctx, result)
}

// Dispatch runs the strategy for result.Name and reports its outcome.
// Every outcome is logged here.
func (d *Dispatcher) Dispatch(ctx context.Context, result health.Result) error {
	logger := d.inst.Logger.With(observe.Field{Key: "dependency", Value: result.Name})

	strategy, ok := d.registry.Lookup(result.Name)
	if !ok {
		logger.Warn(ctx, "no recovery strategy available")
		return ErrNoStrategy
	}

	if err := d.acquire(ctx); err != nil {
		logger.Warn(ctx, "recovery skipped",
			observe.Field{Key: "strategy", Value: strategy.Name()},
			observe.Field{Key: "error", Value: err},
		)
		return err
	}
	defer d.release()

	ctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	ctx, span := d.inst.Tracer.StartRecovery(ctx, result.Name, strategy.Name())
	start := time.Now()
	err := d.run(ctx, strategy, result)
	d.inst.Tracer.EndSpan(span, "", err)
	d.inst.Metrics.RecordRecovery(ctx, result.Name, strategy.Name(), err)

	fields := []observe.Field{
		{Key: "strategy", Value: strategy.Name()},
		{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
	}
	switch {
	case err == nil:
		logger.Info(ctx, "recovery attempt completed", fields...)
	case errors.Is(err, ErrCircuitOpen):
		logger.Debug(ctx, "recovery suppressed", append(fields, observe.Field{Key: "error", Value: err})...)
	default:
		logger.Error(ctx, "recovery attempt failed", append(fields, observe.Field{Key: "error", Value: err})...)
	}
	return err
}

// Stats returns the number of running attempts and the number abandoned
// while waiting for a slot.
func (d *Dispatcher) Stats() (active int, rejected int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active, d.rejected
}

func (d *Dispatcher) run(ctx context.Context, s Strategy, result health.Result) error {
	done := make(chan error, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fmt.Errorf("%w: %v", ErrPanicked, p)
			}
		}()
		done <- s.Recover(ctx, result)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrTimeout, d.config.Timeout)
		}
		return ctx.Err()
	}
}

// acquire blocks until a slot is free or ctx is done.
func (d *Dispatcher) acquire(ctx context.Context) error {
	select {
	case d.sem <- struct{}{}:
		d.mu.Lock()
		d.active++
		d.mu.Unlock()
		return nil
	case <-ctx.Done():
		d.mu.Lock()
		d.rejected++
		d.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrBusy, ctx.Err())
	}
}

func (d *Dispatcher) release() {
	<-d.sem
	d.mu.Lock()
	d.active--
	d.mu.Unlock()
}

var _ health.Recoverer = (*Dispatcher)(nil)
