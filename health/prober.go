package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/healthmon/observe"
)

// ProberConfig configures a Prober.
type ProberConfig struct {
	// Timeout is the hard limit for a single probe.
	// Default: 5 seconds
	Timeout time.Duration

	// MaxConcurrent caps how many probes run at once.
	// Default: 0 (all probes in parallel)
	MaxConcurrent int
}

// Prober runs one probe per registered dependency. The dependency list is
// fixed at construction.
type Prober struct {
	config   ProberConfig
	checkers []Checker
	names    []string

	metrics observe.Metrics
	tracer  observe.Tracer
}

// ProberOption configures optional Prober instrumentation.
type ProberOption func(*Prober)

// WithProbeMetrics records per-probe metrics.
func WithProbeMetrics(m observe.Metrics) ProberOption {
	return func(p *Prober) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithProbeTracer records a span per probe.
func WithProbeTracer(t observe.Tracer) ProberOption {
	return func(p *Prober) {
		if t != nil {
			p.tracer = t
		}
	}
}

// NewProber creates a prober for checkers. Names must be unique and non-empty.
func NewProber(config ProberConfig, checkers []Checker, opts ...ProberOption) (*Prober, error) {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	p := &Prober{
		config:   config,
		checkers: make([]Checker, 0, len(checkers)),
		names:    make([]string, 0, len(checkers)),
		metrics:  observe.NopMetrics(),
		tracer:   observe.NopTracer(),
	}

	seen := make(map[string]struct{}, len(checkers))
	for _, c := range checkers {
		name := c.Name()
		if name == "" {
			return nil, fmt.Errorf("%w: empty name", ErrDuplicateDependency)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateDependency, name)
		}
		seen[name] = struct{}{}
		p.checkers = append(p.checkers, c)
		p.names = append(p.names, name)
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Names returns the registered dependency names in registration order.
func (p *Prober) Names() []string {
	names := make([]string, len(p.names))
	copy(names, p.names)
	return names
}

// Config returns the prober configuration.
func (p *Prober) Config() ProberConfig {
	return p.config
}

// ProbeAll probes every dependency and returns one result each, in
// registration order. It never fails: every fault becomes a down result.
func (p *Prober) ProbeAll(ctx context.Context) []Result {
	results := make([]Result, len(p.checkers))

	var g errgroup.Group
	if p.config.MaxConcurrent > 0 {
		g.SetLimit(p.config.MaxConcurrent)
	}

	for i, checker := range p.checkers {
		g.Go(func() error {
			results[i] = p.Probe(ctx, checker)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Probe runs a single checker under the probe timeout.
func (p *Prober) Probe(ctx context.Context, checker Checker) Result {
	name := checker.Name()
	ctx, span := p.tracer.StartProbe(ctx, name)

	result := p.runCheck(ctx, checker)
	result.Name = name

	p.tracer.EndSpan(span, result.Status.String(), result.Error)
	p.metrics.RecordProbe(ctx, name, result.Status.String(), result.Latency, result.Error)

	return result
}

func (p *Prober) runCheck(ctx context.Context, checker Checker) Result {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	start := time.Now()
	resultCh := make(chan Result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- Down("check panicked", fmt.Errorf("%w: %v", ErrCheckPanicked, r))
			}
		}()
		resultCh <- checker.Check(ctx)
	}()

	var result Result
	select {
	case result = <-resultCh:
	case <-ctx.Done():
		result = Result{
			Status:  StatusDown,
			Message: "check timed out",
			Error:   fmt.Errorf("%w after %s", ErrCheckTimeout, p.config.Timeout),
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			result.Message = "check cancelled"
			result.Error = ctx.Err()
		}
	}

	if result.Latency == 0 {
		result.Latency = time.Since(start)
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = start
	}
	return result
}
