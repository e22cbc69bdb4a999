package health

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/healthmon/observe"
)

// Recoverer attempts remediation for a dependency found down.
//
// Contract:
//   - Recover is called at most once per dependency per cycle, only for down results.
//   - Recover must not panic and must return within a bounded time.
//   - Its outcome never changes the result of the cycle that triggered it.
type Recoverer interface {
	Recover(ctx context.Context, result Result)
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithInterval sets the cycle interval.
// Default: 30 seconds
func WithInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithRecoverer sets the recovery dispatcher for down dependencies.
func WithRecoverer(r Recoverer) MonitorOption {
	return func(m *Monitor) {
		m.recoverer = r
	}
}

// WithLogger sets the monitor logger.
func WithLogger(l observe.Logger) MonitorOption {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics sets the monitor metrics.
func WithMetrics(mt observe.Metrics) MonitorOption {
	return func(m *Monitor) {
		if mt != nil {
			m.metrics = mt
		}
	}
}

// WithTracer sets the monitor tracer.
func WithTracer(t observe.Tracer) MonitorOption {
	return func(m *Monitor) {
		if t != nil {
			m.tracer = t
		}
	}
}

// Monitor drives probe cycles on a fixed cadence and publishes the latest
// Snapshot. Readers never block on probes.
//
// Contract:
//   - Concurrency: all methods are safe for concurrent use.
//   - Start and Shutdown are idempotent. Shutdown is terminal for the cadence.
//   - Each cycle publishes a complete snapshot with a single pointer swap.
type Monitor struct {
	prober    *Prober
	interval  time.Duration
	recoverer Recoverer
	logger    observe.Logger
	metrics   observe.Metrics
	tracer    observe.Tracer

	current atomic.Pointer[Snapshot]
	force   singleflight.Group

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// NewMonitor creates a monitor over prober. The initial snapshot is healthy
// and empty.
func NewMonitor(prober *Prober, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		prober:   prober,
		interval: 30 * time.Second,
		logger:   observe.NopLogger(),
		metrics:  observe.NopMetrics(),
		tracer:   observe.NopTracer(),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.current.Store(&Snapshot{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
	})
	return m
}

// Start runs one cycle synchronously and then schedules a cycle every
// interval until Shutdown is called or ctx is done. Calling Start while the
// cadence is active, or after Shutdown, does nothing.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil || m.stopped {
		m.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	m.logger.Info(ctx, "health monitor started",
		observe.Field{Key: "interval", Value: m.interval.String()},
		observe.Field{Key: "dependencies", Value: m.prober.Names()},
	)

	m.runCycle(context.WithoutCancel(loopCtx))

	go m.loop(loopCtx, done)
}

// Shutdown stops the cadence and waits for the scheduling goroutine to exit.
// A cycle already in flight completes and publishes. Safe to call repeatedly.
func (m *Monitor) Shutdown() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.logger.Info(context.Background(), "health monitor stopped")
}

// Running reports whether the cadence is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// ForceCheck runs a cycle outside the cadence and returns the snapshot it
// published. Concurrent callers share one in-flight cycle, so a caller that
// joins late may get a cycle that began before its call. The regular
// schedule is not affected.
func (m *Monitor) ForceCheck(ctx context.Context) Snapshot {
	v, _, _ := m.force.Do("force", func() (any, error) {
		return m.runCycle(context.WithoutCancel(ctx)), nil
	})
	return v.(Snapshot).clone()
}

// Status returns a copy of the current snapshot.
func (m *Monitor) Status() Snapshot {
	return m.current.Load().clone()
}

// IsHealthy reports whether the current overall status is healthy.
func (m *Monitor) IsHealthy() bool {
	return m.current.Load().Status == StatusHealthy
}

// ServiceHealth returns the current result for a dependency.
// Returns ErrDependencyNotFound if the current snapshot has no such entry.
func (m *Monitor) ServiceHealth(name string) (Result, error) {
	r, ok := m.current.Load().Result(name)
	if !ok {
		return Result{}, ErrDependencyNotFound
	}
	return r, nil
}

// Interval returns the cycle interval.
func (m *Monitor) Interval() time.Duration {
	return m.interval
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runCycle(context.WithoutCancel(ctx))
		}
	}
}

// runCycle probes, dispatches recovery for down results, and publishes.
func (m *Monitor) runCycle(ctx context.Context) Snapshot {
	ctx, span := m.tracer.StartCycle(ctx)

	results := m.prober.ProbeAll(ctx)
	m.recover(ctx, results)

	snap := m.publish(results)

	m.tracer.EndSpan(span, snap.Status.String(), nil)

	if snap.Status != StatusHealthy {
		m.metrics.RecordUnhealthyCycle(ctx, snap.Status.String())
		m.logger.Warn(ctx, "health check cycle not healthy", cycleFields(snap)...)
	}

	return snap
}

// publish swaps in the snapshot for results. The timestamp never moves
// backwards across publishes, even when cycles overlap.
func (m *Monitor) publish(results []Result) Snapshot {
	for {
		prev := m.current.Load()
		at := time.Now()
		if at.Before(prev.Timestamp) {
			at = prev.Timestamp
		}
		snap := aggregate(m.prober.names, results, at)
		if m.current.CompareAndSwap(prev, &snap) {
			return snap
		}
	}
}

func (m *Monitor) recover(ctx context.Context, results []Result) {
	if m.recoverer == nil {
		return
	}

	var wg sync.WaitGroup
	for _, r := range results {
		if r.Status != StatusDown {
			continue
		}
		wg.Add(1)
		go func(r Result) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					m.logger.Error(ctx, "recovery panicked",
						observe.Field{Key: "dependency", Value: r.Name},
						observe.Field{Key: "panic", Value: p},
					)
				}
			}()
			m.recoverer.Recover(ctx, r)
		}(r)
	}
	wg.Wait()
}

func cycleFields(snap Snapshot) []observe.Field {
	failing := make(map[string]string)
	for _, r := range snap.Results {
		if r.Status == StatusHealthy {
			continue
		}
		failing[r.Name] = r.Status.String()
	}
	return []observe.Field{
		{Key: "status", Value: snap.Status.String()},
		{Key: "failing", Value: failing},
	}
}
