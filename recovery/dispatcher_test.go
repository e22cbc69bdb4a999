package recovery

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jonwraymond/healthmon/health"
	"github.com/jonwraymond/healthmon/observe"
)

func newObservedInstruments() (observe.Instruments, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	inst := observe.NopInstruments()
	inst.Logger = observe.NewZapLogger(zap.New(core))
	return inst, logs
}

func TestNewDispatcher_Defaults(t *testing.T) {
	d := NewDispatcher(nil, DispatcherConfig{}, observe.Instruments{})

	if d.config.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", d.config.Timeout)
	}
	if d.config.MaxConcurrent != 4 {
		t.Errorf("MaxConcurrent = %d, want 4", d.config.MaxConcurrent)
	}
}

func TestDispatcher_NoStrategy(t *testing.T) {
	inst, logs := newObservedInstruments()
	d := NewDispatcher(NewRegistry(), DispatcherConfig{}, inst)

	if err := d.Dispatch(context.Background(), downResult("queue")); !errors.Is(err, ErrNoStrategy) {
		t.Fatalf("Dispatch() error = %v, want ErrNoStrategy", err)
	}

	entries := logs.FilterMessage("no recovery strategy available").All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["dependency"]; got != "queue" {
		t.Errorf("dependency field = %v, want queue", got)
	}
}

func TestDispatcher_SwallowsFailure(t *testing.T) {
	inst, logs := newObservedInstruments()
	reg := NewRegistry()
	_ = reg.Register("db", NewStrategyFunc("reconnect", func(context.Context, health.Result) error {
		return errors.New("still refused")
	}))
	d := NewDispatcher(reg, DispatcherConfig{}, inst)

	d.Recover(context.Background(), downResult("db"))

	if n := logs.FilterMessage("recovery attempt failed").Len(); n != 1 {
		t.Errorf("failure log entries = %d, want 1", n)
	}
}

func TestDispatcher_ContainsPanic(t *testing.T) {
	inst, logs := newObservedInstruments()
	reg := NewRegistry()
	_ = reg.Register("db", NewStrategyFunc("boom", func(context.Context, health.Result) error {
		panic("strategy bug")
	}))
	d := NewDispatcher(reg, DispatcherConfig{}, inst)

	err := d.Dispatch(context.Background(), downResult("db"))
	if !errors.Is(err, ErrPanicked) {
		t.Fatalf("Dispatch() error = %v, want ErrPanicked", err)
	}
	if n := logs.FilterMessage("recovery attempt failed").Len(); n != 1 {
		t.Errorf("failure log entries = %d, want 1", n)
	}
}

func TestDispatcher_Timeout(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register("db", NewStrategyFunc("hang", func(ctx context.Context, _ health.Result) error {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return ctx.Err()
	}))
	d := NewDispatcher(reg, DispatcherConfig{Timeout: 20 * time.Millisecond}, observe.NopInstruments())

	start := time.Now()
	err := d.Dispatch(context.Background(), downResult("db"))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Dispatch() error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Dispatch() took %v, want about 20ms", elapsed)
	}
}

func blockingRegistry(release <-chan struct{}, started chan<- struct{}) *Registry {
	reg := NewRegistry()
	_ = reg.Register("db", NewStrategyFunc("block", func(ctx context.Context, _ health.Result) error {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}))
	_ = reg.Register("cache", Noop{})
	return reg
}

func TestDispatcher_WaitsForSlot(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	d := NewDispatcher(blockingRegistry(release, started), DispatcherConfig{MaxConcurrent: 1}, observe.NopInstruments())

	first := make(chan error, 1)
	go func() { first <- d.Dispatch(context.Background(), downResult("db")) }()
	<-started

	second := make(chan error, 1)
	go func() { second <- d.Dispatch(context.Background(), downResult("cache")) }()

	select {
	case err := <-second:
		t.Fatalf("Dispatch() returned %v while the only slot was held", err)
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	if err := <-first; err != nil {
		t.Errorf("first Dispatch() error = %v", err)
	}
	if err := <-second; err != nil {
		t.Errorf("queued Dispatch() error = %v, want nil", err)
	}
	if active, rejected := d.Stats(); active != 0 || rejected != 0 {
		t.Errorf("Stats() = (%d, %d), want (0, 0)", active, rejected)
	}
}

func TestDispatcher_BusyWhenContextEnds(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	d := NewDispatcher(blockingRegistry(release, started), DispatcherConfig{MaxConcurrent: 1}, observe.NopInstruments())

	first := make(chan error, 1)
	go func() { first <- d.Dispatch(context.Background(), downResult("db")) }()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Dispatch(ctx, downResult("cache"))
	if !errors.Is(err, ErrBusy) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Dispatch() error = %v, want ErrBusy wrapping DeadlineExceeded", err)
	}
	if active, rejected := d.Stats(); active != 1 || rejected != 1 {
		t.Errorf("Stats() = (%d, %d), want (1, 1)", active, rejected)
	}

	close(release)
	if err := <-first; err != nil {
		t.Errorf("first Dispatch() error = %v", err)
	}
}

func TestDispatcher_TimeoutFreesSlot(t *testing.T) {
	stuck := make(chan struct{})
	defer close(stuck)

	reg := NewRegistry()
	_ = reg.Register("db", NewStrategyFunc("ignores-cancel", func(context.Context, health.Result) error {
		<-stuck
		return nil
	}))
	_ = reg.Register("cache", Noop{})
	d := NewDispatcher(reg, DispatcherConfig{Timeout: 20 * time.Millisecond, MaxConcurrent: 1}, observe.NopInstruments())

	if err := d.Dispatch(context.Background(), downResult("db")); !errors.Is(err, ErrTimeout) {
		t.Fatalf("Dispatch() error = %v, want ErrTimeout", err)
	}
	if active, _ := d.Stats(); active != 0 {
		t.Errorf("active = %d after timeout, want 0", active)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Dispatch(ctx, downResult("cache")); err != nil {
		t.Errorf("Dispatch() after timeout error = %v, want nil", err)
	}
}

func TestDispatcher_MonitorRecoversEveryDownDependency(t *testing.T) {
	const deps = 6

	var attempts, running, peak atomic.Int32
	reg := NewRegistry()
	checkers := make([]health.Checker, 0, deps)
	for i := range deps {
		name := fmt.Sprintf("dep-%d", i)
		checkers = append(checkers, health.NewCheckerFunc(name, func(context.Context) health.Result {
			return health.Down("refused", errors.New("connection refused"))
		}))
		_ = reg.Register(name, NewStrategyFunc("slow", func(context.Context, health.Result) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(50 * time.Millisecond)
			running.Add(-1)
			attempts.Add(1)
			return nil
		}))
	}

	d := NewDispatcher(reg, DispatcherConfig{}, observe.NopInstruments())
	prober, err := health.NewProber(health.ProberConfig{}, checkers)
	if err != nil {
		t.Fatalf("NewProber() error = %v", err)
	}
	mon := health.NewMonitor(prober, health.WithRecoverer(d))

	snap := mon.ForceCheck(context.Background())
	if snap.Status != health.StatusDown {
		t.Fatalf("Status = %v, want down", snap.Status)
	}
	if got := attempts.Load(); got != deps {
		t.Errorf("recovery attempts = %d, want %d", got, deps)
	}
	if got := peak.Load(); got > 4 {
		t.Errorf("peak concurrent attempts = %d, want at most 4", got)
	}
	if _, rejected := d.Stats(); rejected != 0 {
		t.Errorf("rejected = %d, want 0", rejected)
	}
}

func TestDispatcher_CompletedLogged(t *testing.T) {
	inst, logs := newObservedInstruments()
	reg := NewRegistry()
	_ = reg.Register("db", Noop{})
	d := NewDispatcher(reg, DispatcherConfig{}, inst)

	if err := d.Dispatch(context.Background(), downResult("db")); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	entries := logs.FilterMessage("recovery attempt completed").All()
	if len(entries) != 1 {
		t.Fatalf("completed log entries = %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["strategy"]; got != KindNone {
		t.Errorf("strategy field = %v, want %q", got, KindNone)
	}
}
