package recovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jonwraymond/healthmon/health"
)

// Strategy attempts to remediate a dependency that was found down.
//
// Contract:
//   - Context: Recover must return once ctx is done.
//   - Errors: a returned error means the attempt failed; it is logged by the
//     Dispatcher and never propagated further.
//   - Outcome: success does not mean the dependency is restored; only the
//     next probe decides that.
type Strategy interface {
	// Name identifies the strategy kind in logs and metrics.
	Name() string

	// Recover performs one best-effort remediation attempt.
	Recover(ctx context.Context, result health.Result) error
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc struct {
	name string
	fn   func(context.Context, health.Result) error
}

// NewStrategyFunc creates a StrategyFunc.
func NewStrategyFunc(name string, fn func(context.Context, health.Result) error) *StrategyFunc {
	return &StrategyFunc{name: name, fn: fn}
}

// Name returns the strategy name.
func (f *StrategyFunc) Name() string { return f.name }

// Recover runs the wrapped function.
func (f *StrategyFunc) Recover(ctx context.Context, result health.Result) error {
	return f.fn(ctx, result)
}

// Registry maps dependency names to recovery strategies.
// Adding a dependency never requires touching the dispatcher.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register binds a strategy to a dependency name.
func (r *Registry) Register(dependency string, s Strategy) error {
	dependency = strings.TrimSpace(dependency)
	if dependency == "" || s == nil {
		return errors.New("recovery: invalid strategy registration")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strategies[dependency]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateStrategy, dependency)
	}
	r.strategies[dependency] = s
	return nil
}

// Lookup returns the strategy registered for dependency.
func (r *Registry) Lookup(dependency string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[dependency]
	return s, ok
}

// Dependencies returns the sorted names with a registered strategy.
func (r *Registry) Dependencies() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
