package health

import (
	"context"
	"encoding/json"
	"time"
)

// Status represents the health status of a dependency.
type Status int

const (
	// StatusHealthy indicates the dependency responded successfully.
	StatusHealthy Status = iota
	// StatusDegraded indicates the dependency responded but reported a failure.
	StatusDegraded
	// StatusDown indicates the dependency could not be reached in time.
	StatusDown
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusDown:
		return "down"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the status as its string form.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Result is the outcome of probing one dependency in one cycle.
type Result struct {
	// Name is the dependency name.
	Name string

	// Status is the classified health status.
	Status Status

	// Message provides additional context about the status.
	Message string

	// Latency is how long the probe took.
	Latency time.Duration

	// Timestamp is when the probe started.
	Timestamp time.Time

	// Error is the failure cause for degraded and down results.
	Error error
}

// Healthy creates a healthy result.
func Healthy(message string) Result {
	return Result{
		Status:    StatusHealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Degraded creates a degraded result.
func Degraded(message string, err error) Result {
	return Result{
		Status:    StatusDegraded,
		Message:   message,
		Error:     err,
		Timestamp: time.Now(),
	}
}

// Down creates a down result.
func Down(message string, err error) Result {
	return Result{
		Status:    StatusDown,
		Message:   message,
		Error:     err,
		Timestamp: time.Now(),
	}
}

// WithLatency sets the latency on a result.
func (r Result) WithLatency(d time.Duration) Result {
	r.Latency = d
	return r
}

// ErrorString returns the error text, or "" when there is none.
func (r Result) ErrorString() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.Error()
}

// Checker probes a single dependency.
//
// Contract:
//   - Context: Check must return promptly once ctx is done.
//   - Errors: failures are reported through the Result, never by panicking.
//     A panicking checker is still contained by the Prober.
type Checker interface {
	// Name returns the dependency name.
	Name() string

	// Check probes the dependency and classifies the outcome.
	Check(ctx context.Context) Result
}

// CheckerFunc is an adapter to allow ordinary functions to be used as Checkers.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc creates a new CheckerFunc.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

// Name returns the dependency name.
func (f *CheckerFunc) Name() string {
	return f.name
}

// Check runs the wrapped function.
func (f *CheckerFunc) Check(ctx context.Context) Result {
	return f.fn(ctx)
}
