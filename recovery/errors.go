package recovery

import "errors"

// Sentinel errors for recovery dispatch.
var (
	// ErrNoStrategy indicates no strategy is registered for a dependency.
	ErrNoStrategy = errors.New("recovery: no strategy available")

	// ErrDuplicateStrategy indicates a dependency already has a strategy.
	ErrDuplicateStrategy = errors.New("recovery: strategy already registered")

	// ErrUnknownStrategy indicates a strategy kind has no factory.
	ErrUnknownStrategy = errors.New("recovery: unknown strategy kind")

	// ErrBusy indicates the context ended while waiting for an attempt slot.
	ErrBusy = errors.New("recovery: no attempt slot available")

	// ErrTimeout indicates an attempt exceeded its time limit.
	ErrTimeout = errors.New("recovery: attempt timed out")

	// ErrPanicked indicates a strategy panicked.
	ErrPanicked = errors.New("recovery: strategy panicked")

	// ErrMissingCredentials indicates required credentials are absent.
	ErrMissingCredentials = errors.New("recovery: required credentials missing")

	// ErrCircuitOpen indicates reconnects are suspended after repeated failures.
	ErrCircuitOpen = errors.New("recovery: reconnect circuit open")
)
