package health

import "errors"

var (
	// ErrCheckFailed indicates a dependency answered with a failure.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout indicates a probe did not finish within its timeout.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckPanicked indicates a checker panicked while probing.
	ErrCheckPanicked = errors.New("health: check panicked")

	// ErrNoResult indicates a cycle produced no result for a dependency.
	ErrNoResult = errors.New("health: no result for dependency")

	// ErrDependencyNotFound indicates a dependency name is not registered.
	ErrDependencyNotFound = errors.New("health: dependency not found")

	// ErrDuplicateDependency indicates a dependency name was registered twice.
	ErrDuplicateDependency = errors.New("health: duplicate dependency")
)
