package store

import "errors"

// Common store errors used across all store implementations.
var (
	// ErrTaskNotFound is returned when the requested task does not exist.
	// Callers surface this as a not-found result, never as a zero task.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskFinalized is returned when an update targets a task that has
	// already reached a terminal state (completed or failed). Transitions
	// are one-directional; a terminal result is never overwritten.
	ErrTaskFinalized = errors.New("task already finalized")
)
