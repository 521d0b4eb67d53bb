// Package store defines the persistence contracts for tasks.
package store

import (
	"context"
	"time"

	"doctext/internal/domain"
)

// TaskStore defines the interface for persisting tasks.
//
// The pipeline follows a single-mutator-per-task discipline: the API creates
// a task once, and exactly one worker execution moves it to a terminal state.
// Implementations still guard terminal rows (see ErrTaskFinalized) so that a
// redelivered job cannot overwrite a recorded outcome.
type TaskStore interface {
	// Create persists a new pending task for the given staged file path and
	// returns it with its store-assigned ID.
	Create(ctx context.Context, filePath string) (*domain.Task, error)

	// Get returns the task with the given ID, or ErrTaskNotFound.
	Get(ctx context.Context, id int64) (*domain.Task, error)

	// MarkProcessing transitions a pending task to processing.
	// Returns ErrTaskNotFound if the task does not exist and
	// ErrTaskFinalized if it already reached a terminal state.
	MarkProcessing(ctx context.Context, id int64) error

	// Complete transitions a task to completed and records the extracted
	// text. The status and text are written in a single statement so readers
	// never observe a partially applied transition. Returns ErrTaskFinalized
	// if the task is already terminal.
	Complete(ctx context.Context, id int64, text string) error

	// Fail transitions a task to failed and records a human-readable
	// message. Same atomicity and guard semantics as Complete.
	Fail(ctx context.Context, id int64, message string) error

	// ListByStatus returns tasks in the given status, oldest first. If
	// olderThan is non-zero, only tasks whose last update is older than the
	// duration are returned. Used for startup recovery and the stuck-task
	// monitor.
	ListByStatus(ctx context.Context, status domain.ProcessingStatus, olderThan time.Duration) ([]*domain.Task, error)
}
