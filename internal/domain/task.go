// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"time"
)

// ProcessingStatus represents the lifecycle state of a task
type ProcessingStatus string

// Possible task status values
const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Common validation errors for Task
var (
	ErrInvalidStatus = errors.New("invalid task status")

	// ErrInconsistentResult is returned when a task's result fields do not
	// match its status: processed_text is only valid on a completed task,
	// error_message only on a failed one.
	ErrInconsistentResult = errors.New("task result fields inconsistent with status")
)

// Task represents a unit of trackable extraction work. A task is created in
// the pending state when an upload is accepted and is moved to exactly one
// terminal state (completed or failed) by the worker that processes it.
type Task struct {
	ID            int64            `json:"id"`
	Status        ProcessingStatus `json:"status"`
	ProcessedText *string          `json:"processed_text"`
	ErrorMessage  *string          `json:"error_message"`

	// FilePath is the staged upload location the worker will read. It is
	// internal bookkeeping and never part of the public projection.
	FilePath string `json:"-"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// NewTask creates a pending Task for the given staged file path.
// The ID is assigned by the store at insert time.
func NewTask(filePath string) *Task {
	now := time.Now().UTC()
	return &Task{
		Status:    StatusPending,
		FilePath:  filePath,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the task's status and the status/result invariant.
func (t *Task) Validate() error {
	if !isValidStatus(t.Status) {
		return ErrInvalidStatus
	}

	switch t.Status {
	case StatusCompleted:
		if t.ProcessedText == nil || t.ErrorMessage != nil {
			return ErrInconsistentResult
		}
	case StatusFailed:
		if t.ErrorMessage == nil || t.ProcessedText != nil {
			return ErrInconsistentResult
		}
	default:
		if t.ProcessedText != nil || t.ErrorMessage != nil {
			return ErrInconsistentResult
		}
	}

	return nil
}

// Terminal reports whether the task has reached a final state.
// Terminal tasks are never mutated again.
func (t *Task) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// isValidStatus checks if the given status is a valid ProcessingStatus.
func isValidStatus(status ProcessingStatus) bool {
	switch status {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}
