// Package task implements the asynchronous processing pipeline: the
// dispatcher contract, the in-process runner, the Redis-queued variant, and
// the worker state machine that drives a job to its terminal outcome.
package task

import (
	"context"
	"errors"
)

// Job is the unit of work handed to a dispatcher: which task to process and
// where its staged file lives. Ownership of the staged file transfers to the
// worker with the job.
type Job struct {
	TaskID   int64  `json:"task_id"`
	FilePath string `json:"file_path"`
}

// Dispatcher hands a job to a worker for execution. Submit is non-blocking
// from the caller's perspective: it returns once the job is on the execution
// channel, never after completion. Both deployment variants implement it:
// the in-process Runner and the Redis-backed AsynqDispatcher.
type Dispatcher interface {
	Submit(ctx context.Context, job Job) error
}

// Common errors returned by the in-process runner's queue
var (
	ErrQueueClosed = errors.New("job queue is closed")
	ErrQueueFull   = errors.New("job queue is full")
)
