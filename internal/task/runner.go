package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"doctext/internal/domain"
	"doctext/internal/store"
)

// RunnerConfig holds configuration for the in-process runner
type RunnerConfig struct {
	// WorkerCount determines how many concurrent workers process jobs
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory job queue
	QueueSize int

	// StuckTaskAge defines how long a task can sit in the processing state
	// before it's considered stuck and requeued
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck tasks
	// If zero, defaults to 5 minutes
	StuckTaskCheckInterval time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:            2,
		QueueSize:              100,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
	}
}

// Runner is the in-process Dispatcher: jobs execute on worker goroutines
// inside the same process that served the upload. It recovers interrupted
// work from the store on startup and periodically requeues stuck tasks.
type Runner struct {
	store      store.TaskStore
	processor  *Processor
	jobs       chan Job
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     RunnerConfig
	logger     *slog.Logger

	mu     sync.Mutex
	closed bool
}

var _ Dispatcher = (*Runner)(nil)

// NewRunner creates a Runner
func NewRunner(taskStore store.TaskStore, processor *Processor, config RunnerConfig, logger *slog.Logger) *Runner {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.StuckTaskCheckInterval == 0 {
		config.StuckTaskCheckInterval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		store:      taskStore,
		processor:  processor,
		jobs:       make(chan Job, config.QueueSize),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger,
	}
}

// Submit adds a job to the queue. It never blocks: a full queue is an error
// the caller surfaces instead of an upload handler stalling on extraction.
func (r *Runner) Submit(_ context.Context, job Job) error {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return ErrQueueClosed
	}

	select {
	case r.jobs <- job:
		r.logger.Debug("job enqueued",
			"task_id", job.TaskID,
			"queue_len", len(r.jobs),
			"queue_cap", cap(r.jobs))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(r.jobs))
	}
}

// Start recovers unfinished work and launches the worker pool plus the
// stuck-task monitor.
func (r *Runner) Start() error {
	if err := r.recover(); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.stuckTaskMonitor()

	return nil
}

// Stop gracefully shuts down the runner. In-flight jobs run to completion;
// queued jobs that were never picked up remain pending in the store and are
// recovered on the next start.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.cancelFunc()
	r.wg.Wait()
	// The jobs channel is intentionally never closed: a Submit racing the
	// closed-flag flip may still send, and a send on a buffered open channel
	// is harmless while a send on a closed one panics.
}

// recover requeues work a previous process left behind: pending tasks that
// never reached a worker, and processing tasks interrupted mid-extraction.
// Statuses are left as-is, so a requeued processing task simply runs again
// and observers never see a transition back to pending.
func (r *Runner) recover() error {
	ctx := context.Background()

	pending, err := r.store.ListByStatus(ctx, domain.StatusPending, 0)
	if err != nil {
		return fmt.Errorf("failed to list pending tasks: %w", err)
	}

	interrupted, err := r.store.ListByStatus(ctx, domain.StatusProcessing, 0)
	if err != nil {
		return fmt.Errorf("failed to list processing tasks: %w", err)
	}

	if len(pending) > 0 || len(interrupted) > 0 {
		r.logger.Info("recovering unfinished tasks",
			"pending_count", len(pending),
			"processing_count", len(interrupted))
	}

	for _, t := range append(pending, interrupted...) {
		r.requeue(t)
	}

	return nil
}

// worker processes jobs from the queue until shutdown.
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case job := <-r.jobs:
			// Process owns all error handling; anything surfacing here is
			// an infrastructure failure worth logging loudly.
			if err := r.processor.Process(context.Background(), job); err != nil {
				r.logger.Error("job processing failed",
					"task_id", job.TaskID,
					"worker_id", id,
					"error", err)
			}
		}
	}
}

// stuckTaskMonitor periodically requeues tasks that have sat in processing
// longer than StuckTaskAge, work orphaned by a crashed or wedged worker.
func (r *Runner) stuckTaskMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			ctx := context.Background()

			stuck, err := r.store.ListByStatus(ctx, domain.StatusProcessing, r.config.StuckTaskAge)
			if err != nil {
				r.logger.Error("failed to check for stuck tasks", "error", err)
				continue
			}
			if len(stuck) == 0 {
				continue
			}

			r.logger.Info("found stuck tasks", "count", len(stuck))
			for _, t := range stuck {
				// Bump updated_at so the task isn't re-picked every tick
				// while it waits in the queue.
				if err := r.store.MarkProcessing(ctx, t.ID); err != nil {
					r.logger.Error("failed to touch stuck task",
						"task_id", t.ID, "error", err)
					continue
				}
				r.requeue(t)
			}
		}
	}
}

func (r *Runner) requeue(t *domain.Task) {
	select {
	case r.jobs <- Job{TaskID: t.ID, FilePath: t.FilePath}:
		r.logger.Debug("requeued task", "task_id", t.ID, "status", t.Status)
	default:
		r.logger.Error("failed to requeue task, queue is full", "task_id", t.ID)
	}
}
