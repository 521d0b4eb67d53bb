package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"doctext/internal/extract"
	"doctext/internal/redact"
	"doctext/internal/store"
)

// FileReleaser releases a staged file's owning directory. Implemented by
// staging.Manager; a separate interface keeps the processor testable.
type FileReleaser interface {
	Release(path string)
}

// Processor executes a single job end-to-end: load the task, run
// extraction, record the outcome, release the staged file. It is shared by
// both dispatch modes, so in-process workers and queue workers behave
// identically.
type Processor struct {
	store     store.TaskStore
	extractor extract.Extractor
	files     FileReleaser
	timeout   time.Duration
	logger    *slog.Logger
}

// NewProcessor creates a Processor. timeout bounds a single extraction run;
// zero means no bound.
func NewProcessor(
	taskStore store.TaskStore,
	extractor extract.Extractor,
	files FileReleaser,
	timeout time.Duration,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:     taskStore,
		extractor: extractor,
		files:     files,
		timeout:   timeout,
		logger:    logger,
	}
}

// Process runs the worker state machine for one job.
//
// The staged file is released on every exit path: success, extraction
// failure, task-not-found, store errors, and panics out of the extraction
// engine. A leaked staging directory on any path is a defect.
//
// The returned error is reserved for infrastructure failures (store
// unreachable); extraction failures are recorded on the task and return nil
// so queue transports do not redeliver work that already has an outcome.
func (p *Processor) Process(ctx context.Context, job Job) error {
	logger := p.logger.With("task_id", job.TaskID)

	defer p.files.Release(job.FilePath)

	t, err := p.store.Get(ctx, job.TaskID)
	if errors.Is(err, store.ErrTaskNotFound) {
		// Nothing to mutate; the staged file still gets cleaned up.
		logger.Warn("task no longer exists, dropping job")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load task: %w", err)
	}

	if t.Terminal() {
		// Duplicate delivery of finished work. The recorded outcome stands.
		logger.Debug("task already finalized, skipping", "status", t.Status)
		return nil
	}

	if err := p.store.MarkProcessing(ctx, job.TaskID); err != nil {
		if errors.Is(err, store.ErrTaskFinalized) {
			return nil
		}
		return fmt.Errorf("failed to mark task processing: %w", err)
	}

	logger.Info("processing task", "file", job.FilePath)

	text, extractErr := p.runExtraction(ctx, job.FilePath)
	if extractErr != nil {
		logger.Error("extraction failed", "error", extractErr)

		// Sanitize before persistence: the stored message must not leak
		// staging paths or other internals.
		if err := p.store.Fail(ctx, job.TaskID, redact.Error(extractErr)); err != nil {
			if errors.Is(err, store.ErrTaskFinalized) {
				return nil
			}
			return fmt.Errorf("failed to record extraction failure: %w", err)
		}
		return nil
	}

	if err := p.store.Complete(ctx, job.TaskID, text); err != nil {
		if errors.Is(err, store.ErrTaskFinalized) {
			return nil
		}
		return fmt.Errorf("failed to record extraction result: %w", err)
	}

	logger.Info("task completed")
	return nil
}

// runExtraction invokes the engine under the configured timeout and turns
// panics out of the engine into ordinary errors so the worker survives them.
func (p *Processor) runExtraction(ctx context.Context, path string) (text string, err error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extraction panicked: %v", r)
		}
	}()

	res, err := p.extractor.Extract(ctx, path)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}
