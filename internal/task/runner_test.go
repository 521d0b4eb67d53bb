package task_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doctext/internal/domain"
	"doctext/internal/store/memory"
	"doctext/internal/task"
)

func newRunner(t *testing.T, ts *memory.TaskStore, ext *fakeExtractor, cfg task.RunnerConfig) *task.Runner {
	t.Helper()

	p := task.NewProcessor(ts, ext, &fakeReleaser{}, 0, nil)
	r := task.NewRunner(ts, p, cfg, nil)
	t.Cleanup(r.Stop)
	return r
}

func waitForStatus(t *testing.T, ts *memory.TaskStore, id int64, want domain.ProcessingStatus) {
	t.Helper()

	require.Eventually(t, func() bool {
		got, err := ts.Get(context.Background(), id)
		return err == nil && got.Status == want
	}, 2*time.Second, 10*time.Millisecond, "task %d never reached %s", id, want)
}

func TestRunnerProcessesSubmittedJob(t *testing.T) {
	ctx := context.Background()
	ts := memory.New()
	r := newRunner(t, ts, &fakeExtractor{text: "Hello World"}, task.DefaultRunnerConfig())
	require.NoError(t, r.Start())

	created, err := ts.Create(ctx, "/staging/a/doc.pdf")
	require.NoError(t, err)
	require.NoError(t, r.Submit(ctx, task.Job{TaskID: created.ID, FilePath: created.FilePath}))

	waitForStatus(t, ts, created.ID, domain.StatusCompleted)
}

func TestRunnerSubmitNeverReverts(t *testing.T) {
	ctx := context.Background()
	ts := memory.New()
	r := newRunner(t, ts, &fakeExtractor{text: "done"}, task.DefaultRunnerConfig())
	require.NoError(t, r.Start())

	created, err := ts.Create(ctx, "/staging/a/doc.pdf")
	require.NoError(t, err)
	require.NoError(t, r.Submit(ctx, task.Job{TaskID: created.ID, FilePath: created.FilePath}))

	waitForStatus(t, ts, created.ID, domain.StatusCompleted)

	// Once terminal the status holds; give any misbehaving goroutine a
	// moment to prove otherwise.
	time.Sleep(50 * time.Millisecond)
	got, err := ts.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
}

func TestRunnerQueueFull(t *testing.T) {
	ctx := context.Background()
	ts := memory.New()
	cfg := task.DefaultRunnerConfig()
	cfg.QueueSize = 1
	r := newRunner(t, ts, &fakeExtractor{}, cfg)
	// Not started: nothing drains the queue.

	require.NoError(t, r.Submit(ctx, task.Job{TaskID: 1}))
	assert.ErrorIs(t, r.Submit(ctx, task.Job{TaskID: 2}), task.ErrQueueFull)
}

func TestRunnerSubmitAfterStop(t *testing.T) {
	ts := memory.New()
	r := newRunner(t, ts, &fakeExtractor{}, task.DefaultRunnerConfig())
	r.Stop()

	assert.ErrorIs(t, r.Submit(context.Background(), task.Job{TaskID: 1}), task.ErrQueueClosed)
}

func TestRunnerSubmitDuringStopDoesNotPanic(t *testing.T) {
	ctx := context.Background()
	ts := memory.New()
	r := newRunner(t, ts, &fakeExtractor{text: "ok"}, task.DefaultRunnerConfig())
	require.NoError(t, r.Start())

	// Hammer Submit while Stop runs concurrently. A Submit that read the
	// open flag just before the flip may still send; that send must land on
	// the buffered channel instead of panicking.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			err := r.Submit(ctx, task.Job{TaskID: int64(i + 1)})
			if err != nil {
				assert.True(t,
					errors.Is(err, task.ErrQueueClosed) || errors.Is(err, task.ErrQueueFull),
					"unexpected submit error: %v", err)
			}
		}
	}()

	r.Stop()
	wg.Wait()

	assert.ErrorIs(t, r.Submit(ctx, task.Job{TaskID: 101}), task.ErrQueueClosed)
}

func TestRunnerRecoversUnfinishedTasks(t *testing.T) {
	ctx := context.Background()
	ts := memory.New()

	// Simulate a previous process that crashed: one task never picked up,
	// one interrupted mid-extraction.
	neverStarted, err := ts.Create(ctx, "/staging/a/1.pdf")
	require.NoError(t, err)
	interrupted, err := ts.Create(ctx, "/staging/b/2.pdf")
	require.NoError(t, err)
	require.NoError(t, ts.MarkProcessing(ctx, interrupted.ID))

	r := newRunner(t, ts, &fakeExtractor{text: "recovered"}, task.DefaultRunnerConfig())
	require.NoError(t, r.Start())

	waitForStatus(t, ts, neverStarted.ID, domain.StatusCompleted)
	waitForStatus(t, ts, interrupted.ID, domain.StatusCompleted)
}

func TestRunnerStuckTaskMonitor(t *testing.T) {
	ctx := context.Background()
	ts := memory.New()

	stuck, err := ts.Create(ctx, "/staging/a/stuck.pdf")
	require.NoError(t, err)
	require.NoError(t, ts.MarkProcessing(ctx, stuck.ID))

	cfg := task.RunnerConfig{
		WorkerCount:            1,
		QueueSize:              10,
		StuckTaskAge:           time.Millisecond,
		StuckTaskCheckInterval: 10 * time.Millisecond,
	}

	// Build the runner without Start-time recovery interference: the task
	// is already processing, so recovery requeues it too; either path must
	// converge on a single terminal outcome.
	r := newRunner(t, ts, &fakeExtractor{text: "unstuck"}, cfg)
	require.NoError(t, r.Start())

	waitForStatus(t, ts, stuck.ID, domain.StatusCompleted)

	got, err := ts.Get(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, "unstuck", *got.ProcessedText)
}
