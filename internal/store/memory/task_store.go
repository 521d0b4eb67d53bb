// Package memory provides an in-memory TaskStore. It backs tests and local
// experiments; production deployments use the SQL store, which survives
// restarts.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"doctext/internal/domain"
	"doctext/internal/store"
)

var _ store.TaskStore = (*TaskStore)(nil)

// TaskStore is a mutex-guarded in-memory implementation of store.TaskStore.
type TaskStore struct {
	mu     sync.RWMutex
	nextID int64
	tasks  map[int64]domain.Task
}

// New creates an empty in-memory TaskStore.
func New() *TaskStore {
	return &TaskStore{tasks: make(map[int64]domain.Task)}
}

// Create inserts a new pending task and assigns the next ID.
func (ts *TaskStore) Create(_ context.Context, filePath string) (*domain.Task, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	ts.nextID++
	task := domain.NewTask(filePath)
	task.ID = ts.nextID
	ts.tasks[task.ID] = *task

	out := *task
	return &out, nil
}

// Get returns a copy of the task with the given ID.
func (ts *TaskStore) Get(_ context.Context, id int64) (*domain.Task, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	task, ok := ts.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	out := task
	return &out, nil
}

// MarkProcessing transitions a pending task to processing.
func (ts *TaskStore) MarkProcessing(_ context.Context, id int64) error {
	return ts.update(id, func(t *domain.Task) {
		t.Status = domain.StatusProcessing
	})
}

// Complete transitions a task to completed with the extracted text.
func (ts *TaskStore) Complete(_ context.Context, id int64, text string) error {
	return ts.update(id, func(t *domain.Task) {
		t.Status = domain.StatusCompleted
		t.ProcessedText = &text
		t.ErrorMessage = nil
	})
}

// Fail transitions a task to failed with the given message.
func (ts *TaskStore) Fail(_ context.Context, id int64, message string) error {
	return ts.update(id, func(t *domain.Task) {
		t.Status = domain.StatusFailed
		t.ErrorMessage = &message
		t.ProcessedText = nil
	})
}

// ListByStatus returns copies of tasks in the given status, oldest first.
func (ts *TaskStore) ListByStatus(
	_ context.Context,
	status domain.ProcessingStatus,
	olderThan time.Duration,
) ([]*domain.Task, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-olderThan)

	var tasks []*domain.Task
	for _, t := range ts.tasks {
		if t.Status != status {
			continue
		}
		if olderThan > 0 && !t.UpdatedAt.Before(cutoff) {
			continue
		}
		out := t
		tasks = append(tasks, &out)
	}

	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// update applies fn to a live (non-terminal) task under the write lock.
func (ts *TaskStore) update(id int64, fn func(*domain.Task)) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	task, ok := ts.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	if task.Terminal() {
		return store.ErrTaskFinalized
	}

	fn(&task)
	task.UpdatedAt = time.Now().UTC()
	ts.tasks[id] = task
	return nil
}
