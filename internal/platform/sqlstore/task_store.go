// Package sqlstore implements the task store on top of database/sql.
// It works against both PostgreSQL (pgx) and SQLite (modernc) connections;
// the SQL sticks to the dialect-neutral subset both engines support,
// including $N placeholders and RETURNING.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"doctext/internal/domain"
	"doctext/internal/store"
)

// TaskStore implements store.TaskStore using a SQL database.
type TaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewTaskStore creates a TaskStore backed by the given connection or
// transaction.
func NewTaskStore(db store.DBTX, logger *slog.Logger) *TaskStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskStore{db: db, logger: logger}
}

// WithTx returns a TaskStore that runs all operations on the given
// transaction.
func (s *TaskStore) WithTx(tx *sql.Tx) *TaskStore {
	return &TaskStore{db: tx, logger: s.logger}
}

// Create persists a new pending task and returns it with its assigned ID.
func (s *TaskStore) Create(ctx context.Context, filePath string) (*domain.Task, error) {
	task := domain.NewTask(filePath)

	query := `
		INSERT INTO tasks (status, file_path, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		task.Status,
		task.FilePath,
		task.CreatedAt,
		task.UpdatedAt,
	).Scan(&task.ID)
	if err != nil {
		s.logger.Error("failed to create task", "error", err)
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return task, nil
}

// Get returns the task with the given ID, or store.ErrTaskNotFound.
func (s *TaskStore) Get(ctx context.Context, id int64) (*domain.Task, error) {
	query := `
		SELECT id, status, processed_text, error_message, file_path, created_at, updated_at
		FROM tasks
		WHERE id = $1
	`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrTaskNotFound
	}
	if err != nil {
		s.logger.Error("failed to get task", "task_id", id, "error", err)
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// MarkProcessing transitions a pending task to processing. Marking a task
// that is already processing is a no-op, which keeps redelivered jobs and
// recovery requeues harmless.
func (s *TaskStore) MarkProcessing(ctx context.Context, id int64) error {
	query := `
		UPDATE tasks
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status IN ('pending', 'processing')
	`

	result, err := s.db.ExecContext(ctx, query, domain.StatusProcessing, time.Now().UTC(), id)
	if err != nil {
		s.logger.Error("failed to mark task processing", "task_id", id, "error", err)
		return fmt.Errorf("failed to mark task processing: %w", err)
	}

	return s.classifyNoRows(ctx, id, result)
}

// Complete transitions a task to completed and records the extracted text.
// Status and text change in one statement so a concurrent reader never sees
// a half-applied transition.
func (s *TaskStore) Complete(ctx context.Context, id int64, text string) error {
	query := `
		UPDATE tasks
		SET status = $1, processed_text = $2, error_message = NULL, updated_at = $3
		WHERE id = $4 AND status IN ('pending', 'processing')
	`

	result, err := s.db.ExecContext(ctx, query, domain.StatusCompleted, text, time.Now().UTC(), id)
	if err != nil {
		s.logger.Error("failed to complete task", "task_id", id, "error", err)
		return fmt.Errorf("failed to complete task: %w", err)
	}

	return s.classifyNoRows(ctx, id, result)
}

// Fail transitions a task to failed and records the error message.
func (s *TaskStore) Fail(ctx context.Context, id int64, message string) error {
	query := `
		UPDATE tasks
		SET status = $1, error_message = $2, processed_text = NULL, updated_at = $3
		WHERE id = $4 AND status IN ('pending', 'processing')
	`

	result, err := s.db.ExecContext(ctx, query, domain.StatusFailed, message, time.Now().UTC(), id)
	if err != nil {
		s.logger.Error("failed to fail task", "task_id", id, "error", err)
		return fmt.Errorf("failed to fail task: %w", err)
	}

	return s.classifyNoRows(ctx, id, result)
}

// ListByStatus returns tasks in the given status, oldest first, optionally
// restricted to tasks whose last update is older than olderThan.
func (s *TaskStore) ListByStatus(
	ctx context.Context,
	status domain.ProcessingStatus,
	olderThan time.Duration,
) ([]*domain.Task, error) {
	var query string
	var args []any

	if olderThan > 0 {
		query = `
			SELECT id, status, processed_text, error_message, file_path, created_at, updated_at
			FROM tasks
			WHERE status = $1 AND updated_at < $2
			ORDER BY created_at ASC
		`
		args = []any{status, time.Now().UTC().Add(-olderThan)}
	} else {
		query = `
			SELECT id, status, processed_text, error_message, file_path, created_at, updated_at
			FROM tasks
			WHERE status = $1
			ORDER BY created_at ASC
		`
		args = []any{status}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("failed to query tasks by status", "status", status, "error", err)
		return nil, fmt.Errorf("failed to query tasks by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}

	return tasks, nil
}

// classifyNoRows distinguishes the three reasons a guarded UPDATE can match
// nothing: the task does not exist, it is already terminal, or (for
// MarkProcessing) a racing update. The follow-up read is acceptable because
// concurrent writers on one task are a programming error, not a race the
// store arbitrates.
func (s *TaskStore) classifyNoRows(ctx context.Context, id int64, result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	task, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if task.Terminal() {
		return store.ErrTaskFinalized
	}

	// Matched no rows but the task exists and is not terminal: the row
	// changed between statements. Treat as finalized-equivalent no-op.
	return store.ErrTaskFinalized
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var processedText, errorMessage sql.NullString

	err := row.Scan(
		&task.ID,
		&task.Status,
		&processedText,
		&errorMessage,
		&task.FilePath,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if processedText.Valid {
		task.ProcessedText = &processedText.String
	}
	if errorMessage.Valid {
		task.ErrorMessage = &errorMessage.String
	}

	return &task, nil
}
