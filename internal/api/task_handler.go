package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"doctext/internal/api/shared"
	"doctext/internal/domain"
	"doctext/internal/redact"
	"doctext/internal/staging"
	"doctext/internal/store"
	"doctext/internal/task"
)

// uploadFieldName is the multipart form field that carries the document.
const uploadFieldName = "file"

// TaskResponse represents the response data for an extraction task.
type TaskResponse struct {
	ID            int64   `json:"id"`
	Status        string  `json:"status"`
	ProcessedText *string `json:"processed_text"`
	ErrorMessage  *string `json:"error_message"`
}

// TaskHandler handles task-related HTTP requests.
type TaskHandler struct {
	store      store.TaskStore
	files      *staging.Manager
	dispatcher task.Dispatcher
	maxBytes   int64
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(
	taskStore store.TaskStore,
	files *staging.Manager,
	dispatcher task.Dispatcher,
	maxBytes int64,
) *TaskHandler {
	return &TaskHandler{
		store:      taskStore,
		files:      files,
		dispatcher: dispatcher,
		maxBytes:   maxBytes,
	}
}

// CreateTask handles POST /tasks requests. It stages the uploaded document,
// records a pending task and submits it for asynchronous extraction.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile(uploadFieldName)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest,
			"Request must include a multipart field named 'file'")
		return
	}
	defer func() { _ = file.Close() }()

	stagedPath, err := h.files.Stage(file, header.Filename, header.Size, h.maxBytes)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	t, err := h.store.Create(r.Context(), stagedPath)
	if err != nil {
		h.files.Release(stagedPath)
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to create task", err)
		return
	}

	if err := h.dispatcher.Submit(r.Context(), task.Job{TaskID: t.ID, FilePath: stagedPath}); err != nil {
		// The task row already exists; mark it failed so clients polling it
		// are not left waiting on a job that was never queued.
		h.files.Release(stagedPath)
		if failErr := h.store.Fail(r.Context(), t.ID, redact.Error(err)); failErr != nil {
			slog.Error("failed to mark unqueued task as failed",
				"task_id", t.ID, "error", failErr)
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to queue task for processing", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, taskToResponse(t))
}

// GetTask handles GET /tasks/{id} requests.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	t, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			shared.RespondWithError(w, r, http.StatusNotFound, GetSafeErrorMessage(err))
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to fetch task", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(t))
}

// taskToResponse converts a domain.Task to a TaskResponse.
func taskToResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:            t.ID,
		Status:        string(t.Status),
		ProcessedText: t.ProcessedText,
		ErrorMessage:  t.ErrorMessage,
	}
}
