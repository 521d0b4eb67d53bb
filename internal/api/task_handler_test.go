package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doctext/internal/api"
	"doctext/internal/domain"
	"doctext/internal/staging"
	"doctext/internal/store/memory"
	"doctext/internal/task"
)

// fakeDispatcher records submitted jobs and can be set to fail.
type fakeDispatcher struct {
	mu   sync.Mutex
	jobs []task.Job
	err  error
}

func (d *fakeDispatcher) Submit(_ context.Context, job task.Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

func (d *fakeDispatcher) submitted() []task.Job {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]task.Job(nil), d.jobs...)
}

type handlerFixture struct {
	store      *memory.TaskStore
	dispatcher *fakeDispatcher
	stagingDir string
	router     chi.Router
}

func newFixture(t *testing.T, maxBytes int64) *handlerFixture {
	t.Helper()

	dir := t.TempDir()
	files, err := staging.NewManager(dir, nil)
	require.NoError(t, err)

	f := &handlerFixture{
		store:      memory.New(),
		dispatcher: &fakeDispatcher{},
		stagingDir: dir,
	}

	h := api.NewTaskHandler(f.store, files, f.dispatcher, maxBytes)
	r := chi.NewRouter()
	r.Post("/tasks", h.CreateTask)
	r.Get("/tasks/{id}", h.GetTask)
	r.Get("/health", api.HealthCheck)
	f.router = r
	return f
}

// multipartUpload builds a multipart/form-data body with a single file field.
func multipartUpload(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func decodeTask(t *testing.T, r io.Reader) api.TaskResponse {
	t.Helper()
	var resp api.TaskResponse
	require.NoError(t, json.NewDecoder(r).Decode(&resp))
	return resp
}

func TestCreateTaskAccepted(t *testing.T) {
	f := newFixture(t, 1024)

	body, contentType := multipartUpload(t, "file", "report.pdf", []byte("%PDF-1.4 content"))
	req := httptest.NewRequest(http.MethodPost, "/tasks", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decodeTask(t, rec.Body)
	assert.Positive(t, resp.ID)
	assert.Equal(t, string(domain.StatusPending), resp.Status)
	assert.Nil(t, resp.ProcessedText)
	assert.Nil(t, resp.ErrorMessage)

	jobs := f.dispatcher.submitted()
	require.Len(t, jobs, 1)
	assert.Equal(t, resp.ID, jobs[0].TaskID)

	// The staged copy must survive until the worker releases it.
	data, err := os.ReadFile(jobs[0].FilePath)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 content", string(data))
	assert.Equal(t, "report.pdf", filepath.Base(jobs[0].FilePath))
}

func TestCreateTaskNullFieldsSerialized(t *testing.T) {
	f := newFixture(t, 1024)

	body, contentType := multipartUpload(t, "file", "a.pdf", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/tasks", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.JSONEq(t, "null", string(raw["processed_text"]))
	assert.JSONEq(t, "null", string(raw["error_message"]))
}

func TestCreateTaskMissingFilePart(t *testing.T) {
	f := newFixture(t, 1024)

	body, contentType := multipartUpload(t, "document", "a.pdf", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/tasks", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.dispatcher.submitted())
}

func TestCreateTaskEmptyFile(t *testing.T) {
	f := newFixture(t, 1024)

	body, contentType := multipartUpload(t, "file", "empty.pdf", nil)
	req := httptest.NewRequest(http.MethodPost, "/tasks", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.dispatcher.submitted())
}

func TestCreateTaskTooLarge(t *testing.T) {
	f := newFixture(t, 8)

	body, contentType := multipartUpload(t, "file", "big.pdf", bytes.Repeat([]byte("a"), 64))
	req := httptest.NewRequest(http.MethodPost, "/tasks", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, f.dispatcher.submitted())
}

func TestCreateTaskSubmitFailure(t *testing.T) {
	f := newFixture(t, 1024)
	f.dispatcher.err = errors.New("queue unavailable")

	body, contentType := multipartUpload(t, "file", "a.pdf", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/tasks", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	// The orphaned task must be failed, not left pending forever.
	got, err := f.store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.NotEmpty(t, *got.ErrorMessage)

	// Staged files must not leak when submission fails.
	entries, err := os.ReadDir(f.stagingDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGetTask(t *testing.T) {
	f := newFixture(t, 1024)

	created, err := f.store.Create(context.Background(), "/tmp/doc.pdf")
	require.NoError(t, err)
	require.NoError(t, f.store.Complete(context.Background(), created.ID, "extracted text"))

	req := httptest.NewRequest(http.MethodGet, "/tasks/1", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeTask(t, rec.Body)
	assert.Equal(t, created.ID, resp.ID)
	assert.Equal(t, string(domain.StatusCompleted), resp.Status)
	require.NotNil(t, resp.ProcessedText)
	assert.Equal(t, "extracted text", *resp.ProcessedText)
	assert.Nil(t, resp.ErrorMessage)
}

func TestGetTaskNotFound(t *testing.T) {
	f := newFixture(t, 1024)

	req := httptest.NewRequest(http.MethodGet, "/tasks/999", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTaskInvalidID(t *testing.T) {
	f := newFixture(t, 1024)

	req := httptest.NewRequest(http.MethodGet, "/tasks/abc", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t, 1024)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}
