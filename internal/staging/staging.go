// Package staging manages scoped temporary storage for uploaded files.
//
// Each upload gets its own directory so concurrent uploads can never collide
// on a filename. Ownership of a staged file transfers with its path: the API
// owns it while uploading, the worker from the moment the job is submitted.
// Whoever owns it last calls Release, which is idempotent and best-effort.
package staging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Staging errors surfaced to the upload handler.
var (
	// ErrFileTooLarge is returned when an upload exceeds the configured
	// maximum size. The check runs before any bytes are copied.
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")

	// ErrEmptyFile is returned for zero-byte uploads.
	ErrEmptyFile = errors.New("file is empty")
)

// Manager stages uploads under isolated per-upload directories.
type Manager struct {
	root   string
	logger *slog.Logger
}

// NewManager creates a Manager rooted at dir, creating it if needed.
func NewManager(dir string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "doctext-staging")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging root: %w", err)
	}
	return &Manager{root: dir, logger: logger}, nil
}

// Stage copies the upload stream into a fresh isolated directory and returns
// the staged file path. Size bounds are enforced before copying: size greater
// than maxBytes fails with ErrFileTooLarge, size of exactly zero with
// ErrEmptyFile. On any copy failure the partial directory is removed.
func (m *Manager) Stage(r io.Reader, filename string, size, maxBytes int64) (string, error) {
	if size > maxBytes {
		return "", fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, size, maxBytes)
	}
	if size == 0 {
		return "", ErrEmptyFile
	}

	dir := filepath.Join(m.root, uuid.New().String())
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}

	path := filepath.Join(dir, sanitizeFilename(filename))

	dst, err := os.Create(path)
	if err != nil {
		m.Release(path)
		return "", fmt.Errorf("failed to create staged file: %w", err)
	}

	_, copyErr := io.Copy(dst, r)
	closeErr := dst.Close()
	if copyErr != nil {
		m.Release(path)
		return "", fmt.Errorf("failed to copy upload: %w", copyErr)
	}
	if closeErr != nil {
		m.Release(path)
		return "", fmt.Errorf("failed to finalize staged file: %w", closeErr)
	}

	m.logger.Debug("staged upload", "path", path, "bytes", size)
	return path, nil
}

// Release removes the directory owning the staged file. It never fails:
// missing paths are fine (a second Release is a no-op) and removal errors
// are only logged.
func (m *Manager) Release(path string) {
	if path == "" {
		return
	}

	dir := filepath.Dir(path)
	if err := os.RemoveAll(dir); err != nil {
		m.logger.Warn("failed to remove staging directory", "dir", dir, "error", err)
	}
}

// sanitizeFilename reduces an upload's client-supplied filename to a safe
// basename: path separators and traversal sequences are stripped, and an
// unusable result falls back to a fixed name.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	name = strings.TrimSpace(name)

	if name == "" || name == "." || name == "/" {
		return "upload"
	}
	return name
}
