package staging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doctext/internal/staging"
)

func newManager(t *testing.T) *staging.Manager {
	t.Helper()

	m, err := staging.NewManager(t.TempDir(), nil)
	require.NoError(t, err)
	return m
}

func TestStageCopiesUpload(t *testing.T) {
	m := newManager(t)

	content := "dummy pdf bytes"
	path, err := m.Stage(strings.NewReader(content), "report.pdf", int64(len(content)), 1024)
	require.NoError(t, err)

	assert.Equal(t, "report.pdf", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestStageIsolatesConcurrentUploads(t *testing.T) {
	m := newManager(t)

	a, err := m.Stage(strings.NewReader("aaa"), "doc.pdf", 3, 1024)
	require.NoError(t, err)
	b, err := m.Stage(strings.NewReader("bbb"), "doc.pdf", 3, 1024)
	require.NoError(t, err)

	// Same filename, different owning directories.
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, filepath.Dir(a), filepath.Dir(b))
}

func TestStageRejectsOversize(t *testing.T) {
	m := newManager(t)

	_, err := m.Stage(strings.NewReader("xxxxx"), "big.pdf", 5, 4)
	assert.ErrorIs(t, err, staging.ErrFileTooLarge)
}

func TestStageAcceptsExactLimit(t *testing.T) {
	m := newManager(t)

	_, err := m.Stage(strings.NewReader("xxxx"), "edge.pdf", 4, 4)
	assert.NoError(t, err)
}

func TestStageRejectsEmpty(t *testing.T) {
	m := newManager(t)

	_, err := m.Stage(strings.NewReader(""), "empty.pdf", 0, 1024)
	assert.ErrorIs(t, err, staging.ErrEmptyFile)
}

func TestStageSanitizesTraversal(t *testing.T) {
	root := t.TempDir()
	m, err := staging.NewManager(root, nil)
	require.NoError(t, err)

	path, err := m.Stage(strings.NewReader("x"), "../../etc/passwd", 1, 1024)
	require.NoError(t, err)

	rel, err := filepath.Rel(root, path)
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(rel, ".."), "staged file escaped the staging root: %s", path)
	assert.Equal(t, "passwd", filepath.Base(path))
}

func TestReleaseRemovesOwningDirectory(t *testing.T) {
	m := newManager(t)

	path, err := m.Stage(strings.NewReader("x"), "doc.pdf", 1, 1024)
	require.NoError(t, err)

	m.Release(path)

	_, statErr := os.Stat(filepath.Dir(path))
	assert.True(t, os.IsNotExist(statErr))
}

func TestReleaseIsIdempotent(t *testing.T) {
	m := newManager(t)

	path, err := m.Stage(strings.NewReader("x"), "doc.pdf", 1, 1024)
	require.NoError(t, err)

	// Releasing twice, or releasing a path that never existed, must not panic.
	m.Release(path)
	m.Release(path)
	m.Release(filepath.Join(t.TempDir(), "never", "existed.pdf"))
	m.Release("")
}
