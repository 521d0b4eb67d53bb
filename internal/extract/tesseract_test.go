package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRunner records invocations and delegates to a per-test function.
type stubRunner struct {
	calls [][]string
	fn    func(name string, args []string) ([]byte, []byte, error)
}

func (r *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	return r.fn(name, args)
}

func TestTesseractExtractImage(t *testing.T) {
	runner := &stubRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		return []byte("Hello World"), nil, nil
	}}
	e := NewTesseractEngine(TesseractConfig{}, nil)
	e.runner = runner

	res, err := e.Extract(context.Background(), "/staging/x/scan.png")
	require.NoError(t, err)

	assert.Equal(t, "Hello World", res.Text)
	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, "tesseract", res.Engine)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"tesseract", "/staging/x/scan.png", "stdout", "-l", "eng"}, runner.calls[0])
}

func TestTesseractExtractPDF(t *testing.T) {
	pageText := map[string]string{"page-1.png": "first page", "page-2.png": "second page"}

	runner := &stubRunner{}
	runner.fn = func(name string, args []string) ([]byte, []byte, error) {
		switch name {
		case "pdftoppm":
			// last arg is the output prefix; render two fake pages
			prefix := args[len(args)-1]
			for p := range pageText {
				require.NoError(t, os.WriteFile(prefix+"-"+p[len("page-"):], nil, 0o644))
			}
			return nil, nil, nil
		case "tesseract":
			return []byte(pageText[filepath.Base(args[0])]), nil, nil
		default:
			return nil, nil, fmt.Errorf("unexpected command %q", name)
		}
	}

	e := NewTesseractEngine(TesseractConfig{DPI: 150}, nil)
	e.runner = runner

	res, err := e.Extract(context.Background(), "/staging/x/doc.pdf")
	require.NoError(t, err)

	assert.Equal(t, "first page"+PageBreak+"second page", res.Text)
	assert.Equal(t, 2, res.Pages)

	// pdftoppm invoked with the configured DPI
	assert.Equal(t, "pdftoppm", runner.calls[0][0])
	assert.Contains(t, runner.calls[0], "150")
}

func TestTesseractExtractPDFNoPages(t *testing.T) {
	runner := &stubRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		return nil, nil, nil // pdftoppm "succeeds" but renders nothing
	}}
	e := NewTesseractEngine(TesseractConfig{}, nil)
	e.runner = runner

	_, err := e.Extract(context.Background(), "/staging/x/doc.pdf")
	assert.ErrorContains(t, err, "no pages")
}

func TestTesseractExtractUnsupportedFormat(t *testing.T) {
	e := NewTesseractEngine(TesseractConfig{}, nil)
	e.runner = &stubRunner{fn: func(string, []string) ([]byte, []byte, error) {
		t.Fatal("no command should run for an unsupported extension")
		return nil, nil, nil
	}}

	_, err := e.Extract(context.Background(), "/staging/x/notes.docx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.ErrorContains(t, err, ".docx")
}

func TestTesseractFailurePropagates(t *testing.T) {
	runner := &stubRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		return nil, []byte("Error opening data file"), errors.New("exit status 1")
	}}
	e := NewTesseractEngine(TesseractConfig{}, nil)
	e.runner = runner

	_, err := e.Extract(context.Background(), "/staging/x/scan.jpg")
	assert.ErrorContains(t, err, "tesseract failed")
}
