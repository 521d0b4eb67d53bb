// Package extract wraps the external document-to-text engines behind a
// single Extractor contract. The engines (marker, tesseract) are opaque
// collaborators invoked as local binaries; everything here is plumbing,
// never extraction logic.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnsupportedFormat is returned when a staged file's extension maps to
// no known document or image format.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Result is the outcome of a successful extraction.
type Result struct {
	Text     string
	Pages    int
	Engine   string
	Duration time.Duration
}

// Extractor converts a staged document file into text.
// Extract is synchronous and may run for seconds to minutes; callers bound
// it with a context deadline.
type Extractor interface {
	Extract(ctx context.Context, path string) (Result, error)
}

// Profile is the fixed configuration handed to the extraction engine.
type Profile struct {
	OutputFormat           string
	DisableImageExtraction bool
	ExtractImages          bool
	ForceOCR               bool
	StripExistingOCR       bool
}

// DefaultProfile returns the profile the pipeline always runs with:
// markdown output, no image extraction, forced re-OCR with any existing OCR
// layer stripped.
func DefaultProfile() Profile {
	return Profile{
		OutputFormat:           "markdown",
		DisableImageExtraction: true,
		ExtractImages:          false,
		ForceOCR:               true,
		StripExistingOCR:       true,
	}
}

// imageExts are the raster formats handed directly to tesseract.
var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tiff": true,
	".bmp":  true,
	".gif":  true,
}

func isPDF(ext string) bool   { return strings.EqualFold(ext, ".pdf") }
func isImage(ext string) bool { return imageExts[strings.ToLower(ext)] }

func unsupported(ext string) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
}
