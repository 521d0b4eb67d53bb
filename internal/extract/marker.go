package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// MarkerConfig configures the marker engine.
type MarkerConfig struct {
	Bin     string // binary name or absolute path; if empty -> "marker_single"
	Profile Profile
}

// MarkerEngine extracts text by shelling out to marker_single, which renders
// a document to markdown in an output directory.
type MarkerEngine struct {
	cfg    MarkerConfig
	runner Runner
	logger *slog.Logger
}

// NewMarkerEngine creates a MarkerEngine with defaults applied.
func NewMarkerEngine(cfg MarkerConfig, logger *slog.Logger) *MarkerEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Bin == "" {
		cfg.Bin = "marker_single"
	}
	if cfg.Profile.OutputFormat == "" {
		cfg.Profile = DefaultProfile()
	}
	return &MarkerEngine{cfg: cfg, runner: execRunner{}, logger: logger}
}

// Extract runs marker on the staged file and reads back the rendered text.
func (e *MarkerEngine) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()

	ext := filepath.Ext(path)
	if !isPDF(ext) && !isImage(ext) {
		return Result{}, unsupported(ext)
	}

	outDir, err := os.MkdirTemp("", "doctext-marker-*")
	if err != nil {
		return Result{}, fmt.Errorf("failed to create marker output dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(outDir) }()

	args := []string{path, "--output_dir", outDir, "--output_format", e.cfg.Profile.OutputFormat}
	if e.cfg.Profile.DisableImageExtraction {
		args = append(args, "--disable_image_extraction")
	}
	if e.cfg.Profile.ForceOCR {
		args = append(args, "--force_ocr")
	}
	if e.cfg.Profile.StripExistingOCR {
		args = append(args, "--strip_existing_ocr")
	}

	e.logger.Debug("starting marker extraction", "path", path)
	if _, errb, err := e.runner.Run(ctx, e.cfg.Bin, args...); err != nil {
		return Result{}, fmt.Errorf("marker failed: %w: %s", err, truncate(string(errb), 1<<10))
	}

	text, err := readRenderedMarkdown(outDir)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Text:     text,
		Pages:    1 + strings.Count(text, "\f"),
		Engine:   "marker",
		Duration: time.Since(start),
	}, nil
}

// readRenderedMarkdown finds marker's rendered output. marker_single writes
// <output_dir>/<stem>/<stem>.md; the glob also tolerates a flat layout.
func readRenderedMarkdown(outDir string) (string, error) {
	matches, _ := filepath.Glob(filepath.Join(outDir, "*", "*.md"))
	if len(matches) == 0 {
		matches, _ = filepath.Glob(filepath.Join(outDir, "*.md"))
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("marker produced no output")
	}
	sort.Strings(matches)

	data, err := os.ReadFile(matches[0])
	if err != nil {
		return "", fmt.Errorf("failed to read marker output: %w", err)
	}
	return string(data), nil
}
