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

// PageBreak separates pages in multi-page tesseract output.
const PageBreak = "\n\n---PAGE BREAK---\n\n"

// TesseractConfig configures the tesseract engine.
type TesseractConfig struct {
	TesseractBin string // if empty -> "tesseract"
	PdftoppmBin  string // if empty -> "pdftoppm"
	Lang         string // if empty -> "eng"
	DPI          int    // rasterization DPI for PDFs, default 300
	MaxPages     int    // 0 = no limit
}

// TesseractEngine extracts text with plain tesseract OCR: PDFs are
// rasterized page-by-page with pdftoppm first, images are OCR'd directly.
type TesseractEngine struct {
	cfg    TesseractConfig
	runner Runner
	logger *slog.Logger
}

// NewTesseractEngine creates a TesseractEngine with defaults applied.
func NewTesseractEngine(cfg TesseractConfig, logger *slog.Logger) *TesseractEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TesseractBin == "" {
		cfg.TesseractBin = "tesseract"
	}
	if cfg.PdftoppmBin == "" {
		cfg.PdftoppmBin = "pdftoppm"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &TesseractEngine{cfg: cfg, runner: execRunner{}, logger: logger}
}

// Extract picks a strategy based on file extension.
func (e *TesseractEngine) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	ext := filepath.Ext(path)

	e.logger.Debug("starting tesseract extraction", "path", path, "ext", ext)

	switch {
	case isPDF(ext):
		text, pages, err := e.extractPDF(ctx, path)
		if err != nil {
			return Result{}, err
		}
		return Result{Text: text, Pages: pages, Engine: "tesseract", Duration: time.Since(start)}, nil
	case isImage(ext):
		text, err := e.ocr(ctx, path)
		if err != nil {
			return Result{}, err
		}
		return Result{Text: text, Pages: 1, Engine: "tesseract", Duration: time.Since(start)}, nil
	default:
		return Result{}, unsupported(ext)
	}
}

// extractPDF rasterizes each page with pdftoppm and OCRs the pages in order.
func (e *TesseractEngine) extractPDF(ctx context.Context, path string) (string, int, error) {
	tmpDir, err := os.MkdirTemp("", "doctext-pp-*")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create rasterization dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.PdftoppmBin,
		"-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", 0, fmt.Errorf("pdftoppm failed: %w: %s", err, truncate(string(errb), 1<<10))
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, fmt.Errorf("pdftoppm rendered no pages")
	}

	pages := make([]string, 0, len(matches))
	for _, img := range matches {
		txt, err := e.ocr(ctx, img)
		if err != nil {
			return "", 0, err
		}
		pages = append(pages, txt)
	}

	return strings.Join(pages, PageBreak), len(matches), nil
}

// ocr runs tesseract on a single image and returns its text.
func (e *TesseractEngine) ocr(ctx context.Context, path string) (string, error) {
	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.TesseractBin, path, "stdout", "-l", e.cfg.Lang)
	if err != nil {
		return "", fmt.Errorf("tesseract failed: %w: %s", err, truncate(string(errb), 1<<10))
	}
	return string(out), nil
}
