package extract

import (
	"fmt"
	"log/slog"
)

// NewEngine constructs the configured extraction engine.
func NewEngine(name string, marker MarkerConfig, tesseract TesseractConfig, logger *slog.Logger) (Extractor, error) {
	switch name {
	case "", "marker":
		return NewMarkerEngine(marker, logger), nil
	case "tesseract":
		return NewTesseractEngine(tesseract, logger), nil
	default:
		return nil, fmt.Errorf("unknown extraction engine: %q", name)
	}
}
