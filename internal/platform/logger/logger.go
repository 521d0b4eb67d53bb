// Package logger provides structured logging functionality for the application.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"doctext/internal/config"
)

// Setup initializes the application's logging system based on the provided
// configuration. It creates a structured JSON logger with the appropriate
// log level, sets it as the default logger and returns it.
func Setup(cfg config.ServerConfig) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	})
	logger := slog.New(handler)

	// Make the configured logger available through the slog package functions.
	slog.SetDefault(logger)

	return logger
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		tmpLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			"configured_level", s,
			"default_level", "info")
		return slog.LevelInfo
	}
}
