// Package main implements the entry point for the doctext API server,
// which accepts document uploads and exposes the status and results of
// asynchronous text extraction tasks.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"doctext/internal/config"
	"doctext/internal/platform/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// run loads configuration, wires the application together and starts the
// HTTP server. It blocks until shutdown completes.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.Setup(cfg.Server)

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"database_driver", cfg.Database.Driver,
		"dispatcher_mode", cfg.Dispatcher.Mode,
		"extract_engine", cfg.Extract.Engine)

	ctx := context.Background()

	db, err := setupAppDatabase(cfg, appLogger)
	if err != nil {
		return err
	}

	app, err := newApplication(cfg, appLogger, db)
	if err != nil {
		// The application owns db cleanup only once constructed.
		if closeErr := db.Close(); closeErr != nil {
			appLogger.Error("Error closing database connection", "error", closeErr)
		}
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}
