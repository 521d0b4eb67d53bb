package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"doctext/internal/config"
	"doctext/internal/extract"
	"doctext/internal/platform/sqlstore"
	"doctext/internal/staging"
	"doctext/internal/store"
	"doctext/internal/task"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	taskStore store.TaskStore
	files     *staging.Manager
	extractor extract.Extractor
	processor *task.Processor

	// dispatcher is the Submit interface handlers use; exactly one of
	// runner/queueClient backs it depending on the configured mode.
	dispatcher  task.Dispatcher
	runner      *task.Runner
	queueClient *task.AsynqDispatcher
}

// newApplication creates a new application instance with all dependencies
// initialized. The database connection must already be migrated.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	app.taskStore = sqlstore.NewTaskStore(db, logger)

	var err error
	app.files, err = staging.NewManager(cfg.Staging.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize staging directory: %w", err)
	}

	app.extractor, err = extract.NewEngine(cfg.Extract.Engine,
		extract.MarkerConfig{Bin: cfg.Extract.MarkerBin},
		extract.TesseractConfig{
			TesseractBin: cfg.Extract.TesseractBin,
			PdftoppmBin:  cfg.Extract.PdftoppmBin,
			Lang:         cfg.Extract.Lang,
			DPI:          cfg.Extract.DPI,
		},
		logger.With("component", "extractor"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize extraction engine: %w", err)
	}

	app.processor = task.NewProcessor(
		app.taskStore,
		app.extractor,
		app.files,
		cfg.Extract.Timeout,
		logger.With("component", "processor"))

	if err := app.setupDispatcher(); err != nil {
		return nil, err
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// setupDispatcher starts the task dispatch backend selected by configuration:
// an in-process worker pool, or an asynq client publishing to Redis for
// separate worker processes.
func (app *application) setupDispatcher() error {
	switch app.config.Dispatcher.Mode {
	case "inprocess":
		app.runner = task.NewRunner(app.taskStore, app.processor, task.RunnerConfig{
			WorkerCount:            app.config.Dispatcher.Workers,
			QueueSize:              app.config.Dispatcher.QueueSize,
			StuckTaskAge:           app.config.Dispatcher.StuckTaskAge,
			StuckTaskCheckInterval: app.config.Dispatcher.StuckCheckInterval,
		}, app.logger)
		if err := app.runner.Start(); err != nil {
			return fmt.Errorf("failed to start task runner: %w", err)
		}
		app.dispatcher = app.runner
	case "queue":
		app.queueClient = task.NewAsynqDispatcher(task.AsynqConfig{
			RedisAddr:   app.config.Queue.RedisAddr,
			Queue:       app.config.Queue.Name,
			Concurrency: app.config.Queue.Concurrency,
		}, app.logger)
		app.dispatcher = app.queueClient
	default:
		return fmt.Errorf("unsupported dispatcher mode: %q", app.config.Dispatcher.Mode)
	}
	return nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.runner != nil {
		app.runner.Stop()
	}

	if app.queueClient != nil {
		if err := app.queueClient.Close(); err != nil {
			app.logger.Error("Error closing queue client", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
