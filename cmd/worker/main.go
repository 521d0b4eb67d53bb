// Package main implements the doctext queue worker. It consumes extraction
// jobs published to Redis by the API server and records results on the
// shared task store.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"doctext/internal/config"
	"doctext/internal/extract"
	"doctext/internal/platform/logger"
	"doctext/internal/platform/sqlstore"
	"doctext/internal/staging"
	"doctext/internal/task"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Worker failed: %v", err)
	}
}

// run loads configuration, wires the extraction processor and blocks
// consuming jobs until a termination signal arrives.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.Setup(cfg.Server)

	if cfg.Queue.RedisAddr == "" {
		return fmt.Errorf("queue.redis_addr is required to run the worker")
	}

	slog.Info("Worker configuration loaded",
		"queue", cfg.Queue.Name,
		"concurrency", cfg.Queue.Concurrency,
		"database_driver", cfg.Database.Driver,
		"extract_engine", cfg.Extract.Engine)

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", "error", err)
		}
	}()

	taskStore := sqlstore.NewTaskStore(db, appLogger)

	files, err := staging.NewManager(cfg.Staging.Dir, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize staging directory: %w", err)
	}

	extractor, err := extract.NewEngine(cfg.Extract.Engine,
		extract.MarkerConfig{Bin: cfg.Extract.MarkerBin},
		extract.TesseractConfig{
			TesseractBin: cfg.Extract.TesseractBin,
			PdftoppmBin:  cfg.Extract.PdftoppmBin,
			Lang:         cfg.Extract.Lang,
			DPI:          cfg.Extract.DPI,
		},
		appLogger.With("component", "extractor"))
	if err != nil {
		return fmt.Errorf("failed to initialize extraction engine: %w", err)
	}

	processor := task.NewProcessor(
		taskStore,
		extractor,
		files,
		cfg.Extract.Timeout,
		appLogger.With("component", "processor"))

	queueCfg := task.AsynqConfig{
		RedisAddr:   cfg.Queue.RedisAddr,
		Queue:       cfg.Queue.Name,
		Concurrency: cfg.Queue.Concurrency,
	}

	srv := task.NewQueueServer(queueCfg, appLogger)
	mux := task.NewQueueMux(processor)

	appLogger.Info("Worker starting", "redis_addr", cfg.Queue.RedisAddr)

	// Run blocks until SIGTERM/SIGINT and drains in-flight jobs.
	if err := srv.Run(mux); err != nil {
		return fmt.Errorf("worker error: %w", err)
	}
	return nil
}

// openDatabase connects to the configured database and applies pending
// migrations. The worker shares the task table with the API server.
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	var db *sql.DB
	var err error

	switch cfg.Database.Driver {
	case "postgres":
		db, err = sql.Open("pgx", cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database connection: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	case "sqlite":
		db, err = sql.Open("sqlite", cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database connection: %w", err)
		}
		db.SetMaxOpenConns(1)
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Database.Driver)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := sqlstore.Migrate(db, cfg.Database.Driver); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}
