package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"doctext/internal/config"
	"doctext/internal/platform/sqlstore"
)

// setupAppDatabase opens a connection to the configured database, verifies
// it and applies pending migrations. Returns the connection if successful.
func setupAppDatabase(cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
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
		// SQLite allows a single writer; serialize access to avoid
		// SQLITE_BUSY under concurrent task updates.
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

	logger.Info("Database connection established", "driver", cfg.Database.Driver)
	return db, nil
}
