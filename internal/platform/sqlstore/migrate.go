package sqlstore

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Migrate applies all pending schema migrations for the given driver
// ("postgres" or "sqlite"). Migrations are embedded in the binary so both
// the API server and standalone workers can bring the schema up to date.
func Migrate(db *sql.DB, driver string) error {
	goose.SetBaseFS(migrationsFS)

	var dialect, dir string
	switch driver {
	case "postgres":
		dialect, dir = "postgres", "migrations/postgres"
	case "sqlite":
		dialect, dir = "sqlite3", "migrations/sqlite"
	default:
		return fmt.Errorf("unsupported database driver: %q", driver)
	}

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}
