package store

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"rgehrsitz/nest/migrations"
)

// RunMigrations applies all pending migrations from the embedded SQL files.
func RunMigrations(db *sql.DB, dialect Dialect) error {
	// Disable goose's default logging to avoid stdout noise
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect(string(dialect)); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}
