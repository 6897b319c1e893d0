// Package store opens the SQL database backing the per-baby content cache.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL flavour of an open database.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DB is an open, migrated database handle.
type DB struct {
	*sql.DB
	dialect Dialect
}

// Open opens a database for the given backend name ("sqlite" or "postgres").
func Open(backend, dsn string) (*DB, error) {
	switch Dialect(backend) {
	case DialectSQLite:
		return OpenSQLite(dsn)
	case DialectPostgres:
		return OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported database backend %q", backend)
	}
}

// OpenSQLite opens (creating if needed) a SQLite file, applies pragmas and
// runs migrations.
func OpenSQLite(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db, DialectSQLite); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("path", path).Msg("sqlite store opened")
	return &DB{DB: db, dialect: DialectSQLite}, nil
}

// OpenPostgres connects through the pgx stdlib driver and runs migrations.
func OpenPostgres(dsn string) (*DB, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db, DialectPostgres); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info().Msg("postgres store opened")
	return &DB{DB: db, dialect: DialectPostgres}, nil
}

func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Dialect returns the SQL flavour of the database.
func (d *DB) Dialect() Dialect { return d.dialect }

// Rebind rewrites "?" placeholders into the dialect's positional form.
func (d *DB) Rebind(query string) string {
	if d.dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
