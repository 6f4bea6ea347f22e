// Package sqlite opens sqlx connections to SQLite databases and applies the
// embedded schema migrations. It backs single-node and local runs.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/linkcache/migrations"

	_ "github.com/mattn/go-sqlite3"
)

// DriverName is the database/sql driver registered by go-sqlite3.
const DriverName = "sqlite3"

// New opens the SQLite database at path. SQLite serializes writers, so the
// pool is limited to a single connection; this also keeps ":memory:"
// databases shared across queries.
func New(ctx context.Context, path string) (*sqlx.DB, error) {
	const op = "sqlite.New"

	db, err := sqlx.ConnectContext(ctx, DriverName, dsn(path))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}

	db.SetMaxOpenConns(1)

	return db, nil
}

const connParams = "_busy_timeout=5000&_foreign_keys=on"

// dsn appends the connection parameters to path, keeping any query the
// caller already set.
func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + connParams
	}
	return path + "?" + connParams
}

// RunMigrations applies the embedded SQLite migrations to db. The database
// handle stays open; its lifecycle belongs to the caller.
func RunMigrations(db *sqlx.DB) error {
	const op = "sqlite.RunMigrations"

	src, err := iofs.New(migrations.FS, migrations.SQLiteDir)
	if err != nil {
		return fmt.Errorf("%s: failed to open migrations source: %w", op, err)
	}

	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("%s: failed to initialize migrations driver: %w", op, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, DriverName, driver)
	if err != nil {
		return fmt.Errorf("%s: failed to initialize migrations: %w", op, err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	return nil
}
