// Package migrations embeds the schema for each store backend and applies it
// with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed postgres/*.sql
var postgresFS embed.FS

//go:embed sqlite/*.sql
var sqliteFS embed.FS

// Postgres returns a migrator bound to a database opened through the pgx
// stdlib driver.
func Postgres(db *sql.DB) (*migrate.Migrate, error) {
	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return nil, fmt.Errorf("init pgx migrate driver: %w", err)
	}
	return open(driver, "pgx5", postgresFS, "postgres")
}

// SQLite returns a migrator bound to a database opened through
// modernc.org/sqlite.
func SQLite(db *sql.DB) (*migrate.Migrate, error) {
	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return nil, fmt.Errorf("init sqlite migrate driver: %w", err)
	}
	return open(driver, "sqlite", sqliteFS, "sqlite")
}

// UpPostgres applies pending migrations.
func UpPostgres(db *sql.DB) error {
	m, err := Postgres(db)
	if err != nil {
		return err
	}
	return Up(m)
}

// UpSQLite applies pending migrations.
func UpSQLite(db *sql.DB) error {
	m, err := SQLite(db)
	if err != nil {
		return err
	}
	return Up(m)
}

// Up applies every pending migration. Being current is not an error.
func Up(m *migrate.Migrate) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("m.Up: %w", err)
	}
	return nil
}

// Down rolls back n migrations, or all of them when n <= 0.
func Down(m *migrate.Migrate, n int) error {
	var err error
	if n <= 0 {
		err = m.Down()
	} else {
		err = m.Steps(-n)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

func open(driver database.Driver, name string, fsys embed.FS, dir string) (*migrate.Migrate, error) {
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, name, driver)
	if err != nil {
		return nil, fmt.Errorf("migrate instance: %w", err)
	}
	return m, nil
}
