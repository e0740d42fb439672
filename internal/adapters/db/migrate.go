package db

import (
	"embed"
	"errors"
	"fmt"

	"inputbid-service/internal/config"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// RunMigrations applies every pending up migration for the configured
// driver. It uses its own connection, closed before returning.
func RunMigrations(dbConfig config.DatabaseConfig) error {
	m, err := newMigrator(dbConfig)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrate up: %w", err)
	}
	return nil
}

// RollbackMigrations reverts every applied migration
func RollbackMigrations(dbConfig config.DatabaseConfig) error {
	m, err := newMigrator(dbConfig)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrate down: %w", err)
	}
	return nil
}

func newMigrator(dbConfig config.DatabaseConfig) (*migrate.Migrate, error) {
	d, err := dialectFor(dbConfig.Driver)
	if err != nil {
		return nil, err
	}

	source, err := iofs.New(migrationsFS, "migrations/"+d.migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	db, err := openDB(dbConfig)
	if err != nil {
		return nil, err
	}

	var driver database.Driver
	if dbConfig.IsSQLite() {
		driver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	} else {
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, d.migrationsDir, driver)
	if err != nil {
		return nil, fmt.Errorf("cannot create a new migrate instance: %w", err)
	}
	return m, nil
}
