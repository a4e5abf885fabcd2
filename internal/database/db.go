// Package database provides the SQLite-backed message archive: connection
// setup, schema migrations, models, and the data access layer (Store).
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/tgrecall/tgrecall/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

// NewDB opens the SQLite archive at dbPath, applies pending migrations, and
// returns the connection pool.
func NewDB(dbPath string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite doesn't support concurrent writes, so max open conns = 1
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := ApplyMigrations(db.DB); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Error closing database after migration failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	slog.Info("Database connected and migrations applied", "path", dbPath)
	return db, nil
}

// CloseDB closes the database connection pool.
func CloseDB(db *sqlx.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		slog.Error("Error closing database connection", "error", err)
	} else {
		slog.Info("Database connection closed.")
	}
}

// ApplyMigrations runs schema migrations from the embedded SQL files.
func ApplyMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("database connection is nil, cannot apply migrations")
	}

	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create embed source driver instance: %w", err)
	}

	dbDriver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite3 database driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if migrateErr := migrator.Up(); migrateErr != nil {
		if errors.Is(migrateErr, migrate.ErrNoChange) {
			slog.Debug("No database migrations to apply.")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", migrateErr)
	}

	slog.Info("Database migrations applied.")
	return nil
}
