package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

// Opener opens the store a configuration describes.
type Opener interface {
	Open(ctx context.Context, cfg StoreConfiguration) (*sql.DB, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, cfg StoreConfiguration) (*sql.DB, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context, cfg StoreConfiguration) (*sql.DB, error) {
	return f(ctx, cfg)
}

// SQLiteOpener opens SQLite stores and brings them to the model's schema.
type SQLiteOpener struct {
	model Model
}

// NewSQLiteOpener creates an opener for the given model.
func NewSQLiteOpener(model Model) *SQLiteOpener {
	return &SQLiteOpener{model: model}
}

// Open connects to the store, applies pragmas and runs migrations.
// A store written by a newer or unknown schema, or left dirty by a failed
// migration, yields a *MigrationIncompatibleError.
func (o *SQLiteOpener) Open(ctx context.Context, cfg StoreConfiguration) (*sql.DB, error) {
	if !cfg.InMemory() {
		if err := os.MkdirAll(filepath.Dir(cfg.Location), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: in-memory databases are private to a connection and
	// connection-level pragmas must hold for every statement.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := applyPragmas(ctx, db, cfg); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := o.migrate(db, cfg); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB, cfg StoreConfiguration) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	if !cfg.InMemory() {
		pragmas = append(pragmas,
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
		)
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// migrate checks compatibility and runs the model's migrations.
func (o *SQLiteOpener) migrate(db *sql.DB, cfg StoreConfiguration) error {
	sourceDriver, err := iofs.New(o.model.Migrations, o.model.MigrationsDir())
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	if err := checkCompatibility(driver, sourceDriver, cfg.Location); err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		var dirty migrate.ErrDirty
		if errors.As(err, &dirty) {
			return &MigrationIncompatibleError{Path: cfg.Location, StoreVersion: uint(dirty.Version), Dirty: true}
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// checkCompatibility compares the version recorded in the store with the
// versions the model ships.
func checkCompatibility(driver database.Driver, src source.Driver, location string) error {
	version, dirty, err := driver.Version()
	if err != nil {
		return fmt.Errorf("failed to read store version: %w", err)
	}
	if version == database.NilVersion {
		return nil
	}

	known, err := migrationVersions(src)
	if err != nil {
		return err
	}
	latest := known[len(known)-1]

	current := uint(version)
	if dirty {
		return &MigrationIncompatibleError{Path: location, StoreVersion: current, ModelVersion: latest, Dirty: true}
	}
	if current > latest || !containsVersion(known, current) {
		return &MigrationIncompatibleError{Path: location, StoreVersion: current, ModelVersion: latest}
	}

	return nil
}

// migrationVersions lists the migration versions of a source in ascending order.
func migrationVersions(src source.Driver) ([]uint, error) {
	first, err := src.First()
	if err != nil {
		return nil, fmt.Errorf("failed to read first migration: %w", err)
	}

	versions := []uint{first}
	for current := first; ; {
		next, err := src.Next(current)
		if errors.Is(err, os.ErrNotExist) {
			return versions, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read migration after %d: %w", current, err)
		}
		versions = append(versions, next)
		current = next
	}
}

func containsVersion(versions []uint, v uint) bool {
	for _, known := range versions {
		if known == v {
			return true
		}
	}
	return false
}

// schemaVersion reads the version golang-migrate recorded in the store.
func schemaVersion(ctx context.Context, db *sql.DB) (uint, bool, error) {
	var (
		version int64
		dirty   bool
	)
	err := db.QueryRowContext(ctx, "SELECT version, dirty FROM "+sqlite3.DefaultMigrationsTable+" LIMIT 1").Scan(&version, &dirty)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return uint(version), dirty, nil
}

// removeStoreFiles deletes a store file and its WAL companions.
func removeStoreFiles(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	return nil
}
