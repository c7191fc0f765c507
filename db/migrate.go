package db

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrations holds one directory of versioned SQL files per driver name.
//
//go:embed migrations
var migrations embed.FS

// Migrator applies the embedded schema migrations to a database.
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator prepares a Migrator for d. The migrator takes ownership of the
// pool: Close also closes d.
func NewMigrator(d *DB, logger *slog.Logger) (*Migrator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	src, err := iofs.New(migrations, "migrations/"+d.DriverName())
	if err != nil {
		return nil, fmt.Errorf("storefront/db: migrations for %q: %w", d.DriverName(), err)
	}

	var target database.Driver
	switch d.DriverName() {
	case "postgres":
		target, err = migratepg.WithInstance(d.Raw(), &migratepg.Config{})
	case "mysql":
		target, err = migratemysql.WithInstance(d.Raw(), &migratemysql.Config{})
	case "sqlite3":
		target, err = migratesqlite.WithInstance(d.Raw(), &migratesqlite.Config{})
	default:
		err = fmt.Errorf("unsupported driver %q", d.DriverName())
	}
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("storefront/db: migration target: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, d.DriverName(), target)
	if err != nil {
		return nil, fmt.Errorf("storefront/db: migration init: %w", err)
	}
	m.Log = &migrateLogger{logger: logger}
	return &Migrator{m: m}, nil
}

// Up applies all pending migrations. Being already current is not an error.
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("storefront/db: migrate up: %w", err)
	}
	return nil
}

// Down rolls back the given number of migrations.
func (mg *Migrator) Down(steps int) error {
	if steps < 1 {
		return fmt.Errorf("storefront/db: migrate down: steps must be positive, got %d", steps)
	}
	if err := mg.m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("storefront/db: migrate down: %w", err)
	}
	return nil
}

// Version returns the current schema version. A database that has never
// been migrated reports version 0.
func (mg *Migrator) Version() (version uint, dirty bool, err error) {
	v, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("storefront/db: migrate version: %w", err)
	}
	return v, dirty, nil
}

// Force sets the schema version without running migrations, clearing the
// dirty flag left by a failed run.
func (mg *Migrator) Force(version int) error {
	if err := mg.m.Force(version); err != nil {
		return fmt.Errorf("storefront/db: migrate force: %w", err)
	}
	return nil
}

// Drop removes every table in the database.
func (mg *Migrator) Drop() error {
	if err := mg.m.Drop(); err != nil {
		return fmt.Errorf("storefront/db: migrate drop: %w", err)
	}
	return nil
}

// Close releases the migration source and the underlying database.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

// MigrateUp opens a dedicated connection for cfg, applies every pending
// migration and closes it again.
func MigrateUp(cfg Config, logger *slog.Logger) error {
	cfg.Hooks = nil
	d, err := Open(cfg)
	if err != nil {
		return err
	}
	mg, err := NewMigrator(d, logger)
	if err != nil {
		_ = d.Close()
		return err
	}
	upErr := mg.Up()
	return errors.Join(upErr, mg.Close())
}

type migrateLogger struct {
	logger *slog.Logger
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

func (l *migrateLogger) Verbose() bool { return false }
