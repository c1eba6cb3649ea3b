package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"snw-store/internal/config"
	"snw-store/internal/observability"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Open returns a pooled Postgres handle that has answered a ping.
func Open(ctx context.Context, cfg config.Database) (*sql.DB, error) {
	database, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(cfg.MaxOpenConns)
	database.SetMaxIdleConns(cfg.MaxIdleConns)
	database.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	database.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := database.PingContext(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return database, nil
}

// RunMigrations applies every pending up migration embedded in the binary.
func RunMigrations(database *sql.DB, logger *observability.Logger) error {
	// m is never closed: its driver owns database and would close the pool.
	m, err := newMigrator(database)
	if err != nil {
		return err
	}

	from, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is dirty at migration %d", from)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("migrations_up_to_date", map[string]any{"version": from})
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	to, _, _ := m.Version()
	logger.Info("migrations_applied", map[string]any{"from_version": from, "to_version": to})
	return nil
}

// Versions lists the embedded migration versions in order.
func Versions() ([]uint, error) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	defer src.Close()

	version, err := src.First()
	if err != nil {
		return nil, fmt.Errorf("first migration: %w", err)
	}

	versions := []uint{version}
	for {
		next, err := src.Next(version)
		if err != nil {
			break
		}
		versions = append(versions, next)
		version = next
	}

	return versions, nil
}

func newMigrator(database *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}

	driver, err := pgx.WithInstance(database, &pgx.Config{})
	if err != nil {
		return nil, fmt.Errorf("init migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return nil, fmt.Errorf("init migrator: %w", err)
	}

	return m, nil
}
