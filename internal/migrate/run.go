// Package migrate applies the embedded Postgres schema for the device state store.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Versions lists the embedded migration versions in apply order.
func Versions() ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var versions []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		versions = append(versions, strings.TrimSuffix(e.Name(), ".sql"))
	}
	sort.Strings(versions)
	return versions, nil
}

// Run applies every embedded migration not yet recorded in schema_migrations
// and returns the versions it applied. It is safe to call repeatedly.
func Run(ctx context.Context, db *sql.DB) ([]string, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return nil, fmt.Errorf("create schema_migrations table: %w", err)
	}

	versions, err := Versions()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "migrations")
	var applied []string
	for _, v := range versions {
		done, checkErr := isApplied(ctx, db, v)
		if checkErr != nil {
			return applied, checkErr
		}
		if done {
			continue
		}
		logger.InfoContext(ctx, "applying migration", "version", v)
		if applyErr := apply(ctx, db, v, logger); applyErr != nil {
			return applied, applyErr
		}
		applied = append(applied, v)
	}
	return applied, nil
}

func isApplied(ctx context.Context, db *sql.DB, version string) (bool, error) {
	var exists bool
	const q = `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`
	if err := db.QueryRowContext(ctx, q, version).Scan(&exists); err != nil {
		return false, fmt.Errorf("check migration %s: %w", version, err)
	}
	return exists, nil
}

func apply(ctx context.Context, db *sql.DB, version string, logger *slog.Logger) error {
	body, err := migrationsFS.ReadFile("migrations/" + version + ".sql")
	if err != nil {
		return fmt.Errorf("read migration %s: %w", version, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.ErrorContext(ctx, "failed to rollback migration", "error", rbErr, "version", version)
		}
	}()

	if _, execErr := tx.ExecContext(ctx, string(body)); execErr != nil {
		return fmt.Errorf("exec migration %s: %w", version, execErr)
	}
	if _, recErr := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); recErr != nil {
		return fmt.Errorf("record migration %s: %w", version, recErr)
	}
	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("commit migration %s: %w", version, commitErr)
	}
	return nil
}
