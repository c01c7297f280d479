// Package testutil provides shared helpers for the workspace shell's tests:
// Postgres integration databases and in-process Redis servers.
package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	// Import pgx driver for database/sql compatibility in tests.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/tenantdesk/workspace-shell/internal/migrate"
)

// TestingTB is an interface that covers both *testing.T and *testing.B.
type TestingTB interface {
	Helper()
	Skip(args ...any)
	Skipf(format string, args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Logf(format string, args ...any)
	Cleanup(func())
}

// TestDBConfig holds configuration for test database.
type TestDBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// DefaultTestDBConfig returns default test database configuration.
// Defaults to port 55432 (local test DB from the compose test profile).
// CI environments should set TEST_DB_PORT=5432 explicitly.
func DefaultTestDBConfig() TestDBConfig {
	return TestDBConfig{
		Host:     getEnvOrDefault("TEST_DB_HOST", "localhost"),
		Port:     getEnvOrDefault("TEST_DB_PORT", "55432"),
		User:     getEnvOrDefault("TEST_DB_USER", "workspace"),
		Password: getEnvOrDefault("TEST_DB_PASSWORD", "workspace"),
		DBName:   getEnvOrDefault("TEST_DB_NAME", "workspace"),
	}
}

// DSN renders cfg as a pgx connection URL.
func (cfg TestDBConfig) DSN() string {
	hostPort := net.JoinHostPort(cfg.Host, cfg.Port)
	sslMode := getEnvOrDefault("DB_SSL_MODE", "disable")
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=%s", cfg.User, cfg.Password, hostPort, cfg.DBName, sslMode)
}

// SkipIfNoTestDB skips the test if test database is not available.
// Setting TEST_REQUIRE_DB turns the skip into a failure.
func SkipIfNoTestDB(t TestingTB) {
	t.Helper()

	db, err := sql.Open("pgx", DefaultTestDBConfig().DSN())
	if err != nil {
		skipOrFail(t, err)
		return
	}
	defer closeAndLog(t, "probe DB", db)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if pingErr := db.PingContext(ctx); pingErr != nil {
		skipOrFail(t, pingErr)
	}
}

func skipOrFail(t TestingTB, err error) {
	t.Helper()
	if envBool("TEST_REQUIRE_DB") || envBool("TEST_REQUIRE_INFRA") {
		t.Fatal("Test database not available:", err)
	}
	t.Skip("Test database not available:", err)
}

// SetupEphemeralSchemaDB creates a unique schema per test, points search_path at it,
// runs migrations, and drops the schema when the test completes.
func SetupEphemeralSchemaDB(t TestingTB) *sql.DB {
	t.Helper()
	SkipIfNoTestDB(t)

	adminDB, err := sql.Open("pgx", DefaultTestDBConfig().DSN())
	if err != nil {
		t.Fatal("Failed to open admin DB:", err)
	}

	schema := generateSchemaName()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, execErr := adminDB.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+schema); execErr != nil {
		closeAndLog(t, "admin DB", adminDB)
		t.Fatalf("Failed to create schema %s: %v", schema, execErr)
	}

	db, err := sql.Open("pgx", withSearchPath(DefaultTestDBConfig().DSN(), schema))
	if err != nil {
		closeAndLog(t, "admin DB", adminDB)
		t.Fatal("Failed to open schema-scoped DB:", err)
	}
	db.SetMaxOpenConns(10)

	t.Logf("Using ephemeral schema: %s", schema)
	t.Cleanup(func() {
		cctx, ccancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer ccancel()
		closeAndLog(t, "schema DB", db)
		if _, dropErr := adminDB.ExecContext(cctx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); dropErr != nil {
			t.Logf("Warning: failed to drop schema %s: %v", schema, dropErr)
		}
		closeAndLog(t, "admin DB", adminDB)
	})

	if _, migrateErr := migrate.Run(ctx, db); migrateErr != nil {
		t.Fatal("Failed to run migrations in ephemeral schema:", migrateErr)
	}
	return db
}

func withSearchPath(dsn, schema string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}
	q := u.Query()
	q.Set("search_path", schema+",public")
	u.RawQuery = q.Encode()
	return u.String()
}

// generateSchemaName creates a lowercase alphanumeric schema name with prefix.
func generateSchemaName() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("t_%d", time.Now().UnixNano())
	}
	return "t_" + hex.EncodeToString(b)
}

func closeAndLog(t TestingTB, name string, closer interface{ Close() error }) {
	if err := closer.Close(); err != nil {
		t.Logf("warning: failed to close %s: %v", name, err)
	}
}

// getEnvOrDefault returns environment variable value or default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envBool parses common truthy values from env vars.
func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
