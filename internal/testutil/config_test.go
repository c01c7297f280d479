package testutil

import (
	"testing"
)

func TestDefaultTestDBConfig(t *testing.T) {
	t.Run("defaults to local test database port 55432", func(t *testing.T) {
		for _, k := range []string{"TEST_DB_HOST", "TEST_DB_PORT", "TEST_DB_USER", "TEST_DB_PASSWORD", "TEST_DB_NAME"} {
			t.Setenv(k, "")
		}
		cfg := DefaultTestDBConfig()
		want := TestDBConfig{Host: "localhost", Port: "55432", User: "workspace", Password: "workspace", DBName: "workspace"}
		if cfg != want {
			t.Fatalf("expected %#v, got %#v", want, cfg)
		}
	})

	t.Run("respects TEST_DB_PORT environment variable", func(t *testing.T) {
		t.Setenv("TEST_DB_HOST", "postgres")
		t.Setenv("TEST_DB_PORT", "5432")
		cfg := DefaultTestDBConfig()
		if cfg.Host != "postgres" || cfg.Port != "5432" {
			t.Fatalf("expected postgres:5432, got %s:%s", cfg.Host, cfg.Port)
		}
	})
}

func TestTestDBConfig_DSN(t *testing.T) {
	t.Setenv("DB_SSL_MODE", "")
	cfg := TestDBConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "n"}
	if got := cfg.DSN(); got != "postgres://u:p@db:5432/n?sslmode=disable" {
		t.Fatalf("unexpected DSN %q", got)
	}
	if got := withSearchPath(cfg.DSN(), "t_1"); got != "postgres://u:p@db:5432/n?search_path=t_1%2Cpublic&sslmode=disable" {
		t.Fatalf("unexpected DSN with search_path %q", got)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("X_FLAG", " Yes ")
	if !envBool("X_FLAG") {
		t.Fatal("expected truthy")
	}
	t.Setenv("X_FLAG", "0")
	if envBool("X_FLAG") {
		t.Fatal("expected falsy")
	}
}
