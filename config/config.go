package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Authentication configuration
//   - backend.go: Workspace backend API configuration
//   - storage.go: Persisted identity store configuration
//   - database.go: Database and cache configuration
//   - http.go: HTTP server configuration
//   - engine.go: View resolution engine configuration
type AppConfig struct {
	// IsDev controls development mode behavior.
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Authentication configuration
	Auth AuthConfig

	// Workspace backend configuration
	Backend BackendConfig `envPrefix:"BACKEND_"`

	// Persisted identity store configuration
	Storage StorageConfig `envPrefix:"STORAGE_"`

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Engine configuration
	Engine EngineConfig `envPrefix:"ENGINE_"`

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Postgres.Sanitize()
	c.Redis.Sanitize()
	c.Backend.Sanitize()
	c.Storage.Sanitize()
	c.Engine.Sanitize()
	c.Observability.Sanitize()

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = "info"
	}

	// Check NODE_ENV for dev mode
	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// NeedsRedis reports whether any configured component requires a Redis client.
func (c *AppConfig) NeedsRedis() bool {
	return c.Storage.Driver == StorageDriverRedis
}

// NeedsPostgres reports whether any configured component requires a Postgres connection.
func (c *AppConfig) NeedsPostgres() bool {
	return c.Storage.Driver == StorageDriverPostgres
}
