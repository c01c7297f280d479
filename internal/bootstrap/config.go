package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/tenantdesk/workspace-shell/config"
)

// InitLogger initializes the structured logger at the given level.
func InitLogger(level string) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps debug|info|warn|error onto a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// ValidateConfig rejects configurations the service cannot start with.
func ValidateConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if cfg.Backend.BaseURL == "" {
		return errors.New("BACKEND_BASE_URL is required")
	}
	if cfg.Auth.Mode == config.AuthModeMock && !cfg.IsDev {
		return errors.New("AUTH_MODE=mock requires DEV=true")
	}
	if cfg.Auth.Mode == config.AuthModeOAuth && cfg.Auth.OAuth.DiscoveryURL == "" {
		return errors.New("AUTH_MODE=oauth requires OAUTH_DISCOVERY_URL")
	}
	return nil
}
