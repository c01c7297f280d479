package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/tenantdesk/workspace-shell/config"
	"github.com/tenantdesk/workspace-shell/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger(os.Getenv("LOG_LEVEL"))
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	cfgPtr := &cfg

	logger = bootstrap.InitLogger(cfg.LogLevel)
	logStartupInfo(ctx, logger, cfgPtr)

	if err = bootstrap.ValidateConfig(cfgPtr); err != nil {
		return err
	}

	db, redisClient, err := initInfrastructure(ctx, cfgPtr, logger)
	if err != nil {
		return err
	}
	defer closeInfrastructure(ctx, logger, db, redisClient)

	if db != nil {
		if cfg.Postgres.RunMigrationsOnStart {
			if err = bootstrap.RunMigrations(ctx, db, logger); err != nil {
				return err
			}
		} else {
			logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
		}
	}

	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:      cfgPtr,
		DB:          db,
		RedisClient: redisClient,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	if client := services.Observability.MetricsClient; client != nil {
		defer func() {
			if cerr := client.Close(); cerr != nil {
				logger.WarnContext(ctx, "close statsd client failed", "error", cerr)
			}
		}()
	}

	return bootstrap.RunServicesWithShutdown(&bootstrap.ServiceOrchestrationConfig{
		Config:      cfgPtr,
		Services:    services,
		DB:          db,
		RedisClient: redisClient,
		Logger:      logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting workspace shell",
		"addr", cfg.HTTP.Addr,
		"auth_mode", string(cfg.Auth.Mode),
		"storage_driver", string(cfg.Storage.Driver),
		"backend", cfg.Backend.BaseURL,
		"dev", cfg.IsDev)
}

// initInfrastructure connects only the stores the configured driver uses.
// Either return value may be nil.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func initInfrastructure(
	ctx context.Context,
	cfg *config.AppConfig,
	logger *slog.Logger,
) (*sql.DB, redis.UniversalClient, error) {
	var db *sql.DB
	if cfg.NeedsPostgres() {
		conn, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
			DBConfig: cfg.Postgres,
			Logger:   logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect db: %w", err)
		}
		db = conn
	}

	if !cfg.NeedsRedis() {
		return db, nil, nil
	}

	redisClient, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
		RedisConfig: cfg.Redis,
		Logger:      logger,
	})
	if err != nil {
		if db != nil {
			if cerr := db.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close database after redis connect failure", "error", cerr)
				return nil, nil, fmt.Errorf("connect redis: %w", errors.Join(err, fmt.Errorf("close database: %w", cerr)))
			}
		}
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return db, redisClient, nil
}

func closeInfrastructure(ctx context.Context, logger *slog.Logger, db *sql.DB, redisClient redis.UniversalClient) {
	if db != nil {
		if cerr := db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database failed", "error", cerr)
		}
	}
	if redisClient != nil {
		if cerr := redisClient.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close redis failed", "error", cerr)
		}
	}
}
