package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/tenantdesk/workspace-shell/config"
	"github.com/tenantdesk/workspace-shell/internal/bootstrap"
	"github.com/tenantdesk/workspace-shell/internal/service"
)

// infra holds the connections a command opened; Close releases them.
type infra struct {
	DB    *sql.DB
	Redis redis.UniversalClient
}

func (i *infra) Close(logger *slog.Logger) {
	if i.DB != nil {
		if err := i.DB.Close(); err != nil {
			logger.Warn("db close failed", "error", err)
		}
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			logger.Warn("redis close failed", "error", err)
		}
	}
}

// connectInfra opens only what the configured storage driver needs.
func connectInfra(logger *slog.Logger, cfg *config.AppConfig) (*infra, error) {
	out := &infra{}
	if cfg.NeedsPostgres() {
		db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("connect db: %w", err)
		}
		out.DB = db
	}
	if cfg.NeedsRedis() {
		client, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{RedisConfig: cfg.Redis, Logger: logger})
		if err != nil {
			out.Close(logger)
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		out.Redis = client
	}
	return out, nil
}

// buildEngine wires the same engine the service runs, against the configured stores.
func buildEngine(cmdCtx *commandContext) (*service.Engine, *infra, error) {
	cfg := cmdCtx.Config
	if err := bootstrap.ValidateConfig(&cfg); err != nil {
		return nil, nil, err
	}
	conns, err := connectInfra(cmdCtx.Logger, &cfg)
	if err != nil {
		return nil, nil, err
	}
	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:      &cfg,
		DB:          conns.DB,
		RedisClient: conns.Redis,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		conns.Close(cmdCtx.Logger)
		return nil, nil, err
	}
	if services.Engine == nil {
		conns.Close(cmdCtx.Logger)
		return nil, nil, errors.New("engine not configured")
	}
	return services.Engine, conns, nil
}
