package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/tenantdesk/workspace-shell/config"
	"github.com/tenantdesk/workspace-shell/internal/migrate"
)

// DatabaseConfig contains configuration for database connections.
type DatabaseConfig struct {
	DBConfig    config.DBConfig
	RedisConfig config.RedisConfig
	Logger      *slog.Logger
}

// postgresDSN renders cfg as a URL so credentials with reserved characters survive.
func postgresDSN(cfg config.DBConfig) string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Name,
	}
	q := u.Query()
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	if cfg.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// ConnectDB opens the pgx-backed pool for the durable store and pings it.
func ConnectDB(cfg DatabaseConfig) (*sql.DB, error) {
	dbCfg := cfg.DBConfig
	dbCfg.Sanitize()

	db, err := sql.Open("pgx", postgresDSN(dbCfg))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(dbCfg.MaxOpenConns)
	db.SetMaxIdleConns(dbCfg.MaxIdleConns)
	db.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), dbCfg.ConnectTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		if closeErr := db.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close database connection: %w", closeErr))
		}
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("database connected",
			"host", dbCfg.Host,
			"port", dbCfg.Port,
			"database", dbCfg.Name,
			"max_open_conns", dbCfg.MaxOpenConns,
		)
	}
	return db, nil
}

// RunMigrations applies the device_state schema.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	applied, err := migrate.Run(ctx, db)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	if logger != nil {
		logger.InfoContext(ctx, "database migrations completed", "applied", applied)
	}
	return nil
}
