// Package reaper runs the expired device-state purger.
package reaper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tenantdesk/workspace-shell/config"
	"github.com/tenantdesk/workspace-shell/internal/adapters/postgres"
	"github.com/tenantdesk/workspace-shell/internal/observability/statsd"
	"github.com/tenantdesk/workspace-shell/internal/ports"
	"github.com/tenantdesk/workspace-shell/internal/service"
)

// Runner wires a ReaperService against the device_state table and runs it.
type Runner struct {
	reaper *service.ReaperService
	logger *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB      *sql.DB
	Config  config.StorageConfig
	Logger  *slog.Logger
	Metrics statsd.Sink

	// Store overrides the postgres store built from DB.
	Store ports.ExpiringStore
}

// NewRunner creates a new reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && opts.Store == nil {
		return nil, errors.New("database connection is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	store := opts.Store
	if store == nil {
		pg, err := postgres.NewKVStore(postgres.KVStoreOptions{DB: opts.DB, Prefix: opts.Config.KeyPrefix})
		if err != nil {
			return nil, fmt.Errorf("build device state store: %w", err)
		}
		store = pg
	}

	reaper, err := service.NewReaperService(service.ReaperServiceOptions{
		Store:     store,
		Interval:  opts.Config.PurgeInterval,
		BatchSize: opts.Config.PurgeBatchSize,
		Logger:    opts.Logger,
		Metrics:   opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}

	return &Runner{reaper: reaper, logger: opts.Logger}, nil
}

// Run starts the purge loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper runner")
	return r.reaper.Run(ctx)
}
