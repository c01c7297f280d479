package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tenantdesk/workspace-shell/config"
	"github.com/tenantdesk/workspace-shell/internal/adapters/backend"
	"github.com/tenantdesk/workspace-shell/internal/adapters/reaper"
	httpx "github.com/tenantdesk/workspace-shell/internal/http"
	"github.com/tenantdesk/workspace-shell/internal/observability/statsd"
	"github.com/tenantdesk/workspace-shell/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Engine        *service.Engine
	Identity      Identity
	Storage       Storage
	Observability ObservabilityContainer
	Health        map[string]httpx.HealthCheck
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink   statsd.Sink
	MetricsClient *statsd.Client
	MetricsConfig config.ObservabilityMetricsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	out := ObservabilityContainer{MetricsConfig: cfg.Metrics}
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.Prefix,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			out.MetricsClient = client
			out.MetricsSink = client
		}
	}
	return out
}

// NewServices wires storage, identity, the backend client and the engine.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	obs := buildObservability(logger, cfg.Observability)

	storage, err := BuildStorage(StorageDeps{
		Config:      cfg.Storage,
		DB:          deps.DB,
		RedisClient: deps.RedisClient,
		Logger:      logger,
	})
	if err != nil {
		return ServiceContainer{}, err
	}

	identity, err := BuildIdentityProvider(IdentityConfig{Auth: cfg.Auth, Logger: logger})
	if err != nil {
		return ServiceContainer{}, err
	}

	api, err := backend.NewClient(backend.Config{
		BaseURL:    cfg.Backend.BaseURL,
		Timeout:    cfg.Backend.Timeout,
		RetryLimit: cfg.Backend.RetryLimit,
		Logger:     logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("backend client: %w", err)
	}

	engine, err := service.NewEngine(service.EngineOptions{
		Stores:   storage.Factory,
		Identity: identity.Provider,
		API:      api,
		Bus:      BuildAuthBus(deps.RedisClient, cfg.Storage.KeyPrefix, logger),
		Config:   cfg.Engine,
		Logger:   logger,
		Metrics:  obs.MetricsSink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("engine: %w", err)
	}

	return ServiceContainer{
		Engine:        engine,
		Identity:      identity,
		Storage:       storage,
		Observability: obs,
		Health:        healthChecks(deps.DB, deps.RedisClient),
	}, nil
}

// healthChecks returns a readiness probe for each connection in use.
func healthChecks(db *sql.DB, client redis.UniversalClient) map[string]httpx.HealthCheck {
	checks := make(map[string]httpx.HealthCheck, 2)
	if db != nil {
		checks["postgres"] = db.PingContext
	}
	if client != nil {
		checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}
	return checks
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx    context.Context
	cfg    *ServiceOrchestrationConfig
	logger *slog.Logger
	errCh  chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	name string
	done <-chan struct{}
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				deps.logger.WarnContext(ctx, "dropping background service error",
					"service", descriptor.name, "error", errMsg)
			}
		}
	}()

	deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name)
	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	handles := make([]backgroundServiceHandle, 0, len(services))
	for _, svc := range services {
		handles = append(handles, backgroundServiceHandle{
			name: svc.name,
			done: launchBackground(deps.ctx, deps, svc),
		})
	}
	return handles
}

func newReaperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		name: "reaper",
		start: func(ctx context.Context) error {
			runner, err := reaper.NewRunner(reaper.RunnerOptions{
				DB:      deps.cfg.DB,
				Config:  deps.cfg.Config.Storage,
				Logger:  deps.logger,
				Metrics: deps.cfg.Services.Observability.MetricsSink,
				Store:   deps.cfg.Services.Storage.Expiring,
			})
			if err != nil {
				return err
			}
			return runner.Run(ctx)
		},
	}
}

// buildBackgroundServices lists the loops this configuration needs. Only
// stores without native expiry need the reaper.
func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	var out []backgroundService
	if deps.cfg.Services.Storage.Expiring != nil {
		out = append(out, newReaperBackgroundService(deps))
	}
	return out
}

// errorChannelBufferSize leaves room for the HTTP server, every background
// service and one spare so no sender ever blocks.
func errorChannelBufferSize(background int) int {
	if background < 0 {
		background = 0
	}
	return background + 2
}

// RunServicesWithShutdown starts the HTTP server and background services and
// manages their lifecycle. It blocks until a shutdown signal is received or a
// service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}
	if cfg.Services.Engine == nil {
		return errors.New("service orchestration config missing engine")
	}

	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	deps := &serviceStartupDeps{ctx: serviceCtx, cfg: cfg, logger: logger}
	services := buildBackgroundServices(deps)
	deps.errCh = make(chan error, errorChannelBufferSize(len(services)))

	server := StartHTTPServer(&HTTPServerConfig{
		Config:   cfg.Config,
		Services: cfg.Services,
		Logger:   logger,
		ErrCh:    deps.errCh,
	})
	backgrounds := startBackgroundServices(deps, services)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	return waitForShutdown(shutdownConfig{
		quit:        quit,
		cancel:      cancel,
		errCh:       deps.errCh,
		httpServer:  server,
		httpTimeout: cfg.Config.HTTP.ShutdownTimeout,
		logger:      logger,
		backgrounds: backgrounds,
	})
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	quit        <-chan os.Signal
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	httpTimeout time.Duration
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	select {
	case <-cfg.quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel()
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel()
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(cfg shutdownConfig) error {
	if cfg.httpServer != nil {
		timeout := cfg.httpTimeout
		if timeout <= 0 {
			timeout = shutdownWaitTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: shutdownCtx,
			Server:  cfg.httpServer,
			Logger:  cfg.logger,
		}); err != nil {
			return err
		}
	}

	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
