package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tenantdesk/workspace-shell/config"
	httpx "github.com/tenantdesk/workspace-shell/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
	ErrCh    chan<- error // Optional: receives the listener's failure
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	handler := buildHTTPHandler(logger, routerServices(appCfg, cfg.Services, logger))
	return startServer(serverParams{
		logger:  logger,
		handler: handler,
		http:    appCfg.HTTP,
		errCh:   cfg.ErrCh,
	})
}

func routerServices(cfg *config.AppConfig, services ServiceContainer, logger *slog.Logger) httpx.RouterServices {
	return httpx.RouterServices{
		Engine:       services.Engine,
		Identity:     services.Identity.Provider,
		CookieDomain: httpx.CookieDomain(cfg.HTTP.CookieDomain, cfg.HTTP.BaseURL),
		LogoutURL:    services.Identity.LogoutURL,
		Health:       services.Health,
		Logger:       logger,
	}
}

func buildHTTPHandler(logger *slog.Logger, services httpx.RouterServices) http.Handler {
	// Order: Recover -> Logging -> Router
	h := httpx.NewRouter(services)
	h = httpx.Logging(logger)(h)
	h = httpx.Recover(logger)(h)
	return h
}

type serverParams struct {
	logger  *slog.Logger
	handler http.Handler
	http    config.HTTPConfig
	errCh   chan<- error
}

func startServer(p serverParams) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	addr := p.http.Addr
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      p.handler,
		ReadTimeout:  p.http.ReadTimeout,
		WriteTimeout: p.http.WriteTimeout,
		IdleTimeout:  2 * p.http.WriteTimeout,
	}

	go func() {
		p.logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("HTTP server failed", "error", err)
			if p.errCh != nil {
				select {
				case p.errCh <- fmt.Errorf("http server: %w", err):
				default:
				}
			}
		}
	}()

	return server
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	if err := cfg.Server.Shutdown(cfg.Context); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}
