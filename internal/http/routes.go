package httpx

import (
	"log/slog"
	"net/http"

	"github.com/tenantdesk/workspace-shell/internal/ports"
)

// Engine is everything the router needs from the resolution engine.
type Engine interface {
	SessionEngine
	SignInRecorder
}

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Engine       Engine
	Identity     ports.IdentityProvider // Optional: enables /auth routes
	CookieDomain string
	LogoutURL    string
	Health       map[string]HealthCheck // Readiness probes served on /readyz
	Logger       *slog.Logger           // Logger for request errors (optional)
}

// NewRouter creates and configures the BFF router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()
	device := Device(services.CookieDomain)

	sessions := &SessionHandlers{Engine: services.Engine, Logger: services.Logger}
	registerSessionRoutes(mux, sessions, device)

	if services.Identity != nil {
		authHandlers := &AuthHandlers{
			Provider:     services.Identity,
			Sessions:     services.Engine,
			CookieDomain: services.CookieDomain,
			LogoutURL:    services.LogoutURL,
			Logger:       services.Logger,
		}
		registerAuthRoutes(mux, authHandlers, device)
	}

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("GET /readyz", readinessHandler(services.Health))

	return RequestID(mux)
}

func registerSessionRoutes(mux *http.ServeMux, h *SessionHandlers, device func(http.Handler) http.Handler) {
	e := h.Engine
	routes := map[string]http.HandlerFunc{
		"GET /v1/session:resolve":                h.Resolve,
		"GET /v1/session":                        h.Current,
		"POST /v1/session:selectTenant":          h.SelectTenant,
		"POST /v1/session:switchWorkspace":       h.Action(e.SwitchWorkspace),
		"POST /v1/session:openAdmin":             h.Action(e.OpenAdmin),
		"POST /v1/session:closeAdmin":            h.Action(e.CloseAdmin),
		"POST /v1/session:openMarketplace":       h.Action(e.OpenMarketplace),
		"POST /v1/session:startOnboarding":       h.Action(e.StartOnboarding),
		"POST /v1/session:startBuilderInterview": h.Action(e.StartBuilderInterview),
		"POST /v1/session:completeOnboarding":    h.CompleteOnboarding,
		"POST /v1/session:signOut":               h.Action(e.SignOut),
		"POST /v1/session:discover":              h.Discover,
	}
	for pattern, handler := range routes {
		mux.Handle(pattern, device(handler))
	}
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers, device func(http.Handler) http.Handler) {
	mux.Handle("GET /auth/login", http.HandlerFunc(h.Login))
	mux.Handle("GET /auth/callback", device(http.HandlerFunc(h.Callback)))
	mux.Handle("POST /auth/logout", device(http.HandlerFunc(h.Logout)))
}
