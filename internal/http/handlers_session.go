package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	domainauth "github.com/tenantdesk/workspace-shell/internal/domain/auth"
	"github.com/tenantdesk/workspace-shell/internal/domain/workspace"
	apperrors "github.com/tenantdesk/workspace-shell/internal/errors"
	"github.com/tenantdesk/workspace-shell/internal/ports"
	"github.com/tenantdesk/workspace-shell/internal/service"
)

// SessionEngine is the slice of the resolution engine the session API drives.
type SessionEngine interface {
	Boot(ctx context.Context, deviceID, rawURL string) (service.BootResult, error)
	View(ctx context.Context, deviceID string) (workspace.Outcome, error)
	SelectTenant(ctx context.Context, deviceID, tenantID string) (workspace.Outcome, error)
	SwitchWorkspace(ctx context.Context, deviceID string) (workspace.Outcome, error)
	OpenAdmin(ctx context.Context, deviceID string) (workspace.Outcome, error)
	CloseAdmin(ctx context.Context, deviceID string) (workspace.Outcome, error)
	OpenMarketplace(ctx context.Context, deviceID string) (workspace.Outcome, error)
	StartOnboarding(ctx context.Context, deviceID string) (workspace.Outcome, error)
	StartBuilderInterview(ctx context.Context, deviceID string) (workspace.Outcome, error)
	CompleteOnboarding(ctx context.Context, deviceID string, req ports.ClaimTenantRequest) (workspace.Outcome, error)
	SignOut(ctx context.Context, deviceID string) (workspace.Outcome, error)
	SignedIn(ctx context.Context, deviceID string, creds domainauth.Credentials) error
	RecordDiscovery(ctx context.Context, deviceID string, dc workspace.DiscoveredContext) error
}

var errNoDevice = errors.New("device id missing from request context")

// SessionHandlers serves the per-device resolution and view transitions.
type SessionHandlers struct {
	Engine SessionEngine
	Logger *slog.Logger
}

func (h *SessionHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *SessionHandlers) device(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := DeviceFromContext(r.Context())
	if !ok {
		WriteAppError(w, r, h.logger(), errNoDevice)
	}
	return id, ok
}

// Resolve runs the boot resolution for the calling device.
// GET /v1/session:resolve?location=<browser URL> or with the handoff params inline.
func (h *SessionHandlers) Resolve(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.device(w, r)
	if !ok {
		return
	}
	res, err := h.Engine.Boot(r.Context(), deviceID, landingURL(r))
	if err != nil {
		WriteAppError(w, r, h.logger(), err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// landingURL is the URL the browser landed on. Clients either pass it whole
// in the location param or forward its query string to the resolve call.
func landingURL(r *http.Request) string {
	q := r.URL.Query()
	if loc := q.Get("location"); loc != "" {
		return loc
	}
	u := url.URL{Path: "/", RawQuery: r.URL.RawQuery}
	return u.String()
}

// Current returns the device's current view.
// GET /v1/session.
func (h *SessionHandlers) Current(w http.ResponseWriter, r *http.Request) {
	h.outcome(w, r, h.Engine.View)
}

type selectTenantRequest struct {
	TenantID string `json:"tenantId"`
}

// SelectTenant picks a tenant from the hub.
// POST /v1/session:selectTenant {"tenantId": "..."}.
func (h *SessionHandlers) SelectTenant(w http.ResponseWriter, r *http.Request) {
	var req selectTenantRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	h.outcome(w, r, func(ctx context.Context, deviceID string) (workspace.Outcome, error) {
		return h.Engine.SelectTenant(ctx, deviceID, req.TenantID)
	})
}

// CompleteOnboarding finishes manual onboarding, claiming a tenant when none is selected.
// POST /v1/session:completeOnboarding {"companyName": "...", "vertical": "...", "jurisdiction": "..."}.
func (h *SessionHandlers) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	var req ports.ClaimTenantRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	h.outcome(w, r, func(ctx context.Context, deviceID string) (workspace.Outcome, error) {
		return h.Engine.CompleteOnboarding(ctx, deviceID, req)
	})
}

// Discover records the intent a conversational surface inferred.
// POST /v1/session:discover {"vertical": "...", "intent": "personal|business", ...}.
func (h *SessionHandlers) Discover(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.device(w, r)
	if !ok {
		return
	}
	var dc workspace.DiscoveredContext
	if !DecodeJSON(w, r, &dc) {
		return
	}
	if err := h.Engine.RecordDiscovery(r.Context(), deviceID, dc); err != nil {
		WriteAppError(w, r, h.logger(), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Action adapts a body-less engine transition into a handler.
func (h *SessionHandlers) Action(fn func(ctx context.Context, deviceID string) (workspace.Outcome, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.outcome(w, r, fn)
	}
}

func (h *SessionHandlers) outcome(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, deviceID string) (workspace.Outcome, error),
) {
	deviceID, ok := h.device(w, r)
	if !ok {
		return
	}
	o, err := fn(r.Context(), deviceID)
	if err != nil {
		if apperrors.IsUnauthorized(err) {
			h.logger().InfoContext(r.Context(), "session expired during action", "device_id", deviceID)
		}
		WriteAppError(w, r, h.logger(), err)
		return
	}
	WriteJSON(w, http.StatusOK, o)
}
