package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	domainauth "github.com/tenantdesk/workspace-shell/internal/domain/auth"
	"github.com/tenantdesk/workspace-shell/internal/domain/workspace"
	apperrors "github.com/tenantdesk/workspace-shell/internal/errors"
	"github.com/tenantdesk/workspace-shell/internal/ports"
)

// SignInRecorder receives the credentials of a completed interactive sign-in.
type SignInRecorder interface {
	SignedIn(ctx context.Context, deviceID string, creds domainauth.Credentials) error
	SignOut(ctx context.Context, deviceID string) (workspace.Outcome, error)
}

// AuthHandlers provides HTTP handlers for interactive sign-in from the login view.
type AuthHandlers struct {
	Provider     ports.IdentityProvider
	Sessions     SignInRecorder
	CookieDomain string
	LogoutURL    string // Optional: IdP end-session URL visited after sign-out
	Logger       *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *AuthHandlers) cookies() cookieWriter {
	return cookieWriter{domain: h.CookieDomain}
}

// Login handles the login initiation endpoint.
// GET /auth/login?redirect_uri=<optional_redirect>.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	redirectURI := safeRedirectPath(r.URL.Query().Get("redirect_uri"))

	authURL, state, nonce, err := h.Provider.Begin(r.Context(), ports.BeginInput{RedirectURL: redirectURI})
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "login_failed",
			Err:     err,
		})
		return
	}

	c := h.cookies()
	c.set(w, r, oauthStateCookie, state, oauthCookieMaxAge)
	c.set(w, r, oauthNonceCookie, nonce, oauthCookieMaxAge)
	c.set(w, r, postLoginCookie, redirectURI, oauthCookieMaxAge)

	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback handles the OAuth callback endpoint and stores the resulting
// identity for the calling device.
// GET /auth/callback?code=<code>&state=<state>.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := DeviceFromContext(r.Context())
	if !ok {
		WriteAppError(w, r, h.logger(), errNoDevice)
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_code",
			Err:     errors.New("authorization code is required"),
		})
		return
	}
	if state == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_state",
			Err:     errors.New("state parameter is required"),
		})
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value != state {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_state",
			Err:     errors.New("invalid or missing state parameter"),
		})
		return
	}
	nonceCookie, err := r.Cookie(oauthNonceCookie)
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_nonce",
			Err:     errors.New("missing nonce parameter"),
		})
		return
	}

	creds, err := h.Provider.Exchange(r.Context(), ports.ExchangeInput{
		Code:  code,
		State: state,
		Nonce: nonceCookie.Value,
	})
	if err != nil {
		h.logger().WarnContext(r.Context(), "sign-in exchange failed", "device_id", deviceID, "error", err)
		WriteAppError(w, r, h.logger(), apperrors.Wrap(err, apperrors.ErrCodeAuthFailure, "sign-in failed"))
		return
	}
	if err := h.Sessions.SignedIn(r.Context(), deviceID, creds); err != nil {
		WriteAppError(w, r, h.logger(), err)
		return
	}

	c := h.cookies()
	c.clear(w, r, oauthStateCookie)
	c.clear(w, r, oauthNonceCookie)
	http.Redirect(w, r, h.postLoginRedirect(w, r), http.StatusFound)
}

// Logout signs the device out and sends the browser to the IdP end-session
// page when one is configured.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := DeviceFromContext(r.Context())
	if !ok {
		WriteAppError(w, r, h.logger(), errNoDevice)
		return
	}
	o, err := h.Sessions.SignOut(r.Context(), deviceID)
	if err != nil {
		WriteAppError(w, r, h.logger(), err)
		return
	}

	target := "/"
	if h.LogoutURL != "" {
		target = h.LogoutURL
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		WriteJSON(w, http.StatusOK, map[string]string{
			"view":        string(o.View),
			"redirect_to": target,
		})
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// postLoginRedirect returns the post-login redirect URL and clears the cookie.
func (h *AuthHandlers) postLoginRedirect(w http.ResponseWriter, r *http.Request) string {
	redirectURI := "/"
	if c, err := r.Cookie(postLoginCookie); err == nil {
		redirectURI = safeRedirectPath(c.Value)
		h.cookies().clear(w, r, postLoginCookie)
	}
	return redirectURI
}
