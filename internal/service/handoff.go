package service

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/tenantdesk/workspace-shell/internal/domain/workspace"
	"github.com/tenantdesk/workspace-shell/internal/store"
)

// Deep-link query parameters consumed once at load.
const (
	ParamSignInToken = "token"
	ParamSessionID   = "sid"
	ParamTenantID    = "tid"
	ParamPage        = "page"
)

var handoffParams = []string{ParamSignInToken, ParamSessionID, ParamTenantID, ParamPage}

// ParseHandoff extracts the one-shot handoff parameters from rawURL and
// returns the URL to show afterwards. When any handoff parameter is present
// the whole query is dropped; the path and fragment are kept. Malformed
// parameters leave their field unset without discarding the others. A URL
// that does not parse has its query cut by hand.
func ParseHandoff(rawURL string) (workspace.HandoffContext, string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		rest, fragment, hasFragment := strings.Cut(rawURL, "#")
		base, rawQuery, hasQuery := strings.Cut(rest, "?")
		if !hasQuery {
			return workspace.HandoffContext{}, rawURL
		}
		h := handoffFromQuery(rawQuery)
		if hasFragment {
			base += "#" + fragment
		}
		return h, base
	}

	h := handoffFromQuery(u.RawQuery)
	if !hasHandoffParam(u.RawQuery) {
		return h, rawURL
	}
	u.RawQuery = ""
	u.ForceQuery = false
	return h, u.String()
}

// handoffFromQuery reads the handoff fields from rawQuery. ParseQuery keeps
// every pair it could decode even when it reports an error.
func handoffFromQuery(rawQuery string) workspace.HandoffContext {
	q, _ := url.ParseQuery(rawQuery)
	h := workspace.HandoffContext{
		SignInToken:         strings.TrimSpace(q.Get(ParamSignInToken)),
		SessionID:           strings.TrimSpace(q.Get(ParamSessionID)),
		PreselectedTenantID: strings.TrimSpace(q.Get(ParamTenantID)),
	}
	if page := strings.TrimSpace(q.Get(ParamPage)); page != "" {
		h.RedirectPage = workspace.MapRedirectPage(page)
	}
	return h
}

// hasHandoffParam reports whether any handoff key appears in rawQuery,
// including keys whose value fails to decode.
func hasHandoffParam(rawQuery string) bool {
	for _, pair := range strings.Split(rawQuery, "&") {
		key, _, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if slices.Contains(handoffParams, key) {
			return true
		}
	}
	return false
}

// ApplyHandoff writes the parsed markers into the device's storage. It must
// run before the auth watcher reads the sign-in token.
func ApplyHandoff(ctx context.Context, wctx *store.WorkspaceContext, h workspace.HandoffContext) error {
	if h.Empty() {
		return nil
	}
	if h.SignInToken != "" {
		if err := wctx.SetSignInToken(ctx, h.SignInToken); err != nil {
			return fmt.Errorf("store sign-in token: %w", err)
		}
	}
	if h.SessionID != "" {
		if err := wctx.SetChatSessionID(ctx, h.SessionID); err != nil {
			return fmt.Errorf("store chat session: %w", err)
		}
	}
	if h.PreselectedTenantID != "" {
		if err := wctx.SetPreselectedTenant(ctx, h.PreselectedTenantID); err != nil {
			return fmt.Errorf("store preselected tenant: %w", err)
		}
	}
	if h.RedirectPage != "" {
		if err := wctx.SetRedirectPage(ctx, h.RedirectPage); err != nil {
			return fmt.Errorf("store redirect page: %w", err)
		}
	}
	return nil
}
