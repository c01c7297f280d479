package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domainauth "github.com/tenantdesk/workspace-shell/internal/domain/auth"
	"github.com/tenantdesk/workspace-shell/internal/domain/workspace"
	apperrors "github.com/tenantdesk/workspace-shell/internal/errors"
	"github.com/tenantdesk/workspace-shell/internal/ports"
	"github.com/tenantdesk/workspace-shell/internal/store"
)

// sideEffect runs after a transition was accepted and before the new view is
// saved. It may adjust the outcome.
type sideEffect func(ctx context.Context, wctx *store.WorkspaceContext, o *workspace.Outcome) error

// act loads the device's view, applies ev, runs effect and saves the result.
func (e *Engine) act(
	ctx context.Context,
	deviceID string,
	ev workspace.Event,
	effect sideEffect,
) (workspace.Outcome, error) {
	wctx := e.stores.For(deviceID)
	cur, ok, err := wctx.ViewState(ctx)
	if err != nil {
		return workspace.Outcome{}, err
	}
	if !ok {
		cur = workspace.Outcome{View: workspace.ViewLoading}
	}

	to, err := workspace.Transition(cur.View, ev)
	if err != nil {
		return cur, apperrors.Wrap(err, apperrors.ErrCodeValidation, err.Error())
	}

	next := workspace.Outcome{View: to, Rule: workspace.RuleUserAction, TenantID: cur.TenantID}
	if effect != nil {
		if err := effect(ctx, wctx, &next); err != nil {
			return cur, err
		}
	}
	if err := wctx.SaveViewState(ctx, next); err != nil {
		return cur, err
	}
	e.logger.InfoContext(ctx, "view changed",
		"device_id", deviceID, "event", ev.Kind, "from", cur.View, "to", next.View)
	return next, nil
}

// requireToken returns the device's identity token or an Unauthorized error.
func requireToken(ctx context.Context, wctx *store.WorkspaceContext) (string, error) {
	token, err := wctx.IdentityToken(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", apperrors.Unauthorized("not signed in")
	}
	return token, nil
}

// onUnauthorized clears the identity when the backend rejected the token.
func (e *Engine) onUnauthorized(ctx context.Context, wctx *store.WorkspaceContext, err error) error {
	if !apperrors.IsUnauthorized(err) {
		return err
	}
	if clearErr := wctx.ClearIdentity(ctx); clearErr != nil {
		e.logger.WarnContext(ctx, "clear rejected identity failed", "device_id", wctx.DeviceID(), "error", clearErr)
	}
	if saveErr := wctx.SaveViewState(ctx, workspace.Outcome{
		View: workspace.ViewLogin,
		Rule: workspace.RuleUnauthorized,
	}); saveErr != nil {
		e.logger.WarnContext(ctx, "persist login view failed", "device_id", wctx.DeviceID(), "error", saveErr)
	}
	return err
}

// SelectTenant switches the device to tenantID. The caller must be a member.
func (e *Engine) SelectTenant(ctx context.Context, deviceID, tenantID string) (workspace.Outcome, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return workspace.Outcome{}, apperrors.ValidationField("tenantId", "tenant id is required")
	}
	ev := workspace.Event{Kind: workspace.EventSelectTenant}
	return e.act(ctx, deviceID, ev, func(ctx context.Context, wctx *store.WorkspaceContext, o *workspace.Outcome) error {
		token, err := requireToken(ctx, wctx)
		if err != nil {
			return err
		}
		ms, err := e.api.FetchMemberships(ctx, token)
		if err != nil {
			return e.onUnauthorized(ctx, wctx, err)
		}
		if !workspace.HasMembership(ms.Memberships, tenantID) {
			return apperrors.ValidationField("tenantId", "not a member of tenant "+tenantID)
		}
		if err := wctx.SaveSelection(ctx, tenantID, ms.Tenants[tenantID].Normalized()); err != nil {
			return err
		}
		o.TenantID = tenantID
		return nil
	})
}

// SwitchWorkspace returns to the workspace picker.
func (e *Engine) SwitchWorkspace(ctx context.Context, deviceID string) (workspace.Outcome, error) {
	return e.act(ctx, deviceID, workspace.Event{Kind: workspace.EventSwitchWorkspace},
		func(_ context.Context, _ *store.WorkspaceContext, o *workspace.Outcome) error {
			o.TenantID = ""
			return nil
		})
}

// OpenAdmin opens the admin view of the current tenant.
func (e *Engine) OpenAdmin(ctx context.Context, deviceID string) (workspace.Outcome, error) {
	return e.act(ctx, deviceID, workspace.Event{Kind: workspace.EventOpenAdmin}, nil)
}

// CloseAdmin returns from admin to the app.
func (e *Engine) CloseAdmin(ctx context.Context, deviceID string) (workspace.Outcome, error) {
	return e.act(ctx, deviceID, workspace.Event{Kind: workspace.EventCloseAdmin}, nil)
}

// OpenMarketplace opens the marketplace.
func (e *Engine) OpenMarketplace(ctx context.Context, deviceID string) (workspace.Outcome, error) {
	return e.act(ctx, deviceID, workspace.Event{Kind: workspace.EventOpenMarketplace}, nil)
}

// StartOnboarding opens manual onboarding.
func (e *Engine) StartOnboarding(ctx context.Context, deviceID string) (workspace.Outcome, error) {
	return e.act(ctx, deviceID, workspace.Event{Kind: workspace.EventStartOnboarding}, nil)
}

// StartBuilderInterview opens the conversational builder.
func (e *Engine) StartBuilderInterview(ctx context.Context, deviceID string) (workspace.Outcome, error) {
	return e.act(ctx, deviceID, workspace.Event{Kind: workspace.EventStartBuilderInterview}, nil)
}

// CompleteOnboarding finishes onboarding. Without a selected tenant one is
// claimed from the backend first.
func (e *Engine) CompleteOnboarding(
	ctx context.Context,
	deviceID string,
	req ports.ClaimTenantRequest,
) (workspace.Outcome, error) {
	req.CompanyName = strings.TrimSpace(req.CompanyName)
	req.Vertical = workspace.CanonicalVertical(req.Vertical)
	req.Jurisdiction = strings.TrimSpace(req.Jurisdiction)

	ev := workspace.Event{Kind: workspace.EventCompleteOnboarding}
	return e.act(ctx, deviceID, ev, func(ctx context.Context, wctx *store.WorkspaceContext, o *workspace.Outcome) error {
		tenantID, err := wctx.SelectedTenant(ctx)
		if err != nil {
			return err
		}
		if tenantID == "" {
			if req.CompanyName == "" {
				return apperrors.ValidationField("companyName", "company name is required")
			}
			token, err := requireToken(ctx, wctx)
			if err != nil {
				return err
			}
			tenantID, err = e.api.ClaimTenant(ctx, token, req)
			if err != nil {
				return e.onUnauthorized(ctx, wctx, err)
			}
		}
		meta := workspace.TenantMetadata{
			Vertical:     req.Vertical,
			Jurisdiction: req.Jurisdiction,
			CompanyName:  req.CompanyName,
		}
		if err := wctx.SaveSelection(ctx, tenantID, meta); err != nil {
			return err
		}
		if err := wctx.CompleteOnboarding(ctx); err != nil {
			return err
		}
		o.TenantID = tenantID
		o.OnboardingRequired = false
		return nil
	})
}

// SignOut clears the device's identity and lands it on login. Live
// resolutions for the device are told through the auth bus.
func (e *Engine) SignOut(ctx context.Context, deviceID string) (workspace.Outcome, error) {
	return e.act(ctx, deviceID, workspace.Event{Kind: workspace.EventSignedOut},
		func(ctx context.Context, wctx *store.WorkspaceContext, o *workspace.Outcome) error {
			w, err := e.watcher(wctx)
			if err != nil {
				return err
			}
			if err := w.SignOut(ctx); err != nil {
				return err
			}
			o.TenantID = ""
			return nil
		})
}

// SignedIn stores credentials from an interactive sign-in and moves a device
// sitting on login back to loading so the next resolution runs fresh.
func (e *Engine) SignedIn(ctx context.Context, deviceID string, creds domainauth.Credentials) error {
	if creds.IDToken == "" {
		return apperrors.New(apperrors.ErrCodeAuthFailure, "sign-in returned no identity token")
	}
	wctx := e.stores.For(deviceID)
	w, err := e.watcher(wctx)
	if err != nil {
		return err
	}
	if err := w.SignedIn(ctx, creds); err != nil {
		return err
	}

	_, err = e.act(ctx, deviceID, workspace.Event{Kind: workspace.EventSignedIn}, nil)
	if errors.Is(err, workspace.ErrInvalidTransition) {
		// Not on login (first visit or already resolved); the next boot resolves anyway.
		return nil
	}
	if err != nil {
		return fmt.Errorf("move to loading: %w", err)
	}
	return nil
}

// RecordDiscovery stores the intent a conversational surface inferred, for
// auto-provisioning on the device's next resolution.
func (e *Engine) RecordDiscovery(ctx context.Context, deviceID string, dc workspace.DiscoveredContext) error {
	dc.Vertical = strings.TrimSpace(dc.Vertical)
	dc.Intent = strings.ToLower(strings.TrimSpace(dc.Intent))
	if dc.Vertical == "" && dc.Intent == "" {
		return apperrors.Validation("vertical or intent is required")
	}
	if dc.Intent != "" && dc.Intent != workspace.IntentPersonal && dc.Intent != workspace.IntentBusiness {
		return apperrors.ValidationField("intent", "intent must be personal or business")
	}
	return e.stores.For(deviceID).SetDiscoveredContext(ctx, dc)
}
