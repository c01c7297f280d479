package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tenantdesk/workspace-shell/internal/domain/workspace"
	apperrors "github.com/tenantdesk/workspace-shell/internal/errors"
	"github.com/tenantdesk/workspace-shell/internal/observability/requestid"
	"github.com/tenantdesk/workspace-shell/internal/ports"
	"github.com/tenantdesk/workspace-shell/internal/store"
)

// ResolverOptions groups dependencies for Resolver.
type ResolverOptions struct {
	API         ports.WorkspaceAPI // Required: backend membership API
	Provisioner *Provisioner       // Optional: auto-provisioning for empty membership sets
	Logger      *slog.Logger       // Optional: structured logger

	// CommitTimeout bounds the winner's storage writes, which outlive the pass context (default 3s).
	CommitTimeout time.Duration
}

// Resolver runs resolution passes: fetch memberships, apply the tenant
// selection policy, provision when needed, and commit through a latch.
type Resolver struct {
	api           ports.WorkspaceAPI
	provisioner   *Provisioner
	logger        *slog.Logger
	commitTimeout time.Duration
}

// NewResolver constructs a Resolver.
func NewResolver(opts ResolverOptions) (*Resolver, error) {
	if opts.API == nil {
		return nil, errors.New("WorkspaceAPI is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	commitTimeout := opts.CommitTimeout
	if commitTimeout <= 0 {
		commitTimeout = 3 * time.Second
	}
	return &Resolver{
		api:           opts.API,
		provisioner:   opts.Provisioner,
		logger:        logger.With("component", "resolver"),
		commitTimeout: commitTimeout,
	}, nil
}

// PassResult is what one resolution pass produced.
type PassResult struct {
	Outcome   workspace.Outcome
	Committed bool  // this pass won the latch
	Err       error // the failure behind a fallback outcome, if any
}

// effects are the selection writes only the committing pass may apply.
type effects struct {
	selection     *workspace.Selection
	clearIdentity bool
}

// Resolve runs one pass for token. Only the pass that commits the latch
// applies its selection effects; a pass that loses returns the winner's
// outcome. Provisioning writes its selection, clears the discovered context
// and sets the onboarding flag eagerly, before the commit.
func (r *Resolver) Resolve(
	ctx context.Context,
	wctx *store.WorkspaceContext,
	latch *workspace.Latch,
	token string,
) (PassResult, error) {
	ticket, open := latch.Begin()
	if !open {
		o, _ := latch.Outcome()
		return PassResult{Outcome: o}, nil
	}

	ctx, passID := requestid.Ensure(ctx)
	logger := r.logger.With("device_id", wctx.DeviceID(), "pass_id", passID)

	outcome, fx, cause := r.decide(ctx, wctx, token, logger)
	if ctx.Err() != nil {
		// Abandoned passes never commit; the caller decides the fallback.
		return PassResult{Err: ctx.Err()}, nil
	}

	if !latch.Commit(ticket, outcome) {
		winner, _ := latch.Outcome()
		logger.DebugContext(ctx, "pass superseded", "view", outcome.View, "winner", winner.View)
		return PassResult{Outcome: winner, Err: cause}, nil
	}
	logger.InfoContext(ctx, "view resolved",
		"view", outcome.View, "rule", outcome.Rule, "tenant_id", outcome.TenantID)

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.commitTimeout)
	defer cancel()
	err := r.apply(actx, wctx, outcome, fx)
	return PassResult{Outcome: outcome, Committed: true, Err: cause}, err
}

// decide never panics out of a pass: a panic becomes the hub fallback.
func (r *Resolver) decide(
	ctx context.Context,
	wctx *store.WorkspaceContext,
	token string,
	logger *slog.Logger,
) (outcome workspace.Outcome, fx effects, cause error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorContext(ctx, "resolution pass panicked, falling back to hub", "panic", rec)
			outcome = workspace.Outcome{View: workspace.ViewHub, Rule: workspace.RuleFetchFailed}
			fx = effects{}
			cause = apperrors.New(apperrors.ErrCodeInternal, fmt.Sprintf("resolution panicked: %v", rec))
		}
	}()
	return r.evaluate(ctx, wctx, token, logger)
}

func (r *Resolver) evaluate(
	ctx context.Context,
	wctx *store.WorkspaceContext,
	token string,
	logger *slog.Logger,
) (workspace.Outcome, effects, error) {
	if token == "" {
		return workspace.Outcome{View: workspace.ViewLogin, Rule: workspace.RuleNoSession}, effects{}, nil
	}

	snap, err := wctx.Snapshot(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "read device state failed", "error", err)
		return workspace.Outcome{View: workspace.ViewHub, Rule: workspace.RuleFetchFailed}, effects{}, err
	}

	ms, err := r.api.FetchMemberships(ctx, token)
	switch {
	case apperrors.IsUnauthorized(err):
		logger.InfoContext(ctx, "identity token rejected, signing out")
		return workspace.Outcome{View: workspace.ViewLogin, Rule: workspace.RuleUnauthorized},
			effects{clearIdentity: true}, err
	case err != nil:
		logger.WarnContext(ctx, "membership fetch failed, falling back to hub", "error", err)
		return workspace.Outcome{View: workspace.ViewHub, Rule: workspace.RuleFetchFailed}, effects{}, err
	}

	sel := workspace.SelectTenant(workspace.SelectionInput{
		Memberships:          ms.Memberships,
		Tenants:              ms.Tenants,
		PreselectedTenantID:  snap.PreselectedTenant,
		RedirectPage:         snap.RedirectPage,
		PendingOnboarding:    snap.PendingOnboarding,
		PersistedTenantID:    snap.SelectedTenant,
		HasDiscoveredContext: snap.HasDiscoveredContext,
	})

	if sel.Provision {
		return r.provision(ctx, wctx, token, sel, logger)
	}

	out := workspace.Outcome{
		View:               sel.View,
		Rule:               sel.Rule,
		TenantID:           sel.TenantID,
		OnboardingRequired: sel.OnboardingRequired,
	}
	if out.View == workspace.ViewApp {
		out.Page = snap.RedirectPage
	}
	fx := effects{}
	if sel.PersistSelection {
		fx.selection = &sel
	}
	return out, fx, nil
}

func (r *Resolver) provision(
	ctx context.Context,
	wctx *store.WorkspaceContext,
	token string,
	sel workspace.Selection,
	logger *slog.Logger,
) (workspace.Outcome, effects, error) {
	fallback := workspace.Outcome{View: sel.View, Rule: workspace.RuleProvisionFailed}
	if r.provisioner == nil {
		return fallback, effects{}, nil
	}

	p, err := r.provisioner.Provision(ctx, wctx, token)
	switch {
	case err == nil:
		return workspace.Outcome{
			View:               workspace.ViewApp,
			Rule:               workspace.RuleProvisioned,
			TenantID:           p.TenantID,
			OnboardingRequired: true,
		}, effects{}, nil
	case errors.Is(err, ErrNoDiscoveredContext):
		return workspace.Outcome{View: workspace.ViewMarketplace, Rule: workspace.RuleNoMemberships}, effects{}, nil
	case apperrors.IsUnauthorized(err):
		return workspace.Outcome{View: workspace.ViewLogin, Rule: workspace.RuleUnauthorized},
			effects{clearIdentity: true}, err
	default:
		logger.WarnContext(ctx, "auto-provisioning failed, falling back to marketplace", "error", err)
		return fallback, effects{}, err
	}
}

// apply performs the committing pass's storage writes.
func (r *Resolver) apply(ctx context.Context, wctx *store.WorkspaceContext, o workspace.Outcome, fx effects) error {
	if fx.clearIdentity {
		if err := wctx.ClearIdentity(ctx); err != nil {
			return err
		}
	}
	if fx.selection != nil {
		if err := wctx.SaveSelection(ctx, fx.selection.TenantID, fx.selection.Metadata); err != nil {
			return err
		}
	}
	if o.View != workspace.ViewLogin {
		if err := wctx.ConsumeHandoffMarkers(ctx); err != nil {
			return err
		}
	}
	return nil
}
