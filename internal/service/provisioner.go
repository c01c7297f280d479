package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/tenantdesk/workspace-shell/internal/domain/workspace"
	apperrors "github.com/tenantdesk/workspace-shell/internal/errors"
	"github.com/tenantdesk/workspace-shell/internal/observability/metrics"
	"github.com/tenantdesk/workspace-shell/internal/observability/statsd"
	"github.com/tenantdesk/workspace-shell/internal/ports"
	"github.com/tenantdesk/workspace-shell/internal/store"
	"golang.org/x/sync/singleflight"
)

const (
	workspaceKindPersonal = "personal"
	workspaceKindBusiness = "business"

	defaultPersonalName  = "My Vault"
	defaultWorkspaceName = "My Workspace"

	onboardingSourceDiscovery = "discovery"
)

// ErrNoDiscoveredContext is returned when there is nothing to provision from.
var ErrNoDiscoveredContext = errors.New("no discovered context")

// ProvisionerOptions groups dependencies for Provisioner.
type ProvisionerOptions struct {
	API     ports.WorkspaceAPI // Required: backend workspace API
	Logger  *slog.Logger       // Optional: structured logger
	Metrics statsd.Sink        // Optional: metrics sink
}

// Provisioner creates a workspace from a discovered context when the caller
// has no memberships. Concurrent calls for one device share a single creation.
type Provisioner struct {
	api     ports.WorkspaceAPI
	logger  *slog.Logger
	metrics statsd.Sink
	group   singleflight.Group
}

// NewProvisioner constructs a Provisioner.
func NewProvisioner(opts ProvisionerOptions) (*Provisioner, error) {
	if opts.API == nil {
		return nil, errors.New("WorkspaceAPI is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{
		api:     opts.API,
		logger:  logger.With("component", "provisioner"),
		metrics: opts.Metrics,
	}, nil
}

// Provisioned is a workspace the provisioner created and persisted.
type Provisioned struct {
	TenantID string
	Metadata workspace.TenantMetadata
}

// Provision creates a workspace from the device's discovered context. On
// success the tenant and its metadata are persisted, the discovered context
// is deleted and the pending-onboarding flag is set. Returns
// ErrNoDiscoveredContext when none is stored.
func (p *Provisioner) Provision(ctx context.Context, wctx *store.WorkspaceContext, token string) (Provisioned, error) {
	v, err, shared := p.group.Do(wctx.DeviceID(), func() (any, error) {
		return p.provision(ctx, wctx, token)
	})
	if shared {
		p.logger.DebugContext(ctx, "joined in-flight provisioning", "device_id", wctx.DeviceID())
	}
	if err != nil {
		return Provisioned{}, err
	}
	return v.(Provisioned), nil
}

func (p *Provisioner) provision(ctx context.Context, wctx *store.WorkspaceContext, token string) (Provisioned, error) {
	dc, present, err := wctx.DiscoveredContext(ctx)
	if err != nil {
		if apperrors.IsValidation(err) {
			// Undecodable blobs are dropped.
			if clearErr := wctx.ClearDiscoveredContext(ctx); clearErr != nil {
				p.logger.WarnContext(ctx, "clear malformed discovered context failed", "error", clearErr)
			}
			metrics.EmitProvisioning(p.metrics, metrics.ResultError, err)
			return Provisioned{}, apperrors.Wrap(err, apperrors.ErrCodeProvisioning, "malformed discovered context")
		}
		return Provisioned{}, err
	}
	if !present {
		metrics.EmitProvisioning(p.metrics, metrics.ResultNoop, nil)
		return Provisioned{}, ErrNoDiscoveredContext
	}

	sid, err := wctx.ChatSessionID(ctx)
	if err != nil {
		return Provisioned{}, err
	}

	req := BuildCreateWorkspaceRequest(dc, sid)
	created, err := p.api.CreateWorkspace(ctx, token, req)
	if err != nil {
		metrics.EmitProvisioning(p.metrics, metrics.ResultError, err)
		p.logger.WarnContext(ctx, "workspace creation failed", "device_id", wctx.DeviceID(), "error", err)
		if apperrors.IsUnauthorized(err) {
			return Provisioned{}, err
		}
		return Provisioned{}, apperrors.Wrap(err, apperrors.ErrCodeProvisioning, "create workspace")
	}

	meta := workspace.TenantMetadata{
		Vertical:    req.Vertical,
		CompanyName: firstNonBlank(created.Name, req.Name),
	}.Normalized()
	if err := wctx.SaveSelection(ctx, created.ID, meta); err != nil {
		return Provisioned{}, err
	}
	if err := wctx.ClearDiscoveredContext(ctx); err != nil {
		return Provisioned{}, err
	}
	if err := wctx.SetPendingOnboarding(ctx, true); err != nil {
		return Provisioned{}, err
	}

	metrics.EmitProvisioning(p.metrics, metrics.ResultSuccess, nil)
	p.logger.InfoContext(ctx, "workspace provisioned",
		"device_id", wctx.DeviceID(), "tenant_id", created.ID, "vertical", req.Vertical)
	return Provisioned{TenantID: created.ID, Metadata: meta}, nil
}

// BuildCreateWorkspaceRequest derives the creation request from a discovered
// context: canonical vertical, a name (business name, else a default by
// intent) and the kind.
func BuildCreateWorkspaceRequest(dc workspace.DiscoveredContext, chatSessionID string) ports.CreateWorkspaceRequest {
	vertical := workspace.CanonicalVertical(dc.Vertical)
	intent := strings.ToLower(strings.TrimSpace(dc.Intent))
	personal := intent == workspace.IntentPersonal

	name := strings.TrimSpace(dc.BusinessName)
	if name == "" {
		if personal {
			name = defaultPersonalName
		} else {
			name = defaultWorkspaceName
		}
	}
	kind := workspaceKindBusiness
	if personal {
		kind = workspaceKindPersonal
	}

	return ports.CreateWorkspaceRequest{
		Name:         name,
		Kind:         kind,
		Vertical:     vertical,
		Jurisdiction: strings.TrimSpace(dc.Location),
		Onboarding: ports.OnboardingSnapshot{
			Source:       onboardingSourceDiscovery,
			Intent:       intent,
			Vertical:     vertical,
			BusinessName: strings.TrimSpace(dc.BusinessName),
			Location:     strings.TrimSpace(dc.Location),
			Subtype:      strings.TrimSpace(dc.Subtype),
			SessionID:    chatSessionID,
			Completed:    false,
		},
	}
}
