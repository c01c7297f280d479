package ports

import (
	"context"

	"github.com/tenantdesk/workspace-shell/internal/domain/workspace"
)

// Memberships is the backend's answer to "which tenants does this caller belong to".
type Memberships struct {
	Memberships []workspace.Membership
	Tenants     map[string]workspace.TenantMetadata
}

// ClaimTenantRequest claims a fresh tenant at the end of manual onboarding.
type ClaimTenantRequest struct {
	CompanyName  string `json:"companyName"`
	Vertical     string `json:"vertical,omitempty"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
}

// OnboardingSnapshot is embedded in a workspace-creation request so the
// backend can skip steps the discovery surface already answered.
type OnboardingSnapshot struct {
	Source       string `json:"source"`
	Intent       string `json:"intent"`
	Vertical     string `json:"vertical"`
	BusinessName string `json:"businessName,omitempty"`
	Location     string `json:"location,omitempty"`
	Subtype      string `json:"subtype,omitempty"`
	SessionID    string `json:"sessionId,omitempty"`
	Completed    bool   `json:"completed"`
}

// CreateWorkspaceRequest asks the backend to create a workspace for the caller.
type CreateWorkspaceRequest struct {
	Name         string             `json:"name"`
	Kind         string             `json:"kind"`
	Vertical     string             `json:"vertical"`
	Jurisdiction string             `json:"jurisdiction,omitempty"`
	Onboarding   OnboardingSnapshot `json:"onboarding"`
}

// CreatedWorkspace identifies a workspace the backend just created.
type CreatedWorkspace struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// WorkspaceAPI is the backend surface the engine consumes. A 401 from any
// call surfaces as an errors.Unauthorized.
type WorkspaceAPI interface {
	FetchMemberships(ctx context.Context, token string) (Memberships, error)
	ClaimTenant(ctx context.Context, token string, req ClaimTenantRequest) (string, error)
	CreateWorkspace(ctx context.Context, token string, req CreateWorkspaceRequest) (CreatedWorkspace, error)
}
