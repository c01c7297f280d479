package httpx

import (
	"context"
	"sync"

	domainauth "github.com/tenantdesk/workspace-shell/internal/domain/auth"
	"github.com/tenantdesk/workspace-shell/internal/domain/workspace"
	"github.com/tenantdesk/workspace-shell/internal/ports"
	"github.com/tenantdesk/workspace-shell/internal/service"
)

// fakeEngine records what the handlers asked for and answers with canned values.
type fakeEngine struct {
	mu sync.Mutex

	bootResult service.BootResult
	outcome    workspace.Outcome
	err        error

	calls     []string
	devices   []string
	bootURL   string
	tenantID  string
	claim     ports.ClaimTenantRequest
	discovery workspace.DiscoveredContext
	creds     domainauth.Credentials
}

func (f *fakeEngine) record(name, deviceID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	f.devices = append(f.devices, deviceID)
}

func (f *fakeEngine) transition(name string) func(context.Context, string) (workspace.Outcome, error) {
	return func(_ context.Context, deviceID string) (workspace.Outcome, error) {
		f.record(name, deviceID)
		return f.outcome, f.err
	}
}

func (f *fakeEngine) Boot(_ context.Context, deviceID, rawURL string) (service.BootResult, error) {
	f.record("Boot", deviceID)
	f.bootURL = rawURL
	return f.bootResult, f.err
}

func (f *fakeEngine) View(ctx context.Context, deviceID string) (workspace.Outcome, error) {
	return f.transition("View")(ctx, deviceID)
}

func (f *fakeEngine) SelectTenant(_ context.Context, deviceID, tenantID string) (workspace.Outcome, error) {
	f.record("SelectTenant", deviceID)
	f.tenantID = tenantID
	return f.outcome, f.err
}

func (f *fakeEngine) SwitchWorkspace(ctx context.Context, deviceID string) (workspace.Outcome, error) {
	return f.transition("SwitchWorkspace")(ctx, deviceID)
}

func (f *fakeEngine) OpenAdmin(ctx context.Context, deviceID string) (workspace.Outcome, error) {
	return f.transition("OpenAdmin")(ctx, deviceID)
}

func (f *fakeEngine) CloseAdmin(ctx context.Context, deviceID string) (workspace.Outcome, error) {
	return f.transition("CloseAdmin")(ctx, deviceID)
}

func (f *fakeEngine) OpenMarketplace(ctx context.Context, deviceID string) (workspace.Outcome, error) {
	return f.transition("OpenMarketplace")(ctx, deviceID)
}

func (f *fakeEngine) StartOnboarding(ctx context.Context, deviceID string) (workspace.Outcome, error) {
	return f.transition("StartOnboarding")(ctx, deviceID)
}

func (f *fakeEngine) StartBuilderInterview(ctx context.Context, deviceID string) (workspace.Outcome, error) {
	return f.transition("StartBuilderInterview")(ctx, deviceID)
}

func (f *fakeEngine) CompleteOnboarding(
	_ context.Context,
	deviceID string,
	req ports.ClaimTenantRequest,
) (workspace.Outcome, error) {
	f.record("CompleteOnboarding", deviceID)
	f.claim = req
	return f.outcome, f.err
}

func (f *fakeEngine) SignOut(ctx context.Context, deviceID string) (workspace.Outcome, error) {
	return f.transition("SignOut")(ctx, deviceID)
}

func (f *fakeEngine) SignedIn(_ context.Context, deviceID string, creds domainauth.Credentials) error {
	f.record("SignedIn", deviceID)
	f.creds = creds
	return f.err
}

func (f *fakeEngine) RecordDiscovery(_ context.Context, deviceID string, dc workspace.DiscoveredContext) error {
	f.record("RecordDiscovery", deviceID)
	f.discovery = dc
	return f.err
}

func (f *fakeEngine) lastCall() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}
