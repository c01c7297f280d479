package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantdesk/workspace-shell/internal/domain/workspace"
	apperrors "github.com/tenantdesk/workspace-shell/internal/errors"
	"github.com/tenantdesk/workspace-shell/internal/mocks"
	"github.com/tenantdesk/workspace-shell/internal/ports"
	"go.uber.org/mock/gomock"
)

func newTestResolver(t *testing.T, api ports.WorkspaceAPI) *Resolver {
	t.Helper()
	prov, err := NewProvisioner(ProvisionerOptions{API: api})
	require.NoError(t, err)
	r, err := NewResolver(ResolverOptions{API: api, Provisioner: prov})
	require.NoError(t, err)
	return r
}

func TestNewResolver_RequiresAPI(t *testing.T) {
	_, err := NewResolver(ResolverOptions{})
	require.Error(t, err)
}

func TestResolver_NoToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mocks.NewMockWorkspaceAPI(ctrl)
	r := newTestResolver(t, api)

	res, err := r.Resolve(context.Background(), newDevice(), &workspace.Latch{}, "")
	require.NoError(t, err)
	assert.True(t, res.Committed)
	assert.Equal(t, workspace.Outcome{View: workspace.ViewLogin, Rule: workspace.RuleNoSession}, res.Outcome)
}

func TestResolver_PreselectedTenantWins(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mocks.NewMockWorkspaceAPI(ctrl)
	ms := memberships("A", "B")
	ms.Tenants["B"] = workspace.TenantMetadata{Vertical: "investor", Jurisdiction: "GLOBAL", CompanyName: "Beta"}
	api.EXPECT().FetchMemberships(gomock.Any(), "tok").Return(ms, nil)

	wctx := newDevice()
	ctx := context.Background()
	signIn(t, wctx, "tok")
	require.NoError(t, ApplyHandoff(ctx, wctx, workspace.HandoffContext{PreselectedTenantID: "B"}))

	res, err := newTestResolver(t, api).Resolve(ctx, wctx, &workspace.Latch{}, "tok")
	require.NoError(t, err)
	assert.Equal(t, workspace.ViewApp, res.Outcome.View)
	assert.Equal(t, "B", res.Outcome.TenantID)
	assert.Equal(t, workspace.RulePreselectedTenant, res.Outcome.Rule)

	snap := snapshot(t, wctx)
	assert.Equal(t, "B", snap.SelectedTenant)
	assert.Equal(t, "investor", snap.Metadata.Vertical)
	assert.Empty(t, snap.Metadata.Jurisdiction, "GLOBAL is never persisted")
	assert.Empty(t, snap.PreselectedTenant, "handoff markers are consumed")
}

func TestResolver_UnauthorizedClearsToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mocks.NewMockWorkspaceAPI(ctrl)
	api.EXPECT().FetchMemberships(gomock.Any(), "tok").Return(ports.Memberships{}, apperrors.Unauthorized("401"))

	wctx := newDevice()
	ctx := context.Background()
	signIn(t, wctx, "tok")
	require.NoError(t, wctx.SaveSelection(ctx, "X", workspace.TenantMetadata{}))
	require.NoError(t, ApplyHandoff(ctx, wctx, workspace.HandoffContext{RedirectPage: workspace.PageAdmin}))

	res, err := newTestResolver(t, api).Resolve(ctx, wctx, &workspace.Latch{}, "tok")
	require.NoError(t, err)
	assert.Equal(t, workspace.ViewLogin, res.Outcome.View)
	assert.Equal(t, workspace.RuleUnauthorized, res.Outcome.Rule)
	assert.True(t, apperrors.IsUnauthorized(res.Err))

	snap := snapshot(t, wctx)
	assert.Empty(t, snap.IdentityToken)
	assert.Equal(t, workspace.PageAdmin, snap.RedirectPage, "markers survive until a signed-in landing")
}

func TestResolver_FetchFailureFallsBackToHub(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mocks.NewMockWorkspaceAPI(ctrl)
	api.EXPECT().FetchMemberships(gomock.Any(), "tok").
		Return(ports.Memberships{}, apperrors.New(apperrors.ErrCodeInvalidResponse, "bad json"))

	wctx := newDevice()
	signIn(t, wctx, "tok")
	res, err := newTestResolver(t, api).Resolve(context.Background(), wctx, &workspace.Latch{}, "tok")
	require.NoError(t, err)
	assert.Equal(t, workspace.Outcome{View: workspace.ViewHub, Rule: workspace.RuleFetchFailed}, res.Outcome)
	assert.Equal(t, "tok", snapshot(t, wctx).IdentityToken)
}

func TestResolver_PanicFallsBackToHub(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mocks.NewMockWorkspaceAPI(ctrl)
	api.EXPECT().FetchMemberships(gomock.Any(), "tok").
		DoAndReturn(func(context.Context, string) (ports.Memberships, error) {
			panic("decoder bug")
		})

	wctx := newDevice()
	signIn(t, wctx, "tok")
	res, err := newTestResolver(t, api).Resolve(context.Background(), wctx, &workspace.Latch{}, "tok")
	require.NoError(t, err)
	assert.True(t, res.Committed)
	assert.Equal(t, workspace.Outcome{View: workspace.ViewHub, Rule: workspace.RuleFetchFailed}, res.Outcome)
	assert.Equal(t, apperrors.ErrCodeInternal, apperrors.GetCode(res.Err))
}

func TestResolver_AutoProvisionOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mocks.NewMockWorkspaceAPI(ctrl)
	api.EXPECT().FetchMemberships(gomock.Any(), "tok").Return(memberships(), nil).Times(2)
	api.EXPECT().CreateWorkspace(gomock.Any(), "tok", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, req ports.CreateWorkspaceRequest) (ports.CreatedWorkspace, error) {
			assert.Equal(t, "Acme Motors", req.Name)
			assert.Equal(t, "business", req.Kind)
			assert.Equal(t, "auto", req.Vertical)
			return ports.CreatedWorkspace{ID: "W1", Name: req.Name}, nil
		}).Times(1)

	wctx := newDevice()
	ctx := context.Background()
	signIn(t, wctx, "tok")
	require.NoError(t, wctx.SetDiscoveredContext(ctx, workspace.DiscoveredContext{
		Vertical: "auto", Intent: "business", BusinessName: "Acme Motors",
	}))

	r := newTestResolver(t, api)
	res, err := r.Resolve(ctx, wctx, &workspace.Latch{}, "tok")
	require.NoError(t, err)
	assert.Equal(t, workspace.Outcome{
		View:               workspace.ViewApp,
		Rule:               workspace.RuleProvisioned,
		TenantID:           "W1",
		OnboardingRequired: true,
	}, res.Outcome)

	snap := snapshot(t, wctx)
	assert.Equal(t, "W1", snap.SelectedTenant)
	assert.False(t, snap.HasDiscoveredContext)
	assert.True(t, snap.PendingOnboarding)

	// Same stored state again: the discovered context is gone, so no second creation.
	// Memberships are still empty in this fake, so the device lands on the marketplace.
	res, err = r.Resolve(ctx, wctx, &workspace.Latch{}, "tok")
	require.NoError(t, err)
	assert.Equal(t, workspace.ViewMarketplace, res.Outcome.View)
	assert.Equal(t, workspace.RuleNoMemberships, res.Outcome.Rule)
}

func TestResolver_ProvisionWritesSurviveLostCommit(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mocks.NewMockWorkspaceAPI(ctrl)
	latch := &workspace.Latch{}
	winner := workspace.Outcome{View: workspace.ViewLogin, Rule: workspace.RuleNoSession}

	api.EXPECT().FetchMemberships(gomock.Any(), "tok").Return(memberships(), nil)
	api.EXPECT().CreateWorkspace(gomock.Any(), "tok", gomock.Any()).
		DoAndReturn(func(context.Context, string, ports.CreateWorkspaceRequest) (ports.CreatedWorkspace, error) {
			ticket, _ := latch.Begin()
			require.True(t, latch.Commit(ticket, winner))
			return ports.CreatedWorkspace{ID: "W1", Name: "Acme"}, nil
		})

	wctx := newDevice()
	ctx := context.Background()
	signIn(t, wctx, "tok")
	require.NoError(t, wctx.SetDiscoveredContext(ctx, workspace.DiscoveredContext{
		Vertical: "auto", Intent: "business", BusinessName: "Acme",
	}))

	res, err := newTestResolver(t, api).Resolve(ctx, wctx, latch, "tok")
	require.NoError(t, err)
	assert.False(t, res.Committed)
	assert.Equal(t, winner, res.Outcome)

	snap := snapshot(t, wctx)
	assert.Equal(t, "W1", snap.SelectedTenant, "provisioning persists before the commit")
	assert.False(t, snap.HasDiscoveredContext)
	assert.True(t, snap.PendingOnboarding)
}

func TestResolver_ProvisionFailureFallsBackToMarketplace(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mocks.NewMockWorkspaceAPI(ctrl)
	api.EXPECT().FetchMemberships(gomock.Any(), "tok").Return(memberships(), nil)
	api.EXPECT().CreateWorkspace(gomock.Any(), "tok", gomock.Any()).
		Return(ports.CreatedWorkspace{}, errors.New("boom"))

	wctx := newDevice()
	ctx := context.Background()
	signIn(t, wctx, "tok")
	require.NoError(t, wctx.SetDiscoveredContext(ctx, workspace.DiscoveredContext{Intent: "personal"}))

	res, err := newTestResolver(t, api).Resolve(ctx, wctx, &workspace.Latch{}, "tok")
	require.NoError(t, err)
	assert.Equal(t, workspace.Outcome{View: workspace.ViewMarketplace, Rule: workspace.RuleProvisionFailed}, res.Outcome)
	assert.True(t, apperrors.IsProvisioning(res.Err))
	assert.True(t, snapshot(t, wctx).HasDiscoveredContext, "a failed attempt keeps the context for a retry")
}

func TestResolver_SingleMembershipFastPath(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mocks.NewMockWorkspaceAPI(ctrl)
	api.EXPECT().FetchMemberships(gomock.Any(), "tok").Return(memberships("X"), nil)

	wctx := newDevice()
	signIn(t, wctx, "tok")
	res, err := newTestResolver(t, api).Resolve(context.Background(), wctx, &workspace.Latch{}, "tok")
	require.NoError(t, err)
	assert.Equal(t, workspace.ViewApp, res.Outcome.View)
	assert.Equal(t, "X", res.Outcome.TenantID)
	assert.Equal(t, "X", snapshot(t, wctx).SelectedTenant)
}

func TestResolver_MultiMembershipNoSignal(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mocks.NewMockWorkspaceAPI(ctrl)
	api.EXPECT().FetchMemberships(gomock.Any(), "tok").Return(memberships("X", "Y"), nil)

	wctx := newDevice()
	signIn(t, wctx, "tok")
	res, err := newTestResolver(t, api).Resolve(context.Background(), wctx, &workspace.Latch{}, "tok")
	require.NoError(t, err)
	assert.Equal(t, workspace.Outcome{View: workspace.ViewHub, Rule: workspace.RuleWorkspacePicker}, res.Outcome)
	assert.Empty(t, snapshot(t, wctx).SelectedTenant)
}

func TestResolver_RedirectPageCarriedToApp(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mocks.NewMockWorkspaceAPI(ctrl)
	ms := memberships("A", "I")
	ms.Tenants["I"] = workspace.TenantMetadata{Vertical: "Investor"}
	api.EXPECT().FetchMemberships(gomock.Any(), "tok").Return(ms, nil)

	wctx := newDevice()
	ctx := context.Background()
	signIn(t, wctx, "tok")
	require.NoError(t, ApplyHandoff(ctx, wctx, workspace.HandoffContext{RedirectPage: workspace.PageInvestorDataRoom}))

	res, err := newTestResolver(t, api).Resolve(ctx, wctx, &workspace.Latch{}, "tok")
	require.NoError(t, err)
	assert.Equal(t, "I", res.Outcome.TenantID)
	assert.Equal(t, workspace.PageInvestorDataRoom, res.Outcome.Page)
	assert.Empty(t, snapshot(t, wctx).RedirectPage)
}

func TestResolver_Deterministic(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mocks.NewMockWorkspaceAPI(ctrl)
	api.EXPECT().FetchMemberships(gomock.Any(), "tok").Return(memberships("X", "Y"), nil).Times(2)

	r := newTestResolver(t, api)
	var outcomes []workspace.Outcome
	for range 2 {
		wctx := newDevice()
		signIn(t, wctx, "tok")
		res, err := r.Resolve(context.Background(), wctx, &workspace.Latch{}, "tok")
		require.NoError(t, err)
		outcomes = append(outcomes, res.Outcome)
	}
	assert.Equal(t, outcomes[0], outcomes[1])
}

func TestResolver_ConcurrentPassesCommitOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mocks.NewMockWorkspaceAPI(ctrl)
	api.EXPECT().FetchMemberships(gomock.Any(), gomock.Any()).Return(memberships("X"), nil).AnyTimes()

	wctx := newDevice()
	signIn(t, wctx, "tok")
	r := newTestResolver(t, api)
	latch := &workspace.Latch{}

	const passes = 8
	results := make([]PassResult, passes)
	var wg sync.WaitGroup
	for i := range passes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.Resolve(context.Background(), wctx, latch, "tok")
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	committed := 0
	for _, res := range results {
		if res.Committed {
			committed++
		}
		assert.Equal(t, workspace.ViewApp, res.Outcome.View, "losers report the winner's view")
	}
	assert.Equal(t, 1, committed)
}

func TestResolver_AbandonedPassDoesNotCommit(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mocks.NewMockWorkspaceAPI(ctrl)
	ctx, cancel := context.WithCancel(context.Background())
	api.EXPECT().FetchMemberships(gomock.Any(), "tok").
		DoAndReturn(func(ctx context.Context, _ string) (ports.Memberships, error) {
			cancel()
			return ports.Memberships{}, ctx.Err()
		})

	wctx := newDevice()
	signIn(t, wctx, "tok")
	latch := &workspace.Latch{}
	res, err := newTestResolver(t, api).Resolve(ctx, wctx, latch, "tok")
	require.NoError(t, err)
	assert.False(t, res.Committed)
	_, done := latch.Outcome()
	assert.False(t, done)
}
