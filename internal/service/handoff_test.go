package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantdesk/workspace-shell/internal/domain/workspace"
	"github.com/tenantdesk/workspace-shell/internal/store"
)

func TestParseHandoff(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		want      workspace.HandoffContext
		wantClean string
	}{
		{
			name:      "no params",
			raw:       "https://app.example.com/dash?x=1#top",
			wantClean: "https://app.example.com/dash?x=1#top",
		},
		{
			name: "all params mapped and stripped",
			raw:  "https://app.example.com/?token=abc&sid=s1&tid=T9&page=dataroom&utm=mail#f",
			want: workspace.HandoffContext{
				SignInToken:         "abc",
				SessionID:           "s1",
				PreselectedTenantID: "T9",
				RedirectPage:        workspace.PageInvestorDataRoom,
			},
			wantClean: "https://app.example.com/#f",
		},
		{
			name:      "unmapped page verbatim",
			raw:       "/?page=reports",
			want:      workspace.HandoffContext{RedirectPage: "reports"},
			wantClean: "/",
		},
		{
			name:      "empty values still stripped",
			raw:       "/home?token=&tid=",
			wantClean: "/home",
		},
		{
			name:      "other params dropped with handoff",
			raw:       "https://app.example.com/?token=one-time&ref=mkt",
			want:      workspace.HandoffContext{SignInToken: "one-time"},
			wantClean: "https://app.example.com/",
		},
		{
			name: "malformed sibling param keeps handoff values",
			raw:  "https://app.example.com/?token=one-time&tid=B&utm=%zz",
			want: workspace.HandoffContext{
				SignInToken:         "one-time",
				PreselectedTenantID: "B",
			},
			wantClean: "https://app.example.com/",
		},
		{
			name:      "unparseable url cut at query",
			raw:       "http://[::1]:namedport/?token=abc#f",
			want:      workspace.HandoffContext{SignInToken: "abc"},
			wantClean: "http://[::1]:namedport/#f",
		},
		{
			name:      "undecodable token still stripped",
			raw:       "/?token=%zz",
			wantClean: "/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, clean := ParseHandoff(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantClean, clean)
		})
	}
}

func TestApplyHandoff(t *testing.T) {
	ctx := context.Background()
	wctx := store.NewWorkspaceContext("dev-1", store.NewMemoryStore(), store.NewMemoryStore(), 0)

	require.NoError(t, ApplyHandoff(ctx, wctx, workspace.HandoffContext{}))
	snap, err := wctx.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Snapshot{}, snap)

	h := workspace.HandoffContext{
		SignInToken:         "abc",
		SessionID:           "s1",
		PreselectedTenantID: "T9",
		RedirectPage:        workspace.PageAdmin,
	}
	require.NoError(t, ApplyHandoff(ctx, wctx, h))

	snap, err = wctx.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", snap.SignInToken)
	assert.Equal(t, "s1", snap.ChatSessionID)
	assert.Equal(t, "T9", snap.PreselectedTenant)
	assert.Equal(t, "T9", snap.SelectedTenant)
	assert.Equal(t, workspace.PageAdmin, snap.RedirectPage)
}
