package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tenantdesk/workspace-shell/internal/domain/workspace"
	"github.com/tenantdesk/workspace-shell/internal/ports"
	"github.com/tenantdesk/workspace-shell/internal/store"
)

const testDevice = "device-1"

func newFactory() store.Factory {
	return store.Factory{
		Durable:    store.NewMemoryStore(),
		Session:    store.NewMemoryStore(),
		SessionTTL: time.Hour,
	}
}

func newDevice() *store.WorkspaceContext {
	return newFactory().For(testDevice)
}

func memberships(ids ...string) ports.Memberships {
	out := ports.Memberships{Tenants: map[string]workspace.TenantMetadata{}}
	for _, id := range ids {
		out.Memberships = append(out.Memberships, workspace.Membership{TenantID: id})
	}
	return out
}

func signIn(t *testing.T, wctx *store.WorkspaceContext, token string) {
	t.Helper()
	require.NoError(t, wctx.SaveIdentity(context.Background(), token, "", "Ada"))
}

func snapshot(t *testing.T, wctx *store.WorkspaceContext) store.Snapshot {
	t.Helper()
	snap, err := wctx.Snapshot(context.Background())
	require.NoError(t, err)
	return snap
}
