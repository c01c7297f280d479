package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantdesk/workspace-shell/internal/domain/workspace"
	"github.com/tenantdesk/workspace-shell/internal/store"
	"github.com/tenantdesk/workspace-shell/internal/testutil"
)

func newTestStore(t *testing.T, now *time.Time) *KVStore {
	t.Helper()
	db := testutil.SetupEphemeralSchemaDB(t)
	kv, err := NewKVStore(KVStoreOptions{DB: db, Prefix: "t:", Now: func() time.Time { return *now }})
	require.NoError(t, err)
	return kv
}

func TestKVStore_Integration_SetGetDelete(t *testing.T) {
	now := time.Now()
	kv := newTestStore(t, &now)
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "a", "1", 0))
	require.NoError(t, kv.Set(ctx, "a", "2", 0))
	v, ok, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2", v, "set upserts")

	require.NoError(t, kv.Delete(ctx, "a", "b"))
	_, ok, err = kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKVStore_Integration_ExpiryAndPurge(t *testing.T) {
	now := time.Now()
	kv := newTestStore(t, &now)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "session:x", "v", time.Minute))
	require.NoError(t, kv.Set(ctx, "local:y", "v", 0))

	now = now.Add(2 * time.Minute)
	_, ok, err := kv.Get(ctx, "session:x")
	require.NoError(t, err)
	assert.False(t, ok, "expired rows are invisible")

	n, err := kv.PurgeExpired(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok, err = kv.Get(ctx, "local:y")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestKVStore_Integration_BacksWorkspaceContext(t *testing.T) {
	now := time.Now()
	kv := newTestStore(t, &now)
	ctx := context.Background()

	wctx := store.NewWorkspaceContext("dev-1", kv, kv, time.Hour)
	require.NoError(t, wctx.SaveSelection(ctx, "T1", workspace.TenantMetadata{Vertical: "auto"}))
	require.NoError(t, wctx.SetPendingOnboarding(ctx, true))

	snap, err := wctx.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "T1", snap.SelectedTenant)
	assert.Equal(t, "auto", snap.Metadata.Vertical)
	assert.True(t, snap.PendingOnboarding)

	require.NoError(t, wctx.Clear(ctx))
	dump, err := wctx.Dump(ctx)
	require.NoError(t, err)
	assert.Empty(t, dump)
}

func TestNewKVStore_RequiresDB(t *testing.T) {
	_, err := NewKVStore(KVStoreOptions{})
	require.Error(t, err)
}
