package redis

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

func TestKVStore_SetGetDelete(t *testing.T) {
	srv, client := testutil.NewMiniRedis(t)
	kv := NewKVStoreWithPrefix(client, "test:")
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "a", "1", 0))
	require.NoError(t, kv.Set(ctx, "b", "2", 0))
	assert.True(t, srv.Exists("test:a"), "keys carry the configured prefix")

	v, ok, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	require.NoError(t, kv.Delete(ctx, "a", "b"))
	assert.False(t, srv.Exists("test:a"))
	assert.False(t, srv.Exists("test:b"))
	require.NoError(t, kv.Delete(ctx))
}

func TestKVStore_TTLExpiry(t *testing.T) {
	srv, client := testutil.NewMiniRedis(t)
	kv := NewKVStore(client)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "session:dev:x", "v", time.Minute))
	assert.Equal(t, time.Minute, srv.TTL("wsd:session:dev:x"))

	srv.FastForward(2 * time.Minute)
	_, ok, err := kv.Get(ctx, "session:dev:x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKVStore_ConnectionError(t *testing.T) {
	srv, client := testutil.NewMiniRedis(t)
	kv := NewKVStore(client)
	srv.Close()

	_, _, err := kv.Get(context.Background(), "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis get")
}

func TestKVStore_BacksWorkspaceContext(t *testing.T) {
	srv, client := testutil.NewMiniRedis(t)
	kv := NewKVStore(client)
	ctx := context.Background()

	wctx := store.NewWorkspaceContext("dev-1", kv, kv, time.Hour)
	require.NoError(t, wctx.SaveSelection(ctx, "T1", workspace.TenantMetadata{Vertical: "auto", Jurisdiction: "GLOBAL"}))
	require.NoError(t, wctx.SetRedirectPage(ctx, "investor-data-room"))

	assert.True(t, srv.Exists("wsd:local:dev-1:selected_tenant"))
	assert.False(t, srv.Exists("wsd:local:dev-1:jurisdiction"))
	assert.Equal(t, time.Hour, srv.TTL("wsd:session:dev-1:redirect_page"))
	assert.Zero(t, srv.TTL("wsd:local:dev-1:vertical"))

	require.NoError(t, wctx.Clear(ctx))
	assert.Empty(t, srv.Keys())
}
