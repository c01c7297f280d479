package reaper

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantdesk/workspace-shell/config"
)

type countingStore struct{ calls atomic.Int32 }

func (c *countingStore) PurgeExpired(context.Context, int) (int64, error) {
	c.calls.Add(1)
	return 0, nil
}

func TestNewRunner_RequiresStore(t *testing.T) {
	_, err := NewRunner(RunnerOptions{})
	require.Error(t, err)
}

func TestRunner_RunPurgesUntilCancelled(t *testing.T) {
	store := &countingStore{}
	cfg := config.StorageConfig{PurgeInterval: time.Minute, PurgeBatchSize: 10}
	r, err := NewRunner(RunnerOptions{Store: store, Config: cfg})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return store.calls.Load() >= 1 }, 10*time.Second, 10*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
