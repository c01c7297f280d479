package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantdesk/workspace-shell/internal/observability/statsd"
)

// fakePurger returns the queued batch sizes in order, then zero.
type fakePurger struct {
	mu      sync.Mutex
	batches []int64
	err     error
	calls   int
}

func (f *fakePurger) PurgeExpired(_ context.Context, _ int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	if len(f.batches) == 0 {
		return 0, nil
	}
	n := f.batches[0]
	f.batches = f.batches[1:]
	return n, nil
}

func TestNewReaperService_Validation(t *testing.T) {
	_, err := NewReaperService(ReaperServiceOptions{Interval: time.Minute})
	require.Error(t, err)

	_, err = NewReaperService(ReaperServiceOptions{Store: &fakePurger{}})
	require.Error(t, err)

	svc, err := NewReaperService(ReaperServiceOptions{Store: &fakePurger{}, Interval: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, 500, svc.batchSize)
}

func TestReaperService_PurgeOnce_DrainsBatches(t *testing.T) {
	purger := &fakePurger{batches: []int64{2, 2, 1}}
	rec := &statsd.Recorder{}
	svc, err := NewReaperService(ReaperServiceOptions{Store: purger, Interval: time.Minute, BatchSize: 2, Metrics: rec})
	require.NoError(t, err)

	n, err := svc.PurgeOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, 3, purger.calls, "a short batch ends the run")

	runs := rec.Named("reaper.purge")
	require.Len(t, runs, 1)
	assert.Equal(t, "success", runs[0].Tags["result"])
	rows := rec.Named("reaper.rows_purged")
	require.Len(t, rows, 1)
	assert.Equal(t, int64(5), rows[0].Value)
}

func TestReaperService_PurgeOnce_Error(t *testing.T) {
	purger := &fakePurger{err: errors.New("boom")}
	rec := &statsd.Recorder{}
	svc, err := NewReaperService(ReaperServiceOptions{Store: purger, Interval: time.Minute, Metrics: rec})
	require.NoError(t, err)

	_, err = svc.PurgeOnce(context.Background())
	require.Error(t, err)
	runs := rec.Named("reaper.purge")
	require.Len(t, runs, 1)
	assert.Equal(t, "error", runs[0].Tags["result"])
	assert.NotEmpty(t, runs[0].Tags["error_class"])
}

func TestReaperService_RunStopsOnCancel(t *testing.T) {
	purger := &fakePurger{}
	svc, err := NewReaperService(ReaperServiceOptions{Store: purger, Interval: 10 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("reaper did not stop")
	}

	purger.mu.Lock()
	defer purger.mu.Unlock()
	assert.GreaterOrEqual(t, purger.calls, 1)
}
