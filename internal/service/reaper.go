package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"

	obserrors "github.com/tenantdesk/workspace-shell/internal/observability/errors"
	"github.com/tenantdesk/workspace-shell/internal/observability/metrics"
	"github.com/tenantdesk/workspace-shell/internal/observability/statsd"
	"github.com/tenantdesk/workspace-shell/internal/ports"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Store     ports.ExpiringStore // Required: store holding expiring session rows
	Interval  time.Duration       // Required: time between purge runs
	BatchSize int                 // Optional: rows per delete statement (default 500)
	Logger    *slog.Logger        // Optional: structured logger
	Metrics   statsd.Sink         // Optional: metrics sink (StatsD-compatible)
}

// ReaperService periodically deletes expired session-scoped device state from
// stores that do not expire keys on their own.
type ReaperService struct {
	store     ports.ExpiringStore
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   statsd.Sink
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Store == nil {
		return nil, errors.New("ExpiringStore is required")
	}
	if opts.Interval <= 0 {
		return nil, errors.New("purge interval must be positive")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ReaperService{
		store:     opts.Store,
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
		logger:    logger.With("component", "reaper_service"),
		metrics:   opts.Metrics,
	}, nil
}

// Run purges immediately (after a short jitter) and then on every interval
// until ctx is cancelled. It returns nil on graceful shutdown.
func (s *ReaperService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting reaper service", "interval", s.interval)

	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.PurgeOnce(ctx); err != nil && !isContextCancellation(err) {
			s.logger.ErrorContext(ctx, "purge failed", "error", err)
		}
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// waitWithJitter adds a random delay up to 10% of the interval so replicas do not purge in lockstep.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 - bounded by maxJitter

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

// PurgeOnce deletes expired rows in batches until none remain.
func (s *ReaperService) PurgeOnce(ctx context.Context) (int64, error) {
	start := time.Now()
	var total int64
	var err error
	for {
		var n int64
		n, err = s.store.PurgeExpired(ctx, s.batchSize)
		total += n
		if err != nil || n < int64(s.batchSize) {
			break
		}
		if ctx.Err() != nil {
			err = ctx.Err()
			break
		}
	}

	if total > 0 {
		s.logger.InfoContext(ctx, "purged expired device state", "count", total)
	}
	s.emitPurgeMetrics(total, time.Since(start), err)
	return total, err
}

func (s *ReaperService) emitPurgeMetrics(count int64, elapsed time.Duration, err error) {
	if s.metrics == nil {
		return
	}

	result := metrics.ResultSuccess
	if err != nil && !isContextCancellation(err) {
		result = metrics.ResultError
	} else if count == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{"result": result}
	if result == metrics.ResultError {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.purge", 1, tags)
	s.metrics.Timing("reaper.purge_duration", elapsed, metrics.CloneTags(tags))
	if count > 0 {
		s.metrics.Count("reaper.rows_purged", count, metrics.CloneTags(tags))
	}
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
