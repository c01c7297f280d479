// Package postgres provides the Postgres-backed device state store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	apperrors "github.com/tenantdesk/workspace-shell/internal/errors"
	"github.com/tenantdesk/workspace-shell/internal/ports"
)

var _ ports.KVStore = (*KVStore)(nil)

// KVStore keeps device state in the device_state table. Rows with a past
// expires_at are invisible to Get and removed by PurgeExpired.
type KVStore struct {
	db     *sql.DB
	prefix string
	now    func() time.Time
}

// KVStoreOptions configures a KVStore.
type KVStoreOptions struct {
	DB     *sql.DB
	Prefix string
	// Now overrides the clock used to compute expires_at; defaults to time.Now.
	Now func() time.Time
}

// NewKVStore creates a Postgres key/value store.
func NewKVStore(opts KVStoreOptions) (*KVStore, error) {
	if opts.DB == nil {
		return nil, errors.New("database connection is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &KVStore{db: opts.DB, prefix: opts.Prefix, now: now}, nil
}

const (
	getQuery = `SELECT value FROM device_state
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)`

	upsertQuery = `INSERT INTO device_state (key, value, expires_at, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = now()`

	deleteQuery = `DELETE FROM device_state WHERE key = ANY($1)`

	purgeQuery = `DELETE FROM device_state WHERE key IN (
		SELECT key FROM device_state
		WHERE expires_at IS NOT NULL AND expires_at <= $1
		LIMIT $2)`
)

func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, getQuery, s.prefix+key, s.now()).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.MapDBError(err)
	}
	return v, true, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	var expiresAt sql.NullTime
	if ttl > 0 {
		expiresAt = sql.NullTime{Time: s.now().Add(ttl), Valid: true}
	}
	if _, err := s.db.ExecContext(ctx, upsertQuery, s.prefix+key, value, expiresAt); err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, 0, len(keys))
	for _, k := range keys {
		prefixed = append(prefixed, s.prefix+k)
	}
	if _, err := s.db.ExecContext(ctx, deleteQuery, prefixed); err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

// PurgeExpired deletes up to batchSize expired rows and reports how many went.
func (s *KVStore) PurgeExpired(ctx context.Context, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	res, err := s.db.ExecContext(ctx, purgeQuery, s.now(), batchSize)
	if err != nil {
		return 0, apperrors.MapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.MapDBError(err)
	}
	return n, nil
}
