package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tenantdesk/workspace-shell/internal/ports"
)

var _ ports.KVStore = (*MemoryStore)(nil)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is a process-local KVStore used by the memory storage driver and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// MemoryStoreOption customizes a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithClock overrides the time source used for TTL expiry.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.entries, k)
	}
	return nil
}

// Keys lists live keys with the given prefix in sorted order.
func (s *MemoryStore) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	var out []string
	for k, e := range s.entries {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			continue
		}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
