package store

import (
	"context"
	"sync"

	domainauth "github.com/tenantdesk/workspace-shell/internal/domain/auth"
	"github.com/tenantdesk/workspace-shell/internal/ports"
)

var _ ports.AuthStateBus = (*MemoryBus)(nil)

const busBuffer = 8

// MemoryBus fans auth-state changes out to in-process subscribers.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[string]map[chan domainauth.AuthState]struct{}
}

// NewMemoryBus creates an empty MemoryBus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[chan domainauth.AuthState]struct{})}
}

// Subscribe registers a stream for deviceID. The channel closes once ctx ends.
func (b *MemoryBus) Subscribe(ctx context.Context, deviceID string) (<-chan domainauth.AuthState, error) {
	ch := make(chan domainauth.AuthState, busBuffer)

	b.mu.Lock()
	if b.subs[deviceID] == nil {
		b.subs[deviceID] = make(map[chan domainauth.AuthState]struct{})
	}
	b.subs[deviceID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[deviceID], ch)
		if len(b.subs[deviceID]) == 0 {
			delete(b.subs, deviceID)
		}
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}

// Publish delivers state to every current subscriber of deviceID. Slow
// subscribers with a full buffer miss the update.
func (b *MemoryBus) Publish(_ context.Context, deviceID string, state domainauth.AuthState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[deviceID] {
		select {
		case ch <- state:
		default:
		}
	}
	return nil
}

// Subscribers reports how many streams are open for deviceID.
func (b *MemoryBus) Subscribers(deviceID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[deviceID])
}
