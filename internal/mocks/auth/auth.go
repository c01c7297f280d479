package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domainauth "github.com/tenantdesk/workspace-shell/internal/domain/auth"
	"github.com/tenantdesk/workspace-shell/internal/ports"
)

// Ensure compile-time conformance to ports.
var _ ports.IdentityProvider = (*MockIdentityProvider)(nil)

// ErrRejected is returned when a mock provider is told to refuse a credential.
var ErrRejected = errors.New("credential rejected")

// MockIdentityProvider simulates an IdP for tests with deterministic state/nonce handling.
// It is safe for concurrent use; the watcher calls it from several goroutines.
type MockIdentityProvider struct {
	BeginFunc               func(ctx context.Context, in ports.BeginInput) (authURL, state, nonce string, err error)
	ExchangeFunc            func(ctx context.Context, in ports.ExchangeInput) (domainauth.Credentials, error)
	ExchangeSignInTokenFunc func(ctx context.Context, signInToken string) (domainauth.Credentials, error)
	RefreshFunc             func(ctx context.Context, refreshToken string) (domainauth.Credentials, error)

	// Deterministic values for predictable testing
	AuthURL     string
	StatePrefix string
	NoncePrefix string
	DefaultUser domainauth.Identity

	mu        sync.Mutex
	callCount int
	calls     map[string]int
}

// NewMockIdentityProvider creates a MockIdentityProvider with sensible defaults.
func NewMockIdentityProvider() *MockIdentityProvider {
	return &MockIdentityProvider{
		AuthURL:     "https://mock-idp/auth",
		StatePrefix: "state",
		NoncePrefix: "nonce",
		DefaultUser: domainauth.Identity{
			UserID:      "mock-user-1",
			Email:       "mock.user@example.com",
			DisplayName: "Mock User",
		},
	}
}

// Calls reports how many times method was invoked.
func (m *MockIdentityProvider) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MockIdentityProvider) record(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
	if method == "Begin" {
		m.callCount++
	}
	return m.callCount
}

func (m *MockIdentityProvider) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	n := m.record("Begin")
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}

	authURL := m.AuthURL
	if authURL == "" {
		authURL = "https://mock-idp/auth"
	}
	statePrefix := m.StatePrefix
	if statePrefix == "" {
		statePrefix = "state"
	}
	noncePrefix := m.NoncePrefix
	if noncePrefix == "" {
		noncePrefix = "nonce"
	}
	return authURL, fmt.Sprintf("%s-%d", statePrefix, n), fmt.Sprintf("%s-%d", noncePrefix, n), nil
}

func (m *MockIdentityProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Credentials, error) {
	m.record("Exchange")
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}
	return m.credentials("code-" + in.Code), nil
}

func (m *MockIdentityProvider) ExchangeSignInToken(ctx context.Context, signInToken string) (domainauth.Credentials, error) {
	m.record("ExchangeSignInToken")
	if m.ExchangeSignInTokenFunc != nil {
		return m.ExchangeSignInTokenFunc(ctx, signInToken)
	}
	return m.credentials("signin-" + signInToken), nil
}

func (m *MockIdentityProvider) Refresh(ctx context.Context, refreshToken string) (domainauth.Credentials, error) {
	m.record("Refresh")
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	if refreshToken == "" {
		return domainauth.Credentials{}, ErrRejected
	}
	return m.credentials("refreshed-" + refreshToken), nil
}

func (m *MockIdentityProvider) credentials(idToken string) domainauth.Credentials {
	user := m.DefaultUser
	if user.UserID == "" {
		user = domainauth.Identity{UserID: "mock-user-1", Email: "mock.user@example.com", DisplayName: "Mock User"}
	}
	return domainauth.Credentials{
		Identity:     user,
		IDToken:      idToken,
		RefreshToken: "refresh-" + user.UserID,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}
