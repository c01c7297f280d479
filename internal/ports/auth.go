package ports

// Package ports defines interfaces (hexagonal ports) for the resolution engine.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"

	domainauth "github.com/tenantdesk/workspace-shell/internal/domain/auth"
)

// BeginInput carries inputs for initiating an interactive sign-in.
type BeginInput struct {
	RedirectURL string
}

// ExchangeInput groups parameters for the authorization-code exchange.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// IdentityProvider signs users in and keeps their identity token fresh.
type IdentityProvider interface {
	// Begin starts the interactive login flow and returns the provider auth URL, an opaque state, and a nonce.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)

	// Exchange completes the interactive flow, verifying state and nonce.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.Credentials, error)

	// ExchangeSignInToken trades a one-time handoff credential for a session.
	ExchangeSignInToken(ctx context.Context, signInToken string) (domainauth.Credentials, error)

	// Refresh forces a new identity token from a refresh token.
	Refresh(ctx context.Context, refreshToken string) (domainauth.Credentials, error)
}

// AuthStateSource streams auth-state changes for one device. The stream only
// carries changes published after Subscribe returns; it closes when ctx ends.
type AuthStateSource interface {
	Subscribe(ctx context.Context, deviceID string) (<-chan domainauth.AuthState, error)
}

// AuthStatePublisher announces sign-in and sign-out for one device.
type AuthStatePublisher interface {
	Publish(ctx context.Context, deviceID string, state domainauth.AuthState) error
}

// AuthStateBus is both ends of the auth-state stream.
type AuthStateBus interface {
	AuthStateSource
	AuthStatePublisher
}
