package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity represents the authenticated principal returned by an IdP.
// Adapters map provider-specific claims into this shape.
type Identity struct {
	UserID      string // stable user identifier (sub)
	Email       string
	DisplayName string
}

// Credentials is what a successful sign-in or refresh yields.
type Credentials struct {
	Identity     Identity
	IDToken      string // opaque bearer token presented to the workspace backend
	RefreshToken string
	ExpiresAt    time.Time
}

// Session is the in-memory view of the signed-in state for one device.
// It is owned by the auth watcher and torn down on sign-out.
type Session struct {
	IdentityToken   string
	UserDisplayName string
	AuthPending     bool
}

// SignedIn reports whether the session carries an identity token.
func (s Session) SignedIn() bool { return s.IdentityToken != "" }

// SignalSource says which watcher task produced an AuthSignal.
type SignalSource string

const (
	SourceInitial      SignalSource = "initial"
	SourceExchange     SignalSource = "exchange"
	SourceSubscription SignalSource = "subscription"
)

// AuthSignal is emitted by the auth watcher each time the session changes.
type AuthSignal struct {
	Session Session
	Source  SignalSource
}

// AuthState is one notification from the identity provider's auth-state stream.
// A nil User means the provider considers nobody signed in.
type AuthState struct {
	User *StreamUser
}

// StreamUser is the signed-in user as reported by the auth-state stream.
type StreamUser struct {
	RefreshToken string
	DisplayName  string
}

// DisplayNameFromToken extracts a human-readable name from a JWT identity token
// without verifying it. Verification happens in the adapter that minted or
// received the token; this is only used for presentation.
func DisplayNameFromToken(token string) string {
	if token == "" {
		return ""
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	for _, key := range []string{"name", "preferred_username", "email"} {
		if v, ok := claims[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	given, _ := claims["given_name"].(string)
	family, _ := claims["family_name"].(string)
	return strings.TrimSpace(given + " " + family)
}
