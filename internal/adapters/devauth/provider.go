// Package devauth provides a config-driven identity provider for local development.
package devauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	domainauth "github.com/tenantdesk/workspace-shell/internal/domain/auth"
	apperrors "github.com/tenantdesk/workspace-shell/internal/errors"
	"github.com/tenantdesk/workspace-shell/internal/ports"
)

const (
	issuer         = "workspace-shell-dev"
	typIdentity    = "id"
	typRefresh     = "refresh"
	refreshTTLMult = 24
)

// Config controls the dev auth provider behavior.
type Config struct {
	UserID      string
	Email       string
	DisplayName string
	SigningKey  string
	TokenTTL    time.Duration // default 1h when zero
}

// Provider implements ports.IdentityProvider for local development.
// It short-circuits the OAuth flow by redirecting back to our own callback
// and mints HS256 identity tokens for the configured user.
type Provider struct {
	identity domainauth.Identity
	key      []byte
	ttl      time.Duration
	now      func() time.Time
}

var _ ports.IdentityProvider = (*Provider)(nil)

type claims struct {
	jwt.RegisteredClaims
	Typ   string `json:"typ"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	if cfg.SigningKey == "" {
		return nil, errors.New("dev auth: SigningKey is required")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Provider{
		identity: domainauth.Identity{
			UserID:      cfg.UserID,
			Email:       cfg.Email,
			DisplayName: cfg.DisplayName,
		},
		key: []byte(cfg.SigningKey),
		ttl: ttl,
		now: time.Now,
	}, nil
}

// Begin returns a local callback URL and cryptographically secure state and nonce.
func (p *Provider) Begin(_ context.Context, _ ports.BeginInput) (string, string, string, error) {
	state, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}
	// The callback handler expects GET /auth/callback?code=...&state=...
	authURL := "/auth/callback?code=dev&state=" + state
	return authURL, state, nonce, nil
}

// Exchange ignores the code and returns credentials for the configured identity.
func (p *Provider) Exchange(_ context.Context, _ ports.ExchangeInput) (domainauth.Credentials, error) {
	return p.issue(p.identity)
}

// ExchangeSignInToken accepts any non-blank sign-in token. A token minted by
// MintSignInToken signs in as the identity it carries.
func (p *Provider) ExchangeSignInToken(_ context.Context, signInToken string) (domainauth.Credentials, error) {
	signInToken = strings.TrimSpace(signInToken)
	if signInToken == "" {
		return domainauth.Credentials{}, apperrors.New(apperrors.ErrCodeAuthFailure, "sign-in token is required")
	}
	if c, err := p.parse(signInToken, typIdentity); err == nil {
		return p.issue(domainauth.Identity{UserID: c.Subject, Email: c.Email, DisplayName: c.Name})
	}
	return p.issue(p.identity)
}

// Refresh verifies a refresh token minted by this provider and issues fresh credentials.
func (p *Provider) Refresh(_ context.Context, refreshToken string) (domainauth.Credentials, error) {
	if refreshToken == "" {
		return domainauth.Credentials{}, apperrors.Unauthorized("refresh token is required")
	}
	c, err := p.parse(refreshToken, typRefresh)
	if err != nil {
		return domainauth.Credentials{}, apperrors.Wrap(err, apperrors.ErrCodeAuthFailure, "refresh token rejected")
	}
	return p.issue(domainauth.Identity{UserID: c.Subject, Email: c.Email, DisplayName: c.Name})
}

// MintSignInToken returns a one-time sign-in token for id, for local handoff testing.
func (p *Provider) MintSignInToken(id domainauth.Identity) (string, error) {
	return p.sign(id, typIdentity, p.ttl)
}

func (p *Provider) issue(id domainauth.Identity) (domainauth.Credentials, error) {
	idToken, err := p.sign(id, typIdentity, p.ttl)
	if err != nil {
		return domainauth.Credentials{}, err
	}
	refresh, err := p.sign(id, typRefresh, p.ttl*refreshTTLMult)
	if err != nil {
		return domainauth.Credentials{}, err
	}
	return domainauth.Credentials{
		Identity:     id,
		IDToken:      idToken,
		RefreshToken: refresh,
		ExpiresAt:    p.now().Add(p.ttl),
	}, nil
}

func (p *Provider) sign(id domainauth.Identity, typ string, ttl time.Duration) (string, error) {
	now := p.now()
	jti, err := randomString(16)
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.UserID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Typ:   typ,
		Email: id.Email,
		Name:  id.DisplayName,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(p.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

func (p *Provider) parse(raw, typ string) (*claims, error) {
	c := &claims{}
	_, err := jwt.ParseWithClaims(raw, c, func(*jwt.Token) (any, error) { return p.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, err
	}
	if c.Typ != typ {
		return nil, fmt.Errorf("token type %q, want %q", c.Typ, typ)
	}
	return c, nil
}

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	bLen := (n*3 + 3) / 4
	b := make([]byte, bLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < n {
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:n], nil
}
