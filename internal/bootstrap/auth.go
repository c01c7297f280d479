package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tenantdesk/workspace-shell/config"
	"github.com/tenantdesk/workspace-shell/internal/adapters/devauth"
	"github.com/tenantdesk/workspace-shell/internal/adapters/oidc"
	"github.com/tenantdesk/workspace-shell/internal/ports"
)

// IdentityConfig contains configuration for the identity provider.
type IdentityConfig struct {
	Auth   config.AuthConfig
	Logger *slog.Logger
}

// Identity is the configured provider plus the IdP end-session URL, if any.
type Identity struct {
	Provider  ports.IdentityProvider
	LogoutURL string
}

// BuildIdentityProvider creates the identity provider for the configured auth mode.
func BuildIdentityProvider(cfg IdentityConfig) (Identity, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		return buildDevIdentity(cfg)
	case config.AuthModeOAuth:
		return buildOAuthIdentity(cfg)
	default:
		return Identity{}, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}

func buildDevIdentity(cfg IdentityConfig) (Identity, error) {
	dev := cfg.Auth.DevAuth
	prov, err := devauth.NewProvider(devauth.Config{
		UserID:      dev.UserID,
		Email:       dev.Email,
		DisplayName: dev.DisplayName,
		SigningKey:  dev.SigningKey,
		TokenTTL:    dev.TokenTTL,
	})
	if err != nil {
		return Identity{}, fmt.Errorf("dev auth provider: %w", err)
	}
	if cfg.Logger != nil {
		cfg.Logger.Warn("dev auth enabled; every sign-in resolves to the configured user", "user_id", dev.UserID)
	}
	return Identity{Provider: prov}, nil
}

func buildOAuthIdentity(cfg IdentityConfig) (Identity, error) {
	oauth := cfg.Auth.OAuth
	if oauth.DiscoveryURL == "" || oauth.ClientID == "" || oauth.ClientSecret == "" {
		return Identity{}, errors.New("oauth mode requires discovery URL, client ID and client secret")
	}

	prov, err := oidc.NewProvider(oidc.ProviderConfig{
		ClientID:     oauth.ClientID,
		ClientSecret: oauth.ClientSecret,
		RedirectURL:  oauth.RedirectURL,
		Scope:        oauth.Scope,
		DiscoveryURL: oauth.DiscoveryURL,
		LogoutURL:    oauth.LogoutURL,
	})
	if err != nil {
		return Identity{}, fmt.Errorf("oidc provider: %w", err)
	}
	return Identity{Provider: prov, LogoutURL: prov.LogoutURL()}, nil
}
