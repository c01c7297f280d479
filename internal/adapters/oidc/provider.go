// Package oidc provides the OIDC/OAuth identity provider adapter.
package oidc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	domainauth "github.com/tenantdesk/workspace-shell/internal/domain/auth"
	apperrors "github.com/tenantdesk/workspace-shell/internal/errors"
	"github.com/tenantdesk/workspace-shell/internal/ports"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	tokenExchangeGrant = "urn:ietf:params:oauth:grant-type:token-exchange"
	subjectTokenType   = "urn:ietf:params:oauth:token-type:jwt"
)

// Provider implements ports.IdentityProvider using OIDC/OAuth2.
type Provider struct {
	config     *oauth2.Config
	logoutURL  string
	httpClient *http.Client

	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
}

var _ ports.IdentityProvider = (*Provider)(nil)

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	DiscoveryURL string
	LogoutURL    string
	HTTPClient   *http.Client // Optional, defaults to a 30s client
}

// DiscoveryDocument represents the OIDC discovery document.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

// NewProvider creates a new OIDC provider.
func NewProvider(config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if config.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	p := &Provider{
		logoutURL:  config.LogoutURL,
		httpClient: httpClient,
	}

	ctx := p.clientContext(context.Background())
	issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	p.oidcProvider = op
	p.verifier = op.Verifier(&gooidc.Config{ClientID: config.ClientID})

	p.config = &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURL:  config.RedirectURL,
		Scopes:       strings.Fields(config.Scope),
		Endpoint:     op.Endpoint(),
	}

	return p, nil
}

// LogoutURL returns the configured end-session URL, if any.
func (p *Provider) LogoutURL() string { return p.logoutURL }

func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	if in.RedirectURL == "" {
		return "", "", "", errors.New("redirect URL is required")
	}

	state, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}

	nonce, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	// redirect_uri stays the configured one; the IdP matches it exactly.
	authURL := p.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("response_type", "code"),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)

	return authURL, state, nonce, nil
}

func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Credentials, error) {
	if in.Code == "" {
		return domainauth.Credentials{}, errors.New("authorization code is required")
	}
	if in.State == "" {
		return domainauth.Credentials{}, errors.New("state is required")
	}
	if in.Nonce == "" {
		return domainauth.Credentials{}, errors.New("nonce is required")
	}

	token, err := p.config.Exchange(p.clientContext(ctx), in.Code)
	if err != nil {
		return domainauth.Credentials{}, mapTokenError(err, "exchange code for token")
	}
	return p.credentials(ctx, token, in.Nonce, "")
}

// ExchangeSignInToken trades a one-time sign-in credential for session tokens
// using the RFC 8693 token-exchange grant.
func (p *Provider) ExchangeSignInToken(ctx context.Context, signInToken string) (domainauth.Credentials, error) {
	if strings.TrimSpace(signInToken) == "" {
		return domainauth.Credentials{}, apperrors.New(apperrors.ErrCodeAuthFailure, "sign-in token is required")
	}

	exchange := clientcredentials.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: p.config.ClientSecret,
		TokenURL:     p.config.Endpoint.TokenURL,
		AuthStyle:    p.config.Endpoint.AuthStyle,
		EndpointParams: url.Values{
			"grant_type":         {tokenExchangeGrant},
			"subject_token":      {signInToken},
			"subject_token_type": {subjectTokenType},
		},
	}
	token, err := exchange.Token(p.clientContext(ctx))
	if err != nil {
		return domainauth.Credentials{}, mapTokenError(err, "exchange sign-in token")
	}
	return p.credentials(ctx, token, "", "")
}

// Refresh forces a new identity token from a refresh token.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (domainauth.Credentials, error) {
	if refreshToken == "" {
		return domainauth.Credentials{}, apperrors.Unauthorized("refresh token is required")
	}

	ts := p.config.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := ts.Token()
	if err != nil {
		return domainauth.Credentials{}, mapTokenError(err, "refresh token")
	}
	return p.credentials(ctx, token, "", refreshToken)
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// credentials verifies the id_token in tok and builds Credentials from it.
// fallbackRefresh is kept when the token response omits a rotated refresh token.
func (p *Provider) credentials(
	ctx context.Context,
	tok *oauth2.Token,
	expectedNonce, fallbackRefresh string,
) (domainauth.Credentials, error) {
	rawID, err := getIDTokenFromToken(tok)
	if err != nil {
		return domainauth.Credentials{}, apperrors.Wrap(err, apperrors.ErrCodeAuthFailure, "token response")
	}
	fields, err := p.extractFromIDToken(ctx, rawID, expectedNonce)
	if err != nil {
		return domainauth.Credentials{}, apperrors.Wrap(err, apperrors.ErrCodeAuthFailure, "extract id_token")
	}

	if fields.email == "" || fields.userID == "" {
		if fillErr := p.fillFromUserInfo(ctx, tok.AccessToken, &fields); fillErr != nil {
			return domainauth.Credentials{}, fmt.Errorf("get user info: %w", fillErr)
		}
	}

	expiresAt := time.Now().Add(time.Hour)
	if !tok.Expiry.IsZero() {
		expiresAt = tok.Expiry
	}

	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = fallbackRefresh
	}

	return domainauth.Credentials{
		Identity: domainauth.Identity{
			UserID:      fields.userID,
			Email:       fields.email,
			DisplayName: fields.displayName(),
		},
		IDToken:      rawID,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}, nil
}

// mapTokenError classifies token endpoint failures. A 4xx from the token
// endpoint means the credential itself was rejected.
func mapTokenError(err error, op string) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil &&
		re.Response.StatusCode >= 400 && re.Response.StatusCode < 500 {
		return apperrors.Wrap(err, apperrors.ErrCodeAuthFailure, op+" rejected")
	}
	return apperrors.Wrap(err, apperrors.ErrCodeUpstream, op)
}

// UserInfo represents the user information from the OIDC userinfo endpoint.
type UserInfo struct {
	Subject           string `json:"sub"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	GivenName         string `json:"given_name"`
	FamilyName        string `json:"family_name"`
}

func (p *Provider) getUserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	if accessToken == "" {
		return nil, errors.New("no access token for userinfo")
	}
	ui, err := p.oidcProvider.UserInfo(p.clientContext(ctx), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	var userInfo UserInfo
	if claimsErr := ui.Claims(&userInfo); claimsErr != nil {
		return nil, fmt.Errorf("decode user info: %w", claimsErr)
	}
	return &userInfo, nil
}

type idFields struct {
	userID     string
	email      string
	name       string
	givenName  string
	familyName string
}

func (f idFields) displayName() string {
	if f.name != "" {
		return f.name
	}
	if full := strings.TrimSpace(f.givenName + " " + f.familyName); full != "" {
		return full
	}
	return f.email
}

func (p *Provider) extractFromIDToken(ctx context.Context, rawID, expectedNonce string) (idFields, error) {
	var f idFields
	idTok, err := p.verifier.Verify(p.clientContext(ctx), rawID)
	if err != nil {
		return f, fmt.Errorf("verify id_token: %w", err)
	}
	var claims idTokenClaims
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return f, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	if expectedNonce != "" && claims.Nonce != expectedNonce {
		return f, errors.New("invalid nonce")
	}
	return mapIDTokenClaims(claims), nil
}

func (p *Provider) fillFromUserInfo(ctx context.Context, accessToken string, f *idFields) error {
	ui, err := p.getUserInfo(ctx, accessToken)
	if err != nil {
		return err
	}
	fillFromUserInfoClaims(f, *ui)
	return nil
}

type idTokenClaims struct {
	Sub               string `json:"sub"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	GivenName         string `json:"given_name"`
	FamilyName        string `json:"family_name"`
	Nonce             string `json:"nonce"`
}

func mapIDTokenClaims(c idTokenClaims) idFields {
	return idFields{
		userID:     c.Sub,
		email:      c.Email,
		name:       firstNonEmpty(c.Name, c.PreferredUsername),
		givenName:  c.GivenName,
		familyName: c.FamilyName,
	}
}

// fillFromUserInfoClaims fills only the fields still missing after the id_token.
func fillFromUserInfoClaims(f *idFields, ui UserInfo) {
	if f.userID == "" {
		f.userID = ui.Subject
	}
	if f.email == "" {
		f.email = ui.Email
	}
	if f.name == "" {
		f.name = firstNonEmpty(ui.Name, ui.PreferredUsername)
	}
	if f.givenName == "" {
		f.givenName = ui.GivenName
	}
	if f.familyName == "" {
		f.familyName = ui.FamilyName
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// generateRandomString generates a cryptographically secure URL-safe random string of exact length.
func generateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	nBytes := (length*3 + 3) / 4
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < length {
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:length], nil
}

// getIDTokenFromToken extracts the id_token from oauth2.Token.
func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	raw := tok.Extra("id_token")
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}
