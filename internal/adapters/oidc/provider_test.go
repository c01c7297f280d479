package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/tenantdesk/workspace-shell/internal/errors"
	"github.com/tenantdesk/workspace-shell/internal/ports"
	"golang.org/x/oauth2"
)

const testClientID = "test-client"

// fakeIssuer is a minimal OIDC provider: discovery, JWKS and a token endpoint.
type fakeIssuer struct {
	srv *httptest.Server
	key *rsa.PrivateKey

	mu        sync.Mutex
	nonce     string
	lastGrant string
	lastForm  url.Values
	omitID    bool
}

func newFakeIssuer(t *testing.T) *fakeIssuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	f := &fakeIssuer{key: key}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                f.srv.URL,
			"authorization_endpoint":                f.srv.URL + "/auth",
			"token_endpoint":                        f.srv.URL + "/token",
			"userinfo_endpoint":                     f.srv.URL + "/userinfo",
			"jwks_uri":                              f.srv.URL + "/jwks",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "k1",
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	})
	mux.HandleFunc("/token", f.handleToken)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeIssuer) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.lastGrant = r.PostForm.Get("grant_type")
	f.lastForm = r.PostForm
	nonce, omitID := f.nonce, f.omitID
	f.mu.Unlock()

	var accepted bool
	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		accepted = r.PostForm.Get("code") == "good-code"
	case tokenExchangeGrant:
		accepted = r.PostForm.Get("subject_token") == "signin-ok"
	case "refresh_token":
		accepted = r.PostForm.Get("refresh_token") == "rt-ok"
	}
	w.Header().Set("Content-Type", "application/json")
	if !accepted {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		return
	}

	body := map[string]any{
		"access_token": "at",
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
	if r.PostForm.Get("grant_type") != "refresh_token" {
		body["refresh_token"] = "rt-new"
	}
	if !omitID {
		body["id_token"] = f.sign(nonce)
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakeIssuer) setNonce(n string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonce = n
}

func (f *fakeIssuer) grant() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastGrant
}

func (f *fakeIssuer) form() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastForm
}

func (f *fakeIssuer) sign(nonce string) string {
	claims := jwt.MapClaims{
		"iss":   f.srv.URL,
		"aud":   testClientID,
		"sub":   "user-1",
		"email": "ada@example.com",
		"name":  "Ada Lovelace",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = "k1"
	s, err := tok.SignedString(f.key)
	if err != nil {
		panic(err)
	}
	return s
}

func (f *fakeIssuer) provider(t *testing.T) *Provider {
	t.Helper()
	p, err := NewProvider(ProviderConfig{
		ClientID:     testClientID,
		ClientSecret: "test-secret",
		RedirectURL:  "http://localhost:8080/auth/callback",
		Scope:        "openid profile email offline_access",
		DiscoveryURL: f.srv.URL + "/.well-known/openid-configuration",
		LogoutURL:    "https://example.com/logout",
	})
	require.NoError(t, err)
	return p
}

func TestNewProvider_Success(t *testing.T) {
	f := newFakeIssuer(t)
	p := f.provider(t)
	assert.Equal(t, f.srv.URL+"/auth", p.config.Endpoint.AuthURL)
	assert.Equal(t, f.srv.URL+"/token", p.config.Endpoint.TokenURL)
	assert.Equal(t, "https://example.com/logout", p.LogoutURL())
}

func TestNewProvider_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		config ProviderConfig
		errMsg string
	}{
		{
			name:   "missing client ID",
			config: ProviderConfig{ClientSecret: "secret", RedirectURL: "http://localhost/cb", DiscoveryURL: "http://example.com"},
			errMsg: "client ID is required",
		},
		{
			name:   "missing client secret",
			config: ProviderConfig{ClientID: "client", RedirectURL: "http://localhost/cb", DiscoveryURL: "http://example.com"},
			errMsg: "client secret is required",
		},
		{
			name:   "missing redirect URL",
			config: ProviderConfig{ClientID: "client", ClientSecret: "secret", DiscoveryURL: "http://example.com"},
			errMsg: "redirect URL is required",
		},
		{
			name:   "missing discovery URL",
			config: ProviderConfig{ClientID: "client", ClientSecret: "secret", RedirectURL: "http://localhost/cb"},
			errMsg: "discovery URL is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestProvider_Begin(t *testing.T) {
	p := newFakeIssuer(t).provider(t)

	authURL, state, nonce, err := p.Begin(context.Background(), ports.BeginInput{RedirectURL: "/"})
	require.NoError(t, err)
	assert.NotEmpty(t, state)
	assert.NotEmpty(t, nonce)
	assert.Contains(t, authURL, "client_id="+testClientID)
	assert.Contains(t, authURL, "state="+state)
	assert.Contains(t, authURL, "nonce="+nonce)

	_, _, _, err = p.Begin(context.Background(), ports.BeginInput{})
	require.Error(t, err)
}

func TestProvider_Exchange_ValidationErrors(t *testing.T) {
	p := newFakeIssuer(t).provider(t)

	tests := []struct {
		name   string
		input  ports.ExchangeInput
		errMsg string
	}{
		{name: "missing code", input: ports.ExchangeInput{State: "s", Nonce: "n"}, errMsg: "authorization code is required"},
		{name: "missing state", input: ports.ExchangeInput{Code: "c", Nonce: "n"}, errMsg: "state is required"},
		{name: "missing nonce", input: ports.ExchangeInput{Code: "c", State: "s"}, errMsg: "nonce is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Exchange(context.Background(), tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestProvider_Exchange_Success(t *testing.T) {
	f := newFakeIssuer(t)
	p := f.provider(t)
	f.setNonce("n-1")

	creds, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "good-code", State: "s", Nonce: "n-1"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", creds.Identity.UserID)
	assert.Equal(t, "Ada Lovelace", creds.Identity.DisplayName)
	assert.Equal(t, "rt-new", creds.RefreshToken)
	assert.NotEmpty(t, creds.IDToken)
	assert.True(t, creds.ExpiresAt.After(time.Now()))
}

func TestProvider_Exchange_NonceMismatch(t *testing.T) {
	f := newFakeIssuer(t)
	p := f.provider(t)
	f.setNonce("issued")

	_, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "good-code", State: "s", Nonce: "expected"})
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthFailure(err))
}

func TestProvider_ExchangeSignInToken(t *testing.T) {
	f := newFakeIssuer(t)
	p := f.provider(t)

	creds, err := p.ExchangeSignInToken(context.Background(), "signin-ok")
	require.NoError(t, err)
	assert.Equal(t, tokenExchangeGrant, f.grant())
	assert.Equal(t, "ada@example.com", creds.Identity.Email)

	form := f.form()
	assert.Equal(t, subjectTokenType, form.Get("subject_token_type"))
	assert.False(t, form.Has("code"), "token exchange must not send an authorization code")
	assert.False(t, form.Has("redirect_uri"))

	_, err = p.ExchangeSignInToken(context.Background(), "signin-bad")
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthFailure(err))

	_, err = p.ExchangeSignInToken(context.Background(), " ")
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthFailure(err))
}

func TestProvider_Refresh(t *testing.T) {
	f := newFakeIssuer(t)
	p := f.provider(t)

	creds, err := p.Refresh(context.Background(), "rt-ok")
	require.NoError(t, err)
	assert.Equal(t, "refresh_token", f.grant())
	assert.Equal(t, "rt-ok", creds.RefreshToken, "unrotated refresh token is kept")
	assert.NotEmpty(t, creds.IDToken)

	_, err = p.Refresh(context.Background(), "")
	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthorized(err))

	_, err = p.Refresh(context.Background(), "rt-revoked")
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthFailure(err))
}

func TestProvider_MissingIDToken(t *testing.T) {
	f := newFakeIssuer(t)
	p := f.provider(t)
	f.mu.Lock()
	f.omitID = true
	f.mu.Unlock()

	_, err := p.ExchangeSignInToken(context.Background(), "signin-ok")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing id_token")
}

func TestGenerateRandomString(t *testing.T) {
	str1, err := generateRandomString(16)
	require.NoError(t, err)
	assert.Len(t, str1, 16)

	str2, err := generateRandomString(32)
	require.NoError(t, err)
	assert.Len(t, str2, 32)

	str3, err := generateRandomString(16)
	require.NoError(t, err)
	assert.NotEqual(t, str1, str3)
}

func TestGetIDTokenFromToken(t *testing.T) {
	tok := (&oauth2.Token{}).WithExtra(map[string]any{"id_token": "abc.def.ghi"})
	idTok, err := getIDTokenFromToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", idTok)

	_, err = getIDTokenFromToken((&oauth2.Token{}).WithExtra(map[string]any{"not_id": "x"}))
	require.ErrorContains(t, err, "missing id_token")

	_, err = getIDTokenFromToken(nil)
	require.ErrorContains(t, err, "nil token")
}

func Test_mapIDTokenClaims(t *testing.T) {
	f := mapIDTokenClaims(idTokenClaims{Sub: "sub-1", Email: "a@example.com", PreferredUsername: "ada"})
	assert.Equal(t, "sub-1", f.userID)
	assert.Equal(t, "ada", f.displayName())

	f = mapIDTokenClaims(idTokenClaims{Sub: "sub-1", GivenName: "Ada", FamilyName: "L"})
	assert.Equal(t, "Ada L", f.displayName())
}

func Test_fillFromUserInfoClaims(t *testing.T) {
	ui := UserInfo{Subject: "sub-abc", Email: "mail@example.com", Name: "Mail User"}
	var f idFields
	fillFromUserInfoClaims(&f, ui)
	assert.Equal(t, "sub-abc", f.userID)
	assert.Equal(t, "mail@example.com", f.email)
	assert.Equal(t, "Mail User", f.displayName())

	keep := idFields{userID: "keep", email: "keep@example.com", name: "Keep"}
	fillFromUserInfoClaims(&keep, ui)
	assert.Equal(t, "keep", keep.userID)
	assert.Equal(t, "keep@example.com", keep.email)
	assert.Equal(t, "Keep", keep.name)
}
