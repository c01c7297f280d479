package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	httpx "github.com/tenantdesk/workspace-shell/internal/http"
)

func TestRouterServices(t *testing.T) {
	cfg := devConfig()
	cfg.HTTP.BaseURL = "https://app.tenantdesk.example.co.uk"
	services, err := NewServices(&ServiceDeps{Config: cfg, Logger: discardLogger()})
	require.NoError(t, err)

	rs := routerServices(cfg, services, discardLogger())
	assert.Equal(t, "example.co.uk", rs.CookieDomain)
	assert.NotNil(t, rs.Identity)

	cfg.HTTP.CookieDomain = "tenantdesk.example.co.uk"
	assert.Equal(t, "tenantdesk.example.co.uk", routerServices(cfg, services, discardLogger()).CookieDomain)
}

func TestBuildHTTPHandler(t *testing.T) {
	services, err := NewServices(&ServiceDeps{Config: devConfig(), Logger: discardLogger()})
	require.NoError(t, err)
	h := buildHTTPHandler(discardLogger(), routerServices(devConfig(), services, discardLogger()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"view":"loading"`)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, httpx.DeviceCookieName, rec.Result().Cookies()[0].Name)
}

func TestStartAndShutdownHTTPServer(t *testing.T) {
	cfg := devConfig()
	cfg.HTTP.Addr = "127.0.0.1:0"
	services, err := NewServices(&ServiceDeps{Config: cfg, Logger: discardLogger()})
	require.NoError(t, err)

	server := StartHTTPServer(&HTTPServerConfig{Config: cfg, Services: services, Logger: discardLogger()})
	require.NotNil(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ShutdownHTTPServer(ShutdownConfig{Context: ctx, Server: server, Logger: discardLogger()}))
	assert.NoError(t, ShutdownHTTPServer(ShutdownConfig{}))
	assert.Nil(t, StartHTTPServer(nil))
}
