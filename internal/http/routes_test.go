package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tenantdesk/workspace-shell/internal/observability/requestid"
)

func TestRouter_HealthzSkipsDeviceCookie(t *testing.T) {
	h := NewRouter(RouterServices{Engine: &fakeEngine{}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
	assert.NotEmpty(t, rec.Header().Get(requestid.Header))
}

func TestRouter_UnknownRoute(t *testing.T) {
	h := NewRouter(RouterServices{Engine: &fakeEngine{}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/session:teleport", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_ReadyzRunsChecks(t *testing.T) {
	h := NewRouter(RouterServices{
		Engine: &fakeEngine{},
		Health: map[string]HealthCheck{
			"redis": func(context.Context) error { return errors.New("down") },
		},
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"down"`)
	assert.Empty(t, rec.Result().Cookies())
}
