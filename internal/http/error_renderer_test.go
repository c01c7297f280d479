package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/tenantdesk/workspace-shell/internal/errors"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", apperrors.Validation("bad"), http.StatusBadRequest},
		{"unauthorized", apperrors.Unauthorized("expired"), http.StatusUnauthorized},
		{"auth failure", apperrors.New(apperrors.ErrCodeAuthFailure, "rejected"), http.StatusUnauthorized},
		{"not found", apperrors.NotFound("gone"), http.StatusNotFound},
		{"upstream", apperrors.Upstreamf("status %d", 503), http.StatusBadGateway},
		{"invalid response", apperrors.New(apperrors.ErrCodeInvalidResponse, "junk"), http.StatusBadGateway},
		{"provisioning", apperrors.New(apperrors.ErrCodeProvisioning, "create failed"), http.StatusBadGateway},
		{"timeout code", apperrors.New(apperrors.ErrCodeTimeout, "slow"), http.StatusGatewayTimeout},
		{"deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"canceled", context.Canceled, http.StatusServiceUnavailable},
		{"wrapped validation", fmt.Errorf("act: %w", apperrors.Validation("bad")), http.StatusBadRequest},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestWriteAppError(t *testing.T) {
	decode := func(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
		t.Helper()
		var body errorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return body
	}

	t.Run("coded error exposes message and field", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/session:selectTenant", nil)
		WriteAppError(rec, req, nil, apperrors.ValidationField("tenantId", "not a member"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, errorBody{Error: "validation", Message: "not a member", Field: "tenantId"}, decode(t, rec))
	})

	t.Run("cause stays hidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/session", nil)
		WriteAppError(rec, req, nil, apperrors.Wrap(errors.New("dial tcp 10.0.0.1"), apperrors.ErrCodeUpstream, "backend unavailable"))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "backend unavailable", decode(t, rec).Message)
	})

	t.Run("uncoded error is internal", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/session", nil)
		WriteAppError(rec, req, nil, errors.New("redis: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, errorBody{Error: "internal", Message: "internal error"}, decode(t, rec))
	})
}
