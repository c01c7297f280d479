package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/tenantdesk/workspace-shell/internal/errors"
)

// StatusFor maps an error onto the HTTP status the session API answers with.
func StatusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest
	case apperrors.ErrCodeUnauthorized, apperrors.ErrCodeAuthFailure:
		return http.StatusUnauthorized
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeUpstream, apperrors.ErrCodeInvalidResponse, apperrors.ErrCodeProvisioning:
		return http.StatusBadGateway
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrCodeCanceled:
		return http.StatusServiceUnavailable
	case apperrors.ErrCodeInternal:
		return http.StatusInternalServerError
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// errorCodeFor returns the machine-readable code reported in the error body.
func errorCodeFor(err error) string {
	if code := apperrors.GetCode(err); code != "" {
		return string(code)
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return string(apperrors.ErrCodeTimeout)
	case errors.Is(err, context.Canceled):
		return string(apperrors.ErrCodeCanceled)
	}
	return string(apperrors.ErrCodeInternal)
}

// WriteAppError writes err as a JSON error response. Coded errors expose their
// message and field; anything else is logged and reported as an internal error.
func WriteAppError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := StatusFor(err)
	params := ErrorParams{Code: status, ErrCode: errorCodeFor(err), Err: err}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		params.Err = errors.New(appErr.Message)
		params.Field = appErr.Field
	} else if status == http.StatusInternalServerError {
		params.Err = errors.New("internal error")
	}

	if status >= http.StatusInternalServerError {
		if logger == nil {
			logger = slog.Default()
		}
		logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path, "status", status, "error", err)
	}
	WriteError(w, params)
}
