package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeUnauthorized indicates the backend rejected the identity token (HTTP 401).
	ErrCodeUnauthorized ErrorCode = "unauthorized"
	// ErrCodeAuthFailure indicates a one-time credential exchange was rejected.
	ErrCodeAuthFailure ErrorCode = "auth_failure"
	// ErrCodeProvisioning indicates workspace or tenant creation failed.
	ErrCodeProvisioning ErrorCode = "provisioning"
	// ErrCodeUpstream indicates the backend answered with a non-ok status or body.
	ErrCodeUpstream ErrorCode = "upstream"
	// ErrCodeInvalidResponse indicates the backend answered with an undecodable body.
	ErrCodeInvalidResponse ErrorCode = "invalid_response"
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates an AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Unauthorized creates a new Unauthorized error.
func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return New(ErrCodeNotFound, message)
}

// NotFoundf creates a new NotFound error with formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf(format, args...))
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return New(ErrCodeValidation, message)
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
		Field:   field,
	}
}

// Upstreamf creates a new Upstream error with formatted message.
func Upstreamf(format string, args ...any) *AppError {
	return New(ErrCodeUpstream, fmt.Sprintf(format, args...))
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// MessageTemplate describes a lazily formatted error message used with Wrapf.
type MessageTemplate struct {
	format string
	args   []any
}

// Messagef creates a lazily formatted message template for Wrapf.
func Messagef(format string, args ...any) MessageTemplate {
	return MessageTemplate{
		format: format,
		args:   args,
	}
}

func (mt MessageTemplate) String() string {
	if len(mt.args) == 0 {
		return mt.format
	}
	return fmt.Sprintf(mt.format, mt.args...)
}

// WrapTemplate wraps an existing error with an AppError using a preconstructed message template.
func WrapTemplate(err error, code ErrorCode, template MessageTemplate) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: template.String(),
		Cause:   err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return WrapTemplate(err, code, Messagef(format, args...))
}

// isCode checks if an error has a specific error code.
// The outermost AppError in the chain wins.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsUnauthorized checks if an error is an Unauthorized error.
func IsUnauthorized(err error) bool {
	return isCode(err, ErrCodeUnauthorized)
}

// IsAuthFailure checks if an error is an AuthFailure error.
func IsAuthFailure(err error) bool {
	return isCode(err, ErrCodeAuthFailure)
}

// IsProvisioning checks if an error is a Provisioning error.
func IsProvisioning(err error) bool {
	return isCode(err, ErrCodeProvisioning)
}

// IsUpstream checks if an error is an Upstream error.
func IsUpstream(err error) bool {
	return isCode(err, ErrCodeUpstream)
}

// IsInvalidResponse checks if an error is an InvalidResponse error.
func IsInvalidResponse(err error) bool {
	return isCode(err, ErrCodeInvalidResponse)
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool {
	return isCode(err, ErrCodeNotFound)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsInternal checks if an error is an Internal error.
func IsInternal(err error) bool {
	return isCode(err, ErrCodeInternal)
}

// IsTimeout checks if an error is a Timeout error.
func IsTimeout(err error) bool {
	return isCode(err, ErrCodeTimeout)
}

// IsCanceled checks if an error is a Canceled error.
func IsCanceled(err error) bool {
	return isCode(err, ErrCodeCanceled)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
