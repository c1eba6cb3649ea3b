// Package apperr carries client-safe errors from services to HTTP handlers.
package apperr

import (
	"errors"
	"net/http"
)

const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeRateLimited  = "RATE_LIMITED"
	CodeInternal     = "INTERNAL_ERROR"
)

const internalMessage = "Erro interno do servidor"

// AppError is an expected failure with a message that is safe to show to the
// client. Cause is for server-side logs only.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	RetryAfter int
	Details    []FieldError
	Cause      error
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *AppError) Error() string { return e.Message }

func (e *AppError) Unwrap() error { return e.Cause }

// WithCause returns a copy of e that wraps cause.
func (e *AppError) WithCause(cause error) *AppError {
	clone := *e
	clone.Cause = cause
	return &clone
}

func Validation(message string, details ...FieldError) *AppError {
	return &AppError{Code: CodeValidation, Message: message, HTTPStatus: http.StatusBadRequest, Details: details}
}

func Unauthorized(message string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: message, HTTPStatus: http.StatusUnauthorized}
}

func Forbidden(message string) *AppError {
	return &AppError{Code: CodeForbidden, Message: message, HTTPStatus: http.StatusForbidden}
}

func NotFound(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message, HTTPStatus: http.StatusNotFound}
}

func Conflict(message string) *AppError {
	return &AppError{Code: CodeConflict, Message: message, HTTPStatus: http.StatusConflict}
}

func RateLimited(message string, retryAfterSeconds int) *AppError {
	if retryAfterSeconds < 1 {
		retryAfterSeconds = 1
	}
	return &AppError{Code: CodeRateLimited, Message: message, HTTPStatus: http.StatusTooManyRequests, RetryAfter: retryAfterSeconds}
}

func Internal(cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: internalMessage, HTTPStatus: http.StatusInternalServerError, Cause: cause}
}

// From extracts an AppError from err's chain. Anything else becomes an
// internal error wrapping err.
func From(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// IsInternal reports whether err would be rendered as a 500.
func IsInternal(err error) bool {
	return From(err).HTTPStatus >= http.StatusInternalServerError
}
