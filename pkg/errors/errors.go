package errors

import (
	"errors"
	"net/http"
)

// Standard error categories
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrDuplicate          = errors.New("duplicate resource")
	ErrConflict           = errors.New("resource conflict")
	ErrInternal           = errors.New("internal server error")
	ErrExternalService    = errors.New("external service failure")
	ErrNoRoute            = errors.New("no route found")
	ErrTemporaryFailure   = errors.New("temporary failure")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("timeout")
)

// AppError is a structured application error carrying the HTTP status
// it should surface as and whether a retry is worthwhile.
type AppError struct {
	Err        error
	StatusCode int
	Message    string
	Retryable  bool
}

// Error returns the error message
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error category
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError with the given parameters
func NewAppError(err error, message string, statusCode int, retryable bool) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
	}
}

// IsRetryable checks if the error is worth retrying
func IsRetryable(err error) bool {
	var appErr *AppError

	if errors.As(err, &appErr) {
		return appErr.Retryable
	}

	return errors.Is(err, ErrTemporaryFailure) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// StatusCode extracts the HTTP status an error maps to, defaulting to 500
func StatusCode(err error) int {
	var appErr *AppError

	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}

	return http.StatusInternalServerError
}

// NewNotFoundError creates a not found error (404)
func NewNotFoundError(message string) *AppError {
	return NewAppError(ErrNotFound, message, http.StatusNotFound, false)
}

// NewInvalidInputError creates a validation error (400)
func NewInvalidInputError(message string) *AppError {
	return NewAppError(ErrInvalidInput, message, http.StatusBadRequest, false)
}

// NewUnauthorizedError creates an unauthorized error (401)
func NewUnauthorizedError(message string) *AppError {
	return NewAppError(ErrUnauthorized, message, http.StatusUnauthorized, false)
}

// NewDuplicateError creates a duplicate-identifier error. It surfaces as
// 400 rather than 409 to preserve the tracker's public API contract.
func NewDuplicateError(message string) *AppError {
	return NewAppError(ErrDuplicate, message, http.StatusBadRequest, false)
}

// NewConflictError creates a concurrent-modification conflict error (409)
func NewConflictError(message string) *AppError {
	return NewAppError(ErrConflict, message, http.StatusConflict, true)
}

// NewInternalError creates an internal server error (500)
func NewInternalError(message string) *AppError {
	return NewAppError(ErrInternal, message, http.StatusInternalServerError, true)
}

// NewExternalServiceError creates an upstream-failure error (502)
func NewExternalServiceError(message string) *AppError {
	return NewAppError(ErrExternalService, message, http.StatusBadGateway, true)
}

// NewNoRouteError creates an error for an upstream that resolved nothing (404)
func NewNoRouteError(message string) *AppError {
	return NewAppError(ErrNoRoute, message, http.StatusNotFound, false)
}

// NewTemporaryError creates a temporary error (503)
func NewTemporaryError(message string) *AppError {
	return NewAppError(ErrTemporaryFailure, message, http.StatusServiceUnavailable, true)
}

// NewTimeoutError creates a timeout error (504)
func NewTimeoutError(message string) *AppError {
	return NewAppError(ErrTimeout, message, http.StatusGatewayTimeout, true)
}
