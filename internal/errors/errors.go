// Package errors defines the service error taxonomy shared by all handlers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies a class of failure in the error envelope.
type ErrorCode string

const (
	CodeUnauthenticated     ErrorCode = "UNAUTHENTICATED"
	CodeForbidden           ErrorCode = "FORBIDDEN"
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeInvalidInput        ErrorCode = "INVALID_INPUT"
	CodeInsufficientCredits ErrorCode = "INSUFFICIENT_CREDITS"
	CodeConflict            ErrorCode = "CONFLICT"
	CodeModelError          ErrorCode = "MODEL_ERROR"
	CodeStorageError        ErrorCode = "STORAGE_ERROR"
	CodeChainError          ErrorCode = "CHAIN_ERROR"
	CodeTimeout             ErrorCode = "TIMEOUT"
	CodeRateLimited         ErrorCode = "RATE_LIMITED"
	CodeInternal            ErrorCode = "INTERNAL"
)

// ServiceError carries an error code, an HTTP status and optional details.
// Every handler failure is reduced to one of these before being written to
// the response.
type ServiceError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	cause      error
}

func (e *ServiceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause.
func (e *ServiceError) Unwrap() error { return e.cause }

// WithDetails attaches a detail entry and returns the error for chaining.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newError(code ErrorCode, status int, message string, cause error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, cause: cause}
}

// Unauthenticated reports a missing or malformed credential.
func Unauthenticated(message string) *ServiceError {
	if message == "" {
		message = "Authentication required"
	}
	return newError(CodeUnauthenticated, http.StatusUnauthorized, message, nil)
}

// Forbidden reports an authenticated caller acting on a resource it does not
// own.
func Forbidden(message string) *ServiceError {
	if message == "" {
		message = "Not allowed"
	}
	return newError(CodeForbidden, http.StatusForbidden, message, nil)
}

// NotFound reports a missing resource.
func NotFound(resource string) *ServiceError {
	return newError(CodeNotFound, http.StatusNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// InvalidInput reports missing or malformed request input.
func InvalidInput(message string) *ServiceError {
	return newError(CodeInvalidInput, http.StatusBadRequest, message, nil)
}

// InsufficientCredits reports a debit attempted beyond the available balance.
func InsufficientCredits(required, available int64) *ServiceError {
	e := newError(CodeInsufficientCredits, http.StatusBadRequest, "Insufficient credits", nil)
	return e.WithDetails("required", required).WithDetails("available", available)
}

// Conflict reports a state precondition violation such as a double mint.
func Conflict(message string) *ServiceError {
	return newError(CodeConflict, http.StatusConflict, message, nil)
}

// ModelFailure reports an image/chat model collaborator failure.
func ModelFailure(message string, cause error) *ServiceError {
	return newError(CodeModelError, http.StatusBadGateway, message, cause)
}

// StorageFailure reports an object-storage collaborator failure.
func StorageFailure(message string, cause error) *ServiceError {
	return newError(CodeStorageError, http.StatusBadGateway, message, cause)
}

// ChainFailure reports a blockchain collaborator failure.
func ChainFailure(message string, cause error) *ServiceError {
	return newError(CodeChainError, http.StatusBadGateway, message, cause)
}

// Timeout reports an external call exceeding its deadline.
func Timeout(message string) *ServiceError {
	return newError(CodeTimeout, http.StatusGatewayTimeout, message, nil)
}

// RateLimited reports a caller exceeding its request budget.
func RateLimited(requestsPerSecond int) *ServiceError {
	e := newError(CodeRateLimited, http.StatusTooManyRequests, "Too many requests", nil)
	return e.WithDetails("limit_per_second", requestsPerSecond)
}

// Internal reports an unclassified server-side failure.
func Internal(message string, cause error) *ServiceError {
	if message == "" {
		message = "Internal server error"
	}
	return newError(CodeInternal, http.StatusInternalServerError, message, cause)
}

// GetServiceError extracts a *ServiceError from err's chain, or nil.
func GetServiceError(err error) *ServiceError {
	var serviceErr *ServiceError
	if stderrors.As(err, &serviceErr) {
		return serviceErr
	}
	return nil
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code ErrorCode) bool {
	serviceErr := GetServiceError(err)
	return serviceErr != nil && serviceErr.Code == code
}
