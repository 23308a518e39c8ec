// Package errors defines the service error type shared by handlers and
// middleware. Every error that reaches the HTTP boundary is converted to a
// ServiceError so the response status and code are decided in one place.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode is a stable, machine-readable error identifier.
type ErrorCode string

const (
	CodeBadRequest       ErrorCode = "BAD_REQUEST"
	CodeValidation       ErrorCode = "VALIDATION_FAILED"
	CodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	CodeInvalidToken     ErrorCode = "INVALID_TOKEN"
	CodeForbidden        ErrorCode = "FORBIDDEN"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
	CodeConflict         ErrorCode = "CONFLICT"
	CodeRateLimited      ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeUpstream         ErrorCode = "UPSTREAM_ERROR"
	CodeUnavailable      ErrorCode = "SERVICE_UNAVAILABLE"
	CodeInternal         ErrorCode = "INTERNAL_ERROR"

	// CodeRecordPending marks an operation whose side effect happened but
	// whose bookkeeping did not. It is not a 5xx so idempotent retries replay
	// it instead of repeating the side effect.
	CodeRecordPending ErrorCode = "RECORD_PENDING"
)

// ServiceError carries an HTTP status alongside a client-facing message.
type ServiceError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error { return e.Err }

// WithDetails returns the error with an extra detail attached.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New builds a ServiceError with an explicit status.
func New(code ErrorCode, status int, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status}
}

// Wrap builds a ServiceError around an underlying cause.
func Wrap(err error, code ErrorCode, status int, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

func BadRequest(message string) *ServiceError {
	return New(CodeBadRequest, http.StatusBadRequest, message)
}

func Validation(message string) *ServiceError {
	return New(CodeValidation, http.StatusBadRequest, message)
}

func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "Access denied. No token provided."
	}
	return New(CodeUnauthorized, http.StatusUnauthorized, message)
}

func InvalidToken(err error) *ServiceError {
	return Wrap(err, CodeInvalidToken, http.StatusUnauthorized, "Invalid token")
}

func Forbidden(message string) *ServiceError {
	if message == "" {
		message = "Access denied"
	}
	return New(CodeForbidden, http.StatusForbidden, message)
}

func NotFound(message string) *ServiceError {
	return New(CodeNotFound, http.StatusNotFound, message)
}

func Conflict(message string) *ServiceError {
	return New(CodeConflict, http.StatusConflict, message)
}

func RateLimitExceeded(limit int, window string) *ServiceError {
	return New(CodeRateLimited, http.StatusTooManyRequests, "Too many requests, please try again later.").
		WithDetails("limit", limit).
		WithDetails("window", window)
}

// Upstream marks a failure of an external dependency such as the wallet daemon.
func Upstream(message string, err error) *ServiceError {
	return Wrap(err, CodeUpstream, http.StatusBadGateway, message)
}

func Unavailable(message string) *ServiceError {
	return New(CodeUnavailable, http.StatusServiceUnavailable, message)
}

func Internal(message string, err error) *ServiceError {
	if message == "" {
		message = "Internal Server Error"
	}
	return Wrap(err, CodeInternal, http.StatusInternalServerError, message)
}

// GetServiceError returns the first ServiceError in err's chain, or nil.
func GetServiceError(err error) *ServiceError {
	if err == nil {
		return nil
	}
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se
	}
	return nil
}

// StatusOf reports the HTTP status an error maps to. Plain errors are 500.
func StatusOf(err error) int {
	if se := GetServiceError(err); se != nil {
		return se.HTTPStatus
	}
	return http.StatusInternalServerError
}

// Is and As re-export the standard helpers so callers need a single import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target interface{}) bool { return stderrors.As(err, target) }
