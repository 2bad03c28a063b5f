package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// Common error codes
const (
	ErrValidation ErrorCode = iota + 1000
	ErrConflict
	ErrNotFound
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrChainTransient
	ErrChainRevert
	ErrNonceDrift
)

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error code to an HTTP status for the error middleware.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrValidation:
		return http.StatusBadRequest
	case ErrConflict:
		return http.StatusConflict
	case ErrNotFound:
		return http.StatusNotFound
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrChainTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error constructors
func Validation(message string, err error) *AppError {
	return &AppError{Code: ErrValidation, Message: message, Err: err}
}

func Conflict(message string, err error) *AppError {
	return &AppError{Code: ErrConflict, Message: message, Err: err}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{Code: ErrNotFound, Message: fmt.Sprintf("%s not found", resource), Err: err}
}

func Unauthorized(err error) *AppError {
	return &AppError{Code: ErrUnauthorized, Message: "unauthorized", Err: err}
}

func Forbidden(message string, err error) *AppError {
	return &AppError{Code: ErrForbidden, Message: message, Err: err}
}

func Internal(err error) *AppError {
	return &AppError{Code: ErrInternal, Message: "internal server error", Err: err}
}

// ChainTransient marks a chain call that failed before the transaction was
// broadcast. The relayer nonce was not consumed and the call may be retried.
func ChainTransient(message string, err error) *AppError {
	return &AppError{Code: ErrChainTransient, Message: message, Err: err}
}

// ChainRevert marks a transaction that was mined but reverted. The nonce is
// consumed and any local writes made before the call are now inconsistent.
func ChainRevert(message string, err error) *AppError {
	return &AppError{Code: ErrChainRevert, Message: message, Err: err}
}

// NonceDrift marks a desync between the in-memory nonce counter and the
// chain's pending count.
func NonceDrift(err error) *AppError {
	return &AppError{Code: ErrNonceDrift, Message: "relayer nonce out of sync", Err: err}
}

// CodeOf returns the error code of err if it is an AppError, ErrInternal otherwise.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// IsRetryable reports whether the operation behind err left no side effects
// and may be safely re-attempted.
func IsRetryable(err error) bool {
	return CodeOf(err) == ErrChainTransient
}

// IsInconsistent reports whether err indicates that local state was written
// but the corresponding chain state was not, requiring reconciliation.
func IsInconsistent(err error) bool {
	return CodeOf(err) == ErrChainRevert
}
