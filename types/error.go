package types

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents a unified error code across the guard layer.
type ErrorCode string

// Decision error codes
const (
	ErrAdmissionDenied         ErrorCode = "ADMISSION_DENIED"
	ErrQuotaExceeded           ErrorCode = "QUOTA_EXCEEDED"
	ErrValidationBlocked       ErrorCode = "VALIDATION_BLOCKED"
	ErrOracleUnavailable       ErrorCode = "ORACLE_UNAVAILABLE"
	ErrMalformedOracleResponse ErrorCode = "MALFORMED_ORACLE_RESPONSE"
	ErrInnerExecution          ErrorCode = "INNER_EXECUTION_ERROR"
	ErrCancelled               ErrorCode = "CANCELLED"
)

// Infrastructure error codes
const (
	ErrInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode     `json:"code"`
	Message    string        `json:"message"`
	Retryable  bool          `json:"retryable"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Cause      error         `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithRetryAfter sets the retry hint and marks the error as retryable.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.RetryAfter = d
	e.Retryable = true
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCancelled reports whether err stems from a cancelled or expired context.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return GetErrorCode(err) == ErrCancelled
}
