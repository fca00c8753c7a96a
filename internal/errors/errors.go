// Package errors defines the application errors surfaced at the HTTP and CLI
// boundary.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrCode represents an error code
type ErrCode string

const (
	ErrCodeUnauthorized     ErrCode = "UNAUTHORIZED"
	ErrCodeSessionExpired   ErrCode = "SESSION_EXPIRED"
	ErrCodeBadRequest       ErrCode = "BAD_REQUEST"
	ErrCodeUpstreamCooldown ErrCode = "UPSTREAM_COOLDOWN"
	ErrCodeInternal         ErrCode = "INTERNAL_ERROR"
)

// AppError represents an application error
type AppError struct {
	Code    ErrCode
	Message string
	Err     error

	// RetryAfter is set for ErrCodeUpstreamCooldown.
	RetryAfter time.Duration
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeUnauthorized,
		Message: message,
	}
}

// NewSessionExpiredError creates the error for a session the upstream rejected
func NewSessionExpiredError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeSessionExpired,
		Message: message,
		Err:     err,
	}
}

// NewBadRequestError creates a new bad request error
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeBadRequest,
		Message: message,
	}
}

// NewUpstreamCooldownError creates the error returned while the guard refuses runs
func NewUpstreamCooldownError(retryAfter time.Duration) *AppError {
	return &AppError{
		Code:       ErrCodeUpstreamCooldown,
		Message:    "upstream is cooling down, try again later",
		RetryAfter: retryAfter,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
		Err:     err,
	}
}

// Is reports whether err carries code.
func Is(err error, code ErrCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
