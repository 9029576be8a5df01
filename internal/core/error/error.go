package errx

import (
	"errors"
	"fmt"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing key in Redis.
	RedisNotFoundMessage = "record not found"
	// StoreErrorMessage describes relational store failures.
	StoreErrorMessage = "store operation failed"
	// StoreNotFoundMessage describes a missing row in a relational store.
	StoreNotFoundMessage = "record not found"
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}

// Message extracts the user-safe message from an error chain, falling back to
// SystemErrorMessage for errors that carry no AppError.
func Message(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return SystemErrorMessage
}

// IsNotFound reports whether err carries a not-found status anywhere in its chain.
func IsNotFound(err error) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Status == 404
	}
	return false
}
