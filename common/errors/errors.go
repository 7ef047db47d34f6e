package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies a failure for callers and transports.
type ErrorCode string

const (
	// Business errors
	ErrCodeValidation        ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeConflict          ErrorCode = "CONFLICT"
	ErrCodeForbidden         ErrorCode = "FORBIDDEN"
	ErrCodeInsufficientStock ErrorCode = "INSUFFICIENT_STOCK"

	// Technical errors
	ErrCodeDatabaseError      ErrorCode = "DATABASE_ERROR"
	ErrCodeSerializationError ErrorCode = "SERIALIZATION_ERROR"
	ErrCodeInternal           ErrorCode = "INTERNAL"
)

// DomainError carries an error code alongside the message and cause.
type DomainError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// New creates a domain error with the given code.
func New(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a domain error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *DomainError {
	return &DomainError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a domain error wrapping an underlying cause.
func Wrap(code ErrorCode, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf extracts the error code from err, walking the wrap chain.
// Errors with no DomainError in the chain report ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	var domainErr *DomainError
	if stderrors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsNotFound reports whether err is a NOT_FOUND domain error.
func IsNotFound(err error) bool {
	return IsCode(err, ErrCodeNotFound)
}

// IsConflict reports whether err is a CONFLICT domain error.
func IsConflict(err error) bool {
	return IsCode(err, ErrCodeConflict)
}

// IsInsufficientStock reports whether err is an INSUFFICIENT_STOCK domain error.
func IsInsufficientStock(err error) bool {
	return IsCode(err, ErrCodeInsufficientStock)
}

// IsRetryable reports whether the failure is transient and worth retrying.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case ErrCodeDatabaseError, ErrCodeInternal:
		return true
	}
	return false
}
