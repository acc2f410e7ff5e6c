// Package errors provides structured error types for lgceqty.
//
// Every failure the persistence engine surfaces carries a machine-readable
// [Code], so callers can tell a broken container apart from a single column
// that could not be decoded:
//
//   - INVALID_FORMAT: the container is not self-describing (no metadata)
//   - UNREGISTERED_TYPE: a tag the registry does not know
//   - COLUMN_CAST: a table column cannot be read back as its recorded type
//   - INVALID_INPUT: a value that cannot be persisted as given
//
// # Usage
//
//	err := errors.New(errors.ErrCodeFormat, "missing %q attribute", "_metadata")
//	if errors.Is(err, errors.ErrCodeFormat) {
//	    // container is unreadable
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeColumnCast, origErr, "column %q", name)
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInvalidKey   Code = "INVALID_KEY"
	ErrCodeInvalidPath  Code = "INVALID_PATH"
	ErrCodeInvalidSheet Code = "INVALID_SHEET"

	// Container errors
	ErrCodeFormat           Code = "INVALID_FORMAT"
	ErrCodeUnregisteredType Code = "UNREGISTERED_TYPE"
	ErrCodeColumnCast       Code = "COLUMN_CAST"

	// Resource not found errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	// Network errors (market data sources)
	ErrCodeNetwork     Code = "NETWORK_ERROR"
	ErrCodeRateLimited Code = "RATE_LIMITED"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code anywhere in its chain.
// Causes, fmt wrapping and errors.Join branches are all searched, so a
// COLUMN_CAST joined behind a NOT_FOUND in a load manifest is still found.
func Is(err error, code Code) bool {
	return errors.Is(err, &Error{Code: code})
}

// Is makes errors.Is match any *Error target with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// GetCode extracts the outermost error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// RateLimitedError is returned by a market data source that refused a request
// because its hit allowance is exhausted.
type RateLimitedError struct {
	RetryAfter int // Seconds to wait before retrying
	Message    string
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: retry after %d seconds", e.RetryAfter)
	}
	return "rate limited"
}

// Code returns the error code for this error type.
func (e *RateLimitedError) Code() Code {
	return ErrCodeRateLimited
}

// RetryAfter reports the wait requested by a RateLimitedError in err's chain.
// ok is false when err is not rate limited.
func RetryAfter(err error) (wait time.Duration, ok bool) {
	var e *RateLimitedError
	if !errors.As(err, &e) {
		return 0, false
	}
	return time.Duration(e.RetryAfter) * time.Second, true
}
