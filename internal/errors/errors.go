// Package errors provides coded application errors so callers can branch on
// the kind of failure without matching error strings.
package errors

import (
	"errors"
	"fmt"
)

// Standard error codes for the application.
const (
	CodeUnknown = "UNKNOWN"
	// CodeInvalidRequest marks caller errors rejected before any store
	// access: bad keyword lists, inverted date ranges, negative bounds.
	CodeInvalidRequest = "INVALID_REQUEST"
	// CodeStoreUnavailable marks failures of the underlying message store.
	// They are surfaced as-is; retry policy belongs to the caller.
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeAPI              = "API"
	CodeConfig           = "CONFIG"
)

// Error is an application error carrying a machine-checkable code alongside
// the human-readable message and the wrapped cause.
type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}
	return e.message
}

// Code returns the error's classification code.
func (e *Error) Code() string {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// New creates an error with the given code and message.
func New(code, message string) error {
	return &Error{code: code, message: message}
}

// Wrap creates an error with the given code and message around a cause.
// The cause remains reachable through errors.Is / errors.As.
func Wrap(code, message string, cause error) error {
	return &Error{code: code, message: message, err: cause}
}

// NewInvalidRequest creates a CodeInvalidRequest error.
func NewInvalidRequest(message string) error {
	return New(CodeInvalidRequest, message)
}

// NewStoreUnavailable wraps a store failure as CodeStoreUnavailable.
func NewStoreUnavailable(message string, cause error) error {
	return Wrap(CodeStoreUnavailable, message, cause)
}

// NewAPIError wraps an external API failure as CodeAPI.
func NewAPIError(message string, cause error) error {
	return Wrap(CodeAPI, message, cause)
}

// Code extracts the classification code from err, or CodeUnknown when err
// carries none.
func Code(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code()
	}
	return CodeUnknown
}

// IsCode reports whether err carries the given classification code.
func IsCode(err error, code string) bool {
	return Code(err) == code
}
