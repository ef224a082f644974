// Package errors provides structured error types for mindcanvas.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the editor core, CLI and relay
//   - Machine-readable error codes for programmatic handling
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Rejected structural operations and malformed input
//   - NOT_FOUND: A node, edge or document id that no longer resolves
//   - STORAGE / TRANSPORT: Failures of external collaborators
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidConnection, "unknown target %s", id)
//	if errors.Is(err, errors.ErrCodeInvalidConnection) {
//	    // Reject the gesture
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeStorage, origErr, "save document %s", docID)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Structural operations
	ErrCodeInvalidConnection Code = "INVALID_CONNECTION"
	ErrCodeSelfLoop          Code = "SELF_LOOP"
	ErrCodeCycle             Code = "CYCLE"
	ErrCodeRootProtected     Code = "ROOT_PROTECTED"

	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeMalformedAction Code = "MALFORMED_ACTION"
	ErrCodeInvalidEvent    Code = "INVALID_EVENT"
	ErrCodeInvalidConfig   Code = "INVALID_CONFIG"
	ErrCodeInvalidPath     Code = "INVALID_PATH"

	// Resource not found errors
	ErrCodeNotFound       Code = "NOT_FOUND"
	ErrCodeEmptyClipboard Code = "EMPTY_CLIPBOARD"

	// External collaborators
	ErrCodeStorage   Code = "STORAGE"
	ErrCodeTransport Code = "TRANSPORT"
	ErrCodeTimeout   Code = "TIMEOUT"

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

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
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

// IsRejection reports whether err describes an expected, recoverable
// rejection of a user gesture, such as an illegal connection or a paste with
// nothing on the clipboard, as opposed to an I/O or internal failure.
func IsRejection(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidConnection, ErrCodeSelfLoop, ErrCodeCycle, ErrCodeInvalidInput,
		ErrCodeRootProtected, ErrCodeNotFound, ErrCodeEmptyClipboard:
		return true
	}
	return false
}
