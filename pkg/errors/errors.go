// Package errors provides structured error types for the now-php builder.
//
// Every failure that aborts a build carries a machine-readable [Code] so the
// hosting platform (or the serve API) can tell a bad download apart from a
// failed composer run without parsing messages.
//
// # Error Codes
//
//   - TRANSPORT_ERROR: the HTTP connection could not be established
//   - HTTP_STATUS: the server answered with a failure status
//   - MISSING_ENTRYPOINT: the entrypoint is not part of the file manifest
//   - INSTALL_ERROR: a composer subprocess exited non-zero
//   - CONFIG_ERROR: a configuration value (e.g. a static rule) is invalid
//
// # Usage
//
//	err := errors.New(errors.ErrCodeMissingEntrypoint, "entrypoint %q not found", name)
//	if errors.Is(err, errors.ErrCodeMissingEntrypoint) {
//	    // Handle missing entrypoint
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeTransport, origErr, "failed to fetch %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Build failures
	ErrCodeTransport         Code = "TRANSPORT_ERROR"
	ErrCodeHTTPStatus        Code = "HTTP_STATUS"
	ErrCodeMissingEntrypoint Code = "MISSING_ENTRYPOINT"
	ErrCodeInstall           Code = "INSTALL_ERROR"
	ErrCodeConfig            Code = "CONFIG_ERROR"
	ErrCodeLambdaTooLarge    Code = "LAMBDA_TOO_LARGE"

	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidManifest Code = "INVALID_MANIFEST"
	ErrCodeInvalidPath     Code = "INVALID_PATH"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
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
// It unwraps the error chain looking for an *Error with a matching code,
// so a CONFIG_ERROR wrapped inside an INTERNAL_ERROR is still found.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
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
