// Package errors carries the structured errors and per-item diagnostics
// of the export pipeline.
//
// Errors abort a pass and carry a machine-readable Code so the CLI and
// the preview server can react without string matching:
//
//	err := errors.New(errors.ErrCodeInvalidDocument, "document has no pages")
//	if errors.Is(err, errors.ErrCodeInvalidDocument) { ... }
//	err = errors.Wrap(errors.ErrCodeStoreUnavailable, cause, "load snapshot %s", id)
//
// Diagnostics never abort: a malformed item or unresolved resource
// degrades locally to a placeholder and records a Diagnostic instead.
package errors

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error class.
type Code string

const (
	// Input validation.
	ErrCodeInvalidDocument Code = "INVALID_DOCUMENT"
	ErrCodeInvalidOptions  Code = "INVALID_OPTIONS"
	ErrCodeInvalidModule   Code = "INVALID_MODULE"
	ErrCodeInvalidAddress  Code = "INVALID_ADDRESS"

	// Resources degraded to placeholders, reported as diagnostics.
	ErrCodeFontUnresolved   Code = "FONT_UNRESOLVED"
	ErrCodeImageUndecodable Code = "IMAGE_UNDECODABLE"
	ErrCodeMalformedItem    Code = "MALFORMED_ITEM"

	// Content addressing.
	ErrCodeAddressCollision Code = "ADDRESS_COLLISION"

	// Cache and persistence.
	ErrCodeCacheMiss        Code = "CACHE_MISS"
	ErrCodeCacheUnavailable Code = "CACHE_UNAVAILABLE"
	ErrCodeStoreUnavailable Code = "STORE_UNAVAILABLE"
	ErrCodeSnapshotNotFound Code = "SNAPSHOT_NOT_FOUND"

	// Lifecycle.
	ErrCodeCancelled Code = "CANCELLED"

	// Everything else.
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error pairs a Code with a human-readable message and an optional
// wrapped cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error around cause with a formatted message.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// asError finds the outermost *Error in err's chain.
func asError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// Is reports whether the outermost structured error in err's chain has
// the given code.
func Is(err error, code Code) bool {
	if e, ok := asError(err); ok {
		return e.Code == code
	}
	return false
}

// GetCode returns the outermost structured error's code, or "" when the
// chain carries none.
func GetCode(err error) Code {
	if e, ok := asError(err); ok {
		return e.Code
	}
	return ""
}

// UserMessage returns the message without the code prefix, suitable for
// terminal output. Unstructured errors pass through unchanged.
func UserMessage(err error) string {
	if e, ok := asError(err); ok {
		return e.Message
	}
	return err.Error()
}
