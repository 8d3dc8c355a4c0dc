// Package apperr defines the error kinds surfaced by service operations.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a service error for transport-layer mapping.
type Kind int

const (
	// KindUnexpected marks storage or other internal failures.
	KindUnexpected Kind = iota
	// KindValidation marks malformed or missing caller input.
	KindValidation
	// KindPermission marks an authenticated but unauthorized caller.
	KindPermission
	// KindNotFound marks an absent or invisible entity.
	KindNotFound
	// KindConflict marks a uniqueness or state invariant violation.
	KindConflict
)

// Error carries an error kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error returns the message, including the wrapped cause when present.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// Validation builds a validation error.
func Validation(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

// Permission builds a permission error.
func Permission(message string) error {
	return &Error{Kind: KindPermission, Message: message}
}

// NotFound builds a not-found error.
func NotFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Conflict builds a conflict error.
func Conflict(message string) error {
	return &Error{Kind: KindConflict, Message: message}
}

// Unexpected wraps an internal failure with a caller-facing message.
func Unexpected(message string, err error) error {
	return &Error{Kind: KindUnexpected, Message: message, Err: err}
}

// KindOf extracts the kind of err, defaulting to KindUnexpected.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnexpected
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return is(err, KindValidation) }

// IsPermission reports whether err is a permission error.
func IsPermission(err error) bool { return is(err, KindPermission) }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return is(err, KindNotFound) }

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool { return is(err, KindConflict) }

func is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
