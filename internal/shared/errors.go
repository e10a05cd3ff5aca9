package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can branch without string matching.
type ErrorKind string

const (
	// KindValidation marks rejected input; Field names the offending field.
	KindValidation ErrorKind = "VALIDATION"
	// KindNotFound marks a missing record at a collaborator boundary.
	KindNotFound ErrorKind = "NOT_FOUND"
	// KindConflict marks duplicate or already-processed requests.
	KindConflict ErrorKind = "CONFLICT"
	// KindUnavailable marks transport or infrastructure failures.
	KindUnavailable ErrorKind = "UNAVAILABLE"
)

// Error carries a kind discriminator and an optional field tag.
type Error struct {
	Kind  ErrorKind
	Field string
	Msg   string
	cause error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.cause }

// ValidationError builds a field-tagged validation failure.
func ValidationError(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Msg: msg}
}

// NotFoundError builds a missing-record failure.
func NotFoundError(msg string) *Error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

// ConflictError builds a duplicate-request failure.
func ConflictError(msg string) *Error {
	return &Error{Kind: KindConflict, Msg: msg}
}

// UnavailableError wraps an infrastructure failure.
func UnavailableError(msg string, cause error) *Error {
	return &Error{Kind: KindUnavailable, Msg: msg, cause: cause}
}

// KindOf extracts the kind, defaulting to KindUnavailable for unknown errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnavailable
}

// FieldOf returns the tagged field for validation errors, empty otherwise.
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return hasKind(err, KindValidation) }

// IsNotFound reports whether err is a missing-record failure.
func IsNotFound(err error) bool { return hasKind(err, KindNotFound) }

// IsConflict reports whether err is a duplicate-request failure.
func IsConflict(err error) bool { return hasKind(err, KindConflict) }

func hasKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// UserSafeMessage returns a message safe to surface to API consumers.
func UserSafeMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindUnavailable {
		return e.Error()
	}
	return "operation failed, please retry later"
}
