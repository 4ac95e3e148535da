package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error so callers can decide how to react:
// validation errors go back to the user, not-found errors map to 404,
// persistence errors mean the mutation was not applied and may be retried.
type Kind string

const (
	// KindValidation marks recoverable input or state errors. Never retried automatically.
	KindValidation Kind = "validation"
	// KindNotFound marks a missing referenced entity.
	KindNotFound Kind = "not_found"
	// KindPersistence marks a store write failure. The mutation is considered not applied.
	KindPersistence Kind = "persistence"
)

// Error is a structured application error: a kind, a human-readable message,
// and the identifiers relevant to the failure so UI layers can render targeted messages.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for k, v := range e.Fields {
		parts = append(parts, k+"="+v)
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, " "))
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// With attaches an identifier to the error and returns it for chaining.
func (e *Error) With(key, value string) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[key] = value
	return e
}

// Validation creates a validation error.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not-found error for the given entity and id.
func NotFound(entity, id string) *Error {
	e := &Error{Kind: KindNotFound, Message: entity + " not found"}
	return e.With("id", id)
}

// Persistence wraps a store failure.
func Persistence(cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindPersistence, Message: fmt.Sprintf(format, args...), cause: cause}
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
