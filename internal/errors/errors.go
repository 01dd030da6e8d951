// Package errors provides structured errors for the skirmish engine.
//
// Every failure reported to a caller carries a Kind so the transport layer
// can map it without string matching. In-fiction outcomes (a miss, a failed
// save, a lost contested check) are never errors; they are successful results.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error.
type Kind string

const (
	// KindNotFound means an encounter, participant, or location id is unknown.
	KindNotFound Kind = "NOT_FOUND"
	// KindValidation means malformed or out-of-range input, an illegal
	// position, or a missing required field for the chosen action type.
	KindValidation Kind = "VALIDATION"
	// KindConflict means a duplicate id, an already-ended encounter, or an
	// action-economy slot already spent this turn.
	KindConflict Kind = "CONFLICT"
	// KindRuleViolation means the request is well-formed but the rules forbid
	// it: movement over budget, a target out of spell range, or parameters
	// mismatched with the action type.
	KindRuleViolation Kind = "RULE_VIOLATION"
	// KindInternal means an invariant was broken inside the engine.
	KindInternal Kind = "INTERNAL"
)

// Error is a structured engine error with a kind, message, and metadata.
type Error struct {
	Kind    Kind
	Message string
	Meta    map[string]any
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// WithMeta attaches a key/value pair to the error for caller-side context
// (the offending id, the computed distance vs. the limit, and so on).
// Returns the receiver for chaining.
func (e *Error) WithMeta(key string, value any) *Error {
	if e.Meta == nil {
		e.Meta = make(map[string]any)
	}
	e.Meta[key] = value
	return e
}

// New creates an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error that wraps cause with the given kind and message.
// Precondition: cause must not be nil.
func Wrap(cause error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// NotFoundf creates a KindNotFound error with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return Newf(KindNotFound, format, args...)
}

// Validationf creates a KindValidation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return Newf(KindValidation, format, args...)
}

// Conflictf creates a KindConflict error with a formatted message.
func Conflictf(format string, args ...any) *Error {
	return Newf(KindConflict, format, args...)
}

// RuleViolationf creates a KindRuleViolation error with a formatted message.
func RuleViolationf(format string, args ...any) *Error {
	return Newf(KindRuleViolation, format, args...)
}

// Internalf creates a KindInternal error with a formatted message.
func Internalf(format string, args ...any) *Error {
	return Newf(KindInternal, format, args...)
}

// KindOf returns the Kind of err, or KindInternal if err is not an *Error.
// Postcondition: Returns KindInternal for nil or foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsNotFound reports whether err is a KindNotFound error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsValidation reports whether err is a KindValidation error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsConflict reports whether err is a KindConflict error.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsRuleViolation reports whether err is a KindRuleViolation error.
func IsRuleViolation(err error) bool { return KindOf(err) == KindRuleViolation }
