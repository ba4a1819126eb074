// Package errors provides the kinded error type shared by the ledger, the
// trading engine and the HTTP layer.
package errors

import (
	"errors"
	"fmt"
)

// Standard error functions
var (
	Is     = errors.Is
	As     = errors.As
	Join   = errors.Join
	Unwrap = errors.Unwrap
)

// Kind classifies a failure. Callers branch on the kind, never on the message.
type Kind string

const (
	KindNotFound            Kind = "NotFound"
	KindInactiveCommodity   Kind = "InactiveCommodity"
	KindInvalidArgument     Kind = "InvalidArgument"
	KindInsufficientBalance Kind = "InsufficientBalance"
	KindInsufficientPayment Kind = "InsufficientPayment"
	KindUnauthorized        Kind = "Unauthorized"
	KindReentrant           Kind = "Reentrant"
	KindInternal            Kind = "Internal"
)

var (
	ErrNotFound            = NewWithKind(KindNotFound)
	ErrInactiveCommodity   = NewWithKind(KindInactiveCommodity)
	ErrInvalidArgument     = NewWithKind(KindInvalidArgument)
	ErrInsufficientBalance = NewWithKind(KindInsufficientBalance)
	ErrInsufficientPayment = NewWithKind(KindInsufficientPayment)
	ErrUnauthorized        = NewWithKind(KindUnauthorized)
	ErrReentrant           = NewWithKind(KindReentrant)
	ErrInternal            = NewWithKind(KindInternal)
)

// FieldError represents a validation error for a specific field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message,omitempty"`
}

func (f *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", f.Field, f.Message)
}

// Error is a custom error type for passing more information
type Error struct {
	// Kind is the returned error type
	Kind Kind `json:"kind"`
	// Message is the human readable string that indicate the error
	Message string `json:"message"`
	// Fields used when there's validation error for a field.
	Fields []FieldError `json:"fields,omitempty"`

	cause error
}

var _ error = (*Error)(nil)

func NewWithKind(kind Kind) *Error {
	return &Error{Kind: kind}
}

// Error implements error
func (e *Error) Error() string {
	str := fmt.Sprintf("[%s]", e.Kind)
	if e.Message != "" {
		str += " " + e.Message
	}
	if e.cause != nil {
		str += fmt.Sprintf(" (%s)", e.cause)
	}
	return str
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Wrap returns a copy of the error with the cause set
func (e *Error) Wrap(cause error) *Error {
	err := *e
	err.cause = cause
	return &err
}

// Explain makes a copy of the error with given message
func (e *Error) Explain(message string, args ...any) *Error {
	err := *e
	err.Message = fmt.Sprintf(message, args...)
	return &err
}

// WithField returns a copy of error with one more field error appended.
func (e *Error) WithField(field, message string) *Error {
	err := *e
	err.Fields = append(append([]FieldError(nil), e.Fields...), FieldError{Field: field, Message: message})
	return &err
}

// Is implements the needed interface for errors.Is.
// Two *Error values match when their kinds match.
func (e *Error) Is(target error) bool {
	if e == nil {
		return target == nil
	}
	if other, ok := target.(*Error); ok {
		return other.Kind == e.Kind
	}
	if e.cause != nil {
		return Is(e.cause, target)
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal
// for foreign errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
