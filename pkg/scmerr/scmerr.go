// Package scmerr defines the closed set of error kinds shared by every
// stage of the pipeline (reader, tree evaluator, bytecode compiler, VM,
// native code generator), so callers can branch on `errors.As` instead of
// string-matching error messages.
package scmerr

import "fmt"

// Kind classifies a Scheme-level failure. It intentionally does not grow a
// case for every possible Go-level error (I/O, OS) — those stay plain
// wrapped errors.
type Kind string

const (
	ParseError        Kind = "ParseError"
	UnboundIdentifier Kind = "UnboundIdentifier"
	TypeError         Kind = "TypeError"
	ArityError        Kind = "ArityError"
	InternalError     Kind = "InternalError"
)

// Error is the concrete error type produced by every package in this
// module. It wraps an optional underlying cause the same way the rest of
// the codebase wraps errors with fmt.Errorf's %w.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, scmerr.New(scmerr.UnboundIdentifier, "")) style comparisons by
// kind alone (ignoring message/cause), which is how callers usually want
// to test these.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}
