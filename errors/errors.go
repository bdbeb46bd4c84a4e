// Package errors defines the stable error kinds the services return and the
// HTTP boundary switches on.
package errors

import (
	stderrors "errors"
	"fmt"
)

type Kind string

const (
	KindInvalidArgument    Kind = "INVALID_ARGUMENT"
	KindPreconditionFailed Kind = "PRECONDITION_FAILED"
	KindInvalidState       Kind = "INVALID_STATE"
	KindNotFound           Kind = "NOT_FOUND"
	KindForbidden          Kind = "FORBIDDEN"
	KindStoreUnavailable   Kind = "STORE_UNAVAILABLE"
)

// Error carries a kind plus an optional human-readable detail. Detail is for
// operators and API consumers; user-facing copy is owned by the UI layer.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Detail != "" {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap attaches a kind and detail to an underlying cause.
func Wrap(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// KindOf returns the kind of err, or "" when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
