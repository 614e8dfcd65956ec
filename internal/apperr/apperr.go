// Package apperr classifies failures so the CLI and HTTP layers can report them consistently.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorises an error.
type Kind string

const (
	KindInput    Kind = "INVALID_INPUT"
	KindNotFound Kind = "NOT_FOUND"
	KindExternal Kind = "EXTERNAL"
	KindInternal Kind = "INTERNAL"
)

// Error is a classified error with an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// WithContext attaches a key/value pair and returns e.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = map[string]any{}
	}
	e.Context[key] = value
	return e
}

// New creates a classified error.
func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

// Wrap classifies cause under kind with a message prefix.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Input reports a request the caller must fix (unknown column, invalid selection).
func Input(msg string) *Error { return New(KindInput, msg) }

// Inputf is Input with formatting.
func Inputf(format string, args ...any) *Error { return New(KindInput, fmt.Sprintf(format, args...)) }

// External wraps a failure of an outside dependency such as a model provider.
func External(msg string, cause error) *Error { return Wrap(KindExternal, msg, cause) }

// NotFound reports a missing resource.
func NotFound(resource string) *Error { return New(KindNotFound, resource+" not found") }

// KindOf returns the kind of the first classified error in err's chain, or
// KindInternal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// IsInput reports whether err is an input error.
func IsInput(err error) bool { return err != nil && KindOf(err) == KindInput }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return err != nil && KindOf(err) == KindNotFound }

// HTTPStatus maps an error to a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
