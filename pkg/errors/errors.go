// Package errors defines the abstract error-kind taxonomy shared across the
// knowledge-base core. Components classify failures by Kind rather than by
// concrete type so that retry policies, circuit breakers, and the (external)
// HTTP surface can all switch on the same small vocabulary.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is an abstract error classification. It is never a concrete
// source-language exception type, only a label used for retry/breaker
// accounting and for surfacing a status to callers.
type Kind string

const (
	// Validation marks malformed input. Never retried, never counted
	// against a circuit breaker.
	Validation Kind = "validation"
	// NotFound marks a lookup failure (unknown doc_id, project, or key).
	NotFound Kind = "not_found"
	// CircuitOpen marks a call rejected by an open circuit breaker.
	CircuitOpen Kind = "circuit_open"
	// Backend marks a downstream vector-store failure that survived retry.
	Backend Kind = "backend"
	// Timeout marks a request that exceeded its deadline. Retriable.
	Timeout Kind = "timeout"
	// Connection marks a transport-level failure. Retriable.
	Connection Kind = "connection"
	// Io marks a local I/O failure. Retriable.
	Io Kind = "io"
	// Internal marks a programmer error. Never swallowed.
	Internal Kind = "internal"
)

// Error wraps a Kind with a message and an optional cause. The cause chain
// is preserved by github.com/pkg/errors so callers can still unwrap to the
// original error for logging.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap lets errors.Is/errors.As see through to the cause.
func (e *Error) Unwrap() error { return e.Cause }

// New creates a new Error of the given kind with no cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new Error of the given kind, wrapping cause with
// github.com/pkg/errors so a stack trace is captured at the wrap site.
func Wrap(kind Kind, cause error, message string) *Error {
	if cause == nil {
		return New(kind, message)
	}
	return &Error{Kind: kind, Message: message, Cause: errors.Wrap(cause, message)}
}

// KindOf extracts the Kind from err, defaulting to Internal if err is not
// (or does not wrap) a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsRetriable reports whether a Kind is eligible for the retry policy in
// pkg/retry: Connection, Timeout, and Io are transient by nature.
func IsRetriable(kind Kind) bool {
	switch kind {
	case Connection, Timeout, Io:
		return true
	default:
		return false
	}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
