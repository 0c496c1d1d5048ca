// Package agramaerr defines the error taxonomy shared across the engine.
//
// Every failure surfaced by a store, index, or primitive carries one of the
// Kind values below plus a human-readable message. Callers that need to
// distinguish failure modes should use errors.As against *Error rather than
// comparing messages.
package agramaerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure into one of the taxonomy buckets from the
// engine's error handling design. Kinds are stable and machine-readable;
// messages are not.
type Kind string

const (
	// Validation covers malformed arguments, bad paths, dimension
	// mismatches, unknown primitives, and unknown transforms.
	Validation Kind = "validation"

	// NotFound covers missing keys, nodes, or embeddings.
	NotFound Kind = "not_found"

	// Conflict covers pool exhaustion that also fails the general
	// allocator, and CRDT operations still waiting on causal dependencies
	// past their deadline.
	Conflict Kind = "conflict"

	// Cancelled is returned when a primitive's deadline elapses before
	// completion.
	Cancelled Kind = "cancelled"

	// Internal covers invariant violations. Messages for Internal errors
	// must not leak memory addresses or other unsafe implementation
	// detail.
	Internal Kind = "internal"
)

// Error is the engine-wide structured error type.
type Error struct {
	Kind Kind
	Op   string // component/operation that detected the failure, e.g. "content.Put"
	Msg  string
	Err  error // optional wrapped cause
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with no wrapped cause.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap builds an *Error around an existing cause.
func Wrap(kind Kind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: cause}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to Internal for errors the
// engine itself did not originate.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if err == nil {
		return ""
	}
	return Internal
}
