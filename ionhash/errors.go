package ionhash

import (
	"errors"
	"fmt"
)

// Error kinds. A *HashError always unwraps to exactly one of these, so
// callers classify failures with errors.Is.
var (
	// ErrMalformedStream reports a structural ordering violation: an
	// unmatched container boundary, a premature stream end, or a digest
	// requested while a container is open.
	ErrMalformedStream = errors.New("malformed stream")

	// ErrUnsupportedType reports a type tag the canonicalizer does not know.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrPrimitiveFailure reports an error from a hash function.
	ErrPrimitiveFailure = errors.New("hash primitive failure")

	// ErrSourceExhausted is returned by an EventSource asked for an event
	// after it has already reported EventStreamEnd.
	ErrSourceExhausted = errors.New("event source exhausted")
)

// HashError describes a fatal hashing failure.
type HashError struct {
	Kind   error  // one of the Err* kinds above
	Reason string // human-readable detail
	Depth  int    // nesting depth where the failure was detected
	Err    error  // underlying cause, if any
}

func (e *HashError) Error() string {
	msg := fmt.Sprintf("ionhash: %v: %s (depth %d)", e.Kind, e.Reason, e.Depth)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *HashError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func malformed(depth int, format string, args ...any) *HashError {
	return &HashError{Kind: ErrMalformedStream, Reason: fmt.Sprintf(format, args...), Depth: depth}
}

func unsupported(depth int, t Type) *HashError {
	return &HashError{Kind: ErrUnsupportedType, Reason: fmt.Sprintf("cannot canonicalize type %s", t), Depth: depth}
}

func primitiveFailure(depth int, op string, err error) *HashError {
	return &HashError{Kind: ErrPrimitiveFailure, Reason: op, Depth: depth, Err: err}
}
