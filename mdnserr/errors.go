// Package mdnserr defines the typed error kinds surfaced by the registry
// and repository packages, in the struct-with-Unwrap idiom used elsewhere
// in the pack for domain error types.
package mdnserr

import "fmt"

// Kind enumerates the closed set of error kinds spec.md §7 surfaces to
// callers. Conflicts are never represented here — they are a data
// channel, not an error.
type Kind int

const (
	// BadParameters covers invalid service type, invalid TTL override,
	// invalid hostname, or otherwise impossible rdata.
	BadParameters Kind = iota
	// AlreadyActive covers registration id reuse while still mapped.
	AlreadyActive
	// InternalError covers unreachable decoding faults. Malformed
	// packets received over the wire are dropped silently instead of
	// surfacing this kind — see handleInbound in responder/responder.go.
	InternalError
	// MaxLimit covers the per-client listener cap (200).
	MaxLimit
	// NoTransaction covers a caller referencing an id never assigned.
	NoTransaction
	// OperationNotRunning covers a stop request for an unknown id.
	OperationNotRunning
)

func (k Kind) String() string {
	switch k {
	case BadParameters:
		return "BAD_PARAMETERS"
	case AlreadyActive:
		return "ALREADY_ACTIVE"
	case InternalError:
		return "INTERNAL_ERROR"
	case MaxLimit:
		return "MAX_LIMIT"
	case NoTransaction:
		return "NO_TRANSACTION"
	case OperationNotRunning:
		return "OPERATION_NOT_RUNNING"
	default:
		return "UNKNOWN_ERROR"
	}
}

// Error is the single concrete error type for all Kind values: spec.md's
// kinds are a flat, closed enumeration (unlike the pack's NetworkError/
// ValidationError/WireFormatError, which differ structurally), so one
// type with a Kind field is the better fit here.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s during %s: %v", e.Kind, e.Message, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s during %s", e.Kind, e.Message, e.Op)
}

// Unwrap enables errors.Is/As chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs an *Error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap constructs an *Error of the given kind wrapping an underlying
// error.
func Wrap(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !asError(err, &e) {
		return false
	}
	return e.Kind == kind
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
