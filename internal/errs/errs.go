// Package errs implements the error-kind taxonomy shared by the scheduler
// and the update engine.
//
// It is grounded on the cause-chain design of eventloop/errors.go (PanicError
// and AggregateError unwrapping to their underlying causes) generalized to a
// single comparable Kind plus a wrapping Error type, rather than one bespoke
// error struct per failure mode.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error categories produced by the core.
type Kind uint8

const (
	// Unknown is the zero value; never intentionally produced.
	Unknown Kind = iota
	// OutOfMemory covers arena exhaustion, stack mapping and pool allocation failures.
	OutOfMemory
	// SystemError covers OS thread creation and guard-page protection failures.
	SystemError
	// FiberIsCancelled is returned by sched.TestCancel once the task is CANCELLED;
	// suspension points (Yield, Sleep, Join) do not check the flag.
	FiberIsCancelled
	// IllegalParams covers a malformed operation batch, bad opcode, or bad JSON path.
	IllegalParams
	// NoSuchField reports a path addressing a non-existent position.
	NoSuchField
	// UpdateFieldType reports a wrong-typed operation argument or source field.
	UpdateFieldType
	// UpdateIntegerOverflow reports integer arithmetic overflow.
	UpdateIntegerOverflow
	// UpdateDecimalOverflow reports decimal arithmetic overflow.
	UpdateDecimalOverflow
	// UpdateSplice reports a splice offset out of bounds.
	UpdateSplice
	// UnsupportedUpdate covers intersected JSON paths and wildcard paths.
	UnsupportedUpdate
	// Duplicate covers duplicate key insertion or duplicate top-level field addressing.
	Duplicate
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case OutOfMemory:
		return "OutOfMemory"
	case SystemError:
		return "SystemError"
	case FiberIsCancelled:
		return "FiberIsCancelled"
	case IllegalParams:
		return "IllegalParams"
	case NoSuchField:
		return "NoSuchField"
	case UpdateFieldType:
		return "UpdateFieldType"
	case UpdateIntegerOverflow:
		return "UpdateIntegerOverflow"
	case UpdateDecimalOverflow:
		return "UpdateDecimalOverflow"
	case UpdateSplice:
		return "UpdateSplice"
	case UnsupportedUpdate:
		return "UnsupportedUpdate"
	case Duplicate:
		return "Duplicate"
	default:
		return "Unknown"
	}
}

// Error wraps a Kind with the operation it occurred in and an optional cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// New constructs an *Error with no wrapped cause.
func New(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// Wrap constructs an *Error wrapping an existing cause.
func Wrap(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

// Unwrap enables errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target shares this error's Kind, allowing
// errors.Is(err, errs.New(errs.Duplicate, "")) style matching by kind alone.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// KindOf extracts the Kind of err, if it (or something it wraps) is an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return Unknown, false
}
