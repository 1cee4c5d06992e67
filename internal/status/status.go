// Package status defines the closed set of status codes used across the
// execution layer and the error type that carries them to the public API
// boundary.
package status

import (
	"errors"
	"fmt"
)

// Code identifies a failure category. The set is closed: every error the
// layer produces maps onto exactly one of these.
type Code int

// Status codes.
const (
	Success Code = iota
	InvalidArgument
	Unimplemented
	OutOfMemory
	RuntimeError
	UnsupportedArgumentWidth
	WrongBackendKind
)

// String returns a human-readable code name.
func (c Code) String() string {
	switch c {
	case Success:
		return "Success"
	case InvalidArgument:
		return "InvalidArgument"
	case Unimplemented:
		return "Unimplemented"
	case OutOfMemory:
		return "OutOfMemory"
	case RuntimeError:
		return "RuntimeError"
	case UnsupportedArgumentWidth:
		return "UnsupportedArgumentWidth"
	case WrongBackendKind:
		return "WrongBackendKind"
	default:
		return "Unknown"
	}
}

// Error is the internal error representation: a status code, the operation
// that detected it, and a message. It supports errors.Is matching against a
// bare code via Errf's sentinel behavior.
type Error struct {
	Code    Code
	Op      string // Operation that failed, e.g. "engine.NewStream".
	Message string
	Err     error // Underlying runtime error, if any.
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Code, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
}

// Unwrap allows error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code, so callers can
// match on taxonomy without caring about the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Errf builds an *Error with a formatted message.
func Errf(code Code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error around an underlying runtime failure.
func Wrap(code Code, op, message string, err error) *Error {
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// CodeOf extracts the status code from err, returning RuntimeError for
// errors that did not originate in this layer and Success for nil.
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RuntimeError
}

// Sentinels for errors.Is matching.
var (
	ErrInvalidArgument          = &Error{Code: InvalidArgument}
	ErrUnimplemented            = &Error{Code: Unimplemented}
	ErrOutOfMemory              = &Error{Code: OutOfMemory}
	ErrRuntime                  = &Error{Code: RuntimeError}
	ErrUnsupportedArgumentWidth = &Error{Code: UnsupportedArgumentWidth}
	ErrWrongBackendKind         = &Error{Code: WrongBackendKind}
)
