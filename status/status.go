// Package status exposes the execution layer's error taxonomy. Every
// error the compute and gemm packages return carries one code from the
// closed set below; match with errors.Is against the sentinels or extract
// the code with CodeOf.
package status

import (
	"github.com/00mjk/oneDNN/internal/status"
)

// Code identifies a failure category.
type Code = status.Code

// Status codes.
const (
	Success                  Code = status.Success
	InvalidArgument          Code = status.InvalidArgument
	Unimplemented            Code = status.Unimplemented
	OutOfMemory              Code = status.OutOfMemory
	RuntimeError             Code = status.RuntimeError
	UnsupportedArgumentWidth Code = status.UnsupportedArgumentWidth
	WrongBackendKind         Code = status.WrongBackendKind
)

// Error carries a code, the operation that detected the failure, and a
// message.
type Error = status.Error

// CodeOf extracts the status code from err, Success for nil.
var CodeOf = status.CodeOf

// Sentinels for errors.Is matching.
var (
	ErrInvalidArgument          = status.ErrInvalidArgument
	ErrUnimplemented            = status.ErrUnimplemented
	ErrOutOfMemory              = status.ErrOutOfMemory
	ErrRuntime                  = status.ErrRuntime
	ErrUnsupportedArgumentWidth = status.ErrUnsupportedArgumentWidth
	ErrWrongBackendKind         = status.ErrWrongBackendKind
)
