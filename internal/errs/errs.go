// Package errs defines the error kinds a replay can fail with.
//
// Every kind is fatal to the replay that produced it; nothing in this module
// retries. Callers branch on the kind with Is.
package errs

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Code identifies an error kind.
type Code string

const (
	// CodeInvalidArgument is returned before any I/O when a replay request is
	// rejected by validation.
	CodeInvalidArgument Code = "invalid_argument"
	// CodeMalformedRecord is returned while decoding when a line's timestamp
	// or payload cannot be parsed.
	CodeMalformedRecord Code = "malformed_record"
	// CodeCorruptSlice is returned when an existing slice file cannot be
	// decompressed or read to the end.
	CodeCorruptSlice Code = "corrupt_slice"
	// CodeSliceUnavailable is returned when a slice did not appear within the
	// configured wait timeout.
	CodeSliceUnavailable Code = "slice_unavailable"
)

// StackTracer is implemented by errors carrying a github.com/pkg/errors stack.
type StackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// Error is a coded error. Field names the offending request field for
// CodeInvalidArgument; for slice errors it holds the slice path.
type Error struct {
	Code    Code
	Field   string
	Message string

	cause error
	trace StackTracer
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// StackTrace returns the stack recorded where the error was created.
func (e *Error) StackTrace() pkgerrors.StackTrace {
	if e.trace == nil {
		return nil
	}
	return e.trace.StackTrace()
}

func newError(code Code, field, message string, cause error) *Error {
	e := &Error{Code: code, Field: field, Message: message, cause: cause}
	e.trace = pkgerrors.WithStack(errors.New(message)).(StackTracer)
	return e
}

// InvalidArgument reports a request field that failed validation.
func InvalidArgument(field, format string, args ...any) *Error {
	return newError(CodeInvalidArgument, field, fmt.Sprintf(format, args...), nil)
}

// MalformedRecord reports a line in path that could not be decoded.
func MalformedRecord(path string, cause error, format string, args ...any) *Error {
	return newError(CodeMalformedRecord, path, fmt.Sprintf(format, args...), cause)
}

// CorruptSlice reports a slice file that could not be read to the end.
func CorruptSlice(path string, cause error) *Error {
	return newError(CodeCorruptSlice, path, fmt.Sprintf("corrupt slice %s", path), cause)
}

// SliceUnavailable reports a slice that did not appear in time.
func SliceUnavailable(path string, cause error) *Error {
	return newError(CodeSliceUnavailable, path, fmt.Sprintf("slice %s did not become available", path), cause)
}

// Is reports whether any error in err's chain is an *Error with the code.
func Is(err error, code Code) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
