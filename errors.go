package pio

import (
	"errors"
	"fmt"
)

// Code is the core's error taxonomy (spec §7). Unlike the file-format
// back-ends or transport, the core itself only ever returns one of
// these.
type Code string

const (
	// CodeBadID identifies an unknown file or decomposition handle.
	CodeBadID Code = "BAD_ID"
	// CodeBadArg identifies a null required pointer, non-positive count,
	// or out-of-range variable id.
	CodeBadArg Code = "BAD_ARG"
	// CodePermission identifies a write call against a read-only file.
	CodePermission Code = "PERMISSION"
	// CodeBadIOType identifies an unrecognised back-end selector.
	CodeBadIOType Code = "BAD_IOTYPE"
	// CodeBadType identifies an element type with no known default
	// fill and no caller-supplied fill.
	CodeBadType Code = "BAD_TYPE"
	// CodeOutOfMemory identifies an arena or system allocator refusal.
	CodeOutOfMemory Code = "OUT_OF_MEMORY"
	// CodeTransport identifies a non-success return from a message
	// primitive.
	CodeTransport Code = "TRANSPORT"
)

// Error is the core's structured error type: an operation name, the
// file/decomposition handles involved (zero values when not
// applicable), a taxonomy code, a human message, and an optionally
// wrapped cause.
type Error struct {
	Op     string // operation that failed, e.g. "write_darray_multi"
	FileID int    // open file id (0 if not applicable)
	IOID   int    // decomposition id (0 if not applicable)
	Code   Code
	Msg    string
	Inner  error
}

func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.FileID != 0 {
		parts = append(parts, fmt.Sprintf("file=%d", e.FileID))
	}
	if e.IOID != 0 {
		parts = append(parts, fmt.Sprintf("ioid=%d", e.IOID))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if len(parts) > 0 {
		return fmt.Sprintf("pio: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("pio: %s", msg)
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// NewError builds a bare structured error for a call site with no
// open file or decomposition in scope (e.g. a BAD_ARG on input
// validation before either is resolved).
func NewError(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewFileError builds a structured error scoped to an open file.
func NewFileError(op string, fileID int, code Code, msg string) *Error {
	return &Error{Op: op, FileID: fileID, Code: code, Msg: msg}
}

// NewDecompError builds a structured error scoped to a file and
// decomposition.
func NewDecompError(op string, fileID, ioid int, code Code, msg string) *Error {
	return &Error{Op: op, FileID: fileID, IOID: ioid, Code: code, Msg: msg}
}

// WrapTransportError wraps a transport collaborator's failure as a
// CodeTransport error, per spec §7's propagation policy: transport
// errors are returned to the caller (who typically aborts the job),
// tagged with the failing call site's operation name in Op in place of
// a file:line (the core runs as a library function, not a standalone
// process with its own call stack to unwind). It does not log. An
// inner *Error keeps its own Code, IOID and Msg; only Op and FileID
// are replaced.
func WrapTransportError(op string, fileID int, inner error) *Error {
	if inner == nil {
		return nil
	}
	if existing, ok := inner.(*Error); ok {
		return &Error{Op: op, FileID: fileID, IOID: existing.IOID, Code: existing.Code, Msg: existing.Msg, Inner: existing.Inner}
	}
	return &Error{Op: op, FileID: fileID, Code: CodeTransport, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is a *Error with the given code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
