// Package interfaces holds the outbound back-end API (spec §6) in its
// own package so the root package and the backend package can both
// depend on it without an import cycle.
package interfaces

import (
	"context"

	"github.com/sfrias/ParallelIO/internal/decomp"
)

// Kind distinguishes a data write from a hole-fill write (spec §4.8
// step 9).
type Kind int

const (
	Data Kind = iota
	Fill
)

// FileRef identifies an open file to a back-end without requiring the
// back-end to depend on the root package's File type.
type FileRef struct {
	ID   int
	Path string
}

// Backend is the outbound back-end API the write/read drivers (C7/C8)
// invoke. Parallel and serial writers are named separately because
// the write driver picks between them per iotype (spec §4.8 step 7);
// a reference implementation may implement both with the same code
// path.
type Backend interface {
	WriteDarrayMultiPar(ctx context.Context, file FileRef, nvars, fndims int, varids []int, iodesc decomp.Descriptor, kind Kind, frame []int, payload []byte) error
	WriteDarrayMultiSerial(ctx context.Context, file FileRef, nvars, fndims int, varids []int, iodesc decomp.Descriptor, kind Kind, frame []int, payload []byte) error
	ReadDarrayNC(ctx context.Context, file FileRef, iodesc decomp.Descriptor, varid int, iobuf []byte) error
	ReadDarrayNCSerial(ctx context.Context, file FileRef, iodesc decomp.Descriptor, varid int, iobuf []byte) error
	FlushOutputBuffer(ctx context.Context, file FileRef, toDisk bool, retainIOBuf bool) error

	// InqVarNDims resolves the first variable's dimension count,
	// needed by the write driver before it can size the staging
	// buffer (spec §4.8 step 2).
	InqVarNDims(ctx context.Context, file FileRef, varid int) (int, error)
}

// BufferedBackend is the capability the design notes call for: a
// back-end that retains the iobuf pointer across its own deferred
// flush (spec §9, "Ownership of iobuf across back-ends") instead of
// returning it to the core immediately after the write call. Encoded
// as a capability interface rather than an iotype string comparison.
type BufferedBackend interface {
	Backend
	RetainsIOBuf() bool
}

// Logger is the logging collaborator the core writes diagnostics
// through (kept from the teacher lineage's internal/logging shape).
//
// The telemetry side channel (spec §9's "separate observation
// interface, not spliced into the control flow") lives in
// internal/telemetry rather than here, so that package can depend on
// this one's FileRef/Kind vocabulary without a cycle.
type Logger interface {
	Printf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}
