// Package transport provides the outbound message-passing API the core
// depends on (spec: standard MPI-2 point-to-point and collectives) plus
// a goroutine-simulated reference implementation.
package transport

import (
	"context"
	"errors"
)

// ErrNoPartner is returned by Request helpers when a pair step has no
// valid partner; callers should treat it as "nothing to wait on", not
// as a transport failure.
var ErrNoPartner = errors.New("transport: no partner for this step")

// Transport is the collaborator the message-scheduler primitives (C1)
// and the rearrangement engine (C3) depend on. It matches the outbound
// transport API one-for-one: point-to-point send/receive variants,
// collectives, and rank/size introspection.
type Transport interface {
	// Rank returns this process's rank within the communicator.
	Rank() int

	// Size returns the communicator's rank count.
	Size() int

	// Send performs a blocking standard-mode send.
	Send(ctx context.Context, dest int, tag int, data []byte) error

	// RSend performs a ready-send: the caller guarantees a matching
	// receive is already posted (e.g. via a prior handshake).
	RSend(ctx context.Context, dest int, tag int, data []byte) error

	// ISend posts a non-blocking send and returns a Request to wait on.
	ISend(ctx context.Context, dest int, tag int, data []byte) (Request, error)

	// IRecv posts a non-blocking receive into buf and returns a Request
	// to wait on. buf must remain valid and unaliased until the wait
	// completes.
	IRecv(ctx context.Context, src int, tag int, buf []byte) (Request, error)

	// Recv performs a blocking receive into buf.
	Recv(ctx context.Context, src int, tag int, buf []byte) error

	// Wait blocks until req completes.
	Wait(ctx context.Context, req Request) error

	// WaitAll blocks until every request in reqs completes, returning the
	// first error encountered (if any) after waiting on all of them.
	WaitAll(ctx context.Context, reqs []Request) error

	// Bcast broadcasts buf from root to every rank in the communicator.
	// Non-root ranks' buf is overwritten with root's contents.
	Bcast(ctx context.Context, root int, buf []byte) error

	// AllreduceMaxInt performs an all-reduce with the MAX operator over a
	// single int per rank, as used by the flush policy's collective
	// agreement step (spec §4.7).
	AllreduceMaxInt(ctx context.Context, value int) (int, error)

	// Gather is the native (unmodified) MPI-style gather: every rank
	// sends a blockLen-byte block to root, which assembles them in rank
	// order into recvBuf (sized Size()*blockLen on root, ignored
	// elsewhere). See gather.go for the flow-controlled variant built on
	// top of the point-to-point primitives above; this method is only
	// the fallback path for flow_cntl <= 0.
	Gather(ctx context.Context, root int, sendBuf []byte, recvBuf []byte, blockLen int) error

	// Barrier blocks until every rank in the communicator has called it.
	Barrier(ctx context.Context) error
}

// Request is an opaque handle to an outstanding non-blocking operation.
type Request interface {
	// Peer returns the rank this request communicates with, or -1 if
	// not applicable (e.g. a completed/null request).
	Peer() int
}
