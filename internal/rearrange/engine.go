// Package rearrange implements the rearrangement engine (C3): moving
// data between the compute-side decomposition and the I/O-side
// staging buffer using the pairwise swap-many primitive (C1b).
package rearrange

import (
	"context"
	"fmt"

	"github.com/sfrias/ParallelIO/internal/decomp"
	"github.com/sfrias/ParallelIO/internal/transport"
)

// Comp2IO moves nvars contiguous payloads from srcCompute to
// dstIOBuf, each payload rearranged independently according to
// iodesc's per-peer exchange plan.
func Comp2IO(ctx context.Context, t transport.Transport, iodesc decomp.Descriptor, srcCompute, dstIOBuf []byte, nvars int) error {
	return runExchange(ctx, t, iodesc, srcCompute, dstIOBuf, nvars, false)
}

// IO2Comp is the inverse of Comp2IO: it moves data staged in the
// I/O-side buffer back to the compute decomposition.
func IO2Comp(ctx context.Context, t transport.Transport, iodesc decomp.Descriptor, srcIOBuf, dstCompute []byte, nvars int) error {
	return runExchange(ctx, t, iodesc, srcIOBuf, dstCompute, nvars, true)
}

func runExchange(ctx context.Context, t transport.Transport, iodesc decomp.Descriptor, src, dst []byte, nvars int, reverse bool) error {
	es := iodesc.ElemSize()
	sndLths, sDispls, rcvLths, rDispls := exchangePlan(iodesc, reverse)

	ndof := iodesc.NDof()
	llen := iodesc.LLen()
	if reverse {
		ndof, llen = llen, ndof
	}

	for v := 0; v < nvars; v++ {
		sOff := v * ndof * es
		dOff := v * llen * es
		sEnd := sOff + ndof*es
		dEnd := dOff + llen*es
		if sEnd > len(src) {
			return fmt.Errorf("rearrange: source payload %d out of range (need %d, have %d)", v, sEnd, len(src))
		}
		if dEnd > len(dst) {
			return fmt.Errorf("rearrange: dest payload %d out of range (need %d, have %d)", v, dEnd, len(dst))
		}
		params := transport.SwapmParams{
			SndLths:  sndLths,
			SDispls:  sDispls,
			RcvLths:  rcvLths,
			RDispls:  rDispls,
			ElemSize: es,
		}
		if err := transport.Swapm(ctx, t, params, src[sOff:sEnd], dst[dOff:dEnd]); err != nil {
			return fmt.Errorf("rearrange: variable %d: %w", v, err)
		}
	}
	return nil
}

func exchangePlan(iodesc decomp.Descriptor, reverse bool) (sndLths, sDispls, rcvLths, rDispls []int) {
	if !reverse {
		return iodesc.SendLengths(), iodesc.SendDispls(), iodesc.RecvLengths(), iodesc.RecvDispls()
	}
	return iodesc.RecvLengths(), iodesc.RecvDispls(), iodesc.SendLengths(), iodesc.SendDispls()
}
