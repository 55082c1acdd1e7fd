package transport

import (
	"context"
	"fmt"

	"github.com/sfrias/ParallelIO/internal/constants"
	"github.com/sfrias/ParallelIO/internal/logging"
)

// FlowControlledGather gathers a fixed-length byte block from every rank
// in t onto root. If flowCntl <= 0 it falls back to the transport's
// native Gather. Otherwise it runs a root-driven window of at most
// min(flowCntl, MaxGatherBlockSize) concurrent receives, gated by a
// one-element handshake to each sender before that sender transmits.
//
// recvBuf must be sized t.Size()*blockLen on root; it is ignored on
// other ranks. sendBuf must be sized blockLen on every rank.
//
// This corrects a latent defect in the implementation this design is
// derived from, which computed the root's per-sender receive offset as
// a raw byte count `p` instead of `p*blockLen`; every receive here
// lands at recvBuf[p*blockLen : (p+1)*blockLen].
func FlowControlledGather(ctx context.Context, t Transport, root int, sendBuf, recvBuf []byte, blockLen, flowCntl int) error {
	if flowCntl <= 0 {
		return t.Gather(ctx, root, sendBuf, recvBuf, blockLen)
	}

	p := t.Size()
	tag := constants.GatherTagBase + 2*p

	if t.Rank() == root {
		return flowControlledGatherRoot(ctx, t, root, sendBuf, recvBuf, blockLen, flowCntl, tag)
	}

	if len(sendBuf) == 0 {
		return nil
	}
	var hs [1]byte
	if err := t.Recv(ctx, root, tag, hs[:]); err != nil {
		return fmt.Errorf("gather: handshake recv on rank %d: %w", t.Rank(), err)
	}
	if err := t.RSend(ctx, root, tag, sendBuf); err != nil {
		return fmt.Errorf("gather: ready-send on rank %d: %w", t.Rank(), err)
	}
	return nil
}

func flowControlledGatherRoot(ctx context.Context, t Transport, root int, sendBuf, recvBuf []byte, blockLen, flowCntl, tag int) error {
	w := flowCntl
	if w > constants.MaxGatherBlockSize {
		w = constants.MaxGatherBlockSize
	}

	np := t.Size()
	copy(recvBuf[root*blockLen:(root+1)*blockLen], sendBuf)
	type posted struct {
		rank int
		req  Request
	}
	window := make([]posted, 0, w)

	waitOldest := func() error {
		if len(window) == 0 {
			return nil
		}
		oldest := window[0]
		window = window[1:]
		if err := t.Wait(ctx, oldest.req); err != nil {
			logging.Default().Warn("gather: receive failed", "rank", oldest.rank, "error", err)
			return fmt.Errorf("gather: recv from rank %d: %w", oldest.rank, err)
		}
		return nil
	}

	for rank := 0; rank < np; rank++ {
		if rank == root {
			continue
		}
		if len(window) == w {
			if err := waitOldest(); err != nil {
				return err
			}
		}
		dst := recvBuf[rank*blockLen : (rank+1)*blockLen]
		req, err := t.IRecv(ctx, rank, tag, dst)
		if err != nil {
			return fmt.Errorf("gather: post recv for rank %d: %w", rank, err)
		}
		window = append(window, posted{rank: rank, req: req})

		var hs [1]byte
		if err := t.Send(ctx, rank, tag, hs[:]); err != nil {
			return fmt.Errorf("gather: handshake send to rank %d: %w", rank, err)
		}
	}

	for len(window) > 0 {
		if err := waitOldest(); err != nil {
			return err
		}
	}
	return nil
}
