package transport

import (
	"context"
	"fmt"

	"github.com/sfrias/ParallelIO/internal/constants"
)

// ceil2 returns the smallest power of two >= n.
func ceil2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// pair returns the partner for rank me at step istep in a recursive-
// halving exchange over the next-power-of-two hypercube on np ranks,
// or -1 if there is no valid partner at this step.
func pair(np, istep, me int) int {
	p := ((istep + 1) ^ me) - 1
	if p < 0 || p >= np {
		return -1
	}
	return p
}

func tagFor(sourceRank int) int {
	return constants.SwapmTagBase + sourceRank
}

// SwapmParams bundles a single rank's view of an all-to-all-w exchange:
// per-peer send/receive lengths (in elements) and displacements (in
// elements, into sendBuf/recvBuf respectively).
type SwapmParams struct {
	SndLths []int
	SDispls []int
	RcvLths []int
	RDispls []int

	ElemSize int

	Handshake   bool
	ISend       bool
	MaxRequests int
}

// Swapm realizes an all-to-all-w: rank me sends SndLths[p] elements to
// p and receives RcvLths[p] from p, for every p, using a bounded
// in-flight window of point-to-point operations scheduled over an
// XOR-paired (recursive-halving) partner order. See spec §4.2.
func Swapm(ctx context.Context, t Transport, params SwapmParams, sendBuf, recvBuf []byte) error {
	me := t.Rank()
	np := t.Size()
	es := params.ElemSize

	if params.SndLths[me] > 0 {
		if err := swapmSelf(ctx, t, me, params, sendBuf, recvBuf); err != nil {
			return err
		}
	}

	swapids := buildSwapIDs(np, me, params.SndLths, params.RcvLths)
	s := len(swapids)
	if s == 0 {
		return nil
	}

	w, wh := windowSize(s, params.MaxRequests)

	hsRecv := make([]Request, s)
	dataRecv := make([]Request, s)
	sendReq := make([]Request, s)
	waited := make([]bool, s)

	prime := func(i int) error {
		p := swapids[i]
		if params.Handshake && params.SndLths[p] > 0 {
			req, err := t.IRecv(ctx, p, tagFor(me), make([]byte, 1))
			if err != nil {
				return fmt.Errorf("swapm: prime handshake recv from %d: %w", p, err)
			}
			hsRecv[i] = req
		}
		if params.RcvLths[p] > 0 {
			off := params.RDispls[p] * es
			ln := params.RcvLths[p] * es
			req, err := t.IRecv(ctx, p, tagFor(p), recvBuf[off:off+ln])
			if err != nil {
				return fmt.Errorf("swapm: prime data recv from %d: %w", p, err)
			}
			dataRecv[i] = req
			if params.Handshake {
				if err := t.Send(ctx, p, tagFor(p), []byte{0}); err != nil {
					return fmt.Errorf("swapm: handshake send to %d: %w", p, err)
				}
			}
		}
		return nil
	}

	rstep := 0
	for ; rstep < w && rstep < s; rstep++ {
		if err := prime(rstep); err != nil {
			return err
		}
	}

	waitSlot := func(i int) error {
		if waited[i] {
			return nil
		}
		waited[i] = true
		p := swapids[i]
		if params.RcvLths[p] > 0 && dataRecv[i] != nil {
			if err := t.Wait(ctx, dataRecv[i]); err != nil {
				return fmt.Errorf("swapm: data recv from %d: %w", p, err)
			}
		}
		if params.ISend && params.SndLths[p] > 0 && sendReq[i] != nil {
			if err := t.Wait(ctx, sendReq[i]); err != nil {
				return fmt.Errorf("swapm: send to %d: %w", p, err)
			}
		}
		return nil
	}

	for istep := 0; istep < s; istep++ {
		p := swapids[istep]
		if params.SndLths[p] > 0 {
			if params.Handshake && hsRecv[istep] != nil {
				if err := t.Wait(ctx, hsRecv[istep]); err != nil {
					return fmt.Errorf("swapm: handshake from %d: %w", p, err)
				}
			}
			off := params.SDispls[p] * es
			ln := params.SndLths[p] * es
			data := sendBuf[off : off+ln]
			if params.ISend {
				req, err := t.ISend(ctx, p, tagFor(me), data)
				if err != nil {
					return fmt.Errorf("swapm: isend to %d: %w", p, err)
				}
				sendReq[istep] = req
			} else {
				if err := t.RSend(ctx, p, tagFor(me), data); err != nil {
					return fmt.Errorf("swapm: ready-send to %d: %w", p, err)
				}
			}
		}

		// istep > Wh (strict) reloads the oldest slot. Preserved exactly
		// as specified: under W=2,Wh=1 the first reload happens at
		// istep=2, bounding peak in-flight receives to 2. See DESIGN.md
		// Open Question #2. The reload itself (prime + rstep advance) is
		// nested inside this gate, not just the wait: posting a fresh
		// receive only as an old one drains is what keeps in-flight
		// receives bounded at W.
		if istep > wh {
			if err := waitSlot(istep - wh); err != nil {
				return err
			}
			if rstep < s {
				if err := prime(rstep); err != nil {
					return err
				}
				rstep++
			}
		}
	}

	// Drain any slot not yet waited on. The original's tail loop walks
	// exactly the last Wh slots; this sweep is a safety net that waits
	// on every still-outstanding request regardless of index, which is
	// equivalent in effect (every posted request is eventually waited
	// exactly once) and simpler to keep correct than replicating the
	// original's tail bounds by hand.
	for i := 0; i < s; i++ {
		if err := waitSlot(i); err != nil {
			return err
		}
	}
	return nil
}

func swapmSelf(ctx context.Context, t Transport, me int, params SwapmParams, sendBuf, recvBuf []byte) error {
	es := params.ElemSize
	sOff := params.SDispls[me] * es
	sLen := params.SndLths[me] * es
	rOff := params.RDispls[me] * es
	rLen := params.RcvLths[me] * es
	if sLen != rLen {
		return fmt.Errorf("swapm: self-transfer length mismatch send=%d recv=%d", sLen, rLen)
	}
	req, err := t.IRecv(ctx, me, tagFor(me), recvBuf[rOff:rOff+rLen])
	if err != nil {
		return fmt.Errorf("swapm: self recv: %w", err)
	}
	if err := t.Send(ctx, me, tagFor(me), sendBuf[sOff:sOff+sLen]); err != nil {
		return fmt.Errorf("swapm: self send: %w", err)
	}
	return t.Wait(ctx, req)
}

func buildSwapIDs(np, me int, sndlths, rcvlths []int) []int {
	steps := ceil2(np) - 1
	ids := make([]int, 0, steps)
	for istep := 0; istep < steps; istep++ {
		p := pair(np, istep, me)
		if p < 0 {
			continue
		}
		if sndlths[p] > 0 || rcvlths[p] > 0 {
			ids = append(ids, p)
		}
	}
	return ids
}

func windowSize(s, maxRequests int) (w, wh int) {
	switch {
	case s == 1:
		return 1, 1
	case maxRequests > 1 && maxRequests < s:
		return maxRequests, maxRequests / 2
	case maxRequests > 0:
		return 2, 1
	default:
		return s, s
	}
}
