// Package flush implements the flush policy (C6): deciding whether a
// write multi-buffer needs no flush, an I/O-level flush, or a disk
// flush, from pool pressure and post-rearrangement region counts.
package flush

import (
	"context"
	"fmt"

	"github.com/sfrias/ParallelIO/internal/decomp"
	"github.com/sfrias/ParallelIO/internal/pool"
	"github.com/sfrias/ParallelIO/internal/transport"
)

// Level is a flush decision.
type Level int

const (
	NoFlush Level = iota
	IOFlush
	DiskFlush
)

func (l Level) String() string {
	switch l {
	case NoFlush:
		return "NO_FLUSH"
	case IOFlush:
		return "IO_FLUSH"
	case DiskFlush:
		return "DISK_FLUSH"
	default:
		return "unknown"
	}
}

// Decide applies spec §4.7's three rules against the arena's current
// statistics. bufferSizeLimit and maxCachedIORegions are process-wide
// tunables (internal/config); numArrays is the WMB's array count
// *before* the pending append; arrayLen/elemSize describe the payload
// about to be appended.
//
// Rule 3 (region-count bound) is applied as a separate step after
// rules 1-2, exactly as in the implementation this design is derived
// from: it can only raise the decision (from NO_FLUSH or IO_FLUSH) to
// DISK_FLUSH, never lower one already made by rules 1-2.
func Decide(stats pool.Stats, iodesc decomp.Descriptor, numArrays, arrayLen, elemSize int, bufferSizeLimit int64, maxCachedIORegions int) Level {
	if stats.CurAlloc >= bufferSizeLimit {
		return DiskFlush
	}

	level := NoFlush
	req := int64(1+numArrays) * int64(arrayLen) * int64(elemSize)
	if float64(stats.MaxFree) <= 1.1*float64(req) {
		level = IOFlush
	}

	decompMaxRegions := iodesc.MaxRegions()
	if iodesc.MaxFillRegions() > decompMaxRegions {
		decompMaxRegions = iodesc.MaxFillRegions()
	}
	if (1+numArrays)*decompMaxRegions > maxCachedIORegions {
		level = DiskFlush
	}

	return level
}

// Agree performs spec §4.7's collective-agreement step: an all-reduce
// MAX of the locally decided level across the compute communicator, so
// every rank takes the same flush action on the same call (the flush
// itself invokes a collective rearrangement).
func Agree(ctx context.Context, t transport.Transport, local Level) (Level, error) {
	max, err := t.AllreduceMaxInt(ctx, int(local))
	if err != nil {
		return NoFlush, fmt.Errorf("flush: collective agreement: %w", err)
	}
	return Level(max), nil
}
