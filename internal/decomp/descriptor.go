// Package decomp defines the decomposition descriptor (C2) the core
// depends on. Per spec the descriptor's construction is out of core
// scope; this package gives the interface a concrete shape plus a
// reference builder so the rearrangement engine and the write/read
// drivers have something real to run against in tests.
package decomp

// Rearranger selects how a decomposition distributes the global array
// across I/O ranks.
type Rearranger int

const (
	// BOX: every I/O process receives a contiguous tile of the global
	// array.
	BOX Rearranger = iota
	// SUBSET: each I/O process receives an arbitrary union of regions
	// that may have holes not covered by any compute source.
	SUBSET
)

func (r Rearranger) String() string {
	switch r {
	case BOX:
		return "BOX"
	case SUBSET:
		return "SUBSET"
	default:
		return "unknown"
	}
}

// Descriptor is the decomposition descriptor (iodesc) the core
// consumes. It is immutable for the lifetime of any WMB that
// references it (spec §4.3).
type Descriptor interface {
	Rearranger() Rearranger
	ElemSize() int
	NDof() int
	LLen() int
	MaxIOBufLen() int
	NeedsFill() bool
	HoleGridSize() int
	MaxHoleGridSize() int
	MaxRegions() int
	MaxFillRegions() int

	// SendLengths/SendDispls/RecvLengths/RecvDispls describe this
	// rank's part of the compute-to-I/O all-to-all-w (element counts
	// and displacements, not bytes). The I/O-to-compute direction is
	// their exact inverse: what this rank received becomes what it
	// sends back, and vice versa.
	SendLengths() []int
	SendDispls() []int
	RecvLengths() []int
	RecvDispls() []int
}

// Static is a plain-data Descriptor, built once and never mutated
// afterwards, matching the immutability guarantee the core relies on.
type Static struct {
	RearrangerKind Rearranger
	ElemSizeVal    int
	NDofVal        int
	LLenVal        int
	MaxIOBufLenVal int
	NeedsFillVal   bool
	HoleGridVal    int
	MaxHoleGridVal int
	MaxRegionsVal  int
	MaxFillRegionsVal int

	SendLengthsVal []int
	SendDisplsVal  []int
	RecvLengthsVal []int
	RecvDisplsVal  []int
}

func (d *Static) Rearranger() Rearranger  { return d.RearrangerKind }
func (d *Static) ElemSize() int           { return d.ElemSizeVal }
func (d *Static) NDof() int               { return d.NDofVal }
func (d *Static) LLen() int               { return d.LLenVal }
func (d *Static) MaxIOBufLen() int        { return d.MaxIOBufLenVal }
func (d *Static) NeedsFill() bool         { return d.NeedsFillVal }
func (d *Static) HoleGridSize() int       { return d.HoleGridVal }
func (d *Static) MaxHoleGridSize() int    { return d.MaxHoleGridVal }
func (d *Static) MaxRegions() int         { return d.MaxRegionsVal }
func (d *Static) MaxFillRegions() int     { return d.MaxFillRegionsVal }
func (d *Static) SendLengths() []int      { return d.SendLengthsVal }
func (d *Static) SendDispls() []int       { return d.SendDisplsVal }
func (d *Static) RecvLengths() []int      { return d.RecvLengthsVal }
func (d *Static) RecvDispls() []int       { return d.RecvDisplsVal }

var _ Descriptor = (*Static)(nil)

// BuildBox constructs a BOX decomposition over nprocs ranks where the
// first ioRanks ranks are I/O ranks and the global array of globalLen
// elements is split into contiguous, near-equal tiles across them. Rank
// me's returned Descriptor describes its own part of the exchange: if
// me < ioRanks it is also a compute rank contributing its tile's worth
// of elements (a common setup in single-communicator test harnesses
// where compute and I/O ranks overlap).
func BuildBox(nprocs, ioRanks, globalLen, elemSize, me int) *Static {
	tileLens := make([]int, ioRanks)
	tileOffs := make([]int, ioRanks)
	base := globalLen / ioRanks
	rem := globalLen % ioRanks
	off := 0
	maxTile := 0
	for r := 0; r < ioRanks; r++ {
		l := base
		if r < rem {
			l++
		}
		tileLens[r] = l
		tileOffs[r] = off
		off += l
		if l > maxTile {
			maxTile = l
		}
	}

	sendLen := make([]int, nprocs)
	sendDispl := make([]int, nprocs)
	recvLen := make([]int, nprocs)
	recvDispl := make([]int, nprocs)

	// Every rank sends its whole local tile's worth of data to the I/O
	// rank that owns the matching part of the global array. In this
	// reference builder compute rank r's local data maps 1:1 onto tile
	// r (i.e. NDof == tile length), which is the common degenerate case
	// used by the round-trip tests.
	if me < ioRanks {
		sendLen[me] = tileLens[me]
		sendDispl[me] = 0
	}
	if me < ioRanks {
		recvLen[me] = tileLens[me]
		recvDispl[me] = 0
	}

	ndof := 0
	if me < ioRanks {
		ndof = tileLens[me]
	}
	llen := 0
	if me < ioRanks {
		llen = tileLens[me]
	}

	return &Static{
		RearrangerKind:    BOX,
		ElemSizeVal:       elemSize,
		NDofVal:           ndof,
		LLenVal:           llen,
		MaxIOBufLenVal:    maxTile,
		NeedsFillVal:      false,
		MaxRegionsVal:     1,
		MaxFillRegionsVal: 0,
		SendLengthsVal:    sendLen,
		SendDisplsVal:     sendDispl,
		RecvLengthsVal:    recvLen,
		RecvDisplsVal:     recvDispl,
	}
}
