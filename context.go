// Package pio implements the distributed-array aggregation,
// rearrangement, and message-scheduling core of a parallel I/O
// library: it buffers per-variable compute-side writes, rearranges
// them to the I/O-side decomposition with a flow-controlled gather and
// a pairwise swap-many collective, and flushes to a file-format
// back-end under buffer-size and region-count limits.
package pio

import (
	"fmt"
	"sync"

	"github.com/sfrias/ParallelIO/internal/config"
	"github.com/sfrias/ParallelIO/internal/decomp"
	"github.com/sfrias/ParallelIO/internal/interfaces"
	"github.com/sfrias/ParallelIO/internal/pool"
	"github.com/sfrias/ParallelIO/internal/telemetry"
	"github.com/sfrias/ParallelIO/internal/transport"
	"github.com/sfrias/ParallelIO/internal/wmb"
)

// DecompID identifies a registered decomposition descriptor (iodesc).
type DecompID int

// Option configures a Context at construction time.
type Option func(*Context)

// WithObserver attaches a telemetry.Observer. The default is
// telemetry.NoOpObserver{}.
func WithObserver(o telemetry.Observer) Option {
	return func(c *Context) { c.observer = o }
}

// WithIORoot sets the rank that acts as I/O-rank-0 for the purposes of
// spec §4.8 step 9's holegrid sizing (MaxHoleGridSize on the I/O root,
// HoleGridSize elsewhere). The default is rank 0. Async-mode's
// compute-master-to-I/O-root broadcast (spec §3/§4.8 step 2) and its
// outer dispatch loop are out of core scope (spec §5) and are not
// modeled by this option; see DESIGN.md's Open Questions for why.
func WithIORoot(rank int) Option {
	return func(c *Context) { c.ioRootRank = rank }
}

// Context is the communicator context (spec §3): it stands in for the
// compute/I/O/union communicators and the intercommunicator via a
// single Transport collaborator fixed at construction, and
// encapsulates the process-wide buffer_size_limit and arena root
// pointer spec §9 flags as global mutable state that a reimplementation
// should scope to a context object instead. The buffer-size limit, the
// decomposition registry and the file table change through its methods
// after construction.
type Context struct {
	mu sync.Mutex

	transport transport.Transport
	arena     *pool.Arena
	observer  telemetry.Observer

	ioRootRank int

	bufferSizeLimit    int64
	maxCachedIORegions int

	decomps    map[DecompID]decomp.Descriptor
	files      map[int]*File
	nextFileID int
}

// NewContext builds a Context over the given transport collaborator,
// seeded from cfg (internal/config.Default() if the caller has no
// config file).
func NewContext(t transport.Transport, cfg config.Config, opts ...Option) *Context {
	c := &Context{
		transport:          t,
		arena:              pool.New(cfg.ArenaCapacity),
		observer:           telemetry.NoOpObserver{},
		bufferSizeLimit:    cfg.BufferSizeLimit,
		maxCachedIORegions: cfg.MaxCachedIORegions,
		decomps:            make(map[DecompID]decomp.Descriptor),
		files:              make(map[int]*File),
		nextFileID:         1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetBufferSizeLimit sets the pool-pressure threshold (spec §6) used
// by the flush policy and returns the previous value. The limit is
// held per Context, not per file: the new value applies to the next
// write_darray call on every file, including files opened before the
// call.
func (c *Context) SetBufferSizeLimit(n int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.bufferSizeLimit
	c.bufferSizeLimit = n
	return prev
}

// RegisterDecomp associates a decomposition descriptor with an id so
// write/read drivers can resolve it by DecompID, as the out-of-scope
// decomposition builder (C2) would in a full deployment.
func (c *Context) RegisterDecomp(id DecompID, d decomp.Descriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decomps[id] = d
}

func (c *Context) resolveDecomp(id DecompID) (decomp.Descriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.decomps[id]
	if !ok {
		return nil, NewError("resolve_decomp", CodeBadID, fmt.Sprintf("unknown decomposition id %d", id))
	}
	return d, nil
}

// varState is the per-file-variable cache the original resolves lazily
// the first time write_darray sees a variable (SPEC_FULL §9.1): its
// record-variable-ness, current frame counter, and resolved fill
// value/use-fill bit.
type varState struct {
	recordVar bool
	frame     int
	elemKind  wmb.ElemKind
	fillValue []byte
	useFill   bool

	// pendWriteBytes is a per-variable pending-byte counter (SPEC_FULL
	// §9.1). No code path updates it or reports it to the telemetry
	// Observer; the write driver keeps its pending count in
	// File.pendingBytes instead.
	pendWriteBytes int64
}

// File is the per-open-file state (spec §3): iotype, mode, the WMB
// list this file owns, and per-variable descriptors.
type File struct {
	id       int
	backend  interfaces.Backend
	iotype   IOType
	readOnly bool

	mu           sync.Mutex
	wmbHead      *wmb.WMB
	pendingBytes int64
	vars         map[int]*varState
}

// IOType selects which back-end entry point the write driver dispatches
// to (spec §4.8 step 7): parallel back-ends (pnetcdf, netCDF4-parallel)
// vs serial back-ends (classic, netCDF4-serial).
type IOType int

const (
	IOTypePnetcdf IOType = iota
	IOTypeNetCDF4Parallel
	IOTypeNetCDFClassic
	IOTypeNetCDF4Serial
)

func (t IOType) String() string {
	switch t {
	case IOTypePnetcdf:
		return "pnetcdf"
	case IOTypeNetCDF4Parallel:
		return "netcdf4p"
	case IOTypeNetCDFClassic:
		return "netcdf_classic"
	case IOTypeNetCDF4Serial:
		return "netcdf4_serial"
	default:
		return "unknown"
	}
}

// Parallel reports whether t dispatches through WriteDarrayMultiPar
// rather than WriteDarrayMultiSerial.
func (t IOType) Parallel() bool {
	return t == IOTypePnetcdf || t == IOTypeNetCDF4Parallel
}

func validIOType(t IOType) bool {
	switch t {
	case IOTypePnetcdf, IOTypeNetCDF4Parallel, IOTypeNetCDFClassic, IOTypeNetCDF4Serial:
		return true
	default:
		return false
	}
}

// OpenFile registers a new open file against backend, returning the
// handle the write/read drivers operate on.
func (c *Context) OpenFile(backend interfaces.Backend, iotype IOType, readOnly bool) (*File, error) {
	if !validIOType(iotype) {
		return nil, NewError("open_file", CodeBadIOType, fmt.Sprintf("unrecognised iotype %d", iotype))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	f := &File{
		id:       c.nextFileID,
		backend:  backend,
		iotype:   iotype,
		readOnly: readOnly,
		vars:     make(map[int]*varState),
	}
	c.files[f.id] = f
	c.nextFileID++
	return f, nil
}

// CloseFile releases every WMB the file still owns back to the arena
// and forgets the file.
func (c *Context) CloseFile(f *File) {
	f.mu.Lock()
	for w := f.wmbHead; w != nil; {
		next := w.Next
		w.Release(c.arena)
		w = next
	}
	f.wmbHead = nil
	f.mu.Unlock()

	c.mu.Lock()
	delete(c.files, f.id)
	c.mu.Unlock()
}

// DefineVar declares a variable's record-ness and fill behavior ahead
// of the first write_darray call that references it, matching the
// original's find_var_fillvalue lazy-resolution cache (SPEC_FULL
// §9.1) except made explicit rather than inferred from a back-end
// query on first use, since that query is out of core scope here.
func (f *File) DefineVar(varid int, recordVar bool, elemKind wmb.ElemKind, fillValue []byte, useFill bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vars[varid] = &varState{
		recordVar: recordVar,
		elemKind:  elemKind,
		fillValue: fillValue,
		useFill:   useFill,
	}
}

func (f *File) varOrErr(op string, varid int) (*varState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vars[varid]
	if !ok {
		return nil, NewFileError(op, f.id, CodeBadArg, fmt.Sprintf("variable %d not defined on this file", varid))
	}
	return v, nil
}

// findOrCreateWMB walks the file's WMB list matching on (ioid,
// recordvar) (spec §4.6); f.mu must be held by the caller.
func (f *File) findOrCreateWMB(ioid int, recordVar bool, arrayLen, elemSize int, needsFill bool) *wmb.WMB {
	for w := f.wmbHead; w != nil; w = w.Next {
		if w.IOID == ioid && w.RecordVar == recordVar {
			return w
		}
	}
	w := wmb.New(ioid, recordVar, arrayLen, elemSize, needsFill)
	w.Next = f.wmbHead
	f.wmbHead = w
	return w
}

// unlinkWMB removes w from the file's WMB list after it has been
// flushed to completion; f.mu must be held by the caller.
func (f *File) unlinkWMB(target *wmb.WMB) {
	if f.wmbHead == target {
		f.wmbHead = target.Next
		return
	}
	for w := f.wmbHead; w != nil; w = w.Next {
		if w.Next == target {
			w.Next = target.Next
			return
		}
	}
}
