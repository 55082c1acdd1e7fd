// Package backend provides reference interfaces.Backend implementations
// used by tests and the demo CLI in place of a real parallel netCDF
// library.
package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/sfrias/ParallelIO/internal/decomp"
	"github.com/sfrias/ParallelIO/internal/interfaces"
)

const shardCount = 16

type payloadKey struct {
	fileID int
	varid  int
	frame  int
}

// Memory is a reference back-end that stores every written payload in
// process memory, sharded by variable id for write parallelism
// (grounded on the teacher's sharded in-memory block device backend,
// adapted from raw byte-offset shards to keyed variable payloads).
type Memory struct {
	shards []sync.RWMutex
	data   []map[payloadKey][]byte

	mu       sync.Mutex
	flushed  map[int]bool
	fillKeys map[payloadKey]bool
}

// NewMemory creates an empty in-memory back-end.
func NewMemory() *Memory {
	m := &Memory{
		shards:   make([]sync.RWMutex, shardCount),
		data:     make([]map[payloadKey][]byte, shardCount),
		flushed:  make(map[int]bool),
		fillKeys: make(map[payloadKey]bool),
	}
	for i := range m.data {
		m.data[i] = make(map[payloadKey][]byte)
	}
	return m
}

func (m *Memory) shardFor(varid int) int {
	h := varid % len(m.shards)
	if h < 0 {
		h += len(m.shards)
	}
	return h
}

// writeVars stores nvars payloads contiguously packed in payload. A
// Data write's per-variable stride is iodesc.LLen()*ElemSize(); a Fill
// write (the SUBSET holegrid pass, spec §4.8 step 9) carries a
// different, rank-local stride this reference backend has no other way
// to learn, so it derives the stride from the payload's own length
// instead of hardcoding HoleGridSize()/MaxHoleGridSize() selection
// logic that belongs to the caller. Fill payloads are recorded
// separately from the real data so they never clobber it: this store
// has no per-element region map, so "painting holes" can only be
// represented as "a fill pass happened", observable via Filled.
func (m *Memory) writeVars(fileID int, varids []int, iodesc decomp.Descriptor, kind interfaces.Kind, frame []int, payload []byte) error {
	stride := iodesc.LLen() * iodesc.ElemSize()
	if kind == interfaces.Fill {
		if len(varids) == 0 {
			return nil
		}
		stride = len(payload) / len(varids)
	}
	for i, varid := range varids {
		off := i * stride
		if off+stride > len(payload) {
			return fmt.Errorf("backend: payload too short for variable %d (need %d more bytes)", varid, off+stride-len(payload))
		}
		buf := make([]byte, stride)
		copy(buf, payload[off:off+stride])

		fr := 0
		if i < len(frame) {
			fr = frame[i]
		}
		key := payloadKey{fileID: fileID, varid: varid, frame: fr}

		if kind == interfaces.Fill {
			m.mu.Lock()
			m.fillKeys[key] = true
			m.mu.Unlock()
			continue
		}

		shard := m.shardFor(varid)
		m.shards[shard].Lock()
		m.data[shard][key] = buf
		m.shards[shard].Unlock()
	}
	return nil
}

// WriteDarrayMultiPar implements interfaces.Backend.
func (m *Memory) WriteDarrayMultiPar(_ context.Context, file interfaces.FileRef, _ int, _ int, varids []int, iodesc decomp.Descriptor, kind interfaces.Kind, frame []int, payload []byte) error {
	return m.writeVars(file.ID, varids, iodesc, kind, frame, payload)
}

// WriteDarrayMultiSerial implements interfaces.Backend. The in-memory
// store has no parallel/serial distinction, so both entry points share
// one code path.
func (m *Memory) WriteDarrayMultiSerial(_ context.Context, file interfaces.FileRef, _ int, _ int, varids []int, iodesc decomp.Descriptor, kind interfaces.Kind, frame []int, payload []byte) error {
	return m.writeVars(file.ID, varids, iodesc, kind, frame, payload)
}

// Filled reports whether a holegrid fill pass (spec §4.8 step 9) was
// dispatched for (fileID, varid, frame=0), for test assertions.
func (m *Memory) Filled(fileID, varid int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fillKeys[payloadKey{fileID: fileID, varid: varid}]
}

func (m *Memory) readVar(fileID int, iodesc decomp.Descriptor, varid int, iobuf []byte) error {
	need := iodesc.LLen() * iodesc.ElemSize()
	key := payloadKey{fileID: fileID, varid: varid}
	shard := m.shardFor(varid)

	m.shards[shard].RLock()
	buf, ok := m.data[shard][key]
	m.shards[shard].RUnlock()

	if !ok {
		for i := range iobuf {
			iobuf[i] = 0
		}
		return nil
	}
	if len(buf) < need || len(iobuf) < need {
		return fmt.Errorf("backend: stored/iobuf length mismatch for variable %d", varid)
	}
	copy(iobuf, buf[:need])
	return nil
}

// ReadDarrayNC implements interfaces.Backend.
func (m *Memory) ReadDarrayNC(_ context.Context, file interfaces.FileRef, iodesc decomp.Descriptor, varid int, iobuf []byte) error {
	return m.readVar(file.ID, iodesc, varid, iobuf)
}

// ReadDarrayNCSerial implements interfaces.Backend.
func (m *Memory) ReadDarrayNCSerial(_ context.Context, file interfaces.FileRef, iodesc decomp.Descriptor, varid int, iobuf []byte) error {
	return m.readVar(file.ID, iodesc, varid, iobuf)
}

// FlushOutputBuffer implements interfaces.Backend. The in-memory store
// has nothing durable to flush to; it just records that the call
// happened, for tests to assert against.
func (m *Memory) FlushOutputBuffer(_ context.Context, file interfaces.FileRef, toDisk bool, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushed[file.ID] = m.flushed[file.ID] || toDisk
	return nil
}

// Flushed reports whether FlushOutputBuffer has been called for fileID
// with toDisk set, for test assertions.
func (m *Memory) Flushed(fileID int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushed[fileID]
}

// InqVarNDims implements interfaces.Backend. This reference back-end
// has no schema, so every variable reports one dimension.
func (m *Memory) InqVarNDims(context.Context, interfaces.FileRef, int) (int, error) {
	return 1, nil
}

// RetainsIOBuf implements interfaces.BufferedBackend: the in-memory
// back-end copies payload out immediately and never retains the iobuf
// past the write call.
func (m *Memory) RetainsIOBuf() bool { return false }

var (
	_ interfaces.Backend         = (*Memory)(nil)
	_ interfaces.BufferedBackend = (*Memory)(nil)
)
