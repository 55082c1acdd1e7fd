package pio

import (
	"context"
	"fmt"

	"github.com/sfrias/ParallelIO/internal/decomp"
	"github.com/sfrias/ParallelIO/internal/flush"
	"github.com/sfrias/ParallelIO/internal/interfaces"
	"github.com/sfrias/ParallelIO/internal/rearrange"
	"github.com/sfrias/ParallelIO/internal/wmb"
)

// WriteDarray buffers one variable's compute-side payload against ioid's
// decomposition (spec §4.6), flushing it on to the back-end once the
// flush policy (internal/flush) decides the accumulated write multi-
// buffer should move. It is a thin wrapper over WriteDarrayMulti for
// the common single-variable case.
func (c *Context) WriteDarray(ctx context.Context, f *File, varid int, ioid DecompID, arraylen int, array any, fillvalue any) error {
	return c.WriteDarrayMulti(ctx, f, []int{varid}, ioid, arraylen, []any{array}, nil, []any{fillvalue}, false)
}

// WriteDarrayMulti appends nvars payloads sharing ioid's decomposition
// to file's write multi-buffer, then runs the flush policy: if any
// compute rank decides a flush is due, every rank flushes (the
// collective agreement takes the maximum level), rearranging the
// buffered data to the I/O-side layout and dispatching it to the
// back-end (spec §4.8).
// frames may be nil for non-record variables; flushToDisk forces a
// disk-level flush regardless of the policy's decision.
func (c *Context) WriteDarrayMulti(ctx context.Context, f *File, varids []int, ioid DecompID, arraylen int, arrays []any, frames []int, fillvalues []any, flushToDisk bool) error {
	if len(varids) == 0 {
		return NewFileError("write_darray_multi", f.id, CodeBadArg, "no variables given")
	}
	if len(arrays) != len(varids) || len(fillvalues) != len(varids) {
		return NewFileError("write_darray_multi", f.id, CodeBadArg, "varids/arrays/fillvalues length mismatch")
	}
	if frames != nil && len(frames) != len(varids) {
		return NewFileError("write_darray_multi", f.id, CodeBadArg, "frames length mismatch")
	}
	if f.readOnly {
		return NewFileError("write_darray_multi", f.id, CodePermission, "file opened read-only")
	}

	iodesc, err := c.resolveDecomp(ioid)
	if err != nil {
		return err
	}

	ndof := iodesc.NDof()
	effLen := arraylen
	switch {
	case arraylen > ndof:
		c.observer.ObserveWrite(int(ioid), 0, 0, fmt.Errorf("write_darray_multi: arraylen %d exceeds decomposition NDof %d, truncating", arraylen, ndof))
		effLen = ndof
	case arraylen < ndof:
		return NewDecompError("write_darray_multi", f.id, int(ioid), CodeBadArg,
			fmt.Sprintf("arraylen %d is less than decomposition NDof %d", arraylen, ndof))
	}

	f.mu.Lock()
	var target *wmb.WMB
	numArraysBefore := -1
	for i, varid := range varids {
		vs, verr := f.varOrErrLocked(varid)
		if verr != nil {
			f.mu.Unlock()
			return verr
		}

		data, kind, elemSize, eerr := encodeArray(arrays[i])
		if eerr != nil {
			f.mu.Unlock()
			return NewFileError("write_darray_multi", f.id, CodeBadType, eerr.Error())
		}
		data = data[:effLen*elemSize]

		var fv []byte
		if fillvalues[i] != nil {
			fvBytes, fkind, fsize, ferr := encodeArray(fillvalues[i])
			if ferr != nil {
				f.mu.Unlock()
				return NewFileError("write_darray_multi", f.id, CodeBadType, ferr.Error())
			}
			if fkind != kind || fsize != elemSize {
				f.mu.Unlock()
				return NewFileError("write_darray_multi", f.id, CodeBadType, "fill value type does not match array type")
			}
			fv = fvBytes
		}

		frame := 0
		if frames != nil {
			frame = frames[i]
		}

		w := f.findOrCreateWMB(int(ioid), vs.recordVar, effLen, elemSize, iodesc.NeedsFill())
		if target == nil {
			target = w
			numArraysBefore = w.NumArrays
		} else if w != target {
			f.mu.Unlock()
			return NewFileError("write_darray_multi", f.id, CodeBadArg, "variables in one call must share ioid and record-ness")
		}

		if err := target.Append(c.arena, varid, frame, data, fv, kind); err != nil {
			f.mu.Unlock()
			return NewFileError("write_darray_multi", f.id, CodeOutOfMemory, err.Error())
		}
		f.pendingBytes += int64(len(data))
	}
	f.mu.Unlock()

	stats := c.arena.Stats()
	level := flush.Decide(stats, iodesc, numArraysBefore, effLen, target.ElemSize, c.bufferSizeLimit, c.maxCachedIORegions)
	if flushToDisk && level < flush.DiskFlush {
		level = flush.DiskFlush
	}

	agreed, err := flush.Agree(ctx, c.transport, level)
	if err != nil {
		c.observer.ObserveFlush(int(level), 0, err)
		return WrapTransportError("write_darray_multi", f.id, err)
	}
	if agreed == flush.NoFlush {
		return nil
	}

	return c.flushWMB(ctx, f, iodesc, target, agreed, flushToDisk)
}

func (f *File) varOrErrLocked(varid int) (*varState, error) {
	v, ok := f.vars[varid]
	if !ok {
		return nil, NewFileError("write_darray_multi", f.id, CodeBadArg, fmt.Sprintf("variable %d not defined on this file", varid))
	}
	return v, nil
}

// flushWMB moves w's buffered payloads to the I/O-side layout and
// dispatches them to the back-end, per spec §4.8 steps 4-10.
//
// The iobuf is packed contiguously at this rank's own LLen() per
// variable rather than at a uniform MaxIOBufLen() slot width: the
// swap-many exchange (internal/rearrange) already writes each
// variable's share at a v*LLen() offset, and the back-end can recover
// each variable's bounds from iodesc.LLen() plus its index, so a wider
// uniform slot buys nothing in this reference implementation.
func (c *Context) flushWMB(ctx context.Context, f *File, iodesc decomp.Descriptor, w *wmb.WMB, level flush.Level, flushToDisk bool) error {
	fileRef := interfaces.FileRef{ID: f.id}

	// spec §4.8 step 2: resolve the first variable's dimension count
	// through the back-end before dispatching.
	fndims, err := f.backend.InqVarNDims(ctx, fileRef, w.Vid[0])
	if err != nil {
		return NewFileError("flush", f.id, CodeTransport, err.Error())
	}

	iobufLen := int64(iodesc.LLen()) * int64(w.NumArrays) * int64(w.ElemSize)
	var iobuf []byte
	if iobufLen > 0 {
		addr, err := c.arena.Alloc(iobufLen)
		if err != nil {
			return NewFileError("flush", f.id, CodeOutOfMemory, err.Error())
		}
		iobuf = c.arena.Bytes(addr, iobufLen)
		defer c.arena.Free(addr)
	}

	// spec §4.8 step 5: BOX delivers a dense tile, so fill values must be
	// painted into the staging buffer before the exchange overwrites the
	// cells compute ranks actually cover; cells nobody sends to are left
	// at the fill value.
	if iodesc.NeedsFill() && iodesc.Rearranger() == decomp.BOX {
		prefillIOBuf(iobuf, iodesc, w)
	}

	src := w.Data(c.arena)
	if err := rearrange.Comp2IO(ctx, c.transport, iodesc, src, iobuf, w.NumArrays); err != nil {
		return WrapTransportError("flush", f.id, err)
	}
	c.observer.ObserveRearrange("comp2io", w.NumArrays, 0)

	var dispatchErr error
	if f.iotype.Parallel() {
		dispatchErr = f.backend.WriteDarrayMultiPar(ctx, fileRef, w.NumArrays, fndims, w.Vid, iodesc, interfaces.Data, w.Frame, iobuf)
	} else {
		dispatchErr = f.backend.WriteDarrayMultiSerial(ctx, fileRef, w.NumArrays, fndims, w.Vid, iodesc, interfaces.Data, w.Frame, iobuf)
	}
	if dispatchErr != nil {
		c.observer.ObserveWrite(w.IOID, uint64(len(iobuf)), 0, dispatchErr)
		return NewFileError("flush", f.id, CodeTransport, dispatchErr.Error())
	}
	c.observer.ObserveWrite(w.IOID, uint64(len(iobuf)), 0, nil)

	retain := false
	if bb, ok := f.backend.(interfaces.BufferedBackend); ok {
		retain = bb.RetainsIOBuf()
	}

	// spec §4.8 step 9: SUBSET never delivers holes to the staging buffer
	// at all, so the regions no compute rank contributed are painted with
	// fill in a separate pass straight to the back-end.
	if iodesc.Rearranger() == decomp.SUBSET && iodesc.NeedsFill() {
		if err := c.writeHoleGrid(ctx, f, iodesc, w, fileRef, fndims); err != nil {
			return err
		}
	}

	f.mu.Lock()
	w.Release(c.arena)
	f.unlinkWMB(w)
	f.pendingBytes = 0
	f.mu.Unlock()

	if flushToDisk || level == flush.DiskFlush {
		if err := f.backend.FlushOutputBuffer(ctx, fileRef, true, retain); err != nil {
			c.observer.ObserveFlush(int(level), 0, err)
			return NewFileError("flush", f.id, CodeTransport, err.Error())
		}
	}
	c.observer.ObserveFlush(int(level), 0, nil)
	return nil
}

// prefillIOBuf paints each variable's fill value across its whole
// iodesc.LLen() slot of iobuf, per spec §4.8 step 5. w.FillValue holds
// one elemSize-wide fill value per variable, in append order.
func prefillIOBuf(iobuf []byte, iodesc decomp.Descriptor, w *wmb.WMB) {
	es := w.ElemSize
	llen := iodesc.LLen()
	for v := 0; v < w.NumArrays; v++ {
		fv := w.FillValue[v*es : (v+1)*es]
		slot := iobuf[v*llen*es : (v+1)*llen*es]
		for e := 0; e < llen; e++ {
			copy(slot[e*es:(e+1)*es], fv)
		}
	}
}

// writeHoleGrid builds and dispatches the holegrid fill pass for a
// SUBSET decomposition (spec §4.8 step 9): I/O rank 0 covers
// MaxHoleGridSize elements, every other rank with holes covers its own
// HoleGridSize; ranks with no holes skip the dispatch entirely.
func (c *Context) writeHoleGrid(ctx context.Context, f *File, iodesc decomp.Descriptor, w *wmb.WMB, fileRef interfaces.FileRef, fndims int) error {
	holeLen := iodesc.HoleGridSize()
	if c.transport.Rank() == c.ioRootRank {
		holeLen = iodesc.MaxHoleGridSize()
	}
	if holeLen <= 0 {
		return nil
	}

	es := w.ElemSize
	fillBufLen := int64(holeLen) * int64(w.NumArrays) * int64(es)
	addr, err := c.arena.Alloc(fillBufLen)
	if err != nil {
		return NewFileError("flush", f.id, CodeOutOfMemory, err.Error())
	}
	fillBuf := c.arena.Bytes(addr, fillBufLen)
	defer c.arena.Free(addr)

	for v := 0; v < w.NumArrays; v++ {
		fv := w.FillValue[v*es : (v+1)*es]
		slot := fillBuf[v*holeLen*es : (v+1)*holeLen*es]
		for e := 0; e < holeLen; e++ {
			copy(slot[e*es:(e+1)*es], fv)
		}
	}

	var dispatchErr error
	if f.iotype.Parallel() {
		dispatchErr = f.backend.WriteDarrayMultiPar(ctx, fileRef, w.NumArrays, fndims, w.Vid, iodesc, interfaces.Fill, w.Frame, fillBuf)
	} else {
		dispatchErr = f.backend.WriteDarrayMultiSerial(ctx, fileRef, w.NumArrays, fndims, w.Vid, iodesc, interfaces.Fill, w.Frame, fillBuf)
	}
	if dispatchErr != nil {
		c.observer.ObserveWrite(w.IOID, uint64(len(fillBuf)), 0, dispatchErr)
		return NewFileError("flush", f.id, CodeTransport, dispatchErr.Error())
	}
	c.observer.ObserveWrite(w.IOID, uint64(len(fillBuf)), 0, nil)
	return nil
}
