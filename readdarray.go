package pio

import (
	"context"
	"fmt"

	"github.com/sfrias/ParallelIO/internal/interfaces"
	"github.com/sfrias/ParallelIO/internal/rearrange"
)

// ReadDarray stages ioid's decomposition worth of a variable's data
// from the back-end and rearranges it into the caller's compute-side
// layout (spec §4.9): the inverse of WriteDarray.
func (c *Context) ReadDarray(ctx context.Context, f *File, varid int, ioid DecompID, arraylen int, out any) error {
	iodesc, err := c.resolveDecomp(ioid)
	if err != nil {
		return err
	}

	ndof := iodesc.NDof()
	if arraylen < ndof {
		return NewDecompError("read_darray", f.id, int(ioid), CodeBadArg,
			fmt.Sprintf("destination length %d is less than decomposition NDof %d", arraylen, ndof))
	}

	outLen, lerr := arrayLen(out)
	if lerr != nil {
		return NewFileError("read_darray", f.id, CodeBadType, lerr.Error())
	}
	if outLen < ndof {
		return NewDecompError("read_darray", f.id, int(ioid), CodeBadArg,
			fmt.Sprintf("destination slice has %d elements, want at least %d", outLen, ndof))
	}

	elemSize := iodesc.ElemSize()
	llen := iodesc.LLen()

	// iobuf holds the I/O-side layout (sized by LLen, the length IO2Comp
	// expects as its source); dst below holds the compute-side layout
	// (sized by NDof), matching internal/rearrange's reversed exchange.
	iobufLen := int64(llen) * int64(elemSize)
	var iobuf []byte
	if iobufLen > 0 {
		addr, aerr := c.arena.Alloc(iobufLen)
		if aerr != nil {
			return NewFileError("read_darray", f.id, CodeOutOfMemory, aerr.Error())
		}
		iobuf = c.arena.Bytes(addr, iobufLen)
		defer c.arena.Free(addr)
	}

	fileRef := interfaces.FileRef{ID: f.id}
	var readErr error
	if f.iotype.Parallel() {
		readErr = f.backend.ReadDarrayNC(ctx, fileRef, iodesc, varid, iobuf)
	} else {
		readErr = f.backend.ReadDarrayNCSerial(ctx, fileRef, iodesc, varid, iobuf)
	}
	if readErr != nil {
		c.observer.ObserveRead(int(ioid), 0, 0, readErr)
		return NewFileError("read_darray", f.id, CodeTransport, readErr.Error())
	}

	dst := make([]byte, ndof*elemSize)
	if err := rearrange.IO2Comp(ctx, c.transport, iodesc, iobuf, dst, 1); err != nil {
		c.observer.ObserveRearrange("io2comp", 1, 0)
		return WrapTransportError("read_darray", f.id, err)
	}
	c.observer.ObserveRearrange("io2comp", 1, 0)

	if err := decodeArray(dst[:ndof*elemSize], out); err != nil {
		return NewFileError("read_darray", f.id, CodeBadType, err.Error())
	}
	c.observer.ObserveRead(int(ioid), uint64(len(dst)), 0, nil)
	return nil
}
