// Package wmb implements the write multi-buffer (C5): a per-(ioid,
// recordvar) list of buffered variable payloads sharing a contiguous,
// arena-backed data region.
package wmb

import (
	"fmt"
	"math"

	"github.com/sfrias/ParallelIO/internal/pool"
)

// ElemKind identifies the wire/element type of a payload, used to pick
// a default fill value when the caller doesn't supply one.
type ElemKind int

const (
	I8 ElemKind = iota
	Char
	I16
	I32
	F32
	F64
	U8
	U16
	U32
	I64
	U64
)

// DefaultFillValue returns the standard default fill value for kind,
// encoded little-endian into a slice of elemSize bytes. An unrecognised
// kind is a BAD_TYPE condition at the caller (spec §4.6/§7): there is
// no default to fall back on.
func DefaultFillValue(kind ElemKind, elemSize int) ([]byte, error) {
	buf := make([]byte, elemSize)
	switch kind {
	case I8:
		putLEInt(buf, int64(int8(-127)))
	case Char:
		buf[0] = 0
	case I16:
		putLEInt(buf, int64(int16(-32767)))
	case I32:
		putLEInt(buf, int64(int32(-2147483647)))
	case F32:
		putLEFloat32(buf, 9.9692099683868690e+36)
	case F64:
		putLEFloat64(buf, 9.9692099683868690e+36)
	case U8:
		buf[0] = 255
	case U16:
		putLEUint(buf, uint64(uint16(65535)))
	case U32:
		putLEUint(buf, uint64(uint32(4294967295)))
	case I64:
		putLEInt(buf, int64(-9223372036854775806))
	case U64:
		putLEUint(buf, uint64(18446744073709551614))
	default:
		return nil, fmt.Errorf("wmb: element kind %d has no default fill value", kind)
	}
	return buf, nil
}

// WMB is one write multi-buffer: every payload appended to it shares
// the same decomposition (ioid) and recordvar-ness, and the same
// arraylen/elemSize.
type WMB struct {
	IOID      int
	RecordVar bool
	ArrayLen  int
	ElemSize  int
	NumArrays int

	Vid       []int
	Frame     []int  // len == NumArrays iff RecordVar
	FillValue []byte // len == NumArrays*ElemSize iff built with needsFill

	needsFill bool
	dataAddr  pool.Addr
	dataLen   int64

	Next *WMB
}

// New creates an empty WMB for the given (ioid, recordvar) key.
func New(ioid int, recordVar bool, arrayLen, elemSize int, needsFill bool) *WMB {
	return &WMB{
		IOID:      ioid,
		RecordVar: recordVar,
		ArrayLen:  arrayLen,
		ElemSize:  elemSize,
		needsFill: needsFill,
		dataAddr:  -1,
	}
}

// Append grows the WMB's data region by one payload and copies array
// into it, per spec §4.6's six ordered steps. fillValue is used only
// when the WMB was built with needsFill; pass nil to use the element's
// type default in that case (see DefaultFillValue).
func (w *WMB) Append(arena *pool.Arena, varid int, frame int, array []byte, fillValue []byte, kind ElemKind) error {
	if len(array) != w.ArrayLen*w.ElemSize {
		return fmt.Errorf("wmb: append payload size %d, want %d", len(array), w.ArrayLen*w.ElemSize)
	}

	newLen := int64(w.NumArrays+1) * int64(w.ArrayLen) * int64(w.ElemSize)
	newAddr, err := arena.Realloc(w.dataAddr, newLen)
	if err != nil {
		return fmt.Errorf("wmb: grow data region: %w", err)
	}
	w.dataAddr = newAddr
	w.dataLen = newLen

	tail := arena.Bytes(w.dataAddr, w.dataLen)
	copy(tail[int64(w.NumArrays)*int64(w.ArrayLen)*int64(w.ElemSize):], array)

	w.Vid = append(w.Vid, varid)
	if w.RecordVar {
		w.Frame = append(w.Frame, frame)
	}
	if w.needsFill {
		fv := fillValue
		if fv == nil {
			fv, err = DefaultFillValue(kind, w.ElemSize)
			if err != nil {
				return err
			}
		}
		if len(fv) != w.ElemSize {
			return fmt.Errorf("wmb: fill value size %d, want %d", len(fv), w.ElemSize)
		}
		w.FillValue = append(w.FillValue, fv...)
	}

	w.NumArrays++
	return nil
}

// Data returns the WMB's contiguous payload region.
func (w *WMB) Data(arena *pool.Arena) []byte {
	if w.dataAddr == -1 {
		return nil
	}
	return arena.Bytes(w.dataAddr, w.dataLen)
}

// Release returns the WMB's data region to the arena. Call after a
// successful flush, or on file close.
func (w *WMB) Release(arena *pool.Arena) {
	arena.Free(w.dataAddr)
	w.dataAddr = -1
	w.dataLen = 0
	w.NumArrays = 0
	w.Vid = nil
	w.Frame = nil
	w.FillValue = nil
}

func putLEInt(buf []byte, v int64) {
	for i := range buf {
		buf[i] = byte(v >> (8 * uint(i)))
	}
}

func putLEUint(buf []byte, v uint64) {
	for i := range buf {
		buf[i] = byte(v >> (8 * uint(i)))
	}
}

func putLEFloat32(buf []byte, v float32) {
	putLEUint(buf, uint64(math.Float32bits(v)))
}

func putLEFloat64(buf []byte, v float64) {
	putLEUint(buf, math.Float64bits(v))
}
