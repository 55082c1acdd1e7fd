package pio

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/sfrias/ParallelIO/internal/wmb"
)

// encodeArray converts a caller-supplied typed slice into the
// little-endian wire bytes the WMB and transport layers move, and
// identifies its ElemKind for default-fill lookup (spec §4.6). This
// plays the role the original's per-MPI-datatype dispatch does for a
// void* buffer plus an MPI_Datatype tag; Go gives us a closed set of
// concrete slice types instead.
func encodeArray(array any) (data []byte, kind wmb.ElemKind, elemSize int, err error) {
	switch a := array.(type) {
	case []int8:
		return encodeInts(len(a), 1, func(i int) int64 { return int64(a[i]) }), wmb.I8, 1, nil
	case []byte:
		return append([]byte(nil), a...), wmb.Char, 1, nil
	case []int16:
		return encodeInts(len(a), 2, func(i int) int64 { return int64(a[i]) }), wmb.I16, 2, nil
	case []uint16:
		return encodeUints(len(a), 2, func(i int) uint64 { return uint64(a[i]) }), wmb.U16, 2, nil
	case []int32:
		return encodeInts(len(a), 4, func(i int) int64 { return int64(a[i]) }), wmb.I32, 4, nil
	case []uint32:
		return encodeUints(len(a), 4, func(i int) uint64 { return uint64(a[i]) }), wmb.U32, 4, nil
	case []float32:
		return encodeUints(len(a), 4, func(i int) uint64 { return uint64(math.Float32bits(a[i])) }), wmb.F32, 4, nil
	case []float64:
		return encodeUints(len(a), 8, func(i int) uint64 { return math.Float64bits(a[i]) }), wmb.F64, 8, nil
	case []int64:
		return encodeInts(len(a), 8, func(i int) int64 { return a[i] }), wmb.I64, 8, nil
	case []uint64:
		return encodeUints(len(a), 8, func(i int) uint64 { return a[i] }), wmb.U64, 8, nil
	default:
		return nil, 0, 0, fmt.Errorf("pio: unsupported array element type %T", array)
	}
}

// decodeArray is the inverse of encodeArray: it fills a caller-
// supplied typed slice (of the right length) from little-endian wire
// bytes, for ReadDarray's out parameter.
func decodeArray(data []byte, out any) error {
	switch o := out.(type) {
	case []int8:
		for i := range o {
			o[i] = int8(data[i])
		}
	case []byte:
		copy(o, data)
	case []int16:
		for i := range o {
			o[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
		}
	case []uint16:
		for i := range o {
			o[i] = binary.LittleEndian.Uint16(data[i*2:])
		}
	case []int32:
		for i := range o {
			o[i] = int32(binary.LittleEndian.Uint32(data[i*4:]))
		}
	case []uint32:
		for i := range o {
			o[i] = binary.LittleEndian.Uint32(data[i*4:])
		}
	case []float32:
		for i := range o {
			o[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
	case []float64:
		for i := range o {
			o[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		}
	case []int64:
		for i := range o {
			o[i] = int64(binary.LittleEndian.Uint64(data[i*8:]))
		}
	case []uint64:
		for i := range o {
			o[i] = binary.LittleEndian.Uint64(data[i*8:])
		}
	default:
		return fmt.Errorf("pio: unsupported array element type %T", out)
	}
	return nil
}

// arrayLen returns the element count of a supported typed slice,
// without knowing its concrete type ahead of time.
func arrayLen(array any) (int, error) {
	switch a := array.(type) {
	case []int8:
		return len(a), nil
	case []byte:
		return len(a), nil
	case []int16:
		return len(a), nil
	case []uint16:
		return len(a), nil
	case []int32:
		return len(a), nil
	case []uint32:
		return len(a), nil
	case []float32:
		return len(a), nil
	case []float64:
		return len(a), nil
	case []int64:
		return len(a), nil
	case []uint64:
		return len(a), nil
	default:
		return 0, fmt.Errorf("pio: unsupported array element type %T", array)
	}
}

func encodeInts(n, size int, at func(int) int64) []byte {
	buf := make([]byte, n*size)
	for i := 0; i < n; i++ {
		putLE(buf[i*size:(i+1)*size], uint64(at(i)))
	}
	return buf
}

func encodeUints(n, size int, at func(int) uint64) []byte {
	buf := make([]byte, n*size)
	for i := 0; i < n; i++ {
		putLE(buf[i*size:(i+1)*size], at(i))
	}
	return buf
}

func putLE(buf []byte, v uint64) {
	for i := range buf {
		buf[i] = byte(v >> (8 * uint(i)))
	}
}
