package backend

import (
	"context"
	"testing"

	"github.com/sfrias/ParallelIO/internal/decomp"
	"github.com/sfrias/ParallelIO/internal/interfaces"
)

func testDescriptor() *decomp.Static {
	return &decomp.Static{
		RearrangerKind: decomp.BOX,
		ElemSizeVal:    4,
		NDofVal:        4,
		LLenVal:        4,
	}
}

func TestMemoryWriteThenRead(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	iodesc := testDescriptor()
	file := interfaces.FileRef{ID: 1}

	payload := []byte{1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0, 4, 0, 0, 0}
	if err := m.WriteDarrayMultiPar(ctx, file, 1, 1, []int{7}, iodesc, interfaces.Data, nil, payload); err != nil {
		t.Fatalf("WriteDarrayMultiPar: %v", err)
	}

	out := make([]byte, 16)
	if err := m.ReadDarrayNC(ctx, file, iodesc, 7, out); err != nil {
		t.Fatalf("ReadDarrayNC: %v", err)
	}
	for i := range payload {
		if out[i] != payload[i] {
			t.Fatalf("byte %d = %d, want %d", i, out[i], payload[i])
		}
	}
}

func TestMemoryReadUnwrittenVariableIsZero(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	iodesc := testDescriptor()
	file := interfaces.FileRef{ID: 1}

	out := make([]byte, 16)
	for i := range out {
		out[i] = 0xFF
	}
	if err := m.ReadDarrayNCSerial(ctx, file, iodesc, 99, out); err != nil {
		t.Fatalf("ReadDarrayNCSerial: %v", err)
	}
	for i, b := range out {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0", i, b)
		}
	}
}

func TestMemoryFilesAreIsolated(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	iodesc := testDescriptor()

	a := interfaces.FileRef{ID: 1}
	b := interfaces.FileRef{ID: 2}
	payloadA := []byte{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}

	if err := m.WriteDarrayMultiPar(ctx, a, 1, 1, []int{3}, iodesc, interfaces.Data, nil, payloadA); err != nil {
		t.Fatalf("write: %v", err)
	}

	out := make([]byte, 16)
	if err := m.ReadDarrayNC(ctx, b, iodesc, 3, out); err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, v := range out {
		if v != 0 {
			t.Fatalf("file b should not see file a's data, got %v", out)
		}
	}
}

func TestMemoryWriteRejectsShortPayload(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	iodesc := testDescriptor()
	file := interfaces.FileRef{ID: 1}

	if err := m.WriteDarrayMultiPar(ctx, file, 1, 1, []int{1, 2}, iodesc, interfaces.Data, nil, make([]byte, 16)); err == nil {
		t.Error("expected error when payload is too short for two variables")
	}
}

func TestMemoryFlushOutputBufferRecordsState(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	file := interfaces.FileRef{ID: 5}

	if m.Flushed(file.ID) {
		t.Fatal("new file should not be flushed")
	}
	if err := m.FlushOutputBuffer(ctx, file, true, false); err != nil {
		t.Fatalf("FlushOutputBuffer: %v", err)
	}
	if !m.Flushed(file.ID) {
		t.Fatal("expected file to be marked flushed")
	}
}

func TestMemoryInqVarNDims(t *testing.T) {
	m := NewMemory()
	n, err := m.InqVarNDims(context.Background(), interfaces.FileRef{ID: 1}, 0)
	if err != nil {
		t.Fatalf("InqVarNDims: %v", err)
	}
	if n != 1 {
		t.Errorf("InqVarNDims = %d, want 1", n)
	}
}

func TestMemoryRetainsIOBuf(t *testing.T) {
	m := NewMemory()
	if m.RetainsIOBuf() {
		t.Error("reference in-memory backend should not retain iobuf")
	}
}

var (
	_ interfaces.Backend         = (*Memory)(nil)
	_ interfaces.BufferedBackend = (*Memory)(nil)
)
