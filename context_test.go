package pio

import (
	"testing"

	"github.com/sfrias/ParallelIO/backend"
	"github.com/sfrias/ParallelIO/internal/config"
	"github.com/sfrias/ParallelIO/internal/decomp"
	"github.com/sfrias/ParallelIO/internal/telemetry"
	"github.com/sfrias/ParallelIO/internal/transport"
	"github.com/sfrias/ParallelIO/internal/wmb"
)

func newTestContext(t *testing.T) (*Context, *telemetry.CountingObserver) {
	t.Helper()
	ranks := transport.NewLocalWorld(1)
	obs := &telemetry.CountingObserver{}
	c := NewContext(ranks[0], config.Default(), WithObserver(obs))
	return c, obs
}

func TestOpenCloseFile(t *testing.T) {
	c, _ := newTestContext(t)
	be := backend.NewMemory()

	f, err := c.OpenFile(be, IOTypePnetcdf, false)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if f.id == 0 {
		t.Error("expected a nonzero file id")
	}

	f.DefineVar(1, false, wmb.I32, nil, false)
	c.CloseFile(f)

	if _, ok := c.files[f.id]; ok {
		t.Error("CloseFile should remove the file from the context")
	}
}

func TestOpenFileRejectsUnknownIOType(t *testing.T) {
	c, _ := newTestContext(t)
	if _, err := c.OpenFile(backend.NewMemory(), IOType(99), false); !IsCode(err, CodeBadIOType) {
		t.Errorf("expected CodeBadIOType, got %v", err)
	}
}

func TestResolveDecompUnknownID(t *testing.T) {
	c, _ := newTestContext(t)
	if _, err := c.resolveDecomp(DecompID(7)); !IsCode(err, CodeBadID) {
		t.Errorf("expected CodeBadID, got %v", err)
	}
}

func TestRegisterAndResolveDecomp(t *testing.T) {
	c, _ := newTestContext(t)
	d := decomp.BuildBox(1, 1, 8, 4, 0)
	c.RegisterDecomp(DecompID(1), d)

	got, err := c.resolveDecomp(DecompID(1))
	if err != nil {
		t.Fatalf("resolveDecomp: %v", err)
	}
	if got.NDof() != d.NDof() {
		t.Errorf("NDof = %d, want %d", got.NDof(), d.NDof())
	}
}

func TestSetBufferSizeLimitReturnsPrevious(t *testing.T) {
	c, _ := newTestContext(t)
	prev := c.SetBufferSizeLimit(1024)
	if prev != config.Default().BufferSizeLimit {
		t.Errorf("previous limit = %d, want default %d", prev, config.Default().BufferSizeLimit)
	}
	if c.bufferSizeLimit != 1024 {
		t.Errorf("bufferSizeLimit = %d, want 1024", c.bufferSizeLimit)
	}
}

func TestIOTypeParallel(t *testing.T) {
	cases := map[IOType]bool{
		IOTypePnetcdf:         true,
		IOTypeNetCDF4Parallel: true,
		IOTypeNetCDFClassic:   false,
		IOTypeNetCDF4Serial:   false,
	}
	for iotype, want := range cases {
		if got := iotype.Parallel(); got != want {
			t.Errorf("%v.Parallel() = %v, want %v", iotype, got, want)
		}
	}
}
