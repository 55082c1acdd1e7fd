package flush

import (
	"context"
	"sync"
	"testing"

	"github.com/sfrias/ParallelIO/internal/decomp"
	"github.com/sfrias/ParallelIO/internal/pool"
	"github.com/sfrias/ParallelIO/internal/transport"
)

func looseDescriptor() *decomp.Static {
	return &decomp.Static{MaxRegionsVal: 1, MaxFillRegionsVal: 0}
}

func TestDecidePoolPressureForcesDiskFlush(t *testing.T) {
	stats := pool.Stats{CurAlloc: 100, MaxFree: 1000}
	level := Decide(stats, looseDescriptor(), 0, 4, 8, 100, 1000)
	if level != DiskFlush {
		t.Errorf("level = %v, want DiskFlush", level)
	}
}

func TestDecideLowFragmentationForcesIOFlush(t *testing.T) {
	// req = (1+0)*4*8 = 32; MaxFree=32 <= 1.1*32 triggers IO_FLUSH.
	stats := pool.Stats{CurAlloc: 0, MaxFree: 32}
	level := Decide(stats, looseDescriptor(), 0, 4, 8, 1000, 1000)
	if level != IOFlush {
		t.Errorf("level = %v, want IOFlush", level)
	}
}

func TestDecideAmpleRoomIsNoFlush(t *testing.T) {
	stats := pool.Stats{CurAlloc: 0, MaxFree: 10000}
	level := Decide(stats, looseDescriptor(), 0, 4, 8, 1000, 1000)
	if level != NoFlush {
		t.Errorf("level = %v, want NoFlush", level)
	}
}

func TestDecideRegionCountPromotesButNeverDemotes(t *testing.T) {
	d := &decomp.Static{MaxRegionsVal: 100, MaxFillRegionsVal: 0}
	stats := pool.Stats{CurAlloc: 0, MaxFree: 10000}
	level := Decide(stats, d, 5, 4, 8, 1000, 10)
	if level != DiskFlush {
		t.Errorf("level = %v, want DiskFlush (region count exceeds maxCachedIORegions)", level)
	}
}

func TestLevelString(t *testing.T) {
	cases := map[Level]string{NoFlush: "NO_FLUSH", IOFlush: "IO_FLUSH", DiskFlush: "DISK_FLUSH", Level(99): "unknown"}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Errorf("Level(%d).String() = %q, want %q", level, got, want)
		}
	}
}

func TestAgreeTakesTheMaximumAcrossRanks(t *testing.T) {
	ranks := transport.NewLocalWorld(3)
	locals := []Level{NoFlush, DiskFlush, IOFlush}

	var wg sync.WaitGroup
	results := make([]Level, 3)
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = Agree(context.Background(), ranks[i], locals[i])
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Agree on rank %d: %v", i, err)
		}
	}
	for i, got := range results {
		if got != DiskFlush {
			t.Errorf("rank %d agreed level = %v, want DiskFlush", i, got)
		}
	}
}
