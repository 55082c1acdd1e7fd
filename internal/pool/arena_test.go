package pool

import "testing"

func TestAllocAndFreeTracksStats(t *testing.T) {
	a := New(64)
	addr, err := a.Alloc(16)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	stats := a.Stats()
	if stats.CurAlloc != 16 {
		t.Errorf("CurAlloc = %d, want 16", stats.CurAlloc)
	}
	if stats.NGet != 1 {
		t.Errorf("NGet = %d, want 1", stats.NGet)
	}

	a.Free(addr)
	stats = a.Stats()
	if stats.CurAlloc != 0 {
		t.Errorf("CurAlloc after free = %d, want 0", stats.CurAlloc)
	}
	if stats.NRel != 1 {
		t.Errorf("NRel = %d, want 1", stats.NRel)
	}
	if stats.TotFree != 64 {
		t.Errorf("TotFree after free = %d, want 64 (fully coalesced)", stats.TotFree)
	}
}

func TestFreeingAdjacentBlocksCoalesces(t *testing.T) {
	a := New(48)
	a1, _ := a.Alloc(16)
	a2, _ := a.Alloc(16)
	a3, _ := a.Alloc(16)

	a.Free(a2)
	if got := a.Stats().MaxFree; got != 16 {
		t.Errorf("MaxFree after freeing middle block = %d, want 16", got)
	}

	a.Free(a1)
	if got := a.Stats().MaxFree; got != 32 {
		t.Errorf("MaxFree after freeing neighbor = %d, want 32 (coalesced)", got)
	}

	a.Free(a3)
	if got := a.Stats().MaxFree; got != 48 {
		t.Errorf("MaxFree after freeing last block = %d, want 48 (fully coalesced)", got)
	}
}

func TestAllocGrowsWhenNoBlockFits(t *testing.T) {
	a := New(8)
	addr, err := a.Alloc(32)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if a.Capacity() < 32 {
		t.Errorf("Capacity = %d, want >= 32", a.Capacity())
	}
	buf := a.Bytes(addr, 32)
	if len(buf) != 32 {
		t.Errorf("Bytes length = %d, want 32", len(buf))
	}
}

func TestReallocShrinkReleasesTail(t *testing.T) {
	a := New(32)
	addr, _ := a.Alloc(16)
	copy(a.Bytes(addr, 16), []byte("0123456789abcdef"))

	newAddr, err := a.Realloc(addr, 8)
	if err != nil {
		t.Fatalf("Realloc: %v", err)
	}
	if newAddr != addr {
		t.Errorf("shrink-in-place should keep the same address, got %d want %d", newAddr, addr)
	}
	if got := a.Stats().CurAlloc; got != 8 {
		t.Errorf("CurAlloc after shrink = %d, want 8", got)
	}
	if string(a.Bytes(newAddr, 8)) != "01234567" {
		t.Errorf("shrink dropped the preserved prefix: %q", a.Bytes(newAddr, 8))
	}
}

func TestReallocGrowExtendsInPlaceWhenPossible(t *testing.T) {
	a := New(32)
	addr, _ := a.Alloc(8)
	copy(a.Bytes(addr, 8), []byte("abcdefgh"))

	newAddr, err := a.Realloc(addr, 16)
	if err != nil {
		t.Fatalf("Realloc: %v", err)
	}
	if newAddr != addr {
		t.Errorf("extend-in-place should keep the same address, got %d want %d", newAddr, addr)
	}
	if string(a.Bytes(newAddr, 8)) != "abcdefgh" {
		t.Errorf("extend dropped the preserved prefix: %q", a.Bytes(newAddr, 8))
	}
}

func TestReallocGrowMovesWhenNoRoomToExtend(t *testing.T) {
	a := New(16)
	first, _ := a.Alloc(8)
	copy(a.Bytes(first, 8), []byte("abcdefgh"))
	second, _ := a.Alloc(8)

	newAddr, err := a.Realloc(first, 16)
	if err != nil {
		t.Fatalf("Realloc: %v", err)
	}
	if newAddr == first {
		t.Error("expected the allocation to move since the neighbor block is still live")
	}
	if string(a.Bytes(newAddr, 8)) != "abcdefgh" {
		t.Errorf("move dropped the preserved prefix: %q", a.Bytes(newAddr, 8))
	}
	a.Free(second)
}

func TestReallocOfNullAddrAllocates(t *testing.T) {
	a := New(16)
	addr, err := a.Realloc(nullAddr, 8)
	if err != nil {
		t.Fatalf("Realloc: %v", err)
	}
	if addr == nullAddr {
		t.Error("Realloc of the null address should allocate fresh space")
	}
}

func TestFreeOfNullAddrIsNoOp(t *testing.T) {
	a := New(16)
	a.Free(nullAddr)
	if got := a.Stats().NRel; got != 0 {
		t.Errorf("NRel = %d, want 0", got)
	}
}

func TestAllocRejectsNonPositiveSize(t *testing.T) {
	a := New(16)
	if _, err := a.Alloc(0); err == nil {
		t.Error("expected an error allocating zero bytes")
	}
	if _, err := a.Alloc(-1); err == nil {
		t.Error("expected an error allocating negative bytes")
	}
}

func TestReallocOfUnknownAddressErrors(t *testing.T) {
	a := New(16)
	if _, err := a.Realloc(Addr(99), 8); err == nil {
		t.Error("expected an error reallocating an address never returned by Alloc")
	}
}
