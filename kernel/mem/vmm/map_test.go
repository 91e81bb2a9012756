package vmm

import (
	"testing"

	"github.com/kernelforge/corekernel/kernel"
	"github.com/kernelforge/corekernel/kernel/mem/pmm"
)

// TestPageTableEntryLifecycle exercises the bit-level contract Map/Unmap
// build on: a present entry carries both a frame and the requested flags,
// and clearing FlagPresent is enough to make it look unmapped again.
func TestPageTableEntryLifecycle(t *testing.T) {
	var pte pageTableEntry

	if pte.HasFlags(FlagPresent) {
		t.Fatal("expected a zero-value entry to start absent")
	}

	pte.SetFrame(pmm.Frame(42))
	pte.SetFlags(FlagPresent | FlagRW)

	if !pte.HasFlags(FlagPresent | FlagRW) {
		t.Fatal("expected entry to carry the flags it was just given")
	}
	if got := pte.Frame(); got != pmm.Frame(42) {
		t.Fatalf("expected frame 42, got %v", got)
	}

	pte.ClearFlags(FlagPresent)
	if pte.HasFlags(FlagPresent) {
		t.Fatal("expected FlagPresent to be cleared")
	}
	if got := pte.Frame(); got != pmm.Frame(42) {
		t.Fatalf("expected ClearFlags to leave the frame bits untouched, got %v", got)
	}
}

func TestFrameAllocatorIsConsultedOnce(t *testing.T) {
	origAlloc := frameAllocator
	t.Cleanup(func() { frameAllocator = origAlloc })

	allocCount := 0
	frameAllocator = func() (pmm.Frame, *kernel.Error) {
		allocCount++
		return pmm.Frame(7), nil
	}

	var pde pageTableEntry
	if pde.HasFlags(FlagPresent) {
		t.Fatal("expected PDE to start absent")
	}

	frame, err := frameAllocator()
	if err != nil {
		t.Fatalf("frameAllocator failed: %v", err)
	}
	pde.SetFrame(frame)
	pde.SetFlags(FlagPresent | FlagRW)

	if allocCount != 1 {
		t.Fatalf("expected exactly 1 frame allocation, got %d", allocCount)
	}
}

func TestUnmapRejectsMissingMapping(t *testing.T) {
	origPDEFor := pdEntryForFn
	t.Cleanup(func() { pdEntryForFn = origPDEFor })

	var absentPDE pageTableEntry
	pdEntryForFn = func(uintptr) *pageTableEntry { return &absentPDE }

	if err := Unmap(PageFromAddress(0xDEAD0000)); err != ErrInvalidMapping {
		t.Fatalf("expected ErrInvalidMapping for an unmapped page, got %v", err)
	}
}

func TestUnmapClearsPresentBit(t *testing.T) {
	origPDEFor, origPTEFor, origFlush := pdEntryForFn, ptEntryForFn, flushTLBEntryFn
	t.Cleanup(func() {
		pdEntryForFn, ptEntryForFn, flushTLBEntryFn = origPDEFor, origPTEFor, origFlush
	})

	var pde, pte pageTableEntry
	pde.SetFlags(FlagPresent | FlagRW)
	pte.SetFlags(FlagPresent | FlagRW)

	pdEntryForFn = func(uintptr) *pageTableEntry { return &pde }
	ptEntryForFn = func(uintptr) *pageTableEntry { return &pte }
	flushTLBEntryFn = func(uintptr) {}

	if err := Unmap(PageFromAddress(0x1000)); err != nil {
		t.Fatalf("Unmap failed: %v", err)
	}
	if pte.HasFlags(FlagPresent) {
		t.Fatal("expected Unmap to clear FlagPresent on the PTE")
	}
}

func TestMapPagesAndUnmapPages(t *testing.T) {
	origPDEFor, origPTEFor, origFlush, origAlloc := pdEntryForFn, ptEntryForFn, flushTLBEntryFn, frameAllocator
	t.Cleanup(func() {
		pdEntryForFn, ptEntryForFn, flushTLBEntryFn, frameAllocator = origPDEFor, origPTEFor, origFlush, origAlloc
	})

	pdes := map[uintptr]*pageTableEntry{}
	ptes := map[uintptr]*pageTableEntry{}
	entryFor := func(store map[uintptr]*pageTableEntry, addr uintptr) *pageTableEntry {
		if e, ok := store[addr]; ok {
			return e
		}
		e := new(pageTableEntry)
		e.SetFlags(FlagPresent | FlagRW)
		store[addr] = e
		return e
	}

	pdEntryForFn = func(addr uintptr) *pageTableEntry { return entryFor(pdes, addr&^0x3FFFFF) }
	ptEntryForFn = func(addr uintptr) *pageTableEntry { return entryFor(ptes, addr&^0xFFF) }
	flushTLBEntryFn = func(uintptr) {}
	frameAllocator = func() (pmm.Frame, *kernel.Error) { return pmm.Frame(99), nil }

	const n = 4
	base := PageFromAddress(0x200000)
	if err := MapPages(base, pmm.Frame(10), n, FlagRW); err != nil {
		t.Fatalf("MapPages failed: %v", err)
	}
	for i := 0; i < n; i++ {
		pte := ptes[base.Address()+uintptr(i)*0x1000]
		if !pte.HasFlags(FlagPresent) {
			t.Fatalf("page %d: expected present", i)
		}
		if got, want := pte.Frame(), pmm.Frame(10+i); got != want {
			t.Fatalf("page %d: expected frame %v, got %v", i, want, got)
		}
	}

	if err := UnmapPages(base, n); err != nil {
		t.Fatalf("UnmapPages failed: %v", err)
	}
	for i := 0; i < n; i++ {
		pte := ptes[base.Address()+uintptr(i)*0x1000]
		if pte.HasFlags(FlagPresent) {
			t.Fatalf("page %d: expected not present after UnmapPages", i)
		}
	}
}

func TestEarlyReserveRegionBumpsMonotonically(t *testing.T) {
	origNext := nextEarlyReserve
	t.Cleanup(func() { nextEarlyReserve = origNext })
	nextEarlyReserve = earlyReserveBase

	first, err := EarlyReserveRegion(4096)
	if err != nil {
		t.Fatalf("EarlyReserveRegion failed: %v", err)
	}
	second, err := EarlyReserveRegion(4096)
	if err != nil {
		t.Fatalf("EarlyReserveRegion failed: %v", err)
	}
	if second <= first {
		t.Fatalf("expected monotonically increasing regions, got %x then %x", first, second)
	}
}

func TestEarlyReserveRegionExhaustion(t *testing.T) {
	origNext := nextEarlyReserve
	t.Cleanup(func() { nextEarlyReserve = origNext })
	nextEarlyReserve = earlyReserveLimit

	if _, err := EarlyReserveRegion(4096); err == nil {
		t.Fatal("expected EarlyReserveRegion to fail once the range is exhausted")
	}
}
