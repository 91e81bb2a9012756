package pmm

import (
	"testing"
	"unsafe"

	"github.com/kernelforge/corekernel/kernel/mem"
	"github.com/kernelforge/corekernel/kernel/multiboot"
)

// buildMemoryMap encodes a minimal Multiboot1 memory map with a single
// available region and points the multiboot package at it.
func buildMemoryMap(t *testing.T, physStart, length uint64) {
	t.Helper()

	type entry struct {
		size    uint32
		addr    uint64
		length  uint64
		regType uint32
	}

	buf := make([]entry, 1)
	buf[0] = entry{size: 20, addr: physStart, length: length, regType: uint32(multiboot.MemAvailable)}

	type mbInfo struct {
		flags      uint32
		memLower   uint32
		memUpper   uint32
		bootDevice uint32
		cmdline    uint32
		modsCount  uint32
		modsAddr   uint32
		syms       [4]uint32
		mmapLength uint32
		mmapAddr   uint32
	}

	hdr := &mbInfo{
		flags:      1 << 6,
		mmapLength: uint32(len(buf)) * 24,
		mmapAddr:   uint32(uintptr(unsafe.Pointer(&buf[0]))),
	}

	multiboot.SetInfoPtr(uintptr(unsafe.Pointer(hdr)))
	t.Cleanup(func() { buf[0] = buf[0] }) // keep buf alive until cleanup
}

func TestAllocFrameExhaustion(t *testing.T) {
	const regionFrames = 4
	buildMemoryMap(t, 0x400000, regionFrames*uint64(mem.PageSize))

	if err := Init(0x100000, 0x100000); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	seen := make(map[Frame]bool)
	for i := 0; i < regionFrames; i++ {
		f, err := AllocFrame()
		if err != nil {
			t.Fatalf("AllocFrame #%d failed: %v", i, err)
		}
		if seen[f] {
			t.Fatalf("AllocFrame returned duplicate frame %v", f)
		}
		seen[f] = true
	}

	if _, err := AllocFrame(); err == nil {
		t.Fatal("expected AllocFrame to fail once the region is exhausted")
	}
}

func TestFreeFrameRoundTrip(t *testing.T) {
	buildMemoryMap(t, 0x400000, 4*uint64(mem.PageSize))

	if err := Init(0x100000, 0x100000); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	f, err := AllocFrame()
	if err != nil {
		t.Fatalf("AllocFrame failed: %v", err)
	}

	if err := FreeFrame(f); err != nil {
		t.Fatalf("FreeFrame failed: %v", err)
	}

	if err := FreeFrame(f); err == nil {
		t.Fatal("expected double free to be rejected")
	}
}

func TestAllocFramesContiguous(t *testing.T) {
	const regionFrames = 8
	buildMemoryMap(t, 0x400000, regionFrames*uint64(mem.PageSize))

	if err := Init(0x100000, 0x100000); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	first, err := AllocFrame()
	if err != nil {
		t.Fatalf("AllocFrame failed: %v", err)
	}

	run, err := AllocFrames(4)
	if err != nil {
		t.Fatalf("AllocFrames failed: %v", err)
	}
	if run != first+1 {
		t.Fatalf("expected contiguous run to start at %v, got %v", first+1, run)
	}
	for i := Frame(0); i < 4; i++ {
		if !isReserved(run + i) {
			t.Fatalf("frame %v in the run was not marked reserved", run+i)
		}
	}

	if err := FreeFrames(run, 4); err != nil {
		t.Fatalf("FreeFrames failed: %v", err)
	}
	for i := Frame(0); i < 4; i++ {
		if isReserved(run + i) {
			t.Fatalf("frame %v still reserved after FreeFrames", run+i)
		}
	}

	if err := FreeFrames(run, 4); err == nil {
		t.Fatal("expected double free of a run to be rejected")
	}
}

func TestAllocFramesExhaustion(t *testing.T) {
	const regionFrames = 4
	buildMemoryMap(t, 0x400000, regionFrames*uint64(mem.PageSize))

	if err := Init(0x100000, 0x100000); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if _, err := AllocFrames(regionFrames + 1); err == nil {
		t.Fatal("expected AllocFrames to fail when no run of the requested length exists")
	}
}
