// Package pmm implements the kernel's physical frame allocator: a flat
// bitmap covering every 4K frame addressable by a 32-bit physical address
// (the entire 4GiB space, regardless of how much RAM is actually wired up on
// the board), carved up according to the memory map the bootloader reported.
package pmm

import "github.com/kernelforge/corekernel/kernel/mem"

// Frame describes a physical memory page index. Unlike an amd64 allocator,
// frames here carry no page-order bits: this allocator only ever deals in
// single PageSize frames, matching the flat single-level design.
type Frame uint32

// InvalidFrame is returned by AllocFrame when no frame could be reserved.
const InvalidFrame = Frame(0xFFFFFFFF)

// Valid returns true if this is not the sentinel InvalidFrame value.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical memory address this frame starts at.
func (f Frame) Address() uintptr {
	return uintptr(f) << mem.PageShift
}

// FrameFromAddress returns the Frame that contains the given physical
// address, rounding down to the enclosing page boundary.
func FrameFromAddress(physAddr uintptr) Frame {
	return Frame(physAddr >> mem.PageShift)
}
