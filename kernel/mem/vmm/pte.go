package vmm

import "github.com/kernelforge/corekernel/kernel/mem/pmm"

// pageTableEntry is a single 32-bit page directory or page table entry, as
// consumed by the i386 MMU: bits 31:12 hold the physical frame number, bits
// 11:0 hold flags.
type pageTableEntry uint32

// PageTableEntryFlag enumerates the flag bits understood by the i386 paging
// structures.
type PageTableEntryFlag uint32

// Page table/directory entry flags.
const (
	FlagPresent      PageTableEntryFlag = 1 << 0
	FlagRW           PageTableEntryFlag = 1 << 1
	FlagUser         PageTableEntryFlag = 1 << 2
	FlagWriteThrough PageTableEntryFlag = 1 << 3
	FlagCacheDisable PageTableEntryFlag = 1 << 4
	FlagAccessed     PageTableEntryFlag = 1 << 5
	FlagDirty        PageTableEntryFlag = 1 << 6
	// FlagHugePage marks a PDE as mapping a 4MiB page directly (PSE) rather
	// than pointing at a page table. This kernel's own mappings never set
	// it, and Map, Unmap and Translate do not check it: they treat every
	// present PDE as pointing at a page table.
	FlagHugePage PageTableEntryFlag = 1 << 7
	FlagGlobal   PageTableEntryFlag = 1 << 8
	// FlagNoExecute has no i386 hardware meaning (NX is a PAE/long-mode
	// feature) but is kept as a no-op flag so code shared with the
	// goruntime bootstrap package, which requests it unconditionally,
	// compiles unchanged. SetFlags stores it as-is in bit 11, one of the
	// bits the MMU leaves to software, so it has no effect on translation.
	FlagNoExecute PageTableEntryFlag = 1 << 11
)

const (
	pteFrameMask  = 0xFFFFF000
	pteFlagsMask  = 0x00000FFF
	pteFrameShift = 12
)

// HasFlags returns true if all bits in flag are set.
func (pte pageTableEntry) HasFlags(flag PageTableEntryFlag) bool {
	return uint32(pte)&uint32(flag) == uint32(flag)
}

// HasAnyFlag returns true if at least one bit in flag is set.
func (pte pageTableEntry) HasAnyFlag(flag PageTableEntryFlag) bool {
	return uint32(pte)&uint32(flag) != 0
}

// SetFlags ORs flag into the entry.
func (pte *pageTableEntry) SetFlags(flag PageTableEntryFlag) {
	*pte |= pageTableEntry(flag)
}

// ClearFlags clears flag.
func (pte *pageTableEntry) ClearFlags(flag PageTableEntryFlag) {
	*pte &^= pageTableEntry(flag)
}

// Frame returns the physical frame this entry points at.
func (pte pageTableEntry) Frame() pmm.Frame {
	return pmm.Frame((uint32(pte) & pteFrameMask) >> pteFrameShift)
}

// SetFrame updates the frame bits, leaving the flag bits untouched.
func (pte *pageTableEntry) SetFrame(frame pmm.Frame) {
	*pte = (*pte &^ pageTableEntry(pteFrameMask)) | pageTableEntry(uint32(frame)<<pteFrameShift)
}
