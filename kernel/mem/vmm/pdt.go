package vmm

import (
	"unsafe"

	"github.com/kernelforge/corekernel/kernel/config"
	"github.com/kernelforge/corekernel/kernel/mem"
)

const (
	pdIndexShift = 22
	ptIndexShift = 12
	indexMask    = 0x3FF
)

func pdIndex(virtAddr uintptr) uintptr {
	return (virtAddr >> pdIndexShift) & indexMask
}

func ptIndex(virtAddr uintptr) uintptr {
	return (virtAddr >> ptIndexShift) & indexMask
}

// pdEntryAddr returns the address at which the page directory entry for
// virtAddr is reachable, exploiting the recursive self-mapping installed at
// config.RecursivePDEIndex.
func pdEntryAddr(virtAddr uintptr) uintptr {
	return config.PDEBase + pdIndex(virtAddr)*4
}

// ptEntryAddr returns the address at which the page table entry for
// virtAddr is reachable, exploiting the same recursive mapping: PT_BASE
// exposes every page table as a contiguous array of 1024 4K "pages", one per
// page directory slot.
func ptEntryAddr(virtAddr uintptr) uintptr {
	return config.PTBase + pdIndex(virtAddr)*uintptr(mem.PageSize) + ptIndex(virtAddr)*4
}

func pdEntryFor(virtAddr uintptr) *pageTableEntry {
	return (*pageTableEntry)(unsafe.Pointer(pdEntryAddr(virtAddr)))
}

func ptEntryFor(virtAddr uintptr) *pageTableEntry {
	return (*pageTableEntry)(unsafe.Pointer(ptEntryAddr(virtAddr)))
}

// ptWindowFor returns the virtual address at which the page table backing
// virtAddr's page directory entry is mapped as a flat 4K array of entries.
func ptWindowFor(virtAddr uintptr) uintptr {
	return config.PTBase + pdIndex(virtAddr)*uintptr(mem.PageSize)
}
