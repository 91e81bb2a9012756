package vmm

import (
	"github.com/kernelforge/corekernel/kernel"
	"github.com/kernelforge/corekernel/kernel/mem"
	"github.com/kernelforge/corekernel/kernel/mem/pmm"
)

var (
	// flushTLBEntryFn is used by tests to override calls to flushTLBEntry,
	// which will fault if called outside ring 0.
	flushTLBEntryFn = flushTLBEntry

	// pdEntryForFn/ptEntryForFn are used by tests to redirect page table
	// walks away from the recursive-mapping addresses, which only resolve
	// to real memory when paging is actually active.
	pdEntryForFn = pdEntryFor
	ptEntryForFn = ptEntryFor

	// ErrInvalidMapping is returned when an operation is attempted against
	// a virtual page that has no present mapping.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "no mapping for virtual address"}
)

// FrameAllocatorFn is a function that can allocate physical frames.
type FrameAllocatorFn func() (pmm.Frame, *kernel.Error)

// Map establishes a mapping between a virtual page and a physical memory
// frame in the active page directory. If the page directory entry covering
// page is not yet present, Map allocates a fresh frame for the page table
// via the registered frame allocator and clears it through the recursive
// mapping window before installing the requested leaf entry.
func Map(page Page, frame pmm.Frame, flags PageTableEntryFlag) *kernel.Error {
	virtAddr := page.Address()
	pde := pdEntryForFn(virtAddr)

	if !pde.HasFlags(FlagPresent) {
		ptFrame, err := frameAllocator()
		if err != nil {
			return err
		}

		*pde = 0
		pde.SetFrame(ptFrame)
		pde.SetFlags(FlagPresent | FlagRW)

		// The new page table becomes reachable through PT_BASE the moment
		// the PDE above is written; flush that window's TLB entry before
		// touching it so we don't clear a stale table.
		window := ptWindowFor(virtAddr)
		flushTLBEntryFn(window)
		mem.Memset(window, 0, mem.PageSize)
	}

	pte := ptEntryForFn(virtAddr)
	*pte = 0
	pte.SetFrame(frame)
	pte.SetFlags(FlagPresent | flags)
	flushTLBEntryFn(virtAddr)

	return nil
}

// MapPages maps n consecutive pages starting at page to n consecutive
// frames starting at frame, applying flags to every leaf entry. It stops
// and returns the first error encountered, leaving whatever pages were
// already mapped in place.
func MapPages(page Page, frame pmm.Frame, n uint32, flags PageTableEntryFlag) *kernel.Error {
	for i := uint32(0); i < n; i++ {
		if err := Map(page+Page(i), frame+pmm.Frame(i), flags); err != nil {
			return err
		}
	}
	return nil
}

// MapTemporary establishes a temporary RW mapping of a physical frame at a
// fixed scratch virtual address, overwriting whatever was mapped there
// before. Used to reach into a physical frame (e.g. to zero it, or to copy a
// module payload out of it) before it is given a permanent mapping.
func MapTemporary(frame pmm.Frame) (Page, *kernel.Error) {
	if err := Map(PageFromAddress(tempMappingAddr), frame, FlagRW); err != nil {
		return 0, err
	}
	return PageFromAddress(tempMappingAddr), nil
}

// Unmap removes a mapping previously installed via Map or MapTemporary. The
// backing page table itself is left in place; spec.md leaves whether to also
// free the frame up to the caller (see Open Questions), so Unmap only ever
// clears the present bit.
func Unmap(page Page) *kernel.Error {
	virtAddr := page.Address()

	pde := pdEntryForFn(virtAddr)
	if !pde.HasFlags(FlagPresent) {
		return ErrInvalidMapping
	}

	pte := ptEntryForFn(virtAddr)
	if !pte.HasFlags(FlagPresent) {
		return ErrInvalidMapping
	}

	pte.ClearFlags(FlagPresent)
	flushTLBEntryFn(virtAddr)
	return nil
}

// UnmapPages removes the mapping for n consecutive pages starting at page.
// Like Unmap, it never frees the backing frames; the heap's contract() calls
// pmm.FreeFrames itself once it knows the frames are actually its own (see
// spec.md 4.2's open question about unmap-only vs unmap-and-free).
func UnmapPages(page Page, n uint32) *kernel.Error {
	for i := uint32(0); i < n; i++ {
		if err := Unmap(page + Page(i)); err != nil {
			return err
		}
	}
	return nil
}
