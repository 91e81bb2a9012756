package vmm

import "github.com/kernelforge/corekernel/kernel"

// Translate returns the physical address that corresponds to the supplied
// virtual address, or ErrInvalidMapping if no page table entry maps it.
func Translate(virtAddr uintptr) (uintptr, *kernel.Error) {
	pde := pdEntryForFn(virtAddr)
	if !pde.HasFlags(FlagPresent) {
		return 0, ErrInvalidMapping
	}

	pte := ptEntryForFn(virtAddr)
	if !pte.HasFlags(FlagPresent) {
		return 0, ErrInvalidMapping
	}

	pageOffset := virtAddr & (uintptr(pageSizeMask))
	return pte.Frame().Address() + pageOffset, nil
}

const pageSizeMask = 1<<ptIndexShift - 1
