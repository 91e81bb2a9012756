// Package config collects the boot-time constants that are scattered across
// the original C++ sources as preprocessor defines (HEAP_START, the AP
// trampoline's load address, the legacy I/O port numbers, ...). The PIT's
// input clock frequency is not among them; it lives in kernel/pit. Centralising them here keeps every
// other package free of magic numbers and gives kmain one place to tweak
// memory layout without hunting through the tree.
package config

import "github.com/kernelforge/corekernel/kernel/mem"

const (
	// KernelLoadAddr is the physical address the bootloader places the
	// kernel image at.
	KernelLoadAddr uintptr = 0x00100000

	// HeapStart is the virtual address of the first byte of the kernel
	// heap window.
	HeapStart uintptr = 0x01000000

	// HeapMinSize is the initial size reserved for the kernel heap and
	// the floor that the heap's contract() will never shrink below.
	HeapMinSize = mem.Size(0x00100000)

	// HeapMaxSize bounds how far the heap is allowed to grow().
	HeapMaxSize = mem.Size(0x01000000)

	// RecursivePDEIndex is the page directory slot that is made
	// self-referential so PDE_BASE/PT_BASE become addressable.
	RecursivePDEIndex = 1023

	// PDEBase is the virtual address at which the active page directory
	// becomes addressable as a page table, courtesy of the recursive
	// mapping installed at RecursivePDEIndex.
	PDEBase uintptr = 0xFFFFF000

	// PTBase is the virtual window whose 1024 pages are the 1024 page
	// tables of the active page directory.
	PTBase uintptr = 0xFFC00000

	// DefaultTimeSliceMs is the scheduler quantum used by kmain when
	// bringing up the default "kernel" task.
	DefaultTimeSliceMs = 10

	// APTrampolinePhysAddr is the physical load address of the 16-bit
	// real-mode AP trampoline; it must fit inside the first megabyte and
	// be page-aligned since SIPI only encodes the page number.
	APTrampolinePhysAddr uintptr = 0x8000

	// APTrampolineVector is the SIPI vector corresponding to
	// APTrampolinePhysAddr (vector * 0x1000 == APTrampolinePhysAddr).
	APTrampolineVector uint8 = 0x08

	// APStackSize is the size of the kernel stack handed to each AP.
	APStackSize = mem.Size(0x1000)

	// BootStackTop is the top of the boot stack rt0 hands Kmain, used as
	// the TSS's initial esp0 before the scheduler creates its own task
	// stacks and starts patching esp0 on every switch (gdt.SetKernelStack).
	BootStackTop uintptr = 0x00090000
)

// I/O ports used by the legacy devices this kernel drives directly.
const (
	PortPIT0        = 0x40
	PortPITCommand  = 0x43
	PortPIC1Command = 0x20
	PortPIC1Data    = 0x21
	PortPIC2Command = 0xA0
	PortPIC2Data    = 0xA1
	PortVGACtl      = 0x3D4
	PortVGAData     = 0x3D5
)

const (
	// DefaultLAPICBase is the MMIO address of the local APIC used when
	// the MADT does not carry an address-override entry.
	DefaultLAPICBase uintptr = 0xFEE00000
)
