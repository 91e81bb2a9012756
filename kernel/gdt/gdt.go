// Package gdt builds the kernel's flat Global Descriptor Table and the
// accompanying Task State Segment. The GDT is intentionally minimal: a null
// descriptor, one flat 4GiB code and one flat 4GiB data descriptor for ring
// 0, a matching pair reserved for a future ring 3, and the TSS descriptor
// used to carry ss0/esp0 across privilege-level interrupts.
package gdt

import (
	"unsafe"

	"github.com/kernelforge/corekernel/kernel"
)

// Selector values: the byte offset of each descriptor in the table Init
// builds (table index * 8).
const (
	NullSelector       = 0x00
	KernelCodeSelector = 0x08
	KernelDataSelector = 0x10
	UserCodeSelector   = 0x18
	UserDataSelector   = 0x20
	TSSSelector        = 0x28

	entryCount = 6
)

// Access byte bits (Intel SDM vol 3, 3.4.5).
const (
	accessPresent   = 1 << 7
	accessRing3     = 3 << 5
	accessDescType  = 1 << 4 // 1 = code/data, 0 = system
	accessExecute   = 1 << 3
	accessDirConf   = 1 << 2
	accessReadWrite = 1 << 1
	accessAccessed  = 1 << 0

	accessTSSAvailable = 0x9 // system descriptor type for a 32-bit available TSS
)

// Flags nibble bits.
const (
	flagGranularity = 1 << 3 // limit is in 4K pages
	flagSize32      = 1 << 2 // 32-bit protected mode segment
)

// entry mirrors one raw 8-byte GDT descriptor.
type entry struct {
	limitLow   uint16
	baseLow    uint16
	baseMiddle uint8
	access     uint8
	flagsLimit uint8 // high nibble: flags, low nibble: limit bits 19:16
	baseHigh   uint8
}

func newFlatDescriptor(access, flags uint8) entry {
	// A 4GiB flat segment encodes limit 0xFFFFF with 4K granularity, which
	// the CPU multiplies out to the full 32-bit address space.
	return entry{
		limitLow:   0xFFFF,
		baseLow:    0,
		baseMiddle: 0,
		access:     access,
		flagsLimit: (flags << 4) | 0xF,
		baseHigh:   0,
	}
}

func newSystemDescriptor(base uintptr, limit uint32, access, flags uint8) entry {
	return entry{
		limitLow:   uint16(limit),
		baseLow:    uint16(base),
		baseMiddle: uint8(base >> 16),
		access:     access,
		flagsLimit: (flags << 4) | uint8((limit>>16)&0xF),
		baseHigh:   uint8(base >> 24),
	}
}

// TSS mirrors the i386 32-bit Task State Segment (Intel SDM vol 3, figure
// 7-2). Only ss0/esp0 (the ring 0 stack used on a privilege-level change)
// and iomapBase (set past the segment limit to disable the I/O permission
// bitmap entirely) are meaningful for a kernel that never runs ring 3 code.
type TSS struct {
	prevTask uint16
	_        uint16
	esp0     uint32
	ss0      uint16
	_        uint16
	esp1     uint32
	ss1      uint16
	_        uint16
	esp2     uint32
	ss2      uint16
	_        uint16
	cr3      uint32
	eip      uint32
	eflags   uint32
	eax, ecx, edx, ebx uint32
	esp, ebp, esi, edi uint32
	es, _              uint16
	cs, _              uint16
	ss, _              uint16
	ds, _              uint16
	fs, _              uint16
	gs, _              uint16
	ldt, _             uint16
	trap               uint16
	iomapBase          uint16
}

// descriptorPointer is the packed 6-byte {limit,base} operand lgdt reads
// directly from memory. It is a byte array rather than a {uint16;uint32}
// struct because Go would pad the latter to align the uint32 field, splitting
// the limit and base apart from the layout the CPU expects them in.
type descriptorPointer [6]byte

func (p *descriptorPointer) set(limit uint16, base uint32) {
	p[0], p[1] = byte(limit), byte(limit>>8)
	p[2], p[3] = byte(base), byte(base>>8)
	p[4], p[5] = byte(base>>16), byte(base>>24)
}

var (
	table [entryCount]entry
	tss   TSS
	ptr   descriptorPointer

	// flushFn is used by tests to avoid executing the privileged lgdt/ltr
	// instructions outside ring 0.
	flushFn = flush

	errMisalignedStack = &kernel.Error{Module: "gdt", Message: "kernel stack must be non-zero"}
)

// Init builds the flat GDT plus the TSS pointing at the supplied ring-0
// stack, loads it via lgdt and reloads every segment register, then loads
// the task register via ltr. kernelStackTop must be the address one past
// the end of the stack kmain is currently running on (esp grows down from
// it).
func Init(kernelStackTop uintptr) *kernel.Error {
	if kernelStackTop == 0 {
		return errMisalignedStack
	}

	table[0] = entry{}
	table[KernelCodeSelector/8] = newFlatDescriptor(
		accessPresent|accessDescType|accessExecute|accessReadWrite,
		flagGranularity|flagSize32,
	)
	table[KernelDataSelector/8] = newFlatDescriptor(
		accessPresent|accessDescType|accessReadWrite,
		flagGranularity|flagSize32,
	)
	table[UserCodeSelector/8] = newFlatDescriptor(
		accessPresent|accessRing3|accessDescType|accessExecute|accessReadWrite,
		flagGranularity|flagSize32,
	)
	table[UserDataSelector/8] = newFlatDescriptor(
		accessPresent|accessRing3|accessDescType|accessReadWrite,
		flagGranularity|flagSize32,
	)

	tss = TSS{}
	tss.ss0 = KernelDataSelector
	tss.esp0 = uint32(kernelStackTop)
	// Setting iomapBase past the segment limit means every I/O port access
	// from ring 3 would fault; this kernel never runs ring 3 code, but the
	// field must still point somewhere valid.
	tss.iomapBase = uint16(unsafe.Sizeof(TSS{}))

	table[TSSSelector/8] = newSystemDescriptor(
		uintptr(unsafe.Pointer(&tss)),
		uint32(unsafe.Sizeof(TSS{})-1),
		accessPresent|accessTSSAvailable,
		0,
	)

	ptr.set(uint16(unsafe.Sizeof(table)-1), uint32(uintptr(unsafe.Pointer(&table[0]))))

	flushFn(uintptr(unsafe.Pointer(&ptr)))
	return nil
}

// SetKernelStack updates the ring-0 stack pointer the TSS hands the CPU the
// next time an interrupt or trap raises the privilege level to 0. The
// scheduler calls this on every task switch so IRQs taken from a
// newly-scheduled task land on that task's own kernel stack.
func SetKernelStack(top uintptr) {
	tss.esp0 = uint32(top)
}

// PointerAddr returns the address of the lgdt-ready {limit,base} pointer
// built by Init. The table it describes is flat and CPU-agnostic, so every
// application processor loads this exact same pointer during bring-up
// instead of building a second copy: kernel/smp's trampoline patches this
// address into its own lgdt operand.
func PointerAddr() uintptr {
	return uintptr(unsafe.Pointer(&ptr))
}

// flush loads the GDT pointed to by gdtPtrAddr via lgdt, reloads every
// segment register to pick up the new selectors, and loads the task
// register with the TSS selector.
func flush(gdtPtrAddr uintptr)
