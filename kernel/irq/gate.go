package irq

import (
	"reflect"
	"unsafe"

	"github.com/kernelforge/corekernel/kernel"
	"github.com/kernelforge/corekernel/kernel/gdt"
)

const (
	gateTypeInterrupt32 = 0x8E // present, ring 0, 32-bit interrupt gate
	idtEntryCount        = 256
)

// idtGate mirrors one 8-byte i386 interrupt gate descriptor.
type idtGate struct {
	offsetLow  uint16
	selector   uint16
	zero       uint8
	typeAttr   uint8
	offsetHigh uint16
}

// idtPointer is the packed 6-byte {limit,base} operand lidt reads directly
// from memory; see gdt.descriptorPointer for why this is a byte array rather
// than a {uint16;uint32} struct.
type idtPointer [6]byte

func (p *idtPointer) set(limit uint16, base uint32) {
	p[0], p[1] = byte(limit), byte(limit>>8)
	p[2], p[3] = byte(base), byte(base>>8)
	p[4], p[5] = byte(base>>16), byte(base>>24)
}

var (
	idt [idtEntryCount]idtGate

	idtr idtPointer

	loadIDTFn = loadIDT
)

func newGate(handlerAddr uintptr) idtGate {
	return idtGate{
		offsetLow:  uint16(handlerAddr),
		selector:   gdt.KernelCodeSelector,
		zero:       0,
		typeAttr:   gateTypeInterrupt32,
		offsetHigh: uint16(handlerAddr >> 16),
	}
}

// Init populates all 256 IDT entries with their matching assembly stub and
// loads the table via lidt. It must run after kernel/gdt.Init, since every
// gate references the kernel code selector gdt installs.
func Init() *kernel.Error {
	for vector := 0; vector < idtEntryCount; vector++ {
		addr := reflect.ValueOf(stubTable[vector]).Pointer()
		idt[vector] = newGate(addr)
	}

	idtr.set(uint16(unsafe.Sizeof(idt)-1), uint32(uintptr(unsafe.Pointer(&idt[0]))))

	loadIDTFn(uintptr(unsafe.Pointer(&idtr)))
	return nil
}

// loadIDT loads the IDT pointed to by idtPtrAddr via lidt.
func loadIDT(idtPtrAddr uintptr)

// IDTPointerAddr returns the address of the lidt-ready {limit,base} pointer
// built by Init. Every application processor shares the same IDT as the boot
// CPU, so kernel/smp's trampoline loads this same pointer rather than
// building a second one.
func IDTPointerAddr() uintptr {
	return uintptr(unsafe.Pointer(&idtr))
}
