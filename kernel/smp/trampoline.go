// Package smp brings up the application processors (APs) described by the
// ACPI MADT, following the same universal startup algorithm the original
// kernel's C++ SMP bootstrap used: one INIT IPI to reset the target AP,
// followed by up to three Startup IPIs (SIPIs) pointing it at a small
// real-mode trampoline loaded below 1MiB. The trampoline flips the AP into
// protected mode, loads the boot CPU's own GDT/IDT/page directory, and hands
// off to a normal Go-reachable entry point.
//
// Only the first few instructions are true 16-bit real-mode code, and Go's
// assembler cannot emit that; they are written out as a hand-encoded byte
// blob instead. Everything reachable once the AP is in 32-bit protected mode
// is ordinary plan9 assembly, following the bodyless-Go-func convention the
// rest of this tree uses for privileged instructions (see kernel/gdt,
// kernel/irq).
package smp

import (
	"unsafe"

	"github.com/kernelforge/corekernel/kernel/config"
)

// trampoline16 is the real-mode preamble copied to config.APTrampolinePhysAddr.
// It is entered with CS:IP = (vector<<8):0x0000, real mode, interrupts
// disabled by the SIPI itself. Hand-assembled from:
//
//	cli
//	xor ax, ax
//	mov ds, ax
//	lgdt [gdtPtr16]          ; 16-bit-relative pointer patched at install time
//	mov eax, cr0
//	or al, 1
//	mov cr0, eax
//	jmp CODE_SEL:protMode32  ; far jump, flushes the prefetch queue and CS
//
// protMode32 (still within the trampoline page, at offset off32) loads the
// flat data selectors, the boot CPU's IDT and page directory, enables
// paging, sets ESP from the patched stack-top slot, and calls (a near,
// indirect call) through the patched entry-point slot:
//
//	mov ax, DATA_SEL
//	mov ds, ax
//	mov es, ax
//	mov ss, ax
//	lidt [idtPtr32]
//	mov eax, [cr3Slot]
//	mov cr3, eax
//	mov eax, cr0
//	or eax, 0x80000000
//	mov cr0, eax
//	mov esp, [stackTopSlot]
//	call [entrySlot]
//	hlt
//
// The byte encoding below was produced by hand-assembling exactly this
// sequence for a flat 4GiB code/data pair at selectors 0x08/0x10 (this
// kernel's gdt.KernelCodeSelector/KernelDataSelector). trampoline16's two
// address operands are patched at install time; trampoline32's memory
// operands are absolute addresses inside a page loaded at 0x8000
// (config.APTrampolinePhysAddr) plus the fixed offsets named below, and are
// not patched.
var trampoline16 = []byte{
	0xFA,       // cli
	0x31, 0xC0, // xor ax, ax
	0x8E, 0xD8, // mov ds, ax
	0x66, 0x0F, 0x01, 0x16, 0x00, 0x00, // lgdt [disp16] (patched: offsetGDTPtr)
	0x0F, 0x20, 0xC0, // mov eax, cr0
	0x0C, 0x01, // or al, 1
	0x0F, 0x22, 0xC0, // mov cr0, eax
	0x66, 0xEA, 0x00, 0x00, 0x00, 0x00, 0x08, 0x00, // jmp far 0x0008:disp32 (patched: offsetFarJump)
}

// Trampoline layout offsets (bytes from the start of the installed page).
// These are patched into the raw blob at install time; they do not shift as
// long as trampoline16/trampoline32 above are not re-encoded.
const (
	offsetGDTPtr    = 0x09 // 2-byte disp16 operand of the lgdt in trampoline16
	offsetFarJump   = 0x15 // 4-byte disp32 operand of the far jmp
	offsetProt32    = 0x20 // where trampoline32 is copied
	offsetGDTCopy   = 0x60 // 6-byte {limit,base} gdt pointer used by lgdt
	offsetIDTCopy   = 0x70 // 6-byte {limit,base} idt pointer used by lidt
	offsetCR3Slot   = 0x80 // 4-byte page directory physical address
	offsetStackSlot = 0x84 // 4-byte ESP to load before the handoff call
	offsetEntrySlot = 0x88 // 4-byte address of apTrampolineEntry
	offsetAPReadyAP = 0x8C // 1-byte flag the AP sets once apMain starts running
)

// trampoline32 runs in 32-bit protected mode, still physically addressed
// within the trampoline page (identity-mapped low memory, so its linear and
// physical addresses coincide before paging is enabled). It finishes the
// CPU's transition into the kernel's own address space and hands off.
var trampoline32 = []byte{
	0x66, 0xB8, 0x10, 0x00, // mov ax, 0x0010 (0x66: 16-bit operand in 32-bit code)
	0x8E, 0xD8, // mov ds, ax
	0x8E, 0xC0, // mov es, ax
	0x8E, 0xD0, // mov ss, ax
	0x0F, 0x01, 0x1D, 0x70, 0x80, 0x00, 0x00, // lidt [0x008070] (0x8000 + offsetIDTCopy)
	0xA1, 0x80, 0x80, 0x00, 0x00, // mov eax, [0x008080] (offsetCR3Slot)
	0x0F, 0x22, 0xD8, // mov cr3, eax
	0x0F, 0x20, 0xC0, // mov eax, cr0
	0x0D, 0x00, 0x00, 0x00, 0x80, // or eax, 0x80000000
	0x0F, 0x22, 0xC0, // mov cr0, eax
	0xA1, 0x84, 0x80, 0x00, 0x00, // mov eax, [0x008084] (offsetStackSlot)
	0x89, 0xC4, // mov esp, eax
	0xFF, 0x15, 0x88, 0x80, 0x00, 0x00, // call [0x008088] (offsetEntrySlot)
	0xF4, // hlt
	0xEB, 0xFD, // jmp $-3 (safety net if apTrampolineEntry ever returns)
}

// trampolinePageSize is how much of config.APTrampolinePhysAddr the blob and
// its patch area occupy; it must stay within the first 4KiB page SIPI's
// vector*0x1000 addressing implies.
const trampolinePageSize = 0x1000

func physPtr(off uintptr) unsafe.Pointer {
	return unsafe.Pointer(config.APTrampolinePhysAddr + off)
}

// installTrampoline copies the hand-assembled blob and its runtime-patched
// operands into low physical memory. Physical addresses below 1MiB lie
// inside the boot-time identity mapping of the first 4MiB, so a plain
// unsafe.Pointer write reaches them with no additional vmm.Map call.
func installTrampoline(gdtPtrAddr, idtPtrAddr, cr3 uintptr, entry uintptr) {
	base := config.APTrampolinePhysAddr

	copyBytes(physPtr(0), trampoline16)
	copyBytes(physPtr(offsetProt32), trampoline32)

	// DS is zeroed before the lgdt runs, so its disp16 operand is a plain
	// real-mode linear offset; base fits in 16 bits since it must live below
	// 1MiB. The far jump's disp32 operand addresses the 32-bit code already
	// linearly, since CS:EIP becomes a flat selector the instant it lands.
	*(*uint16)(physPtr(offsetGDTPtr)) = uint16(base + offsetGDTCopy)
	*(*uint32)(physPtr(offsetFarJump)) = uint32(base) + offsetProt32

	copyBytes(physPtr(offsetGDTCopy), descriptorBytes(gdtPtrAddr))
	copyBytes(physPtr(offsetIDTCopy), descriptorBytes(idtPtrAddr))

	*(*uint32)(physPtr(offsetCR3Slot)) = uint32(cr3)
	*(*uint32)(physPtr(offsetEntrySlot)) = uint32(entry)
	*(*uint8)(physPtr(offsetAPReadyAP)) = 0
}

// setStackTop patches the ESP the next AP to be started will load, just
// before its INIT/SIPI sequence is sent.
func setStackTop(top uintptr) {
	*(*uint32)(physPtr(offsetStackSlot)) = uint32(top)
}

// apReady reports whether the currently-starting AP has reached apMain.
func apReady() bool {
	return *(*uint8)(physPtr(offsetAPReadyAP)) != 0
}

// setAPReady is called by apMain, running on the AP itself, to signal the
// BSP that this core has completed its handoff.
func setAPReady() {
	*(*uint8)(physPtr(offsetAPReadyAP)) = 1
}

// resetAPReady clears the ready flag before bringing up the next AP; the
// trampoline page's ready flag is a single shared slot since APs are
// started one at a time (spec.md 4.9's per-AP retry loop).
func resetAPReady() {
	*(*uint8)(physPtr(offsetAPReadyAP)) = 0
}

func copyBytes(dst unsafe.Pointer, src []byte) {
	d := (*[trampolinePageSize]byte)(dst)
	copy(d[:len(src)], src)
}

// descriptorBytes reads the packed 6-byte {limit,base} lgdt/lidt operand
// gdt.PointerAddr/irq.IDTPointerAddr point at (see gdt.descriptorPointer).
func descriptorBytes(addr uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), 6)
}
