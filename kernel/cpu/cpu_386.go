// Package cpu provides Go-callable wrappers around the privileged i386
// instructions the kernel needs: interrupt masking, port I/O, MSR access and
// the handful of register reads that have no Go-expressible equivalent. Each
// exported function here is declared without a body; its implementation
// lives in the matching .s file, following the same split the rest of this
// tree uses for anything that requires inline assembly.
package cpu

// EnableInterrupts enables interrupt handling (sti).
func EnableInterrupts()

// DisableInterrupts disables interrupt handling (cli).
func DisableInterrupts()

// Halt executes hlt in an endless loop and never returns: an interrupt that
// wakes the CPU resumes into the next hlt.
func Halt()

// InterruptsEnabled reports whether the interrupt flag is currently set.
func InterruptsEnabled() bool

// ReadCR2 returns the faulting linear address recorded by the CPU for the
// most recent page fault.
func ReadCR2() uintptr

// Inb reads a byte from the given I/O port.
func Inb(port uint16) uint8

// Outb writes a byte to the given I/O port.
func Outb(port uint16, value uint8)

// Inw reads a word from the given I/O port.
func Inw(port uint16) uint16

// Outw writes a word to the given I/O port.
func Outw(port uint16, value uint16)

// Inl reads a double word from the given I/O port.
func Inl(port uint16) uint32

// Outl writes a double word to the given I/O port.
func Outl(port uint16, value uint32)

// Rdmsr reads the model-specific register identified by id.
func Rdmsr(id uint32) uint64

// Wrmsr writes value to the model-specific register identified by id.
func Wrmsr(id uint32, value uint64)

// InitFPU executes FNINIT, resetting the x87 FPU to its power-up state.
// Every core -- BSP and each AP -- runs this once during its own bring-up.
func InitFPU()

// ReadEBP returns the caller's current frame pointer, the head of the
// saved-ebp chain a panic-time stack trace walks.
func ReadEBP() uintptr

// InterruptGuard disables interrupts for the duration of a critical section
// and restores whatever state they were previously in on Release, mirroring
// the original kernel's scope-based InterruptGuard without relying on Go
// having destructors.
//
// Usage:
//
//	guard := cpu.EnterInterruptGuard()
//	defer guard.Release()
type InterruptGuard struct {
	wasEnabled bool
}

// EnterInterruptGuard disables interrupts and remembers whether they were
// enabled beforehand so Release can restore the original state instead of
// unconditionally re-enabling them (guards may legitimately nest).
func EnterInterruptGuard() InterruptGuard {
	guard := InterruptGuard{wasEnabled: InterruptsEnabled()}
	DisableInterrupts()
	return guard
}

// Release restores the interrupt flag to whatever it was when the guard was
// entered.
func (g InterruptGuard) Release() {
	if g.wasEnabled {
		EnableInterrupts()
	}
}
