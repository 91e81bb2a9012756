// Package irq owns the kernel's IDT and the dispatch policy that runs on
// every trap, exception and hardware interrupt. Every one of the 256
// possible vectors is backed by its own tiny assembly stub (see
// stubs_386.s); the REDESIGN FLAG this replaces called for three different
// hand-maintained stub shapes (exception+code, exception, full context
// switch) which made adding a new handler a copy/paste exercise. One
// uniform shape plus a per-vector "carries an error code" lookup removes
// that footgun.
package irq

import (
	"unsafe"

	"github.com/kernelforge/corekernel/kernel"
	"github.com/kernelforge/corekernel/kernel/kfmt/early"
)

// InterruptNumber identifies one of the 256 IDT vectors.
type InterruptNumber uint8

// CPU exception vectors (Intel SDM vol 3, chapter 6).
const (
	DivideByZeroException InterruptNumber = 0
	DebugException         InterruptNumber = 1
	NMIException           InterruptNumber = 2
	BreakpointException    InterruptNumber = 3
	OverflowException      InterruptNumber = 4
	BoundRangeException    InterruptNumber = 5
	InvalidOpcodeException InterruptNumber = 6
	DeviceNAException      InterruptNumber = 7
	DoubleFaultException   InterruptNumber = 8
	InvalidTSSException    InterruptNumber = 10
	SegNotPresentException InterruptNumber = 11
	StackFaultException    InterruptNumber = 12
	GPFException           InterruptNumber = 13
	PageFaultException     InterruptNumber = 14
	FPUException           InterruptNumber = 16
	AlignmentCheckException InterruptNumber = 17
	MachineCheckException  InterruptNumber = 18
	SIMDException          InterruptNumber = 19
)

// IRQ remapping window: the PIC is reprogrammed so that IRQ0-15 land on
// vectors 32-47 instead of colliding with the CPU exception range.
const (
	IRQBase  InterruptNumber = 32
	IRQCount                 = 16

	// TimerIRQ is IRQ0, wired to the PIT tick.
	TimerIRQ InterruptNumber = IRQBase + 0

	// YieldVector is a software-only interrupt (never raised by the PIC)
	// that a task executes to voluntarily give up the CPU; it shares the
	// IRQ1 slot this kernel's driver set leaves otherwise unused, since no
	// keyboard driver is in scope.
	YieldVector InterruptNumber = IRQBase + 1
)

var hasErrorCode = map[InterruptNumber]bool{
	DoubleFaultException:    true,
	InvalidTSSException:     true,
	SegNotPresentException:  true,
	StackFaultException:     true,
	GPFException:            true,
	PageFaultException:      true,
	AlignmentCheckException: true,
}

// Regs mirrors the layout PUSHAL leaves on the stack: the lowest address
// (first field) is whatever was pushed last.
type Regs struct {
	EDI, ESI, EBP, espIgnored uint32
	EBX, EDX, ECX, EAX        uint32
}

// Print writes the saved general-purpose registers to the early console.
func (r *Regs) Print() {
	early.Printf("eax: %8x ebx: %8x ecx: %8x edx: %8x\n", r.EAX, r.EBX, r.ECX, r.EDX)
	early.Printf("esi: %8x edi: %8x ebp: %8x\n", r.ESI, r.EDI, r.EBP)
}

// Frame mirrors the vector/error-code pair every stub pushes followed by
// the CPU-pushed trap frame (eip, cs, eflags) for a same-privilege
// interrupt, which is the only kind this single-ring kernel ever takes.
type Frame struct {
	Vector    uint32
	ErrorCode uint32
	EIP       uint32
	CS        uint32
	EFlags    uint32
}

// Print writes the trap frame to the early console.
func (f *Frame) Print() {
	early.Printf("vector: %d error: %x eip: %8x cs: %x eflags: %x\n", f.Vector, f.ErrorCode, f.EIP, f.CS, f.EFlags)
}

// ExceptionHandlerFunc handles a CPU exception that carries no error code.
type ExceptionHandlerFunc func(frame *Frame, regs *Regs)

// ExceptionHandlerWithCodeFunc handles a CPU exception that carries an
// error code (see hasErrorCode).
type ExceptionHandlerWithCodeFunc func(errorCode uint64, frame *Frame, regs *Regs)

// IRQHandlerFunc handles one of the 16 remapped hardware interrupt lines.
type IRQHandlerFunc func(frame *Frame, regs *Regs)

// SwitchFunc is invoked for vectors that may redirect execution to a
// different stack entirely (the scheduler's tick and yield vectors). It
// receives the address of the Regs struct that was just saved on the
// interrupted stack and returns the address execution should resume from --
// either the same pointer (no switch) or a different task's saved context.
type SwitchFunc func(savedRegsAddr uintptr) (resumeRegsAddr uintptr)

var (
	exceptionHandlers         [256]ExceptionHandlerFunc
	exceptionHandlersWithCode [256]ExceptionHandlerWithCodeFunc
	irqHandlers               [IRQCount]IRQHandlerFunc
	switchHandlers            [256]SwitchFunc

	picEOIFn  = func(irqLine uint8) {}
	lapicEOIFn = func() {}
	panicFn   = kernel.Panic

	fxsaveFn  = fxsave
	fxrstorFn = fxrstor
	fpuArea   [512]byte // 16-byte aligned in practice via linker section padding
)

// HandleException registers fn for a vector that carries no CPU error code.
func HandleException(vector InterruptNumber, fn ExceptionHandlerFunc) {
	exceptionHandlers[vector] = fn
}

// HandleExceptionWithCode registers fn for a vector that carries a CPU
// error code (double fault, GPF, page fault, ...).
func HandleExceptionWithCode(vector InterruptNumber, fn ExceptionHandlerWithCodeFunc) {
	exceptionHandlersWithCode[vector] = fn
}

// RegisterIRQHandler registers fn to run whenever the given IRQ line fires.
// The PIC is sent an EOI automatically once fn returns.
func RegisterIRQHandler(irqLine uint8, fn IRQHandlerFunc) {
	irqHandlers[irqLine] = fn
}

// RegisterSwitchHandler registers fn for a vector that may need to resume
// execution on a different saved stack (used exclusively by kernel/sched).
func RegisterSwitchHandler(vector InterruptNumber, fn SwitchFunc) {
	switchHandlers[vector] = fn
}

// SetPICEOIHandler wires in the function the dispatcher calls to acknowledge
// an IRQ with the 8259 once its handler has run. kmain's interrupt routing
// setup passes pic.SendEOI here, so irq never needs to import pic directly.
func SetPICEOIHandler(fn func(irqLine uint8)) {
	picEOIFn = fn
}

// SetLAPICEOIHandler wires in the function the dispatcher calls after every
// vector, IRQ or not, to acknowledge the local APIC.
func SetLAPICEOIHandler(fn func()) {
	lapicEOIFn = fn
}

// Dispatch is invoked by commonStub for every vector. It is exported so the
// assembly stub can reach it via a plain CALL, but it is not meant to be
// called from other Go code.
//
//go:nosplit
func Dispatch(regsAddr uintptr) uintptr {
	fxsaveFn(&fpuArea)

	regs := (*Regs)(unsafe.Pointer(regsAddr))
	frame := (*Frame)(unsafe.Pointer(regsAddr + unsafe.Sizeof(Regs{})))
	vector := InterruptNumber(frame.Vector)

	switch {
	case vector >= IRQBase && vector < IRQBase+IRQCount:
		line := uint8(vector - IRQBase)
		if h := irqHandlers[line]; h != nil {
			h(frame, regs)
		}
		picEOIFn(line)
	default:
		if h := exceptionHandlers[vector]; h != nil {
			h(frame, regs)
		} else if h := exceptionHandlersWithCode[vector]; h != nil {
			h(uint64(frame.ErrorCode), frame, regs)
		} else if vector < IRQBase {
			early.Printf("\nunhandled exception %d at eip=%x\n", vector, frame.EIP)
			panicFn(&kernel.Error{Module: "irq", Message: "unhandled CPU exception"})
		} else {
			early.Printf("[irq] warning: unhandled interrupt vector %d\n", vector)
		}
	}

	lapicEOIFn()

	resumeAddr := regsAddr
	if sw := switchHandlers[vector]; sw != nil {
		resumeAddr = sw(regsAddr)
	}

	fxrstorFn(&fpuArea)
	return resumeAddr
}

// fxsave saves the current x87/SSE state into area.
func fxsave(area *[512]byte)

// fxrstor restores the x87/SSE state previously saved into area.
func fxrstor(area *[512]byte)
