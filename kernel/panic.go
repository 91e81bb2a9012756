package kernel

import (
	"github.com/kernelforge/corekernel/kernel/cpu"
	"github.com/kernelforge/corekernel/kernel/kfmt/early"
)

var (
	// cpuHaltFn is mocked by tests and is automatically inlined by the compiler.
	cpuHaltFn = cpu.Halt

	// readEBPFn and stackTraceFn are mocked by tests for the same reason:
	// reading the live ebp register and walking it only make sense against
	// a real call stack, not a host `go test` process's.
	readEBPFn    = cpu.ReadEBP
	stackTraceFn = printStackTrace

	errRuntimePanic = &Error{Module: "rt", Message: "unknown cause"}
)

// Panic outputs the supplied error (if not nil) to the console, walks the
// stack from the caller's current ebp and halts the CPU. Calls to Panic
// never return. Panic also works as a redirection target for calls to
// panic() (resolved via runtime.gopanic)
//go:redirect-from runtime.gopanic
func Panic(e interface{}) {
	PanicWithTrace(e, readEBPFn())
}

// PanicWithTrace behaves like Panic but walks the stack starting from ebp
// instead of reading the live register. Fault handlers that already hold a
// saved irq.Regs -- the "extended context" -- call this with its EBP field
// so the trace reflects the faulting frame rather than the handler's own.
func PanicWithTrace(e interface{}, ebp uintptr) {
	var err *Error

	switch t := e.(type) {
	case *Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	early.Printf("\n-----------------------------------\n")
	if err != nil {
		early.Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	early.Printf("*** kernel panic: system halted ***")
	early.Printf("\n-----------------------------------\n")

	stackTraceFn(ebp)

	cpuHaltFn()
}
