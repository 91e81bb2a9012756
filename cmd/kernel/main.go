package main

import "github.com/kernelforge/corekernel/kernel"

// multibootInfoPtr, kernelStart and kernelEnd are patched in place by the
// rt0 assembly stub before jumping here; they are read through globals
// rather than passed as literals so the compiler cannot inline this call
// and eliminate Kmain from the generated object file.
var (
	multibootInfoPtr uintptr
	kernelStart      uintptr
	kernelEnd        uintptr
)

// main is the only Go symbol visible (exported) from the rt0 initialization
// code. It is a trampoline for the actual kernel entrypoint, kernel.Kmain,
// invoked after rt0 has set up the GDT and a minimal g0 struct that lets Go
// code run on the small stack rt0 allocated.
//
// main is not expected to return. If it does, the rt0 code halts the CPU.
func main() {
	kernel.Kmain(multibootInfoPtr, kernelStart, kernelEnd)
}
