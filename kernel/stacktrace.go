package kernel

import (
	"unsafe"

	"github.com/kernelforge/corekernel/kernel/kfmt/early"
)

// maxStackFrames bounds how many saved-ebp links a panic-time trace walks,
// matching the original kernel's stack_trace(frame, 10).
const maxStackFrames = 10

// stackFrame mirrors the layout an i386 function prologue leaves on the
// stack: the caller's saved ebp immediately followed by the return
// address, the same shape original_source's stack_frame struct names.
type stackFrame struct {
	savedEBP uintptr
	retAddr  uint32
}

// symbolResolverFn resolves a return address to a symbol name. kernel/module
// registers its debug-symbols lookup here once a debug-symbols module has
// loaded. This package cannot import kernel/module directly -- kernel/module
// already imports kernel for *kernel.Error, so the dependency has to run
// through this seam instead of a direct call.
var symbolResolverFn func(addr uint32) (string, bool)

// SetSymbolResolver installs the function a stack trace consults to
// annotate a return address with a symbol name.
func SetSymbolResolver(fn func(addr uint32) (string, bool)) {
	symbolResolverFn = fn
}

// pageMappedFn reports whether a virtual address can be safely
// dereferenced. kernel/mem/vmm registers a Translate-backed check here
// during Init, for the same import-direction reason as symbolResolverFn.
var pageMappedFn func(addr uintptr) bool

// SetPageMappedChecker installs the function a stack trace consults before
// following the next saved-ebp link.
func SetPageMappedChecker(fn func(addr uintptr) bool) {
	pageMappedFn = fn
}

func isMapped(addr uintptr) bool {
	if addr == 0 {
		return false
	}
	if pageMappedFn == nil {
		return true
	}
	return pageMappedFn(addr)
}

// printStackTrace walks the saved-ebp chain starting at ebp, printing up to
// maxStackFrames return addresses, each annotated with a symbol name where
// a debug-symbols module resolves one. Grounded on
// original_source/kernel/src/klibcpp/kstd.cpp's stack_trace: a frame's eip
// is printed before following frame->ebp, and the walk stops the instant
// the next ebp is not mapped rather than dereferencing it.
func printStackTrace(ebp uintptr) {
	early.Printf("Stack trace:\n")

	frame := ebp
	for i := 0; frame != 0 && i < maxStackFrames; i++ {
		sf := (*stackFrame)(unsafe.Pointer(frame))

		if name, ok := resolveSymbol(sf.retAddr); ok {
			early.Printf("    [%d] %8x %s\n", i, sf.retAddr, name)
		} else {
			early.Printf("    [%d] %8x\n", i, sf.retAddr)
		}

		if !isMapped(sf.savedEBP) {
			if sf.savedEBP != 0 {
				early.Printf("    invalid frame pointer: %8x\n", sf.savedEBP)
			}
			break
		}
		frame = sf.savedEBP
	}
}

func resolveSymbol(addr uint32) (string, bool) {
	if symbolResolverFn == nil {
		return "", false
	}
	return symbolResolverFn(addr)
}
