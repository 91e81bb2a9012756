package vmm

import (
	"github.com/kernelforge/corekernel/kernel"
	"github.com/kernelforge/corekernel/kernel/cpu"
	"github.com/kernelforge/corekernel/kernel/irq"
	"github.com/kernelforge/corekernel/kernel/kfmt/early"
	"github.com/kernelforge/corekernel/kernel/mem"
)

const (
	// tempMappingAddr is a scratch virtual page reserved for MapTemporary.
	// It sits just below the recursive page-table window so it can never
	// collide with a real mapping installed by Map.
	tempMappingAddr uintptr = 0xFF7FF000

	// earlyReserveBase/earlyReserveLimit bound the virtual address range
	// handed out by EarlyReserveRegion, a bump allocator used by
	// goruntime's sysReserve before the heap exists. The range sits right
	// below tempMappingAddr and below the recursive PT/PD windows.
	earlyReserveBase  uintptr = 0xFF000000
	earlyReserveLimit uintptr = 0xFF7FF000
)

var (
	// frameAllocator points to a frame allocator function registered via
	// SetFrameAllocator. It backs every Map() call that needs to
	// materialize a new page table.
	frameAllocator FrameAllocatorFn

	nextEarlyReserve = earlyReserveBase

	// the following indirections exist purely so tests can stub out
	// calls that would otherwise fault outside ring 0; the compiler
	// inlines them away in the real kernel build.
	panicFn                   = kernel.PanicWithTrace
	handleExceptionWithCodeFn = irq.HandleExceptionWithCode
	readCR2Fn                 = cpu.ReadCR2

	errOutOfVirtualSpace = &kernel.Error{Module: "vmm", Message: "early reserve region exhausted"}
)

// SetFrameAllocator registers the function Map uses whenever a fresh
// physical frame is required (chiefly: to back a newly-populated page
// table). Called once during boot with pmm.AllocFrame.
func SetFrameAllocator(allocFn FrameAllocatorFn) {
	frameAllocator = allocFn
}

// EarlyReserveRegion hands back size contiguous bytes of never-before-used
// kernel virtual address space, without establishing any mapping for them.
// It exists so goruntime's sysReserve can carve out address space for the Go
// allocator's arenas before a general-purpose virtual memory manager exists.
func EarlyReserveRegion(size mem.Size) (uintptr, *kernel.Error) {
	aligned := (mem.Size(size) + mem.PageSize - 1) &^ (mem.PageSize - 1)
	start := nextEarlyReserve
	if start+uintptr(aligned) > earlyReserveLimit {
		return 0, errOutOfVirtualSpace
	}
	nextEarlyReserve += uintptr(aligned)
	return start, nil
}

func pageFaultHandler(errorCode uint64, frame *irq.Frame, regs *irq.Regs) {
	faultAddress := uintptr(readCR2Fn())

	early.Printf("\nPage fault while accessing address: %x\nReason: ", faultAddress)
	switch errorCode {
	case 0:
		early.Printf("read from non-present page")
	case 1:
		early.Printf("page protection violation (read)")
	case 2:
		early.Printf("write to non-present page")
	case 3:
		early.Printf("page protection violation (write)")
	case 4:
		early.Printf("page-fault in user-mode")
	case 8:
		early.Printf("page table has reserved bit set")
	case 16:
		early.Printf("instruction fetch")
	default:
		early.Printf("unknown")
	}

	early.Printf("\n\nRegisters:\n")
	regs.Print()
	frame.Print()

	// This kernel has no recoverable fault path (no copy-on-write, no
	// demand paging, no user mode): every page fault is fatal. The saved
	// ebp from this extended context lets the panic trace walk the frames
	// that led to the fault instead of this handler's own.
	panicFn(nil, uintptr(regs.EBP))
}

func generalProtectionFaultHandler(_ uint64, frame *irq.Frame, regs *irq.Regs) {
	early.Printf("\nGeneral protection fault\nRegisters:\n")
	regs.Print()
	frame.Print()
	panicFn(nil, uintptr(regs.EBP))
}

// pageMapped reports whether addr is backed by a present page table entry;
// registered with kernel.SetPageMappedChecker so a panic-time stack trace
// knows when it is no longer safe to follow the next saved-ebp link.
func pageMapped(addr uintptr) bool {
	_, err := Translate(addr)
	return err == nil
}

// Init installs the page-fault and general-protection-fault handlers. It
// must run after kernel/irq has installed the IDT.
func Init() *kernel.Error {
	handleExceptionWithCodeFn(irq.PageFaultException, pageFaultHandler)
	handleExceptionWithCodeFn(irq.GPFException, generalProtectionFaultHandler)
	kernel.SetPageMappedChecker(pageMapped)
	return nil
}
