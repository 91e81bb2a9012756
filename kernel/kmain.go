package kernel

import (
	"reflect"

	"github.com/kernelforge/corekernel/kernel/apic"
	"github.com/kernelforge/corekernel/kernel/config"
	"github.com/kernelforge/corekernel/kernel/cpu"
	"github.com/kernelforge/corekernel/kernel/gdt"
	"github.com/kernelforge/corekernel/kernel/hal"
	"github.com/kernelforge/corekernel/kernel/heap"
	"github.com/kernelforge/corekernel/kernel/irq"
	"github.com/kernelforge/corekernel/kernel/kfmt/early"
	"github.com/kernelforge/corekernel/kernel/mem/pmm"
	"github.com/kernelforge/corekernel/kernel/mem/vmm"
	"github.com/kernelforge/corekernel/kernel/module"
	"github.com/kernelforge/corekernel/kernel/multiboot"
	"github.com/kernelforge/corekernel/kernel/pic"
	"github.com/kernelforge/corekernel/kernel/pit"
	"github.com/kernelforge/corekernel/kernel/sched"
	"github.com/kernelforge/corekernel/kernel/smp"
)

var errKmainReturned = &Error{Module: "kmain", Message: "Kmain returned"}

// kernelHeap backs sched.SetAllocator's stack allocations and smp's per-AP
// stacks, in addition to ordinary kernel allocations; it is a package
// variable rather than a local so the "kernel" task's entry point
// (runSystem, below) can reach it after Kmain itself has handed off.
var kernelHeap *heap.Heap

// apicController is retained so runSystem can hand it to smp.StartAPs once
// the scheduler's kernel task is running and the PIT is ticking (AP
// bring-up's INIT/SIPI delays are paced off pit.WaitMicros).
var apicController *apic.Controller

// Kmain is the only Go symbol visible (exported) from the rt0 initialization
// code. It is invoked after rt0 has set up a minimal GDT and g0 stack,
// passing along the bootloader's multiboot info pointer and the kernel
// image's linked start/end addresses (needed by pmm.Init to reserve the
// kernel's own frames).
//
// Kmain brings the boot CPU from real-mode handoff to a fully paged,
// interrupt-driven, multitasking environment (pmm -> vmm -> gdt -> idt ->
// pic/apic -> pit -> heap -> scheduler), then yields into the scheduler's
// "kernel" task, which finishes boot (module loading, SMP bring-up) and
// settles into the idle loop. Kmain itself is not expected to return.
//
//go:noinline
func Kmain(multibootInfoPtr, kernelStart, kernelEnd uintptr) {
	multiboot.SetInfoPtr(multibootInfoPtr)

	hal.InitTerminal()
	hal.ActiveTerminal.Clear()
	early.Printf("Starting corekernel\n")

	if err := pmm.Init(kernelStart, kernelEnd); err != nil {
		Panic(err)
	}
	vmm.SetFrameAllocator(pmm.AllocFrame)

	if err := gdt.Init(config.BootStackTop); err != nil {
		Panic(err)
	}
	if err := irq.Init(); err != nil {
		Panic(err)
	}
	if err := vmm.Init(); err != nil {
		Panic(err)
	}

	setUpInterruptRouting()

	pit.Init(config.DefaultTimeSliceMs * 1000)

	h, err := heap.New(config.HeapStart, config.HeapMinSize, config.HeapMaxSize,
		vmm.FlagPresent|vmm.FlagRW|vmm.FlagNoExecute)
	if err != nil {
		Panic(err)
	}
	kernelHeap = h

	sched.SetAllocator(kernelHeap.Alloc)
	if err := sched.Init(entryPointOf(runSystem), config.DefaultTimeSliceMs); err != nil {
		Panic(err)
	}

	cpu.EnableInterrupts()
	sched.Yield()

	// sched.Yield never returns in a correctly functioning kernel: the
	// "idle" and "kernel" tasks trade the CPU forever. Use kernel.Panic
	// instead of panic to prevent the compiler from treating it as
	// dead-code and eliminating it.
	Panic(errKmainReturned)
}

// setUpInterruptRouting prefers the APIC over the legacy PIC when an ACPI
// RSDP is present, falling back to the 8259 pair otherwise -- both leave
// kernel/irq's vector table (IRQBase..IRQBase+15) meaning the same thing
// regardless of which router is live underneath it.
func setUpInterruptRouting() {
	if apic.Available() {
		ctl, err := apic.Init()
		if err == nil {
			apicController = ctl
			early.Printf("[kmain] routing IRQs through the APIC\n")
			return
		}
		early.Printf("[kmain] APIC init failed, falling back to PIC\n")
	}

	pic.Remap()
	irq.SetPICEOIHandler(pic.SendEOI)
}

// runSystem is the entry point of the scheduler's "kernel" task (spec.md
// 4.8). Everything that can safely run with interrupts enabled and a
// working heap, but does not need to happen before the first context
// switch, lives here: module loading and SMP bring-up.
func runSystem() {
	module.LoadAll()

	if apicController != nil {
		if err := smp.StartAPs(apicController, vmm.ActivePageDirectory(), kernelHeap.Alloc); err != nil {
			early.Printf("[kmain] SMP bring-up failed: %s\n", err.Message)
		}
	}

	early.Printf("[kmain] boot complete\n")
	for {
		sched.Yield()
	}
}

// entryPointOf returns the address a niladic Go function starts at, the
// same reflect-based lookup kernel/sched's own Init uses for its idle task
// and kernel/irq's gate.go uses to populate the IDT from stubTable.
func entryPointOf(fn func()) uintptr {
	return reflect.ValueOf(fn).Pointer()
}
