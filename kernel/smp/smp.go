package smp

import (
	"github.com/kernelforge/corekernel/kernel"
	"github.com/kernelforge/corekernel/kernel/apic"
	"github.com/kernelforge/corekernel/kernel/config"
	"github.com/kernelforge/corekernel/kernel/gdt"
	"github.com/kernelforge/corekernel/kernel/irq"
	"github.com/kernelforge/corekernel/kernel/kfmt/early"
	"github.com/kernelforge/corekernel/kernel/pit"
)

// maxSIPIAttempts bounds the INIT/SIPI retry loop spec.md 4.9 describes
// ("retry up to three times until the AP sets its initialized flag").
const maxSIPIAttempts = 3

// sipiDelayUs is the settle time between an INIT IPI and a SIPI, and
// between retries, per spec.md 4.9's "~10 ms delay".
const sipiDelayUs = 10000

// stackAllocatorFn backs a new AP's kernel stack. kmain wires this to a
// live heap's Alloc method, the same registration-by-function pattern
// kernel/sched uses for SetAllocator and kernel/vmm uses for
// SetFrameAllocator.
type stackAllocatorFn func(size uint32) (uintptr, *kernel.Error)

// waitMicrosFn is an indirection over pit.WaitMicros so tests can exercise
// StartAPs without a live PIT tick source.
var waitMicrosFn = pit.WaitMicros

// StartAPs wakes every non-BSP LAPIC the ACPI MADT enumerated, following
// the universal startup algorithm in spec.md 4.9: install the shared
// trampoline once, then for each AP allocate a stack, publish it, and
// drive INIT-IPI / SIPI / SIPI with retries until apReady() observes the
// core has reached apMain.
//
// cr3 is the page directory physical address every AP should load (the
// BSP's own, since spec.md's Non-goals rule out a per-task or per-CPU
// address space). It must be called after kernel/gdt and kernel/irq have
// both completed Init, since it reads their descriptor table pointers.
func StartAPs(ctl *apic.Controller, cr3 uintptr, allocStack stackAllocatorFn) *kernel.Error {
	lapic := ctl.LAPIC()
	if lapic == nil {
		return nil
	}

	entry := apTrampolineEntryAddr()
	installTrampoline(gdt.PointerAddr(), irq.IDTPointerAddr(), cr3, entry)

	started := 0
	for _, ap := range ctl.APs() {
		stackTop, err := allocAPStack(allocStack)
		if err != nil {
			early.Printf("[smp] AP %d: failed to allocate stack\n", ap.APICID)
			continue
		}
		setStackTop(stackTop)
		resetAPReady()

		if bringUp(lapic, ap.APICID) {
			started++
			early.Printf("[smp] AP %d online\n", ap.APICID)
		} else {
			early.Printf("[smp] AP %d warm-start timed out\n", ap.APICID)
		}
	}

	early.Printf("[smp] %d application processor(s) started\n", started)
	return nil
}

func allocAPStack(allocStack stackAllocatorFn) (uintptr, *kernel.Error) {
	base, err := allocStack(uint32(config.APStackSize))
	if err != nil {
		return 0, err
	}
	return base + uintptr(config.APStackSize), nil
}

// bringUp drives the INIT/SIPI/SIPI sequence for a single AP, retrying up
// to maxSIPIAttempts times and polling apReady() between attempts.
func bringUp(lapic *apic.LAPIC, apicID uint8) bool {
	lapic.SendInitIPI(apicID)
	waitMicrosFn(sipiDelayUs)

	for attempt := 0; attempt < maxSIPIAttempts; attempt++ {
		lapic.SendStartupIPI(apicID, config.APTrampolineVector)
		waitMicrosFn(sipiDelayUs)

		if apReady() {
			return true
		}
	}
	return apReady()
}
