package smp

import "github.com/kernelforge/corekernel/kernel/cpu"

// apMain is the first ordinary Go code an AP runs, called from
// apTrampolineEntry (ap_386.s) once the trampoline has handed it a live
// stack in the kernel's own address space. Per spec.md 4.9, bring-up ends
// here: FPU init, mark the core ready, pause forever. Open question (c)
// in spec.md notes these cores never join the scheduler -- they are booted
// for presence only.
func apMain() {
	cpu.InitFPU()
	markAPReady()
	for {
		cpu.Halt()
	}
}

// markAPReady sets the flag the BSP's StartAPs polls (apReady, in
// trampoline.go) to detect that this AP has completed its handoff.
func markAPReady() {
	setAPReady()
}
