package sched

// taskTrampoline is the first code a brand-new task's bootstrap frame hands
// control to. It is entered via commonStub's IRETL, with eax holding the
// task's real entry point and ebx holding its stack top (see newTask in
// task.go). Its body lives in sched_386.s, following the same
// bodyless-Go-func convention kernel/gdt and kernel/irq use for anything
// that cannot be expressed as plain Go.
func taskTrampoline()

// taskTrampolineAddr returns the address taskTrampoline is linked at, so
// newTask can patch it into a fresh task's bootstrap frame as its EIP.
func taskTrampolineAddr() uintptr

// yieldAsm executes `int $33`, the scheduler's software yield vector
// (irq.YieldVector).
func yieldAsm()
