package sched

import (
	"unsafe"

	"github.com/kernelforge/corekernel/kernel"
	"github.com/kernelforge/corekernel/kernel/gdt"
	"github.com/kernelforge/corekernel/kernel/irq"
	"github.com/kernelforge/corekernel/kernel/mem"
)

// eflagsIF is the EFLAGS value every new task starts with: interrupt flag
// set, everything else clear, matching spec.md 4.8's `eflags = 0x202`.
const eflagsIF = 0x202

// State describes where a Task sits in the scheduler's lifecycle.
type State int

const (
	// Ready tasks are eligible to be picked by the next schedule().
	Ready State = iota
	// Running is held by exactly one task: whatever tasks[currentIndex] is.
	Running
	// Blocked tasks are skipped by schedule() until something calls Unblock.
	Blocked
	// Terminated tasks are left in the task vector (see spec.md 4.8's open
	// question on stack reclamation) but are never picked again.
	Terminated
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// terminationSentinelEAX is the value the trampoline leaves in EAX after its
// entry function returns; schedule() recognises it (together with EBP==0)
// as "this task's entry point returned" and retires the task.
const terminationSentinelEAX = 0xDEADDEAD

// savedFrameSize is the size, in bytes, of the irq.Regs+irq.Frame pair
// commonStub expects at the address a SwitchFunc returns: the same binary
// layout PUSHAL plus the vector/error-code/eip/cs/eflags sequence produce on
// a live interrupt stack (see kernel/irq/stubs_386.s). Building that layout
// once, up front, is what lets a brand new task be "resumed" by the very
// same assembly path that resumes a preempted one.
const savedFrameSize = unsafe.Sizeof(irq.Regs{}) + unsafe.Sizeof(irq.Frame{})

// DefaultStackSize is used by CreateTask when the caller passes 0.
const DefaultStackSize = mem.Size(4096)

// Task is one schedulable unit of execution. All tasks share the kernel's
// single address space (spec.md's Non-goals rule out a per-task address
// space entirely): a Task is really just a kernel stack plus the bookkeeping
// needed to save and restore it.
type Task struct {
	id        uint32
	name      string
	stackBase uintptr
	stackSize mem.Size
	// stackPtr holds, for a non-running task, the address of its saved
	// irq.Regs/irq.Frame pair -- either the bootstrap frame built by
	// newTask (if it has never run yet) or the address schedule() was
	// invoked with the last time this task was preempted.
	stackPtr uintptr
	state    State
	entry    uintptr
}

// ID returns the task's scheduler-assigned identifier.
func (t *Task) ID() uint32 { return t.id }

// Name returns the task's human-readable label.
func (t *Task) Name() string { return t.name }

// State returns the task's current lifecycle state.
func (t *Task) State() State { return t.state }

// allocatorFn is the function CreateTask uses to back a new task's stack.
// It is wired to a live heap's Alloc method through SetAllocator, which
// kmain calls before sched.Init, the same
// registration-by-function-variable pattern kernel/vmm uses for its frame
// allocator.
type allocatorFn func(size uint32) (uintptr, *kernel.Error)

var errNoAllocator = &kernel.Error{Module: "sched", Message: "no stack allocator registered"}

// newTask allocates a stack for entry and pre-populates the bootstrap frame
// at its top so that the first time schedule() resumes this task, the
// assembly path lands in taskTrampoline with eax holding entry and ebx
// holding the real (post-bootstrap-frame) stack top -- exactly the contents
// spec.md 4.8 describes, expressed as a stack-switch instead of an
// in-place context overwrite (see DESIGN.md's note on kernel/sched).
func newTask(id uint32, name string, entry uintptr, stackSize mem.Size, alloc allocatorFn) (*Task, *kernel.Error) {
	if stackSize == 0 {
		stackSize = DefaultStackSize
	}
	if alloc == nil {
		return nil, errNoAllocator
	}

	base, err := alloc(uint32(stackSize))
	if err != nil {
		return nil, err
	}

	stackTop := base + uintptr(stackSize)
	frameAddr := stackTop - uintptr(savedFrameSize)

	regs := (*irq.Regs)(unsafe.Pointer(frameAddr))
	*regs = irq.Regs{EAX: uint32(entry), EBX: uint32(stackTop), EBP: 0}

	frame := (*irq.Frame)(unsafe.Pointer(frameAddr + unsafe.Sizeof(irq.Regs{})))
	*frame = irq.Frame{
		Vector:    0,
		ErrorCode: 0,
		EIP:       uint32(taskTrampolineAddrFn()),
		CS:        gdt.KernelCodeSelector,
		EFlags:    eflagsIF,
	}

	return &Task{
		id:        id,
		name:      name,
		stackBase: base,
		stackSize: stackSize,
		stackPtr:  frameAddr,
		state:     Ready,
		entry:     entry,
	}, nil
}
