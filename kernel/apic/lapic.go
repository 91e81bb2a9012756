package apic

import (
	"unsafe"

	"github.com/kernelforge/corekernel/kernel/cpu"
)

// Local APIC register offsets (relative to its MMIO base), the subset this
// kernel touches.
const (
	regID               = 0x020
	regEOI              = 0x0B0
	regSpuriousVector   = 0x0F0
	regICRLow           = 0x300
	regICRHigh          = 0x310
	regLVTTimer         = 0x320
	regTimerInitCount   = 0x380
	regTimerCurrentCount = 0x390
	regTimerDivide      = 0x3E0
)

const (
	msrAPICBase       = 0x1B
	apicBaseEnableBit = 1 << 11

	spuriousEnableBit = 1 << 8

	// SpuriousVector is the vector the LAPIC raises for spurious
	// interrupts; it must not collide with any real IRQ or exception
	// vector.
	SpuriousVector uint8 = 0xFF
)

// LAPIC is a thin MMIO register window onto one CPU's local APIC.
type LAPIC struct {
	base uintptr
}

var rdmsrFn = cpu.Rdmsr
var wrmsrFn = cpu.Wrmsr

func (l *LAPIC) reg(offset uintptr) *uint32 {
	return (*uint32)(unsafe.Pointer(l.base + offset))
}

// Read32 reads a local APIC register.
func (l *LAPIC) Read32(offset uintptr) uint32 { return *l.reg(offset) }

// Write32 writes a local APIC register.
func (l *LAPIC) Write32(offset uintptr, value uint32) { *l.reg(offset) = value }

// ID returns this CPU's local APIC ID.
func (l *LAPIC) ID() uint8 { return uint8(l.Read32(regID) >> 24) }

// EOI signals end-of-interrupt to the local APIC; every interrupt routed
// through the IOAPIC/LAPIC path (as opposed to the legacy 8259) must be
// acknowledged this way.
func (l *LAPIC) EOI() { l.Write32(regEOI, 0) }

// Enable sets IA32_APIC_BASE's global-enable bit and turns on the local
// APIC's software-enable bit in the Spurious Interrupt Vector Register.
func (l *LAPIC) Enable() {
	base := rdmsrFn(msrAPICBase)
	base |= apicBaseEnableBit
	wrmsrFn(msrAPICBase, base)

	l.Write32(regSpuriousVector, uint32(SpuriousVector)|spuriousEnableBit)
}

// ICR (Interrupt Command Register) delivery mode and level bits used to
// assemble INIT/Startup IPIs. Only the subset this kernel's AP bring-up
// path needs is named here.
const (
	icrDeliveryInit    = 0x5 << 8
	icrDeliveryStartup = 0x6 << 8
	icrLevelAssert     = 1 << 14
	icrTriggerLevel    = 1 << 15
	icrDeliveryPending = 1 << 12
)

// sendIPI writes the destination APIC ID into the high half of the ICR and
// the command into the low half; writing the low half is what actually
// dispatches the interprocessor interrupt.
func (l *LAPIC) sendIPI(destAPICID uint8, command uint32) {
	l.Write32(regICRHigh, uint32(destAPICID)<<24)
	l.Write32(regICRLow, command)
	for l.Read32(regICRLow)&icrDeliveryPending != 0 {
	}
}

// SendInitIPI asserts INIT on the target AP, the first step of the
// universal startup algorithm: it resets the AP's execution state and
// parks it waiting for a Startup IPI.
func (l *LAPIC) SendInitIPI(destAPICID uint8) {
	l.sendIPI(destAPICID, icrDeliveryInit|icrLevelAssert|icrTriggerLevel)
}

// SendStartupIPI sends a Startup IPI (SIPI) pointing the target AP at the
// real-mode trampoline loaded at vector*0x1000. The Intel MP spec calls for
// this to be sent twice with a short delay in between; callers are expected
// to do the retry, since the right delay depends on the timer they have
// available.
func (l *LAPIC) SendStartupIPI(destAPICID, vector uint8) {
	l.sendIPI(destAPICID, icrDeliveryStartup|icrLevelAssert|uint32(vector))
}

// newLAPIC wraps the register window at the given physical MMIO base and
// accesses it at that same address; Init identity-maps the page before
// calling it.
func newLAPIC(physBase uint32) *LAPIC {
	return &LAPIC{base: uintptr(physBase)}
}
