// Package pic drives the legacy 8259A Programmable Interrupt Controller
// pair. Even on a system with a working APIC, the PIC must still be
// reprogrammed (or fully masked) during boot because it otherwise raises
// IRQs on vectors 8-15, which collide head-on with CPU exception vectors.
package pic

import "github.com/kernelforge/corekernel/kernel/cpu"

const (
	master          = 0x20
	masterCommand   = master
	masterData      = master + 1
	slave           = 0xA0
	slaveCommand    = slave
	slaveData       = slave + 1

	icw1Init     = 0x10
	icw1ICW4     = 0x01
	icw4_8086    = 0x01

	cmdEOI = 0x20

	// MasterOffset/SlaveOffset are the vector numbers IRQ0 and IRQ8 are
	// remapped to so they land safely above the CPU exception range.
	MasterOffset uint8 = 0x20
	SlaveOffset  uint8 = 0x28

	cascadeIRQ = 2
)

var (
	inbFn  = cpu.Inb
	outbFn = cpu.Outb
)

// Remap reprograms both PICs to raise IRQ0-7 on vectors MasterOffset..+7 and
// IRQ8-15 on vectors SlaveOffset..+7, preserving whatever IRQ lines were
// already masked before the call.
func Remap() {
	savedMasterMask := inbFn(masterData)
	savedSlaveMask := inbFn(slaveData)

	outbFn(masterCommand, icw1Init|icw1ICW4)
	ioWait()
	outbFn(slaveCommand, icw1Init|icw1ICW4)
	ioWait()

	outbFn(masterData, MasterOffset)
	ioWait()
	outbFn(slaveData, SlaveOffset)
	ioWait()

	outbFn(masterData, 1<<cascadeIRQ)
	ioWait()
	outbFn(slaveData, cascadeIRQ)
	ioWait()

	outbFn(masterData, icw4_8086)
	ioWait()
	outbFn(slaveData, icw4_8086)
	ioWait()

	outbFn(masterData, savedMasterMask)
	outbFn(slaveData, savedSlaveMask)
}

// SendEOI acknowledges the interrupt on IRQ line irqLine. Interrupts
// forwarded by the slave PIC (IRQ8-15) require an EOI to both controllers,
// since the slave's output is itself wired to the master's cascade input.
func SendEOI(irqLine uint8) {
	if irqLine >= 8 {
		outbFn(slaveCommand, cmdEOI)
	}
	outbFn(masterCommand, cmdEOI)
}

// Mask disables a single IRQ line at the PIC level.
func Mask(irqLine uint8) {
	port := uint16(masterData)
	line := irqLine
	if irqLine >= 8 {
		port = slaveData
		line -= 8
	}
	outbFn(port, inbFn(port)|(1<<line))
}

// Unmask enables a single IRQ line at the PIC level.
func Unmask(irqLine uint8) {
	port := uint16(masterData)
	line := irqLine
	if irqLine >= 8 {
		port = slaveData
		line -= 8
	}
	outbFn(port, inbFn(port)&^(1<<line))
}

// Disable masks every IRQ line on both controllers; used before handing
// interrupt routing over to the APIC/IOAPIC entirely.
func Disable() {
	outbFn(masterData, 0xFF)
	outbFn(slaveData, 0xFF)
}

// ioWait burns a handful of cycles by writing to an unused port (0x80 is
// conventionally used for POST codes and ignored by real hardware), giving
// the PIC time to process each ICW before the next one arrives -- some
// older chips misbehave without it.
func ioWait() {
	outbFn(0x80, 0)
}
