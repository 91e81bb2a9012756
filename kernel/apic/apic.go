// Package apic discovers and programs the local APIC and I/O APIC(s)
// described by the ACPI MADT, replacing the legacy 8259 PIC as the
// interrupt router once SMP is in play. Discovery walks the BIOS RSDP
// pointer to the RSDT and from there to the "APIC" table; bring-up enables
// the calling CPU's local APIC and remaps every legacy ISA IRQ into the I/O
// APIC's redirection table using the same vector numbers the PIC path
// would have used, so kernel/irq's handler table does not need to know
// which router is active.
package apic

import (
	"github.com/kernelforge/corekernel/kernel"
	"github.com/kernelforge/corekernel/kernel/config"
	"github.com/kernelforge/corekernel/kernel/irq"
	"github.com/kernelforge/corekernel/kernel/mem/pmm"
	"github.com/kernelforge/corekernel/kernel/mem/vmm"
)

// Controller bundles the discovered topology with live register windows
// onto the boot CPU's local APIC and the first I/O APIC.
type Controller struct {
	topo   Topology
	lapic  *LAPIC
	ioapic *IOAPIC
}

var errNoRSDP = &kernel.Error{Module: "apic", Message: "no ACPI RSDP found"}
var errNoMADT = &kernel.Error{Module: "apic", Message: "no MADT in RSDT"}
var errNoIOAPIC = &kernel.Error{Module: "apic", Message: "MADT lists no I/O APIC"}

// Available reports whether an ACPI RSDP could be located; kmain falls back
// to the legacy PIC when this is false instead of calling Init.
func Available() bool {
	_, ok := findRSDP()
	return ok
}

// Discover locates the RSDP, parses the MADT it points to, and returns the
// resulting topology without touching any hardware register.
func Discover() (Topology, *kernel.Error) {
	ptr, ok := findRSDP()
	if !ok {
		return Topology{}, errNoRSDP
	}
	m, ok := findMADT(uintptr(ptr.rsdtAddr))
	if !ok {
		return Topology{}, errNoMADT
	}
	return parseMADT(m), nil
}

// Init discovers the MADT, enables the boot CPU's local APIC, and remaps
// every legacy ISA IRQ (0-15) into the first I/O APIC's redirection table so
// each lands on the same vector kernel/irq already associates with it
// (irq.IRQBase+line), honouring any MADT interrupt-source override. The
// returned Controller is kept around by kmain so kernel/smp can read back
// the discovered AP list and send IPIs through the same LAPIC.
func Init() (*Controller, *kernel.Error) {
	topo, err := Discover()
	if err != nil {
		return nil, err
	}
	if len(topo.IOAPICs) == 0 {
		return nil, errNoIOAPIC
	}

	lapicBase := topo.LocalAPICAddr
	if lapicBase == 0 {
		lapicBase = uint32(config.DefaultLAPICBase)
	}

	// Identity-map the LAPIC and first I/O APIC MMIO pages (uncached) so
	// their registers can be reached at their physical addresses.
	for _, phys := range []uint32{lapicBase, topo.IOAPICs[0].Address} {
		page := vmm.PageFromAddress(uintptr(phys))
		if err := vmm.Map(page, pmm.FrameFromAddress(uintptr(phys)), vmm.FlagRW|vmm.FlagCacheDisable); err != nil {
			return nil, err
		}
	}

	c := &Controller{
		topo:   topo,
		lapic:  newLAPIC(lapicBase),
		ioapic: newIOAPIC(topo.IOAPICs[0].Address, topo.IOAPICs[0].GSIBase),
	}
	c.lapic.Enable()

	bspID := c.lapic.ID()
	for line := uint8(0); line < 16; line++ {
		gsi, _ := topo.overrideFor(line)
		gsiLocal := gsi - topo.IOAPICs[0].GSIBase

		c.ioapic.SetRedirection(gsiLocal, RedirectionEntry{
			Vector:     uint8(irq.IRQBase) + line,
			DestAPICID: bspID,
		})
	}

	irq.SetLAPICEOIHandler(c.lapic.EOI)
	return c, nil
}

// LAPIC returns the boot CPU's local APIC register window, the one every AP
// startup IPI is sent from.
func (c *Controller) LAPIC() *LAPIC { return c.lapic }

// APs returns every enabled local APIC entry in the MADT other than the
// calling (boot) CPU's own.
func (c *Controller) APs() []LocalAPICEntry {
	bspID := c.lapic.ID()
	aps := make([]LocalAPICEntry, 0, len(c.topo.LocalAPICs))
	for _, e := range c.topo.LocalAPICs {
		if e.Enabled && e.APICID != bspID {
			aps = append(aps, e)
		}
	}
	return aps
}
