package apic

import "unsafe"

// MADT entry type identifiers, per the ACPI specification's Multiple APIC
// Description Table subtable list. Only the subset this kernel acts on is
// named; anything else is skipped during the walk.
const (
	entryLocalAPIC        = 0
	entryIOAPIC           = 1
	entryIntSrcOverride   = 2
	entryNMI              = 4
	entryLocalAPICOverride = 5
)

// madt is the MADT's fixed header; it is immediately followed by a
// variable-length stream of (type, length, ...) subtables.
type madt struct {
	sdtHeader
	localAPICAddr uint32
	flags         uint32
}

// LocalAPICEntry describes one logical CPU's LAPIC as enumerated in the MADT.
type LocalAPICEntry struct {
	ProcessorID uint8
	APICID      uint8
	Enabled     bool
}

// IOAPICEntry describes one I/O APIC and the Global System Interrupt range
// it owns.
type IOAPICEntry struct {
	ID           uint8
	Address      uint32
	GSIBase      uint32
}

// IntSrcOverrideEntry records a legacy ISA IRQ that the MADT has remapped to
// a different Global System Interrupt, e.g. the common "IRQ0 -> GSI2" PIT
// override.
type IntSrcOverrideEntry struct {
	Bus        uint8
	Source     uint8
	GSI        uint32
	Flags      uint16
}

// Topology is the result of walking a MADT: every CPU-local APIC, every I/O
// APIC, and every legacy IRQ override it described.
type Topology struct {
	LocalAPICAddr uint32
	LocalAPICs    []LocalAPICEntry
	IOAPICs       []IOAPICEntry
	Overrides     []IntSrcOverrideEntry
}

// parseMADT walks the subtable stream following the MADT header, dispatching
// on each entry's type byte.
func parseMADT(m *madt) Topology {
	topo := Topology{LocalAPICAddr: m.localAPICAddr}

	base := uintptr(unsafe.Pointer(m)) + unsafe.Sizeof(madt{})
	end := uintptr(unsafe.Pointer(m)) + uintptr(m.length)

	for p := base; p < end; {
		entryType := *(*uint8)(unsafe.Pointer(p))
		entryLen := *(*uint8)(unsafe.Pointer(p + 1))
		if entryLen == 0 {
			break
		}

		switch entryType {
		case entryLocalAPIC:
			topo.LocalAPICs = append(topo.LocalAPICs, LocalAPICEntry{
				ProcessorID: *(*uint8)(unsafe.Pointer(p + 2)),
				APICID:      *(*uint8)(unsafe.Pointer(p + 3)),
				Enabled:     *(*uint32)(unsafe.Pointer(p + 4))&0x1 != 0,
			})
		case entryIOAPIC:
			topo.IOAPICs = append(topo.IOAPICs, IOAPICEntry{
				ID:      *(*uint8)(unsafe.Pointer(p + 2)),
				Address: *(*uint32)(unsafe.Pointer(p + 4)),
				GSIBase: *(*uint32)(unsafe.Pointer(p + 8)),
			})
		case entryIntSrcOverride:
			topo.Overrides = append(topo.Overrides, IntSrcOverrideEntry{
				Bus:    *(*uint8)(unsafe.Pointer(p + 2)),
				Source: *(*uint8)(unsafe.Pointer(p + 3)),
				GSI:    *(*uint32)(unsafe.Pointer(p + 4)),
				Flags:  *(*uint16)(unsafe.Pointer(p + 8)),
			})
		case entryLocalAPICOverride:
			topo.LocalAPICAddr = uint32(*(*uint64)(unsafe.Pointer(p + 4)))
		case entryNMI:
			// NMI delivery lines are not routed by this kernel; no SMI/NMI
			// watchdog is in scope.
		}

		p += uintptr(entryLen)
	}

	return topo
}

// overrideFor returns the GSI a legacy ISA IRQ is redirected to, or the
// identity mapping (irq == gsi) if the MADT carries no override for it.
func (t Topology) overrideFor(irq uint8) (gsi uint32, found bool) {
	for _, o := range t.Overrides {
		if o.Source == irq {
			return o.GSI, true
		}
	}
	return uint32(irq), false
}
