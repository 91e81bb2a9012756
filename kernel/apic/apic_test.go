package apic

import (
	"testing"
	"unsafe"
)

// buildMADT lays out a synthetic MADT in ordinary Go memory: one enabled
// local APIC, one I/O APIC at GSI base 0, and a single interrupt-source
// override redirecting ISA IRQ0 to GSI2 -- the textbook PIT-to-IOAPIC
// remap every PC chipset carries.
func buildMADT(t *testing.T) *madt {
	t.Helper()

	type layout struct {
		m          madt
		localAPIC  [4]byte // type=0 len=8 acpiID apicID | flags(4)
		localFlags uint32
		ioAPIC     [4]byte // type=1 len=12 id _ | addr(4) gsiBase(4)
		ioAddr     uint32
		ioGSIBase  uint32
		override   [4]byte // type=2 len=10 bus source | gsi(4) flags(2)
		overrideGSI uint32
		overrideFlags uint16
		pad        uint16
	}

	l := &layout{}
	l.localAPIC = [4]byte{entryLocalAPIC, 8, 0, 1}
	l.localFlags = 1
	l.ioAPIC = [4]byte{entryIOAPIC, 12, 5, 0}
	l.ioAddr = 0xFEC00000
	l.ioGSIBase = 0
	l.override = [4]byte{entryIntSrcOverride, 10, 0, 0}
	l.overrideGSI = 2
	l.overrideFlags = 0

	l.m.localAPICAddr = 0xFEE00000
	l.m.length = uint32(unsafe.Sizeof(madt{}) + 8 + 4 + 12 + 10)
	copy(l.m.signature[:], "APIC")

	return &l.m
}

func TestParseMADTFindsTopology(t *testing.T) {
	m := buildMADT(t)
	topo := parseMADT(m)

	if len(topo.LocalAPICs) != 1 || !topo.LocalAPICs[0].Enabled || topo.LocalAPICs[0].APICID != 1 {
		t.Fatalf("unexpected local APIC list: %+v", topo.LocalAPICs)
	}
	if len(topo.IOAPICs) != 1 || topo.IOAPICs[0].Address != 0xFEC00000 {
		t.Fatalf("unexpected I/O APIC list: %+v", topo.IOAPICs)
	}
	if len(topo.Overrides) != 1 || topo.Overrides[0].GSI != 2 {
		t.Fatalf("unexpected override list: %+v", topo.Overrides)
	}

	gsi, overridden := topo.overrideFor(0)
	if !overridden || gsi != 2 {
		t.Fatalf("expected IRQ0 overridden to GSI2, got gsi=%d overridden=%v", gsi, overridden)
	}
	if gsi, overridden := topo.overrideFor(5); overridden || gsi != 5 {
		t.Fatalf("expected IRQ5 to fall back to identity GSI, got gsi=%d overridden=%v", gsi, overridden)
	}
}

// TestRedirectionEncodingForPITOverride pins down the exact register index
// and low/high dword values this kernel computes for the textbook
// bus=0,source=0,gsi=2 PIT override, so the IOAPIC programming math cannot
// silently drift.
func TestRedirectionEncodingForPITOverride(t *testing.T) {
	regLow, regHigh := redirectionRegisters(2)
	if regLow != 20 || regHigh != 21 {
		t.Fatalf("expected redirection registers (20,21) for gsiLocal=2, got (%d,%d)", regLow, regHigh)
	}

	low, high := encodeRedirection(RedirectionEntry{Vector: 0x20, DestAPICID: 7})
	if low != 0x00000020 {
		t.Fatalf("expected low dword 0x20, got 0x%x", low)
	}
	if high != uint32(7)<<24 {
		t.Fatalf("expected high dword with dest APIC id 7, got 0x%x", high)
	}
}
