package pic

import "testing"

func withFakePorts(t *testing.T) map[uint16]uint8 {
	t.Helper()
	ports := map[uint16]uint8{
		masterData: 0xFA, // arbitrary pre-existing mask to verify preservation
		slaveData:  0x3C,
	}

	origIn, origOut := inbFn, outbFn
	t.Cleanup(func() { inbFn, outbFn = origIn, origOut })

	inbFn = func(port uint16) uint8 { return ports[port] }
	outbFn = func(port uint16, v uint8) { ports[port] = v }

	return ports
}

func TestRemapPreservesMasksAndSetsOffsets(t *testing.T) {
	ports := withFakePorts(t)
	savedMaster, savedSlave := ports[masterData], ports[slaveData]

	Remap()

	if ports[masterData] != savedMaster {
		t.Fatalf("expected master mask preserved (%x), got %x", savedMaster, ports[masterData])
	}
	if ports[slaveData] != savedSlave {
		t.Fatalf("expected slave mask preserved (%x), got %x", savedSlave, ports[slaveData])
	}
}

func TestSendEOISignalsBothControllersForSlaveIRQ(t *testing.T) {
	ports := withFakePorts(t)

	SendEOI(10) // IRQ10 is on the slave controller

	if ports[masterCommand] != cmdEOI {
		t.Fatalf("expected master EOI, got %x", ports[masterCommand])
	}
	if ports[slaveCommand] != cmdEOI {
		t.Fatalf("expected slave EOI, got %x", ports[slaveCommand])
	}
}

func TestSendEOISignalsOnlyMasterForMasterIRQ(t *testing.T) {
	ports := withFakePorts(t)

	SendEOI(3)

	if ports[masterCommand] != cmdEOI {
		t.Fatalf("expected master EOI, got %x", ports[masterCommand])
	}
	if ports[slaveCommand] == cmdEOI {
		t.Fatal("did not expect a slave EOI for a master-only IRQ")
	}
}

func TestMaskAndUnmask(t *testing.T) {
	ports := withFakePorts(t)
	ports[masterData] = 0x00

	Mask(3)
	if ports[masterData]&(1<<3) == 0 {
		t.Fatal("expected IRQ3 bit to be set after Mask")
	}

	Unmask(3)
	if ports[masterData]&(1<<3) != 0 {
		t.Fatal("expected IRQ3 bit to be cleared after Unmask")
	}
}

func TestDisableMasksEverything(t *testing.T) {
	ports := withFakePorts(t)

	Disable()

	if ports[masterData] != 0xFF || ports[slaveData] != 0xFF {
		t.Fatalf("expected both PICs fully masked, got master=%x slave=%x", ports[masterData], ports[slaveData])
	}
}
