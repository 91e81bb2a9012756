package module

import (
	"hash/crc32"
	"testing"
	"unsafe"
)

// buildModule assembles a well-formed module buffer with a correct CRC
// trailer, the way a bootloader-provided module would look in memory.
func buildModule(t *testing.T, name string, typ Type, payload []byte) []byte {
	t.Helper()

	buf := make([]byte, HeaderSize+len(payload)+4)
	putU32(buf, offMagic, Magic)
	copy(buf[offName:offName+nameLen], name)
	buf[offVersion] = Version
	buf[offType] = byte(typ)
	putU32(buf, offDataSize, uint32(len(payload)))
	copy(buf[HeaderSize:], payload)

	crc := crc32.ChecksumIEEE(buf[:HeaderSize+len(payload)])
	putU32(buf, HeaderSize+len(payload), crc)
	return buf
}

func putU32(buf []byte, off int, v uint32) {
	buf[off] = byte(v)
	buf[off+1] = byte(v >> 8)
	buf[off+2] = byte(v >> 16)
	buf[off+3] = byte(v >> 24)
}

func baseOf(buf []byte) uintptr {
	return uintptr(unsafe.Pointer(&buf[0]))
}

func resetRegistry(t *testing.T) {
	t.Helper()
	orig := registry
	t.Cleanup(func() { registry = orig })
	registry = map[string]*Module{}
}

func TestLoadAcceptsWellFormedModule(t *testing.T) {
	resetRegistry(t)
	buf := buildModule(t, "debug", DebugSymbolsType, []byte("payload-bytes"))

	result, mod := Load(baseOf(buf), uint32(len(buf)))
	if result != Success {
		t.Fatalf("expected Success, got %v", result)
	}
	if mod.Name != "debug" {
		t.Fatalf("expected name 'debug', got %q", mod.Name)
	}
	if len(mod.Data) != len("payload-bytes") {
		t.Fatalf("expected payload length %d, got %d", len("payload-bytes"), len(mod.Data))
	}
	if ByName("debug") != mod {
		t.Fatal("expected Load to register the module under its name")
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	resetRegistry(t)
	buf := buildModule(t, "x", 0, nil)
	putU32(buf, offMagic, 0xdeadbeef)

	result, mod := Load(baseOf(buf), uint32(len(buf)))
	if result != InvalidMagic || mod != nil {
		t.Fatalf("expected InvalidMagic, got %v", result)
	}
}

func TestLoadRejectsUnsupportedVersion(t *testing.T) {
	resetRegistry(t)
	buf := buildModule(t, "x", 0, nil)
	buf[offVersion] = Version + 1

	result, _ := Load(baseOf(buf), uint32(len(buf)))
	if result != UnsupportedVersion {
		t.Fatalf("expected UnsupportedVersion, got %v", result)
	}
}

func TestLoadRejectsShortBuffer(t *testing.T) {
	resetRegistry(t)
	buf := buildModule(t, "x", 0, []byte("hello"))

	result, _ := Load(baseOf(buf), uint32(len(buf)-1))
	if result != InvalidSize {
		t.Fatalf("expected InvalidSize, got %v", result)
	}
}

func TestLoadRejectsBadCRC(t *testing.T) {
	resetRegistry(t)
	buf := buildModule(t, "x", 0, []byte("hello"))
	buf[len(buf)-1] ^= 0xFF

	result, _ := Load(baseOf(buf), uint32(len(buf)))
	if result != InvalidCRC {
		t.Fatalf("expected InvalidCRC, got %v", result)
	}
}

func TestDebugSymbolsParsingAndNearestLookup(t *testing.T) {
	resetRegistry(t)

	strtab := []byte("kmain\x00vmm_map\x00")
	payload := make([]byte, dsHeaderSize+2*dsSymbolSize+len(strtab))
	putU32(payload, dsOffCount, 2)
	putU32(payload, dsOffStrtabOffset, uint32(dsHeaderSize+2*dsSymbolSize))

	sym0 := dsHeaderSize
	putU32(payload, sym0+dsSymOffAddress, 0x1000)
	putU32(payload, sym0+dsSymOffNameOffset, 0)

	sym1 := dsHeaderSize + dsSymbolSize
	putU32(payload, sym1+dsSymOffAddress, 0x2000)
	putU32(payload, sym1+dsSymOffNameOffset, uint32(len("kmain\x00")))

	copy(payload[dsHeaderSize+2*dsSymbolSize:], strtab)

	buf := buildModule(t, "debug", DebugSymbolsType, payload)
	result, mod := Load(baseOf(buf), uint32(len(buf)))
	if result != Success {
		t.Fatalf("expected Success, got %v", result)
	}
	if mod.DebugSym == nil {
		t.Fatal("expected DebugSym to be populated for a DebugSymbolsType module")
	}

	name, ok := mod.DebugSym.LookupSymbol(0x1010)
	if !ok || name != "kmain" {
		t.Fatalf("expected 'kmain' near 0x1010, got %q (ok=%v)", name, ok)
	}

	name, ok = mod.DebugSym.LookupSymbol(0x2500)
	if !ok || name != "vmm_map" {
		t.Fatalf("expected 'vmm_map' near 0x2500, got %q (ok=%v)", name, ok)
	}

	if _, ok := mod.DebugSym.LookupSymbol(0x5000); ok {
		t.Fatal("expected no symbol within range of 0x5000")
	}
}
