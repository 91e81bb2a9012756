// Package module decodes the boot modules a Multiboot loader hands the
// kernel alongside its image (spec.md 6, "Module format"): a small
// self-describing header, a payload, and a trailing CRC-32 over both. The
// CRC-32 *algorithm* is spec.md's explicit out-of-scope external
// collaborator (spec.md 1, "the CRC-32 checksum"); this package consumes it
// via the standard library's hash/crc32 rather than a hand-rolled routine
// (see DESIGN.md).
package module

import (
	"hash/crc32"
	"unsafe"

	"github.com/kernelforge/corekernel/kernel"
	"github.com/kernelforge/corekernel/kernel/kfmt/early"
	"github.com/kernelforge/corekernel/kernel/multiboot"
)

// Magic identifies a valid module header ("PPSO" read little-endian, per
// spec.md 6).
const Magic uint32 = 0x4F535050

// Version is the only module header version this kernel understands.
const Version uint8 = 1

// Type identifies the payload format a module carries.
type Type uint8

// DebugSymbols is the only module type this kernel knows how to interpret;
// anything else is stored as an opaque blob.
const DebugSymbolsType Type = 0

// wire layout offsets of ModuleHeader (magic uint32, name[32]byte, version
// uint8, type uint8, data_size uint32). A plain Go struct cannot be used to
// overlay this directly: the two single-byte fields (version, type)
// followed by a uint32 would pick up 2 bytes of compiler-inserted padding
// to align data_size, which the wire format does not have. Every accessor
// below therefore computes its own byte offset instead of relying on Go's
// struct layout, the one spot in this repo where the usual
// unsafe.Pointer-struct-overlay convention (see kernel/multiboot,
// kernel/apic/madt.go) does not apply cleanly.
const (
	offMagic    = 0
	offName     = 4
	nameLen     = 32
	offVersion  = offName + nameLen // 36
	offType     = offVersion + 1    // 37
	offDataSize = offType + 1       // 38 (NOT 4-byte aligned on the wire)
	HeaderSize  = offDataSize + 4   // 42
)

func readU32(base uintptr, off uintptr) uint32 {
	// Reads are unaligned by construction (see offDataSize); byte-at-a-time
	// assembly avoids relying on the CPU tolerating a misaligned 32-bit
	// load, which i386 does in practice but which the instruction set does
	// not guarantee.
	p := (*[4]byte)(unsafe.Pointer(base + off))
	return uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16 | uint32(p[3])<<24
}

func readU8(base, off uintptr) uint8 {
	return *(*uint8)(unsafe.Pointer(base + off))
}

// LoadResult enumerates the outcomes spec.md 6 defines for loading a
// module.
type LoadResult int

const (
	Success LoadResult = iota
	InvalidMagic
	UnsupportedVersion
	InvalidCRC
	InvalidSize
	AllocationFailed
)

// String implements fmt.Stringer.
func (r LoadResult) String() string {
	switch r {
	case Success:
		return "success"
	case InvalidMagic:
		return "invalid magic"
	case UnsupportedVersion:
		return "unsupported version"
	case InvalidCRC:
		return "invalid crc"
	case InvalidSize:
		return "invalid size"
	case AllocationFailed:
		return "allocation failed"
	default:
		return "unknown"
	}
}

// Module is a decoded boot module: the header fields plus a view onto its
// payload bytes in place (no copy -- module data already lives in memory
// the bootloader reserved for it).
type Module struct {
	Name     string
	Version  uint8
	Type     Type
	Data     []byte
	DebugSym *DebugSymbols // non-nil only for Type == DebugSymbolsType
}

var (
	registry = map[string]*Module{}

	errAllocation = &kernel.Error{Module: "module", Message: "module registry full"}
)

func trimName(raw []byte) string {
	for i, b := range raw {
		if b == 0 {
			return string(raw[:i])
		}
	}
	return string(raw)
}

// Load decodes and verifies the module whose raw bytes start at base and
// span size bytes, exactly mirroring the original C++
// KernelModuleRegistry::load: a size floor check, magic, version, a second
// size check against the header's declared data_size, and finally the CRC
// trailer.
func Load(base uintptr, size uint32) (LoadResult, *Module) {
	if size < uint32(HeaderSize)+4 {
		return InvalidSize, nil
	}

	if readU32(base, offMagic) != Magic {
		early.Printf("[module] invalid magic at %x\n", base)
		return InvalidMagic, nil
	}

	version := readU8(base, offVersion)
	if version != Version {
		early.Printf("[module] unsupported version %d\n", version)
		return UnsupportedVersion, nil
	}

	dataSize := readU32(base, offDataSize)
	expectedSize := uint32(HeaderSize) + dataSize + 4
	if size < expectedSize {
		early.Printf("[module] buffer too small (need %d, have %d)\n", expectedSize, size)
		return InvalidSize, nil
	}

	headerAndPayload := unsafe.Slice((*byte)(unsafe.Pointer(base)), HeaderSize+int(dataSize))
	storedCRC := readU32(base, uintptr(HeaderSize)+uintptr(dataSize))
	actualCRC := crc32.ChecksumIEEE(headerAndPayload)
	if actualCRC != storedCRC {
		early.Printf("[module] crc mismatch: expected %x, got %x\n", storedCRC, actualCRC)
		return InvalidCRC, nil
	}

	nameRaw := unsafe.Slice((*byte)(unsafe.Pointer(base+offName)), nameLen)
	mod := &Module{
		Name:    trimName(nameRaw),
		Version: version,
		Type:    Type(readU8(base, offType)),
		Data:    unsafe.Slice((*byte)(unsafe.Pointer(base+uintptr(HeaderSize))), dataSize),
	}

	if mod.Type == DebugSymbolsType {
		mod.DebugSym = parseDebugSymbols(mod.Data)
	}

	registry[mod.Name] = mod
	early.Printf("[module] loaded %s (%d bytes)\n", mod.Name, dataSize)
	return Success, mod
}

// LoadAll walks every module the bootloader handed off (multiboot.go's
// VisitModules) and loads each one, logging but not aborting on a
// rejection -- spec.md 7 classifies a module CRC/version/size rejection as
// Reportable, not Fatal.
func LoadAll() {
	multiboot.VisitModules(func(m *multiboot.ModuleEntry) bool {
		size := uint32(m.End - m.Start)
		if result, _ := Load(m.Start, size); result != Success {
			early.Printf("[module] rejected module at %x: %s\n", m.Start, result.String())
		}
		return true
	})
}

// ByName returns a previously loaded module, or nil if none with that name
// was ever accepted.
func ByName(name string) *Module {
	return registry[name]
}

// DebugModule is the conventional name the debug-symbols module is loaded
// under, mirroring the original's KernelModuleRegistry::debug_module().
func DebugModule() *DebugSymbols {
	if m := registry["debug"]; m != nil {
		return m.DebugSym
	}
	return nil
}

func init() {
	// Register with kernel.Panic's stack trace walker so it can annotate
	// return addresses once a debug-symbols module has loaded (spec.md's
	// "resolve via the debug-symbols module if loaded"). kernel/module
	// imports kernel for *kernel.Error, so kernel cannot import this
	// package back; this seam lets the resolution run the other way.
	SetPanicSymbolResolver()
}

// SetPanicSymbolResolver wires kernel.Panic's stack trace walker to this
// package's DebugModule lookup. Called from this package's own init, and
// exported so tests or an alternate boot path can re-register it after
// resetting the registry.
func SetPanicSymbolResolver() {
	kernel.SetSymbolResolver(func(addr uint32) (string, bool) {
		return DebugModule().LookupSymbol(addr)
	})
}

var _ = errAllocation // reserved for a future registry capacity limit
