package module

import "unsafe"

// DebugSymbols is the decoded payload of a DebugSymbolsType module: a flat
// table of (address, name) pairs plus the string table their names are
// stored in, grounded on original_source/include/module.hpp's
// DebugSymbolsModule.
type DebugSymbols struct {
	symbols []DebugSymbol
}

// DebugSymbol is one entry of a debug-symbols module's symbol table.
type DebugSymbol struct {
	Address uint32
	Name    string
}

// debugHeader wire layout: {size uint32; strtab_offset uint32}, both
// naturally 4-byte aligned so, unlike ModuleHeader, a direct offset read is
// equivalent to a struct overlay; offsets are still spelled out explicitly
// to stay consistent with the rest of this package.
const (
	dsOffCount        = 0
	dsOffStrtabOffset = 4
	dsHeaderSize      = 8

	dsSymbolSize       = 8 // {address uint32; name_offset uint32}
	dsSymOffAddress    = 0
	dsSymOffNameOffset = 4
)

func parseDebugSymbols(payload []byte) *DebugSymbols {
	if len(payload) < dsHeaderSize {
		return &DebugSymbols{}
	}
	base := uintptr(unsafe.Pointer(&payload[0]))
	count := readU32(base, dsOffCount)
	strtabOffset := readU32(base, dsOffStrtabOffset)

	tableEnd := dsHeaderSize + uint64(count)*dsSymbolSize
	if tableEnd > uint64(len(payload)) || uint64(strtabOffset) > uint64(len(payload)) {
		return &DebugSymbols{}
	}

	symbols := make([]DebugSymbol, 0, count)
	for i := uint32(0); i < count; i++ {
		entryBase := base + dsHeaderSize + uintptr(i)*dsSymbolSize
		addr := readU32(entryBase, dsSymOffAddress)
		nameOff := readU32(entryBase, dsSymOffNameOffset)
		symbols = append(symbols, DebugSymbol{
			Address: addr,
			Name:    readCString(payload, strtabOffset+nameOff),
		})
	}
	return &DebugSymbols{symbols: symbols}
}

func readCString(buf []byte, offset uint32) string {
	if uint64(offset) >= uint64(len(buf)) {
		return ""
	}
	start := offset
	end := start
	for end < uint32(len(buf)) && buf[end] != 0 {
		end++
	}
	return string(buf[start:end])
}

// nearestDistanceLimit bounds how far a symbol's address may sit below the
// lookup address and still count as "the nearest symbol" -- past this, the
// lookup is considered to have no matching symbol, exactly the original's
// `nearest_distance > 0x1000` cutoff.
const nearestDistanceLimit = 0x1000

// NearestSymbol returns the symbol table entry immediately at or below addr,
// within nearestDistanceLimit bytes, mirroring DebugSymbolsModule's
// nearest_symbol: unsigned subtraction means a symbol whose address is
// above addr wraps to a huge distance and is naturally excluded without a
// separate comparison.
func (d *DebugSymbols) NearestSymbol(addr uint32) (DebugSymbol, bool) {
	if d == nil {
		return DebugSymbol{}, false
	}
	var (
		nearest     DebugSymbol
		nearestDist uint32 = 0xFFFFFFFF
		found       bool
	)
	for _, sym := range d.symbols {
		dist := addr - sym.Address
		if dist <= nearestDistanceLimit && dist < nearestDist {
			nearestDist = dist
			nearest = sym
			found = true
		}
	}
	return nearest, found
}

// LookupSymbol resolves addr to the name of the nearest symbol at or below
// it (see NearestSymbol), for annotating a stack trace. The offset from that
// symbol is not included.
func (d *DebugSymbols) LookupSymbol(addr uint32) (string, bool) {
	sym, ok := d.NearestSymbol(addr)
	if !ok {
		return "", false
	}
	return sym.Name, true
}
