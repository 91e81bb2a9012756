// Package heap implements the kernel's general-purpose allocator: a
// segregated, size-ordered free list of boundary-tagged chunks, grown and
// shrunk a page at a time through the vmm/pmm layers. It is independent of
// the Go runtime's own allocator (see kernel/goruntime), which serves
// goroutine-side maps, slices and interfaces out of a separate window; this
// package backs explicit kernel allocations such as task stacks and module
// buffers.
package heap

import "unsafe"

const (
	wordSize = 4

	// headerSize is the number of bytes a chunk's header occupies in the
	// raw heap memory: the previous chunk's size mirror plus this chunk's
	// own size/flags word. The free-list linkage the original allocator
	// also stored inline lives in the Go-side container/list instead (see
	// heap.go), so it never factors into this layout.
	headerSize = 2 * wordSize

	// minChunkSize is the smallest chunk the allocator ever hands out or
	// keeps on the free list.
	minChunkSize = 32

	// alignment all chunk sizes and addresses are rounded up to.
	alignment = 16

	flagPInUse = uint32(1) // previous chunk is in use (no footer to read)
	flagCInUse = uint32(2) // this chunk is in use
	sizeMask   = ^uint32(flagPInUse | flagCInUse)
)

// chunkHeader mirrors the first two words of every chunk, free or in use:
//
//	+0  prevFoot  size of the previous chunk, valid only if !flagPInUse
//	+4  head      size of this chunk (low 2 bits hold flagPInUse/flagCInUse)
//
// A chunk's footer (written only while it is free) is its last word and
// holds its own size, so a backward neighbour can find it in O(1).
type chunkHeader struct {
	prevFoot uint32
	head     uint32
}

func chunkAt(addr uintptr) *chunkHeader {
	return (*chunkHeader)(unsafe.Pointer(addr))
}

func (c *chunkHeader) addr() uintptr {
	return uintptr(unsafe.Pointer(c))
}

func (c *chunkHeader) size() uint32 {
	return c.head & sizeMask
}

func (c *chunkHeader) pinuse() bool {
	return c.head&flagPInUse != 0
}

func (c *chunkHeader) cinuse() bool {
	return c.head&flagCInUse != 0
}

func (c *chunkHeader) setSizeAndFlags(size uint32, pinuse, cinuse bool) {
	c.head = size & sizeMask
	if pinuse {
		c.head |= flagPInUse
	}
	if cinuse {
		c.head |= flagCInUse
	}
}

func (c *chunkHeader) clearPInUse() {
	c.head &^= flagPInUse
}

func (c *chunkHeader) setPInUse() {
	c.head |= flagPInUse
}

// footer returns a pointer to the word holding this (free) chunk's size
// mirror. It is physically the same word as the next chunk's prevFoot
// field, which is how prev() walks backward in O(1): the boundary tag is
// shared between the two neighbours rather than duplicated.
func (c *chunkHeader) footer() *uint32 {
	return (*uint32)(unsafe.Pointer(c.addr() + uintptr(c.size())))
}

func (c *chunkHeader) writeFooter() {
	*c.footer() = c.size()
}

// next returns the chunk immediately following this one in memory.
func (c *chunkHeader) next() *chunkHeader {
	return chunkAt(c.addr() + uintptr(c.size()))
}

// prev returns the chunk immediately preceding this one in memory. Only
// valid when !c.pinuse().
func (c *chunkHeader) prev() *chunkHeader {
	return chunkAt(c.addr() - uintptr(c.prevFoot))
}

// mem returns the address handed out to callers of Alloc: the first byte
// past the two-word header.
func (c *chunkHeader) mem() uintptr {
	return c.addr() + headerSize
}

// chunkFromMem recovers a chunk header from a pointer previously returned
// by Alloc.
func chunkFromMem(ptr uintptr) *chunkHeader {
	return chunkAt(ptr - headerSize)
}

func alignUp(v uint32, to uint32) uint32 {
	return (v + to - 1) &^ (to - 1)
}

// requestToChunkSize pads a caller's byte request with header overhead and
// rounds up to the allocator's alignment, enforcing the allocator's floor.
func requestToChunkSize(req uint32) uint32 {
	padded := alignUp(req+wordSize, alignment)
	if padded < minChunkSize {
		return minChunkSize
	}
	return padded
}
