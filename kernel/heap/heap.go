package heap

import (
	"container/list"

	"github.com/kernelforge/corekernel/kernel"
	"github.com/kernelforge/corekernel/kernel/mem"
	"github.com/kernelforge/corekernel/kernel/mem/pmm"
	"github.com/kernelforge/corekernel/kernel/mem/vmm"
)

var (
	mapPagesFn    = vmm.MapPages
	unmapPagesFn  = vmm.UnmapPages
	translateFn   = vmm.Translate
	allocFramesFn = pmm.AllocFrames
	freeFramesFn  = pmm.FreeFrames
	panicFn       = kernel.Panic

	errOutOfMemory  = &kernel.Error{Module: "heap", Message: "heap exhausted and cannot expand further"}
	errInvalidFree  = &kernel.Error{Module: "heap", Message: "free of a pointer not owned by this heap"}
	errSizeTooLarge = &kernel.Error{Module: "heap", Message: "requested size exceeds heap maximum"}
)

// Heap is a segregated free-list allocator over a single contiguous virtual
// window. Besides the sorted free list, the heap tracks one extra chunk
// outside that list: the "top" (wilderness) chunk, the always-free region
// that abuts the end of the mapped window. Carving allocations off the top
// and growing/shrinking the window both only ever touch that one chunk, and
// keeping it out of the ordinary free list means the boundary-tag footer
// (shared with the following chunk's header) never has to be written past
// the end of mapped memory, since the top chunk by definition has no
// physical successor yet.
type Heap struct {
	startAddr uintptr
	endAddr   uintptr // one past the last mapped byte
	topAddr   uintptr // address of the top chunk, or 0 if none (tail is fully allocated)
	minSize   mem.Size
	maxSize   mem.Size
	flags     vmm.PageTableEntryFlag

	free  *list.List // ascending by chunk size; Value is uintptr chunk address
	index map[uintptr]*list.Element
}

// New maps minSize bytes starting at start and wires them up as the initial
// top chunk, ready for Alloc. The heap will never grow past maxSize.
func New(start uintptr, minSize, maxSize mem.Size, flags vmm.PageTableEntryFlag) (*Heap, *kernel.Error) {
	h := &Heap{
		startAddr: start,
		endAddr:   start,
		minSize:   minSize,
		maxSize:   maxSize,
		flags:     flags,
		free:      list.New(),
		index:     make(map[uintptr]*list.Element),
	}

	if err := h.grow(minSize); err != nil {
		return nil, err
	}
	return h, nil
}

// grow maps additional pages at the end of the heap window and folds them
// into the top chunk, creating one first if the tail was fully allocated.
func (h *Heap) grow(by mem.Size) *kernel.Error {
	if by == 0 {
		return nil
	}
	pageCount := by.Pages()
	newSize := mem.Size(h.endAddr-h.startAddr) + mem.Size(pageCount)*mem.PageSize
	if newSize > h.maxSize {
		return errOutOfMemory
	}

	firstFrame, err := allocFramesFn(pageCount)
	if err != nil {
		return err
	}
	if err := mapPagesFn(vmm.PageFromAddress(h.endAddr), firstFrame, pageCount, h.flags); err != nil {
		freeFramesFn(firstFrame, pageCount)
		return err
	}

	growBy := uint32(pageCount) * uint32(mem.PageSize)
	newTopAddr := h.endAddr
	h.endAddr += uintptr(growBy)

	if h.topAddr != 0 {
		top := chunkAt(h.topAddr)
		top.setSizeAndFlags(top.size()+growBy, top.pinuse(), false)
		return nil
	}

	// Nothing was free at the tail (either a brand new heap, or the
	// previous top was entirely consumed by an allocation); pinuse is
	// unconditionally true here since either there is no predecessor at
	// all, or the chunk before this point is in use by construction.
	top := chunkAt(newTopAddr)
	top.setSizeAndFlags(growBy, true, false)
	h.topAddr = newTopAddr
	return nil
}

// insertFree inserts a non-top chunk into the free list, keeping it ordered
// by ascending size so Alloc's first-fit scan finds the smallest usable
// chunk.
func (h *Heap) insertFree(addr uintptr) {
	size := chunkAt(addr).size()
	for e := h.free.Front(); e != nil; e = e.Next() {
		if chunkAt(e.Value.(uintptr)).size() >= size {
			h.index[addr] = h.free.InsertBefore(addr, e)
			return
		}
	}
	h.index[addr] = h.free.PushBack(addr)
}

func (h *Heap) removeFree(addr uintptr) {
	if e, ok := h.index[addr]; ok {
		h.free.Remove(e)
		delete(h.index, addr)
	}
}

// findFit returns the smallest non-top free chunk that can satisfy size, or
// nil if the free list alone cannot (the top chunk is tried separately).
func (h *Heap) findFit(size uint32) *chunkHeader {
	for e := h.free.Front(); e != nil; e = e.Next() {
		c := chunkAt(e.Value.(uintptr))
		if c.size() >= size {
			return c
		}
	}
	return nil
}

// Alloc reserves at least n bytes and returns the address of the usable
// region. Requests are served from the free list first, then from the top
// chunk, growing the heap once if neither has room.
func (h *Heap) Alloc(n uint32) (uintptr, *kernel.Error) {
	need := requestToChunkSize(n)
	if mem.Size(need) > h.maxSize {
		return 0, errSizeTooLarge
	}

	if c := h.findFit(need); c != nil {
		h.removeFree(c.addr())
		h.split(c, need)
		c.head |= flagCInUse
		c.next().setPInUse()
		return c.mem(), nil
	}

	if h.topAddr == 0 || chunkAt(h.topAddr).size() < need {
		if err := h.grow(mem.Size(need) * 2); err != nil {
			return 0, errOutOfMemory
		}
	}
	if h.topAddr == 0 || chunkAt(h.topAddr).size() < need {
		return 0, errOutOfMemory
	}

	return h.allocFromTop(need), nil
}

// allocFromTop carves need bytes off the front of the top chunk. If what is
// left behind is too small to be useful it is folded into the allocation
// instead of being kept as a dangling top chunk.
func (h *Heap) allocFromTop(need uint32) uintptr {
	top := chunkAt(h.topAddr)
	remainder := top.size() - need

	if remainder < minChunkSize {
		top.setSizeAndFlags(top.size(), top.pinuse(), true)
		h.topAddr = 0
		return top.mem()
	}

	top.setSizeAndFlags(need, top.pinuse(), true)
	newTop := chunkAt(top.addr() + uintptr(need))
	newTop.setSizeAndFlags(remainder, true, false)
	h.topAddr = newTop.addr()
	return top.mem()
}

// split carves a used chunk of exactly size bytes off the front of c,
// returning the remainder (if large enough) to the free list, or promoting
// it to the new top chunk if it happens to reach the end of the heap (only
// possible when c itself came from the top via PAlignedAlloc's trim).
func (h *Heap) split(c *chunkHeader, size uint32) {
	remainder := c.size() - size
	if remainder < minChunkSize {
		c.setSizeAndFlags(c.size(), c.pinuse(), true)
		return
	}

	c.setSizeAndFlags(size, c.pinuse(), true)
	rem := chunkAt(c.addr() + uintptr(size))
	rem.setSizeAndFlags(remainder, true, false)

	if rem.addr()+uintptr(remainder) == h.endAddr {
		h.topAddr = rem.addr()
		return
	}

	rem.writeFooter()
	h.insertFree(rem.addr())
}

// Free releases a pointer previously returned by Alloc, coalescing it with
// any free physical neighbours before reinserting it into the free list (or
// folding it into the top chunk, if that is what it now borders).
func (h *Heap) Free(ptr uintptr) *kernel.Error {
	if ptr < h.startAddr+headerSize || ptr >= h.endAddr {
		return errInvalidFree
	}

	c := chunkFromMem(ptr)
	if !c.cinuse() {
		panicFn(&kernel.Error{Module: "heap", Message: "double free or memory corruption detected"})
		return errInvalidFree
	}

	if !c.pinuse() {
		prev := c.prev()
		h.removeFree(prev.addr())
		prev.setSizeAndFlags(prev.size()+c.size(), prev.pinuse(), false)
		c = prev
	}

	switch {
	case h.topAddr != 0 && c.addr()+uintptr(c.size()) == h.topAddr:
		top := chunkAt(h.topAddr)
		c.setSizeAndFlags(c.size()+top.size(), c.pinuse(), false)
		h.topAddr = c.addr()

	case c.addr()+uintptr(c.size()) < h.endAddr:
		next := c.next()
		if !next.cinuse() {
			h.removeFree(next.addr())
			c.setSizeAndFlags(c.size()+next.size(), c.pinuse(), false)
		} else {
			next.clearPInUse()
		}
		c.head &^= flagCInUse
		c.writeFooter()
		h.insertFree(c.addr())

	default:
		// c now reaches the end of the heap itself (its old top-derived
		// allocation left no remainder): it becomes the new top chunk.
		c.head &^= flagCInUse
		h.topAddr = c.addr()
	}

	h.contract()
	return nil
}

// contract gives whole pages back to the vmm/pmm layers whenever the top
// chunk is larger than minSize requires. It never shrinks the heap below
// minSize.
func (h *Heap) contract() {
	if h.topAddr == 0 {
		return
	}
	top := chunkAt(h.topAddr)
	if h.topAddr+uintptr(top.size()) != h.endAddr {
		return
	}

	floor := h.startAddr + uintptr(h.minSize)
	keepUntil := h.topAddr
	if keepUntil < floor {
		keepUntil = floor
	}
	if keepUntil >= h.endAddr {
		return
	}
	releasable := mem.Size(h.endAddr - keepUntil)

	pageCount := (releasable &^ (mem.PageSize - 1)).Pages()
	if pageCount == 0 {
		return
	}

	shrinkBy := uintptr(pageCount) * uintptr(mem.PageSize)
	newEnd := h.endAddr - shrinkBy
	startPage := vmm.PageFromAddress(newEnd)

	// Pages given back to the vmm/pmm layers were not necessarily mapped to
	// contiguous physical frames (successive grow() calls each get their
	// own AllocFrames run), so each one is translated and freed on its own
	// rather than assuming a single contiguous run.
	frames := make([]pmm.Frame, pageCount)
	for i := uint32(0); i < pageCount; i++ {
		physAddr, err := translateFn(newEnd + uintptr(i)*uintptr(mem.PageSize))
		if err != nil {
			return
		}
		frames[i] = pmm.FrameFromAddress(physAddr)
	}

	if err := unmapPagesFn(startPage, pageCount); err != nil {
		return
	}
	for _, f := range frames {
		freeFramesFn(f, 1)
	}

	newSize := uint32(newEnd - h.topAddr)
	h.endAddr = newEnd
	if newSize == 0 {
		h.topAddr = 0
		return
	}
	top.setSizeAndFlags(newSize, top.pinuse(), false)
}

// PAlignedAlloc behaves like Alloc but guarantees the returned address is a
// multiple of mem.PageSize, over-allocating and trimming the leading and
// trailing slack back onto the free list.
func (h *Heap) PAlignedAlloc(n uint32) (uintptr, *kernel.Error) {
	raw, err := h.Alloc(n + uint32(mem.PageSize) + minChunkSize)
	if err != nil {
		return 0, err
	}

	c := chunkFromMem(raw)
	alignedMem := (c.mem() + uintptr(mem.PageSize) - 1) &^ (uintptr(mem.PageSize) - 1)
	lead := uint32(alignedMem - c.mem())

	if lead >= minChunkSize {
		aligned := chunkAt(c.addr() + uintptr(lead))
		aligned.setSizeAndFlags(c.size()-lead, false, true)
		c.setSizeAndFlags(lead, c.pinuse(), false)
		c.writeFooter()
		h.insertFree(c.addr())
		c = aligned
	}

	need := requestToChunkSize(n)
	h.split(c, need)
	return c.mem(), nil
}
