package pmm

import (
	"github.com/kernelforge/corekernel/kernel"
	"github.com/kernelforge/corekernel/kernel/kfmt/early"
	"github.com/kernelforge/corekernel/kernel/mem"
	"github.com/kernelforge/corekernel/kernel/multiboot"
)

const (
	// totalFrames covers the entire 32-bit physical address space
	// (4GiB / 4K), independent of how much RAM is actually installed;
	// frames above installed RAM simply stay marked reserved forever.
	totalFrames = 1 << 20

	// bitmapWords sizes the bitmap in native (32-bit) machine words:
	// totalFrames bits / 32 bits-per-word.
	bitmapWords = totalFrames / 32
)

var (
	// bitmap holds one bit per physical frame; 1 means reserved/in-use,
	// 0 means free. It lives in the kernel's BSS so it is available the
	// moment Init runs, without needing the heap or even paging to be up
	// yet (identity-mapped low memory is enough to write to it).
	bitmap [bitmapWords]uint32

	freeFrames  uint32
	totalUsable uint32

	errOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of physical memory"}
	errDoubleFree  = &kernel.Error{Module: "pmm", Message: "frame freed twice"}
)

func wordAndBit(f Frame) (word, bit uint32) {
	return uint32(f) / 32, uint32(f) % 32
}

func isReserved(f Frame) bool {
	word, bit := wordAndBit(f)
	return bitmap[word]&(1<<bit) != 0
}

func setReserved(f Frame) {
	word, bit := wordAndBit(f)
	bitmap[word] |= 1 << bit
}

func clearReserved(f Frame) {
	word, bit := wordAndBit(f)
	bitmap[word] &^= 1 << bit
}

// markRange flags every frame in [start, end] (inclusive) as reserved or
// free and maintains the free/usable counters.
func markRange(start, end Frame, reserve bool) {
	for f := start; f <= end; f++ {
		wasReserved := isReserved(f)
		switch {
		case reserve && !wasReserved:
			setReserved(f)
			if freeFrames > 0 {
				freeFrames--
			}
		case !reserve && wasReserved:
			clearReserved(f)
			freeFrames++
			totalUsable++
		}
		if f == end {
			break // avoid wraparound when end == totalFrames-1 and Frame is unsigned
		}
	}
}

// Init marks every frame as reserved by default, then walks the bootloader
// memory map to free up the ranges it reports as available, and finally
// re-reserves the frames occupied by the kernel image itself so the
// allocator never hands them back out.
func Init(kernelStart, kernelEnd uintptr) *kernel.Error {
	for i := range bitmap {
		bitmap[i] = 0xFFFFFFFF
	}
	freeFrames = 0
	totalUsable = 0

	pageSizeMinus1 := uint64(mem.PageSize - 1)
	multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		if region.Type != multiboot.MemAvailable {
			return true
		}

		startFrame := Frame(((region.PhysAddress + pageSizeMinus1) &^ pageSizeMinus1) >> mem.PageShift)
		regionEnd := region.PhysAddress + region.Length
		if regionEnd < uint64(mem.PageSize) {
			return true
		}
		endFrame := Frame(((regionEnd - 1) &^ pageSizeMinus1) >> mem.PageShift)
		if endFrame >= startFrame {
			markRange(startFrame, endFrame, false)
		}
		return true
	})

	kernelStartFrame := FrameFromAddress(kernelStart)
	kernelEndFrame := FrameFromAddress(kernelEnd + uintptr(mem.PageSize) - 1)
	markRange(kernelStartFrame, kernelEndFrame, true)

	early.Printf("[pmm] usable frames: %d, free: %d\n", totalUsable, freeFrames)
	return nil
}

// AllocFrame reserves and returns the lowest-numbered free frame.
func AllocFrame() (Frame, *kernel.Error) {
	for word := 0; word < bitmapWords; word++ {
		if bitmap[word] == 0xFFFFFFFF {
			continue
		}
		for bit := uint32(0); bit < 32; bit++ {
			if bitmap[word]&(1<<bit) == 0 {
				f := Frame(uint32(word)*32 + bit)
				setReserved(f)
				freeFrames--
				return f, nil
			}
		}
	}

	return InvalidFrame, errOutOfMemory
}

// FreeFrame releases a frame previously returned by AllocFrame, making it
// available for reuse. Freeing an already-free frame is a programming error
// and returns errDoubleFree instead of corrupting the free count.
func FreeFrame(f Frame) *kernel.Error {
	if !isReserved(f) {
		return errDoubleFree
	}
	clearReserved(f)
	freeFrames++
	return nil
}

// AllocFrames reserves the first run of n consecutive free frames found by
// a linear first-fit scan of the bitmap (spec.md 4.1: "linear first-fit
// over the bitmap searching for n consecutive clear bits"). It returns the
// lowest frame of the run. n must be at least 1.
func AllocFrames(n uint32) (Frame, *kernel.Error) {
	if n == 0 {
		return InvalidFrame, errOutOfMemory
	}
	if n == 1 {
		return AllocFrame()
	}

	var runStart Frame
	runLen := uint32(0)
	for f := Frame(0); ; f++ {
		if !isReserved(f) {
			if runLen == 0 {
				runStart = f
			}
			runLen++
			if runLen == n {
				markRange(runStart, f, true)
				return runStart, nil
			}
		} else {
			runLen = 0
		}

		if uint32(f) == totalFrames-1 {
			break
		}
	}

	return InvalidFrame, errOutOfMemory
}

// FreeFrames releases a run of n frames previously returned by AllocFrames.
func FreeFrames(start Frame, n uint32) *kernel.Error {
	if n == 0 {
		return nil
	}

	end := Frame(uint32(start) + n - 1)
	for f := start; ; f++ {
		if !isReserved(f) {
			return errDoubleFree
		}
		if f == end {
			break
		}
	}

	markRange(start, end, false)
	return nil
}

// Stats reports the current allocator occupancy.
func Stats() (usable, free uint32) {
	return totalUsable, freeFrames
}
