package kernel

import (
	"strings"
	"testing"
	"unsafe"
)

func TestPrintStackTraceWalksFramesAndResolvesSymbols(t *testing.T) {
	defer func() {
		symbolResolverFn = nil
		pageMappedFn = nil
	}()

	// frame0 -> frame1 -> nil
	var frame1 stackFrame
	frame1.savedEBP = 0
	frame1.retAddr = 0x2000

	var frame0 stackFrame
	frame0.savedEBP = uintptr(unsafe.Pointer(&frame1))
	frame0.retAddr = 0x1000

	symbolResolverFn = func(addr uint32) (string, bool) {
		if addr == 0x1000 {
			return "kmain", true
		}
		return "", false
	}
	pageMappedFn = func(addr uintptr) bool { return true }

	fb := mockTTY()
	printStackTrace(uintptr(unsafe.Pointer(&frame0)))
	out := readTTY(fb)

	if !strings.Contains(out, "0x00001000 kmain") {
		t.Fatalf("expected trace to resolve frame0's symbol, got:\n%s", out)
	}
	if !strings.Contains(out, "0x00002000") {
		t.Fatalf("expected trace to print frame1's unresolved return address, got:\n%s", out)
	}
}

func TestPrintStackTraceStopsAtUnmappedFrame(t *testing.T) {
	defer func() {
		symbolResolverFn = nil
		pageMappedFn = nil
	}()

	var frame0 stackFrame
	frame0.savedEBP = 0xDEADBEEF
	frame0.retAddr = 0x3000

	pageMappedFn = func(addr uintptr) bool { return addr != 0xDEADBEEF }

	fb := mockTTY()
	printStackTrace(uintptr(unsafe.Pointer(&frame0)))
	out := readTTY(fb)

	if !strings.Contains(out, "0x00003000") {
		t.Fatalf("expected trace to print frame0's return address, got:\n%s", out)
	}
	if !strings.Contains(out, "invalid frame pointer") {
		t.Fatalf("expected trace to report the unmapped next frame pointer, got:\n%s", out)
	}
}

func TestIsMappedDefaultsToTrueWithoutChecker(t *testing.T) {
	defer func() { pageMappedFn = nil }()
	pageMappedFn = nil

	if !isMapped(0x1000) {
		t.Fatal("expected isMapped to default to true when no checker is registered")
	}
	if isMapped(0) {
		t.Fatal("expected isMapped to reject a nil frame pointer unconditionally")
	}
}
