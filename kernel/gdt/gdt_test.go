package gdt

import "testing"

func TestInitBuildsFlatDescriptors(t *testing.T) {
	origFlush := flushFn
	t.Cleanup(func() { flushFn = origFlush })

	var capturedPtr uintptr
	flushFn = func(p uintptr) { capturedPtr = p }

	if err := Init(0xA0000); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if capturedPtr == 0 {
		t.Fatal("expected flushFn to be invoked with a non-zero pointer")
	}

	codeDesc := table[KernelCodeSelector/8]
	if codeDesc.limitLow != 0xFFFF {
		t.Fatalf("expected flat descriptor limit 0xFFFF, got %x", codeDesc.limitLow)
	}
	if codeDesc.access&accessExecute == 0 {
		t.Fatal("expected kernel code descriptor to be marked executable")
	}

	dataDesc := table[KernelDataSelector/8]
	if dataDesc.access&accessExecute != 0 {
		t.Fatal("expected kernel data descriptor to not be marked executable")
	}

	if tss.ss0 != KernelDataSelector {
		t.Fatalf("expected tss.ss0 == KernelDataSelector, got %x", tss.ss0)
	}
	if tss.esp0 != 0xA0000 {
		t.Fatalf("expected tss.esp0 == 0xA0000, got %x", tss.esp0)
	}
}

func TestInitRejectsZeroStack(t *testing.T) {
	if err := Init(0); err == nil {
		t.Fatal("expected Init(0) to fail")
	}
}

func TestSetKernelStackUpdatesTSS(t *testing.T) {
	SetKernelStack(0x12345)
	if tss.esp0 != 0x12345 {
		t.Fatalf("expected tss.esp0 updated, got %x", tss.esp0)
	}
}
