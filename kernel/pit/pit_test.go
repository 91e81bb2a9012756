package pit

import (
	"testing"

	"github.com/kernelforge/corekernel/kernel/irq"
)

func TestCalculatePITDivisorUs(t *testing.T) {
	// 1000us (1ms) at the PIT's 1193182Hz input clock is the textbook
	// divisor used by every real-mode bootloader and BIOS timer tutorial.
	if got := calculatePITDivisorUs(1000); got != 1193 {
		t.Fatalf("expected divisor 1193 for 1000us, got %d", got)
	}
}

func withFakePorts(t *testing.T) map[uint16]uint8 {
	t.Helper()
	ports := map[uint16]uint8{}
	orig := outbFn
	t.Cleanup(func() {
		outbFn = orig
		for i := range handlers {
			handlers[i] = timerHandler{}
		}
		tickCount = 0
	})
	outbFn = func(port uint16, v uint8) { ports[port] = v }
	return ports
}

func TestInitProgramsChannelZeroModeThree(t *testing.T) {
	ports := withFakePorts(t)

	Init(1000)

	if ports[0x43] != 0x36 {
		t.Fatalf("expected mode/command byte 0x36, got 0x%x", ports[0x43])
	}
	if IntervalUs() != 1000 {
		t.Fatalf("expected interval 1000us, got %d", IntervalUs())
	}
}

func TestEveryTickHandlerFiresOnEachTick(t *testing.T) {
	withFakePorts(t)
	Init(1000)

	calls := 0
	if err := RegisterHandler(func(*irq.Frame, *irq.Regs) { calls++ }, EveryTick, 0); err != nil {
		t.Fatalf("unexpected registration error: %v", err)
	}

	tickHandler(nil, nil)
	tickHandler(nil, nil)

	if calls != 2 {
		t.Fatalf("expected 2 calls for an EveryTick handler across 2 ticks, got %d", calls)
	}
}

func TestOneShotHandlerFiresOnceThenDeactivates(t *testing.T) {
	withFakePorts(t)
	Init(1000) // 1ms per tick

	calls := 0
	if err := RegisterHandler(func(*irq.Frame, *irq.Regs) { calls++ }, OneShot, 2000); err != nil {
		t.Fatalf("unexpected registration error: %v", err)
	}

	tickHandler(nil, nil) // t=1ms, 2ms elapsed not yet reached
	tickHandler(nil, nil) // t=2ms, fires
	tickHandler(nil, nil) // t=3ms, already deactivated

	if calls != 1 {
		t.Fatalf("expected exactly 1 call for a OneShot handler, got %d", calls)
	}
}

func TestRegisterHandlerRejectsWhenFull(t *testing.T) {
	withFakePorts(t)
	Init(1000)

	for i := 0; i < MaxHandlers; i++ {
		if err := RegisterHandler(func(*irq.Frame, *irq.Regs) {}, EveryTick, 0); err != nil {
			t.Fatalf("unexpected error filling slot %d: %v", i, err)
		}
	}

	if err := RegisterHandler(func(*irq.Frame, *irq.Regs) {}, EveryTick, 0); err == nil {
		t.Fatal("expected an error once all handler slots are full")
	}
}
