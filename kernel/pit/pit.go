// Package pit drives the legacy 8253/8254 Programmable Interval Timer's
// channel 0 as the kernel's tick source. It is the low-level sibling of
// kernel/sched: sched registers an Interval subscriber to drive preemption,
// while anything else that needs a coarse wall-clock (a one-shot timeout, a
// periodic poll) registers its own handler instead of reading the raw tick
// counter directly.
package pit

import (
	"reflect"

	"github.com/kernelforge/corekernel/kernel"
	"github.com/kernelforge/corekernel/kernel/config"
	"github.com/kernelforge/corekernel/kernel/cpu"
	"github.com/kernelforge/corekernel/kernel/irq"
)

// baseFrequency is the PIT's fixed input clock, in Hz.
const baseFrequency = 1193182

// calculatePITDivisorUs converts a desired tick interval in microseconds to
// the 16-bit divisor channel 0's reload register needs, rounding to the
// nearest integer the same way the fixed-point C++ original did.
func calculatePITDivisorUs(targetMicroseconds uint32) uint16 {
	return uint16((uint64(baseFrequency)*uint64(targetMicroseconds) + 500000) / 1000000)
}

// TimerTrigger selects when a registered handler fires relative to the tick
// stream.
type TimerTrigger int

const (
	// EveryTick fires the handler on every single PIT interrupt.
	EveryTick TimerTrigger = iota
	// Interval fires the handler once every IntervalUs microseconds.
	Interval
	// OneShot fires the handler exactly once, IntervalUs microseconds from
	// registration, and then deactivates itself.
	OneShot
)

// MaxHandlers bounds the fixed-size subscription table; there is no heap
// allocation available this early in boot, so handlers live in a plain
// array exactly as the original driver's kstd::array<TimerHandler, 8> did.
const MaxHandlers = 8

// HandlerFunc is invoked from interrupt context on every tick that matches
// its trigger; it must not block.
type HandlerFunc func(frame *irq.Frame, regs *irq.Regs)

type timerHandler struct {
	callback       HandlerFunc
	trigger        TimerTrigger
	intervalUs     uint64
	lastTriggerUs  uint64
	active         bool
}

var (
	handlers    [MaxHandlers]timerHandler
	tickCount   uint64
	intervalUs  uint32

	outbFn = cpu.Outb
)

var errNoFreeSlot = &kernel.Error{Module: "pit", Message: "no free timer handler slot"}

// RegisterHandler installs callback under the given trigger policy.
// intervalUs is only consulted for Interval and OneShot triggers. It
// returns errNoFreeSlot if all MaxHandlers slots are already in use.
func RegisterHandler(callback HandlerFunc, trigger TimerTrigger, intervalUsArg uint64) *kernel.Error {
	if callback == nil {
		return errNoFreeSlot
	}

	for i := range handlers {
		if handlers[i].active {
			continue
		}

		effectiveInterval := intervalUsArg
		if trigger == EveryTick {
			effectiveInterval = uint64(intervalUs)
		}

		handlers[i] = timerHandler{
			callback:      callback,
			trigger:       trigger,
			intervalUs:    effectiveInterval,
			lastTriggerUs: tickCount * uint64(intervalUs),
			active:        true,
		}
		return nil
	}

	return errNoFreeSlot
}

// UnregisterHandler deactivates the first slot holding callback, freeing it
// for reuse.
func UnregisterHandler(callback HandlerFunc) bool {
	for i := range handlers {
		if handlers[i].active && sameFunc(handlers[i].callback, callback) {
			handlers[i].active = false
			return true
		}
	}
	return false
}

// sameFunc compares two HandlerFunc values for identity. Go function values
// are not comparable with ==, so this falls back to comparing the
// underlying code pointer; it is good enough to identify a single
// previously-registered named function but will not distinguish between
// multiple distinct closures sharing the same function literal.
func sameFunc(a, b HandlerFunc) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

func tickHandler(frame *irq.Frame, regs *irq.Regs) {
	tickCount++
	currentUs := tickCount * uint64(intervalUs)

	for i := range handlers {
		h := &handlers[i]
		if !h.active {
			continue
		}

		shouldTrigger := false
		switch h.trigger {
		case EveryTick:
			shouldTrigger = true
		case Interval:
			if currentUs-h.lastTriggerUs >= h.intervalUs {
				shouldTrigger = true
				h.lastTriggerUs = currentUs
			}
		case OneShot:
			if currentUs-h.lastTriggerUs >= h.intervalUs {
				shouldTrigger = true
				h.active = false
			}
		}

		if shouldTrigger && h.callback != nil {
			h.callback(frame, regs)
		}
	}
}

// Init programs channel 0 for mode 3 (square wave) at the divisor closest
// to intervalMicroseconds and registers the PIT's IRQ0 tick handler.
func Init(intervalMicroseconds uint32) {
	intervalUs = intervalMicroseconds
	divisor := calculatePITDivisorUs(intervalMicroseconds)

	outbFn(config.PortPITCommand, 0x36) // channel 0, lobyte/hibyte, mode 3, binary
	outbFn(config.PortPIT0, uint8(divisor&0xFF))
	outbFn(config.PortPIT0, uint8(divisor>>8))

	irq.RegisterIRQHandler(uint8(irq.TimerIRQ-irq.IRQBase), tickHandler)
}

// Ticks returns the number of PIT interrupts serviced since Init.
func Ticks() uint64 { return tickCount }

// WaitMicros busy-waits until at least d microseconds of PIT ticks have
// elapsed. It is a coarse substitute for a real sleep, good enough for the
// handful of millisecond-scale delays the AP bring-up sequence needs
// between its INIT and Startup IPIs; interrupts must remain enabled for
// Ticks to advance while this spins.
func WaitMicros(d uint32) {
	if intervalUs == 0 {
		return
	}
	target := tickCount + uint64(d+intervalUs-1)/uint64(intervalUs)
	for tickCount < target {
	}
}

// IntervalUs returns the configured tick interval in microseconds.
func IntervalUs() uint32 { return intervalUs }
