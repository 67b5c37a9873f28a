// Package timer implements the DMG divider and timer registers
// (DIV/TIMA/TMA/TAC), advanced one T-cycle at a time.
package timer

import (
	"github.com/valerio/go-dotmatrix/dotmatrix/addr"
)

// reload models the 4 T-cycle delay between TIMA overflowing and the
// counter being reloaded from TMA.
type reload int8

const (
	reloadNone reload = iota - 1
	reloadNow
	reloadWait0
	reloadWait1
	reloadWait2
)

// tick advances the reload counter by one T-cycle.
func (r *reload) tick() {
	switch *r {
	case reloadNone:
	case reloadNow:
		*r = reloadNone
	default:
		*r--
	}
}

// Timer is the hardware timer. The internal 16-bit counter increments every
// T-cycle; DIV reads its upper 8 bits. TIMA increments on the falling edge
// of (TAC.enable AND selected counter bit), per the Hacktix GBEDG model.
type Timer struct {
	counter uint16 // internal divider, DIV is the upper byte
	tima    uint8
	tma     uint8
	tac     uint8

	lastAnd bool   // previous AND result for edge detection
	rel     reload // pending TIMA reload state

	// Interrupt callback, wired to request the Timer interrupt.
	OnInterrupt func()
}

// New creates a timer with the interrupt callback wired.
func New(irq func()) *Timer {
	return &Timer{OnInterrupt: irq, rel: reloadNone}
}

// Div returns the full internal divider counter. The APU frame sequencer
// watches bit 4 of the visible DIV value (bit 12 of this counter).
func (t *Timer) Div() uint16 {
	return t.counter
}

// SetSeed initializes the internal divider counter, used to match the
// post-boot value observed on hardware.
func (t *Timer) SetSeed(seed uint16) {
	t.counter = seed
	t.lastAnd = false
	t.rel = reloadNone
}

// andResult computes TAC.enable AND (counter & selected bit).
func (t *Timer) andResult() bool {
	if t.tac&0x04 == 0 {
		return false
	}
	return t.counter&t.selectMask() != 0
}

// selectMask returns the divider bit selected by TAC bits 1-0.
func (t *Timer) selectMask() uint16 {
	switch t.tac & 0x03 {
	case 0x01:
		return 1 << 3
	case 0x02:
		return 1 << 5
	case 0x03:
		return 1 << 7
	default: // 0b00
		return 1 << 9
	}
}

// Cycle advances the timer by one T-cycle.
func (t *Timer) Cycle() {
	t.counter++

	// Handle a pending reload before the edge check so that the reload
	// lands exactly 4 T-cycles after the overflow.
	reloading := t.rel == reloadNow
	t.rel.tick()
	if reloading {
		t.tima = t.tma
		if t.OnInterrupt != nil {
			t.OnInterrupt()
		}
	}

	this := t.andResult()
	if t.lastAnd && !this {
		t.tima++
		if t.tima == 0 {
			t.rel = reloadWait2
		}
	}
	t.lastAnd = this
}

// Read returns the value of a timer register.
func (t *Timer) Read(address uint16) uint8 {
	switch address {
	case addr.DIV:
		return uint8(t.counter >> 8)
	case addr.TIMA:
		return t.tima
	case addr.TMA:
		return t.tma
	case addr.TAC:
		return 0xF8 | t.tac
	default:
		return 0xFF
	}
}

// Write stores to a timer register.
func (t *Timer) Write(address uint16, value uint8) {
	switch address {
	case addr.DIV:
		// Writing any value zeroes the whole internal counter. This can
		// itself produce a falling edge and tick TIMA on the next cycle.
		t.counter = 0
	case addr.TIMA:
		// Stores are ignored on the reload cycle; during the wait window
		// they cancel the pending reload.
		if t.rel != reloadNow {
			t.rel = reloadNone
			t.tima = value
		}
	case addr.TMA:
		t.tma = value
	case addr.TAC:
		t.tac = value & 0x07
	}
}

// Reset restores the power-on state.
func (t *Timer) Reset() {
	t.counter = 0
	t.tima = 0
	t.tma = 0
	t.tac = 0
	t.lastAnd = false
	t.rel = reloadNone
}
