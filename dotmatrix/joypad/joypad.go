// Package joypad models the P1 button matrix.
package joypad

import "github.com/valerio/go-dotmatrix/dotmatrix/bit"

// Button represents a key on the Gameboy joypad.
type Button uint8

const (
	Right Button = iota
	Left
	Up
	Down
	A
	B
	Select
	Start
)

func (b Button) String() string {
	switch b {
	case Right:
		return "Right"
	case Left:
		return "Left"
	case Up:
		return "Up"
	case Down:
		return "Down"
	case A:
		return "A"
	case B:
		return "B"
	case Select:
		return "Select"
	case Start:
		return "Start"
	}
	return "?"
}

// Joypad tracks the raw button state and the P1 selection bits.
//
// In real hardware P1 is just a selector (bits 4-5) controlling which button
// group the low 4 bits read from. A bit value of 1 means released, 0 means
// pressed. Bits 6-7 always read as 1.
type Joypad struct {
	buttons uint8 // A/B/Select/Start, low 4 bits, 1 = released
	dpad    uint8 // directions, low 4 bits, 1 = released
	sel     uint8 // selection bits 4-5 as written

	// OnInterrupt is called when any pressed bit transitions high to low.
	OnInterrupt func()
}

// New creates a joypad with every button released.
func New(irq func()) *Joypad {
	return &Joypad{
		buttons:     0x0F,
		dpad:        0x0F,
		sel:         0x30,
		OnInterrupt: irq,
	}
}

// matrixBit returns the group and bit index for a button.
func matrixBit(b Button) (dpad bool, idx uint8) {
	switch b {
	case Right:
		return true, 0
	case Left:
		return true, 1
	case Up:
		return true, 2
	case Down:
		return true, 3
	case A:
		return false, 0
	case B:
		return false, 1
	case Select:
		return false, 2
	case Start:
		return false, 3
	}
	return false, 0
}

// Press marks a button as held. A high-to-low transition on any line
// requests the joypad interrupt.
func (j *Joypad) Press(b Button) {
	dpad, idx := matrixBit(b)
	var group *uint8
	if dpad {
		group = &j.dpad
	} else {
		group = &j.buttons
	}
	was := *group
	*group = bit.Reset(idx, *group)
	if was != *group && j.OnInterrupt != nil {
		j.OnInterrupt()
	}
}

// Release marks a button as released.
func (j *Joypad) Release(b Button) {
	dpad, idx := matrixBit(b)
	if dpad {
		j.dpad = bit.Set(idx, j.dpad)
	} else {
		j.buttons = bit.Set(idx, j.buttons)
	}
}

// Read returns the P1 register value for the current selection.
func (j *Joypad) Read() uint8 {
	result := uint8(0xC0) | j.sel

	selDpad := j.sel&0x10 == 0
	selButtons := j.sel&0x20 == 0

	switch {
	case selButtons && !selDpad:
		result |= j.buttons & 0x0F
	case selDpad && !selButtons:
		result |= j.dpad & 0x0F
	case selButtons && selDpad:
		result |= j.buttons & j.dpad & 0x0F
	default:
		// no selection, high impedance
		result |= 0x0F
	}

	return result
}

// Write stores the selection bits; only bits 4-5 are writable.
func (j *Joypad) Write(value uint8) {
	j.sel = value & 0x30
}

// Reset restores the power-on state without touching held buttons.
func (j *Joypad) Reset() {
	j.sel = 0x30
}
