package cpu

import "github.com/valerio/go-dotmatrix/dotmatrix/bit"

// Flag is one of the 4 flags in the flag register (low part of AF).
type Flag uint8

const (
	FlagZ Flag = 0x80 // zero
	FlagN Flag = 0x40 // subtraction
	FlagH Flag = 0x20 // half carry
	FlagC Flag = 0x10 // carry
)

// Registers is the SM83 register file. The low nibble of F is unused and
// always holds zero.
type Registers struct {
	A, F uint8
	B, C uint8
	D, E uint8
	H, L uint8
	SP   uint16
	PC   uint16
}

// AF returns the joint AF register.
func (r *Registers) AF() uint16 { return bit.Combine(r.A, r.F) }

// BC returns the joint BC register.
func (r *Registers) BC() uint16 { return bit.Combine(r.B, r.C) }

// DE returns the joint DE register.
func (r *Registers) DE() uint16 { return bit.Combine(r.D, r.E) }

// HL returns the joint HL register.
func (r *Registers) HL() uint16 { return bit.Combine(r.H, r.L) }

// SetAF stores the joint AF register, masking the unused flag bits.
func (r *Registers) SetAF(value uint16) {
	r.A = bit.High(value)
	r.F = bit.Low(value) & 0xF0
}

// SetBC stores the joint BC register.
func (r *Registers) SetBC(value uint16) {
	r.B = bit.High(value)
	r.C = bit.Low(value)
}

// SetDE stores the joint DE register.
func (r *Registers) SetDE(value uint16) {
	r.D = bit.High(value)
	r.E = bit.Low(value)
}

// SetHL stores the joint HL register.
func (r *Registers) SetHL(value uint16) {
	r.H = bit.High(value)
	r.L = bit.Low(value)
}

// Flag reports whether a flag bit is set.
func (r *Registers) Flag(f Flag) bool {
	return r.F&uint8(f) != 0
}

// SetFlag sets or clears a flag bit.
func (r *Registers) SetFlag(f Flag, on bool) {
	if on {
		r.F |= uint8(f)
	} else {
		r.F &^= uint8(f)
	}
	r.F &= 0xF0
}
