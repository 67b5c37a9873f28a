// Package debug exposes the inspection surface an external debugger needs:
// named register ports over every subsystem, raw bus access, single-cycle
// stepping, and PC breakpoints.
package debug

import (
	"fmt"
	"strings"

	"github.com/valerio/go-dotmatrix/dotmatrix"
	"github.com/valerio/go-dotmatrix/dotmatrix/addr"
	"github.com/valerio/go-dotmatrix/dotmatrix/cpu"
)

// ioRegisters maps register names to their bus addresses. Loads and stores
// on these go through the bus, so each register's read-back masking applies.
var ioRegisters = map[string]uint16{
	"p1":   addr.P1,
	"sb":   addr.SB,
	"sc":   addr.SC,
	"div":  addr.DIV,
	"tima": addr.TIMA,
	"tma":  addr.TMA,
	"tac":  addr.TAC,
	"if":   addr.IF,
	"ie":   addr.IE,
	"lcdc": addr.LCDC,
	"stat": addr.STAT,
	"scy":  addr.SCY,
	"scx":  addr.SCX,
	"ly":   addr.LY,
	"lyc":  addr.LYC,
	"dma":  addr.DMA,
	"bgp":  addr.BGP,
	"obp0": addr.OBP0,
	"obp1": addr.OBP1,
	"wy":   addr.WY,
	"wx":   addr.WX,
	"nr10": addr.NR10,
	"nr11": addr.NR11,
	"nr12": addr.NR12,
	"nr13": addr.NR13,
	"nr14": addr.NR14,
	"nr21": addr.NR21,
	"nr22": addr.NR22,
	"nr23": addr.NR23,
	"nr24": addr.NR24,
	"nr30": addr.NR30,
	"nr31": addr.NR31,
	"nr32": addr.NR32,
	"nr33": addr.NR33,
	"nr34": addr.NR34,
	"nr41": addr.NR41,
	"nr42": addr.NR42,
	"nr43": addr.NR43,
	"nr44": addr.NR44,
	"nr50": addr.NR50,
	"nr51": addr.NR51,
	"nr52": addr.NR52,
}

// Debugger wraps a DMG with an inspection interface. It never runs the
// machine on its own; the host decides when to cycle.
type Debugger struct {
	dmg *dotmatrix.DMG

	breakpoints map[uint16]struct{}
}

// New creates a debugger over the given machine.
func New(d *dotmatrix.DMG) *Debugger {
	return &Debugger{
		dmg:         d,
		breakpoints: make(map[uint16]struct{}),
	}
}

// Load reads a named register. CPU register pairs return 16 bits;
// everything else returns a byte.
func (g *Debugger) Load(name string) (uint16, error) {
	c := g.dmg.CPU()
	switch strings.ToLower(name) {
	case "a":
		return uint16(c.A), nil
	case "f":
		return uint16(c.F), nil
	case "b":
		return uint16(c.B), nil
	case "c":
		return uint16(c.C), nil
	case "d":
		return uint16(c.D), nil
	case "e":
		return uint16(c.E), nil
	case "h":
		return uint16(c.H), nil
	case "l":
		return uint16(c.L), nil
	case "af":
		return c.AF(), nil
	case "bc":
		return c.BC(), nil
	case "de":
		return c.DE(), nil
	case "hl":
		return c.HL(), nil
	case "sp":
		return c.SP, nil
	case "pc":
		return c.PC, nil
	}
	if a, ok := ioRegisters[strings.ToLower(name)]; ok {
		return uint16(g.dmg.Bus().Read(a)), nil
	}
	return 0, fmt.Errorf("debug: unknown register %q", name)
}

// Store writes a named register. Writable-bit masking is applied by the
// owning subsystem, so a Load after Store returns the masked value.
func (g *Debugger) Store(name string, value uint16) error {
	c := g.dmg.CPU()
	switch strings.ToLower(name) {
	case "a":
		c.A = uint8(value)
	case "f":
		c.F = uint8(value) & 0xF0
	case "b":
		c.B = uint8(value)
	case "c":
		c.C = uint8(value)
	case "d":
		c.D = uint8(value)
	case "e":
		c.E = uint8(value)
	case "h":
		c.H = uint8(value)
	case "l":
		c.L = uint8(value)
	case "af":
		c.SetAF(value)
	case "bc":
		c.SetBC(value)
	case "de":
		c.SetDE(value)
	case "hl":
		c.SetHL(value)
	case "sp":
		c.SP = value
	case "pc":
		c.PC = value
	default:
		if a, ok := ioRegisters[strings.ToLower(name)]; ok {
			g.dmg.Bus().Write(a, uint8(value))
			return nil
		}
		return fmt.Errorf("debug: unknown register %q", name)
	}
	return nil
}

// Read returns a byte from the CPU-visible bus.
func (g *Debugger) Read(address uint16) uint8 {
	return g.dmg.Bus().Read(address)
}

// Write stores a byte on the CPU-visible bus.
func (g *Debugger) Write(address uint16, value uint8) {
	g.dmg.Bus().Write(address, value)
}

// Stage returns the CPU's execution stage and the in-flight mnemonic.
func (g *Debugger) Stage() (cpu.Stage, string) {
	return g.dmg.CPU().Stage(), g.dmg.CPU().Instruction()
}

// Dot returns the PPU's position: dot within the scanline and LY.
func (g *Debugger) Dot() (int, uint8) {
	return g.dmg.PPU().Dot(), g.dmg.PPU().LY()
}

// Cycle advances the machine by a single T-cycle.
func (g *Debugger) Cycle() {
	g.dmg.Cycle()
}

// Reset resets the whole machine.
func (g *Debugger) Reset() {
	g.dmg.Reset()
}

// Break schedules a breakpoint at a PC value.
func (g *Debugger) Break(pc uint16) {
	g.breakpoints[pc] = struct{}{}
}

// Unbreak removes a breakpoint.
func (g *Debugger) Unbreak(pc uint16) {
	delete(g.breakpoints, pc)
}

// Run advances the machine until a breakpoint is reached at an instruction
// boundary, or until limit T-cycles have elapsed. It reports whether a
// breakpoint was hit.
func (g *Debugger) Run(limit uint64) bool {
	c := g.dmg.CPU()
	for i := uint64(0); i < limit; i++ {
		g.dmg.Cycle()
		if c.Stage() != cpu.StageFetch {
			continue
		}
		if _, ok := g.breakpoints[c.PC]; ok {
			return true
		}
	}
	return false
}
