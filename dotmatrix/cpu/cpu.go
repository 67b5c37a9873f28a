// Package cpu implements the SM83 processor as a staged executor: every
// M-cycle advances the stage machine by one step, and interrupts are only
// sampled at instruction boundaries.
package cpu

import (
	"fmt"
	"log/slog"

	"github.com/valerio/go-dotmatrix/dotmatrix/bit"
	"github.com/valerio/go-dotmatrix/dotmatrix/interrupt"
)

// Bus is the CPU's view of memory.
type Bus interface {
	Read(addr uint16) uint8
	Write(addr uint16, value uint8)
}

// Status is the processor's running state.
type Status uint8

const (
	// StatusRunning is normal execution.
	StatusRunning Status = iota
	// StatusHalted means the CPU is waiting for an interrupt.
	StatusHalted
	// StatusStopped means the CPU has stopped fetching entirely (STOP or an
	// illegal opcode). Registers stay frozen for inspection.
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "Running"
	case StatusHalted:
		return "Halted"
	case StatusStopped:
		return "Stopped"
	}
	return "?"
}

// imeState is the interrupt master enable. EI only takes effect after the
// following instruction, so the transition is tri-state.
type imeState uint8

const (
	imeDisabled imeState = iota
	imeWillEnable
	imeEnabled
)

// Stage is the executor's position within the current instruction.
type Stage uint8

const (
	// StageFetch means the next M-cycle starts a new instruction.
	StageFetch Stage = iota
	// StageExecute means an instruction is mid-flight, holding the bus for
	// its remaining M-cycles.
	StageExecute
)

// interruptCycles is the fixed M-cycle cost of interrupt dispatch: 2 idle,
// 2 pushing PC, 1 jumping to the handler.
const interruptCycles = 5

// CPU is the SM83 core.
type CPU struct {
	Registers

	bus Bus
	pic *interrupt.PIC

	ime     imeState
	status  Status
	prefix  bool // next fetch decodes from the CB table
	haltBug bool

	stage Stage
	inst  *Instruction
	wait  int // M-cycles left before the next instruction boundary

	tdiv   int    // T-cycles within the current M-cycle
	mtotal uint64 // executed M-cycles, for inspection

	// Scratch for the current instruction's immediate operand logging.
	currentOp uint8
}

// New creates a CPU attached to a bus and interrupt controller.
func New(bus Bus, pic *interrupt.PIC) *CPU {
	return &CPU{bus: bus, pic: pic}
}

// Status returns the processor running state.
func (c *CPU) Status() Status { return c.status }

// Stage returns the executor stage, for the debugger.
func (c *CPU) Stage() Stage {
	return c.stage
}

// Instruction returns the in-flight instruction name, or "" at a boundary.
func (c *CPU) Instruction() string {
	if c.stage == StageExecute && c.inst != nil {
		return c.inst.name
	}
	return ""
}

// MCycles returns the number of M-cycles executed since reset.
func (c *CPU) MCycles() uint64 { return c.mtotal }

// IME reports whether interrupts are enabled.
func (c *CPU) IME() bool { return c.ime == imeEnabled }

// Cycle advances the CPU by one T-cycle. Work happens on every fourth.
func (c *CPU) Cycle() {
	c.tdiv++
	if c.tdiv < 4 {
		return
	}
	c.tdiv = 0
	c.mcycle()
}

// mcycle advances the stage machine by one M-cycle.
func (c *CPU) mcycle() {
	c.mtotal++

	// An in-flight instruction holds the stage for its remaining cycles.
	if c.wait > 0 {
		c.wait--
		if c.wait == 0 {
			c.stage = StageFetch
			c.inst = nil
		}
		return
	}

	switch c.status {
	case StatusStopped:
		return
	case StatusHalted:
		if !c.pic.Pending() {
			return
		}
		// Any pending enabled interrupt wakes the CPU, IME or not.
		c.status = StatusRunning
	}

	// Instruction boundary: sample the PIC. Prefixed instructions execute
	// atomically with their CB byte, so no sampling in between.
	if !c.prefix && c.ime == imeEnabled {
		if k, ok := c.pic.Fetch(); ok {
			c.dispatch(k)
			return
		}
	}

	// Fetch.
	op := c.bus.Read(c.PC)
	c.PC++
	if c.haltBug {
		// The halt bug makes the next opcode byte get fetched twice: the
		// read happened but PC does not advance.
		c.PC--
		c.haltBug = false
	}

	var inst *Instruction
	if c.prefix {
		c.prefix = false
		inst = &cbInstructions[op]
	} else {
		inst = &baseInstructions[op]
	}
	c.currentOp = op

	// EI takes effect after the instruction following it has been fetched.
	if c.ime == imeWillEnable {
		c.ime = imeEnabled
	}

	// Execute. Handlers do their work now and report the instruction's
	// total M-cycle cost; the stage holds for the remainder.
	c.inst = inst
	cycles := inst.fn(c)
	if cycles > 1 {
		c.stage = StageExecute
		c.wait = cycles - 1
	} else {
		c.stage = StageFetch
		c.inst = nil
	}
}

// dispatch services an interrupt: disable IME, acknowledge the request,
// push PC and jump to the handler. Always 5 M-cycles.
func (c *CPU) dispatch(k interrupt.Kind) {
	c.ime = imeDisabled
	c.pic.Clear(k)
	c.push16(c.PC)
	c.PC = k.Vector()
	c.stage = StageExecute
	c.inst = &dispatchInstruction
	c.wait = interruptCycles - 1

	slog.Debug("Interrupt dispatch", "kind", k.String(), "vector", fmt.Sprintf("0x%04X", c.PC))
}

var dispatchInstruction = Instruction{name: "ISR", fn: func(*CPU) int { return interruptCycles }}

// illegal handles an undefined opcode: log it and freeze the processor, leaving
// the rest of the system running so a debugger can inspect.
func (c *CPU) illegal() int {
	slog.Error("Illegal opcode, stopping CPU",
		"opcode", fmt.Sprintf("0x%02X", c.currentOp),
		"pc", fmt.Sprintf("0x%04X", c.PC-1))
	c.status = StatusStopped
	return 1
}

// fetchByte reads the next immediate operand byte.
func (c *CPU) fetchByte() uint8 {
	b := c.bus.Read(c.PC)
	c.PC++
	return b
}

// fetchWord reads the next immediate operand word, little-endian.
func (c *CPU) fetchWord() uint16 {
	lo := c.fetchByte()
	hi := c.fetchByte()
	return bit.Combine(hi, lo)
}

func (c *CPU) push16(value uint16) {
	c.SP--
	c.bus.Write(c.SP, bit.High(value))
	c.SP--
	c.bus.Write(c.SP, bit.Low(value))
}

func (c *CPU) pop16() uint16 {
	lo := c.bus.Read(c.SP)
	c.SP++
	hi := c.bus.Read(c.SP)
	c.SP++
	return bit.Combine(hi, lo)
}

// Reset restores the power-on state. bootROM selects the reset vector: with
// a boot ROM mapped PC starts at $0000, otherwise at $0100.
func (c *CPU) Reset(bootROM bool) {
	c.Registers = Registers{}
	if !bootROM {
		c.PC = 0x0100
	}
	c.ime = imeDisabled
	c.status = StatusRunning
	c.prefix = false
	c.haltBug = false
	c.stage = StageFetch
	c.inst = nil
	c.wait = 0
	c.tdiv = 0
	c.mtotal = 0
}
