// Package dotmatrix emulates the original Game Boy (DMG). The DMG type
// composes every subsystem and drives them off a single 4 MiHz T-clock.
package dotmatrix

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/valerio/go-dotmatrix/dotmatrix/apu"
	"github.com/valerio/go-dotmatrix/dotmatrix/bus"
	"github.com/valerio/go-dotmatrix/dotmatrix/cart"
	"github.com/valerio/go-dotmatrix/dotmatrix/cpu"
	"github.com/valerio/go-dotmatrix/dotmatrix/interrupt"
	"github.com/valerio/go-dotmatrix/dotmatrix/joypad"
	"github.com/valerio/go-dotmatrix/dotmatrix/ppu"
	"github.com/valerio/go-dotmatrix/dotmatrix/serial"
	"github.com/valerio/go-dotmatrix/dotmatrix/timer"
)

// FrameCycles is the number of T-cycles per video frame.
const FrameCycles = ppu.FrameRate

// postBootDivSeed is the internal divider value observed after the boot
// ROM hands over control.
const postBootDivSeed = 0xABCC

// Option configures a DMG at construction.
type Option func(*DMG)

// WithBootROM maps a 256-byte boot ROM over $0000-$00FF until the program
// writes the boot-disable register. Execution then starts at $0000.
func WithBootROM(rom []uint8) Option {
	return func(d *DMG) { d.bootROM = rom }
}

// WithStrict makes every advisory cartridge diagnostic fatal at load.
func WithStrict() Option {
	return func(d *DMG) { d.strict = true }
}

// WithSerialDevice attaches a peer to the link cable.
func WithSerialDevice(dev serial.Device) Option {
	return func(d *DMG) { d.serialDev = dev }
}

// DMG is the system-on-chip: exclusive owner of every subsystem.
type DMG struct {
	cpu    *cpu.CPU
	ppu    *ppu.PPU
	apu    *apu.APU
	timer  *timer.Timer
	serial *serial.Port
	joypad *joypad.Joypad
	pic    *interrupt.PIC
	bus    *bus.Bus
	cart   *cart.Cartridge

	bootROM   []uint8
	strict    bool
	serialDev serial.Device

	cycles uint64 // T-cycles since reset
	frames uint64
}

// New creates a DMG with no cartridge inserted. Reads from the cartridge
// space return 0xFF, like powering on an empty console.
func New(opts ...Option) *DMG {
	d := &DMG{}
	for _, opt := range opts {
		opt(d)
	}

	d.pic = &interrupt.PIC{}
	d.timer = timer.New(func() { d.pic.Raise(interrupt.Timer) })
	d.ppu = ppu.New(
		func() { d.pic.Raise(interrupt.VBlank) },
		func() { d.pic.Raise(interrupt.LCD) },
	)
	d.apu = apu.New()
	d.serial = serial.New(d.serialDev, func() { d.pic.Raise(interrupt.Serial) })
	d.joypad = joypad.New(func() { d.pic.Raise(interrupt.Joypad) })

	d.bus = bus.New(d.bootROM)
	d.bus.PPU = d.ppu
	d.bus.APU = d.apu
	d.bus.Timer = d.timer
	d.bus.Serial = d.serial
	d.bus.Joypad = d.joypad
	d.bus.PIC = d.pic

	d.cpu = cpu.New(d.bus, d.pic)

	d.Reset()
	return d
}

// NewWithROM creates a DMG with the given cartridge image loaded.
func NewWithROM(rom []uint8, opts ...Option) (*DMG, error) {
	d := New(opts...)

	var cartOpts []cart.Option
	if d.strict {
		cartOpts = append(cartOpts, cart.Strict())
	}
	c, err := cart.New(rom, cartOpts...)
	if err != nil {
		return nil, err
	}
	d.cart = c
	d.bus.Cart = c
	return d, nil
}

// NewWithFile creates a DMG and loads the ROM file at path into it.
func NewWithFile(path string, opts ...Option) (*DMG, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ROM: %w", err)
	}
	slog.Debug("Loaded ROM data", "size", len(data))
	return NewWithROM(data, opts...)
}

// Cycle advances the whole system by one T-cycle. Within the tick the
// order is fixed: timer, APU, PPU, then the CPU on every fourth tick.
func (d *DMG) Cycle() {
	d.timer.Cycle()
	d.apu.Cycle(d.timer.Div())
	d.ppu.Cycle()
	d.cpu.Cycle()
	d.serial.Cycle()
	d.cycles++
	if d.ppu.VSync() {
		d.frames++
	}
}

// RunFrame advances the system by exactly one frame worth of cycles and
// returns the frame buffer.
func (d *DMG) RunFrame() *ppu.FrameBuffer {
	for i := 0; i < FrameCycles; i++ {
		d.Cycle()
	}
	return d.ppu.Frame()
}

// VSync reports whether the last cycle completed a frame.
func (d *DMG) VSync() bool {
	return d.ppu.VSync()
}

// Frame returns the current frame buffer.
func (d *DMG) Frame() *ppu.FrameBuffer {
	return d.ppu.Frame()
}

// Samples drains the APU's accumulated stereo samples.
func (d *DMG) Samples() []float32 {
	return d.apu.Samples()
}

// Press marks a joypad button as held.
func (d *DMG) Press(b joypad.Button) {
	d.joypad.Press(b)
}

// Release marks a joypad button as released.
func (d *DMG) Release(b joypad.Button) {
	d.joypad.Release(b)
}

// SaveRAM returns a copy of battery-backed external RAM, or nil.
func (d *DMG) SaveRAM() []uint8 {
	if d.cart == nil {
		return nil
	}
	return d.cart.SaveRAM()
}

// LoadRAM restores battery-backed external RAM from a save dump.
func (d *DMG) LoadRAM(data []uint8) {
	if d.cart != nil {
		d.cart.LoadRAM(data)
	}
}

// Cycles returns the number of T-cycles executed since reset.
func (d *DMG) Cycles() uint64 { return d.cycles }

// Frames returns the number of frames completed since reset.
func (d *DMG) Frames() uint64 { return d.frames }

// Subsystem accessors, used by the debugger and tests.

// CPU returns the processor.
func (d *DMG) CPU() *cpu.CPU { return d.cpu }

// PPU returns the picture processing unit.
func (d *DMG) PPU() *ppu.PPU { return d.ppu }

// APU returns the audio processing unit.
func (d *DMG) APU() *apu.APU { return d.apu }

// Timer returns the hardware timer.
func (d *DMG) Timer() *timer.Timer { return d.timer }

// PIC returns the interrupt controller.
func (d *DMG) PIC() *interrupt.PIC { return d.pic }

// Bus returns the memory bus.
func (d *DMG) Bus() *bus.Bus { return d.bus }

// Serial returns the link-cable port.
func (d *DMG) Serial() *serial.Port { return d.serial }

// Cart returns the loaded cartridge, or nil.
func (d *DMG) Cart() *cart.Cartridge { return d.cart }

// Reset restores every subsystem to its power-on state. Resetting twice is
// the same as resetting once.
func (d *DMG) Reset() {
	boot := d.bootROM != nil
	d.cpu.Reset(boot)
	d.ppu.Reset()
	d.apu.Reset()
	d.timer.Reset()
	d.serial.Reset()
	d.joypad.Reset()
	d.pic.Reset()
	d.bus.Reset()
	d.cycles = 0
	d.frames = 0

	if !boot {
		d.skipBoot()
	}
}

// skipBoot applies the register state the boot ROM leaves behind, so ROMs
// start from $0100 in the environment they expect.
func (d *DMG) skipBoot() {
	c := d.cpu
	c.SetAF(0x01B0)
	c.SetBC(0x0013)
	c.SetDE(0x00D8)
	c.SetHL(0x014D)
	c.SP = 0xFFFE

	d.timer.SetSeed(postBootDivSeed)

	d.bus.Write(0xFF40, 0x91) // LCDC
	d.bus.Write(0xFF47, 0xFC) // BGP
	d.bus.Write(0xFF48, 0xFF) // OBP0
	d.bus.Write(0xFF49, 0xFF) // OBP1
	d.bus.Write(0xFF26, 0xF1) // NR52: APU on (channel status bits are read-only)
	d.bus.Write(0xFF25, 0xF3) // NR51
	d.bus.Write(0xFF24, 0x77) // NR50
}
