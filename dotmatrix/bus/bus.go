// Package bus implements the DMG address decoder: it routes every CPU
// memory access to the subsystem owning that range and applies the DMG's
// access quirks (echo RAM, the unusable region, the boot ROM shadow).
package bus

import (
	"fmt"
	"log/slog"

	"github.com/valerio/go-dotmatrix/dotmatrix/addr"
	"github.com/valerio/go-dotmatrix/dotmatrix/apu"
	"github.com/valerio/go-dotmatrix/dotmatrix/cart"
	"github.com/valerio/go-dotmatrix/dotmatrix/interrupt"
	"github.com/valerio/go-dotmatrix/dotmatrix/joypad"
	"github.com/valerio/go-dotmatrix/dotmatrix/ppu"
	"github.com/valerio/go-dotmatrix/dotmatrix/serial"
	"github.com/valerio/go-dotmatrix/dotmatrix/timer"
)

type region uint8

const (
	regionROM region = iota
	regionVRAM
	regionExtRAM
	regionWRAM
	regionEcho
	regionOAM
	regionIO
)

// Bus decodes the 16-bit address space. It owns WRAM and HRAM directly;
// everything else belongs to a subsystem.
type Bus struct {
	Cart   *cart.Cartridge
	PPU    *ppu.PPU
	APU    *apu.APU
	Timer  *timer.Timer
	Serial *serial.Port
	Joypad *joypad.Joypad
	PIC    *interrupt.PIC

	wram [0x2000]uint8
	hram [0x7F]uint8

	bootROM []uint8
	bootOff bool

	regionMap [256]region
}

// New creates a bus with no subsystems attached; the caller assigns the
// exported subsystem fields. bootROM may be nil, in which case
// $0000-$00FF always reads from the cartridge.
func New(bootROM []uint8) *Bus {
	b := &Bus{bootROM: bootROM}
	b.initRegionMap()
	return b
}

func (b *Bus) initRegionMap() {
	for i := 0x00; i <= 0x7F; i++ {
		b.regionMap[i] = regionROM
	}
	for i := 0x80; i <= 0x9F; i++ {
		b.regionMap[i] = regionVRAM
	}
	for i := 0xA0; i <= 0xBF; i++ {
		b.regionMap[i] = regionExtRAM
	}
	for i := 0xC0; i <= 0xDF; i++ {
		b.regionMap[i] = regionWRAM
	}
	for i := 0xE0; i <= 0xFD; i++ {
		b.regionMap[i] = regionEcho
	}
	b.regionMap[0xFE] = regionOAM
	b.regionMap[0xFF] = regionIO
}

// BootROMEnabled reports whether the boot shadow still covers $0000-$00FF.
func (b *Bus) BootROMEnabled() bool {
	return b.bootROM != nil && !b.bootOff
}

// Read returns the byte at the given address. Unmapped addresses read as
// 0xFF and never fault.
func (b *Bus) Read(address uint16) uint8 {
	switch b.regionMap[address>>8] {
	case regionROM:
		if b.BootROMEnabled() && address < 0x0100 {
			return b.bootROM[address]
		}
		if b.Cart == nil {
			slog.Debug("Read from ROM with no cartridge", "addr", fmt.Sprintf("0x%04X", address))
			return 0xFF
		}
		return b.Cart.Read(address)
	case regionVRAM:
		return b.PPU.ReadVRAM(address)
	case regionExtRAM:
		if b.Cart == nil {
			slog.Debug("Read from external RAM with no cartridge", "addr", fmt.Sprintf("0x%04X", address))
			return 0xFF
		}
		return b.Cart.Read(address)
	case regionWRAM:
		return b.wram[address-0xC000]
	case regionEcho:
		return b.wram[address-0xE000]
	case regionOAM:
		if address <= addr.OAMEnd {
			return b.PPU.ReadOAM(address)
		}
		// Unusable region $FEA0-$FEFF
		return 0xFF
	case regionIO:
		return b.readIO(address)
	}
	return 0xFF
}

// Write stores the byte at the given address. Writes to unmapped addresses
// are dropped and logged at trace level.
func (b *Bus) Write(address uint16, value uint8) {
	switch b.regionMap[address>>8] {
	case regionROM, regionExtRAM:
		if b.Cart == nil {
			slog.Debug("Write with no cartridge",
				"addr", fmt.Sprintf("0x%04X", address),
				"value", fmt.Sprintf("0x%02X", value))
			return
		}
		b.Cart.Write(address, value)
	case regionVRAM:
		b.PPU.WriteVRAM(address, value)
	case regionWRAM:
		b.wram[address-0xC000] = value
	case regionEcho:
		b.wram[address-0xE000] = value
	case regionOAM:
		if address <= addr.OAMEnd {
			b.PPU.WriteOAM(address, value)
		}
		// Writes to $FEA0-$FEFF are dropped.
	case regionIO:
		b.writeIO(address, value)
	}
}

func (b *Bus) readIO(address uint16) uint8 {
	switch {
	case address == addr.P1:
		return b.Joypad.Read()
	case address == addr.SB || address == addr.SC:
		return b.Serial.Read(address)
	case address >= addr.DIV && address <= addr.TAC:
		return b.Timer.Read(address)
	case address == addr.IF:
		return b.PIC.Flags()
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		return b.APU.Read(address)
	case address >= addr.LCDC && address <= addr.WX:
		return b.PPU.Read(address)
	case address == addr.Boot:
		if b.bootOff {
			return 0xFF
		}
		return 0xFE
	case address >= 0xFF80 && address <= 0xFFFE:
		return b.hram[address-0xFF80]
	case address == addr.IE:
		return b.PIC.Enable()
	default:
		slog.Debug("Read from unmapped I/O", "addr", fmt.Sprintf("0x%04X", address))
		return 0xFF
	}
}

func (b *Bus) writeIO(address uint16, value uint8) {
	switch {
	case address == addr.P1:
		b.Joypad.Write(value)
	case address == addr.SB || address == addr.SC:
		b.Serial.Write(address, value)
	case address >= addr.DIV && address <= addr.TAC:
		b.Timer.Write(address, value)
	case address == addr.IF:
		b.PIC.SetFlags(value)
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		b.APU.Write(address, value)
	case address == addr.DMA:
		b.dmaTransfer(value)
		b.PPU.Write(address, value)
	case address >= addr.LCDC && address <= addr.WX:
		b.PPU.Write(address, value)
	case address == addr.Boot:
		// Any nonzero write permanently unmaps the boot ROM.
		if value != 0 {
			if !b.bootOff {
				slog.Debug("Boot ROM unmapped")
			}
			b.bootOff = true
		}
	case address >= 0xFF80 && address <= 0xFFFE:
		b.hram[address-0xFF80] = value
	case address == addr.IE:
		b.PIC.SetEnable(value)
	default:
		slog.Debug("Write to unmapped I/O",
			"addr", fmt.Sprintf("0x%04X", address),
			"value", fmt.Sprintf("0x%02X", value))
	}
}

// dmaTransfer copies 160 bytes from source<<8 into OAM. The copy bypasses
// the PPU's OAM lock: DMA has its own port into object memory.
func (b *Bus) dmaTransfer(source uint8) {
	base := uint16(source) << 8
	for i := uint16(0); i < 0xA0; i++ {
		b.PPU.DMAWrite(uint8(i), b.Read(base+i))
	}
}

// Reset restores power-on state: RAM cleared and the boot shadow restored
// (when one was provided at construction).
func (b *Bus) Reset() {
	for i := range b.wram {
		b.wram[i] = 0
	}
	for i := range b.hram {
		b.hram[i] = 0
	}
	b.bootOff = false
}
