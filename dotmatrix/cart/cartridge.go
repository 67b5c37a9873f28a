// Package cart implements cartridge loading: header decode and the memory
// bank controllers that govern ROM/RAM banking and save RAM.
package cart

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrUnsupportedMBC means the header declared a bank controller this
// emulator does not implement.
var ErrUnsupportedMBC = errors.New("cart: unsupported bank controller")

// ErrROMSize means the ROM image size disagrees with the header.
var ErrROMSize = errors.New("cart: ROM size mismatch")

// Option configures cartridge loading.
type Option func(*config)

type config struct {
	strict bool
}

// Strict makes every advisory header failure fatal: field errors, the
// global checksum, and a ROM image size that disagrees with the header.
func Strict() Option {
	return func(c *config) { c.strict = true }
}

// Cartridge is a loaded ROM image with its decoded header and the bank
// controller that routes reads and writes.
type Cartridge struct {
	Header *Header

	rom []uint8
	mbc MBC
}

// New loads a cartridge from a ROM image.
func New(rom []uint8, opts ...Option) (*Cartridge, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	var header *Header
	var err error
	if cfg.strict {
		header, err = ParseHeaderStrict(rom)
	} else {
		header, err = ParseHeader(rom)
	}
	if err != nil {
		return nil, err
	}

	if len(rom)%0x4000 != 0 || len(rom) != header.ROMSize {
		mismatch := fmt.Errorf("%w: image is %d bytes, header declares %d", ErrROMSize, len(rom), header.ROMSize)
		if cfg.strict {
			return nil, mismatch
		}
		slog.Warn("ROM size mismatch", "image", len(rom), "header", header.ROMSize)
	}

	mbc, err := newMBC(header, rom)
	if err != nil {
		return nil, err
	}

	slog.Debug("Loaded cartridge", "header", header.String())

	return &Cartridge{
		Header: header,
		rom:    rom,
		mbc:    mbc,
	}, nil
}

func newMBC(header *Header, rom []uint8) (MBC, error) {
	switch header.Info.Kind {
	case MBCNone:
		ramSize := 0
		if header.Info.RAM {
			ramSize = header.RAMSize
		}
		return NewNoMBC(rom, ramSize), nil
	case MBC1:
		return NewMBC1(rom, header.RAMSize), nil
	case MBC2:
		return NewMBC2(rom), nil
	case MBC3:
		return NewMBC3(rom, header.RAMSize, header.Info.RTC), nil
	case MBC5:
		return NewMBC5(rom, header.RAMSize, header.Info.Rumble), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMBC, header.Info.Kind)
	}
}

// Read returns a byte from cartridge ROM or external RAM.
func (c *Cartridge) Read(addr uint16) uint8 {
	return c.mbc.Read(addr)
}

// Write routes a write to the bank controller.
func (c *Cartridge) Write(addr uint16, value uint8) {
	c.mbc.Write(addr, value)
}

// Battery reports whether external RAM should be persisted.
func (c *Cartridge) Battery() bool {
	return c.Header.Info.Battery
}

// SaveRAM returns a copy of external RAM for persistence. Nil when the
// cartridge has no battery.
func (c *Cartridge) SaveRAM() []uint8 {
	if !c.Battery() {
		return nil
	}
	ram := c.mbc.RAM()
	out := make([]uint8, len(ram))
	copy(out, ram)
	return out
}

// LoadRAM restores external RAM from a save dump. Oversized dumps are
// truncated; undersized ones fill from the start.
func (c *Cartridge) LoadRAM(data []uint8) {
	if !c.Battery() {
		slog.Warn("Ignoring save RAM for cartridge without battery")
		return
	}
	copy(c.mbc.RAM(), data)
}
