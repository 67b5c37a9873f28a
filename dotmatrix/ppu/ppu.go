// Package ppu implements the picture processing unit: a dot-driven state
// machine that scans OAM, draws pixels through a fetcher/FIFO pipeline, and
// idles through the blanking periods.
package ppu

import (
	"github.com/valerio/go-dotmatrix/dotmatrix/addr"
)

// Mode is the PPU's current rendering stage. Values match STAT bits 1-0.
type Mode uint8

const (
	// ModeHBlank (mode 0): idle until the end of the scanline.
	ModeHBlank Mode = 0
	// ModeVBlank (mode 1): idle for scanlines 144-153.
	ModeVBlank Mode = 1
	// ModeScan (mode 2): scanning OAM for sprites on this line.
	ModeScan Mode = 2
	// ModeDraw (mode 3): pushing pixels to the LCD.
	ModeDraw Mode = 3
)

func (m Mode) String() string {
	switch m {
	case ModeHBlank:
		return "HBlank"
	case ModeVBlank:
		return "VBlank"
	case ModeScan:
		return "Scan"
	case ModeDraw:
		return "Draw"
	}
	return "?"
}

// Scanline timing in dots.
const (
	scanDots     = 80
	lineDots     = 456
	visibleLines = 144
	totalLines   = 154
)

// LCDC bit values.
// Reference: https://gbdev.io/pandocs/LCDC.html
const (
	lcdcEnable      = 1 << 7 // LCD and PPU enable
	lcdcWinMap      = 1 << 6 // window tile map area
	lcdcWinEnable   = 1 << 5 // window enable
	lcdcBgWinData   = 1 << 4 // BG/window tile data area
	lcdcBgMap       = 1 << 3 // BG tile map area
	lcdcObjSize     = 1 << 2 // object height (8 or 16)
	lcdcObjEnable   = 1 << 1 // object enable
	lcdcBgWinEnable = 1 << 0 // BG/window enable
)

// STAT bit values.
const (
	statLycIRQ    = 1 << 6
	statScanIRQ   = 1 << 5
	statVBlankIRQ = 1 << 4
	statHBlankIRQ = 1 << 3
	statLycFlag   = 1 << 2
)

// PPU owns VRAM, OAM, the LCD registers, and the pixel pipeline.
type PPU struct {
	vram [0x2000]uint8
	oam  [0xA0]uint8

	lcdc uint8
	stat uint8
	scy  uint8
	scx  uint8
	ly   uint8
	lyc  uint8
	dma  uint8
	bgp  uint8
	obp0 uint8
	obp1 uint8
	wy   uint8
	wx   uint8

	mode Mode
	dot  int

	// draw state, reset at the start of every scanline
	lx      int // pixels emitted on this line
	discard int // SCX%8 pixels dropped at line start
	fifo    pixelFIFO
	fetch   fetcher
	sprites []sprite

	// window state
	wyMatched  bool  // WY == LY happened this frame
	winActive  bool  // window fetching on this line
	windowLine uint8 // internal window line counter

	frame *FrameBuffer
	vsync bool

	// Interrupt callbacks, wired to the PIC.
	OnVBlank func()
	OnSTAT   func()
}

// New creates a PPU with the interrupt lines wired.
func New(vblank, stat func()) *PPU {
	return &PPU{
		frame:    &FrameBuffer{},
		sprites:  make([]sprite, 0, 10),
		OnVBlank: vblank,
		OnSTAT:   stat,
	}
}

// Enabled reports whether LCDC bit 7 is set.
func (p *PPU) Enabled() bool {
	return p.lcdc&lcdcEnable != 0
}

// Mode returns the current rendering stage.
func (p *PPU) Mode() Mode { return p.mode }

// Dot returns the dot counter within the current scanline (0-455).
func (p *PPU) Dot() int { return p.dot }

// LY returns the current scanline counter.
func (p *PPU) LY() uint8 { return p.ly }

// Frame returns the frame buffer. Present it when VSync reports true.
func (p *PPU) Frame() *FrameBuffer { return p.frame }

// VSync reports whether the cycle just executed was the final dot of a
// frame: mode VBlank, LY 153, dot 455, PPU enabled.
func (p *PPU) VSync() bool { return p.vsync }

// Cycle advances the PPU by one dot. The PPU does work only while enabled.
func (p *PPU) Cycle() {
	p.vsync = false
	if !p.Enabled() {
		return
	}

	if p.ly < visibleLines {
		switch {
		case p.dot < scanDots:
			p.cycleScan()
		case p.mode == ModeDraw:
			p.cycleDraw()
		}
	}

	// The frame-ready check happens before the dot counter advances: the
	// 70224th cycle of a frame is LY 153, dot 455.
	if p.mode == ModeVBlank && p.ly == totalLines-1 && p.dot == lineDots-1 {
		p.vsync = true
	}

	p.dot++
	if p.dot == lineDots {
		p.dot = 0
		p.nextLine()
	}
}

func (p *PPU) cycleScan() {
	if p.dot == 0 {
		p.setMode(ModeScan)
		if p.stat&statScanIRQ != 0 {
			p.OnSTAT()
		}
		p.sprites = p.sprites[:0]
		if p.ly == p.wy {
			p.wyMatched = true
		}
	}

	// One OAM entry every 2 dots: 40 entries over the 80-dot scan.
	if p.dot%2 == 0 {
		p.scanEntry(p.dot / 2)
	}

	if p.dot == scanDots-1 {
		p.startDraw()
	}
}

func (p *PPU) startDraw() {
	p.setMode(ModeDraw)
	p.lx = 0
	p.discard = int(p.scx & 7)
	p.fifo.clear()
	p.fetch.start(false)
	p.winActive = false
}

func (p *PPU) cycleDraw() {
	// The fetcher runs at 2 MiHz: one step every other dot.
	if p.dot%2 == 0 {
		p.fetch.advance(p)
	}

	if p.fifo.size() == 0 {
		return
	}

	// Switching to the window resets the pipeline mid-line.
	if !p.winActive && p.windowVisible() {
		p.winActive = true
		p.fifo.clear()
		p.fetch.start(true)
		return
	}

	px := p.fifo.pop()
	if p.discard > 0 {
		p.discard--
		return
	}

	p.emit(px)
	p.lx++
	if p.lx == FrameWidth {
		p.setMode(ModeHBlank)
		if p.stat&statHBlankIRQ != 0 {
			p.OnSTAT()
		}
		if p.winActive {
			p.windowLine++
		}
	}
}

// windowVisible reports whether the window covers the next pixel.
func (p *PPU) windowVisible() bool {
	if p.lcdc&lcdcWinEnable == 0 || p.lcdc&lcdcBgWinEnable == 0 {
		return false
	}
	return p.wyMatched && p.lx >= int(p.wx)-7
}

// emit mixes the background pixel with any sprite covering this column and
// writes the final shade to the frame buffer.
func (p *PPU) emit(px pixel) {
	bgColor := px.color
	if p.lcdc&lcdcBgWinEnable == 0 {
		bgColor = 0
	}
	shade := palette(p.bgp, bgColor)

	if color, flags, ok := p.spritePixel(p.lx); ok {
		if flags&sprBehindBG == 0 || bgColor == 0 {
			pal := p.obp0
			if flags&sprPalette != 0 {
				pal = p.obp1
			}
			shade = palette(pal, color)
		}
	}

	p.frame.set(p.lx, int(p.ly), shade)
}

// palette maps a 2-bit color index through a palette register.
func palette(reg, color uint8) uint8 {
	return (reg >> (color * 2)) & 0x03
}

func (p *PPU) nextLine() {
	p.ly++
	switch {
	case p.ly == visibleLines:
		p.setMode(ModeVBlank)
		p.OnVBlank()
		if p.stat&statVBlankIRQ != 0 {
			p.OnSTAT()
		}
	case p.ly == totalLines:
		p.ly = 0
		p.windowLine = 0
		p.wyMatched = false
	}
	p.compareLYC()
}

// compareLYC updates the coincidence flag and raises the STAT interrupt
// when enabled.
func (p *PPU) compareLYC() {
	if p.ly == p.lyc {
		p.stat |= statLycFlag
		if p.stat&statLycIRQ != 0 {
			p.OnSTAT()
		}
	} else {
		p.stat &^= statLycFlag
	}
}

func (p *PPU) setMode(mode Mode) {
	p.mode = mode
	p.stat = p.stat&0xFC | uint8(mode)
}

// ReadVRAM returns a byte of video RAM. During mode 3 the CPU is locked
// out and reads return 0xFF.
func (p *PPU) ReadVRAM(address uint16) uint8 {
	if p.Enabled() && p.mode == ModeDraw {
		return 0xFF
	}
	return p.vram[address&0x1FFF]
}

// WriteVRAM stores a byte of video RAM; dropped while the PPU is drawing.
func (p *PPU) WriteVRAM(address uint16, value uint8) {
	if p.Enabled() && p.mode == ModeDraw {
		return
	}
	p.vram[address&0x1FFF] = value
}

// ReadOAM returns a byte of object memory; 0xFF while the PPU owns it.
func (p *PPU) ReadOAM(address uint16) uint8 {
	if p.Enabled() && (p.mode == ModeScan || p.mode == ModeDraw) {
		return 0xFF
	}
	return p.oam[(address-addr.OAMStart)%0xA0]
}

// WriteOAM stores a byte of object memory; dropped while the PPU owns it.
func (p *PPU) WriteOAM(address uint16, value uint8) {
	if p.Enabled() && (p.mode == ModeScan || p.mode == ModeDraw) {
		return
	}
	p.oam[(address-addr.OAMStart)%0xA0] = value
}

// DMAWrite stores directly into OAM, bypassing mode restrictions. Used by
// the OAM DMA engine, which has its own bus.
func (p *PPU) DMAWrite(offset uint8, value uint8) {
	if int(offset) < len(p.oam) {
		p.oam[offset] = value
	}
}

// Read returns the value of a PPU register.
func (p *PPU) Read(address uint16) uint8 {
	switch address {
	case addr.LCDC:
		return p.lcdc
	case addr.STAT:
		// Bit 7 is unused and reads as 1.
		return 0x80 | p.stat
	case addr.SCY:
		return p.scy
	case addr.SCX:
		return p.scx
	case addr.LY:
		return p.ly
	case addr.LYC:
		return p.lyc
	case addr.DMA:
		return p.dma
	case addr.BGP:
		return p.bgp
	case addr.OBP0:
		return p.obp0
	case addr.OBP1:
		return p.obp1
	case addr.WY:
		return p.wy
	case addr.WX:
		return p.wx
	default:
		return 0xFF
	}
}

// Write stores to a PPU register. LY is read-only.
func (p *PPU) Write(address uint16, value uint8) {
	switch address {
	case addr.LCDC:
		was := p.Enabled()
		p.lcdc = value
		if was && !p.Enabled() {
			// Turning the LCD off resets the scan position.
			p.ly = 0
			p.dot = 0
			p.setMode(ModeHBlank)
		} else if !was && p.Enabled() {
			p.dot = 0
			p.compareLYC()
		}
	case addr.STAT:
		// Only the interrupt source bits are writable.
		p.stat = p.stat&0x07 | value&0x78
	case addr.SCY:
		p.scy = value
	case addr.SCX:
		p.scx = value
	case addr.LYC:
		p.lyc = value
		p.compareLYC()
	case addr.DMA:
		p.dma = value
	case addr.BGP:
		p.bgp = value
	case addr.OBP0:
		p.obp0 = value
	case addr.OBP1:
		p.obp1 = value
	case addr.WY:
		p.wy = value
	case addr.WX:
		p.wx = value
	}
}

// Reset restores the power-on state.
func (p *PPU) Reset() {
	p.lcdc = 0
	p.stat = 0
	p.scy = 0
	p.scx = 0
	p.ly = 0
	p.lyc = 0
	p.dma = 0
	p.bgp = 0
	p.obp0 = 0
	p.obp1 = 0
	p.wy = 0
	p.wx = 0
	p.mode = ModeHBlank
	p.dot = 0
	p.lx = 0
	p.discard = 0
	p.fifo.clear()
	p.sprites = p.sprites[:0]
	p.wyMatched = false
	p.winActive = false
	p.windowLine = 0
	p.vsync = false
	p.frame.clear()
	for i := range p.vram {
		p.vram[i] = 0
	}
	for i := range p.oam {
		p.oam[i] = 0
	}
}
