package ppu

// sprite is one OAM entry selected for the current scanline.
type sprite struct {
	y     int   // top edge in screen space (OAM byte 0 - 16)
	x     int   // left edge in screen space (OAM byte 1 - 8)
	tile  uint8 // tile index (bit 0 masked for 8x16 objects)
	flags uint8 // attributes
	index int   // OAM slot, breaks priority ties
}

// Sprite attribute flags.
const (
	sprPalette  = 1 << 4 // 0 = OBP0, 1 = OBP1
	sprFlipX    = 1 << 5
	sprFlipY    = 1 << 6
	sprBehindBG = 1 << 7 // BG colors 1-3 draw over the sprite
)

// scanEntry considers one OAM slot during mode 2 and collects it if it
// overlaps the current scanline. Hardware scans one entry per 2 dots over a
// 16-bit OAM bus; at most 10 sprites are kept.
func (p *PPU) scanEntry(slot int) {
	if len(p.sprites) >= 10 {
		return
	}

	base := slot * 4
	y := int(p.oam[base]) - 16
	height := 8
	if p.lcdc&lcdcObjSize != 0 {
		height = 16
	}

	ly := int(p.ly)
	if ly < y || ly >= y+height {
		return
	}

	p.sprites = append(p.sprites, sprite{
		y:     y,
		x:     int(p.oam[base+1]) - 8,
		tile:  p.oam[base+2],
		flags: p.oam[base+3],
		index: slot,
	})
}

// spritePixel returns the object color index and attributes covering screen
// column lx, if any. Among overlapping sprites the smallest X wins, with
// OAM order breaking ties; transparent pixels (color 0) defer to later
// candidates.
func (p *PPU) spritePixel(lx int) (color uint8, flags uint8, ok bool) {
	if p.lcdc&lcdcObjEnable == 0 {
		return 0, 0, false
	}

	bestX := 256
	for i := range p.sprites {
		s := &p.sprites[i]
		if lx < s.x || lx >= s.x+8 {
			continue
		}
		if s.x >= bestX {
			continue
		}
		c := p.spriteColor(s, lx)
		if c == 0 {
			continue
		}
		color, flags, ok = c, s.flags, true
		bestX = s.x
	}
	return color, flags, ok
}

// spriteColor reads the raw 2-bit color of a sprite at screen column lx.
func (p *PPU) spriteColor(s *sprite, lx int) uint8 {
	height := 8
	if p.lcdc&lcdcObjSize != 0 {
		height = 16
	}

	row := int(p.ly) - s.y
	if s.flags&sprFlipY != 0 {
		row = height - 1 - row
	}

	tile := s.tile
	if height == 16 {
		tile &= 0xFE
		if row >= 8 {
			tile |= 0x01
			row -= 8
		}
	}

	// Objects always use $8000 unsigned addressing.
	offset := uint16(tile)*16 + uint16(row)*2
	lo := p.vram[offset]
	hi := p.vram[offset+1]

	bitIndex := uint8(7 - (lx - s.x))
	if s.flags&sprFlipX != 0 {
		bitIndex = uint8(lx - s.x)
	}

	color := (lo >> bitIndex) & 1
	color |= ((hi >> bitIndex) & 1) << 1
	return color
}
