package ppu

// fetchStep is the fetcher's position in its four-step cycle.
type fetchStep uint8

const (
	fetchTileNumber fetchStep = iota
	fetchTileLow
	fetchTileHigh
	fetchPush
)

// fetcher produces background and window pixels in groups of 8. It runs at
// half the dot clock, advancing only on even dots, and stalls in the push
// step while the FIFO still holds more than 8 pixels.
type fetcher struct {
	step   fetchStep
	tileX  uint8 // tile column within the 32-tile map row
	window bool  // fetching the window instead of the background

	tile uint8 // latched tile number
	lo   uint8 // latched low bitplane
	hi   uint8 // latched high bitplane
}

func (f *fetcher) start(window bool) {
	f.step = fetchTileNumber
	f.tileX = 0
	f.window = window
	f.tile = 0
	f.lo = 0
	f.hi = 0
}

// advance runs one fetcher step against the PPU's current registers.
func (f *fetcher) advance(p *PPU) {
	switch f.step {
	case fetchTileNumber:
		f.tile = p.fetchTileNumber(f)
		f.step = fetchTileLow
	case fetchTileLow:
		f.lo = p.fetchTileData(f, 0)
		f.step = fetchTileHigh
	case fetchTileHigh:
		f.hi = p.fetchTileData(f, 1)
		f.step = fetchPush
	case fetchPush:
		if p.fifo.size() > 8 {
			// Stall until the shifter drains the previous group.
			return
		}
		for bitIndex := 7; bitIndex >= 0; bitIndex-- {
			color := (f.lo >> bitIndex) & 1
			color |= ((f.hi >> bitIndex) & 1) << 1
			p.fifo.push(pixel{color: color})
		}
		f.tileX = (f.tileX + 1) & 31
		f.step = fetchTileNumber
	}
}

// fetchTileNumber reads the tile index from the active tile map.
func (p *PPU) fetchTileNumber(f *fetcher) uint8 {
	var mapBase uint16
	var tileX, tileY uint16

	if f.window {
		mapBase = 0x1800
		if p.lcdc&lcdcWinMap != 0 {
			mapBase = 0x1C00
		}
		tileX = uint16(f.tileX)
		tileY = uint16(p.windowLine) / 8
	} else {
		mapBase = 0x1800
		if p.lcdc&lcdcBgMap != 0 {
			mapBase = 0x1C00
		}
		tileX = (uint16(p.scx)/8 + uint16(f.tileX)) & 31
		tileY = ((uint16(p.ly) + uint16(p.scy)) & 0xFF) / 8
	}

	return p.vram[mapBase+tileY*32+tileX]
}

// fetchTileData reads one bitplane of the latched tile's current row.
func (p *PPU) fetchTileData(f *fetcher, plane uint16) uint8 {
	var row uint16
	if f.window {
		row = uint16(p.windowLine) & 7
	} else {
		row = (uint16(p.ly) + uint16(p.scy)) & 7
	}

	var offset uint16
	if p.lcdc&lcdcBgWinData != 0 {
		// $8000 unsigned addressing
		offset = uint16(f.tile) * 16
	} else {
		// $8800 signed addressing, base $9000
		offset = uint16(0x1000 + int(int8(f.tile))*16)
	}

	return p.vram[offset+row*2+plane]
}
