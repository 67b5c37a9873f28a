package ppu

import (
	"testing"

	"github.com/valerio/go-dotmatrix/dotmatrix/addr"
)

// newTestPPU returns an enabled PPU with interrupt counters attached.
func newTestPPU() (*PPU, *int, *int) {
	vblanks, stats := 0, 0
	p := New(func() { vblanks++ }, func() { stats++ })
	p.Write(addr.LCDC, 0x91)
	return p, &vblanks, &stats
}

func cyclePPU(p *PPU, n int) {
	for i := 0; i < n; i++ {
		p.Cycle()
	}
}

func TestModeTimeline(t *testing.T) {
	p, _, _ := newTestPPU()

	// Scan covers dots 0-79.
	p.Cycle()
	if p.Mode() != ModeScan {
		t.Fatalf("mode at dot 1 = %v; want Scan", p.Mode())
	}
	cyclePPU(p, 79)
	if p.Mode() != ModeDraw {
		t.Errorf("mode at dot 80 = %v; want Draw", p.Mode())
	}

	// By the end of the line the 160 pixels are out and we idle in HBlank.
	cyclePPU(p, 375)
	if p.Mode() != ModeHBlank {
		t.Errorf("mode at dot 455 = %v; want HBlank", p.Mode())
	}
	if p.LY() != 0 {
		t.Errorf("LY before wrap = %d; want 0", p.LY())
	}

	p.Cycle()
	if p.LY() != 1 {
		t.Errorf("LY after 456 dots = %d; want 1", p.LY())
	}
	if p.Dot() != 0 {
		t.Errorf("dot after wrap = %d; want 0", p.Dot())
	}
}

func TestVBlankStartsAtLine144(t *testing.T) {
	p, vblanks, _ := newTestPPU()

	cyclePPU(p, 144*456)
	if p.LY() != 144 {
		t.Fatalf("LY = %d; want 144", p.LY())
	}
	if p.Mode() != ModeVBlank {
		t.Errorf("mode = %v; want VBlank", p.Mode())
	}
	if *vblanks != 1 {
		t.Errorf("vblank interrupts = %d; want 1", *vblanks)
	}
}

func TestVSyncAssertsOncePerFrame(t *testing.T) {
	p, _, _ := newTestPPU()

	asserts := 0
	var lastCycle int
	for i := 1; i <= FrameRate; i++ {
		p.Cycle()
		if p.VSync() {
			asserts++
			lastCycle = i
		}
	}

	if asserts != 1 {
		t.Fatalf("vsync asserted %d times in one frame; want 1", asserts)
	}
	if lastCycle != FrameRate {
		t.Errorf("vsync on cycle %d; want %d", lastCycle, FrameRate)
	}
	if p.LY() != 0 {
		t.Errorf("LY after frame = %d; want 0", p.LY())
	}
}

func TestVSyncRequiresEnable(t *testing.T) {
	p := New(func() {}, func() {})

	for i := 0; i < FrameRate*2; i++ {
		p.Cycle()
		if p.VSync() {
			t.Fatalf("vsync asserted with LCD disabled")
		}
	}
}

func TestSpriteLimitPerScanline(t *testing.T) {
	p, _, _ := newTestPPU()
	p.Write(addr.LCDC, 0) // disabled: free OAM access

	// 20 sprites all on line 0.
	for i := 0; i < 20; i++ {
		base := addr.OAMStart + uint16(i*4)
		p.WriteOAM(base, 16)           // Y: covers LY 0
		p.WriteOAM(base+1, uint8(8+i)) // X
	}
	p.Write(addr.LCDC, 0x93)

	cyclePPU(p, 80) // OAM scan for line 0
	if got := len(p.sprites); got != 10 {
		t.Errorf("sprites collected = %d; want 10", got)
	}
}

func TestLYCCoincidence(t *testing.T) {
	p, _, stats := newTestPPU()
	p.Write(addr.LYC, 2)
	p.Write(addr.STAT, 0x40) // LYC interrupt source

	cyclePPU(p, 2*456)
	if p.LY() != 2 {
		t.Fatalf("LY = %d; want 2", p.LY())
	}
	if p.Read(addr.STAT)&0x04 == 0 {
		t.Errorf("coincidence flag not set at LY==LYC")
	}
	if *stats == 0 {
		t.Errorf("no STAT interrupt for LYC coincidence")
	}

	cyclePPU(p, 456)
	if p.Read(addr.STAT)&0x04 != 0 {
		t.Errorf("coincidence flag still set at LY=3")
	}
}

func TestBackgroundRendering(t *testing.T) {
	p, _, _ := newTestPPU()
	p.Write(addr.LCDC, 0) // disable for VRAM setup

	// Tile 1: solid color 3 (both bitplanes all ones).
	for i := uint16(0); i < 16; i++ {
		p.WriteVRAM(0x8010+i, 0xFF)
	}
	// Point the whole top map row at tile 1.
	for i := uint16(0); i < 32; i++ {
		p.WriteVRAM(0x9800+i, 0x01)
	}
	p.Write(addr.BGP, 0xE4) // identity palette
	p.Write(addr.LCDC, 0x91)

	cyclePPU(p, 456) // render line 0
	for x := 0; x < FrameWidth; x += 16 {
		if got := p.Frame().At(x, 0); got != 3 {
			t.Errorf("frame[%d,0] = %d; want 3", x, got)
		}
	}
}

func TestBGPMapsColors(t *testing.T) {
	p, _, _ := newTestPPU()
	p.Write(addr.LCDC, 0)

	// Tile 0 stays all zeroes: background is color 0 everywhere. BGP maps
	// color 0 to shade 2.
	p.Write(addr.BGP, 0x02)
	p.Write(addr.LCDC, 0x91)

	cyclePPU(p, 456)
	if got := p.Frame().At(0, 0); got != 2 {
		t.Errorf("frame[0,0] = %d; want 2 (BGP remap)", got)
	}
}

func TestSpriteOverlay(t *testing.T) {
	p, _, _ := newTestPPU()
	p.Write(addr.LCDC, 0)

	// Sprite tile 2: solid color 3.
	for i := uint16(0); i < 16; i++ {
		p.WriteVRAM(0x8020+i, 0xFF)
	}
	// One sprite at screen (0,0).
	p.WriteOAM(addr.OAMStart, 16)
	p.WriteOAM(addr.OAMStart+1, 8)
	p.WriteOAM(addr.OAMStart+2, 0x02)
	p.WriteOAM(addr.OAMStart+3, 0x00)

	p.Write(addr.BGP, 0xE4)
	p.Write(addr.OBP0, 0xE4)
	p.Write(addr.LCDC, 0x93) // enable + objects

	cyclePPU(p, 456)
	if got := p.Frame().At(0, 0); got != 3 {
		t.Errorf("sprite pixel = %d; want 3", got)
	}
	if got := p.Frame().At(8, 0); got != 0 {
		t.Errorf("pixel right of sprite = %d; want 0 (background)", got)
	}
}

func TestScrollDiscardsPixels(t *testing.T) {
	p, _, _ := newTestPPU()
	p.Write(addr.LCDC, 0)

	// Tile 1 solid color 3; only map column 0 points at it.
	for i := uint16(0); i < 16; i++ {
		p.WriteVRAM(0x8010+i, 0xFF)
	}
	p.WriteVRAM(0x9800, 0x01)
	p.Write(addr.BGP, 0xE4)
	p.Write(addr.SCX, 4)
	p.Write(addr.LCDC, 0x91)

	cyclePPU(p, 456)
	// With SCX=4 only the right half of the tile at map column 0 lands on
	// screen columns 0-3.
	for x := 0; x < 4; x++ {
		if got := p.Frame().At(x, 0); got != 3 {
			t.Errorf("frame[%d,0] = %d; want 3", x, got)
		}
	}
	if got := p.Frame().At(4, 0); got != 0 {
		t.Errorf("frame[4,0] = %d; want 0", got)
	}
}

func TestWindowCoversBackground(t *testing.T) {
	p, _, _ := newTestPPU()
	p.Write(addr.LCDC, 0)

	// Background map points at tile 0 (blank). Window map ($9C00) points
	// at tile 1 (solid color 3).
	for i := uint16(0); i < 16; i++ {
		p.WriteVRAM(0x8010+i, 0xFF)
	}
	for i := uint16(0); i < 32; i++ {
		p.WriteVRAM(0x9C00+i, 0x01)
	}
	p.Write(addr.BGP, 0xE4)
	p.Write(addr.WY, 0)
	p.Write(addr.WX, 7) // window starts at screen column 0
	// Enable: LCD + window + window map 1 + unsigned data + BG
	p.Write(addr.LCDC, 0xF1)

	cyclePPU(p, 456)
	for x := 0; x < FrameWidth; x += 32 {
		if got := p.Frame().At(x, 0); got != 3 {
			t.Errorf("frame[%d,0] = %d; want 3 (window)", x, got)
		}
	}
}

func TestVRAMLockedDuringDraw(t *testing.T) {
	p, _, _ := newTestPPU()

	cyclePPU(p, 85) // inside mode 3
	if p.Mode() != ModeDraw {
		t.Fatalf("mode = %v; want Draw", p.Mode())
	}
	if got := p.ReadVRAM(0x8000); got != 0xFF {
		t.Errorf("VRAM read during draw = 0x%02X; want 0xFF", got)
	}
	if got := p.ReadOAM(addr.OAMStart); got != 0xFF {
		t.Errorf("OAM read during draw = 0x%02X; want 0xFF", got)
	}
}

func TestDisableResetsScanPosition(t *testing.T) {
	p, _, _ := newTestPPU()
	cyclePPU(p, 10*456)

	p.Write(addr.LCDC, 0x00)
	if p.LY() != 0 || p.Dot() != 0 {
		t.Errorf("LY/dot after disable = %d/%d; want 0/0", p.LY(), p.Dot())
	}

	// Disabled PPU does no work.
	cyclePPU(p, 1000)
	if p.LY() != 0 || p.Dot() != 0 {
		t.Errorf("LY/dot advanced while disabled")
	}
}
