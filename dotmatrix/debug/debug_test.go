package debug

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/go-dotmatrix/dotmatrix"
	"github.com/valerio/go-dotmatrix/dotmatrix/cart"
)

// buildROM assembles a minimal valid 32KB image: a NOP into a spin loop.
func buildROM() []uint8 {
	rom := make([]uint8, 0x8000)
	copy(rom[0x104:], cart.Logo[:])
	rom[0x14A] = 0x01
	// $0100: NOP; $0101: JR -2 (spins at $0101)
	rom[0x101] = 0x18
	rom[0x102] = 0xFE
	rom[0x14D] = cart.HeaderChecksum(rom)
	g := cart.GlobalChecksum(rom)
	rom[0x14E] = uint8(g >> 8)
	rom[0x14F] = uint8(g)
	return rom
}

func newDebugger(t *testing.T) *Debugger {
	t.Helper()
	d, err := dotmatrix.NewWithROM(buildROM())
	require.NoError(t, err)
	return New(d)
}

func TestRegisterPorts(t *testing.T) {
	g := newDebugger(t)

	require.NoError(t, g.Store("bc", 0x1234))
	v, err := g.Load("bc")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), v)

	b, err := g.Load("b")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x12), b)

	// Stores through AF mask the low flag nibble.
	require.NoError(t, g.Store("af", 0xFFFF))
	v, err = g.Load("af")
	require.NoError(t, err)
	assert.Equal(t, uint16(0xFFF0), v)

	// I/O registers go through the bus, so writable-bit masks apply.
	require.NoError(t, g.Store("tac", 0xFF))
	v, err = g.Load("tac")
	require.NoError(t, err)
	assert.Equal(t, uint16(0xFF), v) // TAC reads back upper bits as 1

	require.NoError(t, g.Store("div", 0x55))
	v, err = g.Load("div")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x00), v, "DIV write resets the counter")

	_, err = g.Load("xyz")
	assert.Error(t, err)
}

func TestBusAccess(t *testing.T) {
	g := newDebugger(t)

	g.Write(0xC000, 0xAB)
	assert.Equal(t, uint8(0xAB), g.Read(0xC000))
}

func TestObservation(t *testing.T) {
	g := newDebugger(t)

	dot, ly := g.Dot()
	assert.Equal(t, 0, dot)
	assert.Equal(t, uint8(0), ly)

	for i := 0; i < 456; i++ {
		g.Cycle()
	}
	_, ly = g.Dot()
	assert.Equal(t, uint8(1), ly)
}

func TestBreakpoint(t *testing.T) {
	g := newDebugger(t)

	g.Break(0x0101) // the spin loop
	hit := g.Run(10000)
	assert.True(t, hit, "breakpoint reached")

	pc, err := g.Load("pc")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0101), pc)
}

func TestResetRestoresEntryPoint(t *testing.T) {
	g := newDebugger(t)

	g.Run(5000)
	g.Reset()
	pc, err := g.Load("pc")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0100), pc)
}
