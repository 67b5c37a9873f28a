package apu

import (
	"testing"

	"github.com/valerio/go-dotmatrix/dotmatrix/addr"
)

// seqTick drives one frame-sequencer step by toggling the divider bit the
// sequencer watches through a falling edge.
func seqTick(a *APU) {
	a.Cycle(1 << 12)
	a.Cycle(0)
}

func newPoweredAPU() *APU {
	a := New()
	a.Write(addr.NR52, 0x80)
	return a
}

func TestSequencerStepWraps(t *testing.T) {
	a := newPoweredAPU()
	for i := 0; i < 11; i++ {
		if got, want := a.Step(), uint8(i%8); got != want {
			t.Fatalf("step before tick %d = %d; want %d", i, got, want)
		}
		seqTick(a)
	}
}

func TestSequencerNeedsFallingEdge(t *testing.T) {
	a := newPoweredAPU()
	for i := 0; i < 10; i++ {
		a.Cycle(1 << 12) // bit held high: no edge
	}
	if a.Step() != 0 {
		t.Errorf("step = %d; want 0 (no falling edge seen)", a.Step())
	}
}

func TestLengthCounterDisablesChannel(t *testing.T) {
	a := newPoweredAPU()
	a.Write(addr.NR22, 0xF0) // DAC on, volume 15
	a.Write(addr.NR21, 0x3E) // length = 64 - 62 = 2
	a.Write(addr.NR24, 0xC0) // trigger with length enable

	if a.Read(addr.NR52)&0x02 == 0 {
		t.Fatalf("CH2 not active after trigger")
	}

	seqTick(a) // step 0: length
	if a.Read(addr.NR52)&0x02 == 0 {
		t.Fatalf("CH2 died after one length tick")
	}
	seqTick(a) // step 1: nothing
	seqTick(a) // step 2: length
	if a.Read(addr.NR52)&0x02 != 0 {
		t.Errorf("CH2 still active after length expired")
	}
}

func TestEnvelopeStepsVolume(t *testing.T) {
	a := newPoweredAPU()
	a.Write(addr.NR22, 0x59) // volume 5, direction up, pace 1
	a.Write(addr.NR24, 0x80) // trigger

	// Step 7 clocks the envelope once per sequencer loop.
	for i := 0; i < 8; i++ {
		seqTick(a)
	}
	if got := a.ch2.envVolume; got != 6 {
		t.Errorf("envelope volume = %d; want 6", got)
	}
}

func TestSweepOverflowDisablesChannel(t *testing.T) {
	a := newPoweredAPU()
	a.Write(addr.NR12, 0xF0) // DAC on
	a.Write(addr.NR10, 0x11) // pace 1, up, step 1
	a.Write(addr.NR13, 0xFF)
	a.Write(addr.NR14, 0x87) // trigger with frequency 0x7FF

	// 0x7FF + (0x7FF >> 1) overflows: the immediate check kills CH1.
	if a.Read(addr.NR52)&0x01 != 0 {
		t.Errorf("CH1 active after sweep overflow on trigger")
	}
}

func TestSweepAdjustsFrequency(t *testing.T) {
	a := newPoweredAPU()
	a.Write(addr.NR12, 0xF0)
	a.Write(addr.NR10, 0x11) // pace 1, add, step 1
	a.Write(addr.NR13, 0x00)
	a.Write(addr.NR14, 0x81) // trigger, frequency 0x100

	seqTick(a) // step 0
	seqTick(a) // step 1
	seqTick(a) // step 2: sweep -> 0x100 + 0x080
	if got := a.ch1.freq; got != 0x180 {
		t.Errorf("frequency after sweep = 0x%03X; want 0x180", got)
	}
	if a.Read(addr.NR52)&0x01 == 0 {
		t.Errorf("CH1 not active")
	}
}

func TestDACOffSilencesChannel(t *testing.T) {
	a := newPoweredAPU()
	a.Write(addr.NR22, 0xF0)
	a.Write(addr.NR24, 0x80)
	if a.Read(addr.NR52)&0x02 == 0 {
		t.Fatalf("CH2 not active")
	}

	// Clearing the upper 5 bits of NRx2 turns the DAC off and kills the
	// channel immediately.
	a.Write(addr.NR22, 0x00)
	if a.Read(addr.NR52)&0x02 != 0 {
		t.Errorf("CH2 active with DAC off")
	}
}

func TestPowerOffClearsRegisters(t *testing.T) {
	a := newPoweredAPU()
	a.Write(addr.NR50, 0x77)
	a.Write(addr.NR51, 0xF3)
	a.Write(addr.NR11, 0x80)

	a.Write(addr.NR52, 0x00)
	if got := a.Read(addr.NR52); got != 0x70 {
		t.Errorf("NR52 after power off = 0x%02X; want 0x70", got)
	}
	if got := a.Read(addr.NR50); got != 0x00 {
		t.Errorf("NR50 after power off = 0x%02X; want 0x00", got)
	}

	// Register writes are ignored while powered off.
	a.Write(addr.NR50, 0x12)
	if got := a.Read(addr.NR50); got != 0x00 {
		t.Errorf("NR50 writable while powered off")
	}

	// Wave RAM is not affected by power state.
	a.Write(addr.WaveRAMStart, 0xAB)
	if got := a.Read(addr.WaveRAMStart); got != 0xAB {
		t.Errorf("wave RAM not writable while powered off")
	}
}

func TestSampleCadence(t *testing.T) {
	a := newPoweredAPU()
	for i := 0; i < 4096; i++ {
		a.Cycle(0)
	}
	samples := a.Samples()
	// One stereo pair every 4 T-cycles.
	if got, want := len(samples), 4096/4*2; got != want {
		t.Errorf("samples = %d; want %d", got, want)
	}
	for _, s := range samples {
		if s < -1 || s > 1 {
			t.Fatalf("sample %f outside [-1, 1]", s)
		}
	}

	if len(a.Samples()) != 0 {
		t.Errorf("Samples did not drain the buffer")
	}
}

func TestWaveOutputLevels(t *testing.T) {
	a := newPoweredAPU()
	// Fill wave RAM with max samples.
	for i := uint16(0); i < 16; i++ {
		a.Write(addr.WaveRAMStart+i, 0xFF)
	}
	a.Write(addr.NR30, 0x80) // DAC on
	a.Write(addr.NR32, 0x20) // full volume
	a.Write(addr.NR33, 0x00)
	a.Write(addr.NR34, 0x87) // trigger, frequency 0x700

	// Run long enough for a few sample reads.
	for i := 0; i < 4096; i++ {
		a.Cycle(0)
	}
	if got := a.ch3.sample; got != 0x0F {
		t.Errorf("wave sample = 0x%02X; want 0x0F", got)
	}
	if out := a.ch3.output(); out != dac(0x0F) {
		t.Errorf("wave output = %f; want %f", out, dac(0x0F))
	}
}

func TestNoiseLFSRAdvances(t *testing.T) {
	a := newPoweredAPU()
	a.Write(addr.NR42, 0xF0)
	a.Write(addr.NR43, 0x00) // divider 8 cycles
	a.Write(addr.NR44, 0x80) // trigger

	before := a.ch4.lfsr
	for i := 0; i < 64; i++ {
		a.Cycle(0)
	}
	if a.ch4.lfsr == before {
		t.Errorf("LFSR did not advance")
	}
}
