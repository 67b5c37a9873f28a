// Package apu implements the audio processing unit: four channels mixed to
// stereo, sequenced off the timer's divider. This is basically a bunch of
// counters that tick at certain frequency steps!
package apu

import (
	"github.com/valerio/go-dotmatrix/dotmatrix/addr"
)

// sampleInterval is the T-cycle count between emitted sample pairs
// (1 MiHz). Resampling to a host rate is the frontend's job.
const sampleInterval = 4

// seqMask selects DIV bit 4: the frame sequencer clocks on its falling
// edge, approx. 512 Hz. The timer exposes its full internal counter, so
// this is bit 12 of that.
const seqMask uint16 = 1 << 12

// dac converts a 4-bit digital level to an analog value in [-1, 1].
func dac(digital uint8) float32 {
	return float32(digital)/7.5 - 1.0
}

// APU is the audio processing unit.
type APU struct {
	enabled bool

	ch1 square
	ch2 square
	ch3 waveChannel
	ch4 noiseChannel

	waveRAM [16]uint8

	// frame sequencer
	seqStep uint8
	lastBit bool

	// raw register bytes, kept for read-back
	nr10, nr11, nr12, nr13, nr14 uint8
	nr21, nr22, nr23, nr24       uint8
	nr30, nr31, nr32, nr33, nr34 uint8
	nr41, nr42, nr43, nr44       uint8
	nr50, nr51                   uint8

	sampleTick int
	samples    []float32 // interleaved left/right pairs
}

// New creates an APU.
func New() *APU {
	return &APU{samples: make([]float32, 0, 4096)}
}

// Cycle advances the APU by one T-cycle. div is the timer's internal
// divider counter, which drives the frame sequencer.
func (a *APU) Cycle(div uint16) {
	if a.enabled {
		a.ch1.cycle()
		a.ch2.cycle()
		a.ch3.cycle(&a.waveRAM)
		a.ch4.cycle()

		bit := div&seqMask != 0
		if a.lastBit && !bit {
			a.tickSequencer()
		}
		a.lastBit = bit
	}

	a.sampleTick++
	if a.sampleTick >= sampleInterval {
		a.sampleTick = 0
		left, right := a.mix()
		a.samples = append(a.samples, left, right)
	}
}

// tickSequencer advances the frame sequencer one step.
//
//	Step | Length (256Hz) | Sweep (128Hz) | Envelope (64Hz)
//	------------------------------------------------------
//	0    | yes            | -             | -
//	2    | yes            | yes           | -
//	4    | yes            | -             | -
//	6    | yes            | yes           | -
//	7    | -              | -             | yes
func (a *APU) tickSequencer() {
	switch a.seqStep {
	case 0, 4:
		a.tickLengths()
	case 2, 6:
		a.tickLengths()
		a.ch1.tickSweep()
	case 7:
		a.ch1.tickEnvelope()
		a.ch2.tickEnvelope()
		a.ch4.tickEnvelope()
	}
	a.seqStep = (a.seqStep + 1) & 7
}

func (a *APU) tickLengths() {
	a.ch1.tickLength()
	a.ch2.tickLength()
	a.ch3.tickLength()
	a.ch4.tickLength()
}

// mix combines the four channel outputs per NR51 panning, averages them,
// and applies the NR50 per-side master volume.
func (a *APU) mix() (left, right float32) {
	if !a.enabled {
		return 0, 0
	}

	outputs := [4]float32{
		a.ch1.output(),
		a.ch2.output(),
		a.ch3.output(),
		a.ch4.output(),
	}

	for i := range outputs {
		if a.nr51&(1<<(4+i)) != 0 {
			left += outputs[i]
		}
		if a.nr51&(1<<i) != 0 {
			right += outputs[i]
		}
	}
	left /= 4
	right /= 4

	volLeft := (a.nr50 >> 4) & 7
	volRight := a.nr50 & 7
	left *= float32(volLeft+1) / 8
	right *= float32(volRight+1) / 8

	return left, right
}

// Samples drains the accumulated stereo sample pairs.
func (a *APU) Samples() []float32 {
	out := a.samples
	a.samples = make([]float32, 0, cap(out))
	return out
}

// Read returns an APU register value with the standard unused-bit masks.
func (a *APU) Read(address uint16) uint8 {
	if address >= addr.WaveRAMStart && address <= addr.WaveRAMEnd {
		return a.waveRAM[address-addr.WaveRAMStart]
	}

	switch address {
	case addr.NR10:
		return a.nr10 | 0x80
	case addr.NR11:
		return a.nr11 | 0x3F
	case addr.NR12:
		return a.nr12
	case addr.NR13:
		return 0xFF
	case addr.NR14:
		return a.nr14 | 0xBF
	case addr.NR21:
		return a.nr21 | 0x3F
	case addr.NR22:
		return a.nr22
	case addr.NR23:
		return 0xFF
	case addr.NR24:
		return a.nr24 | 0xBF
	case addr.NR30:
		return a.nr30 | 0x7F
	case addr.NR31:
		return 0xFF
	case addr.NR32:
		return a.nr32 | 0x9F
	case addr.NR33:
		return 0xFF
	case addr.NR34:
		return a.nr34 | 0xBF
	case addr.NR41:
		return 0xFF
	case addr.NR42:
		return a.nr42
	case addr.NR43:
		return a.nr43
	case addr.NR44:
		return a.nr44 | 0xBF
	case addr.NR50:
		return a.nr50
	case addr.NR51:
		return a.nr51
	case addr.NR52:
		status := uint8(0x70)
		if a.enabled {
			status |= 0x80
		}
		if a.ch1.enabled {
			status |= 0x01
		}
		if a.ch2.enabled {
			status |= 0x02
		}
		if a.ch3.enabled {
			status |= 0x04
		}
		if a.ch4.enabled {
			status |= 0x08
		}
		return status
	default:
		return 0xFF
	}
}

// Write stores to an APU register. With the APU powered off everything but
// NR52 and wave RAM is read-only.
func (a *APU) Write(address uint16, value uint8) {
	if address >= addr.WaveRAMStart && address <= addr.WaveRAMEnd {
		a.waveRAM[address-addr.WaveRAMStart] = value
		return
	}

	if address == addr.NR52 {
		was := a.enabled
		a.enabled = value&0x80 != 0
		if was && !a.enabled {
			a.powerOff()
		} else if !was && a.enabled {
			a.seqStep = 0
		}
		return
	}

	if !a.enabled {
		return
	}

	switch address {
	case addr.NR10:
		a.nr10 = value
		a.ch1.sweepPace = (value >> 4) & 7
		a.ch1.sweepDown = value&0x08 != 0
		a.ch1.sweepStep = value & 7
	case addr.NR11:
		a.nr11 = value
		a.ch1.duty = value >> 6
		a.ch1.length = 64 - int(value&0x3F)
	case addr.NR12:
		a.nr12 = value
		a.ch1.envPace = value & 7
		a.ch1.envUp = value&0x08 != 0
		a.ch1.dacEnabled = value&0xF8 != 0
		if !a.ch1.dacEnabled {
			a.ch1.enabled = false
		}
	case addr.NR13:
		a.nr13 = value
		a.ch1.freq = a.ch1.freq&0x700 | uint16(value)
	case addr.NR14:
		a.nr14 = value
		a.ch1.freq = a.ch1.freq&0x0FF | uint16(value&7)<<8
		a.ch1.lengthEnable = value&0x40 != 0
		if value&0x80 != 0 {
			a.ch1.trigger(a.nr12 >> 4)
		}
	case addr.NR21:
		a.nr21 = value
		a.ch2.duty = value >> 6
		a.ch2.length = 64 - int(value&0x3F)
	case addr.NR22:
		a.nr22 = value
		a.ch2.envPace = value & 7
		a.ch2.envUp = value&0x08 != 0
		a.ch2.dacEnabled = value&0xF8 != 0
		if !a.ch2.dacEnabled {
			a.ch2.enabled = false
		}
	case addr.NR23:
		a.nr23 = value
		a.ch2.freq = a.ch2.freq&0x700 | uint16(value)
	case addr.NR24:
		a.nr24 = value
		a.ch2.freq = a.ch2.freq&0x0FF | uint16(value&7)<<8
		a.ch2.lengthEnable = value&0x40 != 0
		if value&0x80 != 0 {
			a.ch2.trigger(a.nr22 >> 4)
		}
	case addr.NR30:
		a.nr30 = value
		a.ch3.dacEnabled = value&0x80 != 0
		if !a.ch3.dacEnabled {
			a.ch3.enabled = false
		}
	case addr.NR31:
		a.nr31 = value
		a.ch3.length = 256 - int(value)
	case addr.NR32:
		a.nr32 = value
		a.ch3.volumeCode = (value >> 5) & 3
	case addr.NR33:
		a.nr33 = value
		a.ch3.freq = a.ch3.freq&0x700 | uint16(value)
	case addr.NR34:
		a.nr34 = value
		a.ch3.freq = a.ch3.freq&0x0FF | uint16(value&7)<<8
		a.ch3.lengthEnable = value&0x40 != 0
		if value&0x80 != 0 {
			a.ch3.trigger()
		}
	case addr.NR41:
		a.nr41 = value
		a.ch4.length = 64 - int(value&0x3F)
	case addr.NR42:
		a.nr42 = value
		a.ch4.envPace = value & 7
		a.ch4.envUp = value&0x08 != 0
		a.ch4.dacEnabled = value&0xF8 != 0
		if !a.ch4.dacEnabled {
			a.ch4.enabled = false
		}
	case addr.NR43:
		a.nr43 = value
		a.ch4.shift = value >> 4
		a.ch4.short = value&0x08 != 0
		a.ch4.div = value & 7
	case addr.NR44:
		a.nr44 = value
		a.ch4.lengthEnable = value&0x40 != 0
		if value&0x80 != 0 {
			a.ch4.trigger(a.nr42 >> 4)
		}
	case addr.NR50:
		a.nr50 = value
	case addr.NR51:
		a.nr51 = value
	}
}

// powerOff clears every channel register and silences the channels. Wave
// RAM survives power cycles.
func (a *APU) powerOff() {
	a.ch1.reset()
	a.ch2.reset()
	a.ch3.reset()
	a.ch4.reset()
	a.nr10, a.nr11, a.nr12, a.nr13, a.nr14 = 0, 0, 0, 0, 0
	a.nr21, a.nr22, a.nr23, a.nr24 = 0, 0, 0, 0
	a.nr30, a.nr31, a.nr32, a.nr33, a.nr34 = 0, 0, 0, 0, 0
	a.nr41, a.nr42, a.nr43, a.nr44 = 0, 0, 0, 0
	a.nr50, a.nr51 = 0, 0
	a.seqStep = 0
}

// Step returns the frame sequencer step, for inspection.
func (a *APU) Step() uint8 { return a.seqStep }

// Reset restores the power-on state.
func (a *APU) Reset() {
	a.enabled = false
	a.powerOff()
	a.lastBit = false
	a.sampleTick = 0
	a.samples = a.samples[:0]
	for i := range a.waveRAM {
		a.waveRAM[i] = 0
	}
}
