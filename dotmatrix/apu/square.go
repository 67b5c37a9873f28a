package apu

// dutyPatterns are the four square waveforms, one bit per eighth of the
// period.
var dutyPatterns = [4][8]uint8{
	{0, 0, 0, 0, 0, 0, 0, 1},
	{1, 0, 0, 0, 0, 0, 0, 1},
	{1, 0, 0, 0, 0, 1, 1, 1},
	{0, 1, 1, 1, 1, 1, 1, 0},
}

// square is the runtime state shared by CH1 and CH2: an 11-bit frequency
// timer rotating a duty pointer, a length counter, and a volume envelope.
// CH1 additionally owns the sweep unit.
type square struct {
	enabled    bool
	dacEnabled bool

	duty     uint8
	dutyStep uint8

	freq      uint16 // 11-bit period value from NRx3/NRx4
	freqTimer int

	length       int
	lengthEnable bool

	envVolume uint8
	envPace   uint8
	envUp     bool
	envTimer  uint8

	// sweep unit (CH1 only)
	sweepPace    uint8
	sweepDown    bool
	sweepStep    uint8
	sweepTimer   uint8
	shadowFreq   uint16
	sweepEnabled bool
}

// period returns the T-cycle count per duty step.
func (c *square) period() int {
	return (2048 - int(c.freq&0x7FF)) * 4
}

// cycle advances the frequency timer by one T-cycle.
func (c *square) cycle() {
	if !c.enabled {
		return
	}
	c.freqTimer--
	if c.freqTimer <= 0 {
		c.freqTimer += c.period()
		c.dutyStep = (c.dutyStep + 1) & 7
	}
}

// output returns the channel's analog level in [-1, 1]. A disabled DAC is
// silent; a disabled channel with a live DAC outputs the DAC zero level.
func (c *square) output() float32 {
	if !c.dacEnabled {
		return 0
	}
	var digital uint8
	if c.enabled {
		digital = dutyPatterns[c.duty][c.dutyStep] * c.envVolume
	}
	return dac(digital)
}

// tickLength clocks the length counter (sequencer steps 0, 2, 4, 6).
func (c *square) tickLength() {
	if !c.lengthEnable || c.length == 0 {
		return
	}
	c.length--
	if c.length == 0 {
		c.enabled = false
	}
}

// tickEnvelope clocks the volume envelope (sequencer step 7).
func (c *square) tickEnvelope() {
	if c.envPace == 0 {
		return
	}
	c.envTimer--
	if c.envTimer > 0 {
		return
	}
	c.envTimer = c.envPace
	if c.envUp && c.envVolume < 15 {
		c.envVolume++
	} else if !c.envUp && c.envVolume > 0 {
		c.envVolume--
	}
}

// sweepTarget computes the next sweep frequency and whether it overflows
// the 11-bit range. Does not mutate state.
func (c *square) sweepTarget() (uint16, bool) {
	change := c.shadowFreq >> c.sweepStep
	var next uint16
	if c.sweepDown {
		next = c.shadowFreq - change
	} else {
		next = c.shadowFreq + change
	}
	return next, next > 2047
}

// tickSweep clocks the sweep unit (sequencer steps 2, 6). A non-zero sweep
// step writes the new frequency back to the channel directly.
func (c *square) tickSweep() {
	if !c.enabled {
		return
	}
	if c.sweepTimer > 0 {
		c.sweepTimer--
	}
	if c.sweepTimer > 0 {
		return
	}

	// A pace of zero reloads the timer as 8 and performs no calculation.
	if c.sweepPace == 0 {
		c.sweepTimer = 8
		return
	}
	c.sweepTimer = c.sweepPace

	if !c.sweepEnabled {
		return
	}

	next, overflow := c.sweepTarget()
	if overflow {
		c.enabled = false
		return
	}
	if c.sweepStep != 0 {
		c.freq = next
		c.shadowFreq = next
		// The written-back frequency is immediately re-checked.
		if _, overflow := c.sweepTarget(); overflow {
			c.enabled = false
		}
	}
}

// trigger starts the channel (NRx4 bit 7).
func (c *square) trigger(initialVolume uint8) {
	c.enabled = c.dacEnabled
	if c.length == 0 {
		c.length = 64
	}
	c.freqTimer = c.period()
	c.envVolume = initialVolume
	c.envTimer = c.envPace

	// sweep unit init
	c.shadowFreq = c.freq
	c.sweepTimer = c.sweepPace
	if c.sweepTimer == 0 {
		c.sweepTimer = 8
	}
	c.sweepEnabled = c.sweepPace != 0 || c.sweepStep != 0
	if c.sweepStep != 0 {
		if _, overflow := c.sweepTarget(); overflow {
			c.enabled = false
		}
	}
}

func (c *square) reset() {
	*c = square{}
}
