package cart

// RTC register indices for MBC3 carts with a clock.
const (
	rtcSeconds = iota
	rtcMinutes
	rtcHours
	rtcDaysLow
	rtcDaysHigh
)

// MBC3Controller adds a real-time clock to MBC1-style banking:
//   - up to 2MB ROM (128 banks), 32KB RAM
//   - 7-bit ROM bank register with no upper-bit quirks
//   - RAM bank select values $08-$0C map the RTC registers in place of RAM
type MBC3Controller struct {
	rom []uint8
	ram []uint8

	romBank    uint8
	ramBank    uint8 // 0-3 selects RAM, 0x08-0x0C selects an RTC register
	ramEnabled bool

	hasRTC   bool
	rtc      [5]uint8 // live registers
	rtcLatch [5]uint8 // latched copy visible through the bus
	latchArm bool     // a 0 write arms the 0->1 latch sequence
}

// NewMBC3 creates an MBC3 controller, optionally with a clock.
func NewMBC3(rom []uint8, ramSize int, hasRTC bool) *MBC3Controller {
	return &MBC3Controller{
		rom:     rom,
		ram:     make([]uint8, ramSize),
		romBank: 1,
		hasRTC:  hasRTC,
	}
}

func (m *MBC3Controller) Read(addr uint16) uint8 {
	switch {
	case addr <= 0x3FFF:
		return m.rom[int(addr)%len(m.rom)]
	case addr <= 0x7FFF:
		offset := (int(m.romBank)*0x4000 + int(addr&0x3FFF)) % len(m.rom)
		return m.rom[offset]
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		if m.ramBank >= 0x08 {
			if !m.hasRTC || m.ramBank > 0x0C {
				return 0xFF
			}
			return m.rtcLatch[m.ramBank-0x08]
		}
		if len(m.ram) == 0 {
			return 0xFF
		}
		offset := (int(m.ramBank)*0x2000 + int(addr-0xA000)) % len(m.ram)
		return m.ram[offset]
	default:
		return 0xFF
	}
}

func (m *MBC3Controller) Write(addr uint16, value uint8) {
	switch {
	case addr <= 0x1FFF:
		m.ramEnabled = value&0x0F == 0x0A
	case addr <= 0x3FFF:
		bank := value & 0x7F
		if bank == 0 {
			bank = 1
		}
		m.romBank = bank
	case addr <= 0x5FFF:
		m.ramBank = value & 0x0F
	case addr <= 0x7FFF:
		// Writing 0 then 1 latches the live clock into the visible copy.
		if value == 0x00 {
			m.latchArm = true
		} else if value == 0x01 && m.latchArm {
			m.rtcLatch = m.rtc
			m.latchArm = false
		} else {
			m.latchArm = false
		}
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		if m.ramBank >= 0x08 {
			if m.hasRTC && m.ramBank <= 0x0C {
				m.rtc[m.ramBank-0x08] = value
			}
			return
		}
		if len(m.ram) == 0 {
			return
		}
		offset := (int(m.ramBank)*0x2000 + int(addr-0xA000)) % len(m.ram)
		m.ram[offset] = value
	}
}

func (m *MBC3Controller) RAM() []uint8 { return m.ram }
