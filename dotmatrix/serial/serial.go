// Package serial models the link-cable port (SB/SC) with a pluggable peer.
package serial

import (
	"github.com/valerio/go-dotmatrix/dotmatrix/addr"
)

// Device is a peer on the other end of the link cable. Exchange is called
// when a transfer completes: it receives the transmitted byte and returns
// the byte shifted in from the peer.
type Device interface {
	Exchange(tx uint8) (rx uint8)
}

// bitPeriod is the T-cycle count per transferred bit with the internal
// clock (8192 Hz on a 4 MiHz master clock).
const bitPeriod = 512

// Port is the serial transfer port. A transfer started with the internal
// clock completes after 8 bit periods. A transfer started with the external
// clock never completes: the port has no input for a peer-driven clock.
type Port struct {
	sb uint8
	sc uint8

	active    bool
	countdown int

	dev Device

	// OnInterrupt is called when a transfer completes.
	OnInterrupt func()
}

// New creates a serial port. dev may be nil (disconnected cable: reads
// shift in 0xFF).
func New(dev Device, irq func()) *Port {
	return &Port{dev: dev, OnInterrupt: irq}
}

// Attach connects a peer device.
func (p *Port) Attach(dev Device) {
	p.dev = dev
}

// Cycle advances the port by one T-cycle.
func (p *Port) Cycle() {
	if !p.active {
		return
	}
	p.countdown--
	if p.countdown > 0 {
		return
	}

	rx := uint8(0xFF)
	if p.dev != nil {
		rx = p.dev.Exchange(p.sb)
	}
	p.sb = rx
	p.sc &^= 0x80
	p.active = false
	if p.OnInterrupt != nil {
		p.OnInterrupt()
	}
}

// Read returns SB or SC.
func (p *Port) Read(address uint16) uint8 {
	switch address {
	case addr.SB:
		return p.sb
	case addr.SC:
		// Unused SC bits read as 1.
		return p.sc | 0x7E
	default:
		return 0xFF
	}
}

// Write stores SB or SC. Setting SC bit 7 with the internal clock selected
// starts a transfer.
func (p *Port) Write(address uint16, value uint8) {
	switch address {
	case addr.SB:
		p.sb = value
	case addr.SC:
		p.sc = value & 0x81
		if p.sc&0x80 != 0 && p.sc&0x01 != 0 {
			p.active = true
			p.countdown = 8 * bitPeriod
		}
	}
}

// Reset restores the power-on state.
func (p *Port) Reset() {
	p.sb = 0
	p.sc = 0
	p.active = false
	p.countdown = 0
}
