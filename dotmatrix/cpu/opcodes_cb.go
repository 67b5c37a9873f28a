package cpu

import "fmt"

// cbInstructions is the $CB-prefixed table. The whole block is regular:
// 8 rotate/shift groups, then BIT, RES, and SET over each bit, all applied
// to the standard operand grid. Cycle counts here exclude the prefix fetch,
// which already cost one M-cycle.
var cbInstructions [256]Instruction

func init() {
	shiftOps := []struct {
		name string
		fn   func(*CPU, uint8) uint8
	}{
		{"RLC", (*CPU).rlc},
		{"RRC", (*CPU).rrc},
		{"RL", (*CPU).rl},
		{"RR", (*CPU).rr},
		{"SLA", (*CPU).sla},
		{"SRA", (*CPU).sra},
		{"SWAP", (*CPU).swap},
		{"SRL", (*CPU).srl},
	}

	for group, shift := range shiftOps {
		for src := 0; src < 8; src++ {
			op := group*8 + src
			s := operands[src]
			fn := shift.fn
			cycles := 1
			if s.mem {
				// Read-modify-write on (HL)
				cycles = 3
			}
			cbInstructions[op] = Instruction{
				name: fmt.Sprintf("%s %s", shift.name, s.name),
				fn: func(c *CPU) int {
					s.set(c, fn(c, s.get(c)))
					return cycles
				},
			}
		}
	}

	// BIT b,src: test only, no write-back.
	for b := uint8(0); b < 8; b++ {
		for src := 0; src < 8; src++ {
			op := 0x40 + int(b)*8 + src
			s := operands[src]
			mask := uint8(1) << b
			cycles := 1
			if s.mem {
				cycles = 2
			}
			cbInstructions[op] = Instruction{
				name: fmt.Sprintf("BIT %d, %s", b, s.name),
				fn: func(c *CPU) int {
					c.SetFlag(FlagZ, s.get(c)&mask == 0)
					c.SetFlag(FlagN, false)
					c.SetFlag(FlagH, true)
					return cycles
				},
			}
		}
	}

	// RES b,src and SET b,src.
	for b := uint8(0); b < 8; b++ {
		for src := 0; src < 8; src++ {
			s := operands[src]
			mask := uint8(1) << b
			cycles := 1
			if s.mem {
				cycles = 3
			}

			resOp := 0x80 + int(b)*8 + src
			cbInstructions[resOp] = Instruction{
				name: fmt.Sprintf("RES %d, %s", b, s.name),
				fn: func(c *CPU) int {
					s.set(c, s.get(c)&^mask)
					return cycles
				},
			}

			setOp := 0xC0 + int(b)*8 + src
			cbInstructions[setOp] = Instruction{
				name: fmt.Sprintf("SET %d, %s", b, s.name),
				fn: func(c *CPU) int {
					s.set(c, s.get(c)|mask)
					return cycles
				},
			}
		}
	}
}
