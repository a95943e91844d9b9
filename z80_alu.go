// z80_alu.go - Z80 arithmetic, logic and flag computation

package main

// Precomputed S, Z, X, Y (and P/V parity) flags for every byte value.
var (
	z80SZ53  [256]byte
	z80SZ53P [256]byte
)

func init() {
	for i := range 256 {
		v := byte(i)
		f := v & (z80FlagS | z80FlagX | z80FlagY)
		if v == 0 {
			f |= z80FlagZ
		}
		z80SZ53[i] = f
		if parity8(v) {
			f |= z80FlagPV
		}
		z80SZ53P[i] = f
	}
}

// parity8 reports even parity.
func parity8(v byte) bool {
	v ^= v >> 4
	v ^= v >> 2
	v ^= v >> 1
	return v&1 == 0
}

type aluOp byte

const (
	aluAdd aluOp = iota
	aluAdc
	aluSub
	aluSbc
	aluAnd
	aluXor
	aluOr
	aluCp
)

func (c *Z80CPU) performALU(op aluOp, v byte) {
	switch op {
	case aluAdd:
		c.add8(v, 0)
	case aluAdc:
		c.add8(v, c.F&z80FlagC)
	case aluSub:
		c.A = c.sub8(v, 0)
	case aluSbc:
		c.A = c.sub8(v, c.F&z80FlagC)
	case aluAnd:
		c.A &= v
		c.F = z80SZ53P[c.A] | z80FlagH
	case aluXor:
		c.A ^= v
		c.F = z80SZ53P[c.A]
	case aluOr:
		c.A |= v
		c.F = z80SZ53P[c.A]
	case aluCp:
		c.sub8(v, 0)
		c.F = c.F&^(z80FlagX|z80FlagY) | v&(z80FlagX|z80FlagY)
	}
}

func (c *Z80CPU) add8(v, carry byte) {
	a := c.A
	sum := uint16(a) + uint16(v) + uint16(carry)
	r := byte(sum)
	f := z80SZ53[r]
	if sum > 0xFF {
		f |= z80FlagC
	}
	if (a^v^r)&0x10 != 0 {
		f |= z80FlagH
	}
	if ^(a^v)&(a^r)&0x80 != 0 {
		f |= z80FlagPV
	}
	c.A = r
	c.F = f
}

// sub8 computes A - v - carry, sets the flags and returns the difference.
func (c *Z80CPU) sub8(v, carry byte) byte {
	a := c.A
	diff := int(a) - int(v) - int(carry)
	r := byte(diff)
	f := z80SZ53[r] | z80FlagN
	if diff < 0 {
		f |= z80FlagC
	}
	if (a^v^r)&0x10 != 0 {
		f |= z80FlagH
	}
	if (a^v)&(a^r)&0x80 != 0 {
		f |= z80FlagPV
	}
	c.F = f
	return r
}

func (c *Z80CPU) inc8(v byte) byte {
	r := v + 1
	f := c.F&z80FlagC | z80SZ53[r]
	if v&0x0F == 0x0F {
		f |= z80FlagH
	}
	if v == 0x7F {
		f |= z80FlagPV
	}
	c.F = f
	return r
}

func (c *Z80CPU) dec8(v byte) byte {
	r := v - 1
	f := c.F&z80FlagC | z80SZ53[r] | z80FlagN
	if v&0x0F == 0 {
		f |= z80FlagH
	}
	if v == 0x80 {
		f |= z80FlagPV
	}
	c.F = f
	return r
}

// add16 is ADD HL,rr. S, Z and P/V are preserved.
func (c *Z80CPU) add16(a, b uint16) uint16 {
	sum := uint32(a) + uint32(b)
	r := uint16(sum)
	f := c.F & (z80FlagS | z80FlagZ | z80FlagPV)
	f |= byte(r>>8) & (z80FlagX | z80FlagY)
	if sum > 0xFFFF {
		f |= z80FlagC
	}
	if (a^b^r)&0x1000 != 0 {
		f |= z80FlagH
	}
	c.F = f
	c.WZ = a + 1
	return r
}

func (c *Z80CPU) adc16(a, b uint16) uint16 {
	sum := uint32(a) + uint32(b) + uint32(c.F&z80FlagC)
	r := uint16(sum)
	f := byte(r>>8) & (z80FlagS | z80FlagX | z80FlagY)
	if r == 0 {
		f |= z80FlagZ
	}
	if sum > 0xFFFF {
		f |= z80FlagC
	}
	if (a^b^r)&0x1000 != 0 {
		f |= z80FlagH
	}
	if ^(a^b)&(a^r)&0x8000 != 0 {
		f |= z80FlagPV
	}
	c.F = f
	c.WZ = a + 1
	return r
}

func (c *Z80CPU) sbc16(a, b uint16) uint16 {
	diff := int32(a) - int32(b) - int32(c.F&z80FlagC)
	r := uint16(diff)
	f := byte(r>>8)&(z80FlagS|z80FlagX|z80FlagY) | z80FlagN
	if r == 0 {
		f |= z80FlagZ
	}
	if diff < 0 {
		f |= z80FlagC
	}
	if (a^b^r)&0x1000 != 0 {
		f |= z80FlagH
	}
	if (a^b)&(a^r)&0x8000 != 0 {
		f |= z80FlagPV
	}
	c.F = f
	c.WZ = a + 1
	return r
}

func (c *Z80CPU) daa() {
	a := c.A
	corr := byte(0)
	carry := c.F & z80FlagC
	if c.F&z80FlagH != 0 || a&0x0F > 9 {
		corr = 0x06
	}
	if carry != 0 || a > 0x99 {
		corr |= 0x60
		carry = z80FlagC
	}
	var r byte
	if c.F&z80FlagN != 0 {
		r = a - corr
	} else {
		r = a + corr
	}
	c.A = r
	c.F = z80SZ53P[r] | carry | c.F&z80FlagN | (a^r)&z80FlagH
}

// Accumulator rotates keep S, Z and P/V.

func (c *Z80CPU) rlca() {
	c.A = c.A<<1 | c.A>>7
	c.F = c.F&(z80FlagS|z80FlagZ|z80FlagPV) | c.A&(z80FlagX|z80FlagY|z80FlagC)
}

func (c *Z80CPU) rrca() {
	carry := c.A & 1
	c.A = c.A>>1 | c.A<<7
	c.F = c.F&(z80FlagS|z80FlagZ|z80FlagPV) | c.A&(z80FlagX|z80FlagY) | carry
}

func (c *Z80CPU) rla() {
	carry := c.A >> 7
	c.A = c.A<<1 | c.F&z80FlagC
	c.F = c.F&(z80FlagS|z80FlagZ|z80FlagPV) | c.A&(z80FlagX|z80FlagY) | carry
}

func (c *Z80CPU) rra() {
	carry := c.A & 1
	c.A = c.A>>1 | (c.F&z80FlagC)<<7
	c.F = c.F&(z80FlagS|z80FlagZ|z80FlagPV) | c.A&(z80FlagX|z80FlagY) | carry
}

// shiftOp applies one of the eight CB rotate/shift operations (bits 5..3 of
// the opcode) and sets the flags from the result.
func (c *Z80CPU) shiftOp(kind byte, v byte) byte {
	var r, carry byte
	switch kind & 7 {
	case 0: // RLC
		carry = v >> 7
		r = v<<1 | carry
	case 1: // RRC
		carry = v & 1
		r = v>>1 | carry<<7
	case 2: // RL
		carry = v >> 7
		r = v<<1 | c.F&z80FlagC
	case 3: // RR
		carry = v & 1
		r = v>>1 | (c.F&z80FlagC)<<7
	case 4: // SLA
		carry = v >> 7
		r = v << 1
	case 5: // SRA
		carry = v & 1
		r = v>>1 | v&0x80
	case 6: // SLL
		carry = v >> 7
		r = v<<1 | 1
	case 7: // SRL
		carry = v & 1
		r = v >> 1
	}
	c.F = z80SZ53P[r] | carry
	return r
}

// bitTest implements BIT n. undoc supplies the X and Y flags, which come from
// the operand for registers and from the address high byte for memory.
func (c *Z80CPU) bitTest(n byte, v byte, undoc byte) {
	f := c.F&z80FlagC | z80FlagH | undoc&(z80FlagX|z80FlagY)
	if v&(1<<n) == 0 {
		f |= z80FlagZ | z80FlagPV
	} else if n == 7 {
		f |= z80FlagS
	}
	c.F = f
}
