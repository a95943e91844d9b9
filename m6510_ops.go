// m6510_ops.go - 6510 opcode table, documented and undocumented

package main

type m6510Mode int

const (
	modeImmediate m6510Mode = iota
	modeZeroPage
	modeZeroPageX
	modeZeroPageY
	modeAbsolute
	modeAbsoluteX
	modeAbsoluteY
	modeIndexedIndirect
	modeIndirectIndexed
)

// address resolves the operand address of a mode. fix forces the page
// fix-up cycle that stores and read-modify-write instructions always spend.
func (c *M6510CPU) address(mode m6510Mode, fix bool) uint16 {
	switch mode {
	case modeZeroPage:
		return c.addrZeroPage()
	case modeZeroPageX:
		return c.addrZeroPageIndexed(c.X)
	case modeZeroPageY:
		return c.addrZeroPageIndexed(c.Y)
	case modeAbsolute:
		return c.addrAbsolute()
	case modeAbsoluteX:
		return c.addrAbsoluteIndexed(c.X, fix)
	case modeAbsoluteY:
		return c.addrAbsoluteIndexed(c.Y, fix)
	case modeIndexedIndirect:
		return c.addrIndexedIndirect()
	case modeIndirectIndexed:
		return c.addrIndirectIndexed(fix)
	}
	addr := c.PC
	c.PC++
	return addr
}

// ALU group layout shared by ORA, AND, EOR, ADC, STA, LDA, CMP and SBC.
var m6510AluModes = map[byte]m6510Mode{
	0x09: modeImmediate,
	0x05: modeZeroPage,
	0x15: modeZeroPageX,
	0x0D: modeAbsolute,
	0x1D: modeAbsoluteX,
	0x19: modeAbsoluteY,
	0x01: modeIndexedIndirect,
	0x11: modeIndirectIndexed,
}

// Read-modify-write group layout of ASL, ROL, LSR, ROR, DEC and INC.
var m6510RmwModes = map[byte]m6510Mode{
	0x06: modeZeroPage,
	0x16: modeZeroPageX,
	0x0E: modeAbsolute,
	0x1E: modeAbsoluteX,
}

// Layout of the undocumented combined read-modify-write opcodes.
var m6510ComboModes = map[byte]m6510Mode{
	0x07: modeZeroPage,
	0x17: modeZeroPageX,
	0x0F: modeAbsolute,
	0x1F: modeAbsoluteX,
	0x1B: modeAbsoluteY,
	0x03: modeIndexedIndirect,
	0x13: modeIndirectIndexed,
}

func (c *M6510CPU) readOp(mode m6510Mode, op func(*M6510CPU, byte)) func(*M6510CPU) {
	return func(cpu *M6510CPU) {
		op(cpu, cpu.read(cpu.address(mode, false)))
	}
}

func (c *M6510CPU) writeOp(mode m6510Mode, value func(*M6510CPU) byte) func(*M6510CPU) {
	return func(cpu *M6510CPU) {
		addr := cpu.address(mode, true)
		cpu.write(addr, value(cpu))
	}
}

func (c *M6510CPU) rmwOp(mode m6510Mode, op func(*M6510CPU, byte) byte) func(*M6510CPU) {
	return func(cpu *M6510CPU) {
		addr := cpu.address(mode, true)
		cpu.rmw(addr, func(v byte) byte { return op(cpu, v) })
	}
}

func (c *M6510CPU) impliedOp(op func(*M6510CPU)) func(*M6510CPU) {
	return func(cpu *M6510CPU) {
		cpu.read(cpu.PC)
		op(cpu)
	}
}

func (c *M6510CPU) initOps() {
	for i := range c.ops {
		c.ops[i] = (*M6510CPU).opJam
	}

	alu := map[byte]func(*M6510CPU, byte){
		0x00: func(cpu *M6510CPU, v byte) { cpu.A |= v; cpu.setNZ(cpu.A) },
		0x20: func(cpu *M6510CPU, v byte) { cpu.A &= v; cpu.setNZ(cpu.A) },
		0x40: func(cpu *M6510CPU, v byte) { cpu.A ^= v; cpu.setNZ(cpu.A) },
		0x60: (*M6510CPU).adc,
		0xA0: func(cpu *M6510CPU, v byte) { cpu.A = v; cpu.setNZ(v) },
		0xC0: func(cpu *M6510CPU, v byte) { cpu.compare(cpu.A, v) },
		0xE0: (*M6510CPU).sbc,
	}
	for group, op := range alu {
		for offset, mode := range m6510AluModes {
			c.ops[group+offset] = c.readOp(mode, op)
		}
	}
	for offset, mode := range m6510AluModes {
		if mode != modeImmediate {
			c.ops[0x80+offset] = c.writeOp(mode, func(cpu *M6510CPU) byte { return cpu.A })
		}
	}

	shifts := map[byte]func(*M6510CPU, byte) byte{
		0x00: (*M6510CPU).asl,
		0x20: (*M6510CPU).rol,
		0x40: (*M6510CPU).lsr,
		0x60: (*M6510CPU).ror,
		0xC0: (*M6510CPU).dec,
		0xE0: (*M6510CPU).inc,
	}
	for group, op := range shifts {
		for offset, mode := range m6510RmwModes {
			c.ops[group+offset] = c.rmwOp(mode, op)
		}
		if group < 0x80 {
			c.ops[group+0x0A] = c.impliedOp(func(cpu *M6510CPU) { cpu.A = op(cpu, cpu.A) })
		}
	}

	// Undocumented shift-then-ALU combinations: SLO RLA SRE RRA DCP ISC
	combos := map[byte]func(*M6510CPU, byte) byte{
		0x00: func(cpu *M6510CPU, v byte) byte { v = cpu.asl(v); cpu.A |= v; cpu.setNZ(cpu.A); return v },
		0x20: func(cpu *M6510CPU, v byte) byte { v = cpu.rol(v); cpu.A &= v; cpu.setNZ(cpu.A); return v },
		0x40: func(cpu *M6510CPU, v byte) byte { v = cpu.lsr(v); cpu.A ^= v; cpu.setNZ(cpu.A); return v },
		0x60: func(cpu *M6510CPU, v byte) byte { v = cpu.ror(v); cpu.adc(v); return v },
		0xC0: func(cpu *M6510CPU, v byte) byte { v--; cpu.compare(cpu.A, v); return v },
		0xE0: func(cpu *M6510CPU, v byte) byte { v++; cpu.sbc(v); return v },
	}
	for group, op := range combos {
		for offset, mode := range m6510ComboModes {
			c.ops[group+offset] = c.rmwOp(mode, op)
		}
	}

	// X and Y loads, stores and compares
	ldx := func(cpu *M6510CPU, v byte) { cpu.X = v; cpu.setNZ(v) }
	ldy := func(cpu *M6510CPU, v byte) { cpu.Y = v; cpu.setNZ(v) }
	cpx := func(cpu *M6510CPU, v byte) { cpu.compare(cpu.X, v) }
	cpy := func(cpu *M6510CPU, v byte) { cpu.compare(cpu.Y, v) }
	lax := func(cpu *M6510CPU, v byte) { cpu.A, cpu.X = v, v; cpu.setNZ(v) }
	regX := func(cpu *M6510CPU) byte { return cpu.X }
	regY := func(cpu *M6510CPU) byte { return cpu.Y }
	regAX := func(cpu *M6510CPU) byte { return cpu.A & cpu.X }

	for op, mode := range map[byte]m6510Mode{0xA2: modeImmediate, 0xA6: modeZeroPage, 0xB6: modeZeroPageY, 0xAE: modeAbsolute, 0xBE: modeAbsoluteY} {
		c.ops[op] = c.readOp(mode, ldx)
	}
	for op, mode := range map[byte]m6510Mode{0xA0: modeImmediate, 0xA4: modeZeroPage, 0xB4: modeZeroPageX, 0xAC: modeAbsolute, 0xBC: modeAbsoluteX} {
		c.ops[op] = c.readOp(mode, ldy)
	}
	for op, mode := range map[byte]m6510Mode{0xE0: modeImmediate, 0xE4: modeZeroPage, 0xEC: modeAbsolute} {
		c.ops[op] = c.readOp(mode, cpx)
	}
	for op, mode := range map[byte]m6510Mode{0xC0: modeImmediate, 0xC4: modeZeroPage, 0xCC: modeAbsolute} {
		c.ops[op] = c.readOp(mode, cpy)
	}
	for op, mode := range map[byte]m6510Mode{0x86: modeZeroPage, 0x96: modeZeroPageY, 0x8E: modeAbsolute} {
		c.ops[op] = c.writeOp(mode, regX)
	}
	for op, mode := range map[byte]m6510Mode{0x84: modeZeroPage, 0x94: modeZeroPageX, 0x8C: modeAbsolute} {
		c.ops[op] = c.writeOp(mode, regY)
	}
	for op, mode := range map[byte]m6510Mode{0xA7: modeZeroPage, 0xB7: modeZeroPageY, 0xAF: modeAbsolute, 0xBF: modeAbsoluteY, 0xA3: modeIndexedIndirect, 0xB3: modeIndirectIndexed} {
		c.ops[op] = c.readOp(mode, lax)
	}
	for op, mode := range map[byte]m6510Mode{0x87: modeZeroPage, 0x97: modeZeroPageY, 0x8F: modeAbsolute, 0x83: modeIndexedIndirect} {
		c.ops[op] = c.writeOp(mode, regAX)
	}
	c.ops[0x24] = c.readOp(modeZeroPage, (*M6510CPU).bit)
	c.ops[0x2C] = c.readOp(modeAbsolute, (*M6510CPU).bit)

	// Branches
	branches := map[byte]func(*M6510CPU) bool{
		0x10: func(cpu *M6510CPU) bool { return cpu.P&m6510FlagN == 0 },
		0x30: func(cpu *M6510CPU) bool { return cpu.P&m6510FlagN != 0 },
		0x50: func(cpu *M6510CPU) bool { return cpu.P&m6510FlagV == 0 },
		0x70: func(cpu *M6510CPU) bool { return cpu.P&m6510FlagV != 0 },
		0x90: func(cpu *M6510CPU) bool { return cpu.P&m6510FlagC == 0 },
		0xB0: func(cpu *M6510CPU) bool { return cpu.P&m6510FlagC != 0 },
		0xD0: func(cpu *M6510CPU) bool { return cpu.P&m6510FlagZ == 0 },
		0xF0: func(cpu *M6510CPU) bool { return cpu.P&m6510FlagZ != 0 },
	}
	for op, cond := range branches {
		c.ops[op] = func(cpu *M6510CPU) { cpu.branch(cond(cpu)) }
	}

	// Flags and register transfers
	implied := map[byte]func(*M6510CPU){
		0x18: func(cpu *M6510CPU) { cpu.P &^= m6510FlagC },
		0x38: func(cpu *M6510CPU) { cpu.P |= m6510FlagC },
		0x58: func(cpu *M6510CPU) { cpu.P &^= m6510FlagI },
		0x78: func(cpu *M6510CPU) { cpu.P |= m6510FlagI },
		0xB8: func(cpu *M6510CPU) { cpu.P &^= m6510FlagV },
		0xD8: func(cpu *M6510CPU) { cpu.P &^= m6510FlagD },
		0xF8: func(cpu *M6510CPU) { cpu.P |= m6510FlagD },
		0x88: func(cpu *M6510CPU) { cpu.Y--; cpu.setNZ(cpu.Y) },
		0xC8: func(cpu *M6510CPU) { cpu.Y++; cpu.setNZ(cpu.Y) },
		0xCA: func(cpu *M6510CPU) { cpu.X--; cpu.setNZ(cpu.X) },
		0xE8: func(cpu *M6510CPU) { cpu.X++; cpu.setNZ(cpu.X) },
		0x8A: func(cpu *M6510CPU) { cpu.A = cpu.X; cpu.setNZ(cpu.A) },
		0x98: func(cpu *M6510CPU) { cpu.A = cpu.Y; cpu.setNZ(cpu.A) },
		0xA8: func(cpu *M6510CPU) { cpu.Y = cpu.A; cpu.setNZ(cpu.Y) },
		0xAA: func(cpu *M6510CPU) { cpu.X = cpu.A; cpu.setNZ(cpu.X) },
		0xBA: func(cpu *M6510CPU) { cpu.X = cpu.SP; cpu.setNZ(cpu.X) },
		0x9A: func(cpu *M6510CPU) { cpu.SP = cpu.X },
	}
	for _, op := range []byte{0x1A, 0x3A, 0x5A, 0x7A, 0xDA, 0xEA, 0xFA} {
		implied[op] = func(*M6510CPU) {}
	}
	for op, fn := range implied {
		c.ops[op] = c.impliedOp(fn)
	}

	// Undocumented NOPs with operands still perform their reads
	nop := func(*M6510CPU, byte) {}
	for _, op := range []byte{0x80, 0x82, 0x89, 0xC2, 0xE2} {
		c.ops[op] = c.readOp(modeImmediate, nop)
	}
	for _, op := range []byte{0x04, 0x44, 0x64} {
		c.ops[op] = c.readOp(modeZeroPage, nop)
	}
	for _, op := range []byte{0x14, 0x34, 0x54, 0x74, 0xD4, 0xF4} {
		c.ops[op] = c.readOp(modeZeroPageX, nop)
	}
	c.ops[0x0C] = c.readOp(modeAbsolute, nop)
	for _, op := range []byte{0x1C, 0x3C, 0x5C, 0x7C, 0xDC, 0xFC} {
		c.ops[op] = c.readOp(modeAbsoluteX, nop)
	}

	// Undocumented immediate operations
	c.ops[0xEB] = c.readOp(modeImmediate, (*M6510CPU).sbc)
	c.ops[0x0B] = c.readOp(modeImmediate, (*M6510CPU).anc)
	c.ops[0x2B] = c.readOp(modeImmediate, (*M6510CPU).anc)
	c.ops[0x4B] = c.readOp(modeImmediate, func(cpu *M6510CPU, v byte) { cpu.A = cpu.lsr(cpu.A & v) })
	c.ops[0x6B] = c.readOp(modeImmediate, (*M6510CPU).arr)
	c.ops[0xCB] = c.readOp(modeImmediate, (*M6510CPU).sbx)
	c.ops[0x8B] = c.readOp(modeImmediate, func(cpu *M6510CPU, v byte) {
		cpu.A = (cpu.A | 0xEE) & cpu.X & v
		cpu.setNZ(cpu.A)
	})
	c.ops[0xAB] = c.readOp(modeImmediate, func(cpu *M6510CPU, v byte) {
		cpu.A = (cpu.A | 0xEE) & v
		cpu.X = cpu.A
		cpu.setNZ(cpu.A)
	})
	c.ops[0xBB] = c.readOp(modeAbsoluteY, func(cpu *M6510CPU, v byte) {
		v &= cpu.SP
		cpu.A, cpu.X, cpu.SP = v, v, v
		cpu.setNZ(v)
	})

	// Unstable stores that AND with the high address byte plus one
	c.ops[0x93] = func(cpu *M6510CPU) { cpu.storeHigh(modeIndirectIndexed, cpu.A&cpu.X) }
	c.ops[0x9F] = func(cpu *M6510CPU) { cpu.storeHigh(modeAbsoluteY, cpu.A&cpu.X) }
	c.ops[0x9C] = func(cpu *M6510CPU) { cpu.storeHigh(modeAbsoluteX, cpu.Y) }
	c.ops[0x9E] = func(cpu *M6510CPU) { cpu.storeHigh(modeAbsoluteY, cpu.X) }
	c.ops[0x9B] = func(cpu *M6510CPU) {
		cpu.SP = cpu.A & cpu.X
		cpu.storeHigh(modeAbsoluteY, cpu.SP)
	}

	// Stack and flow control
	c.ops[0x00] = (*M6510CPU).opBRK
	c.ops[0x20] = (*M6510CPU).opJSR
	c.ops[0x40] = (*M6510CPU).opRTI
	c.ops[0x60] = (*M6510CPU).opRTS
	c.ops[0x4C] = func(cpu *M6510CPU) { cpu.PC = cpu.fetchWord() }
	c.ops[0x6C] = (*M6510CPU).opJMPIndirect
	c.ops[0x08] = c.impliedOp(func(cpu *M6510CPU) { cpu.push(cpu.P | m6510FlagB | m6510FlagU) })
	c.ops[0x48] = c.impliedOp(func(cpu *M6510CPU) { cpu.push(cpu.A) })
	c.ops[0x28] = c.impliedOp(func(cpu *M6510CPU) {
		cpu.read(M6510_STACK_BASE | uint16(cpu.SP))
		cpu.P = cpu.pull()&^m6510FlagB | m6510FlagU
	})
	c.ops[0x68] = c.impliedOp(func(cpu *M6510CPU) {
		cpu.read(M6510_STACK_BASE | uint16(cpu.SP))
		cpu.A = cpu.pull()
		cpu.setNZ(cpu.A)
	})
}

func (c *M6510CPU) opJam() {
	c.Jammed = true
}

func (c *M6510CPU) opBRK() {
	c.fetch()
	c.push(byte(c.PC >> 8))
	c.push(byte(c.PC))
	c.push(c.P | m6510FlagB | m6510FlagU)
	c.P |= m6510FlagI
	lo := uint16(c.read(M6510_IRQ_VECTOR))
	c.PC = lo | uint16(c.read(M6510_IRQ_VECTOR+1))<<8
}

func (c *M6510CPU) opJSR() {
	lo := uint16(c.fetch())
	c.read(M6510_STACK_BASE | uint16(c.SP))
	c.push(byte(c.PC >> 8))
	c.push(byte(c.PC))
	hi := uint16(c.read(c.PC))
	ret := c.PC
	c.PC = hi<<8 | lo
	c.StepOutList = append(c.StepOutList, ret+1)
	if len(c.StepOutList) > Z80_STEP_OUT {
		c.StepOutList = c.StepOutList[1:]
	}
}

func (c *M6510CPU) opRTS() {
	c.read(c.PC)
	c.read(M6510_STACK_BASE | uint16(c.SP))
	lo := uint16(c.pull())
	c.PC = lo | uint16(c.pull())<<8
	c.read(c.PC)
	c.PC++
	if n := len(c.StepOutList); n > 0 {
		c.StepOutList = c.StepOutList[:n-1]
	}
}

func (c *M6510CPU) opRTI() {
	c.read(c.PC)
	c.read(M6510_STACK_BASE | uint16(c.SP))
	c.P = c.pull()&^m6510FlagB | m6510FlagU
	lo := uint16(c.pull())
	c.PC = lo | uint16(c.pull())<<8
}

// opJMPIndirect keeps the NMOS bug: the pointer high byte never carries
// into the next page.
func (c *M6510CPU) opJMPIndirect() {
	ptr := c.fetchWord()
	lo := uint16(c.read(ptr))
	hi := uint16(c.read(ptr&0xFF00 | (ptr+1)&0x00FF))
	c.PC = hi<<8 | lo
}

func (c *M6510CPU) anc(v byte) {
	c.A &= v
	c.setNZ(c.A)
	c.setFlag(m6510FlagC, c.A&0x80 != 0)
}

func (c *M6510CPU) arr(v byte) {
	t := c.A & v
	carry := c.P & m6510FlagC
	if c.P&m6510FlagD == 0 {
		c.A = t>>1 | carry<<7
		c.setNZ(c.A)
		c.setFlag(m6510FlagC, c.A&0x40 != 0)
		c.setFlag(m6510FlagV, (c.A>>6^c.A>>5)&1 != 0)
		return
	}
	r := t>>1 | carry<<7
	c.setFlag(m6510FlagN, carry != 0)
	c.setFlag(m6510FlagZ, r == 0)
	c.setFlag(m6510FlagV, (t^r)&0x40 != 0)
	if t&0x0F+t&0x01 > 5 {
		r = r&0xF0 | (r+6)&0x0F
	}
	hiFix := uint16(t&0xF0) + uint16(t&0x10) > 0x50
	c.setFlag(m6510FlagC, hiFix)
	if hiFix {
		r += 0x60
	}
	c.A = r
}

func (c *M6510CPU) sbx(v byte) {
	ax := c.A & c.X
	c.setFlag(m6510FlagC, ax >= v)
	c.X = ax - v
	c.setNZ(c.X)
}

// storeHigh implements SHA, SHX, SHY and TAS.
func (c *M6510CPU) storeHigh(mode m6510Mode, value byte) {
	var base uint16
	switch mode {
	case modeIndirectIndexed:
		zp := c.fetch()
		lo := uint16(c.read(uint16(zp)))
		base = lo | uint16(c.read(uint16(zp+1)))<<8
	default:
		base = c.fetchWord()
	}
	index := c.Y
	if mode == modeAbsoluteX {
		index = c.X
	}
	addr := base + uint16(index)
	c.read(base&0xFF00 | addr&0x00FF)
	value &= byte(base>>8) + 1
	if base&0xFF00 != addr&0xFF00 {
		addr = uint16(value)<<8 | addr&0x00FF
	}
	c.write(addr, value)
}
