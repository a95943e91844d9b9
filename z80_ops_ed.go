// z80_ops_ed.go - ED-prefixed extended operations and block instructions

package main

func (c *Z80CPU) initEDOps() {
	for i := range c.edOps {
		c.edOps[i] = (*Z80CPU).opNOP
	}

	for r := byte(0); r < 8; r++ {
		reg := r
		c.edOps[0x40|reg<<3] = func(cpu *Z80CPU) {
			cpu.WZ = cpu.BC() + 1
			v := cpu.bus.ReadPort(cpu.BC())
			cpu.F = cpu.F&z80FlagC | z80SZ53P[v]
			if reg != 6 {
				cpu.setReg8(reg, v)
			}
		}
		c.edOps[0x41|reg<<3] = func(cpu *Z80CPU) {
			cpu.WZ = cpu.BC() + 1
			v := byte(0)
			if reg != 6 {
				v = cpu.reg8(reg)
			}
			cpu.bus.WritePort(cpu.BC(), v)
		}
		c.edOps[0x44|reg<<3] = (*Z80CPU).opNEG
		c.edOps[0x45|reg<<3] = (*Z80CPU).opRETN
	}

	for rr := byte(0); rr < 4; rr++ {
		pair := rr
		c.edOps[0x42|pair<<4] = func(cpu *Z80CPU) {
			cpu.tactsAt(7, cpu.IR())
			cpu.SetHL(cpu.sbc16(cpu.HL(), cpu.reg16(pair)))
		}
		c.edOps[0x4A|pair<<4] = func(cpu *Z80CPU) {
			cpu.tactsAt(7, cpu.IR())
			cpu.SetHL(cpu.adc16(cpu.HL(), cpu.reg16(pair)))
		}
		c.edOps[0x43|pair<<4] = func(cpu *Z80CPU) {
			addr := cpu.fetchCodeWord()
			v := cpu.reg16(pair)
			cpu.writeMemory(addr, byte(v))
			cpu.writeMemory(addr+1, byte(v>>8))
			cpu.WZ = addr + 1
		}
		c.edOps[0x4B|pair<<4] = func(cpu *Z80CPU) {
			addr := cpu.fetchCodeWord()
			lo := cpu.readMemory(addr)
			hi := cpu.readMemory(addr + 1)
			cpu.setReg16(pair, uint16(hi)<<8|uint16(lo))
			cpu.WZ = addr + 1
		}
	}

	for _, op := range []int{0x46, 0x4E, 0x66, 0x6E} {
		c.edOps[op] = func(cpu *Z80CPU) { cpu.IM = 0 }
	}
	c.edOps[0x56] = func(cpu *Z80CPU) { cpu.IM = 1 }
	c.edOps[0x76] = func(cpu *Z80CPU) { cpu.IM = 1 }
	c.edOps[0x5E] = func(cpu *Z80CPU) { cpu.IM = 2 }
	c.edOps[0x7E] = func(cpu *Z80CPU) { cpu.IM = 2 }

	c.edOps[0x47] = func(cpu *Z80CPU) {
		cpu.tactsAt(1, cpu.IR())
		cpu.I = cpu.A
	}
	c.edOps[0x4F] = func(cpu *Z80CPU) {
		cpu.tactsAt(1, cpu.IR())
		cpu.R = cpu.A
	}
	c.edOps[0x57] = func(cpu *Z80CPU) {
		cpu.tactsAt(1, cpu.IR())
		cpu.A = cpu.I
		cpu.ldAIRFlags()
	}
	c.edOps[0x5F] = func(cpu *Z80CPU) {
		cpu.tactsAt(1, cpu.IR())
		cpu.A = cpu.R
		cpu.ldAIRFlags()
	}
	c.edOps[0x67] = (*Z80CPU).opRRD
	c.edOps[0x6F] = (*Z80CPU).opRLD

	c.edOps[0xA0] = func(cpu *Z80CPU) { cpu.blockLoad(1, false) }
	c.edOps[0xA8] = func(cpu *Z80CPU) { cpu.blockLoad(-1, false) }
	c.edOps[0xB0] = func(cpu *Z80CPU) { cpu.blockLoad(1, true) }
	c.edOps[0xB8] = func(cpu *Z80CPU) { cpu.blockLoad(-1, true) }
	c.edOps[0xA1] = func(cpu *Z80CPU) { cpu.blockCompare(1, false) }
	c.edOps[0xA9] = func(cpu *Z80CPU) { cpu.blockCompare(-1, false) }
	c.edOps[0xB1] = func(cpu *Z80CPU) { cpu.blockCompare(1, true) }
	c.edOps[0xB9] = func(cpu *Z80CPU) { cpu.blockCompare(-1, true) }
	c.edOps[0xA2] = func(cpu *Z80CPU) { cpu.blockIn(1, false) }
	c.edOps[0xAA] = func(cpu *Z80CPU) { cpu.blockIn(-1, false) }
	c.edOps[0xB2] = func(cpu *Z80CPU) { cpu.blockIn(1, true) }
	c.edOps[0xBA] = func(cpu *Z80CPU) { cpu.blockIn(-1, true) }
	c.edOps[0xA3] = func(cpu *Z80CPU) { cpu.blockOut(1, false) }
	c.edOps[0xAB] = func(cpu *Z80CPU) { cpu.blockOut(-1, false) }
	c.edOps[0xB3] = func(cpu *Z80CPU) { cpu.blockOut(1, true) }
	c.edOps[0xBB] = func(cpu *Z80CPU) { cpu.blockOut(-1, true) }
}

func (c *Z80CPU) opNEG() {
	v := c.A
	c.A = 0
	c.A = c.sub8(v, 0)
}

// opRETN covers RETN and RETI; both restore IFF1 from IFF2.
func (c *Z80CPU) opRETN() {
	c.IFF1 = c.IFF2
	c.retCore()
}

func (c *Z80CPU) ldAIRFlags() {
	f := c.F&z80FlagC | z80SZ53[c.A]
	if c.IFF2 {
		f |= z80FlagPV
	}
	c.F = f
}

func (c *Z80CPU) opRRD() {
	addr := c.HL()
	v := c.readMemory(addr)
	c.tactsAt(4, addr)
	c.writeMemory(addr, c.A<<4|v>>4)
	c.A = c.A&0xF0 | v&0x0F
	c.F = c.F&z80FlagC | z80SZ53P[c.A]
	c.WZ = addr + 1
}

func (c *Z80CPU) opRLD() {
	addr := c.HL()
	v := c.readMemory(addr)
	c.tactsAt(4, addr)
	c.writeMemory(addr, v<<4|c.A&0x0F)
	c.A = c.A&0xF0 | v>>4
	c.F = c.F&z80FlagC | z80SZ53P[c.A]
	c.WZ = addr + 1
}

// repeatBlock rewinds PC onto the ED prefix so the instruction runs again.
func (c *Z80CPU) repeatBlock(addr uint16) {
	c.tactsAt(5, addr)
	c.PC -= 2
	c.WZ = c.PC + 1
}

// blockLoad is LDI/LDD/LDIR/LDDR.
func (c *Z80CPU) blockLoad(step int, repeat bool) {
	hl, de := c.HL(), c.DE()
	v := c.readMemory(hl)
	c.writeMemory(de, v)
	c.tactsAt(2, de)
	c.SetBC(c.BC() - 1)
	c.SetHL(hl + uint16(step))
	c.SetDE(de + uint16(step))

	n := v + c.A
	f := c.F&(z80FlagS|z80FlagZ|z80FlagC) | n&z80FlagX | (n&0x02)<<4
	if c.BC() != 0 {
		f |= z80FlagPV
	}
	c.F = f
	if repeat && c.BC() != 0 {
		c.repeatBlock(de)
	}
}

// blockCompare is CPI/CPD/CPIR/CPDR.
func (c *Z80CPU) blockCompare(step int, repeat bool) {
	hl := c.HL()
	v := c.readMemory(hl)
	c.tactsAt(5, hl)
	c.SetBC(c.BC() - 1)
	c.SetHL(hl + uint16(step))
	c.WZ += uint16(step)

	r := c.A - v
	h := (c.A ^ v ^ r) & z80FlagH
	n := r
	if h != 0 {
		n--
	}
	f := c.F&z80FlagC | z80FlagN | z80SZ53[r]&(z80FlagS|z80FlagZ) | h | n&z80FlagX | (n&0x02)<<4
	if c.BC() != 0 {
		f |= z80FlagPV
	}
	c.F = f
	if repeat && c.BC() != 0 && r != 0 {
		c.repeatBlock(hl)
	}
}

func (c *Z80CPU) blockIOFlags(v byte, k int) {
	f := z80SZ53[c.B]
	if v&0x80 != 0 {
		f |= z80FlagN
	}
	if k > 0xFF {
		f |= z80FlagH | z80FlagC
	}
	if parity8(byte(k)&7 ^ c.B) {
		f |= z80FlagPV
	}
	c.F = f
}

// blockIn is INI/IND/INIR/INDR.
func (c *Z80CPU) blockIn(step int, repeat bool) {
	c.tactsAt(1, c.IR())
	bc := c.BC()
	v := c.bus.ReadPort(bc)
	hl := c.HL()
	c.writeMemory(hl, v)
	c.WZ = bc + uint16(step)
	c.B--
	c.SetHL(hl + uint16(step))
	c.blockIOFlags(v, int(v)+int(byte(int(c.C)+step)))
	if repeat && c.B != 0 {
		c.repeatBlock(hl)
	}
}

// blockOut is OUTI/OUTD/OTIR/OTDR.
func (c *Z80CPU) blockOut(step int, repeat bool) {
	c.tactsAt(1, c.IR())
	hl := c.HL()
	v := c.readMemory(hl)
	c.B--
	c.WZ = c.BC() + uint16(step)
	c.bus.WritePort(c.BC(), v)
	c.SetHL(hl + uint16(step))
	c.blockIOFlags(v, int(v)+int(c.L))
	if repeat && c.B != 0 {
		c.repeatBlock(c.BC())
	}
}
