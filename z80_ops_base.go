// z80_ops_base.go - Unprefixed Z80 operations (also run under DD/FD prefixes)

package main

func (c *Z80CPU) initBaseOps() {
	for i := range c.baseOps {
		c.baseOps[i] = (*Z80CPU).opNOP
	}

	// LD r,r' and LD r,(HL) / LD (HL),r
	for op := 0x40; op <= 0x7F; op++ {
		if op == 0x76 {
			continue
		}
		dest := byte(op>>3) & 7
		src := byte(op) & 7
		switch {
		case src == 6:
			c.baseOps[op] = func(cpu *Z80CPU) { cpu.opLDRegMem(dest) }
		case dest == 6:
			c.baseOps[op] = func(cpu *Z80CPU) { cpu.opLDMemReg(src) }
		default:
			c.baseOps[op] = func(cpu *Z80CPU) { cpu.setReg8(dest, cpu.reg8(src)) }
		}
	}
	c.baseOps[0x76] = (*Z80CPU).opHALT

	// ALU A,r / A,(HL)
	for op := 0x80; op <= 0xBF; op++ {
		alu := aluOp(op>>3) & 7
		src := byte(op) & 7
		if src == 6 {
			c.baseOps[op] = func(cpu *Z80CPU) {
				addr := cpu.operandAddress()
				cpu.performALU(alu, cpu.readMemory(addr))
			}
		} else {
			c.baseOps[op] = func(cpu *Z80CPU) { cpu.performALU(alu, cpu.reg8(src)) }
		}
	}
	// ALU A,n
	for op := 0xC6; op <= 0xFE; op += 8 {
		alu := aluOp(op>>3) & 7
		c.baseOps[op] = func(cpu *Z80CPU) { cpu.performALU(alu, cpu.fetchCodeByte()) }
	}

	for r := byte(0); r < 8; r++ {
		reg := r
		if reg == 6 {
			c.baseOps[0x34] = (*Z80CPU).opINCMem
			c.baseOps[0x35] = (*Z80CPU).opDECMem
			c.baseOps[0x36] = (*Z80CPU).opLDMemImm
			continue
		}
		c.baseOps[0x04|reg<<3] = func(cpu *Z80CPU) { cpu.setReg8(reg, cpu.inc8(cpu.reg8(reg))) }
		c.baseOps[0x05|reg<<3] = func(cpu *Z80CPU) { cpu.setReg8(reg, cpu.dec8(cpu.reg8(reg))) }
		c.baseOps[0x06|reg<<3] = func(cpu *Z80CPU) { cpu.setReg8(reg, cpu.fetchCodeByte()) }
	}

	for rr := byte(0); rr < 4; rr++ {
		pair := rr
		c.baseOps[0x01|pair<<4] = func(cpu *Z80CPU) { cpu.setReg16(pair, cpu.fetchCodeWord()) }
		c.baseOps[0x03|pair<<4] = func(cpu *Z80CPU) {
			cpu.tactsAt(2, cpu.IR())
			cpu.setReg16(pair, cpu.reg16(pair)+1)
		}
		c.baseOps[0x0B|pair<<4] = func(cpu *Z80CPU) {
			cpu.tactsAt(2, cpu.IR())
			cpu.setReg16(pair, cpu.reg16(pair)-1)
		}
		c.baseOps[0x09|pair<<4] = func(cpu *Z80CPU) {
			cpu.tactsAt(7, cpu.IR())
			cpu.setHLReg(cpu.add16(cpu.hlReg(), cpu.reg16(pair)))
		}
	}

	// PUSH/POP use AF instead of SP for pair 3
	for rr := byte(0); rr < 4; rr++ {
		pair := rr
		c.baseOps[0xC5|pair<<4] = func(cpu *Z80CPU) {
			if pair == 3 {
				cpu.push(cpu.AF())
			} else {
				cpu.push(cpu.reg16(pair))
			}
		}
		c.baseOps[0xC1|pair<<4] = func(cpu *Z80CPU) {
			v := cpu.pop()
			if pair == 3 {
				cpu.SetAF(v)
			} else {
				cpu.setReg16(pair, v)
			}
		}
	}

	for cc := byte(0); cc < 8; cc++ {
		cond := cc
		c.baseOps[0xC2|cond<<3] = func(cpu *Z80CPU) {
			cpu.WZ = cpu.fetchCodeWord()
			if cpu.condition(cond) {
				cpu.PC = cpu.WZ
			}
		}
		c.baseOps[0xC4|cond<<3] = func(cpu *Z80CPU) {
			cpu.WZ = cpu.fetchCodeWord()
			if cpu.condition(cond) {
				cpu.callCore()
			}
		}
		c.baseOps[0xC0|cond<<3] = func(cpu *Z80CPU) {
			cpu.tactsAt(1, cpu.IR())
			if cpu.condition(cond) {
				cpu.retCore()
			}
		}
		vector := uint16(cond) << 3
		c.baseOps[0xC7|cond<<3] = func(cpu *Z80CPU) { cpu.rstCore(vector) }
	}
	for cc := byte(0); cc < 4; cc++ {
		cond := cc
		c.baseOps[0x20|cond<<3] = func(cpu *Z80CPU) {
			e := cpu.fetchCodeByte()
			if cpu.condition(cond) {
				cpu.relativeJump(e)
			}
		}
	}

	c.baseOps[0x00] = (*Z80CPU).opNOP
	c.baseOps[0x02] = func(cpu *Z80CPU) { cpu.ldIndirectA(cpu.BC()) }
	c.baseOps[0x12] = func(cpu *Z80CPU) { cpu.ldIndirectA(cpu.DE()) }
	c.baseOps[0x0A] = func(cpu *Z80CPU) { cpu.ldAIndirect(cpu.BC()) }
	c.baseOps[0x1A] = func(cpu *Z80CPU) { cpu.ldAIndirect(cpu.DE()) }
	c.baseOps[0x07] = (*Z80CPU).rlca
	c.baseOps[0x0F] = (*Z80CPU).rrca
	c.baseOps[0x17] = (*Z80CPU).rla
	c.baseOps[0x1F] = (*Z80CPU).rra
	c.baseOps[0x08] = (*Z80CPU).opEXAF
	c.baseOps[0x10] = (*Z80CPU).opDJNZ
	c.baseOps[0x18] = func(cpu *Z80CPU) { cpu.relativeJump(cpu.fetchCodeByte()) }
	c.baseOps[0x22] = (*Z80CPU).opLDNNHL
	c.baseOps[0x2A] = (*Z80CPU).opLDHLNN
	c.baseOps[0x27] = (*Z80CPU).daa
	c.baseOps[0x2F] = (*Z80CPU).opCPL
	c.baseOps[0x32] = (*Z80CPU).opLDNNA
	c.baseOps[0x3A] = (*Z80CPU).opLDANN
	c.baseOps[0x37] = (*Z80CPU).opSCF
	c.baseOps[0x3F] = (*Z80CPU).opCCF
	c.baseOps[0xC3] = func(cpu *Z80CPU) {
		cpu.WZ = cpu.fetchCodeWord()
		cpu.PC = cpu.WZ
	}
	c.baseOps[0xC9] = (*Z80CPU).retCore
	c.baseOps[0xCD] = func(cpu *Z80CPU) {
		cpu.WZ = cpu.fetchCodeWord()
		cpu.callCore()
	}
	c.baseOps[0xD3] = (*Z80CPU).opOUTNA
	c.baseOps[0xDB] = (*Z80CPU).opINAN
	c.baseOps[0xD9] = (*Z80CPU).opEXX
	c.baseOps[0xE3] = (*Z80CPU).opEXSPHL
	c.baseOps[0xE9] = func(cpu *Z80CPU) { cpu.PC = cpu.hlReg() }
	c.baseOps[0xEB] = (*Z80CPU).opEXDEHL
	c.baseOps[0xF3] = (*Z80CPU).opDI
	c.baseOps[0xFB] = (*Z80CPU).opEI
	c.baseOps[0xF9] = func(cpu *Z80CPU) {
		cpu.tactsAt(2, cpu.IR())
		cpu.SP = cpu.hlReg()
	}
}

func (c *Z80CPU) opNOP() {}

// opHALT parks PC on the HALT opcode; leaving the halted state steps over it.
func (c *Z80CPU) opHALT() {
	c.Halted = true
	c.PC--
}

func (c *Z80CPU) opLDRegMem(dest byte) {
	addr := c.operandAddress()
	c.setPlainReg8(dest, c.readMemory(addr))
}

func (c *Z80CPU) opLDMemReg(src byte) {
	addr := c.operandAddress()
	c.writeMemory(addr, c.plainReg8(src))
}

func (c *Z80CPU) opLDMemImm() {
	if !c.indexed() {
		v := c.fetchCodeByte()
		c.writeMemory(c.HL(), v)
		return
	}
	d := c.fetchCodeByte()
	v := c.fetchCodeByte()
	c.tactsAt(2, c.PC-1)
	c.WZ = c.hlReg() + uint16(int16(int8(d)))
	c.writeMemory(c.WZ, v)
}

func (c *Z80CPU) opINCMem() {
	addr := c.operandAddress()
	v := c.readMemory(addr)
	c.tactsAt(1, addr)
	c.writeMemory(addr, c.inc8(v))
}

func (c *Z80CPU) opDECMem() {
	addr := c.operandAddress()
	v := c.readMemory(addr)
	c.tactsAt(1, addr)
	c.writeMemory(addr, c.dec8(v))
}

func (c *Z80CPU) ldIndirectA(addr uint16) {
	c.writeMemory(addr, c.A)
	c.WZ = uint16(c.A)<<8 | (addr+1)&0xFF
}

func (c *Z80CPU) ldAIndirect(addr uint16) {
	c.A = c.readMemory(addr)
	c.WZ = addr + 1
}

func (c *Z80CPU) opLDNNHL() {
	addr := c.fetchCodeWord()
	v := c.hlReg()
	c.writeMemory(addr, byte(v))
	c.writeMemory(addr+1, byte(v>>8))
	c.WZ = addr + 1
}

func (c *Z80CPU) opLDHLNN() {
	addr := c.fetchCodeWord()
	lo := c.readMemory(addr)
	hi := c.readMemory(addr + 1)
	c.setHLReg(uint16(hi)<<8 | uint16(lo))
	c.WZ = addr + 1
}

func (c *Z80CPU) opLDNNA() {
	addr := c.fetchCodeWord()
	c.writeMemory(addr, c.A)
	c.WZ = uint16(c.A)<<8 | (addr+1)&0xFF
}

func (c *Z80CPU) opLDANN() {
	addr := c.fetchCodeWord()
	c.A = c.readMemory(addr)
	c.WZ = addr + 1
}

func (c *Z80CPU) opCPL() {
	c.A = ^c.A
	c.F = c.F&(z80FlagS|z80FlagZ|z80FlagPV|z80FlagC) | z80FlagH | z80FlagN | c.A&(z80FlagX|z80FlagY)
}

func (c *Z80CPU) opSCF() {
	c.F = c.F&(z80FlagS|z80FlagZ|z80FlagPV) | z80FlagC | c.A&(z80FlagX|z80FlagY)
}

func (c *Z80CPU) opCCF() {
	f := c.F&(z80FlagS|z80FlagZ|z80FlagPV) | c.A&(z80FlagX|z80FlagY)
	if c.F&z80FlagC != 0 {
		f |= z80FlagH
	} else {
		f |= z80FlagC
	}
	c.F = f
}

func (c *Z80CPU) opEXAF() {
	c.A, c.A2 = c.A2, c.A
	c.F, c.F2 = c.F2, c.F
}

func (c *Z80CPU) opEXX() {
	c.B, c.B2 = c.B2, c.B
	c.C, c.C2 = c.C2, c.C
	c.D, c.D2 = c.D2, c.D
	c.E, c.E2 = c.E2, c.E
	c.H, c.H2 = c.H2, c.H
	c.L, c.L2 = c.L2, c.L
}

// EX DE,HL is never affected by an index prefix.
func (c *Z80CPU) opEXDEHL() {
	c.D, c.H = c.H, c.D
	c.E, c.L = c.L, c.E
}

func (c *Z80CPU) opEXSPHL() {
	sp := c.SP
	lo := c.readMemory(sp)
	hi := c.readMemory(sp + 1)
	c.tactsAt(1, sp+1)
	v := c.hlReg()
	c.writeMemory(sp+1, byte(v>>8))
	c.writeMemory(sp, byte(v))
	c.tactsAt(2, sp)
	c.WZ = uint16(hi)<<8 | uint16(lo)
	c.setHLReg(c.WZ)
}

func (c *Z80CPU) opDJNZ() {
	c.tactsAt(1, c.IR())
	e := c.fetchCodeByte()
	c.B--
	if c.B != 0 {
		c.relativeJump(e)
	}
}

func (c *Z80CPU) opOUTNA() {
	n := c.fetchCodeByte()
	port := uint16(c.A)<<8 | uint16(n)
	c.bus.WritePort(port, c.A)
	c.WZ = uint16(c.A)<<8 | uint16(n+1)
}

func (c *Z80CPU) opINAN() {
	n := c.fetchCodeByte()
	port := uint16(c.A)<<8 | uint16(n)
	c.WZ = port + 1
	c.A = c.bus.ReadPort(port)
}

func (c *Z80CPU) opDI() {
	c.IFF1 = false
	c.IFF2 = false
}

// opEI enables interrupts after the next instruction completes.
func (c *Z80CPU) opEI() {
	c.IFF1 = true
	c.IFF2 = true
	c.eiBacklog = 2
}

func (c *Z80CPU) relativeJump(e byte) {
	c.tactsAt(5, c.PC-1)
	c.PC += uint16(int16(int8(e)))
	c.WZ = c.PC
}

func (c *Z80CPU) callCore() {
	c.pushToStepOutStack(c.PC)
	c.tactsAt(1, c.PC-1)
	c.SP--
	c.writeMemory(c.SP, byte(c.PC>>8))
	c.SP--
	c.writeMemory(c.SP, byte(c.PC))
	c.PC = c.WZ
}

func (c *Z80CPU) retCore() {
	c.popStepOutStack()
	c.WZ = c.pop()
	c.PC = c.WZ
}

func (c *Z80CPU) rstCore(addr uint16) {
	c.pushToStepOutStack(c.PC)
	c.push(c.PC)
	c.WZ = addr
	c.PC = addr
}
