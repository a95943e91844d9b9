// z80_ops_cb.go - CB-prefixed bit operations and their DDCB/FDCB forms

package main

func (c *Z80CPU) initCBOps() {
	for op := 0; op < 256; op++ {
		reg := byte(op) & 7
		n := byte(op>>3) & 7
		switch group := op >> 6; {
		case group == 0 && reg == 6:
			c.cbOps[op] = func(cpu *Z80CPU) {
				addr := cpu.HL()
				v := cpu.readMemory(addr)
				cpu.tactsAt(1, addr)
				cpu.writeMemory(addr, cpu.shiftOp(n, v))
			}
		case group == 0:
			c.cbOps[op] = func(cpu *Z80CPU) { cpu.setReg8(reg, cpu.shiftOp(n, cpu.reg8(reg))) }
		case group == 1 && reg == 6:
			c.cbOps[op] = func(cpu *Z80CPU) {
				addr := cpu.HL()
				v := cpu.readMemory(addr)
				cpu.tactsAt(1, addr)
				cpu.bitTest(n, v, byte(cpu.WZ>>8))
			}
		case group == 1:
			c.cbOps[op] = func(cpu *Z80CPU) {
				v := cpu.reg8(reg)
				cpu.bitTest(n, v, v)
			}
		case reg == 6:
			set := group == 3
			c.cbOps[op] = func(cpu *Z80CPU) {
				addr := cpu.HL()
				v := cpu.readMemory(addr)
				cpu.tactsAt(1, addr)
				cpu.writeMemory(addr, setOrResBit(v, n, set))
			}
		default:
			set := group == 3
			c.cbOps[op] = func(cpu *Z80CPU) { cpu.setReg8(reg, setOrResBit(cpu.reg8(reg), n, set)) }
		}
	}
}

func setOrResBit(v byte, n byte, set bool) byte {
	if set {
		return v | 1<<n
	}
	return v &^ (1 << n)
}

// executeIndexedBitOp runs DD CB d op / FD CB d op. The displacement and the
// opcode are plain memory reads, not M1 cycles. Results other than BIT are
// also copied into the register named by the low three bits.
func (c *Z80CPU) executeIndexedBitOp() {
	d := c.fetchCodeByte()
	c.WZ = c.hlReg() + uint16(int16(int8(d)))
	op := c.readMemory(c.PC)
	c.tactsAt(2, c.PC)
	c.PC++

	addr := c.WZ
	reg := op & 7
	n := (op >> 3) & 7
	v := c.readMemory(addr)
	c.tactsAt(1, addr)

	var r byte
	switch op >> 6 {
	case 0:
		r = c.shiftOp(n, v)
	case 1:
		c.bitTest(n, v, byte(addr>>8))
		return
	case 2:
		r = setOrResBit(v, n, false)
	default:
		r = setOrResBit(v, n, true)
	}
	c.writeMemory(addr, r)
	if reg != 6 {
		c.setPlainReg8(reg, r)
	}
}
