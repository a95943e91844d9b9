// z80_cpu.go - Tact-accurate Zilog Z80 core

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/intuitionamiga/retrocore
License: GPLv3 or later
*/

package main

import "strings"

// Z80Bus is the machine side of the CPU. Every memory and I/O access is
// split into a delay, which advances the tact counter and applies
// contention, and the transfer itself.
type Z80Bus interface {
	DoReadMemory(addr uint16) byte
	DoWriteMemory(addr uint16, value byte)
	DelayMemoryRead(addr uint16)
	DelayMemoryWrite(addr uint16)
	DelayAddressBus(addr uint16)
	ReadPort(port uint16) byte
	WritePort(port uint16, value byte)
	TactPlusN(n int)
}

const (
	z80FlagS  = 0x80
	z80FlagZ  = 0x40
	z80FlagY  = 0x20
	z80FlagH  = 0x10
	z80FlagX  = 0x08
	z80FlagPV = 0x04
	z80FlagN  = 0x02
	z80FlagC  = 0x01
)

type z80Prefix byte

const (
	z80PrefixNone z80Prefix = iota
	z80PrefixCB
	z80PrefixED
	z80PrefixDD
	z80PrefixFD
)

const (
	Z80_NMI_VECTOR = 0x0066
	Z80_IM1_VECTOR = 0x0038
	Z80_STEP_OUT   = 256 // depth of the step-out return stack
)

type Z80CPU struct {
	A  byte
	F  byte
	B  byte
	C  byte
	D  byte
	E  byte
	H  byte
	L  byte
	A2 byte
	F2 byte
	B2 byte
	C2 byte
	D2 byte
	E2 byte
	H2 byte
	L2 byte

	IX uint16
	IY uint16
	SP uint16
	PC uint16
	WZ uint16

	I  byte
	R  byte
	IM byte

	IFF1   bool
	IFF2   bool
	Halted bool

	// Input signals sampled at instruction boundaries
	SigINT bool
	SigNMI bool
	SigRST bool

	// DelayedAddressBus charges contention on internal cycles that keep an
	// address on the bus (48K and 128K ULA).
	DelayedAddressBus bool

	RetExecuted  bool
	StepOutStack []uint16
	OpStart      uint16

	eiBacklog int
	prefix    z80Prefix
	opCode    byte

	bus Z80Bus

	baseOps [256]func(*Z80CPU)
	cbOps   [256]func(*Z80CPU)
	edOps   [256]func(*Z80CPU)
}

func NewZ80CPU(bus Z80Bus) *Z80CPU {
	c := &Z80CPU{bus: bus}
	c.initBaseOps()
	c.initCBOps()
	c.initEDOps()
	c.HardReset()
	return c
}

// Reset mirrors the RESET pin: registers that the chip clears are cleared,
// the rest keep their values.
func (c *Z80CPU) Reset() {
	c.SetAF(0xFFFF)
	c.SP = 0xFFFF
	c.PC = 0
	c.I = 0
	c.R = 0
	c.IM = 0
	c.WZ = 0
	c.IFF1 = false
	c.IFF2 = false
	c.Halted = false
	c.eiBacklog = 0
	c.prefix = z80PrefixNone
	c.SigINT = false
	c.SigNMI = false
	c.SigRST = false
	c.RetExecuted = false
	c.StepOutStack = c.StepOutStack[:0]
}

// HardReset is a power cycle.
func (c *Z80CPU) HardReset() {
	c.Reset()
	c.SetBC(0)
	c.SetDE(0)
	c.SetHL(0)
	c.A2, c.F2 = 0xFF, 0xFF
	c.B2, c.C2, c.D2, c.E2, c.H2, c.L2 = 0, 0, 0, 0, 0, 0
	c.IX = 0
	c.IY = 0
}

func (c *Z80CPU) AF() uint16 { return uint16(c.A)<<8 | uint16(c.F) }
func (c *Z80CPU) BC() uint16 { return uint16(c.B)<<8 | uint16(c.C) }
func (c *Z80CPU) DE() uint16 { return uint16(c.D)<<8 | uint16(c.E) }
func (c *Z80CPU) HL() uint16 { return uint16(c.H)<<8 | uint16(c.L) }
func (c *Z80CPU) IR() uint16 { return uint16(c.I)<<8 | uint16(c.R) }

func (c *Z80CPU) SetAF(v uint16) { c.A, c.F = byte(v>>8), byte(v) }
func (c *Z80CPU) SetBC(v uint16) { c.B, c.C = byte(v>>8), byte(v) }
func (c *Z80CPU) SetDE(v uint16) { c.D, c.E = byte(v>>8), byte(v) }
func (c *Z80CPU) SetHL(v uint16) { c.H, c.L = byte(v>>8), byte(v) }

func (c *Z80CPU) ProgramCounter() uint16 { return c.PC }

func (c *Z80CPU) SetInterruptSignal(active bool) { c.SigINT = active }

// InstructionPending is true between a prefix byte and its opcode.
func (c *Z80CPU) InstructionPending() bool { return c.prefix != z80PrefixNone }

// Register returns a register by its assembler name.
func (c *Z80CPU) Register(name string) (int, bool) {
	switch strings.ToLower(name) {
	case "a":
		return int(c.A), true
	case "f":
		return int(c.F), true
	case "b":
		return int(c.B), true
	case "c":
		return int(c.C), true
	case "d":
		return int(c.D), true
	case "e":
		return int(c.E), true
	case "h":
		return int(c.H), true
	case "l":
		return int(c.L), true
	case "af":
		return int(c.AF()), true
	case "bc":
		return int(c.BC()), true
	case "de":
		return int(c.DE()), true
	case "hl":
		return int(c.HL()), true
	case "ix":
		return int(c.IX), true
	case "iy":
		return int(c.IY), true
	case "sp":
		return int(c.SP), true
	case "pc":
		return int(c.PC), true
	case "wz":
		return int(c.WZ), true
	case "i":
		return int(c.I), true
	case "r":
		return int(c.R), true
	case "im":
		return int(c.IM), true
	}
	return 0, false
}

// ExecuteCpuCycle runs one M1 cycle and the operation it selects. Prefix
// bytes leave the CPU mid-instruction; interrupts are only sampled between
// complete instructions.
func (c *Z80CPU) ExecuteCpuCycle() {
	c.RetExecuted = false
	if c.eiBacklog > 0 {
		c.eiBacklog--
	}

	if c.SigRST {
		c.Reset()
		return
	}
	if c.prefix == z80PrefixNone {
		if c.SigNMI {
			c.SigNMI = false
			c.processNmi()
			return
		}
		if c.SigINT && c.IFF1 && c.eiBacklog == 0 {
			c.processInt()
			return
		}
	}

	if c.Halted {
		c.refreshMemory()
		c.bus.TactPlusN(4)
		return
	}

	c.opCode = c.readMemory(c.PC)
	c.PC++
	c.refreshMemory()
	c.bus.TactPlusN(1)

	switch c.prefix {
	case z80PrefixNone:
		c.OpStart = c.PC - 1
		switch c.opCode {
		case 0xCB:
			c.prefix = z80PrefixCB
		case 0xED:
			c.prefix = z80PrefixED
		case 0xDD:
			c.prefix = z80PrefixDD
		case 0xFD:
			c.prefix = z80PrefixFD
		default:
			c.baseOps[c.opCode](c)
		}

	case z80PrefixCB:
		c.prefix = z80PrefixNone
		c.cbOps[c.opCode](c)

	case z80PrefixED:
		c.prefix = z80PrefixNone
		c.edOps[c.opCode](c)

	case z80PrefixDD, z80PrefixFD:
		switch c.opCode {
		case 0xDD:
			c.prefix = z80PrefixDD
		case 0xFD:
			c.prefix = z80PrefixFD
		case 0xED:
			c.prefix = z80PrefixED
		case 0xCB:
			c.executeIndexedBitOp()
			c.prefix = z80PrefixNone
		default:
			c.baseOps[c.opCode](c)
			c.prefix = z80PrefixNone
		}
	}
}

func (c *Z80CPU) processNmi() {
	c.bus.TactPlusN(4)
	c.removeFromHaltedState()
	c.IFF2 = c.IFF1
	c.IFF1 = false
	c.pushPC()
	c.refreshMemory()
	c.PC = Z80_NMI_VECTOR
}

func (c *Z80CPU) processInt() {
	c.bus.TactPlusN(6)
	c.removeFromHaltedState()
	c.IFF1 = false
	c.IFF2 = false
	c.pushPC()
	c.refreshMemory()
	if c.IM == 2 {
		// No device drives the data bus, so the vector low byte reads 0xFF.
		addr := uint16(c.I)<<8 | 0xFF
		lo := c.readMemory(addr)
		hi := c.readMemory(addr + 1)
		c.WZ = uint16(hi)<<8 | uint16(lo)
	} else {
		c.WZ = Z80_IM1_VECTOR
	}
	c.PC = c.WZ
}

func (c *Z80CPU) removeFromHaltedState() {
	if c.Halted {
		c.PC++
		c.Halted = false
	}
}

func (c *Z80CPU) refreshMemory() {
	c.R = (c.R & 0x80) | ((c.R + 1) & 0x7F)
}

// Bus access helpers

func (c *Z80CPU) readMemory(addr uint16) byte {
	c.bus.DelayMemoryRead(addr)
	return c.bus.DoReadMemory(addr)
}

func (c *Z80CPU) writeMemory(addr uint16, value byte) {
	c.bus.DelayMemoryWrite(addr)
	c.bus.DoWriteMemory(addr, value)
}

func (c *Z80CPU) fetchCodeByte() byte {
	v := c.readMemory(c.PC)
	c.PC++
	return v
}

func (c *Z80CPU) fetchCodeWord() uint16 {
	lo := c.fetchCodeByte()
	hi := c.fetchCodeByte()
	return uint16(hi)<<8 | uint16(lo)
}

// tactsAt spends n internal tacts while addr stays on the address bus.
func (c *Z80CPU) tactsAt(n int, addr uint16) {
	if !c.DelayedAddressBus {
		c.bus.TactPlusN(n)
		return
	}
	for range n {
		c.bus.DelayAddressBus(addr)
		c.bus.TactPlusN(1)
	}
}

func (c *Z80CPU) pushPC() {
	c.SP--
	c.bus.TactPlusN(1)
	c.writeMemory(c.SP, byte(c.PC>>8))
	c.SP--
	c.writeMemory(c.SP, byte(c.PC))
}

func (c *Z80CPU) push(v uint16) {
	c.tactsAt(1, c.IR())
	c.SP--
	c.writeMemory(c.SP, byte(v>>8))
	c.SP--
	c.writeMemory(c.SP, byte(v))
}

func (c *Z80CPU) pop() uint16 {
	lo := c.readMemory(c.SP)
	c.SP++
	hi := c.readMemory(c.SP)
	c.SP++
	return uint16(hi)<<8 | uint16(lo)
}

func (c *Z80CPU) pushToStepOutStack(ret uint16) {
	if len(c.StepOutStack) >= Z80_STEP_OUT {
		copy(c.StepOutStack, c.StepOutStack[1:])
		c.StepOutStack = c.StepOutStack[:len(c.StepOutStack)-1]
	}
	c.StepOutStack = append(c.StepOutStack, ret)
}

func (c *Z80CPU) popStepOutStack() {
	c.RetExecuted = true
	if n := len(c.StepOutStack); n > 0 {
		c.StepOutStack = c.StepOutStack[:n-1]
	}
}

// Index register helpers. While a DD or FD prefix is active, HL, H and L
// stand for IX/IY and their halves.

func (c *Z80CPU) indexed() bool {
	return c.prefix == z80PrefixDD || c.prefix == z80PrefixFD
}

func (c *Z80CPU) hlReg() uint16 {
	switch c.prefix {
	case z80PrefixDD:
		return c.IX
	case z80PrefixFD:
		return c.IY
	}
	return c.HL()
}

func (c *Z80CPU) setHLReg(v uint16) {
	switch c.prefix {
	case z80PrefixDD:
		c.IX = v
	case z80PrefixFD:
		c.IY = v
	default:
		c.SetHL(v)
	}
}

// operandAddress resolves an (HL) operand. With an index prefix it fetches
// the displacement and spends the five internal tacts of (IX+d) addressing.
func (c *Z80CPU) operandAddress() uint16 {
	if !c.indexed() {
		return c.HL()
	}
	d := c.fetchCodeByte()
	c.tactsAt(5, c.PC-1)
	c.WZ = c.hlReg() + uint16(int16(int8(d)))
	return c.WZ
}

// reg8 reads a register by its 3-bit opcode encoding (6 is never passed).
func (c *Z80CPU) reg8(code byte) byte {
	switch code {
	case 0:
		return c.B
	case 1:
		return c.C
	case 2:
		return c.D
	case 3:
		return c.E
	case 4:
		return byte(c.hlReg() >> 8)
	case 5:
		return byte(c.hlReg())
	}
	return c.A
}

func (c *Z80CPU) setReg8(code byte, v byte) {
	switch code {
	case 0:
		c.B = v
	case 1:
		c.C = v
	case 2:
		c.D = v
	case 3:
		c.E = v
	case 4:
		c.setHLReg(c.hlReg()&0x00FF | uint16(v)<<8)
	case 5:
		c.setHLReg(c.hlReg()&0xFF00 | uint16(v))
	default:
		c.A = v
	}
}

// plainReg8 ignores the index prefix; used next to an (IX+d) operand.
func (c *Z80CPU) plainReg8(code byte) byte {
	switch code {
	case 4:
		return c.H
	case 5:
		return c.L
	}
	return c.reg8(code)
}

func (c *Z80CPU) setPlainReg8(code byte, v byte) {
	switch code {
	case 4:
		c.H = v
	case 5:
		c.L = v
	default:
		c.setReg8(code, v)
	}
}

// reg16 decodes the BC/DE/HL/SP pair field; HL follows the index prefix.
func (c *Z80CPU) reg16(code byte) uint16 {
	switch code & 3 {
	case 0:
		return c.BC()
	case 1:
		return c.DE()
	case 2:
		return c.hlReg()
	}
	return c.SP
}

func (c *Z80CPU) setReg16(code byte, v uint16) {
	switch code & 3 {
	case 0:
		c.SetBC(v)
	case 1:
		c.SetDE(v)
	case 2:
		c.setHLReg(v)
	default:
		c.SP = v
	}
}

// condition evaluates the 3-bit condition field: NZ Z NC C PO PE P M.
func (c *Z80CPU) condition(cc byte) bool {
	switch cc & 7 {
	case 0:
		return c.F&z80FlagZ == 0
	case 1:
		return c.F&z80FlagZ != 0
	case 2:
		return c.F&z80FlagC == 0
	case 3:
		return c.F&z80FlagC != 0
	case 4:
		return c.F&z80FlagPV == 0
	case 5:
		return c.F&z80FlagPV != 0
	case 6:
		return c.F&z80FlagS == 0
	}
	return c.F&z80FlagS != 0
}
