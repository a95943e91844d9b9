// m6510_cpu.go - MOS 6510 core of the Commodore 64

/*
m6510_cpu.go - Cycle-Exact 6510 Emulation

Every bus cycle of the 6510 is a memory access, so the core times itself by
its accesses: each read or write costs exactly one tact, including the dummy
reads and writes the NMOS part performs on internal cycles. The machine's
DelayMemoryRead is where the VIC can hold the CPU off the bus (BA low) before
a read completes; writes are never stalled.

Interrupts are sampled between instructions:
- NMI is edge triggered and always taken first
- IRQ is level triggered and masked by the I flag
- both take seven cycles and push P with B clear

Addresses 0x0000 and 0x0001 belong to the on-chip I/O port; the machine's
memory decode routes them, the core does not special-case them.
*/

package main

import "strings"

// M6510Bus is the machine side of the 6510.
type M6510Bus interface {
	DoReadMemory(addr uint16) byte
	DoWriteMemory(addr uint16, value byte)
	DelayMemoryRead(addr uint16)
	DelayMemoryWrite(addr uint16)
}

const (
	m6510FlagC = 0x01
	m6510FlagZ = 0x02
	m6510FlagI = 0x04
	m6510FlagD = 0x08
	m6510FlagB = 0x10
	m6510FlagU = 0x20
	m6510FlagV = 0x40
	m6510FlagN = 0x80

	M6510_STACK_BASE   = 0x0100
	M6510_NMI_VECTOR   = 0xFFFA
	M6510_RESET_VECTOR = 0xFFFC
	M6510_IRQ_VECTOR   = 0xFFFE
)

var m6510NZ [256]byte

func init() {
	for i := range m6510NZ {
		if i == 0 {
			m6510NZ[i] |= m6510FlagZ
		}
		if i&0x80 != 0 {
			m6510NZ[i] |= m6510FlagN
		}
	}
}

type M6510CPU struct {
	A  byte
	X  byte
	Y  byte
	SP byte
	P  byte
	PC uint16

	// Jammed is set by the KIL opcodes; only a reset recovers.
	Jammed bool

	irqLine     bool
	nmiLine     bool
	nmiPending  bool
	OpStart     uint16
	opCode      byte
	Cycles      uint64
	StepOutList []uint16

	bus M6510Bus
	ops [256]func(*M6510CPU)
}

func NewM6510CPU(bus M6510Bus) *M6510CPU {
	c := &M6510CPU{bus: bus}
	c.initOps()
	c.SP = 0xFD
	c.P = m6510FlagU | m6510FlagI
	return c
}

// Reset loads PC from the reset vector. A, X and Y keep their values on
// a real part; SP drops by three as the aborted pushes run as reads.
func (c *M6510CPU) Reset() {
	c.SP -= 3
	c.P |= m6510FlagI | m6510FlagU
	c.Jammed = false
	c.nmiPending = false
	c.irqLine = false
	c.nmiLine = false
	c.PC = uint16(c.bus.DoReadMemory(M6510_RESET_VECTOR)) | uint16(c.bus.DoReadMemory(M6510_RESET_VECTOR+1))<<8
	c.StepOutList = c.StepOutList[:0]
}

// HardReset is a power cycle.
func (c *M6510CPU) HardReset() {
	c.A, c.X, c.Y = 0, 0, 0
	c.SP = 0
	c.P = m6510FlagU
	c.Cycles = 0
	c.Reset()
}

func (c *M6510CPU) ProgramCounter() uint16 { return c.PC }

func (c *M6510CPU) InstructionPending() bool { return false }

// SetInterruptSignal drives the IRQ line.
func (c *M6510CPU) SetInterruptSignal(active bool) { c.irqLine = active }

// SetNmiSignal drives the NMI line. The falling edge latches a request.
func (c *M6510CPU) SetNmiSignal(active bool) {
	if active && !c.nmiLine {
		c.nmiPending = true
	}
	c.nmiLine = active
}

func (c *M6510CPU) Register(name string) (int, bool) {
	switch strings.ToLower(name) {
	case "a":
		return int(c.A), true
	case "x":
		return int(c.X), true
	case "y":
		return int(c.Y), true
	case "sp", "s":
		return int(c.SP), true
	case "p":
		return int(c.P), true
	case "pc":
		return int(c.PC), true
	}
	return 0, false
}

// ExecuteCpuCycle runs one complete instruction or interrupt sequence.
func (c *M6510CPU) ExecuteCpuCycle() {
	if c.Jammed {
		c.read(0xFFFF)
		return
	}
	if c.nmiPending {
		c.nmiPending = false
		c.interrupt(M6510_NMI_VECTOR)
		return
	}
	if c.irqLine && c.P&m6510FlagI == 0 {
		c.interrupt(M6510_IRQ_VECTOR)
		return
	}
	c.OpStart = c.PC
	c.opCode = c.fetch()
	c.ops[c.opCode](c)
}

// interrupt performs the seven-cycle hardware interrupt sequence.
func (c *M6510CPU) interrupt(vector uint16) {
	c.read(c.PC)
	c.read(c.PC)
	c.push(byte(c.PC >> 8))
	c.push(byte(c.PC))
	c.push(c.P&^m6510FlagB | m6510FlagU)
	c.P |= m6510FlagI
	lo := uint16(c.read(vector))
	c.PC = lo | uint16(c.read(vector+1))<<8
}

// Bus access

func (c *M6510CPU) read(addr uint16) byte {
	c.bus.DelayMemoryRead(addr)
	c.Cycles++
	return c.bus.DoReadMemory(addr)
}

func (c *M6510CPU) write(addr uint16, value byte) {
	c.bus.DelayMemoryWrite(addr)
	c.Cycles++
	c.bus.DoWriteMemory(addr, value)
}

func (c *M6510CPU) fetch() byte {
	v := c.read(c.PC)
	c.PC++
	return v
}

func (c *M6510CPU) fetchWord() uint16 {
	lo := uint16(c.fetch())
	return lo | uint16(c.fetch())<<8
}

func (c *M6510CPU) push(v byte) {
	c.write(M6510_STACK_BASE|uint16(c.SP), v)
	c.SP--
}

func (c *M6510CPU) pull() byte {
	c.SP++
	return c.read(M6510_STACK_BASE | uint16(c.SP))
}

func (c *M6510CPU) setNZ(v byte) {
	c.P = c.P&^(m6510FlagN|m6510FlagZ) | m6510NZ[v]
}

func (c *M6510CPU) setFlag(flag byte, on bool) {
	if on {
		c.P |= flag
	} else {
		c.P &^= flag
	}
}

// Addressing modes. Each returns the effective address after spending the
// cycles the NMOS part spends on it, including dummy reads.

func (c *M6510CPU) addrZeroPage() uint16 {
	return uint16(c.fetch())
}

func (c *M6510CPU) addrZeroPageIndexed(index byte) uint16 {
	base := c.fetch()
	c.read(uint16(base))
	return uint16(base + index)
}

func (c *M6510CPU) addrAbsolute() uint16 {
	return c.fetchWord()
}

// addrAbsoluteIndexed adds index to a 16-bit base. Reads pay the extra
// cycle only on a page cross; writes and read-modify-write always do.
func (c *M6510CPU) addrAbsoluteIndexed(index byte, alwaysFix bool) uint16 {
	base := c.fetchWord()
	addr := base + uint16(index)
	if alwaysFix || base&0xFF00 != addr&0xFF00 {
		c.read(base&0xFF00 | addr&0x00FF)
	}
	return addr
}

func (c *M6510CPU) addrIndexedIndirect() uint16 {
	zp := c.fetch()
	c.read(uint16(zp))
	zp += c.X
	lo := uint16(c.read(uint16(zp)))
	return lo | uint16(c.read(uint16(zp+1)))<<8
}

func (c *M6510CPU) addrIndirectIndexed(alwaysFix bool) uint16 {
	zp := c.fetch()
	lo := uint16(c.read(uint16(zp)))
	base := lo | uint16(c.read(uint16(zp+1)))<<8
	addr := base + uint16(c.Y)
	if alwaysFix || base&0xFF00 != addr&0xFF00 {
		c.read(base&0xFF00 | addr&0x00FF)
	}
	return addr
}

// Operations shared by several opcodes

// rmw performs read-modify-write with the NMOS dummy write of the original
// value.
func (c *M6510CPU) rmw(addr uint16, op func(byte) byte) byte {
	v := c.read(addr)
	c.write(addr, v)
	r := op(v)
	c.write(addr, r)
	return r
}

func (c *M6510CPU) adc(v byte) {
	carry := uint16(c.P & m6510FlagC)
	if c.P&m6510FlagD == 0 {
		sum := uint16(c.A) + uint16(v) + carry
		r := byte(sum)
		c.setFlag(m6510FlagV, (c.A^r)&(v^r)&0x80 != 0)
		c.setFlag(m6510FlagC, sum > 0xFF)
		c.A = r
		c.setNZ(r)
		return
	}
	// NMOS decimal mode: Z comes from the binary sum, N and V from the
	// intermediate result after the low nibble fix.
	bin := uint16(c.A) + uint16(v) + carry
	lo := uint16(c.A&0x0F) + uint16(v&0x0F) + carry
	if lo > 9 {
		lo += 6
	}
	hi := uint16(c.A>>4) + uint16(v>>4)
	if lo > 0x0F {
		hi++
	}
	c.setFlag(m6510FlagZ, byte(bin) == 0)
	c.setFlag(m6510FlagN, hi&0x08 != 0)
	c.setFlag(m6510FlagV, (uint16(c.A)^hi<<4)&0x80 != 0 && (c.A^v)&0x80 == 0)
	if hi > 9 {
		hi += 6
	}
	c.setFlag(m6510FlagC, hi > 0x0F)
	c.A = byte(hi<<4 | lo&0x0F)
}

func (c *M6510CPU) sbc(v byte) {
	borrow := uint16(1 - c.P&m6510FlagC)
	diff := uint16(c.A) - uint16(v) - borrow
	r := byte(diff)
	c.setFlag(m6510FlagV, (c.A^v)&(c.A^r)&0x80 != 0)
	c.setFlag(m6510FlagC, diff < 0x100)
	if c.P&m6510FlagD == 0 {
		c.A = r
		c.setNZ(r)
		return
	}
	// Flags follow the binary result; only A is decimal adjusted.
	c.setNZ(r)
	lo := int(c.A&0x0F) - int(v&0x0F) - int(borrow)
	hi := int(c.A>>4) - int(v>>4)
	if lo < 0 {
		lo -= 6
		hi--
	}
	if hi < 0 {
		hi -= 6
	}
	c.A = byte(hi<<4) | byte(lo)&0x0F
}

func (c *M6510CPU) compare(reg, v byte) {
	r := reg - v
	c.setFlag(m6510FlagC, reg >= v)
	c.setNZ(r)
}

func (c *M6510CPU) asl(v byte) byte {
	c.setFlag(m6510FlagC, v&0x80 != 0)
	v <<= 1
	c.setNZ(v)
	return v
}

func (c *M6510CPU) lsr(v byte) byte {
	c.setFlag(m6510FlagC, v&0x01 != 0)
	v >>= 1
	c.setNZ(v)
	return v
}

func (c *M6510CPU) rol(v byte) byte {
	carry := c.P & m6510FlagC
	c.setFlag(m6510FlagC, v&0x80 != 0)
	v = v<<1 | carry
	c.setNZ(v)
	return v
}

func (c *M6510CPU) ror(v byte) byte {
	carry := c.P & m6510FlagC
	c.setFlag(m6510FlagC, v&0x01 != 0)
	v = v>>1 | carry<<7
	c.setNZ(v)
	return v
}

func (c *M6510CPU) inc(v byte) byte {
	v++
	c.setNZ(v)
	return v
}

func (c *M6510CPU) dec(v byte) byte {
	v--
	c.setNZ(v)
	return v
}

func (c *M6510CPU) bit(v byte) {
	c.P = c.P&^(m6510FlagN|m6510FlagV|m6510FlagZ) | v&(m6510FlagN|m6510FlagV)
	if c.A&v == 0 {
		c.P |= m6510FlagZ
	}
}

// branch costs one extra cycle when taken and another on a page cross.
func (c *M6510CPU) branch(taken bool) {
	offset := int8(c.fetch())
	if !taken {
		return
	}
	c.read(c.PC)
	target := uint16(int32(c.PC) + int32(offset))
	if target&0xFF00 != c.PC&0xFF00 {
		c.read(c.PC&0xFF00 | target&0x00FF)
	}
	c.PC = target
}
