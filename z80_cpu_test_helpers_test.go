package main

import "testing"

// z80TestBus is a flat 64K machine with no contention. Memory cycles cost
// three tacts and I/O cycles four, like an uncontended Spectrum.
type z80TestBus struct {
	mem      [0x10000]byte
	io       [0x10000]byte
	tacts    int
	lastPort uint16
}

func (b *z80TestBus) DoReadMemory(addr uint16) byte         { return b.mem[addr] }
func (b *z80TestBus) DoWriteMemory(addr uint16, value byte) { b.mem[addr] = value }
func (b *z80TestBus) DelayMemoryRead(uint16)                { b.tacts += 3 }
func (b *z80TestBus) DelayMemoryWrite(uint16)               { b.tacts += 3 }
func (b *z80TestBus) DelayAddressBus(uint16)                {}
func (b *z80TestBus) TactPlusN(n int)                       { b.tacts += n }

func (b *z80TestBus) ReadPort(port uint16) byte {
	b.tacts += 4
	b.lastPort = port
	return b.io[port]
}

func (b *z80TestBus) WritePort(port uint16, value byte) {
	b.tacts += 4
	b.lastPort = port
	b.io[port] = value
}

type z80TestRig struct {
	bus *z80TestBus
	cpu *Z80CPU
}

func newZ80TestRig() *z80TestRig {
	bus := &z80TestBus{}
	return &z80TestRig{bus: bus, cpu: NewZ80CPU(bus)}
}

func (r *z80TestRig) load(start uint16, program ...byte) {
	for i, value := range program {
		r.bus.mem[start+uint16(i)] = value
	}
	r.cpu.PC = start
}

// step runs one complete instruction, prefixes included, and returns the
// tacts it took.
func (r *z80TestRig) step() int {
	before := r.bus.tacts
	r.cpu.ExecuteCpuCycle()
	for r.cpu.InstructionPending() {
		r.cpu.ExecuteCpuCycle()
	}
	return r.bus.tacts - before
}

func requireZ80EqualU16(t *testing.T, name string, got, want uint16) {
	t.Helper()
	if got != want {
		t.Fatalf("%s = 0x%04X, want 0x%04X", name, got, want)
	}
}

func requireZ80EqualU8(t *testing.T, name string, got, want byte) {
	t.Helper()
	if got != want {
		t.Fatalf("%s = 0x%02X, want 0x%02X", name, got, want)
	}
}
