// c64_machine.go - Commodore 64 (PAL) model

/*
c64_machine.go - Commodore 64

The 6510 runs at the VIC's cycle rate, one memory access per tact. Every
tact clocks the VIC and both CIAs once; the SID is sampled by its own gate.

Interrupts:
  VIC raster/collision  -> IRQ
  CIA1                  -> IRQ
  CIA2                  -> NMI
  RESTORE key           -> NMI

CIA1 scans the keyboard (port A rows, port B columns) and reads the two
joysticks. CIA2 port A selects the VIC bank and drives the serial bus:

  PA0-1  VIC bank (inverted)   PA5  DATA out
  PA3    ATN out               PA6  CLK in
  PA4    CLK out               PA7  DATA in
*/

package main

import (
	log "github.com/sirupsen/logrus"
)

const (
	C64_KEY_COLUMNS = 8
	// C64_KEY_RESTORE is outside the matrix; it pulls NMI directly.
	C64_KEY_RESTORE = 64

	C64_JOYSTICK_UP    = 0x01
	C64_JOYSTICK_DOWN  = 0x02
	C64_JOYSTICK_LEFT  = 0x04
	C64_JOYSTICK_RIGHT = 0x08
	C64_JOYSTICK_FIRE  = 0x10
)

type c64Machine struct {
	*Machine
	cpu      *M6510CPU
	memory   *C64Memory
	port     *C64CpuPort
	vic      *C64VicDevice
	sid      *SidDevice
	cia1     *CiaDevice
	cia2     *CiaDevice
	keyboard *KeyboardMatrix

	joystick   [2]byte // active low, index 0 is control port 1
	restore    bool
	cassette   bool
	motorOn    bool
	writeLevel bool
	soundLevel float32
	mixed      []AudioSample

	StallCycles uint64
}

func newC64Machine(profile *MachineProfile, opts MachineOptions, logger *log.Entry) *c64Machine {
	c := &c64Machine{
		Machine:    newMachine(profile, logger),
		soundLevel: float32(opts.SoundLevel),
		joystick:   [2]byte{0xFF, 0xFF},
	}
	c.keyboard = NewKeyboardMatrix(C64_KEY_COLUMNS)
	c.memory = NewC64Memory(c)
	c.cpu = NewM6510CPU(c)
	c.attach(c, c.cpu)

	c.vic = NewC64VicDevice(c, c.memory)
	c.sid = NewSidDevice(c, opts.SampleRate)
	c.cia1 = NewCiaDevice(c, "cia1", c64Cia1Ports{c})
	c.cia2 = NewCiaDevice(c, "cia2", c64Cia2Ports{c})
	c.cia2.OnInterrupt = c.cpu.SetNmiSignal
	c.port = NewC64CpuPort(c)
	c.memory.SetCpuPort(c.port)
	c.memory.SetVicBank(c.cia2.PortA())
	c.SetClockMultiplier(opts.ClockMultiplier)
	return c
}

// Bus timing

// DelayMemoryRead stalls while the VIC holds BA low, then spends the
// access cycle.
func (c *c64Machine) DelayMemoryRead(addr uint16) {
	for c.vic.BALow() {
		c.TactPlusN(1)
		c.StallCycles++
	}
	c.TactPlusN(1)
}

func (c *c64Machine) DelayMemoryWrite(addr uint16) {
	c.TactPlusN(1)
}

func (c *c64Machine) DoReadMemory(addr uint16) byte {
	return c.memory.ReadMemory(addr)
}

func (c *c64Machine) DoWriteMemory(addr uint16, value byte) {
	c.memory.WriteMemory(addr, value)
}

func (c *c64Machine) PartitionOf(addr uint16) int {
	return int(c.memory.RegionAt(addr))
}

// C64IO

func (c *c64Machine) ReadIO(addr uint16) byte {
	switch addr & 0xFF00 {
	case 0xD000, 0xD100, 0xD200, 0xD300:
		return c.vic.ReadRegister(byte(addr))
	case 0xD400, 0xD500, 0xD600, 0xD700:
		return c.sid.ReadRegister(byte(addr))
	case 0xDC00:
		return c.cia1.ReadRegister(byte(addr))
	case 0xDD00:
		return c.cia2.ReadRegister(byte(addr))
	}
	return c.vic.Phi1Data()
}

func (c *c64Machine) WriteIO(addr uint16, value byte) {
	switch addr & 0xFF00 {
	case 0xD000, 0xD100, 0xD200, 0xD300:
		c.vic.WriteRegister(byte(addr), value)
	case 0xD400, 0xD500, 0xD600, 0xD700:
		c.sid.WriteRegister(byte(addr), value)
	case 0xDC00:
		c.cia1.WriteRegister(byte(addr), value)
	case 0xDD00:
		c.cia2.WriteRegister(byte(addr), value)
	}
}

func (c *c64Machine) Phi1Data() byte { return c.vic.Phi1Data() }

// CpuPortHost

func (c *c64Machine) CassetteButtonDown() bool { return c.cassette }

func (c *c64Machine) SetCassetteMotor(on bool) {
	if on != c.motorOn {
		c.log.WithField("device", "datasette").Debugf("motor on=%v", on)
	}
	c.motorOn = on
}

func (c *c64Machine) SetCassetteWrite(level bool) { c.writeLevel = level }

func (c *c64Machine) OnCpuPortChanged() {
	if c.memory != nil {
		c.memory.UpdateConfiguration()
	}
}

// SetCassetteButton presses or releases PLAY on the datasette.
func (c *c64Machine) SetCassetteButton(down bool) { c.cassette = down }

func (c *c64Machine) CassetteMotorOn() bool { return c.motorOn }

// Frame hooks

func (c *c64Machine) ShouldRaiseInterrupt() bool {
	return c.vic.InterruptActive() || c.cia1.InterruptActive()
}

func (c *c64Machine) OnInitNewFrame(clockMultiplierChanged bool) {
	c.LastRenderedFrameTact = 0
	c.sid.OnNewFrame()
	if clockMultiplierChanged {
		c.sid.OnClockMultiplierChanged()
	}
	c.cia1.TickTod()
	c.cia2.TickTod()
}

func (c *c64Machine) OnTactIncremented() {
	for c.LastRenderedFrameTact <= c.CurrentFrameTact {
		c.vic.Clock(c.LastRenderedFrameTact)
		c.cia1.Tick(1)
		c.cia2.Tick(1)
		c.LastRenderedFrameTact++
	}
	c.sid.SetNextAudioSample()
}

func (c *c64Machine) AfterInstructionExecuted() {
	c.sid.CalculateCurrentAudioValue()
}

// Keyboard and joysticks

func (c *c64Machine) SetKeyStatus(code int, down bool) {
	if code == C64_KEY_RESTORE {
		if down != c.restore {
			c.restore = down
			c.cpu.SetNmiSignal(down || c.cia2.InterruptActive())
		}
		return
	}
	c.keyboard.SetKeyStatus(code, down)
}

func (c *c64Machine) KeysForRune(r rune) (int, int, bool) {
	return c64KeysForRune(r)
}

// SetJoystick sets the active-high direction and fire bits of control
// port 1 or 2.
func (c *c64Machine) SetJoystick(port int, state byte) {
	if port < 1 || port > 2 {
		return
	}
	c.joystick[port-1] = ^state | 0xE0
}

type c64Cia1Ports struct{ c *c64Machine }

// Port A reads back the rows of keys on the selected columns and
// joystick 2.
func (p c64Cia1Ports) ReadPortA(out byte) byte {
	return out & p.c.keyboard.GetColumnLineStatus(p.c.cia1.PortB()) & p.c.joystick[1]
}

func (p c64Cia1Ports) ReadPortB(out byte) byte {
	return out & p.c.keyboard.GetKeyLineStatus(p.c.cia1.PortA()) & p.c.joystick[0]
}

func (p c64Cia1Ports) WritePortA(byte) {}

func (p c64Cia1Ports) WritePortB(byte) {}

type c64Cia2Ports struct{ c *c64Machine }

// With nothing on the serial bus the inputs read the C64's own outputs
// through the inverting drivers.
func (p c64Cia2Ports) ReadPortA(out byte) byte {
	v := out & 0x3F
	if out&0x10 == 0 {
		v |= 0x40
	}
	if out&0x20 == 0 {
		v |= 0x80
	}
	return v
}

func (p c64Cia2Ports) ReadPortB(out byte) byte { return out }

func (p c64Cia2Ports) WritePortA(out byte) {
	if p.c.memory != nil {
		p.c.memory.SetVicBank(out)
	}
}

func (p c64Cia2Ports) WritePortB(byte) {}

// IecLines reports the ATN, CLK and DATA lines as driven by the C64 (true
// is pulled low).
func (c *c64Machine) IecLines() (atn, clk, data bool) {
	out := c.cia2.PortA()
	return out&0x08 != 0, out&0x10 != 0, out&0x20 != 0
}

// Lifecycle

func (c *c64Machine) ResetModel(hard bool) {
	if hard {
		c.memory.ClearRam()
	}
	resetDevices(c.Devices()...)
	c.memory.Reset()
	c.memory.SetVicBank(c.cia2.PortA())
	c.restore = false
	c.joystick = [2]byte{0xFF, 0xFF}
	c.mixed = c.mixed[:0]
	c.StallCycles = 0
	c.LastRenderedFrameTact = 0
	c.cpu.PC = c.memory.ReadWord(M6510_RESET_VECTOR)
}

func (c *c64Machine) UploadRom(name string, data []byte) error {
	return c.memory.UploadRom(name, data)
}

// Output

func (c *c64Machine) PixelBuffer() []uint32 { return c.vic.GetPixelBuffer() }

func (c *c64Machine) ScreenSize() (int, int) {
	return VIC_SCREEN_WIDTH, VIC_SCREEN_LINES
}

func (c *c64Machine) AudioSamples() []AudioSample {
	c.mixed = mixSamples(c.mixed, c.soundLevel, c.sid.GetAudioSamples())
	return c.mixed
}

func (c *c64Machine) Devices() []Device {
	return []Device{c.vic, c.sid, c.cia1, c.cia2, c.keyboard, c.port}
}

// Accessors used by the loaders, the scripting layer and tests

func (c *c64Machine) Memory() *C64Memory { return c.memory }

func (c *c64Machine) Vic() *C64VicDevice { return c.vic }

func (c *c64Machine) Sid() *SidDevice { return c.sid }

func (c *c64Machine) Cia1() *CiaDevice { return c.cia1 }

func (c *c64Machine) Cia2() *CiaDevice { return c.cia2 }

func (c *c64Machine) M6510() *M6510CPU { return c.cpu }
