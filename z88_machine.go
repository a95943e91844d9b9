// z88_machine.go - Cambridge Z88 model

/*
z88_machine.go - Cambridge Z88

A frame is 5 ms (16384 tacts at 3.2768 MHz); each frame ticks the Blink's
real time clock. The Z80 sees no contention. Reading the keyboard with
INT.KWAIT set and no key down snoozes the CPU until a key press or an
enabled interrupt wakes it; while snoozed the frame loop only advances time.

A HALT with I = 0x3F is OZ's coma state. Pressing both shift keys after
they were released wakes the machine.
*/

package main

import (
	log "github.com/sirupsen/logrus"
)

const (
	Z88_KEY_COLUMNS   = 8
	Z88_COMA_I        = 0x3F
	Z88_TONE_HALF_TAC = 512 // 3200 Hz speaker tone
)

type z88Machine struct {
	*Machine
	cpu      *Z80CPU
	memory   *Z88Memory
	blink    *Z88BlinkDevice
	screen   *Z88ScreenDevice
	beeper   *BeeperDevice
	keyboard *KeyboardMatrix

	snoozed        bool
	sleeping       bool
	shiftsReleased bool
	soundLevel     float32
	mixed          []AudioSample
}

// z88ChipMask converts a chip size in bytes to a Blink chip mask.
func z88ChipMask(size int) (byte, bool) {
	switch size {
	case 0x8000:
		return 0x01, true
	case 0x10000:
		return 0x03, true
	case 0x20000:
		return 0x07, true
	case 0x40000:
		return 0x0F, true
	case 0x80000:
		return 0x1F, true
	case 0x100000:
		return 0x3F, true
	}
	return 0, false
}

func newZ88Machine(profile *MachineProfile, opts MachineOptions, logger *log.Entry) *z88Machine {
	z := &z88Machine{
		Machine:    newMachine(profile, logger),
		soundLevel: float32(opts.SoundLevel),
	}
	z.cpu = NewZ80CPU(z.Machine)
	z.cpu.DelayedAddressBus = false
	z.memory = NewZ88Memory()
	z.keyboard = NewKeyboardMatrix(Z88_KEY_COLUMNS)
	z.attach(z, z.cpu)

	ramMask, ok := z88ChipMask(opts.Z88RamKB * 1024)
	if !ok {
		ramMask = 0x1F
	}
	z.blink = NewZ88BlinkDevice(z, z.memory, 0x1F, ramMask)
	z.screen = NewZ88ScreenDevice(z, z.memory, func() bool { return z.blink.COM&COM_LCDON != 0 })
	z.beeper = NewBeeperDevice(z, opts.SampleRate)
	z.SetClockMultiplier(opts.ClockMultiplier)
	return z
}

// Memory

func (z *z88Machine) DoReadMemory(addr uint16) byte {
	return z.memory.ReadMemory(addr)
}

func (z *z88Machine) DoWriteMemory(addr uint16, value byte) {
	z.memory.WriteMemory(addr, value)
}

func (z *z88Machine) PartitionOf(addr uint16) int {
	return z.memory.BankOf(addr)
}

// Snooze

func (z *z88Machine) IsCpuSnoozed() bool { return z.snoozed }

// OnSnooze lets time pass without executing instructions.
func (z *z88Machine) OnSnooze() {
	z.TactPlusN(4)
	if z.blink.InterruptActive() && z.cpu.IFF1 {
		z.snoozed = false
	}
}

func (z *z88Machine) AwakeCpu() { z.snoozed = false }

func (z *z88Machine) SetSpeakerBit(on bool) { z.beeper.SetEarBit(on) }

// Frame hooks

func (z *z88Machine) ShouldRaiseInterrupt() bool {
	return z.blink.InterruptActive()
}

func (z *z88Machine) OnInitNewFrame(clockMultiplierChanged bool) {
	z.blink.IncrementRtc()
	if z.keyboard.AnyKeyPressed() && z.blink.INT&INT_KWAIT != 0 {
		z.AwakeCpu()
	}
	z.screen.OnNewFrame()
	z.updateComa()
	z.beeper.OnNewFrame()
	if clockMultiplierChanged {
		z.beeper.OnClockMultiplierChanged()
	}
}

func (z *z88Machine) updateComa() {
	if !z.cpu.Halted || z.cpu.I != Z88_COMA_I {
		z.sleeping = false
		return
	}
	z.sleeping = true
	left := z.keyboard.IsKeyDown(Z88KeyLeftShift)
	right := z.keyboard.IsKeyDown(Z88KeyRightShift)
	if !z.shiftsReleased {
		z.shiftsReleased = !left && !right
		return
	}
	if left && right {
		z.shiftsReleased = false
		z.sleeping = false
		z.cpu.removeFromHaltedState()
		z.AwakeCpu()
	}
}

// InComa reports whether OZ has switched the machine off.
func (z *z88Machine) InComa() bool { return z.sleeping }

func (z *z88Machine) OnTactIncremented() {
	z.beeper.SetNextAudioSample()
}

func (z *z88Machine) AfterInstructionExecuted() {
	if z.keyboard.AnyKeyPressed() {
		z.AwakeCpu()
	}
	if com := z.blink.COM; com&COM_SRUN != 0 {
		if com&COM_SBIT == 0 {
			z.beeper.SetEarBit(z.Tacts/Z88_TONE_HALF_TAC&1 != 0)
		} else {
			z.beeper.SetEarBit(false)
		}
	}
}

// Ports

func (z *z88Machine) DoReadPort(port uint16) byte {
	b := z.blink
	switch byte(port) {
	case 0xB1:
		return b.STA
	case 0xB2:
		if b.INT&INT_KWAIT != 0 && !z.keyboard.AnyKeyPressed() {
			z.snoozed = true
			return 0xFF
		}
		return z.keyboard.GetKeyLineStatus(byte(port >> 8))
	case 0xB5:
		return b.TSTA
	case 0xD0, 0xD1, 0xD2, 0xD3, 0xD4:
		return b.TIM[port&0x07]
	case 0x70:
		return z.screen.SCW
	case 0x71:
		return z.screen.SCH
	case 0xE0, 0xE1:
		return 0x00 // UART receive, nothing attached
	case 0xE5:
		return 0x10
	}
	return 0xFF
}

func (z *z88Machine) DoWritePort(port uint16, value byte) {
	low := byte(port)
	if low >= 0x70 && low <= 0x74 {
		z.screen.WriteRegister(int(low-0x70), port&0xFF00|uint16(value))
		return
	}
	b := z.blink
	switch low {
	case 0xD0, 0xD1, 0xD2, 0xD3:
		b.SetSR(int(low&0x03), value)
	case 0xB0:
		b.SetCOM(value)
	case 0xB1:
		b.SetINT(value)
	case 0xB3:
		b.EPR = value
	case 0xB4:
		b.SetTACK(value)
	case 0xB5:
		b.SetTMK(value)
	case 0xB6:
		b.SetACK(value)
	}
}

// Keyboard

func (z *z88Machine) SetKeyStatus(code int, down bool) {
	z.keyboard.SetKeyStatus(code, down)
}

func (z *z88Machine) KeysForRune(r rune) (int, int, bool) {
	return z88KeysForRune(r)
}

// Cards, flap and battery

// InsertCard puts a RAM or EPROM card image into slot 1-3.
func (z *z88Machine) InsertCard(slot int, data []byte, card Z88CardType) error {
	if slot < 1 || slot > 3 {
		return &PeripheralError{Device: "blink", Source: "card", Err: ErrInvalidOption}
	}
	mask, ok := z88ChipMask(len(data))
	if !ok {
		return &PeripheralError{Device: "blink", Source: "card", Err: ErrRomSize}
	}
	z.memory.LoadCard(slot, data)
	z.blink.SetChipMask(slot+1, mask)
	z.blink.SetSlotType(slot, card)
	z.log.WithField("device", "blink").Infof("card inserted in slot %d (%dK)", slot, len(data)/1024)
	return nil
}

func (z *z88Machine) RemoveCard(slot int) {
	if slot < 1 || slot > 3 {
		return
	}
	z.blink.SetChipMask(slot+1, 0)
	z.blink.SetSlotType(slot, CardNone)
}

func (z *z88Machine) OpenFlap() { z.blink.OpenFlap() }

func (z *z88Machine) CloseFlap() { z.blink.CloseFlap() }

func (z *z88Machine) RaiseBatteryLow() { z.blink.RaiseBatteryLow() }

// Lifecycle

func (z *z88Machine) ResetModel(hard bool) {
	if hard {
		z.memory.ClearRam()
	}
	resetDevices(z.Devices()...)
	z.snoozed = false
	z.sleeping = false
	z.shiftsReleased = false
	z.mixed = z.mixed[:0]
}

func (z *z88Machine) UploadRom(name string, data []byte) error {
	if err := z.memory.UploadRom(data); err != nil {
		return err
	}
	if mask, ok := z88ChipMask(len(data)); ok {
		z.blink.SetChipMask(0, mask)
	}
	return nil
}

// Output

func (z *z88Machine) PixelBuffer() []uint32 { return z.screen.GetPixelBuffer() }

func (z *z88Machine) ScreenSize() (int, int) {
	return z.screen.ScreenWidth(), z.screen.ScreenLines()
}

func (z *z88Machine) AudioSamples() []AudioSample {
	z.mixed = mixSamples(z.mixed, z.soundLevel, z.beeper.GetAudioSamples())
	return z.mixed
}

func (z *z88Machine) Devices() []Device {
	return []Device{z.blink, z.screen, z.beeper, z.keyboard}
}

// Accessors used by the scripting layer and tests

func (z *z88Machine) Memory() *Z88Memory { return z.memory }

func (z *z88Machine) Blink() *Z88BlinkDevice { return z.blink }

func (z *z88Machine) Screen() *Z88ScreenDevice { return z.screen }

func (z *z88Machine) Z80() *Z80CPU { return z.cpu }
