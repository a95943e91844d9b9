// spectrum_machine.go - ZX Spectrum 48K, 128K, +2 and +3 models

/*
spectrum_machine.go - ZX Spectrum Family

One model type serves all four Spectrums. The profile decides the paging
policy, whether the AY chip and the floppy controller exist and how the
floating bus and the I/O cycles behave.

Port decode:

  xxxxxxxx xxxxxxx0  ULA (keyboard, EAR, MIC, border)
  xxxxxxxx 000xxxx1  Kempston joystick (reads 0xFF)
  0xxxxxxx xxxxxx0x  0x7FFD paging (128K, +2, +3)
  0001xxxx xxxxxx0x  0x1FFD paging and disk motor (+3)
  0010xxxx xxxxxx0x  0x2FFD FDC main status (+3)
  0011xxxx xxxxxx0x  0x3FFD FDC data (+3)
  11xxxxxx xxxxxx0x  0xFFFD AY register select / read
  10xxxxxx xxxxxx0x  0xBFFD AY register write

Bit 6 of a ULA read is the EAR input. Without a tape playing, issue 3 boards
sense the level that the last writes to bits 3 and 4 left on the EAR line,
including the slow decay of bit 4 after it drops.
*/

package main

import (
	log "github.com/sirupsen/logrus"
)

const (
	SPECTRUM_KEY_COLUMNS   = 5
	EAR_DECAY_MAX_TACTS    = 700
	EAR_DECAY_SATURATED    = 2800
	EAR_DECAY_CHARGE_RATIO = 4
)

type spectrumMachine struct {
	*Machine
	cpu      *Z80CPU
	memory   *SpectrumMemory
	screen   *ScreenDevice
	beeper   *BeeperDevice
	psg      *PsgDevice
	tape     *TapeDevice
	keyboard *KeyboardMatrix
	floppy   *FloppyController

	ulaIssue   int
	soundLevel float32
	mixed      []AudioSample

	bit3Last         bool
	bit4Last         bool
	bit4ChangedFrom0 uint64
	bit4ChangedFrom1 uint64
}

func newSpectrumMachine(profile *MachineProfile, opts MachineOptions, logger *log.Entry) *spectrumMachine {
	s := &spectrumMachine{
		Machine:    newMachine(profile, logger),
		ulaIssue:   opts.UlaIssue,
		soundLevel: float32(opts.SoundLevel),
	}
	s.cpu = NewZ80CPU(s.Machine)
	s.cpu.DelayedAddressBus = !profile.UncontendedIO
	s.memory = NewSpectrumMemory(len(profile.Roms), profile.RamBanks, newBankPolicy(profile.Paging))
	s.keyboard = NewKeyboardMatrix(SPECTRUM_KEY_COLUMNS)

	// The machine must be attached before the screen registers the frame
	// length and the contention table.
	s.attach(s, s.cpu)
	s.screen = NewScreenDevice(s, s.memory, profile.Screen)
	s.beeper = NewBeeperDevice(s, opts.SampleRate)
	if profile.HasPsg {
		s.psg = NewPsgDevice(s, opts.SampleRate)
	}
	s.tape = NewTapeDevice(s)
	s.tape.FastLoad = opts.FastLoad
	if profile.HasFloppy && opts.FloppyDrives > 0 {
		s.floppy = NewFloppyController(s, opts.FloppyDrives, s.cpu.ProgramCounter)
	}
	s.SetClockMultiplier(opts.ClockMultiplier)
	s.resetUlaState()
	return s
}

// Memory

func (s *spectrumMachine) DoReadMemory(addr uint16) byte {
	return s.memory.Read(addr)
}

func (s *spectrumMachine) DoWriteMemory(addr uint16, value byte) {
	s.memory.Write(addr, value)
}

func (s *spectrumMachine) IsContendedAddress(addr uint16) bool {
	return s.memory.IsContended(addr)
}

func (s *spectrumMachine) PartitionOf(addr uint16) int {
	return s.memory.PartitionOf(addr)
}

// Frame hooks

func (s *spectrumMachine) ShouldRaiseInterrupt() bool {
	return s.CurrentFrameTact < s.Profile.InterruptWindow
}

func (s *spectrumMachine) OnInitNewFrame(clockMultiplierChanged bool) {
	s.LastRenderedFrameTact = 0
	s.screen.OnNewFrame()
	s.beeper.OnNewFrame()
	if s.psg != nil {
		s.psg.OnNewFrame()
	}
	if clockMultiplierChanged {
		s.beeper.OnClockMultiplierChanged()
		if s.psg != nil {
			s.psg.OnClockMultiplierChanged()
		}
	}
	if s.floppy != nil {
		s.floppy.SetMotor(s.memory.DiskMotorOn)
	}
}

func (s *spectrumMachine) OnTactIncremented() {
	for s.LastRenderedFrameTact <= s.CurrentFrameTact {
		s.screen.RenderTact(s.LastRenderedFrameTact)
		s.LastRenderedFrameTact++
	}
	s.beeper.SetNextAudioSample()
	if s.psg != nil {
		s.psg.SetNextAudioSample()
	}
}

func (s *spectrumMachine) AfterInstructionExecuted() {
	s.tape.UpdateTapeMode()
	if s.psg != nil {
		s.psg.CalculateCurrentAudioValue()
	}
}

// Ports

func (s *spectrumMachine) DoReadPort(port uint16) byte {
	if port&0x0001 == 0 {
		return s.readPortFE(port)
	}
	if port&0x00E0 == 0 {
		return 0xFF // Kempston, no joystick attached
	}
	if s.psg != nil && port&0xC002 == 0xC000 {
		return s.psg.ReadRegister()
	}
	if s.floppy != nil {
		switch port & 0xF002 {
		case 0x2000:
			return s.floppy.ReadMainStatusRegister()
		case 0x3000:
			return s.floppy.ReadDataRegister()
		}
	}
	return s.readFloatingBus()
}

func (s *spectrumMachine) DoWritePort(port uint16, value byte) {
	if port&0x0001 == 0 {
		s.writePortFE(value)
		return
	}
	if s.memory.WritePort(port, value) {
		if s.floppy != nil {
			s.floppy.SetMotor(s.memory.DiskMotorOn)
		}
		return
	}
	if s.psg != nil {
		switch port & 0xC002 {
		case 0xC000:
			s.psg.SetRegisterIndex(value & 0x0F)
			return
		case 0x8000:
			s.psg.WriteRegister(value)
			return
		}
	}
	if s.floppy != nil && port&0xF002 == 0x3000 {
		s.floppy.WriteDataRegister(value)
	}
}

func (s *spectrumMachine) readPortFE(port uint16) byte {
	value := s.keyboard.GetKeyLineStatus(byte(port >> 8))

	if s.tape.Mode() == TapeLoad {
		ear := s.tape.GetTapeEarBit()
		s.beeper.SetEarBit(ear)
		if ear {
			return value | 0x40
		}
		return value &^ 0x40
	}
	if s.Profile.Paging == PagingPlus3 {
		return value &^ 0x40
	}

	bit4Sensed := s.bit4Last
	if !bit4Sensed {
		chargeTime := int64(s.bit4ChangedFrom1) - int64(s.bit4ChangedFrom0)
		if chargeTime > 0 {
			if chargeTime > EAR_DECAY_MAX_TACTS {
				chargeTime = EAR_DECAY_SATURATED
			} else {
				chargeTime *= EAR_DECAY_CHARGE_RATIO
			}
			bit4Sensed = int64(s.Tacts-s.bit4ChangedFrom1) < chargeTime
		}
	}
	var bit6 byte
	if s.bit3Last || bit4Sensed {
		bit6 = 0x40
	}
	if s.ulaIssue == 3 && !bit4Sensed {
		bit6 = 0
	}
	return value&^0x40 | bit6
}

func (s *spectrumMachine) writePortFE(value byte) {
	s.screen.BorderColor = value & 0x07
	bit4 := value&0x10 != 0
	s.beeper.SetEarBit(bit4)
	s.bit3Last = value&0x08 != 0
	s.tape.ProcessMicBit(s.bit3Last)

	switch {
	case s.bit4Last && !bit4:
		s.bit4ChangedFrom1 = s.Tacts
	case !s.bit4Last && bit4:
		s.bit4ChangedFrom0 = s.Tacts
	}
	s.bit4Last = bit4
}

// readFloatingBus returns the byte the ULA is fetching in the current tact,
// or 0xFF when it is idle.
func (s *spectrumMachine) readFloatingBus() byte {
	if s.Profile.FloatingBus == FloatingBusNone {
		return 0xFF
	}
	if s.CurrentFrameTact >= s.screen.TactsInFrame {
		return 0xFF
	}
	rt := s.screen.RenderingTactAt(s.CurrentFrameTact)
	switch rt.Phase {
	case PhaseBorderFetchPixel, PhaseDisplayB1FetchB2, PhaseDisplayB2FetchB1:
		return s.memory.ReadScreenMemory(rt.PixelAddress)
	case PhaseBorderFetchAttr, PhaseDisplayB1FetchA2, PhaseDisplayB2FetchA1:
		return s.memory.ReadScreenMemory(rt.AttrAddress)
	}
	return 0xFF
}

// TapeHost

func (s *spectrumMachine) TapeCPU() *Z80CPU { return s.cpu }

func (s *spectrumMachine) Is48RomSelected() bool { return s.memory.Is48RomSelected() }

func (s *spectrumMachine) OnTapeModeChanged(mode TapeMode) {
	if mode == TapePassive {
		s.beeper.SetEarBit(false)
	}
}

// Keyboard

func (s *spectrumMachine) SetKeyStatus(code int, down bool) {
	s.keyboard.SetKeyStatus(code, down)
}

func (s *spectrumMachine) KeysForRune(r rune) (int, int, bool) {
	return spectrumKeysForRune(r)
}

// Lifecycle

func (s *spectrumMachine) ResetModel(hard bool) {
	if hard {
		s.memory.ClearRam()
	}
	s.memory.Reset()
	resetDevices(s.Devices()...)
	s.cpu.DelayedAddressBus = !s.Profile.UncontendedIO
	s.resetUlaState()
	s.mixed = s.mixed[:0]
}

func (s *spectrumMachine) resetUlaState() {
	s.bit3Last = false
	s.bit4Last = false
	s.bit4ChangedFrom0 = 0
	s.bit4ChangedFrom1 = 0
	s.LastRenderedFrameTact = 0
}

// UploadRom maps profile ROM names to ROM pages in declaration order.
func (s *spectrumMachine) UploadRom(name string, data []byte) error {
	for i, r := range s.Profile.Roms {
		if r.Name == name {
			return s.memory.UploadRom(i, data)
		}
	}
	return &ConfigError{Operation: "rom upload", Details: "unknown rom " + name, Err: ErrRomMissing}
}

// Output

func (s *spectrumMachine) PixelBuffer() []uint32 { return s.screen.GetPixelBuffer() }

func (s *spectrumMachine) ScreenSize() (int, int) {
	return s.screen.ScreenWidth, s.screen.ScreenLines
}

func (s *spectrumMachine) AudioSamples() []AudioSample {
	if s.psg == nil {
		s.mixed = mixSamples(s.mixed, s.soundLevel, s.beeper.GetAudioSamples())
		return s.mixed
	}
	s.mixed = mixSamples(s.mixed, s.soundLevel/2, s.beeper.GetAudioSamples(), s.psg.GetAudioSamples())
	return s.mixed
}

func (s *spectrumMachine) Devices() []Device {
	devices := []Device{s.screen, s.beeper, s.tape, s.keyboard}
	if s.psg != nil {
		devices = append(devices, s.psg)
	}
	if s.floppy != nil {
		devices = append(devices, s.floppy)
	}
	return devices
}

// Accessors used by the loaders, the scripting layer and tests

func (s *spectrumMachine) Memory() *SpectrumMemory { return s.memory }

func (s *spectrumMachine) Screen() *ScreenDevice { return s.screen }

func (s *spectrumMachine) Tape() *TapeDevice { return s.tape }

func (s *spectrumMachine) Floppy() *FloppyController { return s.floppy }

func (s *spectrumMachine) Psg() *PsgDevice { return s.psg }

func (s *spectrumMachine) Z80() *Z80CPU { return s.cpu }
