// machine.go - Shared machine engine: tact counters, bus delays and reset

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

import (
	log "github.com/sirupsen/logrus"
)

// CPU is what the frame loop needs from a processor core.
type CPU interface {
	// ExecuteCpuCycle runs one fetch/execute step. Z80 prefixes are separate
	// steps; InstructionPending reports an unfinished prefixed instruction.
	ExecuteCpuCycle()
	InstructionPending() bool
	Reset()
	HardReset()
	ProgramCounter() uint16
	SetInterruptSignal(active bool)
	Register(name string) (int, bool)
}

// machineModel is the per-model half of a machine: memory decode, devices and
// the hooks the shared loop calls around every tact and instruction.
type machineModel interface {
	DoReadMemory(addr uint16) byte
	DoWriteMemory(addr uint16, value byte)
	ShouldRaiseInterrupt() bool
	OnInitNewFrame(clockMultiplierChanged bool)
	OnTactIncremented()
	AfterInstructionExecuted()
	SetKeyStatus(code int, down bool)
	KeysForRune(r rune) (primary, secondary int, ok bool)
	ResetModel(hard bool)
	UploadRom(name string, data []byte) error
	PixelBuffer() []uint32
	ScreenSize() (width, height int)
	AudioSamples() []AudioSample
	Devices() []Device
}

// portModel is implemented by Z80 models that decode I/O ports.
type portModel interface {
	DoReadPort(port uint16) byte
	DoWritePort(port uint16, value byte)
}

// contentionModel is implemented by models with a contended memory region.
type contentionModel interface {
	IsContendedAddress(addr uint16) bool
}

// snoozeModel is implemented by models that can halt the CPU clock.
type snoozeModel interface {
	IsCpuSnoozed() bool
	OnSnooze()
}

// partitionModel maps an address to the ROM or RAM bank paged in there.
type partitionModel interface {
	PartitionOf(addr uint16) int
}

// Machine is the engine shared by every model. It owns the tact counters and
// the frame loop; the model supplies memory, ports and devices.
type Machine struct {
	Profile *MachineProfile
	log     *log.Entry

	model      machineModel
	ports      portModel
	contention contentionModel
	snoozer    snoozeModel
	cpu        CPU

	Tacts                 uint64
	Frames                int
	FrameTacts            int
	CurrentFrameTact      int
	TactsInFrame          int
	tactsInCurrentFrame   int
	ClockMultiplier       int
	TargetClockMultiplier int

	ContentionValues      []int
	TotalContentionDelay  uint64
	ContentionSincePause  uint64
	LastRenderedFrameTact int
	FrameCount            int

	frameCompleted     bool
	frameOverflow      uint64
	nextFrameStartTact uint64

	Context     *ExecutionContext
	events      []tactEvent
	nextEventID int
	keyStrokes  []EmulatedKeyStroke
	lastMemRead uint16
	lastPortIO  uint16

	state MachineState
}

func newMachine(profile *MachineProfile, logger *log.Entry) *Machine {
	if logger == nil {
		logger = discardLogger()
	}
	m := &Machine{
		Profile:               profile,
		log:                   logger.WithField("machine", profile.ID),
		ClockMultiplier:       1,
		TargetClockMultiplier: 1,
		Context:               NewExecutionContext(),
		frameCompleted:        true,
	}
	m.SetTactsInFrame(1_000_000)
	return m
}

// attach binds the model and CPU halves. Optional capabilities are resolved
// once here rather than on every access.
func (m *Machine) attach(model machineModel, cpu CPU) {
	m.model = model
	m.cpu = cpu
	if p, ok := model.(portModel); ok {
		m.ports = p
	}
	if c, ok := model.(contentionModel); ok {
		m.contention = c
	}
	if s, ok := model.(snoozeModel); ok {
		m.snoozer = s
	}
	if p, ok := model.(partitionModel); ok {
		m.Context.partitionOfAddr = p.PartitionOf
	}
}

// MachineHost

func (m *Machine) BaseClock() int            { return m.Profile.BaseClock }
func (m *Machine) CurrentTacts() uint64      { return m.Tacts }
func (m *Machine) FrameTact() int            { return m.CurrentFrameTact }
func (m *Machine) FrameCounter() int         { return m.Frames }
func (m *Machine) ClockMultiplierValue() int { return m.ClockMultiplier }
func (m *Machine) Logger() *log.Entry        { return m.log }

// SetTactsInFrame sizes the frame and the per-tact contention table.
func (m *Machine) SetTactsInFrame(tacts int) {
	m.TactsInFrame = tacts
	m.tactsInCurrentFrame = tacts * m.ClockMultiplier
	if cap(m.ContentionValues) >= tacts {
		m.ContentionValues = m.ContentionValues[:tacts]
		clear(m.ContentionValues)
	} else {
		m.ContentionValues = make([]int, tacts)
	}
}

func (m *Machine) SetContentionValue(tact int, value int) {
	if tact >= 0 && tact < len(m.ContentionValues) {
		m.ContentionValues[tact] = value
	}
}

// TactPlusN is the only way time advances.
func (m *Machine) TactPlusN(n int) {
	m.Tacts += uint64(n)
	m.FrameTacts += n
	if m.FrameTacts >= m.tactsInCurrentFrame {
		m.Frames++
		m.FrameTacts -= m.tactsInCurrentFrame
	}
	m.CurrentFrameTact = m.FrameTacts / m.ClockMultiplier
	if m.model != nil {
		m.model.OnTactIncremented()
	}
}

func (m *Machine) contentionDelay() {
	if m.CurrentFrameTact >= len(m.ContentionValues) {
		return
	}
	delay := m.ContentionValues[m.CurrentFrameTact]
	if delay == 0 {
		return
	}
	m.TactPlusN(delay)
	m.TotalContentionDelay += uint64(delay)
	m.ContentionSincePause += uint64(delay)
}

func (m *Machine) isContended(addr uint16) bool {
	return m.contention != nil && m.contention.IsContendedAddress(addr)
}

// Z80Bus

func (m *Machine) DoReadMemory(addr uint16) byte {
	return m.model.DoReadMemory(addr)
}

func (m *Machine) DoWriteMemory(addr uint16, value byte) {
	m.model.DoWriteMemory(addr, value)
}

func (m *Machine) DelayAddressBus(addr uint16) {
	if m.isContended(addr) {
		m.contentionDelay()
	}
}

// DelayMemoryRead costs three tacts plus contention.
func (m *Machine) DelayMemoryRead(addr uint16) {
	m.DelayAddressBus(addr)
	m.TactPlusN(3)
	m.lastMemRead = addr
}

func (m *Machine) DelayMemoryWrite(addr uint16) {
	m.DelayAddressBus(addr)
	m.TactPlusN(3)
}

func (m *Machine) ReadPort(port uint16) byte {
	m.delayPortIO(port)
	m.lastPortIO = port
	if m.ports == nil {
		return 0xFF
	}
	return m.ports.DoReadPort(port)
}

func (m *Machine) WritePort(port uint16, value byte) {
	m.delayPortIO(port)
	m.lastPortIO = port
	if m.ports != nil {
		m.ports.DoWritePort(port, value)
	}
}

// delayPortIO applies the four-tact I/O cycle with the ULA contention
// patterns: high byte contended or not, low bit set or clear.
func (m *Machine) delayPortIO(port uint16) {
	if m.contention == nil || m.Profile.UncontendedIO {
		m.TactPlusN(4)
		return
	}
	lowBit := port&0x0001 != 0
	if m.isContended(port) {
		if lowBit {
			for range 4 {
				m.contentionDelay()
				m.TactPlusN(1)
			}
		} else {
			m.contentionDelay()
			m.TactPlusN(1)
			m.contentionDelay()
			m.TactPlusN(3)
		}
		return
	}
	if lowBit {
		m.TactPlusN(4)
	} else {
		m.TactPlusN(1)
		m.contentionDelay()
		m.TactPlusN(3)
	}
}

// Reset and lifecycle helpers

// HardReset clears RAM, resets every device and the CPU and rewinds the
// tact counters.
// A machine past setup passes through Setup and ends up Ready.
func (m *Machine) HardReset() {
	started := m.state != StateUninitialized && m.state != StateSetup
	if started {
		m.transitionOrWarn(StateSetup, "hard reset")
	}
	m.cpu.HardReset()
	m.resetCounters()
	m.model.ResetModel(true)
	if started {
		m.transitionOrWarn(StateReady, "hard reset")
	}
	m.log.Info("hard reset")
}

func (m *Machine) transitionOrWarn(next MachineState, op string) {
	if err := m.Transition(next); err != nil {
		m.log.WithError(err).Warn(op)
	}
}

// SoftReset keeps RAM but resets devices and CPU registers.
func (m *Machine) SoftReset() {
	m.cpu.Reset()
	m.resetCounters()
	m.model.ResetModel(false)
	m.log.Info("soft reset")
}

func (m *Machine) resetCounters() {
	m.Tacts = 0
	m.Frames = 0
	m.FrameTacts = 0
	m.CurrentFrameTact = 0
	m.FrameCount = 0
	m.TotalContentionDelay = 0
	m.ContentionSincePause = 0
	m.frameCompleted = true
	m.frameOverflow = 0
	m.nextFrameStartTact = 0
	m.events = nil
	m.keyStrokes = nil
	m.ClockMultiplier = m.TargetClockMultiplier
	m.tactsInCurrentFrame = m.TactsInFrame * m.ClockMultiplier
}

// SetClockMultiplier requests a new CPU clock multiplier. It takes effect at
// the next frame boundary.
func (m *Machine) SetClockMultiplier(multiplier int) {
	if multiplier < 1 {
		multiplier = 1
	}
	if multiplier > MAX_CLOCK_MULTIPLIER {
		multiplier = MAX_CLOCK_MULTIPLIER
	}
	m.TargetClockMultiplier = multiplier
}

// CPU returns the processor core.
func (m *Machine) CPU() CPU { return m.cpu }

func (m *Machine) ReadMemory(addr uint16) byte {
	return m.model.DoReadMemory(addr)
}

func (m *Machine) WriteMemory(addr uint16, value byte) {
	m.model.DoWriteMemory(addr, value)
}

func (m *Machine) GetPixelBuffer() []uint32 {
	return m.model.PixelBuffer()
}

func (m *Machine) ScreenSize() (int, int) {
	return m.model.ScreenSize()
}

func (m *Machine) GetAudioSamples() []AudioSample {
	return m.model.AudioSamples()
}

func (m *Machine) SetKeyStatus(code int, down bool) {
	m.model.SetKeyStatus(code, down)
}

func (m *Machine) UploadRom(name string, data []byte) error {
	spec, ok := m.Profile.romSpec(name)
	if !ok {
		return &ConfigError{Operation: "rom upload", Details: "unknown rom " + name, Err: ErrRomMissing}
	}
	if !spec.accepts(len(data)) {
		return romSizeError(name, spec.Sizes[0], len(data))
	}
	return m.model.UploadRom(name, data)
}

func (m *Machine) Dispose() {
	disposeDevices(m.model.Devices()...)
}
