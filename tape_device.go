// tape_device.go - Cassette interface of the ZX Spectrum

/*
tape_device.go - Tape Device

The tape device watches the program counter after every instruction. When the
48K ROM enters LD-BYTES it switches to LOAD mode and generates the EAR signal
of the next block from the tact counter: pilot tone, two sync pulses, two
pulses per data bit, a terminating sync and a one second pause. With fast load
enabled it instead copies the whole block into memory in one step and resumes
the ROM at the point where LD-BYTES returns.

When the ROM enters SA-BYTES the device switches to SAVE mode and classifies
the width of every MIC edge, rebuilding the saved blocks byte by byte.

Playback can also come from a WAV recording, in which case the EAR level is
read from the sample under the current tact.
*/

package main

import (
	"strings"
)

type TapeMode int

const (
	TapePassive TapeMode = iota
	TapeLoad
	TapeSave
)

func (m TapeMode) String() string {
	switch m {
	case TapeLoad:
		return "load"
	case TapeSave:
		return "save"
	}
	return "passive"
}

type playPhase int

const (
	playNone playPhase = iota
	playPilot
	playSync
	playData
	playTermSync
	playPause
	playCompleted
)

type savePhase int

const (
	saveNone savePhase = iota
	savePilot
	saveSync1
	saveSync2
	saveData
	saveError
)

type micPulse int

const (
	pulseNone micPulse = iota
	pulseTooShort
	pulseTooLong
	pulsePilot
	pulseSync1
	pulseSync2
	pulseBit0
	pulseBit1
	pulseTermSync
)

// Standard ROM timing, in tacts.
const (
	PILOT_PL  = 2168
	SYNC_1_PL = 667
	SYNC_2_PL = 735
	BIT_0_PL  = 855
	BIT_1_PL  = 1710
	TERM_SYNC = 947

	HEADER_PILOT_COUNT    = 8063
	DATA_PILOT_COUNT      = 3223
	MIN_PILOT_PULSE_COUNT = 3000
	SAVE_PULSE_TOLERANCE  = 24
	TOO_LONG_PAUSE        = 3_500_000

	TAPE_LOAD_BYTES_ROUTINE                = 0x056C
	TAPE_LOAD_BYTES_INVALID_HEADER_ROUTINE = 0x05B6
	TAPE_LOAD_BYTES_RESUME                 = 0x05E2
	TAPE_SAVE_BYTES_ROUTINE                = 0x04C2
	TAPE_ERROR_RESTART                     = 0x0008
)

// TapeDataBlock is one block of a tape image with its pulse timing.
type TapeDataBlock struct {
	Data               []byte
	PilotPulseLength   int
	Sync1PulseLength   int
	Sync2PulseLength   int
	ZeroBitPulseLength int
	OneBitPulseLength  int
	EndSyncPulseLength int
	PauseAfter         int // milliseconds
}

// NewStandardTapeBlock wraps data with the ROM loader's timing.
func NewStandardTapeBlock(data []byte) TapeDataBlock {
	return TapeDataBlock{
		Data:               data,
		PilotPulseLength:   PILOT_PL,
		Sync1PulseLength:   SYNC_1_PL,
		Sync2PulseLength:   SYNC_2_PL,
		ZeroBitPulseLength: BIT_0_PL,
		OneBitPulseLength:  BIT_1_PL,
		EndSyncPulseLength: TERM_SYNC,
		PauseAfter:         1000,
	}
}

// TapeSaver receives the blocks rebuilt in SAVE mode.
type TapeSaver interface {
	SetName(name string)
	SaveTapeBlock(block TapeDataBlock)
}

// TapeHost is what the tape device needs from its Spectrum.
type TapeHost interface {
	MachineHost
	TapeCPU() *Z80CPU
	Is48RomSelected() bool
	DoReadMemory(addr uint16) byte
	DoWriteMemory(addr uint16, value byte)
	OnTapeModeChanged(mode TapeMode)
}

type TapeDevice struct {
	host     TapeHost
	FastLoad bool
	Saver    TapeSaver

	mode   TapeMode
	blocks []TapeDataBlock
	wav    *WavTape
	eof    bool
	index  int
	phase  playPhase

	startTact   uint64
	pilotEnd    uint64
	sync1End    uint64
	sync2End    uint64
	bitStart    uint64
	bitPulseLen uint64
	dataIndex   int
	bitMask     byte
	termEnd     uint64
	pauseEnd    uint64
	lastMicTact uint64
	micBit      bool
	save        savePhase
	pilotPulses int
	prevPulse   micPulse
	bitOffset   int
	dataByte    byte
	dataBuffer  []byte
	savedBlocks int
}

func NewTapeDevice(host TapeHost) *TapeDevice {
	t := &TapeDevice{host: host, FastLoad: true}
	t.Reset()
	return t
}

func (t *TapeDevice) Reset() {
	t.setMode(TapePassive)
	t.index = -1
	t.eof = false
	t.phase = playNone
}

func (t *TapeDevice) Dispose() {}

func (t *TapeDevice) Mode() TapeMode { return t.mode }

func (t *TapeDevice) setMode(mode TapeMode) {
	if t.mode == mode {
		return
	}
	t.mode = mode
	t.host.Logger().WithField("device", "tape").Debugf("tape mode %s", mode)
	t.host.OnTapeModeChanged(mode)
}

// SetTapeData loads a new set of blocks and rewinds.
func (t *TapeDevice) SetTapeData(blocks []TapeDataBlock) {
	t.blocks = blocks
	t.wav = nil
	t.Rewind()
}

// SetWavTape plays a sampled recording instead of blocks. Fast load is not
// possible for a recording.
func (t *TapeDevice) SetWavTape(w *WavTape) {
	t.wav = w
	t.blocks = nil
	t.Rewind()
}

func (t *TapeDevice) Rewind() {
	t.index = -1
	t.eof = false
	t.phase = playNone
}

// UpdateTapeMode runs after every instruction.
func (t *TapeDevice) UpdateTapeMode() {
	cpu := t.host.TapeCPU()
	romOk := t.host.Is48RomSelected()
	switch t.mode {
	case TapePassive:
		if !romOk {
			return
		}
		switch cpu.PC {
		case TAPE_LOAD_BYTES_ROUTINE:
			t.setMode(TapeLoad)
			if t.wav != nil {
				t.startTact = t.host.CurrentTacts()
				return
			}
			t.nextTapeBlock()
			if !t.FastLoad {
				return
			}
			t.fastLoad()
			t.setMode(TapePassive)
		case TAPE_SAVE_BYTES_ROUTINE:
			t.setMode(TapeSave)
			t.lastMicTact = t.host.CurrentTacts()
			t.micBit = true
			t.save = saveNone
			t.pilotPulses = 0
			t.savedBlocks = 0
			t.prevPulse = pulseNone
			t.dataBuffer = t.dataBuffer[:0]
		}

	case TapeLoad:
		if t.eof || (romOk && cpu.PC == TAPE_ERROR_RESTART) {
			t.setMode(TapePassive)
		}

	case TapeSave:
		if (romOk && cpu.PC == TAPE_ERROR_RESTART) ||
			t.host.CurrentTacts()-t.lastMicTact > TOO_LONG_PAUSE {
			t.setMode(TapePassive)
		}
	}
}

// GetTapeEarBit returns the EAR level at the current tact.
func (t *TapeDevice) GetTapeEarBit() bool {
	if t.wav != nil {
		level, ok := t.wav.LevelAt(t.host.CurrentTacts()-t.startTact, t.host.BaseClock())
		if !ok {
			t.eof = true
		}
		return level
	}
	if t.index < 0 || t.index >= len(t.blocks) {
		return true
	}
	pos := t.host.CurrentTacts() - t.startTact
	block := &t.blocks[t.index]

	if t.phase == playPilot || t.phase == playSync {
		if pos <= t.pilotEnd {
			return (pos/uint64(block.PilotPulseLength))%2 == 0
		}
		if pos <= t.sync1End {
			t.phase = playSync
			return false
		}
		if pos <= t.sync2End {
			t.phase = playSync
			return true
		}
		t.phase = playData
		t.bitStart = t.sync2End
		t.bitPulseLen = t.bitPulse(block)
	}

	if t.phase == playData {
		bitPos := pos - t.bitStart
		if bitPos < t.bitPulseLen {
			return false
		}
		if bitPos < 2*t.bitPulseLen {
			return true
		}
		t.bitMask >>= 1
		if t.bitMask == 0 {
			t.bitMask = 0x80
			t.dataIndex++
		}
		if t.dataIndex < len(block.Data) {
			t.bitStart += 2 * t.bitPulseLen
			t.bitPulseLen = t.bitPulse(block)
			return false
		}
		t.phase = playTermSync
		t.termEnd = t.bitStart + 2*t.bitPulseLen + uint64(block.EndSyncPulseLength)
		return false
	}

	if t.phase == playTermSync {
		if pos < t.termEnd {
			return false
		}
		t.phase = playPause
		t.pauseEnd = t.termEnd + uint64(t.host.BaseClock())
		return true
	}

	if pos > t.pauseEnd {
		t.nextTapeBlock()
	}
	return true
}

func (t *TapeDevice) bitPulse(block *TapeDataBlock) uint64 {
	if t.dataIndex < len(block.Data) && block.Data[t.dataIndex]&t.bitMask != 0 {
		return uint64(block.OneBitPulseLength)
	}
	return uint64(block.ZeroBitPulseLength)
}

func (t *TapeDevice) nextTapeBlock() {
	if t.eof {
		return
	}
	if t.index >= len(t.blocks)-1 {
		t.eof = true
		return
	}
	if t.phase == playCompleted {
		return
	}
	t.index++
	block := &t.blocks[t.index]
	t.phase = playPilot
	t.startTact = t.host.CurrentTacts()
	pilots := HEADER_PILOT_COUNT
	if len(block.Data) > 0 && block.Data[0]&0x80 != 0 {
		pilots = DATA_PILOT_COUNT
	}
	t.pilotEnd = uint64(block.PilotPulseLength * pilots)
	t.sync1End = t.pilotEnd + uint64(block.Sync1PulseLength)
	t.sync2End = t.sync1End + uint64(block.Sync2PulseLength)
	t.dataIndex = 0
	t.bitMask = 0x80
}

// fastLoad emulates LD-BYTES for the current block. On entry IX is the
// destination, DE the length and A' the expected flag byte; carry in F'
// clear means VERIFY.
func (t *TapeDevice) fastLoad() {
	if t.eof || t.index < 0 || t.index >= len(t.blocks) {
		return
	}
	block := &t.blocks[t.index]
	cpu := t.host.TapeCPU()

	cpu.A, cpu.F = cpu.A2, cpu.F2
	isVerify := cpu.AF()&0xFF01 == 0xFF00

	dataIndex := 0
	if len(block.Data) == 0 || block.Data[0] != cpu.A {
		cpu.A ^= cpu.L
		cpu.F &= 0xBE
		cpu.PC = TAPE_LOAD_BYTES_INVALID_HEADER_ROUTINE
		t.nextTapeBlock()
		return
	}

	cpu.H = cpu.A
	dataIndex++
	for cpu.DE() > 0 {
		if dataIndex >= len(block.Data) {
			break
		}
		cpu.L = block.Data[dataIndex]
		if isVerify && t.host.DoReadMemory(cpu.IX) != cpu.L {
			cpu.F &= 0xBE
			cpu.PC = TAPE_LOAD_BYTES_INVALID_HEADER_ROUTINE
			return
		}
		t.host.DoWriteMemory(cpu.IX, cpu.L)
		cpu.H ^= cpu.L
		dataIndex++
		cpu.IX++
		cpu.SetDE(cpu.DE() - 1)
	}

	switch {
	case dataIndex > len(block.Data)-1:
		cpu.F &= 0xFE
	case block.Data[dataIndex] != cpu.H:
		cpu.F &= 0xFE
	default:
		cpu.F |= z80FlagC
	}
	cpu.PC = TAPE_LOAD_BYTES_RESUME

	t.phase = playPause
	t.pauseEnd = 0
}

func classifyMicPulse(length uint64) micPulse {
	within := func(pl int) bool {
		return length >= uint64(pl-SAVE_PULSE_TOLERANCE) && length <= uint64(pl+SAVE_PULSE_TOLERANCE)
	}
	switch {
	case within(BIT_0_PL):
		return pulseBit0
	case within(BIT_1_PL):
		return pulseBit1
	case within(PILOT_PL):
		return pulsePilot
	case within(SYNC_1_PL):
		return pulseSync1
	case within(SYNC_2_PL):
		return pulseSync2
	case within(TERM_SYNC):
		return pulseTermSync
	case length < SYNC_1_PL-SAVE_PULSE_TOLERANCE:
		return pulseTooShort
	case length > PILOT_PL+2*SAVE_PULSE_TOLERANCE:
		return pulseTooLong
	}
	return pulseNone
}

// ProcessMicBit is called on every write to port 0xFE.
func (t *TapeDevice) ProcessMicBit(micBit bool) {
	if t.mode != TapeSave || t.micBit == micBit {
		return
	}
	now := t.host.CurrentTacts()
	pulse := classifyMicPulse(now - t.lastMicTact)
	t.micBit = micBit
	t.lastMicTact = now

	next := saveError
	switch t.save {
	case saveNone:
		switch pulse {
		case pulseTooShort, pulseTooLong:
			next = saveNone
		case pulsePilot:
			t.pilotPulses = 1
			next = savePilot
		}
	case savePilot:
		if pulse == pulsePilot {
			t.pilotPulses++
			next = savePilot
		} else if pulse == pulseSync1 && t.pilotPulses >= MIN_PILOT_PULSE_COUNT {
			next = saveSync1
		}
	case saveSync1:
		if pulse == pulseSync2 {
			next = saveSync2
		}
	case saveSync2:
		if pulse == pulseBit0 || pulse == pulseBit1 {
			t.prevPulse = pulse
			next = saveData
			t.bitOffset = 0
			t.dataByte = 0
			t.dataBuffer = t.dataBuffer[:0]
		}
	case saveData:
		switch pulse {
		case pulseBit0, pulseBit1:
			switch t.prevPulse {
			case pulseNone:
				t.prevPulse = pulse
				next = saveData
			case pulse:
				next = saveData
				t.prevPulse = pulseNone
				t.bitOffset++
				t.dataByte <<= 1
				if pulse == pulseBit1 {
					t.dataByte |= 1
				}
				if t.bitOffset == 8 {
					t.dataBuffer = append(t.dataBuffer, t.dataByte)
					t.dataByte = 0
					t.bitOffset = 0
				}
			}
		case pulseTermSync:
			next = saveNone
			t.savedBlocks++
			t.completeSavedBlock()
		}
	}
	t.save = next
}

func (t *TapeDevice) completeSavedBlock() {
	data := append([]byte(nil), t.dataBuffer...)
	if t.savedBlocks == 1 && len(data) == 0x13 {
		t.host.Logger().WithField("device", "tape").Debugf("saving %q", headerName(data))
		if t.Saver != nil {
			t.Saver.SetName(headerName(data))
		}
	}
	if t.Saver != nil {
		t.Saver.SaveTapeBlock(NewStandardTapeBlock(data))
	}
}

// headerName extracts the ten character file name of a header block.
func headerName(header []byte) string {
	if len(header) < 12 {
		return ""
	}
	return strings.TrimRight(string(header[2:12]), " ")
}
