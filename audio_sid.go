// audio_sid.go - MOS 6581 SID register file and synthesis for the C64

/*
audio_sid.go - MOS 6581 Sound Interface Device

Register file ($D400-$D41F, mirrored every 32 bytes through $D7FF):
  $00-$06 voice 1: freq lo/hi, pulse width lo/hi (4 bits), control, AD, SR
  $07-$0D voice 2
  $0E-$14 voice 3
  $15     filter cutoff low (3 bits)
  $16     filter cutoff high
  $17     resonance (bits 4-7), filter routing (bits 0-3)
  $18     mode (bits 4-7) and master volume (bits 0-3)
  $19-$1C read only: paddle X, paddle Y, OSC3, ENV3
  $1D-$1F unused, read as 0

Synthesis runs at the CPU clock: each cycle the 24-bit phase accumulators
advance by the frequency register, the ADSR rate counters tick, and the mixed
output is added to an orphan sum averaged at every sample boundary.
*/

package main

import "math"

const (
	SID_REG_COUNT     = 0x20
	SID_REG_EFFECTIVE = 29
	SID_NOISE_SEED    = 0x7FFFF8
)

// Voice control register bits
const (
	SID_CTRL_GATE     = 0x01
	SID_CTRL_SYNC     = 0x02
	SID_CTRL_RINGMOD  = 0x04
	SID_CTRL_TEST     = 0x08
	SID_CTRL_TRIANGLE = 0x10
	SID_CTRL_SAWTOOTH = 0x20
	SID_CTRL_PULSE    = 0x40
	SID_CTRL_NOISE    = 0x80
)

// Mode/volume register bits
const (
	SID_MODE_VOL_MASK = 0x0F
	SID_MODE_LP       = 0x10
	SID_MODE_BP       = 0x20
	SID_MODE_HP       = 0x40
	SID_MODE_3OFF     = 0x80
)

// ADSR rate counter periods in cycles, per 4-bit rate value.
var sidADSRRatePeriods = [16]uint32{
	9, 32, 63, 95, 149, 220, 267, 313,
	392, 977, 1954, 3126, 3907, 11720, 19532, 31251,
}

// Decay and release slow down as the level falls. Above threshold i the
// period is multiplied by sidEnvExpMultipliers[i].
var (
	sidEnvExpThresholds  = [6]uint8{93, 54, 26, 14, 6, 0}
	sidEnvExpMultipliers = [6]uint8{1, 2, 4, 8, 16, 30}
)

var sid6581ResonanceTable = [16]float32{
	0.50, 0.55, 0.62, 0.72, 0.85, 1.00, 1.20, 1.50,
	1.90, 2.40, 3.00, 3.80, 4.80, 6.00, 8.00, 12.0,
}

const (
	sidFilterMaxCutoff = 12000.0
	sidFilterMinCutoff = 30.0
)

type envState uint8

const (
	envAttack envState = iota
	envDecaySustain
	envRelease
)

type sidVoice struct {
	freqLo, freqHi byte
	pwLo, pwHi     byte
	control        byte
	attackDecay    byte
	sustainRelease byte

	acc        uint32 // 24-bit phase accumulator
	msbRising  bool
	noise      uint32
	envLevel   byte
	envState   envState
	rateCount  uint32
	expCounter uint8
}

func (v *sidVoice) frequency() uint32  { return uint32(v.freqHi)<<8 | uint32(v.freqLo) }
func (v *sidVoice) pulseWidth() uint32 { return uint32(v.pwHi&0x0F)<<8 | uint32(v.pwLo) }

func (v *sidVoice) reset() {
	*v = sidVoice{noise: SID_NOISE_SEED, envState: envRelease}
}

// SidDevice is the C64 sound chip.
type SidDevice struct {
	SampleGate
	host MachineHost

	voices         [3]sidVoice
	cutoffLo       byte
	cutoffHi       byte
	resonanceRoute byte
	modeVolume     byte
	paddleX        byte
	paddleY        byte

	lastCycle     uint64
	orphanDirect  float64
	orphanFilter  float64
	orphanSamples int

	low, band float64
	lastOut   float32
}

func NewSidDevice(host MachineHost, sampleRate int) *SidDevice {
	s := &SidDevice{host: host}
	s.SampleGate = newSampleGate(host, s.currentSample)
	s.SetAudioSampleRate(sampleRate)
	s.Reset()
	return s
}

func (s *SidDevice) Reset() {
	for i := range s.voices {
		s.voices[i].reset()
	}
	s.cutoffLo, s.cutoffHi = 0, 0
	s.resonanceRoute, s.modeVolume = 0, 0
	s.paddleX, s.paddleY = 0, 0
	s.orphanDirect, s.orphanFilter, s.orphanSamples = 0, 0, 0
	s.low, s.band, s.lastOut = 0, 0, 0
	s.Rebase()
	s.lastCycle = 0
}

func (s *SidDevice) Dispose() {}

// SetPaddles sets the values read back from $19 and $1A.
func (s *SidDevice) SetPaddles(x, y byte) {
	s.paddleX, s.paddleY = x, y
}

// ReadRegister reads a register. The index is masked to the 32 byte mirror.
func (s *SidDevice) ReadRegister(reg byte) byte {
	reg &= SID_REG_COUNT - 1
	if reg < 0x15 {
		v := &s.voices[reg/7]
		switch reg % 7 {
		case 0:
			return v.freqLo
		case 1:
			return v.freqHi
		case 2:
			return v.pwLo
		case 3:
			return v.pwHi
		case 4:
			return v.control
		case 5:
			return v.attackDecay
		default:
			return v.sustainRelease
		}
	}
	switch reg {
	case 0x15:
		return s.cutoffLo
	case 0x16:
		return s.cutoffHi
	case 0x17:
		return s.resonanceRoute
	case 0x18:
		return s.modeVolume
	case 0x19:
		return s.paddleX
	case 0x1A:
		return s.paddleY
	case 0x1B:
		return byte(s.waveOutput(2) >> 4)
	case 0x1C:
		return s.voices[2].envLevel
	}
	return 0
}

// WriteRegister writes a register. Read-only and unused registers ignore
// the write.
func (s *SidDevice) WriteRegister(reg, value byte) {
	reg &= SID_REG_COUNT - 1
	if reg < 0x15 {
		v := &s.voices[reg/7]
		switch reg % 7 {
		case 0:
			v.freqLo = value
		case 1:
			v.freqHi = value
		case 2:
			v.pwLo = value
		case 3:
			v.pwHi = value & 0x0F
		case 4:
			s.writeControl(v, value)
		case 5:
			v.attackDecay = value
		default:
			v.sustainRelease = value
		}
		return
	}
	switch reg {
	case 0x15:
		s.cutoffLo = value & 0x07
	case 0x16:
		s.cutoffHi = value
	case 0x17:
		s.resonanceRoute = value
	case 0x18:
		s.modeVolume = value
	}
}

func (s *SidDevice) writeControl(v *sidVoice, value byte) {
	gateWas := v.control&SID_CTRL_GATE != 0
	gateNow := value&SID_CTRL_GATE != 0
	switch {
	case !gateWas && gateNow:
		v.envState = envAttack
		v.expCounter = 0
	case gateWas && !gateNow:
		v.envState = envRelease
	}
	if value&SID_CTRL_TEST != 0 {
		v.acc = 0
		v.noise = SID_NOISE_SEED
	}
	v.control = value
}

// MasterVolume returns the 4-bit output volume.
func (s *SidDevice) MasterVolume() byte { return s.modeVolume & SID_MODE_VOL_MASK }

// FilterCutoff returns the 11-bit cutoff register value.
func (s *SidDevice) FilterCutoff() int {
	return int(s.cutoffHi)<<3 | int(s.cutoffLo&0x07)
}

// =============================================================================
// Synthesis
// =============================================================================

// CalculateCurrentAudioValue runs the chip up to the current machine cycle,
// counted at the base clock.
func (s *SidDevice) CalculateCurrentAudioValue() {
	now := s.timebase.now()
	for s.lastCycle < now {
		s.clock()
		s.lastCycle++
	}
}

func (s *SidDevice) clock() {
	for i := range s.voices {
		v := &s.voices[i]
		if v.control&SID_CTRL_TEST != 0 {
			v.msbRising = false
			s.clockEnvelope(v)
			continue
		}
		prev := v.acc
		v.acc = (v.acc + v.frequency()) & 0xFFFFFF
		v.msbRising = prev&0x800000 == 0 && v.acc&0x800000 != 0
		if prev&0x080000 == 0 && v.acc&0x080000 != 0 {
			bit := (v.noise>>22 ^ v.noise>>17) & 1
			v.noise = (v.noise<<1 | bit) & 0x7FFFFF
		}
		s.clockEnvelope(v)
	}
	// Hard sync resets a voice when its modulator's MSB rises.
	for i := range s.voices {
		v := &s.voices[i]
		if v.control&SID_CTRL_SYNC != 0 && s.voices[(i+2)%3].msbRising {
			v.acc = 0
		}
	}

	var direct, filtered float64
	for i := range s.voices {
		if i == 2 && s.modeVolume&SID_MODE_3OFF != 0 && s.resonanceRoute&0x04 == 0 {
			continue
		}
		out := (float64(s.waveOutput(i)) - 2048) / 2048 * float64(s.voices[i].envLevel) / 255
		if s.resonanceRoute&(1<<i) != 0 {
			filtered += out
		} else {
			direct += out
		}
	}
	s.orphanDirect += direct
	s.orphanFilter += filtered
	s.orphanSamples++
}

func (s *SidDevice) clockEnvelope(v *sidVoice) {
	var rate byte
	switch v.envState {
	case envAttack:
		rate = v.attackDecay >> 4
	case envDecaySustain:
		rate = v.attackDecay & 0x0F
	default:
		rate = v.sustainRelease & 0x0F
	}
	v.rateCount++
	if v.rateCount < sidADSRRatePeriods[rate] {
		return
	}
	v.rateCount = 0

	if v.envState == envAttack {
		v.envLevel++
		if v.envLevel == 0xFF {
			v.envState = envDecaySustain
		}
		return
	}

	v.expCounter++
	if v.expCounter < expMultiplier(v.envLevel) {
		return
	}
	v.expCounter = 0
	switch v.envState {
	case envDecaySustain:
		if v.envLevel > (v.sustainRelease>>4)*0x11 {
			v.envLevel--
		}
	case envRelease:
		if v.envLevel > 0 {
			v.envLevel--
		}
	}
}

func expMultiplier(level byte) uint8 {
	for i, t := range sidEnvExpThresholds {
		if level > t {
			return sidEnvExpMultipliers[i]
		}
	}
	return sidEnvExpMultipliers[len(sidEnvExpMultipliers)-1]
}

// waveOutput returns the 12-bit oscillator output of voice i. Combined
// waveforms are ANDed together.
func (s *SidDevice) waveOutput(i int) uint16 {
	v := &s.voices[i]
	ctrl := v.control
	out := uint16(0xFFF)
	selected := false

	if ctrl&SID_CTRL_TRIANGLE != 0 {
		msb := v.acc & 0x800000
		if ctrl&SID_CTRL_RINGMOD != 0 {
			msb ^= s.voices[(i+2)%3].acc & 0x800000
		}
		tri := v.acc
		if msb != 0 {
			tri = ^tri
		}
		out &= uint16(tri>>11) & 0xFFF
		selected = true
	}
	if ctrl&SID_CTRL_SAWTOOTH != 0 {
		out &= uint16(v.acc >> 12)
		selected = true
	}
	if ctrl&SID_CTRL_PULSE != 0 {
		if ctrl&SID_CTRL_TEST == 0 && v.acc>>12 < v.pulseWidth() {
			out = 0
		}
		selected = true
	}
	if ctrl&SID_CTRL_NOISE != 0 {
		n := v.noise
		bits := (n>>22&1)<<11 | (n>>20&1)<<10 | (n>>16&1)<<9 | (n>>13&1)<<8 |
			(n>>11&1)<<7 | (n>>7&1)<<6 | (n>>4&1)<<5 | (n>>2&1)<<4
		out &= uint16(bits)
		selected = true
	}
	if !selected {
		return 0
	}
	return out
}

// currentSample averages the cycles since the previous sample, runs the
// filtered part through a state variable filter and applies master volume.
func (s *SidDevice) currentSample() AudioSample {
	if s.orphanSamples > 0 {
		n := float64(s.orphanSamples)
		direct := s.orphanDirect / n
		in := s.orphanFilter / n
		s.orphanDirect, s.orphanFilter, s.orphanSamples = 0, 0, 0

		cutoff := sidFilterMinCutoff + (sidFilterMaxCutoff-sidFilterMinCutoff)*float64(s.FilterCutoff())/2047
		f := min(2*math.Sin(math.Pi*cutoff/float64(max(1, s.SampleRate()))), 0.99)
		q := 1 / float64(sid6581ResonanceTable[s.resonanceRoute>>4])
		s.low += f * s.band
		high := in - s.low - q*s.band
		s.band += f * high

		var mixed float64
		if s.modeVolume&SID_MODE_LP != 0 {
			mixed += s.low
		}
		if s.modeVolume&SID_MODE_BP != 0 {
			mixed += s.band
		}
		if s.modeVolume&SID_MODE_HP != 0 {
			mixed += high
		}
		out := (direct + mixed) / 3 * float64(s.MasterVolume()) / 15
		s.lastOut = float32(min(max((out+1)/2, 0), 1))
	}
	return AudioSample{Left: s.lastOut, Right: s.lastOut}
}
