// audio_psg.go - AY-3-8910 programmable sound generator

/*
audio_psg.go - AY-3-8910 PSG

The chip is clocked at half the CPU clock divided by eight, which works out
to one generator step every 16 CPU tacts. Every step advances the three
12-bit tone counters, the 17-bit noise LFSR and the envelope position, then
adds the mixed amplitude to an orphan sum. When the sample gate asks for a
sample the orphan sum is averaged over the steps taken since the previous
sample, so a long instruction that covered several steps is not lost.

Registers:
  R0-R5   tone period A/B/C (low 8 bits, high 4 bits)
  R6      noise period (5 bits)
  R7      mixer (bits 0-2 tone off, bits 3-5 noise off, active low)
  R8-R10  channel volume (bits 0-3) and envelope select (bit 4)
  R11-R12 envelope period
  R13     envelope shape (continue, attack, alternate, hold)
  R14-R15 I/O ports
*/

package main

const (
	PSG_REG_COUNT      = 16
	PSG_CLOCK_DIVIDER  = 16
	PSG_ENVELOPE_STEPS = 128
	PSG_MAX_AMPLITUDE  = 0xFFFF
)

// psgLevels16 is the measured 16 step DAC curve; psgLevels fills the odd
// half steps used by the 32 step envelope with the mid point.
var psgLevels16 = [16]uint16{
	0x0000, 0x0201, 0x033C, 0x04D7, 0x0783, 0x0CA6, 0x133E, 0x2393,
	0x2868, 0x45D4, 0x606A, 0x76EA, 0x97BC, 0xB8A6, 0xDC52, 0xFFFF,
}

var (
	psgLevels    [32]uint16
	psgEnvelopes [16 * PSG_ENVELOPE_STEPS]byte
)

func init() {
	for i := range 16 {
		psgLevels[2*i+1] = psgLevels16[i]
		if i > 0 {
			psgLevels[2*i] = uint16((uint32(psgLevels16[i-1]) + uint32(psgLevels16[i])) / 2)
		}
	}
	initPsgEnvelopes()
}

// initPsgEnvelopes walks every shape once and stores the 32 level envelope
// for 128 steps. Positions 64..127 form the repeating tail.
func initPsgEnvelopes() {
	ptr := 0
	for env := range 16 {
		hold := false
		dir, vol := -1, 0x20
		if env&0x04 != 0 {
			dir, vol = 1, -1
		}
		for range PSG_ENVELOPE_STEPS {
			if !hold {
				vol += dir
				if vol < 0 || vol >= 32 {
					if env&0x08 != 0 {
						if env&0x02 != 0 {
							dir = -dir
						}
						vol = 31
						if dir > 0 {
							vol = 0
						}
						if env&0x01 != 0 {
							hold = true
							vol = 0
							if dir > 0 {
								vol = 31
							}
						}
					} else {
						vol = 0
						hold = true
					}
				}
			}
			psgEnvelopes[ptr] = byte(vol)
			ptr++
		}
	}
}

type psgChannel struct {
	tone      int // 12-bit period
	toneOn    bool
	noiseOn   bool
	volume    byte
	useEnv    bool
	counter   int
	bit       bool
	output    uint16
	orphanSum uint64
}

// PsgChip is the register-level model of one AY chip.
type PsgChip struct {
	registerIndex byte
	regs          [PSG_REG_COUNT]byte

	channels [3]psgChannel

	noiseSeed uint32
	noiseFreq int
	cntNoise  int
	bitNoise  bool

	envFreq  int
	envStyle int
	cntEnv   int
	posEnv   int

	orphanSum     uint64
	orphanSamples int
}

func NewPsgChip() *PsgChip {
	p := &PsgChip{}
	p.Reset()
	return p
}

func (p *PsgChip) Reset() {
	*p = PsgChip{}
	p.regs[7] = 0xFF
}

// SetRegisterIndex selects the register the next data access targets.
func (p *PsgChip) SetRegisterIndex(index byte) {
	p.registerIndex = index & 0x0F
}

func (p *PsgChip) RegisterIndex() byte { return p.registerIndex }

func (p *PsgChip) ReadRegister() byte {
	return p.regs[p.registerIndex&0x0F]
}

// WriteRegister stores v into the selected register and updates the
// generator state it controls.
func (p *PsgChip) WriteRegister(v byte) {
	idx := p.registerIndex & 0x0F
	p.regs[idx] = v
	switch idx {
	case 0, 2, 4:
		ch := &p.channels[idx/2]
		ch.tone = ch.tone&0x0F00 | int(v)
	case 1, 3, 5:
		ch := &p.channels[idx/2]
		ch.tone = ch.tone&0x00FF | int(v&0x0F)<<8
	case 6:
		p.noiseFreq = int(v & 0x1F)
	case 7:
		for i := range p.channels {
			p.channels[i].toneOn = v&(1<<i) == 0
			p.channels[i].noiseOn = v&(8<<i) == 0
		}
	case 8, 9, 10:
		ch := &p.channels[idx-8]
		ch.volume = v & 0x0F
		ch.useEnv = v&0x10 != 0
	case 11:
		p.envFreq = p.envFreq&0xFF00 | int(v)
	case 12:
		p.envFreq = p.envFreq&0x00FF | int(v)<<8
	case 13:
		p.envStyle = int(v & 0x0F)
		p.cntEnv = 0
		p.posEnv = 0
	}
}

// WriteRegisterAt is a convenience for tests and scripts.
func (p *PsgChip) WriteRegisterAt(index, v byte) {
	p.SetRegisterIndex(index)
	p.WriteRegister(v)
}

func (p *PsgChip) RegisterAt(index byte) byte {
	return p.regs[index&0x0F]
}

// GenerateOutputValue advances the chip by one generator step.
func (p *PsgChip) GenerateOutputValue() {
	for i := range p.channels {
		ch := &p.channels[i]
		if ch.tone != 0 {
			ch.counter++
			if ch.counter >= ch.tone {
				ch.counter = 0
				ch.bit = !ch.bit
			}
		}
	}

	if p.noiseFreq != 0 {
		p.cntNoise++
		if p.cntNoise >= p.noiseFreq {
			p.cntNoise = 0
			p.noiseSeed = (p.noiseSeed*2 + 1) ^ ((p.noiseSeed>>16 ^ p.noiseSeed>>13) & 0x01)
			p.noiseSeed &= 0x1FFFF
			p.bitNoise = (p.noiseSeed>>16)&0x01 != 0
		}
	}

	if p.envFreq != 0 {
		p.cntEnv++
		if p.cntEnv >= p.envFreq {
			p.cntEnv = 0
			p.posEnv++
			if p.posEnv >= PSG_ENVELOPE_STEPS {
				p.posEnv = PSG_ENVELOPE_STEPS / 2
			}
		}
	}

	var vol uint64
	for i := range p.channels {
		ch := &p.channels[i]
		ch.output = 0
		if ch.toneOn || ch.noiseOn {
			amp := p.amplitude(ch)
			if (ch.toneOn && ch.bit) || (ch.noiseOn && p.bitNoise) {
				ch.output = amp
			}
		}
		ch.orphanSum += uint64(ch.output)
		vol += uint64(ch.output)
	}
	p.orphanSum += vol
	p.orphanSamples++
}

func (p *PsgChip) amplitude(ch *psgChannel) uint16 {
	level := int(ch.volume)*2 + 1
	if ch.useEnv {
		level = int(psgEnvelopes[p.envStyle*PSG_ENVELOPE_STEPS+p.posEnv])
	}
	return psgLevels[level&0x1F]
}

// takeOrphanAverage returns the mean summed amplitude (0..1) since the
// previous call and clears the accumulator.
func (p *PsgChip) takeOrphanAverage() float32 {
	if p.orphanSamples == 0 {
		return 0
	}
	avg := float32(p.orphanSum) / float32(p.orphanSamples) / (3 * PSG_MAX_AMPLITUDE)
	p.orphanSum = 0
	p.orphanSamples = 0
	for i := range p.channels {
		p.channels[i].orphanSum = 0
	}
	return avg
}

// =============================================================================
// PSG device
// =============================================================================

// PsgDevice clocks a PsgChip from the machine tacts and feeds a sample gate.
type PsgDevice struct {
	SampleGate
	host     MachineHost
	chip     *PsgChip
	lastTact uint64
	lastOut  float32
}

func NewPsgDevice(host MachineHost, sampleRate int) *PsgDevice {
	d := &PsgDevice{host: host, chip: NewPsgChip()}
	d.SampleGate = newSampleGate(host, d.currentSample)
	d.SetAudioSampleRate(sampleRate)
	return d
}

func (d *PsgDevice) Chip() *PsgChip { return d.chip }

func (d *PsgDevice) currentSample() AudioSample {
	if d.chip.orphanSamples > 0 {
		d.lastOut = d.chip.takeOrphanAverage()
	}
	return AudioSample{Left: d.lastOut, Right: d.lastOut}
}

// CalculateCurrentAudioValue runs the chip for every 16 tact step elapsed
// since the last call. It is called after each instruction.
func (d *PsgDevice) CalculateCurrentAudioValue() {
	tacts := d.timebase.now()
	for d.lastTact+PSG_CLOCK_DIVIDER <= tacts {
		d.chip.GenerateOutputValue()
		d.lastTact += PSG_CLOCK_DIVIDER
	}
}

func (d *PsgDevice) SetRegisterIndex(index byte) { d.chip.SetRegisterIndex(index) }

func (d *PsgDevice) ReadRegister() byte { return d.chip.ReadRegister() }

func (d *PsgDevice) WriteRegister(v byte) { d.chip.WriteRegister(v) }

func (d *PsgDevice) Reset() {
	d.chip.Reset()
	d.Rebase()
	d.lastTact = 0
	d.lastOut = 0
}

func (d *PsgDevice) Dispose() {}
