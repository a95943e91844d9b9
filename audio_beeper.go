// audio_beeper.go - One-bit EAR beeper

package main

// BeeperDevice samples the EAR bit: 1.0 while the bit is set, 0.0 otherwise.
type BeeperDevice struct {
	SampleGate
	earBit bool
}

func NewBeeperDevice(host MachineHost, sampleRate int) *BeeperDevice {
	b := &BeeperDevice{}
	b.SampleGate = newSampleGate(host, b.currentSample)
	b.SetAudioSampleRate(sampleRate)
	return b
}

func (b *BeeperDevice) currentSample() AudioSample {
	if b.earBit {
		return AudioSample{Left: 1, Right: 1}
	}
	return AudioSample{}
}

func (b *BeeperDevice) SetEarBit(on bool) { b.earBit = on }

func (b *BeeperDevice) EarBit() bool { return b.earBit }

func (b *BeeperDevice) Reset() {
	b.earBit = false
	b.Rebase()
}

func (b *BeeperDevice) Dispose() {}
