package main

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	log "github.com/sirupsen/logrus"
)

// audioTestHost is a MachineHost whose tact counter the test drives.
type audioTestHost struct {
	clock      int
	tacts      uint64
	multiplier int
}

func newAudioTestHost(clock int) *audioTestHost {
	return &audioTestHost{clock: clock, multiplier: 1}
}

func (h *audioTestHost) BaseClock() int              { return h.clock }
func (h *audioTestHost) CurrentTacts() uint64        { return h.tacts }
func (h *audioTestHost) FrameTact() int              { return 0 }
func (h *audioTestHost) FrameCounter() int           { return 0 }
func (h *audioTestHost) ClockMultiplierValue() int   { return h.multiplier }
func (h *audioTestHost) SetTactsInFrame(int)         {}
func (h *audioTestHost) SetContentionValue(int, int) {}
func (h *audioTestHost) Logger() *log.Entry          { return log.NewEntry(log.StandardLogger()) }

// TestSampleGate_ExactRate tests that one second of tacts yields exactly one
// second of samples, even when a call crosses several sample boundaries.
func TestSampleGate_ExactRate(t *testing.T) {
	for _, mult := range []int{1, 2} {
		host := newAudioTestHost(SP48_CLOCK)
		host.multiplier = mult
		count := 0
		gate := newSampleGate(host, func() AudioSample { count++; return AudioSample{} })
		gate.SetAudioSampleRate(DEFAULT_SAMPLE_RATE)

		end := uint64(SP48_CLOCK * mult)
		for host.tacts < end {
			host.tacts = min(host.tacts+397, end)
			gate.SetNextAudioSample()
		}
		if count != DEFAULT_SAMPLE_RATE {
			t.Fatalf("multiplier %d: got %d samples, want %d", mult, count, DEFAULT_SAMPLE_RATE)
		}
		if len(gate.GetAudioSamples()) != count {
			t.Fatalf("Expected every sample kept until the next frame")
		}
		gate.OnNewFrame()
		if len(gate.GetAudioSamples()) != 0 {
			t.Fatalf("Expected samples cleared on a new frame")
		}
	}
}

// TestSampleGate_MultiplierChangeKeepsRate tests that changing the clock
// multiplier mid-stream neither drops nor repeats samples.
func TestSampleGate_MultiplierChangeKeepsRate(t *testing.T) {
	for _, tc := range []struct{ from, to int }{{1, 2}, {2, 1}, {3, 5}} {
		host := newAudioTestHost(SP48_CLOCK)
		host.multiplier = tc.from
		count := 0
		gate := newSampleGate(host, func() AudioSample { count++; return AudioSample{} })
		gate.SetAudioSampleRate(DEFAULT_SAMPLE_RATE)

		run := func(tacts uint64) {
			end := host.tacts + tacts
			for host.tacts < end {
				host.tacts = min(host.tacts+397, end)
				gate.SetNextAudioSample()
			}
		}
		run(uint64(SP48_CLOCK * tc.from))
		host.multiplier = tc.to
		gate.OnClockMultiplierChanged()
		run(uint64(SP48_CLOCK * tc.to))

		if count != 2*DEFAULT_SAMPLE_RATE {
			t.Fatalf("multiplier %d to %d: got %d samples, want %d", tc.from, tc.to, count, 2*DEFAULT_SAMPLE_RATE)
		}
	}
}

func TestBeeper_FollowsEarBit(t *testing.T) {
	host := newAudioTestHost(SP48_CLOCK)
	b := NewBeeperDevice(host, DEFAULT_SAMPLE_RATE)
	b.SetEarBit(true)
	host.tacts = uint64(b.SampleLength() * 2)
	b.SetNextAudioSample()
	samples := b.GetAudioSamples()
	if len(samples) != 2 || samples[0].Left != 1 {
		t.Fatalf("Expected two high samples, got %v", samples)
	}
	b.Reset()
	if b.EarBit() || len(b.GetAudioSamples()) != 0 {
		t.Fatalf("Expected reset to clear the EAR bit and the buffer")
	}
}

func TestMixSamples_ShortestSourceBounds(t *testing.T) {
	a := []AudioSample{{1, 1}, {1, 0}, {0, 0}}
	b := []AudioSample{{1, 1}, {0, 1}}
	got := mixSamples(nil, 0.5, a, b)
	want := []AudioSample{{1, 1}, {0.5, 0.5}}
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPsgChip_Registers(t *testing.T) {
	p := NewPsgChip()
	if p.RegisterAt(7) != 0xFF {
		t.Fatalf("Expected the mixer to power up with every channel off")
	}
	p.WriteRegisterAt(0, 0x34)
	p.WriteRegisterAt(1, 0x12)
	if p.channels[0].tone != 0x234 {
		t.Fatalf("Expected 12-bit tone period 0x234, got 0x%X", p.channels[0].tone)
	}
	p.WriteRegisterAt(6, 0xFF)
	if p.noiseFreq != 0x1F {
		t.Fatalf("Expected 5-bit noise period, got 0x%X", p.noiseFreq)
	}
	p.WriteRegisterAt(9, 0x1A)
	if !p.channels[1].useEnv || p.channels[1].volume != 0x0A {
		t.Fatalf("Expected envelope mode with volume 10")
	}
	p.SetRegisterIndex(0x1D)
	if p.RegisterIndex() != 0x0D {
		t.Fatalf("Expected register index masked to 4 bits")
	}
}

func TestPsgChip_SquareWaveAverage(t *testing.T) {
	p := NewPsgChip()
	p.WriteRegisterAt(0, 1)    // tone A period 1
	p.WriteRegisterAt(7, 0x3E) // tone A only
	p.WriteRegisterAt(8, 0x0F)
	p.GenerateOutputValue()
	p.GenerateOutputValue()
	avg := p.takeOrphanAverage()
	if math.Abs(float64(avg)-1.0/6) > 1e-6 {
		t.Fatalf("Expected a 50%% duty square at full volume, got %f", avg)
	}
	if p.takeOrphanAverage() != 0 {
		t.Fatalf("Expected the orphan sum cleared")
	}
}

func TestPsgChip_NoiseStaysSeventeenBits(t *testing.T) {
	p := NewPsgChip()
	p.WriteRegisterAt(6, 1)
	for range 1000 {
		p.GenerateOutputValue()
		if p.noiseSeed >= 1<<17 {
			t.Fatalf("LFSR escaped 17 bits: 0x%X", p.noiseSeed)
		}
	}
}

func TestPsgEnvelopes_Shapes(t *testing.T) {
	tail := func(shape int) byte { return psgEnvelopes[shape*PSG_ENVELOPE_STEPS+PSG_ENVELOPE_STEPS-1] }
	if tail(0x00) != 0 {
		t.Fatalf("Expected decay then silence, got %d", tail(0x00))
	}
	if tail(0x0D) != 31 {
		t.Fatalf("Expected attack then hold at top, got %d", tail(0x0D))
	}
	if psgEnvelopes[0x0D*PSG_ENVELOPE_STEPS] != 0 {
		t.Fatalf("Expected attack to start at the bottom")
	}
}

func TestPsgDevice_StepsEverySixteenTacts(t *testing.T) {
	host := newAudioTestHost(SP128_CLOCK)
	d := NewPsgDevice(host, DEFAULT_SAMPLE_RATE)
	host.tacts = 16*10 + 15
	d.CalculateCurrentAudioValue()
	if d.chip.orphanSamples != 10 {
		t.Fatalf("Expected 10 generator steps, got %d", d.chip.orphanSamples)
	}
	d.WriteRegister(0x55)
	d.Reset()
	if d.ReadRegister() != 0 || d.Chip().RegisterAt(7) != 0xFF {
		t.Fatalf("Expected reset registers")
	}
}

func TestPsgDevice_MultiplierChangeKeepsStepping(t *testing.T) {
	host := newAudioTestHost(SP128_CLOCK)
	d := NewPsgDevice(host, DEFAULT_SAMPLE_RATE)
	host.tacts = 16 * 1000
	d.CalculateCurrentAudioValue()
	d.chip.takeOrphanAverage()

	host.multiplier = 4
	d.OnClockMultiplierChanged()
	host.tacts += 16 * 4 * 10
	d.CalculateCurrentAudioValue()
	if d.chip.orphanSamples != 10 {
		t.Fatalf("Expected 10 generator steps after the change, got %d", d.chip.orphanSamples)
	}
}

func TestSidDevice_Registers(t *testing.T) {
	s := NewSidDevice(newAudioTestHost(C64_CLOCK), DEFAULT_SAMPLE_RATE)

	s.WriteRegister(0x03, 0xFF)
	if got := s.ReadRegister(0x03); got != 0x0F {
		t.Fatalf("Expected 4-bit pulse width high, got 0x%02X", got)
	}
	s.WriteRegister(0x15, 0xFF)
	s.WriteRegister(0x16, 0x80)
	if got := s.FilterCutoff(); got != 0x407 {
		t.Fatalf("Expected cutoff 0x407, got 0x%X", got)
	}
	s.WriteRegister(0x20+0x18, 0x1F) // mirror
	if s.MasterVolume() != 0x0F || s.ReadRegister(0x18) != 0x1F {
		t.Fatalf("Expected mode/volume written through the mirror")
	}

	s.SetPaddles(0x11, 0x22)
	s.WriteRegister(0x19, 0x99)
	if s.ReadRegister(0x19) != 0x11 || s.ReadRegister(0x1A) != 0x22 {
		t.Fatalf("Expected read-only paddle registers")
	}
	if s.ReadRegister(0x1D) != 0 {
		t.Fatalf("Expected unused registers to read 0")
	}
}

func TestSidDevice_AttackReachesSustain(t *testing.T) {
	host := newAudioTestHost(C64_CLOCK)
	s := NewSidDevice(host, DEFAULT_SAMPLE_RATE)
	s.WriteRegister(0x13, 0x00) // voice 3 attack 0, decay 0
	s.WriteRegister(0x14, 0xF0) // sustain 15
	s.WriteRegister(0x12, SID_CTRL_GATE|SID_CTRL_TRIANGLE)

	host.tacts = 3000
	s.CalculateCurrentAudioValue()
	if got := s.ReadRegister(0x1C); got != 0xFF {
		t.Fatalf("Expected ENV3 at the sustain level, got 0x%02X", got)
	}

	s.WriteRegister(0x12, SID_CTRL_TRIANGLE) // gate off
	host.tacts += 100_000
	s.CalculateCurrentAudioValue()
	if got := s.ReadRegister(0x1C); got != 0 {
		t.Fatalf("Expected release to silence, got 0x%02X", got)
	}
}

func TestWavRecorder_WritesDecodableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	rec, err := CreateWavRecorder(path, DEFAULT_SAMPLE_RATE)
	if err != nil {
		t.Fatal(err)
	}
	samples := []AudioSample{{0, 1}, {0.5, 0.5}, {1, 0}}
	if err := rec.WriteSamples(samples); err != nil {
		t.Fatal(err)
	}
	if err := rec.WriteSamples(nil); err != nil {
		t.Fatal(err)
	}
	if rec.Frames() != 3 {
		t.Fatalf("Expected 3 frames, got %d", rec.Frames())
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatalf("Expected a valid WAV file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if buf.Format.NumChannels != 2 || buf.Format.SampleRate != DEFAULT_SAMPLE_RATE {
		t.Fatalf("Expected 16-bit stereo at %d Hz, got %+v", DEFAULT_SAMPLE_RATE, buf.Format)
	}
	want := []int{-32767, 32767, 0, 0, 32767, -32767}
	if len(buf.Data) != len(want) {
		t.Fatalf("Expected %d values, got %d", len(want), len(buf.Data))
	}
	for i := range want {
		if buf.Data[i] != want[i] {
			t.Fatalf("value %d: got %d, want %d", i, buf.Data[i], want[i])
		}
	}
}

func TestCreateWavRecorder_BadPath(t *testing.T) {
	_, err := CreateWavRecorder(filepath.Join(t.TempDir(), "missing", "out.wav"), DEFAULT_SAMPLE_RATE)
	var perr *PeripheralError
	if err == nil || !errors.As(err, &perr) {
		t.Fatalf("Expected a PeripheralError, got %v", err)
	}
}

func TestSampleRing_DropsWhenFull(t *testing.T) {
	r := &SampleRing{}
	if r.Pop() != 0 {
		t.Fatalf("Expected silence from an empty ring")
	}
	r.Push([]AudioSample{{1, 0}, {1, 1}})
	if r.Len() != 2 {
		t.Fatalf("Expected 2 samples, got %d", r.Len())
	}
	if v := r.Pop(); v != 0.5 {
		t.Fatalf("Expected mono 0.5, got %f", v)
	}
	r.Pop()
	if v := r.Pop(); v != 1 {
		t.Fatalf("Expected the last level held on underrun, got %f", v)
	}

	r.Push(make([]AudioSample, SAMPLE_RING_SIZE+10))
	if r.Len() != SAMPLE_RING_SIZE || r.Dropped() != 10 {
		t.Fatalf("Expected a full ring and 10 drops, got %d and %d", r.Len(), r.Dropped())
	}
}

func TestFrameBuffer_PresentAndCopy(t *testing.T) {
	ring := &SampleRing{}
	fb := NewFrameBuffer(ring)
	fb.PresentFrame([]uint32{0xFF112233, 0x80AABBCC}, 2, 1)

	if w, h := fb.Size(); w != 2 || h != 1 || fb.Frames() != 1 {
		t.Fatalf("Expected one 2x1 frame, got %dx%d after %d", w, h, fb.Frames())
	}
	dst := make([]byte, 8)
	if !fb.CopyTo(dst) {
		t.Fatalf("Expected copy to succeed")
	}
	want := []byte{0x11, 0x22, 0x33, 0xFF, 0xAA, 0xBB, 0xCC, 0x80}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("byte %d: got 0x%02X, want 0x%02X", i, dst[i], want[i])
		}
	}
	if fb.CopyTo(make([]byte, 4)) {
		t.Fatalf("Expected a size mismatch to fail")
	}

	fb.QueueSamples([]AudioSample{{1, 1}})
	if ring.Len() != 1 {
		t.Fatalf("Expected samples forwarded to the ring")
	}
}
