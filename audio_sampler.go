// audio_sampler.go - Tact-to-sample rate conversion shared by the audio devices

package main

// AudioSample is one stereo output sample, each channel in 0.0..1.0.
type AudioSample struct {
	Left  float32
	Right float32
}

// SampleGate converts the machine's tact clock into an audio sample stream
// with integer arithmetic only. Each sample lasts sampleLength tacts; the
// remainder of clock/rate is accumulated in gateValue and whenever it passes
// upperGate one extra tact is added, so the long run average is exact.
type SampleGate struct {
	host     MachineHost
	signal   func() AudioSample
	timebase audioTimebase

	sampleRate     int
	sampleLength   int
	lowerGate      int
	upperGate      int
	gateValue      int
	nextSampleTact uint64

	samples []AudioSample
}

func newSampleGate(host MachineHost, signal func() AudioSample) SampleGate {
	return SampleGate{host: host, signal: signal, timebase: audioTimebase{host: host}}
}

// audioTimebase counts machine tacts at the base clock. A multiplier change
// starts a new segment, so time stays continuous across it.
type audioTimebase struct {
	host        MachineHost
	multiplier  int
	originTacts uint64
	originTime  uint64
}

func (t *audioTimebase) now() uint64 {
	mult := max(1, t.host.ClockMultiplierValue())
	tacts := t.host.CurrentTacts()
	switch {
	case t.multiplier == 0:
		t.multiplier = mult
	case tacts < t.originTacts:
		t.restart()
		return 0
	case mult != t.multiplier:
		t.originTime += (tacts - t.originTacts) / uint64(t.multiplier)
		t.originTacts = tacts
		t.multiplier = mult
	}
	return t.originTime + (tacts-t.originTacts)/uint64(t.multiplier)
}

// restart makes the current tact time zero.
func (t *audioTimebase) restart() {
	t.multiplier = max(1, t.host.ClockMultiplierValue())
	t.originTacts = t.host.CurrentTacts()
	t.originTime = 0
}

// SetAudioSampleRate recomputes the gate for a new output rate.
func (g *SampleGate) SetAudioSampleRate(rate int) {
	if rate <= 0 {
		rate = DEFAULT_SAMPLE_RATE
	}
	clock := g.host.BaseClock()
	g.sampleRate = rate
	g.sampleLength = clock / rate
	g.lowerGate = clock % rate
	g.upperGate = rate
	g.gateValue = 0
	g.nextSampleTact = uint64(g.sampleLength)
	g.samples = g.samples[:0]
}

func (g *SampleGate) SampleRate() int { return g.sampleRate }

// SampleLength returns the integer part of tacts per sample.
func (g *SampleGate) SampleLength() int { return g.sampleLength }

// SetNextAudioSample stores a sample for every boundary crossed since the
// previous call. Machine tacts are scaled back by the clock multiplier so a
// faster CPU does not raise the pitch.
func (g *SampleGate) SetNextAudioSample() {
	if g.sampleLength == 0 {
		return
	}
	tacts := g.timebase.now()
	for tacts >= g.nextSampleTact {
		g.samples = append(g.samples, g.signal())
		g.gateValue += g.lowerGate
		g.nextSampleTact += uint64(g.sampleLength)
		if g.gateValue >= g.upperGate {
			g.nextSampleTact++
			g.gateValue -= g.upperGate
		}
	}
}

// GetAudioSamples returns the samples of the current frame. The slice is
// reused after the next OnNewFrame.
func (g *SampleGate) GetAudioSamples() []AudioSample {
	return g.samples
}

// OnNewFrame drops the previous frame's samples.
func (g *SampleGate) OnNewFrame() {
	g.samples = g.samples[:0]
}

// Rebase realigns the next sample boundary after the tact counter was
// rewound by a reset.
func (g *SampleGate) Rebase() {
	g.timebase.restart()
	g.gateValue = 0
	g.nextSampleTact = uint64(g.sampleLength)
	g.samples = g.samples[:0]
}

// OnClockMultiplierChanged closes the time segment of the old multiplier.
// Machines call it from the first tact of the frame that applies the change.
func (g *SampleGate) OnClockMultiplierChanged() {
	g.SetNextAudioSample()
}

// mixSamples sums the sources sample by sample into dst and scales the
// result. The shortest source bounds the mix.
func mixSamples(dst []AudioSample, scale float32, sources ...[]AudioSample) []AudioSample {
	n := -1
	for _, s := range sources {
		if n < 0 || len(s) < n {
			n = len(s)
		}
	}
	dst = dst[:0]
	for i := range max(n, 0) {
		var l, r float32
		for _, s := range sources {
			l += s[i].Left
			r += s[i].Right
		}
		dst = append(dst, AudioSample{Left: l * scale, Right: r * scale})
	}
	return dst
}
