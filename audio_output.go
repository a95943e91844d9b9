//go:build !headless

// audio_output.go - Sound device output through oto

package main

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"
	log "github.com/sirupsen/logrus"
)

const AUDIO_DEVICE_BUFFER = 4096 // samples buffered by the device player

// AudioOutput plays the controller's sample ring on the host sound device.
// oto calls Read on its own goroutine; the ring is the only shared state.
type AudioOutput struct {
	ctx    *oto.Context
	player *oto.Player
	ring   *SampleRing
	log    *log.Entry

	mu        sync.Mutex
	playing   bool
	underruns int
}

// NewAudioOutput opens a mono float32 device at sampleRate.
func NewAudioOutput(sampleRate int, ring *SampleRing, logger *log.Entry) (*AudioOutput, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, &ConfigError{Operation: "audio", Details: "open sound device", Err: err}
	}
	<-ready

	a := &AudioOutput{ctx: ctx, ring: ring, log: logger.WithField("device", "audio")}
	a.player = ctx.NewPlayer(a)
	a.player.SetBufferSize(AUDIO_DEVICE_BUFFER * 4)
	return a, nil
}

// Read converts ring samples (0..1 device level) to signed float32 frames.
func (a *AudioOutput) Read(p []byte) (int, error) {
	n := len(p) / 4
	if a.ring.Len() < n {
		a.mu.Lock()
		a.underruns++
		a.mu.Unlock()
	}
	for i := range n {
		v := a.ring.Pop()*2 - 1
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v))
	}
	return n * 4, nil
}

func (a *AudioOutput) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.playing {
		a.player.Play()
		a.playing = true
	}
}

// Close stops playback and reports how often the device outran the machine.
func (a *AudioOutput) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.player != nil {
		_ = a.player.Close()
		a.player = nil
	}
	a.playing = false
	a.log.WithFields(log.Fields{
		"underruns": a.underruns,
		"dropped":   a.ring.Dropped(),
	}).Debug("audio closed")
}
