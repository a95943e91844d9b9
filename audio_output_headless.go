//go:build headless

package main

import (
	log "github.com/sirupsen/logrus"
)

// AudioOutput without a sound device. The ring fills and counts its drops.
type AudioOutput struct {
	ring *SampleRing
	log  *log.Entry
}

func NewAudioOutput(sampleRate int, ring *SampleRing, logger *log.Entry) (*AudioOutput, error) {
	return &AudioOutput{ring: ring, log: logger.WithField("device", "audio")}, nil
}

func (a *AudioOutput) Start() {}

func (a *AudioOutput) Close() {
	a.log.WithField("dropped", a.ring.Dropped()).Debug("audio closed")
}
