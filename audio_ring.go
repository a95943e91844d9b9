// audio_ring.go - Single producer, single consumer sample ring

package main

import (
	"sync/atomic"
)

const SAMPLE_RING_SIZE = 1 << 14 // power of two

// SampleRing carries mono samples from the controller goroutine to the audio
// device callback. Push drops samples when the ring is full; Pop returns the
// last sample again when it is empty so underruns hold the level.
type SampleRing struct {
	buf   [SAMPLE_RING_SIZE]float32
	head  atomic.Uint64 // next write
	tail  atomic.Uint64 // next read
	last  float32
	drops atomic.Uint64
}

func (r *SampleRing) Push(samples []AudioSample) {
	head := r.head.Load()
	tail := r.tail.Load()
	for _, s := range samples {
		if head-tail >= SAMPLE_RING_SIZE {
			r.drops.Add(1)
			continue
		}
		r.buf[head&(SAMPLE_RING_SIZE-1)] = (s.Left + s.Right) * 0.5
		head++
	}
	r.head.Store(head)
}

func (r *SampleRing) Pop() float32 {
	tail := r.tail.Load()
	if tail == r.head.Load() {
		return r.last
	}
	r.last = r.buf[tail&(SAMPLE_RING_SIZE-1)]
	r.tail.Store(tail + 1)
	return r.last
}

func (r *SampleRing) Len() int {
	return int(r.head.Load() - r.tail.Load())
}

func (r *SampleRing) Dropped() uint64 { return r.drops.Load() }
