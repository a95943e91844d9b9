// host_frame.go - Frame hand-off between the controller and a host

package main

import (
	"sync"
)

// FrameBuffer is the controller-to-host frame store. PresentFrame runs on
// the controller goroutine; the host copies the RGBA bytes out under the
// read lock.
type FrameBuffer struct {
	mu     sync.RWMutex
	rgba   []byte
	width  int
	height int
	frames uint64
	ring   *SampleRing
}

func NewFrameBuffer(ring *SampleRing) *FrameBuffer {
	return &FrameBuffer{ring: ring}
}

func (f *FrameBuffer) PresentFrame(pixels []uint32, width, height int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n := width * height * 4; len(f.rgba) != n {
		f.rgba = make([]byte, n)
	}
	f.width, f.height = width, height
	argbToRGBA(f.rgba, pixels)
	f.frames++
}

func (f *FrameBuffer) QueueSamples(samples []AudioSample) {
	if f.ring != nil {
		f.ring.Push(samples)
	}
}

// Size returns the dimensions of the last presented frame.
func (f *FrameBuffer) Size() (int, int) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.width, f.height
}

func (f *FrameBuffer) Frames() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.frames
}

// CopyTo copies the last frame into dst when the sizes match.
func (f *FrameBuffer) CopyTo(dst []byte) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(dst) != len(f.rgba) {
		return false
	}
	copy(dst, f.rgba)
	return true
}

// argbToRGBA converts 0xAARRGGBB pixels to RGBA bytes.
func argbToRGBA(dst []byte, src []uint32) {
	for i, p := range src {
		o := i * 4
		if o+3 >= len(dst) {
			return
		}
		dst[o] = byte(p >> 16)
		dst[o+1] = byte(p >> 8)
		dst[o+2] = byte(p)
		dst[o+3] = byte(p >> 24)
	}
}
