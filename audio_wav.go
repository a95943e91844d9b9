// audio_wav.go - Records the machine's audio output to a WAV file

package main

import (
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	WAV_BIT_DEPTH = 16
	WAV_CHANNELS  = 2
	wavPcmFormat  = 1
)

// WavRecorder appends every frame's samples to a 16-bit stereo WAV stream.
// Close must be called to patch the header sizes.
type WavRecorder struct {
	enc    *wav.Encoder
	closer io.Closer
	buf    *audio.IntBuffer
	frames int
}

func NewWavRecorder(w io.WriteSeeker, sampleRate int) *WavRecorder {
	return &WavRecorder{
		enc: wav.NewEncoder(w, sampleRate, WAV_BIT_DEPTH, WAV_CHANNELS, wavPcmFormat),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: WAV_CHANNELS, SampleRate: sampleRate},
			SourceBitDepth: WAV_BIT_DEPTH,
		},
	}
}

// CreateWavRecorder opens path for writing.
func CreateWavRecorder(path string, sampleRate int) (*WavRecorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &PeripheralError{Device: "wav", Source: path, Err: err}
	}
	r := NewWavRecorder(f, sampleRate)
	r.closer = f
	return r, nil
}

// WriteSamples converts 0..1 samples to signed 16-bit and encodes them.
func (r *WavRecorder) WriteSamples(samples []AudioSample) error {
	if len(samples) == 0 {
		return nil
	}
	data := r.buf.Data[:0]
	for _, s := range samples {
		data = append(data, toPcm16(s.Left), toPcm16(s.Right))
	}
	r.buf.Data = data
	r.frames += len(samples)
	return r.enc.Write(r.buf)
}

// Frames returns the number of stereo frames written.
func (r *WavRecorder) Frames() int { return r.frames }

func (r *WavRecorder) Close() error {
	err := r.enc.Close()
	if r.closer != nil {
		if cerr := r.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func toPcm16(v float32) int {
	v = min(max(v, 0), 1)
	return int((v*2 - 1) * 32767)
}
