// tape_wav.go - Sampled tape recordings played through the EAR input

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
)

// WavTape holds the first channel of a recording as signed levels. The EAR
// bit is high while the sample under the tape head is above the threshold.
type WavTape struct {
	SampleRate int
	Threshold  int
	levels     []int
}

// DecodeWavTape reads a whole WAV stream.
func DecodeWavTape(r io.ReadSeeker) (*WavTape, error) {
	dec := wav.NewDecoder(r)
	if dec == nil || !dec.IsValidFile() {
		return nil, &PeripheralError{Device: "tape", Source: "wav", Err: ErrTapeFormat}
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, &PeripheralError{Device: "tape", Source: "wav", Err: fmt.Errorf("decode: %w", err)}
	}
	chans := max(1, int(dec.NumChans))
	w := &WavTape{SampleRate: int(dec.SampleRate)}
	w.levels = make([]int, 0, len(buf.Data)/chans)
	for i := 0; i < len(buf.Data); i += chans {
		w.levels = append(w.levels, buf.Data[i])
	}
	// Unsigned 8-bit files are centred on 128.
	if dec.BitDepth == 8 {
		for i := range w.levels {
			w.levels[i] -= 128
		}
	}
	if w.SampleRate == 0 {
		return nil, &PeripheralError{Device: "tape", Source: "wav", Err: ErrTapeFormat}
	}
	return w, nil
}

func LoadWavTape(path string) (*WavTape, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &PeripheralError{Device: "tape", Source: path, Err: err}
	}
	defer f.Close()
	return DecodeWavTape(f)
}

// Len returns the number of samples.
func (w *WavTape) Len() int { return len(w.levels) }

// LevelAt returns the EAR level tacts after playback started. ok is false
// once the recording has ended.
func (w *WavTape) LevelAt(tacts uint64, clock int) (level bool, ok bool) {
	idx := tacts * uint64(w.SampleRate) / uint64(max(1, clock))
	if idx >= uint64(len(w.levels)) {
		return true, false
	}
	return w.levels[idx] > w.Threshold, true
}
