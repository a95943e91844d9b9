package main

import (
	"errors"
	"testing"
)

// spectrumRoms builds blank 16K ROM pages for a profile with program at the
// start of page 0.
func spectrumRoms(t *testing.T, id string, program ...byte) MapRomSource {
	t.Helper()
	profile, err := lookupProfile(id)
	if err != nil {
		t.Fatal(err)
	}
	roms := MapRomSource{}
	for i, r := range profile.Roms {
		data := make([]byte, SPECTRUM_PAGE_SIZE)
		if i == 0 {
			copy(data, program)
		}
		roms[r.Name] = data
	}
	return roms
}

func newTestSpectrum(t *testing.T, id string, program ...byte) *spectrumMachine {
	t.Helper()
	opts := DefaultMachineOptions()
	opts.MachineID = id
	m, err := NewMachine(opts, nil, spectrumRoms(t, id, program...))
	if err != nil {
		t.Fatalf("NewMachine(%s): %v", id, err)
	}
	return m.Spectrum()
}

// TestSpectrum_NewMachineIsReady tests construction through the registry.
func TestSpectrum_NewMachineIsReady(t *testing.T) {
	s := newTestSpectrum(t, "sp48")
	if s == nil {
		t.Fatalf("Expected a Spectrum model")
	}
	if s.State() != StateReady {
		t.Fatalf("Expected ready, got %s", s.State())
	}
	if s.C64() != nil || s.Z88() != nil {
		t.Fatalf("Expected no C64 or Z88 view of a Spectrum")
	}
	if s.Psg() != nil || s.Floppy() != nil {
		t.Fatalf("Expected no AY or floppy on the 48K")
	}
}

// TestSpectrum_FrameLengths tests the tacts per frame of every model.
func TestSpectrum_FrameLengths(t *testing.T) {
	tests := map[string]int{
		"sp48":  69888,
		"sp128": 70908,
		"spp2":  70908,
		"spp3":  70908,
	}
	for id, want := range tests {
		t.Run(id, func(t *testing.T) {
			s := newTestSpectrum(t, id)
			if s.TactsInFrame != want {
				t.Fatalf("Expected %d tacts per frame, got %d", want, s.TactsInFrame)
			}
			if n := len(s.screen.table); n != want {
				t.Fatalf("Expected rendering table of %d entries, got %d", want, n)
			}
		})
	}
}

// TestSpectrum_ContentionPattern tests the well known contention delays
// around the first display line.
func TestSpectrum_ContentionPattern(t *testing.T) {
	tests := []struct {
		id    string
		start int
		want  []int
	}{
		{"sp48", 14335, []int{6, 5, 4, 3, 2, 1, 0, 0, 6}},
		{"sp128", 14361, []int{6, 5, 4, 3, 2, 1, 0, 0, 6}},
	}
	for _, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			s := newTestSpectrum(t, tc.id)
			for i, want := range tc.want {
				if got := s.ContentionValues[tc.start+i]; got != want {
					t.Fatalf("tact %d: expected %d, got %d", tc.start+i, want, got)
				}
			}
			if got := s.ContentionValues[tc.start-1]; got != 0 {
				t.Fatalf("Expected no contention before the display, got %d", got)
			}
		})
	}
}

// TestSpectrum_BorderColor tests that OUT (0xFE) reaches the rendered
// border.
func TestSpectrum_BorderColor(t *testing.T) {
	// LD A,2; OUT (0xFE),A; HALT
	s := newTestSpectrum(t, "sp48", 0x3E, 0x02, 0xD3, 0xFE, 0x76)
	if mode := s.ExecuteMachineFrame(); mode != FrameCompleted {
		t.Fatalf("Expected frame-completed, got %s", mode)
	}
	if s.screen.BorderColor != 2 {
		t.Fatalf("Expected border 2, got %d", s.screen.BorderColor)
	}
	if got := s.PixelBuffer()[0]; got != spectrumColors[2] {
		t.Fatalf("Expected red border pixel, got 0x%08X", got)
	}
	w, _ := s.ScreenSize()
	if w != 352 {
		t.Fatalf("Expected 352 pixel wide screen, got %d", w)
	}
}

// TestScreenDevice_TableCoversVisibleRows tests that some tact draws every
// pixel pair of every visible row, the left border of the top row included.
func TestScreenDevice_TableCoversVisibleRows(t *testing.T) {
	for _, id := range []string{"sp48", "sp128"} {
		screen := newTestSpectrum(t, id).Screen()
		cfg := screen.Configuration()
		drawn := make(map[int]bool)
		for tact := range screen.TactsInFrame {
			if rt := screen.RenderingTactAt(tact); rt.Phase != PhaseNone {
				drawn[rt.PixelIndex] = true
			}
		}
		rows := screen.RasterLines - cfg.NonVisibleBorderBottomLines - screen.firstVisibleLine + 1
		for row := range rows {
			for x := 0; x < screen.ScreenWidth; x += 2 {
				if !drawn[row*screen.ScreenWidth+x] {
					t.Fatalf("%s: pixel %d of row %d is never drawn", id, x, row)
				}
			}
		}
	}
}

// TestSpectrum_AudioAfterClockMultiplierChange tests that every frame keeps
// its share of samples when the CPU clock is raised or lowered.
func TestSpectrum_AudioAfterClockMultiplierChange(t *testing.T) {
	s := newTestSpectrum(t, "sp128", 0x76)
	perFrame := s.TactsInFrame * DEFAULT_SAMPLE_RATE / s.Profile.BaseClock
	check := func(phase string) {
		t.Helper()
		for i := range 10 {
			s.ExecuteMachineFrame()
			if n := len(s.AudioSamples()); n < perFrame-2 || n > perFrame+2 {
				t.Fatalf("%s frame %d: got %d samples, want about %d", phase, i, n, perFrame)
			}
			if lag := s.psg.timebase.now() - s.psg.lastTact; lag >= PSG_CLOCK_DIVIDER {
				t.Fatalf("%s frame %d: AY generator %d tacts behind", phase, i, lag)
			}
		}
	}
	for range 50 {
		s.ExecuteMachineFrame()
	}
	s.SetClockMultiplier(2)
	check("x2")
	s.SetClockMultiplier(1)
	check("x1")
}

// TestSpectrum_DisplayPixels tests that the first display byte is drawn with
// its attribute.
func TestSpectrum_DisplayPixels(t *testing.T) {
	s := newTestSpectrum(t, "sp48", 0x76)
	bank := s.Memory().Bank(0)
	bank[0] = 0x80
	bank[SCREEN_ATTR_OFFSET] = 0x38 // white paper, black ink

	s.ExecuteMachineFrame()

	// First display line, after the left border.
	const index = 17296
	pixels := s.PixelBuffer()
	if pixels[index] != spectrumColors[0] {
		t.Fatalf("Expected ink pixel, got 0x%08X", pixels[index])
	}
	if pixels[index+1] != spectrumColors[7] {
		t.Fatalf("Expected paper pixel, got 0x%08X", pixels[index+1])
	}
}

// TestSpectrum_KeyboardPort tests the half-row keyboard read.
func TestSpectrum_KeyboardPort(t *testing.T) {
	s := newTestSpectrum(t, "sp48")
	s.SetKeyStatus(SpKeyA, true)
	if got := s.DoReadPort(0xFDFE) & 0x1F; got != 0x1E {
		t.Fatalf("Expected A on row 0xFD, got 0x%02X", got)
	}
	if got := s.DoReadPort(0xFEFE) & 0x1F; got != 0x1F {
		t.Fatalf("Expected nothing on row 0xFE, got 0x%02X", got)
	}
	if got := s.DoReadPort(0x00FE) & 0x1F; got != 0x1E {
		t.Fatalf("Expected A when all rows are selected, got 0x%02X", got)
	}
}

// TestSpectrum_EarBitByIssue tests the EAR echo of bits 3 and 4 on issue 2
// and issue 3 boards.
func TestSpectrum_EarBitByIssue(t *testing.T) {
	s := newTestSpectrum(t, "sp48")

	s.DoWritePort(0x00FE, 0x18)
	if s.DoReadPort(0xFFFE)&0x40 == 0 {
		t.Fatalf("Expected EAR high with bit 4 set")
	}

	s.DoWritePort(0x00FE, 0x08)
	if s.DoReadPort(0xFFFE)&0x40 != 0 {
		t.Fatalf("Expected issue 3 to ignore bit 3 alone")
	}

	s.ulaIssue = 2
	if s.DoReadPort(0xFFFE)&0x40 == 0 {
		t.Fatalf("Expected issue 2 to sense bit 3")
	}
}

// TestSpectrum_FloatingBus tests that an idle port read returns the byte
// the ULA fetches in that tact.
func TestSpectrum_FloatingBus(t *testing.T) {
	s := newTestSpectrum(t, "sp48")
	s.Memory().Bank(0)[1] = 0xAB

	s.CurrentFrameTact = 0
	if got := s.DoReadPort(0x40FF); got != 0xFF {
		t.Fatalf("Expected 0xFF outside the display, got 0x%02X", got)
	}
	s.CurrentFrameTact = 14336
	if got := s.DoReadPort(0x40FF); got != 0xAB {
		t.Fatalf("Expected the fetched pixel byte, got 0x%02X", got)
	}

	p3 := newTestSpectrum(t, "spp3")
	p3.CurrentFrameTact = 14364
	if got := p3.DoReadPort(0x40FF); got != 0xFF {
		t.Fatalf("Expected no floating bus on the +3, got 0x%02X", got)
	}
}

// TestSpectrum_128PagingThroughPort tests OUT to 0x7FFD from code.
func TestSpectrum_128PagingThroughPort(t *testing.T) {
	// LD BC,0x7FFD; LD A,0x13; OUT (C),A, then NOPs in the blank ROM 1
	s := newTestSpectrum(t, "sp128", 0x01, 0xFD, 0x7F, 0x3E, 0x13, 0xED, 0x79)
	s.ExecuteMachineFrame()
	if p := s.PartitionOf(0xC000); p != 3 {
		t.Fatalf("Expected bank 3 at 0xC000, got %d", p)
	}
	if p := s.PartitionOf(0x0000); p != -2 {
		t.Fatalf("Expected ROM 1 at 0x0000, got %d", p)
	}
	if !s.Is48RomSelected() {
		t.Fatalf("Expected the 48K BASIC ROM selected")
	}
}

// TestSpectrum_PsgRegisters tests the AY ports of the 128K.
func TestSpectrum_PsgRegisters(t *testing.T) {
	s := newTestSpectrum(t, "sp128")
	s.DoWritePort(0xFFFD, 0x07)
	s.DoWritePort(0xBFFD, 0x38)
	if got := s.DoReadPort(0xFFFD); got != 0x38 {
		t.Fatalf("Expected mixer register 0x38, got 0x%02X", got)
	}
}

// TestSpectrum_SampleCountPerFrame tests that the beeper delivers the
// sample count the tact clock implies.
func TestSpectrum_SampleCountPerFrame(t *testing.T) {
	s := newTestSpectrum(t, "sp48", 0x76)
	total := 0
	for range 10 {
		s.ExecuteMachineFrame()
		total += len(s.AudioSamples())
	}
	want := int(s.Tacts * DEFAULT_SAMPLE_RATE / SP48_CLOCK)
	if total < want-1 || total > want+1 {
		t.Fatalf("Expected %d±1 samples, got %d", want, total)
	}
}

// TestSpectrum_HardResetIsIdempotent tests reset stability on a real model.
func TestSpectrum_HardResetIsIdempotent(t *testing.T) {
	s := newTestSpectrum(t, "sp128")
	s.ExecuteMachineFrame()
	s.HardReset()
	once := s.Snapshot()
	partitions := s.Memory().Partitions()
	s.HardReset()
	if twice := s.Snapshot(); once != twice {
		t.Fatalf("Expected %+v, got %+v", once, twice)
	}
	if s.Memory().Partitions() != partitions {
		t.Fatalf("Expected identical paging after a second reset")
	}
}

// TestSpectrum_TypeText tests that BASIC text becomes keystrokes.
func TestSpectrum_TypeText(t *testing.T) {
	s := newTestSpectrum(t, "sp48")
	if n := s.TypeText("Print 1\n"); n != 8 {
		t.Fatalf("Expected 8 keystrokes, got %d", n)
	}
	if first := s.keyStrokes[0]; first.Primary != SpKeyP || first.Secondary != SpKeyCapsShift {
		t.Fatalf("Expected CAPS SHIFT+P, got %+v", first)
	}
}

// TestNewMachine_Errors tests the configuration failures of the registry.
func TestNewMachine_Errors(t *testing.T) {
	opts := DefaultMachineOptions()
	opts.MachineID = "zx81"
	if _, err := NewMachine(opts, nil, MapRomSource{}); !errors.Is(err, ErrUnknownMachine) {
		t.Fatalf("Expected unknown machine, got %v", err)
	}

	opts.MachineID = "sp48"
	if _, err := NewMachine(opts, nil, MapRomSource{}); !errors.Is(err, ErrRomMissing) {
		t.Fatalf("Expected missing rom, got %v", err)
	}
	if _, err := NewMachine(opts, nil, MapRomSource{"sp48": make([]byte, 100)}); !errors.Is(err, ErrRomSize) {
		t.Fatalf("Expected rom size error, got %v", err)
	}
	var cfg *ConfigError
	_, err := NewMachine(opts, nil, DirRomSource{Dir: t.TempDir()})
	if !errors.As(err, &cfg) || !errors.Is(err, ErrRomMissing) {
		t.Fatalf("Expected a ConfigError for a missing rom file, got %v", err)
	}
}

// TestSpectrumMemory_48Layout tests the fixed 48K map.
func TestSpectrumMemory_48Layout(t *testing.T) {
	m := NewSpectrumMemory(1, 3, newBankPolicy(Paging48))
	want := [SPECTRUM_SLOTS]int{-1, -1, 0, 0, 1, 1, 2, 2}
	if got := m.Partitions(); got != want {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	m.Write(0x0000, 0x55)
	if m.Read(0x0000) != 0 {
		t.Fatalf("Expected ROM write to be ignored")
	}
	m.Write(0x8000, 0x55)
	if m.Bank(1)[0] != 0x55 {
		t.Fatalf("Expected write to land in bank 1")
	}
	if !m.IsContended(0x4000) || m.IsContended(0x8000) {
		t.Fatalf("Expected only 0x4000-0x7FFF contended")
	}
}

// TestSpectrumMemory_128Paging tests 0x7FFD decoding and the lock bit.
func TestSpectrumMemory_128Paging(t *testing.T) {
	m := NewSpectrumMemory(2, 8, newBankPolicy(Paging128))
	if !m.WritePort(0x7FFD, 0x19) {
		t.Fatalf("Expected 0x7FFD to be a paging port")
	}
	if m.PartitionOf(0xC000) != 1 || m.PartitionOf(0x0000) != -2 {
		t.Fatalf("Expected bank 1 and ROM 1, got %v", m.Partitions())
	}
	if !m.IsContended(0xC000) {
		t.Fatalf("Expected odd bank at 0xC000 to be contended")
	}
	if m.policy.ScreenBank(m) != 7 {
		t.Fatalf("Expected shadow screen in bank 7")
	}
	if m.WritePort(0xFFFD, 0x00) {
		t.Fatalf("Expected 0xFFFD not to page")
	}

	m.WritePort(0x7FFD, 0x24) // bank 4, lock
	m.WritePort(0x7FFD, 0x07)
	if m.PartitionOf(0xC000) != 4 {
		t.Fatalf("Expected locked paging to keep bank 4, got %d", m.PartitionOf(0xC000))
	}
	m.Reset()
	if !m.PagingEnabled || m.PartitionOf(0xC000) != 0 {
		t.Fatalf("Expected reset to unlock paging")
	}
}

// TestSpectrumMemory_Plus3Special tests the all-RAM configurations and the
// disk motor bit.
func TestSpectrumMemory_Plus3Special(t *testing.T) {
	m := NewSpectrumMemory(4, 8, newBankPolicy(PagingPlus3))

	m.WritePort(0x1FFD, 0x07) // special, config 3
	want := [SPECTRUM_SLOTS]int{4, 4, 7, 7, 6, 6, 3, 3}
	if got := m.Partitions(); got != want {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	if !m.IsContended(0x0000) || m.IsContended(0xC000) {
		t.Fatalf("Expected banks 4-7 contended only")
	}

	m.WritePort(0x1FFD, 0x0C) // normal paging, ROM high bit, motor on
	m.WritePort(0x7FFD, 0x10)
	if m.SelectedRom != 3 || !m.Is48RomSelected() {
		t.Fatalf("Expected ROM 3 selected, got %d", m.SelectedRom)
	}
	if !m.DiskMotorOn {
		t.Fatalf("Expected disk motor on")
	}
}
