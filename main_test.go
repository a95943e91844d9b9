package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestParseFlags_Defaults(t *testing.T) {
	opts, cli, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if opts.MachineID != "sp48" || opts.SampleRate != DEFAULT_SAMPLE_RATE || !opts.FastLoad {
		t.Fatalf("Unexpected defaults %+v", opts)
	}
	if cli.CardSlot != 3 || cli.SaveDir != "." || cli.Tape != "" {
		t.Fatalf("Unexpected cli defaults %+v", cli)
	}
}

func TestParseFlags_Values(t *testing.T) {
	opts, cli, err := parseFlags([]string{
		"-machine", "z88", "-z88ram", "128", "-clock", "2", "-headless",
		"-type", `run\n`, "-frames", "50", "game.tap",
	})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if opts.MachineID != "z88" || opts.Z88RamKB != 128 || opts.ClockMultiplier != 2 || !opts.Headless {
		t.Fatalf("Unexpected options %+v", opts)
	}
	if cli.Tape != "game.tap" || cli.Frames != 50 || cli.TypeText != `run\n` {
		t.Fatalf("Unexpected cli %+v", cli)
	}
}

func TestParseFlags_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"unknown machine", []string{"-machine", "vic20"}, ErrUnknownMachine},
		{"ula issue", []string{"-ula", "1"}, ErrInvalidOption},
		{"clock", []string{"-clock", "99"}, ErrInvalidOption},
		{"z88 ram", []string{"-machine", "z88", "-z88ram", "100"}, ErrInvalidOption},
		{"drives", []string{"-machine", "spp3", "-drives", "3"}, ErrInvalidOption},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := parseFlags(tc.args)
			var cerr *ConfigError
			if !errors.As(err, &cerr) || !errors.Is(err, tc.want) {
				t.Fatalf("Expected %v, got %v", tc.want, err)
			}
		})
	}

	if _, _, err := parseFlags([]string{"-nosuchflag"}); err == nil {
		t.Fatalf("Expected an unknown flag to fail")
	}
}

func TestParseUint16Flag(t *testing.T) {
	tests := map[string]uint16{"0x8000": 0x8000, "1234": 1234, "0": 0, "0xFFFF": 0xFFFF}
	for in, want := range tests {
		got, err := parseUint16Flag(in)
		if err != nil || got != want {
			t.Fatalf("%s: got %d, %v, want %d", in, got, err, want)
		}
	}
	for _, in := range []string{"0x10000", "zz", "-1"} {
		if _, err := parseUint16Flag(in); err == nil {
			t.Fatalf("%s: expected an error", in)
		}
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger("debug", os.Stderr)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	if logger.GetLevel() != log.DebugLevel {
		t.Fatalf("Expected debug level, got %s", logger.GetLevel())
	}
	if _, err := newLogger("loud", nil); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("Expected invalid level error, got %v", err)
	}
}

func TestAttachTape(t *testing.T) {
	s := newTestSpectrum(t, "sp48")
	dir := t.TempDir()

	if err := attachTape(s.Machine, filepath.Join(dir, "missing.tap"), dir); err == nil {
		t.Fatalf("Expected a missing tape to fail")
	}

	path := filepath.Join(dir, "game.tap")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	blocks := []TapeDataBlock{NewStandardTapeBlock([]byte{0xFF, 0x01, 0xFE})}
	if err := WriteTapBlocks(f, blocks); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	if err := attachTape(s.Machine, path, dir); err != nil {
		t.Fatalf("attachTape: %v", err)
	}
	collector, ok := s.Tape().Saver.(*TapCollector)
	if !ok || collector.Dir != dir {
		t.Fatalf("Expected a tap collector saving to %s", dir)
	}
}

func TestAttachMedia_WrongModel(t *testing.T) {
	s := newTestSpectrum(t, "sp48")
	if err := attachDisk(s.Machine, "a.dsk"); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("Expected no floppy on the 48K, got %v", err)
	}
	if err := attachCard(s.Machine, "a.epr", 1); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("Expected no card slots on a Spectrum, got %v", err)
	}

	z := newTestZ88(t)
	if err := attachTape(z.Machine, "a.tap", "."); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("Expected no tape on the Z88, got %v", err)
	}

	// Failures only disable the peripheral.
	attachMedia(s.Machine, cliConfig{Tape: "missing.tap", Disk: "missing.dsk", Card: "missing.epr"})
}

func TestAttachCard(t *testing.T) {
	z := newTestZ88(t)
	path := filepath.Join(t.TempDir(), "card.epr")
	card := make([]byte, 0x8000)
	card[0] = 0x5A
	if err := os.WriteFile(path, card, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := attachCard(z.Machine, path, 3); err != nil {
		t.Fatalf("attachCard: %v", err)
	}
	z.DoWritePort(0x00D1, 0xC0)
	if got := z.DoReadMemory(0x4000); got != 0x5A {
		t.Fatalf("Expected card byte 0x5A in slot 3, got 0x%02X", got)
	}
}

func TestRunScriptString(t *testing.T) {
	s := newTestSpectrum(t, "sp48")
	script := `
poke(0x8000, 42)
assert(peek(0x8000) == 42)
assert(machine() == "sp48")
assert(frames(2) == "frame-completed")
assert(tacts() > 0)
assert(reg("pc") >= 0)
assert(typetext("hi") == 2)
assert(type(1) == "number")
key(0, true)
key(0, false)
reset(true)
assert(tacts() == 0)
assert(peek(0x8000) == 0)
`
	if err := RunScriptString(s.Machine, script); err != nil {
		t.Fatalf("RunScriptString: %v", err)
	}
}

func TestRunScriptString_Errors(t *testing.T) {
	s := newTestSpectrum(t, "sp48")
	for _, src := range []string{"frames(-1)", `reg("zz")`, "this is not lua", "assert(false)"} {
		if err := RunScriptString(s.Machine, src); err == nil {
			t.Fatalf("%q: expected an error", src)
		}
	}
	if err := RunScriptFile(s.Machine, filepath.Join(t.TempDir(), "none.lua")); err == nil {
		t.Fatalf("Expected a missing script to fail")
	}
}

func TestTerminalHost_Route(t *testing.T) {
	ctrl := NewMachineController(nil, nil)
	h := NewTerminalHost(ctrl)

	h.route([]byte("ab\r"))
	select {
	case text := <-ctrl.Text:
		if text != "ab\n" {
			t.Fatalf("Expected CR translated to newline, got %q", text)
		}
	default:
		t.Fatalf("Expected routed text")
	}

	h.route([]byte{'x', CTRL_C})
	select {
	case cmd := <-ctrl.Commands:
		if cmd != CmdStop {
			t.Fatalf("Expected stop, got %v", cmd)
		}
	default:
		t.Fatalf("Expected Ctrl-C to stop the machine")
	}
	if len(ctrl.Text) != 0 {
		t.Fatalf("Expected no text after Ctrl-C")
	}
}
