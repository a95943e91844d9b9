// main.go - Command line entry point: build a machine, attach media and run it

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/intuitionamiga/retrocore
License: GPLv3 or later
*/

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

func boilerPlate() {
	fmt.Println("\n\033[38;2;255;20;147m ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████\033[0m\n\033[38;2;255;50;147m▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀\033[0m\n\033[38;2;255;80;147m▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███\033[0m\n\033[38;2;255;110;147m░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄\033[0m\n\033[38;2;255;140;147m░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒\033[0m\n\033[38;2;255;170;147m░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░\033[0m\n\033[38;2;255;200;147m ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░\033[0m\n\033[38;2;255;230;147m ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░\033[0m\n\033[38;2;255;255;147m ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░\033[0m")
	fmt.Println("\nCycle exact ZX Spectrum, Commodore 64 and Cambridge Z88 machines.")
	fmt.Println("(c) 2024 - 2026 Zayn Otley")
	fmt.Println("https://github.com/intuitionamiga/retrocore")
	fmt.Println("Buy me a coffee: https://ko-fi.com/intuition/tip")
	fmt.Println("License: GPLv3 or later")
}

// cliConfig holds the flags that are not machine options.
type cliConfig struct {
	Tape       string
	Disk       string
	Card       string
	CardSlot   int
	Script     string
	Record     string
	SaveDir    string
	TypeText   string
	Frames     int
	Breakpoint string
}

func parseFlags(args []string) (MachineOptions, cliConfig, error) {
	opts := DefaultMachineOptions()
	var cli cliConfig

	flagSet := flag.NewFlagSet("retrocore", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&opts.MachineID, "machine", opts.MachineID, "Machine: "+strings.Join(MachineIDs(), ", "))
	flagSet.IntVar(&opts.ClockMultiplier, "clock", opts.ClockMultiplier, "CPU clock multiplier (1-24)")
	flagSet.IntVar(&opts.SampleRate, "rate", opts.SampleRate, "Audio sample rate in Hz")
	flagSet.Float64Var(&opts.SoundLevel, "volume", opts.SoundLevel, "Output level (0.0-1.0)")
	flagSet.StringVar(&opts.RomDir, "roms", opts.RomDir, "Directory holding <name>.rom images")
	flagSet.BoolVar(&opts.FastLoad, "fastload", opts.FastLoad, "Load tape blocks instantly at the ROM loader")
	flagSet.IntVar(&opts.FloppyDrives, "drives", opts.FloppyDrives, "+3 floppy drives (0-2)")
	flagSet.StringVar(&opts.LogLevel, "log", opts.LogLevel, "Log level (debug, info, warn, error)")
	flagSet.BoolVar(&opts.Headless, "headless", opts.Headless, "Run without window and sound device")
	flagSet.IntVar(&opts.UlaIssue, "ula", opts.UlaIssue, "Spectrum ULA issue (2 or 3)")
	flagSet.IntVar(&opts.Z88RamKB, "z88ram", opts.Z88RamKB, "Z88 internal RAM in KB (32-512)")
	flagSet.StringVar(&cli.Tape, "tape", "", "Spectrum tape image (.tap or .wav)")
	flagSet.StringVar(&cli.Disk, "disk", "", "+3 disk image (.dsk) for drive A")
	flagSet.StringVar(&cli.Card, "card", "", "Z88 EPROM card image")
	flagSet.IntVar(&cli.CardSlot, "slot", 3, "Z88 card slot (1-3)")
	flagSet.StringVar(&cli.Script, "script", "", "Lua script to run against the machine")
	flagSet.StringVar(&cli.Record, "record", "", "Record audio to this .wav file")
	flagSet.StringVar(&cli.SaveDir, "savedir", ".", "Directory for tapes saved by the machine")
	flagSet.StringVar(&cli.TypeText, "type", "", "Text typed into the machine once it is ready")
	flagSet.IntVar(&cli.Frames, "frames", 0, "Headless: stop after this many frames (0 runs forever)")
	flagSet.StringVar(&cli.Breakpoint, "break", "", "Pause at this address (hex or decimal)")
	flagSet.Usage = func() {
		flagSet.SetOutput(os.Stdout)
		fmt.Println("Usage: ./retrocore [-machine sp48|sp128|spp2|spp3|c64|z88] [-tape file] [-disk file] [-script file.lua]")
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.Usage()
		}
		return opts, cli, err
	}
	if flagSet.NArg() > 0 && cli.Tape == "" {
		cli.Tape = flagSet.Arg(0)
	}
	opts.Normalize()
	return opts, cli, opts.Validate()
}

func main() {
	boilerPlate()

	opts, cli, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if err := run(opts, cli); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts MachineOptions, cli cliConfig) error {
	logger, err := newLogger(opts.LogLevel, os.Stderr)
	if err != nil {
		return err
	}
	m, err := NewMachine(opts, logger, nil)
	if err != nil {
		return err
	}
	defer m.Dispose()

	attachMedia(m, cli)
	if cli.Breakpoint != "" {
		addr, err := parseUint16Flag(cli.Breakpoint)
		if err != nil {
			return fmt.Errorf("break: %w", err)
		}
		m.Context.AddBreakpoint(addr)
	}
	if cli.TypeText != "" {
		m.TypeText(strings.ReplaceAll(cli.TypeText, `\n`, "\n"))
	}

	// A script runs to completion first; headless runs end with it.
	if cli.Script != "" {
		if err := RunScriptFile(m, cli.Script); err != nil || opts.Headless {
			return err
		}
	}

	ring := &SampleRing{}
	frames := NewFrameBuffer(ring)
	var sink FrameSink = frames
	if cli.Record != "" {
		rec, err := CreateWavRecorder(cli.Record, opts.SampleRate)
		if err != nil {
			return err
		}
		defer rec.Close()
		sink = &recordingSink{FrameSink: frames, rec: rec, log: m.log}
	}
	ctrl := NewMachineController(m, sink)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if opts.Headless {
		return runHeadless(ctx, ctrl, cli.Frames)
	}

	out, err := NewAudioOutput(opts.SampleRate, ring, m.log)
	if err != nil {
		m.log.WithError(err).Warn("no audio output")
	} else {
		out.Start()
		defer out.Close()
	}
	return runWindowHost(ctrl, frames, func() error { return ctrl.Run(ctx) })
}

// runHeadless runs the controller with terminal input until ctx ends, the
// machine stops or the frame limit is reached.
func runHeadless(ctx context.Context, ctrl *MachineController, limit int) error {
	term := NewTerminalHost(ctrl)
	term.Start()
	defer term.Stop()

	if limit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		ctrl.Script = func(m *Machine) {
			if m.FrameCount >= limit {
				cancel()
			}
		}
	}
	return ctrl.Run(ctx)
}

// attachMedia inserts tapes, disks and cards. Failures are logged and the
// machine runs without the peripheral.
func attachMedia(m *Machine, cli cliConfig) {
	warn := func(err error) {
		if err != nil {
			m.log.WithError(err).Warn("peripheral unavailable")
		}
	}
	if cli.Tape != "" {
		warn(attachTape(m, cli.Tape, cli.SaveDir))
	}
	if cli.Disk != "" {
		warn(attachDisk(m, cli.Disk))
	}
	if cli.Card != "" {
		warn(attachCard(m, cli.Card, cli.CardSlot))
	}
}

func attachTape(m *Machine, path, saveDir string) error {
	s := m.Spectrum()
	if s == nil {
		return &PeripheralError{Device: "tape", Source: path, Err: ErrInvalidOption}
	}
	s.Tape().Saver = &TapCollector{Dir: saveDir, Log: m.log.WithField("device", "tape")}
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		w, err := LoadWavTape(path)
		if err != nil {
			return err
		}
		s.Tape().SetWavTape(w)
		return nil
	}
	blocks, err := LoadTapFile(path)
	if err != nil {
		return err
	}
	s.Tape().SetTapeData(blocks)
	m.log.WithField("device", "tape").Infof("%d blocks from %s", len(blocks), path)
	return nil
}

func attachDisk(m *Machine, path string) error {
	s := m.Spectrum()
	if s == nil || s.Floppy() == nil {
		return &PeripheralError{Device: "floppy", Source: path, Err: ErrInvalidOption}
	}
	disk, err := LoadDskFile(path)
	if err != nil {
		return err
	}
	return s.Floppy().InsertDisk(0, disk)
}

func attachCard(m *Machine, path string, slot int) error {
	z := m.Z88()
	if z == nil {
		return &PeripheralError{Device: "blink", Source: path, Err: ErrInvalidOption}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return &PeripheralError{Device: "blink", Source: path, Err: err}
	}
	return z.InsertCard(slot, data, CardEprom)
}

// recordingSink tees the audio of every frame into a WAV file.
type recordingSink struct {
	FrameSink
	rec *WavRecorder
	log *log.Entry
}

func (r *recordingSink) QueueSamples(samples []AudioSample) {
	if err := r.rec.WriteSamples(samples); err != nil {
		r.log.WithError(err).Warn("recording stopped")
	}
	r.FrameSink.QueueSamples(samples)
}

func parseUint16Flag(value string) (uint16, error) {
	parsed, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return 0, err
	}
	if parsed > 0xFFFF {
		return 0, fmt.Errorf("value out of range: 0x%X", parsed)
	}
	return uint16(parsed), nil
}
