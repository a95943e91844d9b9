// machine_options.go - Typed machine creation options

package main

import "fmt"

const (
	DEFAULT_SAMPLE_RATE      = 44100
	DEFAULT_CLOCK_MULTIPLIER = 1
	MAX_CLOCK_MULTIPLIER     = 24
	DEFAULT_SOUND_LEVEL      = 0.8
	DEFAULT_ROM_DIR          = "roms"
)

// MachineOptions enumerates every option a machine understands. Zero values
// are replaced by the documented defaults in Normalize.
type MachineOptions struct {
	MachineID       string  // sp48, sp128, spp2, spp3, c64, z88
	ClockMultiplier int     // 1..24, applied at frame boundaries; default 1
	SampleRate      int     // audio sample rate in Hz; default 44100
	SoundLevel      float64 // 0.0..1.0 output gain; default 0.8
	RomDir          string  // directory holding <rom>.rom files; default "roms"
	FastLoad        bool    // emulate tape LOAD at the ROM routine entry
	FloppyDrives    int     // +3 only: 0, 1 or 2 drives; default 1 on spp3
	LogLevel        string  // logrus level name; default "info"
	Headless        bool    // no window and no audio device
	UlaIssue        int     // 2 or 3; selects the EAR bit-4 behaviour; default 3
	Z88RamKB        int     // z88 only: internal RAM, 32..512 KB power of two; default 512
}

func DefaultMachineOptions() MachineOptions {
	return MachineOptions{
		MachineID:       "sp48",
		ClockMultiplier: DEFAULT_CLOCK_MULTIPLIER,
		SampleRate:      DEFAULT_SAMPLE_RATE,
		SoundLevel:      DEFAULT_SOUND_LEVEL,
		RomDir:          DEFAULT_ROM_DIR,
		FastLoad:        true,
		FloppyDrives:    1,
		LogLevel:        DEFAULT_LOG_LEVEL,
		UlaIssue:        3,
		Z88RamKB:        512,
	}
}

// Normalize fills unset fields with their defaults.
func (o *MachineOptions) Normalize() {
	def := DefaultMachineOptions()
	if o.MachineID == "" {
		o.MachineID = def.MachineID
	}
	if o.ClockMultiplier == 0 {
		o.ClockMultiplier = def.ClockMultiplier
	}
	if o.SampleRate == 0 {
		o.SampleRate = def.SampleRate
	}
	if o.SoundLevel == 0 {
		o.SoundLevel = def.SoundLevel
	}
	if o.RomDir == "" {
		o.RomDir = def.RomDir
	}
	if o.LogLevel == "" {
		o.LogLevel = def.LogLevel
	}
	if o.UlaIssue == 0 {
		o.UlaIssue = def.UlaIssue
	}
	if o.Z88RamKB == 0 {
		o.Z88RamKB = def.Z88RamKB
	}
}

// Validate reports the first option outside its documented range.
func (o MachineOptions) Validate() error {
	if _, ok := machineProfiles[o.MachineID]; !ok {
		return &ConfigError{Operation: "options", Details: fmt.Sprintf("machine %q", o.MachineID), Err: ErrUnknownMachine}
	}
	if o.ClockMultiplier < 1 || o.ClockMultiplier > MAX_CLOCK_MULTIPLIER {
		return &ConfigError{Operation: "options", Details: fmt.Sprintf("clock multiplier %d", o.ClockMultiplier), Err: ErrInvalidOption}
	}
	if o.SampleRate < 8000 || o.SampleRate > 192000 {
		return &ConfigError{Operation: "options", Details: fmt.Sprintf("sample rate %d", o.SampleRate), Err: ErrInvalidOption}
	}
	if o.SoundLevel < 0 || o.SoundLevel > 1 {
		return &ConfigError{Operation: "options", Details: fmt.Sprintf("sound level %.2f", o.SoundLevel), Err: ErrInvalidOption}
	}
	if o.FloppyDrives < 0 || o.FloppyDrives > 2 {
		return &ConfigError{Operation: "options", Details: fmt.Sprintf("floppy drives %d", o.FloppyDrives), Err: ErrInvalidOption}
	}
	if o.UlaIssue != 2 && o.UlaIssue != 3 {
		return &ConfigError{Operation: "options", Details: fmt.Sprintf("ula issue %d", o.UlaIssue), Err: ErrInvalidOption}
	}
	if _, ok := z88ChipMask(o.Z88RamKB * 1024); o.MachineID == "z88" && !ok {
		return &ConfigError{Operation: "options", Details: fmt.Sprintf("z88 ram %dK", o.Z88RamKB), Err: ErrInvalidOption}
	}
	return nil
}
