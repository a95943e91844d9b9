// errors.go - Error taxonomy shared by machines, devices and collaborators

package main

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownMachine    = errors.New("unknown machine id")
	ErrRomSize           = errors.New("rom size mismatch")
	ErrRomMissing        = errors.New("rom not found")
	ErrInvalidTransition = errors.New("invalid machine state transition")
	ErrInvalidOption     = errors.New("invalid machine option")
	ErrTapeFormat        = errors.New("malformed tape image")
	ErrDiskFormat        = errors.New("malformed disk image")
)

// ConfigError reports a problem detected while a machine is being created or
// set up. The machine is unusable until the configuration is corrected.
type ConfigError struct {
	Operation string // What operation was being attempted
	Details   string // Additional error context
	Err       error  // Underlying error if any
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s failed: %s: %v", e.Operation, e.Details, e.Err)
	}
	return fmt.Sprintf("config %s failed: %s", e.Operation, e.Details)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// TimingError is a construction-time bug in a timing table. It is never
// tolerated: continuing would produce a silently incorrect emulation.
type TimingError struct {
	Table string
	Index int
	Want  int
	Got   int
}

func (e *TimingError) Error() string {
	return fmt.Sprintf("timing table %s invalid at %d: want %d, got %d", e.Table, e.Index, e.Want, e.Got)
}

// PeripheralError wraps I/O failures of tape and disk collaborators. The core
// keeps running with the peripheral absent.
type PeripheralError struct {
	Device string
	Source string
	Err    error
}

func (e *PeripheralError) Error() string {
	return fmt.Sprintf("%s: cannot use %q: %v", e.Device, e.Source, e.Err)
}

func (e *PeripheralError) Unwrap() error {
	return e.Err
}

func romSizeError(name string, want, got int) error {
	return &ConfigError{
		Operation: "rom upload",
		Details:   fmt.Sprintf("%s must be exactly %d bytes, got %d", name, want, got),
		Err:       ErrRomSize,
	}
}
