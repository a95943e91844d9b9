// machine_registry.go - Machine construction by id

package main

import (
	log "github.com/sirupsen/logrus"
)

// NewMachine builds, loads and hard-resets the machine opts.MachineID names.
// ROMs come from opts.RomDir unless roms is non-nil. The machine is returned
// in the Ready state.
func NewMachine(opts MachineOptions, logger *log.Logger, roms RomSource) (*Machine, error) {
	opts.Normalize()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	profile, err := lookupProfile(opts.MachineID)
	if err != nil {
		return nil, err
	}

	var entry *log.Entry
	if logger != nil {
		entry = log.NewEntry(logger)
	}

	var m *Machine
	switch profile.Family {
	case FamilySpectrum:
		m = newSpectrumMachine(profile, opts, entry).Machine
	case FamilyC64:
		m = newC64Machine(profile, opts, entry).Machine
	case FamilyZ88:
		m = newZ88Machine(profile, opts, entry).Machine
	}

	if err := m.Transition(StateSetup); err != nil {
		return nil, err
	}
	if roms == nil {
		roms = DirRomSource{Dir: opts.RomDir}
	}
	if err := uploadRoms(m, roms); err != nil {
		return nil, err
	}
	m.HardReset()
	if err := m.Transition(StateReady); err != nil {
		return nil, err
	}
	return m, nil
}

// Model-specific views, nil when the machine is of another family.

func (m *Machine) Spectrum() *spectrumMachine {
	s, _ := m.model.(*spectrumMachine)
	return s
}

func (m *Machine) C64() *c64Machine {
	c, _ := m.model.(*c64Machine)
	return c
}

func (m *Machine) Z88() *z88Machine {
	z, _ := m.model.(*z88Machine)
	return z
}
