// machine_profile.go - Per-model value objects that parameterise the shared machine engine

package main

import (
	"fmt"
	"sort"
)

type MachineFamily int

const (
	FamilySpectrum MachineFamily = iota
	FamilyC64
	FamilyZ88
)

func (f MachineFamily) String() string {
	switch f {
	case FamilySpectrum:
		return "spectrum"
	case FamilyC64:
		return "c64"
	case FamilyZ88:
		return "z88"
	}
	return fmt.Sprintf("family(%d)", int(f))
}

// PagingKind selects the Spectrum bank-switch strategy.
type PagingKind int

const (
	PagingNone PagingKind = iota
	Paging48
	Paging128
	PagingPlus3
)

// FloatingBusKind selects what an unattached port read returns.
type FloatingBusKind int

const (
	FloatingBusNone FloatingBusKind = iota
	FloatingBus48
	FloatingBus128
)

// RomSpec names one ROM image and the sizes UploadRom accepts for it.
type RomSpec struct {
	Name  string
	Sizes []int
}

func (r RomSpec) accepts(size int) bool {
	for _, s := range r.Sizes {
		if s == size {
			return true
		}
	}
	return false
}

// MachineProfile collects everything that differs between models that share
// one engine. Profiles are immutable values.
type MachineProfile struct {
	ID              string
	DisplayName     string
	Family          MachineFamily
	BaseClock       int
	Roms            []RomSpec
	RamBanks        int // 16K banks of RAM (Spectrum), 0 elsewhere
	Screen          ScreenConfiguration
	Paging          PagingKind
	FloatingBus     FloatingBusKind
	InterruptWindow int  // frame tacts during which INT is held low
	HasPsg          bool // AY-3-8910 on ports 0xFFFD/0xBFFD
	HasFloppy       bool
	UncontendedIO   bool   // the gate array does not stretch I/O cycles
	KeyboardReadyPC uint16 // ROM main loop address that accepts typed keys
}

const (
	SP48_CLOCK  = 3_500_000
	SP128_CLOCK = 3_546_900
	C64_CLOCK   = 985_248
	Z88_CLOCK   = 3_276_800

	SP48_MAIN_ENTRY         = 0x12AC
	SP128_MAIN_WAITING_LOOP = 0x2653
	SPP3_MAIN_WAITING_LOOP  = 0x0706
)

var machineProfiles = map[string]*MachineProfile{
	"sp48": {
		ID:              "sp48",
		DisplayName:     "ZX Spectrum 48K",
		Family:          FamilySpectrum,
		BaseClock:       SP48_CLOCK,
		Roms:            []RomSpec{{Name: "sp48", Sizes: []int{0x4000}}},
		RamBanks:        3,
		Screen:          ZxSpectrum48ScreenConfiguration,
		Paging:          Paging48,
		FloatingBus:     FloatingBus48,
		InterruptWindow: 32,
		KeyboardReadyPC: SP48_MAIN_ENTRY,
	},
	"sp128": {
		ID:          "sp128",
		DisplayName: "ZX Spectrum 128K",
		Family:      FamilySpectrum,
		BaseClock:   SP128_CLOCK,
		Roms: []RomSpec{
			{Name: "sp128-0", Sizes: []int{0x4000}},
			{Name: "sp128-1", Sizes: []int{0x4000}},
		},
		RamBanks:        8,
		Screen:          ZxSpectrum128ScreenConfiguration,
		Paging:          Paging128,
		FloatingBus:     FloatingBus128,
		InterruptWindow: 36,
		HasPsg:          true,
		KeyboardReadyPC: SP128_MAIN_WAITING_LOOP,
	},
	"spp2": {
		ID:          "spp2",
		DisplayName: "ZX Spectrum +2",
		Family:      FamilySpectrum,
		BaseClock:   SP128_CLOCK,
		Roms: []RomSpec{
			{Name: "spp2-0", Sizes: []int{0x4000}},
			{Name: "spp2-1", Sizes: []int{0x4000}},
		},
		RamBanks:        8,
		Screen:          ZxSpectrum128ScreenConfiguration,
		Paging:          Paging128,
		FloatingBus:     FloatingBus128,
		InterruptWindow: 36,
		HasPsg:          true,
		KeyboardReadyPC: SP128_MAIN_WAITING_LOOP,
	},
	"spp3": {
		ID:          "spp3",
		DisplayName: "ZX Spectrum +3",
		Family:      FamilySpectrum,
		BaseClock:   SP128_CLOCK,
		Roms: []RomSpec{
			{Name: "spp3-0", Sizes: []int{0x4000}},
			{Name: "spp3-1", Sizes: []int{0x4000}},
			{Name: "spp3-2", Sizes: []int{0x4000}},
			{Name: "spp3-3", Sizes: []int{0x4000}},
		},
		RamBanks:        8,
		Screen:          ZxSpectrumP3ScreenConfiguration,
		Paging:          PagingPlus3,
		FloatingBus:     FloatingBusNone,
		InterruptWindow: 32,
		HasPsg:          true,
		HasFloppy:       true,
		UncontendedIO:   true,
		KeyboardReadyPC: SPP3_MAIN_WAITING_LOOP,
	},
	"c64": {
		ID:          "c64",
		DisplayName: "Commodore 64 (PAL)",
		Family:      FamilyC64,
		BaseClock:   C64_CLOCK,
		Roms: []RomSpec{
			{Name: "basic", Sizes: []int{0x2000}},
			{Name: "kernal", Sizes: []int{0x2000}},
			{Name: "chargen", Sizes: []int{0x1000}},
		},
	},
	"z88": {
		ID:          "z88",
		DisplayName: "Cambridge Z88",
		Family:      FamilyZ88,
		BaseClock:   Z88_CLOCK,
		Roms:        []RomSpec{{Name: "z88", Sizes: []int{0x20000, 0x40000, 0x80000}}},
	},
}

// lookupProfile returns the profile registered for id.
func lookupProfile(id string) (*MachineProfile, error) {
	p, ok := machineProfiles[id]
	if !ok {
		return nil, &ConfigError{Operation: "lookup", Details: fmt.Sprintf("machine %q", id), Err: ErrUnknownMachine}
	}
	return p, nil
}

// MachineIDs lists the registered machine ids in sorted order.
func MachineIDs() []string {
	ids := make([]string, 0, len(machineProfiles))
	for id := range machineProfiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (p *MachineProfile) romSpec(name string) (RomSpec, bool) {
	for _, r := range p.Roms {
		if r.Name == name {
			return r, true
		}
	}
	return RomSpec{}, false
}
