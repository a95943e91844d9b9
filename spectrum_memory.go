// spectrum_memory.go - Paged ROM/RAM for the ZX Spectrum family

/*
spectrum_memory.go - Spectrum Memory

The 64K address space is split into eight 8K slots. Every slot points into a
16K ROM page or a 16K RAM bank, so a bank switch only rewrites slot
descriptors and never copies memory. What the slots point at is decided by a
BankPolicy:

  48K   ROM0 | bank 0 | bank 1 | bank 2, no paging
  128K  ROM0/1 | bank 5 | bank 2 | bank 0-7 via port 0x7FFD
  +3    ROM0-3 | bank 5 | bank 2 | bank 0-7 via 0x7FFD, all-RAM special
        configurations via 0x1FFD

Partition numbers follow one convention throughout: RAM bank n is n, ROM
page r is -(r+1).
*/

package main

const (
	SPECTRUM_PAGE_SIZE = 0x4000
	SPECTRUM_SLOT_SIZE = 0x2000
	SPECTRUM_SLOTS     = 8
)

type memorySlot struct {
	data      []byte
	partition int
	readOnly  bool
}

// BankPolicy decides which ROM page and RAM bank each slot shows.
type BankPolicy interface {
	Reset(mem *SpectrumMemory)
	// WritePort handles the paging ports and reports whether port was one.
	WritePort(mem *SpectrumMemory, port uint16, value byte) bool
	IsContended(mem *SpectrumMemory, addr uint16) bool
	ScreenBank(mem *SpectrumMemory) int
	Is48RomSelected(mem *SpectrumMemory) bool
}

// SpectrumMemory owns the ROM pages and RAM banks of one machine.
type SpectrumMemory struct {
	roms   [][]byte
	banks  [][]byte
	slots  [SPECTRUM_SLOTS]memorySlot
	policy BankPolicy

	SelectedRom   int
	SelectedBank  int
	PagingEnabled bool
	ShadowScreen  bool
	SpecialPaging bool
	SpecialConfig int
	DiskMotorOn   bool
}

func NewSpectrumMemory(romPages, ramBanks int, policy BankPolicy) *SpectrumMemory {
	m := &SpectrumMemory{policy: policy}
	m.roms = make([][]byte, romPages)
	for i := range m.roms {
		m.roms[i] = make([]byte, SPECTRUM_PAGE_SIZE)
	}
	m.banks = make([][]byte, ramBanks)
	for i := range m.banks {
		m.banks[i] = make([]byte, SPECTRUM_PAGE_SIZE)
	}
	m.Reset()
	return m
}

// newBankPolicy returns the policy for a profile's paging kind.
func newBankPolicy(kind PagingKind) BankPolicy {
	switch kind {
	case Paging128:
		return paging128Policy{}
	case PagingPlus3:
		return pagingPlus3Policy{}
	}
	return paging48Policy{}
}

// Reset restores the power-on paging. RAM contents are kept.
func (m *SpectrumMemory) Reset() {
	m.SelectedRom = 0
	m.SelectedBank = 0
	m.PagingEnabled = true
	m.ShadowScreen = false
	m.SpecialPaging = false
	m.SpecialConfig = 0
	m.DiskMotorOn = false
	m.policy.Reset(m)
}

// ClearRam zeroes every RAM bank.
func (m *SpectrumMemory) ClearRam() {
	for _, b := range m.banks {
		clear(b)
	}
}

func (m *SpectrumMemory) Dispose() {}

// mapRom puts a ROM page behind one of the four 16K pages.
func (m *SpectrumMemory) mapRom(page int, rom int) {
	rom = min(max(rom, 0), len(m.roms)-1)
	data := m.roms[rom]
	m.slots[page*2] = memorySlot{data: data[:SPECTRUM_SLOT_SIZE], partition: -rom - 1, readOnly: true}
	m.slots[page*2+1] = memorySlot{data: data[SPECTRUM_SLOT_SIZE:], partition: -rom - 1, readOnly: true}
}

func (m *SpectrumMemory) mapBank(page int, bank int) {
	bank %= len(m.banks)
	data := m.banks[bank]
	m.slots[page*2] = memorySlot{data: data[:SPECTRUM_SLOT_SIZE], partition: bank}
	m.slots[page*2+1] = memorySlot{data: data[SPECTRUM_SLOT_SIZE:], partition: bank}
}

func (m *SpectrumMemory) Read(addr uint16) byte {
	s := &m.slots[addr>>13]
	return s.data[addr&(SPECTRUM_SLOT_SIZE-1)]
}

// Write ignores writes to ROM slots.
func (m *SpectrumMemory) Write(addr uint16, value byte) {
	s := &m.slots[addr>>13]
	if s.readOnly {
		return
	}
	s.data[addr&(SPECTRUM_SLOT_SIZE-1)] = value
}

// ReadScreenMemory reads the bank the ULA is currently displaying.
func (m *SpectrumMemory) ReadScreenMemory(offset uint16) byte {
	return m.banks[m.policy.ScreenBank(m)][offset&(SPECTRUM_PAGE_SIZE-1)]
}

func (m *SpectrumMemory) WritePort(port uint16, value byte) bool {
	return m.policy.WritePort(m, port, value)
}

func (m *SpectrumMemory) IsContended(addr uint16) bool {
	return m.policy.IsContended(m, addr)
}

func (m *SpectrumMemory) Is48RomSelected() bool {
	return m.policy.Is48RomSelected(m)
}

// PartitionOf returns the partition paged in at addr.
func (m *SpectrumMemory) PartitionOf(addr uint16) int {
	return m.slots[addr>>13].partition
}

// Partitions lists the partition of every slot.
func (m *SpectrumMemory) Partitions() [SPECTRUM_SLOTS]int {
	var p [SPECTRUM_SLOTS]int
	for i, s := range m.slots {
		p[i] = s.partition
	}
	return p
}

// UploadRom copies a 16K image into ROM page index.
func (m *SpectrumMemory) UploadRom(index int, data []byte) error {
	if index < 0 || index >= len(m.roms) {
		return &ConfigError{Operation: "rom upload", Details: "rom page out of range", Err: ErrRomMissing}
	}
	if len(data) != SPECTRUM_PAGE_SIZE {
		return romSizeError("rom page", SPECTRUM_PAGE_SIZE, len(data))
	}
	copy(m.roms[index], data)
	return nil
}

// Bank gives direct access to a RAM bank, used by snapshot loaders and tests.
func (m *SpectrumMemory) Bank(n int) []byte {
	return m.banks[(n%len(m.banks)+len(m.banks))%len(m.banks)]
}

// =============================================================================
// 48K: fixed layout
// =============================================================================

type paging48Policy struct{}

func (paging48Policy) Reset(m *SpectrumMemory) {
	m.mapRom(0, 0)
	m.mapBank(1, 0)
	m.mapBank(2, 1)
	m.mapBank(3, 2)
}

func (paging48Policy) WritePort(*SpectrumMemory, uint16, byte) bool { return false }

func (paging48Policy) IsContended(_ *SpectrumMemory, addr uint16) bool {
	return addr&0xC000 == 0x4000
}

func (paging48Policy) ScreenBank(*SpectrumMemory) int { return 0 }

func (paging48Policy) Is48RomSelected(*SpectrumMemory) bool { return true }

// =============================================================================
// 128K / +2: port 0x7FFD
// =============================================================================

type paging128Policy struct{}

func (paging128Policy) Reset(m *SpectrumMemory) {
	m.mapRom(0, 0)
	m.mapBank(1, 5)
	m.mapBank(2, 2)
	m.mapBank(3, 0)
}

// WritePort decodes 0x7FFD on A15=0, A1=0. Once bit 5 locks paging every
// further write is ignored until reset.
func (paging128Policy) WritePort(m *SpectrumMemory, port uint16, value byte) bool {
	if port&0x8002 != 0 {
		return false
	}
	if !m.PagingEnabled {
		return true
	}
	m.SelectedBank = int(value & 0x07)
	m.mapBank(3, m.SelectedBank)
	m.ShadowScreen = value&0x08 != 0
	m.SelectedRom = int(value>>4) & 0x01
	m.mapRom(0, m.SelectedRom)
	m.PagingEnabled = value&0x20 == 0
	return true
}

// Odd banks are contended on the 128K and +2.
func (paging128Policy) IsContended(m *SpectrumMemory, addr uint16) bool {
	page := addr & 0xC000
	return page == 0x4000 || (page == 0xC000 && m.SelectedBank&0x01 == 1)
}

func (paging128Policy) ScreenBank(m *SpectrumMemory) int {
	if m.ShadowScreen {
		return 7
	}
	return 5
}

func (paging128Policy) Is48RomSelected(m *SpectrumMemory) bool { return m.SelectedRom == 1 }

// =============================================================================
// +3: ports 0x7FFD and 0x1FFD
// =============================================================================

// plus3SpecialBanks lists the banks of the four all-RAM configurations.
var plus3SpecialBanks = [4][4]int{
	{0, 1, 2, 3},
	{4, 5, 6, 7},
	{4, 5, 6, 3},
	{4, 7, 6, 3},
}

type pagingPlus3Policy struct{}

func (p pagingPlus3Policy) Reset(m *SpectrumMemory) { p.remap(m) }

func (pagingPlus3Policy) remap(m *SpectrumMemory) {
	if m.SpecialPaging {
		for page, bank := range plus3SpecialBanks[m.SpecialConfig] {
			m.mapBank(page, bank)
		}
		return
	}
	m.mapRom(0, m.SelectedRom)
	m.mapBank(1, 5)
	m.mapBank(2, 2)
	m.mapBank(3, m.SelectedBank)
}

func (p pagingPlus3Policy) WritePort(m *SpectrumMemory, port uint16, value byte) bool {
	switch {
	case port&0xC002 == 0x4000:
		if !m.PagingEnabled {
			return true
		}
		m.SelectedBank = int(value & 0x07)
		m.ShadowScreen = value&0x08 != 0
		m.SelectedRom = int(value>>4)&0x01 | m.SelectedRom&0x02
		m.PagingEnabled = value&0x20 == 0
		p.remap(m)
		return true
	case port&0xF002 == 0x1000:
		if !m.PagingEnabled {
			// The motor bit still works with paging locked.
			m.DiskMotorOn = value&0x08 != 0
			return true
		}
		m.SpecialPaging = value&0x01 != 0
		m.SpecialConfig = int(value>>1) & 0x03
		m.SelectedRom = m.SelectedRom&0x01 | int(value>>1)&0x02
		m.DiskMotorOn = value&0x08 != 0
		p.remap(m)
		return true
	}
	return false
}

// Banks 4-7 are contended on the +3.
func (pagingPlus3Policy) IsContended(m *SpectrumMemory, addr uint16) bool {
	return m.PartitionOf(addr) >= 4
}

func (pagingPlus3Policy) ScreenBank(m *SpectrumMemory) int {
	if m.ShadowScreen {
		return 7
	}
	return 5
}

func (pagingPlus3Policy) Is48RomSelected(m *SpectrumMemory) bool {
	return !m.SpecialPaging && m.SelectedRom == 3
}
