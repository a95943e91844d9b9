// z88_memory.go - Cambridge Z88 4M bank space behind four segment registers

/*
z88_memory.go - Z88 Memory

The Blink maps 256 banks of 16K into the 64K Z80 space through the segment
registers SR0-SR3. Bank ranges belong to fixed chip selects:

  0x00-0x1F  internal ROM
  0x20-0x3F  internal RAM
  0x40-0x7F  card slot 1
  0x80-0xBF  card slot 2
  0xC0-0xFF  card slot 3

The 64K address space is tracked as eight 8K pages. Each page records its
physical offset, its bank and whether writes are ignored.
*/

package main

const (
	Z88_BANK_SIZE     = 0x4000
	Z88_PAGE_SIZE     = 0x2000
	Z88_BANKS         = 256
	Z88_PHYSICAL_SIZE = Z88_BANKS * Z88_BANK_SIZE
	Z88_RAM_FIRST     = 0x20
	Z88_SLOT1_FIRST   = 0x40
)

// Z88AccessType tells how a bank answers the CPU.
type Z88AccessType int

const (
	AccessRam Z88AccessType = iota
	AccessRom
	AccessUnavailable
)

type z88Page struct {
	offset   int
	bank     byte
	readOnly bool
	absent   bool
}

type Z88Memory struct {
	physical []byte
	pages    [8]z88Page
	access   [Z88_BANKS]Z88AccessType
}

func NewZ88Memory() *Z88Memory {
	m := &Z88Memory{physical: make([]byte, Z88_PHYSICAL_SIZE)}
	for i := range m.pages {
		m.pages[i] = z88Page{offset: i * Z88_PAGE_SIZE}
	}
	return m
}

// SetPageInfo maps one 8K page of the Z80 address space.
func (m *Z88Memory) SetPageInfo(page int, offset int, bank byte, readOnly bool) {
	m.pages[page&7] = z88Page{
		offset:   offset & (Z88_PHYSICAL_SIZE - 1),
		bank:     bank,
		readOnly: readOnly,
		absent:   m.access[bank] == AccessUnavailable,
	}
}

// SetBankAccess records the access type the Blink computed for a bank.
func (m *Z88Memory) SetBankAccess(bank int, access Z88AccessType) {
	m.access[bank&0xFF] = access
}

func (m *Z88Memory) BankAccess(bank int) Z88AccessType { return m.access[bank&0xFF] }

func (m *Z88Memory) ReadMemory(addr uint16) byte {
	p := &m.pages[addr>>13]
	if p.absent {
		return 0xFF
	}
	return m.physical[p.offset+int(addr&0x1FFF)]
}

// WriteMemory ignores writes to ROM, EPROM cards and empty slots.
func (m *Z88Memory) WriteMemory(addr uint16, value byte) {
	p := &m.pages[addr>>13]
	if p.readOnly || p.absent {
		return
	}
	m.physical[p.offset+int(addr&0x1FFF)] = value
}

// ReadPhysical reads the 4M space directly; the LCD fetches this way.
func (m *Z88Memory) ReadPhysical(addr int) byte {
	return m.physical[addr&(Z88_PHYSICAL_SIZE-1)]
}

func (m *Z88Memory) WritePhysical(addr int, value byte) {
	m.physical[addr&(Z88_PHYSICAL_SIZE-1)] = value
}

// PhysicalAddress resolves a Z80 address through the current paging.
func (m *Z88Memory) PhysicalAddress(addr uint16) int {
	return m.pages[addr>>13].offset + int(addr&0x1FFF)
}

// BankOf returns the bank paged in at addr.
func (m *Z88Memory) BankOf(addr uint16) int {
	return int(m.pages[addr>>13].bank)
}

// UploadRom copies the operating system image to bank 0 onwards.
func (m *Z88Memory) UploadRom(data []byte) error {
	if len(data) == 0 || len(data) > Z88_RAM_FIRST*Z88_BANK_SIZE || len(data)%Z88_BANK_SIZE != 0 {
		return romSizeError("z88", Z88_RAM_FIRST*Z88_BANK_SIZE, len(data))
	}
	copy(m.physical, data)
	return nil
}

// LoadCard copies a card image to the first bank of slot 1-3.
func (m *Z88Memory) LoadCard(slot int, data []byte) {
	base := (Z88_SLOT1_FIRST * (slot & 3)) * Z88_BANK_SIZE
	end := min(base+len(data), base+Z88_SLOT1_FIRST*Z88_BANK_SIZE)
	copy(m.physical[base:end], data)
}

// ClearRam zeroes the internal RAM banks.
func (m *Z88Memory) ClearRam() {
	clear(m.physical[Z88_RAM_FIRST*Z88_BANK_SIZE : Z88_SLOT1_FIRST*Z88_BANK_SIZE])
}

// Flat64K copies the current 64K view.
func (m *Z88Memory) Flat64K() []byte {
	flat := make([]byte, 0x10000)
	for a := range flat {
		flat[a] = m.ReadMemory(uint16(a))
	}
	return flat
}
