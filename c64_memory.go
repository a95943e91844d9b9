// c64_memory.go - C64 PLA bank switching, ROMs, color RAM and the VIC view

/*
c64_memory.go - C64 Memory

The PLA decodes five lines into one of 32 memory configurations:

  bit 0  LORAM   } from the 6510 port
  bit 1  HIRAM   }
  bit 2  CHAREN  }
  bit 3  GAME    } from the expansion port, high without a cartridge
  bit 4  EXROM   }

Every configuration has a read and a write function per 256-byte page. The
tables are built once; switching configuration only changes an index. Entry
256 mirrors page 0 so that a word read at 0xFFFF can index page+1 directly.

  0x0000-0x0FFF  RAM (0x0000/0x0001 are the CPU port)
  0x1000-0x7FFF  RAM, open in Ultimax mode
  0x8000-0x9FFF  RAM or cartridge ROML
  0xA000-0xBFFF  RAM, BASIC or cartridge ROMH
  0xC000-0xCFFF  RAM, open in Ultimax mode
  0xD000-0xDFFF  RAM, character ROM or I/O
  0xE000-0xFFFF  RAM, KERNAL or cartridge ROMH (Ultimax)

Writes that land on a ROM go to the RAM underneath.
*/

package main

const (
	C64_RAM_SIZE       = 0x10000
	C64_COLOR_RAM_SIZE = 0x400
	C64_CONFIGURATIONS = 32
	C64_DEFAULT_CONFIG = 31
)

// C64Region names what a configuration maps into a page.
type C64Region int

const (
	RegionRam C64Region = iota
	RegionOpen
	RegionBasic
	RegionKernal
	RegionChar
	RegionIO
	RegionRomL
	RegionRomH
)

func (r C64Region) String() string {
	return [...]string{"RAM", "open", "BASIC", "KERNAL", "CHAR", "I/O", "ROML", "ROMH"}[r]
}

// C64IO is the chip select side of the I/O area. Color RAM is handled by
// the memory itself.
type C64IO interface {
	ReadIO(addr uint16) byte
	WriteIO(addr uint16, value byte)
	// Phi1Data is the byte the VIC fetched in the last half cycle.
	Phi1Data() byte
}

type (
	c64Reader func(addr uint16) byte
	c64Writer func(addr uint16, value byte)
)

type C64Memory struct {
	io   C64IO
	port *C64CpuPort

	ram      [C64_RAM_SIZE]byte
	colorRam [C64_COLOR_RAM_SIZE]byte
	basic    [0x2000]byte
	kernal   [0x2000]byte
	chargen  [0x1000]byte
	romL     []byte
	romH     []byte

	exrom bool
	game  bool

	config  int
	vicBank int
	readers [C64_CONFIGURATIONS][257]c64Reader
	writers [C64_CONFIGURATIONS][257]c64Writer
}

func NewC64Memory(io C64IO) *C64Memory {
	m := &C64Memory{io: io, exrom: true, game: true}
	for cfg := range C64_CONFIGURATIONS {
		for page := range 256 {
			m.readers[cfg][page], m.writers[cfg][page] = m.accessors(cfg, page)
		}
		m.readers[cfg][256] = m.readers[cfg][0]
		m.writers[cfg][256] = m.writers[cfg][0]
	}
	m.config = C64_DEFAULT_CONFIG
	return m
}

// c64Region decodes one page of one configuration.
func c64Region(cfg, page int) C64Region {
	loram := cfg&0x01 != 0
	hiram := cfg&0x02 != 0
	charen := cfg&0x04 != 0
	game := cfg&0x08 != 0
	exrom := cfg&0x10 != 0
	ultimax := exrom && !game

	switch {
	case page < 0x10:
		return RegionRam
	case page < 0x80:
		if ultimax {
			return RegionOpen
		}
		return RegionRam
	case page < 0xA0:
		if ultimax || !exrom && loram && hiram {
			return RegionRomL
		}
		return RegionRam
	case page < 0xC0:
		switch {
		case ultimax:
			return RegionOpen
		case !exrom && !game && hiram:
			return RegionRomH
		case loram && hiram && game:
			return RegionBasic
		}
		return RegionRam
	case page < 0xD0:
		if ultimax {
			return RegionOpen
		}
		return RegionRam
	case page < 0xE0:
		switch {
		case ultimax:
			return RegionIO
		case !loram && !hiram:
			return RegionRam
		case !exrom && !game && !hiram:
			return RegionRam
		case charen:
			return RegionIO
		}
		return RegionChar
	}
	switch {
	case ultimax:
		return RegionRomH
	case hiram:
		return RegionKernal
	}
	return RegionRam
}

func (m *C64Memory) accessors(cfg, page int) (c64Reader, c64Writer) {
	if page == 0 {
		return m.readZeroPage, m.writeZeroPage
	}
	switch c64Region(cfg, page) {
	case RegionOpen:
		return m.readOpen, m.writeNone
	case RegionBasic:
		return m.readBasic, m.writeRam
	case RegionKernal:
		return m.readKernal, m.writeRam
	case RegionChar:
		return m.readChar, m.writeRam
	case RegionIO:
		return m.readIO, m.writeIO
	case RegionRomL:
		if cfg&0x18 == 0x10 {
			return m.readRomL, m.writeNone
		}
		return m.readRomL, m.writeRam
	case RegionRomH:
		if page >= 0xE0 {
			return m.readRomH, m.writeNone
		}
		return m.readRomH, m.writeRam
	}
	return m.readRam, m.writeRam
}

func (m *C64Memory) readRam(addr uint16) byte { return m.ram[addr] }

func (m *C64Memory) writeRam(addr uint16, v byte) { m.ram[addr] = v }

func (m *C64Memory) writeNone(uint16, byte) {}

func (m *C64Memory) readOpen(uint16) byte { return m.io.Phi1Data() }

func (m *C64Memory) readBasic(addr uint16) byte { return m.basic[addr&0x1FFF] }

func (m *C64Memory) readKernal(addr uint16) byte { return m.kernal[addr&0x1FFF] }

func (m *C64Memory) readChar(addr uint16) byte { return m.chargen[addr&0x0FFF] }

func (m *C64Memory) readRomL(addr uint16) byte {
	if len(m.romL) == 0 {
		return m.io.Phi1Data()
	}
	return m.romL[int(addr&0x1FFF)%len(m.romL)]
}

func (m *C64Memory) readRomH(addr uint16) byte {
	if len(m.romH) == 0 {
		return m.io.Phi1Data()
	}
	return m.romH[int(addr&0x1FFF)%len(m.romH)]
}

// Offsets 0 and 1 of the zero page are the CPU port. A write there still
// reaches the RAM cell underneath.
func (m *C64Memory) readZeroPage(addr uint16) byte {
	if addr < 2 && m.port != nil {
		if addr == 0 {
			return m.port.ReadDirection()
		}
		return m.port.ReadData()
	}
	return m.ram[addr]
}

func (m *C64Memory) writeZeroPage(addr uint16, v byte) {
	m.ram[addr] = v
	if addr < 2 && m.port != nil {
		if addr == 0 {
			m.port.WriteDirection(v)
		} else {
			m.port.WriteData(v)
		}
	}
}

func (m *C64Memory) readIO(addr uint16) byte {
	if addr >= 0xD800 && addr < 0xDC00 {
		return m.colorRam[addr&0x3FF]&0x0F | m.io.Phi1Data()&0xF0
	}
	return m.io.ReadIO(addr)
}

func (m *C64Memory) writeIO(addr uint16, v byte) {
	if addr >= 0xD800 && addr < 0xDC00 {
		m.colorRam[addr&0x3FF] = v & 0x0F
		return
	}
	m.io.WriteIO(addr, v)
}

// ReadMemory reads through the active configuration.
func (m *C64Memory) ReadMemory(addr uint16) byte {
	return m.readers[m.config][addr>>8](addr)
}

func (m *C64Memory) WriteMemory(addr uint16, v byte) {
	m.writers[m.config][addr>>8](addr, v)
}

// ReadWord reads a little-endian word. The high byte of a read at 0xFFFF
// comes from 0x0000.
func (m *C64Memory) ReadWord(addr uint16) uint16 {
	next := int(addr) + 1
	lo := m.readers[m.config][addr>>8](addr)
	hi := m.readers[m.config][next>>8](uint16(next))
	return uint16(hi)<<8 | uint16(lo)
}

// SetCpuPort connects the 6510 port that owns 0x0000 and 0x0001.
func (m *C64Memory) SetCpuPort(port *C64CpuPort) {
	m.port = port
	m.UpdateConfiguration()
}

// UpdateConfiguration recomputes the index from the CPU port and the
// cartridge lines.
func (m *C64Memory) UpdateConfiguration() {
	cfg := 0x07
	if m.port != nil {
		cfg = int(m.port.MemoryConfiguration())
	}
	if m.game {
		cfg |= 0x08
	}
	if m.exrom {
		cfg |= 0x10
	}
	m.config = cfg
}

// SetConfiguration forces a configuration index; out of range values wrap.
func (m *C64Memory) SetConfiguration(cfg int) {
	m.config = cfg & (C64_CONFIGURATIONS - 1)
}

func (m *C64Memory) Configuration() int { return m.config }

// RegionAt reports what the active configuration maps at addr.
func (m *C64Memory) RegionAt(addr uint16) C64Region {
	if addr>>8 == 0 {
		return RegionRam
	}
	return c64Region(m.config, int(addr>>8))
}

// AttachCartridge plugs in a cartridge. A ROMH image makes it a 16K
// cartridge, otherwise it is an 8K one.
func (m *C64Memory) AttachCartridge(romL, romH []byte) {
	m.romL = append([]byte(nil), romL...)
	m.romH = append([]byte(nil), romH...)
	m.exrom = false
	m.game = len(romH) == 0
	m.UpdateConfiguration()
}

// SetCartridgeLines drives EXROM and GAME directly (high is true).
func (m *C64Memory) SetCartridgeLines(exrom, game bool) {
	m.exrom, m.game = exrom, game
	m.UpdateConfiguration()
}

func (m *C64Memory) DetachCartridge() {
	m.romL, m.romH = nil, nil
	m.SetCartridgeLines(true, true)
}

// UploadRom copies a ROM image. Sizes are checked by the machine.
func (m *C64Memory) UploadRom(name string, data []byte) error {
	var dst []byte
	switch name {
	case "basic":
		dst = m.basic[:]
	case "kernal":
		dst = m.kernal[:]
	case "chargen":
		dst = m.chargen[:]
	default:
		return &ConfigError{Operation: "rom upload", Details: "unknown rom " + name, Err: ErrRomMissing}
	}
	if len(data) != len(dst) {
		return romSizeError(name, len(dst), len(data))
	}
	copy(dst, data)
	return nil
}

// ClearRam fills RAM with the power-on pattern of alternating 0x00 and
// 0xFF blocks of 64 bytes.
func (m *C64Memory) ClearRam() {
	for i := range m.ram {
		if i&0x40 == 0 {
			m.ram[i] = 0x00
		} else {
			m.ram[i] = 0xFF
		}
	}
	clear(m.colorRam[:])
}

func (m *C64Memory) Reset() {
	m.vicBank = 0
	m.UpdateConfiguration()
}

// SetVicBank takes the CIA2 port A output; bits 0 and 1 are inverted.
func (m *C64Memory) SetVicBank(portA byte) {
	m.vicBank = int(^portA & 0x03)
}

func (m *C64Memory) VicBank() int { return m.vicBank }

// VicRead is the VIC's 14-bit view of memory. The character ROM appears at
// 0x1000-0x1FFF of banks 0 and 2; in Ultimax mode ROMH replaces the top 4K
// of every bank.
func (m *C64Memory) VicRead(addr uint16) byte {
	addr &= 0x3FFF
	if m.exrom && !m.game && addr >= 0x3000 && len(m.romH) > 0 {
		return m.romH[int(addr&0x1FFF)%len(m.romH)]
	}
	if m.vicBank&1 == 0 && addr&0x3000 == 0x1000 {
		return m.chargen[addr&0x0FFF]
	}
	return m.ram[m.vicBank<<14|int(addr)]
}

// ColorRam returns one 4-bit color RAM cell.
func (m *C64Memory) ColorRam(index int) byte { return m.colorRam[index&0x3FF] }

// Ram exposes the 64K underneath every ROM and I/O.
func (m *C64Memory) Ram() []byte { return m.ram[:] }
