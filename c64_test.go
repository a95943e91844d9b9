package main

import (
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

// =============================================================================
// CIA
// =============================================================================

type ciaTestPorts struct {
	a, b       byte
	lastA      byte
	writesToPA int
}

func (p *ciaTestPorts) ReadPortA(out byte) byte { return out & p.a }
func (p *ciaTestPorts) ReadPortB(out byte) byte { return out & p.b }
func (p *ciaTestPorts) WritePortA(out byte)     { p.lastA = out; p.writesToPA++ }
func (p *ciaTestPorts) WritePortB(byte)         {}

func newTestCia() (*CiaDevice, *ciaTestPorts) {
	ports := &ciaTestPorts{a: 0xFF, b: 0xFF}
	return NewCiaDevice(newAudioTestHost(C64_CLOCK), "cia", ports), ports
}

func startTimerA(c *CiaDevice, latch int, control byte) {
	c.WriteRegister(CIA_TALO, byte(latch))
	c.WriteRegister(CIA_TAHI, byte(latch>>8))
	c.WriteRegister(CIA_CRA, CIA_CR_START|control)
}

func TestCia_ContinuousTimerReloads(t *testing.T) {
	c, _ := newTestCia()
	startTimerA(c, 5, 0)
	c.Tick(12)
	a, _ := c.Underflows()
	assert.Equal(t, 2, a)
	assert.Equal(t, 3, c.TimerA())
	assert.Equal(t, byte(3), c.ReadRegister(CIA_TALO))
}

func TestCia_OneShotStops(t *testing.T) {
	c, _ := newTestCia()
	startTimerA(c, 5, CIA_CR_ONESHOT)
	c.Tick(12)
	a, _ := c.Underflows()
	assert.Equal(t, 1, a)
	assert.Equal(t, 5, c.TimerA())
	assert.Equal(t, byte(0), c.ReadRegister(CIA_CRA)&CIA_CR_START)
}

func TestCia_InterruptMaskAndAcknowledge(t *testing.T) {
	c, _ := newTestCia()
	var edges []bool
	c.OnInterrupt = func(active bool) { edges = append(edges, active) }

	startTimerA(c, 4, 0)
	c.Tick(4)
	assert.False(t, c.InterruptActive())
	assert.Equal(t, byte(CIA_ICR_TA), c.PeekRegister(CIA_ICR))

	c.WriteRegister(CIA_ICR, 0x80|CIA_ICR_TA)
	assert.True(t, c.InterruptActive())
	assert.Equal(t, byte(CIA_ICR_IR|CIA_ICR_TA), c.ReadRegister(CIA_ICR))
	assert.False(t, c.InterruptActive())
	assert.Equal(t, byte(0), c.ReadRegister(CIA_ICR))
	assert.Equal(t, 2, len(edges))
	assert.True(t, edges[0])
	assert.False(t, edges[1])
}

func TestCia_TimerBCountsTimerA(t *testing.T) {
	c, _ := newTestCia()
	c.WriteRegister(CIA_TBLO, 2)
	c.WriteRegister(CIA_TBHI, 0)
	c.WriteRegister(CIA_CRB, CIA_CR_START|ciaCrbCountTA)
	startTimerA(c, 5, 0)

	c.Tick(12)
	_, b := c.Underflows()
	assert.Equal(t, 1, b)
	assert.Equal(t, byte(CIA_ICR_TA|CIA_ICR_TB), c.PeekRegister(CIA_ICR))
}

func TestCia_PortsDriveOutputs(t *testing.T) {
	c, ports := newTestCia()
	c.WriteRegister(CIA_DDRA, 0x0F)
	c.WriteRegister(CIA_PRA, 0x05)
	assert.Equal(t, byte(0xF5), ports.lastA)
	assert.Equal(t, byte(0xF5), c.PortA())

	ports.a = 0x7F
	assert.Equal(t, byte(0x75), c.ReadRegister(CIA_PRA))
}

func TestCia_TodLatchAndRollover(t *testing.T) {
	c, _ := newTestCia()
	c.WriteRegister(CIA_CRA, CIA_CRA_TOD50)

	// 11:59:59.9 AM
	c.WriteRegister(CIA_TOD_HR, 0x11)
	c.WriteRegister(CIA_TOD_MIN, 0x59)
	c.WriteRegister(CIA_TOD_SEC, 0x59)
	c.WriteRegister(CIA_TOD_TENTHS, 0x09)

	hr := c.ReadRegister(CIA_TOD_HR)
	for range 5 {
		c.TickTod()
	}
	assert.Equal(t, byte(0x11), hr)
	assert.Equal(t, byte(0x59), c.ReadRegister(CIA_TOD_SEC))
	assert.Equal(t, byte(0x09), c.ReadRegister(CIA_TOD_TENTHS))

	assert.Equal(t, byte(0x92), c.ReadRegister(CIA_TOD_HR))
	assert.Equal(t, byte(0x00), c.ReadRegister(CIA_TOD_MIN))
	assert.Equal(t, byte(0x00), c.ReadRegister(CIA_TOD_TENTHS))
}

func TestCia_TodAlarm(t *testing.T) {
	c, _ := newTestCia()
	c.WriteRegister(CIA_CRA, CIA_CRA_TOD50)
	c.WriteRegister(CIA_CRB, CIA_CRB_ALARM)
	c.WriteRegister(CIA_TOD_HR, 0x01)
	c.WriteRegister(CIA_TOD_MIN, 0x00)
	c.WriteRegister(CIA_TOD_SEC, 0x00)
	c.WriteRegister(CIA_TOD_TENTHS, 0x01)
	c.WriteRegister(CIA_CRB, 0)

	for range 4 {
		c.TickTod()
	}
	assert.Equal(t, byte(0), c.PeekRegister(CIA_ICR)&CIA_ICR_ALARM)
	c.TickTod()
	assert.Equal(t, byte(CIA_ICR_ALARM), c.PeekRegister(CIA_ICR)&CIA_ICR_ALARM)
}

// =============================================================================
// PLA and memory
// =============================================================================

func TestC64Region_Configurations(t *testing.T) {
	tests := []struct {
		cfg  int
		page int
		want C64Region
	}{
		{31, 0xA0, RegionBasic},
		{31, 0xD0, RegionIO},
		{31, 0xE0, RegionKernal},
		{27, 0xD0, RegionChar},
		{30, 0xA0, RegionRam},
		{30, 0xE0, RegionKernal},
		{29, 0xE0, RegionRam},
		{29, 0xD0, RegionIO},
		{28, 0xD0, RegionRam},
		{24, 0xA0, RegionRam},
		{24, 0xE0, RegionRam},
		{0x0F, 0x80, RegionRomL},
		{0x0F, 0xA0, RegionBasic},
		{0x07, 0x80, RegionRomL},
		{0x07, 0xA0, RegionRomH},
		{0x04, 0xD0, RegionRam},
		{0x01, 0xD0, RegionRam},
		{0x05, 0xD0, RegionRam},
		{0x06, 0xD0, RegionIO},
		{0x02, 0xD0, RegionChar},
		{0x10, 0x10, RegionOpen},
		{0x10, 0x80, RegionRomL},
		{0x10, 0xA0, RegionOpen},
		{0x10, 0xD0, RegionIO},
		{0x10, 0xE0, RegionRomH},
	}
	for _, tc := range tests {
		got := c64Region(tc.cfg, tc.page)
		if got != tc.want {
			t.Errorf("config %d page 0x%02X: got %s, want %s", tc.cfg, tc.page, got, tc.want)
		}
	}
}

// plaRegion evaluates the PLA product terms for one address.
func plaRegion(cfg int, addr uint16) C64Region {
	l := cfg&0x01 != 0
	h := cfg&0x02 != 0
	c := cfg&0x04 != 0
	g := cfg&0x08 != 0
	e := cfg&0x10 != 0
	ultimax := e && !g
	romBanked := (l || h) && g || h && !e && !g

	switch {
	case addr < 0x1000:
		return RegionRam
	case addr < 0x8000, addr >= 0xC000 && addr < 0xD000:
		if ultimax {
			return RegionOpen
		}
	case addr < 0xA000:
		if ultimax || l && h && !e {
			return RegionRomL
		}
	case addr < 0xC000:
		switch {
		case ultimax:
			return RegionOpen
		case l && h && g:
			return RegionBasic
		case h && !e && !g:
			return RegionRomH
		}
	case addr < 0xE000:
		switch {
		case ultimax, c && romBanked:
			return RegionIO
		case !c && romBanked:
			return RegionChar
		}
	default:
		switch {
		case ultimax:
			return RegionRomH
		case h && g, h && !e && !g:
			return RegionKernal
		}
	}
	return RegionRam
}

var c64RegionBases = []uint16{0x0000, 0x1000, 0x8000, 0xA000, 0xC000, 0xD000, 0xE000, 0xF000}

func TestC64Region_AllConfigurations(t *testing.T) {
	for cfg := range C64_CONFIGURATIONS {
		for _, addr := range c64RegionBases {
			want := plaRegion(cfg, addr)
			got := c64Region(cfg, int(addr>>8))
			if got != want {
				t.Errorf("config %d at 0x%04X: got %s, want %s", cfg, addr, got, want)
			}
		}
	}
}

func fillRom(size int, v byte) []byte {
	rom := make([]byte, size)
	for i := range rom {
		rom[i] = v
	}
	return rom
}

func TestC64Memory_RoutingAllConfigurations(t *testing.T) {
	for cfg := range C64_CONFIGURATIONS {
		io := &c64TestIO{phi1: 0x5A}
		m := NewC64Memory(io)
		assert.NoError(t, m.UploadRom("basic", fillRom(0x2000, 0xB1)))
		assert.NoError(t, m.UploadRom("kernal", fillRom(0x2000, 0xE1)))
		assert.NoError(t, m.UploadRom("chargen", fillRom(0x1000, 0xC1)))
		m.AttachCartridge(fillRom(0x2000, 0x81), fillRom(0x2000, 0xA1))
		m.SetConfiguration(cfg)
		ultimax := cfg&0x18 == 0x10

		for _, base := range c64RegionBases {
			addr := base + 0x10
			v := byte(0x20 + cfg)
			m.WriteMemory(addr, v)
			read := m.ReadMemory(addr)
			ram := m.Ram()[addr]

			var wantRead, wantRam byte
			switch plaRegion(cfg, base) {
			case RegionRam:
				wantRead, wantRam = v, v
			case RegionOpen:
				wantRead, wantRam = 0x5A, 0
			case RegionBasic:
				wantRead, wantRam = 0xB1, v
			case RegionKernal:
				wantRead, wantRam = 0xE1, v
			case RegionChar:
				wantRead, wantRam = 0xC1, v
			case RegionIO:
				wantRead, wantRam = v, 0
				if io.regs[addr] != v {
					t.Errorf("config %d at 0x%04X: I/O write not routed", cfg, addr)
				}
			case RegionRomL:
				wantRead, wantRam = 0x81, v
				if ultimax {
					wantRam = 0
				}
			case RegionRomH:
				wantRead, wantRam = 0xA1, v
				if ultimax {
					wantRam = 0
				}
			}
			if read != wantRead {
				t.Errorf("config %d read 0x%04X: got 0x%02X, want 0x%02X", cfg, addr, read, wantRead)
			}
			if ram != wantRam {
				t.Errorf("config %d RAM under 0x%04X: got 0x%02X, want 0x%02X", cfg, addr, ram, wantRam)
			}
		}
	}
}

func TestC64Region_LowMemoryIsAlwaysRam(t *testing.T) {
	for cfg := range C64_CONFIGURATIONS {
		ultimax := cfg&0x18 == 0x10
		for page := range 0x10 {
			assert.Equal(t, RegionRam, c64Region(cfg, page))
		}
		if ultimax {
			assert.Equal(t, RegionOpen, c64Region(cfg, 0x40))
		} else {
			assert.Equal(t, RegionRam, c64Region(cfg, 0x40))
		}
	}
}

type c64TestIO struct {
	regs [0x10000]byte
	phi1 byte
}

func (io *c64TestIO) ReadIO(addr uint16) byte         { return io.regs[addr] }
func (io *c64TestIO) WriteIO(addr uint16, value byte) { io.regs[addr] = value }
func (io *c64TestIO) Phi1Data() byte                  { return io.phi1 }

type cpuPortTestHost struct {
	tacts  uint64
	button bool
	motor  bool
	write  bool
	mem    *C64Memory
}

func (h *cpuPortTestHost) CurrentTacts() uint64        { return h.tacts }
func (h *cpuPortTestHost) CassetteButtonDown() bool    { return h.button }
func (h *cpuPortTestHost) SetCassetteMotor(on bool)    { h.motor = on }
func (h *cpuPortTestHost) SetCassetteWrite(level bool) { h.write = level }
func (h *cpuPortTestHost) OnCpuPortChanged() {
	if h.mem != nil {
		h.mem.UpdateConfiguration()
	}
}

func newTestC64Memory(t *testing.T) (*C64Memory, *c64TestIO, *cpuPortTestHost) {
	io := &c64TestIO{phi1: 0x5A}
	m := NewC64Memory(io)
	host := &cpuPortTestHost{mem: m}
	m.SetCpuPort(NewC64CpuPort(host))
	basic := make([]byte, 0x2000)
	basic[0] = 0xBA
	kernal := make([]byte, 0x2000)
	kernal[0x1FFF] = 0xEE
	assert.NoError(t, m.UploadRom("basic", basic))
	assert.NoError(t, m.UploadRom("kernal", kernal))
	return m, io, host
}

func TestC64Memory_RomsAndRamUnderneath(t *testing.T) {
	m, _, _ := newTestC64Memory(t)
	assert.Equal(t, C64_DEFAULT_CONFIG, m.Configuration())
	assert.Equal(t, byte(0xBA), m.ReadMemory(0xA000))

	m.WriteMemory(0xA000, 0x11)
	assert.Equal(t, byte(0xBA), m.ReadMemory(0xA000))
	assert.Equal(t, byte(0x11), m.Ram()[0xA000])

	// All RAM: LORAM, HIRAM and CHAREN low.
	m.WriteMemory(0x0001, 0x30)
	assert.Equal(t, 24, m.Configuration())
	assert.Equal(t, byte(0x11), m.ReadMemory(0xA000))
	assert.Equal(t, RegionRam, m.RegionAt(0xD000))
}

func TestC64Memory_IOAndColorRam(t *testing.T) {
	m, io, _ := newTestC64Memory(t)
	m.WriteMemory(0xD020, 0x0E)
	assert.Equal(t, byte(0x0E), io.regs[0xD020])

	m.WriteMemory(0xD800, 0xF3)
	assert.Equal(t, byte(0x03), m.ColorRam(0))
	assert.Equal(t, byte(0x53), m.ReadMemory(0xD800))
}

func TestC64Memory_UltimaxOpenBus(t *testing.T) {
	m, _, _ := newTestC64Memory(t)
	m.AttachCartridge(nil, []byte{0x42})
	m.SetCartridgeLines(true, false)
	assert.Equal(t, RegionOpen, m.RegionAt(0x1000))
	assert.Equal(t, byte(0x5A), m.ReadMemory(0x1000))
	assert.Equal(t, byte(0x42), m.ReadMemory(0xE000))

	m.DetachCartridge()
	assert.Equal(t, C64_DEFAULT_CONFIG, m.Configuration())
}

func TestC64Memory_ReadWordWraps(t *testing.T) {
	m, _, _ := newTestC64Memory(t)
	m.SetConfiguration(C64_DEFAULT_CONFIG)
	m.Ram()[0x0000] = 0x77
	// 0xFFFF is KERNAL, 0x0000 is the CPU port direction register.
	assert.Equal(t, uint16(CPU_PORT_DEFAULT_DIRECTION)<<8|0xEE, m.ReadWord(0xFFFF))
}

func TestC64Memory_VicView(t *testing.T) {
	m, _, _ := newTestC64Memory(t)
	chargen := make([]byte, 0x1000)
	chargen[0x10] = 0xC4
	assert.NoError(t, m.UploadRom("chargen", chargen))
	m.Ram()[0x4010] = 0x99

	assert.Equal(t, byte(0xC4), m.VicRead(0x1010))
	m.SetVicBank(0x02) // bank 1
	assert.Equal(t, 1, m.VicBank())
	assert.Equal(t, byte(0x99), m.VicRead(0x0010))
}

func TestC64CpuPort_CapacitorFallOff(t *testing.T) {
	_, _, host := newTestC64Memory(t)
	port := host.mem.port

	// Bit 5 driven high, then turned into an input.
	port.WriteData(0x37)
	port.WriteDirection(0x0F)
	assert.Equal(t, byte(0x20), port.ReadData()&0x20)

	host.tacts += CPU_PORT_FALL_OFF_CYCLES
	assert.Equal(t, byte(0), port.ReadData()&0x20)
}

func TestC64CpuPort_CassetteLines(t *testing.T) {
	_, _, host := newTestC64Memory(t)
	port := host.mem.port

	assert.Equal(t, byte(0x10), port.ReadData()&0x10)
	host.button = true
	assert.Equal(t, byte(0), port.ReadData()&0x10)

	port.WriteData(0x17) // motor bit low
	assert.True(t, host.motor)
	port.WriteData(0x3F)
	assert.False(t, host.motor)
	assert.True(t, host.write)
}

// =============================================================================
// VIC-II
// =============================================================================

type vicTestMemory struct {
	mem [0x4000]byte
}

func (m *vicTestMemory) VicRead(addr uint16) byte { return m.mem[addr&0x3FFF] }
func (m *vicTestMemory) ColorRam(int) byte        { return 0 }

func clockVic(v *C64VicDevice, from, to int) {
	for tact := from; tact <= to; tact++ {
		v.Clock(tact)
	}
}

func TestVic_RegisterReadMasks(t *testing.T) {
	v := NewC64VicDevice(newAudioTestHost(C64_CLOCK), &vicTestMemory{})
	v.WriteRegister(0x20, 0x12)
	assert.Equal(t, byte(0xF2), v.ReadRegister(0x20))
	assert.Equal(t, byte(0xFF), v.ReadRegister(0x30))
	assert.Equal(t, byte(0xC8), v.ReadRegister(0x16))
	v.WriteRegister(0x10, 0x01)
	v.WriteRegister(0x00, 0x20)
	assert.Equal(t, 0x120, v.spriteX[0])
}

func TestVic_RasterInterrupt(t *testing.T) {
	v := NewC64VicDevice(newAudioTestHost(C64_CLOCK), &vicTestMemory{})
	fired := 0
	v.OnInterrupt = func(active bool) {
		if active {
			fired++
		}
	}
	v.WriteRegister(0x1A, VIC_IRQ_RASTER)
	v.WriteRegister(0x12, 100)

	clockVic(v, 0, 100*VIC_CYCLES_PER_LINE-1)
	assert.False(t, v.InterruptActive())
	v.Clock(100 * VIC_CYCLES_PER_LINE)
	assert.True(t, v.InterruptActive())
	assert.Equal(t, 1, fired)
	assert.Equal(t, byte(0xF1), v.ReadRegister(0x19))

	v.WriteRegister(0x19, VIC_IRQ_RASTER)
	assert.False(t, v.InterruptActive())
}

func TestVic_BadLineHoldsBA(t *testing.T) {
	v := NewC64VicDevice(newAudioTestHost(C64_CLOCK), &vicTestMemory{})
	line := 0x33 // YSCROLL 3
	clockVic(v, 0, line*VIC_CYCLES_PER_LINE+10)
	assert.True(t, v.BadLine())
	assert.False(t, v.BALow())

	v.Clock(line*VIC_CYCLES_PER_LINE + 11)
	assert.True(t, v.BALow())
	clockVic(v, line*VIC_CYCLES_PER_LINE+12, line*VIC_CYCLES_PER_LINE+54)
	assert.False(t, v.BALow())

	clockVic(v, line*VIC_CYCLES_PER_LINE+55, (line+1)*VIC_CYCLES_PER_LINE+20)
	assert.False(t, v.BadLine())
	assert.False(t, v.BALow())
}

func TestVic_BorderColor(t *testing.T) {
	v := NewC64VicDevice(newAudioTestHost(C64_CLOCK), &vicTestMemory{})
	v.WriteRegister(0x20, 2)
	clockVic(v, 0, VIC_TACTS_IN_FRAME-1)
	assert.Equal(t, C64Palette[2], v.GetPixelBuffer()[0])
}

// =============================================================================
// Machine
// =============================================================================

// newTestC64 builds a C64 whose KERNAL loops at 0xE000 and whose NMI
// handler loops at 0xE010.
func newTestC64(t *testing.T) *c64Machine {
	t.Helper()
	kernal := make([]byte, 0x2000)
	copy(kernal[0x0000:], []byte{0x4C, 0x00, 0xE0})
	copy(kernal[0x0010:], []byte{0x4C, 0x10, 0xE0})
	kernal[0x1FFA], kernal[0x1FFB] = 0x10, 0xE0
	kernal[0x1FFC], kernal[0x1FFD] = 0x00, 0xE0
	roms := MapRomSource{
		"basic":   make([]byte, 0x2000),
		"kernal":  kernal,
		"chargen": make([]byte, 0x1000),
	}
	opts := DefaultMachineOptions()
	opts.MachineID = "c64"
	m, err := NewMachine(opts, nil, roms)
	assert.NoError(t, err)
	return m.C64()
}

func TestC64Machine_FrameAndReset(t *testing.T) {
	c := newTestC64(t)
	assert.NotNil(t, c)
	assert.Equal(t, VIC_TACTS_IN_FRAME, c.TactsInFrame)
	assert.Equal(t, uint16(0xE000), c.M6510().PC)

	assert.Equal(t, FrameCompleted, c.ExecuteMachineFrame())
	pc := c.M6510().PC
	assert.True(t, pc >= 0xE000 && pc <= 0xE002)
	assert.Equal(t, 1, c.FrameCount)
	assert.True(t, c.Tacts >= VIC_TACTS_IN_FRAME)
}

func TestC64Machine_KeyboardScan(t *testing.T) {
	c := newTestC64(t)
	c.SetKeyStatus(C64KeyA, true)
	c.WriteIO(0xDC02, 0xFF)
	c.WriteIO(0xDC00, 0xFD)
	assert.Equal(t, byte(0xFB), c.ReadIO(0xDC01))

	c.WriteIO(0xDC00, 0xFE)
	assert.Equal(t, byte(0xFF), c.ReadIO(0xDC01))

	c.SetJoystick(1, C64_JOYSTICK_FIRE)
	assert.Equal(t, byte(0xEF), c.ReadIO(0xDC01))
}

func TestC64Machine_RestoreRaisesNmi(t *testing.T) {
	c := newTestC64(t)
	c.SetKeyStatus(C64_KEY_RESTORE, true)
	c.ExecuteMachineFrame()
	pc := c.M6510().PC
	assert.True(t, pc >= 0xE010 && pc <= 0xE012)
}

func TestC64Machine_Cia2SelectsVicBankAndIec(t *testing.T) {
	c := newTestC64(t)
	c.WriteIO(0xDD02, 0x3F)
	c.WriteIO(0xDD00, 0x38)
	assert.Equal(t, 3, c.Memory().VicBank())

	atn, clk, data := c.IecLines()
	assert.True(t, atn)
	assert.True(t, clk)
	assert.True(t, data)
	// CLK and DATA inputs read the lines the C64 itself pulls low.
	assert.Equal(t, byte(0x00), c.ReadIO(0xDD00)&0xC0)
}

func TestC64Machine_SidAndOpenIO(t *testing.T) {
	c := newTestC64(t)
	c.WriteIO(0xD418, 0x0F)
	assert.Equal(t, byte(0x0F), c.Sid().MasterVolume())
	assert.Equal(t, c.Vic().Phi1Data(), c.ReadIO(0xDE00))
	assert.True(t, c.Spectrum() == nil)
}
