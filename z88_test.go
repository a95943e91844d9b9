package main

import (
	"errors"
	"testing"
)

func newTestZ88(t *testing.T, program ...byte) *z88Machine {
	t.Helper()
	rom := make([]byte, 0x20000)
	copy(rom, program)
	opts := DefaultMachineOptions()
	opts.MachineID = "z88"
	m, err := NewMachine(opts, nil, MapRomSource{"z88": rom})
	if err != nil {
		t.Fatalf("NewMachine(z88): %v", err)
	}
	return m.Z88()
}

func TestZ88_NewMachine(t *testing.T) {
	z := newTestZ88(t)
	if z == nil {
		t.Fatalf("Expected a Z88 model")
	}
	if z.State() != StateReady {
		t.Fatalf("Expected ready, got %s", z.State())
	}
	if z.TactsInFrame != Z88_FRAME_TACTS {
		t.Fatalf("Expected %d tacts per frame, got %d", Z88_FRAME_TACTS, z.TactsInFrame)
	}
	if w, h := z.ScreenSize(); w != 640 || h != 64 {
		t.Fatalf("Expected 640x64 LCD, got %dx%d", w, h)
	}
	if got := z.Blink().ChipMask(0); got != 0x07 {
		t.Fatalf("Expected 128K ROM mask 0x07, got 0x%02X", got)
	}
	if got := z.Blink().ChipMask(1); got != 0x1F {
		t.Fatalf("Expected 512K RAM mask 0x1F, got 0x%02X", got)
	}
}

func TestZ88Blink_SegmentPaging(t *testing.T) {
	z := newTestZ88(t, 0xF3)

	z.DoWritePort(0x00D1, 0x21)
	if got := z.PartitionOf(0x4000); got != 0x21 {
		t.Fatalf("Expected bank 0x21 at 0x4000, got 0x%02X", got)
	}
	z.DoWriteMemory(0x4000, 0xAB)
	if got := z.Memory().ReadPhysical(0x21 * Z88_BANK_SIZE); got != 0xAB {
		t.Fatalf("Expected RAM write at bank 0x21, got 0x%02X", got)
	}

	// ROM ignores writes and repeats every 128K.
	z.DoWritePort(0x00D2, 0x08)
	if got := z.DoReadMemory(0x8000); got != 0xF3 {
		t.Fatalf("Expected bank 0x08 to mirror bank 0, got 0x%02X", got)
	}
	z.DoWriteMemory(0x8000, 0x00)
	if got := z.DoReadMemory(0x8000); got != 0xF3 {
		t.Fatalf("Expected ROM write to be ignored, got 0x%02X", got)
	}
}

func TestZ88Blink_RamMaskMirrors(t *testing.T) {
	z := newTestZ88(t)
	z.Blink().SetChipMask(1, 0x07)

	z.DoWritePort(0x00D2, 0x28)
	z.DoWriteMemory(0x8000, 0x55)
	if got := z.Memory().ReadPhysical(Z88_RAM_FIRST * Z88_BANK_SIZE); got != 0x55 {
		t.Fatalf("Expected bank 0x28 to mirror 0x20 on a 128K chip, got 0x%02X", got)
	}
}

func TestZ88Blink_RamsMapsBottomPage(t *testing.T) {
	z := newTestZ88(t, 0xF3)
	if got := z.DoReadMemory(0x0000); got != 0xF3 {
		t.Fatalf("Expected ROM at 0x0000, got 0x%02X", got)
	}

	z.DoWritePort(0x00B0, COM_RAMS)
	z.DoWriteMemory(0x0000, 0x77)
	if got := z.Memory().ReadPhysical(Z88_RAM_FIRST * Z88_BANK_SIZE); got != 0x77 {
		t.Fatalf("Expected RAM bank 0x20 at 0x0000, got 0x%02X", got)
	}
	if got := z.Blink().AccessTypeOf(0x0000); got != AccessRam {
		t.Fatalf("Expected RAM access at 0x0000, got %d", got)
	}
}

func TestZ88Blink_EmptySlot(t *testing.T) {
	z := newTestZ88(t)
	z.DoWritePort(0x00D3, 0x40)
	if got := z.Blink().AccessTypeOf(0xC000); got != AccessUnavailable {
		t.Fatalf("Expected empty slot, got access %d", got)
	}
	z.DoWriteMemory(0xC000, 0x12)
	if got := z.DoReadMemory(0xC000); got != 0xFF {
		t.Fatalf("Expected empty slot to read 0xFF, got 0x%02X", got)
	}
}

func TestZ88_InsertCard(t *testing.T) {
	z := newTestZ88(t)

	err := z.InsertCard(0, make([]byte, 0x8000), CardRam)
	var perr *PeripheralError
	if !errors.As(err, &perr) || !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("Expected invalid slot error, got %v", err)
	}
	if err := z.InsertCard(1, make([]byte, 1000), CardRam); !errors.Is(err, ErrRomSize) {
		t.Fatalf("Expected size error, got %v", err)
	}

	eprom := make([]byte, 0x8000)
	eprom[0] = 0xC9
	if err := z.InsertCard(1, eprom, CardEprom); err != nil {
		t.Fatalf("InsertCard: %v", err)
	}
	z.DoWritePort(0x00D1, 0x40)
	z.DoWriteMemory(0x4000, 0x00)
	if got := z.DoReadMemory(0x4000); got != 0xC9 {
		t.Fatalf("Expected EPROM byte 0xC9, got 0x%02X", got)
	}
	z.DoWritePort(0x00D1, 0x42)
	if got := z.DoReadMemory(0x4000); got != 0xC9 {
		t.Fatalf("Expected 32K card to repeat at bank 0x42, got 0x%02X", got)
	}

	if err := z.InsertCard(2, make([]byte, 0x8000), CardRam); err != nil {
		t.Fatalf("InsertCard: %v", err)
	}
	z.DoWritePort(0x00D2, 0x80)
	z.DoWriteMemory(0x8000, 0x3C)
	if got := z.DoReadMemory(0x8000); got != 0x3C {
		t.Fatalf("Expected RAM card write, got 0x%02X", got)
	}

	z.RemoveCard(1)
	z.DoWritePort(0x00D1, 0x40)
	if got := z.DoReadMemory(0x4000); got != 0xFF {
		t.Fatalf("Expected removed card to read 0xFF, got 0x%02X", got)
	}
}

func TestZ88Blink_RtcTickInterrupt(t *testing.T) {
	z := newTestZ88(t)
	b := z.Blink()

	b.IncrementRtc()
	if b.InterruptActive() {
		t.Fatalf("Expected no tick after 5 ms")
	}
	b.IncrementRtc()
	if !b.InterruptActive() || b.TSTA != TSTA_TICK {
		t.Fatalf("Expected tick interrupt after 10 ms, TSTA 0x%02X", b.TSTA)
	}
	if got := z.DoReadPort(0x00B1); got&STA_TIME == 0 {
		t.Fatalf("Expected STA.TIME, got 0x%02X", got)
	}

	z.DoWritePort(0x00B4, TSTA_TICK)
	if b.InterruptActive() {
		t.Fatalf("Expected TACK to clear the interrupt")
	}

	for range 198 {
		b.IncrementRtc()
	}
	if got := z.DoReadPort(0x00D1); got != 1 {
		t.Fatalf("Expected one second, got %d", got)
	}
	if got := z.DoReadPort(0x00D0); got != 0 {
		t.Fatalf("Expected TIM0 to wrap, got %d", got)
	}
	if got := z.DoReadPort(0x00B5); got&TSTA_SEC == 0 {
		t.Fatalf("Expected TSTA.SEC, got 0x%02X", got)
	}

	z.DoWritePort(0x00B0, COM_RESTIM)
	if b.TIM != [5]byte{} || b.TSTA != 0 {
		t.Fatalf("Expected RESTIM to clear the clock")
	}
}

func TestZ88Blink_Flap(t *testing.T) {
	z := newTestZ88(t)
	b := z.Blink()

	z.OpenFlap()
	if !b.InterruptActive() || b.STA&STA_FLAPOPEN == 0 {
		t.Fatalf("Expected flap interrupt, STA 0x%02X", b.STA)
	}
	b.IncrementRtc()
	b.IncrementRtc()
	if b.STA&STA_TIME != 0 {
		t.Fatalf("Expected no TIME interrupt with the flap open")
	}

	z.DoWritePort(0x00B6, STA_FLAP)
	if b.InterruptActive() {
		t.Fatalf("Expected ACK to clear the flap interrupt")
	}
	z.CloseFlap()
	if b.STA&STA_FLAPOPEN != 0 {
		t.Fatalf("Expected flap closed")
	}

	z.RaiseBatteryLow()
	if b.InterruptActive() {
		t.Fatalf("Expected BTL to stay masked without INT.BTL")
	}
	z.DoWritePort(0x00B1, INT_GINT|INT_BTL)
	if !b.InterruptActive() {
		t.Fatalf("Expected battery low interrupt")
	}
}

func TestZ88_KeyboardWaitSnoozes(t *testing.T) {
	z := newTestZ88(t)
	z.DoWritePort(0x00B1, INT_GINT|INT_KWAIT)

	if got := z.DoReadPort(0x00B2); got != 0xFF {
		t.Fatalf("Expected no key, got 0x%02X", got)
	}
	if !z.IsCpuSnoozed() {
		t.Fatalf("Expected KWAIT read to snooze the CPU")
	}
	before := z.Tacts
	z.OnSnooze()
	if z.Tacts != before+4 {
		t.Fatalf("Expected snooze to advance 4 tacts, got %d", z.Tacts-before)
	}

	z.SetKeyStatus(Z88KeyM, true)
	z.AfterInstructionExecuted()
	if z.IsCpuSnoozed() {
		t.Fatalf("Expected a key press to wake the CPU")
	}
	if got := z.DoReadPort(0x00B2); got == 0xFF {
		t.Fatalf("Expected the pressed key on the column lines")
	}
}

func TestZ88_ComaWakesOnBothShifts(t *testing.T) {
	// LD A,0x3F; LD I,A; HALT
	z := newTestZ88(t, 0x3E, 0x3F, 0xED, 0x47, 0x76)

	z.ExecuteMachineFrame()
	if !z.Z80().Halted {
		t.Fatalf("Expected HALT")
	}
	z.ExecuteMachineFrame()
	if !z.InComa() {
		t.Fatalf("Expected coma with I = 0x3F")
	}

	z.SetKeyStatus(Z88KeyLeftShift, true)
	z.SetKeyStatus(Z88KeyRightShift, true)
	z.ExecuteMachineFrame()
	if z.InComa() {
		t.Fatalf("Expected both shifts to wake the machine")
	}
}

type z88TestScreenMemory map[int]byte

func (m z88TestScreenMemory) ReadPhysical(addr int) byte { return m[addr] }

func newTestZ88Screen(lcdOn *bool) (*Z88ScreenDevice, z88TestScreenMemory) {
	mem := z88TestScreenMemory{}
	s := NewZ88ScreenDevice(newAudioTestHost(Z88_CLOCK), mem, func() bool { return *lcdOn })
	s.WriteRegister(4, 1) // screen file at 0x800
	s.WriteRegister(1, 1) // LORES1 at 0x1000
	s.WriteRegister(2, 2) // HIRES0 at 0x4000
	return s, mem
}

func TestZ88Screen_Cells(t *testing.T) {
	on := true
	s, mem := newTestZ88Screen(&on)

	mem[0x1000+0x41*8] = 0x3F // 'A' first line, LORES1
	mem[0x4000] = 0xFF        // HIRES0 char 0 first line

	mem[0x800], mem[0x801] = 0x41, 0x00        // x 0-5
	mem[0x802], mem[0x803] = 0x00, z88AttrRev  // x 6-11 reversed blank
	mem[0x804], mem[0x805] = 0x00, z88NullChar // no space
	mem[0x806], mem[0x807] = 0x00, z88AttrHrs  // x 12-19 HIRES
	mem[0x808], mem[0x809] = 0x41, z88AttrGry  // x 20-25 grey

	s.RenderScreen()
	pb := s.GetPixelBuffer()
	check := func(x int, want uint32) {
		t.Helper()
		if pb[x] != want {
			t.Fatalf("pixel %d: got 0x%08X, want 0x%08X", x, pb[x], want)
		}
	}
	check(0, Z88_PIXEL_ON)
	check(5, Z88_PIXEL_ON)
	check(6, Z88_PIXEL_ON)
	check(11, Z88_PIXEL_ON)
	check(12, Z88_PIXEL_ON)
	check(19, Z88_PIXEL_ON)
	check(20, Z88_PIXEL_GREY)
	check(26, Z88_PIXEL_OFF)
	check(639, Z88_PIXEL_OFF)
	// Second line of 'A' is empty.
	check(640, Z88_PIXEL_OFF)

	on = false
	s.RenderScreen()
	check(0, Z88_PIXEL_OFF)
}

func TestZ88Screen_RendersEveryFewFrames(t *testing.T) {
	on := true
	s, mem := newTestZ88Screen(&on)
	mem[0x1000+0x41*8] = 0x3F
	mem[0x800] = 0x41

	for range Z88_RENDER_FRAMES - 1 {
		s.OnNewFrame()
	}
	if s.GetPixelBuffer()[0] != Z88_PIXEL_OFF {
		t.Fatalf("Expected no redraw before %d frames", Z88_RENDER_FRAMES)
	}
	s.OnNewFrame()
	if s.GetPixelBuffer()[0] != Z88_PIXEL_ON {
		t.Fatalf("Expected redraw after %d frames", Z88_RENDER_FRAMES)
	}
}

func TestZ88Screen_Flash(t *testing.T) {
	on := true
	s, mem := newTestZ88Screen(&on)
	mem[0x1000+0x41*8] = 0x3F
	mem[0x800], mem[0x801] = 0x41, z88AttrFls

	s.RenderScreen()
	if s.GetPixelBuffer()[0] != Z88_PIXEL_ON {
		t.Fatalf("Expected flashing cell visible in the first phase")
	}
	for range Z88_FLASH_TOGGLE_FRAMES {
		s.OnNewFrame()
	}
	if s.GetPixelBuffer()[0] != Z88_PIXEL_OFF {
		t.Fatalf("Expected flashing cell hidden in the second phase")
	}
}

func TestZ88ChipMask(t *testing.T) {
	tests := map[int]byte{0x8000: 0x01, 0x20000: 0x07, 0x80000: 0x1F, 0x100000: 0x3F}
	for size, want := range tests {
		got, ok := z88ChipMask(size)
		if !ok || got != want {
			t.Fatalf("size %d: got 0x%02X %v, want 0x%02X", size, got, ok, want)
		}
	}
	if _, ok := z88ChipMask(12345); ok {
		t.Fatalf("Expected odd size to be rejected")
	}
}
