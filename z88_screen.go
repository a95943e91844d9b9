// z88_screen.go - Z88 LCD rendering from the Blink screen registers

/*
z88_screen.go - Z88 LCD

The screen file at SBR holds 128 two-byte cells per row (character code,
attributes). Attribute bits:

  5 HRS  8 pixel HIRES character     2 GRY grey
  4 REV  reverse                     1 UND underline (LORES only)
  3 FLS  flash                       0 character bit 8

LORES characters are 6 pixels wide: codes 0x1C0-0x1FF come from LORES0
(PB0, user defined), the rest from LORES1 (PB1, ROM font). HIRES codes
0x300-0x3FF come from HIRES1 (PB3), the rest from HIRES0 (PB2). A cell
with HRS|REV|GRY and no FLS is a null cell and takes no space.

Register values are 13 bits; the fonts and the screen file are addressed in
the 4M physical space:

  LORES0 = PB0 << 9   LORES1 = PB1 << 12   HIRES0 = PB2 << 13
  HIRES1 = PB3 << 11  screen = SBR << 11
*/

package main

const (
	Z88_FRAME_TACTS         = 16384 // 5 ms
	Z88_RENDER_FRAMES       = 4
	Z88_FLASH_TOGGLE_FRAMES = 100
	Z88_DEFAULT_SCW         = 0xFF
	Z88_DEFAULT_SCH         = 8

	z88AttrHrs  = 0x20
	z88AttrRev  = 0x10
	z88AttrFls  = 0x08
	z88AttrGry  = 0x04
	z88AttrUnd  = 0x02
	z88NullMask = z88AttrHrs | z88AttrRev | z88AttrFls | z88AttrGry
	z88NullChar = z88AttrHrs | z88AttrRev | z88AttrGry

	Z88_PIXEL_ON   = 0xFF461B7D
	Z88_PIXEL_GREY = 0xFF90B0A7
	Z88_PIXEL_OFF  = 0xFFE0E0E0
)

// Z88ScreenMemory is the LCD controller's view of the 4M space.
type Z88ScreenMemory interface {
	ReadPhysical(addr int) byte
}

type Z88ScreenDevice struct {
	host   MachineHost
	memory Z88ScreenMemory

	PB0, PB1, PB2, PB3, SBR uint16

	// SCW and SCH describe the LCD size: width in 8 pixel units (0xFF is
	// 640) and height in 8 line rows.
	SCW byte
	SCH byte

	lcdOn       func() bool
	frames      int
	flashPhase  bool
	pixelBuffer []uint32
}

func NewZ88ScreenDevice(host MachineHost, memory Z88ScreenMemory, lcdOn func() bool) *Z88ScreenDevice {
	s := &Z88ScreenDevice{
		host:   host,
		memory: memory,
		lcdOn:  lcdOn,
		SCW:    Z88_DEFAULT_SCW,
		SCH:    Z88_DEFAULT_SCH,
	}
	host.SetTactsInFrame(Z88_FRAME_TACTS)
	s.Reset()
	return s
}

func (s *Z88ScreenDevice) Reset() {
	s.PB0, s.PB1, s.PB2, s.PB3, s.SBR = 0, 0, 0, 0, 0
	s.frames = 0
	s.flashPhase = false
	s.pixelBuffer = make([]uint32, s.ScreenWidth()*s.ScreenLines())
	for i := range s.pixelBuffer {
		s.pixelBuffer[i] = Z88_PIXEL_OFF
	}
}

func (s *Z88ScreenDevice) Dispose() {}

// SetSize changes the LCD geometry and clears the picture.
func (s *Z88ScreenDevice) SetSize(scw, sch byte) {
	s.SCW, s.SCH = max(scw, 1), max(sch, 1)
	s.Reset()
}

func (s *Z88ScreenDevice) ScreenWidth() int {
	if s.SCW == 0xFF {
		return 640
	}
	return int(s.SCW) * 8
}

func (s *Z88ScreenDevice) ScreenLines() int { return int(s.SCH) * 8 }

// WriteRegister stores a screen register; index 0-3 are PB0-PB3, 4 is SBR.
func (s *Z88ScreenDevice) WriteRegister(index int, value uint16) {
	value &= 0x1FFF
	switch index {
	case 0:
		s.PB0 = value
	case 1:
		s.PB1 = value
	case 2:
		s.PB2 = value
	case 3:
		s.PB3 = value
	default:
		s.SBR = value
	}
}

// OnNewFrame counts frames and redraws the LCD every few frames.
func (s *Z88ScreenDevice) OnNewFrame() {
	s.frames++
	if s.frames%Z88_FLASH_TOGGLE_FRAMES == 0 {
		s.flashPhase = !s.flashPhase
	}
	if s.frames%Z88_RENDER_FRAMES == 0 {
		s.RenderScreen()
	}
}

// RenderScreen draws the whole LCD from the screen file.
func (s *Z88ScreenDevice) RenderScreen() {
	width := s.ScreenWidth()
	if s.lcdOn != nil && !s.lcdOn() {
		for i := range s.pixelBuffer {
			s.pixelBuffer[i] = Z88_PIXEL_OFF
		}
		return
	}
	screen := int(s.SBR) << 11
	for row := range int(s.SCH) {
		x := 0
		for col := 0; col < 128 && x < width; col++ {
			cell := screen + row*256 + col*2
			code := int(s.memory.ReadPhysical(cell))
			attr := s.memory.ReadPhysical(cell + 1)
			if attr&z88NullMask == z88NullChar {
				continue
			}
			if attr&z88AttrHrs != 0 {
				s.drawHires(x, row, code|int(attr&0x03)<<8, attr)
				x += 8
			} else {
				s.drawLores(x, row, code|int(attr&0x01)<<8, attr)
				x += 6
			}
		}
		for ; x < width; x++ {
			for line := range 8 {
				s.pixelBuffer[(row*8+line)*width+x] = Z88_PIXEL_OFF
			}
		}
	}
}

func (s *Z88ScreenDevice) drawLores(x, row, char int, attr byte) {
	var base int
	if char >= 0x1C0 {
		base = int(s.PB0)<<9 + (char&0x3F)*8
	} else {
		base = int(s.PB1)<<12 + char*8
	}
	for line := range 8 {
		bits := s.memory.ReadPhysical(base+line) & 0x3F
		if line == 7 && attr&z88AttrUnd != 0 {
			bits = 0x3F
		}
		s.drawBits(x, row*8+line, bits, 6, attr)
	}
}

func (s *Z88ScreenDevice) drawHires(x, row, char int, attr byte) {
	var base int
	if char >= 0x300 {
		base = int(s.PB3)<<11 + (char&0xFF)*8
	} else {
		base = int(s.PB2)<<13 + char*8
	}
	for line := range 8 {
		s.drawBits(x, row*8+line, s.memory.ReadPhysical(base+line), 8, attr)
	}
}

func (s *Z88ScreenDevice) drawBits(x, y int, bits byte, width int, attr byte) {
	if attr&z88AttrRev != 0 {
		bits = ^bits
	}
	if attr&z88AttrFls != 0 && s.flashPhase {
		bits = 0
	}
	on := uint32(Z88_PIXEL_ON)
	if attr&z88AttrGry != 0 {
		on = Z88_PIXEL_GREY
	}
	stride := s.ScreenWidth()
	for i := range width {
		if x+i >= stride {
			return
		}
		pixel := uint32(Z88_PIXEL_OFF)
		if bits&(1<<(width-1-i)) != 0 {
			pixel = on
		}
		s.pixelBuffer[y*stride+x+i] = pixel
	}
}

func (s *Z88ScreenDevice) GetPixelBuffer() []uint32 { return s.pixelBuffer }
