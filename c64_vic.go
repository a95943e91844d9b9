// c64_vic.go - MOS 6569 VIC-II (PAL) raster timing, bad lines and rendering

/*
c64_vic.go - VIC-II

A PAL frame is 312 raster lines of 63 cycles. The VIC is clocked once per
CPU cycle; within a line it works in these 0-based cycles:

   0       raster compare, bad line evaluation
  11-53    BA held low on a bad line (the CPU stalls on reads)
  13       VC = VCBASE, RC cleared on a bad line
  14-53    c-accesses on a bad line (screen code + color)
  15-54    g-accesses (bitmap/character data)
  57       RC == 7 returns to idle and latches VCBASE; RC advances

Pixels are composed at the end of each line from the fetched data, the
sprite overlay and the border flip-flops. The visible window is 384 x 272
pixels, raster lines 16 to 287.
*/

package main

import (
	log "github.com/sirupsen/logrus"
)

const (
	VIC_CYCLES_PER_LINE = 63
	VIC_RASTER_LINES    = 312
	VIC_TACTS_IN_FRAME  = VIC_CYCLES_PER_LINE * VIC_RASTER_LINES
	VIC_SCREEN_WIDTH    = 384
	VIC_SCREEN_LINES    = 272
	VIC_FIRST_LINE      = 16
	VIC_FIRST_BAD_LINE  = 0x30
	VIC_LAST_BAD_LINE   = 0xF7
	VIC_REG_COUNT       = 0x40
	VIC_REG_USED        = 0x2F

	vicBaStart     = 11
	vicBaEnd       = 53
	vicFirstCFetch = 14
	vicFirstGFetch = 15
	vicLastGFetch  = 54
	vicRcCycle     = 57
	vicBufferXOff  = 8 // buffer x = display x + 8
)

// Interrupt latch bits of 0xD019
const (
	VIC_IRQ_RASTER = 0x01
	VIC_IRQ_SB     = 0x02
	VIC_IRQ_SS     = 0x04
	VIC_IRQ_LP     = 0x08
)

// C64Palette is the 16 color palette as 0xAARRGGBB.
var C64Palette = [16]uint32{
	0xFF000000, 0xFFFFFFFF, 0xFF68372B, 0xFF70A4B2,
	0xFF6F3D86, 0xFF588D43, 0xFF352879, 0xFFB8C76F,
	0xFF6F4F25, 0xFF433900, 0xFF9A6759, 0xFF444444,
	0xFF6C6C6C, 0xFF9AD284, 0xFF6C5EB5, 0xFF959595,
}

// VicMemory is the VIC's view of the machine.
type VicMemory interface {
	VicRead(addr uint16) byte
	ColorRam(index int) byte
}

type C64VicDevice struct {
	host MachineHost
	mem  VicMemory
	log  *log.Entry

	// OnInterrupt receives every change of the IRQ output.
	OnInterrupt func(active bool)

	spriteX       [8]int
	spriteY       [8]byte
	control1      byte
	control2      byte
	rasterCompare int
	spriteEnable  byte
	spriteYExpand byte
	spriteXExpand byte
	spritePrio    byte
	spriteMulti   byte
	memPointers   byte
	irqLatch      byte
	irqEnable     byte
	collisionSS   byte
	collisionSB   byte
	borderColor   byte
	bgColor       [4]byte
	spriteMC      [2]byte
	spriteColor   [8]byte

	raster          int
	cycle           int
	badLine         bool
	badLinesEnabled bool
	displayState    bool
	verticalBorder  bool
	vc, vcBase, rc  int
	irqActive       bool
	lastPhi1        byte

	matrix [40]byte
	colors [40]byte
	gdata  [40]byte
	cdata  [40]byte
	idle   [40]bool
	mode   byte

	fgMask      [VIC_SCREEN_WIDTH]bool
	pixelBuffer []uint32
	RefreshRate float64
}

func NewC64VicDevice(host MachineHost, mem VicMemory) *C64VicDevice {
	v := &C64VicDevice{
		host:        host,
		mem:         mem,
		log:         host.Logger().WithField("device", "vic"),
		pixelBuffer: make([]uint32, VIC_SCREEN_WIDTH*VIC_SCREEN_LINES),
	}
	host.SetTactsInFrame(VIC_TACTS_IN_FRAME)
	v.RefreshRate = float64(host.BaseClock()) / VIC_TACTS_IN_FRAME
	v.Reset()
	return v
}

func (v *C64VicDevice) Reset() {
	v.spriteX = [8]int{}
	v.spriteY = [8]byte{}
	v.control1, v.control2 = 0x1B, 0xC8
	v.rasterCompare = 0
	v.spriteEnable, v.spriteYExpand, v.spriteXExpand = 0, 0, 0
	v.spritePrio, v.spriteMulti = 0, 0
	v.memPointers = 0x14
	v.irqLatch, v.irqEnable = 0, 0
	v.collisionSS, v.collisionSB = 0, 0
	v.borderColor = 14
	v.bgColor = [4]byte{6, 0, 0, 0}
	v.spriteMC = [2]byte{}
	v.spriteColor = [8]byte{}
	v.raster, v.cycle = 0, 0
	v.badLine, v.badLinesEnabled, v.displayState = false, false, false
	v.verticalBorder = true
	v.vc, v.vcBase, v.rc = 0, 0, 7
	v.setInterrupt(false)
	clear(v.pixelBuffer)
}

func (v *C64VicDevice) Dispose() {}

// Registers

func (v *C64VicDevice) ReadRegister(reg byte) byte {
	reg &= VIC_REG_COUNT - 1
	switch {
	case reg < 0x10:
		n := reg >> 1
		if reg&1 == 0 {
			return byte(v.spriteX[n])
		}
		return v.spriteY[n]
	case reg >= VIC_REG_USED:
		return 0xFF
	}
	switch reg {
	case 0x10:
		var msb byte
		for n := range 8 {
			if v.spriteX[n]&0x100 != 0 {
				msb |= 1 << n
			}
		}
		return msb
	case 0x11:
		return v.control1&0x7F | byte(v.raster>>1)&0x80
	case 0x12:
		return byte(v.raster)
	case 0x13, 0x14:
		return 0
	case 0x15:
		return v.spriteEnable
	case 0x16:
		return v.control2 | 0xC0
	case 0x17:
		return v.spriteYExpand
	case 0x18:
		return v.memPointers | 0x01
	case 0x19:
		r := v.irqLatch | 0x70
		if v.irqActive {
			r |= 0x80
		}
		return r
	case 0x1A:
		return v.irqEnable | 0xF0
	case 0x1B:
		return v.spritePrio
	case 0x1C:
		return v.spriteMulti
	case 0x1D:
		return v.spriteXExpand
	case 0x1E:
		r := v.collisionSS
		v.collisionSS = 0
		return r
	case 0x1F:
		r := v.collisionSB
		v.collisionSB = 0
		return r
	case 0x20:
		return v.borderColor | 0xF0
	case 0x21, 0x22, 0x23, 0x24:
		return v.bgColor[reg-0x21] | 0xF0
	case 0x25, 0x26:
		return v.spriteMC[reg-0x25] | 0xF0
	}
	return v.spriteColor[reg-0x27] | 0xF0
}

func (v *C64VicDevice) WriteRegister(reg byte, value byte) {
	reg &= VIC_REG_COUNT - 1
	if reg < 0x10 {
		n := reg >> 1
		if reg&1 == 0 {
			v.spriteX[n] = v.spriteX[n]&0x100 | int(value)
		} else {
			v.spriteY[n] = value
		}
		return
	}
	switch reg {
	case 0x10:
		for n := range 8 {
			v.spriteX[n] = v.spriteX[n]&0xFF | int(value>>n&1)<<8
		}
	case 0x11:
		v.control1 = value
		v.setRasterCompare(v.rasterCompare&0xFF | int(value&0x80)<<1)
		if v.raster == VIC_FIRST_BAD_LINE && value&0x10 != 0 {
			v.badLinesEnabled = true
		}
		v.evaluateBadLine()
	case 0x12:
		v.setRasterCompare(v.rasterCompare&0x100 | int(value))
	case 0x15:
		v.spriteEnable = value
	case 0x16:
		v.control2 = value & 0x3F
	case 0x17:
		v.spriteYExpand = value
	case 0x18:
		v.memPointers = value & 0xFE
	case 0x19:
		v.irqLatch &^= value & 0x0F
		v.updateInterrupt()
	case 0x1A:
		v.irqEnable = value & 0x0F
		v.updateInterrupt()
	case 0x1B:
		v.spritePrio = value
	case 0x1C:
		v.spriteMulti = value
	case 0x1D:
		v.spriteXExpand = value
	case 0x20:
		v.borderColor = value & 0x0F
	case 0x21, 0x22, 0x23, 0x24:
		v.bgColor[reg-0x21] = value & 0x0F
	case 0x25, 0x26:
		v.spriteMC[reg-0x25] = value & 0x0F
	default:
		if reg >= 0x27 && reg < VIC_REG_USED {
			v.spriteColor[reg-0x27] = value & 0x0F
		}
	}
}

// A compare value written for the current line triggers immediately.
func (v *C64VicDevice) setRasterCompare(line int) {
	old := v.rasterCompare
	v.rasterCompare = line
	if line != old && line == v.raster {
		v.raise(VIC_IRQ_RASTER)
	}
}

func (v *C64VicDevice) raise(bit byte) {
	v.irqLatch |= bit
	v.updateInterrupt()
}

func (v *C64VicDevice) updateInterrupt() {
	v.setInterrupt(v.irqLatch&v.irqEnable != 0)
}

func (v *C64VicDevice) setInterrupt(active bool) {
	if active == v.irqActive {
		return
	}
	v.irqActive = active
	if v.OnInterrupt != nil {
		v.OnInterrupt(active)
	}
}

func (v *C64VicDevice) InterruptActive() bool { return v.irqActive }

// BALow reports whether the VIC holds the bus in the current cycle.
func (v *C64VicDevice) BALow() bool {
	return v.badLine && v.cycle >= vicBaStart && v.cycle <= vicBaEnd
}

// Phi1Data returns the last byte the VIC read.
func (v *C64VicDevice) Phi1Data() byte { return v.lastPhi1 }

func (v *C64VicDevice) Raster() int { return v.raster }

func (v *C64VicDevice) BadLine() bool { return v.badLine }

// Timing

func (v *C64VicDevice) evaluateBadLine() {
	v.badLine = v.badLinesEnabled &&
		v.raster >= VIC_FIRST_BAD_LINE && v.raster <= VIC_LAST_BAD_LINE &&
		v.raster&7 == int(v.control1&0x07)
	if v.badLine {
		v.displayState = true
	}
}

// Clock runs one VIC cycle at the given frame tact.
func (v *C64VicDevice) Clock(tact int) {
	if tact >= VIC_TACTS_IN_FRAME {
		return
	}
	v.raster = tact / VIC_CYCLES_PER_LINE
	v.cycle = tact % VIC_CYCLES_PER_LINE

	switch {
	case v.cycle == 0:
		v.startLine()
	case v.cycle == 13:
		v.vc = v.vcBase
		if v.badLine {
			v.rc = 0
		}
	}

	if v.badLine && v.cycle >= vicFirstCFetch && v.cycle < vicFirstCFetch+40 {
		col := v.cycle - vicFirstCFetch
		addr := uint16(v.memPointers&0xF0)<<6 | uint16((v.vc+col)&0x3FF)
		v.matrix[col] = v.mem.VicRead(addr)
		v.colors[col] = v.mem.ColorRam(v.vc+col) & 0x0F
	}

	if v.cycle >= vicFirstGFetch && v.cycle <= vicLastGFetch {
		col := v.cycle - vicFirstGFetch
		v.gAccess(col)
	} else {
		v.lastPhi1 = v.mem.VicRead(v.idleAddress())
	}

	if v.cycle == vicRcCycle {
		if v.rc == 7 {
			v.vcBase = v.vc
			if !v.badLine {
				v.displayState = false
			}
		}
		if v.displayState {
			v.rc = (v.rc + 1) & 7
		}
		v.renderLine()
	}
}

func (v *C64VicDevice) startLine() {
	if v.raster == 0 {
		v.vcBase = 0
		v.badLinesEnabled = false
	}
	if v.raster == VIC_FIRST_BAD_LINE && v.control1&0x10 != 0 {
		v.badLinesEnabled = true
	}
	if v.raster == v.rasterCompare {
		v.raise(VIC_IRQ_RASTER)
	}
	top, bottom := 55, 247
	if v.control1&0x08 != 0 {
		top, bottom = 51, 251
	}
	if v.raster == bottom {
		v.verticalBorder = true
	}
	if v.raster == top && v.control1&0x10 != 0 {
		v.verticalBorder = false
	}
	v.evaluateBadLine()
}

func (v *C64VicDevice) idleAddress() uint16 {
	if v.control1&0x40 != 0 {
		return 0x39FF
	}
	return 0x3FFF
}

func (v *C64VicDevice) gAccess(col int) {
	v.mode = v.control1&0x60 | v.control2&0x10
	if !v.displayState {
		v.idle[col] = true
		v.gdata[col] = v.mem.VicRead(v.idleAddress())
		v.lastPhi1 = v.gdata[col]
		return
	}
	v.idle[col] = false
	var addr uint16
	if v.control1&0x20 != 0 {
		addr = uint16(v.memPointers&0x08)<<10 | uint16(v.vc&0x3FF)<<3 | uint16(v.rc)
	} else {
		addr = uint16(v.memPointers&0x0E)<<10 | uint16(v.matrix[col])<<3 | uint16(v.rc)
	}
	if v.control1&0x40 != 0 {
		addr &^= 0x0600
	}
	v.gdata[col] = v.mem.VicRead(addr)
	v.cdata[col] = v.matrix[col]
	v.lastPhi1 = v.gdata[col]
	v.vc = (v.vc + 1) & 0x3FF
}

// Rendering

func (v *C64VicDevice) renderLine() {
	y := v.raster - VIC_FIRST_LINE
	if y < 0 || y >= VIC_SCREEN_LINES {
		return
	}
	row := v.pixelBuffer[y*VIC_SCREEN_WIDTH : (y+1)*VIC_SCREEN_WIDTH]
	bg := C64Palette[v.bgColor[0]]
	for x := range row {
		row[x] = bg
		v.fgMask[x] = false
	}

	xscroll := int(v.control2 & 0x07)
	start := 4*8 + xscroll
	for col := range 40 {
		v.renderCell(row, start+col*8, col)
	}
	v.renderSprites(row)

	left, right := 31, 335
	if v.control2&0x08 != 0 {
		left, right = 24, 344
	}
	border := C64Palette[v.borderColor]
	for x := range row {
		dx := x - vicBufferXOff
		if v.verticalBorder || dx < left || dx >= right {
			row[x] = border
		}
	}
}

func (v *C64VicDevice) renderCell(row []uint32, x0, col int) {
	g := v.gdata[col]
	c := v.cdata[col]
	color := v.colors[col]
	put := func(i int, colorIndex byte, fg bool) {
		x := x0 + i
		if x < len(row) {
			row[x] = C64Palette[colorIndex&0x0F]
			v.fgMask[x] = fg
		}
	}

	if v.idle[col] {
		for i := range 8 {
			if g&(0x80>>i) != 0 {
				put(i, 0, true)
			}
		}
		return
	}

	ecm := v.mode&0x40 != 0
	bmm := v.mode&0x20 != 0
	mcm := v.mode&0x10 != 0

	switch {
	case ecm && (bmm || mcm):
		for i := range 8 {
			put(i, 0, g&(0x80>>i) != 0)
		}
	case ecm:
		for i := range 8 {
			if g&(0x80>>i) != 0 {
				put(i, color, true)
			} else {
				put(i, v.bgColor[c>>6], false)
			}
		}
	case bmm && mcm:
		for i := 0; i < 8; i += 2 {
			var ci byte
			switch g >> (6 - i) & 3 {
			case 0:
				ci = v.bgColor[0]
			case 1:
				ci = c >> 4
			case 2:
				ci = c & 0x0F
			case 3:
				ci = color
			}
			fg := g>>(6-i)&2 != 0
			put(i, ci, fg)
			put(i+1, ci, fg)
		}
	case bmm:
		for i := range 8 {
			if g&(0x80>>i) != 0 {
				put(i, c>>4, true)
			} else {
				put(i, c&0x0F, false)
			}
		}
	case mcm && color&0x08 != 0:
		for i := 0; i < 8; i += 2 {
			var ci byte
			switch g >> (6 - i) & 3 {
			case 0:
				ci = v.bgColor[0]
			case 1:
				ci = v.bgColor[1]
			case 2:
				ci = v.bgColor[2]
			case 3:
				ci = color & 0x07
			}
			fg := g>>(6-i)&2 != 0
			put(i, ci, fg)
			put(i+1, ci, fg)
		}
	default:
		fgColor := color
		if mcm {
			fgColor &= 0x07
		}
		for i := range 8 {
			if g&(0x80>>i) != 0 {
				put(i, fgColor, true)
			} else {
				put(i, v.bgColor[0], false)
			}
		}
	}
}

// renderSprites draws the sprites that cover the current raster line, lowest
// number on top, and latches collisions.
func (v *C64VicDevice) renderSprites(row []uint32) {
	if v.spriteEnable == 0 {
		return
	}
	var owner [VIC_SCREEN_WIDTH]int8
	for i := range owner {
		owner[i] = -1
	}
	var ss, sb byte
	screenBase := uint16(v.memPointers&0xF0) << 6

	for n := 7; n >= 0; n-- {
		bit := byte(1) << n
		if v.spriteEnable&bit == 0 {
			continue
		}
		height := 21
		if v.spriteYExpand&bit != 0 {
			height = 42
		}
		line := (v.raster - int(v.spriteY[n]) + 256) & 0xFF
		if line >= height {
			continue
		}
		if v.spriteYExpand&bit != 0 {
			line >>= 1
		}
		ptr := uint16(v.mem.VicRead(screenBase|0x3F8|uint16(n))) << 6
		addr := ptr | uint16(line*3)
		data := uint32(v.mem.VicRead(addr))<<16 | uint32(v.mem.VicRead(addr+1))<<8 | uint32(v.mem.VicRead(addr+2))

		width := 1
		if v.spriteXExpand&bit != 0 {
			width = 2
		}
		x0 := v.spriteX[n] + vicBufferXOff
		for p := 0; p < 24; p++ {
			var ci byte
			var opaque bool
			if v.spriteMulti&bit != 0 {
				pair := data >> (22 - p&^1) & 3
				switch pair {
				case 1:
					ci, opaque = v.spriteMC[0], true
				case 2:
					ci, opaque = v.spriteColor[n], true
				case 3:
					ci, opaque = v.spriteMC[1], true
				}
			} else if data&(1<<(23-p)) != 0 {
				ci, opaque = v.spriteColor[n], true
			}
			if !opaque {
				continue
			}
			for w := range width {
				x := x0 + p*width + w
				if x < 0 || x >= len(row) {
					continue
				}
				if owner[x] >= 0 {
					ss |= bit | 1<<owner[x]
				}
				if v.fgMask[x] {
					sb |= bit
				}
				owner[x] = int8(n)
				if v.spritePrio&bit == 0 || !v.fgMask[x] {
					row[x] = C64Palette[ci]
				}
			}
		}
	}

	if ss != 0 {
		if v.collisionSS == 0 {
			v.raise(VIC_IRQ_SS)
		}
		v.collisionSS |= ss
	}
	if sb != 0 {
		if v.collisionSB == 0 {
			v.raise(VIC_IRQ_SB)
		}
		v.collisionSB |= sb
	}
}

func (v *C64VicDevice) GetPixelBuffer() []uint32 { return v.pixelBuffer }
