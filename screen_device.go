// screen_device.go - Tact-driven ULA screen rendering for the Spectrum models

package main

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"
)

// ScreenMemory gives the ULA read access to the active screen bank. Offsets
// are relative to the start of the bank (bitmap at 0, attributes at 0x1800).
type ScreenMemory interface {
	ReadScreenMemory(offset uint16) byte
}

// ScreenDevice renders the Spectrum picture one tact at a time from a
// precomputed table and publishes the per-tact contention values.
type ScreenDevice struct {
	host   MachineHost
	memory ScreenMemory
	log    *log.Entry

	config ScreenConfiguration
	table  []RenderingTact

	BorderColor       byte
	flashFlag         bool
	RefreshRate       float64
	FlashToggleFrames int

	RasterLines  int
	ScreenWidth  int
	ScreenLines  int
	TactsInFrame int

	firstDisplayLine       int
	firstVisibleLine       int
	firstVisibleBorderTact int

	// Ink and paper color indexes per attribute, flash off and on
	inkFlashOff   [256]byte
	inkFlashOn    [256]byte
	paperFlashOff [256]byte
	paperFlashOn  [256]byte

	pixelByte1, pixelByte2 byte
	attrByte1, attrByte2   byte

	pixelBuffer []uint32
}

// NewScreenDevice builds the rendering table for cfg and registers the frame
// length with the host. A table that fails validation panics with a
// *TimingError.
func NewScreenDevice(host MachineHost, memory ScreenMemory, cfg ScreenConfiguration) *ScreenDevice {
	s := &ScreenDevice{
		host:   host,
		memory: memory,
		log:    host.Logger().WithField("device", "screen"),
		config: cfg,
	}
	s.Reset()
	return s
}

// Configuration returns the active raster configuration.
func (s *ScreenDevice) Configuration() ScreenConfiguration {
	return s.config
}

// SetConfiguration switches to a new raster and rebuilds every table.
func (s *ScreenDevice) SetConfiguration(cfg ScreenConfiguration) {
	s.config = cfg
	s.Reset()
}

func (s *ScreenDevice) Reset() {
	s.BorderColor = 7
	s.flashFlag = false
	s.pixelByte1, s.pixelByte2 = 0, 0
	s.attrByte1, s.attrByte2 = 0, 0
	s.initializeInkAndPaperTables()
	s.initializeRenderingTactTable()
	if err := s.validateRenderingTable(); err != nil {
		panic(err)
	}
}

func (s *ScreenDevice) Dispose() {}

func (s *ScreenDevice) initializeInkAndPaperTables() {
	for attr := range 256 {
		a := byte(attr)
		bright := (a & 0x40) >> 3
		ink := a&0x07 | bright
		paper := (a&0x38)>>3 | bright
		s.inkFlashOff[attr] = ink
		s.paperFlashOff[attr] = paper
		if a&0x80 != 0 {
			s.inkFlashOn[attr] = paper
			s.paperFlashOn[attr] = ink
		} else {
			s.inkFlashOn[attr] = ink
			s.paperFlashOn[attr] = paper
		}
	}
}

func (s *ScreenDevice) initializeRenderingTactTable() {
	cfg := s.config
	s.firstDisplayLine = cfg.FirstDisplayLine()
	lastDisplayLine := s.firstDisplayLine + cfg.DisplayLines - 1
	s.RasterLines = cfg.RasterLines()
	s.ScreenLines = cfg.BorderTopLines + cfg.DisplayLines + cfg.BorderBottomLines - 1
	s.ScreenWidth = 2 * (cfg.BorderLeftTime + cfg.DisplayLineTime + cfg.BorderRightTime)

	bufSize := (s.ScreenLines + 4) * s.ScreenWidth
	if len(s.pixelBuffer) != bufSize {
		s.pixelBuffer = make([]uint32, bufSize)
	}

	lineTime := cfg.ScreenLineTime()
	tactsInFrame := s.RasterLines * lineTime
	s.TactsInFrame = tactsInFrame
	s.host.SetTactsInFrame(tactsInFrame)

	s.RefreshRate = float64(s.host.BaseClock()) / float64(tactsInFrame)
	s.FlashToggleFrames = max(1, int(math.Round(s.RefreshRate/2)))

	s.firstVisibleLine = cfg.VerticalSyncLines + cfg.NonVisibleBorderTopLines
	lastVisibleLine := s.RasterLines - cfg.NonVisibleBorderBottomLines
	s.firstVisibleBorderTact = lineTime - cfg.BorderLeftTime
	lastVisibleLineTact := cfg.DisplayLineTime + cfg.BorderRightTime
	borderPixelFetchTact := lineTime - cfg.PixelDataPrefetchTime
	borderAttrFetchTact := lineTime - cfg.AttributeDataPrefetchTime
	cv := cfg.ContentionValues

	if cap(s.table) >= tactsInFrame {
		s.table = s.table[:tactsInFrame]
	} else {
		s.table = make([]RenderingTact, tactsInFrame)
	}

	for tact := range tactsInFrame {
		rt := RenderingTact{}
		line := tact / lineTime
		tactInLine := tact % lineTime

		// The tail of the line above the first visible one draws that
		// line's left border.
		visible := line >= s.firstVisibleLine && line <= lastVisibleLine &&
			(tactInLine < lastVisibleLineTact || tactInLine >= s.firstVisibleBorderTact) ||
			line == s.firstVisibleLine-1 && tactInLine >= s.firstVisibleBorderTact

		if visible {
			calculated := false
			// The first pixel and attribute of the display are fetched at the
			// end of the line above it.
			if line == s.firstDisplayLine-1 {
				switch tactInLine {
				case borderPixelFetchTact - 1:
					rt.Phase, rt.Contention = PhaseBorder, cv[6]
					calculated = true
				case borderPixelFetchTact:
					rt.Phase, rt.Contention = PhaseBorderFetchPixel, cv[7]
					rt.PixelAddress = s.calcPixelAddress(line+1, 0)
					calculated = true
				case borderAttrFetchTact:
					rt.Phase, rt.Contention = PhaseBorderFetchAttr, cv[0]
					rt.AttrAddress = s.calcAttrAddress(line+1, 0)
					calculated = true
				}
			}

			switch {
			case calculated:
			case line >= s.firstDisplayLine && line <= lastDisplayLine && tactInLine < cfg.DisplayLineTime:
				switch tactInLine & 0x07 {
				case 0:
					rt.Phase, rt.Contention = PhaseDisplayB1FetchB2, cv[1]
					rt.PixelAddress = s.calcPixelAddress(line, tactInLine+4)
				case 1:
					rt.Phase, rt.Contention = PhaseDisplayB1FetchA2, cv[2]
					rt.AttrAddress = s.calcAttrAddress(line, tactInLine+3)
				case 2:
					rt.Phase, rt.Contention = PhaseDisplayB1, cv[3]
				case 3:
					rt.Phase, rt.Contention = PhaseDisplayB1, cv[4]
				case 4:
					rt.Phase, rt.Contention = PhaseDisplayB2, cv[5]
				case 5:
					rt.Phase, rt.Contention = PhaseDisplayB2, cv[6]
				case 6:
					rt.Phase = PhaseDisplayB2
					if tactInLine < cfg.DisplayLineTime-cfg.PixelDataPrefetchTime {
						rt.Phase, rt.Contention = PhaseDisplayB2FetchB1, cv[7]
						rt.PixelAddress = s.calcPixelAddress(line, tactInLine+cfg.PixelDataPrefetchTime)
					}
				case 7:
					rt.Phase = PhaseDisplayB2
					if tactInLine < cfg.DisplayLineTime-cfg.AttributeDataPrefetchTime {
						rt.Phase, rt.Contention = PhaseDisplayB2FetchA1, cv[0]
						rt.AttrAddress = s.calcAttrAddress(line, tactInLine+cfg.AttributeDataPrefetchTime)
					}
				}
			default:
				rt.Phase = PhaseBorder
				if line >= s.firstDisplayLine && line < lastDisplayLine {
					switch tactInLine {
					case borderPixelFetchTact:
						rt.Phase, rt.Contention = PhaseBorderFetchPixel, cv[7]
						rt.PixelAddress = s.calcPixelAddress(line+1, 0)
					case borderAttrFetchTact:
						rt.Phase, rt.Contention = PhaseBorderFetchAttr, cv[0]
						rt.AttrAddress = s.calcAttrAddress(line+1, 0)
					}
				}
			}
		}

		if rt.Phase != PhaseNone {
			rt.PixelIndex = s.calculateBufferIndex(line, tactInLine)
		}
		rt.action = renderActions[rt.Phase]
		s.host.SetContentionValue(tact, rt.Contention)
		s.table[tact] = rt
	}
	s.log.WithFields(log.Fields{
		"tacts":   tactsInFrame,
		"lines":   s.RasterLines,
		"refresh": fmt.Sprintf("%.2f", s.RefreshRate),
	}).Debug("rendering table built")
}

// validateRenderingTable checks the invariants every later tact lookup
// relies on.
func (s *ScreenDevice) validateRenderingTable() error {
	want := s.RasterLines * s.config.ScreenLineTime()
	if len(s.table) != want {
		return &TimingError{Table: "rendering", Index: -1, Want: want, Got: len(s.table)}
	}
	for i := range s.table {
		rt := &s.table[i]
		if rt.Phase == PhaseNone {
			continue
		}
		if rt.PixelIndex < 0 || rt.PixelIndex+1 >= len(s.pixelBuffer) {
			return &TimingError{Table: "pixel index", Index: i, Want: len(s.pixelBuffer) - 2, Got: rt.PixelIndex}
		}
		if rt.PixelAddress >= SCREEN_MEMORY_SIZE || rt.AttrAddress >= SCREEN_MEMORY_SIZE {
			return &TimingError{Table: "screen address", Index: i, Want: SCREEN_MEMORY_SIZE - 1, Got: int(max(rt.PixelAddress, rt.AttrAddress))}
		}
	}
	return nil
}

func (s *ScreenDevice) calcPixelAddress(line, tactInLine int) uint16 {
	row := line - s.firstDisplayLine
	return uint16(((row & 0xC0) << 5) + ((row & 0x07) << 8) + ((row & 0x38) << 2) + (tactInLine >> 2))
}

func (s *ScreenDevice) calcAttrAddress(line, tactInLine int) uint16 {
	return uint16((tactInLine >> 2) + (((line - s.firstDisplayLine) >> 3) << 5) + SCREEN_ATTR_OFFSET)
}

// calculateBufferIndex maps a tact to its pixel pair. The left border of a
// line is drawn during the tail of the previous raster line.
func (s *ScreenDevice) calculateBufferIndex(line, tactInLine int) int {
	if tactInLine >= s.firstVisibleBorderTact {
		line++
		tactInLine -= s.firstVisibleBorderTact
	} else {
		tactInLine += s.config.BorderLeftTime
	}
	if line < s.firstVisibleLine {
		return 0
	}
	return 2 * ((line-s.firstVisibleLine)*s.ScreenWidth/2 + tactInLine)
}

// =============================================================================
// Rendering
// =============================================================================

var renderActions = [...]func(*ScreenDevice, *RenderingTact){
	PhaseNone:             nil,
	PhaseBorder:           (*ScreenDevice).renderBorder,
	PhaseBorderFetchPixel: (*ScreenDevice).renderBorderFetchPixel,
	PhaseBorderFetchAttr:  (*ScreenDevice).renderBorderFetchAttr,
	PhaseDisplayB1:        (*ScreenDevice).renderByte1,
	PhaseDisplayB1FetchB2: (*ScreenDevice).renderByte1FetchByte2,
	PhaseDisplayB1FetchA2: (*ScreenDevice).renderByte1FetchAttr2,
	PhaseDisplayB2:        (*ScreenDevice).renderByte2,
	PhaseDisplayB2FetchB1: (*ScreenDevice).renderByte2FetchByte1,
	PhaseDisplayB2FetchA1: (*ScreenDevice).renderByte2FetchAttr1,
}

// RenderTact draws the pixel pair of the given frame tact.
func (s *ScreenDevice) RenderTact(tact int) {
	if tact < 0 || tact >= len(s.table) {
		return
	}
	rt := &s.table[tact]
	if rt.action != nil {
		rt.action(s, rt)
	}
}

// RenderingTactAt returns the table entry for a frame tact.
func (s *ScreenDevice) RenderingTactAt(tact int) RenderingTact {
	return s.table[tact]
}

// RenderInstantScreen draws a whole frame from the current screen memory.
func (s *ScreenDevice) RenderInstantScreen() {
	for tact := range s.table {
		s.RenderTact(tact)
	}
}

// OnNewFrame updates the flash phase from the frame counter.
func (s *ScreenDevice) OnNewFrame() {
	s.flashFlag = (s.host.FrameCounter()/s.FlashToggleFrames)%2 == 0
}

func (s *ScreenDevice) FlashFlag() bool { return s.flashFlag }

func (s *ScreenDevice) GetPixelBuffer() []uint32 { return s.pixelBuffer }

func (s *ScreenDevice) pixelColor(pixel bool, attr byte) uint32 {
	switch {
	case pixel && s.flashFlag:
		return spectrumColors[s.inkFlashOn[attr]]
	case pixel:
		return spectrumColors[s.inkFlashOff[attr]]
	case s.flashFlag:
		return spectrumColors[s.paperFlashOn[attr]]
	default:
		return spectrumColors[s.paperFlashOff[attr]]
	}
}

func (s *ScreenDevice) renderBorder(rt *RenderingTact) {
	c := spectrumColors[s.BorderColor&0x07]
	s.pixelBuffer[rt.PixelIndex] = c
	s.pixelBuffer[rt.PixelIndex+1] = c
}

func (s *ScreenDevice) renderBorderFetchPixel(rt *RenderingTact) {
	s.renderBorder(rt)
	s.pixelByte1 = s.memory.ReadScreenMemory(rt.PixelAddress)
}

func (s *ScreenDevice) renderBorderFetchAttr(rt *RenderingTact) {
	s.renderBorder(rt)
	s.attrByte1 = s.memory.ReadScreenMemory(rt.AttrAddress)
}

func (s *ScreenDevice) renderByte1(rt *RenderingTact) {
	s.pixelBuffer[rt.PixelIndex] = s.pixelColor(s.pixelByte1&0x80 != 0, s.attrByte1)
	s.pixelBuffer[rt.PixelIndex+1] = s.pixelColor(s.pixelByte1&0x40 != 0, s.attrByte1)
	s.pixelByte1 <<= 2
}

func (s *ScreenDevice) renderByte1FetchByte2(rt *RenderingTact) {
	s.renderByte1(rt)
	s.pixelByte2 = s.memory.ReadScreenMemory(rt.PixelAddress)
}

func (s *ScreenDevice) renderByte1FetchAttr2(rt *RenderingTact) {
	s.renderByte1(rt)
	s.attrByte2 = s.memory.ReadScreenMemory(rt.AttrAddress)
}

func (s *ScreenDevice) renderByte2(rt *RenderingTact) {
	s.pixelBuffer[rt.PixelIndex] = s.pixelColor(s.pixelByte2&0x80 != 0, s.attrByte2)
	s.pixelBuffer[rt.PixelIndex+1] = s.pixelColor(s.pixelByte2&0x40 != 0, s.attrByte2)
	s.pixelByte2 <<= 2
}

func (s *ScreenDevice) renderByte2FetchByte1(rt *RenderingTact) {
	s.renderByte2(rt)
	s.pixelByte1 = s.memory.ReadScreenMemory(rt.PixelAddress)
}

func (s *ScreenDevice) renderByte2FetchAttr1(rt *RenderingTact) {
	s.renderByte2(rt)
	s.attrByte1 = s.memory.ReadScreenMemory(rt.AttrAddress)
}
