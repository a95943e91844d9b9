// screen_config.go - ULA raster geometry, rendering phases and palette

/*
screen_config.go - ULA Video Timing Configuration

The ULA draws the picture one tact at a time. A frame is a number of raster
lines, each line a number of tacts, and every tact of the frame is either
invisible (blanking, sync), border, or display. During the display part the
ULA fetches a pixel byte and an attribute byte a couple of tacts before it
shifts them out, and those fetches are what contend the CPU's access to the
lower 16K of RAM.

Line layout (tacts):
  | display | right border | non-visible border | h-blank | left border |

Frame layout (lines):
  vsync, non-visible top border, top border, display, bottom border,
  non-visible bottom border

Pixel format: 0xAARRGGBB, two pixels per tact.
*/

package main

// =============================================================================
// Raster Geometry
// =============================================================================

// ScreenConfiguration describes the raster of one ULA variant. All times
// are in tacts, all heights in raster lines.
type ScreenConfiguration struct {
	VerticalSyncLines           int
	NonVisibleBorderTopLines    int
	BorderTopLines              int
	BorderBottomLines           int
	NonVisibleBorderBottomLines int
	DisplayLines                int
	BorderLeftTime              int
	BorderRightTime             int
	DisplayLineTime             int
	HorizontalBlankingTime      int
	NonVisibleBorderRightTime   int
	PixelDataPrefetchTime       int
	AttributeDataPrefetchTime   int

	// ContentionValues is the eight-tact contention pattern, indexed by the
	// position of the tact inside a display cell.
	ContentionValues [8]int
}

var ZxSpectrum48ScreenConfiguration = ScreenConfiguration{
	VerticalSyncLines:           8,
	NonVisibleBorderTopLines:    7,
	BorderTopLines:              49,
	BorderBottomLines:           48,
	NonVisibleBorderBottomLines: 8,
	DisplayLines:                192,
	BorderLeftTime:              24,
	BorderRightTime:             24,
	DisplayLineTime:             128,
	HorizontalBlankingTime:      40,
	NonVisibleBorderRightTime:   8,
	PixelDataPrefetchTime:       2,
	AttributeDataPrefetchTime:   1,
	ContentionValues:            [8]int{6, 5, 4, 3, 2, 1, 0, 0},
}

var ZxSpectrum128ScreenConfiguration = ScreenConfiguration{
	VerticalSyncLines:           8,
	NonVisibleBorderTopLines:    7,
	BorderTopLines:              48,
	BorderBottomLines:           48,
	NonVisibleBorderBottomLines: 8,
	DisplayLines:                192,
	BorderLeftTime:              24,
	BorderRightTime:             24,
	DisplayLineTime:             128,
	HorizontalBlankingTime:      40,
	NonVisibleBorderRightTime:   12,
	PixelDataPrefetchTime:       2,
	AttributeDataPrefetchTime:   1,
	ContentionValues:            [8]int{4, 3, 2, 1, 0, 0, 6, 5},
}

// The +2A/+3 gate array shares the 128K raster but contends differently.
var ZxSpectrumP3ScreenConfiguration = ScreenConfiguration{
	VerticalSyncLines:           8,
	NonVisibleBorderTopLines:    7,
	BorderTopLines:              48,
	BorderBottomLines:           48,
	NonVisibleBorderBottomLines: 8,
	DisplayLines:                192,
	BorderLeftTime:              24,
	BorderRightTime:             24,
	DisplayLineTime:             128,
	HorizontalBlankingTime:      40,
	NonVisibleBorderRightTime:   12,
	PixelDataPrefetchTime:       2,
	AttributeDataPrefetchTime:   1,
	ContentionValues:            [8]int{0, 7, 6, 5, 4, 3, 2, 1},
}

// FirstDisplayLine is the raster line of the first bitmap row.
func (c ScreenConfiguration) FirstDisplayLine() int {
	return c.VerticalSyncLines + c.NonVisibleBorderTopLines + c.BorderTopLines
}

func (c ScreenConfiguration) RasterLines() int {
	return c.FirstDisplayLine() + c.DisplayLines + c.BorderBottomLines + c.NonVisibleBorderBottomLines
}

func (c ScreenConfiguration) ScreenLineTime() int {
	return c.BorderLeftTime + c.DisplayLineTime + c.BorderRightTime + c.NonVisibleBorderRightTime + c.HorizontalBlankingTime
}

func (c ScreenConfiguration) TactsInFrame() int {
	return c.RasterLines() * c.ScreenLineTime()
}

// =============================================================================
// Rendering Phases
// =============================================================================

// RenderingPhase tells the ULA what to do in a particular tact.
type RenderingPhase uint8

const (
	PhaseNone             RenderingPhase = iota // blanking or sync, nothing drawn
	PhaseBorder                                 // two border pixels
	PhaseBorderFetchPixel                       // border, prefetch the first pixel byte
	PhaseBorderFetchAttr                        // border, prefetch the first attribute
	PhaseDisplayB1                              // two pixels from byte 1
	PhaseDisplayB1FetchB2                       // byte 1 pixels, fetch pixel byte 2
	PhaseDisplayB1FetchA2                       // byte 1 pixels, fetch attribute 2
	PhaseDisplayB2                              // two pixels from byte 2
	PhaseDisplayB2FetchB1                       // byte 2 pixels, fetch pixel byte 1
	PhaseDisplayB2FetchA1                       // byte 2 pixels, fetch attribute 1
)

var renderingPhaseNames = [...]string{
	"None", "Border", "BorderFetchPixel", "BorderFetchAttr",
	"DisplayB1", "DisplayB1FetchB2", "DisplayB1FetchA2",
	"DisplayB2", "DisplayB2FetchB1", "DisplayB2FetchA1",
}

func (p RenderingPhase) String() string {
	if int(p) < len(renderingPhaseNames) {
		return renderingPhaseNames[p]
	}
	return "Unknown"
}

// RenderingTact is the precomputed descriptor of one frame tact.
type RenderingTact struct {
	Phase        RenderingPhase
	PixelAddress uint16 // screen memory offset fetched in this tact
	AttrAddress  uint16
	PixelIndex   int // first of the two pixels drawn, into the pixel buffer
	Contention   int
	action       func(*ScreenDevice, *RenderingTact)
}

// =============================================================================
// Color Palette
// =============================================================================

// spectrumColors holds the eight normal colors followed by the eight bright
// ones. Bright black is still black.
var spectrumColors = [16]uint32{
	0xFF000000, // Black
	0xFF0000AA, // Blue
	0xFFAA0000, // Red
	0xFFAA00AA, // Magenta
	0xFF00AA00, // Green
	0xFF00AAAA, // Cyan
	0xFFAAAA00, // Yellow
	0xFFAAAAAA, // White
	0xFF000000, // Bright black
	0xFF0000FF, // Bright blue
	0xFFFF0000, // Bright red
	0xFFFF00FF, // Bright magenta
	0xFF00FF00, // Bright green
	0xFF00FFFF, // Bright cyan
	0xFFFFFF00, // Bright yellow
	0xFFFFFFFF, // Bright white
}

const (
	SCREEN_ATTR_OFFSET = 0x1800 // attribute area inside screen memory
	SCREEN_MEMORY_SIZE = 0x1B00 // bitmap plus attributes
)
