//go:build !headless

// host_ebiten.go - Ebiten window, keyboard and status overlay

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/intuitionamiga/retrocore
License: GPLv3 or later
*/

package main

import (
	"fmt"
	"image/color"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.design/x/clipboard"
	"golang.org/x/image/font/basicfont"
)

const (
	WINDOW_SCALE     = 2
	MAX_PASTE_LENGTH = 4096
)

type EbitenHost struct {
	ctrl    *MachineController
	frames  *FrameBuffer
	title   string
	keyMap  map[ebiten.Key][]int
	window  *ebiten.Image
	pixels  []byte
	width   int
	height  int
	paused  bool
	overlay bool

	fullscreen    bool
	clipboardOnce sync.Once
	clipboardOK   bool
}

func NewEbitenHost(ctrl *MachineController, frames *FrameBuffer) *EbitenHost {
	m := ctrl.Machine
	w, h := m.ScreenSize()
	return &EbitenHost{
		ctrl:    ctrl,
		frames:  frames,
		title:   m.Profile.DisplayName,
		keyMap:  hostKeyMap(m.Profile.Family, m.model.KeysForRune),
		width:   w,
		height:  h,
		overlay: true,
	}
}

// Run blocks on the ebiten loop; it must be called from the main goroutine.
func (eh *EbitenHost) Run() error {
	ebiten.SetWindowSize(eh.width*WINDOW_SCALE, eh.height*WINDOW_SCALE)
	ebiten.SetWindowTitle(eh.title)
	ebiten.SetWindowResizable(true)
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetVsyncEnabled(true)
	if err := ebiten.RunGame(eh); err != nil {
		return fmt.Errorf("ebiten: %w", err)
	}
	return nil
}

func (eh *EbitenHost) send(cmd ControllerCommand) {
	select {
	case eh.ctrl.Commands <- cmd:
	default:
	}
}

func (eh *EbitenHost) Update() error {
	if ebiten.IsWindowBeingClosed() {
		eh.send(CmdStop)
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF9) {
		eh.paused = !eh.paused
		if eh.paused {
			eh.send(CmdPause)
		} else {
			eh.send(CmdResume)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF10) {
		eh.paused = false
		eh.send(CmdHardReset)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		eh.fullscreen = !eh.fullscreen
		ebiten.SetFullscreen(eh.fullscreen)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		eh.overlay = !eh.overlay
	}
	eh.handleKeyboardInput()
	return nil
}

func (eh *EbitenHost) handleKeyboardInput() {
	ctrl := ebiten.IsKeyPressed(ebiten.KeyControlLeft) || ebiten.IsKeyPressed(ebiten.KeyControlRight)
	shift := ebiten.IsKeyPressed(ebiten.KeyShiftLeft) || ebiten.IsKeyPressed(ebiten.KeyShiftRight)
	if ctrl && shift && inpututil.IsKeyJustPressed(ebiten.KeyV) {
		eh.handleClipboardPaste()
		return
	}

	for key, codes := range eh.keyMap {
		var down bool
		switch {
		case inpututil.IsKeyJustPressed(key):
			down = true
		case inpututil.IsKeyJustReleased(key):
			down = false
		default:
			continue
		}
		for _, code := range codes {
			select {
			case eh.ctrl.Keys <- KeyEvent{Code: code, Down: down}:
			default:
			}
		}
	}
}

func (eh *EbitenHost) handleClipboardPaste() {
	eh.clipboardOnce.Do(func() {
		eh.clipboardOK = clipboard.Init() == nil
	})
	if !eh.clipboardOK {
		return
	}
	data := clipboard.Read(clipboard.FmtText)
	if len(data) == 0 {
		return
	}
	data = normalizePasteText(data)
	if len(data) > MAX_PASTE_LENGTH {
		data = data[:MAX_PASTE_LENGTH]
	}
	select {
	case eh.ctrl.Text <- string(data):
	default:
	}
}

// normalizePasteText turns CR and CRLF line ends into LF.
func normalizePasteText(raw []byte) []byte {
	norm := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\r' {
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
			norm = append(norm, '\n')
			continue
		}
		norm = append(norm, raw[i])
	}
	return norm
}

func (eh *EbitenHost) Draw(screen *ebiten.Image) {
	w, h := eh.frames.Size()
	if w == 0 || h == 0 {
		return
	}
	if w != eh.width || h != eh.height || eh.window == nil {
		if eh.window != nil {
			eh.window.Deallocate()
		}
		eh.width, eh.height = w, h
		eh.window = ebiten.NewImage(w, h)
		eh.pixels = make([]byte, w*h*4)
	}
	if eh.frames.CopyTo(eh.pixels) {
		eh.window.WritePixels(eh.pixels)
	}
	screen.DrawImage(eh.window, nil)
	if eh.overlay {
		eh.drawStatusBar(screen)
	}
}

func (eh *EbitenHost) Layout(_, _ int) (int, int) {
	return eh.width, eh.height
}

func (eh *EbitenHost) drawStatusBar(screen *ebiten.Image) {
	face := basicfont.Face7x13
	barHeight := 16
	if barHeight >= eh.height {
		return
	}
	y := eh.height - barHeight
	ebitenutil.DrawRect(screen, 0, float64(y), float64(eh.width), float64(barHeight), color.RGBA{0, 0, 0, 180})

	state := "RUN"
	stateColor := color.RGBA{0, 220, 90, 255}
	if eh.paused {
		state = "PAUSE"
		stateColor = color.RGBA{220, 160, 0, 255}
	}
	text.Draw(screen, state, face, 4, y+12, stateColor)
	status := fmt.Sprintf("%s  %.0f fps  frame %d", eh.title, ebiten.ActualFPS(), eh.frames.Frames())
	text.Draw(screen, status, face, 48, y+12, color.RGBA{190, 190, 190, 255})
}

// hostKeyMap binds host keys to matrix key codes. Letters, digits, space and
// enter go through the model's own rune table; the rest are per family.
func hostKeyMap(family MachineFamily, keysForRune func(rune) (int, int, bool)) map[ebiten.Key][]int {
	keys := make(map[ebiten.Key][]int)
	letters := []ebiten.Key{
		ebiten.KeyA, ebiten.KeyB, ebiten.KeyC, ebiten.KeyD, ebiten.KeyE, ebiten.KeyF, ebiten.KeyG,
		ebiten.KeyH, ebiten.KeyI, ebiten.KeyJ, ebiten.KeyK, ebiten.KeyL, ebiten.KeyM, ebiten.KeyN,
		ebiten.KeyO, ebiten.KeyP, ebiten.KeyQ, ebiten.KeyR, ebiten.KeyS, ebiten.KeyT, ebiten.KeyU,
		ebiten.KeyV, ebiten.KeyW, ebiten.KeyX, ebiten.KeyY, ebiten.KeyZ,
	}
	digits := []ebiten.Key{
		ebiten.KeyDigit0, ebiten.KeyDigit1, ebiten.KeyDigit2, ebiten.KeyDigit3, ebiten.KeyDigit4,
		ebiten.KeyDigit5, ebiten.KeyDigit6, ebiten.KeyDigit7, ebiten.KeyDigit8, ebiten.KeyDigit9,
	}
	bind := func(k ebiten.Key, r rune) {
		if primary, _, ok := keysForRune(r); ok {
			keys[k] = []int{primary}
		}
	}
	for i, k := range letters {
		bind(k, rune('a'+i))
	}
	for i, k := range digits {
		bind(k, rune('0'+i))
	}
	bind(ebiten.KeySpace, ' ')
	bind(ebiten.KeyEnter, '\n')

	switch family {
	case FamilySpectrum:
		keys[ebiten.KeyShiftLeft] = []int{SpKeyCapsShift}
		keys[ebiten.KeyShiftRight] = []int{SpKeySymShift}
		keys[ebiten.KeyControlLeft] = []int{SpKeySymShift}
		keys[ebiten.KeyBackspace] = []int{SpKeyCapsShift, SpKey0}
		keys[ebiten.KeyArrowLeft] = []int{SpKeyCapsShift, SpKey5}
		keys[ebiten.KeyArrowDown] = []int{SpKeyCapsShift, SpKey6}
		keys[ebiten.KeyArrowUp] = []int{SpKeyCapsShift, SpKey7}
		keys[ebiten.KeyArrowRight] = []int{SpKeyCapsShift, SpKey8}
	case FamilyC64:
		keys[ebiten.KeyShiftLeft] = []int{C64KeyLeftShift}
		keys[ebiten.KeyShiftRight] = []int{C64KeyRightShift}
		keys[ebiten.KeyControlLeft] = []int{C64KeyControl}
		keys[ebiten.KeyAltLeft] = []int{C64KeyCommodore}
		keys[ebiten.KeyBackspace] = []int{C64KeyDelete}
		keys[ebiten.KeyEscape] = []int{C64KeyRunStop}
		keys[ebiten.KeyHome] = []int{C64KeyHome}
		keys[ebiten.KeyPageUp] = []int{C64_KEY_RESTORE}
		keys[ebiten.KeyF1] = []int{C64KeyF1}
		keys[ebiten.KeyF3] = []int{C64KeyF3}
		keys[ebiten.KeyF5] = []int{C64KeyF5}
		keys[ebiten.KeyF7] = []int{C64KeyF7}
		keys[ebiten.KeyArrowDown] = []int{C64KeyCursorDown}
		keys[ebiten.KeyArrowRight] = []int{C64KeyCursorRight}
		keys[ebiten.KeyArrowUp] = []int{C64KeyLeftShift, C64KeyCursorDown}
		keys[ebiten.KeyArrowLeft] = []int{C64KeyLeftShift, C64KeyCursorRight}
	case FamilyZ88:
		keys[ebiten.KeyShiftLeft] = []int{Z88KeyLeftShift}
		keys[ebiten.KeyShiftRight] = []int{Z88KeyRightShift}
		keys[ebiten.KeyControlLeft] = []int{Z88KeyDiamond}
		keys[ebiten.KeyAltLeft] = []int{Z88KeySquare}
		keys[ebiten.KeyBackspace] = []int{Z88KeyDelete}
		keys[ebiten.KeyEscape] = []int{Z88KeyEscape}
		keys[ebiten.KeyTab] = []int{Z88KeyTab}
		keys[ebiten.KeyCapsLock] = []int{Z88KeyCapsLock}
		keys[ebiten.KeyF1] = []int{Z88KeyIndex}
		keys[ebiten.KeyF2] = []int{Z88KeyMenu}
		keys[ebiten.KeyF3] = []int{Z88KeyHelp}
		keys[ebiten.KeyArrowUp] = []int{Z88KeyUp}
		keys[ebiten.KeyArrowDown] = []int{Z88KeyDown}
		keys[ebiten.KeyArrowLeft] = []int{Z88KeyLeft}
		keys[ebiten.KeyArrowRight] = []int{Z88KeyRight}
	}
	return keys
}

// runWindowHost runs the controller on its own goroutine and the window on
// the calling one.
func runWindowHost(ctrl *MachineController, frames *FrameBuffer, runController func() error) error {
	errs := make(chan error, 1)
	go func() { errs <- runController() }()
	if err := NewEbitenHost(ctrl, frames).Run(); err != nil {
		return err
	}
	select {
	case ctrl.Commands <- CmdStop:
	default:
	}
	return <-errs
}
