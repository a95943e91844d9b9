// terminal_input.go - Raw terminal bytes to machine input

package main

import (
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	CTRL_C             = 0x03
	TERMINAL_READ_SIZE = 64
	TERMINAL_IDLE      = 5 * time.Millisecond
)

var errNotTerminal = errors.New("stdin is not a terminal")

// TerminalHost types raw stdin into the machine through the controller's
// channels. Headless runs start it; consoleState owns the platform's raw mode.
type TerminalHost struct {
	ctrl    *MachineController
	log     *log.Entry
	console consoleState
	stopCh  chan struct{}
	done    chan struct{}
	stopped sync.Once
}

func NewTerminalHost(ctrl *MachineController) *TerminalHost {
	entry := log.NewEntry(log.StandardLogger())
	if ctrl.Machine != nil {
		entry = ctrl.Machine.log
	}
	return &TerminalHost{
		ctrl:   ctrl,
		log:    entry.WithField("device", "terminal"),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start switches stdin to raw mode and reads it on a goroutine. Without a
// terminal the host stays idle.
func (h *TerminalHost) Start() {
	if err := h.console.enterRaw(); err != nil {
		h.log.WithError(err).Debug("no raw input")
		close(h.done)
		return
	}
	go h.readLoop()
}

func (h *TerminalHost) readLoop() {
	defer close(h.done)
	buf := make([]byte, TERMINAL_READ_SIZE)
	for {
		select {
		case <-h.stopCh:
			return
		default:
		}
		n, idle, err := h.console.read(buf)
		if n > 0 {
			h.route(buf[:n])
		}
		if err != nil {
			h.log.WithError(err).Debug("input closed")
			return
		}
		if idle {
			time.Sleep(TERMINAL_IDLE)
		}
	}
}

// Stop ends the reader and restores the terminal. A reader stuck in a
// blocking read is abandoned.
func (h *TerminalHost) Stop() {
	h.stopped.Do(func() { close(h.stopCh) })
	if !h.console.blockingReads() {
		<-h.done
	}
	h.console.restore()
}

// route forwards a chunk of input as typed text; Ctrl-C stops the machine.
func (h *TerminalHost) route(chunk []byte) {
	text := make([]byte, 0, len(chunk))
	for _, b := range chunk {
		if b == CTRL_C {
			select {
			case h.ctrl.Commands <- CmdStop:
			default:
			}
			return
		}
		// Raw mode sends CR for Enter.
		if b == '\r' {
			b = '\n'
		}
		text = append(text, b)
	}
	select {
	case h.ctrl.Text <- string(text):
	default:
		h.log.Debug("text dropped, controller busy")
	}
}
