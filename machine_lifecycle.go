// machine_lifecycle.go - Machine state machine and the frame-pacing controller

package main

import (
	"context"
	"fmt"
	"time"
)

type MachineState int

const (
	StateUninitialized MachineState = iota
	StateSetup
	StateReady
	StateRunning
	StatePaused
	StateStopped
)

func (s MachineState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSetup:
		return "setup"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var machineTransitions = map[MachineState][]MachineState{
	StateUninitialized: {StateSetup},
	StateSetup:         {StateReady, StateStopped},
	StateReady:         {StateRunning, StateSetup, StateStopped},
	StateRunning:       {StatePaused, StateStopped, StateSetup},
	StatePaused:        {StateRunning, StateStopped, StateSetup},
	StateStopped:       {StateSetup},
}

// State returns the current lifecycle state.
func (m *Machine) State() MachineState {
	return m.state
}

// Transition moves the machine to next or reports why it cannot.
func (m *Machine) Transition(next MachineState) error {
	for _, allowed := range machineTransitions[m.state] {
		if allowed == next {
			m.log.WithField("from", m.state.String()).Infof("state %s", next)
			m.state = next
			return nil
		}
	}
	return fmt.Errorf("%s -> %s: %w", m.state, next, ErrInvalidTransition)
}

// ControllerCommand is sent by host goroutines to a running controller.
type ControllerCommand int

const (
	CmdPause ControllerCommand = iota
	CmdResume
	CmdHardReset
	CmdSoftReset
	CmdStop
)

// KeyEvent carries a host key transition to the controller goroutine.
type KeyEvent struct {
	Code int
	Down bool
}

// FrameSink receives the machine output after every completed frame. It is
// called on the controller goroutine.
type FrameSink interface {
	PresentFrame(pixels []uint32, width, height int)
	QueueSamples(samples []AudioSample)
}

// MachineController owns a machine and is the only goroutine that touches
// it once Run has started.
type MachineController struct {
	Machine  *Machine
	Keys     chan KeyEvent
	Commands chan ControllerCommand
	Text     chan string
	Clock    chan int
	Sink     FrameSink
	Script   func(m *Machine) // optional per-frame automation hook

	paused bool
}

func NewMachineController(m *Machine, sink FrameSink) *MachineController {
	return &MachineController{
		Machine:  m,
		Keys:     make(chan KeyEvent, 64),
		Commands: make(chan ControllerCommand, 8),
		Text:     make(chan string, 4),
		Clock:    make(chan int, 4),
		Sink:     sink,
	}
}

// frameDuration is the wall-clock length of one frame at multiplier 1.
func (c *MachineController) frameDuration() time.Duration {
	m := c.Machine
	return time.Duration(float64(time.Second) * float64(m.TactsInFrame) / float64(m.Profile.BaseClock))
}

// Run paces frames until ctx is done or a stop command arrives.
func (c *MachineController) Run(ctx context.Context) error {
	m := c.Machine
	if m.state == StateReady || m.state == StatePaused {
		if err := m.Transition(StateRunning); err != nil {
			return err
		}
	}
	if m.state != StateRunning {
		return fmt.Errorf("run from %s: %w", m.state, ErrInvalidTransition)
	}

	ticker := time.NewTicker(c.frameDuration())
	defer ticker.Stop()

	stop := context.AfterFunc(ctx, m.Context.Cancel)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return c.stop()
		case cmd := <-c.Commands:
			if done, err := c.handleCommand(cmd); done {
				return err
			}
		case ev := <-c.Keys:
			m.SetKeyStatus(ev.Code, ev.Down)
		case text := <-c.Text:
			m.TypeText(text)
		case mult := <-c.Clock:
			m.SetClockMultiplier(mult)
		case <-ticker.C:
			if c.paused {
				continue
			}
			if c.Script != nil {
				c.Script(m)
			}
			switch m.ExecuteMachineFrame() {
			case Cancelled:
				return c.stop()
			case BreakpointReached, TerminationPointReached:
				c.pause()
			}
			if c.Sink != nil {
				w, h := m.ScreenSize()
				c.Sink.PresentFrame(m.GetPixelBuffer(), w, h)
				c.Sink.QueueSamples(m.GetAudioSamples())
			}
		}
	}
}

func (c *MachineController) handleCommand(cmd ControllerCommand) (bool, error) {
	m := c.Machine
	switch cmd {
	case CmdPause:
		c.pause()
	case CmdResume:
		if c.paused {
			c.paused = false
			m.ContentionSincePause = 0
			c.enter(StateRunning, "resume")
		}
	case CmdHardReset:
		m.HardReset()
		c.paused = false
		c.enter(StateRunning, "hard reset")
	case CmdSoftReset:
		m.SoftReset()
	case CmdStop:
		return true, c.stop()
	}
	return false, nil
}

func (c *MachineController) pause() {
	if c.paused {
		return
	}
	c.paused = true
	c.enter(StatePaused, "pause")
}

// enter moves the machine to state. A refused transition leaves the machine
// where it is and is logged; the controller keeps running.
func (c *MachineController) enter(state MachineState, op string) {
	c.Machine.transitionOrWarn(state, op)
}

func (c *MachineController) stop() error {
	return c.Machine.Transition(StateStopped)
}
