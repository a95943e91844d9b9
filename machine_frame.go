// machine_frame.go - Frame execution loop, tact events and early-exit conditions

package main

import (
	"sync/atomic"
)

type FrameTerminationMode int

const (
	FrameCompleted FrameTerminationMode = iota
	BreakpointReached
	TerminationPointReached
	Cancelled
)

func (m FrameTerminationMode) String() string {
	switch m {
	case FrameCompleted:
		return "frame-completed"
	case BreakpointReached:
		return "breakpoint"
	case TerminationPointReached:
		return "termination-point"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// TerminationPoint stops the frame loop when PC reaches Address. A non-nil
// Partition also requires the memory partition at that address to match.
type TerminationPoint struct {
	Address   uint16
	Partition *int
}

// ExecutionContext carries the per-run settings of the frame loop. Cancel is
// the only method safe to call from another goroutine.
type ExecutionContext struct {
	Breakpoints      map[uint16]bool
	Termination      *TerminationPoint
	LastTermination  FrameTerminationMode
	cancelRequested  atomic.Bool
	partitionOfAddr  func(addr uint16) int
	instructionsSeen int
}

func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{
		Breakpoints: make(map[uint16]bool),
	}
}

func (c *ExecutionContext) Cancel() {
	c.cancelRequested.Store(true)
}

func (c *ExecutionContext) cancelled() bool {
	return c.cancelRequested.Load()
}

func (c *ExecutionContext) clearCancel() {
	c.cancelRequested.Store(false)
}

func (c *ExecutionContext) AddBreakpoint(addr uint16) {
	c.Breakpoints[addr] = true
}

func (c *ExecutionContext) RemoveBreakpoint(addr uint16) {
	delete(c.Breakpoints, addr)
}

type tactEvent struct {
	tact uint64
	fn   func(data any)
	data any
	id   int
}

// QueueEvent schedules fn to run after the instruction during which the
// machine passes tact. Events run in tact order; equal tacts keep FIFO order.
func (m *Machine) QueueEvent(tact uint64, fn func(data any), data any) int {
	m.nextEventID++
	id := m.nextEventID
	ev := tactEvent{tact: tact, fn: fn, data: data, id: id}
	i := len(m.events)
	for i > 0 && m.events[i-1].tact > tact {
		i--
	}
	m.events = append(m.events, tactEvent{})
	copy(m.events[i+1:], m.events[i:])
	m.events[i] = ev
	return id
}

// RemoveEvent cancels a queued event by id.
func (m *Machine) RemoveEvent(id int) {
	for i, ev := range m.events {
		if ev.id == id {
			m.events = append(m.events[:i], m.events[i+1:]...)
			return
		}
	}
}

func (m *Machine) consumeEvents() {
	for len(m.events) > 0 && m.events[0].tact <= m.Tacts {
		ev := m.events[0]
		m.events = m.events[1:]
		ev.fn(ev.data)
	}
	if len(m.events) == 0 {
		m.events = nil
	}
}

// ExecuteMachineFrame runs instructions until one frame worth of tacts has
// elapsed or an early exit fires.
func (m *Machine) ExecuteMachineFrame() FrameTerminationMode {
	ctx := m.Context
	ctx.instructionsSeen = 0

	for {
		if m.frameCompleted {
			m.startNewFrame()
		}

		if ctx.cancelled() {
			ctx.clearCancel()
			ctx.LastTermination = Cancelled
			return Cancelled
		}

		m.cpu.SetInterruptSignal(m.model.ShouldRaiseInterrupt())
		for {
			if m.snoozer != nil && m.snoozer.IsCpuSnoozed() {
				m.snoozer.OnSnooze()
			} else {
				m.cpu.ExecuteCpuCycle()
			}
			if !m.cpu.InstructionPending() {
				break
			}
		}
		ctx.instructionsSeen++

		if m.events != nil {
			m.consumeEvents()
		}
		m.model.AfterInstructionExecuted()

		if m.hitTerminationPoint() {
			ctx.LastTermination = TerminationPointReached
			return TerminationPointReached
		}
		if m.hitBreakpoint() {
			ctx.LastTermination = BreakpointReached
			return BreakpointReached
		}

		m.frameCompleted = m.Tacts >= m.nextFrameStartTact
		if m.frameCompleted {
			break
		}
	}

	m.frameOverflow = m.Tacts - m.nextFrameStartTact
	m.FrameCount++
	ctx.LastTermination = FrameCompleted
	return FrameCompleted
}

func (m *Machine) startNewFrame() {
	frameStart := m.Tacts - m.frameOverflow
	changed := false
	if m.ClockMultiplier != m.TargetClockMultiplier {
		m.ClockMultiplier = m.TargetClockMultiplier
		m.tactsInCurrentFrame = m.TactsInFrame * m.ClockMultiplier
		changed = true
	}
	m.model.OnInitNewFrame(changed)
	m.frameCompleted = false
	m.nextFrameStartTact = frameStart + uint64(m.TactsInFrame*m.ClockMultiplier)
	m.emulateKeystroke()
}

func (m *Machine) hitBreakpoint() bool {
	ctx := m.Context
	if len(ctx.Breakpoints) == 0 {
		return false
	}
	// Checked after each instruction, so resuming from a breakpoint always
	// moves past it first.
	return ctx.Breakpoints[m.cpu.ProgramCounter()]
}

func (m *Machine) hitTerminationPoint() bool {
	tp := m.Context.Termination
	if tp == nil || m.cpu.ProgramCounter() != tp.Address {
		return false
	}
	if tp.Partition == nil {
		return true
	}
	if m.Context.partitionOfAddr == nil {
		return false
	}
	return m.Context.partitionOfAddr(tp.Address) == *tp.Partition
}

// MachineSnapshot is a read-only summary of the machine after a frame.
type MachineSnapshot struct {
	MachineID        string
	State            MachineState
	Tacts            uint64
	Frames           int
	FrameCount       int
	CurrentFrameTact int
	PC               uint16
	ClockMultiplier  int
	LastTermination  FrameTerminationMode
	ContentionDelay  uint64
	QueuedKeystrokes int
	Instructions     int
}

func (m *Machine) Snapshot() MachineSnapshot {
	return MachineSnapshot{
		MachineID:        m.Profile.ID,
		State:            m.state,
		Tacts:            m.Tacts,
		Frames:           m.Frames,
		FrameCount:       m.FrameCount,
		CurrentFrameTact: m.CurrentFrameTact,
		PC:               m.cpu.ProgramCounter(),
		ClockMultiplier:  m.ClockMultiplier,
		LastTermination:  m.Context.LastTermination,
		ContentionDelay:  m.TotalContentionDelay,
		QueuedKeystrokes: len(m.keyStrokes),
		Instructions:     m.Context.instructionsSeen,
	}
}
