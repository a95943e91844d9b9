// c64_cia.go - MOS 6526 Complex Interface Adapter

/*
c64_cia.go - CIA

Two CIAs sit at 0xDC00 (CIA1) and 0xDD00 (CIA2), each decoding 16 registers
mirrored over its page:

  0x0 PRA    0x4 TALO   0x8 TOD 1/10s  0xC SDR
  0x1 PRB    0x5 TAHI   0x9 TOD sec    0xD ICR
  0x2 DDRA   0x6 TBLO   0xA TOD min    0xE CRA
  0x3 DDRB   0x7 TBHI   0xB TOD hour   0xF CRB

Timers count phi2 cycles (or timer A underflows for timer B). A timer that
reaches zero underflows, raises its ICR bit and reloads from the latch;
one-shot timers stop after that. The ICR data register is cleared by
reading it; its IR bit and the interrupt line follow data AND mask.

CIA1 drives the IRQ line, CIA2 the NMI line.
*/

package main

const (
	CIA_PRA = iota
	CIA_PRB
	CIA_DDRA
	CIA_DDRB
	CIA_TALO
	CIA_TAHI
	CIA_TBLO
	CIA_TBHI
	CIA_TOD_TENTHS
	CIA_TOD_SEC
	CIA_TOD_MIN
	CIA_TOD_HR
	CIA_SDR
	CIA_ICR
	CIA_CRA
	CIA_CRB
)

const (
	CIA_ICR_TA    = 0x01
	CIA_ICR_TB    = 0x02
	CIA_ICR_ALARM = 0x04
	CIA_ICR_SP    = 0x08
	CIA_ICR_FLAG  = 0x10
	CIA_ICR_IR    = 0x80

	CIA_CR_START   = 0x01
	CIA_CR_PBON    = 0x02
	CIA_CR_TOGGLE  = 0x04
	CIA_CR_ONESHOT = 0x08
	CIA_CR_LOAD    = 0x10
	CIA_CRA_SPOUT  = 0x40
	CIA_CRA_TOD50  = 0x80
	CIA_CRB_INMODE = 0x60
	CIA_CRB_ALARM  = 0x80

	ciaCrbCountTA = 0x40
)

// CiaPorts connects the two 8-bit ports to the outside world. out has every
// pin the CIA drives low cleared and every other pin high.
type CiaPorts interface {
	ReadPortA(out byte) byte
	ReadPortB(out byte) byte
	WritePortA(out byte)
	WritePortB(out byte)
}

type ciaTimer struct {
	counter    int
	latch      int
	control    byte
	underflows int
	output     bool
}

type ciaTod struct {
	tenths, sec, min, hr byte
}

type CiaDevice struct {
	host  MachineHost
	name  string
	ports CiaPorts

	// OnInterrupt receives every change of the interrupt output.
	OnInterrupt func(active bool)

	pra, prb   byte
	ddra, ddrb byte
	timerA     ciaTimer
	timerB     ciaTimer
	icrData    byte
	icrMask    byte
	irqActive  bool
	sdr        byte
	sdrBits    int

	tod        ciaTod
	alarm      ciaTod
	todLatch   ciaTod
	todLatched bool
	todStopped bool
	todTicks   int
}

func NewCiaDevice(host MachineHost, name string, ports CiaPorts) *CiaDevice {
	c := &CiaDevice{host: host, name: name, ports: ports}
	c.Reset()
	return c
}

func (c *CiaDevice) Reset() {
	c.pra, c.prb = 0, 0
	c.ddra, c.ddrb = 0, 0
	c.timerA = ciaTimer{counter: 0xFFFF, latch: 0xFFFF}
	c.timerB = ciaTimer{counter: 0xFFFF, latch: 0xFFFF}
	c.icrData, c.icrMask = 0, 0
	c.sdr, c.sdrBits = 0, 0
	c.tod = ciaTod{hr: 0x01}
	c.alarm = ciaTod{}
	c.todLatched, c.todStopped = false, false
	c.todTicks = 0
	c.setInterrupt(false)
}

func (c *CiaDevice) Dispose() {}

func (c *CiaDevice) portAOut() byte { return c.pra | ^c.ddra }

func (c *CiaDevice) portBOut() byte {
	out := c.prb | ^c.ddrb
	if c.timerA.control&CIA_CR_PBON != 0 {
		out = out&^0x40 | timerPin(&c.timerA)<<6
	}
	if c.timerB.control&CIA_CR_PBON != 0 {
		out = out&^0x80 | timerPin(&c.timerB)<<7
	}
	return out
}

func timerPin(t *ciaTimer) byte {
	if t.output {
		return 1
	}
	return 0
}

// ReadRegister decodes reg & 0x0F. Reads of ICR and TOD have side effects.
func (c *CiaDevice) ReadRegister(reg byte) byte {
	switch reg & 0x0F {
	case CIA_PRA:
		return c.ports.ReadPortA(c.portAOut())
	case CIA_PRB:
		return c.ports.ReadPortB(c.portBOut())
	case CIA_DDRA:
		return c.ddra
	case CIA_DDRB:
		return c.ddrb
	case CIA_TALO:
		return byte(c.timerA.counter)
	case CIA_TAHI:
		return byte(c.timerA.counter >> 8)
	case CIA_TBLO:
		return byte(c.timerB.counter)
	case CIA_TBHI:
		return byte(c.timerB.counter >> 8)
	case CIA_TOD_TENTHS:
		t := c.todView().tenths
		c.todLatched = false
		return t
	case CIA_TOD_SEC:
		return c.todView().sec
	case CIA_TOD_MIN:
		return c.todView().min
	case CIA_TOD_HR:
		if !c.todLatched {
			c.todLatch = c.tod
			c.todLatched = true
		}
		return c.todLatch.hr
	case CIA_SDR:
		return c.sdr
	case CIA_ICR:
		v := c.icrData
		if c.irqActive {
			v |= CIA_ICR_IR
		}
		c.icrData = 0
		c.setInterrupt(false)
		return v
	case CIA_CRA:
		return c.timerA.control &^ CIA_CR_LOAD
	}
	return c.timerB.control &^ CIA_CR_LOAD
}

// PeekRegister reads without side effects.
func (c *CiaDevice) PeekRegister(reg byte) byte {
	switch reg & 0x0F {
	case CIA_ICR:
		return c.icrData
	case CIA_TOD_TENTHS:
		return c.tod.tenths
	case CIA_TOD_HR:
		return c.tod.hr
	}
	return c.ReadRegister(reg)
}

func (c *CiaDevice) todView() ciaTod {
	if c.todLatched {
		return c.todLatch
	}
	return c.tod
}

func (c *CiaDevice) WriteRegister(reg byte, v byte) {
	switch reg & 0x0F {
	case CIA_PRA:
		c.pra = v
		c.ports.WritePortA(c.portAOut())
	case CIA_PRB:
		c.prb = v
		c.ports.WritePortB(c.portBOut())
	case CIA_DDRA:
		c.ddra = v
		c.ports.WritePortA(c.portAOut())
	case CIA_DDRB:
		c.ddrb = v
		c.ports.WritePortB(c.portBOut())
	case CIA_TALO:
		c.timerA.latch = c.timerA.latch&0xFF00 | int(v)
	case CIA_TAHI:
		c.timerA.latch = c.timerA.latch&0x00FF | int(v)<<8
		if c.timerA.control&CIA_CR_START == 0 {
			c.timerA.counter = c.timerA.latch
		}
	case CIA_TBLO:
		c.timerB.latch = c.timerB.latch&0xFF00 | int(v)
	case CIA_TBHI:
		c.timerB.latch = c.timerB.latch&0x00FF | int(v)<<8
		if c.timerB.control&CIA_CR_START == 0 {
			c.timerB.counter = c.timerB.latch
		}
	case CIA_TOD_TENTHS:
		c.writeTod(func(t *ciaTod) { t.tenths = v & 0x0F })
		c.todStopped = false
	case CIA_TOD_SEC:
		c.writeTod(func(t *ciaTod) { t.sec = v & 0x7F })
	case CIA_TOD_MIN:
		c.writeTod(func(t *ciaTod) { t.min = v & 0x7F })
	case CIA_TOD_HR:
		c.writeTod(func(t *ciaTod) { t.hr = v & 0x9F })
		if c.timerB.control&CIA_CRB_ALARM == 0 {
			c.todStopped = true
		}
	case CIA_SDR:
		c.sdr = v
		if c.timerA.control&CIA_CRA_SPOUT != 0 {
			c.sdrBits = 16
		}
	case CIA_ICR:
		if v&0x80 != 0 {
			c.icrMask |= v & 0x1F
		} else {
			c.icrMask &^= v & 0x1F
		}
		c.setInterrupt(c.icrData&c.icrMask != 0)
	case CIA_CRA:
		c.writeControl(&c.timerA, v)
	case CIA_CRB:
		c.writeControl(&c.timerB, v)
	}
}

// writeTod sets the alarm instead of the clock while CRB bit 7 is set.
func (c *CiaDevice) writeTod(set func(*ciaTod)) {
	if c.timerB.control&CIA_CRB_ALARM != 0 {
		set(&c.alarm)
		return
	}
	set(&c.tod)
}

func (c *CiaDevice) writeControl(t *ciaTimer, v byte) {
	if v&CIA_CR_START != 0 && t.control&CIA_CR_START == 0 {
		t.output = true
	}
	if v&CIA_CR_LOAD != 0 {
		t.counter = t.latch
	}
	t.control = v &^ CIA_CR_LOAD
}

// Tick advances both timers by cycles phi2 cycles.
func (c *CiaDevice) Tick(cycles int) {
	aUnder := 0
	if c.timerA.control&CIA_CR_START != 0 {
		aUnder = c.count(&c.timerA, cycles)
		if aUnder > 0 {
			c.raise(CIA_ICR_TA)
			if c.sdrBits > 0 {
				c.sdrBits -= aUnder
				if c.sdrBits <= 0 {
					c.sdrBits = 0
					c.raise(CIA_ICR_SP)
				}
			}
		}
	}
	if c.timerB.control&CIA_CR_START != 0 {
		input := cycles
		if c.timerB.control&ciaCrbCountTA != 0 {
			input = aUnder
		} else if c.timerB.control&CIA_CRB_INMODE != 0 {
			// CNT is not connected to anything that pulses.
			input = 0
		}
		if input > 0 && c.count(&c.timerB, input) > 0 {
			c.raise(CIA_ICR_TB)
		}
	}
}

// count decrements a running timer and returns the number of underflows.
// Continuous timers reload modulo the latch; one-shot timers stop at the
// first underflow.
func (c *CiaDevice) count(t *ciaTimer, n int) int {
	t.counter -= n
	if t.counter > 0 {
		return 0
	}
	underflows := 0
	latch := max(t.latch, 1)
	for t.counter <= 0 {
		underflows++
		t.counter += latch
		if t.control&CIA_CR_ONESHOT != 0 {
			t.control &^= CIA_CR_START
			t.counter = t.latch
			break
		}
	}
	t.underflows += underflows
	if t.control&CIA_CR_TOGGLE != 0 {
		if underflows%2 == 1 {
			t.output = !t.output
		}
	}
	return underflows
}

// TickTod is called at the mains frequency (50 Hz on PAL machines).
func (c *CiaDevice) TickTod() {
	if c.todStopped {
		return
	}
	divider := 6
	if c.timerA.control&CIA_CRA_TOD50 != 0 {
		divider = 5
	}
	c.todTicks++
	if c.todTicks < divider {
		return
	}
	c.todTicks = 0
	c.advanceTod()
	if c.tod == c.alarm {
		c.raise(CIA_ICR_ALARM)
	}
}

func bcdIncrement(v byte) byte {
	v++
	if v&0x0F > 9 {
		v = v&0xF0 + 0x10
	}
	return v
}

func (c *CiaDevice) advanceTod() {
	t := &c.tod
	t.tenths = (t.tenths + 1) % 10
	if t.tenths != 0 {
		return
	}
	if t.sec = bcdIncrement(t.sec); t.sec < 0x60 {
		return
	}
	t.sec = 0
	if t.min = bcdIncrement(t.min); t.min < 0x60 {
		return
	}
	t.min = 0
	pm := t.hr & 0x80
	hr := t.hr & 0x1F
	switch hr {
	case 0x11:
		hr = 0x12
		pm ^= 0x80
	case 0x12:
		hr = 0x01
	default:
		hr = bcdIncrement(hr)
	}
	t.hr = pm | hr
}

// SetFlag pulses the FLAG input (cassette read on CIA1, SRQ on CIA2).
func (c *CiaDevice) SetFlag() {
	c.raise(CIA_ICR_FLAG)
}

func (c *CiaDevice) raise(bit byte) {
	c.icrData |= bit
	if c.icrData&c.icrMask != 0 {
		c.setInterrupt(true)
	}
}

func (c *CiaDevice) setInterrupt(active bool) {
	if active == c.irqActive {
		return
	}
	c.irqActive = active
	if c.OnInterrupt != nil {
		c.OnInterrupt(active)
	}
}

// InterruptActive reports the state of the interrupt output.
func (c *CiaDevice) InterruptActive() bool { return c.irqActive }

// TimerA returns the current counter of timer A.
func (c *CiaDevice) TimerA() int { return c.timerA.counter }

func (c *CiaDevice) TimerB() int { return c.timerB.counter }

// Underflows returns the running underflow totals of both timers.
func (c *CiaDevice) Underflows() (a, b int) {
	return c.timerA.underflows, c.timerB.underflows
}

func (c *CiaDevice) PortA() byte { return c.portAOut() }

func (c *CiaDevice) PortB() byte { return c.portBOut() }
