// c64_cpu_port.go - The 6510 on-chip I/O port at 0x0000/0x0001

/*
c64_cpu_port.go - CPU Port

  bit 0  LORAM   }
  bit 1  HIRAM   } memory configuration, pulled high as inputs
  bit 2  CHAREN  }
  bit 3  cassette write
  bit 4  cassette switch sense (low while a button is pressed)
  bit 5  cassette motor (low switches the motor on)
  bit 6  not connected
  bit 7  not connected

A bit that was driven high and is then switched to input keeps reading 1
until the charge on the pin leaks away, roughly 350000 cycles later. Bits
without a pull-up read 0 once discharged.
*/

package main

const (
	CPU_PORT_DEFAULT_DIRECTION = 0x2F
	CPU_PORT_DEFAULT_DATA      = 0x37
	CPU_PORT_FALL_OFF_CYCLES   = 350_000

	cpuPortPullUps = 0x07
)

// CpuPortHost is what the port drives and senses.
type CpuPortHost interface {
	CurrentTacts() uint64
	CassetteButtonDown() bool
	SetCassetteMotor(on bool)
	SetCassetteWrite(level bool)
	OnCpuPortChanged()
}

type capacitorBit struct {
	charged bool
	expires uint64
}

type C64CpuPort struct {
	host      CpuPortHost
	direction byte
	data      byte
	caps      [8]capacitorBit
}

func NewC64CpuPort(host CpuPortHost) *C64CpuPort {
	p := &C64CpuPort{host: host}
	p.Reset()
	return p
}

func (p *C64CpuPort) Reset() {
	p.direction = CPU_PORT_DEFAULT_DIRECTION
	p.data = CPU_PORT_DEFAULT_DATA
	p.caps = [8]capacitorBit{}
	p.updateSignals()
}

func (p *C64CpuPort) Dispose() {}

func (p *C64CpuPort) ReadDirection() byte { return p.direction }

func (p *C64CpuPort) WriteDirection(v byte) {
	old := p.direction
	p.direction = v
	now := p.host.CurrentTacts()
	for bit := 3; bit < 8; bit++ {
		mask := byte(1) << bit
		if old&mask != 0 && v&mask == 0 {
			p.caps[bit] = capacitorBit{charged: p.data&mask != 0, expires: now + CPU_PORT_FALL_OFF_CYCLES}
		}
	}
	p.updateSignals()
}

// ReadData returns output bits from the latch and input bits from the pins.
func (p *C64CpuPort) ReadData() byte {
	now := p.host.CurrentTacts()
	v := p.data & p.direction
	inputs := ^p.direction
	pins := byte(cpuPortPullUps)
	if !p.host.CassetteButtonDown() {
		pins |= 0x10
	}
	for bit := 5; bit < 8; bit++ {
		c := &p.caps[bit]
		if c.charged && now < c.expires {
			pins |= 1 << bit
		} else {
			c.charged = false
		}
	}
	// Bit 3 has no external driver either.
	if c := &p.caps[3]; c.charged && now < c.expires {
		pins |= 0x08
	}
	return v | pins&inputs
}

func (p *C64CpuPort) WriteData(v byte) {
	p.data = v
	now := p.host.CurrentTacts()
	for bit := 3; bit < 8; bit++ {
		mask := byte(1) << bit
		if p.direction&mask != 0 {
			p.caps[bit] = capacitorBit{charged: v&mask != 0, expires: now + CPU_PORT_FALL_OFF_CYCLES}
		}
	}
	p.updateSignals()
}

// MemoryConfiguration returns LORAM, HIRAM and CHAREN as seen by the PLA.
func (p *C64CpuPort) MemoryConfiguration() byte {
	return (p.data | ^p.direction) & 0x07
}

func (p *C64CpuPort) updateSignals() {
	if p.direction&0x08 != 0 {
		p.host.SetCassetteWrite(p.data&0x08 != 0)
	}
	p.host.SetCassetteMotor(p.direction&0x20 != 0 && p.data&0x20 == 0)
	p.host.OnCpuPortChanged()
}
