// z88_blink.go - The Z88 Blink gate array: paging, real time clock and interrupts

/*
z88_blink.go - Blink

Ports (low byte of the port address):

  write 0xD0-0xD3  SR0-SR3 segment registers
  read  0xD0-0xD4  TIM0-TIM4 real time clock
  write 0xB0       COM command register
  write 0xB1       INT interrupt enables      read 0xB1  STA interrupt status
  write 0xB3       EPR                        read 0xB2  keyboard (A8-A15 rows)
  write 0xB4       TACK timer acknowledge     read 0xB5  TSTA timer status
  write 0xB5       TMK timer interrupt mask
  write 0xB6       ACK interrupt acknowledge
  write 0x70-0x74  PB0-PB3, SBR (LCD, 13 bits from A8-A12 and the data)

The RTC advances once per 5 ms frame. TIME interrupts leave the Blink only
with INT.GINT and INT.TIME set, the flap closed and the event enabled in TMK.
*/

package main

import (
	log "github.com/sirupsen/logrus"
)

// COM bits
const (
	COM_LCDON   = 0x01
	COM_VPPON   = 0x02
	COM_RAMS    = 0x04
	COM_PROGRAM = 0x08
	COM_RESTIM  = 0x10
	COM_OVERP   = 0x20
	COM_SBIT    = 0x40
	COM_SRUN    = 0x80
)

// INT bits
const (
	INT_GINT  = 0x01
	INT_TIME  = 0x02
	INT_KEY   = 0x04
	INT_BTL   = 0x08
	INT_UART  = 0x10
	INT_FLAP  = 0x20
	INT_A19   = 0x40
	INT_KWAIT = 0x80
)

// STA bits
const (
	STA_TIME     = 0x01
	STA_KEY      = 0x04
	STA_BTL      = 0x08
	STA_UART     = 0x10
	STA_FLAP     = 0x20
	STA_A19      = 0x40
	STA_FLAPOPEN = 0x80
)

// TSTA, TMK and TACK bits
const (
	TSTA_TICK = 0x01
	TSTA_SEC  = 0x02
	TSTA_MIN  = 0x04
)

// Z88CardType describes what sits in a card slot.
type Z88CardType int

const (
	CardNone Z88CardType = iota
	CardRam
	CardEprom
)

// BlinkHost is the machine side of the Blink.
type BlinkHost interface {
	MachineHost
	AwakeCpu()
	SetSpeakerBit(on bool)
}

type Z88BlinkDevice struct {
	host   BlinkHost
	memory *Z88Memory
	log    *log.Entry

	SR   [4]byte
	TIM  [5]byte
	TSTA byte
	TMK  byte
	INT  byte
	STA  byte
	COM  byte
	EPR  byte

	chipMasks       [5]byte
	slotTypes       [3]Z88CardType
	interruptActive bool
}

func NewZ88BlinkDevice(host BlinkHost, memory *Z88Memory, romMask, ramMask byte) *Z88BlinkDevice {
	b := &Z88BlinkDevice{
		host:   host,
		memory: memory,
		log:    host.Logger().WithField("device", "blink"),
	}
	b.chipMasks[0] = romMask
	b.chipMasks[1] = ramMask
	b.Reset()
	return b
}

func (b *Z88BlinkDevice) Reset() {
	b.COM = 0
	b.EPR = 0
	for i := range b.SR {
		b.SR[i] = 0
	}
	b.recalculateBankInfo()
	b.remapAll()
	b.resetRtc()
	b.STA = 0
	b.setINT(INT_FLAP | INT_TIME | INT_GINT)
}

func (b *Z88BlinkDevice) Dispose() {}

func (b *Z88BlinkDevice) resetRtc() {
	b.TIM = [5]byte{}
	b.TSTA = 0
	b.TMK = TSTA_TICK
}

// Paging

// SetSR writes one segment register. SR0 covers only 0x2000-0x3FFF; the
// bottom 8K is ROM bank 0 or, with COM.RAMS, RAM bank 0x20.
func (b *Z88BlinkDevice) SetSR(segment int, bank byte) {
	segment &= 3
	b.SR[segment] = bank
	readOnly := b.memory.BankAccess(int(bank)) != AccessRam
	if segment == 0 {
		if b.COM&COM_RAMS != 0 {
			b.memory.SetPageInfo(0, Z88_RAM_FIRST*Z88_BANK_SIZE, Z88_RAM_FIRST, false)
		} else {
			b.memory.SetPageInfo(0, 0, 0x00, true)
		}
		offset := b.pageOffset(bank&0xFE) + int(bank&0x01)*Z88_PAGE_SIZE
		b.memory.SetPageInfo(1, offset, bank, readOnly)
		return
	}
	offset := b.pageOffset(bank)
	b.memory.SetPageInfo(segment*2, offset, bank, readOnly)
	b.memory.SetPageInfo(segment*2+1, offset+Z88_PAGE_SIZE, bank, readOnly)
}

func (b *Z88BlinkDevice) remapAll() {
	for i := range b.SR {
		b.SetSR(i, b.SR[i])
	}
}

// pageOffset applies the chip size mask so a small chip repeats across its
// bank range.
func (b *Z88BlinkDevice) pageOffset(bank byte) int {
	chip := 0
	if bank > 0x1F {
		chip = 1 + int(bank>>6)
	}
	mask := b.chipMasks[chip]
	base := bank & 0xC0
	if bank < 0x40 {
		base = bank & 0xE0
	}
	return int(base|bank&mask&0x3F) * Z88_BANK_SIZE
}

// SetChipMask sets the size mask of a chip: 0 internal ROM, 1 internal RAM,
// 2-4 card slots 1-3. Mask 0x01 is 32K, 0x3F is 1M, 0 means no chip.
func (b *Z88BlinkDevice) SetChipMask(chip int, mask byte) {
	chip = min(max(chip, 0), 4)
	b.chipMasks[chip] = mask
	b.recalculateBankInfo()
	b.remapAll()
}

func (b *Z88BlinkDevice) ChipMask(chip int) byte { return b.chipMasks[min(max(chip, 0), 4)] }

// SetSlotType declares what is in card slot 1-3.
func (b *Z88BlinkDevice) SetSlotType(slot int, card Z88CardType) {
	slot = min(max(slot, 1), 3)
	b.slotTypes[slot-1] = card
	b.recalculateBankInfo()
	b.remapAll()
}

func (b *Z88BlinkDevice) recalculateBankInfo() {
	for bank := range Z88_BANKS {
		var access Z88AccessType
		switch {
		case bank < Z88_RAM_FIRST:
			access = AccessRom
		case bank < Z88_SLOT1_FIRST:
			access = AccessRam
		default:
			slot := bank>>6 - 1
			switch {
			case b.chipMasks[slot+2] == 0 || b.slotTypes[slot] == CardNone:
				access = AccessUnavailable
			case b.slotTypes[slot] == CardEprom:
				access = AccessRom
			default:
				access = AccessRam
			}
		}
		b.memory.SetBankAccess(bank, access)
	}
}

// AccessTypeOf reports what the CPU reaches at addr.
func (b *Z88BlinkDevice) AccessTypeOf(addr uint16) Z88AccessType {
	if addr < Z88_PAGE_SIZE {
		if b.COM&COM_RAMS != 0 {
			return b.memory.BankAccess(Z88_RAM_FIRST)
		}
		return b.memory.BankAccess(0)
	}
	return b.memory.BankAccess(int(b.SR[addr>>14]))
}

// Registers

func (b *Z88BlinkDevice) SetCOM(value byte) {
	b.COM = value
	if value&COM_RESTIM != 0 {
		b.resetRtc()
	}
	if value&COM_SRUN == 0 {
		b.host.SetSpeakerBit(value&COM_SBIT != 0)
	}
	b.SetSR(0, b.SR[0])
}

func (b *Z88BlinkDevice) setINT(value byte) {
	b.INT = value
	b.checkInterrupt()
}

func (b *Z88BlinkDevice) SetINT(value byte) { b.setINT(value) }

func (b *Z88BlinkDevice) SetSTA(value byte) {
	b.STA = value
	b.checkInterrupt()
}

// SetACK acknowledges the STA bits set in value.
func (b *Z88BlinkDevice) SetACK(value byte) {
	b.SetSTA(b.STA &^ value)
}

// SetTACK acknowledges timer events; STA.TIME drops with the last one.
func (b *Z88BlinkDevice) SetTACK(value byte) {
	b.TSTA &^= value & (TSTA_TICK | TSTA_SEC | TSTA_MIN)
	if b.TSTA == 0 {
		b.SetSTA(b.STA &^ STA_TIME)
	}
}

func (b *Z88BlinkDevice) SetTMK(value byte) { b.TMK = value }

func (b *Z88BlinkDevice) checkInterrupt() {
	active := false
	if b.INT&INT_GINT != 0 {
		active = b.INT&b.STA&(STA_KEY|STA_BTL|STA_UART|STA_FLAP|STA_A19) != 0 ||
			b.STA&STA_TIME != 0 && b.INT&INT_TIME != 0
	}
	b.interruptActive = active
}

// InterruptActive is the Blink's INT output to the Z80.
func (b *Z88BlinkDevice) InterruptActive() bool { return b.interruptActive }

// RaiseBatteryLow signals a low battery.
func (b *Z88BlinkDevice) RaiseBatteryLow() {
	b.SetSTA(b.STA | STA_BTL)
}

// Real time clock

// IncrementRtc advances the clock by 5 ms.
func (b *Z88BlinkDevice) IncrementRtc() {
	if b.COM&COM_RESTIM != 0 {
		b.resetRtc()
		return
	}

	var events byte
	b.TIM[0]++
	if b.TIM[0]&0x01 == 0 {
		events |= TSTA_TICK
	}
	if b.TIM[0] >= 200 {
		b.TIM[0] = 0
		events |= TSTA_SEC
		b.TIM[1]++
		if b.TIM[1] >= 60 {
			b.TIM[1] = 0
			events |= TSTA_MIN
			b.TIM[2]++
			if b.TIM[2] == 0 {
				b.TIM[3]++
				if b.TIM[3] == 0 {
					b.TIM[4] = (b.TIM[4] + 1) & 0x1F
				}
			}
		}
	}

	if b.INT&INT_GINT == 0 {
		return
	}
	if b.STA&STA_FLAPOPEN != 0 {
		b.SetSTA(b.STA &^ STA_TIME)
		if b.TIM[0]%3 == 0 {
			b.host.AwakeCpu()
		}
		return
	}
	if b.INT&INT_TIME == 0 || b.TMK == 0 {
		b.SetSTA(b.STA &^ STA_TIME)
		return
	}
	if events != 0 {
		b.TSTA |= events
		if b.TMK&events != 0 {
			b.SetSTA(b.STA | STA_TIME)
			b.host.AwakeCpu()
		}
	}
}

// Flap

// OpenFlap raises the FLAP interrupt once; TIME interrupts stop until the
// flap is closed.
func (b *Z88BlinkDevice) OpenFlap() {
	if b.INT&INT_FLAP != 0 && b.INT&INT_GINT != 0 {
		b.SetSTA(b.STA | STA_FLAP | STA_FLAPOPEN)
		b.host.AwakeCpu()
		b.log.Debug("flap opened")
	}
}

func (b *Z88BlinkDevice) CloseFlap() {
	b.SetACK(STA_FLAPOPEN)
	b.host.AwakeCpu()
	b.log.Debug("flap closed")
}
