// floppy_controller.go - NEC uPD765 floppy disk controller of the +3

/*
floppy_controller.go - Floppy Controller

The +3 talks to the uPD765 through two ports: the main status register at
0x2FFD and the data register at 0x3FFD. There is no DMA and no interrupt
line; the ROM polls the main status register and moves every command byte,
data byte and result byte through the data register.

Each command runs through three phases:

  Command    the CPU writes the opcode and its parameters
  Execution  data bytes flow through the data register (reads, writes, format)
  Result     the CPU reads back the status bytes

Seeks complete immediately and leave an interrupt pending that SENSE
INTERRUPT STATUS collects. The drive is ready only while the motor bit of
port 0x1FFD is set and a disk is inserted.
*/

package main

import "fmt"

const (
	MSR_D0  = 0x01
	MSR_D1  = 0x02
	MSR_CB  = 0x10
	MSR_EXM = 0x20
	MSR_DIO = 0x40
	MSR_RQM = 0x80

	SR0_US  = 0x03
	SR0_HD  = 0x04
	SR0_NR  = 0x08
	SR0_EC  = 0x10
	SR0_SE  = 0x20
	SR0_AT  = 0x40
	SR0_IC  = 0x80
	SR0_INV = 0x80

	SR1_MA = 0x01
	SR1_NW = 0x02
	SR1_ND = 0x04
	SR1_EN = 0x80

	SR2_CM = 0x40

	SR3_HD = 0x04
	SR3_TS = 0x08
	SR3_T0 = 0x10
	SR3_RY = 0x20
	SR3_WP = 0x40
)

const (
	CMD_INVALID               = 0x00
	CMD_READ_TRACK            = 0x02
	CMD_SPECIFY               = 0x03
	CMD_SENSE_DRIVE_STATUS    = 0x04
	CMD_WRITE_DATA            = 0x05
	CMD_READ_DATA             = 0x06
	CMD_RECALIBRATE           = 0x07
	CMD_SENSE_INTERRUPT_STATE = 0x08
	CMD_READ_ID               = 0x0A
	CMD_READ_DELETED_DATA     = 0x0C
	CMD_FORMAT_TRACK          = 0x0D
	CMD_SEEK                  = 0x0F

	FDC_MAX_LOG_ENTRIES = 1024
	FDC_MAX_DRIVES      = 2
)

// fdcParamCount is the number of parameter bytes after each opcode.
var fdcParamCount = map[byte]int{
	CMD_READ_TRACK:            8,
	CMD_SPECIFY:               2,
	CMD_SENSE_DRIVE_STATUS:    1,
	CMD_WRITE_DATA:            8,
	CMD_READ_DATA:             8,
	CMD_RECALIBRATE:           1,
	CMD_SENSE_INTERRUPT_STATE: 0,
	CMD_READ_ID:               1,
	CMD_READ_DELETED_DATA:     8,
	CMD_FORMAT_TRACK:          5,
	CMD_SEEK:                  2,
}

type OperationPhase int

const (
	PhaseCommand OperationPhase = iota
	PhaseExecution
	PhaseResult
)

func (p OperationPhase) String() string {
	switch p {
	case PhaseExecution:
		return "E"
	case PhaseResult:
		return "R"
	}
	return "C"
}

// FloppyLogEntry records one port access for diagnostics.
type FloppyLogEntry struct {
	Addr    uint16
	Write   bool
	Msr     bool
	Data    byte
	Phase   OperationPhase
	Comment string
}

type floppyDrive struct {
	present   bool
	disk      *FloppyDisk
	cylinder  int
	seekEnded bool
}

type FloppyController struct {
	host MachineHost
	pc   func() uint16

	drives  [FDC_MAX_DRIVES]floppyDrive
	motorOn bool

	msr   byte
	phase OperationPhase

	command    byte
	params     []byte
	multiTrack bool
	mfm        bool
	skip       bool

	srt, hut, hlt byte
	nonDma        bool

	interrupt     bool
	interruptST0  byte
	interruptPCN  byte
	result        []byte
	resultIndex   int
	execBuffer    []byte
	execIndex     int
	execWrite     bool
	formatIDs     [][4]byte
	formatCount   int
	formatFiller  byte
	formatGap     byte
	execSector    *DiskSector
	drive, head   int
	c, h, r, n    byte
	eot, gpl, dtl byte

	opLog []FloppyLogEntry
}

// NewFloppyController creates a controller with drives present drives.
// pc supplies the instruction address for the port log.
func NewFloppyController(host MachineHost, drives int, pc func() uint16) *FloppyController {
	f := &FloppyController{host: host, pc: pc}
	for i := range min(drives, FDC_MAX_DRIVES) {
		f.drives[i].present = true
	}
	f.Reset()
	return f
}

func (f *FloppyController) Reset() {
	f.msr = MSR_RQM
	f.phase = PhaseCommand
	f.params = f.params[:0]
	f.result = f.result[:0]
	f.resultIndex = 0
	f.interrupt = false
	f.motorOn = false
	for i := range f.drives {
		f.drives[i].cylinder = 0
		f.drives[i].seekEnded = false
	}
	f.opLog = f.opLog[:0]
}

func (f *FloppyController) Dispose() {}

// InsertDisk puts a disk into drive 0 (A:) or 1 (B:). A nil disk ejects.
func (f *FloppyController) InsertDisk(drive int, disk *FloppyDisk) error {
	if drive < 0 || drive >= FDC_MAX_DRIVES || !f.drives[drive].present {
		return &PeripheralError{Device: "floppy", Source: fmt.Sprintf("drive %d", drive), Err: ErrInvalidOption}
	}
	f.drives[drive].disk = disk
	return nil
}

func (f *FloppyController) Disk(drive int) *FloppyDisk {
	if drive < 0 || drive >= FDC_MAX_DRIVES {
		return nil
	}
	return f.drives[drive].disk
}

// SetMotor follows bit 3 of port 0x1FFD.
func (f *FloppyController) SetMotor(on bool) {
	if on != f.motorOn {
		f.host.Logger().WithField("device", "floppy").Debugf("motor %v", on)
	}
	f.motorOn = on
}

func (f *FloppyController) MotorOn() bool { return f.motorOn }

func (f *FloppyController) Phase() OperationPhase { return f.phase }

func (f *FloppyController) LogEntries() []FloppyLogEntry {
	return append([]FloppyLogEntry(nil), f.opLog...)
}

func (f *FloppyController) ClearLogEntries() { f.opLog = f.opLog[:0] }

func (f *FloppyController) log(e FloppyLogEntry) {
	if f.pc != nil {
		e.Addr = f.pc()
	}
	e.Phase = f.phase
	if len(f.opLog) >= FDC_MAX_LOG_ENTRIES {
		copy(f.opLog, f.opLog[1:])
		f.opLog = f.opLog[:len(f.opLog)-1]
	}
	f.opLog = append(f.opLog, e)
}

func (f *FloppyController) ReadMainStatusRegister() byte {
	f.log(FloppyLogEntry{Msr: true, Data: f.msr})
	return f.msr
}

func (f *FloppyController) ReadDataRegister() byte {
	value := byte(0xFF)
	switch f.phase {
	case PhaseExecution:
		if !f.execWrite && f.execIndex < len(f.execBuffer) {
			value = f.execBuffer[f.execIndex]
			f.execIndex++
			if f.execIndex == len(f.execBuffer) {
				f.finishExecution()
			}
		}
	case PhaseResult:
		if f.resultIndex < len(f.result) {
			value = f.result[f.resultIndex]
			f.resultIndex++
		}
		if f.resultIndex >= len(f.result) {
			f.enterCommandPhase()
		}
	}
	f.log(FloppyLogEntry{Data: value})
	return value
}

func (f *FloppyController) WriteDataRegister(value byte) {
	entry := FloppyLogEntry{Write: true, Data: value}
	defer func() { f.log(entry) }()

	switch f.phase {
	case PhaseExecution:
		if !f.execWrite {
			entry.Comment = "ignored"
			return
		}
		f.acceptExecutionByte(value)
		return
	case PhaseResult:
		entry.Comment = "ignored"
		return
	}

	if f.command == CMD_INVALID && len(f.params) == 0 {
		f.beginCommand(value)
		entry.Comment = fdcCommandName(f.command)
		if f.command != CMD_INVALID && fdcParamCount[f.command] == 0 {
			f.execute()
		}
		return
	}
	f.params = append(f.params, value)
	if len(f.params) == fdcParamCount[f.command] {
		f.execute()
	}
}

func (f *FloppyController) beginCommand(value byte) {
	f.params = f.params[:0]
	f.multiTrack = value&0x80 != 0
	f.mfm = value&0x40 != 0
	f.skip = value&0x20 != 0
	cmd := value & 0x1F
	if _, ok := fdcParamCount[cmd]; !ok {
		f.invalidCommand()
		return
	}
	f.command = cmd
	f.msr |= MSR_CB
}

func (f *FloppyController) invalidCommand() {
	f.command = CMD_INVALID
	f.enterResultPhase(SR0_INV)
}

func (f *FloppyController) enterCommandPhase() {
	f.phase = PhaseCommand
	f.command = CMD_INVALID
	f.params = f.params[:0]
	f.msr = MSR_RQM | f.seekBits()
}

func (f *FloppyController) enterResultPhase(bytes ...byte) {
	f.phase = PhaseResult
	f.result = append(f.result[:0], bytes...)
	f.resultIndex = 0
	f.msr = MSR_RQM | MSR_DIO | MSR_CB
}

func (f *FloppyController) seekBits() byte {
	var b byte
	for i := range f.drives {
		if f.drives[i].seekEnded && f.interrupt {
			b |= MSR_D0 << i
		}
	}
	return b
}

func (f *FloppyController) selectDrive(p byte) {
	f.drive = int(p & 0x01)
	f.head = int(p>>2) & 0x01
}

func (f *FloppyController) st0Base() byte {
	return byte(f.drive) | byte(f.head)<<2
}

// ready reports whether the selected drive can transfer data.
func (f *FloppyController) ready() bool {
	d := &f.drives[f.drive]
	return d.present && d.disk != nil && f.motorOn
}

func (f *FloppyController) execute() {
	p := f.params
	switch f.command {
	case CMD_SPECIFY:
		f.srt, f.hut = p[0]>>4, p[0]&0x0F
		f.hlt, f.nonDma = p[1]>>1, p[1]&0x01 != 0
		f.enterCommandPhase()

	case CMD_SENSE_DRIVE_STATUS:
		f.selectDrive(p[0])
		f.enterResultPhase(f.st3())

	case CMD_RECALIBRATE:
		f.selectDrive(p[0])
		f.seek(0)

	case CMD_SEEK:
		f.selectDrive(p[0])
		f.seek(int(p[1]))

	case CMD_SENSE_INTERRUPT_STATE:
		if !f.interrupt {
			f.invalidCommand()
			return
		}
		f.interrupt = false
		st0, pcn := f.interruptST0, f.interruptPCN
		for i := range f.drives {
			f.drives[i].seekEnded = false
		}
		f.enterResultPhase(st0, pcn)

	case CMD_READ_ID:
		f.selectDrive(p[0])
		f.readID()

	case CMD_READ_DATA, CMD_READ_DELETED_DATA, CMD_READ_TRACK:
		f.loadTransferParams()
		f.startRead()

	case CMD_WRITE_DATA:
		f.loadTransferParams()
		f.startWrite()

	case CMD_FORMAT_TRACK:
		f.selectDrive(p[0])
		f.n, f.formatCount, f.formatGap, f.formatFiller = p[1], int(p[2]), p[3], p[4]
		f.startFormat()
	}
}

func (f *FloppyController) st3() byte {
	d := &f.drives[f.drive]
	st3 := f.st0Base() | SR3_TS
	if d.cylinder == 0 {
		st3 |= SR3_T0
	}
	if f.ready() {
		st3 |= SR3_RY
		if d.disk.WriteProtected {
			st3 |= SR3_WP
		}
	}
	return st3
}

func (f *FloppyController) seek(cylinder int) {
	d := &f.drives[f.drive]
	st0 := f.st0Base() | SR0_SE
	switch {
	case !d.present:
		st0 |= SR0_AT | SR0_NR | SR0_EC
	default:
		d.cylinder = cylinder
		if d.disk != nil && cylinder >= d.disk.Tracks {
			d.cylinder = d.disk.Tracks - 1
		}
	}
	d.seekEnded = true
	f.interrupt = true
	f.interruptST0 = st0
	f.interruptPCN = byte(d.cylinder)
	f.host.Logger().WithField("device", "floppy").Debugf("seek drive %d to %d", f.drive, d.cylinder)
	f.enterCommandPhase()
}

func (f *FloppyController) loadTransferParams() {
	p := f.params
	f.selectDrive(p[0])
	f.c, f.h, f.r, f.n = p[1], p[2], p[3], p[4]
	f.eot, f.gpl, f.dtl = p[5], p[6], p[7]
}

func (f *FloppyController) notReady() {
	f.enterResultPhase(f.st0Base()|SR0_AT|SR0_NR, 0, 0, f.c, f.h, f.r, f.n)
}

func (f *FloppyController) readID() {
	if !f.ready() {
		f.notReady()
		return
	}
	d := &f.drives[f.drive]
	t := d.disk.Track(d.cylinder, f.head)
	if t == nil || len(t.Sectors) == 0 {
		f.enterResultPhase(f.st0Base()|SR0_AT, SR1_MA|SR1_ND, 0, f.c, f.h, f.r, f.n)
		return
	}
	s := t.Sectors[0]
	f.enterResultPhase(f.st0Base(), 0, 0, s.C, s.H, s.R, s.N)
}

func (f *FloppyController) currentSector() *DiskSector {
	d := &f.drives[f.drive]
	return d.disk.FindSector(d.cylinder, f.head, f.c, f.h, f.r, f.n)
}

func (f *FloppyController) startRead() {
	if !f.ready() {
		f.notReady()
		return
	}
	s := f.currentSector()
	if s == nil {
		f.enterResultPhase(f.st0Base()|SR0_AT, SR1_ND, 0, f.c, f.h, f.r, f.n)
		return
	}
	f.execSector = s
	f.execBuffer = s.Data
	f.execIndex = 0
	f.execWrite = false
	f.phase = PhaseExecution
	f.msr = MSR_RQM | MSR_DIO | MSR_EXM | MSR_CB
	if len(f.execBuffer) == 0 {
		f.finishExecution()
	}
}

func (f *FloppyController) startWrite() {
	if !f.ready() {
		f.notReady()
		return
	}
	if f.drives[f.drive].disk.WriteProtected {
		f.enterResultPhase(f.st0Base()|SR0_AT, SR1_NW, 0, f.c, f.h, f.r, f.n)
		return
	}
	s := f.currentSector()
	if s == nil {
		f.enterResultPhase(f.st0Base()|SR0_AT, SR1_ND, 0, f.c, f.h, f.r, f.n)
		return
	}
	f.execSector = s
	f.execBuffer = s.Data
	f.execIndex = 0
	f.execWrite = true
	f.phase = PhaseExecution
	f.msr = MSR_RQM | MSR_EXM | MSR_CB
}

func (f *FloppyController) startFormat() {
	if !f.ready() {
		f.notReady()
		return
	}
	if f.drives[f.drive].disk.WriteProtected {
		f.enterResultPhase(f.st0Base()|SR0_AT, SR1_NW, 0, f.c, f.h, f.r, f.n)
		return
	}
	f.formatIDs = f.formatIDs[:0]
	f.execBuffer = make([]byte, 4*f.formatCount)
	f.execIndex = 0
	f.execWrite = true
	f.phase = PhaseExecution
	f.msr = MSR_RQM | MSR_EXM | MSR_CB
	if f.formatCount == 0 {
		f.finishExecution()
	}
}

func (f *FloppyController) acceptExecutionByte(v byte) {
	if f.execIndex >= len(f.execBuffer) {
		return
	}
	f.execBuffer[f.execIndex] = v
	f.execIndex++
	if f.command == CMD_FORMAT_TRACK && f.execIndex%4 == 0 {
		b := f.execBuffer[f.execIndex-4 : f.execIndex]
		f.formatIDs = append(f.formatIDs, [4]byte{b[0], b[1], b[2], b[3]})
	}
	if f.execIndex == len(f.execBuffer) {
		if f.command == CMD_WRITE_DATA {
			f.drives[f.drive].disk.Dirty = true
		}
		f.finishExecution()
	}
}

// finishExecution ends a transfer. Without a terminal count line the +3
// always runs to the end of the cylinder, which reports EN with AT set.
func (f *FloppyController) finishExecution() {
	switch f.command {
	case CMD_FORMAT_TRACK:
		d := &f.drives[f.drive]
		d.disk.FormatTrack(d.cylinder, f.head, f.formatIDs, f.formatFiller, f.formatGap)
		f.enterResultPhase(f.st0Base(), 0, 0, f.c, f.h, f.r, f.n)
		return
	}

	var st2 byte
	if f.execSector != nil && f.execSector.ST2&SR2_CM != 0 && f.command == CMD_READ_DATA {
		st2 = SR2_CM
	}
	if f.r != f.eot {
		f.r++
		if s := f.currentSector(); s != nil {
			if f.execWrite {
				f.execSector = s
				f.execBuffer = s.Data
				f.execIndex = 0
				return
			}
			f.execSector = s
			f.execBuffer = s.Data
			f.execIndex = 0
			if len(s.Data) > 0 {
				return
			}
		}
	}
	f.enterResultPhase(f.st0Base()|SR0_AT, SR1_EN, st2, f.c+1, f.h, 1, f.n)
}

func fdcCommandName(cmd byte) string {
	switch cmd {
	case CMD_READ_TRACK:
		return "read track"
	case CMD_SPECIFY:
		return "specify"
	case CMD_SENSE_DRIVE_STATUS:
		return "sense drive status"
	case CMD_WRITE_DATA:
		return "write data"
	case CMD_READ_DATA:
		return "read data"
	case CMD_RECALIBRATE:
		return "recalibrate"
	case CMD_SENSE_INTERRUPT_STATE:
		return "sense interrupt"
	case CMD_READ_ID:
		return "read id"
	case CMD_READ_DELETED_DATA:
		return "read deleted data"
	case CMD_FORMAT_TRACK:
		return "format track"
	case CMD_SEEK:
		return "seek"
	}
	return "invalid"
}
