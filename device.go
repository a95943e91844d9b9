// device.go - Contract between machines and their devices

package main

import log "github.com/sirupsen/logrus"

// Device is implemented by every emulated peripheral. Devices are created
// once with the machine, reset on soft and hard resets and disposed when the
// machine is torn down.
type Device interface {
	Reset()
	Dispose()
}

// MachineHost is the view of a machine that devices are allowed to hold.
// Devices never reference a concrete machine type.
type MachineHost interface {
	BaseClock() int
	CurrentTacts() uint64
	FrameTact() int
	FrameCounter() int
	ClockMultiplierValue() int
	SetTactsInFrame(tacts int)
	SetContentionValue(tact int, value int)
	Logger() *log.Entry
}

// resetDevices resets every non-nil device in order.
func resetDevices(devices ...Device) {
	for _, d := range devices {
		if d != nil {
			d.Reset()
		}
	}
}

func disposeDevices(devices ...Device) {
	for _, d := range devices {
		if d != nil {
			d.Dispose()
		}
	}
}
