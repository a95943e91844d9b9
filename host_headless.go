//go:build headless

package main

// runWindowHost is unavailable in headless builds; the controller runs on
// the calling goroutine instead.
func runWindowHost(ctrl *MachineController, frames *FrameBuffer, runController func() error) error {
	ctrl.Machine.log.Warn("built without window support, running headless")
	return runController()
}
