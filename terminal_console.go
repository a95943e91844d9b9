//go:build !windows

package main

import (
	"os"
	"syscall"

	"golang.org/x/term"
)

// consoleState puts stdin into raw non-blocking mode so the reader can poll
// for Stop between reads.
type consoleState struct {
	fd          int
	saved       *term.State
	nonblocking bool
}

func (c *consoleState) enterRaw() error {
	c.fd = int(os.Stdin.Fd())
	if !term.IsTerminal(c.fd) {
		return errNotTerminal
	}
	saved, err := term.MakeRaw(c.fd)
	if err != nil {
		return err
	}
	c.saved = saved
	if err := syscall.SetNonblock(c.fd, true); err != nil {
		c.restore()
		return err
	}
	c.nonblocking = true
	return nil
}

// read returns idle when nothing was waiting.
func (c *consoleState) read(buf []byte) (n int, idle bool, err error) {
	n, err = syscall.Read(c.fd, buf)
	switch {
	case err == syscall.EAGAIN || err == syscall.EWOULDBLOCK:
		return 0, true, nil
	case err != nil:
		return 0, false, err
	}
	return n, n == 0, nil
}

func (c *consoleState) blockingReads() bool { return false }

func (c *consoleState) restore() {
	if c.nonblocking {
		_ = syscall.SetNonblock(c.fd, false)
		c.nonblocking = false
	}
	if c.saved != nil {
		_ = term.Restore(c.fd, c.saved)
		c.saved = nil
	}
}
