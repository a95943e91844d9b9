//go:build windows

package main

import (
	"os"

	"golang.org/x/term"
)

// consoleState uses the console in raw mode. Reads block, so Stop does not
// wait for the reader.
type consoleState struct {
	fd    int
	saved *term.State
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
	return nil
}

func (c *consoleState) read(buf []byte) (int, bool, error) {
	n, err := os.Stdin.Read(buf)
	return n, false, err
}

func (c *consoleState) blockingReads() bool { return true }

func (c *consoleState) restore() {
	if c.saved != nil {
		_ = term.Restore(c.fd, c.saved)
		c.saved = nil
	}
}
