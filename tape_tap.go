// tape_tap.go - .tap image reader and writer

package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// ReadTapBlocks splits a .tap stream into blocks. Each block is a little
// endian 16-bit length followed by that many bytes (flag, payload, checksum).
func ReadTapBlocks(r io.Reader) ([]TapeDataBlock, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &PeripheralError{Device: "tape", Source: "tap", Err: err}
	}
	var blocks []TapeDataBlock
	for pos := 0; pos < len(data); {
		if pos+2 > len(data) {
			return nil, &PeripheralError{Device: "tape", Source: "tap",
				Err: fmt.Errorf("truncated length at offset %d: %w", pos, ErrTapeFormat)}
		}
		n := int(binary.LittleEndian.Uint16(data[pos:]))
		pos += 2
		if n == 0 || pos+n > len(data) {
			return nil, &PeripheralError{Device: "tape", Source: "tap",
				Err: fmt.Errorf("block of %d bytes at offset %d: %w", n, pos-2, ErrTapeFormat)}
		}
		blocks = append(blocks, NewStandardTapeBlock(append([]byte(nil), data[pos:pos+n]...)))
		pos += n
	}
	return blocks, nil
}

// LoadTapFile reads a .tap file from disk.
func LoadTapFile(path string) ([]TapeDataBlock, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &PeripheralError{Device: "tape", Source: path, Err: err}
	}
	defer f.Close()
	blocks, err := ReadTapBlocks(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return blocks, nil
}

// WriteTapBlocks writes blocks in .tap layout.
func WriteTapBlocks(w io.Writer, blocks []TapeDataBlock) error {
	var hdr [2]byte
	for _, b := range blocks {
		binary.LittleEndian.PutUint16(hdr[:], uint16(len(b.Data)))
		if _, err := w.Write(hdr[:]); err != nil {
			return err
		}
		if _, err := w.Write(b.Data); err != nil {
			return err
		}
	}
	return nil
}

// TapCollector is a TapeSaver that keeps every saved header/data pair. When
// Dir is set, each completed pair is also written to <Dir>/<name>.tap.
// Failed writes are logged and kept in Err.
type TapCollector struct {
	Dir    string
	Saved  []TapeDataBlock
	Log    *log.Entry
	Err    error
	name   string
	header *TapeDataBlock
	OnSave func(name string, blocks []TapeDataBlock)
}

func (c *TapCollector) SetName(name string) { c.name = name }

func (c *TapCollector) Name() string { return c.name }

func (c *TapCollector) SaveTapeBlock(block TapeDataBlock) {
	c.Saved = append(c.Saved, block)
	if len(block.Data) == 0x13 && block.Data[0] == 0x00 {
		c.header = &block
		return
	}
	if len(block.Data) == 0 || block.Data[0] != 0xFF {
		return
	}
	pair := []TapeDataBlock{block}
	name := c.name
	if c.header != nil {
		pair = []TapeDataBlock{*c.header, block}
		c.header = nil
	} else {
		name = ""
	}
	if c.OnSave != nil {
		c.OnSave(name, pair)
	}
	if c.Dir != "" {
		if err := c.writeFile(name, pair); err != nil {
			c.Err = err
			if c.Log != nil {
				c.Log.WithError(err).Warn("tape save failed")
			}
		}
	}
}

// savedFileName turns a tape header name into a file name inside Dir.
func savedFileName(name string) string {
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		name = "saved"
	}
	return name + ".tap"
}

func (c *TapCollector) writeFile(name string, blocks []TapeDataBlock) error {
	path := filepath.Join(c.Dir, savedFileName(name))
	f, err := os.Create(path)
	if err != nil {
		return &PeripheralError{Device: "tape", Source: path, Err: err}
	}
	if err := WriteTapBlocks(f, blocks); err != nil {
		f.Close()
		return &PeripheralError{Device: "tape", Source: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &PeripheralError{Device: "tape", Source: path, Err: err}
	}
	return nil
}
