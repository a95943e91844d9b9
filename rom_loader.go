// rom_loader.go - ROM images from a directory or from memory

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const ROM_FILE_EXT = ".rom"

// RomSource supplies ROM images by profile name.
type RomSource interface {
	Rom(name string) ([]byte, error)
}

// DirRomSource reads <Dir>/<name>.rom.
type DirRomSource struct {
	Dir string
}

func (d DirRomSource) Rom(name string) ([]byte, error) {
	path := filepath.Join(d.Dir, name+ROM_FILE_EXT)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &ConfigError{Operation: "rom load", Details: path, Err: ErrRomMissing}
	}
	if err != nil {
		return nil, fmt.Errorf("rom load %s: %w", path, err)
	}
	return data, nil
}

// MapRomSource serves images held in memory; tests and scripts build
// machines this way.
type MapRomSource map[string][]byte

func (m MapRomSource) Rom(name string) ([]byte, error) {
	data, ok := m[name]
	if !ok {
		return nil, &ConfigError{Operation: "rom load", Details: name, Err: ErrRomMissing}
	}
	return data, nil
}

// uploadRoms loads every ROM the profile declares.
func uploadRoms(m *Machine, src RomSource) error {
	for _, spec := range m.Profile.Roms {
		data, err := src.Rom(spec.Name)
		if err != nil {
			return err
		}
		if err := m.UploadRom(spec.Name, data); err != nil {
			return err
		}
		m.log.WithField("rom", spec.Name).Debugf("uploaded %d bytes", len(data))
	}
	return nil
}
