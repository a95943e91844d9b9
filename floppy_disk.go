// floppy_disk.go - Sector-level model of a +3 disk image (.dsk)

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

const (
	DSK_STANDARD_HEADER = "MV - CPC"
	DSK_EXTENDED_HEADER = "EXTENDED CPC DSK File"
	DSK_TRACK_HEADER    = "Track-Info"
	DSK_INFO_SIZE       = 0x100
	DSK_MAX_TRACKS      = 85
)

// DiskSector is one sector with the ID field the controller matches against.
type DiskSector struct {
	C, H, R, N byte
	ST1, ST2   byte
	Data       []byte
}

type DiskTrack struct {
	Sectors []DiskSector
	Gap3    byte
	Filler  byte
}

// FloppyDisk holds every track of a disk image indexed by cylinder*sides+head.
type FloppyDisk struct {
	Tracks         int
	Sides          int
	Extended       bool
	WriteProtected bool
	Dirty          bool
	tracks         []DiskTrack
}

// ParseDsk decodes a standard or extended CPC/+3 disk image.
func ParseDsk(data []byte) (*FloppyDisk, error) {
	if len(data) < DSK_INFO_SIZE {
		return nil, fmt.Errorf("disk info block: %w", ErrDiskFormat)
	}
	d := &FloppyDisk{}
	switch {
	case bytes.HasPrefix(data, []byte(DSK_EXTENDED_HEADER)):
		d.Extended = true
	case bytes.HasPrefix(data, []byte(DSK_STANDARD_HEADER)):
	default:
		return nil, fmt.Errorf("unknown header: %w", ErrDiskFormat)
	}
	d.Tracks = int(data[0x30])
	d.Sides = int(data[0x31])
	if d.Sides < 1 || d.Sides > 2 || d.Tracks < 1 || d.Tracks > DSK_MAX_TRACKS {
		return nil, fmt.Errorf("geometry %d tracks x %d sides: %w", d.Tracks, d.Sides, ErrDiskFormat)
	}
	d.tracks = make([]DiskTrack, d.Tracks*d.Sides)

	stdTrackSize := int(data[0x32]) | int(data[0x33])<<8
	pos := DSK_INFO_SIZE
	for i := range d.tracks {
		size := stdTrackSize
		if d.Extended {
			size = int(data[0x34+i]) << 8
		}
		if size == 0 {
			continue // unformatted
		}
		if pos+size > len(data) {
			// Images are often truncated after the last used track.
			d.Tracks = (i + d.Sides - 1) / d.Sides
			d.tracks = d.tracks[:d.Tracks*d.Sides]
			break
		}
		track, err := parseDskTrack(data[pos:pos+size], d.Extended)
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", i, err)
		}
		d.tracks[i] = track
		pos += size
	}
	return d, nil
}

func parseDskTrack(tb []byte, extended bool) (DiskTrack, error) {
	if len(tb) < DSK_INFO_SIZE || !bytes.HasPrefix(tb, []byte(DSK_TRACK_HEADER)) {
		return DiskTrack{}, ErrDiskFormat
	}
	t := DiskTrack{Gap3: tb[0x16], Filler: tb[0x17]}
	count := int(tb[0x15])
	if 0x18+8*count > DSK_INFO_SIZE {
		return DiskTrack{}, ErrDiskFormat
	}
	trackN := tb[0x14]
	off := DSK_INFO_SIZE
	for j := range count {
		si := tb[0x18+8*j:]
		s := DiskSector{C: si[0], H: si[1], R: si[2], N: si[3], ST1: si[4], ST2: si[5]}
		length := 0x80 << min(trackN, 6)
		if extended {
			length = int(si[6]) | int(si[7])<<8
		}
		if off+length > len(tb) {
			return DiskTrack{}, ErrDiskFormat
		}
		s.Data = append([]byte(nil), tb[off:off+length]...)
		off += length
		t.Sectors = append(t.Sectors, s)
	}
	return t, nil
}

// LoadDskFile reads a disk image from disk.
func LoadDskFile(path string) (*FloppyDisk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &PeripheralError{Device: "floppy", Source: path, Err: err}
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, &PeripheralError{Device: "floppy", Source: path, Err: err}
	}
	d, err := ParseDsk(data)
	if err != nil {
		return nil, &PeripheralError{Device: "floppy", Source: path, Err: err}
	}
	return d, nil
}

// NewBlankDisk creates an unformatted disk with the given geometry.
func NewBlankDisk(tracks, sides int) *FloppyDisk {
	return &FloppyDisk{Tracks: tracks, Sides: sides, Extended: true, tracks: make([]DiskTrack, tracks*sides)}
}

// Track returns the track under the head, or nil past the last cylinder.
func (d *FloppyDisk) Track(cylinder, head int) *DiskTrack {
	if cylinder < 0 || cylinder >= d.Tracks || head < 0 || head >= d.Sides {
		return nil
	}
	return &d.tracks[cylinder*d.Sides+head]
}

// FindSector looks up a sector by its full ID.
func (d *FloppyDisk) FindSector(cylinder, head int, c, h, r, n byte) *DiskSector {
	t := d.Track(cylinder, head)
	if t == nil {
		return nil
	}
	for i := range t.Sectors {
		s := &t.Sectors[i]
		if s.C == c && s.H == h && s.R == r && s.N == n {
			return s
		}
	}
	return nil
}

// FormatTrack replaces a track's sectors.
func (d *FloppyDisk) FormatTrack(cylinder, head int, ids [][4]byte, filler, gap3 byte) bool {
	t := d.Track(cylinder, head)
	if t == nil {
		return false
	}
	t.Sectors = t.Sectors[:0]
	t.Gap3, t.Filler = gap3, filler
	for _, id := range ids {
		data := bytes.Repeat([]byte{filler}, 0x80<<min(id[3], 6))
		t.Sectors = append(t.Sectors, DiskSector{C: id[0], H: id[1], R: id[2], N: id[3], Data: data})
	}
	d.Dirty = true
	return true
}
