// Package disk implements the two on-disk drive formats the BIOS disk
// trap reads from: flat sector-major raw images, and the ImageDisk
// (IMD) container format.
package disk

import "fmt"

// RawDrive is a flat, sector-major disk image with explicit CHS
// geometry. Every RawDrive always reports heads/sectorsPerTrack/
// cylinders/sectorSize; there is no constructor variant that omits
// sector size (spec §9 Open Questions resolves the ambiguity this
// way).
type RawDrive struct {
	data            []byte
	heads           int
	sectorsPerTrack int
	cylinders       int
	sectorSize      int
	floppy          bool
}

// NewRawDrive wraps data as a raw CHS-geometry drive.
func NewRawDrive(data []byte, heads, sectorsPerTrack, cylinders, sectorSize int, floppy bool) *RawDrive {
	return &RawDrive{
		data:            data,
		heads:           heads,
		sectorsPerTrack: sectorsPerTrack,
		cylinders:       cylinders,
		sectorSize:      sectorSize,
		floppy:          floppy,
	}
}

func (d *RawDrive) ReadAt(offset, size uint32) ([]byte, error) {
	end := uint64(offset) + uint64(size)
	if end > uint64(len(d.data)) {
		return nil, fmt.Errorf("disk: raw read [%d,%d) past end of %d-byte image", offset, end, len(d.data))
	}
	out := make([]byte, size)
	copy(out, d.data[offset:end])
	return out, nil
}

func (d *RawDrive) SectorSize() int      { return d.sectorSize }
func (d *RawDrive) Heads() int           { return d.heads }
func (d *RawDrive) SectorsPerTrack() int { return d.sectorsPerTrack }
func (d *RawDrive) Cylinders() int       { return d.cylinders }
func (d *RawDrive) IsFloppy() bool       { return d.floppy }

// StandardFloppy360K wraps data as a floppy RawDrive with the geometry
// of a 5.25" 360 KiB floppy: 2 heads, 9 sectors/track, 40 cylinders,
// 512-byte sectors.
func StandardFloppy360K(data []byte) *RawDrive {
	return NewRawDrive(data, 2, 9, 40, 512, true)
}

// StandardFloppy1440K wraps data as a floppy RawDrive with the geometry
// of a 3.5" 1.44 MiB floppy: 2 heads, 18 sectors/track, 80 cylinders,
// 512-byte sectors.
func StandardFloppy1440K(data []byte) *RawDrive {
	return NewRawDrive(data, 2, 18, 80, 512, true)
}
