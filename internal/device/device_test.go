package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emu8086/emu8086/internal/bus"
)

type fakeDrive struct {
	floppy bool
}

func (f *fakeDrive) ReadAt(offset, size uint32) ([]byte, error) { return make([]byte, size), nil }
func (f *fakeDrive) SectorSize() int                            { return 512 }
func (f *fakeDrive) Heads() int                                 { return 2 }
func (f *fakeDrive) SectorsPerTrack() int                       { return 18 }
func (f *fakeDrive) Cylinders() int                             { return 80 }
func (f *fakeDrive) IsFloppy() bool                             { return f.floppy }

func TestAttachDriveFillsFloppyThenHardDiskSlots(t *testing.T) {
	r := NewRegistry(bus.New(0x1000))
	floppy := &fakeDrive{floppy: true}
	require.NoError(t, r.Attach(floppy))
	assert.Equal(t, floppy, r.Drive(0x00))
	assert.Equal(t, 1, r.FloppyCount())

	disk := &fakeDrive{floppy: false}
	require.NoError(t, r.Attach(disk))
	assert.Equal(t, disk, r.Drive(0x80))
	assert.Equal(t, 1, r.HardDiskCount())
}

func TestAttachDriveFullReturnsError(t *testing.T) {
	r := NewRegistry(bus.New(0x1000))
	for i := 0; i < 0x80; i++ {
		require.NoError(t, r.Attach(&fakeDrive{floppy: true}))
	}
	err := r.Attach(&fakeDrive{floppy: true})
	assert.ErrorIs(t, err, ErrDeviceFull)
}

func TestAttachUnknownDeviceErrors(t *testing.T) {
	r := NewRegistry(bus.New(0x1000))
	err := r.Attach(42)
	assert.Error(t, err)
}

func TestPICTracksEOI(t *testing.T) {
	b := bus.New(0x1000)
	r := NewRegistry(b)
	pic := NewPIC()
	require.NoError(t, r.Attach(pic))

	require.NoError(t, b.WritePort(0x20, 0x20))
	assert.Equal(t, 1, pic.EOICount)

	require.NoError(t, b.WritePort(0x20, 0x13))
	assert.Equal(t, 1, pic.EOICount)
}
