package disk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawDriveReadAt(t *testing.T) {
	data := make([]byte, 2048)
	for i := range data {
		data[i] = byte(i)
	}
	d := NewRawDrive(data, 2, 18, 80, 512, true)

	got, err := d.ReadAt(512, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 3}, got)

	assert.Equal(t, 512, d.SectorSize())
	assert.Equal(t, 2, d.Heads())
	assert.Equal(t, 18, d.SectorsPerTrack())
	assert.Equal(t, 80, d.Cylinders())
	assert.True(t, d.IsFloppy())
}

func TestRawDriveReadPastEndErrors(t *testing.T) {
	d := NewRawDrive(make([]byte, 100), 1, 1, 1, 512, true)
	_, err := d.ReadAt(90, 50)
	assert.Error(t, err)
}

func buildIMDImage(t *testing.T, sectors [][]byte) []byte {
	t.Helper()
	var raw []byte
	raw = append(raw, []byte("IMD 1.18: test image\r\n")...)
	raw = append(raw, []byte("generated by test\x1A")...)

	// one track, cylinder 0, head 0, sectorSizeCode 2 (512 bytes)
	raw = append(raw, 0x00, 0x00, 0x00, byte(len(sectors)), 0x02)
	for i := range sectors {
		raw = append(raw, byte(i+1)) // sector numbering map
	}
	for _, s := range sectors {
		if len(s) == 1 {
			raw = append(raw, imdSectorCompressed, s[0])
		} else {
			raw = append(raw, imdSectorNormal)
			raw = append(raw, s...)
		}
	}
	return raw
}

func TestParseIMDVerbatimAndCompressed(t *testing.T) {
	verbatim := make([]byte, 512)
	for i := range verbatim {
		verbatim[i] = byte(i)
	}
	raw := buildIMDImage(t, [][]byte{verbatim, {0x5A}})

	d, err := ParseIMD(raw)
	require.NoError(t, err)
	assert.Equal(t, 512, d.SectorSize())
	assert.Equal(t, 1, d.Heads())
	assert.Equal(t, 1, d.Cylinders())
	assert.Equal(t, 2, d.SectorsPerTrack())

	got, err := d.ReadAt(0, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 3}, got)

	got, err = d.ReadAt(512, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x5A, 0x5A, 0x5A}, got)
}

func TestParseIMDRejectsBadHeader(t *testing.T) {
	_, err := ParseIMD([]byte("not an imd file"))
	assert.Error(t, err)
}
