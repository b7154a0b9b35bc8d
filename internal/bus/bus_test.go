package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFillsRAMWithSentinel(t *testing.T) {
	b := New(0x10000)
	v, err := b.ReadU8(0x1234)
	require.NoError(t, err)
	assert.Equal(t, byte(0xCC), v)
}

func TestReadWriteU16LittleEndianUnaligned(t *testing.T) {
	b := New(0x10000)
	require.NoError(t, b.WriteU16(0x0101, 0xBEEF))
	lo, _ := b.ReadU8(0x0101)
	hi, _ := b.ReadU8(0x0102)
	assert.Equal(t, byte(0xEF), lo)
	assert.Equal(t, byte(0xBE), hi)

	v, err := b.ReadU16(0x0101)
	require.NoError(t, err)
	assert.Equal(t, uint16(0xBEEF), v)
}

func TestLoadBIOSRejectsWrongSize(t *testing.T) {
	b := New(MemSize)
	err := b.LoadBIOS(make([]byte, 123))
	assert.ErrorIs(t, err, ErrInvalidBios)

	bios := make([]byte, BIOSSize)
	bios[0] = 0xEA // a plausible far-jump opcode
	require.NoError(t, b.LoadBIOS(bios))

	v, err := b.ReadU8(BIOSBase)
	require.NoError(t, err)
	assert.Equal(t, byte(0xEA), v)
}

func TestUnmappedAccessErrors(t *testing.T) {
	b := New(0x1000)
	require.NoError(t, b.InstallPages(0, NumPages, nil))

	_, err := b.ReadU8(0)
	assert.ErrorIs(t, err, ErrUnmappedBusAccess)

	err = b.WriteU8(0, 1)
	assert.ErrorIs(t, err, ErrUnmappedBusAccess)
}

func TestShortRAMRejectsAccessPastBackingArray(t *testing.T) {
	b := New(0x1000)

	_, err := b.ReadU8(0x1000)
	assert.ErrorIs(t, err, ErrUnmappedBusAccess)

	err = b.WriteU8(0x1000, 1)
	assert.ErrorIs(t, err, ErrUnmappedBusAccess)

	v, err := b.ReadU8(0x0FFF)
	require.NoError(t, err)
	assert.Equal(t, byte(0xCC), v)
}

func TestUnboundPortErrors(t *testing.T) {
	b := New(0x1000)
	_, err := b.ReadPort(0x42)
	assert.ErrorIs(t, err, ErrUnmappedBusAccess)

	err = b.WritePort(0x42, 1)
	assert.ErrorIs(t, err, ErrUnmappedBusAccess)
}

type stubDevice struct {
	reads  []byte
	writes []byte
}

func (s *stubDevice) ReadU8(port uint16) byte {
	v := s.reads[0]
	s.reads = s.reads[1:]
	return v
}

func (s *stubDevice) WriteU8(port uint16, v byte) {
	s.writes = append(s.writes, v)
}

func TestBindPortRoutesToDevice(t *testing.T) {
	b := New(0x1000)
	dev := &stubDevice{reads: []byte{0x42}}
	b.BindPort(0x20, dev)

	v, err := b.ReadPort(0x20)
	require.NoError(t, err)
	assert.Equal(t, byte(0x42), v)

	require.NoError(t, b.WritePort(0x20, 0x20))
	assert.Equal(t, []byte{0x20}, dev.writes)
}

type stubPage struct {
	reads  map[uint32]byte
	writes map[uint32]byte
}

func (s *stubPage) ReadU8(phys uint32) byte { return s.reads[phys] }
func (s *stubPage) WriteU8(phys uint32, v byte) {
	if s.writes == nil {
		s.writes = map[uint32]byte{}
	}
	s.writes[phys] = v
}

func TestInstallPagesRebindsRange(t *testing.T) {
	b := New(0x10000)
	dev := &stubPage{reads: map[uint32]byte{0x2000: 0x99}}
	require.NoError(t, b.InstallPages(2, 1, dev))

	v, err := b.ReadU8(0x2000)
	require.NoError(t, err)
	assert.Equal(t, byte(0x99), v)

	// untouched pages remain RAM
	v, err = b.ReadU8(0x1000)
	require.NoError(t, err)
	assert.Equal(t, byte(0xCC), v)
}
