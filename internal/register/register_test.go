package register

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResetVector(t *testing.T) {
	var f File
	f.Reset()
	assert.Equal(t, uint16(0xF000), f.Get16(CS))
	assert.Equal(t, uint16(0xFFF0), f.Get16(IP))
	assert.Equal(t, uint16(0), f.Get16(AX))
}

func TestByteHalvesPreserveSibling(t *testing.T) {
	var f File
	f.Set16(AX, 0x1234)
	f.Set8(AL, 0xFF)
	assert.Equal(t, uint16(0x12FF), f.Get16(AX))
	assert.Equal(t, byte(0x12), f.Get8(AH))

	f.Set8(AH, 0xAB)
	assert.Equal(t, uint16(0xABFF), f.Get16(AX))
	assert.Equal(t, byte(0xFF), f.Get8(AL))
}

func TestFlagsAlwaysReadsReservedBit(t *testing.T) {
	var f File
	assert.Equal(t, uint16(0x0002), f.Flags())

	f.SetFlags(0xFFFF)
	// only the nine implemented bits (plus the always-one reserved
	// bit) may come back set.
	assert.Equal(t, uint16(0x0FD7), f.Flags())
}

func TestIndividualFlagAccessors(t *testing.T) {
	var f File
	f.SetCF(true)
	f.SetOF(true)
	assert.True(t, f.CF())
	assert.True(t, f.OF())
	assert.False(t, f.ZF())

	f.SetCF(false)
	assert.False(t, f.CF())
	assert.True(t, f.OF())
}

func TestSetSZP(t *testing.T) {
	var f File
	f.SetSZP(0, false)
	assert.True(t, f.ZF())
	assert.False(t, f.SF())
	assert.True(t, f.PF()) // 0 has even (zero) parity

	f.SetSZP(0x8000, false)
	assert.False(t, f.ZF())
	assert.True(t, f.SF())

	f.SetSZP(0x0080, true)
	assert.True(t, f.SF()) // top bit of the low byte
}
