package bits

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestField(t *testing.T) {
	// ModR/M byte 0b11_010_001 -> mod=3, reg=2, rm=1
	modrm := byte(0b11_010_001)
	assert.Equal(t, byte(0b11), Field(modrm, 6, 7))
	assert.Equal(t, byte(0b010), Field(modrm, 3, 5))
	assert.Equal(t, byte(0b001), Field(modrm, 0, 2))

	assert.Equal(t, byte(0b0000_1111), Field(0b1111_1111, 0, 3))
	assert.Equal(t, byte(0b0000_1111), Field(0b1111_0000, 4, 7))
}

func TestFieldPanicsOnBadRange(t *testing.T) {
	assert.Panics(t, func() { Field(0, 5, 2) })
	assert.Panics(t, func() { Field(0, -1, 2) })
	assert.Panics(t, func() { Field(0, 0, 8) })
}

func TestBitAndSetBit(t *testing.T) {
	var v uint16 = 0
	assert.False(t, Bit(v, 0))
	v = SetBit(v, 0, true)
	assert.True(t, Bit(v, 0))
	v = SetBit(v, 0, false)
	assert.False(t, Bit(v, 0))

	v = SetBit(0, 7, true)
	assert.Equal(t, uint16(0x80), v)
}

func TestParity8(t *testing.T) {
	assert.True(t, Parity8(0x00))  // zero set bits -> even
	assert.False(t, Parity8(0x01)) // one set bit -> odd
	assert.True(t, Parity8(0x03))  // two set bits -> even
	assert.True(t, Parity8(0xFF))  // eight set bits -> even
	assert.False(t, Parity8(0x07)) // three set bits -> odd
}
