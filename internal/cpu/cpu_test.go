package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emu8086/emu8086/internal/bus"
	"github.com/emu8086/emu8086/internal/disk"
	"github.com/emu8086/emu8086/internal/register"
)

func newTestCPU(t *testing.T, code []byte) *CPU {
	t.Helper()
	c, err := New(make([]byte, bus.BIOSSize), bus.MemSize)
	require.NoError(t, err)
	c.Regs.Set16(register.CS, 0)
	c.Regs.Set16(register.IP, 0x100)
	c.Regs.Set16(register.SS, 0x10)
	c.Regs.Set16(register.SP, 0x1000)
	require.NoError(t, c.WriteBytes(0x100, code))
	return c
}

func TestAddOverflowSetsOFAndSF(t *testing.T) {
	// MOV AX, 0x7FFF; ADD AX, 1
	c := newTestCPU(t, []byte{0xB8, 0xFF, 0x7F, 0x05, 0x01, 0x00})
	_, err := c.Run(2)
	require.NoError(t, err)

	assert.Equal(t, uint16(0x8000), c.GetRegister(register.AX))
	assert.True(t, c.Regs.OF())
	assert.True(t, c.Regs.SF())
	assert.False(t, c.Regs.CF())
}

func TestSubUnderflowSetsCF(t *testing.T) {
	// MOV AX, 0; SUB AX, 1
	c := newTestCPU(t, []byte{0xB8, 0x00, 0x00, 0x2D, 0x01, 0x00})
	_, err := c.Run(2)
	require.NoError(t, err)

	assert.Equal(t, uint16(0xFFFF), c.GetRegister(register.AX))
	assert.True(t, c.Regs.CF())
	assert.True(t, c.Regs.SF())
	assert.False(t, c.Regs.ZF())
}

func TestShlSetsCFFromVacatedBit(t *testing.T) {
	// MOV AX, 0xC000; SHL AX, 1  (D1 /4)
	c := newTestCPU(t, []byte{0xB8, 0x00, 0xC0, 0xD1, 0xE0})
	_, err := c.Run(2)
	require.NoError(t, err)

	assert.Equal(t, uint16(0x8000), c.GetRegister(register.AX))
	assert.True(t, c.Regs.CF())
}

func TestPushPopRoundTrip(t *testing.T) {
	// MOV AX, 0x1234; PUSH AX; MOV AX, 0; POP AX
	c := newTestCPU(t, []byte{
		0xB8, 0x34, 0x12,
		0x50,
		0xB8, 0x00, 0x00,
		0x58,
	})
	_, err := c.Run(4)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), c.GetRegister(register.AX))
}

func TestPushSPBugStoresPredecrementedValue(t *testing.T) {
	c := newTestCPU(t, []byte{0x54}) // PUSH SP
	sp := c.GetRegister(register.SP)
	_, err := c.Run(1)
	require.NoError(t, err)

	stored, err := c.Bus.ReadU16(uint32(c.GetRegister(register.SS))<<4 + uint32(c.GetRegister(register.SP)))
	require.NoError(t, err)
	assert.Equal(t, sp-2, stored)
}

func TestJccTakesBranchOnZeroFlag(t *testing.T) {
	// MOV AX,0; CMP AX,0; JZ +3; MOV AX,1 (skipped); MOV AX,2
	c := newTestCPU(t, []byte{
		0xB8, 0x00, 0x00,
		0x3D, 0x00, 0x00,
		0x74, 0x03,
		0xB8, 0x01, 0x00,
		0xB8, 0x02, 0x00,
	})
	_, err := c.Run(4) // mov, cmp, jz, (skips mov ax,1) mov ax,2
	require.NoError(t, err)
	assert.Equal(t, uint16(0x2), c.GetRegister(register.AX))
}

func TestMovsRepCopiesBuffer(t *testing.T) {
	c := newTestCPU(t, []byte{0xF3, 0xA4}) // REP MOVSB
	c.Regs.Set16(register.CX, 4)
	c.Regs.Set16(register.SI, 0x200)
	c.Regs.Set16(register.DI, 0x300)
	c.Regs.Set16(register.DS, 0)
	c.Regs.Set16(register.ES, 0)
	require.NoError(t, c.WriteBytes(0x200, []byte{1, 2, 3, 4}))

	_, err := c.Run(1)
	require.NoError(t, err)

	got, err := c.ReadBytes(0x300, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, got)
	assert.Equal(t, uint16(0), c.GetRegister(register.CX))
}

func TestDivideByZeroRaisesInterruptZero(t *testing.T) {
	// MOV AX,1; MOV CX,0; DIV CX  (F7 /6)
	c := newTestCPU(t, []byte{
		0xB8, 0x01, 0x00,
		0xB9, 0x00, 0x00,
		0xF7, 0xF1,
	})
	_, err := c.Run(2)
	require.NoError(t, err)
	c.Regs.SetIF(true)
	spBefore := c.GetRegister(register.SP)

	_, err = c.Run(1)
	require.NoError(t, err)

	// Unwritten low RAM reads back as the 0xCC fill sentinel, so vector
	// 0's offset and segment both come back 0xCCCC.
	assert.Equal(t, uint16(0xCCCC), c.GetRegister(register.IP))
	assert.Equal(t, uint16(0xCCCC), c.GetRegister(register.CS))
	assert.Equal(t, spBefore-6, c.GetRegister(register.SP))
	assert.False(t, c.Regs.IF())
}

func TestHltStopsExecution(t *testing.T) {
	c := newTestCPU(t, []byte{0xF4})
	res, err := c.Run(5)
	require.NoError(t, err)
	assert.Equal(t, HaltedEarly, res)
	assert.True(t, c.Halted())
}

func TestLoopDecrementsCXAndBranches(t *testing.T) {
	// MOV CX,3; loop: INC AX; LOOP loop
	c := newTestCPU(t, []byte{
		0xB9, 0x03, 0x00,
		0x40,
		0xE2, 0xFD,
	})
	_, err := c.Run(7) // 1 setup + 3*(inc+loop)
	require.NoError(t, err)
	assert.Equal(t, uint16(3), c.GetRegister(register.AX))
	assert.Equal(t, uint16(0), c.GetRegister(register.CX))
}

func TestHltBacksUpIPToPointAtOpcode(t *testing.T) {
	c := newTestCPU(t, []byte{0xF4}) // HLT
	startIP := c.GetRegister(register.IP)
	_, err := c.Run(1)
	require.NoError(t, err)
	assert.Equal(t, startIP, c.GetRegister(register.IP))
}

func TestTrapSetupBIOSDataWritesAtCSAX(t *testing.T) {
	c := newTestCPU(t, []byte{0x0F, 0x0F, 0x01}) // emulator trap fn 0x01
	c.Regs.Set16(register.CS, 0x40)
	require.NoError(t, c.WriteBytes(uint32(0x40)<<4+0x100, []byte{0x0F, 0x0F, 0x01})) // code at the new CS:IP
	c.Regs.Set16(register.AX, 0x0010)
	require.NoError(t, c.AttachDevice(disk.StandardFloppy360K(make([]byte, 368640))))

	_, err := c.Run(1)
	require.NoError(t, err)

	equipment, err := c.Bus.ReadU16(uint32(0x40)<<4 + 0x0010)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0001), equipment) // one floppy attached

	memKB, err := c.Bus.ReadU16(uint32(0x40)<<4 + 0x0013)
	require.NoError(t, err)
	assert.Equal(t, uint16(bus.MemSize/1024), memKB)
}

func TestTrapDiskReadUsesStackParamsAndAXStatus(t *testing.T) {
	c := newTestCPU(t, []byte{0x0F, 0x0F, 0x02}) // emulator trap fn 0x02
	image := make([]byte, 368640)
	sector := make([]byte, 512)
	for i := range sector {
		sector[i] = 0x42
	}
	copy(image, sector)
	require.NoError(t, c.AttachDevice(disk.StandardFloppy360K(image)))

	c.Regs.Set16(register.BP, 0x200)
	push := func(off, v uint16) {
		require.NoError(t, c.Bus.WriteU16(uint32(c.GetRegister(register.SS))<<4+uint32(0x200-off), v))
	}
	push(2, 0)      // drive
	push(4, 0)      // head
	push(6, 0)      // cylinder
	push(8, 1)      // sector
	push(10, 1)     // count
	push(12, 0x300) // dest segment
	push(14, 0)     // dest offset

	_, err := c.Run(1)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), c.GetRegister(register.AX))

	got, err := c.ReadBytes(uint32(0x300)<<4, 512)
	require.NoError(t, err)
	assert.Equal(t, sector, got)
}

func TestTrapDiskReadReportsFailureInAX(t *testing.T) {
	c := newTestCPU(t, []byte{0x0F, 0x0F, 0x02})
	c.Regs.Set16(register.BP, 0x200)
	push := func(off, v uint16) {
		require.NoError(t, c.Bus.WriteU16(uint32(c.GetRegister(register.SS))<<4+uint32(0x200-off), v))
	}
	push(2, 0) // drive 0, nothing attached
	push(4, 0)
	push(6, 0)
	push(8, 1)
	push(10, 1)
	push(12, 0x300)
	push(14, 0)

	_, err := c.Run(1)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), c.GetRegister(register.AX))
}

func TestMovRegImmAndModRMRoundTrip(t *testing.T) {
	// MOV BX, 0x200; MOV [BX], BX; MOV DX, [BX]
	c := newTestCPU(t, []byte{
		0xBB, 0x00, 0x02, // MOV BX, 0x200
		0x89, 0x1F, // MOV [BX], BX  (mod=00 rm=111 -> [BX])
		0x8B, 0x17, // MOV DX, [BX]
	})
	c.Regs.Set16(register.DS, 0)
	_, err := c.Run(3)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x200), c.GetRegister(register.DX))
}
