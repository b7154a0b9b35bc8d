package cpu

import "github.com/emu8086/emu8086/internal/register"

// Emulator trap function codes (spec §4.6 "Emulator trap"). The
// BIOS's bootstrap/INT13 handler issues `0x0F 0x0F <fn>` instead of
// walking real disk-controller or CMOS hardware; the host CPU
// services the request directly through the device registry.
const (
	trapSetupBIOSData byte = 0x01
	trapDiskRead      byte = 0x02
)

func (c *CPU) dispatchTrap(inst Instruction) error {
	switch inst.TrapFunc {
	case trapSetupBIOSData:
		return c.trapSetupBIOSData()
	case trapDiskRead:
		return c.trapDiskRead()
	}
	return ErrUnsupported
}

// trapSetupBIOSData fills BIOS data at CS:AX (spec §4.6): the caller
// passes the destination in, it is not a fixed address. The two
// fields a boot sector typically reads are written there, spaced the
// same three bytes apart as the real BDA's 0040:0010/0040:0013 pair:
// the equipment word (floppy-drive-present bit plus drive count) at
// CS:AX, the installed-memory word in KiB at CS:AX+3.
func (c *CPU) trapSetupBIOSData() error {
	floppies := c.Devices.FloppyCount()

	var equipment uint16
	if floppies > 0 {
		equipment |= 0x0001
		equipment |= uint16(floppies-1) << 6
	}

	memKB := uint16(c.Bus.RAMSize() / 1024)

	base := linear(c.Regs.Get16(register.CS), c.Regs.Get16(register.AX))
	if err := c.Bus.WriteU16(base, equipment); err != nil {
		return err
	}
	return c.Bus.WriteU16(base+3, memKB)
}

// Stack-frame offsets below BP the disk-read trap's seven parameters
// sit at (spec §4.6): the caller pushes them in this order before
// issuing the trap, leaving BP pointing just past the last one.
const (
	diskReadDriveOff   = 2
	diskReadHeadOff    = 4
	diskReadCylOff     = 6
	diskReadSectorOff  = 8
	diskReadCountOff   = 10
	diskReadDestSegOff = 12
	diskReadDestOffOff = 14
)

// stackParam reads the word at [SS:BP-off].
func (c *CPU) stackParam(off uint16) (uint16, error) {
	bp := c.Regs.Get16(register.BP)
	return c.Bus.ReadU16(linear(c.Regs.Get16(register.SS), bp-off))
}

// trapDiskRead services the disk-read trap: drive, head, cylinder,
// sector, count and the destination segment:offset are read from the
// stack below BP rather than registers. On success AX is cleared and
// the sectors are written to dest-segment:dest-offset; on any failure
// (unknown drive, bad geometry, short read) AX is set to 1 (spec
// §4.6).
func (c *CPU) trapDiskRead() error {
	drive, err := c.stackParam(diskReadDriveOff)
	if err != nil {
		return err
	}
	head, err := c.stackParam(diskReadHeadOff)
	if err != nil {
		return err
	}
	cylinder, err := c.stackParam(diskReadCylOff)
	if err != nil {
		return err
	}
	sector, err := c.stackParam(diskReadSectorOff)
	if err != nil {
		return err
	}
	count, err := c.stackParam(diskReadCountOff)
	if err != nil {
		return err
	}
	destSeg, err := c.stackParam(diskReadDestSegOff)
	if err != nil {
		return err
	}
	destOff, err := c.stackParam(diskReadDestOffOff)
	if err != nil {
		return err
	}

	d := c.Devices.Drive(int(drive))
	if d == nil {
		c.Regs.Set16(register.AX, 1)
		return nil
	}

	if sector < 1 || int(sector) > d.SectorsPerTrack() || int(head) >= d.Heads() || int(cylinder) >= d.Cylinders() {
		c.Regs.Set16(register.AX, 1)
		return nil
	}

	sectorSize := uint32(d.SectorSize())
	lba := uint32(int(cylinder)*d.Heads()+int(head))*uint32(d.SectorsPerTrack()) + uint32(sector-1)
	data, err := d.ReadAt(lba*sectorSize, uint32(count)*sectorSize)
	if err != nil {
		c.Regs.Set16(register.AX, 1)
		return nil
	}

	if err := c.Bus.WriteBytes(linear(destSeg, destOff), data); err != nil {
		return err
	}

	c.Regs.Set16(register.AX, 0)
	return nil
}
