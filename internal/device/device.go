// Package device defines the capability interfaces external hardware
// attaches through (drives, memory-mapped devices, I/O-mapped
// devices) and the registry that binds them into a bus.
//
// The source this was distilled from used inheritance and
// introspection to discover which interfaces a given device object
// implemented; here that becomes a plain Go type switch over three
// small interfaces; a single concrete device may implement more than
// one (spec §9, "Polymorphic devices").
package device

import (
	"errors"
	"fmt"

	"github.com/emu8086/emu8086/internal/bus"
)

// ErrDeviceFull is returned when no drive slot is free for the
// requested half of the drive table.
var ErrDeviceFull = errors.New("device: no free drive slot")

// Drive is a block storage device addressable by BIOS drive number.
type Drive interface {
	ReadAt(offset, size uint32) ([]byte, error)
	SectorSize() int
	Heads() int
	SectorsPerTrack() int
	Cylinders() int
	IsFloppy() bool
}

// PageRange names a page-aligned run of pages a memory-mapped device
// owns.
type PageRange struct {
	PageIndex int
	PageCount int
}

// MemoryMappedDevice attaches to one or more page-aligned ranges of
// the bus's address space.
type MemoryMappedDevice interface {
	bus.PageHandler
	Pages() []PageRange
}

// IOMappedDevice attaches to one or more I/O ports.
type IOMappedDevice interface {
	bus.IODevice
	Ports() []uint16
}

const (
	floppyBase   = 0x00
	floppyCount  = 0x80
	hardDiskBase = 0x80
	hardDiskCap  = 0x100
)

// Registry owns the drive table and attaches memory/IO devices into a
// Bus, rebinding the affected pages/ports.
type Registry struct {
	bus    *bus.Bus
	drives [hardDiskCap]Drive
}

// NewRegistry creates a Registry bound to b.
func NewRegistry(b *bus.Bus) *Registry {
	return &Registry{bus: b}
}

// Attach inspects dev's type and wires in whichever of Drive,
// MemoryMappedDevice, IOMappedDevice it implements. A device may
// satisfy more than one of these at once (e.g. a combo floppy
// controller that is also memory-mapped).
func (r *Registry) Attach(dev any) error {
	attached := false

	if d, ok := dev.(Drive); ok {
		if err := r.attachDrive(d); err != nil {
			return err
		}
		attached = true
	}
	if m, ok := dev.(MemoryMappedDevice); ok {
		for _, pr := range m.Pages() {
			if err := r.bus.InstallPages(pr.PageIndex, pr.PageCount, m); err != nil {
				return fmt.Errorf("device: attach memory-mapped device: %w", err)
			}
		}
		attached = true
	}
	if io, ok := dev.(IOMappedDevice); ok {
		for _, port := range io.Ports() {
			r.bus.BindPort(port, io)
		}
		attached = true
	}

	if !attached {
		return fmt.Errorf("device: %T implements none of Drive, MemoryMappedDevice, IOMappedDevice", dev)
	}
	return nil
}

func (r *Registry) attachDrive(d Drive) error {
	lo, hi := floppyBase, floppyCount
	if !d.IsFloppy() {
		lo, hi = hardDiskBase, hardDiskCap
	}
	for i := lo; i < hi; i++ {
		if r.drives[i] == nil {
			r.drives[i] = d
			return nil
		}
	}
	return ErrDeviceFull
}

// Drive returns the drive bound to the given BIOS drive number, or
// nil if the slot is empty.
func (r *Registry) Drive(driveNumber int) Drive {
	if driveNumber < 0 || driveNumber >= hardDiskCap {
		return nil
	}
	return r.drives[driveNumber]
}

// FloppyCount reports how many floppy slots (0x00-0x7F) are occupied.
func (r *Registry) FloppyCount() int {
	n := 0
	for i := floppyBase; i < floppyCount; i++ {
		if r.drives[i] != nil {
			n++
		}
	}
	return n
}

// HardDiskCount reports how many hard-disk slots (0x80-0xFF) are
// occupied.
func (r *Registry) HardDiskCount() int {
	n := 0
	for i := hardDiskBase; i < hardDiskCap; i++ {
		if r.drives[i] != nil {
			n++
		}
	}
	return n
}
