// Package cpu implements the 8086 instruction decoder, operand
// resolver, ALU/flag logic, and dispatcher described in spec §4: the
// fetch-decode-execute pipeline driving a paged bus and register file.
//
// This generalizes the teacher's (hejops-gone) 6502 Cpu — a register
// struct plus a byte-indexed Opcodes dispatch table keyed by method
// value — from the 6502's single-operand, flag-struct world to the
// 8086's two-operand, ModR/M-addressed, segmented one.
package cpu

import (
	"fmt"

	"github.com/emu8086/emu8086/internal/bus"
	"github.com/emu8086/emu8086/internal/device"
	"github.com/emu8086/emu8086/internal/register"
)

// StepResult reports whether the CPU is still running or has halted
// after processing one instruction.
type StepResult int

const (
	Running StepResult = iota
	Halted
)

// RunResult reports whether a bounded batch ran to completion or
// halted early.
type RunResult int

const (
	Completed RunResult = iota
	HaltedEarly
)

// CPU is the 8086 core: register file, paged bus, and attached device
// registry.
type CPU struct {
	Regs     register.File
	Bus      *bus.Bus
	Devices  *device.Registry
	halted   bool
	lastInst Instruction // last decoded instruction, for the debug monitor

	segOverride register.Reg16 // current instruction's segment override, set by dispatch
}

// New builds a CPU with RAM filled with the 0xCC sentinel,
// bios mapped at 0xF0000 (must be exactly 0x10000 bytes), and
// CS:IP set to the power-on vector 0xF000:0xFFF0 (spec §6).
func New(biosBytes []byte, memorySize int) (*CPU, error) {
	b := bus.New(memorySize)
	if err := b.LoadBIOS(biosBytes); err != nil {
		return nil, err
	}
	c := &CPU{Bus: b}
	c.Devices = device.NewRegistry(b)
	c.Regs.Reset()
	return c, nil
}

// AttachDevice wires a drive and/or memory/IO-mapped device into the
// CPU's bus (spec §6).
func (c *CPU) AttachDevice(dev any) error {
	return c.Devices.Attach(dev)
}

// GetRegister/SetRegister/byte variants: the host-facing register API
// (spec §6).
func (c *CPU) GetRegister(r register.Reg16) uint16     { return c.Regs.Get16(r) }
func (c *CPU) SetRegister(r register.Reg16, v uint16)  { c.Regs.Set16(r, v) }
func (c *CPU) GetRegister8(r register.Reg8) byte       { return c.Regs.Get8(r) }
func (c *CPU) SetRegister8(r register.Reg8, v byte)    { c.Regs.Set8(r, v) }

// ReadBytes/WriteBytes: the host-facing raw memory API (spec §6).
func (c *CPU) ReadBytes(addr uint32, size int) ([]byte, error) { return c.Bus.ReadBytes(addr, size) }
func (c *CPU) WriteBytes(addr uint32, data []byte) error       { return c.Bus.WriteBytes(addr, data) }

// linear computes the 20-bit physical address for seg:off, truncating
// the sum to 20 bits, so it wraps at 1 MiB (spec §3).
func linear(seg, off uint16) uint32 {
	return (uint32(seg)<<4 + uint32(off)) & 0xFFFFF
}

// csip returns the current linear code-fetch address.
func (c *CPU) csip() uint32 {
	return linear(c.Regs.Get16(register.CS), c.Regs.Get16(register.IP))
}

// fetchU8 reads the next code byte at CS:IP and advances IP by 1,
// wrapping IP modulo 2^16 (segment is never touched by the wrap).
func (c *CPU) fetchU8() (byte, error) {
	v, err := c.Bus.ReadU8(c.csip())
	if err != nil {
		return 0, err
	}
	c.Regs.Set16(register.IP, c.Regs.Get16(register.IP)+1)
	return v, nil
}

// fetchU16 reads the next code word at CS:IP (little-endian) and
// advances IP by 2.
func (c *CPU) fetchU16() (uint16, error) {
	lo, err := c.fetchU8()
	if err != nil {
		return 0, err
	}
	hi, err := c.fetchU8()
	if err != nil {
		return 0, err
	}
	return uint16(lo) | uint16(hi)<<8, nil
}

// push decrements SP by 2 and then stores v at the new SS:SP, i.e. SP
// is modified first and then the word is stored (spec §4.6). v is read
// by the caller before SP changes, so the PUSH-SP bug (storing the
// already-decremented value) is reproduced by a special case in
// dispatch, not by this ordering.
func (c *CPU) push(v uint16) error {
	sp := c.Regs.Get16(register.SP) - 2
	c.Regs.Set16(register.SP, sp)
	return c.Bus.WriteU16(linear(c.Regs.Get16(register.SS), sp), v)
}

// pop reads the word at SS:SP then increments SP by 2.
func (c *CPU) pop() (uint16, error) {
	sp := c.Regs.Get16(register.SP)
	v, err := c.Bus.ReadU16(linear(c.Regs.Get16(register.SS), sp))
	if err != nil {
		return 0, err
	}
	c.Regs.Set16(register.SP, sp+2)
	return v, nil
}

// Step processes exactly one instruction: decode, then dispatch. It
// is atomic with respect to any external observer (spec §5): a
// REP-prefixed string instruction runs to completion within this one
// call.
func (c *CPU) Step() (StepResult, error) {
	if c.halted {
		return Halted, nil
	}

	inst, err := c.decode()
	if err != nil {
		return Running, err
	}
	c.lastInst = inst

	if err := c.dispatch(inst); err != nil {
		return Running, err
	}

	if c.halted {
		return Halted, nil
	}
	return Running, nil
}

// Run steps the CPU at most n times, stopping early if it halts.
func (c *CPU) Run(n int) (RunResult, error) {
	for i := 0; i < n; i++ {
		res, err := c.Step()
		if err != nil {
			return Completed, err
		}
		if res == Halted {
			return HaltedEarly, nil
		}
	}
	return Completed, nil
}

// LastInstruction returns the most recently decoded instruction, for
// monitor/debugger use.
func (c *CPU) LastInstruction() Instruction { return c.lastInst }

// Halted reports whether the CPU executed HLT and is parked.
func (c *CPU) Halted() bool { return c.halted }

func (c *CPU) errorf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
