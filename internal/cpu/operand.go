package cpu

import "github.com/emu8086/emu8086/internal/register"

// effectiveAddress resolves a memory operand (OpMem or OpDeref) to a
// linear address, applying the current instruction's segment
// override or the default segment rule: SS for any [BP+...] form,
// DS otherwise (spec §3, §4.3 step 6).
func (c *CPU) effectiveAddress(op Operand) uint32 {
	if op.Kind == OpMem {
		seg := c.segOverride
		if seg == noSegOverride {
			seg = register.DS
		}
		return linear(c.Regs.Get16(seg), op.Offset)
	}

	var off uint16
	usesBP := false
	switch op.RM {
	case rmBXSI:
		off = c.Regs.Get16(register.BX) + c.Regs.Get16(register.SI)
	case rmBXDI:
		off = c.Regs.Get16(register.BX) + c.Regs.Get16(register.DI)
	case rmBPSI:
		off = c.Regs.Get16(register.BP) + c.Regs.Get16(register.SI)
		usesBP = true
	case rmBPDI:
		off = c.Regs.Get16(register.BP) + c.Regs.Get16(register.DI)
		usesBP = true
	case rmSI:
		off = c.Regs.Get16(register.SI)
	case rmDI:
		off = c.Regs.Get16(register.DI)
	case rmBP:
		off = c.Regs.Get16(register.BP)
		usesBP = true
	case rmBX:
		off = c.Regs.Get16(register.BX)
	}
	off += op.Disp

	seg := c.segOverride
	if seg == noSegOverride {
		if usesBP {
			seg = register.SS
		} else {
			seg = register.DS
		}
	}
	return linear(c.Regs.Get16(seg), off)
}

// readOperand loads an operand's value, widened to uint16 regardless
// of size8 (the caller already knows which width matters).
func (c *CPU) readOperand(op Operand, size8 bool) (uint16, error) {
	switch op.Kind {
	case OpReg8:
		return uint16(c.Regs.Get8(op.Reg8)), nil
	case OpReg16:
		return c.Regs.Get16(op.Reg16), nil
	case OpConst:
		return uint16(op.Const), nil
	case OpMem, OpDeref:
		addr := c.effectiveAddress(op)
		if size8 {
			v, err := c.Bus.ReadU8(addr)
			return uint16(v), err
		}
		return c.Bus.ReadU16(addr)
	case OpFarPtr:
		return op.FarOffset, nil
	}
	return 0, ErrInvalidInstruction
}

// writeOperand stores v into a register or memory operand, per size8.
func (c *CPU) writeOperand(op Operand, size8 bool, v uint16) error {
	switch op.Kind {
	case OpReg8:
		c.Regs.Set8(op.Reg8, byte(v))
		return nil
	case OpReg16:
		c.Regs.Set16(op.Reg16, v)
		return nil
	case OpMem, OpDeref:
		addr := c.effectiveAddress(op)
		if size8 {
			return c.Bus.WriteU8(addr, byte(v))
		}
		return c.Bus.WriteU16(addr, v)
	}
	return ErrInvalidInstruction
}

// farPointerAt reads a 32-bit far pointer (offset then segment) out of
// a memory operand, used by LDS/LES and the CALL/JMP far-through-memory
// forms.
func (c *CPU) farPointerAt(op Operand) (offset, segment uint16, err error) {
	addr := c.effectiveAddress(op)
	offset, err = c.Bus.ReadU16(addr)
	if err != nil {
		return 0, 0, err
	}
	segment, err = c.Bus.ReadU16(addr + 2)
	return offset, segment, err
}
