package cpu

import (
	"github.com/emu8086/emu8086/internal/register"
)

// dispatch executes one decoded instruction against the register
// file and bus (spec §4.6). It is the single total function over
// Kind; Invalid/unrecognized forms surface as ErrInvalidInstruction.
func (c *CPU) dispatch(inst Instruction) error {
	c.segOverride = inst.SegOverride

	switch inst.Kind {
	case Mov:
		v, err := c.readOperand(inst.Arg2, inst.Size8)
		if err != nil {
			return err
		}
		return c.writeOperand(inst.Arg1, inst.Size8, v)

	case Push:
		// PUSH SP is special-cased to reproduce the 8086 bug: SP is
		// decremented before being read, so the value stored is the
		// already-decremented SP, not its pre-push value (spec §4.6).
		if inst.Arg1.Kind == OpReg16 && inst.Arg1.Reg16 == register.SP {
			sp := c.Regs.Get16(register.SP) - 2
			c.Regs.Set16(register.SP, sp)
			return c.Bus.WriteU16(linear(c.Regs.Get16(register.SS), sp), sp)
		}
		v, err := c.readOperand(inst.Arg1, false)
		if err != nil {
			return err
		}
		return c.push(v)

	case Pop:
		v, err := c.pop()
		if err != nil {
			return err
		}
		return c.writeOperand(inst.Arg1, false, v)

	case Xchg:
		a, err := c.readOperand(inst.Arg1, inst.Size8)
		if err != nil {
			return err
		}
		b, err := c.readOperand(inst.Arg2, inst.Size8)
		if err != nil {
			return err
		}
		if err := c.writeOperand(inst.Arg1, inst.Size8, b); err != nil {
			return err
		}
		return c.writeOperand(inst.Arg2, inst.Size8, a)

	case Lea:
		// LEA loads the 16-bit offset, not the linear address: resolve
		// against DS and strip that segment's base again.
		c.segOverride = register.DS
		addr := c.effectiveAddress(inst.Arg2)
		c.Regs.Set16(inst.Arg1.Reg16, uint16(addr-uint32(c.Regs.Get16(register.DS))<<4))
		return nil

	case Lds, Les:
		off, seg, err := c.farPointerAt(inst.Arg2)
		if err != nil {
			return err
		}
		c.Regs.Set16(inst.Arg1.Reg16, off)
		if inst.Kind == Lds {
			c.Regs.Set16(register.DS, seg)
		} else {
			c.Regs.Set16(register.ES, seg)
		}
		return nil

	case Add, Adc, Sub, Sbb, Cmp, And, Or, Xor, Test:
		return c.dispatchALU(inst)

	case Inc, Dec, Not, Neg:
		return c.dispatchUnary(inst)

	case Mul, Imul, Div, Idiv:
		return c.dispatchMulDiv(inst)

	case Shl, Shr, Sar, Rol, Ror, Rcl, Rcr:
		a, err := c.readOperand(inst.Arg1, inst.Size8)
		if err != nil {
			return err
		}
		count, err := c.readOperand(inst.Arg2, true)
		if err != nil {
			return err
		}
		result := c.doShiftRotate(inst.Kind, a, byte(count), inst.Size8)
		return c.writeOperand(inst.Arg1, inst.Size8, result)

	case Daa:
		c.execDAA()
		return nil
	case Das:
		c.execDAS()
		return nil
	case Aaa:
		c.execAAA()
		return nil
	case Aas:
		c.execAAS()
		return nil
	case Aam:
		if err := c.execAAM(byte(inst.Arg1.Const)); err != nil {
			return c.raiseInterrupt(0)
		}
		return nil
	case Aad:
		c.execAAD(byte(inst.Arg1.Const))
		return nil
	case Cbw:
		c.execCBW()
		return nil
	case Cwd:
		c.execCWD()
		return nil
	case Xlat:
		return c.execXlat()

	case JmpNearRel, JmpNearAbs, JmpFarImm, JmpFarMem,
		CallNearRel, CallNearAbs, CallFarImm, CallFarMem, Ret, RetFar:
		return c.dispatchControlFlow(inst)

	case Jcc:
		if evalCond(inst.Cond, &c.Regs) {
			return c.relJump(inst.Arg1.Const)
		}
		return nil
	case Jcxz:
		if c.Regs.Get16(register.CX) == 0 {
			return c.relJump(inst.Arg1.Const)
		}
		return nil
	case Loop:
		cx := c.Regs.Get16(register.CX) - 1
		c.Regs.Set16(register.CX, cx)
		if cx != 0 {
			return c.relJump(inst.Arg1.Const)
		}
		return nil
	case Loopz:
		cx := c.Regs.Get16(register.CX) - 1
		c.Regs.Set16(register.CX, cx)
		if cx != 0 && c.Regs.ZF() {
			return c.relJump(inst.Arg1.Const)
		}
		return nil
	case Loopnz:
		cx := c.Regs.Get16(register.CX) - 1
		c.Regs.Set16(register.CX, cx)
		if cx != 0 && !c.Regs.ZF() {
			return c.relJump(inst.Arg1.Const)
		}
		return nil

	case Movs, Lods, Stos, Cmps, Scas:
		return c.dispatchString(inst)

	case Int:
		return c.raiseInterrupt(byte(inst.Arg1.Const))
	case Into:
		if c.Regs.OF() {
			return c.raiseInterrupt(4)
		}
		return nil
	case Iret:
		return c.execIret()

	case Clc:
		c.Regs.SetCF(false)
		return nil
	case Stc:
		c.Regs.SetCF(true)
		return nil
	case Cmc:
		c.Regs.SetCF(!c.Regs.CF())
		return nil
	case Cli:
		c.Regs.SetIF(false)
		return nil
	case Sti:
		c.Regs.SetIF(true)
		return nil
	case Cld:
		c.Regs.SetDF(false)
		return nil
	case Std:
		c.Regs.SetDF(true)
		return nil
	case Sahf:
		ah := c.Regs.Get8(register.AH)
		c.Regs.SetFlags((c.Regs.Flags() &^ 0xFF) | uint16(ah))
		return nil
	case Lahf:
		c.Regs.Set8(register.AH, byte(c.Regs.Flags()))
		return nil
	case Pushf:
		return c.push(c.Regs.Flags())
	case Popf:
		v, err := c.pop()
		if err != nil {
			return err
		}
		c.Regs.SetFlags(v)
		return nil

	case In:
		return c.dispatchIn(inst)
	case Out:
		return c.dispatchOut(inst)

	case Hlt:
		// IP already advanced past the one-byte HLT opcode during
		// decode; back it up so a re-step (and any inspector reading
		// IP while halted) sees IP pointing at the HLT itself, per
		// spec §4.6.
		c.Regs.Set16(register.IP, c.Regs.Get16(register.IP)-1)
		c.halted = true
		return nil
	case Nop:
		return nil

	case Trap:
		return c.dispatchTrap(inst)

	case Unsupported:
		return ErrUnsupported
	default:
		return ErrInvalidInstruction
	}
}

func (c *CPU) dispatchALU(inst Instruction) error {
	a, err := c.readOperand(inst.Arg1, inst.Size8)
	if err != nil {
		return err
	}
	b, err := c.readOperand(inst.Arg2, inst.Size8)
	if err != nil {
		return err
	}

	var result uint16
	switch inst.Kind {
	case Add:
		result = c.doAdd(a, b, inst.Size8, false)
	case Adc:
		result = c.doAdd(a, b, inst.Size8, true)
	case Sub:
		result = c.doSub(a, b, inst.Size8, false)
	case Sbb:
		result = c.doSub(a, b, inst.Size8, true)
	case Cmp:
		c.doSub(a, b, inst.Size8, false)
		return nil
	case And:
		result = c.doLogic(a, b, inst.Size8, func(x, y uint16) uint16 { return x & y })
	case Or:
		result = c.doLogic(a, b, inst.Size8, func(x, y uint16) uint16 { return x | y })
	case Xor:
		result = c.doLogic(a, b, inst.Size8, func(x, y uint16) uint16 { return x ^ y })
	case Test:
		c.doLogic(a, b, inst.Size8, func(x, y uint16) uint16 { return x & y })
		return nil
	}
	return c.writeOperand(inst.Arg1, inst.Size8, result)
}

func (c *CPU) dispatchUnary(inst Instruction) error {
	a, err := c.readOperand(inst.Arg1, inst.Size8)
	if err != nil {
		return err
	}
	var result uint16
	switch inst.Kind {
	case Inc:
		result = c.doInc(a, inst.Size8)
	case Dec:
		result = c.doDec(a, inst.Size8)
	case Not:
		result = c.doNot(a, inst.Size8)
	case Neg:
		result = c.doNeg(a, inst.Size8)
	}
	return c.writeOperand(inst.Arg1, inst.Size8, result)
}

func (c *CPU) dispatchMulDiv(inst Instruction) error {
	b, err := c.readOperand(inst.Arg1, inst.Size8)
	if err != nil {
		return err
	}
	switch inst.Kind {
	case Mul:
		c.doMul(b, inst.Size8)
		return nil
	case Imul:
		c.doImul(b, inst.Size8)
		return nil
	case Div:
		if err := c.doDiv(b, inst.Size8); err != nil {
			return c.raiseInterrupt(0)
		}
		return nil
	case Idiv:
		if err := c.doIdiv(b, inst.Size8); err != nil {
			return c.raiseInterrupt(0)
		}
		return nil
	}
	return ErrInvalidInstruction
}

// evalCond tests a Jcc predicate against the current flags (spec
// §4.5 condition table).
func evalCond(cond ConditionCode, regs *register.File) bool {
	switch cond {
	case CondO:
		return regs.OF()
	case CondNO:
		return !regs.OF()
	case CondB:
		return regs.CF()
	case CondNB:
		return !regs.CF()
	case CondZ:
		return regs.ZF()
	case CondNZ:
		return !regs.ZF()
	case CondBE:
		return regs.CF() || regs.ZF()
	case CondNBE:
		return !regs.CF() && !regs.ZF()
	case CondS:
		return regs.SF()
	case CondNS:
		return !regs.SF()
	case CondP:
		return regs.PF()
	case CondNP:
		return !regs.PF()
	case CondL:
		return regs.SF() != regs.OF()
	case CondNL:
		return regs.SF() == regs.OF()
	case CondLE:
		return regs.ZF() || regs.SF() != regs.OF()
	case CondNLE:
		return !regs.ZF() && regs.SF() == regs.OF()
	}
	return false
}

// relJump adds a signed displacement to IP, wrapping modulo 2^16.
func (c *CPU) relJump(rel int32) error {
	ip := c.Regs.Get16(register.IP)
	c.Regs.Set16(register.IP, uint16(int32(ip)+rel))
	return nil
}

func (c *CPU) dispatchControlFlow(inst Instruction) error {
	switch inst.Kind {
	case JmpNearRel:
		return c.relJump(inst.Arg1.Const)
	case JmpNearAbs:
		v, err := c.readOperand(inst.Arg1, false)
		if err != nil {
			return err
		}
		c.Regs.Set16(register.IP, v)
		return nil
	case JmpFarImm:
		c.Regs.Set16(register.CS, inst.Arg1.FarSegment)
		c.Regs.Set16(register.IP, inst.Arg1.FarOffset)
		return nil
	case JmpFarMem:
		off, seg, err := c.farPointerAt(inst.Arg1)
		if err != nil {
			return err
		}
		c.Regs.Set16(register.CS, seg)
		c.Regs.Set16(register.IP, off)
		return nil
	case CallNearRel:
		if err := c.push(c.Regs.Get16(register.IP)); err != nil {
			return err
		}
		return c.relJump(inst.Arg1.Const)
	case CallNearAbs:
		v, err := c.readOperand(inst.Arg1, false)
		if err != nil {
			return err
		}
		if err := c.push(c.Regs.Get16(register.IP)); err != nil {
			return err
		}
		c.Regs.Set16(register.IP, v)
		return nil
	case CallFarImm:
		if err := c.push(c.Regs.Get16(register.CS)); err != nil {
			return err
		}
		if err := c.push(c.Regs.Get16(register.IP)); err != nil {
			return err
		}
		c.Regs.Set16(register.CS, inst.Arg1.FarSegment)
		c.Regs.Set16(register.IP, inst.Arg1.FarOffset)
		return nil
	case CallFarMem:
		off, seg, err := c.farPointerAt(inst.Arg1)
		if err != nil {
			return err
		}
		if err := c.push(c.Regs.Get16(register.CS)); err != nil {
			return err
		}
		if err := c.push(c.Regs.Get16(register.IP)); err != nil {
			return err
		}
		c.Regs.Set16(register.CS, seg)
		c.Regs.Set16(register.IP, off)
		return nil
	case Ret:
		ip, err := c.pop()
		if err != nil {
			return err
		}
		c.Regs.Set16(register.IP, ip)
		if inst.Arg1.Kind == OpConst {
			c.Regs.Set16(register.SP, c.Regs.Get16(register.SP)+uint16(inst.Arg1.Const))
		}
		return nil
	case RetFar:
		ip, err := c.pop()
		if err != nil {
			return err
		}
		cs, err := c.pop()
		if err != nil {
			return err
		}
		c.Regs.Set16(register.IP, ip)
		c.Regs.Set16(register.CS, cs)
		if inst.Arg1.Kind == OpConst {
			c.Regs.Set16(register.SP, c.Regs.Get16(register.SP)+uint16(inst.Arg1.Const))
		}
		return nil
	}
	return ErrInvalidInstruction
}

// raiseInterrupt pushes FLAGS, CS, IP, clears IF and TF, and loads
// CS:IP from the 4-byte vector table entry at vector*4 (spec §4.6
// "Software interrupt dispatch").
func (c *CPU) raiseInterrupt(vector byte) error {
	if err := c.push(c.Regs.Flags()); err != nil {
		return err
	}
	if err := c.push(c.Regs.Get16(register.CS)); err != nil {
		return err
	}
	if err := c.push(c.Regs.Get16(register.IP)); err != nil {
		return err
	}
	c.Regs.SetIF(false)
	c.Regs.SetTF(false)

	addr := uint32(vector) * 4
	off, err := c.Bus.ReadU16(addr)
	if err != nil {
		return err
	}
	seg, err := c.Bus.ReadU16(addr + 2)
	if err != nil {
		return err
	}
	c.Regs.Set16(register.IP, off)
	c.Regs.Set16(register.CS, seg)
	return nil
}

func (c *CPU) execIret() error {
	ip, err := c.pop()
	if err != nil {
		return err
	}
	cs, err := c.pop()
	if err != nil {
		return err
	}
	flags, err := c.pop()
	if err != nil {
		return err
	}
	c.Regs.Set16(register.IP, ip)
	c.Regs.Set16(register.CS, cs)
	c.Regs.SetFlags(flags)
	return nil
}

// dispatchString runs one string-instruction iteration, or (with a
// REP/REPE/REPNE prefix) repeats it while CX != 0 and, for CMPS/SCAS,
// the matching zero-flag condition holds (spec §4.6 "String
// instructions and repetition").
func (c *CPU) dispatchString(inst Instruction) error {
	step := uint16(2)
	if inst.Size8 {
		step = 1
	}

	if inst.RepPrefix != 0xF2 && inst.RepPrefix != 0xF3 {
		return c.stringStep(inst.Kind, inst.Size8, step)
	}

	for c.Regs.Get16(register.CX) != 0 {
		if err := c.stringStep(inst.Kind, inst.Size8, step); err != nil {
			return err
		}
		c.Regs.Set16(register.CX, c.Regs.Get16(register.CX)-1)
		if inst.Kind == Cmps || inst.Kind == Scas {
			zf := c.Regs.ZF()
			if inst.RepPrefix == 0xF3 && !zf {
				break
			}
			if inst.RepPrefix == 0xF2 && zf {
				break
			}
		}
	}
	return nil
}

func (c *CPU) stringSrcAddr() uint32 {
	seg := c.segOverride
	if seg == noSegOverride {
		seg = register.DS
	}
	return linear(c.Regs.Get16(seg), c.Regs.Get16(register.SI))
}

// stringDstAddr is always ES:DI; ES cannot be overridden for the
// destination side of a string instruction.
func (c *CPU) stringDstAddr() uint32 {
	return linear(c.Regs.Get16(register.ES), c.Regs.Get16(register.DI))
}

func (c *CPU) stringStep(kind Kind, size8 bool, step uint16) error {
	delta := step
	if c.Regs.DF() {
		delta = -step
	}

	switch kind {
	case Movs:
		src, dst := c.stringSrcAddr(), c.stringDstAddr()
		if size8 {
			v, err := c.Bus.ReadU8(src)
			if err != nil {
				return err
			}
			if err := c.Bus.WriteU8(dst, v); err != nil {
				return err
			}
		} else {
			v, err := c.Bus.ReadU16(src)
			if err != nil {
				return err
			}
			if err := c.Bus.WriteU16(dst, v); err != nil {
				return err
			}
		}
		c.Regs.Set16(register.SI, c.Regs.Get16(register.SI)+delta)
		c.Regs.Set16(register.DI, c.Regs.Get16(register.DI)+delta)

	case Lods:
		src := c.stringSrcAddr()
		if size8 {
			v, err := c.Bus.ReadU8(src)
			if err != nil {
				return err
			}
			c.Regs.Set8(register.AL, v)
		} else {
			v, err := c.Bus.ReadU16(src)
			if err != nil {
				return err
			}
			c.Regs.Set16(register.AX, v)
		}
		c.Regs.Set16(register.SI, c.Regs.Get16(register.SI)+delta)

	case Stos:
		dst := c.stringDstAddr()
		if size8 {
			if err := c.Bus.WriteU8(dst, c.Regs.Get8(register.AL)); err != nil {
				return err
			}
		} else {
			if err := c.Bus.WriteU16(dst, c.Regs.Get16(register.AX)); err != nil {
				return err
			}
		}
		c.Regs.Set16(register.DI, c.Regs.Get16(register.DI)+delta)

	case Cmps:
		src, dst := c.stringSrcAddr(), c.stringDstAddr()
		var a, b uint16
		var err error
		if size8 {
			var av, bv byte
			if av, err = c.Bus.ReadU8(src); err == nil {
				bv, err = c.Bus.ReadU8(dst)
			}
			a, b = uint16(av), uint16(bv)
		} else {
			if a, err = c.Bus.ReadU16(src); err == nil {
				b, err = c.Bus.ReadU16(dst)
			}
		}
		if err != nil {
			return err
		}
		c.doSub(a, b, size8, false)
		c.Regs.Set16(register.SI, c.Regs.Get16(register.SI)+delta)
		c.Regs.Set16(register.DI, c.Regs.Get16(register.DI)+delta)

	case Scas:
		dst := c.stringDstAddr()
		var a, b uint16
		if size8 {
			a = uint16(c.Regs.Get8(register.AL))
			v, err := c.Bus.ReadU8(dst)
			if err != nil {
				return err
			}
			b = uint16(v)
		} else {
			a = c.Regs.Get16(register.AX)
			v, err := c.Bus.ReadU16(dst)
			if err != nil {
				return err
			}
			b = v
		}
		c.doSub(a, b, size8, false)
		c.Regs.Set16(register.DI, c.Regs.Get16(register.DI)+delta)
	}
	return nil
}

func (c *CPU) dispatchIn(inst Instruction) error {
	port, err := c.readOperand(inst.Arg2, false)
	if err != nil {
		return err
	}
	v, err := c.Bus.ReadPort(port)
	if err != nil {
		return err
	}
	if inst.Size8 {
		return c.writeOperand(inst.Arg1, true, uint16(v))
	}
	hi, err := c.Bus.ReadPort(port + 1)
	if err != nil {
		return err
	}
	return c.writeOperand(inst.Arg1, false, uint16(v)|uint16(hi)<<8)
}

func (c *CPU) dispatchOut(inst Instruction) error {
	port, err := c.readOperand(inst.Arg1, false)
	if err != nil {
		return err
	}
	v, err := c.readOperand(inst.Arg2, inst.Size8)
	if err != nil {
		return err
	}
	if inst.Size8 {
		return c.Bus.WritePort(port, byte(v))
	}
	if err := c.Bus.WritePort(port, byte(v)); err != nil {
		return err
	}
	return c.Bus.WritePort(port+1, byte(v>>8))
}
