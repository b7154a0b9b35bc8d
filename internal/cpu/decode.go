package cpu

import "github.com/emu8086/emu8086/internal/register"

// aluKindByRow maps opcode bits 5:3 (opcode>>3) to the arithmetic/
// logic operation for the regular 0x00-0x3D opcode block (spec §4.3
// step 2, opcode lookup): ADD, OR, ADC, SBB, AND, SUB, XOR, CMP occupy
// rows 0-7 in that order, each with the same 6-opcode sub-pattern.
var aluKindByRow = [8]Kind{Add, Or, Adc, Sbb, And, Sub, Xor, Cmp}

// conditionByRow maps opcode-0x70 (the low nibble) to the Jcc condition code;
// Jcc opcodes 0x70-0x7F and their 0F 8x (not modeled, 80386+) relative
// pair share this table.
var conditionByRow = [16]ConditionCode{
	CondO, CondNO, CondB, CondNB, CondZ, CondNZ, CondBE, CondNBE,
	CondS, CondNS, CondP, CondNP, CondL, CondNL, CondLE, CondNLE,
}

// decode consumes prefix bytes, the opcode (and, for two-byte and
// group opcodes, whatever follows), and returns a fully populated
// Instruction. It advances IP exactly as far as the instruction is
// long; it never mutates any other CPU state (spec §4.3).
func (c *CPU) decode() (Instruction, error) {
	segOverride := noSegOverride
	var repPrefix byte

	var opcode byte
	for {
		b, err := c.fetchU8()
		if err != nil {
			return Instruction{}, err
		}
		switch b {
		case 0x26:
			segOverride = register.ES
			continue
		case 0x2E:
			segOverride = register.CS
			continue
		case 0x36:
			segOverride = register.SS
			continue
		case 0x3E:
			segOverride = register.DS
			continue
		case 0xF0, 0xF2, 0xF3:
			repPrefix = b
			continue
		}
		opcode = b
		break
	}

	inst, err := c.decodeOpcode(opcode)
	if err != nil {
		return Instruction{}, err
	}
	inst.SegOverride = segOverride
	inst.RepPrefix = repPrefix
	return inst, nil
}

// fetchModRM reads one ModR/M byte and splits it into mod:reg:rm.
func (c *CPU) fetchModRM() (mod, reg, rm byte, err error) {
	b, err := c.fetchU8()
	if err != nil {
		return 0, 0, 0, err
	}
	return b >> 6, (b >> 3) & 0x7, b & 0x7, nil
}

// decodeRM resolves a ModR/M rm field into an operand: a register
// when mod==3, otherwise a Dereference with the matching displacement
// form, including the mod=00,rm=6 direct-address exception (spec
// §4.3 step 6).
func (c *CPU) decodeRM(mod, rm byte, size8 bool) (Operand, error) {
	if mod == 3 {
		if size8 {
			return Operand{Kind: OpReg8, Reg8: register.Reg8(rm)}, nil
		}
		return Operand{Kind: OpReg16, Reg16: register.Reg16(rm)}, nil
	}
	if mod == 0 && rm == 6 {
		off, err := c.fetchU16()
		if err != nil {
			return Operand{}, err
		}
		return Operand{Kind: OpMem, Offset: off}, nil
	}
	var disp uint16
	switch mod {
	case 1:
		b, err := c.fetchU8()
		if err != nil {
			return Operand{}, err
		}
		disp = uint16(int16(int8(b)))
	case 2:
		w, err := c.fetchU16()
		if err != nil {
			return Operand{}, err
		}
		disp = w
	}
	return Operand{Kind: OpDeref, RM: rmKind(rm), Disp: disp}, nil
}

func regOperand(reg byte, size8 bool) Operand {
	if size8 {
		return Operand{Kind: OpReg8, Reg8: register.Reg8(reg)}
	}
	return Operand{Kind: OpReg16, Reg16: register.Reg16(reg)}
}

// segRegByField maps the 2-bit segment-register field (ES,CS,SS,DS)
// used by MOV Sreg and PUSH/POP segment-register forms.
func segRegByField(f byte) register.Reg16 {
	return register.ES + register.Reg16(f)
}

// decodeModRMPair fetches a ModR/M byte and returns the (register,
// r/m) operand pair plus which one the reg field names, honoring
// size8.
func (c *CPU) decodeModRMPair(size8 bool) (regOp, rmOp Operand, err error) {
	mod, reg, rm, err := c.fetchModRM()
	if err != nil {
		return Operand{}, Operand{}, err
	}
	rmOp, err = c.decodeRM(mod, rm, size8)
	if err != nil {
		return Operand{}, Operand{}, err
	}
	regOp = regOperand(reg, size8)
	return regOp, rmOp, nil
}

// decodeOpcode decodes everything after the prefix loop: the opcode
// byte and any ModR/M byte, displacement, or immediate it implies.
func (c *CPU) decodeOpcode(opcode byte) (Instruction, error) {
	// Two-byte emulator trap: 0x0F 0x0F <function code> (spec §4.3
	// step 3, §4.6 "Emulator trap").
	if opcode == 0x0F {
		second, err := c.fetchU8()
		if err != nil {
			return Instruction{}, err
		}
		if second != 0x0F {
			return Instruction{}, ErrInvalidInstruction
		}
		fn, err := c.fetchU8()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Trap, TrapFunc: fn}, nil
	}

	// Regular ALU block: ADD/OR/ADC/SBB/AND/SUB/XOR/CMP, opcodes
	// 0x00-0x3D, low 3 bits select the sub-form.
	if opcode < 0x40 && opcode&0x07 <= 5 {
		row := opcode >> 3
		kind := aluKindByRow[row]
		form := opcode & 0x07
		return c.decodeALUForm(kind, form)
	}

	switch {
	case opcode >= 0x40 && opcode <= 0x47: // INC reg16
		return Instruction{Kind: Inc, Arg1: Operand{Kind: OpReg16, Reg16: register.Reg16(opcode - 0x40)}}, nil
	case opcode >= 0x48 && opcode <= 0x4F: // DEC reg16
		return Instruction{Kind: Dec, Arg1: Operand{Kind: OpReg16, Reg16: register.Reg16(opcode - 0x48)}}, nil
	case opcode >= 0x50 && opcode <= 0x57: // PUSH reg16
		return Instruction{Kind: Push, Arg1: Operand{Kind: OpReg16, Reg16: register.Reg16(opcode - 0x50)}}, nil
	case opcode >= 0x58 && opcode <= 0x5F: // POP reg16
		return Instruction{Kind: Pop, Arg1: Operand{Kind: OpReg16, Reg16: register.Reg16(opcode - 0x58)}}, nil
	case opcode >= 0x70 && opcode <= 0x7F: // Jcc rel8
		rel, err := c.fetchU8()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Jcc, Cond: conditionByRow[opcode-0x70], Arg1: Operand{Kind: OpConst, Const: int32(int8(rel))}}, nil
	case opcode >= 0x80 && opcode <= 0x83:
		return c.decodeGroup1(opcode)
	case opcode >= 0x91 && opcode <= 0x97: // XCHG AX, reg16
		return Instruction{Kind: Xchg, Arg1: Operand{Kind: OpReg16, Reg16: register.AX}, Arg2: Operand{Kind: OpReg16, Reg16: register.Reg16(opcode - 0x90)}}, nil
	case opcode >= 0xB0 && opcode <= 0xB7: // MOV reg8, imm8
		imm, err := c.fetchU8()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Mov, Arg1: Operand{Kind: OpReg8, Reg8: register.Reg8(opcode - 0xB0)}, Arg2: Operand{Kind: OpConst, Const: int32(imm)}}, nil
	case opcode >= 0xB8 && opcode <= 0xBF: // MOV reg16, imm16
		imm, err := c.fetchU16()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Mov, Arg1: Operand{Kind: OpReg16, Reg16: register.Reg16(opcode - 0xB8)}, Arg2: Operand{Kind: OpConst, Const: int32(imm)}}, nil
	case opcode >= 0xC0 && opcode <= 0xC1: // Group 2, count = imm8
		return c.decodeGroup2(opcode, shiftCountImm8)
	case opcode >= 0xD0 && opcode <= 0xD3: // Group 2, count = 1 or CL
		mode := shiftCountOne
		if opcode >= 0xD2 {
			mode = shiftCountCL
		}
		return c.decodeGroup2(opcode, mode)
	case opcode == 0xE0: // LOOPNZ
		rel, err := c.fetchU8()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Loopnz, Arg1: Operand{Kind: OpConst, Const: int32(int8(rel))}}, nil
	case opcode == 0xE1: // LOOPZ
		rel, err := c.fetchU8()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Loopz, Arg1: Operand{Kind: OpConst, Const: int32(int8(rel))}}, nil
	case opcode == 0xE2: // LOOP
		rel, err := c.fetchU8()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Loop, Arg1: Operand{Kind: OpConst, Const: int32(int8(rel))}}, nil
	case opcode == 0xE3: // JCXZ
		rel, err := c.fetchU8()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Jcxz, Arg1: Operand{Kind: OpConst, Const: int32(int8(rel))}}, nil
	case opcode == 0xE4: // IN AL, imm8
		p, err := c.fetchU8()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: In, Size8: true, Arg1: Operand{Kind: OpReg8, Reg8: register.AL}, Arg2: Operand{Kind: OpConst, Const: int32(p)}}, nil
	case opcode == 0xE5: // IN AX, imm8
		p, err := c.fetchU8()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: In, Arg1: Operand{Kind: OpReg16, Reg16: register.AX}, Arg2: Operand{Kind: OpConst, Const: int32(p)}}, nil
	case opcode == 0xE6: // OUT imm8, AL
		p, err := c.fetchU8()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Out, Size8: true, Arg1: Operand{Kind: OpConst, Const: int32(p)}, Arg2: Operand{Kind: OpReg8, Reg8: register.AL}}, nil
	case opcode == 0xE7: // OUT imm8, AX
		p, err := c.fetchU8()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Out, Arg1: Operand{Kind: OpConst, Const: int32(p)}, Arg2: Operand{Kind: OpReg16, Reg16: register.AX}}, nil
	case opcode == 0xEC: // IN AL, DX
		return Instruction{Kind: In, Size8: true, Arg1: Operand{Kind: OpReg8, Reg8: register.AL}, Arg2: Operand{Kind: OpReg16, Reg16: register.DX}}, nil
	case opcode == 0xED: // IN AX, DX
		return Instruction{Kind: In, Arg1: Operand{Kind: OpReg16, Reg16: register.AX}, Arg2: Operand{Kind: OpReg16, Reg16: register.DX}}, nil
	case opcode == 0xEE: // OUT DX, AL
		return Instruction{Kind: Out, Size8: true, Arg1: Operand{Kind: OpReg16, Reg16: register.DX}, Arg2: Operand{Kind: OpReg8, Reg8: register.AL}}, nil
	case opcode == 0xEF: // OUT DX, AX
		return Instruction{Kind: Out, Arg1: Operand{Kind: OpReg16, Reg16: register.DX}, Arg2: Operand{Kind: OpReg16, Reg16: register.AX}}, nil
	case opcode == 0xF6 || opcode == 0xF7:
		return c.decodeGroup3(opcode)
	case opcode == 0xFE:
		return c.decodeGroup4()
	case opcode == 0xFF:
		return c.decodeGroup5()
	case opcode >= 0xF8 && opcode <= 0xFD:
		return decodeFlagInsn(opcode), nil
	}

	switch opcode {
	case 0x06:
		return Instruction{Kind: Push, Arg1: Operand{Kind: OpReg16, Reg16: register.ES}}, nil
	case 0x07:
		return Instruction{Kind: Pop, Arg1: Operand{Kind: OpReg16, Reg16: register.ES}}, nil
	case 0x0E:
		return Instruction{Kind: Push, Arg1: Operand{Kind: OpReg16, Reg16: register.CS}}, nil
	case 0x0F:
		return Instruction{}, ErrInvalidInstruction // handled above; unreachable
	case 0x16:
		return Instruction{Kind: Push, Arg1: Operand{Kind: OpReg16, Reg16: register.SS}}, nil
	case 0x17:
		return Instruction{Kind: Pop, Arg1: Operand{Kind: OpReg16, Reg16: register.SS}}, nil
	case 0x1E:
		return Instruction{Kind: Push, Arg1: Operand{Kind: OpReg16, Reg16: register.DS}}, nil
	case 0x1F:
		return Instruction{Kind: Pop, Arg1: Operand{Kind: OpReg16, Reg16: register.DS}}, nil
	case 0x27:
		return Instruction{Kind: Daa}, nil
	case 0x2F:
		return Instruction{Kind: Das}, nil
	case 0x37:
		return Instruction{Kind: Aaa}, nil
	case 0x3F:
		return Instruction{Kind: Aas}, nil
	case 0x84: // TEST r/m8, r8
		reg, rm, err := c.decodeModRMPair(true)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Test, Size8: true, Arg1: rm, Arg2: reg}, nil
	case 0x85: // TEST r/m16, r16
		reg, rm, err := c.decodeModRMPair(false)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Test, Arg1: rm, Arg2: reg}, nil
	case 0x86: // XCHG r/m8, r8
		reg, rm, err := c.decodeModRMPair(true)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Xchg, Size8: true, Arg1: rm, Arg2: reg}, nil
	case 0x87: // XCHG r/m16, r16
		reg, rm, err := c.decodeModRMPair(false)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Xchg, Arg1: rm, Arg2: reg}, nil
	case 0x88: // MOV r/m8, r8
		reg, rm, err := c.decodeModRMPair(true)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Mov, Size8: true, Arg1: rm, Arg2: reg}, nil
	case 0x89: // MOV r/m16, r16
		reg, rm, err := c.decodeModRMPair(false)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Mov, Arg1: rm, Arg2: reg}, nil
	case 0x8A: // MOV r8, r/m8
		reg, rm, err := c.decodeModRMPair(true)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Mov, Size8: true, Arg1: reg, Arg2: rm}, nil
	case 0x8B: // MOV r16, r/m16
		reg, rm, err := c.decodeModRMPair(false)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Mov, Arg1: reg, Arg2: rm}, nil
	case 0x8C: // MOV r/m16, Sreg
		mod, seg, rm, err := c.fetchModRM()
		if err != nil {
			return Instruction{}, err
		}
		rmOp, err := c.decodeRM(mod, rm, false)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Mov, Arg1: rmOp, Arg2: Operand{Kind: OpReg16, Reg16: segRegByField(seg & 0x3)}}, nil
	case 0x8D: // LEA r16, m
		mod, reg, rm, err := c.fetchModRM()
		if err != nil {
			return Instruction{}, err
		}
		rmOp, err := c.decodeRM(mod, rm, false)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Lea, Arg1: Operand{Kind: OpReg16, Reg16: register.Reg16(reg)}, Arg2: rmOp}, nil
	case 0x8E: // MOV Sreg, r/m16
		mod, seg, rm, err := c.fetchModRM()
		if err != nil {
			return Instruction{}, err
		}
		rmOp, err := c.decodeRM(mod, rm, false)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Mov, Arg1: Operand{Kind: OpReg16, Reg16: segRegByField(seg & 0x3)}, Arg2: rmOp}, nil
	case 0x90:
		return Instruction{Kind: Nop}, nil
	case 0x98:
		return Instruction{Kind: Cbw}, nil
	case 0x99:
		return Instruction{Kind: Cwd}, nil
	case 0x9A: // CALL far ptr16:16
		off, err := c.fetchU16()
		if err != nil {
			return Instruction{}, err
		}
		seg, err := c.fetchU16()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: CallFarImm, Arg1: Operand{Kind: OpFarPtr, FarOffset: off, FarSegment: seg}}, nil
	case 0x9B:
		return Instruction{}, ErrUnsupported // WAIT: x87 synchronization, out of scope
	case 0x9C:
		return Instruction{Kind: Pushf}, nil
	case 0x9D:
		return Instruction{Kind: Popf}, nil
	case 0x9E:
		return Instruction{Kind: Sahf}, nil
	case 0x9F:
		return Instruction{Kind: Lahf}, nil
	case 0xA0: // MOV AL, moffs8
		off, err := c.fetchU16()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Mov, Size8: true, Arg1: Operand{Kind: OpReg8, Reg8: register.AL}, Arg2: Operand{Kind: OpMem, Offset: off}}, nil
	case 0xA1: // MOV AX, moffs16
		off, err := c.fetchU16()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Mov, Arg1: Operand{Kind: OpReg16, Reg16: register.AX}, Arg2: Operand{Kind: OpMem, Offset: off}}, nil
	case 0xA2: // MOV moffs8, AL
		off, err := c.fetchU16()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Mov, Size8: true, Arg1: Operand{Kind: OpMem, Offset: off}, Arg2: Operand{Kind: OpReg8, Reg8: register.AL}}, nil
	case 0xA3: // MOV moffs16, AX
		off, err := c.fetchU16()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Mov, Arg1: Operand{Kind: OpMem, Offset: off}, Arg2: Operand{Kind: OpReg16, Reg16: register.AX}}, nil
	case 0xA4:
		return Instruction{Kind: Movs, Size8: true}, nil
	case 0xA5:
		return Instruction{Kind: Movs}, nil
	case 0xA6:
		return Instruction{Kind: Cmps, Size8: true}, nil
	case 0xA7:
		return Instruction{Kind: Cmps}, nil
	case 0xA8: // TEST AL, imm8
		imm, err := c.fetchU8()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Test, Size8: true, Arg1: Operand{Kind: OpReg8, Reg8: register.AL}, Arg2: Operand{Kind: OpConst, Const: int32(imm)}}, nil
	case 0xA9: // TEST AX, imm16
		imm, err := c.fetchU16()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Test, Arg1: Operand{Kind: OpReg16, Reg16: register.AX}, Arg2: Operand{Kind: OpConst, Const: int32(imm)}}, nil
	case 0xAA:
		return Instruction{Kind: Stos, Size8: true}, nil
	case 0xAB:
		return Instruction{Kind: Stos}, nil
	case 0xAC:
		return Instruction{Kind: Lods, Size8: true}, nil
	case 0xAD:
		return Instruction{Kind: Lods}, nil
	case 0xAE:
		return Instruction{Kind: Scas, Size8: true}, nil
	case 0xAF:
		return Instruction{Kind: Scas}, nil
	case 0xC2: // RET imm16
		imm, err := c.fetchU16()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Ret, Arg1: Operand{Kind: OpConst, Const: int32(imm)}}, nil
	case 0xC3:
		return Instruction{Kind: Ret}, nil
	case 0xC4: // LES r16, m
		mod, reg, rm, err := c.fetchModRM()
		if err != nil {
			return Instruction{}, err
		}
		rmOp, err := c.decodeRM(mod, rm, false)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Les, Arg1: Operand{Kind: OpReg16, Reg16: register.Reg16(reg)}, Arg2: rmOp}, nil
	case 0xC5: // LDS r16, m
		mod, reg, rm, err := c.fetchModRM()
		if err != nil {
			return Instruction{}, err
		}
		rmOp, err := c.decodeRM(mod, rm, false)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Lds, Arg1: Operand{Kind: OpReg16, Reg16: register.Reg16(reg)}, Arg2: rmOp}, nil
	case 0xC6: // MOV r/m8, imm8
		mod, _, rm, err := c.fetchModRM()
		if err != nil {
			return Instruction{}, err
		}
		rmOp, err := c.decodeRM(mod, rm, true)
		if err != nil {
			return Instruction{}, err
		}
		imm, err := c.fetchU8()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Mov, Size8: true, Arg1: rmOp, Arg2: Operand{Kind: OpConst, Const: int32(imm)}}, nil
	case 0xC7: // MOV r/m16, imm16
		mod, _, rm, err := c.fetchModRM()
		if err != nil {
			return Instruction{}, err
		}
		rmOp, err := c.decodeRM(mod, rm, false)
		if err != nil {
			return Instruction{}, err
		}
		imm, err := c.fetchU16()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Mov, Arg1: rmOp, Arg2: Operand{Kind: OpConst, Const: int32(imm)}}, nil
	case 0xCA: // RETF imm16
		imm, err := c.fetchU16()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: RetFar, Arg1: Operand{Kind: OpConst, Const: int32(imm)}}, nil
	case 0xCB:
		return Instruction{Kind: RetFar}, nil
	case 0xCC: // INT 3
		return Instruction{Kind: Int, Arg1: Operand{Kind: OpConst, Const: 3}}, nil
	case 0xCD: // INT imm8
		imm, err := c.fetchU8()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Int, Arg1: Operand{Kind: OpConst, Const: int32(imm)}}, nil
	case 0xCE:
		return Instruction{Kind: Into}, nil
	case 0xCF:
		return Instruction{Kind: Iret}, nil
	case 0xD4: // AAM
		base, err := c.fetchU8()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Aam, Arg1: Operand{Kind: OpConst, Const: int32(base)}}, nil
	case 0xD5: // AAD
		base, err := c.fetchU8()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: Aad, Arg1: Operand{Kind: OpConst, Const: int32(base)}}, nil
	case 0xD7:
		return Instruction{Kind: Xlat}, nil
	case 0xE8: // CALL rel16
		rel, err := c.fetchU16()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: CallNearRel, Arg1: Operand{Kind: OpConst, Const: int32(int16(rel))}}, nil
	case 0xE9: // JMP rel16
		rel, err := c.fetchU16()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: JmpNearRel, Arg1: Operand{Kind: OpConst, Const: int32(int16(rel))}}, nil
	case 0xEA: // JMP far ptr16:16
		off, err := c.fetchU16()
		if err != nil {
			return Instruction{}, err
		}
		seg, err := c.fetchU16()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: JmpFarImm, Arg1: Operand{Kind: OpFarPtr, FarOffset: off, FarSegment: seg}}, nil
	case 0xEB: // JMP rel8
		rel, err := c.fetchU8()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: JmpNearRel, Arg1: Operand{Kind: OpConst, Const: int32(int8(rel))}}, nil
	case 0xF4:
		return Instruction{Kind: Hlt}, nil
	case 0xF5:
		return Instruction{Kind: Cmc}, nil
	}

	return Instruction{}, ErrInvalidInstruction
}

func decodeFlagInsn(opcode byte) Instruction {
	switch opcode {
	case 0xF8:
		return Instruction{Kind: Clc}
	case 0xF9:
		return Instruction{Kind: Stc}
	case 0xFA:
		return Instruction{Kind: Cli}
	case 0xFB:
		return Instruction{Kind: Sti}
	case 0xFC:
		return Instruction{Kind: Cld}
	default: // 0xFD
		return Instruction{Kind: Std}
	}
}

// decodeALUForm decodes one of the 6 sub-forms shared by every
// ADD/OR/ADC/SBB/AND/SUB/XOR/CMP opcode row.
func (c *CPU) decodeALUForm(kind Kind, form byte) (Instruction, error) {
	switch form {
	case 0: // r/m8, r8
		reg, rm, err := c.decodeModRMPair(true)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: kind, Size8: true, Arg1: rm, Arg2: reg}, nil
	case 1: // r/m16, r16
		reg, rm, err := c.decodeModRMPair(false)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: kind, Arg1: rm, Arg2: reg}, nil
	case 2: // r8, r/m8
		reg, rm, err := c.decodeModRMPair(true)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: kind, Size8: true, Arg1: reg, Arg2: rm}, nil
	case 3: // r16, r/m16
		reg, rm, err := c.decodeModRMPair(false)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: kind, Arg1: reg, Arg2: rm}, nil
	case 4: // AL, imm8
		imm, err := c.fetchU8()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: kind, Size8: true, Arg1: Operand{Kind: OpReg8, Reg8: register.AL}, Arg2: Operand{Kind: OpConst, Const: int32(imm)}}, nil
	default: // 5: AX, imm16
		imm, err := c.fetchU16()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Kind: kind, Arg1: Operand{Kind: OpReg16, Reg16: register.AX}, Arg2: Operand{Kind: OpConst, Const: int32(imm)}}, nil
	}
}

var group1Kind = [8]Kind{Add, Or, Adc, Sbb, And, Sub, Xor, Cmp}

// decodeGroup1 handles 0x80-0x83: Group 1 ALU ops with an immediate
// second operand, the concrete operation chosen by ModR/M's reg
// field (spec §4.3 step 5).
func (c *CPU) decodeGroup1(opcode byte) (Instruction, error) {
	size8 := opcode == 0x80 || opcode == 0x82
	signExtend := opcode == 0x83

	mod, reg, rm, err := c.fetchModRM()
	if err != nil {
		return Instruction{}, err
	}
	rmOp, err := c.decodeRM(mod, rm, size8)
	if err != nil {
		return Instruction{}, err
	}

	var imm int32
	if signExtend {
		b, err := c.fetchU8()
		if err != nil {
			return Instruction{}, err
		}
		imm = int32(int8(b))
	} else if size8 {
		b, err := c.fetchU8()
		if err != nil {
			return Instruction{}, err
		}
		imm = int32(b)
	} else {
		w, err := c.fetchU16()
		if err != nil {
			return Instruction{}, err
		}
		imm = int32(w)
	}

	return Instruction{
		Kind:       group1Kind[reg],
		Size8:      size8,
		SignExtend: signExtend,
		Arg1:       rmOp,
		Arg2:       Operand{Kind: OpConst, Const: imm},
	}, nil
}

type shiftCountMode int

const (
	shiftCountOne shiftCountMode = iota
	shiftCountCL
	shiftCountImm8
)

var group2Kind = [8]Kind{Rol, Ror, Rcl, Rcr, Shl, Shr, Shl, Sar}

// decodeGroup2 handles 0xC0/0xC1/0xD0-0xD3: Group 2 shift/rotate ops,
// the concrete operation chosen by ModR/M's reg field.
func (c *CPU) decodeGroup2(opcode byte, mode shiftCountMode) (Instruction, error) {
	size8 := opcode&0x01 == 0

	mod, reg, rm, err := c.fetchModRM()
	if err != nil {
		return Instruction{}, err
	}
	rmOp, err := c.decodeRM(mod, rm, size8)
	if err != nil {
		return Instruction{}, err
	}

	var count Operand
	switch mode {
	case shiftCountOne:
		count = Operand{Kind: OpConst, Const: 1}
	case shiftCountCL:
		count = Operand{Kind: OpReg8, Reg8: register.CL}
	case shiftCountImm8:
		b, err := c.fetchU8()
		if err != nil {
			return Instruction{}, err
		}
		count = Operand{Kind: OpConst, Const: int32(b)}
	}

	return Instruction{Kind: group2Kind[reg], Size8: size8, Arg1: rmOp, Arg2: count}, nil
}

// decodeGroup3 handles 0xF6/0xF7: TEST/NOT/NEG/MUL/IMUL/DIV/IDIV,
// where reg==0 (and the rarely used alias reg==1) repurposes the
// second argument as an immediate (spec §4.3 step 5).
func (c *CPU) decodeGroup3(opcode byte) (Instruction, error) {
	size8 := opcode == 0xF6

	mod, reg, rm, err := c.fetchModRM()
	if err != nil {
		return Instruction{}, err
	}
	rmOp, err := c.decodeRM(mod, rm, size8)
	if err != nil {
		return Instruction{}, err
	}

	if reg == 0 || reg == 1 {
		var imm int32
		if size8 {
			b, err := c.fetchU8()
			if err != nil {
				return Instruction{}, err
			}
			imm = int32(b)
		} else {
			w, err := c.fetchU16()
			if err != nil {
				return Instruction{}, err
			}
			imm = int32(w)
		}
		return Instruction{Kind: Test, Size8: size8, Arg1: rmOp, Arg2: Operand{Kind: OpConst, Const: imm}}, nil
	}

	kinds := [8]Kind{Test, Test, Not, Neg, Mul, Imul, Div, Idiv}
	return Instruction{Kind: kinds[reg], Size8: size8, Arg1: rmOp}, nil
}

// decodeGroup4 handles 0xFE: INC/DEC r/m8.
func (c *CPU) decodeGroup4() (Instruction, error) {
	mod, reg, rm, err := c.fetchModRM()
	if err != nil {
		return Instruction{}, err
	}
	rmOp, err := c.decodeRM(mod, rm, true)
	if err != nil {
		return Instruction{}, err
	}
	if reg == 0 {
		return Instruction{Kind: Inc, Size8: true, Arg1: rmOp}, nil
	}
	if reg == 1 {
		return Instruction{Kind: Dec, Size8: true, Arg1: rmOp}, nil
	}
	return Instruction{}, ErrInvalidInstruction
}

// decodeGroup5 handles 0xFF: INC/DEC/CALL/JMP/PUSH r/m16. reg==3 and
// reg==5 (far call/jump through memory) force the operand to be read
// as a far memory pointer rather than a plain word (spec §4.3 step 5).
func (c *CPU) decodeGroup5() (Instruction, error) {
	mod, reg, rm, err := c.fetchModRM()
	if err != nil {
		return Instruction{}, err
	}
	rmOp, err := c.decodeRM(mod, rm, false)
	if err != nil {
		return Instruction{}, err
	}
	switch reg {
	case 0:
		return Instruction{Kind: Inc, Arg1: rmOp}, nil
	case 1:
		return Instruction{Kind: Dec, Arg1: rmOp}, nil
	case 2:
		return Instruction{Kind: CallNearAbs, Arg1: rmOp}, nil
	case 3:
		return Instruction{Kind: CallFarMem, Arg1: rmOp}, nil
	case 4:
		return Instruction{Kind: JmpNearAbs, Arg1: rmOp}, nil
	case 5:
		return Instruction{Kind: JmpFarMem, Arg1: rmOp}, nil
	case 6:
		return Instruction{Kind: Push, Arg1: rmOp}, nil
	default:
		return Instruction{}, ErrInvalidInstruction
	}
}
