package cpu

import "github.com/emu8086/emu8086/internal/register"

// OperandKind discriminates the operand union (spec §3 "Decoded
// instruction record").
type OperandKind int

const (
	OpNone OperandKind = iota
	OpReg16
	OpReg8
	OpConst
	OpMem    // direct word offset, e.g. OB/OW templates
	OpFarPtr // far pointer immediate: offset then segment (template A)
	OpDeref  // ModR/M-encoded memory operand: rm code + displacement
)

// rmKind names one of the 8 standard ModR/M addressing forms, used
// only when Operand.Kind == OpDeref.
type rmKind int

const (
	rmBXSI rmKind = iota
	rmBXDI
	rmBPSI
	rmBPDI
	rmSI
	rmDI
	rmBP
	rmBX
)

// Operand is a discriminated union: exactly one field group is
// meaningful, selected by Kind.
type Operand struct {
	Kind OperandKind

	Reg16 register.Reg16
	Reg8  register.Reg8

	Const int32

	Offset uint16 // OpMem: direct memory offset

	FarOffset  uint16 // OpFarPtr
	FarSegment uint16

	RM   rmKind // OpDeref
	Disp uint16 // OpDeref: displacement (mod=00,rm=6 is a special direct form, see decode)
}

// noSegOverride marks Instruction.SegOverride as "none selected";
// actual defaulting to DS/SS happens in the operand resolver.
const noSegOverride register.Reg16 = -1

// Instruction is the fully decoded instruction record the Decoder
// produces and the Dispatcher executes (spec §3, §4.3).
type Instruction struct {
	Kind Kind
	Cond ConditionCode // meaningful only when Kind == Jcc

	Size8      bool
	SignExtend bool
	HasRM      bool

	SegOverride register.Reg16 // noSegOverride if absent
	RepPrefix   byte           // 0, 0xF0 (LOCK), 0xF2 (REPNE), or 0xF3 (REP)

	Arg1 Operand
	Arg2 Operand

	// TrapFunc carries the function code byte for the Trap kind.
	TrapFunc byte
}
