package cpu

// Kind identifies the operation a decoded instruction performs. The
// dispatcher is a total function over this closed set (spec §4.6);
// Invalid traps as ErrInvalidInstruction.
type Kind int

const (
	Invalid Kind = iota
	Unsupported

	Mov
	Push
	Pop
	Xchg
	Lea
	Lds
	Les

	Add
	Adc
	Sub
	Sbb
	Cmp
	And
	Or
	Xor
	Test

	Inc
	Dec
	Not
	Neg

	Mul
	Imul
	Div
	Idiv

	Shl
	Shr
	Sar
	Rol
	Ror
	Rcl
	Rcr

	Daa
	Das
	Aaa
	Aas
	Aam
	Aad
	Cbw
	Cwd
	Xlat

	JmpNearRel
	JmpNearAbs
	JmpFarImm
	JmpFarMem
	CallNearRel
	CallNearAbs
	CallFarImm
	CallFarMem
	Ret
	RetFar

	Jcc
	Jcxz
	Loop
	Loopz
	Loopnz

	Movs
	Lods
	Stos
	Cmps
	Scas

	Int
	Into
	Iret

	Clc
	Stc
	Cmc
	Cli
	Sti
	Cld
	Std
	Sahf
	Lahf
	Pushf
	Popf

	In
	Out

	Hlt
	Nop

	Trap
)

// ConditionCode names which flag predicate a Jcc instruction tests.
type ConditionCode int

const (
	CondO ConditionCode = iota
	CondNO
	CondB
	CondNB
	CondZ
	CondNZ
	CondBE
	CondNBE
	CondS
	CondNS
	CondP
	CondNP
	CondL
	CondNL
	CondLE
	CondNLE
)
