// Package register implements the 8086 register file: the thirteen
// 16-bit general/segment/instruction registers, their AL/AH-style byte
// overlays, and the FLAGS word with its reserved and unimplemented
// bits masked off.
package register

import "github.com/emu8086/emu8086/internal/bits"

// Reg16 identifies one of the thirteen 16-bit registers.
type Reg16 int

const (
	AX Reg16 = iota
	CX
	DX
	BX
	SP
	BP
	SI
	DI
	ES
	CS
	SS
	DS
	IP
	numReg16
)

var reg16Names = [numReg16]string{
	AX: "AX", CX: "CX", DX: "DX", BX: "BX",
	SP: "SP", BP: "BP", SI: "SI", DI: "DI",
	ES: "ES", CS: "CS", SS: "SS", DS: "DS", IP: "IP",
}

func (r Reg16) String() string { return reg16Names[r] }

// Reg8 identifies one of the eight byte-register halves. Reg8 values
// other than AL/CL/DL/BL/AH/CH/DH/BH are not valid.
type Reg8 int

const (
	AL Reg8 = iota
	CL
	DL
	BL
	AH
	CH
	DH
	BH
	numReg8
)

var reg8Names = [numReg8]string{
	AL: "AL", CL: "CL", DL: "DL", BL: "BL",
	AH: "AH", CH: "CH", DH: "DH", BH: "BH",
}

func (r Reg8) String() string { return reg8Names[r] }

// owner16 reports which Reg16 a Reg8 half belongs to, and isHigh
// reports whether it addresses the high byte of that register.
func owner16(r Reg8) (Reg16, bool) {
	switch r {
	case AL:
		return AX, false
	case AH:
		return AX, true
	case CL:
		return CX, false
	case CH:
		return CX, true
	case DL:
		return DX, false
	case DH:
		return DX, true
	case BL:
		return BX, false
	case BH:
		return BX, true
	default:
		panic("register: invalid Reg8")
	}
}

// Flag bit positions within the FLAGS word, per the 8086 status
// register layout.
const (
	FlagCF = 0  // carry
	FlagPF = 2  // parity
	FlagAF = 4  // auxiliary carry
	FlagZF = 6  // zero
	FlagSF = 7  // sign
	FlagTF = 8  // trap
	FlagIF = 9  // interrupt enable
	FlagDF = 10 // direction
	FlagOF = 11 // overflow

	// flagsMask keeps only the bits the 8086 actually implements;
	// flagsReserved is bit 1, which always reads as set.
	flagsMask  = 1<<FlagCF | 1<<FlagPF | 1<<FlagAF | 1<<FlagZF | 1<<FlagSF |
		1<<FlagTF | 1<<FlagIF | 1<<FlagDF | 1<<FlagOF
	flagsReserved = 1 << 1
)

// File is the 8086 register file: thirteen 16-bit registers plus the
// FLAGS word.
type File struct {
	regs  [numReg16]uint16
	flags uint16
}

// Reset sets CS:IP to the power-on vector (0xF000:0xFFF0) and clears
// every other register and flag.
func (f *File) Reset() {
	*f = File{}
	f.regs[CS] = 0xF000
	f.regs[IP] = 0xFFF0
}

// Get16 reads a 16-bit register.
func (f *File) Get16(r Reg16) uint16 { return f.regs[r] }

// Set16 writes a 16-bit register.
func (f *File) Set16(r Reg16, v uint16) { f.regs[r] = v }

// Get8 reads a byte-register half, without disturbing its sibling.
func (f *File) Get8(r Reg8) byte {
	owner, high := owner16(r)
	v := f.regs[owner]
	if high {
		return byte(v >> 8)
	}
	return byte(v)
}

// Set8 writes a byte-register half, preserving the other half of the
// enclosing word register (spec invariant: byte writes never corrupt
// the untouched half).
func (f *File) Set8(r Reg8, v byte) {
	owner, high := owner16(r)
	old := f.regs[owner]
	if high {
		f.regs[owner] = (old & 0x00FF) | (uint16(v) << 8)
	} else {
		f.regs[owner] = (old & 0xFF00) | uint16(v)
	}
}

// Flags returns the FLAGS word. Bit 1 always reads as set, and every
// bit the 8086 doesn't implement always reads as zero.
func (f *File) Flags() uint16 {
	return (f.flags & flagsMask) | flagsReserved
}

// SetFlags writes the FLAGS word, silently discarding bits the 8086
// does not implement (POPF/IRET callers rely on this masking).
func (f *File) SetFlags(v uint16) {
	f.flags = v & flagsMask
}

func (f *File) flag(pos int) bool   { return bits.Bit(f.flags, pos) }
func (f *File) setFlag(pos int, on bool) { f.flags = bits.SetBit(f.flags, pos, on) }

func (f *File) CF() bool       { return f.flag(FlagCF) }
func (f *File) SetCF(v bool)   { f.setFlag(FlagCF, v) }
func (f *File) PF() bool       { return f.flag(FlagPF) }
func (f *File) SetPF(v bool)   { f.setFlag(FlagPF, v) }
func (f *File) AF() bool       { return f.flag(FlagAF) }
func (f *File) SetAF(v bool)   { f.setFlag(FlagAF, v) }
func (f *File) ZF() bool       { return f.flag(FlagZF) }
func (f *File) SetZF(v bool)   { f.setFlag(FlagZF, v) }
func (f *File) SF() bool       { return f.flag(FlagSF) }
func (f *File) SetSF(v bool)   { f.setFlag(FlagSF, v) }
func (f *File) TF() bool       { return f.flag(FlagTF) }
func (f *File) SetTF(v bool)   { f.setFlag(FlagTF, v) }
func (f *File) IF() bool       { return f.flag(FlagIF) }
func (f *File) SetIF(v bool)   { f.setFlag(FlagIF, v) }
func (f *File) DF() bool       { return f.flag(FlagDF) }
func (f *File) SetDF(v bool)   { f.setFlag(FlagDF, v) }
func (f *File) OF() bool       { return f.flag(FlagOF) }
func (f *File) SetOF(v bool)   { f.setFlag(FlagOF, v) }

// SetSZP sets SF/ZF/PF from a 16-bit result, interpreting the value as
// either an 8-bit or 16-bit quantity for the sign bit.
func (f *File) SetSZP(result uint16, size8 bool) {
	f.SetZF(result == 0)
	f.SetPF(bits.Parity8(byte(result)))
	if size8 {
		f.SetSF(result&0x80 != 0)
	} else {
		f.SetSF(result&0x8000 != 0)
	}
}
