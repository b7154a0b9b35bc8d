package cpu

import (
	"errors"

	"github.com/emu8086/emu8086/internal/register"
)

// errDivideFault signals a DIV/IDIV/AAM fault (divide by zero, or a
// quotient that doesn't fit the destination). It never escapes this
// package: dispatch converts it into a software interrupt 0, matching
// real 8086 behavior where a divide fault is not a host-visible error
// at all (spec §4.6, §7).
var errDivideFault = errors.New("cpu: divide fault")

func widthOf(size8 bool) (mask, sign uint32) {
	if size8 {
		return 0xFF, 0x80
	}
	return 0xFFFF, 0x8000
}

// doAdd computes a+b(+carry) masked to size8's width, setting
// CF/AF/OF/ZF/SF/PF (spec §4.5).
func (c *CPU) doAdd(aRaw, bRaw uint16, size8, withCarry bool) uint16 {
	mask, sign := widthOf(size8)
	a, b := uint32(aRaw)&mask, uint32(bRaw)&mask
	var carryIn uint32
	if withCarry && c.Regs.CF() {
		carryIn = 1
	}
	sum := a + b + carryIn
	result := sum & mask

	c.Regs.SetCF(sum&^mask != 0 || sum > mask)
	c.Regs.SetAF((a&0xF)+(b&0xF)+carryIn > 0xF)
	c.Regs.SetOF((a^result)&(b^result)&sign != 0)
	c.Regs.SetSZP(uint16(result), size8)
	return uint16(result)
}

// doSub computes a-b(-borrow) masked to size8's width, setting
// CF/AF/OF/ZF/SF/PF (spec §4.5). CMP uses the result only for flags.
func (c *CPU) doSub(aRaw, bRaw uint16, size8, withBorrow bool) uint16 {
	mask, sign := widthOf(size8)
	a, b := int64(uint32(aRaw)&mask), int64(uint32(bRaw)&mask)
	var borrowIn int64
	if withBorrow && c.Regs.CF() {
		borrowIn = 1
	}
	diff := a - b - borrowIn
	result := uint32(diff) & mask

	c.Regs.SetCF(diff < 0)
	c.Regs.SetAF((a&0xF)-(b&0xF)-borrowIn < 0)
	c.Regs.SetOF((uint32(a)^uint32(b))&(uint32(a)^result)&sign != 0)
	c.Regs.SetSZP(uint16(result), size8)
	return uint16(result)
}

// doLogic applies a bitwise op, clearing CF/OF/AF and setting SZP
// from the result (spec §4.5).
func (c *CPU) doLogic(a, b uint16, size8 bool, op func(uint16, uint16) uint16) uint16 {
	mask, _ := widthOf(size8)
	result := op(a, b) & uint16(mask)
	c.Regs.SetCF(false)
	c.Regs.SetOF(false)
	c.Regs.SetAF(false)
	c.Regs.SetSZP(result, size8)
	return result
}

// doInc/doDec behave like add/sub 1 but leave CF untouched (spec
// §4.5).
func (c *CPU) doInc(a uint16, size8 bool) uint16 {
	cf := c.Regs.CF()
	r := c.doAdd(a, 1, size8, false)
	c.Regs.SetCF(cf)
	return r
}

func (c *CPU) doDec(a uint16, size8 bool) uint16 {
	cf := c.Regs.CF()
	r := c.doSub(a, 1, size8, false)
	c.Regs.SetCF(cf)
	return r
}

func (c *CPU) doNot(a uint16, size8 bool) uint16 {
	mask, _ := widthOf(size8)
	return ^a & uint16(mask)
}

// doNeg is 0-a; doSub's CF formula already yields "set unless a==0".
func (c *CPU) doNeg(a uint16, size8 bool) uint16 {
	return c.doSub(0, a, size8, false)
}

// doMul performs an unsigned multiply, storing the full-width product
// into AX (byte form) or DX:AX (word form) and setting CF=OF to
// whether the upper half is nonzero (spec §4.5).
func (c *CPU) doMul(b uint16, size8 bool) {
	if size8 {
		al := uint16(c.Regs.Get8(register.AL))
		product := al * (b & 0xFF)
		c.Regs.Set16(register.AX, product)
		hiNonzero := product&0xFF00 != 0
		c.Regs.SetCF(hiNonzero)
		c.Regs.SetOF(hiNonzero)
		return
	}
	ax := uint32(c.Regs.Get16(register.AX))
	product := ax * uint32(b)
	c.Regs.Set16(register.AX, uint16(product))
	c.Regs.Set16(register.DX, uint16(product>>16))
	hiNonzero := product>>16 != 0
	c.Regs.SetCF(hiNonzero)
	c.Regs.SetOF(hiNonzero)
}

// doImul performs a signed multiply with the same storage rule as
// doMul; CF=OF when the upper half isn't the sign extension of the
// lower half.
func (c *CPU) doImul(b uint16, size8 bool) {
	if size8 {
		al := int32(int8(c.Regs.Get8(register.AL)))
		product := al * int32(int8(byte(b)))
		c.Regs.Set16(register.AX, uint16(int16(product)))
		extended := product == int32(int8(byte(product)))
		c.Regs.SetCF(!extended)
		c.Regs.SetOF(!extended)
		return
	}
	ax := int64(int16(c.Regs.Get16(register.AX)))
	product := ax * int64(int16(b))
	c.Regs.Set16(register.AX, uint16(product))
	c.Regs.Set16(register.DX, uint16(product>>16))
	extended := product == int64(int16(uint16(product)))
	c.Regs.SetCF(!extended)
	c.Regs.SetOF(!extended)
}

// doDiv performs an unsigned divide: AL=quot, AH=rem (byte form) or
// AX=quot, DX=rem (word form). Returns errDivideFault on divide by
// zero or quotient overflow (spec §4.5, §7).
func (c *CPU) doDiv(divisor uint16, size8 bool) error {
	if size8 {
		d := divisor & 0xFF
		if d == 0 {
			return errDivideFault
		}
		dividend := c.Regs.Get16(register.AX)
		q, r := dividend/d, dividend%d
		if q > 0xFF {
			return errDivideFault
		}
		c.Regs.Set8(register.AL, byte(q))
		c.Regs.Set8(register.AH, byte(r))
		return nil
	}
	if divisor == 0 {
		return errDivideFault
	}
	dividend := uint32(c.Regs.Get16(register.DX))<<16 | uint32(c.Regs.Get16(register.AX))
	q, r := dividend/uint32(divisor), dividend%uint32(divisor)
	if q > 0xFFFF {
		return errDivideFault
	}
	c.Regs.Set16(register.AX, uint16(q))
	c.Regs.Set16(register.DX, uint16(r))
	return nil
}

// doIdiv is doDiv's signed counterpart.
func (c *CPU) doIdiv(divisor uint16, size8 bool) error {
	if size8 {
		d := int32(int8(byte(divisor)))
		if d == 0 {
			return errDivideFault
		}
		dividend := int32(int16(c.Regs.Get16(register.AX)))
		q, r := dividend/d, dividend%d
		if q > 127 || q < -128 {
			return errDivideFault
		}
		c.Regs.Set8(register.AL, byte(int8(q)))
		c.Regs.Set8(register.AH, byte(int8(r)))
		return nil
	}
	d := int64(int16(divisor))
	if d == 0 {
		return errDivideFault
	}
	dividend := int64(int32(c.Regs.Get16(register.DX))<<16 | int32(c.Regs.Get16(register.AX)))
	q, r := dividend/d, dividend%d
	if q > 32767 || q < -32768 {
		return errDivideFault
	}
	c.Regs.Set16(register.AX, uint16(int16(q)))
	c.Regs.Set16(register.DX, uint16(int16(r)))
	return nil
}

func boolToU16(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}

// doShiftRotate applies one of SHL/SHR/SAR/ROL/ROR/RCL/RCR count
// times, one bit at a time, so multi-bit counts fall out of the same
// per-bit rule the 8086 uses (spec §4.5). OF is only meaningfully
// defined when count==1; it is left untouched otherwise.
func (c *CPU) doShiftRotate(kind Kind, a uint16, count byte, size8 bool) uint16 {
	mask32, sign32 := widthOf(size8)
	mask, sign := uint16(mask32), uint16(sign32)
	result := a & mask
	if count == 0 {
		return result
	}

	for i := byte(0); i < count; i++ {
		switch kind {
		case Shl:
			out := result&sign != 0
			result = (result << 1) & mask
			c.Regs.SetCF(out)
		case Shr:
			out := result&1 != 0
			result = result >> 1
			c.Regs.SetCF(out)
		case Sar:
			out := result&1 != 0
			msb := result & sign
			result = (result >> 1) | msb
			c.Regs.SetCF(out)
		case Rol:
			out := result&sign != 0
			result = ((result << 1) | boolToU16(out)) & mask
			c.Regs.SetCF(result&1 != 0)
		case Ror:
			out := result&1 != 0
			result = (result >> 1) | (boolToU16(out) * sign)
			c.Regs.SetCF(out)
		case Rcl:
			oldCF := c.Regs.CF()
			newCF := result&sign != 0
			result = ((result << 1) | boolToU16(oldCF)) & mask
			c.Regs.SetCF(newCF)
		case Rcr:
			oldCF := c.Regs.CF()
			newCF := result&1 != 0
			result = (result >> 1) | (boolToU16(oldCF) * sign)
			c.Regs.SetCF(newCF)
		}
	}

	if count == 1 {
		switch kind {
		case Shl, Rol, Rcl:
			c.Regs.SetOF((result&sign != 0) != c.Regs.CF())
		case Shr:
			c.Regs.SetOF(a&sign != 0)
		case Sar:
			c.Regs.SetOF(false)
		case Ror, Rcr:
			msb1 := result&sign != 0
			msb2 := (result<<1)&mask&sign != 0
			c.Regs.SetOF(msb1 != msb2)
		}
	}

	switch kind {
	case Shl, Shr, Sar:
		c.Regs.SetSZP(result, size8)
	}
	return result
}

// execDAA adjusts AL after a BCD addition (spec §4.5, §9 BCD group).
func (c *CPU) execDAA() {
	al := c.Regs.Get8(register.AL)
	oldAL, oldCF := al, c.Regs.CF()
	newCF := false

	if al&0x0F > 9 || c.Regs.AF() {
		newCF = oldCF || al > 0xFF-6
		al += 6
		c.Regs.SetAF(true)
	} else {
		c.Regs.SetAF(false)
	}
	if oldAL > 0x99 || oldCF {
		al += 0x60
		newCF = true
	}
	c.Regs.SetCF(newCF)
	c.Regs.Set8(register.AL, al)
	c.Regs.SetSZP(uint16(al), true)
}

// execDAS adjusts AL after a BCD subtraction.
func (c *CPU) execDAS() {
	al := c.Regs.Get8(register.AL)
	oldAL, oldCF := al, c.Regs.CF()
	newCF := false

	if al&0x0F > 9 || c.Regs.AF() {
		newCF = oldCF || al < 6
		al -= 6
		c.Regs.SetAF(true)
	} else {
		c.Regs.SetAF(false)
	}
	if oldAL > 0x99 || oldCF {
		al -= 0x60
		newCF = true
	}
	c.Regs.SetCF(newCF)
	c.Regs.Set8(register.AL, al)
	c.Regs.SetSZP(uint16(al), true)
}

// execAAA adjusts AL/AH after an unpacked BCD addition.
func (c *CPU) execAAA() {
	al, ah := c.Regs.Get8(register.AL), c.Regs.Get8(register.AH)
	if al&0x0F > 9 || c.Regs.AF() {
		al += 6
		ah += 1
		c.Regs.SetCF(true)
		c.Regs.SetAF(true)
	} else {
		c.Regs.SetCF(false)
		c.Regs.SetAF(false)
	}
	c.Regs.Set8(register.AL, al&0x0F)
	c.Regs.Set8(register.AH, ah)
}

// execAAS adjusts AL/AH after an unpacked BCD subtraction.
func (c *CPU) execAAS() {
	al, ah := c.Regs.Get8(register.AL), c.Regs.Get8(register.AH)
	if al&0x0F > 9 || c.Regs.AF() {
		al -= 6
		ah -= 1
		c.Regs.SetCF(true)
		c.Regs.SetAF(true)
	} else {
		c.Regs.SetCF(false)
		c.Regs.SetAF(false)
	}
	c.Regs.Set8(register.AL, al&0x0F)
	c.Regs.Set8(register.AH, ah)
}

// execAAM converts AL into unpacked BCD in AH:AL, dividing by base
// (normally 10). A zero base faults exactly like DIV (spec §9).
func (c *CPU) execAAM(base byte) error {
	if base == 0 {
		return errDivideFault
	}
	al := c.Regs.Get8(register.AL)
	ah := al / base
	al = al % base
	c.Regs.Set8(register.AH, ah)
	c.Regs.Set8(register.AL, al)
	c.Regs.SetSZP(uint16(al), true)
	return nil
}

// execAAD packs AH:AL (unpacked BCD) back into a binary AL before a
// divide, given the radix base (normally 10).
func (c *CPU) execAAD(base byte) {
	al, ah := c.Regs.Get8(register.AL), c.Regs.Get8(register.AH)
	result := ah*base + al
	c.Regs.Set8(register.AL, result)
	c.Regs.Set8(register.AH, 0)
	c.Regs.SetSZP(uint16(result), true)
}

func (c *CPU) execCBW() {
	al := c.Regs.Get8(register.AL)
	c.Regs.Set16(register.AX, uint16(int16(int8(al))))
}

func (c *CPU) execCWD() {
	ax := c.Regs.Get16(register.AX)
	if int16(ax) < 0 {
		c.Regs.Set16(register.DX, 0xFFFF)
	} else {
		c.Regs.Set16(register.DX, 0)
	}
}

func (c *CPU) execXlat() error {
	bx := c.Regs.Get16(register.BX)
	al := c.Regs.Get8(register.AL)
	seg := c.segOverride
	if seg == noSegOverride {
		seg = register.DS
	}
	addr := linear(c.Regs.Get16(seg), bx+uint16(al))
	v, err := c.Bus.ReadU8(addr)
	if err != nil {
		return err
	}
	c.Regs.Set8(register.AL, v)
	return nil
}
