package asm

type (
	OperandKind uint8

	// Policy constrains where the register allocator may place an
	// unallocated operand.
	Policy uint8

	Operand struct {
		Kind   OperandKind
		Policy Policy

		VReg int

		// Reg is the fixed register code, valid with PolicyFixed.
		Reg int

		Imm int64

		// Reloc marks an immediate that needs a relocation entry,
		// such as a code object call target.
		Reloc bool

		// Block is the target block rpo for label operands.
		Block int
	}
)

const (
	OperandInvalid OperandKind = iota
	OperandUnallocated
	OperandImmediate
	OperandConstant
	OperandStackSlot
	OperandLabel
)

const (
	PolicyAny Policy = iota
	PolicyRegister
	PolicyFixed
	PolicyUniqueRegister
	PolicySameAsInput
	PolicyFixedSlot
)

func Unallocated(vreg int, p Policy) Operand {
	return Operand{Kind: OperandUnallocated, Policy: p, VReg: vreg}
}

func Fixed(vreg, reg int) Operand {
	return Operand{Kind: OperandUnallocated, Policy: PolicyFixed, VReg: vreg, Reg: reg}
}

func FixedSlot(vreg, slot int) Operand {
	return Operand{Kind: OperandUnallocated, Policy: PolicyFixedSlot, VReg: vreg, Imm: int64(slot)}
}

func Immediate(v int64) Operand {
	return Operand{Kind: OperandImmediate, Imm: v}
}

func Constant(v int64, reloc bool) Operand {
	return Operand{Kind: OperandConstant, Imm: v, Reloc: reloc}
}

func StackSlot(slot int) Operand {
	return Operand{Kind: OperandStackSlot, Imm: int64(slot)}
}

func Label(rpo int) Operand {
	return Operand{Kind: OperandLabel, Block: rpo}
}

func (o Operand) IsUnallocated() bool { return o.Kind == OperandUnallocated }
func (o Operand) IsImmediate() bool   { return o.Kind == OperandImmediate }
func (o Operand) IsLabel() bool       { return o.Kind == OperandLabel }
