package isel

import (
	"github.com/rivlang/riv/compiler/abi"
	"github.com/rivlang/riv/compiler/asm"
	"github.com/rivlang/riv/compiler/ir"
)

// Operand constructors. Define* allocate the output side and mark the node
// defined, Use* mark the node used so the backward walk will visit it.

func (s *Selector) vregOf(n ir.Node) int {
	if s.vreg[n] == -1 {
		s.vreg[n] = s.seq.NextVReg()
	}

	return s.vreg[n]
}

func (s *Selector) DefineAsRegister(n ir.Node) asm.Operand {
	s.MarkAsDefined(n)

	return asm.Unallocated(s.vregOf(n), asm.PolicyRegister)
}

func (s *Selector) DefineSameAsInput(n ir.Node) asm.Operand {
	s.MarkAsDefined(n)

	return asm.Unallocated(s.vregOf(n), asm.PolicySameAsInput)
}

func (s *Selector) DefineAsFixed(n ir.Node, reg int) asm.Operand {
	s.MarkAsDefined(n)

	return asm.Fixed(s.vregOf(n), reg)
}

func (s *Selector) DefineAsLocation(n ir.Node, loc abi.Location) asm.Operand {
	if loc.OnStack {
		s.MarkAsDefined(n)

		return asm.FixedSlot(s.vregOf(n), loc.Slot)
	}

	return s.DefineAsFixed(n, loc.Reg)
}

func (s *Selector) Use(n ir.Node) asm.Operand {
	s.MarkAsUsed(n)

	return asm.Unallocated(s.useVReg(n), asm.PolicyAny)
}

func (s *Selector) UseRegister(n ir.Node) asm.Operand {
	s.MarkAsUsed(n)

	return asm.Unallocated(s.useVReg(n), asm.PolicyRegister)
}

func (s *Selector) UseUniqueRegister(n ir.Node) asm.Operand {
	s.MarkAsUsed(n)

	return asm.Unallocated(s.useVReg(n), asm.PolicyUniqueRegister)
}

func (s *Selector) UseFixed(n ir.Node, reg int) asm.Operand {
	s.MarkAsUsed(n)

	return asm.Fixed(s.useVReg(n), reg)
}

func (s *Selector) UseLocation(n ir.Node, loc abi.Location) asm.Operand {
	if loc.OnStack {
		s.MarkAsUsed(n)

		return asm.FixedSlot(s.useVReg(n), loc.Slot)
	}

	return s.UseFixed(n, loc.Reg)
}

// UseImmediate folds a constant into the instruction. The constant node is
// deliberately not marked used: nothing consumes its register.
func (s *Selector) UseImmediate(n ir.Node) asm.Operand {
	c := s.g.Op(n).(ir.Const)

	return asm.Immediate(c.Int)
}

func (s *Selector) UseLabel(rpo int) asm.Operand {
	return asm.Label(rpo)
}

func (s *Selector) TempRegister() asm.Operand {
	return asm.Unallocated(s.seq.NextVReg(), asm.PolicyRegister)
}

func (s *Selector) TempImmediate(v int64) asm.Operand {
	return asm.Immediate(v)
}

func (s *Selector) useVReg(n ir.Node) int {
	return s.seq.Resolve(s.vregOf(n))
}

// useOperand picks an immediate form when the node is a small constant,
// a register otherwise.
func (s *Selector) useOperand(n ir.Node) asm.Operand {
	if v, ok := s.immValue(n); ok {
		return asm.Immediate(v)
	}

	return s.UseRegister(n)
}

func (s *Selector) immValue(n ir.Node) (v int64, ok bool) {
	c, ok := s.g.Op(n).(ir.Const)
	if !ok || c.Kind != ir.ConstInt || !canBeImmediate(c.Int) {
		return 0, false
	}

	return c.Int, true
}

// alu immediates are 12 bit unsigned
func canBeImmediate(v int64) bool {
	return v >= 0 && v < 1<<12
}

func (s *Selector) isZero(n ir.Node) bool {
	c, ok := s.g.Op(n).(ir.Const)

	return ok && c.Kind == ir.ConstInt && c.Int == 0
}
