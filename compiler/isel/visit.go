package isel

import (
	"encoding/binary"
	"math"

	"github.com/rivlang/riv/compiler/asm"
	"github.com/rivlang/riv/compiler/ir"
	"github.com/rivlang/riv/compiler/shuffle"
	"github.com/rivlang/riv/compiler/target"
)

func (s *Selector) visitNode(n ir.Node) (err error) {
	switch x := s.g.Op(n).(type) {
	case ir.Param:
		s.Emit(asm.MakeOpcode(asm.ArchNop), s.DefineAsLocation(n, s.lk.ParamLocation(x.Index)))
	case ir.Const:
		s.visitConst(n, x)
	case ir.Add:
		s.visitBinop(n, x.L, x.R, x.Rep, target.OpAdd32, target.OpAdd64, true)
	case ir.Sub:
		s.visitBinop(n, x.L, x.R, x.Rep, target.OpSub32, target.OpSub64, false)
	case ir.Mul:
		s.visitBinop(n, x.L, x.R, x.Rep, target.OpMul32, target.OpMul64, true)
	case ir.And:
		s.visitBinop(n, x.L, x.R, x.Rep, target.OpAnd32, target.OpAnd64, true)
	case ir.Or:
		s.visitBinop(n, x.L, x.R, x.Rep, target.OpOr32, target.OpOr64, true)
	case ir.Xor:
		s.visitBinop(n, x.L, x.R, x.Rep, target.OpXor32, target.OpXor64, true)
	case ir.Shl:
		s.visitBinop(n, x.L, x.R, x.Rep, target.OpShl32, target.OpShl64, false)
	case ir.Shr:
		s.visitBinop(n, x.L, x.R, x.Rep, target.OpShr32, target.OpShr64, false)
	case ir.Sar:
		s.visitBinop(n, x.L, x.R, x.Rep, target.OpSar32, target.OpSar64, false)
	case ir.FAdd:
		s.visitFloatBinop(n, x.L, x.R, target.OpFAdd64)
	case ir.FSub:
		s.visitFloatBinop(n, x.L, x.R, target.OpFSub64)
	case ir.FMul:
		s.visitFloatBinop(n, x.L, x.R, target.OpFMul64)
	case ir.FDiv:
		s.visitFloatBinop(n, x.L, x.R, target.OpFDiv64)
	case ir.Cmp:
		cont := ForSet(asm.CondNotEqual, n)
		s.emitCompare(n, x, &cont)
	case ir.ChangeUint32ToUint64:
		s.visitZeroExtend(n, x)
	case ir.TruncateWord64ToWord32:
		// free on this machine shape, reuse the register
		s.EmitIdentity(n, x.In)
	case ir.Load:
		s.visitLoad(n, x)
	case ir.Store:
		s.visitStore(x)
	case ir.Phi:
		s.visitPhi(n, x)
	case ir.Call:
		s.visitCall(n, x)
	case ir.TailCall:
		s.visitTailCall(x)
	case ir.Projection:
		// call returns are defined by the call itself
		if _, ok := s.g.Op(x.In).(ir.Call); !ok {
			panic(x)
		}
	case ir.Return:
		s.visitReturn(x)
	case ir.Goto:
		if x.Target != s.cur+1 {
			s.Emit(asm.MakeOpcode(asm.ArchJmp), asm.Operand{}, s.UseLabel(x.Target))
		}
	case ir.Branch:
		cont := ForHintedBranch(asm.CondNotEqual, x.True, x.False, x.Hint)
		s.visitCompareZero(n, x.Cond, &cont)
	case ir.Switch:
		return s.visitSwitch(n, x)
	case ir.DeoptimizeIf:
		cond := asm.CondNotEqual
		if x.Negated {
			cond = asm.CondEqual
		}

		cont := ForDeoptimize(cond, x.Reason, x.Feedback, x.FrameState)
		s.visitCompareZero(n, x.Cond, &cont)
	case ir.TrapIf:
		cond := asm.CondNotEqual
		if x.Negated {
			cond = asm.CondEqual
		}

		cont := ForTrap(cond, x.Trap)
		s.visitCompareZero(n, x.Cond, &cont)
	case ir.Select:
		cont := ForSelect(asm.CondNotEqual, n, x.T, x.F)
		s.visitCompareZero(n, x.Cond, &cont)
	case ir.FrameState:
		// consumed inline by deopts and calls
	case ir.Shuffle:
		return s.visitShuffle(n, x)
	case ir.StackSlot:
		s.Emit(asm.MakeOpcode(asm.ArchStackSlot), s.DefineAsRegister(n), asm.Immediate(int64(x.Size)))
	case ir.StackPointerGreaterThan:
		cont := ForSet(asm.CondUnsignedGreaterThan, n)
		s.EmitWithContinuation(asm.MakeOpcode(asm.ArchStackPointerGreaterThan), nil, []asm.Operand{s.UseRegister(x.Limit)}, &cont)
	default:
		panic(x)
	}

	return nil
}

// EmitWithContinuation emits op with the continuation encoded into the
// opcode word and the continuation's extra operands appended.
func (s *Selector) EmitWithContinuation(op asm.Opcode, outs, ins []asm.Operand, cont *Continuation) *asm.Instruction {
	op = cont.Encode(op)

	if cont.IsConditional() {
		cc := cont.Compares()
		ins = append(ins, asm.Immediate(int64(len(cc))))

		for _, c := range cc {
			conj := int64(0)
			if c.Conjunction {
				conj = 1
			}

			ins = append(ins, s.UseRegister(c.L), s.useOperand(c.R), asm.Immediate(int64(c.Cond)), asm.Immediate(conj))
		}
	}

	var fs *asm.FrameStateDescriptor

	switch cont.Mode() {
	case asm.FlagsBranch:
		ins = append(ins, s.UseLabel(cont.TrueBlock()), s.UseLabel(cont.FalseBlock()), asm.Immediate(int64(cont.Hint())))
	case asm.FlagsConditionalBranch:
		ins = append(ins, s.UseLabel(cont.TrueBlock()), s.UseLabel(cont.FalseBlock()))
	case asm.FlagsSet, asm.FlagsConditionalSet:
		outs = append(outs, s.DefineAsRegister(cont.Result()))
	case asm.FlagsSelect:
		outs = append(outs, s.DefineAsRegister(cont.Result()))
		ins = append(ins, s.Use(cont.TrueValue()), s.Use(cont.FalseValue()))
	case asm.FlagsDeoptimize:
		ins = append(ins, asm.Immediate(int64(cont.Reason())), asm.Immediate(int64(cont.Feedback().Vector)), asm.Immediate(int64(cont.Feedback().Slot)))

		var fsIns []asm.Operand
		fs, fsIns = s.frameStateInputs(cont.FrameState())
		ins = append(ins, fsIns...)
	case asm.FlagsTrap, asm.FlagsConditionalTrap:
		ins = append(ins, asm.Immediate(int64(cont.Trap())))
	case asm.FlagsNone:
	default:
		panic(cont.Mode())
	}

	i := s.emit(op, outs, ins, nil)

	if fs != nil {
		s.pend[len(s.pend)-1].fs = fs
	}

	return i
}

// visitCompareZero lowers "branch/deopt/trap/select on value != 0". It
// peels double negations, then tries to consume value's own flags instead
// of materializing it.
func (s *Selector) visitCompareZero(user, value ir.Node, cont *Continuation) {
	for {
		x, ok := s.g.Op(value).(ir.Cmp)
		if !ok || x.Kind != ir.Equal || !s.isZero(x.R) || !s.CanCover(user, value) {
			break
		}

		user, value = value, x.L
		cont.Negate()
	}

	switch x := s.g.Op(value).(type) {
	case ir.Cmp:
		if s.CanCover(user, value) {
			s.emitCompare(value, x, cont)
			return
		}
	case ir.And, ir.Or:
		if s.t.SupportsCmpChain() && s.tryCompareChain(user, value, cont) {
			return
		}
	case ir.Add:
		if s.tryFlagSettingAdd(user, value, x, cont) {
			return
		}
	case ir.StackPointerGreaterThan:
		if s.CanCover(user, value) {
			cont.OverwriteAndNegateIfEqual(asm.CondUnsignedGreaterThan)

			// required-when-unused, mark it done or the walk would
			// emit it a second time
			s.MarkAsDefined(value)

			s.EmitWithContinuation(asm.MakeOpcode(asm.ArchStackPointerGreaterThan), nil, []asm.Operand{s.UseRegister(x.Limit)}, cont)

			return
		}
	}

	op := s.pick(cmpClass(s.repOf(value)))
	s.EmitWithContinuation(op, nil, []asm.Operand{s.UseRegister(value), asm.Immediate(0)}, cont)
}

// emitCompare lowers one compare node into the continuation.
func (s *Selector) emitCompare(n ir.Node, x ir.Cmp, cont *Continuation) {
	c := condOf(x.Kind)
	l, r := x.L, x.R

	if _, ok := s.immValue(r); !ok {
		if _, ok := s.immValue(l); ok {
			l, r = r, l
			c = asm.CommuteCondition(c)
		}
	}

	cont.OverwriteAndNegateIfEqual(c)

	// comparing an add against zero reuses the adds flags
	if s.isZero(r) {
		if a, ok := s.g.Op(l).(ir.Add); ok && s.tryFlagSettingAdd(n, l, a, cont) {
			return
		}
	}

	op := s.pick(cmpClass(x.Rep))
	s.EmitWithContinuation(op, nil, []asm.Operand{s.UseRegister(l), s.useOperand(r)}, cont)
}

// tryFlagSettingAdd replaces "add; cmp result, 0" with the flag-setting
// add form. The add may still have uses in other blocks, so its register
// stays defined.
func (s *Selector) tryFlagSettingAdd(user, n ir.Node, x ir.Add, cont *Continuation) bool {
	if cont.IsConditional() {
		return false
	}

	if !s.IsOnlyUserOfNodeInSameBlock(user, n) || s.effectLevel[user] != s.effectLevel[n] {
		return false
	}

	var c asm.Condition

	switch cont.Condition() {
	case asm.CondEqual, asm.CondNotEqual:
		c = cont.Condition()
	case asm.CondSignedLessThan:
		c = asm.CondNegative
	case asm.CondSignedGreaterThanOrEqual:
		c = asm.CondNotNegative
	default:
		return false
	}

	cls := target.OpAddSetFlags64
	if x.Rep == ir.Word32 {
		cls = target.OpAddSetFlags32
	}

	op, ok := s.t.Pick(cls)
	if !ok {
		return false
	}

	cont.Overwrite(c)
	s.EmitWithContinuation(op, []asm.Operand{s.DefineAsRegister(n)}, []asm.Operand{s.UseRegister(x.L), s.useOperand(x.R)}, cont)

	return true
}

// tryCompareChain fuses a logical tree of compares into one conditional
// compare chain. Trees deeper than MaxCompareChainSize compares flush to
// materialized booleans instead.
func (s *Selector) tryCompareChain(user, value ir.Node, cont *Continuation) bool {
	if cont.IsConditional() {
		return false
	}

	switch cont.Mode() {
	case asm.FlagsBranch, asm.FlagsSet:
	default:
		return false
	}

	// a negated chain would need every step negated, not worth it
	if cont.Condition() == asm.CondEqual {
		return false
	}

	var steps []ChainCompare

	if !s.collectChain(user, value, true, &steps) {
		return false
	}

	if len(steps) < 2 || len(steps) > MaxCompareChainSize {
		return false
	}

	final := steps[len(steps)-1].Cond

	var nc Continuation
	if cont.Mode() == asm.FlagsBranch {
		nc = ForConditionalBranch(steps, final, cont.TrueBlock(), cont.FalseBlock())
	} else {
		nc = ForConditionalSet(steps, final, cont.Result())
	}

	s.EmitWithContinuation(steps[0].Op, nil, nil, &nc)

	return true
}

func (s *Selector) collectChain(user, n ir.Node, conj bool, steps *[]ChainCompare) bool {
	switch x := s.g.Op(n).(type) {
	case ir.And:
		return s.CanCover(user, n) &&
			s.collectChain(n, x.L, conj, steps) &&
			s.collectChain(n, x.R, true, steps)
	case ir.Or:
		return s.CanCover(user, n) &&
			s.collectChain(n, x.L, conj, steps) &&
			s.collectChain(n, x.R, false, steps)
	case ir.Cmp:
		if !s.CanCover(user, n) {
			return false
		}

		cls := target.OpCcmp64
		if x.Rep == ir.Word32 {
			cls = target.OpCcmp32
		}

		if len(*steps) == 0 {
			cls = cmpClass(x.Rep)
		}

		op, ok := s.t.Pick(cls)
		if !ok {
			return false
		}

		*steps = append(*steps, ChainCompare{Op: op, L: x.L, R: x.R, Cond: condOf(x.Kind), Conjunction: conj})

		return true
	default:
		return false
	}
}

func (s *Selector) visitBinop(n, l, r ir.Node, rep ir.Rep, cls32, cls64 target.OpClass, commutative bool) {
	cls := cls64
	if rep == ir.Word32 {
		cls = cls32
	}

	if commutative {
		if _, ok := s.immValue(r); !ok {
			if _, ok := s.immValue(l); ok {
				l, r = r, l
			}
		}
	}

	s.Emit(s.pick(cls), s.DefineAsRegister(n), s.UseRegister(l), s.useOperand(r))
}

func (s *Selector) visitFloatBinop(n, l, r ir.Node, cls target.OpClass) {
	if !s.opts.DeterministicNaN {
		s.Emit(s.pick(cls), s.DefineAsRegister(n), s.UseRegister(l), s.UseRegister(r))
		return
	}

	// emission is backwards: the quieting op lands after the arithmetic
	t := s.TempRegister()

	s.Emit(s.pick(target.OpFSilenceNaN), s.DefineAsRegister(n), asm.Unallocated(t.VReg, asm.PolicyRegister))
	s.Emit(s.pick(cls), t, s.UseRegister(l), s.UseRegister(r))
}

func (s *Selector) visitConst(n ir.Node, x ir.Const) {
	def := s.DefineAsRegister(n)

	switch x.Kind {
	case ir.ConstInt:
		s.Emit(s.pick(target.OpMovImm), def, asm.Immediate(x.Int))
	case ir.ConstFloat:
		s.Emit(s.pick(target.OpMovImm), def, asm.Constant(int64(math.Float64bits(x.Float)), false))
	case ir.ConstHeapObject, ir.ConstRelocatableCall:
		s.Emit(s.pick(target.OpMovImm), def, asm.Constant(x.Int, true))
	case ir.ConstExternal:
		s.Emit(s.pick(target.OpMovImm), def, asm.Constant(x.Int, false))
	default:
		panic(x)
	}
}

func (s *Selector) visitLoad(n ir.Node, x ir.Load) {
	op := s.pick(target.LoadClass(x.Rep))

	// an external reference off the roots register folds into the
	// address, the base constant never materializes
	if addr, ok := s.rootsRelativeAddress(n, x.Base, x.Index, x.Offset); ok {
		s.Emit(op, s.DefineAsRegister(n), addr)
		return
	}

	ins := []asm.Operand{s.UseRegister(x.Base)}
	if x.Index != ir.Nil {
		ins = append(ins, s.UseRegister(x.Index))
	} else {
		ins = append(ins, asm.Immediate(int64(x.Offset)))
	}

	s.Emit(op, s.DefineAsRegister(n), ins...)
}

// rootsRelativeAddress folds a coverable external-constant base plus
// static offset into a single address operand.
func (s *Selector) rootsRelativeAddress(user ir.Node, base, index ir.Node, offset int32) (asm.Operand, bool) {
	if !s.opts.RootsRelative || index != ir.Nil {
		return asm.Operand{}, false
	}

	c, ok := s.g.Op(base).(ir.Const)
	if !ok || c.Kind != ir.ConstExternal || !s.CanCover(user, base) {
		return asm.Operand{}, false
	}

	s.MarkAsDefined(base)

	return asm.Constant(c.Int+int64(offset), false), true
}

func (s *Selector) visitStore(x ir.Store) {
	op := s.pick(target.StoreClass(x.Rep))

	ins := []asm.Operand{s.UseRegister(x.Base)}
	if x.Index != ir.Nil {
		ins = append(ins, s.UseRegister(x.Index))
	} else {
		ins = append(ins, asm.Immediate(int64(x.Offset)))
	}

	ins = append(ins, s.UseRegister(x.Value))

	s.Emit(op, asm.Operand{}, ins...)
}

func (s *Selector) visitPhi(n ir.Node, x ir.Phi) {
	if len(x.Ins) != len(s.g.Blocks[s.cur].Preds) {
		panic(x)
	}

	p := asm.Phi{Out: s.vregOf(n)}

	s.MarkAsDefined(n)

	for _, in := range x.Ins {
		s.MarkAsUsed(in)
		p.Ins = append(p.Ins, s.vregOf(in))
	}

	s.seq.AddPhi(s.cur, p)
}

func (s *Selector) visitReturn(x ir.Return) {
	var ins []asm.Operand

	for i, v := range x.Values {
		ins = append(ins, s.UseLocation(v, s.lk.ReturnLocation(i)))
	}

	s.Emit(asm.MakeOpcode(asm.ArchRet), asm.Operand{}, ins...)
}

func (s *Selector) visitShuffle(n ir.Node, x ir.Shuffle) error {
	pat, swap, swizzle := shuffle.Canonicalize(x.Pattern, x.A == x.B)

	a, b := x.A, x.B
	if swap {
		a, b = b, a
	}

	cls := target.OpS128Swizzle
	if !swizzle {
		cls = target.OpS128Shuffle
	}

	op, ok := s.t.Pick(cls)
	if !ok {
		return Bailout{Node: n, Reason: "target has no vector shuffle"}
	}

	ins := []asm.Operand{s.UseRegister(a)}
	if !swizzle {
		ins = append(ins, s.UseRegister(b))
	}

	for i := 0; i < 16; i += 4 {
		ins = append(ins, asm.Immediate(int64(binary.LittleEndian.Uint32(pat[i:]))))
	}

	s.Emit(op, s.DefineAsRegister(n), ins...)

	return nil
}

func (s *Selector) repOf(n ir.Node) ir.Rep {
	switch x := s.g.Op(n).(type) {
	case ir.Add:
		return x.Rep
	case ir.Sub:
		return x.Rep
	case ir.Mul:
		return x.Rep
	case ir.And:
		return x.Rep
	case ir.Or:
		return x.Rep
	case ir.Xor:
		return x.Rep
	case ir.Shl:
		return x.Rep
	case ir.Shr:
		return x.Rep
	case ir.Sar:
		return x.Rep
	case ir.Load:
		return x.Rep
	case ir.Phi:
		return x.Rep
	case ir.Select:
		return x.Rep
	default:
		// compares and other bool producers are 32 bit
		return ir.Word32
	}
}

func cmpClass(rep ir.Rep) target.OpClass {
	if rep == ir.Word32 {
		return target.OpCmp32
	}

	return target.OpCmp64
}

func condOf(k ir.CmpKind) asm.Condition {
	switch k {
	case ir.Equal:
		return asm.CondEqual
	case ir.SignedLessThan:
		return asm.CondSignedLessThan
	case ir.SignedLessThanOrEqual:
		return asm.CondSignedLessThanOrEqual
	case ir.UnsignedLessThan:
		return asm.CondUnsignedLessThan
	case ir.UnsignedLessThanOrEqual:
		return asm.CondUnsignedLessThanOrEqual
	default:
		panic(k)
	}
}
