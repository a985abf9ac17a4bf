package isel

import (
	"github.com/rivlang/riv/compiler/ir"
	"github.com/rivlang/riv/compiler/target"
)

type (
	upperState uint8
)

const (
	upperUnknown upperState = iota
	upperZero
	upperMayBeNonZero
)

// visitZeroExtend drops the explicit extension when the producer already
// leaves the upper 32 bits clear.
func (s *Selector) visitZeroExtend(n ir.Node, x ir.ChangeUint32ToUint64) {
	if s.ZeroExtendsWord32ToWord64(x.In) {
		s.EmitIdentity(n, x.In)
		return
	}

	s.Emit(s.pick(target.OpMov32), s.DefineAsRegister(n), s.UseRegister(x.In))
}

// ZeroExtendsWord32ToWord64 reports whether the 64-bit register holding
// node is known to have zero upper bits. Answers are memoized per node.
// Phi cycles are tracked with an explicit visiting set; a phi reached
// while it is still being decided is assumed clean, the closed loop
// cannot introduce dirty bits on its own.
func (s *Selector) ZeroExtendsWord32ToWord64(n ir.Node) bool {
	switch s.upper32[n] {
	case upperZero:
		return true
	case upperMayBeNonZero:
		return false
	}

	ok := s.zeroExtends(n)

	// results derived under an optimistic in-flight phi are provisional
	if s.upperDepth == 0 {
		if ok {
			s.upper32[n] = upperZero
		} else {
			s.upper32[n] = upperMayBeNonZero
		}
	}

	return ok
}

func (s *Selector) zeroExtends(n ir.Node) bool {
	switch x := s.g.Op(n).(type) {
	case ir.Const:
		return x.Kind == ir.ConstInt && x.Int >= 0 && x.Int <= 0xffffffff
	case ir.Add:
		return x.Rep == ir.Word32 && s.t.Word32OpsZeroUpperBits()
	case ir.Sub:
		return x.Rep == ir.Word32 && s.t.Word32OpsZeroUpperBits()
	case ir.Mul:
		return x.Rep == ir.Word32 && s.t.Word32OpsZeroUpperBits()
	case ir.And:
		return x.Rep == ir.Word32 && s.t.Word32OpsZeroUpperBits()
	case ir.Or:
		return x.Rep == ir.Word32 && s.t.Word32OpsZeroUpperBits()
	case ir.Xor:
		return x.Rep == ir.Word32 && s.t.Word32OpsZeroUpperBits()
	case ir.Shl:
		return x.Rep == ir.Word32 && s.t.Word32OpsZeroUpperBits()
	case ir.Shr:
		return x.Rep == ir.Word32 && s.t.Word32OpsZeroUpperBits()
	case ir.Sar:
		return x.Rep == ir.Word32 && s.t.Word32OpsZeroUpperBits()
	case ir.Cmp:
		// cset writes 0 or 1
		return true
	case ir.Load:
		return x.Rep == ir.Word32
	case ir.ChangeUint32ToUint64:
		return true
	case ir.Phi:
		if x.Rep != ir.Word32 {
			return false
		}

		if s.upperVisiting.IsSet(int(n)) {
			return true
		}

		s.upperVisiting.Set(int(n))
		s.upperDepth++

		defer func() {
			s.upperVisiting.Clear(int(n))
			s.upperDepth--
		}()

		for _, in := range x.Ins {
			if !s.ZeroExtendsWord32ToWord64(in) {
				return false
			}
		}

		return true
	default:
		return false
	}
}
