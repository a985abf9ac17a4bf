package ir

// Inputs returns the value inputs of an operation in their fixed order.
// Nil inputs (optional operands) are not included.
func Inputs(x any) []Node {
	switch x := x.(type) {
	case Param, Const, StackSlot:
		return nil
	case Add:
		return []Node{x.L, x.R}
	case Sub:
		return []Node{x.L, x.R}
	case Mul:
		return []Node{x.L, x.R}
	case And:
		return []Node{x.L, x.R}
	case Or:
		return []Node{x.L, x.R}
	case Xor:
		return []Node{x.L, x.R}
	case Shl:
		return []Node{x.L, x.R}
	case Shr:
		return []Node{x.L, x.R}
	case Sar:
		return []Node{x.L, x.R}
	case FAdd:
		return []Node{x.L, x.R}
	case FSub:
		return []Node{x.L, x.R}
	case FMul:
		return []Node{x.L, x.R}
	case FDiv:
		return []Node{x.L, x.R}
	case Cmp:
		return []Node{x.L, x.R}
	case ChangeUint32ToUint64:
		return []Node{x.In}
	case TruncateWord64ToWord32:
		return []Node{x.In}
	case Load:
		return appendNonNil([]Node{x.Base}, x.Index)
	case Store:
		return appendNonNil([]Node{x.Base, x.Value}, x.Index)
	case Phi:
		return x.Ins
	case Call:
		in := append([]Node{x.Callee}, x.Args...)
		return appendNonNil(in, x.FrameState)
	case TailCall:
		return append([]Node{x.Callee}, x.Args...)
	case Projection:
		return []Node{x.In}
	case Return:
		return x.Values
	case Goto:
		return nil
	case Branch:
		return []Node{x.Cond}
	case Switch:
		return []Node{x.Value}
	case DeoptimizeIf:
		return []Node{x.Cond, x.FrameState}
	case TrapIf:
		return []Node{x.Cond}
	case Select:
		return []Node{x.Cond, x.T, x.F}
	case FrameState:
		in := appendNonNil(nil, x.Context)
		in = append(in, x.Locals...)
		in = append(in, x.Stack...)
		return appendNonNil(in, x.Accumulator)
	case Shuffle:
		return []Node{x.A, x.B}
	case StackPointerGreaterThan:
		return []Node{x.Limit}
	default:
		panic(x)
	}
}

// BumpsEffectLevel reports whether an operation produces a side effect
// other operations must not be reordered across.
func BumpsEffectLevel(x any) bool {
	switch x := x.(type) {
	case Store, Call, TailCall, DeoptimizeIf, TrapIf:
		return true
	case Load:
		return x.Protected
	default:
		return false
	}
}

// RequiredWhenUnused reports whether an operation must be emitted even if
// its result has no uses.
func RequiredWhenUnused(x any) bool {
	switch x := x.(type) {
	case Store, Call, TailCall, DeoptimizeIf, TrapIf, Return, Goto, Branch, Switch:
		return true
	case Load:
		return x.Protected
	case StackPointerGreaterThan:
		return true
	default:
		return false
	}
}

// Pure reports whether an operation neither produces nor observes effects,
// so it may be reordered freely against everything but its data inputs.
func Pure(x any) bool {
	switch x.(type) {
	case Load, Store, Call, TailCall, DeoptimizeIf, TrapIf, StackPointerGreaterThan:
		return false
	default:
		return !IsTerminator(x)
	}
}

func IsTerminator(x any) bool {
	switch x.(type) {
	case Goto, Branch, Switch, Return, TailCall:
		return true
	default:
		return false
	}
}

func IsCommutative(x any) bool {
	switch x := x.(type) {
	case Add, Mul, And, Or, Xor, FAdd, FMul:
		return true
	case Cmp:
		return x.Kind == Equal
	default:
		return false
	}
}

func appendNonNil(in []Node, n Node) []Node {
	if n == Nil {
		return in
	}

	return append(in, n)
}
