package isel

import (
	"github.com/rivlang/riv/compiler/abi"
	"github.com/rivlang/riv/compiler/asm"
	"github.com/rivlang/riv/compiler/ir"
)

type (
	pushArg struct {
		n    ir.Node
		slot int
	}
)

func (s *Selector) visitCall(n ir.Node, x ir.Call) {
	d := x.Desc

	outs := s.callOutputs(n, d)

	arch := asm.ArchCallAddress
	if d.Target == abi.CallCodeObject {
		arch = asm.ArchCallCodeObject
	}

	ins := []asm.Operand{s.calleeOperand(x.Callee, d)}

	var fs *asm.FrameStateDescriptor

	if d.Flags.Has(abi.NeedsFrameState) && x.FrameState != ir.Nil {
		var fsIns []asm.Operand

		fs, fsIns = s.frameStateInputs(x.FrameState)
		ins = append(ins, fsIns...)
	}

	var pushes []pushArg

	for i, a := range x.Args {
		loc := d.Params[i]

		if loc.OnStack {
			pushes = append(pushes, pushArg{n: a, slot: loc.Slot})
			continue
		}

		ins = append(ins, s.UseFixed(a, loc.Reg))
	}

	if x.Handler >= 0 {
		ins = append(ins, s.UseLabel(x.Handler))
	}

	s.emit(asm.MakeOpcode(arch), outs, ins, nil)

	if fs != nil {
		s.pend[len(s.pend)-1].fs = fs
	}

	// emission is backwards: walk the pushes in reverse so they land
	// before the call in slot order
	for i := len(pushes) - 1; i >= 0; i-- {
		p := pushes[i]

		s.Emit(asm.MakeOpcode(asm.ArchPush), asm.StackSlot(p.slot), s.UseRegister(p.n))
	}

	s.updateMaxPushed(len(pushes))
}

func (s *Selector) visitTailCall(x ir.TailCall) {
	d := x.Desc

	arch := asm.ArchTailCallAddress
	if d.Target == abi.CallCodeObject {
		arch = asm.ArchTailCallCodeObject
	}

	// how much the stack argument area grows relative to our own frame
	delta := d.StackParamCount - s.lk.Incoming.StackParamCount

	ins := []asm.Operand{s.calleeOperand(x.Callee, d), asm.Immediate(int64(delta))}

	for i, a := range x.Args {
		ins = append(ins, s.UseLocation(a, d.Params[i]))
	}

	s.emit(asm.MakeOpcode(arch), nil, ins, nil)

	s.updateMaxPushed(d.StackParamCount)
}

func (s *Selector) calleeOperand(callee ir.Node, d *abi.CallDescriptor) asm.Operand {
	if c, ok := s.g.Op(callee).(ir.Const); ok {
		switch c.Kind {
		case ir.ConstRelocatableCall:
			return asm.Constant(c.Int, true)
		case ir.ConstExternal:
			return asm.Constant(c.Int, false)
		}
	}

	if d.FixedTargetReg >= 0 {
		return s.UseFixed(callee, d.FixedTargetReg)
	}

	return s.UseRegister(callee)
}

// callOutputs binds the call's return locations. Returns consumed through
// Projection nodes are defined on the projections, a single plain return
// on the call node itself.
func (s *Selector) callOutputs(n ir.Node, d *abi.CallDescriptor) (outs []asm.Operand) {
	if len(d.Returns) == 0 {
		return nil
	}

	projs := make([]ir.Node, len(d.Returns))

	for i := range projs {
		projs[i] = ir.Nil
	}

	hasProj := false

	for _, u := range s.users[n] {
		if p, ok := s.g.Op(u).(ir.Projection); ok {
			projs[p.Index] = u
			hasProj = true
		}
	}

	if !hasProj && len(d.Returns) == 1 {
		projs[0] = n
	}

	for i, pn := range projs {
		if pn == ir.Nil {
			continue
		}

		if pn != n && !s.IsReallyUsed(pn) {
			continue
		}

		outs = append(outs, s.DefineAsLocation(pn, d.Returns[i]))
	}

	return outs
}
