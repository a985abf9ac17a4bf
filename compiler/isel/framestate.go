package isel

import (
	"github.com/rivlang/riv/compiler/asm"
	"github.com/rivlang/riv/compiler/ir"
)

type (
	fsKind uint8

	// fsKey identifies one frame state value for deduplication: the
	// same node may legally appear with different kinds.
	fsKey struct {
		n    ir.Node
		kind fsKind
	}
)

const (
	fsAny fsKind = iota
	fsStackSlot
)

// frameStateInputs flattens a FrameState node into a descriptor plus the
// instruction operands carrying the live values. A value repeated within
// one frame state is encoded once, later occurrences become duplicate
// entries pointing at the first.
func (s *Selector) frameStateInputs(fsn ir.Node) (d *asm.FrameStateDescriptor, ins []asm.Operand) {
	x := s.g.Op(fsn).(ir.FrameState)

	d = &asm.FrameStateDescriptor{Height: x.Height}
	seen := map[fsKey]int{}

	add := func(v ir.Node, kind fsKind) {
		key := fsKey{n: v, kind: kind}

		if idx, ok := seen[key]; ok {
			d.AddDuplicate(idx)
			return
		}

		seen[key] = d.AddValue()
		ins = append(ins, s.Use(v))
	}

	add(x.Context, fsAny)

	for _, l := range x.Locals {
		add(l, fsStackSlot)
	}

	for _, v := range x.Stack {
		add(v, fsStackSlot)
	}

	if x.Accumulator != ir.Nil {
		add(x.Accumulator, fsAny)
	}

	if x.Height > s.maxFrameHeight {
		s.maxFrameHeight = x.Height
	}

	return d, ins
}
