package isel

import (
	"context"

	"nikand.dev/go/heap"
	"tlog.app/go/tlog"

	"github.com/rivlang/riv/compiler/asm"
	"github.com/rivlang/riv/compiler/target"
)

// Post-selection list scheduler. Within a block it floats long-latency
// instructions up while keeping every def before its uses and the
// side-effect order intact. Purely a latency play, the result must stay
// observably identical.

func (s *Selector) schedule(ctx context.Context) {
	tr := tlog.SpanFromContext(ctx)

	for _, b := range s.seq.Blocks {
		moved := s.scheduleBlock(b)

		if moved {
			tr.V("sched").Printw("block rescheduled", "rpo", b.Rpo, "instrs", b.End-b.Start)
		}
	}
}

func (s *Selector) scheduleBlock(b asm.BlockRange) (moved bool) {
	n := b.End - b.Start
	if n < 2 {
		return false
	}

	instrs := s.seq.Instrs[b.Start:b.End]

	succs := make([][]int, n)
	npred := make([]int, n)
	lat := make([]int, n)

	edge := func(from, to int) {
		succs[from] = append(succs[from], to)
		npred[to]++
	}

	defAt := map[int]int{}
	lastEffect := -1

	var loads []int

	for i, ins := range instrs {
		lat[i] = latencyOf(ins)

		for _, o := range ins.Ins {
			if !o.IsUnallocated() {
				continue
			}

			if d, ok := defAt[o.VReg]; ok {
				edge(d, i)
			}
		}

		// loads may reorder among themselves but never cross a side
		// effect in either direction
		if s.isLoadOp(ins.Op.Arch()) {
			if lastEffect >= 0 {
				edge(lastEffect, i)
			}

			loads = append(loads, i)
		}

		if hasEffect(ins) {
			if lastEffect >= 0 {
				edge(lastEffect, i)
			}

			for _, l := range loads {
				edge(l, i)
			}

			loads = loads[:0]
			lastEffect = i
		}

		for _, o := range ins.Outs {
			if o.IsUnallocated() {
				defAt[o.VReg] = i
			}
		}
	}

	// nothing may drift past the terminator
	if isControl(instrs[n-1]) {
		for j := 0; j < n-1; j++ {
			edge(j, n-1)
		}
	}

	ready := heap.Heap[int]{Less: func(d []int, i, j int) bool {
		if lat[d[i]] != lat[d[j]] {
			return lat[d[i]] > lat[d[j]]
		}

		return d[i] < d[j]
	}}

	for i := 0; i < n; i++ {
		if npred[i] == 0 {
			ready.Push(i)
		}
	}

	perm := make([]int, 0, n)

	for ready.Len() != 0 {
		i := ready.Pop()
		perm = append(perm, i)

		for _, j := range succs[i] {
			npred[j]--

			if npred[j] == 0 {
				ready.Push(j)
			}
		}
	}

	if len(perm) != n {
		panic("scheduling cycle")
	}

	for i, old := range perm {
		if i != old {
			moved = true
			break
		}
	}

	if moved {
		s.seq.Reorder(b.Start, perm)
	}

	return moved
}

func (s *Selector) isLoadOp(a asm.ArchOpcode) bool {
	for _, c := range []target.OpClass{target.OpLoad32, target.OpLoad64, target.OpLoadF64, target.OpLoadS128} {
		if op, ok := s.t.Pick(c); ok && op.Arch() == a {
			return true
		}
	}

	return false
}

// hasEffect is deliberately coarse: anything that defines no register is
// assumed to touch memory or control flow.
func hasEffect(i *asm.Instruction) bool {
	if len(i.Outs) == 0 || isCall(i.Op.Arch()) || i.Op.Arch() == asm.ArchPush {
		return true
	}

	switch i.Op.FlagsMode() {
	case asm.FlagsDeoptimize, asm.FlagsTrap, asm.FlagsConditionalTrap:
		return true
	}

	return false
}

func isControl(i *asm.Instruction) bool {
	switch i.Op.Arch() {
	case asm.ArchJmp, asm.ArchRet, asm.ArchTailCallCodeObject, asm.ArchTailCallAddress, asm.ArchTableSwitch, asm.ArchBinarySearchSwitch:
		return true
	}

	switch i.Op.FlagsMode() {
	case asm.FlagsBranch, asm.FlagsConditionalBranch:
		return true
	}

	return false
}

func latencyOf(i *asm.Instruction) int {
	switch {
	case isCall(i.Op.Arch()):
		return 4
	case i.Op.Arch() >= asm.FirstTargetOpcode && len(i.Outs) > 0 && len(i.Ins) > 1:
		return 2
	default:
		return 1
	}
}
