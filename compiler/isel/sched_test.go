package isel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rivlang/riv/compiler/asm"
	"github.com/rivlang/riv/compiler/ir"
	"github.com/rivlang/riv/compiler/target/arm64"
)

func schedGraph() *ir.Graph {
	b := ir.NewBuilder()

	b0 := b.NewBlock(false)
	base := b.Emit(b0, ir.Param{Index: 0})
	v := b.Emit(b0, ir.Param{Index: 1})
	ld := b.Emit(b0, ir.Load{Base: base, Index: ir.Nil, Offset: 0, Rep: ir.Word64})
	b.Emit(b0, ir.Store{Base: base, Index: ir.Nil, Offset: 8, Value: v, Rep: ir.Word64})
	b.Emit(b0, ir.Store{Base: base, Index: ir.Nil, Offset: 16, Value: ld, Rep: ir.Word64})
	sum := b.Emit(b0, ir.Add{L: ld, R: v, Rep: ir.Word64})
	b.Emit(b0, ir.Return{Values: []ir.Node{sum}})

	return b.Graph()
}

func checkSound(t *testing.T, seq *asm.Sequence) {
	t.Helper()

	defined := map[int]bool{}
	lastEffect := -1

	for i, ins := range seq.Instrs {
		for _, in := range ins.Ins {
			if in.IsUnallocated() {
				require.True(t, defined[seq.Resolve(in.VReg)], "instr %d reads undefined vreg %d", i, in.VReg)
			}
		}

		for _, out := range ins.Outs {
			if out.IsUnallocated() {
				defined[seq.Resolve(out.VReg)] = true
			}
		}

		if hasEffect(ins) {
			lastEffect = i
		}
	}

	// the terminator must close the block
	require.Equal(t, lastEffect, len(seq.Instrs)-1)
	require.Equal(t, asm.ArchRet, seq.Instrs[len(seq.Instrs)-1].Op.Arch())
}

func TestSchedulingKeepsCodeSound(t *testing.T) {
	seq, _ := runSelect(t, schedGraph(), Options{EnableScheduling: true})

	checkSound(t, seq)
}

// a load reading a location a preceding store wrote must not float above
// the store, no matter how attractive its latency looks
func TestSchedulingKeepsLoadAfterStore(t *testing.T) {
	b := ir.NewBuilder()

	b0 := b.NewBlock(false)
	base := b.Emit(b0, ir.Param{Index: 0})
	v := b.Emit(b0, ir.Param{Index: 1})
	b.Emit(b0, ir.Store{Base: base, Index: ir.Nil, Offset: 0, Value: v, Rep: ir.Word64})
	ld := b.Emit(b0, ir.Load{Base: base, Index: ir.Nil, Offset: 0, Rep: ir.Word64})
	b.Emit(b0, ir.Return{Values: []ir.Node{ld}})

	seq, _ := runSelect(t, b.Graph(), Options{EnableScheduling: true})

	str, ldr := -1, -1

	for i, ins := range seq.Instrs {
		switch ins.Op.Arch() {
		case arm64.Str64:
			str = i
		case arm64.Ldr64:
			ldr = i
		}
	}

	require.NotEqual(t, -1, str)
	require.NotEqual(t, -1, ldr)
	require.Less(t, str, ldr, "load hoisted above the store")

	checkSound(t, seq)
}

// effectful instructions keep their relative order with or without the
// scheduler
func TestSchedulingPreservesEffectOrder(t *testing.T) {
	plain, _ := runSelect(t, schedGraph(), Options{})
	sched, _ := runSelect(t, schedGraph(), Options{EnableScheduling: true})

	order := func(seq *asm.Sequence) (r []asm.ArchOpcode) {
		for _, ins := range seq.Instrs {
			if hasEffect(ins) && len(ins.Outs) == 0 {
				r = append(r, ins.Op.Arch())
			}
		}

		return r
	}

	require.Equal(t, order(plain), order(sched))

	checkSound(t, plain)
}
