package isel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivlang/riv/compiler/ir"
	"github.com/rivlang/riv/compiler/target/arm64"
)

// a 32-bit add already clears the upper bits, the extension is free
func TestZeroExtendOfWord32OpElided(t *testing.T) {
	b := ir.NewBuilder()

	b0 := b.NewBlock(false)
	x := b.Emit(b0, ir.Param{Index: 0})
	y := b.Emit(b0, ir.Param{Index: 1})
	sum := b.Emit(b0, ir.Add{L: x, R: y, Rep: ir.Word32})
	ext := b.Emit(b0, ir.ChangeUint32ToUint64{In: sum})
	wide := b.Emit(b0, ir.Add{L: ext, R: ext, Rep: ir.Word64})
	b.Emit(b0, ir.Return{Values: []ir.Node{wide}})

	seq, _ := runSelect(t, b.Graph(), Options{})

	for _, ins := range seq.Instrs {
		assert.NotEqual(t, arm64.Mov32, ins.Op.Arch(), "extension should be elided")
	}
}

// a 64-bit value may have dirty upper bits, the move stays
func TestZeroExtendOfWideValueEmitted(t *testing.T) {
	b := ir.NewBuilder()

	b0 := b.NewBlock(false)
	base := b.Emit(b0, ir.Param{Index: 0})
	ld := b.Emit(b0, ir.Load{Base: base, Index: ir.Nil, Offset: 0, Rep: ir.Word64})
	nar := b.Emit(b0, ir.TruncateWord64ToWord32{In: ld})
	ext := b.Emit(b0, ir.ChangeUint32ToUint64{In: nar})
	b.Emit(b0, ir.Return{Values: []ir.Node{ext}})

	seq, _ := runSelect(t, b.Graph(), Options{})

	found := false

	for _, ins := range seq.Instrs {
		if ins.Op.Arch() == arm64.Mov32 {
			found = true
		}
	}

	assert.True(t, found, "extension of a truncated wide value must be explicit")
}

// upper-bits analysis over a loop phi terminates and stays optimistic
func TestZeroExtendLoopPhi(t *testing.T) {
	b := ir.NewBuilder()

	b0 := b.NewBlock(false)
	init := b.Emit(b0, ir.Const{Kind: ir.ConstInt, Int: 0})
	b.Emit(b0, ir.Goto{Target: 1})

	b1 := b.NewBlock(true, b0) // preds fixed below
	one := b.Emit(b1, ir.Const{Kind: ir.ConstInt, Int: 1})
	phi := b.Emit(b1, ir.Phi{Rep: ir.Word32, Ins: []ir.Node{init, ir.Nil}})
	next := b.Emit(b1, ir.Add{L: phi, R: one, Rep: ir.Word32})
	limit := b.Emit(b1, ir.Const{Kind: ir.ConstInt, Int: 10})
	cmp := b.Emit(b1, ir.Cmp{L: next, R: limit, Kind: ir.SignedLessThan, Rep: ir.Word32})
	b.Emit(b1, ir.Branch{Cond: cmp, True: 1, False: 2})

	b2 := b.NewBlock(false, b1)
	ext := b.Emit(b2, ir.ChangeUint32ToUint64{In: phi})
	b.Emit(b2, ir.Return{Values: []ir.Node{ext}})

	g := b.Graph()

	// close the loop
	g.Blocks[1].Preds = []int{0, 1}

	fixPhi := g.Op(phi).(ir.Phi)
	fixPhi.Ins[1] = next

	seq, s := runSelect(t, g, Options{})

	assert.True(t, s.ZeroExtendsWord32ToWord64(phi))

	for _, ins := range seq.Instrs {
		assert.NotEqual(t, arm64.Mov32, ins.Op.Arch(), "loop phi of clean values needs no extension")
	}
}

func TestZeroExtendMemoized(t *testing.T) {
	b := ir.NewBuilder()

	b0 := b.NewBlock(false)
	x := b.Emit(b0, ir.Param{Index: 0})
	y := b.Emit(b0, ir.Param{Index: 1})
	sum := b.Emit(b0, ir.Add{L: x, R: y, Rep: ir.Word32})
	b.Emit(b0, ir.Return{Values: []ir.Node{sum}})

	g := b.Graph()
	_, s := runSelect(t, g, Options{})

	require.True(t, s.ZeroExtendsWord32ToWord64(sum))

	// memo survives, params stay undecided until asked
	assert.True(t, s.ZeroExtendsWord32ToWord64(sum))
	assert.False(t, s.ZeroExtendsWord32ToWord64(x))
}
