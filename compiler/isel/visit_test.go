package isel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivlang/riv/compiler/asm"
	"github.com/rivlang/riv/compiler/ir"
	"github.com/rivlang/riv/compiler/target/arm64"
)

func findByMode(seq *asm.Sequence, m asm.FlagsMode) (r []*asm.Instruction) {
	for _, i := range seq.Instrs {
		if i.Op.FlagsMode() == m {
			r = append(r, i)
		}
	}

	return r
}

// branch on x < y collapses into one compare-and-branch
func TestCompareFusedIntoBranch(t *testing.T) {
	b := ir.NewBuilder()

	b0 := b.NewBlock(false)
	x := b.Emit(b0, ir.Param{Index: 0})
	y := b.Emit(b0, ir.Param{Index: 1})
	cmp := b.Emit(b0, ir.Cmp{L: x, R: y, Kind: ir.SignedLessThan, Rep: ir.Word32})
	b.Emit(b0, ir.Branch{Cond: cmp, True: 1, False: 2})

	b1 := b.NewBlock(false, b0)
	one := b.Emit(b1, ir.Const{Kind: ir.ConstInt, Int: 1})
	b.Emit(b1, ir.Return{Values: []ir.Node{one}})

	b2 := b.NewBlock(false, b0)
	two := b.Emit(b2, ir.Const{Kind: ir.ConstInt, Int: 2})
	b.Emit(b2, ir.Return{Values: []ir.Node{two}})

	seq, _ := runSelect(t, b.Graph(), Options{})

	brs := findByMode(seq, asm.FlagsBranch)
	require.Len(t, brs, 1)

	br := brs[0]
	assert.Equal(t, arm64.Cmp32, br.Op.Arch())
	assert.Equal(t, asm.CondSignedLessThan, br.Op.Condition())

	// both branch targets ride on the same instruction
	labels := 0
	for _, in := range br.Ins {
		if in.IsLabel() {
			labels++
		}
	}

	assert.Equal(t, 2, labels)

	// no standalone boolean materialization
	assert.Empty(t, findByMode(seq, asm.FlagsSet))
}

// branch on x == 0 is rewritten to branch-if-equal on x itself
func TestEqualZeroConsumed(t *testing.T) {
	b := ir.NewBuilder()

	b0 := b.NewBlock(false)
	x := b.Emit(b0, ir.Param{Index: 0})
	zero := b.Emit(b0, ir.Const{Kind: ir.ConstInt, Int: 0})
	cmp := b.Emit(b0, ir.Cmp{L: x, R: zero, Kind: ir.Equal, Rep: ir.Word32})
	b.Emit(b0, ir.Branch{Cond: cmp, True: 1, False: 2})

	b1 := b.NewBlock(false, b0)
	b.Emit(b1, ir.Return{Values: []ir.Node{x}})

	b2 := b.NewBlock(false, b0)
	b.Emit(b2, ir.Return{Values: []ir.Node{x}})

	seq, _ := runSelect(t, b.Graph(), Options{})

	brs := findByMode(seq, asm.FlagsBranch)
	require.Len(t, brs, 1)
	assert.Equal(t, asm.CondEqual, brs[0].Op.Condition())
}

// the hint travels with the branch: last input after the two labels
func TestBranchHintEncoded(t *testing.T) {
	b := ir.NewBuilder()

	b0 := b.NewBlock(false)
	x := b.Emit(b0, ir.Param{Index: 0})
	y := b.Emit(b0, ir.Param{Index: 1})
	cmp := b.Emit(b0, ir.Cmp{L: x, R: y, Kind: ir.SignedLessThan, Rep: ir.Word32})
	b.Emit(b0, ir.Branch{Cond: cmp, True: 1, False: 2, Hint: ir.LikelyFalse})

	b1 := b.NewBlock(false, b0)
	b.Emit(b1, ir.Return{Values: []ir.Node{x}})

	b2 := b.NewBlock(false, b0)
	b.Emit(b2, ir.Return{Values: []ir.Node{y}})

	seq, _ := runSelect(t, b.Graph(), Options{})

	brs := findByMode(seq, asm.FlagsBranch)
	require.Len(t, brs, 1)

	br := brs[0]
	require.GreaterOrEqual(t, len(br.Ins), 3)

	last := br.Ins[len(br.Ins)-1]
	require.True(t, last.IsImmediate())
	assert.EqualValues(t, ir.LikelyFalse, last.Imm)

	// the labels sit right before the hint
	assert.True(t, br.Ins[len(br.Ins)-2].IsLabel())
	assert.True(t, br.Ins[len(br.Ins)-3].IsLabel())
}

// a load off an external-reference base folds the address into the load
// when roots-relative addressing is on
func TestRootsRelativeLoadFoldsExternalBase(t *testing.T) {
	build := func() *ir.Graph {
		b := ir.NewBuilder()

		b0 := b.NewBlock(false)
		base := b.Emit(b0, ir.Const{Kind: ir.ConstExternal, Int: 0x4000})
		ld := b.Emit(b0, ir.Load{Base: base, Index: ir.Nil, Offset: 8, Rep: ir.Word64})
		b.Emit(b0, ir.Return{Values: []ir.Node{ld}})

		return b.Graph()
	}

	seq, _ := runSelect(t, build(), Options{RootsRelative: true})

	var ld *asm.Instruction
	for _, ins := range seq.Instrs {
		require.NotEqual(t, arm64.Mov, ins.Op.Arch(), "base constant materialized")

		if ins.Op.Arch() == arm64.Ldr64 {
			ld = ins
		}
	}

	require.NotNil(t, ld)
	require.Len(t, ld.Ins, 1)
	assert.Equal(t, asm.OperandConstant, ld.Ins[0].Kind)
	assert.EqualValues(t, 0x4008, ld.Ins[0].Imm)

	// off by default: the base goes through a register
	seq, _ = runSelect(t, build(), Options{})

	movs := 0
	for _, ins := range seq.Instrs {
		if ins.Op.Arch() == arm64.Mov {
			movs++
		}

		if ins.Op.Arch() == arm64.Ldr64 {
			require.Len(t, ins.Ins, 2)
		}
	}

	assert.Equal(t, 1, movs)
}

// add; compare result < 0; branch  becomes a flag-setting add
func TestFlagSettingAddFusion(t *testing.T) {
	b := ir.NewBuilder()

	b0 := b.NewBlock(false)
	x := b.Emit(b0, ir.Param{Index: 0})
	y := b.Emit(b0, ir.Param{Index: 1})
	sum := b.Emit(b0, ir.Add{L: x, R: y, Rep: ir.Word32})
	zero := b.Emit(b0, ir.Const{Kind: ir.ConstInt, Int: 0})
	cmp := b.Emit(b0, ir.Cmp{L: sum, R: zero, Kind: ir.SignedLessThan, Rep: ir.Word32})
	b.Emit(b0, ir.Branch{Cond: cmp, True: 1, False: 2})

	b1 := b.NewBlock(false, b0)
	b.Emit(b1, ir.Return{Values: []ir.Node{sum}}) // sum lives on in another block

	b2 := b.NewBlock(false, b0)
	b.Emit(b2, ir.Return{Values: []ir.Node{x}})

	seq, _ := runSelect(t, b.Graph(), Options{})

	brs := findByMode(seq, asm.FlagsBranch)
	require.Len(t, brs, 1)

	br := brs[0]
	assert.Equal(t, arm64.Adds32, br.Op.Arch())
	assert.Equal(t, asm.CondNegative, br.Op.Condition())

	// the add result is still defined, the other block reads it
	require.Len(t, br.Outs, 1)

	// and no separate plain add or compare remains
	for _, ins := range seq.Instrs {
		assert.NotEqual(t, arm64.Add32, ins.Op.Arch())
		assert.NotEqual(t, arm64.Cmp32, ins.Op.Arch())
	}
}

// a second user of the add in the same block blocks the fusion
func TestFlagSettingAddNotFusedWithLocalUser(t *testing.T) {
	b := ir.NewBuilder()

	b0 := b.NewBlock(false)
	x := b.Emit(b0, ir.Param{Index: 0})
	y := b.Emit(b0, ir.Param{Index: 1})
	sum := b.Emit(b0, ir.Add{L: x, R: y, Rep: ir.Word32})
	dbl := b.Emit(b0, ir.Add{L: sum, R: sum, Rep: ir.Word32})
	zero := b.Emit(b0, ir.Const{Kind: ir.ConstInt, Int: 0})
	cmp := b.Emit(b0, ir.Cmp{L: sum, R: zero, Kind: ir.SignedLessThan, Rep: ir.Word32})
	b.Emit(b0, ir.Branch{Cond: cmp, True: 1, False: 2})

	b1 := b.NewBlock(false, b0)
	b.Emit(b1, ir.Return{Values: []ir.Node{dbl}})

	b2 := b.NewBlock(false, b0)
	b.Emit(b2, ir.Return{Values: []ir.Node{x}})

	seq, _ := runSelect(t, b.Graph(), Options{})

	brs := findByMode(seq, asm.FlagsBranch)
	require.Len(t, brs, 1)
	assert.Equal(t, arm64.Cmp32, brs[0].Op.Arch())
}

// (a < b) && (c < d) fuses into one conditional compare chain
func TestCompareChainFused(t *testing.T) {
	b := ir.NewBuilder()

	b0 := b.NewBlock(false)
	a := b.Emit(b0, ir.Param{Index: 0})
	bb := b.Emit(b0, ir.Param{Index: 1})
	c := b.Emit(b0, ir.Param{Index: 2})
	d := b.Emit(b0, ir.Param{Index: 3})
	c1 := b.Emit(b0, ir.Cmp{L: a, R: bb, Kind: ir.SignedLessThan, Rep: ir.Word32})
	c2 := b.Emit(b0, ir.Cmp{L: c, R: d, Kind: ir.UnsignedLessThan, Rep: ir.Word32})
	and := b.Emit(b0, ir.And{L: c1, R: c2, Rep: ir.Word32})
	b.Emit(b0, ir.Branch{Cond: and, True: 1, False: 2})

	b1 := b.NewBlock(false, b0)
	b.Emit(b1, ir.Return{Values: []ir.Node{a}})

	b2 := b.NewBlock(false, b0)
	b.Emit(b2, ir.Return{Values: []ir.Node{a}})

	seq, _ := runSelect(t, b.Graph(), Options{})

	ccs := findByMode(seq, asm.FlagsConditionalBranch)
	require.Len(t, ccs, 1)

	cc := ccs[0]

	// the final condition is the last compare's
	assert.Equal(t, asm.CondUnsignedLessThan, cc.Op.Condition())

	// first input is the chain length
	require.True(t, cc.Ins[0].IsImmediate())
	assert.EqualValues(t, 2, cc.Ins[0].Imm)

	// nothing materializes the booleans
	assert.Empty(t, findByMode(seq, asm.FlagsSet))

	for _, ins := range seq.Instrs {
		assert.NotEqual(t, arm64.And32, ins.Op.Arch())
	}
}

// five compares overflow the chain and flush to materialized booleans
func TestCompareChainOverflowFlushes(t *testing.T) {
	b := ir.NewBuilder()

	b0 := b.NewBlock(false)
	p := make([]ir.Node, 6)
	for i := range p {
		p[i] = b.Emit(b0, ir.Param{Index: i})
	}

	acc := b.Emit(b0, ir.Cmp{L: p[0], R: p[1], Kind: ir.SignedLessThan, Rep: ir.Word32})
	for i := 1; i < 5; i++ {
		c := b.Emit(b0, ir.Cmp{L: p[i], R: p[i+1], Kind: ir.SignedLessThan, Rep: ir.Word32})
		acc = b.Emit(b0, ir.And{L: acc, R: c, Rep: ir.Word32})
	}

	b.Emit(b0, ir.Branch{Cond: acc, True: 1, False: 2})

	b1 := b.NewBlock(false, b0)
	b.Emit(b1, ir.Return{Values: []ir.Node{p[0]}})

	b2 := b.NewBlock(false, b0)
	b.Emit(b2, ir.Return{Values: []ir.Node{p[0]}})

	seq, _ := runSelect(t, b.Graph(), Options{})

	assert.Empty(t, findByMode(seq, asm.FlagsConditionalBranch))
	assert.Len(t, findByMode(seq, asm.FlagsSet), 5)
	require.Len(t, findByMode(seq, asm.FlagsBranch), 1)
}

func TestSelectLowersToFlagsSelect(t *testing.T) {
	b := ir.NewBuilder()

	b0 := b.NewBlock(false)
	x := b.Emit(b0, ir.Param{Index: 0})
	y := b.Emit(b0, ir.Param{Index: 1})
	cmp := b.Emit(b0, ir.Cmp{L: x, R: y, Kind: ir.UnsignedLessThan, Rep: ir.Word64})
	sel := b.Emit(b0, ir.Select{Cond: cmp, T: x, F: y, Rep: ir.Word64})
	b.Emit(b0, ir.Return{Values: []ir.Node{sel}})

	seq, _ := runSelect(t, b.Graph(), Options{})

	sels := findByMode(seq, asm.FlagsSelect)
	require.Len(t, sels, 1)

	s := sels[0]
	assert.Equal(t, arm64.Cmp64, s.Op.Arch())
	assert.Equal(t, asm.CondUnsignedLessThan, s.Op.Condition())
	assert.Len(t, s.Outs, 1)
}

func TestTrapEncodesTrapID(t *testing.T) {
	b := ir.NewBuilder()

	b0 := b.NewBlock(false)
	x := b.Emit(b0, ir.Param{Index: 0})
	b.Emit(b0, ir.TrapIf{Cond: x, Negated: true, Trap: 42})
	b.Emit(b0, ir.Return{Values: []ir.Node{x}})

	seq, _ := runSelect(t, b.Graph(), Options{})

	traps := findByMode(seq, asm.FlagsTrap)
	require.Len(t, traps, 1)

	tr := traps[0]
	assert.Equal(t, asm.CondEqual, tr.Op.Condition())

	last := tr.Ins[len(tr.Ins)-1]
	require.True(t, last.IsImmediate())
	assert.EqualValues(t, 42, last.Imm)
}

func TestStackCheckConsumedByBranch(t *testing.T) {
	b := ir.NewBuilder()

	b0 := b.NewBlock(false)
	limit := b.Emit(b0, ir.Param{Index: 0})
	chk := b.Emit(b0, ir.StackPointerGreaterThan{Limit: limit})
	b.Emit(b0, ir.Branch{Cond: chk, True: 1, False: 2})

	b1 := b.NewBlock(false, b0)
	b.Emit(b1, ir.Return{Values: []ir.Node{limit}})

	b2 := b.NewBlock(false, b0)
	b.Emit(b2, ir.Return{Values: []ir.Node{limit}})

	seq, _ := runSelect(t, b.Graph(), Options{})

	brs := findByMode(seq, asm.FlagsBranch)
	require.Len(t, brs, 1)
	assert.Equal(t, asm.ArchStackPointerGreaterThan, brs[0].Op.Arch())
	assert.Equal(t, asm.CondUnsignedGreaterThan, brs[0].Op.Condition())
}

func TestDeterministicNaNQuietsFloatResults(t *testing.T) {
	b := ir.NewBuilder()

	b0 := b.NewBlock(false)
	x := b.Emit(b0, ir.Param{Index: 0})
	y := b.Emit(b0, ir.Param{Index: 1})
	q := b.Emit(b0, ir.FDiv{L: x, R: y})
	b.Emit(b0, ir.Return{Values: []ir.Node{q}})

	seq, _ := runSelect(t, b.Graph(), Options{DeterministicNaN: true})

	var div, silence int

	for i, ins := range seq.Instrs {
		switch ins.Op.Arch() {
		case arm64.Fdiv64:
			div = i
		case arm64.Fmin64:
			silence = i
		}
	}

	require.NotZero(t, silence)
	assert.Less(t, div, silence, "quieting must follow the division")
}
