// Package isel lowers a scheduled operation graph to machine instructions.
//
// Blocks are walked in reverse rpo and each block body backwards, so every
// use of a value is seen before its definition. That lets the selector fuse
// an operation into its user (cover it) and skip values nothing asked for.
// Instructions come out backwards and are reversed into the sequence at the
// end, block by block.
package isel

import (
	"context"
	"fmt"

	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/rivlang/riv/compiler/abi"
	"github.com/rivlang/riv/compiler/asm"
	"github.com/rivlang/riv/compiler/ir"
	"github.com/rivlang/riv/compiler/set"
	"github.com/rivlang/riv/compiler/target"
)

type (
	Options struct {
		// AllPositions records a source position for every instruction
		// instead of calls only.
		AllPositions bool

		// JumpTables allows lowering dense switches to table dispatch.
		JumpTables bool

		// EnableScheduling reorders pure instructions inside blocks
		// after selection.
		EnableScheduling bool

		// RootsRelative allows addressing isolate roots off the roots
		// register.
		RootsRelative bool

		// DeterministicNaN forces quieting of float results that may
		// hold signalling NaNs.
		DeterministicNaN bool

		// WorkBudget bounds the number of visited nodes, as a guard
		// against pathological inputs. Zero means unbounded.
		WorkBudget int
	}

	Selector struct {
		g    *ir.Graph
		lk   *abi.Linkage
		t    target.Target
		seq  *asm.Sequence
		opts Options

		users [][]ir.Node

		effectLevel []int32
		vreg        []int

		defined set.Bitmap
		used    set.Bitmap

		upper32       []upperState
		upperVisiting set.Bitmap
		upperDepth    int

		pend      []pendInstr
		pendRange [][2]int

		cur     int
		curNode ir.Node
		work    int

		maxFrameHeight int
		maxPushedArgs  int
	}

	pendInstr struct {
		i      *asm.Instruction
		pos    ir.Pos
		origin ir.Node
		fs     *asm.FrameStateDescriptor
	}

	// Bailout reports an input the selector refuses to compile. It is a
	// graceful give-up, not a bug; broken invariants panic instead.
	Bailout struct {
		Node   ir.Node
		Reason string
	}
)

func New(g *ir.Graph, lk *abi.Linkage, t target.Target, seq *asm.Sequence, opts Options) *Selector {
	n := g.NumNodes()

	s := &Selector{
		g:    g,
		lk:   lk,
		t:    t,
		seq:  seq,
		opts: opts,

		users:       make([][]ir.Node, n),
		effectLevel: make([]int32, n),
		vreg:        make([]int, n),

		defined: set.MakeBitmap(n),
		used:    set.MakeBitmap(n),

		upper32:       make([]upperState, n),
		upperVisiting: set.MakeBitmap(n),

		pendRange: make([][2]int, len(g.Blocks)),

		cur: -1,
	}

	for i := range s.vreg {
		s.vreg[i] = -1
	}

	return s
}

func (s *Selector) SelectInstructions(ctx context.Context) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "select instructions", "blocks", len(s.g.Blocks), "nodes", s.g.NumNodes())
	defer tr.Finish("err", &err)

	s.collectUsers()

	for b := len(s.g.Blocks) - 1; b >= 0; b-- {
		err = s.visitBlock(ctx, b)
		if err != nil {
			return errors.Wrap(err, "block %v", b)
		}
	}

	s.assemble()

	if s.opts.EnableScheduling {
		s.schedule(ctx)
	}

	if tr.If("dump_code") {
		for i, ins := range s.seq.Instrs {
			tr.Printw("instr", "i", i, "op", ins.Op.Arch(), "mode", ins.Op.FlagsMode(), "origin", s.seq.Origins[i])
		}
	}

	return nil
}

// MaxUnoptimizedFrameHeight is the deepest deopt frame seen, in slots.
func (s *Selector) MaxUnoptimizedFrameHeight() int { return s.maxFrameHeight }

// MaxPushedArgumentCount is the widest stack argument area of any call.
func (s *Selector) MaxPushedArgumentCount() int { return s.maxPushedArgs }

func (s *Selector) collectUsers() {
	for _, blk := range s.g.Blocks {
		for _, n := range blk.Nodes {
			for _, in := range ir.Inputs(s.g.Op(n)) {
				s.users[in] = append(s.users[in], n)
			}
		}
	}
}

func (s *Selector) visitBlock(ctx context.Context, b int) (err error) {
	tr := tlog.SpanFromContext(ctx)

	blk := &s.g.Blocks[b]
	s.cur = b
	start := len(s.pend)

	lvl := 0

	for _, n := range blk.Nodes {
		s.SetEffectLevel(n, lvl)

		if ir.BumpsEffectLevel(s.g.Op(n)) {
			lvl++
		}
	}

	// The terminator is the last node, so the backward walk emits
	// control flow first.
	for i := len(blk.Nodes) - 1; i >= 0; i-- {
		n := blk.Nodes[i]

		if s.IsDefined(n) || !s.IsUsed(n) {
			continue
		}

		s.work++
		if s.opts.WorkBudget > 0 && s.work > s.opts.WorkBudget {
			return Bailout{Node: n, Reason: "work budget exhausted"}
		}

		s.curNode = n

		tr.V("isel_visit").Printw("visit", "block", b, "node", n, "typ", tlog.NextAsType, s.g.Op(n))

		err = s.visitNode(n)
		if err != nil {
			return errors.Wrap(err, "node %v", n)
		}
	}

	s.pendRange[b] = [2]int{start, len(s.pend)}
	s.cur = -1

	return nil
}

func (s *Selector) assemble() {
	for b := range s.g.Blocks {
		r := s.pendRange[b]

		s.seq.StartBlock(b)

		for i := r[1] - 1; i >= r[0]; i-- {
			p := s.pend[i]

			idx := s.seq.Add(p.i, p.pos, p.origin)

			if p.fs != nil {
				s.seq.AttachFrameState(idx, p.fs)
			}
		}

		s.seq.EndBlock(b)
	}
}

// CanCover reports whether node can be folded into user: same block, user
// is its only user, and no side effect separates them.
func (s *Selector) CanCover(user, node ir.Node) bool {
	if s.g.BlockOf(user) != s.g.BlockOf(node) {
		return false
	}

	if s.IsDefined(node) {
		return false
	}

	for _, u := range s.users[node] {
		if u != user {
			return false
		}
	}

	return s.effectLevel[user] == s.effectLevel[node]
}

// IsOnlyUserOfNodeInSameBlock is a weaker CanCover: uses of node from
// other blocks are allowed, so node still gets a register definition.
func (s *Selector) IsOnlyUserOfNodeInSameBlock(user, node ir.Node) bool {
	b := s.g.BlockOf(node)

	if s.g.BlockOf(user) != b {
		return false
	}

	for _, u := range s.users[node] {
		if u != user && s.g.BlockOf(u) == b {
			return false
		}
	}

	return true
}

func (s *Selector) IsDefined(n ir.Node) bool {
	return s.defined.IsSet(int(n))
}

func (s *Selector) MarkAsDefined(n ir.Node) {
	if s.defined.IsSet(int(n)) {
		panic(fmt.Sprintf("node %v defined twice", n))
	}

	s.defined.Set(int(n))
}

// IsUsed reports whether the node has to be emitted: something consumed
// its value, or the operation is required even when unused.
func (s *Selector) IsUsed(n ir.Node) bool {
	return ir.RequiredWhenUnused(s.g.Op(n)) || s.used.IsSet(int(n))
}

// IsReallyUsed ignores the required-when-unused escape and reports actual
// consumers only.
func (s *Selector) IsReallyUsed(n ir.Node) bool {
	return s.used.IsSet(int(n))
}

// IsLive reports a node that still awaits a definition for an actual
// consumer. Required-when-unused nodes without consumers are not live.
func (s *Selector) IsLive(n ir.Node) bool {
	return !s.IsDefined(n) && s.IsReallyUsed(n)
}

func (s *Selector) MarkAsUsed(n ir.Node) {
	s.used.Set(int(n))
}

func (s *Selector) GetEffectLevel(n ir.Node) int {
	return int(s.effectLevel[n])
}

func (s *Selector) SetEffectLevel(n ir.Node, lvl int) {
	s.effectLevel[n] = int32(lvl)
}

func (s *Selector) emit(op asm.Opcode, outs, ins, temps []asm.Operand) *asm.Instruction {
	if op.FlagsMode() == asm.FlagsNone {
		if wouts, wins, ok := s.t.Arity(op.Arch()); ok && (len(outs) != wouts || len(ins) != wins) {
			panic(fmt.Sprintf("%v: %d outs %d ins, want %d and %d", op.Arch(), len(outs), len(ins), wouts, wins))
		}
	}

	i := &asm.Instruction{Op: op, Outs: outs, Ins: ins, Temps: temps}

	pos := ir.NoPos
	if s.opts.AllPositions || isCall(op.Arch()) {
		pos = s.g.PosOf(s.curNode)
	}

	s.pend = append(s.pend, pendInstr{i: i, pos: pos, origin: s.curNode})

	return i
}

func (s *Selector) Emit(op asm.Opcode, out asm.Operand, ins ...asm.Operand) *asm.Instruction {
	var outs []asm.Operand

	if out.Kind != asm.OperandInvalid {
		outs = []asm.Operand{out}
	}

	return s.emit(op, outs, ins, nil)
}

// EmitIdentity makes n an alias of in without emitting code.
func (s *Selector) EmitIdentity(n, in ir.Node) {
	tlog.V("isel_rename").Printw("alias", "node", n, "of", in, "from", loc.Caller(1))

	s.MarkAsUsed(in)
	s.MarkAsDefined(n)

	s.seq.Rename(s.vregOf(n), s.vregOf(in))
}

func (s *Selector) updateMaxPushed(n int) {
	if n > s.maxPushedArgs {
		s.maxPushedArgs = n
	}
}

func (s *Selector) pick(c target.OpClass) asm.Opcode {
	op, ok := s.t.Pick(c)
	if !ok {
		panic(fmt.Sprintf("target %v cannot %v", s.t.Name(), c))
	}

	return op
}

func isCall(a asm.ArchOpcode) bool {
	switch a {
	case asm.ArchCallCodeObject, asm.ArchCallAddress, asm.ArchTailCallCodeObject, asm.ArchTailCallAddress:
		return true
	}

	return false
}

func (b Bailout) Error() string {
	return fmt.Sprintf("bailout: %v (node %v)", b.Reason, b.Node)
}
