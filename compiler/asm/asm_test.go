package asm

import (
	"testing"

	"github.com/rivlang/riv/compiler/ir"
)

func TestOpcodePacking(t *testing.T) {
	op := MakeOpcode(0x3f)

	if op.FlagsMode() != FlagsNone {
		t.Errorf("fresh opcode mode: %v", op.FlagsMode())
	}

	op = op.WithFlags(FlagsDeoptimize, CondUnsignedLessThanOrEqual)

	if op.Arch() != 0x3f {
		t.Errorf("arch clobbered: %x", op.Arch())
	}

	if op.FlagsMode() != FlagsDeoptimize {
		t.Errorf("mode: %v", op.FlagsMode())
	}

	if op.Condition() != CondUnsignedLessThanOrEqual {
		t.Errorf("cond: %v", op.Condition())
	}

	// replacing flags does not accumulate
	op = op.WithFlags(FlagsBranch, CondEqual)

	if op.FlagsMode() != FlagsBranch || op.Condition() != CondEqual {
		t.Errorf("rewrite: %v %v", op.FlagsMode(), op.Condition())
	}
}

func TestSequenceBlockBrackets(t *testing.T) {
	s := NewSequence()

	s.StartBlock(0)
	s.Add(&Instruction{Op: MakeOpcode(ArchNop)}, ir.NoPos, ir.Nil)
	s.EndBlock(0)

	r, ok := s.BlockAt(0)
	if !ok || r.Start != 0 || r.End != 1 {
		t.Errorf("block range: %+v %v", r, ok)
	}

	defer func() {
		if recover() == nil {
			t.Errorf("nested block start did not panic")
		}
	}()

	s.StartBlock(1)
	s.StartBlock(2)
}

func TestSequenceRejectsInstructionOutsideBlock(t *testing.T) {
	s := NewSequence()

	defer func() {
		if recover() == nil {
			t.Errorf("no panic")
		}
	}()

	s.Add(&Instruction{Op: MakeOpcode(ArchNop)}, ir.NoPos, ir.Nil)
}

func TestRenameChase(t *testing.T) {
	s := NewSequence()

	a := s.NextVReg()
	b := s.NextVReg()
	c := s.NextVReg()

	s.Rename(a, b)
	s.Rename(b, c)

	if got := s.Resolve(a); got != c {
		t.Errorf("resolve: %v != %v", got, c)
	}

	if got := s.Resolve(c); got != c {
		t.Errorf("terminal vreg: %v", got)
	}

	defer func() {
		if recover() == nil {
			t.Errorf("second rename did not panic")
		}
	}()

	s.Rename(a, c)
}

func TestFrameStateAttachment(t *testing.T) {
	s := NewSequence()

	s.StartBlock(0)
	i := s.Add(&Instruction{Op: MakeOpcode(ArchDeoptimize)}, ir.NoPos, ir.Nil)
	s.EndBlock(0)

	d := &FrameStateDescriptor{Height: 4}
	d.AddValue()
	d.AddDuplicate(0)
	d.AddValue()

	s.AttachFrameState(i, d)

	got, ok := s.FrameStateAt(i)
	if !ok || got != d {
		t.Fatalf("descriptor lost")
	}

	if got.OperandCount() != 2 {
		t.Errorf("operand count: %v", got.OperandCount())
	}

	if _, ok := s.FrameStateAt(i + 1); ok {
		t.Errorf("stray descriptor")
	}
}
