package asm

import (
	"fmt"

	"github.com/rivlang/riv/compiler/ir"
)

type (
	Instruction struct {
		Op Opcode

		Outs  []Operand
		Ins   []Operand
		Temps []Operand
	}

	// BlockRange is the half-open [Start, End) slice of Instrs belonging
	// to one block, in final (forward) order.
	BlockRange struct {
		Rpo   int
		Start int
		End   int
	}

	Phi struct {
		Out int
		Ins []int
	}

	// Sequence accumulates the selected code. Blocks are opened and
	// closed with StartBlock and EndBlock and must not nest.
	Sequence struct {
		Instrs []*Instruction

		// Positions and Origins are aligned with Instrs.
		Positions []ir.Pos
		Origins   []ir.Node

		Blocks []BlockRange

		// Phis is keyed by block rpo.
		Phis map[int][]Phi

		FrameStates []*FrameStateDescriptor

		// frameStateOf maps an instruction index to its descriptor
		// index in FrameStates.
		frameStateOf map[int]int

		rename []int

		cur      int
		nextVReg int
	}
)

func NewSequence() *Sequence {
	return &Sequence{
		Phis:         map[int][]Phi{},
		frameStateOf: map[int]int{},
		cur:          -1,
	}
}

func (s *Sequence) NextVReg() (v int) {
	v = s.nextVReg
	s.nextVReg++
	s.rename = append(s.rename, -1)

	return v
}

func (s *Sequence) VRegCount() int { return s.nextVReg }

// Rename redirects every later use of vreg from to vreg to.
func (s *Sequence) Rename(from, to int) {
	if s.rename[from] != -1 {
		panic(fmt.Sprintf("vreg %d renamed twice", from))
	}

	s.rename[from] = to
}

// Resolve follows the rename chain to the representative vreg.
func (s *Sequence) Resolve(v int) int {
	for s.rename[v] != -1 {
		v = s.rename[v]
	}

	return v
}

func (s *Sequence) StartBlock(rpo int) {
	if s.cur != -1 {
		panic(fmt.Sprintf("block %d still open", s.cur))
	}

	s.cur = rpo
	s.Blocks = append(s.Blocks, BlockRange{Rpo: rpo, Start: len(s.Instrs)})
}

func (s *Sequence) EndBlock(rpo int) {
	if s.cur != rpo {
		panic(fmt.Sprintf("closing block %d, open is %d", rpo, s.cur))
	}

	s.Blocks[len(s.Blocks)-1].End = len(s.Instrs)
	s.cur = -1
}

func (s *Sequence) Add(i *Instruction, pos ir.Pos, origin ir.Node) int {
	if s.cur == -1 {
		panic("instruction outside block")
	}

	s.Instrs = append(s.Instrs, i)
	s.Positions = append(s.Positions, pos)
	s.Origins = append(s.Origins, origin)

	return len(s.Instrs) - 1
}

func (s *Sequence) AddPhi(rpo int, p Phi) {
	s.Phis[rpo] = append(s.Phis[rpo], p)
}

// AttachFrameState links the instruction at index to a deopt descriptor
// and returns the descriptor id.
func (s *Sequence) AttachFrameState(index int, d *FrameStateDescriptor) int {
	id := len(s.FrameStates)

	s.FrameStates = append(s.FrameStates, d)
	s.frameStateOf[index] = id

	return id
}

func (s *Sequence) FrameStateAt(index int) (d *FrameStateDescriptor, ok bool) {
	id, ok := s.frameStateOf[index]
	if !ok {
		return nil, false
	}

	return s.FrameStates[id], true
}

// Reorder permutes the instructions of one block range in place. perm[i]
// is the old local index of the instruction that ends up at position i.
// Side tables and frame state attachments follow their instructions.
func (s *Sequence) Reorder(start int, perm []int) {
	n := len(perm)

	instrs := make([]*Instruction, n)
	pos := make([]ir.Pos, n)
	org := make([]ir.Node, n)

	fs := map[int]int{}

	for i, old := range perm {
		instrs[i] = s.Instrs[start+old]
		pos[i] = s.Positions[start+old]
		org[i] = s.Origins[start+old]

		if id, ok := s.frameStateOf[start+old]; ok {
			fs[start+i] = id
			delete(s.frameStateOf, start+old)
		}
	}

	copy(s.Instrs[start:], instrs)
	copy(s.Positions[start:], pos)
	copy(s.Origins[start:], org)

	for i, id := range fs {
		s.frameStateOf[i] = id
	}
}

func (s *Sequence) BlockAt(rpo int) (r BlockRange, ok bool) {
	for _, b := range s.Blocks {
		if b.Rpo == rpo {
			return b, true
		}
	}

	return r, false
}
