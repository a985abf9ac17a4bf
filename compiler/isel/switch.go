package isel

import (
	"sort"

	"github.com/rivlang/riv/compiler/asm"
	"github.com/rivlang/riv/compiler/ir"
	"github.com/rivlang/riv/compiler/target"
)

type (
	// SwitchInfo is the analyzed shape of one switch: case values, their
	// span, and the targets.
	SwitchInfo struct {
		Cases    []ir.SwitchCase
		Min, Max int64
		Default  int
	}
)

const maxSwitchCases = 1 << 16

// Table dispatch pays one entry per value in the span, a lookup pays two
// words per case. Weigh space against three rounds of time.
func (sw *SwitchInfo) preferTable(enabled bool) bool {
	n := int64(len(sw.Cases))
	if !enabled || n <= 4 {
		return false
	}

	r := sw.valueRange()
	if r == 0 || r > maxSwitchCases {
		return false
	}

	tableCost := (4 + r) + 3*3
	lookupCost := (3 + 2*n) + 3*n

	return tableCost <= lookupCost
}

// valueRange is the span of case values, 0 when it overflows.
func (sw *SwitchInfo) valueRange() int64 {
	r := sw.Max - sw.Min + 1
	if r <= 0 {
		return 0
	}

	return r
}

func (s *Selector) visitSwitch(n ir.Node, x ir.Switch) error {
	if len(x.Cases) > maxSwitchCases {
		return Bailout{Node: n, Reason: "too many switch cases"}
	}

	sw := SwitchInfo{Cases: x.Cases, Default: x.Default}

	for i, c := range x.Cases {
		v := int64(c.Value)

		if i == 0 || v < sw.Min {
			sw.Min = v
		}

		if i == 0 || v > sw.Max {
			sw.Max = v
		}
	}

	value := s.UseRegister(x.Value)

	if sw.preferTable(s.opts.JumpTables) {
		s.emitTableSwitch(&sw, value)
		return nil
	}

	s.emitBinarySearchSwitch(&sw, value)

	return nil
}

// emitTableSwitch dispatches through a jump table over the whole value
// span, holes and out-of-range values go to the default target.
func (s *Selector) emitTableSwitch(sw *SwitchInfo, value asm.Operand) {
	index := value

	if sw.Min != 0 {
		index = s.TempRegister()
	}

	ins := []asm.Operand{index, s.UseLabel(sw.Default)}
	ins = s.appendTableTargets(ins, sw)

	s.Emit(asm.MakeOpcode(asm.ArchTableSwitch), asm.Operand{}, ins...)

	if sw.Min == 0 {
		return
	}

	// emission is backwards: the rebase lands before the dispatch
	if canBeImmediate(sw.Min) {
		s.Emit(s.pick(target.OpSub32), index, value, asm.Immediate(sw.Min))
		return
	}

	// base does not fit the alu immediate field, materialize it
	base := s.TempRegister()
	s.Emit(s.pick(target.OpSub32), index, value, base)
	s.Emit(s.pick(target.OpMovImm), base, asm.Immediate(sw.Min))
}

func (s *Selector) appendTableTargets(ins []asm.Operand, sw *SwitchInfo) []asm.Operand {
	targets := make([]int, sw.valueRange())

	for i := range targets {
		targets[i] = sw.Default
	}

	for _, c := range sw.Cases {
		targets[int64(c.Value)-sw.Min] = c.Target
	}

	for _, t := range targets {
		ins = append(ins, s.UseLabel(t))
	}

	return ins
}

// emitBinarySearchSwitch dispatches through value-sorted (case, label)
// pairs the code generator bisects.
func (s *Selector) emitBinarySearchSwitch(sw *SwitchInfo, value asm.Operand) {
	cases := make([]ir.SwitchCase, len(sw.Cases))
	copy(cases, sw.Cases)

	sort.Slice(cases, func(i, j int) bool { return cases[i].Value < cases[j].Value })

	ins := []asm.Operand{value, s.UseLabel(sw.Default)}

	for _, c := range cases {
		ins = append(ins, asm.Immediate(int64(c.Value)), s.UseLabel(c.Target))
	}

	s.Emit(asm.MakeOpcode(asm.ArchBinarySearchSwitch), asm.Operand{}, ins...)
}
