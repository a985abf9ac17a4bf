package isel

import (
	"fmt"

	"github.com/rivlang/riv/compiler/asm"
	"github.com/rivlang/riv/compiler/ir"
)

type (
	// Continuation says what to do with the flags a compare-like
	// instruction produces: branch, deoptimize, materialize a bool,
	// trap, or select between two values. Accessors panic when asked
	// about a mode the continuation is not in.
	Continuation struct {
		mode asm.FlagsMode
		cond asm.Condition

		compares []ChainCompare

		trueBlock  int
		falseBlock int
		hint       ir.BranchHint

		reason     ir.DeoptReason
		feedback   ir.Feedback
		frameState ir.Node

		trap ir.TrapID

		result     ir.Node
		trueValue  ir.Node
		falseValue ir.Node
	}

	// ChainCompare is one conditional-compare step of a fused chain.
	// The first step sets flags unconditionally, each later one runs
	// under the accumulated condition.
	ChainCompare struct {
		Op   asm.Opcode
		L, R ir.Node
		Cond asm.Condition

		// Conjunction: this step is ANDed with the chain so far,
		// otherwise ORed.
		Conjunction bool
	}
)

// Compare chains longer than this are not fused and fall back to
// sequential compares.
const MaxCompareChainSize = 4

func ForBranch(cond asm.Condition, trueBlock, falseBlock int) Continuation {
	return Continuation{mode: asm.FlagsBranch, cond: cond, trueBlock: trueBlock, falseBlock: falseBlock}
}

func ForHintedBranch(cond asm.Condition, trueBlock, falseBlock int, hint ir.BranchHint) Continuation {
	c := ForBranch(cond, trueBlock, falseBlock)
	c.hint = hint

	return c
}

func ForConditionalBranch(compares []ChainCompare, cond asm.Condition, trueBlock, falseBlock int) Continuation {
	return Continuation{mode: asm.FlagsConditionalBranch, cond: cond, compares: compares, trueBlock: trueBlock, falseBlock: falseBlock}
}

func ForDeoptimize(cond asm.Condition, reason ir.DeoptReason, feedback ir.Feedback, frameState ir.Node) Continuation {
	return Continuation{mode: asm.FlagsDeoptimize, cond: cond, reason: reason, feedback: feedback, frameState: frameState}
}

func ForSet(cond asm.Condition, result ir.Node) Continuation {
	return Continuation{mode: asm.FlagsSet, cond: cond, result: result}
}

func ForConditionalSet(compares []ChainCompare, cond asm.Condition, result ir.Node) Continuation {
	return Continuation{mode: asm.FlagsConditionalSet, cond: cond, compares: compares, result: result}
}

func ForTrap(cond asm.Condition, trap ir.TrapID) Continuation {
	return Continuation{mode: asm.FlagsTrap, cond: cond, trap: trap}
}

func ForConditionalTrap(compares []ChainCompare, cond asm.Condition, trap ir.TrapID) Continuation {
	return Continuation{mode: asm.FlagsConditionalTrap, cond: cond, compares: compares, trap: trap}
}

func ForSelect(cond asm.Condition, result, trueValue, falseValue ir.Node) Continuation {
	return Continuation{mode: asm.FlagsSelect, cond: cond, result: result, trueValue: trueValue, falseValue: falseValue}
}

func (c *Continuation) Mode() asm.FlagsMode { return c.mode }

func (c *Continuation) IsNone() bool   { return c.mode == asm.FlagsNone }
func (c *Continuation) IsBranch() bool { return c.mode == asm.FlagsBranch }
func (c *Continuation) IsSet() bool {
	return c.mode == asm.FlagsSet || c.mode == asm.FlagsConditionalSet
}
func (c *Continuation) IsDeoptimize() bool { return c.mode == asm.FlagsDeoptimize }
func (c *Continuation) IsTrap() bool {
	return c.mode == asm.FlagsTrap || c.mode == asm.FlagsConditionalTrap
}
func (c *Continuation) IsSelect() bool { return c.mode == asm.FlagsSelect }

func (c *Continuation) IsConditional() bool {
	return c.mode == asm.FlagsConditionalBranch || c.mode == asm.FlagsConditionalSet || c.mode == asm.FlagsConditionalTrap
}

func (c *Continuation) Condition() asm.Condition {
	c.check(c.mode != asm.FlagsNone, "condition")

	return c.cond
}

func (c *Continuation) Compares() []ChainCompare {
	c.check(c.IsConditional(), "compares")

	return c.compares
}

func (c *Continuation) TrueBlock() int {
	c.check(c.mode == asm.FlagsBranch || c.mode == asm.FlagsConditionalBranch, "true block")

	return c.trueBlock
}

func (c *Continuation) FalseBlock() int {
	c.check(c.mode == asm.FlagsBranch || c.mode == asm.FlagsConditionalBranch, "false block")

	return c.falseBlock
}

func (c *Continuation) Hint() ir.BranchHint {
	c.check(c.mode == asm.FlagsBranch, "hint")

	return c.hint
}

func (c *Continuation) Reason() ir.DeoptReason {
	c.check(c.mode == asm.FlagsDeoptimize, "reason")

	return c.reason
}

func (c *Continuation) Feedback() ir.Feedback {
	c.check(c.mode == asm.FlagsDeoptimize, "feedback")

	return c.feedback
}

func (c *Continuation) FrameState() ir.Node {
	c.check(c.mode == asm.FlagsDeoptimize, "frame state")

	return c.frameState
}

func (c *Continuation) Trap() ir.TrapID {
	c.check(c.IsTrap(), "trap")

	return c.trap
}

func (c *Continuation) Result() ir.Node {
	c.check(c.IsSet() || c.IsSelect(), "result")

	return c.result
}

func (c *Continuation) TrueValue() ir.Node {
	c.check(c.IsSelect(), "true value")

	return c.trueValue
}

func (c *Continuation) FalseValue() ir.Node {
	c.check(c.IsSelect(), "false value")

	return c.falseValue
}

// Negate flips the condition. Chained continuations carry per-step
// conditions and cannot be negated as a whole.
func (c *Continuation) Negate() {
	c.check(!c.IsConditional(), "negate")

	c.cond = asm.NegateCondition(c.cond)
}

// Commute adjusts the condition for swapped compare operands.
func (c *Continuation) Commute() {
	c.check(!c.IsConditional(), "commute")

	c.cond = asm.CommuteCondition(c.cond)
}

func (c *Continuation) Overwrite(cond asm.Condition) {
	c.check(!c.IsConditional(), "overwrite")

	c.cond = cond
}

// OverwriteAndNegateIfEqual installs the consumed compare's condition,
// negated when the continuation was testing for equality with zero.
func (c *Continuation) OverwriteAndNegateIfEqual(cond asm.Condition) {
	c.check(c.cond == asm.CondEqual || c.cond == asm.CondNotEqual, "overwrite-negate")

	neg := c.cond == asm.CondEqual
	c.cond = cond

	if neg {
		c.cond = asm.NegateCondition(c.cond)
	}
}

// OverwriteUnsignedIfSigned downgrades a signed condition to its unsigned
// counterpart, for operands known to have a clear sign bit.
func (c *Continuation) OverwriteUnsignedIfSigned() {
	switch c.cond {
	case asm.CondSignedLessThan:
		c.cond = asm.CondUnsignedLessThan
	case asm.CondSignedLessThanOrEqual:
		c.cond = asm.CondUnsignedLessThanOrEqual
	case asm.CondSignedGreaterThan:
		c.cond = asm.CondUnsignedGreaterThan
	case asm.CondSignedGreaterThanOrEqual:
		c.cond = asm.CondUnsignedGreaterThanOrEqual
	}
}

// Encode packs the continuation mode and condition into the opcode word.
func (c *Continuation) Encode(op asm.Opcode) asm.Opcode {
	if c.mode == asm.FlagsNone {
		return op
	}

	return op.WithFlags(c.mode, c.cond)
}

func (c *Continuation) check(ok bool, what string) {
	if !ok {
		panic(fmt.Sprintf("%v of %v continuation", what, c.mode))
	}
}
