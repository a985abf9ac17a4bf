package asm

type (
	// Opcode is the packed instruction word: architecture opcode in the
	// low bits, flags mode and flags condition above it.
	Opcode uint32

	ArchOpcode uint16

	FlagsMode uint8

	Condition uint8
)

// Generic opcodes understood by every backend. Target packages number
// their own opcodes from FirstTargetOpcode up.
const (
	ArchNop ArchOpcode = iota
	ArchJmp
	ArchRet
	ArchCallCodeObject
	ArchCallAddress
	ArchTailCallCodeObject
	ArchTailCallAddress
	ArchPush
	ArchTableSwitch
	ArchBinarySearchSwitch
	ArchDeoptimize
	ArchStackPointerGreaterThan
	ArchStackSlot

	FirstTargetOpcode ArchOpcode = 0x40
)

const (
	FlagsNone FlagsMode = iota
	FlagsBranch
	FlagsConditionalBranch
	FlagsDeoptimize
	FlagsSet
	FlagsConditionalSet
	FlagsTrap
	FlagsConditionalTrap
	FlagsSelect
)

const (
	CondEqual Condition = iota
	CondNotEqual
	CondSignedLessThan
	CondSignedGreaterThanOrEqual
	CondSignedLessThanOrEqual
	CondSignedGreaterThan
	CondUnsignedLessThan
	CondUnsignedGreaterThanOrEqual
	CondUnsignedLessThanOrEqual
	CondUnsignedGreaterThan
	CondOverflow
	CondNotOverflow
	CondNegative
	CondNotNegative
)

const (
	archBits  = 10
	modeShift = archBits
	modeBits  = 4
	condShift = modeShift + modeBits
)

func MakeOpcode(a ArchOpcode) Opcode {
	return Opcode(a)
}

func (o Opcode) Arch() ArchOpcode {
	return ArchOpcode(o & (1<<archBits - 1))
}

func (o Opcode) FlagsMode() FlagsMode {
	return FlagsMode(o >> modeShift & (1<<modeBits - 1))
}

func (o Opcode) Condition() Condition {
	return Condition(o >> condShift)
}

// WithFlags replaces the flags mode and condition fields of the word.
func (o Opcode) WithFlags(m FlagsMode, c Condition) Opcode {
	return o&(1<<modeShift-1) | Opcode(m)<<modeShift | Opcode(c)<<condShift
}

func NegateCondition(c Condition) Condition {
	switch c {
	case CondEqual:
		return CondNotEqual
	case CondNotEqual:
		return CondEqual
	case CondSignedLessThan:
		return CondSignedGreaterThanOrEqual
	case CondSignedGreaterThanOrEqual:
		return CondSignedLessThan
	case CondSignedLessThanOrEqual:
		return CondSignedGreaterThan
	case CondSignedGreaterThan:
		return CondSignedLessThanOrEqual
	case CondUnsignedLessThan:
		return CondUnsignedGreaterThanOrEqual
	case CondUnsignedGreaterThanOrEqual:
		return CondUnsignedLessThan
	case CondUnsignedLessThanOrEqual:
		return CondUnsignedGreaterThan
	case CondUnsignedGreaterThan:
		return CondUnsignedLessThanOrEqual
	case CondOverflow:
		return CondNotOverflow
	case CondNotOverflow:
		return CondOverflow
	case CondNegative:
		return CondNotNegative
	case CondNotNegative:
		return CondNegative
	default:
		panic(c)
	}
}

// CommuteCondition rewrites the condition for swapped compare operands.
func CommuteCondition(c Condition) Condition {
	switch c {
	case CondEqual, CondNotEqual, CondOverflow, CondNotOverflow, CondNegative, CondNotNegative:
		return c
	case CondSignedLessThan:
		return CondSignedGreaterThan
	case CondSignedGreaterThanOrEqual:
		return CondSignedLessThanOrEqual
	case CondSignedLessThanOrEqual:
		return CondSignedGreaterThanOrEqual
	case CondSignedGreaterThan:
		return CondSignedLessThan
	case CondUnsignedLessThan:
		return CondUnsignedGreaterThan
	case CondUnsignedGreaterThanOrEqual:
		return CondUnsignedLessThanOrEqual
	case CondUnsignedLessThanOrEqual:
		return CondUnsignedGreaterThanOrEqual
	case CondUnsignedGreaterThan:
		return CondUnsignedLessThan
	default:
		panic(c)
	}
}

func (m FlagsMode) String() string {
	switch m {
	case FlagsNone:
		return "none"
	case FlagsBranch:
		return "branch"
	case FlagsConditionalBranch:
		return "cond_branch"
	case FlagsDeoptimize:
		return "deoptimize"
	case FlagsSet:
		return "set"
	case FlagsConditionalSet:
		return "cond_set"
	case FlagsTrap:
		return "trap"
	case FlagsConditionalTrap:
		return "cond_trap"
	case FlagsSelect:
		return "select"
	default:
		panic(m)
	}
}

func (c Condition) String() string {
	switch c {
	case CondEqual:
		return "eq"
	case CondNotEqual:
		return "ne"
	case CondSignedLessThan:
		return "lt"
	case CondSignedGreaterThanOrEqual:
		return "ge"
	case CondSignedLessThanOrEqual:
		return "le"
	case CondSignedGreaterThan:
		return "gt"
	case CondUnsignedLessThan:
		return "lo"
	case CondUnsignedGreaterThanOrEqual:
		return "hs"
	case CondUnsignedLessThanOrEqual:
		return "ls"
	case CondUnsignedGreaterThan:
		return "hi"
	case CondOverflow:
		return "vs"
	case CondNotOverflow:
		return "vc"
	case CondNegative:
		return "mi"
	case CondNotNegative:
		return "pl"
	default:
		panic(c)
	}
}
