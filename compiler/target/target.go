// Package target abstracts the machine backend behind a runtime capability
// object. Instruction selection never names machine opcodes directly, it
// asks the target to pick one for an operation class.
package target

import (
	"github.com/rivlang/riv/compiler/asm"
	"github.com/rivlang/riv/compiler/ir"
)

type (
	Feature uint8

	Features uint64

	// OpClass is a machine-independent operation the selector may need
	// an instruction for. A target that cannot serve a class reports it
	// via the ok result of Pick.
	OpClass uint8

	Target interface {
		Name() string
		Features() Features

		Pick(OpClass) (op asm.Opcode, ok bool)

		// Arity reports the fixed operand shape of a target opcode.
		// Opcodes with variable shapes, loads and stores among them,
		// are not listed and report ok false.
		Arity(a asm.ArchOpcode) (outs, ins int, ok bool)

		// Word32OpsZeroUpperBits reports whether the 32-bit alu ops
		// of this machine clear bits 32..63 of the destination.
		Word32OpsZeroUpperBits() bool

		// SupportsCmpChain reports whether compare chains can be
		// fused with conditional-compare instructions.
		SupportsCmpChain() bool
	}
)

const (
	FeatureLSE Feature = iota
	FeatureFP16
	FeatureDotProd
	FeatureSHA3
)

const (
	OpAdd32 OpClass = iota
	OpAdd64
	OpAddSetFlags32
	OpAddSetFlags64
	OpSub32
	OpSub64
	OpSubSetFlags32
	OpSubSetFlags64
	OpMul32
	OpMul64
	OpAnd32
	OpAnd64
	OpOr32
	OpOr64
	OpXor32
	OpXor64
	OpShl32
	OpShl64
	OpShr32
	OpShr64
	OpSar32
	OpSar64
	OpCmp32
	OpCmp64
	OpCcmp32
	OpCcmp64
	OpMovImm
	OpMov32
	OpLoad32
	OpLoad64
	OpLoadF64
	OpLoadS128
	OpStore32
	OpStore64
	OpStoreF64
	OpStoreS128
	OpFAdd64
	OpFSub64
	OpFMul64
	OpFDiv64
	OpFSilenceNaN
	OpS128Shuffle
	OpS128Swizzle

	opClassCount
)

func (f Features) Contains(x Feature) bool {
	return f&(1<<x) != 0
}

func MakeFeatures(fs ...Feature) (r Features) {
	for _, f := range fs {
		r |= 1 << f
	}

	return r
}

// LoadClass maps a load representation to its operation class.
func LoadClass(rep ir.Rep) OpClass {
	switch rep {
	case ir.Word32:
		return OpLoad32
	case ir.Word64, ir.Tagged:
		return OpLoad64
	case ir.Float64:
		return OpLoadF64
	case ir.Simd128:
		return OpLoadS128
	default:
		panic(rep)
	}
}

func StoreClass(rep ir.Rep) OpClass {
	switch rep {
	case ir.Word32:
		return OpStore32
	case ir.Word64, ir.Tagged:
		return OpStore64
	case ir.Float64:
		return OpStoreF64
	case ir.Simd128:
		return OpStoreS128
	default:
		panic(rep)
	}
}
