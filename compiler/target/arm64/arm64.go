// Package arm64 is the aarch64 backend description.
package arm64

import (
	"github.com/rivlang/riv/compiler/asm"
	"github.com/rivlang/riv/compiler/target"
)

type (
	Target struct {
		features target.Features
	}
)

const (
	Add32 asm.ArchOpcode = asm.FirstTargetOpcode + iota
	Add64
	Adds32
	Adds64
	Sub32
	Sub64
	Subs32
	Subs64
	Mul32
	Mul64
	And32
	And64
	Orr32
	Orr64
	Eor32
	Eor64
	Lsl32
	Lsl64
	Lsr32
	Lsr64
	Asr32
	Asr64
	Cmp32
	Cmp64
	Ccmp32
	Ccmp64
	Mov
	Mov32
	Ldr32
	Ldr64
	LdrF64
	LdrQ
	Str32
	Str64
	StrF64
	StrQ
	Fadd64
	Fsub64
	Fmul64
	Fdiv64
	Fmin64 // quietens signalling NaNs
	TblShuffle
	TblSwizzle
)

var picks = [...]asm.ArchOpcode{
	target.OpAdd32:         Add32,
	target.OpAdd64:         Add64,
	target.OpAddSetFlags32: Adds32,
	target.OpAddSetFlags64: Adds64,
	target.OpSub32:         Sub32,
	target.OpSub64:         Sub64,
	target.OpSubSetFlags32: Subs32,
	target.OpSubSetFlags64: Subs64,
	target.OpMul32:         Mul32,
	target.OpMul64:         Mul64,
	target.OpAnd32:         And32,
	target.OpAnd64:         And64,
	target.OpOr32:          Orr32,
	target.OpOr64:          Orr64,
	target.OpXor32:         Eor32,
	target.OpXor64:         Eor64,
	target.OpShl32:         Lsl32,
	target.OpShl64:         Lsl64,
	target.OpShr32:         Lsr32,
	target.OpShr64:         Lsr64,
	target.OpSar32:         Asr32,
	target.OpSar64:         Asr64,
	target.OpCmp32:         Cmp32,
	target.OpCmp64:         Cmp64,
	target.OpCcmp32:        Ccmp32,
	target.OpCcmp64:        Ccmp64,
	target.OpMovImm:        Mov,
	target.OpMov32:         Mov32,
	target.OpLoad32:        Ldr32,
	target.OpLoad64:        Ldr64,
	target.OpLoadF64:       LdrF64,
	target.OpLoadS128:      LdrQ,
	target.OpStore32:       Str32,
	target.OpStore64:       Str64,
	target.OpStoreF64:      StrF64,
	target.OpStoreS128:     StrQ,
	target.OpFAdd64:        Fadd64,
	target.OpFSub64:        Fsub64,
	target.OpFMul64:        Fmul64,
	target.OpFDiv64:        Fdiv64,
	target.OpFSilenceNaN:   Fmin64,
	target.OpS128Shuffle:   TblShuffle,
	target.OpS128Swizzle:   TblSwizzle,
}

// arities lists the fixed outs/ins shape per opcode. Flag consumers and
// the memory ops have variable shapes and stay out of the table.
var arities = [...][2]int8{
	Add32 - asm.FirstTargetOpcode:      {1, 2},
	Add64 - asm.FirstTargetOpcode:      {1, 2},
	Sub32 - asm.FirstTargetOpcode:      {1, 2},
	Sub64 - asm.FirstTargetOpcode:      {1, 2},
	Mul32 - asm.FirstTargetOpcode:      {1, 2},
	Mul64 - asm.FirstTargetOpcode:      {1, 2},
	And32 - asm.FirstTargetOpcode:      {1, 2},
	And64 - asm.FirstTargetOpcode:      {1, 2},
	Orr32 - asm.FirstTargetOpcode:      {1, 2},
	Orr64 - asm.FirstTargetOpcode:      {1, 2},
	Eor32 - asm.FirstTargetOpcode:      {1, 2},
	Eor64 - asm.FirstTargetOpcode:      {1, 2},
	Lsl32 - asm.FirstTargetOpcode:      {1, 2},
	Lsl64 - asm.FirstTargetOpcode:      {1, 2},
	Lsr32 - asm.FirstTargetOpcode:      {1, 2},
	Lsr64 - asm.FirstTargetOpcode:      {1, 2},
	Asr32 - asm.FirstTargetOpcode:      {1, 2},
	Asr64 - asm.FirstTargetOpcode:      {1, 2},
	Mov - asm.FirstTargetOpcode:        {1, 1},
	Mov32 - asm.FirstTargetOpcode:      {1, 1},
	Fadd64 - asm.FirstTargetOpcode:     {1, 2},
	Fsub64 - asm.FirstTargetOpcode:     {1, 2},
	Fmul64 - asm.FirstTargetOpcode:     {1, 2},
	Fdiv64 - asm.FirstTargetOpcode:     {1, 2},
	Fmin64 - asm.FirstTargetOpcode:     {1, 1},
	TblShuffle - asm.FirstTargetOpcode: {1, 6},
	TblSwizzle - asm.FirstTargetOpcode: {1, 5},
}

func New(features ...target.Feature) *Target {
	return &Target{features: target.MakeFeatures(features...)}
}

func (t *Target) Name() string { return "arm64" }

func (t *Target) Features() target.Features { return t.features }

func (t *Target) Pick(c target.OpClass) (op asm.Opcode, ok bool) {
	if int(c) >= len(picks) || picks[c] == 0 {
		return 0, false
	}

	return asm.MakeOpcode(picks[c]), true
}

func (t *Target) Arity(a asm.ArchOpcode) (outs, ins int, ok bool) {
	i := int(a - asm.FirstTargetOpcode)
	if a < asm.FirstTargetOpcode || i >= len(arities) || arities[i] == [2]int8{} {
		return 0, 0, false
	}

	return int(arities[i][0]), int(arities[i][1]), true
}

// All alu register-register forms write the full X register with the
// upper half cleared.
func (t *Target) Word32OpsZeroUpperBits() bool { return true }

func (t *Target) SupportsCmpChain() bool { return true }
