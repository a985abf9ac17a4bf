package ir

import (
	"github.com/rivlang/riv/compiler/abi"
)

type (
	// Node is a stable operation identity within one Graph.
	Node int32

	// Pos is a source offset. NoPos means the operation has no position.
	Pos int32

	// Rep is the machine representation of a value.
	Rep uint8

	ConstKind  uint8
	CmpKind    uint8
	BranchHint uint8

	DeoptReason uint8
	TrapID      int32

	// Feedback identifies the profiling slot a deoptimization reports to.
	Feedback struct {
		Vector int32
		Slot   int32
	}

	// Graph is a scheduled operation graph: blocks in reverse postorder,
	// operations resolved by Node identity. It is immutable once built.
	Graph struct {
		Blocks []Block

		ops     []any
		pos     []Pos
		blockOf []int32
	}

	// Block knows its predecessors and whether it heads a loop.
	// The last node of Nodes is the block terminator.
	Block struct {
		Rpo   int
		Loop  bool
		Preds []int
		Nodes []Node
	}
)

const (
	Nil   Node = -1
	NoPos Pos  = -1
)

const (
	Word32 Rep = iota
	Word64
	Float64
	Tagged
	Simd128
)

const (
	ConstInt ConstKind = iota
	ConstFloat
	ConstHeapObject
	ConstExternal
	ConstRelocatableCall
)

const (
	Equal CmpKind = iota
	SignedLessThan
	SignedLessThanOrEqual
	UnsignedLessThan
	UnsignedLessThanOrEqual
)

const (
	NoHint BranchHint = iota
	LikelyTrue
	LikelyFalse
)

const (
	DeoptUnknown DeoptReason = iota
	DeoptWrongValue
	DeoptLostPrecision
	DeoptOutOfBounds
)

// Operations. One Go type per operation kind; consumers dispatch with an
// exhaustive type switch and panic on an unknown kind.
type (
	Param struct {
		Index int
	}

	Const struct {
		Kind  ConstKind
		Int   int64
		Float float64
	}

	Add struct {
		L, R Node
		Rep  Rep
	}

	Sub struct {
		L, R Node
		Rep  Rep
	}

	Mul struct {
		L, R Node
		Rep  Rep
	}

	And struct {
		L, R Node
		Rep  Rep
	}

	Or struct {
		L, R Node
		Rep  Rep
	}

	Xor struct {
		L, R Node
		Rep  Rep
	}

	Shl struct {
		L, R Node
		Rep  Rep
	}

	Shr struct {
		L, R Node
		Rep  Rep
	}

	Sar struct {
		L, R Node
		Rep  Rep
	}

	FAdd struct {
		L, R Node
	}

	FSub struct {
		L, R Node
	}

	FMul struct {
		L, R Node
	}

	FDiv struct {
		L, R Node
	}

	Cmp struct {
		L, R Node
		Kind CmpKind
		Rep  Rep
	}

	ChangeUint32ToUint64 struct {
		In Node
	}

	TruncateWord64ToWord32 struct {
		In Node
	}

	Load struct {
		Base      Node
		Index     Node // Nil if absent
		Offset    int32
		Rep       Rep
		Protected bool
	}

	Store struct {
		Base   Node
		Index  Node // Nil if absent
		Offset int32
		Value  Node
		Rep    Rep
	}

	Phi struct {
		Rep Rep
		Ins []Node // one per block predecessor, same order
	}

	Call struct {
		Callee     Node
		Args       []Node
		Desc       *abi.CallDescriptor
		FrameState Node // Nil if the call cannot deoptimize
		Handler    int  // exception handler block, -1 if none
	}

	TailCall struct {
		Callee Node
		Args   []Node
		Desc   *abi.CallDescriptor
	}

	Projection struct {
		In    Node
		Index int
	}

	Return struct {
		Values []Node
	}

	Goto struct {
		Target int
	}

	Branch struct {
		Cond        Node
		True, False int
		Hint        BranchHint
	}

	SwitchCase struct {
		Value  int32
		Target int
	}

	Switch struct {
		Value   Node
		Cases   []SwitchCase
		Default int
	}

	DeoptimizeIf struct {
		Cond       Node
		Negated    bool // deoptimize when Cond is false
		Reason     DeoptReason
		Feedback   Feedback
		FrameState Node
	}

	TrapIf struct {
		Cond    Node
		Negated bool
		Trap    TrapID
	}

	Select struct {
		Cond Node
		T, F Node
		Rep  Rep
	}

	// FrameState captures interpreter-visible state for deoptimization.
	// Height is the unoptimized frame height in slots.
	FrameState struct {
		Context     Node
		Locals      []Node
		Stack       []Node
		Accumulator Node
		Height      int
	}

	Shuffle struct {
		A, B    Node
		Pattern [16]byte
	}

	StackSlot struct {
		Size int32
	}

	StackPointerGreaterThan struct {
		Limit Node
	}
)

func (g *Graph) Op(n Node) any {
	return g.ops[n]
}

func (g *Graph) PosOf(n Node) Pos {
	return g.pos[n]
}

func (g *Graph) NumNodes() int {
	return len(g.ops)
}

func (g *Graph) BlockOf(n Node) int {
	return int(g.blockOf[n])
}

func (k CmpKind) String() string {
	switch k {
	case Equal:
		return "=="
	case SignedLessThan:
		return "<"
	case SignedLessThanOrEqual:
		return "<="
	case UnsignedLessThan:
		return "u<"
	case UnsignedLessThanOrEqual:
		return "u<="
	default:
		return "?"
	}
}

func (r Rep) String() string {
	switch r {
	case Word32:
		return "w32"
	case Word64:
		return "w64"
	case Float64:
		return "f64"
	case Tagged:
		return "tagged"
	case Simd128:
		return "s128"
	default:
		return "?"
	}
}
