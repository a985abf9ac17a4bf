// Package abi describes call linkage: where each argument and return value
// of a call lives, and how frames relate across tail calls. It is consumed
// by instruction selection and register allocation, never mutated by them.
package abi

type (
	// Location is a single argument or return location: either a fixed
	// register or a caller-stack slot.
	Location struct {
		Reg     int
		Slot    int
		OnStack bool
	}

	TargetType uint8

	Flags uint8

	CallDescriptor struct {
		Target TargetType

		// FixedTargetReg pins the callee address to one register.
		// -1 lets the register allocator choose.
		FixedTargetReg int

		Params  []Location
		Returns []Location

		Flags Flags

		// StackParamCount is the number of Params located on the stack.
		StackParamCount int
	}

	// Linkage describes the frame being compiled: its own incoming
	// descriptor plus descriptors for outgoing calls resolved by the
	// front end.
	Linkage struct {
		Incoming *CallDescriptor
	}
)

const (
	CallCodeObject TargetType = iota
	CallAddress
)

const (
	TailCallEligible Flags = 1 << iota
	NeedsFrameState
)

func RegisterLocation(reg int) Location {
	return Location{Reg: reg}
}

func StackLocation(slot int) Location {
	return Location{Slot: slot, OnStack: true}
}

func (f Flags) Has(x Flags) bool {
	return f&x != 0
}

// NewCallDescriptor assigns the first len(argRegs) arguments to registers
// and the rest to stack slots in increasing order.
func NewCallDescriptor(target TargetType, argRegs []int, nargs int, retRegs []int) *CallDescriptor {
	d := &CallDescriptor{
		Target:         target,
		FixedTargetReg: -1,
	}

	for i := 0; i < nargs; i++ {
		if i < len(argRegs) {
			d.Params = append(d.Params, RegisterLocation(argRegs[i]))
			continue
		}

		d.Params = append(d.Params, StackLocation(i-len(argRegs)))
		d.StackParamCount++
	}

	for _, r := range retRegs {
		d.Returns = append(d.Returns, RegisterLocation(r))
	}

	return d
}

func (l *Linkage) ParamLocation(i int) Location {
	return l.Incoming.Params[i]
}

func (l *Linkage) ReturnLocation(i int) Location {
	return l.Incoming.Returns[i]
}
