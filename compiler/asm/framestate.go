package asm

type (
	// StateValue is one entry of a deopt frame description. A duplicate
	// entry reuses the operand of an earlier entry instead of carrying
	// its own.
	StateValue struct {
		Duplicate bool

		// Index of the original entry, valid when Duplicate.
		Index int
	}

	FrameStateDescriptor struct {
		Values []StateValue

		// Height is the unoptimized frame height in slots.
		Height int
	}
)

func (d *FrameStateDescriptor) AddValue() int {
	d.Values = append(d.Values, StateValue{})

	return len(d.Values) - 1
}

func (d *FrameStateDescriptor) AddDuplicate(index int) {
	d.Values = append(d.Values, StateValue{Duplicate: true, Index: index})
}

// OperandCount is the number of instruction inputs the descriptor
// consumes, excluding duplicates.
func (d *FrameStateDescriptor) OperandCount() (n int) {
	for _, v := range d.Values {
		if !v.Duplicate {
			n++
		}
	}

	return n
}
