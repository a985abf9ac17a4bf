// Package shuffle canonicalizes byte-shuffle patterns before opcode
// selection.
package shuffle

// Canonicalize rewrites a 16-byte shuffle pattern over two vector inputs
// into canonical form. Indices 0..15 pick from the first input, 16..31
// from the second.
//
// When both inputs are the same node, or the pattern only touches one
// input, the shuffle degrades to a swizzle over a single input and every
// index is reduced to 0..15. needSwap reports that the caller has to
// exchange the two inputs: either the pattern used only the second input,
// or a true two-input shuffle did not start with a first-input index.
func Canonicalize(pattern [16]byte, inputsEqual bool) (out [16]byte, needSwap, isSwizzle bool) {
	out = pattern

	if inputsEqual {
		for i := range out {
			out[i] &= 15
		}

		return out, false, true
	}

	lo, hi := false, false

	for _, x := range out {
		if x < 16 {
			lo = true
		} else {
			hi = true
		}
	}

	switch {
	case !hi:
		return out, false, true
	case !lo:
		for i := range out {
			out[i] &= 15
		}

		return out, true, true
	}

	// Two-input shuffle. Machines want the first used input first.
	if out[0] >= 16 {
		for i := range out {
			out[i] ^= 16
		}

		needSwap = true
	}

	return out, needSwap, false
}
