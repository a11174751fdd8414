package value

import "math"

// Float is a 64-bit IEEE-754 value. A single quiet-NaN bit pattern is
// reserved for N/A; all other NaN patterns are not produced by this
// package but are treated as N/A on input for safety.
type Float float64

// naFloatBits is the reserved quiet-NaN pattern used for N/A.
const naFloatBits uint64 = 0x7FF8000000000001

func NAFloat() Float {
	return Float(math.Float64frombits(naFloatBits))
}

func (f Float) IsNA() bool {
	return math.Float64bits(float64(f)) == naFloatBits || math.IsNaN(float64(f))
}

// Match is reflexive across N/A (unlike IEEE equality) and identifies
// +0.0 with -0.0.
func (f Float) Match(o Float) bool {
	if f.IsNA() && o.IsNA() {
		return true
	}
	if f.IsNA() || o.IsNA() {
		return false
	}
	return float64(f) == float64(o)
}

// Equal is standard IEEE ==, with N/A propagation represented by the
// caller checking IsNA first; Equal itself just answers the IEEE question
// and is only meaningful when neither side is N/A.
func (f Float) Equal(o Float) bool {
	return float64(f) == float64(o)
}

func (f Float) Less(o Float) bool {
	if f.IsNA() {
		return false
	}
	if o.IsNA() {
		return true
	}
	return float64(f) < float64(o)
}

func (f Float) Add(o Float) Float {
	if f.IsNA() || o.IsNA() {
		return NAFloat()
	}
	return Float(float64(f) + float64(o))
}

func (f Float) Sub(o Float) Float {
	if f.IsNA() || o.IsNA() {
		return NAFloat()
	}
	return Float(float64(f) - float64(o))
}

func (f Float) Mul(o Float) Float {
	if f.IsNA() || o.IsNA() {
		return NAFloat()
	}
	return Float(float64(f) * float64(o))
}

func (f Float) Div(o Float) Float {
	if f.IsNA() || o.IsNA() {
		return NAFloat()
	}
	return Float(float64(f) / float64(o))
}

func (f Float) Mod(o Float) Float {
	if f.IsNA() || o.IsNA() {
		return NAFloat()
	}
	return Float(math.Mod(float64(f), float64(o)))
}

func (f Float) Neg() Float {
	if f.IsNA() {
		return NAFloat()
	}
	return Float(-float64(f))
}

// SortKey maps f to a uint64 radix-sort key: ascending key order matches
// ascending (or, when reverse is set, descending) numeric order. N/A
// always maps to ^uint64(0), sorting last regardless of direction.
func (f Float) SortKey(reverse bool) uint64 {
	if f.IsNA() {
		return ^uint64(0)
	}
	bits := math.Float64bits(float64(f))
	var k uint64
	if bits&(1<<63) != 0 {
		// Negative: flip all bits so larger magnitude sorts first (lower key).
		k = ^bits
	} else {
		// Non-negative: flip only the sign bit.
		k = bits | (1 << 63)
	}
	if reverse {
		return (^uint64(0) - 1) - k
	}
	return k
}

// NextAfter returns the float adjacent to f in the direction of toward,
// used to convert an exclusive range endpoint to an inclusive one. ±Inf
// are fixed points of NextAfter in the direction away from them.
func (f Float) NextAfter(toward Float) Float {
	if f.IsNA() || toward.IsNA() {
		return NAFloat()
	}
	return Float(math.Nextafter(float64(f), float64(toward)))
}
