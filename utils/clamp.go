package utils

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Clamp limits v to the interval [lo, hi]. The bounds may be given in either order.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if lo > hi {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampSample keeps a mixed audio sample inside the [-1,1] range the speaker accepts.
func ClampSample(s float64) float64 {
	if math.IsNaN(s) {
		return 0
	}
	return Clamp(s, -1, 1)
}
