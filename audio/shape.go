package audio

import "math"

// TwoPi is one full oscillator cycle in radians.
const TwoPi = 2 * math.Pi

// Shape maps an oscillator phase in [0,1) to a sample in [-1,1].
type Shape func(phase float64) float64

// Sine is the default oscillator shape.
func Sine(phase float64) float64 {
	return math.Sin(TwoPi * phase)
}

// Square flips between full positive and negative swing at half phase.
func Square(phase float64) float64 {
	if phase < 0.5 {
		return 1
	}
	return -1
}

// BuildSawtoothShape returns a sawtooth in a fixed direction.
func BuildSawtoothShape(down bool) Shape {
	if down {
		return func(phase float64) float64 {
			return 1 - 2*phase
		}
	}
	return func(phase float64) float64 {
		return 2*phase - 1
	}
}

// phaseAt returns the oscillator phase in [0,1) after elapsed seconds.
func phaseAt(freq, elapsed float64) float64 {
	p := freq * elapsed
	return p - math.Floor(p)
}
