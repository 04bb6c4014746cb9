package audio

import (
	"fmt"
	"math"
)

// Envelope is a two-point gain envelope: the gain rises from zero to Peak over
// Attack seconds, then ramps exponentially to Floor, arriving Decay seconds
// after the tone starts. A zero Decay holds Peak for the life of the tone.
type Envelope struct {
	Peak   float64
	Attack float64

	// AttackCurve shapes the rise, mapping [0,1] to [0,1]. Nil is linear.
	AttackCurve func(float64) float64

	Floor float64
	Decay float64
}

// Hold returns an envelope that sits at gain for the whole tone.
func Hold(gain float64) Envelope {
	return Envelope{Peak: gain}
}

// Validate checks the envelope can be rendered. Exponential ramps can't pass
// through zero, so both points must be positive once a decay is set.
func (e Envelope) Validate() error {
	if e.Peak <= 0 || math.IsNaN(e.Peak) {
		return InvalidToneError{Reason: fmt.Sprintf("envelope peak %v must be positive", e.Peak)}
	}
	if e.Attack < 0 || e.Decay < 0 {
		return InvalidToneError{Reason: "envelope times can't be negative"}
	}
	if e.Decay > 0 {
		if e.Floor <= 0 {
			return InvalidToneError{Reason: fmt.Sprintf("envelope floor %v must be positive for an exponential decay", e.Floor)}
		}
		if e.Decay <= e.Attack {
			return InvalidToneError{Reason: "envelope decay must end after the attack"}
		}
	}
	return nil
}

// Gain returns the envelope value t seconds after the tone started.
func (e Envelope) Gain(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t < e.Attack {
		x := t / e.Attack
		if e.AttackCurve != nil {
			x = e.AttackCurve(x)
		}
		return e.Peak * x
	}
	if e.Decay <= 0 {
		return e.Peak
	}
	if t >= e.Decay {
		return e.Floor
	}
	progress := (t - e.Attack) / (e.Decay - e.Attack)
	return e.Peak * math.Pow(e.Floor/e.Peak, progress)
}
