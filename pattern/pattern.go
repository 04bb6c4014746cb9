package pattern

import "fmt"

// Accent classifies a beat within a measure. The numeric values match the
// entries used when patterns are written out by hand or in a config file.
type Accent int

const (
	Weak Accent = iota
	Strong
	Medium
)

func (a Accent) String() string {
	switch a {
	case Strong:
		return "strong"
	case Medium:
		return "medium"
	case Weak:
		return "weak"
	default:
		return fmt.Sprintf("accent(%d)", int(a))
	}
}

// Valid reports whether a is one of the known accent levels.
func (a Accent) Valid() bool {
	return a == Weak || a == Strong || a == Medium
}

// FromInts converts raw pattern entries into accents, rejecting unknown values.
func FromInts(values []int) ([]Accent, error) {
	out := make([]Accent, len(values))
	for i, v := range values {
		a := Accent(v)
		if !a.Valid() {
			return nil, InvalidPatternError{Reason: fmt.Sprintf("entry %d has unknown accent %d", i, v)}
		}
		out[i] = a
	}
	return out, nil
}

// InvalidPatternError is returned when a pattern can't be added to a table.
type InvalidPatternError struct {
	ID     string
	Reason string
}

func (err InvalidPatternError) Error() string {
	if err.ID == "" {
		return fmt.Sprintf("invalid beat pattern: %s", err.Reason)
	}
	return fmt.Sprintf("invalid beat pattern %q: %s", err.ID, err.Reason)
}
