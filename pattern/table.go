package pattern

import (
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// DefaultSignature is the signature a metronome starts with.
const DefaultSignature = "4"

// Table maps a time signature id to its accent pattern. A Table is never
// mutated after construction so it can be shared freely.
type Table struct {
	patterns map[string][]Accent
}

var defaultTable = mustTable(initializeBeatPatterns())

func initializeBeatPatterns() map[string][]Accent {
	S, M, W := Strong, Medium, Weak

	out := map[string][]Accent{
		"1":  {S},
		"2":  {S, W},
		"3":  {S, W, W},
		"4":  {S, W, W, W},
		"5":  {S, W, W, W, W},
		"6":  {S, W, W, W, W, W},
		"7":  {S, W, W, W, W, W, W},
		"8":  {S, W, W, W, W, W, W, W},
		"9":  {S, W, W, W, W, W, W, W, W},
		"10": {S, W, W, W, W, W, W, W, W, W},
		"11": {S, W, W, W, W, W, W, W, W, W, W},
		"12": {S, W, W, W, W, W, W, W, W, W, W, W},

		// grouped meters, secondary groups start on a medium accent
		"5S":  {S, W, M, W, W},
		"6S":  {S, W, W, M, W, W},
		"7S":  {S, W, M, W, M, W, W},
		"9S":  {S, W, W, M, W, W, M, W, W},
		"12S": {S, W, W, M, W, W, M, W, W, M, W, W},
	}

	return out
}

func mustTable(patterns map[string][]Accent) *Table {
	t, err := NewTable(patterns)
	if err != nil {
		panic(err)
	}
	return t
}

// Default returns the built-in pattern table.
func Default() *Table {
	return defaultTable
}

// NewTable validates and copies patterns into a new Table.
func NewTable(patterns map[string][]Accent) (*Table, error) {
	t := &Table{patterns: make(map[string][]Accent, len(patterns))}
	for id, p := range patterns {
		if err := validate(id, p); err != nil {
			return nil, err
		}
		t.patterns[id] = slices.Clone(p)
	}
	return t, nil
}

// Extend returns a new table holding t's patterns plus extra. Entries in extra
// replace patterns with the same id.
func (t *Table) Extend(extra map[string][]Accent) (*Table, error) {
	merged := t.All()
	for id, p := range extra {
		merged[id] = p
	}
	return NewTable(merged)
}

func validate(id string, p []Accent) error {
	if strings.TrimSpace(id) == "" {
		return InvalidPatternError{ID: id, Reason: "empty signature id"}
	}
	if len(p) == 0 {
		return InvalidPatternError{ID: id, Reason: "pattern has no beats"}
	}
	for i, a := range p {
		if !a.Valid() {
			return InvalidPatternError{ID: id, Reason: "unknown accent at beat " + strconv.Itoa(i)}
		}
	}
	return nil
}

// Lookup returns a copy of the pattern for id.
func (t *Table) Lookup(id string) ([]Accent, bool) {
	p, ok := t.patterns[id]
	if !ok {
		return nil, false
	}
	return slices.Clone(p), true
}

// Has reports whether id is a known signature.
func (t *Table) Has(id string) bool {
	_, ok := t.patterns[id]
	return ok
}

// Len returns the number of beats in the measure for id, or 0 if unknown.
func (t *Table) Len(id string) int {
	return len(t.patterns[id])
}

// All returns a deep copy of the table contents.
func (t *Table) All() map[string][]Accent {
	out := make(map[string][]Accent, len(t.patterns))
	for id, p := range t.patterns {
		out[id] = slices.Clone(p)
	}
	return out
}

// IDs lists the signature ids ordered by beat count, plain meters before their
// accented variants ("7" before "7S").
func (t *Table) IDs() []string {
	ids := maps.Keys(t.patterns)
	slices.SortFunc(ids, lessID)
	return ids
}

// Next returns the id following current in IDs order, wrapping around.
func (t *Table) Next(current string) string {
	ids := t.IDs()
	if len(ids) == 0 {
		return current
	}
	for i, id := range ids {
		if id == current {
			return ids[(i+1)%len(ids)]
		}
	}
	return ids[0]
}

func lessID(a, b string) bool {
	na, sa := splitID(a)
	nb, sb := splitID(b)
	if na != nb {
		return na < nb
	}
	return sa < sb
}

// splitID separates the leading beat count from any variant suffix. Ids
// without a numeric prefix sort after every numbered id.
func splitID(id string) (int, string) {
	end := 0
	for end < len(id) && id[end] >= '0' && id[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(id[:end])
	if err != nil {
		return int(^uint(0) >> 1), id
	}
	return n, id[end:]
}
