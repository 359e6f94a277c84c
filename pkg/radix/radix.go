// Package radix packs fixed-width integer tuples into a single dense index
// using mixed-radix composition. The first field is the most significant.
package radix

import "fmt"

// Radix holds the cardinality of each field of a tuple.
type Radix []int

// New returns a Radix for the given cardinalities. Every cardinality must be
// at least 1.
func New(cards ...int) (Radix, error) {
	for i, c := range cards {
		if c < 1 {
			return nil, fmt.Errorf("field %d has cardinality %d", i, c)
		}
	}
	r := make(Radix, len(cards))
	copy(r, cards)
	return r, nil
}

// MustNew is like New but panics on invalid cardinalities.
func MustNew(cards ...int) Radix {
	r, err := New(cards...)
	if err != nil {
		panic(err)
	}
	return r
}

// Size is the number of distinct tuples, i.e. the product of all cardinalities.
func (r Radix) Size() int {
	size := 1
	for _, c := range r {
		size *= c
	}
	return size
}

// Encode composes fields into an index in [0, Size()).
func (r Radix) Encode(fields []int) (int, error) {
	if len(fields) != len(r) {
		return 0, fmt.Errorf("expected %d fields, got %d", len(r), len(fields))
	}
	idx := 0
	for i, f := range fields {
		if f < 0 || f >= r[i] {
			return 0, fmt.Errorf("field %d value %d out of range [0, %d)", i, f, r[i])
		}
		idx = idx*r[i] + f
	}
	return idx, nil
}

// Decode splits an index back into its fields.
func (r Radix) Decode(idx int) ([]int, error) {
	if idx < 0 || idx >= r.Size() {
		return nil, fmt.Errorf("index %d out of range [0, %d)", idx, r.Size())
	}
	fields := make([]int, len(r))
	for i := len(r) - 1; i >= 0; i-- {
		fields[i] = idx % r[i]
		idx /= r[i]
	}
	return fields, nil
}
