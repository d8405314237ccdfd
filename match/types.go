// Package match holds the shared value types of the grouping problem:
// participants, preference edges, partitions, and the structural
// validator. It has no knowledge of scoring or search.
package match

import "strconv"

// Category is one of the two participant sides. Every event has a
// balanced-by-design split of participants across the two categories.
type Category string

const (
	CategoryA Category = "A"
	CategoryB Category = "B"
)

// Person identifies a participant by category and a positive ordinal
// unique within that category. Persons are immutable values.
type Person struct {
	Category Category
	Ordinal  int
}

func (p Person) String() string {
	return string(p.Category) + strconv.Itoa(p.Ordinal)
}

// Less orders persons by category, then ordinal.
func (p Person) Less(q Person) bool {
	if p.Category != q.Category {
		return p.Category < q.Category
	}
	return p.Ordinal < q.Ordinal
}

// Edge is a directed interest: From expresses interest in To with the
// given non-negative strength. An edge and its reverse are independent.
type Edge struct {
	From   Person
	To     Person
	Weight float64
}

// Pair is an unordered person pair in canonical order (X.Less(Y)).
type Pair struct {
	X Person `json:"x"`
	Y Person `json:"y"`
}

// MakePair returns the canonical pair for a and b.
func MakePair(a, b Person) Pair {
	if b.Less(a) {
		a, b = b, a
	}
	return Pair{X: a, Y: b}
}

// OrderedPair is a directed person pair, used for penalty bookkeeping.
type OrderedPair struct {
	From Person `json:"from"`
	To   Person `json:"to"`
}

// PenaltySet marks one-directional interests carried over from a prior
// round that went unreciprocated when the two were last grouped.
type PenaltySet map[OrderedPair]struct{}

// Contains reports whether the directed pair (from, to) is penalized.
func (s PenaltySet) Contains(from, to Person) bool {
	_, ok := s[OrderedPair{From: from, To: to}]
	return ok
}
