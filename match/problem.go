package match

import (
	"errors"
	"fmt"
)

// ErrInfeasible marks a problem whose shape admits no valid partition,
// so construction must be refused rather than attempted.
var ErrInfeasible = errors.New("match: problem shape admits no valid partition")

// Problem fixes the shape of a grouping instance: how many participants
// each category has and how they must be partitioned.
type Problem struct {
	NumA      int
	NumB      int
	GroupSize int  // ignored in pairing mode
	Balanced  bool // each group holds equal counts from both categories
	Pairing   bool // groups of exactly two, one per category
}

// Total is the full participant count.
func (p Problem) Total() int {
	return p.NumA + p.NumB
}

// NumGroups is the group count fixed by the mode: min(NumA, NumB) pairs
// in pairing mode, ceil(total/size) groups otherwise.
func (p Problem) NumGroups() int {
	if p.Pairing {
		return min(p.NumA, p.NumB)
	}
	return (p.Total() + p.GroupSize - 1) / p.GroupSize
}

// SizeOf is the required member count of group g. All groups hold
// GroupSize members except the terminal group, which holds the residue.
func (p Problem) SizeOf(g int) int {
	if p.Pairing {
		return 2
	}
	if g == p.NumGroups()-1 {
		return p.Total() - (p.NumGroups()-1)*p.GroupSize
	}
	return p.GroupSize
}

// People enumerates every participant, category A first, in ordinal
// order.
func (p Problem) People() []Person {
	people := make([]Person, 0, p.Total())
	for i := 1; i <= p.NumA; i++ {
		people = append(people, Person{Category: CategoryA, Ordinal: i})
	}
	for i := 1; i <= p.NumB; i++ {
		people = append(people, Person{Category: CategoryB, Ordinal: i})
	}
	return people
}

// Contains reports whether the person falls inside the configured
// category counts.
func (p Problem) Contains(person Person) bool {
	if person.Ordinal < 1 {
		return false
	}
	switch person.Category {
	case CategoryA:
		return person.Ordinal <= p.NumA
	case CategoryB:
		return person.Ordinal <= p.NumB
	}
	return false
}

// Check rejects shapes no partition can satisfy: a non-positive group
// size outside pairing mode, and balanced category counts too skewed to
// put half of each category into every non-terminal group.
func (p Problem) Check() error {
	if p.Pairing {
		return nil
	}
	if p.GroupSize < 1 {
		return fmt.Errorf("%w: group size %d", ErrInfeasible, p.GroupSize)
	}
	if p.Balanced {
		half := p.GroupSize / 2
		k := p.NumGroups()
		if p.NumA < (k-1)*half || p.NumB < (k-1)*half {
			return fmt.Errorf("%w: %d A and %d B cannot fill %d balanced groups of %d",
				ErrInfeasible, p.NumA, p.NumB, k, p.GroupSize)
		}
	}
	return nil
}

// CheckEdges rejects edges that reference participants outside the
// configured counts. The core assumes cleaned input and fails loudly
// rather than dropping bad identifiers.
func (p Problem) CheckEdges(edges []Edge) error {
	for _, e := range edges {
		if !p.Contains(e.From) {
			return fmt.Errorf("match: edge source %s outside configured participants", e.From)
		}
		if !p.Contains(e.To) {
			return fmt.Errorf("match: edge target %s outside configured participants", e.To)
		}
		if e.Weight < 0 {
			return fmt.Errorf("match: edge %s->%s has negative weight %g", e.From, e.To, e.Weight)
		}
	}
	return nil
}
