package solver

import (
	"mixer/match"
)

// searchState is the working assignment during local search: the group
// slices plus a person->group index kept in sync, so a neighbor is a
// small description applied and reverted in place instead of a full
// partition copy.
type searchState struct {
	groups match.Partition
	idx    map[match.Person]int
}

func newSearchState(initial match.Partition) *searchState {
	st := &searchState{groups: initial.Clone()}
	st.idx = st.groups.Index()
	return st
}

// neighbor describes a single local change: exchanging persons A and B
// between groups From and To. Constructions fill every group to its
// exact size, including the terminal residue, so size-changing
// relocations can never produce a valid partition and the neighborhood
// consists of exchanges only.
type neighbor struct {
	a, b     match.Person
	from, to int
}

func (st *searchState) apply(nb neighbor) {
	st.groups[nb.from][posOf(st.groups[nb.from], nb.a)] = nb.b
	st.groups[nb.to][posOf(st.groups[nb.to], nb.b)] = nb.a
	st.idx[nb.a], st.idx[nb.b] = nb.to, nb.from
}

func (st *searchState) revert(nb neighbor) {
	st.groups[nb.from][posOf(st.groups[nb.from], nb.b)] = nb.a
	st.groups[nb.to][posOf(st.groups[nb.to], nb.a)] = nb.b
	st.idx[nb.a], st.idx[nb.b] = nb.from, nb.to
}

func posOf(group []match.Person, p match.Person) int {
	for i, member := range group {
		if member == p {
			return i
		}
	}
	return -1
}

// swapAllowed filters exchanges that would break structural
// constraints: in balanced or pairing mode only same-category
// exchanges keep every group's category counts intact.
func (s *Solver) swapAllowed(a, b match.Person) bool {
	if s.prob.Balanced || s.prob.Pairing {
		return a.Category == b.Category
	}
	return true
}

// neighbors enumerates every valid exchange of the current state: all
// cross-group person pairs passing the category filter.
func (s *Solver) neighbors(st *searchState) []neighbor {
	var nbs []neighbor
	for g1 := range st.groups {
		for g2 := g1 + 1; g2 < len(st.groups); g2++ {
			for _, a := range st.groups[g1] {
				for _, b := range st.groups[g2] {
					if s.swapAllowed(a, b) {
						nbs = append(nbs, neighbor{a: a, b: b, from: g1, to: g2})
					}
				}
			}
		}
	}
	return nbs
}

// randomNeighbor samples a single exchange candidate. A draw that
// violates the category filter is discarded; the caller treats that as
// a cooled, moveless iteration.
func (s *Solver) randomNeighbor(st *searchState) (neighbor, bool) {
	if len(st.groups) < 2 {
		return neighbor{}, false
	}
	g1 := s.rng.Intn(len(st.groups))
	g2 := s.rng.Intn(len(st.groups) - 1)
	if g2 >= g1 {
		g2++
	}
	if len(st.groups[g1]) == 0 || len(st.groups[g2]) == 0 {
		return neighbor{}, false
	}
	a := st.groups[g1][s.rng.Intn(len(st.groups[g1]))]
	b := st.groups[g2][s.rng.Intn(len(st.groups[g2]))]
	if !s.swapAllowed(a, b) {
		return neighbor{}, false
	}
	return neighbor{a: a, b: b, from: g1, to: g2}, true
}
