package solver

import (
	"slices"

	"mixer/match"
)

func (s *Solver) categories() (as, bs []match.Person) {
	for _, p := range s.prob.People() {
		if p.Category == match.CategoryA {
			as = append(as, p)
		} else {
			bs = append(bs, p)
		}
	}
	return as, bs
}

func (s *Solver) shuffle(people []match.Person) []match.Person {
	out := slices.Clone(people)
	s.rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// RandomPartition constructs a partition by independent per-category
// shuffles sliced into groups (or pairs). Without a balance requirement
// the whole population is shuffled as one.
func (s *Solver) RandomPartition() match.Partition {
	as, bs := s.categories()

	if s.prob.Pairing {
		return s.pairUp(s.shuffle(as), s.shuffle(bs))
	}
	if s.prob.Balanced {
		return s.sliceBalanced(s.shuffle(as), s.shuffle(bs))
	}
	return s.slicePlain(s.shuffle(append(slices.Clone(as), bs...)))
}

// GreedyPartition orders persons within each category by descending
// preference cardinality and slices in that order, so heavily connected
// participants land in early groups together. In pairing mode all
// cross-category pairs are ranked by summed bidirectional weight and
// selected greedily, with arbitrary pairing for leftovers.
func (s *Solver) GreedyPartition() match.Partition {
	as, bs := s.categories()

	if s.prob.Pairing {
		return s.greedyPairs(as, bs)
	}

	if s.prob.Balanced {
		byOutDegree := func(a, b match.Person) int {
			if d := s.graph.OutDegree(b) - s.graph.OutDegree(a); d != 0 {
				return d
			}
			return a.Ordinal - b.Ordinal
		}
		as = slices.Clone(as)
		bs = slices.Clone(bs)
		slices.SortFunc(as, byOutDegree)
		slices.SortFunc(bs, byOutDegree)
		return s.sliceBalanced(as, bs)
	}

	// Popularity plus breadth: incoming interest counts full, expressed
	// interest counts half.
	all := append(slices.Clone(as), bs...)
	slices.SortFunc(all, func(a, b match.Person) int {
		sa := float64(s.graph.InDegree(a)) + 0.5*float64(s.graph.OutDegree(a))
		sb := float64(s.graph.InDegree(b)) + 0.5*float64(s.graph.OutDegree(b))
		switch {
		case sb > sa:
			return 1
		case sa > sb:
			return -1
		}
		if a.Less(b) {
			return -1
		}
		return 1
	})
	return s.slicePlain(all)
}

func (s *Solver) sliceBalanced(as, bs []match.Person) match.Partition {
	k := s.prob.NumGroups()
	half := s.prob.GroupSize / 2
	pt := make(match.Partition, k)
	for i := range k {
		if i == k-1 {
			pt[i] = append(slices.Clone(as[i*half:]), bs[i*half:]...)
			continue
		}
		pt[i] = append(slices.Clone(as[i*half:(i+1)*half]), bs[i*half:(i+1)*half]...)
	}
	return pt
}

func (s *Solver) slicePlain(all []match.Person) match.Partition {
	k := s.prob.NumGroups()
	pt := make(match.Partition, k)
	for i := range k {
		if i == k-1 {
			pt[i] = slices.Clone(all[i*s.prob.GroupSize:])
			continue
		}
		pt[i] = slices.Clone(all[i*s.prob.GroupSize : (i+1)*s.prob.GroupSize])
	}
	return pt
}

func (s *Solver) pairUp(as, bs []match.Person) match.Partition {
	k := s.prob.NumGroups()
	pt := make(match.Partition, k)
	for i := range k {
		pt[i] = []match.Person{as[i], bs[i]}
	}
	return pt
}

func (s *Solver) greedyPairs(as, bs []match.Person) match.Partition {
	type scored struct {
		a, b  match.Person
		score float64
	}
	var candidates []scored
	for _, a := range as {
		for _, b := range bs {
			if w := s.graph.Weight(a, b) + s.graph.Weight(b, a); w > 0 {
				candidates = append(candidates, scored{a: a, b: b, score: w})
			}
		}
	}
	slices.SortFunc(candidates, func(x, y scored) int {
		switch {
		case y.score > x.score:
			return 1
		case x.score > y.score:
			return -1
		}
		if d := x.a.Ordinal - y.a.Ordinal; d != 0 {
			return d
		}
		return x.b.Ordinal - y.b.Ordinal
	})

	k := s.prob.NumGroups()
	usedA := make(map[match.Person]bool)
	usedB := make(map[match.Person]bool)
	var pt match.Partition
	for _, c := range candidates {
		if usedA[c.a] || usedB[c.b] {
			continue
		}
		pt = append(pt, []match.Person{c.a, c.b})
		usedA[c.a] = true
		usedB[c.b] = true
		if len(pt) == k {
			break
		}
	}

	var restA, restB []match.Person
	for _, a := range as {
		if !usedA[a] {
			restA = append(restA, a)
		}
	}
	for _, b := range bs {
		if !usedB[b] {
			restB = append(restB, b)
		}
	}
	for i := 0; len(pt) < k && i < len(restA) && i < len(restB); i++ {
		pt = append(pt, []match.Person{restA[i], restB[i]})
	}

	return pt
}
