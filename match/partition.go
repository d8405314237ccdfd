package match

import "slices"

// Partition is an ordered sequence of groups whose union should be the
// full participant set, each person appearing exactly once.
type Partition [][]Person

// Clone returns a deep copy; groups never alias the source.
func (pt Partition) Clone() Partition {
	out := make(Partition, len(pt))
	for i, g := range pt {
		out[i] = slices.Clone(g)
	}
	return out
}

// Index maps every person to the index of the group holding them. On
// duplicates the first occurrence wins; Validate reports the fault.
func (pt Partition) Index() map[Person]int {
	idx := make(map[Person]int)
	for g, group := range pt {
		for _, person := range group {
			if _, ok := idx[person]; !ok {
				idx[person] = g
			}
		}
	}
	return idx
}
