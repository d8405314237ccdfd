package match

import (
	"fmt"
	"slices"
	"strings"
)

// Validate checks a partition against the problem's structural
// constraints: coverage and uniqueness of every participant, group
// count, per-group sizes (the terminal group may hold the size
// remainder), pairing shape, and category balance. It is independent of
// any scoring. All violations are collected; a nil result means the
// partition is valid.
func Validate(pt Partition, p Problem) []string {
	var errs []string

	want := p.NumGroups()
	if len(pt) != want {
		errs = append(errs, fmt.Sprintf("expected %d groups, got %d", want, len(pt)))
	}

	if p.Pairing {
		for i, group := range pt {
			if len(group) != 2 {
				errs = append(errs, fmt.Sprintf("pair %d: expected 2 members, got %d", i+1, len(group)))
				continue
			}
			a, b := countCategories(group)
			if a != 1 || b != 1 {
				errs = append(errs, fmt.Sprintf("pair %d: expected one member per category, got %d A and %d B", i+1, a, b))
			}
		}
	} else {
		for i, group := range pt {
			if i == len(pt)-1 {
				if len(group) == 0 {
					errs = append(errs, fmt.Sprintf("group %d: terminal group is empty", i+1))
				}
				continue
			}
			if len(group) != p.GroupSize {
				errs = append(errs, fmt.Sprintf("group %d: expected %d members, got %d", i+1, p.GroupSize, len(group)))
			}
		}
	}

	seen := map[Person]int{}
	for _, group := range pt {
		for _, person := range group {
			seen[person]++
		}
	}
	var dups []string
	for person, n := range seen {
		if n > 1 {
			dups = append(dups, person.String())
		}
	}
	if len(dups) > 0 {
		slices.Sort(dups)
		errs = append(errs, "duplicate participants: "+strings.Join(dups, ", "))
	}

	var missing, extra []string
	var missingA, missingB int
	for _, person := range p.People() {
		if _, ok := seen[person]; !ok {
			missing = append(missing, person.String())
			if person.Category == CategoryA {
				missingA++
			} else {
				missingB++
			}
		}
	}
	for person := range seen {
		if !p.Contains(person) {
			extra = append(extra, person.String())
		}
	}
	// Pairing with unequal categories leaves the surplus of the larger
	// category unassigned; exactly that many omissions are allowed.
	allowedA, allowedB := 0, 0
	if p.Pairing {
		allowedA = max(0, p.NumA-p.NumB)
		allowedB = max(0, p.NumB-p.NumA)
	}
	if missingA > allowedA || missingB > allowedB {
		slices.Sort(missing)
		errs = append(errs, "missing participants: "+strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		slices.Sort(extra)
		errs = append(errs, "unknown participants: "+strings.Join(extra, ", "))
	}

	if p.Balanced && !p.Pairing {
		for i, group := range pt {
			a, b := countCategories(group)
			if i == len(pt)-1 {
				// Terminal remainder only needs to be as even as
				// parity permits.
				if diff := a - b; diff > len(group)%2 || diff < -(len(group)%2) {
					errs = append(errs, fmt.Sprintf("group %d: unbalanced terminal group, %d A vs %d B", i+1, a, b))
				}
				continue
			}
			half := p.GroupSize / 2
			if a != half || b != half {
				errs = append(errs, fmt.Sprintf("group %d: expected %d members per category, got %d A and %d B", i+1, half, a, b))
			}
		}
	}

	return errs
}

func countCategories(group []Person) (a, b int) {
	for _, person := range group {
		switch person.Category {
		case CategoryA:
			a++
		case CategoryB:
			b++
		}
	}
	return a, b
}
