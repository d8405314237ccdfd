// Package milp computes provably optimal partitions, within a time
// budget, through a mixed-integer linear formulation of the grouping
// problem. Solving is delegated to a Backend; the backend's absence is
// an explicit, reportable condition, and any fallback to the heuristic
// path is the caller's decision.
package milp

import (
	"errors"

	"mixer/graph"
	"mixer/match"
)

// ErrPairingMode is returned when a formulation is requested for
// pairing mode, which the exact path does not define.
var ErrPairingMode = errors.New("milp: pairing mode is not supported")

// Formulation is a 0/1 integer program in maximization form:
// maximize Objective·v subject to AUb·v <= BUb, AEq·v == BEq, with
// every variable binary.
type Formulation struct {
	NumVars   int
	Objective []float64
	AUb       [][]float64
	BUb       []float64
	AEq       [][]float64
	BEq       []float64

	people []match.Person
	groups int
}

// xCol is the column of the assignment binary x[p,g]: 1 iff person p
// is in group g.
func (f *Formulation) xCol(p, g int) int {
	return p*f.groups + g
}

// BuildFormulation encodes the grouping problem. For every unordered
// person pair with a non-zero co-location score and every group, an
// auxiliary binary y is AND-linearized against the two assignment
// binaries (y <= x1, y <= x2, y >= x1+x2-1) and the pair's score taken
// from graph.PairScore enters the objective on y — the same convention
// the heuristic scoring path uses, evaluated per pair-group combination.
func BuildFormulation(g *graph.Graph, prob match.Problem) (*Formulation, error) {
	if prob.Pairing {
		return nil, ErrPairingMode
	}
	if err := prob.Check(); err != nil {
		return nil, err
	}

	people := prob.People()
	k := prob.NumGroups()
	f := &Formulation{people: people, groups: k}
	numX := len(people) * k

	type pairTerm struct {
		p1, p2 int
		score  float64
	}
	var pairs []pairTerm
	for i := range people {
		for j := i + 1; j < len(people); j++ {
			if score := g.PairScore(people[i], people[j]); score != 0 {
				pairs = append(pairs, pairTerm{p1: i, p2: j, score: score})
			}
		}
	}

	f.NumVars = numX + len(pairs)*k
	f.Objective = make([]float64, f.NumVars)

	yCol := numX
	for _, pr := range pairs {
		for grp := range k {
			x1 := f.xCol(pr.p1, grp)
			x2 := f.xCol(pr.p2, grp)
			f.Objective[yCol] = pr.score

			f.addUb(map[int]float64{yCol: 1, x1: -1}, 0)
			f.addUb(map[int]float64{yCol: 1, x2: -1}, 0)
			f.addUb(map[int]float64{x1: 1, x2: 1, yCol: -1}, 1)
			yCol++
		}
	}

	// Each person sits in exactly one group.
	for p := range people {
		row := map[int]float64{}
		for grp := range k {
			row[f.xCol(p, grp)] = 1
		}
		f.addEq(row, 1)
	}

	// Each group holds its configured size, the terminal group the
	// residue.
	for grp := range k {
		row := map[int]float64{}
		for p := range people {
			row[f.xCol(p, grp)] = 1
		}
		f.addEq(row, float64(prob.SizeOf(grp)))
	}

	if prob.Balanced {
		f.addBalance(prob)
	}

	return f, nil
}

func (f *Formulation) addBalance(prob match.Problem) {
	k := f.groups
	half := prob.GroupSize / 2
	// Terminal count is forced by what the earlier groups consume;
	// Check has already rejected a negative residual.
	lastA := prob.NumA - (k-1)*half

	for grp := range k {
		rowA := map[int]float64{}
		for p, person := range f.people {
			if person.Category == match.CategoryA {
				rowA[f.xCol(p, grp)] = 1
			}
		}
		wantA := half
		if grp == k-1 {
			wantA = lastA
		}
		f.addEq(rowA, float64(wantA))
	}
}

func (f *Formulation) addUb(coeffs map[int]float64, b float64) {
	f.AUb = append(f.AUb, f.denseRow(coeffs))
	f.BUb = append(f.BUb, b)
}

func (f *Formulation) addEq(coeffs map[int]float64, b float64) {
	f.AEq = append(f.AEq, f.denseRow(coeffs))
	f.BEq = append(f.BEq, b)
}

func (f *Formulation) denseRow(coeffs map[int]float64) []float64 {
	row := make([]float64, f.NumVars)
	for col, v := range coeffs {
		row[col] = v
	}
	return row
}

// Extract converts a variable vector into a partition by picking, for
// every person, the group with the largest assignment value.
func (f *Formulation) Extract(x []float64) match.Partition {
	pt := make(match.Partition, f.groups)
	for p, person := range f.people {
		best, bestVal := 0, x[f.xCol(p, 0)]
		for grp := 1; grp < f.groups; grp++ {
			if v := x[f.xCol(p, grp)]; v > bestVal {
				best, bestVal = grp, v
			}
		}
		pt[best] = append(pt[best], person)
	}
	return pt
}
