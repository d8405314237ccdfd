package milp

import (
	"math"
	"time"

	"github.com/willauld/lpsimplex"
)

// Status classifies the outcome of an exact solve.
type Status string

const (
	StatusOptimal            Status = "optimal"
	StatusInfeasible         Status = "infeasible"
	StatusTimeoutIncumbent   Status = "timeout_with_incumbent"
	StatusTimeoutNoIncumbent Status = "timeout_without_incumbent"
	StatusUnavailable        Status = "backend_unavailable"
)

// BackendResult carries the backend's status, the best assignment found
// (nil when none), and its objective value.
type BackendResult struct {
	Status    Status
	X         []float64
	Objective float64
}

// Backend is the abstract exact-solving capability: solve a
// formulation under a wall-clock limit and report status plus
// assignment. Concrete backends are swappable, and absence of any
// backend is a normal, testable branch rather than a runtime fault.
type Backend interface {
	Name() string
	Solve(f *Formulation, timeLimit time.Duration) (BackendResult, error)
}

// SimplexBackend solves the binary program by branch-and-bound over LP
// relaxations computed with the lpsimplex solver.
type SimplexBackend struct {
	MaxIter int     // simplex iteration cap per relaxation
	Tol     float64 // integrality and bound tolerance
}

// NewSimplexBackend returns a backend with the default per-relaxation
// iteration cap and tolerance.
func NewSimplexBackend() *SimplexBackend {
	return &SimplexBackend{MaxIter: 4000, Tol: 1e-6}
}

func (b *SimplexBackend) Name() string {
	return "lpsimplex branch-and-bound"
}

// node is a branch-and-bound search node: per-variable bound overrides
// on top of the binary 0..1 box.
type node struct {
	lower []float64
	upper []float64
}

const (
	relaxOptimal = iota
	relaxInfeasible
	relaxFailed
)

// relax solves the LP relaxation of f under the node's bounds. The
// formulation maximizes, lpsimplex minimizes, so the objective is
// negated on the way in and out. Bounds are encoded as extra
// inequality rows over the solver's default non-negativity.
func (b *SimplexBackend) relax(f *Formulation, nd node) (x []float64, obj float64, outcome int) {
	c := make([]float64, f.NumVars)
	for i, v := range f.Objective {
		c[i] = -v
	}

	aub := make([][]float64, 0, len(f.AUb)+2*f.NumVars)
	bub := make([]float64, 0, len(f.BUb)+2*f.NumVars)
	aub = append(aub, f.AUb...)
	bub = append(bub, f.BUb...)
	for i := range f.NumVars {
		row := make([]float64, f.NumVars)
		row[i] = 1
		aub = append(aub, row)
		bub = append(bub, nd.upper[i])
		if nd.lower[i] > 0 {
			low := make([]float64, f.NumVars)
			low[i] = -1
			aub = append(aub, low)
			bub = append(bub, -nd.lower[i])
		}
	}

	res := lpsimplex.LPSimplex(c, aub, bub, f.AEq, f.BEq, nil,
		lpsimplex.Callbackfunc(nil), false, b.MaxIter, 1e-12, false)

	if !res.Success {
		if res.Status == 2 {
			return nil, 0, relaxInfeasible
		}
		return nil, 0, relaxFailed
	}
	return res.X, -res.Fun, relaxOptimal
}

// Solve runs depth-first branch-and-bound. On deadline expiry it
// returns control with the incumbent, if any, flagged as not certified
// optimal rather than blocking.
func (b *SimplexBackend) Solve(f *Formulation, timeLimit time.Duration) (BackendResult, error) {
	deadline := time.Now().Add(timeLimit)

	root := node{
		lower: make([]float64, f.NumVars),
		upper: make([]float64, f.NumVars),
	}
	for i := range root.upper {
		root.upper[i] = 1
	}

	var bestX []float64
	bestObj := math.Inf(-1)
	stack := []node{root}

	// Without an incumbent the objective is left at zero, never the
	// -Inf tracking sentinel.
	timeoutResult := func() BackendResult {
		if bestX != nil {
			return BackendResult{Status: StatusTimeoutIncumbent, X: bestX, Objective: bestObj}
		}
		return BackendResult{Status: StatusTimeoutNoIncumbent}
	}

	rootFeasible := false
	for len(stack) > 0 {
		if time.Now().After(deadline) {
			return timeoutResult(), nil
		}

		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		x, obj, outcome := b.relax(f, nd)
		if outcome != relaxOptimal {
			continue
		}
		rootFeasible = true
		if obj <= bestObj+b.Tol {
			continue
		}

		branch := b.fractionalVar(x)
		if branch < 0 {
			if obj > bestObj {
				bestObj = obj
				bestX = x
			}
			continue
		}

		zero := node{lower: cloneBounds(nd.lower), upper: cloneBounds(nd.upper)}
		one := node{lower: cloneBounds(nd.lower), upper: cloneBounds(nd.upper)}
		zero.upper[branch] = 0
		one.lower[branch] = 1
		stack = append(stack, zero, one)
	}

	if bestX == nil {
		if !rootFeasible {
			return BackendResult{Status: StatusInfeasible}, nil
		}
		// Every branch was pruned or failed without an integral point.
		return BackendResult{Status: StatusTimeoutNoIncumbent}, nil
	}
	return BackendResult{Status: StatusOptimal, X: bestX, Objective: bestObj}, nil
}

// fractionalVar picks the most fractional variable, or -1 when the
// point is integral within tolerance.
func (b *SimplexBackend) fractionalVar(x []float64) int {
	best := -1
	bestDist := b.Tol
	for i, v := range x {
		frac := math.Abs(v - math.Round(v))
		if frac > bestDist {
			bestDist = frac
			best = i
		}
	}
	return best
}

func cloneBounds(src []float64) []float64 {
	out := make([]float64, len(src))
	copy(out, src)
	return out
}
