package milp

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"mixer/graph"
	"mixer/match"
)

// ErrNoBackend is returned when solving is requested but no exact
// backend was configured. The caller decides whether to fall back to
// the heuristic solver; this package never degrades silently.
var ErrNoBackend = errors.New("milp: no exact-solver backend available")

// ErrInvalidPartition means the backend's assignment failed structural
// validation — a constraint-formulation fault, reported distinctly
// from infeasibility.
var ErrInvalidPartition = errors.New("milp: backend returned a structurally invalid partition")

// Result is the outcome of an exact solve. Partition is nil unless the
// status carries an assignment; a timeout incumbent is included but
// flagged as not certified optimal.
type Result struct {
	Status    Status
	Partition match.Partition
	Objective float64
	Backend   string
	Elapsed   time.Duration
}

// Solver builds the mixed-integer formulation from a preference graph
// and delegates to a Backend under a wall-clock limit.
type Solver struct {
	graph     *graph.Graph
	prob      match.Problem
	backend   Backend
	timeLimit time.Duration
}

func New(g *graph.Graph, prob match.Problem, backend Backend, timeLimit time.Duration) *Solver {
	return &Solver{graph: g, prob: prob, backend: backend, timeLimit: timeLimit}
}

// Solve formulates and solves the instance exactly. Three solver
// outcomes are distinguished: optimal (assignment extracted and
// re-validated), infeasible (no partition satisfies the constraints),
// and timeout (the incumbent, when present, is returned with its
// status flagged as non-certified).
func (s *Solver) Solve() (Result, error) {
	if s.backend == nil {
		return Result{Status: StatusUnavailable}, ErrNoBackend
	}

	f, err := BuildFormulation(s.graph, s.prob)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	br, err := s.backend.Solve(f, s.timeLimit)
	elapsed := time.Since(start)
	if err != nil {
		return Result{Backend: s.backend.Name(), Elapsed: elapsed}, fmt.Errorf("milp: backend: %w", err)
	}

	res := Result{
		Status:    br.Status,
		Objective: br.Objective,
		Backend:   s.backend.Name(),
		Elapsed:   elapsed,
	}

	if br.X == nil {
		return res, nil
	}

	pt := f.Extract(br.X)
	if errs := match.Validate(pt, s.prob); len(errs) > 0 {
		return res, fmt.Errorf("%w: %s", ErrInvalidPartition, strings.Join(errs, "; "))
	}
	res.Partition = pt
	return res, nil
}
