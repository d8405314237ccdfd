// Package solver produces high-scoring partitions by local search:
// random or greedy construction improved by steepest-ascent hill
// climbing or simulated annealing, repeated across independent
// restarts. It offers no optimality guarantee; the milp package holds
// the exact counterpart.
package solver

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"mixer/graph"
	"mixer/match"
)

const (
	AlgorithmHillClimb = "hill_climbing"
	AlgorithmAnneal    = "simulated_annealing"

	InitialRandom = "random"
	InitialGreedy = "greedy"
)

// Params tunes construction and search.
type Params struct {
	Algorithm     string
	Initial       string
	MaxIterations int
	TempStart     float64
	TempEnd       float64
	CoolingRate   float64
	NumRestarts   int
}

var DefaultParams = Params{
	Algorithm:     AlgorithmAnneal,
	Initial:       InitialGreedy,
	MaxIterations: 10000,
	TempStart:     10.0,
	TempEnd:       0.01,
	CoolingRate:   0.99,
	NumRestarts:   5,
}

// ErrNoSolution means no restart produced a valid partition.
var ErrNoSolution = errors.New("solver: no valid partition found")

// ErrInvalidPartition means the best partition found failed structural
// validation. That is an internal neighborhood-generation fault, not a
// search failure, and is reported distinctly from ErrNoSolution.
var ErrInvalidPartition = errors.New("solver: best partition failed validation")

// Result is the outcome of a multi-restart run.
type Result struct {
	Partition  match.Partition
	Score      float64
	Iterations int
	Restarts   int
	Elapsed    time.Duration
	Warnings   []string
}

// Solver holds the immutable problem parameters and a seeded generator.
// The generator is explicit so restarts and tests are reproducible
// without global coupling.
type Solver struct {
	graph  *graph.Graph
	prob   match.Problem
	params Params
	rng    *rand.Rand
}

func New(g *graph.Graph, prob match.Problem, params Params, rng *rand.Rand) *Solver {
	return &Solver{graph: g, prob: prob, params: params, rng: rng}
}

// Solve runs the configured algorithm from NumRestarts independently
// constructed initial partitions and keeps the best valid result. An
// invalid construction is skipped with a warning rather than counted as
// a failure. Warnings are accumulated and returned, never printed.
func (s *Solver) Solve() (Result, error) {
	if err := s.prob.Check(); err != nil {
		return Result{}, err
	}

	start := time.Now()
	res := Result{Score: math.Inf(-1)}

	for restart := range s.params.NumRestarts {
		var initial match.Partition
		if s.params.Initial == InitialRandom {
			initial = s.RandomPartition()
		} else {
			initial = s.GreedyPartition()
		}

		if errs := match.Validate(initial, s.prob); len(errs) > 0 {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("restart %d: invalid initial partition, skipped: %s", restart+1, strings.Join(errs, "; ")))
			continue
		}

		var pt match.Partition
		var score float64
		var iters int
		if s.params.Algorithm == AlgorithmHillClimb {
			pt, score, iters = s.HillClimb(initial)
		} else {
			pt, score, iters = s.Anneal(initial)
		}
		res.Iterations += iters
		res.Restarts++

		if score > res.Score {
			res.Score = score
			res.Partition = pt
		}
	}

	res.Elapsed = time.Since(start)

	if res.Partition == nil {
		return res, ErrNoSolution
	}
	if errs := match.Validate(res.Partition, s.prob); len(errs) > 0 {
		return res, fmt.Errorf("%w: %s", ErrInvalidPartition, strings.Join(errs, "; "))
	}
	return res, nil
}

// HillClimb runs steepest-ascent hill climbing: every neighbor is
// evaluated each iteration and the strictly best-improving one taken.
// It terminates at a local optimum or the iteration budget and never
// returns a partition scoring below its input.
func (s *Solver) HillClimb(initial match.Partition) (match.Partition, float64, int) {
	st := newSearchState(initial)
	score := s.graph.IndexScore(st.idx)
	iters := 0

	for iters < s.params.MaxIterations {
		var best neighbor
		bestScore := score
		found := false

		for _, nb := range s.neighbors(st) {
			st.apply(nb)
			if ns := s.graph.IndexScore(st.idx); ns > bestScore {
				bestScore = ns
				best = nb
				found = true
			}
			st.revert(nb)
		}

		if !found {
			break
		}
		st.apply(best)
		score = bestScore
		iters++
	}

	return st.groups.Clone(), score, iters
}

// Anneal runs simulated annealing: one random neighbor per iteration,
// accepted unconditionally when improving and with probability
// exp(-(current-neighbor)/T) otherwise. Temperature decays by
// CoolingRate each iteration down to the TempEnd floor. The best
// partition seen is returned, not the final one.
func (s *Solver) Anneal(initial match.Partition) (match.Partition, float64, int) {
	st := newSearchState(initial)
	score := s.graph.IndexScore(st.idx)

	best := st.groups.Clone()
	bestScore := score

	temp := s.params.TempStart
	iters := 0

	for temp > s.params.TempEnd && iters < s.params.MaxIterations {
		nb, ok := s.randomNeighbor(st)
		if ok {
			st.apply(nb)
			ns := s.graph.IndexScore(st.idx)
			if ns > score || s.rng.Float64() < math.Exp(-(score-ns)/temp) {
				score = ns
				if score > bestScore {
					bestScore = score
					best = st.groups.Clone()
				}
			} else {
				st.revert(nb)
			}
		}

		temp *= s.params.CoolingRate
		iters++
	}

	return best, bestScore, iters
}
