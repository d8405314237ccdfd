package solver

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mixer/graph"
	"mixer/match"
)

func p(id string) match.Person {
	person, err := match.ParsePerson(id)
	if err != nil {
		panic(err)
	}
	return person
}

func edge(from, to string, w float64) match.Edge {
	return match.Edge{From: p(from), To: p(to), Weight: w}
}

func newSolver(t *testing.T, edges []match.Edge, prob match.Problem, params Params, seed int64) *Solver {
	t.Helper()
	require.NoError(t, prob.CheckEdges(edges))
	g := graph.New(edges, graph.Options{MutualWeight: 2})
	return New(g, prob, params, rand.New(rand.NewSource(seed)))
}

func TestRandomPartitionValid(t *testing.T) {
	cases := []match.Problem{
		{NumA: 4, NumB: 4, GroupSize: 4, Balanced: true},
		{NumA: 5, NumB: 5, GroupSize: 4},
		{NumA: 3, NumB: 3, GroupSize: 2, Balanced: true},
		{NumA: 3, NumB: 5, Pairing: true},
	}
	for _, prob := range cases {
		s := newSolver(t, nil, prob, DefaultParams, 1)
		for range 20 {
			pt := s.RandomPartition()
			assert.Nil(t, match.Validate(pt, prob), "problem %+v", prob)
		}
	}
}

func TestGreedyPartitionValid(t *testing.T) {
	edges := []match.Edge{
		edge("A1", "B1", 1),
		edge("B1", "A1", 1),
		edge("A2", "B3", 1),
		edge("B2", "A3", 1),
	}
	cases := []match.Problem{
		{NumA: 4, NumB: 4, GroupSize: 4, Balanced: true},
		{NumA: 5, NumB: 5, GroupSize: 4},
		{NumA: 3, NumB: 5, Pairing: true},
	}
	for _, prob := range cases {
		s := newSolver(t, edges, prob, DefaultParams, 1)
		pt := s.GreedyPartition()
		assert.Nil(t, match.Validate(pt, prob), "problem %+v", prob)
	}
}

func TestGreedyPairsPreferStrongEdges(t *testing.T) {
	edges := []match.Edge{
		edge("A1", "B2", 1),
		edge("B2", "A1", 1),
		edge("A2", "B1", 1),
	}
	prob := match.Problem{NumA: 2, NumB: 2, Pairing: true}
	s := newSolver(t, edges, prob, DefaultParams, 1)
	pt := s.GreedyPartition()
	require.Nil(t, match.Validate(pt, prob))
	assert.Equal(t, 3.0, s.graph.PartitionScore(pt))
}

func TestHillClimbNeverWorsens(t *testing.T) {
	edges := []match.Edge{
		edge("A1", "B1", 1),
		edge("B1", "A1", 1),
		edge("A2", "B2", 1),
		edge("B2", "A2", 1),
		edge("A3", "B3", 1),
	}
	prob := match.Problem{NumA: 4, NumB: 4, GroupSize: 4, Balanced: true}
	params := DefaultParams
	params.Algorithm = AlgorithmHillClimb
	s := newSolver(t, edges, prob, params, 7)

	for seed := int64(0); seed < 10; seed++ {
		s.rng = rand.New(rand.NewSource(seed))
		initial := s.RandomPartition()
		before := s.graph.PartitionScore(initial)
		pt, score, _ := s.HillClimb(initial)
		assert.GreaterOrEqual(t, score, before)
		assert.Nil(t, match.Validate(pt, prob))
		assert.InDelta(t, score, s.graph.PartitionScore(pt), 1e-9)
	}
}

func TestHillClimbFindsOptimum(t *testing.T) {
	// Two mutual pairs; the unique optimum groups each pair together
	// and is one same-category swap from any other arrangement.
	edges := []match.Edge{
		edge("A1", "B1", 1),
		edge("B1", "A1", 1),
		edge("A2", "B2", 1),
		edge("B2", "A2", 1),
	}
	prob := match.Problem{NumA: 2, NumB: 2, GroupSize: 2, Balanced: true}
	params := Params{
		Algorithm:     AlgorithmHillClimb,
		Initial:       InitialRandom,
		MaxIterations: 100,
		NumRestarts:   3,
	}
	s := newSolver(t, edges, prob, params, 42)

	res, err := s.Solve()
	require.NoError(t, err)
	assert.Equal(t, 4.0, res.Score)
	assert.Nil(t, match.Validate(res.Partition, prob))
}

func TestAnnealReturnsBestSeen(t *testing.T) {
	edges := []match.Edge{
		edge("A1", "B1", 1),
		edge("B1", "A1", 1),
		edge("A2", "B2", 1),
		edge("A3", "B3", 1),
	}
	prob := match.Problem{NumA: 3, NumB: 3, GroupSize: 2, Balanced: true}
	params := DefaultParams
	params.MaxIterations = 2000
	s := newSolver(t, edges, prob, params, 11)

	initial := s.GreedyPartition()
	before := s.graph.PartitionScore(initial)
	pt, score, iters := s.Anneal(initial)
	assert.GreaterOrEqual(t, score, before)
	assert.Positive(t, iters)
	assert.Nil(t, match.Validate(pt, prob))
	assert.InDelta(t, score, s.graph.PartitionScore(pt), 1e-9)
}

func TestSolveSeedReproducible(t *testing.T) {
	edges := []match.Edge{
		edge("A1", "B2", 1),
		edge("B2", "A1", 1),
		edge("A2", "B1", 1),
		edge("A3", "B3", 1),
		edge("B3", "A2", 1),
	}
	prob := match.Problem{NumA: 4, NumB: 4, GroupSize: 4, Balanced: true}

	run := func() Result {
		s := newSolver(t, edges, prob, DefaultParams, 1234)
		res, err := s.Solve()
		require.NoError(t, err)
		return res
	}
	first := run()
	second := run()
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Partition, second.Partition)
}

func TestSolvePairingNoEdges(t *testing.T) {
	prob := match.Problem{NumA: 3, NumB: 3, Pairing: true}
	s := newSolver(t, nil, prob, DefaultParams, 5)

	res, err := s.Solve()
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Score)
	assert.Len(t, res.Partition, 3)
	assert.Nil(t, match.Validate(res.Partition, prob))
	assert.Empty(t, res.Warnings)
}

func TestSolveRefusesInfeasibleShape(t *testing.T) {
	// One A cannot supply half of two balanced groups of four; the
	// shape is rejected up front instead of reaching construction.
	prob := match.Problem{NumA: 1, NumB: 7, GroupSize: 4, Balanced: true}
	s := newSolver(t, nil, prob, DefaultParams, 1)

	res, err := s.Solve()
	assert.ErrorIs(t, err, match.ErrInfeasible)
	assert.Nil(t, res.Partition)
	assert.Zero(t, res.Restarts)
}

func TestNeighborsPreserveStructure(t *testing.T) {
	cases := []match.Problem{
		{NumA: 4, NumB: 4, GroupSize: 4, Balanced: true},
		{NumA: 3, NumB: 3, GroupSize: 4},
		{NumA: 3, NumB: 3, Pairing: true},
	}
	for _, prob := range cases {
		s := newSolver(t, nil, prob, DefaultParams, 3)
		st := newSearchState(s.RandomPartition())
		require.Nil(t, match.Validate(st.groups, prob), "problem %+v", prob)

		before := st.groups.Clone()
		for _, nb := range s.neighbors(st) {
			st.apply(nb)
			assert.Nil(t, match.Validate(st.groups, prob), "problem %+v", prob)
			st.revert(nb)
		}
		assert.Equal(t, before, st.groups, "problem %+v", prob)
	}
}

func TestSolveTracksRestarts(t *testing.T) {
	prob := match.Problem{NumA: 2, NumB: 2, GroupSize: 2, Balanced: true}
	params := DefaultParams
	params.NumRestarts = 4
	s := newSolver(t, []match.Edge{edge("A1", "B1", 1)}, prob, params, 9)

	res, err := s.Solve()
	require.NoError(t, err)
	assert.Equal(t, 4, res.Restarts)
	assert.Positive(t, res.Iterations)
}
