package milp

import (
	"encoding/json"
	"testing"
	"time"

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

func twoMutualPairs() *graph.Graph {
	return graph.New([]match.Edge{
		edge("A1", "B1", 1),
		edge("B1", "A1", 1),
		edge("A2", "B2", 1),
		edge("B2", "A2", 1),
	}, graph.Options{MutualWeight: 2})
}

func TestBuildFormulationShape(t *testing.T) {
	g := graph.New([]match.Edge{
		edge("A1", "B1", 1),
		edge("B1", "A1", 1),
		edge("A2", "B2", 1),
	}, graph.Options{MutualWeight: 2})
	prob := match.Problem{NumA: 2, NumB: 2, GroupSize: 2, Balanced: true}

	f, err := BuildFormulation(g, prob)
	require.NoError(t, err)

	// 4 people x 2 groups assignment binaries plus one y per scoring
	// pair per group.
	assert.Equal(t, 12, f.NumVars)
	assert.Len(t, f.AUb, 12) // 3 AND-linearization rows per (pair, group)
	assert.Len(t, f.AEq, 8)  // 4 person rows, 2 size rows, 2 balance rows
	require.Len(t, f.BEq, 8)

	// The y columns carry the pair scores: the mutual pair at the
	// mutual weight, the one-directional pair at 1.
	assert.Equal(t, []float64{2, 2, 1, 1}, f.Objective[8:])
	for _, v := range f.Objective[:8] {
		assert.Zero(t, v)
	}
}

func TestBuildFormulationPairingRejected(t *testing.T) {
	g := twoMutualPairs()
	_, err := BuildFormulation(g, match.Problem{NumA: 2, NumB: 2, Pairing: true})
	assert.ErrorIs(t, err, ErrPairingMode)
}

func TestBuildFormulationInfeasibleShape(t *testing.T) {
	g := graph.New(nil, graph.Options{})

	_, err := BuildFormulation(g, match.Problem{NumA: 0, NumB: 4, GroupSize: 2, Balanced: true})
	assert.ErrorIs(t, err, match.ErrInfeasible)

	_, err = BuildFormulation(g, match.Problem{NumA: 2, NumB: 2})
	assert.ErrorIs(t, err, match.ErrInfeasible)
}

func TestExtract(t *testing.T) {
	g := twoMutualPairs()
	prob := match.Problem{NumA: 2, NumB: 2, GroupSize: 2, Balanced: true}
	f, err := BuildFormulation(g, prob)
	require.NoError(t, err)

	x := make([]float64, f.NumVars)
	// People are enumerated A1, A2, B1, B2; send A1 and B1 to group 0.
	x[f.xCol(0, 0)] = 1
	x[f.xCol(1, 1)] = 1
	x[f.xCol(2, 0)] = 1
	x[f.xCol(3, 1)] = 1

	pt := f.Extract(x)
	assert.Equal(t, match.Partition{
		{p("A1"), p("B1")},
		{p("A2"), p("B2")},
	}, pt)
}

func TestSolveNoBackend(t *testing.T) {
	g := twoMutualPairs()
	prob := match.Problem{NumA: 2, NumB: 2, GroupSize: 2, Balanced: true}

	res, err := New(g, prob, nil, time.Second).Solve()
	assert.ErrorIs(t, err, ErrNoBackend)
	assert.Equal(t, StatusUnavailable, res.Status)
	assert.Nil(t, res.Partition)
}

func TestSolveOptimal(t *testing.T) {
	g := twoMutualPairs()
	prob := match.Problem{NumA: 2, NumB: 2, GroupSize: 2, Balanced: true}

	res, err := New(g, prob, NewSimplexBackend(), 30*time.Second).Solve()
	require.NoError(t, err)
	assert.Equal(t, StatusOptimal, res.Status)
	assert.InDelta(t, 4.0, res.Objective, 1e-6)
	require.Nil(t, match.Validate(res.Partition, prob))
	assert.InDelta(t, 4.0, g.PartitionScore(res.Partition), 1e-9)
}

func TestSolveMatchesPairScoreConvention(t *testing.T) {
	// Weighted mode: the mutual pair counts both directions, so the
	// optimum groups A1 with B1 (score 5) over A1 with B2 (score 3).
	g := graph.New([]match.Edge{
		edge("A1", "B1", 2),
		edge("B1", "A1", 3),
		edge("A1", "B2", 3),
	}, graph.Options{Weighted: true})
	prob := match.Problem{NumA: 2, NumB: 2, GroupSize: 2, Balanced: true}

	res, err := New(g, prob, NewSimplexBackend(), 30*time.Second).Solve()
	require.NoError(t, err)
	assert.Equal(t, StatusOptimal, res.Status)
	assert.InDelta(t, 5.0, res.Objective, 1e-6)
	idx := res.Partition.Index()
	assert.Equal(t, idx[p("A1")], idx[p("B1")])
}

func TestBackendTimeout(t *testing.T) {
	g := twoMutualPairs()
	prob := match.Problem{NumA: 2, NumB: 2, GroupSize: 2, Balanced: true}
	f, err := BuildFormulation(g, prob)
	require.NoError(t, err)

	br, err := NewSimplexBackend().Solve(f, -time.Second)
	require.NoError(t, err)
	assert.Equal(t, StatusTimeoutNoIncumbent, br.Status)
	assert.Nil(t, br.X)
	assert.Zero(t, br.Objective)
}

func TestSolveTimeoutResultEncodes(t *testing.T) {
	g := twoMutualPairs()
	prob := match.Problem{NumA: 2, NumB: 2, GroupSize: 2, Balanced: true}

	res, err := New(g, prob, NewSimplexBackend(), -time.Second).Solve()
	require.NoError(t, err)
	assert.Equal(t, StatusTimeoutNoIncumbent, res.Status)
	assert.Nil(t, res.Partition)
	assert.Zero(t, res.Objective)

	// The status record must survive JSON encoding even with no
	// incumbent to report.
	data, err := json.Marshal(map[string]any{
		"status":    res.Status,
		"objective": res.Objective,
		"backend":   res.Backend,
	})
	require.NoError(t, err)
	assert.Contains(t, string(data), "timeout_without_incumbent")
}

func TestFractionalVar(t *testing.T) {
	b := NewSimplexBackend()
	assert.Equal(t, -1, b.fractionalVar([]float64{0, 1, 1, 0}))
	assert.Equal(t, 2, b.fractionalVar([]float64{0, 0.9999999, 0.5, 0.2}))
	assert.Equal(t, 3, b.fractionalVar([]float64{1, 0, 0.1, 0.4}))
}
