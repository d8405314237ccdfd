package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func group(ids ...string) []match.Person {
	g := make([]match.Person, len(ids))
	for i, id := range ids {
		g[i] = p(id)
	}
	return g
}

func TestUnweightedForcesUnitWeights(t *testing.T) {
	g := New([]match.Edge{edge("A1", "B1", 7)}, Options{MutualWeight: 2})
	assert.Equal(t, 1.0, g.Weight(p("A1"), p("B1")))
	assert.Equal(t, 0.0, g.Weight(p("B1"), p("A1")))
}

func TestDuplicateEdgesIgnored(t *testing.T) {
	g := New([]match.Edge{
		edge("A1", "B1", 3),
		edge("A1", "B1", 9),
	}, Options{Weighted: true})
	require.Len(t, g.Edges(), 1)
	assert.Equal(t, 3.0, g.Weight(p("A1"), p("B1")))
}

func TestMutualDetection(t *testing.T) {
	g := New([]match.Edge{
		edge("A1", "B1", 1),
		edge("B1", "A1", 1),
		edge("A2", "B2", 1),
	}, Options{MutualWeight: 2})
	assert.True(t, g.IsMutual(p("A1"), p("B1")))
	assert.True(t, g.IsMutual(p("B1"), p("A1")))
	assert.False(t, g.IsMutual(p("A2"), p("B2")))
	assert.Equal(t, 1, g.MutualCount())
}

func TestPairScoreConventions(t *testing.T) {
	edges := []match.Edge{
		edge("A1", "B1", 2),
		edge("B1", "A1", 1),
		edge("A2", "B2", 3),
	}

	unweighted := New(edges, Options{MutualWeight: 2.5})
	assert.Equal(t, 2.5, unweighted.PairScore(p("A1"), p("B1")))
	assert.Equal(t, 1.0, unweighted.PairScore(p("A2"), p("B2")))
	assert.Equal(t, 0.0, unweighted.PairScore(p("A1"), p("B2")))

	weighted := New(edges, Options{Weighted: true})
	assert.Equal(t, 3.0, weighted.PairScore(p("A1"), p("B1")))
	assert.Equal(t, 3.0, weighted.PairScore(p("B1"), p("A1")))
	assert.Equal(t, 3.0, weighted.PairScore(p("A2"), p("B2")))
}

func TestScoreGroup(t *testing.T) {
	g := New([]match.Edge{
		edge("A1", "B1", 1),
		edge("B1", "A1", 1),
		edge("A2", "B2", 1),
	}, Options{MutualWeight: 2})

	gs := g.ScoreGroup(group("A1", "A2", "B1", "B2"), 1)
	assert.Equal(t, 3.0, gs.Score) // one mutual pair at 2 plus one single
	assert.Equal(t, 1, gs.SingleCount)
	assert.Equal(t, 1, gs.MutualCount)
	assert.Equal(t, []match.Person{p("A1"), p("A2"), p("B1"), p("B2")}, gs.Members)
	require.Len(t, gs.Singles, 1)
	assert.Equal(t, match.OrderedPair{From: p("A2"), To: p("B2")}, gs.Singles[0])
}

func TestScorePartitionHitRates(t *testing.T) {
	g := New([]match.Edge{
		edge("A1", "B1", 1),
		edge("B1", "A1", 1),
		edge("A2", "B2", 1),
	}, Options{MutualWeight: 2})

	pt := match.Partition{
		group("A1", "B1"),
		group("A2", "B2"),
	}
	stats := g.ScorePartition(pt)
	assert.Equal(t, 3.0, stats.TotalScore)
	assert.Equal(t, 1.5, stats.AvgGroupScore)
	assert.Equal(t, 1.0, stats.HitRateSingle)
	assert.Equal(t, 1.0, stats.HitRateMutual)

	// Split the mutual pair and the single preference apart.
	worst := match.Partition{
		group("A1", "B2"),
		group("A2", "B1"),
	}
	stats = g.ScorePartition(worst)
	assert.Equal(t, 0.0, stats.TotalScore)
	assert.Equal(t, 0.0, stats.HitRateSingle)
	assert.Equal(t, 0.0, stats.HitRateMutual)
}

func TestPenalties(t *testing.T) {
	penalties := match.PenaltySet{
		{From: p("A2"), To: p("B2")}: {},
	}
	g := New([]match.Edge{
		edge("A1", "B1", 1),
		edge("B1", "A1", 1),
		edge("A2", "B2", 1),
	}, Options{MutualWeight: 2, Penalties: penalties, PenaltyWeight: -0.5})

	// The penalized one-directional edge scores 1 - 0.5; the mutual
	// pair is untouched.
	gs := g.ScoreGroup(group("A1", "A2", "B1", "B2"), 1)
	assert.InDelta(t, 2.5, gs.Score, 1e-9)
	assert.InDelta(t, 0.5, g.PairScore(p("A2"), p("B2")), 1e-9)
	assert.Equal(t, 2.0, g.PairScore(p("A1"), p("B1")))
}

func TestIndexScoreMatchesScorePartition(t *testing.T) {
	edges := []match.Edge{
		edge("A1", "B1", 2),
		edge("B1", "A1", 1),
		edge("A2", "B2", 3),
		edge("B2", "A1", 1),
	}
	pt := match.Partition{
		group("A1", "B1"),
		group("A2", "B2"),
	}
	for _, opts := range []Options{
		{MutualWeight: 2},
		{Weighted: true},
		{MutualWeight: 2, Penalties: match.PenaltySet{{From: p("A2"), To: p("B2")}: {}}, PenaltyWeight: -1},
	} {
		g := New(edges, opts)
		want := g.ScorePartition(pt).TotalScore
		assert.InDelta(t, want, g.PartitionScore(pt), 1e-9)
		assert.InDelta(t, want, g.IndexScore(pt.Index()), 1e-9)
	}
}

func TestScoreDeterminism(t *testing.T) {
	g := New([]match.Edge{
		edge("A1", "B2", 1),
		edge("B2", "A1", 1),
		edge("A2", "B1", 1),
		edge("B1", "A2", 1),
	}, Options{MutualWeight: 3})
	pt := match.Partition{
		group("A1", "B2"),
		group("A2", "B1"),
	}
	first := g.ScorePartition(pt)
	second := g.ScorePartition(pt)
	assert.Equal(t, first, second)
}

func TestStats(t *testing.T) {
	g := New([]match.Edge{
		edge("A1", "B1", 1),
		edge("B1", "A1", 1),
		edge("A2", "B1", 1),
	}, Options{MutualWeight: 2})

	s := g.Stats()
	assert.Equal(t, 3, s.Nodes)
	assert.Equal(t, 3, s.Edges)
	assert.Equal(t, 1, s.MutualPairs)
	assert.Equal(t, 3, s.WithPreferences)
	assert.Equal(t, 0, s.WithoutPreferences)
	assert.InDelta(t, 1.0, s.AvgOutDegree, 1e-9)
}
