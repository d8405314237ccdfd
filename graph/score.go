package graph

import (
	"slices"

	"mixer/match"
)

// GroupScore is the scoring breakdown of a single group.
type GroupScore struct {
	GroupID     int                 `json:"group_id"`
	Members     []match.Person      `json:"members"`
	Singles     []match.OrderedPair `json:"single_preferences"`
	Mutuals     []match.Pair        `json:"mutual_preferences"`
	Score       float64             `json:"total_score"`
	SingleCount int                 `json:"single_count"`
	MutualCount int                 `json:"mutual_count"`
}

// OverallStats aggregates per-group scores across a partition.
type OverallStats struct {
	TotalScore    float64      `json:"total_score"`
	AvgGroupScore float64      `json:"avg_group_score"`
	TotalSingles  int          `json:"total_single_prefs"`
	TotalMutuals  int          `json:"total_mutual_prefs"`
	Groups        []GroupScore `json:"group_scores"`
	HitRateSingle float64      `json:"hit_rate_single"`
	HitRateMutual float64      `json:"hit_rate_mutual"`
}

// ScoreGroup partitions the group's internal edges into one-directional
// and mutual, applies the active scoring convention, and adds the
// penalty for every penalized one-directional edge found inside the
// group. Pure function of (graph, group).
func (g *Graph) ScoreGroup(group []match.Person, groupID int) GroupScore {
	inGroup := make(map[match.Person]bool, len(group))
	for _, p := range group {
		inGroup[p] = true
	}

	var singles []match.OrderedPair
	var mutuals []match.Pair
	seenMutual := make(map[match.Pair]bool)

	for _, e := range g.edges {
		if !inGroup[e.From] || !inGroup[e.To] {
			continue
		}
		if g.IsMutual(e.From, e.To) {
			pair := match.MakePair(e.From, e.To)
			if !seenMutual[pair] {
				seenMutual[pair] = true
				mutuals = append(mutuals, pair)
			}
			continue
		}
		singles = append(singles, match.OrderedPair{From: e.From, To: e.To})
	}

	var singleScore, mutualScore float64
	if g.opts.Weighted {
		for _, s := range singles {
			singleScore += g.weights[s]
		}
		for _, m := range mutuals {
			mutualScore += g.Weight(m.X, m.Y) + g.Weight(m.Y, m.X)
		}
	} else {
		singleScore = float64(len(singles))
		mutualScore = float64(len(mutuals)) * g.opts.MutualWeight
	}

	var penaltyScore float64
	for _, s := range singles {
		if g.opts.Penalties.Contains(s.From, s.To) {
			penaltyScore += g.opts.PenaltyWeight
		}
	}

	members := slices.Clone(group)
	slices.SortFunc(members, func(a, b match.Person) int {
		if a.Less(b) {
			return -1
		}
		if b.Less(a) {
			return 1
		}
		return 0
	})

	return GroupScore{
		GroupID:     groupID,
		Members:     members,
		Singles:     singles,
		Mutuals:     mutuals,
		Score:       singleScore + mutualScore + penaltyScore,
		SingleCount: len(singles),
		MutualCount: len(mutuals),
	}
}

// ScorePartition sums per-group scores and derives the aggregate hit
// rates. Deterministic and side-effect-free: two calls with the same
// inputs produce identical results.
func (g *Graph) ScorePartition(pt match.Partition) OverallStats {
	stats := OverallStats{}
	for i, group := range pt {
		gs := g.ScoreGroup(group, i+1)
		stats.Groups = append(stats.Groups, gs)
		stats.TotalScore += gs.Score
		stats.TotalSingles += gs.SingleCount
		stats.TotalMutuals += gs.MutualCount
	}
	if len(pt) > 0 {
		stats.AvgGroupScore = stats.TotalScore / float64(len(pt))
	}

	if possible := len(g.edges) - 2*len(g.mutual); possible > 0 {
		stats.HitRateSingle = float64(stats.TotalSingles) / float64(possible)
	}
	if len(g.mutual) > 0 {
		stats.HitRateMutual = float64(stats.TotalMutuals) / float64(len(g.mutual))
	}
	return stats
}

// PartitionScore is the allocation-free scoring path used inside local
// search. It equals ScorePartition(pt).TotalScore.
func (g *Graph) PartitionScore(pt match.Partition) float64 {
	return g.IndexScore(pt.Index())
}

// IndexScore scores an assignment expressed as a person->group index,
// letting search operators rescore after an applied move without
// rebuilding group slices.
func (g *Graph) IndexScore(idx map[match.Person]int) float64 {
	var score float64
	for _, e := range g.edges {
		from, okFrom := idx[e.From]
		to, okTo := idx[e.To]
		if !okFrom || !okTo || from != to {
			continue
		}
		if g.IsMutual(e.From, e.To) {
			// Count each mutual pair once, from its canonical side.
			if e.From.Less(e.To) {
				if g.opts.Weighted {
					score += e.Weight + g.Weight(e.To, e.From)
				} else {
					score += g.opts.MutualWeight
				}
			}
			continue
		}
		score += e.Weight
		if g.opts.Penalties.Contains(e.From, e.To) {
			score += g.opts.PenaltyWeight
		}
	}
	return score
}
