package graph

import "mixer/match"

// Stats summarizes the graph itself, independent of any partition.
type Stats struct {
	Nodes              int     `json:"total_nodes"`
	Edges              int     `json:"total_edges"`
	MutualPairs        int     `json:"mutual_pairs"`
	AvgOutDegree       float64 `json:"avg_out_degree"`
	WithPreferences    int     `json:"nodes_with_preferences"`
	WithoutPreferences int     `json:"nodes_without_preferences"`
}

// Stats reports basic counts over the nodes that appear in the edge
// list.
func (g *Graph) Stats() Stats {
	nodes := make(map[match.Person]bool)
	for _, e := range g.edges {
		nodes[e.From] = true
		nodes[e.To] = true
	}

	s := Stats{
		Nodes:           len(nodes),
		Edges:           len(g.edges),
		MutualPairs:     len(g.mutual),
		WithPreferences: len(g.forward),
	}
	s.WithoutPreferences = s.Nodes - s.WithPreferences
	if s.Nodes > 0 {
		s.AvgOutDegree = float64(s.Edges) / float64(s.Nodes)
	}
	return s
}
