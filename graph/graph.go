// Package graph owns the weighted directed preference relation and the
// scoring function every solver shares. A Graph is built once from an
// edge list and never mutated afterwards, so it may be shared freely
// across restarts and solver invocations.
package graph

import (
	"mixer/match"
)

// Options selects the scoring convention.
//
// In unweighted mode every one-directional edge is worth a flat 1.0 and
// every mutual pair is worth MutualWeight in total. In weighted mode
// edge weights are summed directly, both directions for a mutual pair.
// The two conventions are never mixed.
type Options struct {
	MutualWeight  float64
	Weighted      bool
	Penalties     match.PenaltySet
	PenaltyWeight float64
}

// Graph is the read-only preference graph.
type Graph struct {
	edges   []match.Edge
	weights map[match.OrderedPair]float64
	forward map[match.Person][]match.Person
	reverse map[match.Person][]match.Person
	mutual  map[match.Pair]struct{}
	opts    Options
}

// New builds a graph from directed edges. Edge order is retained so
// scoring reports are deterministic. Duplicate ordered pairs are
// expected to be deduplicated upstream; a repeat is ignored. In
// unweighted mode every edge carries weight 1 regardless of input.
func New(edges []match.Edge, opts Options) *Graph {
	g := &Graph{
		weights: make(map[match.OrderedPair]float64, len(edges)),
		forward: make(map[match.Person][]match.Person),
		reverse: make(map[match.Person][]match.Person),
		mutual:  make(map[match.Pair]struct{}),
		opts:    opts,
	}

	for _, e := range edges {
		key := match.OrderedPair{From: e.From, To: e.To}
		if _, ok := g.weights[key]; ok {
			continue
		}
		w := e.Weight
		if !opts.Weighted {
			w = 1.0
		}
		g.weights[key] = w
		g.edges = append(g.edges, match.Edge{From: e.From, To: e.To, Weight: w})
		g.forward[e.From] = append(g.forward[e.From], e.To)
		g.reverse[e.To] = append(g.reverse[e.To], e.From)
	}

	for _, e := range g.edges {
		if g.HasEdge(e.To, e.From) {
			g.mutual[match.MakePair(e.From, e.To)] = struct{}{}
		}
	}

	return g
}

// Options returns the scoring convention the graph was built with.
func (g *Graph) Options() Options {
	return g.opts
}

// Edges returns the deduplicated edge list in construction order.
func (g *Graph) Edges() []match.Edge {
	return g.edges
}

// HasEdge reports whether the directed edge from->to exists.
func (g *Graph) HasEdge(from, to match.Person) bool {
	_, ok := g.weights[match.OrderedPair{From: from, To: to}]
	return ok
}

// Weight returns the stored weight of from->to, or 0 if absent.
func (g *Graph) Weight(from, to match.Person) float64 {
	return g.weights[match.OrderedPair{From: from, To: to}]
}

// IsMutual reports whether edges exist in both directions between a
// and b.
func (g *Graph) IsMutual(a, b match.Person) bool {
	_, ok := g.mutual[match.MakePair(a, b)]
	return ok
}

// MutualCount is the number of distinct mutual pairs in the graph.
func (g *Graph) MutualCount() int {
	return len(g.mutual)
}

// OutDegree is the number of preferences expressed by the person.
func (g *Graph) OutDegree(p match.Person) int {
	return len(g.forward[p])
}

// InDegree is the number of participants expressing interest in p.
func (g *Graph) InDegree(p match.Person) int {
	return len(g.reverse[p])
}

// PairScore is the total score credited when a and b share a group:
// the one-directional sum when only one direction exists, the
// mode-dependent mutual credit when both do, plus the penalty for any
// penalized one-directional edge between them. This is the single
// co-location convention shared by the heuristic scoring path and the
// exact formulation.
func (g *Graph) PairScore(a, b match.Person) float64 {
	fwd, hasFwd := g.weights[match.OrderedPair{From: a, To: b}]
	rev, hasRev := g.weights[match.OrderedPair{From: b, To: a}]

	switch {
	case hasFwd && hasRev:
		if g.opts.Weighted {
			return fwd + rev
		}
		return g.opts.MutualWeight
	case hasFwd:
		return fwd + g.penalty(a, b)
	case hasRev:
		return rev + g.penalty(b, a)
	}
	return 0
}

func (g *Graph) penalty(from, to match.Person) float64 {
	if g.opts.Penalties.Contains(from, to) {
		return g.opts.PenaltyWeight
	}
	return 0
}
