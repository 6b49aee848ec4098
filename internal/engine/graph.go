// Package engine implements the route-planning core: a weighted street graph,
// a congestion-aware shortest-path solver, a node-of-interest distance cache,
// an exact tour optimizer, and the resupply supplier selector.
package engine

import (
	"fmt"
)

// NodeID identifies a street-network intersection. Opaque to the engine
// beyond identity.
type NodeID int64

// Graph is an undirected weighted street network. Edge weights are meters and
// must be positive; adjacency is kept symmetric by AddEdge. Build it once at
// startup, then treat it as read-only: every planner entry point only reads.
type Graph struct {
	adj   map[NodeID]map[NodeID]float64
	edges int
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{adj: map[NodeID]map[NodeID]float64{}}
}

// AddEdge inserts the undirected edge a-b with the given weight in meters,
// creating both endpoints as needed. Re-adding an existing edge overwrites
// its weight in both directions, preserving symmetry.
func (g *Graph) AddEdge(a, b NodeID, meters float64) error {
	if a == b {
		return fmt.Errorf("engine: self-loop on node %d", a)
	}
	if meters <= 0 {
		return fmt.Errorf("engine: edge %d-%d weight %v must be positive", a, b, meters)
	}
	if g.adj[a] == nil {
		g.adj[a] = map[NodeID]float64{}
	}
	if g.adj[b] == nil {
		g.adj[b] = map[NodeID]float64{}
	}
	if _, ok := g.adj[a][b]; !ok {
		g.edges++
	}
	g.adj[a][b] = meters
	g.adj[b][a] = meters
	return nil
}

// HasNode reports whether n is part of the graph.
func (g *Graph) HasNode(n NodeID) bool {
	_, ok := g.adj[n]
	return ok
}

// Neighbors returns the adjacency map of n. The returned map is the graph's
// own storage; callers must not mutate it.
func (g *Graph) Neighbors(n NodeID) map[NodeID]float64 {
	return g.adj[n]
}

// EdgeWeight returns the weight of edge a-b in meters, or false when the
// edge does not exist.
func (g *Graph) EdgeWeight(a, b NodeID) (float64, bool) {
	w, ok := g.adj[a][b]
	return w, ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.adj) }

// EdgeCount returns the number of undirected edges.
func (g *Graph) EdgeCount() int { return g.edges }

// Nodes returns all node IDs in unspecified order.
func (g *Graph) Nodes() []NodeID {
	out := make([]NodeID, 0, len(g.adj))
	for n := range g.adj {
		out = append(out, n)
	}
	return out
}

// Validate checks the weight-symmetry invariant and that all weights are
// positive. AddEdge maintains both, so this only matters for graphs whose
// adjacency was populated by bulk import paths.
func (g *Graph) Validate() error {
	for a, nbrs := range g.adj {
		for b, w := range nbrs {
			if w <= 0 {
				return fmt.Errorf("engine: edge %d-%d has non-positive weight %v", a, b, w)
			}
			back, ok := g.adj[b][a]
			if !ok || back != w {
				return fmt.Errorf("engine: asymmetric edge %d-%d", a, b)
			}
		}
	}
	return nil
}
