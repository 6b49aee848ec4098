package engine

import (
	"errors"
	"math"
)

type pairKey struct{ from, to NodeID }

// DistanceCache holds the pairwise shortest cost and path for a fixed set of
// nodes of interest, computed against one graph and one congestion factor.
// Entries are valid only for that exact combination: rebuild the cache when
// either changes, never patch it. Lookups outside the built set return
// ErrCacheMiss, which is always a caller defect.
type DistanceCache struct {
	factor float64
	nodes  []NodeID
	cost   map[pairKey]float64
	path   map[pairKey][]NodeID
	runs   int
}

// NewDistanceCache runs the shortest-path solver once for every ordered pair
// drawn from nodes (self pairs are cost zero). Unreachable pairs are stored
// with infinite cost and a nil path so the tour optimizer can skip them.
// Cost is O(k²·(V+E) log V) for k nodes of interest, not all-pairs over V.
func NewDistanceCache(g *Graph, factor float64, nodes []NodeID) (*DistanceCache, error) {
	if factor <= 0 {
		return nil, ErrBadCongestionFactor
	}
	c := &DistanceCache{
		factor: factor,
		nodes:  append([]NodeID(nil), nodes...),
		cost:   make(map[pairKey]float64, len(nodes)*len(nodes)),
		path:   make(map[pairKey][]NodeID, len(nodes)*len(nodes)),
	}
	for _, a := range nodes {
		for _, b := range nodes {
			k := pairKey{a, b}
			if _, done := c.cost[k]; done {
				continue // duplicate node of interest
			}
			if a == b {
				c.cost[k] = 0
				c.path[k] = []NodeID{a}
				continue
			}
			d, p, err := ShortestPath(g, factor, a, b)
			c.runs++
			if err != nil && !errors.Is(err, ErrUnreachable) {
				return nil, err
			}
			c.cost[k] = d
			c.path[k] = p
		}
	}
	return c, nil
}

// Cost returns the cached shortest cost from a to b.
func (c *DistanceCache) Cost(a, b NodeID) (float64, error) {
	d, ok := c.cost[pairKey{a, b}]
	if !ok {
		return math.Inf(1), ErrCacheMiss
	}
	return d, nil
}

// Path returns the cached shortest path from a to b. A nil path with no error
// means the pair is unreachable.
func (c *DistanceCache) Path(a, b NodeID) ([]NodeID, error) {
	p, ok := c.path[pairKey{a, b}]
	if !ok {
		return nil, ErrCacheMiss
	}
	return p, nil
}

// Factor returns the congestion factor the cache was built with.
func (c *DistanceCache) Factor() float64 { return c.factor }

// Nodes returns the node-of-interest set the cache was built over.
func (c *DistanceCache) Nodes() []NodeID { return c.nodes }

// SolverRuns returns how many shortest-path searches the build performed.
func (c *DistanceCache) SolverRuns() int { return c.runs }
