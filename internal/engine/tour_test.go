package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tourCache(t *testing.T, g *Graph, nodes []NodeID) *DistanceCache {
	t.Helper()
	cache, err := NewDistanceCache(g, 1.0, nodes)
	require.NoError(t, err)
	return cache
}

// orderCost prices one explicit visiting order against the cache.
func orderCost(t *testing.T, cache *DistanceCache, seq []NodeID) float64 {
	t.Helper()
	total := 0.0
	for i := 0; i < len(seq)-1; i++ {
		d, err := cache.Cost(seq[i], seq[i+1])
		require.NoError(t, err)
		total += d
	}
	return total
}

func TestSolveTourNoStops(t *testing.T) {
	g := triangleGraph(t)
	cache := tourCache(t, g, []NodeID{1})

	plan, err := SolveTour(cache, 1, nil, true)
	require.NoError(t, err)
	assert.Zero(t, plan.Cost)
	assert.Equal(t, []NodeID{1}, plan.Sequence)
}

func TestSolveTourSingleStop(t *testing.T) {
	g := triangleGraph(t)
	cache := tourCache(t, g, []NodeID{1, 2})

	open, err := SolveTour(cache, 1, []NodeID{2}, false)
	require.NoError(t, err)
	assert.Equal(t, 5.0, open.Cost)
	assert.Equal(t, []NodeID{1, 2}, open.Sequence)

	closed, err := SolveTour(cache, 1, []NodeID{2}, true)
	require.NoError(t, err)
	assert.Equal(t, 10.0, closed.Cost)
	assert.Equal(t, []NodeID{1, 2, 1}, closed.Sequence)
}

func TestSolveTourBeatsOtherPermutation(t *testing.T) {
	g := triangleGraph(t)
	cache := tourCache(t, g, []NodeID{1, 2, 3})

	plan, err := SolveTour(cache, 1, []NodeID{2, 3}, false)
	require.NoError(t, err)

	// Exhaustive check for n=2: the result must not cost more than either order.
	alt1 := orderCost(t, cache, []NodeID{1, 2, 3})
	alt2 := orderCost(t, cache, []NodeID{1, 3, 2})
	assert.LessOrEqual(t, plan.Cost, alt1)
	assert.LessOrEqual(t, plan.Cost, alt2)
	assert.Equal(t, 10.0, plan.Cost)
	assert.Equal(t, []NodeID{1, 2, 3}, plan.Sequence)
}

func TestClosedTourCostsAtLeastOpen(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddEdge(1, 2, 3))
	require.NoError(t, g.AddEdge(2, 3, 4))
	require.NoError(t, g.AddEdge(3, 4, 6))
	require.NoError(t, g.AddEdge(4, 1, 2))
	require.NoError(t, g.AddEdge(2, 4, 7))
	cache := tourCache(t, g, []NodeID{1, 2, 3, 4})

	open, err := SolveTour(cache, 1, []NodeID{2, 3, 4}, false)
	require.NoError(t, err)
	closed, err := SolveTour(cache, 1, []NodeID{2, 3, 4}, true)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, closed.Cost, open.Cost)
	assert.Equal(t, NodeID(1), closed.Sequence[0])
	assert.Equal(t, NodeID(1), closed.Sequence[len(closed.Sequence)-1])
}

func TestSolveTourClosedTriangle(t *testing.T) {
	g := triangleGraph(t)
	cache := tourCache(t, g, []NodeID{1, 2, 3})

	plan, err := SolveTour(cache, 1, []NodeID{2, 3}, true)
	require.NoError(t, err)
	// 1→2 (5) + 2→3 (5) + 3→1 shortest is back through 2 (10): total 20,
	// and 1→3→2→1 prices identically. Optimal cost is unique even if the
	// order is not.
	assert.Equal(t, 20.0, plan.Cost)
	assert.Len(t, plan.Sequence, 4)
}

func TestSolveTourUnreachableStop(t *testing.T) {
	g := triangleGraph(t)
	require.NoError(t, g.AddEdge(8, 9, 1))
	cache := tourCache(t, g, []NodeID{1, 2, 8})

	_, err := SolveTour(cache, 1, []NodeID{2, 8}, false)
	assert.ErrorIs(t, err, ErrNoFeasibleTour)
}

func TestSolveTourStopCeiling(t *testing.T) {
	g := triangleGraph(t)
	cache := tourCache(t, g, []NodeID{1})

	stops := make([]NodeID, MaxTourStops+1)
	_, err := SolveTour(cache, 1, stops, false)
	assert.Error(t, err)
}

func TestSolveTourFourStops(t *testing.T) {
	// Square with cheap perimeter and expensive diagonals: the optimal
	// closed tour walks the perimeter.
	g := NewGraph()
	require.NoError(t, g.AddEdge(1, 2, 1))
	require.NoError(t, g.AddEdge(2, 3, 1))
	require.NoError(t, g.AddEdge(3, 4, 1))
	require.NoError(t, g.AddEdge(4, 1, 1))
	require.NoError(t, g.AddEdge(1, 3, 10))
	require.NoError(t, g.AddEdge(2, 4, 10))
	cache := tourCache(t, g, []NodeID{1, 2, 3, 4})

	plan, err := SolveTour(cache, 1, []NodeID{3, 2, 4}, true)
	require.NoError(t, err)
	assert.Equal(t, 4.0, plan.Cost)
}
