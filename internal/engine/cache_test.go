package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheMatchesDirectSolver(t *testing.T) {
	g := triangleGraph(t)
	nodes := []NodeID{1, 2, 3}

	cache, err := NewDistanceCache(g, 1.3, nodes)
	require.NoError(t, err)

	for _, a := range nodes {
		for _, b := range nodes {
			cached, err := cache.Cost(a, b)
			require.NoError(t, err)
			if a == b {
				assert.Zero(t, cached)
				continue
			}
			direct, directPath, err := ShortestPath(g, 1.3, a, b)
			require.NoError(t, err)
			assert.Equal(t, direct, cached, "pair %d→%d", a, b)

			cachedPath, err := cache.Path(a, b)
			require.NoError(t, err)
			assert.Equal(t, directPath, cachedPath, "pair %d→%d", a, b)
		}
	}
}

func TestCacheMissIsAnError(t *testing.T) {
	g := triangleGraph(t)

	cache, err := NewDistanceCache(g, 1.0, []NodeID{1, 2})
	require.NoError(t, err)

	_, err = cache.Cost(1, 3)
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = cache.Path(3, 1)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCacheStoresUnreachableAsInfinite(t *testing.T) {
	g := triangleGraph(t)
	require.NoError(t, g.AddEdge(8, 9, 1))

	cache, err := NewDistanceCache(g, 1.0, []NodeID{1, 8})
	require.NoError(t, err)

	cost, err := cache.Cost(1, 8)
	require.NoError(t, err)
	assert.True(t, math.IsInf(cost, 1))

	path, err := cache.Path(1, 8)
	require.NoError(t, err)
	assert.Nil(t, path)
}

func TestCacheCountsSolverRuns(t *testing.T) {
	g := triangleGraph(t)

	cache, err := NewDistanceCache(g, 1.0, []NodeID{1, 2, 3})
	require.NoError(t, err)
	// k=3 nodes of interest → k·(k-1) ordered non-self pairs.
	assert.Equal(t, 6, cache.SolverRuns())
}
