package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allocated sums the quantities one destination received for one commodity.
func allocated(allocs []Allocation, destID, commodity string) int {
	total := 0
	for _, a := range allocs {
		if a.DestinationID == destID && a.Commodity == commodity {
			total += a.Quantity
		}
	}
	return total
}

func TestSelectOriginAloneExhaustsExactStock(t *testing.T) {
	g := triangleGraph(t)
	origin := SupplyPoint{ID: "v1", Node: 1, Stock: map[string]int{"roses": 8}}
	dests := []DemandRequest{
		{ID: "d1", Node: 2, Demand: map[string]int{"roses": 4}},
		{ID: "d2", Node: 3, Demand: map[string]int{"roses": 4}},
	}

	sel, err := SelectSuppliers(context.Background(), g, 1.0, origin, nil, dests, true, 2)
	require.NoError(t, err)

	require.Len(t, sel.Suppliers, 1)
	assert.Equal(t, "v1", sel.Suppliers[0].ID)
	assert.Equal(t, 4, allocated(sel.Allocations, "d1", "roses"))
	assert.Equal(t, 4, allocated(sel.Allocations, "d2", "roses"))
	// Stock exactly equals demand: every unit is assigned.
	given := 0
	for _, a := range sel.Allocations {
		assert.Equal(t, "v1", a.SupplierID)
		given += a.Quantity
	}
	assert.Equal(t, 8, given)
}

func TestSelectClosedTriangleScenario(t *testing.T) {
	g := triangleGraph(t)
	origin := SupplyPoint{ID: "v1", Node: 1, Stock: map[string]int{"roses": 10}}
	dests := []DemandRequest{
		{ID: "d1", Node: 2, Demand: map[string]int{"roses": 4}},
		{ID: "d2", Node: 3, Demand: map[string]int{"roses": 4}},
	}

	sel, err := SelectSuppliers(context.Background(), g, 1.0, origin, nil, dests, true, 1)
	require.NoError(t, err)

	// 1-2 (5) + 2-3 (5) + return 3-1 via 2 (10): no direct 3-1 edge, so the
	// closed tour costs 20 for either visiting order. A direct 3-1 edge of
	// 5 would bring it down to 15.
	assert.Equal(t, 20.0, sel.Tour.Cost)
	assert.Equal(t, NodeID(1), sel.Tour.Sequence[0])
	assert.Equal(t, NodeID(1), sel.Tour.Sequence[len(sel.Tour.Sequence)-1])
}

func TestSelectEquilateralTriangle(t *testing.T) {
	// Graph A-B:5, B-C:5, C-A:5. The closed tour is 15 and the order is
	// A,B,C,A or its reverse at equal cost.
	g := NewGraph()
	require.NoError(t, g.AddEdge(1, 2, 5))
	require.NoError(t, g.AddEdge(2, 3, 5))
	require.NoError(t, g.AddEdge(3, 1, 5))

	origin := SupplyPoint{ID: "v1", Node: 1, Stock: map[string]int{"roses": 10}}
	dests := []DemandRequest{
		{ID: "d1", Node: 2, Demand: map[string]int{"roses": 4}},
		{ID: "d2", Node: 3, Demand: map[string]int{"roses": 4}},
	}

	sel, err := SelectSuppliers(context.Background(), g, 1.0, origin, nil, dests, true, 2)
	require.NoError(t, err)
	assert.Equal(t, 15.0, sel.Tour.Cost)
	assert.Len(t, sel.Tour.Sequence, 4)
	assert.Equal(t, 4, allocated(sel.Allocations, "d1", "roses"))
	assert.Equal(t, 4, allocated(sel.Allocations, "d2", "roses"))
}

func TestSelectPullsInAlternateWhenOriginShort(t *testing.T) {
	g := triangleGraph(t)
	require.NoError(t, g.AddEdge(4, 3, 2)) // alternate supplier near node 3

	origin := SupplyPoint{ID: "v1", Node: 1, Stock: map[string]int{"roses": 3}}
	alt := SupplyPoint{ID: "v2", Node: 4, Stock: map[string]int{"roses": 10}}
	dests := []DemandRequest{
		{ID: "d1", Node: 2, Demand: map[string]int{"roses": 4}},
		{ID: "d2", Node: 3, Demand: map[string]int{"roses": 4}},
	}

	sel, err := SelectSuppliers(context.Background(), g, 1.0, origin, []SupplyPoint{alt}, dests, true, 2)
	require.NoError(t, err)

	require.Len(t, sel.Suppliers, 2)
	assert.Equal(t, "v1", sel.Suppliers[0].ID)
	assert.Equal(t, "v2", sel.Suppliers[1].ID)

	// Demand is still covered exactly.
	assert.Equal(t, 4, allocated(sel.Allocations, "d1", "roses"))
	assert.Equal(t, 4, allocated(sel.Allocations, "d2", "roses"))

	// Nearest-first: d1 (node 2) drains the origin's 3 roses before falling
	// through to the farther alternate; d2 (node 3) sits next to v2.
	for _, a := range sel.Allocations {
		if a.DestinationID == "d1" && a.SupplierID == "v1" {
			assert.Equal(t, 3, a.Quantity)
		}
		if a.DestinationID == "d2" {
			assert.Equal(t, "v2", a.SupplierID)
		}
	}
}

func TestSelectInsufficientStockNamesCommodities(t *testing.T) {
	g := triangleGraph(t)
	origin := SupplyPoint{ID: "v1", Node: 1, Stock: map[string]int{"roses": 1, "lilies": 50}}
	alt := SupplyPoint{ID: "v2", Node: 3, Stock: map[string]int{"roses": 1}}
	dests := []DemandRequest{
		{ID: "d1", Node: 2, Demand: map[string]int{"roses": 5, "lilies": 2, "tulips": 1}},
	}

	_, err := SelectSuppliers(context.Background(), g, 1.0, origin, []SupplyPoint{alt}, dests, true, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, []string{"roses", "tulips"}, stockErr.Commodities)
}

func TestSelectAllocationsSumExactly(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddEdge(1, 2, 4))
	require.NoError(t, g.AddEdge(2, 3, 4))
	require.NoError(t, g.AddEdge(3, 4, 4))
	require.NoError(t, g.AddEdge(4, 5, 4))
	require.NoError(t, g.AddEdge(5, 1, 4))

	origin := SupplyPoint{ID: "v1", Node: 1, Stock: map[string]int{"roses": 5, "tulips": 2}}
	alts := []SupplyPoint{
		{ID: "v2", Node: 3, Stock: map[string]int{"roses": 6, "tulips": 3}},
		{ID: "v3", Node: 5, Stock: map[string]int{"roses": 2}},
	}
	dests := []DemandRequest{
		{ID: "d1", Node: 2, Demand: map[string]int{"roses": 7, "tulips": 1}},
		{ID: "d2", Node: 4, Demand: map[string]int{"roses": 4, "tulips": 4}},
	}

	sel, err := SelectSuppliers(context.Background(), g, 1.0, origin, alts, dests, false, 4)
	require.NoError(t, err)

	for _, d := range dests {
		for commodity, want := range d.Demand {
			assert.Equal(t, want, allocated(sel.Allocations, d.ID, commodity),
				"destination %s commodity %s", d.ID, commodity)
		}
	}
	// No supplier gives more than it stocked.
	bySupplier := map[string]map[string]int{}
	for _, a := range sel.Allocations {
		if bySupplier[a.SupplierID] == nil {
			bySupplier[a.SupplierID] = map[string]int{}
		}
		bySupplier[a.SupplierID][a.Commodity] += a.Quantity
	}
	for _, s := range append([]SupplyPoint{origin}, alts...) {
		for commodity, given := range bySupplier[s.ID] {
			assert.LessOrEqual(t, given, s.Stock[commodity], "supplier %s commodity %s", s.ID, commodity)
		}
	}
}

func TestSelectCanonicalTieBreakPrefersSmallerSubset(t *testing.T) {
	// Two alternates co-located at node 3 with identical stock: any feasible
	// subset containing either has equal tour cost, so cardinality and then
	// supplier ID decide.
	g := triangleGraph(t)
	origin := SupplyPoint{ID: "v1", Node: 1, Stock: map[string]int{"roses": 1}}
	alts := []SupplyPoint{
		{ID: "v3", Node: 3, Stock: map[string]int{"roses": 10}},
		{ID: "v2", Node: 3, Stock: map[string]int{"roses": 10}},
	}
	dests := []DemandRequest{
		{ID: "d1", Node: 2, Demand: map[string]int{"roses": 5}},
	}

	sel, err := SelectSuppliers(context.Background(), g, 1.0, origin, alts, dests, false, 2)
	require.NoError(t, err)
	require.Len(t, sel.Suppliers, 2)
	assert.Equal(t, "v2", sel.Suppliers[1].ID)
}

func TestAllocateGreedyFailsLoudlyOnShortfall(t *testing.T) {
	// The selector only calls the distributor after the aggregate feasibility
	// filter passed, so a shortfall signals a defect. It must surface as a
	// typed error, not an under-delivering allocation.
	g := triangleGraph(t)
	cache, err := NewDistanceCache(g, 1.0, []NodeID{1, 3})
	require.NoError(t, err)

	suppliers := []SupplyPoint{{ID: "v1", Node: 1, Stock: map[string]int{"roses": 2}}}
	dests := []DemandRequest{{ID: "d1", Node: 3, Demand: map[string]int{"roses": 5}}}

	allocs, err := allocateGreedy(cache, suppliers, dests)
	assert.Nil(t, allocs)

	var invErr *AllocationInvariantError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "d1", invErr.DestinationID)
	assert.Equal(t, "roses", invErr.Commodity)
	assert.Equal(t, 3, invErr.Missing)
	assert.ErrorIs(t, err, ErrAllocationInvariant)
}
