package engine

import (
	"context"
	"errors"
	"math"
	"math/bits"
	"sort"

	"golang.org/x/sync/errgroup"
)

// SupplyPoint is a supply location with per-commodity stock.
type SupplyPoint struct {
	ID    string
	Node  NodeID
	Stock map[string]int
}

// DemandRequest is a delivery destination with per-commodity demand.
type DemandRequest struct {
	ID     string
	Node   NodeID
	Demand map[string]int
}

// Allocation assigns a quantity of one commodity from one supplier to one
// destination. The allocations for a (destination, commodity) pair sum to
// exactly the requested demand.
type Allocation struct {
	DestinationID string
	Commodity     string
	SupplierID    string
	Quantity      int
}

// Selection is the resupply selector's result: the chosen supplier set
// (origin first), the optimal tour over suppliers and destinations, the
// expanded street-level path, and the demand split.
type Selection struct {
	Suppliers   []SupplyPoint
	Tour        TourPlan
	FullPath    []NodeID
	Allocations []Allocation
	Cache       *DistanceCache
	Stats       SelectionStats
}

// SelectionStats counts the work one selection performed.
type SelectionStats struct {
	SubsetsTotal    int
	SubsetsFeasible int
	SolverRuns      int
}

// MaxAlternates is the documented practical ceiling for the subset search;
// the enumeration is exponential in the candidate count. Callers with larger
// pools must pre-reduce before invoking the selector.
const MaxAlternates = 8

// SelectSuppliers decides which alternate supply points must join the origin
// to cover all demand, at minimal tour cost, and how to split each
// destination's demand across the chosen suppliers.
//
// Every subset of alternates (origin always included) is checked for
// aggregate per-commodity stock feasibility; each feasible subset is scored
// by the exact tour cost over its suppliers plus all destinations. Subsets
// are independent trials, so they are evaluated in parallel across workers
// and reduced to a minimum. Ties break canonically: lower cost, then fewer
// suppliers, then the lexicographically smallest supplier-ID list.
//
// Demand is then distributed nearest-first: for each destination and
// commodity, suppliers are drained in ascending order of their cached
// distance to that destination.
func SelectSuppliers(ctx context.Context, g *Graph, factor float64, origin SupplyPoint,
	alternates []SupplyPoint, destinations []DemandRequest, closed bool, workers int) (Selection, error) {

	demand := aggregateDemand(destinations)

	// A subset can only be feasible if the full candidate set is.
	if unmet := unmetCommodities(demand, append([]SupplyPoint{origin}, alternates...)); len(unmet) > 0 {
		return Selection{}, &InsufficientStockError{Commodities: unmet}
	}

	// Canonical candidate order so tie-breaking is stable.
	alts := append([]SupplyPoint(nil), alternates...)
	sort.Slice(alts, func(i, j int) bool { return alts[i].ID < alts[j].ID })

	m := len(alts)
	stats := SelectionStats{SubsetsTotal: 1 << m}

	feasible := make([]int, 0, 1<<m)
	for mask := 0; mask < 1<<m; mask++ {
		if subsetFeasible(demand, origin, alts, mask) {
			feasible = append(feasible, mask)
		}
	}
	stats.SubsetsFeasible = len(feasible)

	type trial struct {
		mask  int
		tour  TourPlan
		cache *DistanceCache
		ok    bool
	}
	trials := make([]trial, len(feasible))

	if workers <= 0 {
		workers = 1
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, mask := range feasible {
		i, mask := i, mask
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			cache, tour, err := evaluateSubset(g, factor, origin, alts, mask, destinations, closed)
			switch {
			case err == nil:
				trials[i] = trial{mask: mask, tour: tour, cache: cache, ok: true}
			case errors.Is(err, ErrNoFeasibleTour):
				// A disconnected supplier only disqualifies this subset.
			default:
				return err
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Selection{}, err
	}

	best := -1
	for i := range trials {
		if !trials[i].ok {
			continue
		}
		stats.SolverRuns += trials[i].cache.SolverRuns()
		if best < 0 || subsetLess(trials[i].tour.Cost, trials[i].mask, trials[best].tour.Cost, trials[best].mask) {
			best = i
		}
	}
	if best < 0 {
		return Selection{}, ErrNoFeasibleTour
	}

	win := trials[best]
	chosen := chosenSuppliers(origin, alts, win.mask)

	allocs, err := allocateGreedy(win.cache, chosen, destinations)
	if err != nil {
		return Selection{}, err
	}

	full, err := ExpandPath(win.cache, win.tour.Sequence)
	if err != nil {
		return Selection{}, err
	}

	return Selection{
		Suppliers:   chosen,
		Tour:        win.tour,
		FullPath:    full,
		Allocations: allocs,
		Cache:       win.cache,
		Stats:       stats,
	}, nil
}

func aggregateDemand(destinations []DemandRequest) map[string]int {
	total := map[string]int{}
	for _, d := range destinations {
		for commodity, qty := range d.Demand {
			if qty > 0 {
				total[commodity] += qty
			}
		}
	}
	return total
}

// unmetCommodities returns, sorted, every commodity whose demand exceeds the
// combined stock of the given suppliers.
func unmetCommodities(demand map[string]int, suppliers []SupplyPoint) []string {
	var unmet []string
	for commodity, need := range demand {
		have := 0
		for _, s := range suppliers {
			have += s.Stock[commodity]
		}
		if have < need {
			unmet = append(unmet, commodity)
		}
	}
	sort.Strings(unmet)
	return unmet
}

func subsetFeasible(demand map[string]int, origin SupplyPoint, alts []SupplyPoint, mask int) bool {
	for commodity, need := range demand {
		have := origin.Stock[commodity]
		for i := range alts {
			if mask&(1<<i) != 0 {
				have += alts[i].Stock[commodity]
			}
		}
		if have < need {
			return false
		}
	}
	return true
}

func chosenSuppliers(origin SupplyPoint, alts []SupplyPoint, mask int) []SupplyPoint {
	chosen := []SupplyPoint{origin}
	for i := range alts {
		if mask&(1<<i) != 0 {
			chosen = append(chosen, alts[i])
		}
	}
	return chosen
}

// evaluateSubset builds a fresh request-scoped cache over the subset's
// suppliers plus all destinations and scores it with the exact optimizer.
func evaluateSubset(g *Graph, factor float64, origin SupplyPoint, alts []SupplyPoint,
	mask int, destinations []DemandRequest, closed bool) (*DistanceCache, TourPlan, error) {

	stops := make([]NodeID, 0, bits.OnesCount(uint(mask))+len(destinations))
	for i := range alts {
		if mask&(1<<i) != 0 {
			stops = append(stops, alts[i].Node)
		}
	}
	for _, d := range destinations {
		stops = append(stops, d.Node)
	}

	interest := append([]NodeID{origin.Node}, stops...)
	cache, err := NewDistanceCache(g, factor, interest)
	if err != nil {
		return nil, TourPlan{}, err
	}
	tour, err := SolveTour(cache, origin.Node, stops, closed)
	if err != nil {
		return nil, TourPlan{}, err
	}
	return cache, tour, nil
}

// subsetLess orders candidate subsets by cost, then cardinality, then mask.
// Alternates are pre-sorted by ID, so a smaller mask value means a
// lexicographically smaller supplier-ID list.
func subsetLess(costA float64, maskA int, costB float64, maskB int) bool {
	const eps = 1e-9
	if math.Abs(costA-costB) > eps {
		return costA < costB
	}
	ca, cb := bits.OnesCount(uint(maskA)), bits.OnesCount(uint(maskB))
	if ca != cb {
		return ca < cb
	}
	return maskA < maskB
}

// allocateGreedy splits each destination's demand across the chosen
// suppliers, nearest supplier first. Aggregate feasibility has already been
// established for this supplier set, so a shortfall here is a defect and
// fails loudly rather than under-delivering.
func allocateGreedy(cache *DistanceCache, suppliers []SupplyPoint, destinations []DemandRequest) ([]Allocation, error) {
	remaining := make(map[string]map[string]int, len(suppliers))
	for _, s := range suppliers {
		stock := make(map[string]int, len(s.Stock))
		for commodity, qty := range s.Stock {
			stock[commodity] = qty
		}
		remaining[s.ID] = stock
	}

	var allocs []Allocation
	for _, dest := range destinations {
		ordered, err := suppliersByDistance(cache, suppliers, dest.Node)
		if err != nil {
			return nil, err
		}
		commodities := make([]string, 0, len(dest.Demand))
		for commodity, qty := range dest.Demand {
			if qty > 0 {
				commodities = append(commodities, commodity)
			}
		}
		sort.Strings(commodities)

		for _, commodity := range commodities {
			need := dest.Demand[commodity]
			for _, s := range ordered {
				if need == 0 {
					break
				}
				avail := remaining[s.ID][commodity]
				if avail == 0 {
					continue
				}
				take := need
				if avail < take {
					take = avail
				}
				remaining[s.ID][commodity] -= take
				need -= take
				allocs = append(allocs, Allocation{
					DestinationID: dest.ID,
					Commodity:     commodity,
					SupplierID:    s.ID,
					Quantity:      take,
				})
			}
			if need > 0 {
				return nil, &AllocationInvariantError{
					DestinationID: dest.ID,
					Commodity:     commodity,
					Missing:       need,
				}
			}
		}
	}
	return allocs, nil
}

func suppliersByDistance(cache *DistanceCache, suppliers []SupplyPoint, dest NodeID) ([]SupplyPoint, error) {
	type ranked struct {
		s SupplyPoint
		d float64
	}
	order := make([]ranked, 0, len(suppliers))
	for _, s := range suppliers {
		d, err := cache.Cost(s.Node, dest)
		if err != nil {
			return nil, err
		}
		order = append(order, ranked{s: s, d: d})
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].d != order[j].d {
			return order[i].d < order[j].d
		}
		return order[i].s.ID < order[j].s.ID
	})
	out := make([]SupplyPoint, len(order))
	for i := range order {
		out[i] = order[i].s
	}
	return out, nil
}
