package engine

import (
	"fmt"
	"math"
)

// TourPlan is the optimizer's output: the visiting sequence starting at the
// origin (and ending there again for a closed tour) and its total cost.
type TourPlan struct {
	Cost     float64
	Sequence []NodeID
}

// MaxTourStops is the documented practical ceiling for the exact optimizer.
// O(n²·2ⁿ) time makes larger inputs intractable; callers must pre-filter.
const MaxTourStops = 20

// SolveTour returns a minimum-cost order visiting every stop starting from
// origin, closing the cycle back to origin when closed is true. All pairwise
// costs come from the cache, which must have been built over a node set
// containing origin and every stop.
//
// Held–Karp dynamic program over (subset bitmask, last stop index), stored in
// two flat parallel tables of size 2ⁿ×n: best cost and predecessor index.
// Unreachable pairs carry infinite cost and are never chosen; when no finite
// complete tour exists the result is ErrNoFeasibleTour. Equal-cost states
// keep the lower candidate index, so output is deterministic, but only the
// total cost is canonical.
func SolveTour(c *DistanceCache, origin NodeID, stops []NodeID, closed bool) (TourPlan, error) {
	n := len(stops)
	if n == 0 {
		return TourPlan{Cost: 0, Sequence: []NodeID{origin}}, nil
	}
	if n > MaxTourStops {
		return TourPlan{}, fmt.Errorf("engine: %d stops exceeds exact optimizer ceiling %d", n, MaxTourStops)
	}

	size := 1 << n
	best := make([]float64, size*n)
	pred := make([]int, size*n)
	for i := range best {
		best[i] = math.Inf(1)
		pred[i] = -1
	}
	at := func(mask, j int) int { return mask*n + j }

	// Base case: origin straight to each stop.
	for j := 0; j < n; j++ {
		d, err := c.Cost(origin, stops[j])
		if err != nil {
			return TourPlan{}, err
		}
		best[at(1<<j, j)] = d
	}

	for mask := 1; mask < size; mask++ {
		if mask&(mask-1) == 0 {
			continue // singletons are the base case
		}
		for j := 0; j < n; j++ {
			if mask&(1<<j) == 0 {
				continue
			}
			prevMask := mask ^ (1 << j)
			bi := at(mask, j)
			for k := 0; k < n; k++ {
				if prevMask&(1<<k) == 0 {
					continue
				}
				reach := best[at(prevMask, k)]
				if math.IsInf(reach, 1) {
					continue
				}
				step, err := c.Cost(stops[k], stops[j])
				if err != nil {
					return TourPlan{}, err
				}
				if math.IsInf(step, 1) {
					continue
				}
				if cand := reach + step; cand < best[bi] {
					best[bi] = cand
					pred[bi] = k
				}
			}
		}
	}

	// Pick the best endpoint over full-set states, closing the cycle if asked.
	full := size - 1
	totalBest := math.Inf(1)
	last := -1
	for j := 0; j < n; j++ {
		total := best[at(full, j)]
		if math.IsInf(total, 1) {
			continue
		}
		if closed {
			back, err := c.Cost(stops[j], origin)
			if err != nil {
				return TourPlan{}, err
			}
			if math.IsInf(back, 1) {
				continue
			}
			total += back
		}
		if total < totalBest {
			totalBest = total
			last = j
		}
	}
	if last < 0 {
		return TourPlan{}, ErrNoFeasibleTour
	}

	// Backtrack the predecessor table.
	order := make([]int, 0, n)
	for mask, j := full, last; j >= 0; {
		order = append(order, j)
		p := pred[at(mask, j)]
		mask ^= 1 << j
		j = p
	}

	seq := make([]NodeID, 0, n+2)
	seq = append(seq, origin)
	for i := len(order) - 1; i >= 0; i-- {
		seq = append(seq, stops[order[i]])
	}
	if closed {
		seq = append(seq, origin)
	}
	return TourPlan{Cost: totalBest, Sequence: seq}, nil
}
