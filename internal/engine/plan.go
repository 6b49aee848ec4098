package engine

import (
	"context"
	"fmt"
)

// PlanRequest is one planning invocation: an active supply point, optional
// alternate supply points, destinations with per-commodity demand, and the
// congestion factor for this time of day.
type PlanRequest struct {
	Origin           SupplyPoint
	Alternates       []SupplyPoint
	Destinations     []DemandRequest
	ClosedTour       bool
	CongestionFactor float64
	SpeedKph         float64 // average travel speed for time estimates
	Workers          int     // parallel subset trials; <=0 means serial
}

// Segment is one leg of the visiting order with its cost and time estimate.
type Segment struct {
	From    NodeID
	To      NodeID
	Meters  float64
	Seconds float64
}

// PlanResult is the full outcome of one planning request.
type PlanResult struct {
	TourCost      float64
	VisitingOrder []NodeID
	FullPath      []NodeID
	Suppliers     []SupplyPoint
	Allocations   []Allocation
	Segments      []Segment
	Stats         SelectionStats
}

// DefaultSpeedKph is assumed when a request carries no speed.
const DefaultSpeedKph = 30

// Plan runs the whole pipeline for one request: supplier selection (subset
// search over alternates, with {origin} alone as the trivial subset), exact
// tour optimization, path expansion, and greedy demand allocation. All state
// is request-scoped; the graph is only read.
func Plan(ctx context.Context, g *Graph, req PlanRequest) (PlanResult, error) {
	if req.CongestionFactor <= 0 {
		return PlanResult{}, ErrBadCongestionFactor
	}
	if len(req.Destinations) == 0 {
		return PlanResult{}, fmt.Errorf("engine: at least one destination required")
	}
	if !g.HasNode(req.Origin.Node) {
		return PlanResult{}, fmt.Errorf("origin node %d: %w", req.Origin.Node, ErrNodeNotFound)
	}
	for _, a := range req.Alternates {
		if !g.HasNode(a.Node) {
			return PlanResult{}, fmt.Errorf("supplier %s node %d: %w", a.ID, a.Node, ErrNodeNotFound)
		}
	}
	for _, d := range req.Destinations {
		if !g.HasNode(d.Node) {
			return PlanResult{}, fmt.Errorf("destination %s node %d: %w", d.ID, d.Node, ErrNodeNotFound)
		}
	}

	sel, err := SelectSuppliers(ctx, g, req.CongestionFactor,
		req.Origin, req.Alternates, req.Destinations, req.ClosedTour, req.Workers)
	if err != nil {
		return PlanResult{}, err
	}

	speed := req.SpeedKph
	if speed <= 0 {
		speed = DefaultSpeedKph
	}
	segments, err := tourSegments(sel.Cache, sel.Tour.Sequence, speed)
	if err != nil {
		return PlanResult{}, err
	}

	return PlanResult{
		TourCost:      sel.Tour.Cost,
		VisitingOrder: sel.Tour.Sequence,
		FullPath:      sel.FullPath,
		Suppliers:     sel.Suppliers,
		Allocations:   sel.Allocations,
		Segments:      segments,
		Stats:         sel.Stats,
	}, nil
}

func tourSegments(cache *DistanceCache, seq []NodeID, speedKph float64) ([]Segment, error) {
	mps := speedKph / 3.6
	segments := make([]Segment, 0, len(seq))
	for i := 0; i < len(seq)-1; i++ {
		meters, err := cache.Cost(seq[i], seq[i+1])
		if err != nil {
			return nil, err
		}
		segments = append(segments, Segment{
			From:    seq[i],
			To:      seq[i+1],
			Meters:  meters,
			Seconds: meters / mps,
		})
	}
	return segments, nil
}
