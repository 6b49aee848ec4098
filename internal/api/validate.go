package api

import (
	"fmt"

	"floraroute/internal/config"
	"floraroute/internal/engine"
	"floraroute/internal/guide"
	"floraroute/internal/model"
)

// buildGraph turns an import payload into the validated engine graph plus
// the optional coordinate table for guide generation.
func buildGraph(imp model.GraphImport) (*engine.Graph, map[engine.NodeID]guide.Coord, error) {
	if len(imp.Edges) == 0 {
		return nil, nil, fmt.Errorf("graph import needs at least one edge")
	}
	g := engine.NewGraph()
	for i, e := range imp.Edges {
		if err := g.AddEdge(engine.NodeID(e.From), engine.NodeID(e.To), e.Meters); err != nil {
			return nil, nil, fmt.Errorf("edge %d (%d-%d): %w", i, e.From, e.To, err)
		}
	}
	coords := make(map[engine.NodeID]guide.Coord, len(imp.Coords))
	for _, c := range imp.Coords {
		if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
			return nil, nil, fmt.Errorf("node %d: coordinates out of range", c.Node)
		}
		coords[engine.NodeID(c.Node)] = guide.Coord{Lat: c.Lat, Lon: c.Lon}
	}
	return g, coords, nil
}

func validateSupplierIn(in model.SupplierIn) error {
	if in.Name == "" {
		return fmt.Errorf("name is required")
	}
	for commodity, n := range in.Stock {
		if commodity == "" {
			return fmt.Errorf("empty commodity name")
		}
		if n < 0 {
			return fmt.Errorf("commodity %s: stock must be >= 0", commodity)
		}
	}
	return nil
}

// validatePlanRequest enforces the request ceilings before the engine runs:
// factor >= 1.0, 1..MaxDestinations destinations, at most MaxAlternates
// alternates, nonnegative demand.
func validatePlanRequest(req *model.PlanRequestIn, p config.Planner) error {
	if req.OriginSupplierID == "" {
		return fmt.Errorf("originSupplierId is required")
	}
	if req.CongestionFactor == 0 {
		req.CongestionFactor = p.DefaultCongestionFactor
	}
	if req.CongestionFactor < 1.0 {
		return fmt.Errorf("congestionFactor must be >= 1.0")
	}
	if len(req.Destinations) == 0 {
		return fmt.Errorf("at least one destination is required")
	}
	if len(req.Destinations) > p.MaxDestinations {
		return fmt.Errorf("at most %d destinations per plan", p.MaxDestinations)
	}
	if len(req.AlternateSupplierIDs) > p.MaxAlternates {
		return fmt.Errorf("at most %d alternate suppliers", p.MaxAlternates)
	}
	seen := map[string]bool{req.OriginSupplierID: true}
	for _, id := range req.AlternateSupplierIDs {
		if seen[id] {
			return fmt.Errorf("duplicate supplier %s", id)
		}
		seen[id] = true
	}
	if req.SpeedKph < 0 {
		return fmt.Errorf("speedKph must be >= 0")
	}
	for i, d := range req.Destinations {
		if len(d.Demand) == 0 {
			return fmt.Errorf("destination %d: demand is required", i)
		}
		for commodity, n := range d.Demand {
			if commodity == "" {
				return fmt.Errorf("destination %d: empty commodity name", i)
			}
			if n < 0 {
				return fmt.Errorf("destination %d commodity %s: demand must be >= 0", i, commodity)
			}
		}
	}
	return nil
}
