package api

import (
	"strings"
	"testing"

	"floraroute/internal/config"
	"floraroute/internal/model"
)

func TestBuildGraph(t *testing.T) {
	g, coords, err := buildGraph(model.GraphImport{
		Edges:  []model.EdgeIn{{From: 1, To: 2, Meters: 100}, {From: 2, To: 3, Meters: 50}},
		Coords: []model.NodeCoord{{Node: 1, Lat: 10, Lon: 20}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if g.NodeCount() != 3 || g.EdgeCount() != 2 || len(coords) != 1 {
		t.Fatalf("nodes=%d edges=%d coords=%d", g.NodeCount(), g.EdgeCount(), len(coords))
	}

	if _, _, err := buildGraph(model.GraphImport{}); err == nil {
		t.Fatal("empty import should fail")
	}
	if _, _, err := buildGraph(model.GraphImport{
		Edges: []model.EdgeIn{{From: 7, To: 7, Meters: 1}},
	}); err == nil || !strings.Contains(err.Error(), "self-loop") {
		t.Fatalf("self-loop: %v", err)
	}
	if _, _, err := buildGraph(model.GraphImport{
		Edges:  []model.EdgeIn{{From: 1, To: 2, Meters: 1}},
		Coords: []model.NodeCoord{{Node: 1, Lat: 91, Lon: 0}},
	}); err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("bad latitude: %v", err)
	}
}

func TestValidateSupplierIn(t *testing.T) {
	if err := validateSupplierIn(model.SupplierIn{Name: "v", Node: 1, Stock: map[string]int{"roses": 3}}); err != nil {
		t.Fatal(err)
	}
	bad := []model.SupplierIn{
		{Node: 1},
		{Name: "v", Node: 1, Stock: map[string]int{"": 1}},
		{Name: "v", Node: 1, Stock: map[string]int{"roses": -2}},
	}
	for i, in := range bad {
		if err := validateSupplierIn(in); err == nil {
			t.Fatalf("case %d should fail", i)
		}
	}
}

func TestValidatePlanRequest(t *testing.T) {
	p := config.Default().Planner
	dest := []model.DestinationIn{{Node: 3, Demand: map[string]int{"roses": 1}}}

	// The zero factor falls back to the configured default.
	req := model.PlanRequestIn{OriginSupplierID: "a", Destinations: dest}
	if err := validatePlanRequest(&req, p); err != nil {
		t.Fatal(err)
	}
	if req.CongestionFactor != p.DefaultCongestionFactor {
		t.Fatalf("default factor not applied: %v", req.CongestionFactor)
	}

	manyDests := make([]model.DestinationIn, p.MaxDestinations+1)
	for i := range manyDests {
		manyDests[i] = model.DestinationIn{Node: int64(i + 10), Demand: map[string]int{"roses": 1}}
	}
	manyAlts := make([]string, p.MaxAlternates+1)
	for i := range manyAlts {
		manyAlts[i] = string(rune('a' + i))
	}

	bad := []model.PlanRequestIn{
		{Destinations: dest},                                                                            // no origin
		{OriginSupplierID: "a", Destinations: dest, CongestionFactor: 0.9},                              // factor below 1
		{OriginSupplierID: "a"},                                                                         // no destinations
		{OriginSupplierID: "a", Destinations: manyDests},                                                // destination ceiling
		{OriginSupplierID: "a", Destinations: dest, AlternateSupplierIDs: manyAlts},                     // alternate ceiling
		{OriginSupplierID: "a", Destinations: dest, AlternateSupplierIDs: []string{"a"}},                // origin duplicated
		{OriginSupplierID: "a", Destinations: dest, AlternateSupplierIDs: []string{"b", "b"}},           // alternate duplicated
		{OriginSupplierID: "a", Destinations: dest, SpeedKph: -5},                                       // negative speed
		{OriginSupplierID: "a", Destinations: []model.DestinationIn{{Node: 3}}},                         // empty demand
		{OriginSupplierID: "a", Destinations: []model.DestinationIn{{Node: 3, Demand: map[string]int{"roses": -1}}}}, // negative demand
	}
	for i := range bad {
		if err := validatePlanRequest(&bad[i], p); err == nil {
			t.Fatalf("case %d should fail", i)
		}
	}
}
