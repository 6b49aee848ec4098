package model

import "time"

// Graph ingestion

type EdgeIn struct {
	From   int64   `json:"from"`
	To     int64   `json:"to"`
	Meters float64 `json:"meters"`
}

type NodeCoord struct {
	Node int64   `json:"node"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

type GraphImport struct {
	Edges  []EdgeIn    `json:"edges"`
	Coords []NodeCoord `json:"coords,omitempty"`
}

type GraphInfo struct {
	Nodes  int  `json:"nodes"`
	Edges  int  `json:"edges"`
	Coords int  `json:"coords"`
	Loaded bool `json:"loaded"`
}

// Suppliers (flower depots; the active one is the plan origin)

type SupplierIn struct {
	Name  string         `json:"name"`
	Node  int64          `json:"node"`
	Stock map[string]int `json:"stock"`
}

type Supplier struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Node      int64          `json:"node"`
	Stock     map[string]int `json:"stock"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Planning

type DestinationIn struct {
	Node   int64          `json:"node"`
	Demand map[string]int `json:"demand"`
}

type PlanRequestIn struct {
	OriginSupplierID     string          `json:"originSupplierId"`
	AlternateSupplierIDs []string        `json:"alternateSupplierIds,omitempty"`
	Destinations         []DestinationIn `json:"destinations"`
	ClosedTour           bool            `json:"closedTour,omitempty"`
	CongestionFactor     float64         `json:"congestionFactor"`
	SpeedKph             float64         `json:"speedKph,omitempty"`
}

type SegmentOut struct {
	From    int64   `json:"from"`
	To      int64   `json:"to"`
	Meters  float64 `json:"meters"`
	Seconds float64 `json:"seconds"`
}

type AllocationOut struct {
	DestinationID string `json:"destinationId"`
	Commodity     string `json:"commodity"`
	SupplierID    string `json:"supplierId"`
	Quantity      int    `json:"quantity"`
}

type PlanStatsOut struct {
	SubsetsTotal    int `json:"subsetsTotal"`
	SubsetsFeasible int `json:"subsetsFeasible"`
	SolverRuns      int `json:"solverRuns"`
}

type Plan struct {
	ID               string          `json:"id"`
	Status           string          `json:"status"`
	TourCost         float64         `json:"tourCost"`
	VisitingOrder    []int64         `json:"visitingOrder"`
	FullPath         []int64         `json:"fullPath"`
	SupplierIDs      []string        `json:"supplierIds"`
	Allocations      []AllocationOut `json:"allocations"`
	Segments         []SegmentOut    `json:"segments"`
	Stats            PlanStatsOut    `json:"stats"`
	CongestionFactor float64         `json:"congestionFactor"`
	ClosedTour       bool            `json:"closedTour"`
	Error            string          `json:"error,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// Plan statuses.
const (
	PlanStatusCompleted = "completed"
	PlanStatusFailed    = "failed"
)

// Events and webhook subscriptions

type Event struct {
	Type   string         `json:"type"`
	PlanID string         `json:"planId"`
	At     time.Time      `json:"at"`
	Data   map[string]any `json:"data,omitempty"`
}

// Event types published on the broker and delivered to webhook subscribers.
const (
	EventPlanCompleted     = "plan.completed"
	EventPlanFailed        = "plan.failed"
	EventStockInsufficient = "stock.insufficient"
)

type SubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}

type Subscription struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Secret    string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}
