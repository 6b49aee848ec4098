package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by the planning engine. Typed errors below wrap
// these so callers can branch with errors.Is and still read details.
var (
	// ErrNodeNotFound indicates a source or target node absent from the graph.
	ErrNodeNotFound = errors.New("engine: node not found in graph")

	// ErrUnreachable indicates no route exists between two nodes. Non-fatal:
	// callers treat it as infinite distance, not as a failure of the request.
	ErrUnreachable = errors.New("engine: no route between nodes")

	// ErrCacheMiss indicates a lookup outside the node set the distance cache
	// was built over. Always a caller defect; never handled silently.
	ErrCacheMiss = errors.New("engine: node pair not in distance cache")

	// ErrNoFeasibleTour indicates no finite-cost tour covers the requested
	// node set.
	ErrNoFeasibleTour = errors.New("engine: no finite-cost tour exists")

	// ErrInsufficientStock indicates no supplier subset covers the demand.
	ErrInsufficientStock = errors.New("engine: insufficient stock")

	// ErrAllocationInvariant indicates the greedy distributor could not cover
	// demand even though aggregate feasibility passed. Implementation defect.
	ErrAllocationInvariant = errors.New("engine: allocation invariant violated")

	// ErrBadCongestionFactor indicates a non-positive congestion factor.
	ErrBadCongestionFactor = errors.New("engine: congestion factor must be positive")
)

// InsufficientStockError names the commodities whose aggregate demand exceeds
// the aggregate stock of every candidate supplier combination.
type InsufficientStockError struct {
	Commodities []string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("engine: insufficient stock for %s", strings.Join(e.Commodities, ", "))
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// AllocationInvariantError reports the destination and commodity left short
// by the greedy distributor. It signals a defect and aborts the request.
type AllocationInvariantError struct {
	DestinationID string
	Commodity     string
	Missing       int
}

func (e *AllocationInvariantError) Error() string {
	return fmt.Sprintf("engine: allocation left destination %s short %d of %s",
		e.DestinationID, e.Missing, e.Commodity)
}

func (e *AllocationInvariantError) Unwrap() error { return ErrAllocationInvariant }
