package engine

import (
	"sync"
	"time"
)

// PlanStats is the per-plan work record kept for the admin metrics view.
type PlanStats struct {
	SelectionStats
	Destinations int
	Alternates   int
	Suppliers    int
	TourCost     float64
	Elapsed      time.Duration
}

var (
	statsMu sync.Mutex
	stats   = map[string]PlanStats{}
)

// RecordStats stores the work record for a plan ID.
func RecordStats(planID string, s PlanStats) {
	statsMu.Lock()
	stats[planID] = s
	statsMu.Unlock()
}

// GetStats returns the work record for a plan ID.
func GetStats(planID string) (PlanStats, bool) {
	statsMu.Lock()
	defer statsMu.Unlock()
	s, ok := stats[planID]
	return s, ok
}

// AllStats returns a copy of every recorded plan's work record.
func AllStats() map[string]PlanStats {
	statsMu.Lock()
	defer statsMu.Unlock()
	out := make(map[string]PlanStats, len(stats))
	for k, v := range stats {
		out[k] = v
	}
	return out
}
