package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"floraroute/internal/engine"
	"floraroute/internal/guide"
	"floraroute/internal/metrics"
	"floraroute/internal/model"
	"floraroute/internal/store"
)

// GraphHandler handles POST/GET /v1/graph.
func (s *Server) GraphHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		p := s.getPrincipal(r)
		if !canPlan(p) {
			writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
			return
		}
		var imp model.GraphImport
		if err := json.NewDecoder(r.Body).Decode(&imp); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		g, coords, err := buildGraph(imp)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid graph", err.Error(), r.URL.Path)
			return
		}
		if err := s.Store.SaveGraph(r.Context(), imp); err != nil {
			writeProblem(w, http.StatusInternalServerError, "Persist graph failed", err.Error(), r.URL.Path)
			return
		}
		s.mu.Lock()
		s.graph = g
		s.coords = coords
		s.mu.Unlock()
		writeJSON(w, http.StatusCreated, model.GraphInfo{
			Nodes: g.NodeCount(), Edges: g.EdgeCount(), Coords: len(coords), Loaded: true,
		})
	case http.MethodGet:
		g, coords := s.Graph()
		if g == nil {
			writeJSON(w, http.StatusOK, model.GraphInfo{})
			return
		}
		writeJSON(w, http.StatusOK, model.GraphInfo{
			Nodes: g.NodeCount(), Edges: g.EdgeCount(), Coords: len(coords), Loaded: true,
		})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SuppliersHandler handles POST/GET /v1/suppliers.
func (s *Server) SuppliersHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		p := s.getPrincipal(r)
		if !canPlan(p) {
			writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
			return
		}
		var in model.SupplierIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validateSupplierIn(in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid supplier", err.Error(), r.URL.Path)
			return
		}
		if g, _ := s.Graph(); g != nil && !g.HasNode(engine.NodeID(in.Node)) {
			writeProblem(w, http.StatusBadRequest, "Invalid supplier", fmt.Sprintf("node %d not in graph", in.Node), r.URL.Path)
			return
		}
		sup, err := s.Store.CreateSupplier(r.Context(), in)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create supplier failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sup)
	case http.MethodGet:
		items, err := s.Store.ListSuppliers(r.Context())
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List suppliers failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// PlanHandler handles POST /v1/plan: the full pipeline from supplier
// selection to stored plan, events and stock bookkeeping.
func (s *Server) PlanHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !canPlan(p) {
		writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	var req model.PlanRequestIn
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validatePlanRequest(&req, s.Cfg.Planner); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid plan request", err.Error(), r.URL.Path)
		return
	}
	g, _ := s.Graph()
	if g == nil {
		writeProblem(w, http.StatusConflict, "No graph", "import a street network first", r.URL.Path)
		return
	}

	origin, err := s.loadSupplyPoint(r, req.OriginSupplierID)
	if err != nil {
		writeSupplierLookupProblem(w, r, req.OriginSupplierID, err)
		return
	}
	alternates := make([]engine.SupplyPoint, 0, len(req.AlternateSupplierIDs))
	for _, id := range req.AlternateSupplierIDs {
		alt, err := s.loadSupplyPoint(r, id)
		if err != nil {
			writeSupplierLookupProblem(w, r, id, err)
			return
		}
		alternates = append(alternates, alt)
	}
	destinations := make([]engine.DemandRequest, 0, len(req.Destinations))
	for _, d := range req.Destinations {
		destinations = append(destinations, engine.DemandRequest{
			ID:     fmt.Sprintf("%d", d.Node),
			Node:   engine.NodeID(d.Node),
			Demand: d.Demand,
		})
	}

	planID := uuid.New().String()
	start := time.Now()
	res, err := engine.Plan(r.Context(), g, engine.PlanRequest{
		Origin:           origin,
		Alternates:       alternates,
		Destinations:     destinations,
		ClosedTour:       req.ClosedTour,
		CongestionFactor: req.CongestionFactor,
		SpeedKph:         req.SpeedKph,
		Workers:          s.Cfg.Planner.Workers,
	})
	elapsed := time.Since(start)
	metrics.PlanDuration.Observe(elapsed.Seconds())

	if err != nil {
		s.finishFailedPlan(w, r, planID, req, err)
		return
	}

	metrics.PlanRequests.WithLabelValues(model.PlanStatusCompleted).Inc()
	metrics.DijkstraRuns.Add(float64(res.Stats.SolverRuns))
	metrics.ResupplySubsets.Add(float64(res.Stats.SubsetsTotal))
	engine.RecordStats(planID, engine.PlanStats{
		SelectionStats: res.Stats,
		Destinations:   len(destinations),
		Alternates:     len(alternates),
		Suppliers:      len(res.Suppliers),
		TourCost:       res.TourCost,
		Elapsed:        elapsed,
	})

	// Consume allocated stock. A shortfall here means the store changed
	// between selection and bookkeeping; the plan still stands.
	s.consumeStock(r, res.Allocations)

	plan := planFromResult(planID, req, res)
	if err := s.Store.SavePlan(r.Context(), plan); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Persist plan failed", err.Error(), r.URL.Path)
		return
	}

	evt := model.Event{
		Type:   model.EventPlanCompleted,
		PlanID: planID,
		At:     time.Now().UTC(),
		Data:   map[string]any{"tourCost": res.TourCost, "suppliers": plan.SupplierIDs},
	}
	s.Broker.Publish(planID, evt)
	s.Pub.Emit(r.Context(), model.EventPlanCompleted, planID, evt.Data)

	writeJSON(w, http.StatusCreated, plan)
}

func (s *Server) loadSupplyPoint(r *http.Request, id string) (engine.SupplyPoint, error) {
	sup, err := s.Store.GetSupplier(r.Context(), id)
	if err != nil {
		return engine.SupplyPoint{}, err
	}
	return engine.SupplyPoint{ID: sup.ID, Node: engine.NodeID(sup.Node), Stock: sup.Stock}, nil
}

func writeSupplierLookupProblem(w http.ResponseWriter, r *http.Request, id string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusBadRequest, "Unknown supplier", id, r.URL.Path)
		return
	}
	writeProblem(w, http.StatusInternalServerError, "Supplier lookup failed", err.Error(), r.URL.Path)
}

func (s *Server) consumeStock(r *http.Request, allocations []engine.Allocation) {
	deltas := map[string]map[string]int{}
	for _, a := range allocations {
		if deltas[a.SupplierID] == nil {
			deltas[a.SupplierID] = map[string]int{}
		}
		deltas[a.SupplierID][a.Commodity] -= a.Quantity
	}
	for supplierID, delta := range deltas {
		_, _ = s.Store.AdjustStock(r.Context(), supplierID, delta)
	}
}

func (s *Server) finishFailedPlan(w http.ResponseWriter, r *http.Request, planID string, req model.PlanRequestIn, err error) {
	metrics.PlanRequests.WithLabelValues(model.PlanStatusFailed).Inc()

	plan := model.Plan{
		ID:               planID,
		Status:           model.PlanStatusFailed,
		CongestionFactor: req.CongestionFactor,
		ClosedTour:       req.ClosedTour,
		Error:            err.Error(),
		CreatedAt:        time.Now().UTC(),
	}
	_ = s.Store.SavePlan(r.Context(), plan)

	evt := model.Event{
		Type:   model.EventPlanFailed,
		PlanID: planID,
		At:     time.Now().UTC(),
		Data:   map[string]any{"error": err.Error()},
	}
	s.Broker.Publish(planID, evt)
	s.Pub.Emit(r.Context(), model.EventPlanFailed, planID, evt.Data)

	var stockErr *engine.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		s.Pub.Emit(r.Context(), model.EventStockInsufficient, planID, map[string]any{"commodities": stockErr.Commodities})
		writeProblem(w, http.StatusUnprocessableEntity, "Insufficient stock",
			"unmet commodities: "+strings.Join(stockErr.Commodities, ", "), r.URL.Path)
	case errors.Is(err, engine.ErrNoFeasibleTour), errors.Is(err, engine.ErrUnreachable):
		writeProblem(w, http.StatusUnprocessableEntity, "No feasible route", err.Error(), r.URL.Path)
	case errors.Is(err, engine.ErrNodeNotFound), errors.Is(err, engine.ErrBadCongestionFactor):
		writeProblem(w, http.StatusBadRequest, "Invalid plan request", err.Error(), r.URL.Path)
	default:
		// ErrCacheMiss and allocation invariant failures are engine defects.
		writeProblem(w, http.StatusInternalServerError, "Planning failed", err.Error(), r.URL.Path)
	}
}

func planFromResult(planID string, req model.PlanRequestIn, res engine.PlanResult) model.Plan {
	plan := model.Plan{
		ID:               planID,
		Status:           model.PlanStatusCompleted,
		TourCost:         res.TourCost,
		VisitingOrder:    nodeIDs(res.VisitingOrder),
		FullPath:         nodeIDs(res.FullPath),
		CongestionFactor: req.CongestionFactor,
		ClosedTour:       req.ClosedTour,
		Stats: model.PlanStatsOut{
			SubsetsTotal:    res.Stats.SubsetsTotal,
			SubsetsFeasible: res.Stats.SubsetsFeasible,
			SolverRuns:      res.Stats.SolverRuns,
		},
		CreatedAt: time.Now().UTC(),
	}
	for _, sp := range res.Suppliers {
		plan.SupplierIDs = append(plan.SupplierIDs, sp.ID)
	}
	for _, a := range res.Allocations {
		plan.Allocations = append(plan.Allocations, model.AllocationOut{
			DestinationID: a.DestinationID,
			Commodity:     a.Commodity,
			SupplierID:    a.SupplierID,
			Quantity:      a.Quantity,
		})
	}
	for _, seg := range res.Segments {
		plan.Segments = append(plan.Segments, model.SegmentOut{
			From: int64(seg.From), To: int64(seg.To), Meters: seg.Meters, Seconds: seg.Seconds,
		})
	}
	return plan
}

func nodeIDs(in []engine.NodeID) []int64 {
	out := make([]int64, len(in))
	for i, n := range in {
		out[i] = int64(n)
	}
	return out
}

// PlansHandler handles GET /v1/plans.
func (s *Server) PlansHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, err := s.Store.ListPlans(r.Context(), limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List plans failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// PlanByIDHandler handles /v1/plans/{id}, /v1/plans/{id}/guide and
// /v1/plans/{id}/events/ws.
func (s *Server) PlanByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/plans/")
	parts := strings.Split(rest, "/")
	id := parts[0]
	if id == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		plan, err := s.Store.GetPlan(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Plan not found", id, r.URL.Path)
			return
		}
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Get plan failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, plan)
	case len(parts) == 2 && parts[1] == "guide" && r.Method == http.MethodGet:
		s.planGuide(w, r, id)
	case len(parts) == 3 && parts[1] == "events" && parts[2] == "ws":
		s.planEventsWS(w, r, id)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	}
}

// planGuide renders turn-by-turn instructions for a stored plan. Supplier
// nodes are tagged as resupply stops, visited destinations as deliveries.
func (s *Server) planGuide(w http.ResponseWriter, r *http.Request, id string) {
	plan, err := s.Store.GetPlan(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Plan not found", id, r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get plan failed", err.Error(), r.URL.Path)
		return
	}
	if plan.Status != model.PlanStatusCompleted {
		writeProblem(w, http.StatusConflict, "Plan not completed", plan.Status, r.URL.Path)
		return
	}
	g, coords := s.Graph()
	if g == nil {
		writeProblem(w, http.StatusConflict, "No graph", "import a street network first", r.URL.Path)
		return
	}

	kinds := map[engine.NodeID]string{}
	supplierNodes := map[int64]bool{}
	for _, supID := range plan.SupplierIDs {
		if sup, err := s.Store.GetSupplier(r.Context(), supID); err == nil {
			supplierNodes[sup.Node] = true
			kinds[engine.NodeID(sup.Node)] = guide.KindResupply
		}
	}
	for i, n := range plan.VisitingOrder {
		if i == 0 || supplierNodes[n] {
			continue
		}
		kinds[engine.NodeID(n)] = guide.KindDelivery
	}

	gen := guide.NewGenerator(g, coords)
	path := make([]engine.NodeID, len(plan.FullPath))
	for i, n := range plan.FullPath {
		path[i] = engine.NodeID(n)
	}
	insts, err := gen.Guide(path, kinds)
	if err != nil {
		writeProblem(w, http.StatusUnprocessableEntity, "Guide unavailable", err.Error(), r.URL.Path)
		return
	}
	expectedMeters := 0.0
	if plan.CongestionFactor > 0 {
		expectedMeters = plan.TourCost / plan.CongestionFactor
	}
	if err := guide.Validate(insts, expectedMeters); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Guide invalid", err.Error(), r.URL.Path)
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(guide.RenderText(insts)))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"planId": id, "steps": insts})
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions.
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		p := s.getPrincipal(r)
		if !canPlan(p) {
			writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
			return
		}
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.URL == "" || len(req.Events) == 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url and events are required", r.URL.Path)
			return
		}
		for _, e := range req.Events {
			switch e {
			case model.EventPlanCompleted, model.EventPlanFailed, model.EventStockInsufficient:
			default:
				writeProblem(w, http.StatusBadRequest, "Invalid subscription", "unknown event type: "+e, r.URL.Path)
				return
			}
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		items, err := s.Store.ListSubscriptions(r.Context())
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}.
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !canPlan(p) {
		writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if err := s.Store.DeleteSubscription(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Subscription not found", id, r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Delete subscription failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthHandler handles GET /healthz.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler handles GET /readyz; ready means the store answers.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.Store.ListSuppliers(r.Context()); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
