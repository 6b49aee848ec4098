package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"floraroute/internal/model"
)

func TestMemoryGraphRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.LoadGraph(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before import, got %v", err)
	}

	in := model.GraphImport{
		Edges:  []model.EdgeIn{{From: 1, To: 2, Meters: 100}},
		Coords: []model.NodeCoord{{Node: 1, Lat: -12.05, Lon: -77.03}},
	}
	if err := m.SaveGraph(ctx, in); err != nil {
		t.Fatalf("SaveGraph: %v", err)
	}
	got, err := m.LoadGraph(ctx)
	if err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}
	if len(got.Edges) != 1 || got.Edges[0].Meters != 100 {
		t.Fatalf("unexpected edges: %+v", got.Edges)
	}
	if len(got.Coords) != 1 || got.Coords[0].Node != 1 {
		t.Fatalf("unexpected coords: %+v", got.Coords)
	}
}

func TestMemorySuppliers(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	s, err := m.CreateSupplier(ctx, model.SupplierIn{Name: "vivero-centro", Node: 5, Stock: map[string]int{"roses": 10}})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}
	if s.ID == "" {
		t.Fatal("expected generated id")
	}

	got, err := m.GetSupplier(ctx, s.ID)
	if err != nil || got.Name != "vivero-centro" {
		t.Fatalf("GetSupplier: %+v err=%v", got, err)
	}
	// Mutating the returned map must not touch stored state.
	got.Stock["roses"] = 0
	again, _ := m.GetSupplier(ctx, s.ID)
	if again.Stock["roses"] != 10 {
		t.Fatalf("stored stock mutated: %+v", again.Stock)
	}

	if _, err := m.GetSupplier(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	list, err := m.ListSuppliers(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListSuppliers: %v %v", list, err)
	}
}

func TestMemoryAdjustStock(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	s, _ := m.CreateSupplier(ctx, model.SupplierIn{Name: "v", Node: 1, Stock: map[string]int{"roses": 5, "tulips": 2}})

	upd, err := m.AdjustStock(ctx, s.ID, map[string]int{"roses": -3})
	if err != nil {
		t.Fatalf("AdjustStock: %v", err)
	}
	if upd.Stock["roses"] != 2 || upd.Stock["tulips"] != 2 {
		t.Fatalf("unexpected stock: %+v", upd.Stock)
	}

	// Overdraw fails and leaves stock untouched.
	if _, err := m.AdjustStock(ctx, s.ID, map[string]int{"roses": -3}); !errors.Is(err, ErrStockExhausted) {
		t.Fatalf("expected ErrStockExhausted, got %v", err)
	}
	cur, _ := m.GetSupplier(ctx, s.ID)
	if cur.Stock["roses"] != 2 {
		t.Fatalf("failed adjust must not apply: %+v", cur.Stock)
	}

	if _, err := m.AdjustStock(ctx, "missing", map[string]int{"roses": 1}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryPlans(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	old := model.Plan{ID: "p1", Status: model.PlanStatusCompleted, CreatedAt: time.Now().Add(-time.Hour)}
	recent := model.Plan{ID: "p2", Status: model.PlanStatusFailed, CreatedAt: time.Now()}
	if err := m.SavePlan(ctx, old); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	if err := m.SavePlan(ctx, recent); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}

	got, err := m.GetPlan(ctx, "p1")
	if err != nil || got.Status != model.PlanStatusCompleted {
		t.Fatalf("GetPlan: %+v err=%v", got, err)
	}
	if _, err := m.GetPlan(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	list, err := m.ListPlans(ctx, 10)
	if err != nil || len(list) != 2 {
		t.Fatalf("ListPlans: %v %v", list, err)
	}
	if list[0].ID != "p2" {
		t.Fatalf("expected newest first, got %s", list[0].ID)
	}

	one, _ := m.ListPlans(ctx, 1)
	if len(one) != 1 {
		t.Fatalf("limit ignored: %v", one)
	}
}

func TestMemorySubscriptions(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	a, _ := m.CreateSubscription(ctx, model.SubscriptionRequest{
		URL: "https://a.example/hook", Events: []string{model.EventPlanCompleted}, Secret: "s1",
	})
	_, _ = m.CreateSubscription(ctx, model.SubscriptionRequest{
		URL: "https://b.example/hook", Events: []string{model.EventPlanFailed},
	})

	all, _ := m.ListSubscriptions(ctx)
	if len(all) != 2 {
		t.Fatalf("expected 2 subscriptions, got %d", len(all))
	}

	completed, _ := m.GetSubscriptionsForEvent(ctx, model.EventPlanCompleted)
	if len(completed) != 1 || completed[0].ID != a.ID {
		t.Fatalf("event filter wrong: %+v", completed)
	}

	if err := m.DeleteSubscription(ctx, a.ID); err != nil {
		t.Fatalf("DeleteSubscription: %v", err)
	}
	if err := m.DeleteSubscription(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestMemoryWebhookQueue(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id, err := m.EnqueueWebhook(ctx, "sub1", model.EventPlanCompleted, "https://a.example/hook", "sec", []byte(`{"x":1}`))
	if err != nil {
		t.Fatalf("EnqueueWebhook: %v", err)
	}

	due, err := m.FetchDueWebhookDeliveries(ctx, 10)
	if err != nil || len(due) != 1 || due[0].ID != id {
		t.Fatalf("FetchDue: %+v err=%v", due, err)
	}

	// Retry schedules into the future; nothing due until then.
	next := time.Now().Add(time.Hour)
	if err := m.MarkWebhookDelivery(ctx, id, false, &next, "boom", 502); err != nil {
		t.Fatalf("MarkWebhookDelivery retry: %v", err)
	}
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 0 {
		t.Fatalf("retry should not be due yet: %+v", due)
	}

	past := time.Now().Add(-time.Second)
	_ = m.MarkWebhookDelivery(ctx, id, false, &past, "boom", 502)
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 1 || due[0].Attempts != 2 {
		t.Fatalf("expected due retry with 2 attempts: %+v", due)
	}

	if err := m.MarkWebhookDelivery(ctx, id, true, nil, "", 200); err != nil {
		t.Fatalf("MarkWebhookDelivery success: %v", err)
	}
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 0 {
		t.Fatalf("delivered must leave the queue: %+v", due)
	}

	id2, _ := m.EnqueueWebhook(ctx, "sub1", model.EventPlanFailed, "https://a.example/hook", "", nil)
	if err := m.FailWebhookDelivery(ctx, id2, "gave up", 500); err != nil {
		t.Fatalf("FailWebhookDelivery: %v", err)
	}
	due, _ = m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 0 {
		t.Fatalf("failed must leave the queue: %+v", due)
	}
}
