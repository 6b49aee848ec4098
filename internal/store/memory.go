package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"floraroute/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu        sync.Mutex
	graph     *model.GraphImport
	suppliers map[string]model.Supplier
	supOrder  []string // insertion order for listing
	plans     map[string]model.Plan
	subs      map[string]model.Subscription

	deliveries map[string]*memDelivery
	queue      []string // delivery ids in enqueue order
}

// memDelivery augments WebhookDelivery with scheduling state.
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	DeliveredAt   *time.Time
}

func NewMemory() *Memory {
	return &Memory{
		suppliers:  map[string]model.Supplier{},
		plans:      map[string]model.Plan{},
		subs:       map[string]model.Subscription{},
		deliveries: map[string]*memDelivery{},
	}
}

func (m *Memory) SaveGraph(ctx context.Context, g model.GraphImport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := model.GraphImport{
		Edges:  append([]model.EdgeIn(nil), g.Edges...),
		Coords: append([]model.NodeCoord(nil), g.Coords...),
	}
	m.graph = &cp
	return nil
}

func (m *Memory) LoadGraph(ctx context.Context) (model.GraphImport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.graph == nil {
		return model.GraphImport{}, ErrNotFound
	}
	return *m.graph, nil
}

func (m *Memory) CreateSupplier(ctx context.Context, in model.SupplierIn) (model.Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Supplier{
		ID:        uuid.New().String(),
		Name:      in.Name,
		Node:      in.Node,
		Stock:     copyStock(in.Stock),
		CreatedAt: time.Now().UTC(),
	}
	m.suppliers[s.ID] = s
	m.supOrder = append(m.supOrder, s.ID)
	return s, nil
}

func (m *Memory) GetSupplier(ctx context.Context, id string) (model.Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.suppliers[id]
	if !ok {
		return model.Supplier{}, ErrNotFound
	}
	s.Stock = copyStock(s.Stock)
	return s, nil
}

func (m *Memory) ListSuppliers(ctx context.Context) ([]model.Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Supplier, 0, len(m.supOrder))
	for _, id := range m.supOrder {
		s := m.suppliers[id]
		s.Stock = copyStock(s.Stock)
		out = append(out, s)
	}
	return out, nil
}

func (m *Memory) AdjustStock(ctx context.Context, id string, delta map[string]int) (model.Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.suppliers[id]
	if !ok {
		return model.Supplier{}, ErrNotFound
	}
	next := copyStock(s.Stock)
	for commodity, d := range delta {
		v := next[commodity] + d
		if v < 0 {
			return model.Supplier{}, fmt.Errorf("supplier %s commodity %s: %w", id, commodity, ErrStockExhausted)
		}
		next[commodity] = v
	}
	s.Stock = next
	m.suppliers[id] = s
	s.Stock = copyStock(next)
	return s, nil
}

func (m *Memory) SavePlan(ctx context.Context, p model.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[p.ID] = p
	return nil
}

func (m *Memory) GetPlan(ctx context.Context, id string) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return model.Plan{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) ListPlans(ctx context.Context, limit int) ([]model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	out := make([]model.Plan, 0, len(m.plans))
	for _, p := range m.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := model.Subscription{
		ID:        uuid.New().String(),
		URL:       req.URL,
		Events:    append([]string(nil), req.Events...),
		Secret:    req.Secret,
		CreatedAt: time.Now().UTC(),
	}
	m.subs[sub.ID] = sub
	return sub, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Subscription, 0, len(m.subs))
	for _, s := range m.subs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs {
		for _, e := range s.Events {
			if e == eventType {
				out = append(out, s)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[id]; !ok {
		return ErrNotFound
	}
	delete(m.subs, id)
	return nil
}

func (m *Memory) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.deliveries[id] = &memDelivery{
		WebhookDelivery: WebhookDelivery{
			ID:             id,
			SubscriptionID: subscriptionID,
			EventType:      eventType,
			URL:            url,
			Secret:         secret,
			Payload:        append([]byte(nil), payload...),
			Status:         "pending",
		},
		NextAttemptAt: time.Now(),
	}
	m.queue = append(m.queue, id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	now := time.Now()
	out := []WebhookDelivery{}
	for _, id := range m.queue {
		d := m.deliveries[id]
		if d == nil || len(out) >= limit {
			break
		}
		if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
			out = append(out, d.WebhookDelivery)
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.ResponseCode = responseCode
	if success {
		d.Status = "delivered"
		now := time.Now()
		d.DeliveredAt = &now
		return nil
	}
	d.Attempts++
	d.Status = "retry"
	d.LastError = lastError
	if nextAttemptAt != nil {
		d.NextAttemptAt = *nextAttemptAt
	} else {
		d.NextAttemptAt = time.Now().Add(time.Minute)
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.Status = "failed"
	d.LastError = lastError
	d.ResponseCode = responseCode
	return nil
}

func copyStock(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
