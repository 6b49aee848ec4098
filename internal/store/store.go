package store

import (
	"context"
	"errors"
	"time"

	"floraroute/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Street network
	SaveGraph(ctx context.Context, g model.GraphImport) error
	LoadGraph(ctx context.Context) (model.GraphImport, error)

	// Suppliers
	CreateSupplier(ctx context.Context, in model.SupplierIn) (model.Supplier, error)
	GetSupplier(ctx context.Context, id string) (model.Supplier, error)
	ListSuppliers(ctx context.Context) ([]model.Supplier, error)
	// AdjustStock applies per-commodity deltas (negative to consume) and
	// fails without applying anything if any commodity would go negative.
	AdjustStock(ctx context.Context, id string, delta map[string]int) (model.Supplier, error)

	// Plans
	SavePlan(ctx context.Context, p model.Plan) error
	GetPlan(ctx context.Context, id string) (model.Plan, error)
	ListPlans(ctx context.Context, limit int) ([]model.Plan, error)

	// Webhook subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	ListSubscriptions(ctx context.Context) ([]model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error

	// Webhook delivery queue
	EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int) error
}

var ErrNotFound = errors.New("not found")

// ErrStockExhausted is returned by AdjustStock when a delta would drive a
// commodity below zero.
var ErrStockExhausted = errors.New("stock exhausted")
