package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"floraroute/internal/model"
)

// Postgres persists the street network, suppliers, plans, subscriptions and
// the webhook queue. Used when DATABASE_URL is set.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// EnsureSchema creates the tables if they do not exist yet.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS graph_edges (
			from_node BIGINT NOT NULL,
			to_node   BIGINT NOT NULL,
			meters    DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (from_node, to_node)
		)`,
		`CREATE TABLE IF NOT EXISTS graph_nodes (
			node BIGINT PRIMARY KEY,
			lat  DOUBLE PRECISION NOT NULL,
			lon  DOUBLE PRECISION NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS suppliers (
			id         UUID PRIMARY KEY,
			name       TEXT NOT NULL,
			node       BIGINT NOT NULL,
			stock      JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS plans (
			id         UUID PRIMARY KEY,
			status     TEXT NOT NULL,
			doc        JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id         UUID PRIMARY KEY,
			url        TEXT NOT NULL,
			events     JSONB NOT NULL,
			secret     TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS webhook_deliveries (
			id              UUID PRIMARY KEY,
			subscription_id UUID,
			event_type      TEXT NOT NULL,
			url             TEXT NOT NULL,
			secret          TEXT,
			payload         BYTEA NOT NULL,
			status          TEXT NOT NULL DEFAULT 'pending',
			attempts        INT NOT NULL DEFAULT 0,
			next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_error      TEXT,
			response_code   INT,
			delivered_at    TIMESTAMPTZ,
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, s := range stmts {
		if _, err := p.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) SaveGraph(ctx context.Context, g model.GraphImport) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM graph_edges`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM graph_nodes`); err != nil {
		return err
	}
	for _, e := range g.Edges {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO graph_edges (from_node, to_node, meters) VALUES ($1,$2,$3)
			 ON CONFLICT (from_node, to_node) DO UPDATE SET meters=EXCLUDED.meters`,
			e.From, e.To, e.Meters); err != nil {
			return err
		}
	}
	for _, c := range g.Coords {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO graph_nodes (node, lat, lon) VALUES ($1,$2,$3)
			 ON CONFLICT (node) DO UPDATE SET lat=EXCLUDED.lat, lon=EXCLUDED.lon`,
			c.Node, c.Lat, c.Lon); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *Postgres) LoadGraph(ctx context.Context) (model.GraphImport, error) {
	var g model.GraphImport

	rows, err := p.db.QueryContext(ctx, `SELECT from_node, to_node, meters FROM graph_edges ORDER BY from_node, to_node`)
	if err != nil {
		return g, err
	}
	defer rows.Close()
	for rows.Next() {
		var e model.EdgeIn
		if err := rows.Scan(&e.From, &e.To, &e.Meters); err != nil {
			return g, err
		}
		g.Edges = append(g.Edges, e)
	}
	if err := rows.Err(); err != nil {
		return g, err
	}

	crows, err := p.db.QueryContext(ctx, `SELECT node, lat, lon FROM graph_nodes ORDER BY node`)
	if err != nil {
		return g, err
	}
	defer crows.Close()
	for crows.Next() {
		var c model.NodeCoord
		if err := crows.Scan(&c.Node, &c.Lat, &c.Lon); err != nil {
			return g, err
		}
		g.Coords = append(g.Coords, c)
	}
	if err := crows.Err(); err != nil {
		return g, err
	}

	if len(g.Edges) == 0 {
		return model.GraphImport{}, ErrNotFound
	}
	return g, nil
}

func (p *Postgres) CreateSupplier(ctx context.Context, in model.SupplierIn) (model.Supplier, error) {
	s := model.Supplier{
		ID:        uuid.New().String(),
		Name:      in.Name,
		Node:      in.Node,
		Stock:     in.Stock,
		CreatedAt: time.Now().UTC(),
	}
	stock, err := json.Marshal(in.Stock)
	if err != nil {
		return model.Supplier{}, err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO suppliers (id, name, node, stock, created_at) VALUES ($1,$2,$3,$4,$5)`,
		s.ID, s.Name, s.Node, stock, s.CreatedAt)
	if err != nil {
		return model.Supplier{}, err
	}
	return s, nil
}

func (p *Postgres) GetSupplier(ctx context.Context, id string) (model.Supplier, error) {
	var s model.Supplier
	var stock []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT id::text, name, node, stock, created_at FROM suppliers WHERE id=$1`, id).
		Scan(&s.ID, &s.Name, &s.Node, &stock, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Supplier{}, ErrNotFound
	}
	if err != nil {
		return model.Supplier{}, err
	}
	if err := json.Unmarshal(stock, &s.Stock); err != nil {
		return model.Supplier{}, err
	}
	return s, nil
}

func (p *Postgres) ListSuppliers(ctx context.Context) ([]model.Supplier, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, name, node, stock, created_at FROM suppliers ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Supplier{}
	for rows.Next() {
		var s model.Supplier
		var stock []byte
		if err := rows.Scan(&s.ID, &s.Name, &s.Node, &stock, &s.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(stock, &s.Stock); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) AdjustStock(ctx context.Context, id string, delta map[string]int) (model.Supplier, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Supplier{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var s model.Supplier
	var stock []byte
	err = tx.QueryRowContext(ctx,
		`SELECT id::text, name, node, stock, created_at FROM suppliers WHERE id=$1 FOR UPDATE`, id).
		Scan(&s.ID, &s.Name, &s.Node, &stock, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Supplier{}, ErrNotFound
	}
	if err != nil {
		return model.Supplier{}, err
	}
	if err := json.Unmarshal(stock, &s.Stock); err != nil {
		return model.Supplier{}, err
	}
	if s.Stock == nil {
		s.Stock = map[string]int{}
	}
	for commodity, d := range delta {
		v := s.Stock[commodity] + d
		if v < 0 {
			return model.Supplier{}, fmt.Errorf("supplier %s commodity %s: %w", id, commodity, ErrStockExhausted)
		}
		s.Stock[commodity] = v
	}
	next, err := json.Marshal(s.Stock)
	if err != nil {
		return model.Supplier{}, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE suppliers SET stock=$2 WHERE id=$1`, id, next); err != nil {
		return model.Supplier{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Supplier{}, err
	}
	return s, nil
}

func (p *Postgres) SavePlan(ctx context.Context, plan model.Plan) error {
	doc, err := json.Marshal(plan)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO plans (id, status, doc, created_at) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (id) DO UPDATE SET status=EXCLUDED.status, doc=EXCLUDED.doc`,
		plan.ID, plan.Status, doc, plan.CreatedAt)
	return err
}

func (p *Postgres) GetPlan(ctx context.Context, id string) (model.Plan, error) {
	var doc []byte
	err := p.db.QueryRowContext(ctx, `SELECT doc FROM plans WHERE id=$1`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Plan{}, ErrNotFound
	}
	if err != nil {
		return model.Plan{}, err
	}
	var plan model.Plan
	if err := json.Unmarshal(doc, &plan); err != nil {
		return model.Plan{}, err
	}
	return plan, nil
}

func (p *Postgres) ListPlans(ctx context.Context, limit int) ([]model.Plan, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT doc FROM plans ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Plan{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var plan model.Plan
		if err := json.Unmarshal(doc, &plan); err != nil {
			return nil, err
		}
		out = append(out, plan)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	sub := model.Subscription{
		ID:        uuid.New().String(),
		URL:       req.URL,
		Events:    req.Events,
		Secret:    req.Secret,
		CreatedAt: time.Now().UTC(),
	}
	events, err := json.Marshal(req.Events)
	if err != nil {
		return model.Subscription{}, err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, url, events, secret, created_at) VALUES ($1,$2,$3,$4,$5)`,
		sub.ID, sub.URL, events, nullIfEmpty(sub.Secret), sub.CreatedAt)
	if err != nil {
		return model.Subscription{}, err
	}
	return sub, nil
}

func (p *Postgres) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	return p.querySubscriptions(ctx,
		`SELECT id::text, url, events, COALESCE(secret,''), created_at FROM subscriptions ORDER BY created_at`)
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	return p.querySubscriptions(ctx,
		`SELECT id::text, url, events, COALESCE(secret,''), created_at FROM subscriptions
		 WHERE events @> to_jsonb(ARRAY[$1::text]) ORDER BY created_at`, eventType)
}

func (p *Postgres) querySubscriptions(ctx context.Context, q string, args ...any) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		var events []byte
		if err := rows.Scan(&s.ID, &s.URL, &events, &s.Secret, &s.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(events, &s.Events); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO webhook_deliveries (id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at)
		 VALUES ($1,$2,$3,$4,$5,$6,'pending',0,now())`,
		id, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
		 FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now()
		 ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error {
	if success {
		_, err := p.db.ExecContext(ctx,
			`UPDATE webhook_deliveries SET status='delivered', delivered_at=now(), updated_at=now(), response_code=$2 WHERE id=$1`,
			id, responseCode)
		return err
	}
	if nextAttemptAt == nil {
		t := time.Now().Add(time.Minute)
		nextAttemptAt = &t
	}
	_, err := p.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4 WHERE id=$1`,
		id, nullIfEmpty(lastError), *nextAttemptAt, responseCode)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET status='failed', last_error=$2, updated_at=now(), response_code=$3 WHERE id=$1`,
		id, nullIfEmpty(lastError), responseCode)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
