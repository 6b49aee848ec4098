package api

import (
	"context"
	"strings"
	"sync"

	"floraroute/internal/auth"
	"floraroute/internal/config"
	"floraroute/internal/engine"
	"floraroute/internal/guide"
	"floraroute/internal/store"
	"floraroute/internal/webhooks"
)

type Server struct {
	Cfg    config.Config
	Store  store.Store
	Pub    *webhooks.Publisher
	Auth   *auth.Verifier
	Broker EventBroker

	// The street network is built once per import and swapped atomically;
	// planning only ever reads it.
	mu     sync.RWMutex
	graph  *engine.Graph
	coords map[engine.NodeID]guide.Coord
}

// NewServer wires the store, broker and verifier from config. With no
// DATABASE_URL it runs fully in memory; with no REDIS_URL events stay
// in-process.
func NewServer(cfg config.Config) (*Server, error) {
	var st store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		st = store.NewMemory()
	} else {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(context.Background()); err != nil {
			return nil, err
		}
		st = pg
	}

	var broker EventBroker
	if cfg.RedisURL != "" {
		rb, err := NewRedisBroker(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		broker = rb
	} else {
		broker = NewBroker()
	}

	s := &Server{
		Cfg:    cfg,
		Store:  st,
		Pub:    webhooks.NewPublisher(st),
		Auth:   auth.NewVerifier(cfg.Auth.Mode, cfg.Auth.HMACSecret),
		Broker: broker,
	}
	s.restoreGraph()
	return s, nil
}

// restoreGraph rebuilds the in-memory network from the store, if one was
// imported in a previous run.
func (s *Server) restoreGraph() {
	imp, err := s.Store.LoadGraph(context.Background())
	if err != nil {
		return
	}
	g, coords, err := buildGraph(imp)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.graph = g
	s.coords = coords
	s.mu.Unlock()
}

// Graph returns the current network and coordinates for read-only use.
func (s *Server) Graph() (*engine.Graph, map[engine.NodeID]guide.Coord) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph, s.coords
}

// NewWebhookWorker creates the background delivery worker.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.Cfg.Webhooks.MaxAttempts)
}
