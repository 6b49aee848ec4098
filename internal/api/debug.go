package api

import (
	"net/http"
	"time"

	"floraroute/internal/buildinfo"
	"floraroute/internal/engine"
)

// DebugJSON reports build info, effective config and per-plan work records.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	g, coords := s.Graph()
	info := map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"port":            s.Cfg.Port,
			"authMode":        s.Cfg.Auth.Mode,
			"rateRps":         s.Cfg.Rate.RPS,
			"rateBurst":       s.Cfg.Rate.Burst,
			"webhookAttempts": s.Cfg.Webhooks.MaxAttempts,
			"planner":         s.Cfg.Planner,
			"hasDatabaseUrl":  s.Cfg.DatabaseURL != "",
			"hasRedisUrl":     s.Cfg.RedisURL != "",
		},
		"planStats": engine.AllStats(),
	}
	if g != nil {
		info["graph"] = map[string]any{"nodes": g.NodeCount(), "edges": g.EdgeCount(), "coords": len(coords)}
	}
	writeJSON(w, http.StatusOK, info)
}
