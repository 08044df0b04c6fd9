package api

import (
	"net/http"
	"time"

	"fleetops/internal/buildinfo"
)

// DebugJSON handles /v1/debug with build and runtime configuration info.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	info := map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"addr":         s.Cfg.Addr,
			"authMode":     s.Cfg.Auth.Mode,
			"allowOrigins": s.Cfg.AllowOrigins,
			"rateRps":      s.Cfg.Rate.RPS,
			"rateBurst":    s.Cfg.Rate.Burst,
			"hasDatabase":  s.Cfg.DatabaseURL != "",
			"hasRedis":     s.Cfg.RedisURL != "",
		},
	}
	writeJSON(w, http.StatusOK, info)
}
