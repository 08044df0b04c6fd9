package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fleetops/internal/auth"
	"fleetops/internal/config"
	"fleetops/internal/store"
)

type Server struct {
	Cfg       *config.Config
	Store     store.Store
	Auth      *auth.Verifier
	Log       *zap.SugaredLogger
	Events    *EventRouter
	Relay     *LocationRelay
	Locations *LocationCache

	upgrader websocket.Upgrader
}

// NewServer wires the store, the event router, and the websocket transport.
// The router is built here, once, and handed to everything that publishes;
// nothing reaches for it through a global.
func NewServer(cfg *config.Config, log *zap.SugaredLogger) (*Server, error) {
	var st store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		st = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		// Run migrations (dev helper)
		if cfg.Migrate {
			_ = sp.MigrateDir("db/migrations")
		}
		st = sp
	}

	router := NewEventRouter(log)
	if cfg.RedisURL != "" {
		bus, err := NewRedisBus(cfg.RedisURL, router, log)
		if err != nil {
			return nil, err
		}
		if err := bus.Start(context.Background()); err != nil {
			return nil, err
		}
		router.SetBridge(bus)
	}

	s := &Server{
		Cfg:       cfg,
		Store:     st,
		Auth:      auth.NewVerifier(cfg.Auth.Mode, cfg.Auth.HMACSecret),
		Log:       log,
		Events:    router,
		Relay:     NewLocationRelay(router),
		Locations: NewLocationCache(),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return cfg.OriginAllowed(r.Header.Get("Origin"))
		},
	}
	return s, nil
}

// notify publishes a domain event after a committed state change. Delivery is
// advisory and fire-and-forget: it can never fail the HTTP request that
// triggered it. A nil router here is a bootstrap-order bug, so it panics
// instead of dropping notifications silently.
func (s *Server) notify(room, event string, data any) {
	if s.Events == nil {
		panic("api: event router not initialized before publish")
	}
	s.Events.Publish(room, event, data)
}
