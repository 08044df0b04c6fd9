package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"fleetops/internal/metrics"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 20 * time.Second
)

// wsRequest is one inbound client frame.
type wsRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type roomTarget struct {
	UserID     string `json:"userId,omitempty"`
	DeliveryID string `json:"deliveryId,omitempty"`
}

type locationSample struct {
	DeliveryID string  `json:"deliveryId"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
}

// WSHandler handles /v1/ws. One goroutine reads and dispatches inbound
// frames; a second drains the session's event queue onto the socket. The
// connection always ends in Events.Disconnect, whether the close was clean or
// abrupt.
func (s *Server) WSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Warnw("ws upgrade failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	pr := s.getPrincipal(r)
	sess := s.Events.Connect()
	defer s.Events.Disconnect(sess)

	// Writer: outbound events plus keepalive pings. Write failures are
	// swallowed; the read loop notices the broken socket and tears down.
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case evt, ok := <-sess.Events():
				if !ok {
					return
				}
				if err := conn.WriteJSON(evt); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	var limiter *rate.Limiter
	if s.Cfg.Rate.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.Cfg.Rate.RPS), s.Cfg.Rate.Burst)
	}

	// Inbound dispatch table, keyed by message type.
	handlers := map[string]func(json.RawMessage){
		"subscribe-user": func(p json.RawMessage) {
			var t roomTarget
			if json.Unmarshal(p, &t) == nil && t.UserID != "" {
				s.Events.Subscribe(sess, UserRoom(t.UserID))
			}
		},
		"unsubscribe-user": func(p json.RawMessage) {
			var t roomTarget
			if json.Unmarshal(p, &t) == nil && t.UserID != "" {
				s.Events.Unsubscribe(sess, UserRoom(t.UserID))
			}
		},
		"subscribe-delivery": func(p json.RawMessage) {
			var t roomTarget
			if json.Unmarshal(p, &t) == nil && t.DeliveryID != "" {
				s.Events.Subscribe(sess, DeliveryRoom(t.DeliveryID))
			}
		},
		"unsubscribe-delivery": func(p json.RawMessage) {
			var t roomTarget
			if json.Unmarshal(p, &t) == nil && t.DeliveryID != "" {
				s.Events.Unsubscribe(sess, DeliveryRoom(t.DeliveryID))
			}
		},
		"subscribe-admins": func(json.RawMessage) {
			s.Events.Subscribe(sess, RoomAdmins)
		},
		"unsubscribe-admins": func(json.RawMessage) {
			s.Events.Unsubscribe(sess, RoomAdmins)
		},
		"driver-location": func(p json.RawMessage) {
			var ls locationSample
			if json.Unmarshal(p, &ls) != nil || ls.DeliveryID == "" {
				return
			}
			if pr.Role != "" && pr.Role != "driver" && !pr.IsAdmin() {
				return
			}
			if limiter != nil && !limiter.Allow() {
				metrics.LocationThrottled.Inc()
				return
			}
			s.Locations.Upsert(ls.DeliveryID, pr.UserID, ls.Lat, ls.Lng, time.Now().UTC().Format(time.RFC3339))
			s.Relay.Report(ls.DeliveryID, ls.Lat, ls.Lng)
		},
	}

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		var msg wsRequest
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		if h, ok := handlers[msg.Type]; ok {
			h(msg.Payload)
		}
		// unknown message types are ignored
	}
}
