package api

import (
	"sync"

	"go.uber.org/zap"

	"fleetops/internal/metrics"
)

// Event names on the wire. Clients depend on these strings; keep them stable.
// Location samples are published under the delivery id itself (see
// location.go), not a fixed name.
const (
	EventSubscribed        = "subscribed"
	EventUnsubscribed      = "unsubscribed"
	EventDeliveriesUpdated = "deliveries-updated"
	EventDriversUpdated    = "drivers-updated"
	EventStatusUpdated     = "status-updated"
)

// busBridge forwards locally-published events to other processes. Optional;
// see bus_redis.go.
type busBridge interface {
	Forward(room string, evt Event)
}

// EventRouter is the pub/sub core: it owns the room directory and fans
// published events out to current members. One instance is constructed at
// process start and handed to every collaborator that publishes or accepts
// connections; there is no ambient singleton.
//
// All operations take the one mutex, so each runs atomically with respect to
// the others and publishes to the same room are observed by every member in
// the same order.
type EventRouter struct {
	mu     sync.Mutex
	dir    *roomDirectory
	log    *zap.SugaredLogger
	bridge busBridge
	buffer int
}

func NewEventRouter(log *zap.SugaredLogger) *EventRouter {
	return &EventRouter{
		dir:    newRoomDirectory(),
		log:    log,
		buffer: 32,
	}
}

// SetBridge attaches a cross-process fan-out bridge. Call before serving.
func (r *EventRouter) SetBridge(b busBridge) { r.bridge = b }

// Connect registers a new session. The transport layer calls this once per
// established client connection.
func (r *EventRouter) Connect() *Session {
	s := newSession(r.buffer)
	metrics.WSConnections.Inc()
	r.log.Infow("session connected", "session", s.ID)
	return s
}

// Subscribe joins the session to a room and acks with a "subscribed" event.
// Succeeds even if the room has no other members.
func (r *EventRouter) Subscribe(s *Session, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dir.join(room, s)
	metrics.RoomMembers.Set(float64(r.dir.memberCount()))
	s.push(Event{Name: EventSubscribed, Data: map[string]string{"room": room}})
}

// Unsubscribe leaves a room and acks. Leaving a room the session never joined
// degrades to a no-op ack.
func (r *EventRouter) Unsubscribe(s *Session, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dir.leave(room, s)
	metrics.RoomMembers.Set(float64(r.dir.memberCount()))
	s.push(Event{Name: EventUnsubscribed, Data: map[string]string{"room": room}})
}

// Publish delivers data under name to every current member of room, in no
// particular member order, fire-and-forget. An empty or unknown room is a
// silent no-op: callers are not expected to know whether anyone is listening,
// and a broken recipient never surfaces as an error here.
func (r *EventRouter) Publish(room, name string, data any) {
	r.fanOut(room, Event{Name: name, Data: data})
	if r.bridge != nil {
		r.bridge.Forward(room, Event{Name: name, Data: data})
	}
}

// fanOut is the local-only delivery path; the Redis bridge calls it for
// remote-origin events so they are not re-forwarded.
func (r *EventRouter) fanOut(room string, evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := r.dir.membersOf(room)
	if len(members) == 0 {
		return
	}
	delivered := 0
	for s := range members {
		if s.push(evt) {
			delivered++
		} else {
			metrics.EventsDropped.Inc()
		}
	}
	metrics.EventsPublished.WithLabelValues(evt.Name).Inc()
	r.log.Debugw("published", "room", room, "event", evt.Name, "delivered", delivered)
}

// Disconnect removes the session from every room it had joined and closes its
// outbound queue. Must be called exactly once, on connection loss, clean or
// abrupt.
func (r *EventRouter) Disconnect(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.closed {
		return
	}
	r.dir.dropSession(s)
	s.closed = true
	close(s.out)
	metrics.WSConnections.Dec()
	metrics.RoomMembers.Set(float64(r.dir.memberCount()))
	r.log.Infow("session disconnected", "session", s.ID)
}

// Rooms joined by the session, for tests and the debug endpoint.
func (r *EventRouter) Rooms(s *Session) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(s.rooms))
	for room := range s.rooms {
		out = append(out, room)
	}
	return out
}

// MemberCount reports the number of sessions currently in room.
func (r *EventRouter) MemberCount(room string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.dir.membersOf(room))
}
