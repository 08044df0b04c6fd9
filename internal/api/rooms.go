package api

import (
	"github.com/google/uuid"
)

// Room identifiers are opaque strings partitioned by convention:
// "user:<id>" for one account, "delivery:<id>" for everyone watching a
// delivery, and "admins" for all connected admin sessions. Rooms are never
// declared; a room exists while it has members and is dropped when the last
// member leaves.
const RoomAdmins = "admins"

func UserRoom(userID string) string         { return "user:" + userID }
func DeliveryRoom(deliveryID string) string { return "delivery:" + deliveryID }

// Event is a named payload pushed to subscriber sessions. Events are
// ephemeral: never stored, never replayed to late joiners.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

// Session is one live client connection. The transport writer drains Events()
// and actually pushes frames; the router only enqueues. All fields besides the
// channel itself are guarded by the owning router's mutex.
type Session struct {
	ID     string
	out    chan Event
	rooms  map[string]struct{}
	closed bool
}

func newSession(buffer int) *Session {
	return &Session{
		ID:    uuid.New().String(),
		out:   make(chan Event, buffer),
		rooms: map[string]struct{}{},
	}
}

// Events is the outbound queue for this session's transport writer. It is
// closed when the session is disconnected.
func (s *Session) Events() <-chan Event { return s.out }

// push enqueues without blocking. A full or closed queue drops the event:
// delivery is fire-and-forget and one slow recipient must not stall fan-out.
// Caller holds the router mutex.
func (s *Session) push(evt Event) bool {
	if s.closed {
		return false
	}
	select {
	case s.out <- evt:
		return true
	default:
		return false
	}
}

// roomDirectory maps room identifier -> member set, keeping the inverse set on
// each Session in step. It has no lock of its own; the EventRouter serializes
// all access. A missing key and an empty set both mean "no subscribers".
type roomDirectory struct {
	rooms map[string]map[*Session]struct{}
}

func newRoomDirectory() *roomDirectory {
	return &roomDirectory{rooms: map[string]map[*Session]struct{}{}}
}

// join is idempotent: joining a room already joined changes nothing.
func (d *roomDirectory) join(room string, s *Session) {
	m := d.rooms[room]
	if m == nil {
		m = map[*Session]struct{}{}
		d.rooms[room] = m
	}
	m[s] = struct{}{}
	s.rooms[room] = struct{}{}
}

// leave is idempotent: leaving a room not joined is a no-op, not an error.
func (d *roomDirectory) leave(room string, s *Session) {
	if m := d.rooms[room]; m != nil {
		delete(m, s)
		if len(m) == 0 {
			delete(d.rooms, room)
		}
	}
	delete(s.rooms, room)
}

func (d *roomDirectory) membersOf(room string) map[*Session]struct{} {
	return d.rooms[room]
}

// dropSession removes the session from every room it had joined. Called
// exactly once, on disconnect; cleanup must not depend on the client having
// unsubscribed first.
func (d *roomDirectory) dropSession(s *Session) {
	for room := range s.rooms {
		if m := d.rooms[room]; m != nil {
			delete(m, s)
			if len(m) == 0 {
				delete(d.rooms, room)
			}
		}
	}
	s.rooms = map[string]struct{}{}
}

func (d *roomDirectory) memberCount() int {
	n := 0
	for _, m := range d.rooms {
		n += len(m)
	}
	return n
}
