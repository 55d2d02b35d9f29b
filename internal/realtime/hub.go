package realtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrHubClosed is returned by Publish after Close.
var ErrHubClosed = errors.New("realtime hub closed")

// Frame is the JSON envelope of every websocket message, in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ConnectedUser describes a user with at least one open connection.
type ConnectedUser struct {
	UserID      uuid.UUID `json:"userId"`
	Connections int       `json:"connections"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// Hub tracks connections and their room subscriptions and fans published
// events out to them. Delivery is best effort and at most once.
type Hub struct {
	logger *slog.Logger

	mu     sync.RWMutex
	conns  map[*Conn]struct{}
	rooms  map[string]map[*Conn]struct{}
	closed bool
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		conns:  make(map[*Conn]struct{}),
		rooms:  make(map[string]map[*Conn]struct{}),
	}
}

func encodeFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: data})
}

// Publish delivers event to every connection in room. An empty room is not
// an error. Connections whose queue is full are dropped.
func (h *Hub) Publish(room, event string, payload any) error {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		return err
	}

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return ErrHubClosed
	}
	targets := make([]*Conn, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	var dropped []*Conn
	for _, c := range targets {
		if err := c.enqueue(frame); err != nil {
			dropped = append(dropped, c)
		}
	}
	for _, c := range dropped {
		h.logger.Warn("dropping slow realtime connection", "user_id", c.UserID, "conn_id", c.ID, "room", room)
		h.unregister(c)
	}
	return nil
}

// send queues a frame to a single connection.
func (h *Hub) send(c *Conn, event string, payload any) {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		h.logger.Error("encode realtime frame", "event", event, "error", err)
		return
	}
	if err := c.enqueue(frame); err != nil {
		h.unregister(c)
	}
}

func (h *Hub) register(c *Conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	h.conns[c] = struct{}{}
	return nil
}

func (h *Hub) unregister(c *Conn) {
	h.mu.Lock()
	if _, ok := h.conns[c]; ok {
		delete(h.conns, c)
		for room := range c.rooms {
			h.removeLocked(c, room)
		}
	}
	h.mu.Unlock()
	c.Close()
}

// Join subscribes c to room.
func (h *Hub) Join(c *Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Conn]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

// Leave unsubscribes c from room.
func (h *Hub) Leave(c *Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c, room)
}

// LeaveUser unsubscribes every connection of userID from room.
func (h *Hub) LeaveUser(userID uuid.UUID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[room] {
		if c.UserID == userID {
			h.removeLocked(c, room)
		}
	}
}

func (h *Hub) removeLocked(c *Conn, room string) {
	delete(c.rooms, room)
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// RoomSize returns the number of connections subscribed to room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ConnectedUsers lists users with open connections, ordered by first connection.
func (h *Hub) ConnectedUsers() []ConnectedUser {
	h.mu.RLock()
	byUser := make(map[uuid.UUID]*ConnectedUser)
	for c := range h.conns {
		u, ok := byUser[c.UserID]
		if !ok {
			u = &ConnectedUser{UserID: c.UserID, ConnectedAt: c.ConnectedAt}
			byUser[c.UserID] = u
		}
		u.Connections++
		if c.ConnectedAt.Before(u.ConnectedAt) {
			u.ConnectedAt = c.ConnectedAt
		}
	}
	h.mu.RUnlock()

	users := make([]ConnectedUser, 0, len(byUser))
	for _, u := range byUser {
		users = append(users, *u)
	}
	slices.SortFunc(users, func(a, b ConnectedUser) int {
		if c := a.ConnectedAt.Compare(b.ConnectedAt); c != 0 {
			return c
		}
		return slices.Compare(a.UserID[:], b.UserID[:])
	})
	return users
}

// IsUserConnected reports whether the user has at least one open connection.
func (h *Hub) IsUserConnected(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

// Close disconnects every connection. Later publishes fail with ErrHubClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[*Conn]struct{})
	h.rooms = make(map[string]map[*Conn]struct{})
	h.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
