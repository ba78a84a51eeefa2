// Package stream provides WebSocket-based chat event streaming: composition
// edits flow in from the client, transcript and nudge events flow out.
package stream

import (
	"container/list"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/aishura/aishura/internal/domain"
	"github.com/coder/websocket"
)

// writeTimeout bounds a single outbound event write.
const writeTimeout = 5 * time.Second

// Event is one outbound stream message.
type Event struct {
	Type      string      `json:"type"` // "turn", "nudge", "connected", "error"
	SessionID string      `json:"session_id,omitempty"`
	Turn      *domain.Turn `json:"turn,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// eventQueue buffers events for disconnected users, sharded per user so one
// user's burst cannot evict another's pending events.
type eventQueue struct {
	mu      sync.Mutex
	queues  map[string]*list.List // userID -> events
	maxSize int
}

func newEventQueue(maxSize int) *eventQueue {
	if maxSize <= 0 {
		maxSize = 100 // keep last 100 events per user
	}
	return &eventQueue{
		queues:  make(map[string]*list.List),
		maxSize: maxSize,
	}
}

func (q *eventQueue) enqueue(userID string, event Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	l, ok := q.queues[userID]
	if !ok {
		l = list.New()
		q.queues[userID] = l
	}
	l.PushBack(event)
	// Evict oldest events only within this user's queue.
	for l.Len() > q.maxSize {
		l.Remove(l.Front())
	}
}

func (q *eventQueue) drain(userID string) []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	l, ok := q.queues[userID]
	if !ok {
		return nil
	}
	delete(q.queues, userID)

	events := make([]Event, 0, l.Len())
	for e := l.Front(); e != nil; e = e.Next() {
		events = append(events, e.Value.(Event))
	}
	return events
}

func (q *eventQueue) prune(userID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.queues, userID)
}

// Hub manages active WebSocket connections per user and fans transcript
// events out to them. Events for offline users are buffered in a bounded
// queue and replayed on the next connect.
type Hub struct {
	mu     sync.RWMutex
	active map[string]map[int64]*connection
	queue  *eventQueue
	connID int64
}

type connection struct {
	id   int64
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		active: make(map[string]map[int64]*connection),
		queue:  newEventQueue(100),
	}
}

// Register adds a connection for a user and replays buffered events.
func (h *Hub) Register(userID string, ws *websocket.Conn) int64 {
	h.mu.Lock()
	h.connID++
	id := h.connID
	c := &connection{id: id, conn: ws}
	if _, ok := h.active[userID]; !ok {
		h.active[userID] = make(map[int64]*connection)
	}
	h.active[userID][id] = c
	h.mu.Unlock()

	slog.Info("Stream connection registered", "user_id", userID, "conn_id", id)

	for _, event := range h.queue.drain(userID) {
		h.send(userID, c, event)
	}
	return id
}

// Unregister removes a connection for a user.
func (h *Hub) Unregister(userID string, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.active[userID]; ok {
		delete(conns, id)
		if len(conns) == 0 {
			delete(h.active, userID)
		}
	}
	slog.Info("Stream connection unregistered", "user_id", userID, "conn_id", id)
}

// Connected reports whether the user has at least one live connection.
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active[userID]) > 0
}

// TurnAppended implements the chat notifier: it pushes the turn to all of the
// user's connections, or buffers it when the user is offline. Never blocks.
func (h *Hub) TurnAppended(userID, sessionID string, turn domain.Turn) {
	eventType := "turn"
	if turn.IsNudge {
		eventType = "nudge"
	}
	event := Event{Type: eventType, SessionID: sessionID, Turn: &turn}

	h.mu.RLock()
	conns := make([]*connection, 0, len(h.active[userID]))
	for _, c := range h.active[userID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		h.queue.enqueue(userID, event)
		return
	}
	for _, c := range conns {
		go h.send(userID, c, event)
	}
}

// DropUser evicts buffered events for a user (retention eviction path).
func (h *Hub) DropUser(userID string) {
	h.queue.prune(userID)
}

func (h *Hub) send(userID string, c *connection, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal stream event", "error", err, "user_id", userID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("Stream write failed", "error", err, "user_id", userID, "conn_id", c.id)
	}
}
