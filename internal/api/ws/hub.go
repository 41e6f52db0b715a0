package ws

import (
	"encoding/base64"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shellmux/shellmux/internal/infrastructure/logging"
	"github.com/shellmux/shellmux/internal/infrastructure/monitoring"
	"github.com/shellmux/shellmux/internal/shared/id"
)

// Event is the wire format for channel messages in both directions.
// Binary payloads (input, output) cross the JSON channel base64-encoded.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Input     string `json:"input,omitempty"`
	Output    string `json:"output,omitempty"`
	Rows      uint16 `json:"rows,omitempty"`
	Cols      uint16 `json:"cols,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Event types.
const (
	EventHeartbeat = "heartbeat"
	EventInput     = "pty-input"
	EventResize    = "resize"
	EventOutput    = "pty-output"
	EventEnded     = "session-ended"
	EventError     = "error"
)

// sendQueueSize bounds the per-connection outbound queue. A client that
// cannot keep up loses frames rather than stalling the output pump.
const sendQueueSize = 256

// conn is one client attached to a room. mu orders enqueue against close:
// a pump broadcast may race the disconnect path, and sending on a closed
// channel would panic the pump goroutine.
type conn struct {
	id   string
	sock *websocket.Conn

	mu     sync.Mutex
	send   chan Event
	closed bool
}

func newConn(sock *websocket.Conn) *conn {
	return &conn{
		id:   id.NewConnID().String(),
		sock: sock,
		send: make(chan Event, sendQueueSize),
	}
}

// writeLoop drains the send queue onto the socket. It owns all writes so
// the pump and the handler never interleave frames.
func (c *conn) writeLoop() {
	for ev := range c.send {
		if err := c.sock.WriteJSON(ev); err != nil {
			break
		}
	}
	c.sock.Close()
}

// enqueue queues an event without blocking; full queues drop, closed
// connections discard.
func (c *conn) enqueue(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	select {
	case c.send <- ev:
	default:
	}
}

// close stops the write loop. Idempotent.
func (c *conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Hub is the room registry: session id -> attached connections.
// It implements session.Broadcaster for the output pump.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*conn]struct{}
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewHub creates an empty hub.
func NewHub(log *logging.Logger) *Hub {
	if log == nil {
		log = logging.NewNop()
	}
	return &Hub{
		rooms: make(map[string]map[*conn]struct{}),
		log:   log,
	}
}

// WithMetrics attaches a metrics collector.
func (h *Hub) WithMetrics(m *monitoring.Metrics) *Hub {
	h.metrics = m
	return h
}

func (h *Hub) join(room string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	peers, ok := h.rooms[room]
	if !ok {
		peers = make(map[*conn]struct{})
		h.rooms[room] = peers
	}
	peers[c] = struct{}{}

	h.log.Debug("client joined room",
		zap.String("room", room), zap.String("conn_id", c.id))
}

func (h *Hub) leave(room string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if peers, ok := h.rooms[room]; ok {
		delete(peers, c)
		if len(peers) == 0 {
			delete(h.rooms, room)
		}
	}
}

// RoomSize reports the number of clients attached to a session.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// broadcast fans an event out to every connection in the room.
func (h *Hub) broadcast(room string, ev Event) {
	h.mu.RLock()
	peers := make([]*conn, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		peers = append(peers, c)
	}
	h.mu.RUnlock()

	for _, c := range peers {
		c.enqueue(ev)
	}
}

// BroadcastOutput delivers a PTY output chunk to the session's room.
func (h *Hub) BroadcastOutput(sessionID string, output []byte) {
	if h.metrics != nil {
		h.metrics.RecordOutput(len(output))
		h.metrics.WSMessages.WithLabelValues(EventOutput).Inc()
	}
	h.broadcast(sessionID, Event{
		Type:      EventOutput,
		SessionID: sessionID,
		Output:    base64.StdEncoding.EncodeToString(output),
	})
}

// BroadcastEnded announces process exit or destruction to the room.
func (h *Hub) BroadcastEnded(sessionID string) {
	if h.metrics != nil {
		h.metrics.WSMessages.WithLabelValues(EventEnded).Inc()
	}
	h.broadcast(sessionID, Event{
		Type:      EventEnded,
		SessionID: sessionID,
	})
}
