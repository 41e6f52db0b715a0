package ws

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shellmux/shellmux/internal/domain/session"
	"github.com/shellmux/shellmux/internal/infrastructure/logging"
	"github.com/shellmux/shellmux/internal/infrastructure/monitoring"
)

// Starter performs the CREATED -> RUNNING transition: spawn the backend and
// launch the output pump on a session's first join. Implemented by the app
// manager; tests substitute a fake.
type Starter interface {
	EnsureStarted(sessionID string) error
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Loopback server for a single local user
	},
}

// Handler manages WebSocket connections for session rooms.
type Handler struct {
	registry *session.Registry
	hub      *Hub
	starter  Starter
	log      *logging.Logger
	metrics  *monitoring.Metrics
}

// NewHandler creates a new WebSocket handler.
func NewHandler(registry *session.Registry, hub *Hub, starter Starter, log *logging.Logger) *Handler {
	if log == nil {
		log = logging.NewNop()
	}
	return &Handler{
		registry: registry,
		hub:      hub,
		starter:  starter,
		log:      log,
	}
}

// WithMetrics attaches a metrics collector.
func (h *Handler) WithMetrics(m *monitoring.Metrics) *Handler {
	h.metrics = m
	return h
}

// HandleConnection upgrades the request and attaches the client to its
// session room. Unknown session ids are rejected before the upgrade.
func (h *Handler) HandleConnection(c *gin.Context) {
	sessionID := c.Query("session_id")

	sess, err := h.registry.Get(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}

	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cn := newConn(sock)
	go cn.writeLoop()

	// Join before spawning so the first output chunks of a short-lived
	// process reach this client.
	h.hub.join(sessionID, cn)
	defer func() {
		// Leaving never tears the session down; a reconnect resumes it.
		h.hub.leave(sessionID, cn)
		cn.close()
		if h.metrics != nil {
			h.metrics.WSConnections.Dec()
		}
	}()

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
	}

	if err := h.starter.EnsureStarted(sessionID); err != nil {
		h.log.Error("session start failed",
			zap.String("session_id", sessionID), zap.Error(err))
		cn.enqueue(Event{Type: EventError, SessionID: sessionID, Message: err.Error()})
		return
	}

	sess.Touch()
	h.log.Info("client attached",
		zap.String("session_id", sessionID), zap.String("conn_id", cn.id))

	h.readLoop(cn, sess)
}

func (h *Handler) readLoop(cn *conn, sess *session.Session) {
	for {
		var ev Event
		if err := cn.sock.ReadJSON(&ev); err != nil {
			return
		}
		if h.metrics != nil {
			h.metrics.WSMessages.WithLabelValues(ev.Type).Inc()
		}

		switch ev.Type {
		case EventHeartbeat:
			sess.Touch()

		case EventInput:
			h.handleInput(cn, sess, ev)

		case EventResize:
			h.handleResize(cn, sess, ev)

		default:
			cn.enqueue(Event{Type: EventError, SessionID: sess.ID, Message: "unknown event type"})
		}
	}
}

func (h *Handler) handleInput(cn *conn, sess *session.Session, ev Event) {
	proc := sess.Process()
	if proc == nil {
		cn.enqueue(Event{Type: EventError, SessionID: sess.ID, Message: session.ErrNotStarted.Error()})
		return
	}

	data, err := base64.StdEncoding.DecodeString(ev.Input)
	if err != nil {
		cn.enqueue(Event{Type: EventError, SessionID: sess.ID, Message: "input must be base64"})
		return
	}
	if _, err := proc.Write(data); err != nil {
		h.log.Warn("pty write failed",
			zap.String("session_id", sess.ID), zap.Error(err))
		cn.enqueue(Event{Type: EventError, SessionID: sess.ID, Message: "write failed"})
		return
	}

	if h.metrics != nil {
		h.metrics.RecordInput(len(data))
	}
	sess.Touch()
}

func (h *Handler) handleResize(cn *conn, sess *session.Session, ev Event) {
	proc := sess.Process()
	if proc == nil {
		cn.enqueue(Event{Type: EventError, SessionID: sess.ID, Message: session.ErrNotStarted.Error()})
		return
	}

	// Resize failures are not fatal; the shell just keeps its old size.
	if err := proc.Resize(ev.Rows, ev.Cols); err != nil {
		h.log.Warn("resize failed",
			zap.String("session_id", sess.ID), zap.Error(err))
		return
	}
	sess.SetSize(ev.Rows, ev.Cols)
	sess.Touch()
}
