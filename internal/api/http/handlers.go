// Package http provides the REST and bootstrap-page surface of the server.
package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shellmux/shellmux/internal/domain/session"
	"github.com/shellmux/shellmux/internal/infrastructure/logging"
)

// SessionService is the management surface the handlers delegate to.
// The app manager implements it.
type SessionService interface {
	CreateSession(command string, args []string, workingDir string) (*session.Session, error)
	SessionURL(id string) (string, error)
	DestroySession(id string)
}

// Handlers holds the HTTP endpoint implementations.
type Handlers struct {
	registry *session.Registry
	service  SessionService
	log      *logging.Logger
}

// NewHandlers creates the endpoint set.
func NewHandlers(registry *session.Registry, service SessionService, log *logging.Logger) *Handlers {
	if log == nil {
		log = logging.NewNop()
	}
	return &Handlers{
		registry: registry,
		service:  service,
		log:      log,
	}
}

// Root returns service identification.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "shellmux",
		"status":  "running",
	})
}

// Health returns liveness plus the current session count.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"sessions": h.registry.Len(),
	})
}

// createRequest is the POST /sessions body.
type createRequest struct {
	Command    string   `json:"command"`
	Args       []string `json:"args"`
	WorkingDir string   `json:"working_dir"`
}

// CreateSession allocates a new not-yet-started session and returns its
// bootstrap URL.
func (h *Handlers) CreateSession(c *gin.Context) {
	// An empty body is a valid request for a default-shell session.
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	sess, err := h.service.CreateSession(req.Command, req.Args, req.WorkingDir)
	if err != nil {
		if errors.Is(err, session.ErrCapacity) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "session limit reached"})
			return
		}
		h.log.Error("session creation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	url, err := h.service.SessionURL(sess.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session": sess.Info(),
		"url":     url,
	})
}

// ListSessions returns a snapshot of all registered sessions.
func (h *Handlers) ListSessions(c *gin.Context) {
	ids := h.registry.All()
	infos := make([]session.Info, 0, len(ids))
	for _, id := range ids {
		if sess, err := h.registry.Get(id); err == nil {
			infos = append(infos, sess.Info())
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": infos,
		"count":    len(infos),
	})
}

// GetSession returns one session's metadata.
func (h *Handlers) GetSession(c *gin.Context) {
	sess, err := h.registry.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}
	c.JSON(http.StatusOK, sess.Info())
}

// DeleteSession destroys a session. Unknown ids succeed so racing teardown
// requests never surface errors to clients.
func (h *Handlers) DeleteSession(c *gin.Context) {
	h.service.DestroySession(c.Param("id"))
	c.Status(http.StatusNoContent)
}
