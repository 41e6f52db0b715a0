// Package server owns the HTTP/WebSocket listener. The server is an
// explicitly constructed object injected into whoever needs it, so tests can
// run independent instances side by side.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/shellmux/shellmux/internal/api/http"
	"github.com/shellmux/shellmux/internal/api/middleware"
	"github.com/shellmux/shellmux/internal/api/ws"
	"github.com/shellmux/shellmux/internal/infrastructure/config"
	"github.com/shellmux/shellmux/internal/infrastructure/logging"
	"github.com/shellmux/shellmux/internal/infrastructure/monitoring"
)

// ErrNotStarted is returned when the bound address is requested before
// Start.
var ErrNotStarted = errors.New("server: not started")

// Server wraps the router and the lazily bound listener.
type Server struct {
	cfg     *config.Config
	log     *logging.Logger
	engine  *gin.Engine
	httpSrv *http.Server

	mu        sync.Mutex
	listener  net.Listener
	addr      string
	startOnce sync.Once
	startErr  error
	stopOnce  sync.Once
}

// New assembles the router and middleware. Nothing binds until Start.
func New(cfg *config.Config, log *logging.Logger, metrics *monitoring.Metrics, handlers *apihttp.Handlers, wsHandler *ws.Handler) *Server {
	if log == nil {
		log = logging.NewNop()
	}
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(monitoring.Middleware(metrics))
	engine.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		engine.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	engine.GET("/", handlers.Root)
	engine.GET("/health", handlers.Health)

	engine.GET("/terminal/:id", handlers.Terminal)

	engine.POST("/sessions", handlers.CreateSession)
	engine.GET("/sessions", handlers.ListSessions)
	engine.GET("/sessions/:id", handlers.GetSession)
	engine.DELETE("/sessions/:id", handlers.DeleteSession)

	engine.GET("/ws", wsHandler.HandleConnection)

	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	return &Server{
		cfg:    cfg,
		log:    log,
		engine: engine,
	}
}

// Start binds the listener and begins serving. The first call does the
// work; later calls return its result, so callers may invoke Start on every
// session creation.
func (s *Server) Start() error {
	s.startOnce.Do(func() {
		bind := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
		listener, err := net.Listen("tcp", bind)
		if err != nil {
			s.startErr = fmt.Errorf("failed to bind %s: %w", bind, err)
			return
		}

		s.mu.Lock()
		s.listener = listener
		s.addr = listener.Addr().String()
		s.httpSrv = &http.Server{Handler: s.engine}
		s.mu.Unlock()

		s.log.Info("server listening", zap.String("addr", s.addr))

		go func() {
			if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
				s.log.Error("server stopped unexpectedly", zap.Error(err))
			}
		}()
	})
	return s.startErr
}

// Started reports whether the listener is bound.
func (s *Server) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener != nil
}

// Addr returns the bound host:port.
func (s *Server) Addr() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return "", ErrNotStarted
	}
	return s.addr, nil
}

// Shutdown stops serving. Safe to call multiple times and before Start.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.mu.Lock()
		srv := s.httpSrv
		s.mu.Unlock()

		if srv == nil {
			return
		}
		s.log.Info("shutting down server")
		err = srv.Shutdown(ctx)
	})
	return err
}
