// Package app wires the multiplexer together and exposes the session
// management surface consumed by the embedding application: create a
// session, resolve its bootstrap URL, destroy it, shut everything down.
package app

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	apihttp "github.com/shellmux/shellmux/internal/api/http"
	"github.com/shellmux/shellmux/internal/api/ws"
	"github.com/shellmux/shellmux/internal/backend"
	"github.com/shellmux/shellmux/internal/domain/session"
	"github.com/shellmux/shellmux/internal/infrastructure/config"
	"github.com/shellmux/shellmux/internal/infrastructure/logging"
	"github.com/shellmux/shellmux/internal/infrastructure/monitoring"
	"github.com/shellmux/shellmux/internal/infrastructure/server"
)

// Manager owns the registry, the hub, the sweeper and the network server.
// The server binds lazily on first session creation and is reused after.
type Manager struct {
	cfg      *config.Config
	log      *logging.Logger
	metrics  *monitoring.Metrics
	backend  backend.Backend
	registry *session.Registry
	hub      *ws.Hub
	server   *server.Server
	sweeper  *session.Sweeper

	runOnce      sync.Once
	runErr       error
	shutdownOnce sync.Once
}

// NewManager builds a fully wired but idle manager. No port is bound and no
// background task runs until the first session is created.
func NewManager(cfg *config.Config, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.NewNop()
	}

	metrics := monitoring.NewMetrics()
	registry := session.NewRegistry(cfg.Session.MaxSessions, log).WithMetrics(metrics)
	hub := ws.NewHub(log).WithMetrics(metrics)

	m := &Manager{
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
		backend:  backend.Default(),
		registry: registry,
		hub:      hub,
		sweeper: session.NewSweeper(
			registry,
			cfg.Session.SweepInterval,
			cfg.Session.InactivityTimeout,
			log,
		).WithMetrics(metrics),
	}

	handlers := apihttp.NewHandlers(registry, m, log)
	wsHandler := ws.NewHandler(registry, hub, m, log).WithMetrics(metrics)
	m.server = server.New(cfg, log, metrics, handlers, wsHandler)

	return m
}

// WithBackend overrides the process backend, used by tests to substitute a
// counting fake. Must be called before any session starts.
func (m *Manager) WithBackend(b backend.Backend) *Manager {
	m.backend = b
	return m
}

// ensureRunning lazily starts the server and the sweeper.
func (m *Manager) ensureRunning() error {
	m.runOnce.Do(func() {
		if m.runErr = m.server.Start(); m.runErr != nil {
			return
		}
		m.sweeper.Start()
	})
	return m.runErr
}

// CreateSession registers a new not-yet-started session. The backend
// process spawns later, on the first client join.
func (m *Manager) CreateSession(command string, args []string, workingDir string) (*session.Session, error) {
	if err := m.ensureRunning(); err != nil {
		return nil, err
	}

	if command == "" {
		command = m.cfg.Session.DefaultShell
	}
	return m.registry.Create(command, args, workingDir,
		uint16(m.cfg.Session.DefaultRows), uint16(m.cfg.Session.DefaultCols))
}

// SessionURL composes the bootstrap URL for a registered session.
func (m *Manager) SessionURL(id string) (string, error) {
	if _, err := m.registry.Get(id); err != nil {
		return "", err
	}
	addr, err := m.server.Addr()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http://%s/terminal/%s", addr, id), nil
}

// DestroySession tears a session down. Unknown ids are a no-op.
func (m *Manager) DestroySession(id string) {
	m.registry.Destroy(id)
}

// EnsureStarted performs the first-join transition: spawn the backend
// process and launch the session's output pump. Later joins are no-ops.
// A spawn failure leaves the session unstarted and is returned to the
// caller; no pump is launched.
func (m *Manager) EnsureStarted(id string) error {
	sess, err := m.registry.Get(id)
	if err != nil {
		return err
	}

	rows, cols := sess.Size()
	spawned, err := sess.Start(func() (backend.Process, error) {
		proc, spawnErr := m.backend.Spawn(backend.Spec{
			Command:    sess.Command,
			Args:       sess.Args,
			WorkingDir: sess.WorkingDir,
			Rows:       rows,
			Cols:       cols,
		})
		if spawnErr != nil {
			m.metrics.SpawnFailures.Inc()
		}
		return proc, spawnErr
	})
	if err != nil {
		return err
	}

	if spawned {
		m.log.Info("session started",
			zap.String("session_id", id),
			zap.String("backend", m.backend.Name()),
		)
		session.StartPump(sess, m.registry, m.hub, m.cfg.Session.PollTimeout, m.log)
	}
	return nil
}

// Registry exposes the session registry for read-side collaborators.
func (m *Manager) Registry() *session.Registry {
	return m.registry
}

// Addr returns the bound listener address once the server is running.
func (m *Manager) Addr() (string, error) {
	return m.server.Addr()
}

// Start binds the server eagerly. Optional; creation also starts it.
func (m *Manager) Start() error {
	return m.ensureRunning()
}

// Shutdown stops the sweeper, destroys every session and stops the network
// server. Safe to call multiple times.
func (m *Manager) Shutdown(ctx context.Context) error {
	var err error
	m.shutdownOnce.Do(func() {
		m.log.Info("shutting down multiplexer")
		m.sweeper.Stop()
		m.registry.DestroyAll()
		err = m.server.Shutdown(ctx)
		m.log.Sync()
	})
	return err
}
