package session

import (
	"sync"

	"go.uber.org/zap"

	"github.com/shellmux/shellmux/internal/infrastructure/logging"
	"github.com/shellmux/shellmux/internal/infrastructure/monitoring"
)

// Registry is the concurrency-safe session map with bounded capacity.
// A single mutex guards all structural changes; snapshots copy the key set
// so sweeps never block creation or destruction.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	max      int
	log      *logging.Logger
	metrics  *monitoring.Metrics
}

// NewRegistry creates a registry holding at most max sessions.
func NewRegistry(max int, log *logging.Logger) *Registry {
	if log == nil {
		log = logging.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		max:      max,
		log:      log,
	}
}

// WithMetrics attaches a metrics collector.
func (r *Registry) WithMetrics(m *monitoring.Metrics) *Registry {
	r.metrics = m
	return r
}

// Create inserts a new not-yet-started session. Creation beyond the
// capacity limit is rejected, never queued and never evicting.
func (r *Registry) Create(command string, args []string, workingDir string, rows, cols uint16) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= r.max {
		return nil, ErrCapacity
	}

	s := newSession(command, args, workingDir, rows, cols)
	r.sessions[s.ID] = s

	if r.metrics != nil {
		r.metrics.SessionsCreated.Inc()
		r.metrics.SessionsActive.Set(float64(len(r.sessions)))
	}
	r.log.Info("session created",
		zap.String("session_id", s.ID),
		zap.String("command", command),
		zap.Int("registered", len(r.sessions)),
	)
	return s, nil
}

// Get returns the session for id or ErrNotFound.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Destroy removes the session and releases its backend handle. Unknown ids
// are a no-op so racing teardown paths (pump exit, sweeper, client request)
// never error. Backend cleanup runs outside the registry lock because the
// kill grace period may block.
func (r *Registry) Destroy(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
		if r.metrics != nil {
			r.metrics.SessionsDestroyed.Inc()
			r.metrics.SessionsActive.Set(float64(len(r.sessions)))
		}
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	s.Deactivate()
	if proc := s.Process(); proc != nil {
		if err := proc.Cleanup(); err != nil {
			r.log.Warn("backend cleanup failed",
				zap.String("session_id", id), zap.Error(err))
		}
	}
	r.log.Info("session destroyed", zap.String("session_id", id))
}

// DestroyAll tears down every registered session.
func (r *Registry) DestroyAll() {
	for _, id := range r.All() {
		r.Destroy(id)
	}
}

// All returns a point-in-time copy of the registered session ids.
func (r *Registry) All() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the current number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
