package session

import (
	"errors"
	"sync"
	"time"

	"github.com/shellmux/shellmux/internal/backend"
	"github.com/shellmux/shellmux/internal/shared/id"
)

var (
	// ErrCapacity means the registry is at its configured maximum.
	ErrCapacity = errors.New("session: registry at capacity")
	// ErrNotFound means the session id is unknown.
	ErrNotFound = errors.New("session: not found")
	// ErrNotStarted means the operation needs a spawned backend process.
	ErrNotStarted = errors.New("session: not started")
	// ErrInactive means the session has been destroyed or its process died.
	ErrInactive = errors.New("session: inactive")
)

// Session binds a session id to its backend process handle, creation
// parameters and activity metadata. The process handle is owned exclusively
// by the session until destruction.
type Session struct {
	ID         string
	Command    string
	Args       []string
	WorkingDir string
	CreatedAt  time.Time

	mu           sync.RWMutex
	rows, cols   uint16
	proc         backend.Process
	started      bool
	active       bool
	lastActivity time.Time
}

func newSession(command string, args []string, workingDir string, rows, cols uint16) *Session {
	now := time.Now()
	return &Session{
		ID:           id.NewSessionID().String(),
		Command:      command,
		Args:         args,
		WorkingDir:   workingDir,
		CreatedAt:    now,
		rows:         rows,
		cols:         cols,
		active:       true,
		lastActivity: now,
	}
}

// Start spawns the backend process exactly once. It reports whether this
// call performed the spawn; callers launch the output pump only on true, so
// at most one pump ever exists per session. A spawn failure leaves the
// session unstarted and startable again.
func (s *Session) Start(spawn func() (backend.Process, error)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return false, ErrInactive
	}
	if s.started {
		return false, nil
	}

	proc, err := spawn()
	if err != nil {
		return false, err
	}

	s.proc = proc
	s.started = true
	s.lastActivity = time.Now()
	return true, nil
}

// Process returns the backend handle, nil until started.
func (s *Session) Process() backend.Process {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.proc
}

// Started reports whether the backend process has been spawned.
func (s *Session) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Active reports whether the session is still live.
func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Deactivate marks the session dead. The output pump observes this on its
// next poll and exits.
func (s *Session) Deactivate() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
}

// Touch refreshes the activity timestamp. Last writer wins.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// LastActivity returns the most recent heartbeat or traffic time.
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// SetSize records the current terminal dimensions.
func (s *Session) SetSize(rows, cols uint16) {
	s.mu.Lock()
	s.rows, s.cols = rows, cols
	s.mu.Unlock()
}

// Size returns the current terminal dimensions.
func (s *Session) Size() (rows, cols uint16) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows, s.cols
}

// Info is the public JSON representation of a session.
type Info struct {
	ID           string    `json:"id"`
	Command      string    `json:"command"`
	Args         []string  `json:"args,omitempty"`
	WorkingDir   string    `json:"working_dir,omitempty"`
	Rows         uint16    `json:"rows"`
	Cols         uint16    `json:"cols"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	Started      bool      `json:"started"`
	Active       bool      `json:"active"`
}

// Info snapshots the session for API responses.
func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{
		ID:           s.ID,
		Command:      s.Command,
		Args:         s.Args,
		WorkingDir:   s.WorkingDir,
		Rows:         s.rows,
		Cols:         s.cols,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.lastActivity,
		Started:      s.started,
		Active:       s.active,
	}
}
