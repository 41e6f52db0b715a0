package session

import (
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/shellmux/shellmux/internal/backend"
	"github.com/shellmux/shellmux/internal/infrastructure/logging"
)

// Broadcaster delivers pump events to whatever network layer is attached.
// The WebSocket hub implements it in production; tests use a recording fake.
type Broadcaster interface {
	BroadcastOutput(sessionID string, output []byte)
	BroadcastEnded(sessionID string)
}

// StartPump launches the output pump goroutine for a just-started session.
// Exactly one pump runs per session: callers gate on Session.Start having
// returned true.
//
// The pump polls the backend with a bounded timeout so it stays responsive
// to Deactivate. Every exit path announces session-ended to the room and
// destroys the registry entry, so no backend handle outlives its process.
func StartPump(s *Session, reg *Registry, b Broadcaster, pollTimeout time.Duration, log *logging.Logger) {
	if log == nil {
		log = logging.NewNop()
	}

	proc := s.Process()
	if proc == nil {
		return
	}

	go func() {
		defer func() {
			s.Deactivate()
			b.BroadcastEnded(s.ID)
			reg.Destroy(s.ID)
			log.Info("output pump stopped", zap.String("session_id", s.ID))
		}()

		for s.Active() {
			chunk, err := proc.ReadOutput(pollTimeout)
			if err != nil {
				if err != io.EOF {
					// Transient read failures degrade to a liveness check.
					log.Warn("backend read failed",
						zap.String("session_id", s.ID), zap.Error(err))
				}
				if !proc.IsAlive() {
					flush(s.ID, proc, b, pollTimeout)
					return
				}
				time.Sleep(pollTimeout)
				continue
			}

			if len(chunk) > 0 {
				b.BroadcastOutput(s.ID, chunk)
				s.Touch()
				continue
			}

			if !proc.IsAlive() {
				flush(s.ID, proc, b, pollTimeout)
				return
			}
		}
	}()
}

// flush drains output the child produced before exiting so the client sees
// the tail of a short-lived process. It reads with the poll timeout rather
// than non-blocking polls: a final chunk may still be in flight in the
// backend's reader goroutine, and the stream is guaranteed to close once
// that goroutine delivers it, so the loop terminates on io.EOF.
func flush(sessionID string, proc backend.Process, b Broadcaster, timeout time.Duration) {
	for {
		rest, err := proc.ReadOutput(timeout)
		if err != nil {
			return
		}
		if len(rest) > 0 {
			b.BroadcastOutput(sessionID, rest)
		}
	}
}
