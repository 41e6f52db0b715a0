package session

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/shellmux/shellmux/internal/infrastructure/logging"
	"github.com/shellmux/shellmux/internal/infrastructure/monitoring"
)

// Sweeper periodically destroys sessions that are inactive past the timeout
// or whose backing process has died. It races freely with pump-driven and
// client-driven teardown because Registry.Destroy is idempotent.
type Sweeper struct {
	registry *Registry
	interval time.Duration
	timeout  time.Duration
	log      *logging.Logger
	metrics  *monitoring.Metrics

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper creates a sweeper over the registry. interval is how often it
// runs; timeout is the inactivity threshold.
func NewSweeper(reg *Registry, interval, timeout time.Duration, log *logging.Logger) *Sweeper {
	if log == nil {
		log = logging.NewNop()
	}
	return &Sweeper{
		registry: reg,
		interval: interval,
		timeout:  timeout,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// WithMetrics attaches a metrics collector.
func (s *Sweeper) WithMetrics(m *monitoring.Metrics) *Sweeper {
	s.metrics = m
	return s
}

// Start launches the background sweep loop. Subsequent calls are no-ops.
func (s *Sweeper) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts the sweep loop and waits for it to exit. Safe to call more
// than once.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	if s.started.Load() {
		<-s.done
	}
}

// Sweep runs one garbage-collection pass over a registry snapshot.
func (s *Sweeper) Sweep() {
	if s.metrics != nil {
		s.metrics.SweepsTotal.Inc()
	}

	for _, sid := range s.registry.All() {
		sess, err := s.registry.Get(sid)
		if err != nil {
			continue // destroyed since the snapshot
		}

		var reason string
		switch {
		case !sess.Active():
			reason = "inactive"
		case sess.Started() && !sess.Process().IsAlive():
			reason = "process exited"
		case time.Since(sess.LastActivity()) > s.timeout:
			reason = "idle timeout"
		default:
			continue
		}

		s.log.Info("sweeping session",
			zap.String("session_id", sid), zap.String("reason", reason))
		s.registry.Destroy(sid)
		if s.metrics != nil {
			s.metrics.SweepReaped.Inc()
		}
	}
}
