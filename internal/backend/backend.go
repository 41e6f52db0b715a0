// Package backend abstracts OS-specific pseudo-terminal process control.
//
// A Backend spawns a command under a PTY and hands back a Process through
// which all further interaction happens: ordered output reads with a bounded
// poll timeout, raw input writes, window resizes, liveness checks, and
// idempotent cleanup. The POSIX variant uses creack/pty; the Windows variant
// uses ConPTY. Selection happens once per process via Default().
package backend

import (
	"errors"
	"io"
	"os"
	"sync"
	"time"
)

// ErrProcessClosed is returned for writes to a cleaned-up process.
var ErrProcessClosed = errors.New("backend: process closed")

// gracePeriod is how long Cleanup waits between the graceful terminate
// signal and the forced kill.
const gracePeriod = 500 * time.Millisecond

// readChunkSize is the PTY read buffer size per poll.
const readChunkSize = 4096

// Spec describes the process to spawn under a PTY.
type Spec struct {
	Command    string            // empty: platform default shell
	Args       []string
	WorkingDir string            // empty or invalid: falls back to home, then temp
	Rows       uint16
	Cols       uint16
	Env        map[string]string // extra environment entries
}

// Process is an exclusive handle on a spawned PTY child.
//
// ReadOutput returns the next output chunk, nil if nothing arrived within
// the timeout, or io.EOF once the PTY has closed and all buffered output has
// been drained. Chunks are delivered in the order the child produced them.
type Process interface {
	Write(p []byte) (int, error)
	ReadOutput(timeout time.Duration) ([]byte, error)
	Resize(rows, cols uint16) error
	IsAlive() bool
	Cleanup() error
}

// Backend spawns PTY-backed processes. Implementations are stateless across
// sessions and safe for concurrent use.
type Backend interface {
	Name() string
	Spawn(spec Spec) (Process, error)
}

var (
	defaultBackend Backend
	defaultOnce    sync.Once
)

// Default returns the process-wide backend for the host OS.
// The selection is constructed once and reused; backends hold no
// per-session state so sharing is safe.
func Default() Backend {
	defaultOnce.Do(func() {
		defaultBackend = newPlatformBackend()
	})
	return defaultBackend
}

// stream moves output chunks from the PTY reader goroutine to ReadOutput
// callers. A single reader feeding a channel preserves chunk order.
type stream struct {
	chunks chan []byte
	done   chan struct{}
	closer sync.Once
}

func newStream() *stream {
	return &stream{
		chunks: make(chan []byte, 64),
		done:   make(chan struct{}),
	}
}

// readLoop pulls from the PTY until it errors (child exit or cleanup) and
// then closes the chunk channel so drained readers see io.EOF.
func (s *stream) readLoop(r io.Reader) {
	defer close(s.chunks)

	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.chunks <- chunk:
			case <-s.done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// next returns the next chunk, nil on timeout, or io.EOF when the stream is
// exhausted. A non-positive timeout polls without blocking.
func (s *stream) next(timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		select {
		case chunk, ok := <-s.chunks:
			if !ok {
				return nil, io.EOF
			}
			return chunk, nil
		default:
			return nil, nil
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case chunk, ok := <-s.chunks:
		if !ok {
			return nil, io.EOF
		}
		return chunk, nil
	case <-timer.C:
		return nil, nil
	}
}

// stop unblocks the reader goroutine; safe to call repeatedly.
func (s *stream) stop() {
	s.closer.Do(func() {
		close(s.done)
	})
}

func (s *stream) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// resolveWorkingDir validates dir and falls back to the user's home
// directory, then the system temp directory.
func resolveWorkingDir(dir string) string {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home
	}
	return os.TempDir()
}

// mergeEnv layers extra entries over the inherited environment and forces a
// terminal type the renderer understands.
func mergeEnv(extra map[string]string) []string {
	env := append(os.Environ(), "TERM=xterm-256color")
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

// normalizeSize applies the conventional 80x24 floor for missing dimensions.
func normalizeSize(rows, cols uint16) (uint16, uint16) {
	if rows == 0 {
		rows = 24
	}
	if cols == 0 {
		cols = 80
	}
	return rows, cols
}
