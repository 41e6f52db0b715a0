package session

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/shellmux/shellmux/internal/backend"
)

// fakeProcess is a scripted backend.Process that counts lifecycle calls so
// tests can assert on resource balance.
type fakeProcess struct {
	mu       sync.Mutex
	chunks   [][]byte
	alive    bool
	cleanups int
	writes   [][]byte
	rows     uint16
	cols     uint16

	// inFlight models output still buffered in the backend's reader
	// goroutine: invisible to non-blocking polls, surfaced to blocking
	// reads after flightDelay empty polls.
	inFlight    [][]byte
	flightDelay int
}

func newFakeProcess(chunks ...[]byte) *fakeProcess {
	return &fakeProcess{chunks: chunks, alive: true}
}

func (p *fakeProcess) ReadOutput(timeout time.Duration) ([]byte, error) {
	p.mu.Lock()
	if len(p.chunks) > 0 {
		chunk := p.chunks[0]
		p.chunks = p.chunks[1:]
		p.mu.Unlock()
		return chunk, nil
	}

	if len(p.inFlight) > 0 {
		if timeout <= 0 || p.flightDelay > 0 {
			if p.flightDelay > 0 {
				p.flightDelay--
			}
			p.mu.Unlock()
			if timeout > 0 {
				time.Sleep(timeout)
			}
			return nil, nil
		}
		chunk := p.inFlight[0]
		p.inFlight = p.inFlight[1:]
		p.mu.Unlock()
		return chunk, nil
	}

	// Dead and drained means the stream has closed, like a real backend.
	dead := !p.alive
	p.mu.Unlock()
	if dead {
		return nil, io.EOF
	}

	// Real backends block for up to the poll timeout when idle.
	if timeout > 0 {
		time.Sleep(timeout)
	}
	return nil, nil
}

func (p *fakeProcess) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.alive {
		return 0, backend.ErrProcessClosed
	}
	p.writes = append(p.writes, append([]byte(nil), b...))
	return len(b), nil
}

func (p *fakeProcess) Resize(rows, cols uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows, p.cols = rows, cols
	return nil
}

func (p *fakeProcess) IsAlive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

func (p *fakeProcess) Cleanup() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alive = false
	p.cleanups++
	return nil
}

func (p *fakeProcess) kill() {
	p.mu.Lock()
	p.alive = false
	p.mu.Unlock()
}

func (p *fakeProcess) cleanupCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cleanups
}

// fakeBackend hands out fakeProcess instances and tracks how many spawns
// succeeded versus how many cleanups ran.
type fakeBackend struct {
	mu       sync.Mutex
	procs    []*fakeProcess
	spawnErr error
	next     *fakeProcess
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Spawn(spec backend.Spec) (backend.Process, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.spawnErr != nil {
		return nil, b.spawnErr
	}
	proc := b.next
	if proc == nil {
		proc = newFakeProcess()
	}
	b.next = nil
	b.procs = append(b.procs, proc)
	return proc, nil
}

func (b *fakeBackend) openCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	open := 0
	for _, p := range b.procs {
		if p.cleanupCount() == 0 {
			open++
		}
	}
	return open
}

// recorder collects broadcast traffic in order.
type recorder struct {
	mu     sync.Mutex
	output []byte
	chunks [][]byte
	ended  []string
}

func (r *recorder) BroadcastOutput(sessionID string, output []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.output = append(r.output, output...)
	r.chunks = append(r.chunks, append([]byte(nil), output...))
}

func (r *recorder) BroadcastEnded(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended = append(r.ended, sessionID)
}

func (r *recorder) outputString() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.output)
}

func (r *recorder) endedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ended)
}

var errSpawnDenied = errors.New("spawn denied")
