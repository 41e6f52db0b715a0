//go:build !windows

package backend

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

func newPlatformBackend() Backend {
	return &posixBackend{}
}

// posixBackend spawns children under a pty/fork-exec pair.
type posixBackend struct{}

func (b *posixBackend) Name() string { return "posix" }

func (b *posixBackend) Spawn(spec Spec) (Process, error) {
	command := spec.Command
	if command == "" {
		command = os.Getenv("SHELL")
		if command == "" {
			command = "/bin/bash"
		}
	}

	rows, cols := normalizeSize(spec.Rows, spec.Cols)

	cmd := exec.Command(command, spec.Args...)
	cmd.Dir = resolveWorkingDir(spec.WorkingDir)
	cmd.Env = mergeEnv(spec.Env)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: rows, Cols: cols})
	if err != nil {
		return nil, fmt.Errorf("failed to start PTY for %s: %w", command, err)
	}

	p := &posixProcess{
		stream: newStream(),
		cmd:    cmd,
		ptmx:   ptmx,
		exited: make(chan struct{}),
	}

	// Reap the child so IsAlive never reports a zombie as running.
	go func() {
		cmd.Wait()
		close(p.exited)
	}()

	go p.readLoop(ptmx)

	return p, nil
}

type posixProcess struct {
	*stream
	cmd    *exec.Cmd
	ptmx   *os.File
	exited chan struct{}
}

func (p *posixProcess) Write(b []byte) (int, error) {
	if p.stopped() {
		return 0, ErrProcessClosed
	}
	return p.ptmx.Write(b)
}

func (p *posixProcess) ReadOutput(timeout time.Duration) ([]byte, error) {
	return p.next(timeout)
}

func (p *posixProcess) Resize(rows, cols uint16) error {
	if p.stopped() {
		return ErrProcessClosed
	}
	return pty.Setsize(p.ptmx, &pty.Winsize{Rows: rows, Cols: cols})
}

func (p *posixProcess) IsAlive() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// Cleanup closes the PTY master and terminates the child: SIGTERM first,
// SIGKILL if it is still around after the grace period. Idempotent.
func (p *posixProcess) Cleanup() error {
	p.stop()
	p.ptmx.Close()

	if !p.IsAlive() {
		return nil
	}

	if p.cmd.Process != nil {
		p.cmd.Process.Signal(unix.SIGTERM)
	}

	select {
	case <-p.exited:
	case <-time.After(gracePeriod):
		if p.cmd.Process != nil {
			p.cmd.Process.Kill()
		}
	}
	return nil
}
