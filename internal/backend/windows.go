//go:build windows

package backend

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/UserExistsError/conpty"
	"golang.org/x/sys/windows"
)

func newPlatformBackend() Backend {
	return &windowsBackend{}
}

// windowsBackend spawns children attached to a ConPTY pseudo console.
type windowsBackend struct{}

func (b *windowsBackend) Name() string { return "conpty" }

func (b *windowsBackend) Spawn(spec Spec) (Process, error) {
	command := spec.Command
	if command == "" {
		command = os.Getenv("COMSPEC")
		if command == "" {
			command = "cmd.exe"
		}
	}

	rows, cols := normalizeSize(spec.Rows, spec.Cols)
	cmdline := windows.ComposeCommandLine(append([]string{command}, spec.Args...))

	cpty, err := conpty.Start(cmdline,
		conpty.ConPtyDimensions(int(cols), int(rows)),
		conpty.ConPtyWorkDir(resolveWorkingDir(spec.WorkingDir)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start ConPTY for %s: %w", command, err)
	}

	p := &windowsProcess{
		stream: newStream(),
		cpty:   cpty,
		exited: make(chan struct{}),
	}

	go func() {
		cpty.Wait(context.Background())
		close(p.exited)
	}()

	go p.readLoop(cpty)

	return p, nil
}

type windowsProcess struct {
	*stream
	cpty   *conpty.ConPty
	exited chan struct{}
}

func (p *windowsProcess) Write(b []byte) (int, error) {
	if p.stopped() {
		return 0, ErrProcessClosed
	}
	return p.cpty.Write(b)
}

func (p *windowsProcess) ReadOutput(timeout time.Duration) ([]byte, error) {
	return p.next(timeout)
}

func (p *windowsProcess) Resize(rows, cols uint16) error {
	if p.stopped() {
		return ErrProcessClosed
	}
	return p.cpty.Resize(int(cols), int(rows))
}

func (p *windowsProcess) IsAlive() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// Cleanup closes the pseudo console, which terminates the attached child.
// Closing twice is harmless. ConPTY has no graceful-signal equivalent, so
// the close is immediate.
func (p *windowsProcess) Cleanup() error {
	p.stop()
	p.cpty.Close()

	select {
	case <-p.exited:
	case <-time.After(gracePeriod):
	}
	return nil
}
