//go:build !windows

package backend

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spawnEcho(t *testing.T, args ...string) Process {
	t.Helper()
	proc, err := Default().Spawn(Spec{Command: "echo", Args: args})
	require.NoError(t, err)
	t.Cleanup(func() { proc.Cleanup() })
	return proc
}

func drain(t *testing.T, proc Process) []byte {
	t.Helper()
	var out []byte
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		chunk, err := proc.ReadOutput(50 * time.Millisecond)
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, chunk...)
	}
	t.Fatal("process output never reached EOF")
	return nil
}

func TestSpawnEcho(t *testing.T) {
	proc := spawnEcho(t, "hello")

	out := drain(t, proc)
	assert.Contains(t, string(out), "hello")
}

func TestIsAliveAfterExit(t *testing.T) {
	proc := spawnEcho(t, "bye")
	drain(t, proc)

	// Wait is racing us; give the reaper a moment.
	assert.Eventually(t, func() bool { return !proc.IsAlive() },
		2*time.Second, 10*time.Millisecond)
}

func TestCleanupIdempotent(t *testing.T) {
	proc, err := Default().Spawn(Spec{Command: "cat"})
	require.NoError(t, err)

	require.NoError(t, proc.Cleanup())
	require.NoError(t, proc.Cleanup())

	_, err = proc.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrProcessClosed)
}

func TestCleanupKillsChild(t *testing.T) {
	proc, err := Default().Spawn(Spec{Command: "sleep", Args: []string{"60"}})
	require.NoError(t, err)

	require.NoError(t, proc.Cleanup())
	assert.Eventually(t, func() bool { return !proc.IsAlive() },
		3*time.Second, 10*time.Millisecond)
}

func TestSpawnMissingExecutable(t *testing.T) {
	_, err := Default().Spawn(Spec{Command: "/no/such/binary"})
	assert.Error(t, err)
}

func TestWriteAndEcho(t *testing.T) {
	proc, err := Default().Spawn(Spec{Command: "cat"})
	require.NoError(t, err)
	defer proc.Cleanup()

	_, err = proc.Write([]byte("ping\n"))
	require.NoError(t, err)

	var out []byte
	assert.Eventually(t, func() bool {
		chunk, rerr := proc.ReadOutput(50 * time.Millisecond)
		if rerr != nil {
			return false
		}
		out = append(out, chunk...)
		return len(out) > 0
	}, 5*time.Second, 10*time.Millisecond)

	assert.Contains(t, string(out), "ping")
}

func TestResize(t *testing.T) {
	proc, err := Default().Spawn(Spec{Command: "cat"})
	require.NoError(t, err)
	defer proc.Cleanup()

	assert.NoError(t, proc.Resize(50, 132))
}
