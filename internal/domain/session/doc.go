// Package session implements terminal session lifecycle: the registry that
// owns all sessions, the per-session output pump that moves PTY bytes to the
// network layer, and the sweeper that garbage-collects dead or idle sessions.
//
// A session is created cold (no process) and started lazily on the first
// client join. Destruction is idempotent on every path so the pump, the
// sweeper, and explicit client requests can race safely.
package session
