// Package ws hosts the bidirectional event channel between renderer clients
// and terminal sessions.
//
// Connections join a room named after their session id; broadcasts to a room
// reach only the clients attached to that session. Input, resize and
// heartbeat events flow client to server; pty-output and session-ended flow
// server to client. A disconnect leaves the room but never tears the session
// down, so a later reconnect resumes the same shell.
package ws
