// Package id provides centralized ID generation for the server.
//
// Session and connection identifiers are prefixed ULIDs: lexicographically
// sortable, unique across the process lifetime, and readable in logs
// (term_*, conn_*). A ULID is never reused, which is what makes a
// destroyed session id safe to treat as permanently retired.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionID identifies a terminal session
type SessionID string

// ConnID identifies a WebSocket connection
type ConnID string

const (
	SessionPrefix = "term"
	ConnPrefix    = "conn"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator with secure entropy
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewSessionID generates a new terminal session ID
func NewSessionID() SessionID {
	return SessionID(Default().GenerateWithPrefix(SessionPrefix))
}

// NewConnID generates a new connection ID
func NewConnID() ConnID {
	return ConnID(Default().GenerateWithPrefix(ConnPrefix))
}

func (id SessionID) String() string { return string(id) }
func (id ConnID) String() string    { return string(id) }

// IsValid checks if an ID string is a valid prefixed ULID
func IsValid(id string) bool {
	prefix, raw, found := strings.Cut(id, "_")
	if !found || prefix == "" {
		return false
	}
	_, err := ulid.Parse(raw)
	return err == nil
}

// Timestamp extracts the creation time from a prefixed ULID
func Timestamp(id string) (time.Time, error) {
	_, raw, found := strings.Cut(id, "_")
	if !found {
		return time.Time{}, fmt.Errorf("malformed id: %s", id)
	}
	parsed, err := ulid.Parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
