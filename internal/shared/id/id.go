// Package id generates debug identifiers for registry entries.
//
// Identifiers are prefixed ULIDs (thr_*, mtx_*). They are sortable by
// creation time, which keeps log output for a burst of thread creations in
// order, and they never collide across ports in the same process.
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

// ThreadID identifies a thread registry node
type ThreadID string

// MutexID identifies a mutex registry node
type MutexID string

const (
	ThreadPrefix = "thr"
	MutexPrefix  = "mtx"
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

// NewGenerator creates a generator seeded from crypto/rand, made monotonic
// so IDs minted within the same millisecond still sort in creation order.
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(ulid.Monotonic(rand.Reader, 0))
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewThreadID generates a new thread node ID
func NewThreadID() ThreadID {
	return ThreadID(Default().GenerateWithPrefix(ThreadPrefix))
}

// NewMutexID generates a new mutex node ID
func NewMutexID() MutexID {
	return MutexID(Default().GenerateWithPrefix(MutexPrefix))
}

func (id ThreadID) String() string { return string(id) }
func (id MutexID) String() string  { return string(id) }

// Timestamp extracts the creation time from an ID, with or without its
// prefix.
func Timestamp(id string) (time.Time, error) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	parsed, err := ulid.Parse(id)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid id %q: %w", id, err)
	}
	return ulid.Time(parsed.Time()), nil
}

// Created returns when the node was registered, or the zero time for an ID
// not minted by this package.
func (id ThreadID) Created() time.Time {
	ts, err := Timestamp(string(id))
	if err != nil {
		return time.Time{}
	}
	return ts
}
