package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates predictable document identifiers for tests.
//
// Unlike the store's default UUIDv7 generator, SequentialIDs can be reset so
// the same scenario produces byte-identical documents on every run.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	seq    int
}

// NewSequentialIDs creates a generator producing prefix-0001, prefix-0002, ...
// An empty prefix defaults to "doc".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "doc"
	}
	return &SequentialIDs{prefix: prefix}
}

// NewID returns the next identifier. Implements store.IDGenerator.
func (g *SequentialIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%04d", g.prefix, g.seq), nil
}

// Reset restarts the sequence. The next identifier is prefix-0001.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
