package testutil

import (
	"strconv"
	"sync/atomic"
)

// SequentialIDGenerator generates "<prefix>1", "<prefix>2", ...
//
// It never runs out, so tests and scenarios can add any number of exercises
// and still get byte-identical temporary IDs on every run.
//
// Thread-safety: SequentialIDGenerator is safe for concurrent use.
type SequentialIDGenerator struct {
	prefix string
	n      atomic.Int64
}

// NewSequentialIDGenerator creates a generator with the given prefix.
// If prefix is empty, "id-" is used.
func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	if prefix == "" {
		prefix = "id-"
	}
	return &SequentialIDGenerator{prefix: prefix}
}

// Generate returns the next ID.
//
// Implements engine.IDGenerator interface.
func (g *SequentialIDGenerator) Generate() string {
	return g.prefix + strconv.FormatInt(g.n.Add(1), 10)
}
