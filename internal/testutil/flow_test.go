package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialIDGenerator_Sequence(t *testing.T) {
	gen := NewSequentialIDGenerator("ex-")

	assert.Equal(t, "ex-1", gen.Generate())
	assert.Equal(t, "ex-2", gen.Generate())
	assert.Equal(t, "ex-3", gen.Generate())
}

func TestSequentialIDGenerator_EmptyPrefixDefault(t *testing.T) {
	gen := NewSequentialIDGenerator("")

	assert.Equal(t, "id-1", gen.Generate())
}

func TestSequentialIDGenerator_Deterministic(t *testing.T) {
	a := NewSequentialIDGenerator("x")
	b := NewSequentialIDGenerator("x")

	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Generate(), b.Generate())
	}
}

func TestSequentialIDGenerator_ThreadSafe(t *testing.T) {
	gen := NewSequentialIDGenerator("t")
	const numGoroutines = 10
	const callsPerGoroutine = 100

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				id := gen.Generate()
				mu.Lock()
				assert.False(t, seen[id], "duplicate id %s", id)
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, numGoroutines*callsPerGoroutine)
}
