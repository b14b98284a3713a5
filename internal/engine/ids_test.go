package engine

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/repsync/internal/state"
)

func TestUUIDv7Generator_Version(t *testing.T) {
	parsed, err := uuid.Parse(UUIDv7Generator{}.Generate())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestUUIDv7Generator_UniqueAcrossGoroutines(t *testing.T) {
	const n = 100
	var (
		mu   sync.Mutex
		seen = make(map[string]bool, n)
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := UUIDv7Generator{}.Generate()
			mu.Lock()
			defer mu.Unlock()
			seen[id] = true
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
}

func TestAddExercise_DefaultTemporaryIDIsUUIDv7(t *testing.T) {
	var sent state.Exercise
	r := &fakeRemote{
		add: func(_ context.Context, _ state.ID, draft state.Exercise) (state.Exercise, error) {
			sent = draft
			draft.ID = "42"
			return draft, nil
		},
	}
	e := setupTestEngine(t, r)

	_, err := e.AddExercise(context.Background(), "7", state.Exercise{Name: "Row"})
	require.NoError(t, err)

	require.True(t, sent.ID.IsTemporary())
	parsed, err := uuid.Parse(strings.TrimPrefix(string(sent.ID), state.TempPrefix))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}
