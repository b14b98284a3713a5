package ledger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/repsync/internal/state"
)

func toggleScope(exerciseID state.ID) ScopeKey {
	return ScopeKey{RoutineID: "7", ExerciseID: exerciseID, Kind: KindToggle}
}

func TestBegin_RejectsSecondOnSameScope(t *testing.T) {
	l := New()

	_, err := l.Begin(toggleScope("A"), Snapshot{})
	require.NoError(t, err)

	_, err = l.Begin(toggleScope("A"), Snapshot{})
	require.Error(t, err)
	assert.True(t, IsConcurrentOperation(err))
	assert.Equal(t, "operation already in flight for 7/A/toggle", err.Error())
}

func TestBegin_IndependentScopes(t *testing.T) {
	l := New()

	_, err := l.Begin(toggleScope("A"), Snapshot{})
	require.NoError(t, err)
	_, err = l.Begin(toggleScope("B"), Snapshot{})
	require.NoError(t, err)
	_, err = l.Begin(ScopeKey{RoutineID: "7", ExerciseID: "A", Kind: KindDelete}, Snapshot{})
	require.NoError(t, err, "different kind is a different scope")

	assert.Equal(t, 3, l.Len())
}

func TestCommit_FreesScope(t *testing.T) {
	l := New()

	tok, err := l.Begin(toggleScope("A"), Snapshot{})
	require.NoError(t, err)
	assert.True(t, l.InFlight(toggleScope("A")))

	require.NoError(t, l.Commit(tok))
	assert.False(t, l.InFlight(toggleScope("A")))
	assert.Equal(t, 0, l.Len())

	_, err = l.Begin(toggleScope("A"), Snapshot{})
	assert.NoError(t, err)
}

func TestRollback_ReturnsSnapshot(t *testing.T) {
	l := New()
	before := state.Exercise{ID: "A", Name: "Bench", Completed: false}

	tok, err := l.Begin(toggleScope("A"), Snapshot{RoutineID: "7", ExerciseID: "A", Exercise: &before})
	require.NoError(t, err)

	// Mutating the caller's copy must not leak into the ledger.
	before.Completed = true

	snap, err := l.Rollback(tok)
	require.NoError(t, err)
	require.True(t, snap.Present())
	assert.False(t, snap.Exercise.Completed)
	assert.Equal(t, 0, l.Len())
}

func TestSettle_TwiceFails(t *testing.T) {
	l := New()

	tok, err := l.Begin(toggleScope("A"), Snapshot{})
	require.NoError(t, err)
	require.NoError(t, l.Commit(tok))

	assert.ErrorIs(t, l.Commit(tok), ErrUnknownToken)
	_, err = l.Rollback(tok)
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestSettle_StaleTokenDoesNotSettleNewerEntry(t *testing.T) {
	l := New()

	old, err := l.Begin(toggleScope("A"), Snapshot{})
	require.NoError(t, err)
	require.NoError(t, l.Commit(old))

	_, err = l.Begin(toggleScope("A"), Snapshot{})
	require.NoError(t, err)

	assert.ErrorIs(t, l.Commit(old), ErrUnknownToken)
	assert.True(t, l.InFlight(toggleScope("A")))
}

func TestPending_InBeginOrder(t *testing.T) {
	l := New()
	for _, id := range []state.ID{"C", "A", "B"} {
		_, err := l.Begin(toggleScope(id), Snapshot{ExerciseID: id})
		require.NoError(t, err)
	}

	pending := l.Pending()
	require.Len(t, pending, 3)
	for i, id := range []state.ID{"C", "A", "B"} {
		assert.Equal(t, id, pending[i].Scope.ExerciseID)
		assert.Equal(t, StatusInFlight, pending[i].Status)
	}
}

func TestBegin_RaceAllowsExactlyOne(t *testing.T) {
	l := New()
	const n = 32

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Begin(toggleScope("A"), Snapshot{}); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "IN_FLIGHT", StatusInFlight.String())
	assert.Equal(t, "SUCCEEDED", StatusSucceeded.String())
	assert.Equal(t, "FAILED", StatusFailed.String())
	assert.Equal(t, "Status(9)", Status(9).String())
}
