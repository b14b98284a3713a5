package cart

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/repsync/internal/metrics"
)

type fakeMerger struct {
	calls   atomic.Int32
	err     error
	block   chan struct{}
	started chan struct{}
}

func (f *fakeMerger) MergeCart(ctx context.Context) error {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func TestMergeOnce_SecondCallIsNoOp(t *testing.T) {
	m := &fakeMerger{}
	c := New(m)
	ctx := context.Background()

	assert.Equal(t, OutcomeMerged, c.MergeOnce(ctx))
	assert.Equal(t, OutcomeAlreadyMerged, c.MergeOnce(ctx))

	assert.Equal(t, int32(1), m.calls.Load())
	assert.Equal(t, int64(1), c.Transitions())
	assert.True(t, c.Merged())
}

func TestMergeOnce_FailureDoesNotThrowAndAllowsRetry(t *testing.T) {
	m := &fakeMerger{err: errors.New("503 service unavailable")}
	c := New(m)
	ctx := context.Background()

	assert.Equal(t, OutcomeFailed, c.MergeOnce(ctx))
	assert.False(t, c.Merged())
	assert.Equal(t, int64(0), c.Transitions())

	m.err = nil
	assert.Equal(t, OutcomeMerged, c.MergeOnce(ctx))
	assert.Equal(t, int32(2), m.calls.Load())
}

func TestMergeOnce_ConcurrentCallersShareOneCall(t *testing.T) {
	m := &fakeMerger{block: make(chan struct{})}
	c := New(m)

	const callers = 8
	outcomes := make(chan Outcome, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes <- c.MergeOnce(context.Background())
		}()
	}

	require.Eventually(t, func() bool { return m.calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	// Give the other callers a chance to join the in-flight call.
	time.Sleep(20 * time.Millisecond)
	close(m.block)
	wg.Wait()
	close(outcomes)

	for o := range outcomes {
		assert.Contains(t, []Outcome{OutcomeMerged, OutcomeAlreadyMerged}, o)
	}
	assert.Equal(t, int32(1), m.calls.Load())
	assert.Equal(t, int64(1), c.Transitions())
}

func TestReset_AllowsMergeInNextSession(t *testing.T) {
	m := &fakeMerger{}
	c := New(m)
	ctx := context.Background()

	c.MergeOnce(ctx)
	c.Reset()
	assert.False(t, c.Merged())

	assert.Equal(t, OutcomeMerged, c.MergeOnce(ctx))
	assert.Equal(t, int32(2), m.calls.Load())
	assert.Equal(t, int64(2), c.Transitions())
}

func TestReset_DuringMergeDoesNotMarkNextSession(t *testing.T) {
	m := &fakeMerger{block: make(chan struct{}), started: make(chan struct{}, 2)}
	c := New(m)

	done := make(chan Outcome, 1)
	go func() { done <- c.MergeOnce(context.Background()) }()
	select {
	case <-m.started:
	case <-time.After(2 * time.Second):
		t.Fatal("merge was never issued")
	}

	c.Reset()
	close(m.block)

	assert.Equal(t, OutcomeMerged, <-done)
	assert.False(t, c.Merged(), "old session's merge must not mark the new session")
	assert.Equal(t, int64(0), c.Transitions())

	assert.Equal(t, OutcomeMerged, c.MergeOnce(context.Background()))
	assert.Equal(t, int32(2), m.calls.Load())
	assert.True(t, c.Merged())
}

func TestWithState_SharesFlag(t *testing.T) {
	s := &State{}
	a := New(&fakeMerger{}, WithState(s))
	b := New(&fakeMerger{}, WithState(s))

	a.MergeOnce(context.Background())

	assert.Equal(t, OutcomeAlreadyMerged, b.MergeOnce(context.Background()))
}

func TestMergeOnce_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(&fakeMerger{}, WithMetrics(metrics.New(reg)))

	c.MergeOnce(context.Background())
	c.MergeOnce(context.Background())

	count, err := promtest.GatherAndCount(reg, "repsync_cart_merges_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "merged and already_merged series")
}
