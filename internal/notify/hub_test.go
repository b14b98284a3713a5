package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/repsync/internal/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// chanSource delivers whatever is sent on msgs.
type chanSource struct {
	msgs chan []byte
}

func newChanSource() *chanSource {
	return &chanSource{msgs: make(chan []byte)}
}

func (s *chanSource) Subscribe(ctx context.Context, deliver func([]byte)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw := <-s.msgs:
			deliver(raw)
		}
	}
}

type failingSource struct{ err error }

func (s failingSource) Subscribe(context.Context, func([]byte)) error { return s.err }

// collector records events delivered to a handler.
type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) handle(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func startHub(t *testing.T, h *Hub) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("hub did not stop")
		}
	}
}

func TestHub_DeliversToSubscribers(t *testing.T) {
	src := newChanSource()
	h := NewHub(src, nil)
	var a, b collector
	h.Subscribe(a.handle)
	h.Subscribe(b.handle)

	stop := startHub(t, h)
	src.msgs <- []byte(`{"routineId": 7, "message": "How was today's workout?"}`)
	stop()

	want := []Event{{CorrelationKey: "routine-7", Content: "How was today's workout?"}}
	assert.Equal(t, want, a.Events())
	assert.Equal(t, want, b.Events())
}

func TestHub_SuppressesDuplicates(t *testing.T) {
	src := newChanSource()
	h := NewHub(src, NewDeduplicator(WithNow(func() time.Time { return t0 })))
	var c collector
	h.Subscribe(c.handle)

	stop := startHub(t, h)
	src.msgs <- []byte(`{"routineId": 7, "message": "first"}`)
	src.msgs <- []byte(`{"routineId": "7", "message": "second"}`)
	stop()

	require.Len(t, c.Events(), 1)
	assert.Equal(t, "first", c.Events()[0].Content)
}

func TestHub_MissingMessageUsesDefault(t *testing.T) {
	h := NewHub(newChanSource(), nil)
	var c collector
	h.Subscribe(c.handle)

	h.Publish([]byte(`{"routineId": 9}`))

	require.Len(t, c.Events(), 1)
	assert.Equal(t, DefaultReviewMessage, c.Events()[0].Content)
	assert.Equal(t, "routine-9", c.Events()[0].CorrelationKey)
}

func TestHub_MalformedMessageSkipped(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	h := NewHub(newChanSource(), nil, WithMetrics(m))
	var c collector
	h.Subscribe(c.handle)

	h.Publish([]byte(`not json`))
	h.Publish([]byte(`{"routineId": {"nested": true}}`))
	h.Publish([]byte(`{"message": "ok"}`))

	require.Len(t, c.Events(), 1)
	assert.Equal(t, "", c.Events()[0].CorrelationKey)

	count, err := promtest.GatherAndCount(reg, "repsync_notifications_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "malformed and delivered series")
}

func TestHub_UnsubscribeIsIdempotent(t *testing.T) {
	h := NewHub(newChanSource(), NewDeduplicator(WithWindows(0, 0)))
	var a, b collector
	unsubA := h.Subscribe(a.handle)
	h.Subscribe(b.handle)

	h.Publish([]byte(`{"routineId": 1, "message": "x"}`))
	unsubA()
	unsubA()
	h.Publish([]byte(`{"routineId": 2, "message": "y"}`))

	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 2)
}

func TestHub_UnsubscribeFromInsideHandler(t *testing.T) {
	h := NewHub(newChanSource(), NewDeduplicator(WithWindows(0, 0)))
	calls := 0
	var unsub Unsubscribe
	unsub = h.Subscribe(func(Event) {
		calls++
		unsub()
	})

	h.Publish([]byte(`{"routineId": 1, "message": "x"}`))
	h.Publish([]byte(`{"routineId": 2, "message": "y"}`))

	assert.Equal(t, 1, calls)
}

func TestHub_RunReturnsSourceError(t *testing.T) {
	boom := errors.New("connection refused")
	h := NewHub(failingSource{err: boom}, nil)

	err := h.Run(context.Background())

	assert.ErrorIs(t, err, boom)
}
