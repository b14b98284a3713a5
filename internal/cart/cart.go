// Package cart merges an anonymous cart into the member cart once per
// authenticated session.
//
// The merge is a convenience: a failure is logged and reported as an
// outcome, never returned, so login proceeds regardless. The server endpoint
// is idempotent; the coordinator additionally guarantees at most one
// successful merge per session and shares one in-flight call between
// concurrent callers.
package cart

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/repsync/internal/metrics"
)

// Merger performs the remote merge. Implemented by *remote.Client.
type Merger interface {
	MergeCart(ctx context.Context) error
}

// Outcome is the result of MergeOnce.
type Outcome string

const (
	// OutcomeMerged means this call performed the merge.
	OutcomeMerged Outcome = "merged"

	// OutcomeAlreadyMerged means the session was merged earlier; nothing was
	// sent.
	OutcomeAlreadyMerged Outcome = "already_merged"

	// OutcomeFailed means the remote call failed. A later call may retry.
	OutcomeFailed Outcome = "failed"
)

// State is the per-session merge flag. Each logout starts a new session; a
// merge that finishes after its session ended does not mark the next one.
type State struct {
	mu      sync.Mutex
	merged  bool
	session uint64
}

// Merged reports whether the session's cart has been merged.
func (s *State) Merged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.merged
}

// current returns the session and whether it is already merged.
func (s *State) current() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session, s.merged
}

// markMerged flips the flag of session and reports whether this call flipped
// it. It does nothing once session has ended.
func (s *State) markMerged(session uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session != s.session || s.merged {
		return false
	}
	s.merged = true
	return true
}

func (s *State) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merged = false
	s.session++
}

// Coordinator runs the one-shot merge.
//
// Thread-safety: all methods are safe for concurrent use.
type Coordinator struct {
	merger  Merger
	state   *State
	group   singleflight.Group
	logger  *slog.Logger
	metrics *metrics.Metrics

	// transitions counts false->true flips of the merge flag.
	transitions atomic.Int64
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// WithMetrics counts merge attempts by outcome.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithState shares a merge flag, e.g. one owned by the session.
func WithState(s *State) Option {
	return func(c *Coordinator) {
		c.state = s
	}
}

// New creates a coordinator calling m.
func New(m Merger, opts ...Option) *Coordinator {
	c := &Coordinator{
		merger: m,
		state:  &State{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MergeOnce merges the cart unless this session already did.
//
// Concurrent callers of one session share one remote call and all receive its
// outcome. A call still in flight when Reset runs belongs to the old session.
func (c *Coordinator) MergeOnce(ctx context.Context) Outcome {
	session, merged := c.state.current()
	if merged {
		c.metrics.CartMerge(string(OutcomeAlreadyMerged))
		return OutcomeAlreadyMerged
	}

	v, _, _ := c.group.Do("merge-"+strconv.FormatUint(session, 10), func() (any, error) {
		if c.state.Merged() {
			return OutcomeAlreadyMerged, nil
		}
		if err := c.merger.MergeCart(ctx); err != nil {
			c.logger.Warn("cart merge failed", "error", err)
			return OutcomeFailed, nil
		}
		if c.state.markMerged(session) {
			c.transitions.Add(1)
			c.logger.Info("cart merged")
		} else {
			c.logger.Info("cart merged after session ended", "session", session)
		}
		return OutcomeMerged, nil
	})

	outcome := v.(Outcome)
	c.metrics.CartMerge(string(outcome))
	return outcome
}

// Merged reports whether the session's cart has been merged.
func (c *Coordinator) Merged() bool {
	return c.state.Merged()
}

// Reset clears the merge flag. Called on logout.
func (c *Coordinator) Reset() {
	c.state.reset()
}

// Transitions returns how many times the flag went from unmerged to merged.
func (c *Coordinator) Transitions() int64 {
	return c.transitions.Load()
}
