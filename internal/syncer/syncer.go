// Package syncer is the surface the UI layer talks to.
//
// A Syncer owns the entity store and wires the reconciliation engine, the
// notification hub and the cart merge coordinator to one backend. Every
// mutation returns as soon as the server has answered; the store already
// reflected the change before the request was sent.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/repsync/internal/cart"
	"github.com/roach88/repsync/internal/engine"
	"github.com/roach88/repsync/internal/metrics"
	"github.com/roach88/repsync/internal/notify"
	"github.com/roach88/repsync/internal/state"
)

// Remote is everything the syncer needs from the backend.
// Implemented by *remote.Client.
type Remote interface {
	engine.Remote
	cart.Merger
	GetRoutine(ctx context.Context, routineID state.ID) (state.Routine, error)
	GetToday(ctx context.Context) (*state.Routine, error)
	GetWeek(ctx context.Context) ([]state.Routine, error)
}

// ErrNoSource is returned by RunNotifications when no push source was
// configured.
var ErrNoSource = errors.New("syncer: no notification source configured")

// Syncer composes the synchronizer components.
//
// Thread-safety: all methods are safe for concurrent use.
type Syncer struct {
	remote Remote
	store  *state.Store
	engine *engine.Engine
	hub    *notify.Hub
	dedup  *notify.Deduplicator
	cart   *cart.Coordinator
	source notify.Source
	logger *slog.Logger
}

type settings struct {
	store      *state.Store
	engineOpts []engine.EngineOption
	source     notify.Source
	dedup      *notify.Deduplicator
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// Option configures a Syncer.
type Option func(*settings)

// WithStore uses st instead of an empty store.
func WithStore(st *state.Store) Option {
	return func(s *settings) {
		s.store = st
	}
}

// WithEngineOptions passes options through to the reconciliation engine.
func WithEngineOptions(opts ...engine.EngineOption) Option {
	return func(s *settings) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

// WithSource sets the push source read by RunNotifications.
func WithSource(src notify.Source) Option {
	return func(s *settings) {
		s.source = src
	}
}

// WithDeduplicator sets the notification deduplicator.
func WithDeduplicator(d *notify.Deduplicator) Option {
	return func(s *settings) {
		s.dedup = d
	}
}

// WithMetrics reports to m from every component.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// WithLogger sets the logger of every component. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// New creates a Syncer talking to r.
func New(r Remote, opts ...Option) *Syncer {
	cfg := settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.store == nil {
		cfg.store = state.New()
	}
	if cfg.dedup == nil {
		cfg.dedup = notify.NewDeduplicator()
	}

	engineOpts := append([]engine.EngineOption{
		engine.WithLogger(cfg.logger),
		engine.WithMetrics(cfg.metrics),
	}, cfg.engineOpts...)

	return &Syncer{
		remote: r,
		store:  cfg.store,
		engine: engine.New(cfg.store, r, engineOpts...),
		hub: notify.NewHub(cfg.source, cfg.dedup,
			notify.WithLogger(cfg.logger), notify.WithMetrics(cfg.metrics)),
		dedup:  cfg.dedup,
		cart:   cart.New(r, cart.WithLogger(cfg.logger), cart.WithMetrics(cfg.metrics)),
		source: cfg.source,
		logger: cfg.logger,
	}
}

// Store returns the entity store. Views read routines from it.
func (s *Syncer) Store() *state.Store {
	return s.store
}

// Engine returns the reconciliation engine.
func (s *Syncer) Engine() *engine.Engine {
	return s.engine
}

// ToggleCompleted flips an exercise's completed flag.
func (s *Syncer) ToggleCompleted(ctx context.Context, routineID, exerciseID state.ID) error {
	return s.engine.ToggleCompleted(ctx, routineID, exerciseID)
}

// AddExercise appends an exercise and returns it with its server ID.
func (s *Syncer) AddExercise(ctx context.Context, routineID state.ID, ex state.Exercise) (state.Exercise, error) {
	return s.engine.AddExercise(ctx, routineID, ex)
}

// UpdateExercise applies patch and returns the confirmed exercise.
func (s *Syncer) UpdateExercise(ctx context.Context, routineID, exerciseID state.ID, patch state.Patch) (state.Exercise, error) {
	return s.engine.UpdateExercise(ctx, routineID, exerciseID, patch)
}

// DeleteExercise removes an exercise.
func (s *Syncer) DeleteExercise(ctx context.Context, routineID, exerciseID state.ID) error {
	return s.engine.DeleteExercise(ctx, routineID, exerciseID)
}

// SubscribeNotifications registers handler for deduplicated push events.
func (s *Syncer) SubscribeNotifications(handler notify.Handler) notify.Unsubscribe {
	return s.hub.Subscribe(handler)
}

// RunNotifications reads the push source until ctx is done.
func (s *Syncer) RunNotifications(ctx context.Context) error {
	if s.source == nil {
		return ErrNoSource
	}
	return s.hub.Run(ctx)
}

// MergeCartOnce merges the guest cart after login. It never fails the
// caller; the outcome is informational.
func (s *Syncer) MergeCartOnce(ctx context.Context) cart.Outcome {
	return s.cart.MergeOnce(ctx)
}

// Logout ends the session: the next login merges the cart again and no
// notification of this session suppresses one of the next.
func (s *Syncer) Logout() {
	s.cart.Reset()
	s.dedup.Reset()
	s.logger.Info("session reset")
}

// LoadRoutine fetches a routine into the store.
func (s *Syncer) LoadRoutine(ctx context.Context, routineID state.ID) (state.Routine, error) {
	r, err := s.remote.GetRoutine(ctx, routineID)
	if err != nil {
		return state.Routine{}, fmt.Errorf("load routine %s: %w", routineID, err)
	}
	s.store.PutRoutine(r)
	return s.stored(r.ID, r), nil
}

// LoadToday fetches today's routine into the store. Returns nil when there
// is none.
func (s *Syncer) LoadToday(ctx context.Context) (*state.Routine, error) {
	r, err := s.remote.GetToday(ctx)
	if err != nil {
		return nil, fmt.Errorf("load today: %w", err)
	}
	if r == nil {
		return nil, nil
	}
	s.store.PutRoutine(*r)
	stored := s.stored(r.ID, *r)
	return &stored, nil
}

// LoadWeek fetches the week's routines into the store.
func (s *Syncer) LoadWeek(ctx context.Context) ([]state.Routine, error) {
	rs, err := s.remote.GetWeek(ctx)
	if err != nil {
		return nil, fmt.Errorf("load week: %w", err)
	}
	out := make([]state.Routine, 0, len(rs))
	for _, r := range rs {
		s.store.PutRoutine(r)
		out = append(out, s.stored(r.ID, r))
	}
	return out, nil
}

// stored returns the normalized copy the store holds.
func (s *Syncer) stored(id state.ID, fallback state.Routine) state.Routine {
	if r, ok := s.store.Routine(id); ok {
		return r
	}
	return fallback
}
