// Package game owns the single shared GameState. Every operation runs under
// one lock: mutate, then save the whole snapshot. A failed save restores the
// state from before the operation, so memory never runs ahead of storage.
package game

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"cargo-market/internal/economy"
	"cargo-market/internal/metrics"
)

// Persister saves a whole state. *snapshot.Store satisfies it.
type Persister interface {
	Save(ctx context.Context, state *economy.GameState) error
}

// errNoChange lets an operation report that it left the state alone, so no
// save is needed.
var errNoChange = errors.New("no change")

type Engine struct {
	mu       sync.Mutex
	state    *economy.GameState
	defaults economy.Defaults
	store    Persister
	now      func() time.Time
	log      logrus.FieldLogger
}

type Option func(*Engine)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = log }
}

// New takes ownership of state. Callers must not touch it afterwards.
func New(state *economy.GameState, defaults economy.Defaults, store Persister, opts ...Option) *Engine {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	e := &Engine{
		state:    state,
		defaults: defaults,
		store:    store,
		now:      time.Now,
		log:      discard,
	}
	for _, opt := range opts {
		opt(e)
	}
	metrics.SetPlayers(len(state.Players))
	return e
}

// mutate runs fn on the live state and saves the result. The state is
// restored if fn fails or the save fails.
func (e *Engine) mutate(ctx context.Context, op string, fields logrus.Fields, fn func(s *economy.GameState, now time.Time) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	log := e.log.WithFields(fields).WithField("op", op)
	before := e.state.Clone()
	err := fn(e.state, e.now())
	if errors.Is(err, errNoChange) {
		metrics.RecordOperation(op, "noop")
		return nil
	}
	if err != nil {
		e.state = before
		outcome := classify(err)
		metrics.RecordOperation(op, outcome)
		log.WithError(err).WithField("outcome", outcome).Debug("operation declined")
		return err
	}

	start := time.Now()
	if err := e.store.Save(ctx, e.state); err != nil {
		e.state = before
		metrics.RecordSnapshotSave(time.Since(start), false)
		metrics.RecordOperation(op, "error")
		log.WithError(err).Error("snapshot save failed, operation rolled back")
		return fmt.Errorf("%s: %w", op, err)
	}
	metrics.RecordSnapshotSave(time.Since(start), true)
	metrics.RecordOperation(op, "ok")
	metrics.SetPlayers(len(e.state.Players))
	log.Info("operation applied")
	return nil
}

func classify(err error) string {
	var policy *economy.PolicyError
	switch {
	case errors.As(err, &policy):
		return "rejected"
	case errors.Is(err, economy.ErrValidation):
		return "invalid"
	case errors.Is(err, economy.ErrPlayerNotFound), errors.Is(err, economy.ErrCityNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// actor resolves an empty player name to the selected player.
func actor(s *economy.GameState, name string) string {
	if name == "" {
		return s.SelectedPlayer
	}
	return name
}

// View returns a deep copy of the current state.
func (e *Engine) View() *economy.GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

func (e *Engine) News() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.BreakingNews
}
