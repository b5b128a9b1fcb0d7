package snapshot

import (
	"context"
	"errors"
	"fmt"

	"cargo-market/internal/economy"
)

// ErrNoSnapshot is returned by Backend.Read when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

// Backend stores one encoded document.
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, doc []byte) error
	Close() error
}

// Store loads and saves whole game states through a Backend.
type Store struct {
	backend  Backend
	defaults economy.Defaults
}

func New(backend Backend, defaults economy.Defaults) *Store {
	return &Store{backend: backend, defaults: defaults}
}

// Load returns the stored state, or a fresh default state when the backend
// is empty.
func (s *Store) Load(ctx context.Context) (*economy.GameState, error) {
	raw, err := s.backend.Read(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		return s.defaults.NewGameState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Decode(raw, s.defaults)
}

func (s *Store) Save(ctx context.Context, state *economy.GameState) error {
	doc, err := Encode(state)
	if err != nil {
		return err
	}
	if err := s.backend.Write(ctx, doc); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.backend.Close()
}
