// Package memstore is an in-memory model registry for tests and one-shot
// CLI runs.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/internalerr"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/model"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/store"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu     sync.RWMutex
	models map[string]*model.Model
	closed bool
}

// New creates an empty store.
func New() *Store {
	return &Store{models: make(map[string]*model.Model)}
}

// Close implements store.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.models = nil
	return nil
}

func (s *Store) check(ctx context.Context) error {
	if s.closed {
		return internalerr.ErrStoreUnavailable
	}
	return ctx.Err()
}

// SaveModel stores the model; models are immutable so the pointer is kept.
func (s *Store) SaveModel(ctx context.Context, m *model.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	s.models[m.ID()] = m
	return nil
}

// LoadModel implements store.Store.
func (s *Store) LoadModel(ctx context.Context, id string) (*model.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	m, ok := s.models[id]
	if !ok {
		return nil, fmt.Errorf("%w: model %s", internalerr.ErrNotFound, id)
	}
	return m, nil
}

// ListModels implements store.Store.
func (s *Store) ListModels(ctx context.Context) ([]store.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	out := make([]store.Summary, 0, len(s.models))
	for _, m := range s.models {
		out = append(out, store.Summarize(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteModel implements store.Store.
func (s *Store) DeleteModel(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if _, ok := s.models[id]; !ok {
		return fmt.Errorf("%w: model %s", internalerr.ErrNotFound, id)
	}
	delete(s.models, id)
	return nil
}
