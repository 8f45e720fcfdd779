// Package badgerstore is a store.Store on an embedded Badger key-value
// database.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/internalerr"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/model"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/store"
)

const (
	metaPrefix = "model:meta:"
	dataPrefix = "model:data:"
)

// Store keeps each model as two keys: a small summary under model:meta:<id>
// for listing, and the full artifact under model:data:<id>. ULID ids make
// key order creation order.
type Store struct {
	db  *badger.DB
	log *slog.Logger
}

// New wraps an open database; Close closes it.
func New(db *badger.DB, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{db: db, log: log}
}

// Open opens a database directory. An empty dir opens an in-memory database.
func Open(dir string, log *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	return New(db, log), nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveModel writes summary and artifact atomically.
func (s *Store) SaveModel(ctx context.Context, m *model.Model) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	meta, err := json.Marshal(store.Summarize(m))
	if err != nil {
		return err
	}
	data, err := json.Marshal(m.Artifact())
	if err != nil {
		return fmt.Errorf("marshal model %s: %w", m.ID(), err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(metaPrefix+m.ID()), meta); err != nil {
			return err
		}
		return txn.Set([]byte(dataPrefix+m.ID()), data)
	})
	if err != nil {
		return err
	}
	s.log.Debug("Saved model", "id", m.ID(), "bytes", len(data))
	return nil
}

// LoadModel implements store.Store.
func (s *Store) LoadModel(ctx context.Context, id string) (*model.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var a model.Artifact
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(dataPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &a)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: model %s", internalerr.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", id, err)
	}
	return model.FromArtifact(a)
}

// ListModels iterates the summary keys only.
func (s *Store) ListModels(ctx context.Context) ([]store.Summary, error) {
	var out []store.Summary
	prefix := []byte(metaPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(v []byte) error {
				var sum store.Summary
				if err := json.Unmarshal(v, &sum); err != nil {
					return fmt.Errorf("failed to unmarshal summary: %w", err)
				}
				out = append(out, sum)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return out, nil
}

// DeleteModel implements store.Store.
func (s *Store) DeleteModel(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(metaPrefix + id)); err != nil {
			return err
		}
		if err := txn.Delete([]byte(metaPrefix + id)); err != nil {
			return err
		}
		return txn.Delete([]byte(dataPrefix + id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: model %s", internalerr.ErrNotFound, id)
	}
	return err
}
