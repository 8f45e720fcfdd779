package badgerstore

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/classifier"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/store"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/store/storetest"
)

func TestBadgerStoreInMemory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open("", nil)
		require.NoError(t, err)
		return s
	})
}

func TestBadgerStoreOnDisk(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir, nil)
	req.NoError(err)
	m, x := storetest.TrainedModel(t, &classifier.Softmax{Epochs: 30})
	req.NoError(s.SaveModel(ctx, m))
	req.NoError(s.Close())

	// When the directory is reopened
	s, err = Open(dir, nil)
	req.NoError(err)
	defer s.Close()

	// Then the model is still there and predicts the same
	loaded, err := s.LoadModel(ctx, m.ID())
	req.NoError(err)
	want, err := m.Predict(ctx, x)
	req.NoError(err)
	got, err := loaded.Predict(ctx, x)
	req.NoError(err)
	req.Equal(want, got)
}

func TestKeyLayout(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	req.NoError(err)
	s := New(db, nil)
	defer s.Close()

	m, _ := storetest.TrainedModel(t, &classifier.Softmax{Epochs: 5})
	req.NoError(s.SaveModel(context.Background(), m))

	req.NoError(db.View(func(txn *badger.Txn) error {
		for _, key := range []string{metaPrefix + m.ID(), dataPrefix + m.ID()} {
			if _, err := txn.Get([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	}))
}
