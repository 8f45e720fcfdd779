// Package storetest runs the behaviour every store.Store must share.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Numapresse/tidysupervise/internal/testcorpus"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/classifier"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/features"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/internalerr"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/model"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/store"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/vocab"
)

// TrainedModel fits a small model on the shared test corpus.
func TrainedModel(t *testing.T, s classifier.Strategy) (*model.Model, *features.Matrix) {
	t.Helper()
	req := require.New(t)
	records := testcorpus.Records()
	v, err := vocab.Build(records, vocab.DefaultOptions())
	req.NoError(err)
	x, err := features.Build(context.Background(), records, v, features.Options{Training: true})
	req.NoError(err)
	m, err := model.Train(context.Background(), x, s, nil)
	req.NoError(err)
	return m, x
}

// Run exercises a fresh store returned by open. The store is closed by Run.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Run("SaveLoadPredictsIdentically", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		s := open(t)
		defer s.Close()

		// Given a trained model with its tokenization settings
		m, x := TrainedModel(t, &classifier.Softmax{})
		prep := model.Preprocessing{Lemmatization: "en", Stoplist: "stoplist.yaml", StripMarkup: true}
		m = m.WithPreprocessing(prep)
		want, err := m.Predict(ctx, x)
		req.NoError(err)

		// When it is saved and loaded back
		req.NoError(s.SaveModel(ctx, m))
		loaded, err := s.LoadModel(ctx, m.ID())
		req.NoError(err)

		// Then it keeps its identity and predictions
		req.Equal(m.ID(), loaded.ID())
		req.Equal(m.Strategy(), loaded.Strategy())
		req.True(m.CreatedAt().Equal(loaded.CreatedAt()))
		req.True(m.Vocabulary().Equal(loaded.Vocabulary()))
		req.Equal(m.IDF(), loaded.IDF())
		req.Equal(prep, loaded.Preprocessing())
		got, err := loaded.Predict(ctx, x)
		req.NoError(err)
		req.Equal(want, got)
	})

	t.Run("ListAndDelete", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		s := open(t)
		defer s.Close()

		first, _ := TrainedModel(t, &classifier.Softmax{Epochs: 20})
		second, _ := TrainedModel(t, &classifier.LinearSVM{Epochs: 5, Seed: 1})
		req.NoError(s.SaveModel(ctx, second))
		req.NoError(s.SaveModel(ctx, first))

		list, err := s.ListModels(ctx)
		req.NoError(err)
		req.Len(list, 2)
		req.Equal(first.ID(), list[0].ID)
		req.Equal(second.ID(), list[1].ID)
		req.Equal(classifier.NameSVM, list[1].Strategy)
		req.Equal([]string{"politics", "sport", "tech"}, list[0].Labels)
		req.Equal(first.Vocabulary().Len(), list[0].Terms)

		// saving again replaces rather than duplicates
		req.NoError(s.SaveModel(ctx, first))
		list, err = s.ListModels(ctx)
		req.NoError(err)
		req.Len(list, 2)

		req.NoError(s.DeleteModel(ctx, first.ID()))
		_, err = s.LoadModel(ctx, first.ID())
		req.ErrorIs(err, internalerr.ErrNotFound)
		req.ErrorIs(s.DeleteModel(ctx, first.ID()), internalerr.ErrNotFound)

		list, err = s.ListModels(ctx)
		req.NoError(err)
		req.Len(list, 1)
	})

	t.Run("UnknownID", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		_, err := s.LoadModel(context.Background(), "01ZZZZZZZZZZZZZZZZZZZZZZZZ")

		require.ErrorIs(t, err, internalerr.ErrNotFound)
	})

	t.Run("EmptyList", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		list, err := s.ListModels(context.Background())

		require.NoError(t, err)
		require.Empty(t, list)
	})
}
