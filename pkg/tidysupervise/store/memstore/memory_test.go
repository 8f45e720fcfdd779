package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/classifier"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/internalerr"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/store"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/store/storetest"
)

func TestMemStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestClosedStore(t *testing.T) {
	req := require.New(t)
	s := New()
	m, _ := storetest.TrainedModel(t, &classifier.Softmax{Epochs: 5})

	req.NoError(s.Close())

	req.ErrorIs(s.SaveModel(context.Background(), m), internalerr.ErrStoreUnavailable)
	_, err := s.ListModels(context.Background())
	req.ErrorIs(err, internalerr.ErrStoreUnavailable)
}
