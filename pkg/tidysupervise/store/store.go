// Package store persists trained models.
package store

import (
	"context"
	"time"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/model"
)

// Store is the model registry. Implementations return errors wrapping
// internalerr.ErrNotFound for unknown ids.
type Store interface {
	Close() error

	// SaveModel inserts or replaces a model under its id.
	SaveModel(ctx context.Context, m *model.Model) error
	LoadModel(ctx context.Context, id string) (*model.Model, error)
	// ListModels returns summaries ordered by id, which is creation order.
	ListModels(ctx context.Context) ([]Summary, error)
	DeleteModel(ctx context.Context, id string) error
}

// Summary describes a stored model without its weights.
type Summary struct {
	ID          string    `json:"id"`
	Strategy    string    `json:"strategy"`
	CreatedAt   time.Time `json:"created_at"`
	Labels      []string  `json:"labels"`
	Terms       int       `json:"terms"`
	SegmentSize int       `json:"segment_size"`
}

// Summarize builds the summary of a model.
func Summarize(m *model.Model) Summary {
	size, _ := m.Segmentation()
	return Summary{
		ID:          m.ID(),
		Strategy:    m.Strategy(),
		CreatedAt:   m.CreatedAt(),
		Labels:      m.Labels(),
		Terms:       m.Vocabulary().Len(),
		SegmentSize: size,
	}
}
