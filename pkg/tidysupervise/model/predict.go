package model

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Numapresse/tidysupervise/internal/worker"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/classifier"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/features"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/internalerr"
)

// LabelProb is one ranked label.
type LabelProb struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// Prediction is the ranked label distribution of one row. SegmentID is 0 for
// document-level aggregates.
type Prediction struct {
	DocumentID string      `json:"document"`
	SegmentID  int         `json:"segment"`
	Ranked     []LabelProb `json:"ranked"`
}

// Top returns the most probable label.
func (p Prediction) Top() LabelProb {
	if len(p.Ranked) == 0 {
		return LabelProb{}
	}
	return p.Ranked[0]
}

// Predictor applies a model to feature matrices, row-parallel.
type Predictor struct {
	Workers int
	Logger  *slog.Logger
}

// Predict scores every row of x. The matrix columns must equal the model
// vocabulary exactly; labels on x, if any, are ignored.
func (p Predictor) Predict(ctx context.Context, m *Model, x *features.Matrix) ([]Prediction, error) {
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}
	if err := m.CheckCompatible(x); err != nil {
		return nil, err
	}
	if x.Len() == 0 {
		return nil, internalerr.ErrEmptyFeatureMatrix
	}

	out, err := worker.Map(ctx, x.Len(), p.Workers, func(ctx context.Context, i int) (Prediction, error) {
		return m.predictRow(x.Row(i)), nil
	})
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	log.Debug("Predicted rows", "model", m.id, "rows", len(out))
	return out, nil
}

// Predict is shorthand for a default Predictor.
func (m *Model) Predict(ctx context.Context, x *features.Matrix) ([]Prediction, error) {
	return Predictor{}.Predict(ctx, m, x)
}

func (m *Model) predictRow(r features.Row) Prediction {
	probs := classifier.Probabilities(m.params.Scores(r))
	ranked := make([]LabelProb, len(probs))
	for k, pr := range probs {
		ranked[k] = LabelProb{Label: m.params.Labels[k], Probability: pr}
	}
	sortRanked(ranked)
	return Prediction{DocumentID: r.DocumentID, SegmentID: r.SegmentID, Ranked: ranked}
}

// sortRanked orders by probability descending, then label ascending.
func sortRanked(ranked []LabelProb) {
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Probability != ranked[j].Probability {
			return ranked[i].Probability > ranked[j].Probability
		}
		return ranked[i].Label < ranked[j].Label
	})
}

// Aggregate averages segment distributions per document, keeping documents in
// first-seen order. The result has SegmentID 0.
func Aggregate(preds []Prediction) []Prediction {
	type acc struct {
		sums  map[string]float64
		count int
	}
	var order []string
	byDoc := make(map[string]*acc)

	for _, p := range preds {
		a, ok := byDoc[p.DocumentID]
		if !ok {
			a = &acc{sums: make(map[string]float64)}
			byDoc[p.DocumentID] = a
			order = append(order, p.DocumentID)
		}
		a.count++
		for _, lp := range p.Ranked {
			a.sums[lp.Label] += lp.Probability
		}
	}

	out := make([]Prediction, 0, len(order))
	for _, doc := range order {
		a := byDoc[doc]
		ranked := make([]LabelProb, 0, len(a.sums))
		for label, sum := range a.sums {
			ranked = append(ranked, LabelProb{Label: label, Probability: sum / float64(a.count)})
		}
		sortRanked(ranked)
		out = append(out, Prediction{DocumentID: doc, Ranked: ranked})
	}
	return out
}
