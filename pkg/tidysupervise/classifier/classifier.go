package classifier

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/features"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/internalerr"
)

// Params are the learned parameters of a linear multi-class model: one
// weight per (label, column) plus one bias per label.
type Params struct {
	Labels  []string
	Weights [][]float64 // [label][column]
	Bias    []float64
}

// Scores returns the raw score of every label for a row, in label order.
func (p Params) Scores(r features.Row) []float64 {
	out := make([]float64, len(p.Labels))
	for k := range p.Labels {
		out[k] = r.Dot(p.Weights[k]) + p.Bias[k]
	}
	return out
}

// Strategy fits a multi-class linear model. Implementations must be
// deterministic for identical input and must stop when ctx is cancelled.
type Strategy interface {
	Name() string
	Fit(ctx context.Context, rows []features.Row, dim int) (Params, error)
}

// Hyper carries the hyperparameters shared by the strategies.
type Hyper struct {
	Epochs       int
	LearningRate float64
	Lambda       float64
	Seed         uint64
}

// Strategy names.
const (
	NameSoftmax = "softmax"
	NameSVM     = "svm"
)

// New resolves a strategy by name.
func New(name string, h Hyper) (Strategy, error) {
	switch name {
	case NameSoftmax, "":
		return &Softmax{Epochs: h.Epochs, LearningRate: h.LearningRate, Lambda: h.Lambda}, nil
	case NameSVM:
		return &LinearSVM{Epochs: h.Epochs, Lambda: h.Lambda, Seed: h.Seed}, nil
	}
	return nil, fmt.Errorf("%w: unknown strategy %q", internalerr.ErrInvalidConfig, name)
}

// Probabilities turns raw scores into a distribution with normalized
// exponentials. The result is non-negative and sums to one.
func Probabilities(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}
	lse := floats.LogSumExp(scores)
	for k, s := range scores {
		out[k] = math.Exp(s - lse)
	}
	return out
}

// prepare validates training rows and maps labels to class indices.
func prepare(rows []features.Row, dim int) ([]string, []int, error) {
	if len(rows) == 0 {
		return nil, nil, internalerr.ErrEmptyFeatureMatrix
	}
	if dim <= 0 {
		return nil, nil, internalerr.ErrEmptyVocabulary
	}
	for i, r := range rows {
		if r.Label == "" {
			return nil, nil, fmt.Errorf("%w: row %d has no label", internalerr.ErrInvalidInput, i)
		}
	}

	labels := lo.Uniq(lo.Map(rows, func(r features.Row, _ int) string { return r.Label }))
	sort.Strings(labels)
	if len(labels) < 2 {
		return nil, nil, fmt.Errorf("%w: need at least 2 labels, got %v", internalerr.ErrInsufficientClasses, labels)
	}

	index := make(map[string]int, len(labels))
	for k, l := range labels {
		index[l] = k
	}
	y := make([]int, len(rows))
	for i, r := range rows {
		y[i] = index[r.Label]
	}
	return labels, y, nil
}

func newWeights(k, dim int) [][]float64 {
	w := make([][]float64, k)
	for i := range w {
		w[i] = make([]float64, dim)
	}
	return w
}
