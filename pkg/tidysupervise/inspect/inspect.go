// Package inspect is a read-only view over the weights of a trained model.
package inspect

import (
	"fmt"
	"math"
	"sort"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/internalerr"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/model"
)

// TermWeight is one (label, term) cell of the weight table.
type TermWeight struct {
	Label  string  `json:"label" yaml:"label"`
	Term   string  `json:"term" yaml:"term"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// LabelTerms lists the most discriminative terms of a label.
type LabelTerms struct {
	Label string       `json:"label" yaml:"label"`
	Bias  float64      `json:"bias" yaml:"bias"`
	Terms []TermWeight `json:"terms" yaml:"terms"`
}

// Inspector reads a model without touching it.
type Inspector struct {
	m *model.Model
}

// New wraps a model.
func New(m *model.Model) *Inspector {
	return &Inspector{m: m}
}

// TopTerms returns, per label in model order, the n terms with the largest
// absolute weight, ties broken by term. n <= 0 returns every term.
func (in *Inspector) TopTerms(n int) []LabelTerms {
	terms := in.m.Vocabulary().Terms()
	labels := in.m.Labels()

	out := make([]LabelTerms, len(labels))
	for k, label := range labels {
		weights := in.m.Weights(k)
		cells := make([]TermWeight, len(terms))
		for j, term := range terms {
			cells[j] = TermWeight{Label: label, Term: term, Weight: weights[j]}
		}
		sort.Slice(cells, func(a, b int) bool {
			wa, wb := math.Abs(cells[a].Weight), math.Abs(cells[b].Weight)
			if wa != wb {
				return wa > wb
			}
			return cells[a].Term < cells[b].Term
		})
		if n > 0 && len(cells) > n {
			cells = cells[:n]
		}
		out[k] = LabelTerms{Label: label, Bias: in.m.Bias(k), Terms: cells}
	}
	return out
}

// Table returns the full weight table, label-major in model order and then
// in vocabulary column order.
func (in *Inspector) Table() []TermWeight {
	terms := in.m.Vocabulary().Terms()
	labels := in.m.Labels()

	out := make([]TermWeight, 0, len(labels)*len(terms))
	for k, label := range labels {
		for j, term := range terms {
			out = append(out, TermWeight{Label: label, Term: term, Weight: in.m.Weight(k, j)})
		}
	}
	return out
}

// Weight returns the weight of a term for a label.
func (in *Inspector) Weight(label, term string) (float64, error) {
	k, ok := in.m.LabelIndex(label)
	if !ok {
		return 0, fmt.Errorf("%w: label %q", internalerr.ErrNotFound, label)
	}
	j, ok := in.m.Vocabulary().Index(term)
	if !ok {
		return 0, fmt.Errorf("%w: term %q", internalerr.ErrNotFound, term)
	}
	return in.m.Weight(k, j), nil
}
