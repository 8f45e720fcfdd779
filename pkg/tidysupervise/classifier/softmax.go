package classifier

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/features"
)

// Softmax is multinomial logistic regression fitted by full-batch gradient
// descent with an L2 penalty on the weights (not the biases).
type Softmax struct {
	Epochs       int
	LearningRate float64
	Lambda       float64
}

// Name implements Strategy.
func (s *Softmax) Name() string { return NameSoftmax }

// Fit implements Strategy.
func (s *Softmax) Fit(ctx context.Context, rows []features.Row, dim int) (Params, error) {
	labels, y, err := prepare(rows, dim)
	if err != nil {
		return Params{}, err
	}

	epochs := s.Epochs
	if epochs <= 0 {
		epochs = 200
	}
	lr := s.LearningRate
	if lr <= 0 {
		lr = 0.5
	}

	k := len(labels)
	p := Params{Labels: labels, Weights: newWeights(k, dim), Bias: make([]float64, k)}
	gradW := newWeights(k, dim)
	gradB := make([]float64, k)
	n := float64(len(rows))

	for epoch := 0; epoch < epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return Params{}, fmt.Errorf("softmax epoch %d: %w", epoch, err)
		}

		for c := 0; c < k; c++ {
			floats.Scale(0, gradW[c])
		}
		floats.Scale(0, gradB)

		for i, r := range rows {
			prob := Probabilities(p.Scores(r))
			for c := 0; c < k; c++ {
				g := prob[c]
				if c == y[i] {
					g -= 1
				}
				if g == 0 {
					continue
				}
				gradB[c] += g
				for m, j := range r.Indices {
					gradW[c][j] += g * r.Values[m]
				}
			}
		}

		for c := 0; c < k; c++ {
			floats.Scale(1/n, gradW[c])
			floats.AddScaled(gradW[c], s.Lambda, p.Weights[c])
			floats.AddScaled(p.Weights[c], -lr, gradW[c])
		}
		floats.AddScaled(p.Bias, -lr/n, gradB)
	}

	return p, nil
}
