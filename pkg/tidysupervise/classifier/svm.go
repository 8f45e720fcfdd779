package classifier

import (
	"context"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/features"
)

// LinearSVM is a one-vs-rest linear-kernel SVM trained with Pegasos
// stochastic sub-gradient descent on the hinge loss. The bias is learned as
// the weight of a constant feature. Row order per epoch comes from a seeded
// generator, so a fixed Seed gives a fixed model.
type LinearSVM struct {
	Epochs int
	Lambda float64
	Seed   uint64
}

// Name implements Strategy.
func (s *LinearSVM) Name() string { return NameSVM }

// Fit implements Strategy.
func (s *LinearSVM) Fit(ctx context.Context, rows []features.Row, dim int) (Params, error) {
	labels, y, err := prepare(rows, dim)
	if err != nil {
		return Params{}, err
	}

	epochs := s.Epochs
	if epochs <= 0 {
		epochs = 50
	}
	lambda := s.Lambda
	if lambda <= 0 {
		lambda = 1e-4
	}

	k := len(labels)
	p := Params{Labels: labels, Weights: make([][]float64, k), Bias: make([]float64, k)}

	for c := 0; c < k; c++ {
		rng := rand.New(rand.NewPCG(s.Seed, uint64(c)))

		// w = scale * v; v[dim] is the bias weight.
		v := make([]float64, dim+1)
		scale := 1.0
		t := 1

		for epoch := 0; epoch < epochs; epoch++ {
			if err := ctx.Err(); err != nil {
				return Params{}, fmt.Errorf("svm label %q epoch %d: %w", labels[c], epoch, err)
			}

			for _, i := range rng.Perm(len(rows)) {
				t++
				eta := 1 / (lambda * float64(t))
				r := rows[i]

				target := -1.0
				if y[i] == c {
					target = 1
				}
				margin := target * scale * (r.Dot(v) + v[dim])

				scale *= 1 - eta*lambda
				if margin < 1 {
					step := eta * target / scale
					for m, j := range r.Indices {
						v[j] += step * r.Values[m]
					}
					v[dim] += step
				}

				if scale < 1e-9 {
					floats.Scale(scale, v)
					scale = 1
				}
			}
		}

		floats.Scale(scale, v)
		p.Weights[c] = v[:dim:dim]
		p.Bias[c] = v[dim]
	}

	return p, nil
}
