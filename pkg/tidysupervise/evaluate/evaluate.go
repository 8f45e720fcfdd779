// Package evaluate measures a classifier strategy on held-out rows of a
// labelled feature matrix.
package evaluate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/classifier"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/features"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/internalerr"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/model"
)

// DefaultPropTrain is the default training share, in percent.
const DefaultPropTrain = 80

// Options controls an evaluation run.
type Options struct {
	PropTrain float64 // percentage of rows used for training, in (0,100)
	Seed      uint64
	Strategy  classifier.Strategy
	Workers   int
	Logger    *slog.Logger
}

// Split partitions n row indices into train and test sets with a seeded
// shuffle. The first round(n*prop/100) shuffled rows train.
func Split(n int, prop float64, seed uint64) (train, test []int, err error) {
	if math.IsNaN(prop) || prop <= 0 || prop >= 100 {
		return nil, nil, fmt.Errorf("%w: prop_train must lie in (0,100), got %v", internalerr.ErrInvalidConfig, prop)
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	cut := int(math.Round(float64(n) * prop / 100))
	train, test = idx[:cut], idx[cut:]
	if len(train) == 0 || len(test) == 0 {
		return nil, nil, fmt.Errorf("%w: prop_train %v over %d rows leaves %d train and %d test rows",
			internalerr.ErrInvalidConfig, prop, n, len(train), len(test))
	}
	return train, test, nil
}

// Evaluate splits x, trains on the train share and scores the rest.
func Evaluate(ctx context.Context, x *features.Matrix, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if x == nil || x.Len() == 0 {
		return nil, internalerr.ErrEmptyFeatureMatrix
	}
	if !x.Training() {
		return nil, fmt.Errorf("%w: evaluation needs a labelled feature matrix", internalerr.ErrInvalidInput)
	}
	s := opts.Strategy
	if s == nil {
		s = &classifier.Softmax{}
	}

	trainIdx, testIdx, err := Split(x.Len(), opts.PropTrain, opts.Seed)
	if err != nil {
		return nil, err
	}
	trainX, testX := x.Subset(trainIdx), x.Subset(testIdx)
	log.Debug("Split rows", "train", trainX.Len(), "test", testX.Len(), "seed", opts.Seed)

	m, err := model.Train(ctx, trainX, s, log)
	if err != nil {
		return nil, err
	}
	preds, err := model.Predictor{Workers: opts.Workers, Logger: log}.Predict(ctx, m, testX)
	if err != nil {
		return nil, err
	}

	rows := make([]RowResult, len(preds))
	for i, p := range preds {
		truth := testX.Row(i).Label
		top := p.Top()
		rows[i] = RowResult{
			DocumentID:  p.DocumentID,
			SegmentID:   p.SegmentID,
			True:        truth,
			Predicted:   top.Label,
			Probability: top.Probability,
			Correct:     truth == top.Label,
		}
	}

	res := newResult(model.NewID(), m, rows)
	log.Info(res.Summary(), "run", res.RunID, "model", m.ID(), "strategy", m.Strategy())
	return res, nil
}
