package evaluate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Numapresse/tidysupervise/internal/testcorpus"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/classifier"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/features"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/internalerr"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/vocab"
)

func labelledMatrix(t *testing.T) *features.Matrix {
	t.Helper()
	req := require.New(t)
	records := testcorpus.Records()
	v, err := vocab.Build(records, vocab.DefaultOptions())
	req.NoError(err)
	x, err := features.Build(context.Background(), records, v, features.Options{Training: true})
	req.NoError(err)
	return x
}

func TestSplit(t *testing.T) {
	req := require.New(t)

	train, test, err := Split(10, 80, 42)
	req.NoError(err)
	req.Len(train, 8)
	req.Len(test, 2)
	req.ElementsMatch([]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, append(append([]int{}, train...), test...))

	// Then the same seed reproduces the partition
	train2, test2, err := Split(10, 80, 42)
	req.NoError(err)
	req.Equal(train, train2)
	req.Equal(test, test2)
}

func TestSplitRejectsOutOfRange(t *testing.T) {
	for _, prop := range []float64{0, 100, -5, 120} {
		_, _, err := Split(10, prop, 1)
		require.ErrorIs(t, err, internalerr.ErrInvalidConfig, "prop_train=%v", prop)
	}

	// Given too few rows for a non-empty test share
	_, _, err := Split(3, 90, 1)
	require.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}

func TestEvaluate(t *testing.T) {
	req := require.New(t)
	x := labelledMatrix(t)

	res, err := Evaluate(context.Background(), x, Options{PropTrain: 70, Seed: 7})
	req.NoError(err)

	// Then 6 rows train and 3 are held out
	req.Len(res.Rows, 3)
	req.NotEmpty(res.RunID)
	req.NotNil(res.Model)
	req.Equal(3, res.Confusion.Total())

	correct := 0
	for _, r := range res.Rows {
		req.Equal(r.True == r.Predicted, r.Correct)
		if r.Correct {
			correct++
		}
	}
	req.InDelta(float64(correct)/3, res.Accuracy, 1e-12)
	req.Len(res.Misclassified(), 3-correct)
	req.Contains(res.Summary(), "held-out rows")
}

func TestEvaluateDeterministic(t *testing.T) {
	req := require.New(t)
	x := labelledMatrix(t)
	opts := Options{PropTrain: 70, Seed: 3, Strategy: &classifier.LinearSVM{Seed: 3}}

	a, err := Evaluate(context.Background(), x, opts)
	req.NoError(err)
	b, err := Evaluate(context.Background(), x, opts)
	req.NoError(err)
	req.Equal(a.Rows, b.Rows)
	req.NotEqual(a.RunID, b.RunID)
}

func TestEvaluateFullTrainShareFails(t *testing.T) {
	x := labelledMatrix(t)

	_, err := Evaluate(context.Background(), x, Options{PropTrain: 100})

	require.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}

func TestEvaluateNeedsLabels(t *testing.T) {
	req := require.New(t)
	x := labelledMatrix(t)

	unlabelled, err := features.Build(context.Background(), testcorpus.Unlabelled(testcorpus.Records()),
		x.Vocabulary(), features.Options{})
	req.NoError(err)

	_, err = Evaluate(context.Background(), unlabelled, Options{PropTrain: 80})
	req.ErrorIs(err, internalerr.ErrInvalidInput)

	_, err = Evaluate(context.Background(), nil, Options{PropTrain: 80})
	req.ErrorIs(err, internalerr.ErrEmptyFeatureMatrix)
}

func TestEvaluateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Evaluate(ctx, labelledMatrix(t), Options{PropTrain: 80})

	require.ErrorIs(t, err, context.Canceled)
}

func TestResultAggregates(t *testing.T) {
	req := require.New(t)
	rows := []RowResult{
		{DocumentID: "1", True: "a", Predicted: "a", Correct: true},
		{DocumentID: "2", True: "a", Predicted: "b"},
		{DocumentID: "3", True: "a", Predicted: "b"},
		{DocumentID: "4", True: "b", Predicted: "b", Correct: true},
		{DocumentID: "5", True: "b", Predicted: "c"},
		{DocumentID: "6", True: "c", Predicted: "a"},
	}

	res := newResult("run", nil, rows)

	req.InDelta(2.0/6, res.Accuracy, 1e-12)
	req.Equal([]string{"a", "b", "c"}, res.Confusion.Labels())
	req.Equal(2, res.Confusion.Count("a", "b"))
	req.Equal(0, res.Confusion.Count("c", "c"))
	req.Len(res.Misclassified(), 4)

	req.Equal([]Pair{
		{True: "a", Predicted: "b", Count: 2},
		{True: "b", Predicted: "c", Count: 1},
		{True: "c", Predicted: "a", Count: 1},
	}, res.MostConfused(0))
	req.Len(res.MostConfused(1), 1)

	req.Equal([]ClassScore{
		{Label: "a", Support: 3, Correct: 1, Accuracy: 1.0 / 3},
		{Label: "b", Support: 2, Correct: 1, Accuracy: 0.5},
		{Label: "c", Support: 1, Correct: 0, Accuracy: 0},
	}, res.PerClass())
	req.Equal("Accuracy 33.33% (2/6 held-out rows, 3 labels)", res.Summary())
}
