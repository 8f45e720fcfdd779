package model

import (
	"bytes"
	"context"
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Numapresse/tidysupervise/internal/testcorpus"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/classifier"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/corpus"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/features"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/internalerr"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/vocab"
)

func trainingMatrix(t *testing.T) *features.Matrix {
	t.Helper()
	records := testcorpus.Records()
	v, err := vocab.Build(records, vocab.DefaultOptions())
	if err != nil {
		t.Fatalf("vocab.Build: %v", err)
	}
	x, err := features.Build(context.Background(), records, v, features.Options{Training: true})
	if err != nil {
		t.Fatalf("features.Build: %v", err)
	}
	return x
}

func trainModel(t *testing.T) (*Model, *features.Matrix) {
	t.Helper()
	x := trainingMatrix(t)
	m, err := Train(context.Background(), x, &classifier.Softmax{}, nil)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	return m, x
}

// applyMatrix rebuilds the model's feature space over unlabelled records.
func applyMatrix(t *testing.T, m *Model, records []corpus.Record) *features.Matrix {
	t.Helper()
	x, err := features.Build(context.Background(), records, m.Vocabulary(), m.FeatureOptions())
	if err != nil {
		t.Fatalf("features.Build: %v", err)
	}
	return x
}

func TestTrainPredict(t *testing.T) {
	m, x := trainModel(t)

	if m.ID() == "" || m.Strategy() != classifier.NameSoftmax {
		t.Fatalf("Unexpected identity %q/%q", m.ID(), m.Strategy())
	}
	if !reflect.DeepEqual(m.Labels(), []string{"politics", "sport", "tech"}) {
		t.Fatalf("Labels = %v", m.Labels())
	}
	if !reflect.DeepEqual(m.IDF(), x.IDF()) {
		t.Error("Model should keep the training IDF")
	}

	preds, err := m.Predict(context.Background(), x)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(preds) != x.Len() {
		t.Fatalf("Expected %d predictions, got %d", x.Len(), len(preds))
	}
	for i, p := range preds {
		row := x.Row(i)
		if p.DocumentID != row.DocumentID || p.SegmentID != row.SegmentID {
			t.Errorf("Prediction %d is for %s/%d", i, p.DocumentID, p.SegmentID)
		}
		sum := 0.0
		for k, lp := range p.Ranked {
			if lp.Probability < 0 {
				t.Errorf("Negative probability %v", lp)
			}
			if k > 0 && lp.Probability > p.Ranked[k-1].Probability {
				t.Errorf("Ranking not descending: %v", p.Ranked)
			}
			sum += lp.Probability
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("Probabilities for %s sum to %f", p.DocumentID, sum)
		}
		if p.Top().Label != row.Label {
			t.Errorf("Document %s predicted %s, want %s", p.DocumentID, p.Top().Label, row.Label)
		}
	}
}

func TestPredictNewText(t *testing.T) {
	m, _ := trainModel(t)

	docs := []corpus.Document{
		{ID: "n1", Text: "goal goal team unknownword"},
		{ID: "n2", Text: "cloud server code"},
		{ID: "n3", Text: "nothing in common"},
	}
	x := applyMatrix(t, m, testcorpus.Tokens(docs))
	if x.Training() {
		t.Fatal("Apply matrix should not carry labels")
	}

	preds, err := m.Predict(context.Background(), x)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if preds[0].Top().Label != "sport" || preds[1].Top().Label != "tech" {
		t.Errorf("Unexpected predictions %v / %v", preds[0].Top(), preds[1].Top())
	}
	if len(preds[2].Ranked) != 3 {
		t.Errorf("A zero row still gets a full distribution, got %v", preds[2].Ranked)
	}
}

func TestTrainErrors(t *testing.T) {
	x := trainingMatrix(t)
	ctx := context.Background()

	if _, err := Train(ctx, nil, &classifier.Softmax{}, nil); !errors.Is(err, internalerr.ErrEmptyFeatureMatrix) {
		t.Errorf("nil matrix: got %v", err)
	}
	if _, err := Train(ctx, x, nil, nil); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("nil strategy: got %v", err)
	}

	unlabelled, err := features.Build(ctx, testcorpus.Unlabelled(testcorpus.Records()), x.Vocabulary(), features.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Train(ctx, unlabelled, &classifier.Softmax{}, nil); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("non-training matrix: got %v", err)
	}

	var sportOnly []int
	for i, r := range x.Rows() {
		if r.Label == "sport" {
			sportOnly = append(sportOnly, i)
		}
	}
	if _, err := Train(ctx, x.Subset(sportOnly), &classifier.Softmax{}, nil); !errors.Is(err, internalerr.ErrInsufficientClasses) {
		t.Errorf("single class: got %v", err)
	}
}

func TestPredictIncompatible(t *testing.T) {
	m, _ := trainModel(t)
	ctx := context.Background()
	records := testcorpus.Unlabelled(testcorpus.Records())

	smaller, err := vocab.New([]string{"goal", "vote"}, []int{3, 3}, 9)
	if err != nil {
		t.Fatal(err)
	}
	x, err := features.Build(ctx, records, smaller, features.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Predict(ctx, x); !errors.Is(err, internalerr.ErrIncompatibleFeatureSpace) {
		t.Errorf("Column count mismatch: expected ErrIncompatibleFeatureSpace, got %v", err)
	}

	// same size, one column renamed
	terms := m.Vocabulary().Terms()
	terms[len(terms)-1] = "zzz"
	renamed, err := vocab.New(terms, m.Vocabulary().DocCounts(), m.Vocabulary().NumDocs())
	if err != nil {
		t.Fatal(err)
	}
	x, err = features.Build(ctx, records, renamed, features.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Predict(ctx, x); !errors.Is(err, internalerr.ErrIncompatibleFeatureSpace) {
		t.Errorf("Column term mismatch: expected ErrIncompatibleFeatureSpace, got %v", err)
	}
}

func TestPredictCancelled(t *testing.T) {
	m, x := trainModel(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Predict(ctx, x); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestTrainRejectsAllZeroRows(t *testing.T) {
	ctx := context.Background()
	v, err := vocab.New([]string{"alpha", "beta"}, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	records := []corpus.Record{
		{DocumentID: "1", Term: "x", Label: "a"},
		{DocumentID: "2", Term: "y", Label: "b"},
	}
	x, err := features.Build(ctx, records, v, features.Options{Training: true})
	if err != nil {
		t.Fatalf("features.Build: %v", err)
	}
	for _, r := range x.Rows() {
		if !r.IsZero() {
			t.Fatalf("Row %s should be zero", r.DocumentID)
		}
	}

	for _, s := range []classifier.Strategy{&classifier.Softmax{}, &classifier.LinearSVM{}} {
		if _, err := Train(ctx, x, s, nil); !errors.Is(err, internalerr.ErrEmptyFeatureMatrix) {
			t.Errorf("%s: expected ErrEmptyFeatureMatrix, got %v", s.Name(), err)
		}
	}

	// one informative row is enough
	records = append(records, corpus.Record{DocumentID: "3", Term: "alpha", Label: "a"})
	x, err = features.Build(ctx, records, v, features.Options{Training: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Train(ctx, x, &classifier.Softmax{}, nil); err != nil {
		t.Errorf("Train with one non-zero row: %v", err)
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	for _, s := range []classifier.Strategy{&classifier.Softmax{}, &classifier.LinearSVM{Seed: 3}} {
		t.Run(s.Name(), func(t *testing.T) {
			x := trainingMatrix(t)
			m, err := Train(context.Background(), x, s, nil)
			if err != nil {
				t.Fatalf("Train: %v", err)
			}
			prep := Preprocessing{Lemmatization: "auto", Stoplist: "stop.yaml", StripMarkup: true}
			m = m.WithPreprocessing(prep)
			want, err := m.Predict(context.Background(), x)
			if err != nil {
				t.Fatal(err)
			}

			var js, ys bytes.Buffer
			if err := m.WriteJSON(&js); err != nil {
				t.Fatalf("WriteJSON: %v", err)
			}
			if err := m.WriteYAML(&ys); err != nil {
				t.Fatalf("WriteYAML: %v", err)
			}
			fromJSON, err := ReadJSON(&js)
			if err != nil {
				t.Fatalf("ReadJSON: %v", err)
			}
			fromYAML, err := ReadYAML(&ys)
			if err != nil {
				t.Fatalf("ReadYAML: %v", err)
			}

			dir := t.TempDir()
			var fromFiles []*Model
			for _, name := range []string{"model.json", "model.yaml"} {
				path := filepath.Join(dir, name)
				if err := m.SaveFile(path); err != nil {
					t.Fatalf("SaveFile(%s): %v", name, err)
				}
				loaded, err := LoadFile(path)
				if err != nil {
					t.Fatalf("LoadFile(%s): %v", name, err)
				}
				fromFiles = append(fromFiles, loaded)
			}

			for _, reloaded := range append([]*Model{fromJSON, fromYAML}, fromFiles...) {
				if reloaded.ID() != m.ID() || !reloaded.Vocabulary().Equal(m.Vocabulary()) {
					t.Errorf("Reloaded model lost its identity or vocabulary")
				}
				if reloaded.Preprocessing() != prep {
					t.Errorf("Reloaded preprocessing %+v, want %+v", reloaded.Preprocessing(), prep)
				}
				got, err := reloaded.Predict(context.Background(), x)
				if err != nil {
					t.Fatalf("Predict after reload: %v", err)
				}
				if !reflect.DeepEqual(got, want) {
					t.Errorf("Reloaded model predicts differently")
				}
			}
		})
	}
}

func TestFromArtifactValidation(t *testing.T) {
	m, _ := trainModel(t)

	tests := map[string]func(a *Artifact){
		"format":       func(a *Artifact) { a.Format = 99 },
		"id":           func(a *Artifact) { a.ID = "" },
		"segment size": func(a *Artifact) { a.SegmentSize = -1 },
		"idf length":   func(a *Artifact) { a.IDF = a.IDF[1:] },
		"idf nan":      func(a *Artifact) { a.IDF[0] = math.NaN() },
		"weights":      func(a *Artifact) { a.Weights[0] = a.Weights[0][1:] },
		"bias":         func(a *Artifact) { a.Bias = a.Bias[1:] },
		"labels":       func(a *Artifact) { a.Labels[1] = a.Labels[0] },
		"terms":        func(a *Artifact) { a.Terms[1] = a.Terms[0] },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			a := m.Artifact()
			mutate(&a)
			if _, err := FromArtifact(a); !errors.Is(err, internalerr.ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput, got %v", err)
			}
		})
	}

	a := m.Artifact()
	a.Labels, a.Weights, a.Bias = a.Labels[:1], a.Weights[:1], a.Bias[:1]
	if _, err := FromArtifact(a); !errors.Is(err, internalerr.ErrInsufficientClasses) {
		t.Errorf("One-label artifact: got %v", err)
	}
}

func TestAggregate(t *testing.T) {
	preds := []Prediction{
		{DocumentID: "d1", SegmentID: 1, Ranked: []LabelProb{{"a", 0.9}, {"b", 0.1}}},
		{DocumentID: "d2", SegmentID: 1, Ranked: []LabelProb{{"b", 0.6}, {"a", 0.4}}},
		{DocumentID: "d1", SegmentID: 2, Ranked: []LabelProb{{"b", 0.7}, {"a", 0.3}}},
	}
	got := Aggregate(preds)
	if len(got) != 2 || got[0].DocumentID != "d1" || got[1].DocumentID != "d2" {
		t.Fatalf("Unexpected documents %v", got)
	}
	if got[0].SegmentID != 0 {
		t.Errorf("Aggregates carry segment 0, got %d", got[0].SegmentID)
	}
	if top := got[0].Top(); top.Label != "a" || math.Abs(top.Probability-0.6) > 1e-12 {
		t.Errorf("d1 top = %v", top)
	}
	if top := got[1].Top(); top.Label != "b" {
		t.Errorf("d2 top = %v", top)
	}
}

func TestAggregateTieBreak(t *testing.T) {
	got := Aggregate([]Prediction{{DocumentID: "d", Ranked: []LabelProb{{"b", 0.5}, {"a", 0.5}}}})
	if got[0].Top().Label != "a" {
		t.Errorf("Equal probabilities rank by label, got %v", got[0].Ranked)
	}
}

func TestNewIDMonotonic(t *testing.T) {
	prev := NewID()
	for i := 0; i < 100; i++ {
		id := NewID()
		if id <= prev {
			t.Fatalf("IDs not increasing: %s then %s", prev, id)
		}
		prev = id
	}
}
