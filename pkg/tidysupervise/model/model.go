package model

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/classifier"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/features"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/internalerr"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/vocab"
)

// Model is a trained classifier together with the frozen feature space it
// was trained in. A Model is never mutated; retraining yields a new one.
type Model struct {
	id          string
	strategy    string
	vocab       *vocab.Vocabulary
	idf         []float64
	segmentSize int
	dropPartial bool
	params      classifier.Params
	labelIndex  map[string]int
	createdAt   time.Time
	prep        Preprocessing
}

// Preprocessing records how raw text was turned into tokens at training
// time. Prediction under different settings yields tokens the frozen
// vocabulary was not built from.
type Preprocessing struct {
	Lemmatization string `json:"lemmatization,omitempty" yaml:"lemmatization,omitempty"`
	Stoplist      string `json:"stoplist,omitempty" yaml:"stoplist,omitempty"`
	StripMarkup   bool   `json:"strip_markup,omitempty" yaml:"strip_markup,omitempty"`
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a fresh, time-ordered identifier.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}

// Train fits a strategy on a matrix built for training.
func Train(ctx context.Context, x *features.Matrix, s classifier.Strategy, log *slog.Logger) (*Model, error) {
	if log == nil {
		log = slog.Default()
	}
	if x == nil || x.Len() == 0 {
		return nil, internalerr.ErrEmptyFeatureMatrix
	}
	if !x.Training() {
		return nil, fmt.Errorf("%w: feature matrix was not built for training", internalerr.ErrInvalidInput)
	}
	if s == nil {
		return nil, fmt.Errorf("%w: no classifier strategy", internalerr.ErrInvalidConfig)
	}
	if lo.EveryBy(x.Rows(), func(r features.Row) bool { return r.IsZero() }) {
		return nil, fmt.Errorf("%w: all %d rows share no term with the vocabulary",
			internalerr.ErrEmptyFeatureMatrix, x.Len())
	}

	start := time.Now()
	params, err := s.Fit(ctx, x.Rows(), x.NumColumns())
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", s.Name(), err)
	}

	size, drop := x.Segmentation()
	m, err := newModel(NewID(), s.Name(), x.Vocabulary(), x.IDF(), size, drop, params, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	log.Info("Trained model",
		"id", m.id,
		"strategy", m.strategy,
		"rows", x.Len(),
		"terms", x.NumColumns(),
		"labels", len(params.Labels),
		"elapsed", time.Since(start))
	return m, nil
}

func newModel(id, strategy string, v *vocab.Vocabulary, idf []float64, segmentSize int, dropPartial bool,
	params classifier.Params, createdAt time.Time) (*Model, error) {
	if v == nil {
		return nil, internalerr.ErrEmptyVocabulary
	}
	if len(idf) != v.Len() {
		return nil, fmt.Errorf("%w: %d idf weights for %d terms", internalerr.ErrInvalidInput, len(idf), v.Len())
	}
	if len(params.Labels) < 2 {
		return nil, fmt.Errorf("%w: model has %d labels", internalerr.ErrInsufficientClasses, len(params.Labels))
	}
	if len(params.Weights) != len(params.Labels) || len(params.Bias) != len(params.Labels) {
		return nil, fmt.Errorf("%w: %d labels, %d weight rows, %d biases",
			internalerr.ErrInvalidInput, len(params.Labels), len(params.Weights), len(params.Bias))
	}

	index := make(map[string]int, len(params.Labels))
	for k, l := range params.Labels {
		if _, dup := index[l]; dup {
			return nil, fmt.Errorf("%w: duplicate label %q", internalerr.ErrInvalidInput, l)
		}
		if len(params.Weights[k]) != v.Len() {
			return nil, fmt.Errorf("%w: label %q has %d weights for %d terms",
				internalerr.ErrInvalidInput, l, len(params.Weights[k]), v.Len())
		}
		index[l] = k
	}

	return &Model{
		id:          id,
		strategy:    strategy,
		vocab:       v,
		idf:         idf,
		segmentSize: segmentSize,
		dropPartial: dropPartial,
		params:      params,
		labelIndex:  index,
		createdAt:   createdAt,
	}, nil
}

// ID returns the model identifier.
func (m *Model) ID() string { return m.id }

// Strategy returns the name of the strategy that fitted the model.
func (m *Model) Strategy() string { return m.strategy }

// Vocabulary returns the frozen vocabulary.
func (m *Model) Vocabulary() *vocab.Vocabulary { return m.vocab }

// IDF returns the training-time inverse document frequencies.
func (m *Model) IDF() []float64 { return append([]float64(nil), m.idf...) }

// Segmentation returns the segmentation used at training time.
func (m *Model) Segmentation() (size int, dropPartial bool) { return m.segmentSize, m.dropPartial }

// CreatedAt returns the training time.
func (m *Model) CreatedAt() time.Time { return m.createdAt }

// Labels returns the known labels in model order.
func (m *Model) Labels() []string { return append([]string(nil), m.params.Labels...) }

// LabelIndex returns the position of a label.
func (m *Model) LabelIndex(label string) (int, bool) {
	k, ok := m.labelIndex[label]
	return k, ok
}

// Weight returns the discriminative weight of a (label, column) pair.
func (m *Model) Weight(label, column int) float64 { return m.params.Weights[label][column] }

// Weights returns a copy of one label's weights in column order.
func (m *Model) Weights(label int) []float64 {
	return append([]float64(nil), m.params.Weights[label]...)
}

// Bias returns the bias of a label.
func (m *Model) Bias(label int) float64 { return m.params.Bias[label] }

// Preprocessing returns the recorded tokenization settings; the zero value
// means none were recorded.
func (m *Model) Preprocessing() Preprocessing { return m.prep }

// WithPreprocessing returns a copy of the model carrying p.
func (m *Model) WithPreprocessing(p Preprocessing) *Model {
	c := *m
	c.prep = p
	return &c
}

// FeatureOptions returns matrix options that rebuild this model's feature
// space from new text: same segmentation and training-time IDF.
func (m *Model) FeatureOptions() features.Options {
	return features.Options{
		SegmentSize: m.segmentSize,
		DropPartial: m.dropPartial,
		IDF:         m.IDF(),
	}
}

// CheckCompatible verifies that a matrix's columns are exactly this model's
// vocabulary, in the same order.
func (m *Model) CheckCompatible(x *features.Matrix) error {
	if x == nil {
		return internalerr.ErrEmptyFeatureMatrix
	}
	if x.NumColumns() != m.vocab.Len() {
		return fmt.Errorf("%w: matrix has %d columns, model vocabulary has %d terms",
			internalerr.ErrIncompatibleFeatureSpace, x.NumColumns(), m.vocab.Len())
	}
	if x.Vocabulary() == m.vocab {
		return nil
	}
	for j := 0; j < m.vocab.Len(); j++ {
		if got, want := x.Vocabulary().Term(j), m.vocab.Term(j); got != want {
			return fmt.Errorf("%w: column %d is %q, model expects %q",
				internalerr.ErrIncompatibleFeatureSpace, j, got, want)
		}
	}
	return nil
}
