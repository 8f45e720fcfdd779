// Package tidysupervise wires the supervised classification pipeline:
// token stream -> vocabulary -> feature matrix -> model, with evaluation and
// prediction over explicit values rather than shared session state.
package tidysupervise

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/classifier"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/config"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/corpus"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/evaluate"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/features"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/internalerr"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/lexicon"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/model"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/store"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/vocab"
)

// Pipeline runs every stage with one validated configuration.
type Pipeline struct {
	cfg       config.Config
	tokenizer *corpus.Tokenizer
	lemmas    lexicon.Lemmatizer
	strategy  classifier.Strategy
	store     store.Store
	log       *slog.Logger
}

// Options configures a Pipeline. Zero-valued collaborators get defaults: a
// stopword-free tokenizer, the strategy named by Config, no store.
type Options struct {
	Config     config.Config
	Tokenizer  *corpus.Tokenizer
	Lemmatizer lexicon.Lemmatizer
	Strategy   classifier.Strategy
	Store      store.Store // trained models are saved here when set
	Logger     *slog.Logger
}

// New validates the configuration and builds a Pipeline.
func New(opts Options) (*Pipeline, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		cfg:       opts.Config,
		tokenizer: opts.Tokenizer,
		lemmas:    opts.Lemmatizer,
		strategy:  opts.Strategy,
		store:     opts.Store,
		log:       opts.Logger,
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	if p.tokenizer == nil {
		p.tokenizer = corpus.NewTokenizer(nil)
		p.tokenizer.SetStripMarkup(p.cfg.StripMarkup)
	}
	if p.strategy == nil {
		s, err := classifier.New(p.cfg.Strategy, classifier.Hyper{
			Epochs:       p.cfg.Epochs,
			LearningRate: p.cfg.LearningRate,
			Lambda:       p.cfg.Lambda,
			Seed:         p.cfg.Seed,
		})
		if err != nil {
			return nil, err
		}
		p.strategy = s
	}
	return p, nil
}

// NewFromConfig loads the stoplist and lemma dictionaries named by cfg and
// builds a Pipeline around them.
func NewFromConfig(cfg config.Config, st store.Store, log *slog.Logger) (*Pipeline, error) {
	loader := config.NewLoader(cfg)
	comp, err := loader.Load()
	if err != nil {
		return nil, err
	}
	return New(Options{
		Config:     cfg,
		Tokenizer:  comp.Tokenizer,
		Lemmatizer: comp.Lemmatizer,
		Store:      st,
		Logger:     log,
	})
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() config.Config { return p.cfg }

// Store returns the model store, if any.
func (p *Pipeline) Store() store.Store { return p.store }

// Close closes the store, if any.
func (p *Pipeline) Close() error {
	if p.store == nil {
		return nil
	}
	return p.store.Close()
}

// Records tokenizes raw documents into a token stream.
func (p *Pipeline) Records(docs []corpus.Document) []corpus.Record {
	return p.tokenizer.Records(docs)
}

// Prepare validates a token stream and applies the configured lemmatization.
func (p *Pipeline) Prepare(records []corpus.Record) ([]corpus.Record, error) {
	if err := corpus.ValidateAll(records); err != nil {
		return nil, err
	}
	return lexicon.Apply(records, p.cfg.Lemmatization, p.lemmas)
}

// Labelled keeps the records of documents that carry a label.
func (p *Pipeline) Labelled(records []corpus.Record) []corpus.Record {
	kept := lo.Filter(records, func(r corpus.Record, _ int) bool { return r.Label != "" })
	if dropped := len(records) - len(kept); dropped > 0 {
		p.log.Info("Dropped unlabelled tokens", "tokens", dropped)
	}
	return kept
}

// Vocabulary builds the vocabulary of a prepared token stream.
func (p *Pipeline) Vocabulary(records []corpus.Record) (*vocab.Vocabulary, error) {
	v, err := vocab.Build(records, vocab.Options{MinDocCount: p.cfg.MinDocCount, MaxWordSet: p.cfg.MaxWordSet})
	if err != nil {
		return nil, err
	}
	p.log.Info("Built vocabulary", "terms", v.Len(), "documents", v.NumDocs())
	return v, nil
}

// Matrix builds a feature matrix over v with the configured segmentation.
func (p *Pipeline) Matrix(ctx context.Context, records []corpus.Record, v *vocab.Vocabulary, training bool) (*features.Matrix, error) {
	x, err := features.Build(ctx, records, v, features.Options{
		SegmentSize: p.cfg.SegmentSize,
		DropPartial: p.cfg.DropPartial,
		Training:    training,
		Workers:     p.cfg.Workers,
		Logger:      p.log,
	})
	if err != nil {
		return nil, err
	}
	p.log.Info("Built feature matrix", "rows", x.Len(), "columns", x.NumColumns(), "training", training)
	return x, nil
}

// trainingMatrix runs prepare, label filtering, vocabulary and matrix.
func (p *Pipeline) trainingMatrix(ctx context.Context, records []corpus.Record) (*features.Matrix, error) {
	prepared, err := p.Prepare(records)
	if err != nil {
		return nil, err
	}
	labelled := p.Labelled(prepared)
	if len(labelled) == 0 {
		return nil, fmt.Errorf("%w: no labelled document", internalerr.ErrEmptyFeatureMatrix)
	}
	v, err := p.Vocabulary(labelled)
	if err != nil {
		return nil, err
	}
	return p.Matrix(ctx, labelled, v, true)
}

// Train fits a model on the labelled documents of a token stream and saves
// it when a store is configured.
func (p *Pipeline) Train(ctx context.Context, records []corpus.Record) (*model.Model, *features.Matrix, error) {
	x, err := p.trainingMatrix(ctx, records)
	if err != nil {
		return nil, nil, err
	}
	m, err := model.Train(ctx, x, p.strategy, p.log)
	if err != nil {
		return nil, nil, err
	}
	m = m.WithPreprocessing(p.preprocessing())
	if p.store != nil {
		if err := p.store.SaveModel(ctx, m); err != nil {
			return nil, nil, fmt.Errorf("save model %s: %w", m.ID(), err)
		}
	}
	return m, x, nil
}

// Evaluate holds out (100 - prop_train)% of the labelled rows and scores a
// model trained on the rest.
func (p *Pipeline) Evaluate(ctx context.Context, records []corpus.Record) (*evaluate.Result, error) {
	x, err := p.trainingMatrix(ctx, records)
	if err != nil {
		return nil, err
	}
	res, err := evaluate.Evaluate(ctx, x, evaluate.Options{
		PropTrain: p.cfg.PropTrain,
		Seed:      p.cfg.Seed,
		Strategy:  p.strategy,
		Workers:   p.cfg.Workers,
		Logger:    p.log,
	})
	if err != nil {
		return nil, err
	}
	res.Model = res.Model.WithPreprocessing(p.preprocessing())
	return res, nil
}

// preprocessing describes how this pipeline turns text into tokens.
func (p *Pipeline) preprocessing() model.Preprocessing {
	return model.Preprocessing{
		Lemmatization: p.cfg.Lemmatization,
		Stoplist:      p.cfg.StoplistPath,
		StripMarkup:   p.cfg.StripMarkup,
	}
}

// checkPreprocessing warns when m was trained on text tokenized differently.
func (p *Pipeline) checkPreprocessing(m *model.Model) {
	trained := m.Preprocessing()
	if trained == (model.Preprocessing{}) || trained == p.preprocessing() {
		return
	}
	p.log.Warn("Model was trained with different preprocessing",
		"model", m.ID(),
		"trained_lemmatization", trained.Lemmatization,
		"lemmatization", p.cfg.Lemmatization,
		"trained_stoplist", trained.Stoplist,
		"stoplist", p.cfg.StoplistPath,
		"trained_strip_markup", trained.StripMarkup,
		"strip_markup", p.cfg.StripMarkup)
}

// Predict applies m to a token stream in m's own feature space: its
// vocabulary, training IDF and segmentation are reused verbatim.
func (p *Pipeline) Predict(ctx context.Context, m *model.Model, records []corpus.Record) ([]model.Prediction, error) {
	prepared, err := p.Prepare(records)
	if err != nil {
		return nil, err
	}
	p.checkPreprocessing(m)
	x, err := features.Build(ctx, prepared, m.Vocabulary(), p.featureOptions(m))
	if err != nil {
		return nil, err
	}
	return model.Predictor{Workers: p.cfg.Workers, Logger: p.log}.Predict(ctx, m, x)
}

// PredictTexts tokenizes raw documents and applies m to them. Unlike a token
// stream, it keeps documents that yield no token: each gets a zero row and
// still receives a prediction.
func (p *Pipeline) PredictTexts(ctx context.Context, m *model.Model, docs []corpus.Document) ([]model.Prediction, error) {
	tokenized, err := p.tokenizer.Documents(docs)
	if err != nil {
		return nil, err
	}
	prepared, err := p.prepareDocuments(tokenized)
	if err != nil {
		return nil, err
	}
	p.checkPreprocessing(m)
	x, err := features.BuildDocuments(ctx, prepared, m.Vocabulary(), p.featureOptions(m))
	if err != nil {
		return nil, err
	}
	if zero := lo.CountBy(x.Rows(), func(r features.Row) bool { return r.IsZero() }); zero > 0 {
		p.log.Info("Rows share no term with the model vocabulary", "rows", zero)
	}
	return model.Predictor{Workers: p.cfg.Workers, Logger: p.log}.Predict(ctx, m, x)
}

// prepareDocuments runs Prepare over the tokens of docs, keeping empty
// documents in place. Lemmatization maps tokens one to one.
func (p *Pipeline) prepareDocuments(docs []corpus.DocTokens) ([]corpus.DocTokens, error) {
	prepared, err := p.Prepare(corpus.Flatten(docs))
	if err != nil {
		return nil, err
	}
	out := make([]corpus.DocTokens, len(docs))
	next := 0
	for i, d := range docs {
		terms := make([]string, len(d.Terms))
		for j := range terms {
			terms[j] = prepared[next].Term
			next++
		}
		out[i] = corpus.DocTokens{ID: d.ID, Label: d.Label, Terms: terms}
	}
	return out, nil
}

// featureOptions rebuilds m's feature space with this pipeline's workers.
func (p *Pipeline) featureOptions(m *model.Model) features.Options {
	opts := m.FeatureOptions()
	opts.Workers = p.cfg.Workers
	opts.Logger = p.log
	return opts
}

// PredictDocuments is Predict followed by per-document aggregation.
func (p *Pipeline) PredictDocuments(ctx context.Context, m *model.Model, records []corpus.Record) ([]model.Prediction, error) {
	preds, err := p.Predict(ctx, m, records)
	if err != nil {
		return nil, err
	}
	return model.Aggregate(preds), nil
}

// LoadModel resolves a model from the store.
func (p *Pipeline) LoadModel(ctx context.Context, id string) (*model.Model, error) {
	if p.store == nil {
		return nil, fmt.Errorf("%w: no model store configured", internalerr.ErrStoreUnavailable)
	}
	return p.store.LoadModel(ctx, id)
}
