package config

import (
	"fmt"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/corpus"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/lexicon"
)

// Loader loads the ingestion-boundary files named by a Config and constructs
// the collaborators that turn raw text into a token stream.
type Loader struct {
	StoplistPath string
	LemmaPaths   []string
	StripMarkup  bool
}

// NewLoader builds a Loader from a Config.
func NewLoader(cfg Config) Loader {
	return Loader{
		StoplistPath: cfg.StoplistPath,
		LemmaPaths:   cfg.LemmaDicts,
		StripMarkup:  cfg.StripMarkup,
	}
}

// Components holds all loaded configuration components
type Components struct {
	Tokenizer  *corpus.Tokenizer
	Lemmatizer *lexicon.Dictionary
}

// Load reads all configuration files and returns initialized components
func (l *Loader) Load() (*Components, error) {
	comp := &Components{}

	if l.StoplistPath != "" {
		stoplist, err := LoadStoplist(l.StoplistPath)
		if err != nil {
			return nil, fmt.Errorf("load stoplist: %w", err)
		}
		comp.Tokenizer = corpus.NewTokenizer(stoplist.Terms)
	} else {
		comp.Tokenizer = corpus.NewTokenizer([]string{})
	}
	comp.Tokenizer.SetStripMarkup(l.StripMarkup)

	comp.Lemmatizer = lexicon.New()
	for _, path := range l.LemmaPaths {
		if err := comp.Lemmatizer.LoadFromYAML(path); err != nil {
			return nil, fmt.Errorf("load lemmas: %w", err)
		}
	}

	return comp, nil
}
