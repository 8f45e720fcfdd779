package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/internalerr"
)

// Config is the full configuration surface consumed by the pipeline.
type Config struct {
	// Vocabulary selection
	MinDocCount int `yaml:"min_doc_count" mapstructure:"min_doc_count" validate:"min=1"`
	MaxWordSet  int `yaml:"max_word_set" mapstructure:"max_word_set" validate:"min=0"`

	// Feature matrix
	SegmentSize int  `yaml:"segment_size" mapstructure:"segment_size" validate:"min=0"`
	DropPartial bool `yaml:"drop_partial" mapstructure:"drop_partial"`
	Training    bool `yaml:"training" mapstructure:"training"`

	// Evaluation
	PropTrain float64 `yaml:"prop_train" mapstructure:"prop_train" validate:"gt=0,lt=100"`
	Seed      uint64  `yaml:"seed" mapstructure:"seed"`

	// Classifier
	Strategy     string  `yaml:"strategy" mapstructure:"strategy" validate:"oneof=softmax svm"`
	Epochs       int     `yaml:"epochs" mapstructure:"epochs" validate:"min=1"`
	LearningRate float64 `yaml:"learning_rate" mapstructure:"learning_rate" validate:"gt=0"`
	Lambda       float64 `yaml:"lambda" mapstructure:"lambda" validate:"gte=0"`

	// Ingestion boundary
	Lemmatization string   `yaml:"lemmatization" mapstructure:"lemmatization" validate:"oneof=off auto en fr de es it pt"`
	LemmaDicts    []string `yaml:"lemma_dicts" mapstructure:"lemma_dicts"`
	StoplistPath  string   `yaml:"stoplist" mapstructure:"stoplist"`
	StripMarkup   bool     `yaml:"strip_markup" mapstructure:"strip_markup"`

	// 0 means GOMAXPROCS
	Workers int `yaml:"workers" mapstructure:"workers" validate:"min=0"`
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		MinDocCount:   2,
		MaxWordSet:    3000,
		SegmentSize:   0,
		PropTrain:     80,
		Seed:          1,
		Strategy:      "softmax",
		Epochs:        200,
		LearningRate:  0.5,
		Lambda:        1e-4,
		Lemmatization: "off",
	}
}

var validate = validator.New()

// Validate checks every field against its allowed range.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	return nil
}

// Load reads a YAML config file on top of Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Stoplist represents the stopword list configuration
type Stoplist struct {
	Terms []string `yaml:"terms"`
}

// LoadStoplist loads stopwords from a YAML file
func LoadStoplist(path string) (*Stoplist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sl Stoplist
	if err := yaml.Unmarshal(data, &sl); err != nil {
		return nil, err
	}

	return &sl, nil
}
