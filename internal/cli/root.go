// Package cli implements the tidysupervise command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/config"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/corpus"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/model"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "v0.3.0"

// EnvPrefix prefixes every environment override, e.g. TIDYSUPERVISE_SEGMENT_SIZE.
const EnvPrefix = "TIDYSUPERVISE"

// app holds the state shared by one command tree.
type app struct {
	v       *viper.Viper
	cfgFile string
	verbose bool
	dsn     string
	log     *slog.Logger
}

// Execute runs the command line with os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds a fresh command tree with its own configuration.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "tidysupervise",
		Short: "Supervised text classification over weighted lexical features",
		Long: `tidysupervise trains a multi-class classifier over tf-idf weighted terms
from a labelled corpus and applies it to new documents.

Corpora are CSV or TSV files with a header naming the columns document, text
and label (label may be empty for documents awaiting annotation).`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: ./tidysupervise.yaml or $HOME/.tidysupervise/config.yaml)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&a.dsn, "store", "", "model store: sqlite://PATH, badger://DIR or memory://")

	def := config.Default()
	flags.Int("min-doc-count", def.MinDocCount, "minimum documents a term must appear in")
	flags.Int("max-word-set", def.MaxWordSet, "vocabulary size cap (0 = unbounded)")
	flags.Int("segment-size", def.SegmentSize, "tokens per segment (0 = whole documents)")
	flags.Bool("drop-partial", def.DropPartial, "drop the trailing partial segment of long documents")
	flags.Float64("prop-train", def.PropTrain, "training share for evaluation, in percent")
	flags.Uint64("seed", def.Seed, "seed for the train/test split and the svm row order")
	flags.String("strategy", def.Strategy, "classifier strategy: softmax or svm")
	flags.String("lemmatization", def.Lemmatization, "off, auto or a language: en fr de es it pt")
	flags.Int("workers", def.Workers, "parallel workers (0 = all CPUs)")

	for _, key := range []string{
		"min_doc_count", "max_word_set", "segment_size", "drop_partial",
		"prop_train", "seed", "strategy", "lemmatization", "workers",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(strings.ReplaceAll(key, "_", "-")))
	}
	_ = a.v.BindPFlag("verbose", flags.Lookup("verbose"))

	root.AddCommand(
		a.versionCommand(),
		a.configCommand(),
		a.trainCommand(),
		a.evaluateCommand(),
		a.predictCommand(),
		a.inspectCommand(),
		a.vocabCommand(),
		a.featuresCommand(),
		a.modelsCommand(),
	)
	return root
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tidysupervise %s\n", Version)
		},
	}
}

// setup reads .env, the config file and the environment, then sets up logging.
func (a *app) setup(stderr io.Writer) error {
	_ = godotenv.Load()

	setDefaults(a.v, config.Default())
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.SetConfigName("tidysupervise")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(filepath.Join(home, ".tidysupervise"))
		}
	}
	a.v.SetEnvPrefix(EnvPrefix)
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	level := slog.LevelWarn
	if a.v.GetBool("verbose") {
		level = slog.LevelDebug
	}
	a.log = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	if used := a.v.ConfigFileUsed(); used != "" {
		a.log.Info("Using config file", "path", used)
	}
	return nil
}

// setDefaults registers every config key so env and files can override it.
func setDefaults(v *viper.Viper, def config.Config) {
	v.SetDefault("min_doc_count", def.MinDocCount)
	v.SetDefault("max_word_set", def.MaxWordSet)
	v.SetDefault("segment_size", def.SegmentSize)
	v.SetDefault("drop_partial", def.DropPartial)
	v.SetDefault("training", def.Training)
	v.SetDefault("prop_train", def.PropTrain)
	v.SetDefault("seed", def.Seed)
	v.SetDefault("strategy", def.Strategy)
	v.SetDefault("epochs", def.Epochs)
	v.SetDefault("learning_rate", def.LearningRate)
	v.SetDefault("lambda", def.Lambda)
	v.SetDefault("lemmatization", def.Lemmatization)
	v.SetDefault("lemma_dicts", def.LemmaDicts)
	v.SetDefault("stoplist", def.StoplistPath)
	v.SetDefault("strip_markup", def.StripMarkup)
	v.SetDefault("workers", def.Workers)
}

// config resolves flags > env > file > defaults into a validated Config.
func (a *app) config() (config.Config, error) {
	cfg := config.Default()
	if err := a.v.Unmarshal(&cfg); err != nil {
		return config.Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// pipeline builds a Pipeline from the resolved config and --store.
func (a *app) pipeline(ctx context.Context) (*tidysupervise.Pipeline, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	st, err := openStore(ctx, a.dsn, a.log)
	if err != nil {
		return nil, err
	}
	p, err := tidysupervise.NewFromConfig(cfg, st, a.log)
	if err != nil {
		if st != nil {
			_ = st.Close()
		}
		return nil, err
	}
	return p, nil
}

// records loads a corpus file and tokenizes it.
func records(p *tidysupervise.Pipeline, path string) ([]corpus.Record, error) {
	if path == "" {
		return nil, errors.New("--input is required")
	}
	docs, err := corpus.LoadDocuments(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return p.Records(docs), nil
}

// loadModel resolves --model (artifact file) or --model-id (store).
func loadModel(ctx context.Context, p *tidysupervise.Pipeline, path, id string) (*model.Model, error) {
	switch {
	case path != "":
		return model.LoadFile(path)
	case id != "":
		return p.LoadModel(ctx, id)
	}
	return nil, errors.New("one of --model or --model-id is required")
}
