package lexicon

import (
	"fmt"
	"os"
	"strings"

	"github.com/abadojack/whatlanggo"
	"gopkg.in/yaml.v3"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/corpus"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/internalerr"
)

// Language is an ISO 639-1 code from the supported set.
type Language string

// Supported lemmatization languages.
const (
	English    Language = "en"
	French     Language = "fr"
	German     Language = "de"
	Spanish    Language = "es"
	Italian    Language = "it"
	Portuguese Language = "pt"
)

// Modes besides a fixed language.
const (
	ModeOff  = "off"
	ModeAuto = "auto"
)

// Languages lists the supported languages.
var Languages = []Language{English, French, German, Spanish, Italian, Portuguese}

// Supported reports whether lang belongs to the supported set.
func Supported(lang Language) bool {
	for _, l := range Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// ValidateMode accepts "off", "auto" or a supported language code.
func ValidateMode(mode string) error {
	if mode == ModeOff || mode == ModeAuto || Supported(Language(mode)) {
		return nil
	}
	return fmt.Errorf("%w: lemmatization %q", internalerr.ErrInvalidConfig, mode)
}

// Lemmatizer is the external dictionary service keyed by (language, raw token).
type Lemmatizer interface {
	Lemma(lang Language, token string) (string, bool)
}

// Dictionary is an in-memory Lemmatizer fed from YAML lemma tables.
type Dictionary struct {
	// language -> raw token -> lemma
	lemmas map[Language]map[string]string
}

// New creates an empty dictionary.
func New() *Dictionary {
	return &Dictionary{lemmas: make(map[Language]map[string]string)}
}

// Add records one (language, raw) -> lemma entry. Keys are lowercased.
func (d *Dictionary) Add(lang Language, raw, lemma string) {
	table, ok := d.lemmas[lang]
	if !ok {
		table = make(map[string]string)
		d.lemmas[lang] = table
	}
	table[strings.ToLower(raw)] = strings.ToLower(lemma)
}

// Lemma implements Lemmatizer.
func (d *Dictionary) Lemma(lang Language, token string) (string, bool) {
	lemma, ok := d.lemmas[lang][strings.ToLower(token)]
	return lemma, ok
}

// Size returns the number of entries for a language.
func (d *Dictionary) Size(lang Language) int {
	return len(d.lemmas[lang])
}

// LoadFromYAML merges a lemma table file into the dictionary.
//
// Expected format:
//
//	language: fr
//	lemmas:
//	  chevaux: cheval
//	  étaient: être
func (d *Dictionary) LoadFromYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var table struct {
		Language string            `yaml:"language"`
		Lemmas   map[string]string `yaml:"lemmas"`
	}
	if err := yaml.Unmarshal(data, &table); err != nil {
		return fmt.Errorf("parse lemma table %s: %w", path, err)
	}

	lang := Language(strings.ToLower(table.Language))
	if !Supported(lang) {
		return fmt.Errorf("%w: lemma table %s has unsupported language %q",
			internalerr.ErrInvalidConfig, path, table.Language)
	}
	for raw, lemma := range table.Lemmas {
		d.Add(lang, raw, lemma)
	}
	return nil
}

// Apply substitutes lemmas into a token stream before vocabulary building.
// In auto mode the language is detected per document; documents in an
// unsupported language keep their raw tokens. The input is not modified.
func Apply(records []corpus.Record, mode string, lem Lemmatizer) ([]corpus.Record, error) {
	if err := ValidateMode(mode); err != nil {
		return nil, err
	}
	out := make([]corpus.Record, len(records))
	copy(out, records)
	if mode == ModeOff || lem == nil {
		return out, nil
	}

	langs := make(map[string]Language)
	if mode == ModeAuto {
		docs, err := corpus.GroupByDocument(records)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			langs[doc.ID] = Detect(strings.Join(doc.Terms, " "))
		}
	}

	for i := range out {
		lang := Language(mode)
		if mode == ModeAuto {
			lang = langs[out[i].DocumentID]
			if lang == "" {
				continue
			}
		}
		if lemma, ok := lem.Lemma(lang, out[i].Term); ok && lemma != "" {
			out[i].Term = lemma
		}
	}
	return out, nil
}

// Detect returns the supported language of a text, or "" when the detected
// language is outside the supported set.
func Detect(text string) Language {
	info := whatlanggo.Detect(text)
	lang := Language(info.Lang.Iso6391())
	if !Supported(lang) {
		return ""
	}
	return lang
}
