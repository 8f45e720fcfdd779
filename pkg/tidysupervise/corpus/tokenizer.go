package corpus

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/internalerr"
)

// Tokenizer handles text tokenization and normalization
type Tokenizer struct {
	stopwords   map[string]struct{}
	stripMarkup bool
}

// NewTokenizer creates a new tokenizer with the given stopword list
func NewTokenizer(stopwords []string) *Tokenizer {
	stops := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		stops[strings.ToLower(w)] = struct{}{}
	}
	return &Tokenizer{stopwords: stops}
}

// SetStripMarkup makes Tokenize drop HTML tags before splitting.
func (t *Tokenizer) SetStripMarkup(on bool) {
	t.stripMarkup = on
}

// Tokenize splits text into normalized tokens, removing stopwords.
func (t *Tokenizer) Tokenize(text string) []string {
	if t.stripMarkup {
		text = StripMarkup(text)
	}

	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		if word := t.processToken(current.String()); word != "" {
			tokens = append(tokens, word)
		}
		current.Reset()
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '-' {
			current.WriteRune(unicode.ToLower(r))
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

// Records tokenizes every document into an ordered token stream.
// Documents producing no token contribute no record; use Documents to keep
// them.
func (t *Tokenizer) Records(docs []Document) []Record {
	var out []Record
	for _, d := range docs {
		for _, tok := range t.Tokenize(d.Text) {
			out = append(out, Record{DocumentID: d.ID, Term: tok, Label: d.Label})
		}
	}
	return out
}

// Documents tokenizes every document, keeping those that produce no token.
// Documents sharing an id are merged in input order, as GroupByDocument
// merges records.
func (t *Tokenizer) Documents(docs []Document) ([]DocTokens, error) {
	index := make(map[string]int, len(docs))
	var out []DocTokens
	for _, d := range docs {
		i, ok := index[d.ID]
		if !ok {
			i = len(out)
			index[d.ID] = i
			out = append(out, DocTokens{ID: d.ID, Terms: []string{}})
		}
		if d.Label != "" {
			if out[i].Label != "" && out[i].Label != d.Label {
				return nil, fmt.Errorf("%w: document %q has labels %q and %q",
					internalerr.ErrInvalidInput, d.ID, out[i].Label, d.Label)
			}
			out[i].Label = d.Label
		}
		out[i].Terms = append(out[i].Terms, t.Tokenize(d.Text)...)
	}
	return out, nil
}

// processToken applies cleaning and stopword filtering.
func (t *Tokenizer) processToken(token string) string {
	word := strings.Trim(token, "-")
	for strings.Contains(word, "--") {
		word = strings.ReplaceAll(word, "--", "-")
	}
	if len([]rune(word)) <= 1 {
		return ""
	}

	// Pure-numeric tokens carry no topical signal; "covid-19" is kept.
	if isNumericOnly(word) {
		return ""
	}

	if t.isStopword(word) {
		return ""
	}
	return word
}

// isNumericOnly returns true if the token contains only digits and hyphens.
func isNumericOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '-' {
			return false
		}
	}
	return true
}

func (t *Tokenizer) isStopword(word string) bool {
	_, ok := t.stopwords[word]
	return ok
}

// AddStopword adds a word to the stopword list
func (t *Tokenizer) AddStopword(word string) {
	t.stopwords[strings.ToLower(word)] = struct{}{}
}
