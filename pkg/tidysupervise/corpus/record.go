package corpus

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/internalerr"
)

// Record is one token of one document as produced by the ingestion boundary.
// Records are never modified after ingestion; stages derive new values.
type Record struct {
	DocumentID string `validate:"required"`

	// SegmentID is 0 for unsegmented input. Non-zero ids are honoured only
	// when no segment size is configured.
	SegmentID int    `validate:"min=0"`
	Term      string `validate:"required"`
	Label     string // empty when unlabelled
}

var validate = validator.New()

// Validate checks the record's required fields.
func (r Record) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", internalerr.ErrInvalidInput, err)
	}
	return nil
}

// ValidateAll validates a token stream and reports the first bad position.
func ValidateAll(records []Record) error {
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

// DocTokens is a document's ordered token sequence.
type DocTokens struct {
	ID    string
	Label string
	Terms []string
}

// GroupByDocument gathers records per document, keeping documents in
// first-seen order and terms in stream order. A document whose records carry
// two different non-empty labels is rejected.
func GroupByDocument(records []Record) ([]DocTokens, error) {
	index := make(map[string]int)
	var docs []DocTokens

	for _, r := range records {
		i, ok := index[r.DocumentID]
		if !ok {
			i = len(docs)
			index[r.DocumentID] = i
			docs = append(docs, DocTokens{ID: r.DocumentID})
		}
		d := &docs[i]
		if r.Label != "" {
			if d.Label != "" && d.Label != r.Label {
				return nil, fmt.Errorf("%w: document %q has labels %q and %q",
					internalerr.ErrInvalidInput, r.DocumentID, d.Label, r.Label)
			}
			d.Label = r.Label
		}
		d.Terms = append(d.Terms, r.Term)
	}

	return docs, nil
}

// Labels returns the distinct non-empty labels of a token stream, sorted.
func Labels(records []Record) []string {
	labels := lo.Uniq(lo.FilterMap(records, func(r Record, _ int) (string, bool) {
		return r.Label, r.Label != ""
	}))
	sort.Strings(labels)
	return labels
}

// Flatten turns per-document token sequences back into a token stream.
func Flatten(docs []DocTokens) []Record {
	var out []Record
	for _, d := range docs {
		for _, t := range d.Terms {
			out = append(out, Record{DocumentID: d.ID, Term: t, Label: d.Label})
		}
	}
	return out
}
