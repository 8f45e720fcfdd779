package vocab

import (
	"fmt"
	"sort"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/corpus"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/internalerr"
)

// Options controls vocabulary selection.
type Options struct {
	MinDocCount int // minimum number of distinct documents containing a term
	MaxWordSet  int // cap on vocabulary size; 0 = unbounded
}

// DefaultOptions returns min_doc_count=2, max_word_set=3000.
func DefaultOptions() Options {
	return Options{MinDocCount: 2, MaxWordSet: 3000}
}

// Validate rejects out-of-range options.
func (o Options) Validate() error {
	if o.MinDocCount < 1 {
		return fmt.Errorf("%w: min_doc_count must be >= 1, got %d", internalerr.ErrInvalidConfig, o.MinDocCount)
	}
	if o.MaxWordSet < 0 {
		return fmt.Errorf("%w: max_word_set must be >= 0, got %d", internalerr.ErrInvalidConfig, o.MaxWordSet)
	}
	return nil
}

// Vocabulary is the frozen, ordered term set used as feature columns.
// It is never modified after construction.
type Vocabulary struct {
	terms     []string
	docCounts []int
	index     map[string]int
	numDocs   int
}

// Build selects the working term set from a token stream. Terms are ranked by
// document count descending, ties broken by term ascending, so identical
// input always yields the identical vocabulary.
func Build(records []corpus.Record, opts Options) (*Vocabulary, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	docFreq := make(map[string]int)
	seen := make(map[string]map[string]struct{})
	for _, r := range records {
		docTerms, ok := seen[r.DocumentID]
		if !ok {
			docTerms = make(map[string]struct{})
			seen[r.DocumentID] = docTerms
		}
		if _, dup := docTerms[r.Term]; dup {
			continue
		}
		docTerms[r.Term] = struct{}{}
		docFreq[r.Term]++
	}

	type entry struct {
		term string
		df   int
	}
	kept := make([]entry, 0, len(docFreq))
	for term, df := range docFreq {
		if df >= opts.MinDocCount {
			kept = append(kept, entry{term: term, df: df})
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: no term appears in at least %d documents (%d documents, %d distinct terms)",
			internalerr.ErrEmptyVocabulary, opts.MinDocCount, len(seen), len(docFreq))
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].df != kept[j].df {
			return kept[i].df > kept[j].df
		}
		return kept[i].term < kept[j].term
	})
	if opts.MaxWordSet > 0 && len(kept) > opts.MaxWordSet {
		kept = kept[:opts.MaxWordSet]
	}

	terms := make([]string, len(kept))
	counts := make([]int, len(kept))
	for i, e := range kept {
		terms[i] = e.term
		counts[i] = e.df
	}
	return New(terms, counts, len(seen))
}

// New reconstructs a vocabulary from an ordered term list, e.g. when a model
// artifact is imported. Terms must be unique and non-empty.
func New(terms []string, docCounts []int, numDocs int) (*Vocabulary, error) {
	if len(terms) == 0 {
		return nil, internalerr.ErrEmptyVocabulary
	}
	if docCounts == nil {
		docCounts = make([]int, len(terms))
	}
	if len(docCounts) != len(terms) {
		return nil, fmt.Errorf("%w: %d terms but %d document counts",
			internalerr.ErrInvalidInput, len(terms), len(docCounts))
	}

	v := &Vocabulary{
		terms:     append([]string(nil), terms...),
		docCounts: append([]int(nil), docCounts...),
		index:     make(map[string]int, len(terms)),
		numDocs:   numDocs,
	}
	for i, t := range v.terms {
		if t == "" {
			return nil, fmt.Errorf("%w: empty term at column %d", internalerr.ErrInvalidInput, i)
		}
		if _, dup := v.index[t]; dup {
			return nil, fmt.Errorf("%w: duplicate term %q", internalerr.ErrInvalidInput, t)
		}
		v.index[t] = i
	}
	return v, nil
}

// Len returns the number of terms (feature columns).
func (v *Vocabulary) Len() int { return len(v.terms) }

// Terms returns the ordered term list.
func (v *Vocabulary) Terms() []string {
	return append([]string(nil), v.terms...)
}

// Term returns the term of column i.
func (v *Vocabulary) Term(i int) string { return v.terms[i] }

// Index returns the column of a term.
func (v *Vocabulary) Index(term string) (int, bool) {
	i, ok := v.index[term]
	return i, ok
}

// Contains reports whether a term is part of the vocabulary.
func (v *Vocabulary) Contains(term string) bool {
	_, ok := v.index[term]
	return ok
}

// DocCount returns the number of training documents containing a term.
func (v *Vocabulary) DocCount(term string) int {
	if i, ok := v.index[term]; ok {
		return v.docCounts[i]
	}
	return 0
}

// DocCounts returns document counts in column order.
func (v *Vocabulary) DocCounts() []int {
	return append([]int(nil), v.docCounts...)
}

// NumDocs returns the number of documents the vocabulary was built from.
func (v *Vocabulary) NumDocs() int { return v.numDocs }

// Equal reports whether two vocabularies have the same terms in the same order.
func (v *Vocabulary) Equal(o *Vocabulary) bool {
	if v == nil || o == nil {
		return v == o
	}
	if len(v.terms) != len(o.terms) {
		return false
	}
	for i := range v.terms {
		if v.terms[i] != o.terms[i] {
			return false
		}
	}
	return true
}
