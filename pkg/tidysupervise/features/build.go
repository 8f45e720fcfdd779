package features

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"

	"github.com/Numapresse/tidysupervise/internal/worker"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/corpus"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/internalerr"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/vocab"
)

// Options controls feature matrix construction.
type Options struct {
	SegmentSize int  // tokens per segment; 0 = one segment per document
	DropPartial bool // drop the trailing partial segment of long documents
	Training    bool // attach labels; every document must then carry one

	// IDF, when set, replaces the IDF computed over this call's segments.
	// Models pass their training-time IDF here so that a matrix built from
	// new text lives in the same feature space.
	IDF []float64

	Workers int // 0 = GOMAXPROCS
	Logger  *slog.Logger
}

// IDF is the add-one smoothed inverse document frequency of a term found in
// df of n segments: ln((1+n)/(1+df)) + 1.
func IDF(n, df int) float64 {
	return math.Log(float64(1+n)/float64(1+df)) + 1
}

// counted is a segment reduced to vocabulary column counts.
type counted struct {
	indices []int
	counts  []int
	total   int
}

// Build converts a token stream into a tf-idf weighted, L2-normalized matrix
// whose columns are exactly the vocabulary's terms. Tokens outside the
// vocabulary are dropped. A segment sharing no term with the vocabulary stays
// a zero row. Cancellation is checked between segments and discards all work.
//
// With SegmentSize 0, segment ids carried by the records are honoured: rows
// follow the (document, segment) pairs of the stream in first-seen order,
// id 0 counting as segment 1.
func Build(ctx context.Context, records []corpus.Record, v *vocab.Vocabulary, opts Options) (*Matrix, error) {
	if err := checkOptions(v, opts); err != nil {
		return nil, err
	}
	docs, err := corpus.GroupByDocument(records)
	if err != nil {
		return nil, err
	}
	if opts.SegmentSize == 0 && lo.SomeBy(records, func(r corpus.Record) bool { return r.SegmentID > 0 }) {
		return build(ctx, docs, presegmented(records, docs), v, opts)
	}
	return BuildDocuments(ctx, docs, v, opts)
}

// BuildDocuments is Build over documents already grouped into token
// sequences. A document without any token still yields one zero row.
func BuildDocuments(ctx context.Context, docs []corpus.DocTokens, v *vocab.Vocabulary, opts Options) (*Matrix, error) {
	if err := checkOptions(v, opts); err != nil {
		return nil, err
	}
	for _, d := range docs {
		if d.ID == "" {
			return nil, fmt.Errorf("%w: document without id", internalerr.ErrInvalidInput)
		}
	}
	return build(ctx, docs, SegmentDocuments(docs, opts.SegmentSize, opts.DropPartial), v, opts)
}

func checkOptions(v *vocab.Vocabulary, opts Options) error {
	if v == nil || v.Len() == 0 {
		return internalerr.ErrEmptyVocabulary
	}
	if opts.SegmentSize < 0 {
		return fmt.Errorf("%w: segment_size must be >= 0, got %d", internalerr.ErrInvalidConfig, opts.SegmentSize)
	}
	if opts.IDF != nil && len(opts.IDF) != v.Len() {
		return fmt.Errorf("%w: %d idf weights for %d vocabulary terms",
			internalerr.ErrIncompatibleFeatureSpace, len(opts.IDF), v.Len())
	}
	return nil
}

func build(ctx context.Context, docs []corpus.DocTokens, segments []Segment, v *vocab.Vocabulary, opts Options) (*Matrix, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: token stream has no document", internalerr.ErrEmptyFeatureMatrix)
	}
	if opts.Training {
		for _, d := range docs {
			if d.Label == "" {
				return nil, fmt.Errorf("%w: document %q has no label", internalerr.ErrInvalidInput, d.ID)
			}
		}
	}
	log.Debug("Segmented documents", "documents", len(docs), "segments", len(segments), "segment_size", opts.SegmentSize)

	counts, err := worker.Map(ctx, len(segments), opts.Workers, func(ctx context.Context, i int) (counted, error) {
		return count(segments[i].Terms, v), nil
	})
	if err != nil {
		return nil, fmt.Errorf("count segments: %w", err)
	}

	idf := opts.IDF
	if idf == nil {
		df := make([]int, v.Len())
		for _, c := range counts {
			for _, j := range c.indices {
				df[j]++
			}
		}
		idf = make([]float64, v.Len())
		for j := range idf {
			idf[j] = IDF(len(segments), df[j])
		}
	} else {
		idf = append([]float64(nil), idf...)
	}

	rows, err := worker.Map(ctx, len(segments), opts.Workers, func(ctx context.Context, i int) (Row, error) {
		seg := segments[i]
		row := Row{
			DocumentID: seg.DocumentID,
			SegmentID:  seg.SegmentID,
			Tokens:     counts[i].total,
			Indices:    counts[i].indices,
			Values:     weigh(counts[i], idf),
		}
		if opts.Training {
			row.Label = seg.Label
		}
		return row, nil
	})
	if err != nil {
		return nil, fmt.Errorf("weigh segments: %w", err)
	}

	log.Debug("Built feature matrix", "rows", len(rows), "columns", v.Len(), "training", opts.Training)
	return &Matrix{
		vocab:       v,
		idf:         idf,
		rows:        rows,
		training:    opts.Training,
		segmentSize: opts.SegmentSize,
		dropPartial: opts.DropPartial,
	}, nil
}

// count reduces a segment to sorted vocabulary column counts.
func count(terms []string, v *vocab.Vocabulary) counted {
	byCol := make(map[int]int)
	for _, t := range terms {
		if j, ok := v.Index(t); ok {
			byCol[j]++
		}
	}

	c := counted{
		indices: make([]int, 0, len(byCol)),
		counts:  make([]int, 0, len(byCol)),
		total:   len(terms),
	}
	for j := range byCol {
		c.indices = append(c.indices, j)
	}
	sort.Ints(c.indices)
	for _, j := range c.indices {
		c.counts = append(c.counts, byCol[j])
	}
	return c
}

// weigh computes tf-idf for a counted segment and scales it to unit length.
func weigh(c counted, idf []float64) []float64 {
	values := make([]float64, len(c.indices))
	if c.total == 0 {
		return values
	}
	for k, j := range c.indices {
		tf := float64(c.counts[k]) / float64(c.total)
		values[k] = tf * idf[j]
	}
	if norm := floats.Norm(values, 2); norm > 0 {
		floats.Scale(1/norm, values)
	}
	return values
}
