package features

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/internalerr"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/vocab"
)

// Row is one (document, segment) of a feature matrix. Weights are stored
// sparsely: Indices are ascending column positions, Values their weights.
// Every column absent from Indices has weight zero.
type Row struct {
	DocumentID string
	SegmentID  int
	Label      string // empty unless the matrix was built for training
	Tokens     int    // segment token total, vocabulary or not
	Indices    []int
	Values     []float64
}

// Dense expands the row to n columns.
func (r Row) Dense(n int) []float64 {
	out := make([]float64, n)
	for k, j := range r.Indices {
		out[j] = r.Values[k]
	}
	return out
}

// At returns the weight of column j.
func (r Row) At(j int) float64 {
	k := sort.SearchInts(r.Indices, j)
	if k < len(r.Indices) && r.Indices[k] == j {
		return r.Values[k]
	}
	return 0
}

// Norm returns the L2 norm of the row.
func (r Row) Norm() float64 {
	if len(r.Values) == 0 {
		return 0
	}
	return floats.Norm(r.Values, 2)
}

// IsZero reports whether the row shares no term with the vocabulary.
func (r Row) IsZero() bool {
	for _, v := range r.Values {
		if v != 0 {
			return false
		}
	}
	return true
}

// Dot returns the inner product of the row with a dense vector.
func (r Row) Dot(w []float64) float64 {
	var s float64
	for k, j := range r.Indices {
		s += r.Values[k] * w[j]
	}
	return s
}

// Matrix is a weighted, normalized document-term matrix. Its columns are
// exactly the vocabulary's terms in vocabulary order. A Matrix is read-only
// once built.
type Matrix struct {
	vocab       *vocab.Vocabulary
	idf         []float64
	rows        []Row
	training    bool
	segmentSize int
	dropPartial bool
}

// NewMatrix assembles a matrix from prepared rows and takes ownership of
// them. Row indices must be ascending and within the vocabulary.
func NewMatrix(v *vocab.Vocabulary, idf []float64, rows []Row, training bool) (*Matrix, error) {
	if v == nil {
		return nil, internalerr.ErrEmptyVocabulary
	}
	if idf != nil && len(idf) != v.Len() {
		return nil, fmt.Errorf("%w: %d idf weights for %d columns",
			internalerr.ErrIncompatibleFeatureSpace, len(idf), v.Len())
	}
	for i, r := range rows {
		if len(r.Indices) != len(r.Values) {
			return nil, fmt.Errorf("%w: row %d has %d indices and %d values",
				internalerr.ErrInvalidInput, i, len(r.Indices), len(r.Values))
		}
		for k, j := range r.Indices {
			if j < 0 || j >= v.Len() || (k > 0 && r.Indices[k-1] >= j) {
				return nil, fmt.Errorf("%w: row %d has bad column index %d",
					internalerr.ErrIncompatibleFeatureSpace, i, j)
			}
		}
		if training && r.Label == "" {
			return nil, fmt.Errorf("%w: training row %d (%s/%d) has no label",
				internalerr.ErrInvalidInput, i, r.DocumentID, r.SegmentID)
		}
	}
	if !training {
		for i := range rows {
			rows[i].Label = ""
		}
	}
	return &Matrix{vocab: v, idf: idf, rows: rows, training: training}, nil
}

// Vocabulary returns the vocabulary defining the columns.
func (m *Matrix) Vocabulary() *vocab.Vocabulary { return m.vocab }

// Columns returns the column terms in order.
func (m *Matrix) Columns() []string { return m.vocab.Terms() }

// NumColumns returns the number of columns.
func (m *Matrix) NumColumns() int { return m.vocab.Len() }

// IDF returns the inverse document frequency applied to each column.
func (m *Matrix) IDF() []float64 { return append([]float64(nil), m.idf...) }

// Len returns the number of rows.
func (m *Matrix) Len() int { return len(m.rows) }

// Row returns row i. The returned slices must not be modified.
func (m *Matrix) Row(i int) Row { return m.rows[i] }

// Rows returns all rows. The returned slice must not be modified.
func (m *Matrix) Rows() []Row { return m.rows }

// At returns the weight of column j in row i.
func (m *Matrix) At(i, j int) float64 { return m.rows[i].At(j) }

// Segmentation returns the segment size and partial-segment policy the rows
// were cut with.
func (m *Matrix) Segmentation() (size int, dropPartial bool) {
	return m.segmentSize, m.dropPartial
}

// Training reports whether the matrix carries a label column.
func (m *Matrix) Training() bool { return m.training }

// Labels returns row labels in row order (nil when not built for training).
func (m *Matrix) Labels() []string {
	if !m.training {
		return nil
	}
	out := make([]string, len(m.rows))
	for i, r := range m.rows {
		out[i] = r.Label
	}
	return out
}

// Subset returns a matrix over the given rows sharing this matrix's feature
// space.
func (m *Matrix) Subset(idx []int) *Matrix {
	rows := make([]Row, len(idx))
	for k, i := range idx {
		rows[k] = m.rows[i]
	}
	return &Matrix{
		vocab:       m.vocab,
		idf:         m.idf,
		rows:        rows,
		training:    m.training,
		segmentSize: m.segmentSize,
		dropPartial: m.dropPartial,
	}
}

// WriteCSV writes the dense matrix with document, segment and (for training
// matrices) label columns ahead of the vocabulary columns.
func (m *Matrix) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{"document", "segment"}
	if m.training {
		header = append(header, "label")
	}
	header = append(header, m.vocab.Terms()...)
	if err := cw.Write(header); err != nil {
		return err
	}

	n := m.vocab.Len()
	for _, r := range m.rows {
		rec := []string{r.DocumentID, strconv.Itoa(r.SegmentID)}
		if m.training {
			rec = append(rec, r.Label)
		}
		for _, v := range r.Dense(n) {
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
