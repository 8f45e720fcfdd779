package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/internalerr"
)

// Document is one row of a persisted corpus: columns document, text, label.
// Label may be empty pending manual annotation.
type Document struct {
	ID    string
	Text  string
	Label string
}

// Column names of the persisted corpus format.
const (
	ColumnDocument = "document"
	ColumnText     = "text"
	ColumnLabel    = "label"
)

// Delimiter picks the field separator for a corpus file. The extension wins;
// otherwise the content is sniffed.
func Delimiter(path string) (rune, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".tab":
		return '\t', nil
	case ".csv":
		return ',', nil
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return 0, err
	}
	if mtype.Is("text/tab-separated-values") {
		return '\t', nil
	}
	return ',', nil
}

// LoadDocuments reads a CSV or TSV corpus file.
func LoadDocuments(path string) ([]Document, error) {
	delim, err := Delimiter(path)
	if err != nil {
		return nil, fmt.Errorf("detect delimiter: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	docs, err := ReadDocuments(f, delim)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return docs, nil
}

// ReadDocuments parses a delimited corpus with a header row. The document and
// text columns are required, label is optional; column order is free.
func ReadDocuments(r io.Reader, delim rune) ([]Document, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	if delim == '\t' {
		cr.LazyQuotes = true
	}

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing header", internalerr.ErrInvalidInput)
		}
		return nil, err
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	docCol, ok := cols[ColumnDocument]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q column", internalerr.ErrInvalidInput, ColumnDocument)
	}
	textCol, ok := cols[ColumnText]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q column", internalerr.ErrInvalidInput, ColumnText)
	}
	labelCol, hasLabel := cols[ColumnLabel]

	var docs []Document
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line++

		get := func(i int) string {
			if i < len(row) {
				return strings.TrimSpace(row[i])
			}
			return ""
		}

		d := Document{ID: get(docCol), Text: get(textCol)}
		if hasLabel {
			d.Label = get(labelCol)
		}
		if d.ID == "" {
			return nil, fmt.Errorf("%w: line %d has no document id", internalerr.ErrInvalidInput, line)
		}
		docs = append(docs, d)
	}

	return docs, nil
}

// WriteDocuments writes a corpus in the same format ReadDocuments accepts.
func WriteDocuments(w io.Writer, docs []Document, delim rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = delim

	if err := cw.Write([]string{ColumnDocument, ColumnText, ColumnLabel}); err != nil {
		return err
	}
	for _, d := range docs {
		if err := cw.Write([]string{d.ID, d.Text, d.Label}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
