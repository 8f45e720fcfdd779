package features

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/corpus"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/internalerr"
	"github.com/Numapresse/tidysupervise/pkg/tidysupervise/vocab"
)

const tol = 1e-9

func stream(doc, label, text string) []corpus.Record {
	var out []corpus.Record
	for _, t := range strings.Fields(text) {
		out = append(out, corpus.Record{DocumentID: doc, Term: t, Label: label})
	}
	return out
}

func mustVocab(t *testing.T, terms ...string) *vocab.Vocabulary {
	t.Helper()
	v, err := vocab.New(terms, nil, 0)
	if err != nil {
		t.Fatalf("vocab.New: %v", err)
	}
	return v
}

func TestSegmentDocuments(t *testing.T) {
	docs := []corpus.DocTokens{{ID: "d", Terms: []string{"a", "b", "c", "d", "e"}}}

	segs := SegmentDocuments(docs, 2, false)
	if len(segs) != 3 {
		t.Fatalf("Expected 3 segments, got %d", len(segs))
	}
	sizes := []int{len(segs[0].Terms), len(segs[1].Terms), len(segs[2].Terms)}
	if !reflect.DeepEqual(sizes, []int{2, 2, 1}) {
		t.Errorf("Expected sizes [2 2 1], got %v", sizes)
	}
	for i, s := range segs {
		if s.SegmentID != i+1 {
			t.Errorf("Segment %d has id %d", i, s.SegmentID)
		}
	}

	dropped := SegmentDocuments(docs, 2, true)
	if len(dropped) != 2 {
		t.Errorf("DropPartial should keep 2 full segments, got %d", len(dropped))
	}

	short := SegmentDocuments([]corpus.DocTokens{{ID: "s", Terms: []string{"a"}}}, 100, true)
	if len(short) != 1 {
		t.Errorf("A document shorter than the segment size is one segment, got %d", len(short))
	}

	whole := SegmentDocuments(docs, 0, false)
	if len(whole) != 1 || len(whole[0].Terms) != 5 {
		t.Errorf("Segment size 0 should keep the document whole, got %+v", whole)
	}
}

func TestBuildSegmentsAreRows(t *testing.T) {
	v := mustVocab(t, "a", "b", "c")
	recs := stream("doc1", "x", "a b c a b")

	m, err := Build(context.Background(), recs, v, Options{SegmentSize: 2, Training: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if m.Len() != 3 {
		t.Fatalf("Expected 3 rows, got %d", m.Len())
	}
	for i, r := range m.Rows() {
		if r.DocumentID != "doc1" || r.SegmentID != i+1 {
			t.Errorf("Row %d is %s/%d", i, r.DocumentID, r.SegmentID)
		}
		if r.Label != "x" {
			t.Errorf("Row %d should inherit label x, got %q", i, r.Label)
		}
	}
	if m.Row(2).Tokens != 1 {
		t.Errorf("Last segment should hold 1 token, got %d", m.Row(2).Tokens)
	}
}

func TestBuildColumnsMatchVocabulary(t *testing.T) {
	v := mustVocab(t, "zeta", "alpha", "mid")

	first, err := Build(context.Background(), stream("1", "", "alpha alpha"), v, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	second, err := Build(context.Background(), stream("2", "", "zeta other words"), v, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := []string{"zeta", "alpha", "mid"}
	if !reflect.DeepEqual(first.Columns(), want) || !reflect.DeepEqual(second.Columns(), want) {
		t.Errorf("Columns must equal vocabulary order: %v / %v", first.Columns(), second.Columns())
	}
	if first.At(0, 2) != 0 {
		t.Error("Absent term should yield zero weight")
	}
	if len(first.Row(0).Dense(first.NumColumns())) != 3 {
		t.Error("Dense row must span every column")
	}
}

func TestBuildRowNorms(t *testing.T) {
	v := mustVocab(t, "a", "b", "c")
	var recs []corpus.Record
	recs = append(recs, stream("1", "", "a b b c")...)
	recs = append(recs, stream("2", "", "a a")...)
	recs = append(recs, stream("3", "", "nothing known here")...)

	m, err := Build(context.Background(), recs, v, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for i := 0; i < 2; i++ {
		if n := m.Row(i).Norm(); math.Abs(n-1) > tol {
			t.Errorf("Row %d norm = %f, want 1", i, n)
		}
	}
	if !m.Row(2).IsZero() || m.Row(2).Norm() != 0 {
		t.Errorf("Row without vocabulary terms must be a zero vector, got %+v", m.Row(2))
	}
}

func TestBuildTFIDFValues(t *testing.T) {
	v := mustVocab(t, "a", "b")
	var recs []corpus.Record
	recs = append(recs, stream("1", "", "a b b")...)
	recs = append(recs, stream("2", "", "a")...)

	m, err := Build(context.Background(), recs, v, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	idfA := IDF(2, 2)
	idfB := IDF(2, 1)
	if got := m.IDF(); math.Abs(got[0]-idfA) > tol || math.Abs(got[1]-idfB) > tol {
		t.Fatalf("IDF = %v, want [%f %f]", got, idfA, idfB)
	}

	wa := (1.0 / 3.0) * idfA
	wb := (2.0 / 3.0) * idfB
	norm := math.Sqrt(wa*wa + wb*wb)
	if math.Abs(m.At(0, 0)-wa/norm) > tol || math.Abs(m.At(0, 1)-wb/norm) > tol {
		t.Errorf("Row 0 = [%f %f], want [%f %f]", m.At(0, 0), m.At(0, 1), wa/norm, wb/norm)
	}
}

func TestBuildFrozenIDF(t *testing.T) {
	v := mustVocab(t, "a", "b")
	frozen := []float64{2, 0.5}

	m, err := Build(context.Background(), stream("1", "", "a b"), v, Options{IDF: frozen})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !reflect.DeepEqual(m.IDF(), frozen) {
		t.Errorf("Frozen IDF should be used verbatim, got %v", m.IDF())
	}
	if m.At(0, 0) <= m.At(0, 1) {
		t.Errorf("Higher IDF should give higher weight: %f vs %f", m.At(0, 0), m.At(0, 1))
	}

	_, err = Build(context.Background(), stream("1", "", "a"), v, Options{IDF: []float64{1}})
	if !errors.Is(err, internalerr.ErrIncompatibleFeatureSpace) {
		t.Errorf("Expected ErrIncompatibleFeatureSpace, got %v", err)
	}
}

func TestBuildLabels(t *testing.T) {
	v := mustVocab(t, "a")

	m, err := Build(context.Background(), stream("1", "sport", "a"), v, Options{Training: false})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if m.Training() || m.Labels() != nil || m.Row(0).Label != "" {
		t.Error("Label column must be absent when not built for training")
	}

	_, err = Build(context.Background(), stream("1", "", "a"), v, Options{Training: true})
	if !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("Unlabelled document in a training build should fail, got %v", err)
	}
}

func TestBuildDocumentsKeepsEmptyDocuments(t *testing.T) {
	v := mustVocab(t, "a", "b")
	docs := []corpus.DocTokens{
		{ID: "known", Terms: []string{"a", "b"}},
		{ID: "empty", Terms: nil},
	}

	m, err := BuildDocuments(context.Background(), docs, v, Options{SegmentSize: 3, DropPartial: true})
	if err != nil {
		t.Fatalf("BuildDocuments: %v", err)
	}
	if m.Len() != 2 {
		t.Fatalf("Expected a row per document, got %d", m.Len())
	}
	empty := m.Row(1)
	if empty.DocumentID != "empty" || empty.SegmentID != 1 || empty.Tokens != 0 || !empty.IsZero() {
		t.Errorf("Empty document should be a zero row 1, got %+v", empty)
	}

	_, err = BuildDocuments(context.Background(), []corpus.DocTokens{{ID: "", Terms: []string{"a"}}}, v, Options{})
	if !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("Document without id should fail, got %v", err)
	}
	_, err = BuildDocuments(context.Background(), nil, v, Options{})
	if !errors.Is(err, internalerr.ErrEmptyFeatureMatrix) {
		t.Errorf("No document should be ErrEmptyFeatureMatrix, got %v", err)
	}
}

func TestBuildHonoursSegmentIDs(t *testing.T) {
	v := mustVocab(t, "a", "b", "c")
	recs := []corpus.Record{
		{DocumentID: "d", SegmentID: 1, Term: "a", Label: "x"},
		{DocumentID: "d", SegmentID: 2, Term: "b", Label: "x"},
		{DocumentID: "d", SegmentID: 1, Term: "a", Label: "x"},
		{DocumentID: "e", Term: "c", Label: "y"},
	}

	m, err := Build(context.Background(), recs, v, Options{Training: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var got []string
	for _, r := range m.Rows() {
		got = append(got, fmt.Sprintf("%s/%d:%d:%s", r.DocumentID, r.SegmentID, r.Tokens, r.Label))
	}
	want := []string{"d/1:2:x", "d/2:1:x", "e/1:1:y"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Rows = %v, want %v", got, want)
	}

	// a configured segment size recomputes segments
	m, err = Build(context.Background(), recs, v, Options{SegmentSize: 10})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if m.Len() != 2 {
		t.Errorf("Expected one row per document, got %d", m.Len())
	}
}

func TestBuildErrors(t *testing.T) {
	v := mustVocab(t, "a")

	if _, err := Build(context.Background(), nil, v, Options{}); !errors.Is(err, internalerr.ErrEmptyFeatureMatrix) {
		t.Errorf("Expected ErrEmptyFeatureMatrix, got %v", err)
	}
	if _, err := Build(context.Background(), stream("1", "", "a"), nil, Options{}); !errors.Is(err, internalerr.ErrEmptyVocabulary) {
		t.Errorf("Expected ErrEmptyVocabulary, got %v", err)
	}
	if _, err := Build(context.Background(), stream("1", "", "a"), v, Options{SegmentSize: -1}); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestBuildCancelled(t *testing.T) {
	v := mustVocab(t, "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m, err := Build(ctx, stream("1", "", "a a a"), v, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if m != nil {
		t.Error("Partial matrix must be discarded on cancellation")
	}
}

func TestSubsetSharesFeatureSpace(t *testing.T) {
	v := mustVocab(t, "a", "b")
	var recs []corpus.Record
	recs = append(recs, stream("1", "x", "a")...)
	recs = append(recs, stream("2", "y", "b")...)

	m, err := Build(context.Background(), recs, v, Options{Training: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	sub := m.Subset([]int{1})
	if sub.Len() != 1 || sub.Row(0).DocumentID != "2" {
		t.Errorf("Unexpected subset %+v", sub.Rows())
	}
	if !reflect.DeepEqual(sub.IDF(), m.IDF()) || sub.Vocabulary() != m.Vocabulary() {
		t.Error("Subset must keep the parent feature space")
	}
}

func TestWriteCSV(t *testing.T) {
	v := mustVocab(t, "a", "b")
	m, err := Build(context.Background(), stream("1", "x", "a"), v, Options{Training: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var b strings.Builder
	if err := m.WriteCSV(&b); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	if lines[0] != "document,segment,label,a,b" {
		t.Errorf("Unexpected header %q", lines[0])
	}
	if lines[1] != "1,1,x,1,0" {
		t.Errorf("Unexpected row %q", lines[1])
	}
}
